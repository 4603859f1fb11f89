package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"lectio_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Lecture{}, &model.StorySegment{}, &model.StoryProgress{}))
	return db
}

func TestReadMissingProgressReturnsNil(t *testing.T) {
	repo := NewStoryProgressRepository(testDB(t))

	progress, err := repo.Read(context.Background(), 1, "lecture-1", 1)
	require.NoError(t, err)
	assert.Nil(t, progress)
}

func TestUpsertBelowMasteryLeavesCompletionUnset(t *testing.T) {
	repo := NewStoryProgressRepository(testDB(t))

	require.NoError(t, repo.Upsert(context.Background(), 1, "lecture-1", 1, 5))

	progress, err := repo.Read(context.Background(), 1, "lecture-1", 1)
	require.NoError(t, err)
	require.NotNil(t, progress)
	assert.Equal(t, 5, progress.Score)
	assert.Nil(t, progress.CompletedAt)
}

func TestUpsertAtMasterySetsCompletion(t *testing.T) {
	repo := NewStoryProgressRepository(testDB(t))

	require.NoError(t, repo.Upsert(context.Background(), 1, "lecture-1", 1, model.MasteryScore))

	progress, err := repo.Read(context.Background(), 1, "lecture-1", 1)
	require.NoError(t, err)
	require.NotNil(t, progress)
	assert.Equal(t, model.MasteryScore, progress.Score)
	require.NotNil(t, progress.CompletedAt)
	assert.WithinDuration(t, time.Now(), *progress.CompletedAt, time.Minute)
}

func TestUpsertNeverClearsCompletion(t *testing.T) {
	repo := NewStoryProgressRepository(testDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, 1, "lecture-1", 1, model.MasteryScore))
	first, err := repo.Read(ctx, 1, "lecture-1", 1)
	require.NoError(t, err)
	require.NotNil(t, first.CompletedAt)
	completedAt := *first.CompletedAt

	// A later sub-mastery write updates the score but keeps the completion.
	require.NoError(t, repo.Upsert(ctx, 1, "lecture-1", 1, 5))
	after, err := repo.Read(ctx, 1, "lecture-1", 1)
	require.NoError(t, err)
	assert.Equal(t, 5, after.Score)
	require.NotNil(t, after.CompletedAt)
	assert.True(t, after.CompletedAt.Equal(completedAt))

	// Re-reaching mastery keeps the original completion timestamp.
	require.NoError(t, repo.Upsert(ctx, 1, "lecture-1", 1, model.MasteryScore))
	again, err := repo.Read(ctx, 1, "lecture-1", 1)
	require.NoError(t, err)
	require.NotNil(t, again.CompletedAt)
	assert.True(t, again.CompletedAt.Equal(completedAt))
}

func TestUpsertIsKeyedPerUserLectureSegment(t *testing.T) {
	repo := NewStoryProgressRepository(testDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, 1, "lecture-1", 1, model.MasteryScore))
	require.NoError(t, repo.Upsert(ctx, 1, "lecture-1", 2, model.MasteryScore))
	require.NoError(t, repo.Upsert(ctx, 2, "lecture-1", 1, model.MasteryScore))
	require.NoError(t, repo.Upsert(ctx, 1, "lecture-2", 1, model.MasteryScore))

	rows, err := repo.ListByUserAndLecture(ctx, 1, "lecture-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0].SegmentNumber)
	assert.Equal(t, 2, rows[1].SegmentNumber)

	other, err := repo.ListByUserAndLecture(ctx, 2, "lecture-1")
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestUpsertUpdatesInsteadOfDuplicating(t *testing.T) {
	repo := NewStoryProgressRepository(testDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, 1, "lecture-1", 1, model.MasteryScore))
	require.NoError(t, repo.Upsert(ctx, 1, "lecture-1", 1, model.MasteryScore))

	var count int64
	require.NoError(t, repo.DB.Model(&model.StoryProgress{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
