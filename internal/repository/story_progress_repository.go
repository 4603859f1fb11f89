package repository

import (
	"context"
	"errors"
	"time"

	"lectio_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StoryProgressRepository struct {
	DB *gorm.DB
}

func NewStoryProgressRepository(db *gorm.DB) *StoryProgressRepository {
	return &StoryProgressRepository{DB: db}
}

func (r *StoryProgressRepository) Read(ctx context.Context, userID uint, lectureID string, segmentNumber int) (*model.StoryProgress, error) {
	var progress model.StoryProgress
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND lecture_id = ? AND segment_number = ?", userID, lectureID, segmentNumber).
		First(&progress).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &progress, nil
}

func (r *StoryProgressRepository) ListByUserAndLecture(ctx context.Context, userID uint, lectureID string) ([]model.StoryProgress, error) {
	var rows []model.StoryProgress
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND lecture_id = ?", userID, lectureID).
		Order("segment_number ASC").
		Find(&rows).Error
	return rows, err
}

// Upsert writes the score for a (user, lecture, segment) key. The store, not
// the caller, decides completion: completed_at is filled when the score
// reaches the mastery threshold and is never cleared by a later write.
// Concurrent writers for the same key are last-write-wins; no conflict
// resolution is attempted.
func (r *StoryProgressRepository) Upsert(ctx context.Context, userID uint, lectureID string, segmentNumber, score int) error {
	now := time.Now()

	progress := model.StoryProgress{
		UserID:        userID,
		LectureID:     lectureID,
		SegmentNumber: segmentNumber,
		Score:         score,
	}

	assignments := map[string]interface{}{
		"score":      score,
		"updated_at": now,
	}
	if score >= model.MasteryScore {
		progress.CompletedAt = &now
		assignments["completed_at"] = gorm.Expr("COALESCE(completed_at, ?)", now)
	}

	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"},
			{Name: "lecture_id"},
			{Name: "segment_number"},
		},
		DoUpdates: clause.Assignments(assignments),
	}).Create(&progress).Error
}
