package service

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"lectio_backend/internal/config"
	"lectio_backend/internal/model"
	"lectio_backend/internal/repository"
	"lectio_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const pathwayResponse = `{
	"segments": [
		{"title": "The Cell", "description": "What a cell is.", "action": "story"},
		{"title": "Organelles", "description": "Parts of the cell.", "action": "story"},
		{"title": "Recap", "description": "Quick recap quiz.", "action": "quiz"}
	]
}`

const contentResponse = `{
	"slides": ["Cells are the basic unit of life.", "Organelles divide the labor inside a cell."],
	"questions": [
		{"type": "multiple_choice", "prompt": "What produces ATP?",
		 "options": ["Nucleus", "Mitochondria", "Ribosome", "Golgi"],
		 "correctAnswer": "Mitochondria", "explanation": "Mitochondria run cellular respiration."},
		{"type": "true_false", "prompt": "All cells have a nucleus.",
		 "options": ["True", "False"],
		 "correctAnswer": "False", "explanation": "Prokaryotes have no nucleus."}
	]
}`

type fakeGenerator struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     int
}

func (f *fakeGenerator) GenerateJSON(ctx context.Context, system, prompt string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.responses) == 0 {
		return nil, errors.New("no scripted response left")
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return json.RawMessage(resp), nil
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Lecture{}, &model.StorySegment{}, &model.StoryProgress{}))
	return db
}

func setupContentService(t *testing.T, gen ContentGenerator) (*StoryContentService, *model.Lecture) {
	t.Helper()
	db := testDB(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lecture.txt"),
		[]byte("Cell biology. Cells are the smallest unit of life."), 0o644))

	storage := &StorageService{Provider: &LocalStorageProvider{
		Config: &config.StorageConfig{LocalPath: dir},
	}}

	lectureRepo := repository.NewLectureRepository(db)
	lecture := &model.Lecture{
		UserID:        1,
		Title:         "Cell Biology",
		Status:        model.LectureReady,
		TextObjectKey: "lecture.txt",
	}
	require.NoError(t, lectureRepo.Create(lecture))

	svc := NewStoryContentService(
		lectureRepo,
		repository.NewStorySegmentRepository(db),
		storage,
		gen,
		nil, // no cache in tests
		time.Second,
	)
	return svc, lecture
}

func TestGetSegmentsGeneratesOnce(t *testing.T) {
	gen := &fakeGenerator{responses: []string{pathwayResponse}}
	svc, lecture := setupContentService(t, gen)

	segments, err := svc.GetSegments(context.Background(), lecture.ID)
	require.NoError(t, err)
	require.Len(t, segments, 3)

	assert.Equal(t, 1, segments[0].SequenceNumber)
	assert.Equal(t, "The Cell", segments[0].Title)
	assert.Equal(t, model.ActionStory, segments[0].Action)
	assert.Equal(t, model.ActionQuiz, segments[2].Action)

	// Second call is served from the store, not the generator.
	again, err := svc.GetSegments(context.Background(), lecture.ID)
	require.NoError(t, err)
	assert.Len(t, again, 3)
	assert.Equal(t, 1, gen.callCount())
}

func TestGetSegmentsRejectsUnknownAction(t *testing.T) {
	gen := &fakeGenerator{responses: []string{
		`{"segments": [{"title": "Intro", "description": "x", "action": "video"}]}`,
	}}
	svc, lecture := setupContentService(t, gen)

	_, err := svc.GetSegments(context.Background(), lecture.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown segment action")

	// Nothing was persisted for the rejected pathway.
	stored, err := svc.SegmentRepo.ListByLecture(lecture.ID)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestGetSegmentsFailsWhenLectureNotReady(t *testing.T) {
	gen := &fakeGenerator{responses: []string{pathwayResponse}}
	svc, _ := setupContentService(t, gen)

	pending := &model.Lecture{UserID: 1, Title: "Pending", Status: model.LectureProcessing}
	require.NoError(t, svc.LectureRepo.Create(pending))

	_, err := svc.GetSegments(context.Background(), pending.ID)
	assert.ErrorIs(t, err, util.ErrLectureNotReady)
	assert.Equal(t, 0, gen.callCount(), "no generation before the text is available")
}

func TestGenerationFailureSurfaces(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("model overloaded")}
	svc, lecture := setupContentService(t, gen)

	_, err := svc.GetSegments(context.Background(), lecture.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "content generation")

	// The failure is not cached: a later request tries again.
	gen.mu.Lock()
	gen.err = nil
	gen.responses = []string{pathwayResponse}
	gen.mu.Unlock()

	segments, err := svc.GetSegments(context.Background(), lecture.ID)
	require.NoError(t, err)
	assert.Len(t, segments, 3)
}

func TestGetSegmentContentGeneratesOnce(t *testing.T) {
	gen := &fakeGenerator{responses: []string{pathwayResponse, contentResponse}}
	svc, lecture := setupContentService(t, gen)

	_, err := svc.GetSegments(context.Background(), lecture.ID)
	require.NoError(t, err)

	content, err := svc.GetSegmentContent(context.Background(), lecture.ID, 1)
	require.NoError(t, err)
	require.Len(t, content.Slides, 2)
	require.Len(t, content.Questions, model.QuestionsPerSegment)
	assert.Equal(t, model.MultipleChoice, content.Questions[0].Type)
	assert.Equal(t, "Mitochondria", content.Questions[0].CorrectAnswer)
	assert.Equal(t, model.TrueFalse, content.Questions[1].Type)

	// The generated material is stored on the segment row.
	segment, err := svc.SegmentRepo.FindByNumber(lecture.ID, 1)
	require.NoError(t, err)
	assert.NotEmpty(t, segment.Content)

	again, err := svc.GetSegmentContent(context.Background(), lecture.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, content.Slides, again.Slides)
	assert.Equal(t, 2, gen.callCount(), "one pathway call plus one content call")
}

func TestGetSegmentContentRejectsWrongQuestionCount(t *testing.T) {
	shortContent := `{
		"slides": ["Only slide."],
		"questions": [
			{"type": "true_false", "prompt": "Is this enough?",
			 "options": ["True", "False"], "correctAnswer": "False", "explanation": "One short."}
		]
	}`
	gen := &fakeGenerator{responses: []string{pathwayResponse, shortContent}}
	svc, lecture := setupContentService(t, gen)

	_, err := svc.GetSegments(context.Background(), lecture.ID)
	require.NoError(t, err)

	_, err = svc.GetSegmentContent(context.Background(), lecture.ID, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed")

	// Bad output is not persisted; the next request can regenerate.
	segment, err := svc.SegmentRepo.FindByNumber(lecture.ID, 1)
	require.NoError(t, err)
	assert.Empty(t, segment.Content)
}

func TestGetSegmentContentUnknownSegment(t *testing.T) {
	gen := &fakeGenerator{responses: []string{pathwayResponse}}
	svc, lecture := setupContentService(t, gen)

	_, err := svc.GetSegments(context.Background(), lecture.ID)
	require.NoError(t, err)

	_, err = svc.GetSegmentContent(context.Background(), lecture.ID, 42)
	assert.ErrorIs(t, err, util.ErrSegmentNotFound)
}
