package repository

import (
	"errors"

	"lectio_backend/internal/model"
	"lectio_backend/internal/util"

	"gorm.io/gorm"
)

type StorySegmentRepository struct {
	DB *gorm.DB
}

func NewStorySegmentRepository(db *gorm.DB) *StorySegmentRepository {
	return &StorySegmentRepository{DB: db}
}

func (r *StorySegmentRepository) CreateBatch(segments []model.StorySegment) error {
	if len(segments) == 0 {
		return nil
	}
	return r.DB.Create(&segments).Error
}

func (r *StorySegmentRepository) ListByLecture(lectureID string) ([]model.StorySegment, error) {
	var segments []model.StorySegment
	err := r.DB.Where("lecture_id = ?", lectureID).
		Order("sequence_number ASC").
		Find(&segments).Error
	return segments, err
}

func (r *StorySegmentRepository) FindByNumber(lectureID string, sequenceNumber int) (*model.StorySegment, error) {
	var segment model.StorySegment
	err := r.DB.Where("lecture_id = ? AND sequence_number = ?", lectureID, sequenceNumber).
		First(&segment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrSegmentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &segment, nil
}

// UpdateContent stores the generated study material on the segment row.
// Content is written once; later reads serve the stored copy.
func (r *StorySegmentRepository) UpdateContent(id uint, content string) error {
	return r.DB.Model(&model.StorySegment{}).
		Where("id = ?", id).
		Update("content", content).Error
}
