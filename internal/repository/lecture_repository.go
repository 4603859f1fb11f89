package repository

import (
	"errors"

	"lectio_backend/internal/model"
	"lectio_backend/internal/util"

	"gorm.io/gorm"
)

type LectureRepository struct {
	DB *gorm.DB
}

func NewLectureRepository(db *gorm.DB) *LectureRepository {
	return &LectureRepository{DB: db}
}

func (r *LectureRepository) Create(lecture *model.Lecture) error {
	return r.DB.Create(lecture).Error
}

func (r *LectureRepository) FindByID(id string) (*model.Lecture, error) {
	var lecture model.Lecture
	err := r.DB.First(&lecture, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrLectureNotFound
	}
	if err != nil {
		return nil, err
	}
	return &lecture, nil
}

func (r *LectureRepository) ListByUser(userID uint, page, limit int) ([]model.Lecture, int64, error) {
	var lectures []model.Lecture
	var total int64

	q := r.DB.Model(&model.Lecture{}).Where("user_id = ?", userID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := q.Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&lectures).Error
	return lectures, total, err
}

func (r *LectureRepository) UpdateStatus(id string, status model.LectureStatus) error {
	return r.DB.Model(&model.Lecture{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// Delete removes the lecture together with its segments and progress rows.
func (r *LectureRepository) Delete(id string) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("lecture_id = ?", id).Delete(&model.StorySegment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("lecture_id = ?", id).Delete(&model.StoryProgress{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Lecture{}, "id = ?", id).Error
	})
}
