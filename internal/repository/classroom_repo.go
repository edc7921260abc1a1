package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/stde-go-api/internal/models"
)

// ClassroomRepository persists classrooms.
type ClassroomRepository interface {
	Create(ctx context.Context, classroom *models.Classroom) error
	GetByID(ctx context.Context, id uint) (models.Classroom, error)
	ListByTeacher(ctx context.Context, teacherID uint) ([]models.Classroom, error)
}

type classroomRepository struct {
	db *gorm.DB
}

// NewClassroomRepository constructs the classroom repository.
func NewClassroomRepository(db *gorm.DB) ClassroomRepository {
	return &classroomRepository{db: db}
}

func (r *classroomRepository) Create(ctx context.Context, classroom *models.Classroom) error {
	return r.db.WithContext(ctx).Create(classroom).Error
}

func (r *classroomRepository) GetByID(ctx context.Context, id uint) (models.Classroom, error) {
	var classroom models.Classroom
	if err := r.db.WithContext(ctx).First(&classroom, id).Error; err != nil {
		return models.Classroom{}, err
	}
	return classroom, nil
}

func (r *classroomRepository) ListByTeacher(ctx context.Context, teacherID uint) ([]models.Classroom, error) {
	var classrooms []models.Classroom
	err := r.db.WithContext(ctx).
		Where("teacher_id = ?", teacherID).
		Order("name ASC").
		Find(&classrooms).Error
	if err != nil {
		return nil, err
	}
	return classrooms, nil
}
