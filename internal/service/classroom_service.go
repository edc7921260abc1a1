package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/stde-go-api/internal/dto"
	"github.com/noah-isme/stde-go-api/internal/models"
	"github.com/noah-isme/stde-go-api/internal/repository"
)

// ClassroomService manages classrooms and answers ownership questions.
type ClassroomService interface {
	Exists(ctx context.Context, classroomID uint) error
	VerifyOwnership(ctx context.Context, classroomID, userID uint) error
	Create(ctx context.Context, teacherID uint, payload dto.ClassroomRequest) (dto.ClassroomResponse, error)
	ListOwned(ctx context.Context, teacherID uint) ([]dto.ClassroomResponse, error)
}

type classroomService struct {
	repo      repository.ClassroomRepository
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewClassroomService constructs the classroom service.
func NewClassroomService(repo repository.ClassroomRepository, validate *validator.Validate, logger zerolog.Logger) ClassroomService {
	return &classroomService{
		repo:      repo,
		validator: validate,
		logger:    logger.With().Str("component", "classroom_service").Logger(),
	}
}

// Exists returns ErrClassroomNotFound when no classroom has the given id.
func (s *classroomService) Exists(ctx context.Context, classroomID uint) error {
	if _, err := s.repo.GetByID(ctx, classroomID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrClassroomNotFound
		}
		return err
	}
	return nil
}

func (s *classroomService) VerifyOwnership(ctx context.Context, classroomID, userID uint) error {
	classroom, err := s.repo.GetByID(ctx, classroomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrClassroomNotFound
		}
		return err
	}
	if classroom.TeacherID != userID {
		return ErrUnauthorized
	}
	return nil
}

func (s *classroomService) Create(ctx context.Context, teacherID uint, payload dto.ClassroomRequest) (dto.ClassroomResponse, error) {
	payload.Name = strings.TrimSpace(payload.Name)
	if err := s.validator.Struct(payload); err != nil {
		return dto.ClassroomResponse{}, err
	}

	classroom := models.Classroom{Name: payload.Name, TeacherID: teacherID}
	if err := s.repo.Create(ctx, &classroom); err != nil {
		return dto.ClassroomResponse{}, err
	}

	s.logger.Info().Uint("classroom_id", classroom.ID).Uint("teacher_id", teacherID).Msg("classroom created")
	return dto.NewClassroomResponse(classroom), nil
}

func (s *classroomService) ListOwned(ctx context.Context, teacherID uint) ([]dto.ClassroomResponse, error) {
	classrooms, err := s.repo.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	responses := make([]dto.ClassroomResponse, 0, len(classrooms))
	for _, classroom := range classrooms {
		responses = append(responses, dto.NewClassroomResponse(classroom))
	}
	return responses, nil
}
