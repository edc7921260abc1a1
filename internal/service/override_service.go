package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/stde-go-api/internal/dto"
	"github.com/noah-isme/stde-go-api/internal/models"
	"github.com/noah-isme/stde-go-api/internal/repository"
)

// OverrideFeedback replaces the overall feedback of a manually scored evaluation.
const OverrideFeedback = "Score manually overridden by Professor."

// OverrideService lets a classroom teacher replace the scores of a document.
type OverrideService interface {
	Override(ctx context.Context, documentID uint, teacher Actor, newScore int) (dto.EvaluationResponse, error)
}

type overrideService struct {
	documents   repository.DocumentRepository
	evaluations repository.EvaluationRepository
	classrooms  ClassroomService
	activity    ActivityRecorder
	notifier    Notifier
	tracer      trace.Tracer
	logger      zerolog.Logger
	now         func() time.Time
}

// NewOverrideService constructs the override service.
func NewOverrideService(documents repository.DocumentRepository, evaluations repository.EvaluationRepository, classrooms ClassroomService, activity ActivityRecorder, notifier Notifier, logger zerolog.Logger) OverrideService {
	return &overrideService{
		documents:   documents,
		evaluations: evaluations,
		classrooms:  classrooms,
		activity:    activity,
		notifier:    notifier,
		tracer:      otel.Tracer("github.com/noah-isme/stde-go-api/internal/service/override"),
		logger:      logger.With().Str("component", "override_service").Logger(),
		now:         time.Now,
	}
}

func (s *overrideService) Override(ctx context.Context, documentID uint, teacher Actor, newScore int) (dto.EvaluationResponse, error) {
	ctx, span := s.tracer.Start(ctx, "evaluation.override", trace.WithAttributes(
		attribute.Int64("document.id", int64(documentID)),
		attribute.Int64("teacher.id", int64(teacher.ID)),
	))
	defer span.End()

	if newScore < 0 || newScore > 100 {
		span.SetStatus(codes.Error, "invalid score")
		return dto.EvaluationResponse{}, ErrInvalidScore
	}

	document, err := s.documents.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EvaluationResponse{}, ErrDocumentNotFound
		}
		return dto.EvaluationResponse{}, err
	}

	if document.ClassroomID == nil {
		span.SetStatus(codes.Error, "no classroom")
		return dto.EvaluationResponse{}, ErrUnauthorized
	}
	if err := s.classrooms.VerifyOwnership(ctx, *document.ClassroomID, teacher.ID); err != nil {
		span.SetStatus(codes.Error, "ownership")
		if errors.Is(err, ErrClassroomNotFound) {
			return dto.EvaluationResponse{}, ErrUnauthorized
		}
		return dto.EvaluationResponse{}, err
	}

	evaluation, err := s.evaluations.FindByDocumentID(ctx, document.ID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EvaluationResponse{}, err
		}
		evaluation = models.Evaluation{
			DocumentID: document.ID,
			UserID:     document.UserID,
			CreatedAt:  s.now().UTC(),
		}
	}

	evaluation.CompletenessScore = newScore
	evaluation.ClarityScore = newScore
	evaluation.ConsistencyScore = newScore
	evaluation.VerificationScore = newScore
	evaluation.OverallScore = newScore
	evaluation.CompletenessFeedback = ""
	evaluation.ClarityFeedback = ""
	evaluation.ConsistencyFeedback = ""
	evaluation.VerificationFeedback = ""
	evaluation.OverallFeedback = OverrideFeedback
	evaluation.Document = models.Document{}

	if err := s.evaluations.SaveForDocument(ctx, &evaluation); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		return dto.EvaluationResponse{}, err
	}
	span.SetStatus(codes.Ok, "overridden")

	s.logger.Info().
		Uint("document_id", document.ID).
		Uint("teacher_id", teacher.ID).
		Int("score", newScore).
		Msg("evaluation overridden")

	if s.activity != nil {
		s.activity.RecordAsync(documentEntry(teacher.ID, teacher.Role, models.ActivityActionOverride, document.ID, map[string]interface{}{
			"score": newScore,
		}))
	}
	if s.notifier != nil {
		score := newScore
		s.notifier.EvaluationFinished(EvaluationEvent{
			DocumentID:   document.ID,
			UserID:       document.UserID,
			Filename:     document.Filename,
			Status:       models.DocumentStatusCompleted,
			OverallScore: &score,
			Overridden:   true,
			OccurredAt:   s.now().UTC(),
		})
	}

	return evaluationResponse(evaluation, document.Filename), nil
}
