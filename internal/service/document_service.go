package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/stde-go-api/internal/dto"
	"github.com/noah-isme/stde-go-api/internal/models"
	"github.com/noah-isme/stde-go-api/internal/observability"
	"github.com/noah-isme/stde-go-api/internal/repository"
	"github.com/noah-isme/stde-go-api/pkg/extract"
	"github.com/noah-isme/stde-go-api/pkg/storage"
)

// Actor identifies the authenticated caller.
type Actor struct {
	ID   uint
	Role string
}

// DocumentService handles uploads and the document lifecycle outside of evaluation.
type DocumentService interface {
	Upload(ctx context.Context, actor Actor, classroomID *uint, file *multipart.FileHeader) (dto.DocumentResponse, error)
	Submit(ctx context.Context, documentID uint, actor Actor) (dto.DocumentResponse, error)
	Delete(ctx context.Context, documentID uint, actor Actor) error
	Get(ctx context.Context, documentID, viewerID uint) (dto.DocumentResponse, error)
	ListForUser(ctx context.Context, userID uint) ([]dto.DocumentResponse, error)
	ListForClassroom(ctx context.Context, classroomID, teacherID uint) ([]dto.DocumentResponse, error)
}

type documentService struct {
	documents   repository.DocumentRepository
	evaluations repository.EvaluationRepository
	classrooms  ClassroomService
	storage     storage.Storage
	activity    ActivityRecorder
	logger      zerolog.Logger
	maxSize     int64
	tracer      trace.Tracer
}

// NewDocumentService constructs a document service.
func NewDocumentService(documents repository.DocumentRepository, evaluations repository.EvaluationRepository, classrooms ClassroomService, store storage.Storage, activity ActivityRecorder, maxSizeMB int, logger zerolog.Logger) DocumentService {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	return &documentService{
		documents:   documents,
		evaluations: evaluations,
		classrooms:  classrooms,
		storage:     store,
		activity:    activity,
		logger:      logger.With().Str("component", "document_service").Logger(),
		maxSize:     int64(maxSizeMB) * 1024 * 1024,
		tracer:      otel.Tracer("github.com/noah-isme/stde-go-api/internal/service/document"),
	}
}

func (s *documentService) Upload(ctx context.Context, actor Actor, classroomID *uint, file *multipart.FileHeader) (dto.DocumentResponse, error) {
	ctx, span := s.tracer.Start(ctx, "document.upload")
	defer span.End()

	span.SetAttributes(attribute.Int64("upload.max_bytes", s.maxSize))
	if file == nil {
		err := errors.New("file is required")
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return dto.DocumentResponse{}, err
	}
	span.SetAttributes(
		attribute.String("upload.original_name", strings.TrimSpace(file.Filename)),
		attribute.Int64("upload.request_size", file.Size),
	)

	if file.Size > s.maxSize {
		return dto.DocumentResponse{}, s.reject(span, "size", ErrUploadTooLarge)
	}

	if classroomID != nil {
		if err := s.classrooms.Exists(ctx, *classroomID); err != nil {
			span.RecordError(err)
			return dto.DocumentResponse{}, err
		}
	}

	handle, err := file.Open()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "open failed")
		return dto.DocumentResponse{}, err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxSize+1)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return dto.DocumentResponse{}, err
	}
	if int64(buf.Len()) > s.maxSize {
		return dto.DocumentResponse{}, s.reject(span, "size", ErrUploadTooLarge)
	}
	if buf.Len() == 0 {
		return dto.DocumentResponse{}, s.reject(span, "empty", ErrUploadEmpty)
	}

	mimeType, ok := detectDocumentType(buf.Bytes())
	span.SetAttributes(attribute.String("upload.detected_mime", mimeType))
	if !ok {
		return dto.DocumentResponse{}, s.reject(span, "type", ErrUnsupportedFileType)
	}

	filename := displayName(file.Filename)
	locator, err := s.storage.Store(ctx, filename, bytes.NewReader(buf.Bytes()))
	if err != nil {
		observability.UploadRejections().WithLabelValues("storage").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage failed")
		return dto.DocumentResponse{}, err
	}

	document := models.Document{
		UserID:         actor.ID,
		ClassroomID:    classroomID,
		Filename:       filename,
		MimeType:       mimeType,
		SizeBytes:      int64(buf.Len()),
		StorageLocator: locator,
		Status:         models.DocumentStatusUploaded,
	}
	if err := s.documents.Create(ctx, &document); err != nil {
		if delErr := s.storage.Delete(context.WithoutCancel(ctx), locator); delErr != nil {
			s.logger.Warn().Err(delErr).Str("locator", locator).Msg("failed to remove orphaned upload")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		return dto.DocumentResponse{}, err
	}

	s.activity.RecordAsync(documentEntry(actor.ID, actor.Role, models.ActivityActionUpload, document.ID, map[string]interface{}{
		"filename":   document.Filename,
		"mime_type":  document.MimeType,
		"size_bytes": document.SizeBytes,
	}))
	span.SetStatus(codes.Ok, "stored")

	return dto.NewDocumentResponse(document, nil), nil
}

func (s *documentService) Submit(ctx context.Context, documentID uint, actor Actor) (dto.DocumentResponse, error) {
	document, err := s.loadOwned(ctx, documentID, actor.ID)
	if err != nil {
		return dto.DocumentResponse{}, err
	}

	changed, err := s.documents.MarkSubmitted(ctx, document.ID)
	if err != nil {
		return dto.DocumentResponse{}, err
	}
	if !changed {
		return dto.DocumentResponse{}, ErrDocumentAlreadySubmitted
	}
	document.IsSubmitted = true

	s.activity.RecordAsync(documentEntry(actor.ID, actor.Role, models.ActivityActionSubmit, document.ID, nil))
	return dto.NewDocumentResponse(document, s.evaluationFor(ctx, document.ID)), nil
}

func (s *documentService) Delete(ctx context.Context, documentID uint, actor Actor) error {
	document, err := s.loadOwned(ctx, documentID, actor.ID)
	if err != nil {
		return err
	}
	if document.IsSubmitted {
		return ErrDocumentImmutable
	}
	if document.Status == models.DocumentStatusProcessing {
		return ErrDocumentBusy
	}

	if err := s.documents.Delete(ctx, document.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrDocumentNotFound
		}
		return err
	}

	if document.StorageLocator != "" {
		if err := s.storage.Delete(ctx, document.StorageLocator); err != nil {
			s.logger.Warn().Err(err).Uint("document_id", document.ID).Msg("failed to delete stored document")
		}
	}

	s.activity.RecordAsync(documentEntry(actor.ID, actor.Role, models.ActivityActionDelete, document.ID, map[string]interface{}{
		"filename": document.Filename,
	}))
	return nil
}

func (s *documentService) Get(ctx context.Context, documentID, viewerID uint) (dto.DocumentResponse, error) {
	document, err := s.load(ctx, documentID)
	if err != nil {
		return dto.DocumentResponse{}, err
	}
	if err := canView(ctx, s.classrooms, document, viewerID); err != nil {
		return dto.DocumentResponse{}, err
	}
	return dto.NewDocumentResponse(document, s.evaluationFor(ctx, document.ID)), nil
}

func (s *documentService) ListForUser(ctx context.Context, userID uint) ([]dto.DocumentResponse, error) {
	documents, err := s.documents.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.withScores(ctx, documents)
}

func (s *documentService) ListForClassroom(ctx context.Context, classroomID, teacherID uint) ([]dto.DocumentResponse, error) {
	if err := s.classrooms.VerifyOwnership(ctx, classroomID, teacherID); err != nil {
		return nil, err
	}
	documents, err := s.documents.ListSubmittedByClassroom(ctx, classroomID)
	if err != nil {
		return nil, err
	}
	return s.withScores(ctx, documents)
}

func (s *documentService) withScores(ctx context.Context, documents []models.Document) ([]dto.DocumentResponse, error) {
	ids := make([]uint, 0, len(documents))
	for _, document := range documents {
		ids = append(ids, document.ID)
	}
	evaluations, err := s.evaluations.FindByDocumentIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byDocument := make(map[uint]models.Evaluation, len(evaluations))
	for _, evaluation := range evaluations {
		byDocument[evaluation.DocumentID] = evaluation
	}

	responses := make([]dto.DocumentResponse, 0, len(documents))
	for _, document := range documents {
		var evaluation *models.Evaluation
		if found, ok := byDocument[document.ID]; ok {
			evaluation = &found
		}
		responses = append(responses, dto.NewDocumentResponse(document, evaluation))
	}
	return responses, nil
}

func (s *documentService) evaluationFor(ctx context.Context, documentID uint) *models.Evaluation {
	evaluation, err := s.evaluations.FindByDocumentID(ctx, documentID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn().Err(err).Uint("document_id", documentID).Msg("failed to load evaluation")
		}
		return nil
	}
	return &evaluation
}

func (s *documentService) load(ctx context.Context, documentID uint) (models.Document, error) {
	document, err := s.documents.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Document{}, ErrDocumentNotFound
		}
		return models.Document{}, err
	}
	return document, nil
}

func (s *documentService) loadOwned(ctx context.Context, documentID, userID uint) (models.Document, error) {
	document, err := s.load(ctx, documentID)
	if err != nil {
		return models.Document{}, err
	}
	if document.UserID != userID {
		return models.Document{}, ErrUnauthorized
	}
	return document, nil
}

func (s *documentService) reject(span trace.Span, reason string, err error) error {
	observability.UploadRejections().WithLabelValues(reason).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, reason)
	return err
}

func displayName(original string) string {
	name := filepath.Base(strings.TrimSpace(strings.ReplaceAll(original, "\\", "/")))
	if name == "" || name == "." || name == "/" {
		return "document"
	}
	return name
}

// detectDocumentType sniffs the payload and walks the MIME hierarchy until a type the extractor
// understands is found.
func detectDocumentType(payload []byte) (string, bool) {
	for detected := mimetype.Detect(payload); detected != nil; detected = detected.Parent() {
		normalized := extract.NormalizeMimeType(detected.String())
		if extract.Supports(normalized) {
			return normalized, true
		}
	}
	return "", false
}

// canView allows the document owner and the teacher of the document's classroom.
func canView(ctx context.Context, classrooms ClassroomService, document models.Document, viewerID uint) error {
	if document.UserID == viewerID {
		return nil
	}
	if document.ClassroomID == nil {
		return ErrUnauthorized
	}
	if err := classrooms.VerifyOwnership(ctx, *document.ClassroomID, viewerID); err != nil {
		if errors.Is(err, ErrClassroomNotFound) || errors.Is(err, ErrUnauthorized) {
			return ErrUnauthorized
		}
		return err
	}
	return nil
}
