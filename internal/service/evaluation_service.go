package service

import (
	"context"
	"errors"
	"html"
	"io"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
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
	"github.com/noah-isme/stde-go-api/pkg/ai"
	"github.com/noah-isme/stde-go-api/pkg/extract"
	"github.com/noah-isme/stde-go-api/pkg/fingerprint"
	"github.com/noah-isme/stde-go-api/pkg/storage"
)

const (
	// DefaultTruncationLimit is the rune budget of the text sent to the model when truncation is on.
	DefaultTruncationLimit = 15000

	// DefaultProcessingStaleAfter bounds how long an unfinished run keeps a document locked.
	DefaultProcessingStaleAfter = 2 * time.Minute

	truncationNote = "\n\n[Content truncated for evaluation]"
	cacheNote      = " (Note: Result retrieved from cache as content is identical to previous submission.)"

	terminalWriteTimeout = 5 * time.Second
)

// ContentExtractor turns stored bytes into plain text.
type ContentExtractor interface {
	Extract(ctx context.Context, r io.Reader, declared string) (string, error)
}

// EvaluationConfig holds the pipeline toggles.
type EvaluationConfig struct {
	EnableTruncation bool
	TruncationLimit  int
	// ClassifyFailOpen treats a failed classifier call as "is a test document".
	ClassifyFailOpen bool

	// ProcessingStaleAfter is the age after which a PROCESSING document is considered abandoned.
	ProcessingStaleAfter time.Duration
}

// EvaluationDependencies are the collaborators of the evaluation pipeline.
type EvaluationDependencies struct {
	Documents     repository.DocumentRepository
	Evaluations   repository.EvaluationRepository
	Classrooms    ClassroomService
	Quota         QuotaTracker
	Storage       storage.Storage
	Extractor     ContentExtractor
	Fingerprinter fingerprint.Fingerprinter
	AI            ai.Gateway
	Activity      ActivityRecorder
	Notifier      Notifier
	Reporter      observability.ErrorReporter
}

// EvaluationService runs the grading pipeline and answers evaluation queries.
type EvaluationService interface {
	Evaluate(ctx context.Context, documentID uint, actor Actor) (dto.EvaluationResponse, error)
	GetByDocument(ctx context.Context, documentID, viewerID uint) (dto.EvaluationResponse, error)
	ListForUser(ctx context.Context, userID uint) ([]dto.EvaluationResponse, error)
}

type evaluationService struct {
	deps      EvaluationDependencies
	cfg       EvaluationConfig
	sanitizer *bluemonday.Policy
	tracer    trace.Tracer
	logger    zerolog.Logger
	now       func() time.Time
}

// NewEvaluationService constructs the evaluation orchestrator.
func NewEvaluationService(deps EvaluationDependencies, cfg EvaluationConfig, logger zerolog.Logger) EvaluationService {
	if cfg.TruncationLimit <= 0 {
		cfg.TruncationLimit = DefaultTruncationLimit
	}
	if cfg.ProcessingStaleAfter <= 0 {
		cfg.ProcessingStaleAfter = DefaultProcessingStaleAfter
	}
	if deps.Fingerprinter == nil {
		deps.Fingerprinter = fingerprint.SHA256{}
	}
	return &evaluationService{
		deps:      deps,
		cfg:       cfg,
		sanitizer: bluemonday.StrictPolicy(),
		tracer:    otel.Tracer("github.com/noah-isme/stde-go-api/internal/service/evaluation"),
		logger:    logger.With().Str("component", "evaluation_service").Logger(),
		now:       time.Now,
	}
}

// Evaluate runs the pipeline for one document. Ownership and quota are checked before any state
// changes; afterwards every failure leaves the document FAILED and returns an *EvaluationError.
func (s *evaluationService) Evaluate(ctx context.Context, documentID uint, actor Actor) (dto.EvaluationResponse, error) {
	ctx, span := s.tracer.Start(ctx, "evaluation.run", trace.WithAttributes(
		attribute.Int64("document.id", int64(documentID)),
		attribute.Int64("user.id", int64(actor.ID)),
	))
	defer span.End()

	document, err := s.deps.Documents.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EvaluationResponse{}, ErrDocumentNotFound
		}
		return dto.EvaluationResponse{}, err
	}
	if document.UserID != actor.ID {
		return dto.EvaluationResponse{}, ErrUnauthorized
	}
	staleBefore := s.now().Add(-s.cfg.ProcessingStaleAfter)
	if document.Status == models.DocumentStatusProcessing && !document.UpdatedAt.Before(staleBefore) {
		return dto.EvaluationResponse{}, ErrDocumentBusy
	}

	if err := s.deps.Quota.CheckAndConsume(ctx, actor.ID); err != nil {
		span.SetStatus(codes.Error, "quota")
		return dto.EvaluationResponse{}, err
	}

	claimed, err := s.deps.Documents.MarkProcessing(ctx, document.ID, staleBefore)
	if err != nil {
		return dto.EvaluationResponse{}, err
	}
	if !claimed {
		return dto.EvaluationResponse{}, ErrDocumentBusy
	}
	document.Status = models.DocumentStatusProcessing

	started := s.now()
	logger := s.logger.With().Uint("document_id", document.ID).Uint("user_id", actor.ID).Logger()

	evaluation, cached, runErr := s.run(ctx, &document, logger)
	observability.EvaluationDuration().Observe(s.now().Sub(started).Seconds())

	if runErr != nil {
		failure := classifyFailure(runErr)
		s.markFailed(ctx, document.ID, logger)

		kind := failureKindLabel(failure.Kind)
		observability.EvaluationOutcomes().WithLabelValues("failed", kind).Inc()
		logger.Warn().Err(failure.Cause).Str("kind", kind).Msg("evaluation failed")
		if errors.Is(failure, ErrEvaluationFailed) && s.deps.Reporter != nil {
			s.deps.Reporter.Report(failure, map[string]interface{}{"document_id": document.ID, "user_id": actor.ID})
		}
		span.RecordError(failure)
		span.SetStatus(codes.Error, kind)

		s.finish(actor, document, nil, false, kind)
		return dto.EvaluationResponse{}, failure
	}

	outcome := "completed"
	if cached {
		outcome = "cached"
	}
	observability.EvaluationOutcomes().WithLabelValues(outcome, "").Inc()
	span.SetAttributes(attribute.Bool("evaluation.cached", cached))
	span.SetStatus(codes.Ok, outcome)
	logger.Info().Bool("cache_hit", cached).Int("overall_score", evaluation.OverallScore).Msg("evaluation completed")

	document.Status = models.DocumentStatusCompleted
	s.finish(actor, document, &evaluation, cached, "")

	return evaluationResponse(evaluation, document.Filename), nil
}

// run executes the steps after the document was claimed. The returned evaluation is persisted.
func (s *evaluationService) run(ctx context.Context, document *models.Document, logger zerolog.Logger) (models.Evaluation, bool, error) {
	if strings.TrimSpace(document.StorageLocator) == "" {
		return models.Evaluation{}, false, newEvaluationError(ErrSourceUnavailable, errors.New("document has no storage locator"))
	}

	text, err := s.extractText(ctx, *document)
	if err != nil {
		return models.Evaluation{}, false, err
	}

	hash := s.fingerprint(ctx, document, text, logger)

	if hash != "" {
		if evaluation, ok := s.fromCache(ctx, *document, hash, logger); ok {
			if err := s.deps.Evaluations.ReplaceForDocument(ctx, &evaluation); err != nil {
				return models.Evaluation{}, false, err
			}
			return evaluation, true, nil
		}
	}

	input := text
	if s.cfg.EnableTruncation {
		input = truncateText(text, s.cfg.TruncationLimit)
	}

	isTestDocument, err := s.deps.AI.Classify(ctx, input)
	if err != nil {
		if !s.cfg.ClassifyFailOpen {
			return models.Evaluation{}, false, err
		}
		logger.Warn().Err(err).Msg("classifier unavailable, continuing with scoring")
		isTestDocument = true
	}
	if !isTestDocument {
		return models.Evaluation{}, false, newEvaluationError(ErrInvalidDocumentType, nil)
	}

	report, err := s.deps.AI.Score(ctx, input)
	if err != nil {
		return models.Evaluation{}, false, err
	}

	evaluation := s.fromReport(*document, report)
	if err := s.deps.Evaluations.ReplaceForDocument(ctx, &evaluation); err != nil {
		return models.Evaluation{}, false, err
	}
	return evaluation, false, nil
}

func (s *evaluationService) extractText(ctx context.Context, document models.Document) (string, error) {
	reader, err := s.deps.Storage.Fetch(ctx, document.StorageLocator)
	if err != nil {
		return "", newEvaluationError(ErrSourceUnavailable, err)
	}
	defer reader.Close()

	text, err := s.deps.Extractor.Extract(ctx, reader, document.MimeType)
	if err != nil {
		if errors.Is(err, extract.ErrUnsupportedFileType) {
			return "", newEvaluationError(ErrUnsupportedFileType, err)
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		return "", newEvaluationError(ErrSourceUnavailable, err)
	}
	return text, nil
}

// fingerprint hashes the untruncated text and stores it on the document. Failures only disable
// the cache for this run.
func (s *evaluationService) fingerprint(ctx context.Context, document *models.Document, text string, logger zerolog.Logger) string {
	hash, err := s.deps.Fingerprinter.Fingerprint(text)
	if err != nil {
		logger.Warn().Err(err).Msg("fingerprint failed")
		return ""
	}
	if err := s.deps.Documents.SetContentHash(ctx, document.ID, hash); err != nil {
		logger.Warn().Err(err).Msg("failed to persist content hash")
	} else {
		document.ContentHash = &hash
	}
	return hash
}

// fromCache clones the newest evaluation of the same user with identical content.
func (s *evaluationService) fromCache(ctx context.Context, document models.Document, hash string, logger zerolog.Logger) (models.Evaluation, bool) {
	source, err := s.deps.Evaluations.FindLatestByUserAndHash(ctx, document.UserID, hash)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn().Err(err).Msg("cache lookup failed")
		}
		return models.Evaluation{}, false
	}

	overall := source.OverallFeedback
	if !strings.HasSuffix(overall, cacheNote) {
		overall += cacheNote
	}

	return models.Evaluation{
		DocumentID:           document.ID,
		UserID:               document.UserID,
		CompletenessScore:    source.CompletenessScore,
		CompletenessFeedback: source.CompletenessFeedback,
		ClarityScore:         source.ClarityScore,
		ClarityFeedback:      source.ClarityFeedback,
		ConsistencyScore:     source.ConsistencyScore,
		ConsistencyFeedback:  source.ConsistencyFeedback,
		VerificationScore:    source.VerificationScore,
		VerificationFeedback: source.VerificationFeedback,
		OverallScore:         source.OverallScore,
		OverallFeedback:      overall,
		CreatedAt:            s.now().UTC(),
	}, true
}

func (s *evaluationService) fromReport(document models.Document, report ai.ScoreReport) models.Evaluation {
	return models.Evaluation{
		DocumentID:           document.ID,
		UserID:               document.UserID,
		CompletenessScore:    report.Completeness.Score,
		CompletenessFeedback: s.sanitize(report.Completeness.Feedback),
		ClarityScore:         report.Clarity.Score,
		ClarityFeedback:      s.sanitize(report.Clarity.Feedback),
		ConsistencyScore:     report.Consistency.Score,
		ConsistencyFeedback:  s.sanitize(report.Consistency.Feedback),
		VerificationScore:    report.Verification.Score,
		VerificationFeedback: s.sanitize(report.Verification.Feedback),
		OverallScore:         report.Overall.Score,
		OverallFeedback:      s.sanitize(report.Overall.Feedback),
		CreatedAt:            s.now().UTC(),
	}
}

func (s *evaluationService) sanitize(value string) string {
	return strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(value)))
}

// markFailed writes the terminal FAILED state even when the request context is already done.
func (s *evaluationService) markFailed(ctx context.Context, documentID uint, logger zerolog.Logger) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), terminalWriteTimeout)
	defer cancel()
	if err := s.deps.Documents.UpdateStatus(writeCtx, documentID, models.DocumentStatusFailed); err != nil {
		logger.Error().Err(err).Msg("failed to mark document as failed")
	}
}

func (s *evaluationService) finish(actor Actor, document models.Document, evaluation *models.Evaluation, cached bool, failureKind string) {
	status := models.DocumentStatusFailed
	metadata := map[string]interface{}{"status": status, "failure_kind": failureKind}
	var overall *int
	if evaluation != nil {
		status = models.DocumentStatusCompleted
		score := evaluation.OverallScore
		overall = &score
		metadata = map[string]interface{}{"status": status, "cached": cached, "overall_score": score}
	}

	if s.deps.Activity != nil {
		s.deps.Activity.RecordAsync(documentEntry(actor.ID, actor.Role, models.ActivityActionEvaluate, document.ID, metadata))
	}
	if s.deps.Notifier != nil {
		s.deps.Notifier.EvaluationFinished(EvaluationEvent{
			DocumentID:   document.ID,
			UserID:       document.UserID,
			Filename:     document.Filename,
			Status:       status,
			OverallScore: overall,
			Cached:       cached,
			FailureKind:  failureKind,
			OccurredAt:   s.now().UTC(),
		})
	}
}

func (s *evaluationService) GetByDocument(ctx context.Context, documentID, viewerID uint) (dto.EvaluationResponse, error) {
	document, err := s.deps.Documents.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EvaluationResponse{}, ErrDocumentNotFound
		}
		return dto.EvaluationResponse{}, err
	}
	if err := canView(ctx, s.deps.Classrooms, document, viewerID); err != nil {
		return dto.EvaluationResponse{}, err
	}

	evaluation, err := s.deps.Evaluations.FindByDocumentID(ctx, documentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EvaluationResponse{}, ErrEvaluationNotFound
		}
		return dto.EvaluationResponse{}, err
	}
	return evaluationResponse(evaluation, document.Filename), nil
}

func (s *evaluationService) ListForUser(ctx context.Context, userID uint) ([]dto.EvaluationResponse, error) {
	evaluations, err := s.deps.Evaluations.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	responses := make([]dto.EvaluationResponse, 0, len(evaluations))
	for _, evaluation := range evaluations {
		responses = append(responses, evaluationResponse(evaluation, ""))
	}
	return responses, nil
}

func evaluationResponse(evaluation models.Evaluation, filename string) dto.EvaluationResponse {
	response := dto.NewEvaluationResponse(evaluation, filename)
	response.Cached = strings.HasSuffix(evaluation.OverallFeedback, cacheNote)
	return response
}

// truncateText cuts text to limit runes and appends the truncation note.
func truncateText(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + truncationNote
}

// classifyFailure maps any pipeline error onto the failure taxonomy.
func classifyFailure(err error) *EvaluationError {
	var classified *EvaluationError
	if errors.As(err, &classified) {
		return classified
	}

	switch {
	case errors.Is(err, ai.ErrRateLimited):
		return newEvaluationError(ErrRateLimited, err)
	case errors.Is(err, ai.ErrResponseMalformed):
		return newEvaluationError(ErrAIResponseMalformed, err)
	case errors.Is(err, ai.ErrProcessingFailed):
		return newEvaluationError(ErrAIProcessingFailed, err)
	case errors.Is(err, context.DeadlineExceeded):
		return newEvaluationError(ErrAIProcessingFailed, err)
	case errors.Is(err, context.Canceled):
		return newEvaluationError(ErrEvaluationCancelled, err)
	default:
		return newEvaluationError(ErrEvaluationFailed, err)
	}
}

func failureKindLabel(kind error) string {
	switch {
	case errors.Is(kind, ErrInvalidDocumentType):
		return "invalid_document_type"
	case errors.Is(kind, ErrSourceUnavailable):
		return "source_unavailable"
	case errors.Is(kind, ErrUnsupportedFileType):
		return "unsupported_file_type"
	case errors.Is(kind, ErrRateLimited):
		return "rate_limited"
	case errors.Is(kind, ErrAIResponseMalformed):
		return "ai_response_malformed"
	case errors.Is(kind, ErrAIProcessingFailed):
		return "ai_processing_failed"
	case errors.Is(kind, ErrEvaluationCancelled):
		return "cancelled"
	default:
		return "unclassified"
	}
}
