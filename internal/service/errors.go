package service

import (
	"errors"
	"fmt"
)

// Failure kinds surfaced by the document and evaluation services.
var (
	ErrUnauthorized             = errors.New("not authorized to access this resource")
	ErrQuotaExceeded            = errors.New("evaluation quota exceeded")
	ErrInvalidDocumentType      = errors.New("the uploaded document is not a software testing document")
	ErrInvalidScore             = errors.New("score must be between 0 and 100")
	ErrSourceUnavailable        = errors.New("document content is unavailable")
	ErrUnsupportedFileType      = errors.New("unsupported file type")
	ErrRateLimited              = errors.New("AI is busy, please wait 30 seconds")
	ErrAIResponseMalformed      = errors.New("AI returned an incomplete evaluation")
	ErrAIProcessingFailed       = errors.New("AI evaluation failed")
	ErrEvaluationFailed         = errors.New("evaluation failed")
	ErrEvaluationCancelled      = errors.New("evaluation was cancelled")
	ErrDocumentNotFound         = errors.New("document not found")
	ErrEvaluationNotFound       = errors.New("evaluation not found")
	ErrClassroomNotFound        = errors.New("classroom not found")
	ErrUserNotFound             = errors.New("user not found")
	ErrDocumentBusy             = errors.New("document is already being evaluated")
	ErrDocumentAlreadySubmitted = errors.New("document already submitted")
	ErrDocumentImmutable        = errors.New("submitted documents cannot be deleted")
	ErrUploadTooLarge           = errors.New("file exceeds maximum allowed size")
	ErrUploadEmpty              = errors.New("file is empty")
)

// EvaluationError is a classified pipeline failure. Kind is one of the sentinel errors above and
// Cause keeps the underlying error for logging.
type EvaluationError struct {
	Kind    error
	Message string
	Cause   error
}

func newEvaluationError(kind error, cause error) *EvaluationError {
	return &EvaluationError{Kind: kind, Message: kind.Error(), Cause: cause}
}

func (e *EvaluationError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *EvaluationError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// QuotaExceededError reports a rejected attempt and the wait until the window resets.
type QuotaExceededError struct {
	Limit            int
	MinutesRemaining int
	SecondsRemaining int64
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("You have used all %d analysis attempts for this hour. Resets in %d minutes.", e.Limit, e.MinutesRemaining)
}

func (e *QuotaExceededError) Is(target error) bool {
	return target == ErrQuotaExceeded
}
