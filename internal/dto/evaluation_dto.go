package dto

import (
	"time"

	"github.com/noah-isme/stde-go-api/internal/models"
)

// OverrideRequest is the payload of a manual score override. The range is checked by the
// override service so that out-of-range values surface as invalid scores.
type OverrideRequest struct {
	OverallScore *int `json:"overallScore" validate:"required"`
}

// EvaluationResponse describes an evaluation report to API consumers.
type EvaluationResponse struct {
	ID                   uint      `json:"id"`
	DocumentID           uint      `json:"documentId"`
	UserID               uint      `json:"userId"`
	Filename             string    `json:"filename"`
	CompletenessScore    int       `json:"completenessScore"`
	CompletenessFeedback string    `json:"completenessFeedback"`
	ClarityScore         int       `json:"clarityScore"`
	ClarityFeedback      string    `json:"clarityFeedback"`
	ConsistencyScore     int       `json:"consistencyScore"`
	ConsistencyFeedback  string    `json:"consistencyFeedback"`
	VerificationScore    int       `json:"verificationScore"`
	VerificationFeedback string    `json:"verificationFeedback"`
	OverallScore         int       `json:"overallScore"`
	OverallFeedback      string    `json:"overallFeedback"`
	Cached               bool      `json:"cached"`
	CreatedAt            time.Time `json:"createdAt"`
}

// NewEvaluationResponse converts an evaluation model into a DTO.
func NewEvaluationResponse(evaluation models.Evaluation, filename string) EvaluationResponse {
	if filename == "" {
		filename = evaluation.Document.Filename
	}
	return EvaluationResponse{
		ID:                   evaluation.ID,
		DocumentID:           evaluation.DocumentID,
		UserID:               evaluation.UserID,
		Filename:             filename,
		CompletenessScore:    evaluation.CompletenessScore,
		CompletenessFeedback: evaluation.CompletenessFeedback,
		ClarityScore:         evaluation.ClarityScore,
		ClarityFeedback:      evaluation.ClarityFeedback,
		ConsistencyScore:     evaluation.ConsistencyScore,
		ConsistencyFeedback:  evaluation.ConsistencyFeedback,
		VerificationScore:    evaluation.VerificationScore,
		VerificationFeedback: evaluation.VerificationFeedback,
		OverallScore:         evaluation.OverallScore,
		OverallFeedback:      evaluation.OverallFeedback,
		CreatedAt:            evaluation.CreatedAt,
	}
}

// NewEvaluationResponseSlice converts evaluations that carry their preloaded document.
func NewEvaluationResponseSlice(evaluations []models.Evaluation) []EvaluationResponse {
	responses := make([]EvaluationResponse, 0, len(evaluations))
	for _, evaluation := range evaluations {
		responses = append(responses, NewEvaluationResponse(evaluation, ""))
	}
	return responses
}

// UsageResponse reports the caller's position inside the hourly evaluation window.
type UsageResponse struct {
	Used           int   `json:"used"`
	Limit          int   `json:"limit"`
	Remaining      int   `json:"remaining"`
	ResetInSeconds int64 `json:"resetInSeconds"`
}
