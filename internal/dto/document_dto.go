package dto

import (
	"time"

	"github.com/noah-isme/stde-go-api/internal/models"
)

// DocumentResponse describes an uploaded document.
type DocumentResponse struct {
	ID           uint      `json:"id"`
	UserID       uint      `json:"userId"`
	ClassroomID  *uint     `json:"classroomId,omitempty"`
	Filename     string    `json:"filename"`
	MimeType     string    `json:"mimeType"`
	SizeBytes    int64     `json:"sizeBytes"`
	IsSubmitted  bool      `json:"isSubmitted"`
	Status       string    `json:"status"`
	OverallScore *int      `json:"overallScore,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// NewDocumentResponse converts a document and its optional evaluation into a DTO. The score is
// only exposed once the document is COMPLETED.
func NewDocumentResponse(document models.Document, evaluation *models.Evaluation) DocumentResponse {
	response := DocumentResponse{
		ID:          document.ID,
		UserID:      document.UserID,
		ClassroomID: document.ClassroomID,
		Filename:    document.Filename,
		MimeType:    document.MimeType,
		SizeBytes:   document.SizeBytes,
		IsSubmitted: document.IsSubmitted,
		Status:      document.Status,
		CreatedAt:   document.CreatedAt,
	}
	if evaluation != nil && document.Status == models.DocumentStatusCompleted {
		score := evaluation.OverallScore
		response.OverallScore = &score
	}
	return response
}

// ClassroomRequest creates a classroom.
type ClassroomRequest struct {
	Name string `json:"name" validate:"required,min=1,max=255"`
}

// ClassroomResponse describes a classroom.
type ClassroomResponse struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	TeacherID uint      `json:"teacherId"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewClassroomResponse converts a classroom model into a DTO.
func NewClassroomResponse(classroom models.Classroom) ClassroomResponse {
	return ClassroomResponse{
		ID:        classroom.ID,
		Name:      classroom.Name,
		TeacherID: classroom.TeacherID,
		CreatedAt: classroom.CreatedAt,
	}
}
