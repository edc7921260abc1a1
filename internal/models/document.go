package models

import "time"

// Document lifecycle states.
const (
	DocumentStatusUploaded   = "UPLOADED"
	DocumentStatusProcessing = "PROCESSING"
	DocumentStatusCompleted  = "COMPLETED"
	DocumentStatusFailed     = "FAILED"
)

// Document is an uploaded software-test artefact awaiting or holding an evaluation.
type Document struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uint      `gorm:"not null;index" json:"user_id"`
	ClassroomID    *uint     `gorm:"index" json:"classroom_id"`
	Filename       string    `gorm:"size:255;not null" json:"filename"`
	MimeType       string    `gorm:"size:128" json:"mime_type"`
	SizeBytes      int64     `gorm:"not null;default:0" json:"size_bytes"`
	StorageLocator string    `gorm:"size:1024" json:"storage_locator"`
	ContentHash    *string   `gorm:"size:64;index" json:"content_hash"`
	IsSubmitted    bool      `gorm:"not null;default:false" json:"is_submitted"`
	Status         string    `gorm:"size:32;not null;default:UPLOADED;index" json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IsTerminal reports whether the document is in a re-attemptable resting state.
func (d Document) IsTerminal() bool {
	return d.Status == DocumentStatusCompleted || d.Status == DocumentStatusFailed
}
