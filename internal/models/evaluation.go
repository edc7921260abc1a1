package models

import "time"

// Evaluation is the four-criterion report attached to a document. A document holds at most
// one evaluation; re-evaluation replaces the row.
type Evaluation struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	DocumentID           uint      `gorm:"not null;uniqueIndex" json:"document_id"`
	UserID               uint      `gorm:"not null;index" json:"user_id"`
	CompletenessScore    int       `gorm:"not null" json:"completeness_score"`
	CompletenessFeedback string    `gorm:"type:text" json:"completeness_feedback"`
	ClarityScore         int       `gorm:"not null" json:"clarity_score"`
	ClarityFeedback      string    `gorm:"type:text" json:"clarity_feedback"`
	ConsistencyScore     int       `gorm:"not null" json:"consistency_score"`
	ConsistencyFeedback  string    `gorm:"type:text" json:"consistency_feedback"`
	VerificationScore    int       `gorm:"not null" json:"verification_score"`
	VerificationFeedback string    `gorm:"type:text" json:"verification_feedback"`
	OverallScore         int       `gorm:"not null" json:"overall_score"`
	OverallFeedback      string    `gorm:"type:text" json:"overall_feedback"`
	CreatedAt            time.Time `json:"created_at"`
	Document             Document  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
