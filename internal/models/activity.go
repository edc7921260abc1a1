package models

import (
	"time"

	"gorm.io/datatypes"
)

// Activity actions recorded for documents.
const (
	ActivityActionUpload   = "upload"
	ActivityActionSubmit   = "submit"
	ActivityActionDelete   = "delete"
	ActivityActionEvaluate = "evaluate"
	ActivityActionOverride = "override"
)

// ActivityEntityDocument is the entity type of document related entries.
const ActivityEntityDocument = "document"

// ActivityLog captures auditable events such as uploads, evaluations and overrides.
type ActivityLog struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	ActorID    uint              `gorm:"not null;index" json:"actor_id"`
	ActorRole  string            `gorm:"size:32;not null" json:"actor_role"`
	Action     string            `gorm:"size:64;not null;index" json:"action"`
	EntityType string            `gorm:"size:64;not null" json:"entity_type"`
	EntityID   *uint             `gorm:"index" json:"entity_id"`
	Metadata   datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt  time.Time         `json:"created_at"`
}
