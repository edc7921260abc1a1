package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/noah-isme/stde-go-api/internal/dto"
	"github.com/noah-isme/stde-go-api/internal/models"
	"github.com/noah-isme/stde-go-api/internal/repository"
)

const (
	activityWriteTimeout    = 5 * time.Second
	defaultActivityPageSize = 20
)

// ActivityEntry captures the details required to persist an audit entry.
type ActivityEntry struct {
	ActorID    uint
	ActorRole  string
	Action     string
	EntityType string
	EntityID   *uint
	Metadata   map[string]interface{}
}

// ActivityRecorder records audit entries without blocking the caller.
type ActivityRecorder interface {
	RecordAsync(entry ActivityEntry)
}

// ActivityService persists and lists audit entries.
type ActivityService interface {
	ActivityRecorder
	Record(ctx context.Context, entry ActivityEntry) (dto.ActivityResponse, error)
	ListForActor(ctx context.Context, actorID uint, req dto.ActivityListRequest) (dto.ActivityListResponse, error)
}

type activityService struct {
	repo      repository.ActivityLogRepository
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewActivityService constructs the activity log service.
func NewActivityService(repo repository.ActivityLogRepository, validator *validator.Validate, logger zerolog.Logger) ActivityService {
	return &activityService{
		repo:      repo,
		validator: validator,
		logger:    logger.With().Str("component", "activity_service").Logger(),
	}
}

// RecordAsync writes the entry on its own goroutine and timeout; failures are only logged.
func (s *activityService) RecordAsync(entry ActivityEntry) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), activityWriteTimeout)
		defer cancel()
		if _, err := s.Record(ctx, entry); err != nil {
			s.logger.Warn().Err(err).Str("action", entry.Action).Msg("activity entry dropped")
		}
	}()
}

func (s *activityService) Record(ctx context.Context, entry ActivityEntry) (dto.ActivityResponse, error) {
	if strings.TrimSpace(entry.Action) == "" {
		return dto.ActivityResponse{}, fmt.Errorf("action is required")
	}
	if strings.TrimSpace(entry.EntityType) == "" {
		return dto.ActivityResponse{}, fmt.Errorf("entity type is required")
	}

	model := models.ActivityLog{
		ActorID:    entry.ActorID,
		ActorRole:  normalizeRole(entry.ActorRole),
		Action:     strings.ToLower(strings.TrimSpace(entry.Action)),
		EntityType: strings.ToLower(strings.TrimSpace(entry.EntityType)),
		EntityID:   entry.EntityID,
		Metadata:   sanitizeMetadata(entry.Metadata),
	}

	if err := s.repo.Create(ctx, &model); err != nil {
		return dto.ActivityResponse{}, err
	}

	return dto.NewActivityResponse(model), nil
}

func (s *activityService) ListForActor(ctx context.Context, actorID uint, req dto.ActivityListRequest) (dto.ActivityListResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ActivityListResponse{}, err
	}

	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = defaultActivityPageSize
	}

	filter := repository.ActivityLogFilter{
		Page:     req.Page,
		PageSize: req.PageSize,
		ActorID:  &actorID,
		Action:   strings.TrimSpace(req.Action),
	}
	if req.DocumentID > 0 {
		filter.DocumentID = &req.DocumentID
	}

	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.ActivityListResponse{}, err
	}

	items := make([]dto.ActivityResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.NewActivityResponse(entry))
	}

	pagination := dto.PaginationMeta{
		Page:       req.Page,
		PageSize:   req.PageSize,
		TotalItems: total,
		TotalPages: maxInt(int(math.Ceil(float64(total)/float64(req.PageSize))), 1),
	}

	return dto.ActivityListResponse{Items: items, Pagination: pagination}, nil
}

func sanitizeMetadata(metadata map[string]interface{}) datatypes.JSONMap {
	sanitized := datatypes.JSONMap{}
	for key, value := range metadata {
		lower := strings.ToLower(key)
		if strings.Contains(lower, "email") || strings.Contains(lower, "token") {
			sanitized[key] = "***"
			continue
		}
		sanitized[key] = value
	}
	return sanitized
}

func normalizeRole(role string) string {
	r := strings.ToLower(strings.TrimSpace(role))
	if r == "" {
		return "system"
	}
	return r
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func documentEntry(actorID uint, role, action string, documentID uint, metadata map[string]interface{}) ActivityEntry {
	id := documentID
	return ActivityEntry{
		ActorID:    actorID,
		ActorRole:  role,
		Action:     action,
		EntityType: models.ActivityEntityDocument,
		EntityID:   &id,
		Metadata:   metadata,
	}
}
