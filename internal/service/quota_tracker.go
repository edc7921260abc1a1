package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/stde-go-api/internal/dto"
	"github.com/noah-isme/stde-go-api/internal/models"
	"github.com/noah-isme/stde-go-api/internal/observability"
	"github.com/noah-isme/stde-go-api/internal/repository"
)

const (
	// DefaultHourlyLimit is the number of evaluation attempts allowed per window.
	DefaultHourlyLimit = 30
	quotaWindow        = time.Hour
)

// UsageStore persists per-user usage windows.
type UsageStore interface {
	GetUsage(ctx context.Context, userID uint) (models.UsageWindow, error)
	UpdateUsage(ctx context.Context, userID uint, mutate repository.UsageMutation) (models.UsageWindow, error)
}

// QuotaTracker is the admission gate in front of every evaluation attempt.
type QuotaTracker interface {
	CheckAndConsume(ctx context.Context, userID uint) error
	UsageStats(ctx context.Context, userID uint) (dto.UsageResponse, error)
}

type quotaTracker struct {
	store  UsageStore
	limit  int
	now    func() time.Time
	logger zerolog.Logger
}

// NewQuotaTracker constructs a tracker enforcing limit attempts per hour.
func NewQuotaTracker(store UsageStore, limit int, logger zerolog.Logger) QuotaTracker {
	if limit <= 0 {
		limit = DefaultHourlyLimit
	}
	return &quotaTracker{
		store:  store,
		limit:  limit,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.With().Str("component", "quota_tracker").Logger(),
	}
}

// CheckAndConsume counts one attempt or fails with *QuotaExceededError. The stored window is
// only written when the attempt is admitted.
func (q *quotaTracker) CheckAndConsume(ctx context.Context, userID uint) error {
	now := q.now()

	_, err := q.store.UpdateUsage(ctx, userID, func(current models.UsageWindow) (models.UsageWindow, error) {
		window := applyWindow(current, now)
		if window.Count >= q.limit {
			remaining := resetIn(window, now)
			return current, &QuotaExceededError{
				Limit:            q.limit,
				MinutesRemaining: int(remaining / time.Minute),
				SecondsRemaining: int64(remaining / time.Second),
			}
		}
		window.Count++
		return window, nil
	})
	if err != nil {
		if errors.Is(err, ErrQuotaExceeded) {
			observability.QuotaRejections().Inc()
			q.logger.Info().Uint("user_id", userID).Msg("evaluation quota exhausted")
			return err
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}

func (q *quotaTracker) UsageStats(ctx context.Context, userID uint) (dto.UsageResponse, error) {
	stored, err := q.store.GetUsage(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UsageResponse{}, ErrUserNotFound
		}
		return dto.UsageResponse{}, err
	}

	now := q.now()
	window := applyWindow(stored, now)
	remaining := q.limit - window.Count
	if remaining < 0 {
		remaining = 0
	}

	return dto.UsageResponse{
		Used:           window.Count,
		Limit:          q.limit,
		Remaining:      remaining,
		ResetInSeconds: int64(resetIn(window, now) / time.Second),
	}, nil
}

// applyWindow starts a fresh window when none exists or the stored one is more than an hour old.
func applyWindow(window models.UsageWindow, now time.Time) models.UsageWindow {
	if window.WindowStart == nil || now.Sub(*window.WindowStart) > quotaWindow {
		start := now
		return models.UsageWindow{WindowStart: &start, Count: 0}
	}
	if window.Count < 0 {
		window.Count = 0
	}
	return window
}

func resetIn(window models.UsageWindow, now time.Time) time.Duration {
	if window.WindowStart == nil {
		return quotaWindow
	}
	remaining := window.WindowStart.Add(quotaWindow).Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}
