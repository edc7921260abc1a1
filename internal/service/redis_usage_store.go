package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/stde-go-api/internal/models"
	"github.com/noah-isme/stde-go-api/internal/repository"
)

const (
	usageKeyPrefix     = "stde:usage:"
	usageKeyTTL        = 2 * time.Hour
	usageFieldStart    = "window_start"
	usageFieldCount    = "count"
	usageUpdateRetries = 5
)

// ErrUsageContention indicates the optimistic update kept losing to concurrent writers.
var ErrUsageContention = errors.New("usage window update contention")

// RedisUsageStore keeps usage windows in a redis hash per user, updated optimistically with
// WATCH/MULTI.
type RedisUsageStore struct {
	client *redis.Client
}

// NewRedisUsageStore constructs a redis backed usage store.
func NewRedisUsageStore(client *redis.Client) *RedisUsageStore {
	return &RedisUsageStore{client: client}
}

func (s *RedisUsageStore) GetUsage(ctx context.Context, userID uint) (models.UsageWindow, error) {
	values, err := s.client.HGetAll(ctx, usageKey(userID)).Result()
	if err != nil {
		return models.UsageWindow{}, err
	}
	return decodeUsage(values)
}

func (s *RedisUsageStore) UpdateUsage(ctx context.Context, userID uint, mutate repository.UsageMutation) (models.UsageWindow, error) {
	key := usageKey(userID)
	var updated models.UsageWindow

	txn := func(tx *redis.Tx) error {
		values, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		current, err := decodeUsage(values)
		if err != nil {
			return err
		}

		next, err := mutate(current)
		if err != nil {
			return err
		}

		fields := map[string]interface{}{usageFieldCount: next.Count}
		if next.WindowStart != nil {
			fields[usageFieldStart] = next.WindowStart.UTC().UnixNano()
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fields)
			pipe.Expire(ctx, key, usageKeyTTL)
			return nil
		})
		if err != nil {
			return err
		}
		updated = next
		return nil
	}

	for attempt := 0; attempt < usageUpdateRetries; attempt++ {
		err := s.client.Watch(ctx, txn, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return models.UsageWindow{}, err
		}
		return updated, nil
	}
	return models.UsageWindow{}, ErrUsageContention
}

func usageKey(userID uint) string {
	return usageKeyPrefix + strconv.FormatUint(uint64(userID), 10)
}

func decodeUsage(values map[string]string) (models.UsageWindow, error) {
	var window models.UsageWindow
	if raw, ok := values[usageFieldStart]; ok && raw != "" {
		nanos, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return models.UsageWindow{}, fmt.Errorf("decode usage window start: %w", err)
		}
		start := time.Unix(0, nanos).UTC()
		window.WindowStart = &start
	}
	if raw, ok := values[usageFieldCount]; ok && raw != "" {
		count, err := strconv.Atoi(raw)
		if err != nil {
			return models.UsageWindow{}, fmt.Errorf("decode usage count: %w", err)
		}
		window.Count = count
	}
	return window, nil
}
