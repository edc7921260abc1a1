package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesEvaluationDefaults(t *testing.T) {
	t.Setenv("STDE_JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 30, cfg.Evaluation.HourlyLimit)
	require.Equal(t, 15000, cfg.Evaluation.TruncationLimit)
	require.False(t, cfg.Evaluation.EnableTruncation)
	require.True(t, cfg.Evaluation.ClassifyFailOpen)
	require.Equal(t, 45*time.Second, cfg.Evaluation.AITimeout)
	require.Equal(t, 2*time.Minute, cfg.Evaluation.ProcessingStaleAfter)
	require.Equal(t, StorageDriverLocal, cfg.StorageDriver)
	require.Equal(t, QuotaBackendDatabase, cfg.QuotaBackend)
	require.Equal(t, ":8080", cfg.HTTPAddress())
}

func TestLoadReadsEvaluationOverrides(t *testing.T) {
	t.Setenv("STDE_JWT_SECRET", "secret")
	t.Setenv("STDE_EVALUATION_HOURLY_LIMIT", "5")
	t.Setenv("STDE_EVALUATION_ENABLE_TRUNCATION", "true")
	t.Setenv("STDE_EVALUATION_CLASSIFY_FAIL_OPEN", "false")
	t.Setenv("STDE_EVALUATION_AI_TIMEOUT", "10s")
	t.Setenv("STDE_QUOTA_BACKEND", "redis")
	t.Setenv("STDE_HTTP_CORS_ORIGINS", "https://a.example.com, https://b.example.com,")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 5, cfg.Evaluation.HourlyLimit)
	require.True(t, cfg.Evaluation.EnableTruncation)
	require.False(t, cfg.Evaluation.ClassifyFailOpen)
	require.Equal(t, 10*time.Second, cfg.Evaluation.AITimeout)
	require.Equal(t, 50*time.Second, cfg.Evaluation.ProcessingStaleAfter)
	require.Equal(t, QuotaBackendRedis, cfg.QuotaBackend)
	require.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSOrigins)
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("STDE_JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsUnknownStorageDriver(t *testing.T) {
	t.Setenv("STDE_JWT_SECRET", "secret")
	t.Setenv("STDE_STORAGE_DRIVER", "ftp")

	_, err := Load()
	require.Error(t, err)
}
