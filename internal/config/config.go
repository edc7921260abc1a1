package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage drivers understood by the API.
const (
	StorageDriverLocal      = "local"
	StorageDriverCloudinary = "cloudinary"
)

// Quota backends understood by the API.
const (
	QuotaBackendDatabase = "database"
	QuotaBackendRedis    = "redis"
)

const processingStaleMargin = 30 * time.Second

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	JWTSecret              string
	StorageDriver          string
	StorageLocalRoot       string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	UploadMaxSizeMB        int
	HTTPRateLimitPerMinute int
	CORSOrigins            []string
	QuotaBackend           string
	Evaluation             EvaluationConfig
	AIModel                string
	OpenAIAPIKey           string
	OpenAIBaseURL          string
	SendGridAPIKey         string
	MailFrom               string
	RollbarToken           string
}

// EvaluationConfig groups the knobs of the evaluation pipeline.
type EvaluationConfig struct {
	HourlyLimit      int
	EnableTruncation bool
	TruncationLimit  int
	ClassifyFailOpen bool
	AITimeout        time.Duration

	// ProcessingStaleAfter is how long a PROCESSING claim is honoured before another run may take it.
	ProcessingStaleAfter time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("STDE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "STDE API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("storage.driver", StorageDriverLocal)
	v.SetDefault("storage.local_root", "./data/uploads")
	v.SetDefault("cloudinary.folder", "stde/documents")
	v.SetDefault("upload.max_size_mb", 10)
	v.SetDefault("http.rate_limit_per_minute", 20)
	v.SetDefault("quota.backend", QuotaBackendDatabase)
	v.SetDefault("evaluation.hourly_limit", 30)
	v.SetDefault("evaluation.enable_truncation", false)
	v.SetDefault("evaluation.truncation_limit", 15000)
	v.SetDefault("evaluation.classify_fail_open", true)
	v.SetDefault("evaluation.ai_timeout", "45s")
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("mail.from", "no-reply@stde.local")

	timeout, err := time.ParseDuration(v.GetString("evaluation.ai_timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid evaluation ai timeout: %w", err)
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		JWTSecret:              v.GetString("jwt.secret"),
		StorageDriver:          strings.ToLower(v.GetString("storage.driver")),
		StorageLocalRoot:       v.GetString("storage.local_root"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		UploadMaxSizeMB:        v.GetInt("upload.max_size_mb"),
		HTTPRateLimitPerMinute: v.GetInt("http.rate_limit_per_minute"),
		CORSOrigins:            splitList(v.GetString("http.cors_origins")),
		QuotaBackend:           strings.ToLower(v.GetString("quota.backend")),
		Evaluation: EvaluationConfig{
			HourlyLimit:      v.GetInt("evaluation.hourly_limit"),
			EnableTruncation: v.GetBool("evaluation.enable_truncation"),
			TruncationLimit:  v.GetInt("evaluation.truncation_limit"),
			ClassifyFailOpen: v.GetBool("evaluation.classify_fail_open"),
			AITimeout:        timeout,
		},
		AIModel:        v.GetString("ai.model"),
		OpenAIAPIKey:   v.GetString("openai_api_key"),
		OpenAIBaseURL:  v.GetString("openai_base_url"),
		SendGridAPIKey: v.GetString("sendgrid.api_key"),
		MailFrom:       v.GetString("mail.from"),
		RollbarToken:   v.GetString("rollbar.token"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	switch cfg.StorageDriver {
	case StorageDriverLocal, StorageDriverCloudinary:
	default:
		return Config{}, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}

	switch cfg.QuotaBackend {
	case QuotaBackendDatabase, QuotaBackendRedis:
	default:
		return Config{}, fmt.Errorf("unsupported quota backend %q", cfg.QuotaBackend)
	}

	if cfg.Evaluation.HourlyLimit <= 0 {
		cfg.Evaluation.HourlyLimit = 30
	}

	if cfg.Evaluation.TruncationLimit <= 0 {
		cfg.Evaluation.TruncationLimit = 15000
	}

	if cfg.Evaluation.AITimeout <= 0 {
		cfg.Evaluation.AITimeout = 45 * time.Second
	}
	// A run makes two model calls; the margin covers extraction and persistence.
	cfg.Evaluation.ProcessingStaleAfter = 2*cfg.Evaluation.AITimeout + processingStaleMargin

	if cfg.UploadMaxSizeMB <= 0 {
		cfg.UploadMaxSizeMB = 10
	}

	return cfg, nil
}

func splitList(raw string) []string {
	var items []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
