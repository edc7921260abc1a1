package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	operationClassify = "classify"
	operationScore    = "score"
)

// DefaultTimeout bounds a single provider call.
const DefaultTimeout = 45 * time.Second

var (
	aiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "stde",
		Subsystem: "ai",
		Name:      "request_duration_seconds",
		Help:      "Duration of AI classify and score requests",
	}, []string{"operation", "model"})

	aiFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stde",
		Subsystem: "ai",
		Name:      "request_failures_total",
		Help:      "Number of failed AI classify and score requests",
	}, []string{"operation", "model"})
)

const classifySystemPrompt = "You review documents submitted for a software testing course. " +
	"Decide whether the document is a Software Testing Document such as a test plan, test case, test scenario, " +
	"test strategy or test script. Respond with ONLY \"YES\" if it is a Software Testing Document, or \"NO\"."

const scoreSystemPrompt = `You are a strict QA Auditor. Evaluate the software test document on 4 criteria.
You MUST return a valid JSON object. Do not add markdown blocks.

Use EXACTLY these keys:
{
    "completenessScore": (Integer 0-100),
    "completenessFeedback": (String),
    "clarityScore": (Integer 0-100),
    "clarityFeedback": (String),
    "consistencyScore": (Integer 0-100),
    "consistencyFeedback": (String),
    "verificationScore": (Integer 0-100),
    "verificationFeedback": (String),
    "overallScore": (Integer 0-100),
    "overallFeedback": (String)
}`

// OpenAIConfig defines configuration options for the OpenAI gateway.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
	Logger      zerolog.Logger
}

// OpenAIGateway classifies and scores documents through the chat completion API.
type OpenAIGateway struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIGateway builds a gateway using the provided configuration.
func NewOpenAIGateway(cfg OpenAIConfig) (*OpenAIGateway, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	return &OpenAIGateway{
		client: openai.NewClientWithConfig(config),
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/stde-go-api/pkg/ai/openai"),
		logger: cfg.Logger.With().Str("component", "openai_gateway").Logger(),
	}, nil
}

// Classify asks the model whether text is a software-test artefact. Only an exact,
// case-insensitive "YES" counts as true. Provider failures are returned classified.
func (g *OpenAIGateway) Classify(parent context.Context, text string) (bool, error) {
	reply, err := g.complete(parent, operationClassify, openai.ChatCompletionRequest{
		Model:       g.cfg.Model,
		MaxTokens:   8,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: classifySystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return false, err
	}
	return strings.EqualFold(strings.TrimSpace(reply), "YES"), nil
}

// Score requests the four-criterion report and parses it against the score report schema.
func (g *OpenAIGateway) Score(parent context.Context, text string) (ScoreReport, error) {
	reply, err := g.complete(parent, operationScore, openai.ChatCompletionRequest{
		Model:       g.cfg.Model,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: scoreSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: "Document Content:\n" + text},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return ScoreReport{}, err
	}

	report, err := ParseScoreReport(reply)
	if err != nil {
		aiFailures.WithLabelValues(operationScore, g.cfg.Model).Inc()
		g.logger.Warn().Err(err).Msg("score reply rejected")
		return ScoreReport{}, err
	}
	return report, nil
}

func (g *OpenAIGateway) complete(parent context.Context, operation string, request openai.ChatCompletionRequest) (string, error) {
	ctx, span := g.tracer.Start(parent, "openai."+operation, trace.WithAttributes(
		attribute.String("model", g.cfg.Model),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, request)
	aiDuration.WithLabelValues(operation, g.cfg.Model).Observe(time.Since(start).Seconds())
	if err == nil && len(resp.Choices) == 0 {
		err = errors.New("no choices returned from openai")
	}
	if err != nil {
		classified := ClassifyError(err)
		aiFailures.WithLabelValues(operation, g.cfg.Model).Inc()
		span.RecordError(classified)
		span.SetStatus(codes.Error, classified.Error())
		g.logger.Warn().Err(classified).Str("operation", operation).Msg("openai request failed")
		return "", classified
	}

	return resp.Choices[0].Message.Content, nil
}
