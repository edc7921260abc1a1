package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/stde-go-api/internal/models"
	"github.com/noah-isme/stde-go-api/internal/repository"
	"github.com/noah-isme/stde-go-api/pkg/mailer"
)

const (
	evaluationSubjectPrefix = "stde.evaluations"
	notifyTimeout           = 10 * time.Second
)

// EvaluationEvent describes a terminal evaluation outcome.
type EvaluationEvent struct {
	DocumentID   uint      `json:"documentId"`
	UserID       uint      `json:"userId"`
	Filename     string    `json:"filename"`
	Status       string    `json:"status"`
	OverallScore *int      `json:"overallScore,omitempty"`
	Cached       bool      `json:"cached"`
	Overridden   bool      `json:"overridden"`
	FailureKind  string    `json:"failureKind,omitempty"`
	OccurredAt   time.Time `json:"occurredAt"`
}

// Notifier fans evaluation outcomes out to subscribers and document owners.
type Notifier interface {
	EvaluationFinished(event EvaluationEvent)
}

type eventPublisher interface {
	Publish(subject string, data []byte) error
}

type evaluationNotifier struct {
	publisher eventPublisher
	mailer    mailer.Mailer
	users     repository.UserRepository
	logger    zerolog.Logger
}

// NewEvaluationNotifier publishes events on NATS (when conn is set) and mails the document owner
// on completion (when mail is set).
func NewEvaluationNotifier(conn *nats.Conn, mail mailer.Mailer, users repository.UserRepository, logger zerolog.Logger) Notifier {
	n := &evaluationNotifier{
		mailer: mail,
		users:  users,
		logger: logger.With().Str("component", "evaluation_notifier").Logger(),
	}
	if conn != nil {
		n.publisher = conn
	}
	return n
}

func (n *evaluationNotifier) EvaluationFinished(event EvaluationEvent) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		n.notify(ctx, event)
	}()
}

func (n *evaluationNotifier) notify(ctx context.Context, event EvaluationEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	if n.publisher != nil {
		if err := n.publish(event); err != nil {
			n.logger.Warn().Err(err).Uint("document_id", event.DocumentID).Msg("failed to publish evaluation event")
		}
	}

	if n.mailer == nil || n.users == nil || event.Status != models.DocumentStatusCompleted {
		return
	}
	if err := n.mail(ctx, event); err != nil {
		n.logger.Warn().Err(err).Uint("document_id", event.DocumentID).Msg("failed to send evaluation email")
	}
}

func (n *evaluationNotifier) publish(event EvaluationEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	subject := evaluationSubjectPrefix + "." + strings.ToLower(event.Status)
	return n.publisher.Publish(subject, payload)
}

func (n *evaluationNotifier) mail(ctx context.Context, event EvaluationEvent) error {
	owner, err := n.users.GetByID(ctx, event.UserID)
	if err != nil {
		return fmt.Errorf("load document owner: %w", err)
	}

	score := "n/a"
	if event.OverallScore != nil {
		score = fmt.Sprintf("%d/100", *event.OverallScore)
	}
	subject := "Your evaluation is ready"
	if event.Overridden {
		subject = "Your score was updated by your teacher"
	}

	body := fmt.Sprintf("Hello %s,\n\nThe evaluation of %q is complete. Overall score: %s.\n", owner.DisplayName(), event.Filename, score)
	return n.mailer.Send(ctx, mailer.Message{
		ToName:    owner.DisplayName(),
		ToAddress: owner.Email,
		Subject:   subject,
		Text:      body,
	})
}
