package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/stde-go-api/internal/models"
	"github.com/noah-isme/stde-go-api/internal/repository"
	"github.com/noah-isme/stde-go-api/pkg/mailer"
)

type publishedMessage struct {
	subject string
	data    []byte
}

type publisherStub struct {
	messages []publishedMessage
	err      error
}

func (p *publisherStub) Publish(subject string, data []byte) error {
	p.messages = append(p.messages, publishedMessage{subject: subject, data: data})
	return p.err
}

type mailerStub struct {
	sent []mailer.Message
}

func (m *mailerStub) Send(ctx context.Context, msg mailer.Message) error {
	m.sent = append(m.sent, msg)
	return nil
}

func newNotifierFixture(t *testing.T) (*evaluationNotifier, *publisherStub, *mailerStub, models.User) {
	t.Helper()
	db := newServiceTestDB(t)
	users := repository.NewUserRepository(db)
	owner := models.User{Email: "owner@example.com", FirstName: "Olive", LastName: "Owner", Role: models.UserRoleStudent}
	require.NoError(t, users.Create(context.Background(), &owner))

	publisher := &publisherStub{}
	mail := &mailerStub{}
	notifier := &evaluationNotifier{
		publisher: publisher,
		mailer:    mail,
		users:     users,
		logger:    zerolog.Nop(),
	}
	return notifier, publisher, mail, owner
}

func TestNotifierPublishesAndMailsOnCompletion(t *testing.T) {
	notifier, publisher, mail, owner := newNotifierFixture(t)
	score := 82

	notifier.notify(context.Background(), EvaluationEvent{
		DocumentID:   4,
		UserID:       owner.ID,
		Filename:     "plan.pdf",
		Status:       models.DocumentStatusCompleted,
		OverallScore: &score,
		OccurredAt:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	})

	require.Len(t, publisher.messages, 1)
	require.Equal(t, "stde.evaluations.completed", publisher.messages[0].subject)
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(publisher.messages[0].data, &payload))
	require.EqualValues(t, 82, payload["overallScore"])
	require.EqualValues(t, 4, payload["documentId"])

	require.Len(t, mail.sent, 1)
	require.Equal(t, owner.Email, mail.sent[0].ToAddress)
	require.Equal(t, "Olive Owner", mail.sent[0].ToName)
	require.Contains(t, mail.sent[0].Text, "82/100")
}

func TestNotifierSkipsMailOnFailure(t *testing.T) {
	notifier, publisher, mail, owner := newNotifierFixture(t)
	publisher.err = errors.New("nats down")

	notifier.notify(context.Background(), EvaluationEvent{
		DocumentID:  4,
		UserID:      owner.ID,
		Status:      models.DocumentStatusFailed,
		FailureKind: "rate_limited",
	})

	require.Len(t, publisher.messages, 1)
	require.Equal(t, "stde.evaluations.failed", publisher.messages[0].subject)
	require.Empty(t, mail.sent)
}

func TestNotifierOverrideSubject(t *testing.T) {
	notifier, _, mail, owner := newNotifierFixture(t)
	score := 100

	notifier.notify(context.Background(), EvaluationEvent{
		UserID:       owner.ID,
		Status:       models.DocumentStatusCompleted,
		OverallScore: &score,
		Overridden:   true,
	})

	require.Len(t, mail.sent, 1)
	require.Contains(t, mail.sent[0].Subject, "updated by your teacher")
}

func TestNewEvaluationNotifierWithoutConnection(t *testing.T) {
	notifier := NewEvaluationNotifier(nil, nil, nil, zerolog.Nop())
	concrete, ok := notifier.(*evaluationNotifier)
	require.True(t, ok)
	require.Nil(t, concrete.publisher)

	concrete.notify(context.Background(), EvaluationEvent{Status: models.DocumentStatusCompleted})
}
