// Package mailer delivers transactional email.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	defaultSendGridHost = "https://api.sendgrid.com"
	sendGridEndpoint    = "/v3/mail/send"
)

// ErrNoRecipient indicates a message without a destination address.
var ErrNoRecipient = errors.New("message has no recipient")

// Message is a single outbound email.
type Message struct {
	ToName    string
	ToAddress string
	Subject   string
	Text      string
	HTML      string
}

// Mailer sends messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SendGridConfig configures the SendGrid mailer.
type SendGridConfig struct {
	APIKey   string
	AppName  string
	From     string
	Host     string
	Endpoint string
}

// SendGrid delivers messages through the SendGrid v3 mail API.
type SendGrid struct {
	key        string
	host       string
	endpoint   string
	from       *sgmail.Email
	subjPrefix string
}

// NewSendGrid constructs a SendGrid mailer.
func NewSendGrid(cfg SendGridConfig) (*SendGrid, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("sendgrid api key is required")
	}
	host := cfg.Host
	if host == "" {
		host = defaultSendGridHost
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = sendGridEndpoint
	}
	prefix := ""
	if cfg.AppName != "" {
		prefix = "[" + cfg.AppName + "] "
	}
	return &SendGrid{
		key:        cfg.APIKey,
		host:       strings.TrimRight(host, "/"),
		endpoint:   endpoint,
		from:       sgmail.NewEmail(cfg.AppName, cfg.From),
		subjPrefix: prefix,
	}, nil
}

func (s *SendGrid) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.ToAddress) == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	req := sendgrid.GetRequest(s.key, s.endpoint, s.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(s.prepare(msg))

	res, err := sendgrid.API(req)
	if err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sending email: status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}

func (s *SendGrid) prepare(msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = s.subjPrefix + msg.Subject
	p.AddTos(sgmail.NewEmail(msg.ToName, msg.ToAddress))

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", msg.Text))
	if msg.HTML != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTML))
	}
	return m
}

// Log writes messages to the logger instead of delivering them.
type Log struct {
	logger zerolog.Logger
}

// NewLog constructs a logging mailer.
func NewLog(logger zerolog.Logger) *Log {
	return &Log{logger: logger.With().Str("component", "log_mailer").Logger()}
}

func (l *Log) Send(_ context.Context, msg Message) error {
	if strings.TrimSpace(msg.ToAddress) == "" {
		return ErrNoRecipient
	}
	l.logger.Info().
		Str("to", msg.ToAddress).
		Str("subject", msg.Subject).
		Msg("email delivery skipped")
	return nil
}
