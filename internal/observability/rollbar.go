package observability

import (
	"github.com/rollbar/rollbar-go"
	"github.com/rs/zerolog"
)

// ErrorReporter forwards unexpected failures to an external tracker.
type ErrorReporter interface {
	Report(err error, fields map[string]interface{})
}

// RollbarReporter sends errors to Rollbar.
type RollbarReporter struct {
	logger zerolog.Logger
}

// NewRollbarReporter configures the global Rollbar client. Without a token it returns a reporter
// that only logs.
func NewRollbarReporter(token, environment, codeVersion string, logger zerolog.Logger) ErrorReporter {
	logger = logger.With().Str("component", "error_reporter").Logger()
	if token == "" {
		return logReporter{logger: logger}
	}

	rollbar.SetToken(token)
	rollbar.SetEnvironment(environment)
	rollbar.SetCodeVersion(codeVersion)
	rollbar.SetEnabled(true)
	return &RollbarReporter{logger: logger}
}

func (r *RollbarReporter) Report(err error, fields map[string]interface{}) {
	if err == nil {
		return
	}
	if fields == nil {
		rollbar.Error(err)
	} else {
		rollbar.Error(err, fields)
	}
	r.logger.Error().Err(err).Fields(fields).Msg("error reported to rollbar")
}

// Close flushes queued Rollbar items.
func (r *RollbarReporter) Close() {
	rollbar.Close()
}

type logReporter struct {
	logger zerolog.Logger
}

func (l logReporter) Report(err error, fields map[string]interface{}) {
	if err == nil {
		return
	}
	l.logger.Error().Err(err).Fields(fields).Msg("unexpected error")
}
