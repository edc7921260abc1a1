package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

var (
	// ErrRateLimited indicates the provider throttled the request.
	ErrRateLimited = errors.New("ai provider rate limited the request")
	// ErrProcessingFailed covers every other provider failure, timeouts included.
	ErrProcessingFailed = errors.New("ai processing failed")
	// ErrResponseMalformed indicates the reply did not match the score report shape.
	ErrResponseMalformed = errors.New("ai response malformed")
)

var throttleMarkers = []string{"429", "rate limit", "quota"}

// ClassifyError maps a provider error onto ErrRateLimited or ErrProcessingFailed, keeping the
// original error in the chain. Errors already classified are returned untouched.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrProcessingFailed) || errors.Is(err, ErrResponseMalformed) {
		return err
	}
	if isThrottled(err) {
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: timed out: %w", ErrProcessingFailed, err)
	}
	return fmt.Errorf("%w: %w", ErrProcessingFailed, err)
}

func isThrottled(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return true
	}

	message := strings.ToLower(err.Error())
	for _, marker := range throttleMarkers {
		if strings.Contains(message, marker) {
			return true
		}
	}
	return false
}
