package completion

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"

	"pagebrief/internal/summarize"
)

const contextLengthCode = "context_length_exceeded"

// classify is the single place that inspects provider error codes and
// messages; everything above it dispatches on the outcome kind alone.
func (c *Client) classify(err error) (summarize.Outcome, error) {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		// Not a provider response at all: the backend was unreachable.
		return summarize.Outcome{}, fmt.Errorf("do request: %w", err)
	}

	switch {
	case apiErr.StatusCode == http.StatusTooManyRequests:
		return summarize.RateLimited(c.rateLimitWait), nil

	case apiErr.Code == contextLengthCode,
		strings.Contains(strings.ToLower(apiErr.Message), "maximum context length"):
		return summarize.ContextTooLong(), nil

	default:
		return summarize.Retryable(apiErr.Message), nil
	}
}
