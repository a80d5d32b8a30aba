package summarize

import (
	"context"
	"time"
)

// OutcomeKind tags the result of a single completion attempt.
type OutcomeKind int

const (
	// OutcomeSuccess carries the generated text.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeRetryable covers transient provider faults: malformed or empty
	// responses and generic API errors.
	OutcomeRetryable
	// OutcomeRateLimited means the provider asked us to back off.
	OutcomeRateLimited
	// OutcomeContextTooLong means instruction plus input exceeded the model's
	// input capacity.
	OutcomeContextTooLong
)

// Outcome is the classified result of one completion attempt. The engine
// dispatches on Kind; the remaining fields are only meaningful for the kind
// that sets them.
type Outcome struct {
	Kind   OutcomeKind
	Text   string
	Reason string
	Wait   time.Duration
}

func Success(text string) Outcome {
	return Outcome{Kind: OutcomeSuccess, Text: text}
}

func Retryable(reason string) Outcome {
	return Outcome{Kind: OutcomeRetryable, Reason: reason}
}

func RateLimited(wait time.Duration) Outcome {
	return Outcome{Kind: OutcomeRateLimited, Wait: wait}
}

func ContextTooLong() Outcome {
	return Outcome{Kind: OutcomeContextTooLong}
}

// Completer sends one chat-style completion request to the backend. Every
// provider-level failure must be classified into an Outcome with a nil error;
// a non-nil error means the backend could not be reached at all.
type Completer interface {
	Complete(ctx context.Context, instruction string, text string) (Outcome, error)
}
