package summarize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	defaultSplitThresholdWords = 3000
	defaultHardCapWords        = 10000
	defaultPreTrimWords        = 1000
	defaultMaxRetries          = 5
	defaultRetryInitialBackoff = 500 * time.Millisecond
	defaultMaxConcurrentCalls  = 8
)

// ErrUnsplittable is returned when the backend reports the input as too long
// but the input has too few words to split in half.
var ErrUnsplittable = errors.New("input cannot be split further")

// Options tunes the engine. Zero values fall back to defaults sized for a
// typical chat-completion context window.
type Options struct {
	// SplitThresholdWords is the word count above which input is summarized
	// by divide and conquer instead of a direct backend call.
	SplitThresholdWords int
	// HardCapWords and PreTrimWords implement the defensive pre-trim: input
	// longer than HardCapWords is cut down to its first PreTrimWords words.
	HardCapWords int
	PreTrimWords int
	// MaxRetries bounds consecutive retryable-fault retries for one request.
	MaxRetries int
	// RetryInitialBackoff is the first retry delay; it doubles per attempt.
	RetryInitialBackoff time.Duration
	// MaxConcurrentCalls caps in-flight backend calls across the engine.
	MaxConcurrentCalls int64
}

func (o Options) withDefaults() Options {
	if o.SplitThresholdWords <= 0 {
		o.SplitThresholdWords = defaultSplitThresholdWords
	}
	if o.HardCapWords <= 0 {
		o.HardCapWords = defaultHardCapWords
	}
	if o.PreTrimWords <= 0 {
		o.PreTrimWords = defaultPreTrimWords
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = defaultMaxRetries
	}
	if o.RetryInitialBackoff <= 0 {
		o.RetryInitialBackoff = defaultRetryInitialBackoff
	}
	if o.MaxConcurrentCalls <= 0 {
		o.MaxConcurrentCalls = defaultMaxConcurrentCalls
	}

	return o
}

// Engine produces length-bounded summaries of arbitrary-length text.
//
// Input over the split threshold is halved at the word midpoint, both halves
// are summarized concurrently with the same word target, and the joined
// partial summaries are summarized once more to merge them. At or below the
// threshold the engine calls the backend directly, recovering from rate
// limiting by waiting, from transient faults by bounded backoff-and-retry,
// and from context overflow by escalating into the same divide-and-conquer
// pass.
type Engine struct {
	completer Completer
	opts      Options
	sem       *semaphore.Weighted
	log       *slog.Logger
}

func NewEngine(completer Completer, opts Options, log *slog.Logger) *Engine {
	opts = opts.withDefaults()

	return &Engine{
		completer: completer,
		opts:      opts,
		sem:       semaphore.NewWeighted(opts.MaxConcurrentCalls),
		log:       log,
	}
}

// Summarize returns a summary of text intended to be at most targetWords
// words long. The bound is the model's responsibility and is not validated
// here. targetWords is propagated unchanged through every recursive call.
func (e *Engine) Summarize(
	ctx context.Context,
	text string,
	targetWords int,
) (string, error) {
	words := strings.Fields(text)
	if len(words) > e.opts.HardCapWords {
		e.log.WarnContext(ctx, "Input over hard cap so pre-trimming",
			"wordCount", len(words),
			"hardCapWords", e.opts.HardCapWords,
			"keptWords", e.opts.PreTrimWords)

		words = words[:e.opts.PreTrimWords]
	}

	return e.summarizeWords(ctx, words, targetWords)
}

func (e *Engine) summarizeWords(
	ctx context.Context,
	words []string,
	targetWords int,
) (string, error) {
	if len(words) > e.opts.SplitThresholdWords {
		return e.splitAndMerge(ctx, words, targetWords)
	}

	systemInstruction := instruction(targetWords)
	input := strings.Join(words, " ")

	retries := 0
	backoff := e.opts.RetryInitialBackoff

	for {
		outcome, err := e.complete(ctx, systemInstruction, input)
		if err != nil {
			return "", fmt.Errorf("complete: %w", err)
		}

		switch outcome.Kind {
		case OutcomeSuccess:
			return outcome.Text, nil

		case OutcomeContextTooLong:
			e.log.WarnContext(ctx, "Context too long so splitting input",
				"wordCount", len(words),
				"targetWords", targetWords)

			return e.splitAndMerge(ctx, words, targetWords)

		case OutcomeRateLimited:
			e.log.WarnContext(ctx, "Rate limited so waiting",
				"waitSeconds", outcome.Wait.Seconds())

			if err = sleep(ctx, outcome.Wait); err != nil {
				return "", err
			}

		case OutcomeRetryable:
			retries++
			if retries > e.opts.MaxRetries {
				return "", fmt.Errorf(
					"completion failed after %d retries: %s",
					e.opts.MaxRetries,
					outcome.Reason,
				)
			}

			e.log.WarnContext(ctx, "Transient completion fault so retrying",
				"reason", outcome.Reason,
				"retry", retries,
				"maxRetries", e.opts.MaxRetries,
				"backoffMS", backoff.Milliseconds())

			if err = sleep(ctx, backoff); err != nil {
				return "", err
			}
			backoff *= 2
		}
	}
}

func (e *Engine) splitAndMerge(
	ctx context.Context,
	words []string,
	targetWords int,
) (string, error) {
	if len(words) < 2 {
		return "", ErrUnsplittable
	}

	mid := len(words) / 2

	var left, right string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		summary, err := e.summarizeWords(gctx, words[:mid], targetWords)
		if err != nil {
			return fmt.Errorf("summarize left half: %w", err)
		}
		left = summary

		return nil
	})
	g.Go(func() error {
		summary, err := e.summarizeWords(gctx, words[mid:], targetWords)
		if err != nil {
			return fmt.Errorf("summarize right half: %w", err)
		}
		right = summary

		return nil
	})

	if err := g.Wait(); err != nil {
		return "", err
	}

	return e.summarizeWords(ctx, strings.Fields(left+" "+right), targetWords)
}

// complete holds a semaphore slot only for the duration of the backend call,
// never across recursion, so deep fan-out cannot deadlock on the cap.
func (e *Engine) complete(
	ctx context.Context,
	instruction string,
	input string,
) (Outcome, error) {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return Outcome{}, fmt.Errorf("acquire completion slot: %w", err)
	}
	defer e.sem.Release(1)

	return e.completer.Complete(ctx, instruction, input)
}

func instruction(targetWords int) string {
	noun := "words"
	if targetWords == 1 {
		noun = "word"
	}

	return fmt.Sprintf(
		"Summarize the text provided by the user in no more than %d %s. "+
			"Respond with only the summary.",
		targetWords,
		noun,
	)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
