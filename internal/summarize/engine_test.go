package summarize

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

type scriptedCompleter struct {
	mu           sync.Mutex
	outcomes     []Outcome
	next         int
	instructions []string
	inputs       []string
}

func (c *scriptedCompleter) Complete(
	_ context.Context,
	instruction string,
	text string,
) (Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.instructions = append(c.instructions, instruction)
	c.inputs = append(c.inputs, text)

	outcome := c.outcomes[c.next]
	if c.next < len(c.outcomes)-1 {
		c.next++
	}

	return outcome, nil
}

func (c *scriptedCompleter) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.inputs)
}

func (c *scriptedCompleter) inputWordCounts() []int {
	c.mu.Lock()
	defer c.mu.Unlock()

	counts := make([]int, len(c.inputs))
	for i, input := range c.inputs {
		counts[i] = len(strings.Fields(input))
	}

	return counts
}

func repeatedWords(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = "word"
	}

	return strings.Join(words, " ")
}

func newTestEngine(completer Completer, opts Options) *Engine {
	if opts.RetryInitialBackoff == 0 {
		opts.RetryInitialBackoff = time.Millisecond
	}

	return NewEngine(completer, opts, slog.Default())
}

func TestSummarizeSmallInputSingleCall(t *testing.T) {
	const want = "this is a ten word summary text example done"

	stub := &scriptedCompleter{outcomes: []Outcome{Success(want)}}
	engine := newTestEngine(stub, Options{})

	input := repeatedWords(50)

	got, err := engine.Summarize(context.Background(), input, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got != want {
		t.Fatalf("unexpected summary: %q", got)
	}

	if calls := stub.callCount(); calls != 1 {
		t.Fatalf("expected exactly one backend call, got %d", calls)
	}

	if stub.inputs[0] != input {
		t.Fatalf("expected backend to receive the full input, got %d words",
			len(strings.Fields(stub.inputs[0])))
	}
}

func TestSummarizeOverThresholdSplitsInHalves(t *testing.T) {
	stub := &scriptedCompleter{outcomes: []Outcome{Success("s")}}
	engine := newTestEngine(stub, Options{})

	if _, err := engine.Summarize(context.Background(), repeatedWords(4001), 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	counts := stub.inputWordCounts()
	if len(counts) != 3 {
		t.Fatalf("expected two halves plus one merge call, got %d calls", len(counts))
	}

	halves := counts[:2]
	if halves[0]+halves[1] != 4001 {
		t.Fatalf("halves do not cover the input: %v", halves)
	}

	diff := halves[0] - halves[1]
	if diff < -1 || diff > 1 {
		t.Fatalf("halves differ by more than one word: %v", halves)
	}

	if counts[2] != 2 {
		t.Fatalf("expected merge call over the two partial summaries, got %d words", counts[2])
	}
}

func TestSummarizeDeepRecursionIssuesEnoughCalls(t *testing.T) {
	stub := &scriptedCompleter{outcomes: []Outcome{Success("s")}}
	engine := newTestEngine(stub, Options{})

	if _, err := engine.Summarize(context.Background(), repeatedWords(7000), 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if calls := stub.callCount(); calls < 3 {
		t.Fatalf("expected at least three backend calls, got %d", calls)
	}
}

func TestSummarizePreTrimsPathologicalInput(t *testing.T) {
	stub := &scriptedCompleter{outcomes: []Outcome{Success("s")}}
	engine := newTestEngine(stub, Options{})

	if _, err := engine.Summarize(context.Background(), repeatedWords(12000), 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	counts := stub.inputWordCounts()
	if len(counts) != 1 {
		t.Fatalf("expected a single backend call after pre-trim, got %d", len(counts))
	}

	if counts[0] != 1000 {
		t.Fatalf("expected the first 1000 words to be kept, got %d", counts[0])
	}
}

func TestInstructionWording(t *testing.T) {
	singular := instruction(1)
	if !strings.Contains(singular, "no more than 1 word.") {
		t.Fatalf("expected singular wording, got %q", singular)
	}

	plural := instruction(2)
	if !strings.Contains(plural, "no more than 2 words.") {
		t.Fatalf("expected plural wording, got %q", plural)
	}
}

func TestContextTooLongFallsBackToSplitting(t *testing.T) {
	stub := &scriptedCompleter{outcomes: []Outcome{
		ContextTooLong(),
		Success("x"),
	}}
	engine := newTestEngine(stub, Options{})

	got, err := engine.Summarize(context.Background(), repeatedWords(100), 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got != "x" {
		t.Fatalf("unexpected summary: %q", got)
	}

	// Rejected full input, both halves, then the merge.
	if calls := stub.callCount(); calls != 4 {
		t.Fatalf("expected four backend calls, got %d", calls)
	}
}

func TestContextTooLongOnSingleWordFails(t *testing.T) {
	stub := &scriptedCompleter{outcomes: []Outcome{ContextTooLong()}}
	engine := newTestEngine(stub, Options{})

	_, err := engine.Summarize(context.Background(), "word", 5)
	if !errors.Is(err, ErrUnsplittable) {
		t.Fatalf("expected ErrUnsplittable, got %v", err)
	}
}

func TestRateLimitedWaitsAndRetriesIdenticalRequest(t *testing.T) {
	const wait = 20 * time.Millisecond

	stub := &scriptedCompleter{outcomes: []Outcome{
		RateLimited(wait),
		Success("ok"),
	}}
	engine := newTestEngine(stub, Options{})

	start := time.Now()

	got, err := engine.Summarize(context.Background(), repeatedWords(10), 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got != "ok" {
		t.Fatalf("unexpected summary: %q", got)
	}

	if elapsed := time.Since(start); elapsed < wait {
		t.Fatalf("expected to wait at least %v, waited %v", wait, elapsed)
	}

	if calls := stub.callCount(); calls != 2 {
		t.Fatalf("expected two backend calls, got %d", calls)
	}

	if stub.inputs[0] != stub.inputs[1] || stub.instructions[0] != stub.instructions[1] {
		t.Fatalf("expected an identical retry request")
	}
}

func TestRetryableRetriesThenSucceeds(t *testing.T) {
	stub := &scriptedCompleter{outcomes: []Outcome{
		Retryable("upstream hiccup"),
		Retryable("upstream hiccup"),
		Success("ok"),
	}}
	engine := newTestEngine(stub, Options{})

	got, err := engine.Summarize(context.Background(), repeatedWords(10), 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got != "ok" {
		t.Fatalf("unexpected summary: %q", got)
	}

	if calls := stub.callCount(); calls != 3 {
		t.Fatalf("expected three backend calls, got %d", calls)
	}
}

func TestRetryableIsBounded(t *testing.T) {
	stub := &scriptedCompleter{outcomes: []Outcome{Retryable("persistent fault")}}
	engine := newTestEngine(stub, Options{MaxRetries: 2})

	_, err := engine.Summarize(context.Background(), repeatedWords(10), 5)
	if err == nil {
		t.Fatalf("expected an error after retry budget is exhausted")
	}

	if !strings.Contains(err.Error(), "persistent fault") {
		t.Fatalf("expected the provider reason in the error, got %v", err)
	}

	if calls := stub.callCount(); calls != 3 {
		t.Fatalf("expected initial attempt plus two retries, got %d calls", calls)
	}
}

func TestEmptyInputStillCallsBackend(t *testing.T) {
	stub := &scriptedCompleter{outcomes: []Outcome{Success("nothing to summarize")}}
	engine := newTestEngine(stub, Options{})

	got, err := engine.Summarize(context.Background(), "   ", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got != "nothing to summarize" {
		t.Fatalf("unexpected summary: %q", got)
	}

	if calls := stub.callCount(); calls != 1 {
		t.Fatalf("expected one backend call for empty input, got %d", calls)
	}

	if stub.inputs[0] != "" {
		t.Fatalf("expected empty input text, got %q", stub.inputs[0])
	}
}

func TestTargetWordsPropagatesThroughRecursion(t *testing.T) {
	stub := &scriptedCompleter{outcomes: []Outcome{Success("s")}}
	engine := newTestEngine(stub, Options{})

	if _, err := engine.Summarize(context.Background(), repeatedWords(7000), 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, instr := range stub.instructions {
		if !strings.Contains(instr, "no more than 10 words") {
			t.Fatalf("call %d lost the word target: %q", i, instr)
		}
	}
}
