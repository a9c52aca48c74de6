package workflow

import (
	"math/rand"
	"testing"
)

func TestClassifyErrorMatchesKnownPatterns(t *testing.T) {
	cases := map[string]string{
		"rate limit exceeded":    CodeRateLimit,
		"429 too many requests":  CodeRateLimit,
		"context deadline exceeded": CodeTimeout,
		"request timeout":        CodeTimeout,
		"connection reset":       CodeNetwork,
		"dial tcp: no route":     CodeNetwork,
		"validation failed":      CodeValidation,
		"invalid argument":       CodeValidation,
		"llm provider error":     CodeLLMError,
		"something unexpected":   CodeUnknown,
	}
	for msg, want := range cases {
		if got := classifyError(msg); got != want {
			t.Errorf("classifyError(%q) = %q, want %q", msg, got, want)
		}
	}
}

func TestShouldRetryDefaultsToRetryableSet(t *testing.T) {
	if !shouldRetry(CodeTimeout, nil, nil) {
		t.Error("CodeTimeout should be retryable by default")
	}
	if shouldRetry(CodeValidation, nil, nil) {
		t.Error("CodeValidation should not be retryable by default")
	}
}

func TestShouldRetrySkipOnTakesPrecedence(t *testing.T) {
	if shouldRetry(CodeTimeout, []string{CodeTimeout}, []string{CodeTimeout}) {
		t.Error("skipOn should override retryOn for the same code")
	}
}

func TestShouldRetryOnRestrictsToExplicitList(t *testing.T) {
	if shouldRetry(CodeNetwork, []string{CodeTimeout}, nil) {
		t.Error("a retryOn list should exclude codes not named in it")
	}
	if !shouldRetry(CodeTimeout, []string{CodeTimeout}, nil) {
		t.Error("a retryOn list should include codes named in it")
	}
}

func newTestExecContext() *ExecContext {
	return &ExecContext{
		Outputs:   make(map[string]string),
		ExecCount: make(map[string]int),
		RNG:       rand.New(rand.NewSource(1)),
		cancel:    newCancelToken(),
	}
}

func TestRunWithRetrySucceedsOnFirstAttempt(t *testing.T) {
	ec := newTestExecContext()
	calls := 0
	result, info := runWithRetry(ec, nil, func(attempt int) Result {
		calls++
		return Ok("done")
	})
	if result.Err != nil || result.Output != "done" {
		t.Fatalf("result = %+v, want Ok('done')", result)
	}
	if info != nil {
		t.Errorf("info = %+v, want nil for a no-retry success", info)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRunWithRetryRetriesUpToMaxThenFails(t *testing.T) {
	ec := newTestExecContext()
	eh := &ErrorHandling{Retry: &RetryPolicy{MaxRetries: 2, BaseDelay: durationMS(1)}}

	calls := 0
	result, info := runWithRetry(ec, eh, func(attempt int) Result {
		calls++
		return Err(CodeTimeout, "request timeout", true)
	})

	if result.Err == nil {
		t.Fatal("expected a final error result")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3 (1 initial + 2 retries)", calls)
	}
	if info == nil || info.Attempts != 3 {
		t.Errorf("info = %+v, want Attempts=3", info)
	}
}

func TestRunWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	ec := newTestExecContext()
	eh := &ErrorHandling{Retry: &RetryPolicy{MaxRetries: 3, BaseDelay: durationMS(1)}}

	calls := 0
	result, info := runWithRetry(ec, eh, func(attempt int) Result {
		calls++
		if calls < 3 {
			return Err(CodeTimeout, "request timeout", true)
		}
		return Ok("recovered")
	})

	if result.Err != nil || result.Output != "recovered" {
		t.Fatalf("result = %+v, want Ok('recovered')", result)
	}
	if info == nil || info.Attempts != 3 {
		t.Errorf("info = %+v, want Attempts=3", info)
	}
}

func TestRunWithRetrySkipsNonRetryableCodeImmediately(t *testing.T) {
	ec := newTestExecContext()
	eh := &ErrorHandling{Retry: &RetryPolicy{MaxRetries: 5, BaseDelay: durationMS(1)}}

	calls := 0
	result, _ := runWithRetry(ec, eh, func(attempt int) Result {
		calls++
		return Err(CodeValidation, "invalid input", false)
	})

	if result.Err == nil {
		t.Fatal("expected an error result")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (validation errors are not retried by default)", calls)
	}
}
