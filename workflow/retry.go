package workflow

import (
	"math/rand"
	"strings"
	"time"
)

// classifyError pattern-matches an error message (case-insensitive) into one
// of the engine's retryable-error codes (§4.11). Unmatched messages classify
// as UNKNOWN, itself retryable by default.
func classifyError(msg string) string {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "rate limit") || strings.Contains(lower, "429") || strings.Contains(lower, "too many requests"):
		return CodeRateLimit
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded"):
		return CodeTimeout
	case strings.Contains(lower, "connection") || strings.Contains(lower, "network") || strings.Contains(lower, "eof") || strings.Contains(lower, "dial"):
		return CodeNetwork
	case strings.Contains(lower, "validation") || strings.Contains(lower, "invalid"):
		return CodeValidation
	case strings.Contains(lower, "llm") || strings.Contains(lower, "provider") || strings.Contains(lower, "model"):
		return CodeLLMError
	default:
		return CodeUnknown
	}
}

var defaultRetryableCodes = map[string]bool{
	CodeRateLimit: true,
	CodeTimeout:   true,
	CodeNetwork:   true,
	CodeLLMError:  true,
	CodeUnknown:   true,
}

// shouldRetry applies the skipOn/retryOn policy from §4.11 steps 2-3.
func shouldRetry(code string, retryOn, skipOn []string) bool {
	for _, c := range skipOn {
		if c == code {
			return false
		}
	}
	if len(retryOn) > 0 {
		for _, c := range retryOn {
			if c == code {
				return true
			}
		}
		return false
	}
	return defaultRetryableCodes[code]
}

// computeBackoff returns the delay before the next retry attempt:
// min(base*2^attempt + jitter(0, base), maxDelay) (§4.11).
func computeBackoff(attempt int, base, maxDelay time.Duration, rng *rand.Rand) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	exp := base * (1 << uint(attempt))
	var jitter time.Duration
	if rng != nil {
		jitter = time.Duration(rng.Int63n(int64(base)))
	} else {
		jitter = time.Duration(rand.Int63n(int64(base)))
	}
	delay := exp + jitter
	if maxDelay > 0 && delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

// runWithRetry wraps a single executor invocation with the retry policy
// attached to eh (§4.11). attemptFn is called once per attempt; it must be
// safe to call more than once (executors are expected to be idempotent about
// re-invocation, consistent with the teacher's SideEffectPolicy notion).
func runWithRetry(ec *ExecContext, eh *ErrorHandling, attemptFn func(attempt int) Result) (Result, *RetryInfo) {
	var retryPolicy *RetryPolicy
	if eh != nil {
		retryPolicy = eh.Retry
	}

	maxRetries := 0
	var baseDelay, maxDelay time.Duration
	var retryOn, skipOn []string
	if retryPolicy != nil {
		maxRetries = retryPolicy.MaxRetries
		baseDelay = retryPolicy.BaseDelay.Duration()
		if retryPolicy.MaxDelay != nil {
			maxDelay = retryPolicy.MaxDelay.Duration()
		}
		retryOn = retryPolicy.RetryOn
		skipOn = retryPolicy.SkipOn
	}

	var history []RetryAttempt
	attempt := 0
	for {
		result := attemptFn(attempt)
		if result.Err == nil {
			if len(history) == 0 {
				return result, nil
			}
			return result, &RetryInfo{Attempts: attempt + 1, MaxAttempts: maxRetries + 1, History: history}
		}

		if ec.Cancelled() {
			return result, &RetryInfo{Attempts: attempt + 1, MaxAttempts: maxRetries + 1, History: history}
		}

		code := classifyError(result.Err.Message)
		if result.Err.Code == "" {
			result.Err.Code = code
		}

		history = append(history, RetryAttempt{Attempt: attempt, Error: result.Err.Message})

		if !shouldRetry(code, retryOn, skipOn) || attempt >= maxRetries {
			return result, &RetryInfo{Attempts: attempt + 1, MaxAttempts: maxRetries + 1, History: history}
		}

		delay := computeBackoff(attempt, baseDelay, maxDelay, ec.RNG)
		timer := time.NewTimer(delay)
		select {
		case <-ec.Done():
			timer.Stop()
			return result, &RetryInfo{Attempts: attempt + 1, MaxAttempts: maxRetries + 1, History: history}
		case <-timer.C:
		}

		attempt++
	}
}
