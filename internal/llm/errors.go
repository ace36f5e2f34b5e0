package llm

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// RateLimitError indicates the provider rejected a call for quota reasons.
// RetryAfter is the provider-suggested wait when one was present in the error
// body, zero otherwise.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (retry after %s): %s", e.RetryAfter, e.Message)
	}
	return fmt.Sprintf("rate limited: %s", e.Message)
}

// GenerationError indicates a non-quota generation failure. Not retried by the
// governor.
type GenerationError struct {
	Message string
	Err     error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation failed: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("generation failed: %s", e.Message)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Providers embed the suggested wait in the error body, e.g.
// "Rate limit reached ... Please try again in 7.66s."
var retryAfterPattern = regexp.MustCompile(`try again in (\d+\.?\d*)s`)

// ParseRetryAfter extracts a provider-suggested retry delay from an error
// message body. Returns zero when no delay is present.
func ParseRetryAfter(body string) time.Duration {
	m := retryAfterPattern.FindStringSubmatch(body)
	if m == nil {
		return 0
	}
	secs, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}
