package llm

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		name string
		body string
		want time.Duration
	}{
		{
			name: "fractional seconds",
			body: "Rate limit reached for model. Please try again in 7.66s.",
			want: 7660 * time.Millisecond,
		},
		{
			name: "whole seconds",
			body: "try again in 30s",
			want: 30 * time.Second,
		},
		{
			name: "no delay present",
			body: "quota exceeded",
			want: 0,
		},
		{
			name: "empty body",
			body: "",
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseRetryAfter(tt.body))
		})
	}
}

func TestErrorKinds(t *testing.T) {
	rl := &RateLimitError{Message: "slow down", RetryAfter: 2 * time.Second}
	wrapped := fmt.Errorf("phase call: %w", rl)

	var target *RateLimitError
	assert.True(t, errors.As(wrapped, &target))
	assert.Equal(t, 2*time.Second, target.RetryAfter)

	gen := &GenerationError{Message: "bad response", Err: errors.New("eof")}
	var genTarget *GenerationError
	assert.True(t, errors.As(fmt.Errorf("x: %w", gen), &genTarget))
	assert.Contains(t, gen.Error(), "bad response")
}
