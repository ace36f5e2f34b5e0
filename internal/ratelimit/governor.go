// Package ratelimit implements the rate governor: call pacing, backoff on
// quota errors, model tier selection against rolling token usage, and the
// degradation trigger that flips the pipeline into emergency mode.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"deepresearch/internal/llm"
)

const (
	// DefaultMinInterval is the minimum spacing between external model calls.
	DefaultMinInterval = time.Second

	// DefaultBaseDelay seeds the exponential backoff when the provider does
	// not suggest its own wait.
	DefaultBaseDelay = time.Second

	// DefaultMaxRetries bounds retries for a single call. Total attempts are
	// MaxRetries + 1.
	DefaultMaxRetries = 3

	// DefaultDegradedThreshold is the number of consecutive rate-limit
	// exhaustions before Degraded starts reporting true.
	DefaultDegradedThreshold = 3

	// retryAfterBuffer pads provider-suggested waits, which tend to be
	// slightly optimistic.
	retryAfterBuffer = 500 * time.Millisecond
)

// Config tunes the governor. Zero values take the package defaults.
type Config struct {
	MinInterval       time.Duration
	BaseDelay         time.Duration
	MaxRetries        int
	DegradedThreshold int
	Tiers             []Tier
}

// Governor keeps model calls inside the provider's quota. It is explicitly
// owned state: construct one per run or per process and inject it; there is
// no package-level instance.
type Governor struct {
	cfg    Config
	logger *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu          sync.Mutex
	lastCall    time.Time
	usage       []usageRecord
	exhaustions int
}

// NewGovernor creates a governor with the given config, filling zero fields
// with defaults.
func NewGovernor(cfg Config, logger *zap.Logger) *Governor {
	if cfg.MinInterval == 0 {
		cfg.MinInterval = DefaultMinInterval
	}
	if cfg.BaseDelay == 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.DegradedThreshold == 0 {
		cfg.DegradedThreshold = DefaultDegradedThreshold
	}
	if len(cfg.Tiers) == 0 {
		cfg.Tiers = DefaultTiers()
	}
	return &Governor{
		cfg:    cfg,
		logger: logger.Named("governor"),
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// Do runs one external model call under the governor's policy: paces it,
// selects a model tier for the estimated token count and task category, and
// retries rate-limit failures up to MaxRetries with provider-suggested or
// exponential delays. Non-rate-limit errors propagate immediately.
func (g *Governor) Do(ctx context.Context, estimatedTokens int, task string, call func(model string) error) error {
	model := g.SelectModel(estimatedTokens, task)

	if err := g.pace(ctx); err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt <= g.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := g.retryDelay(lastErr, attempt-1)
			g.logger.Warn("rate limited, backing off",
				zap.String("model", model),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay))
			if err := g.sleep(ctx, delay); err != nil {
				return err
			}
		}

		err := call(model)
		if err == nil {
			g.recordSuccess(model, estimatedTokens)
			return nil
		}

		var rl *llm.RateLimitError
		if !errors.As(err, &rl) {
			return err
		}
		lastErr = err
	}

	g.recordExhaustion()
	return lastErr
}

// retryDelay picks the provider-suggested wait when present, else exponential
// backoff base*2^attempt.
func (g *Governor) retryDelay(err error, attempt int) time.Duration {
	var rl *llm.RateLimitError
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter + retryAfterBuffer
	}
	return g.cfg.BaseDelay * (1 << uint(attempt))
}

// pace enforces the minimum inter-call interval.
func (g *Governor) pace(ctx context.Context) error {
	g.mu.Lock()
	wait := g.cfg.MinInterval - g.now().Sub(g.lastCall)
	g.lastCall = g.now()
	g.mu.Unlock()

	if wait > 0 {
		return g.sleep(ctx, wait)
	}
	return nil
}

func (g *Governor) recordSuccess(model string, tokens int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record(model, tokens)
	g.exhaustions = 0
}

func (g *Governor) recordExhaustion() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.exhaustions++
	g.logger.Warn("retry budget exhausted", zap.Int("consecutive", g.exhaustions))
}

// Degraded reports whether repeated rate-limit exhaustions have crossed the
// threshold. The scheduler switches to the emergency implementations while
// this is true.
func (g *Governor) Degraded() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.exhaustions >= g.cfg.DegradedThreshold
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
