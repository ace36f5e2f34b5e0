package ratelimit

import "time"

const (
	usageRetention   = time.Hour
	usageQueryWindow = time.Minute
)

type usageRecord struct {
	at     time.Time
	tokens int
	model  string
}

// record appends a completed call to the rolling log and prunes entries older
// than the retention window. Callers hold g.mu.
func (g *Governor) record(model string, tokens int) {
	now := g.now()
	g.usage = append(g.usage, usageRecord{at: now, tokens: tokens, model: model})

	cutoff := now.Add(-usageRetention)
	keep := g.usage[:0]
	for _, rec := range g.usage {
		if rec.at.After(cutoff) {
			keep = append(keep, rec)
		}
	}
	g.usage = keep
}

// UsageLastMinute sums tokens recorded for a model in the trailing 60 seconds.
func (g *Governor) UsageLastMinute(model string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	cutoff := g.now().Add(-usageQueryWindow)
	total := 0
	for _, rec := range g.usage {
		if rec.model == model && rec.at.After(cutoff) {
			total += rec.tokens
		}
	}
	return total
}
