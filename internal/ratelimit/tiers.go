package ratelimit

const (
	// tierSafetyMargin keeps projected usage under this fraction of a tier's
	// per-minute token limit.
	tierSafetyMargin = 0.8

	// trivialTokenThreshold marks prompts small enough to always take the
	// fastest tier.
	trivialTokenThreshold = 200
)

// Tier is one {model, per-minute token limit} pair. Tiers are ordered fast to
// slow; selection prefers the fastest tier with headroom.
type Tier struct {
	Model           string
	TokensPerMinute int
}

// DefaultTiers returns the free-tier model ladder.
func DefaultTiers() []Tier {
	return []Tier{
		{Model: "llama-3.1-8b-instant", TokensPerMinute: 20000},
		{Model: "llama-3.3-70b-versatile", TokensPerMinute: 12000},
		{Model: "mixtral-8x7b-32768", TokensPerMinute: 5000},
	}
}

// trivialTasks always run on the fastest tier regardless of load.
var trivialTasks = map[string]bool{
	"citation":   true,
	"extraction": true,
}

// SelectModel returns the model for a call with the given estimated token
// count and task category: the fastest tier whose rolling-minute usage plus
// this call stays under the safety margin, falling back to the slowest tier
// when every tier is saturated.
func (g *Governor) SelectModel(estimatedTokens int, task string) string {
	tiers := g.cfg.Tiers

	if trivialTasks[task] || estimatedTokens < trivialTokenThreshold {
		return tiers[0].Model
	}

	for _, tier := range tiers {
		projected := g.UsageLastMinute(tier.Model) + estimatedTokens
		if float64(projected) < tierSafetyMargin*float64(tier.TokensPerMinute) {
			return tier.Model
		}
	}
	return tiers[len(tiers)-1].Model
}
