package citation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"deepresearch/internal/llm"
	"deepresearch/internal/ratelimit"
	"deepresearch/internal/types"
)

type staticClient struct {
	response string
	err      error
}

func (c *staticClient) Generate(_ context.Context, _ llm.Request) (string, error) {
	return c.response, c.err
}

func newTestEngine(client llm.Client) *Engine {
	gov := ratelimit.NewGovernor(ratelimit.Config{}, zap.NewNop())
	return NewEngine(client, gov, zap.NewNop())
}

func testDoc() types.Document {
	return types.Document{
		Title:      "Solar growth review",
		URL:        "https://review.example/solar",
		Content:    "Solar output increased by 20% in 2023 according to the review.",
		SourceType: types.SourceWeb,
		Authors:    []string{"J. Writer"},
		Published:  "2024-02-10",
	}
}

func TestExtractCitations(t *testing.T) {
	e := newTestEngine(&staticClient{response: `{
		"citations": [
			{"type": "statistic", "content": "Solar output rose 20% in 2023", "quote": "increased by 20%", "context": "annual review"},
			{"type": "claim", "content": "Growth is policy driven"}
		]
	}`})

	got := e.Extract(context.Background(), testDoc())
	require.Len(t, got, 2)
	assert.Equal(t, types.CitationStatistic, got[0].Type)
	assert.Equal(t, "Solar growth review", got[0].Title, "document metadata carries over")
	assert.Equal(t, "https://review.example/solar", got[0].URL)
	assert.Equal(t, types.CitationClaim, got[1].Type)
}

func TestExtractFallsBackToBasic(t *testing.T) {
	e := newTestEngine(&staticClient{err: &llm.GenerationError{Message: "down"}})

	got := e.Extract(context.Background(), testDoc())
	require.Len(t, got, 1)
	assert.Equal(t, types.CitationSource, got[0].Type)
	assert.Equal(t, "https://review.example/solar", got[0].URL)
	assert.NotEmpty(t, got[0].Content)
}

func TestExtractUnparseableFallsBackToBasic(t *testing.T) {
	e := newTestEngine(&staticClient{response: "no json at all"})
	got := e.Extract(context.Background(), testDoc())
	require.Len(t, got, 1)
	assert.Equal(t, types.CitationSource, got[0].Type)
}

func TestBibliographyDedup(t *testing.T) {
	citations := []types.Citation{
		{Title: "Alpha report", URL: "https://same.example", Content: "first claim"},
		{Title: "Alpha report second look", URL: "https://same.example", Content: "second claim"},
		{Title: "Beta Survey", URL: "https://beta1.example", Content: "x"},
		{Title: "beta survey", URL: "https://beta2.example", Content: "y"},
	}

	entries := Bibliography(citations, StyleAPA)
	require.Len(t, entries, 2, "same url and same lowercased title each collapse")
	assert.Contains(t, entries[0], "1. ")
	assert.Contains(t, entries[1], "2. ")
}

func TestBibliographySortedByTitle(t *testing.T) {
	citations := []types.Citation{
		{Title: "Zebra study", URL: "https://z.example"},
		{Title: "Apple study", URL: "https://a.example"},
	}
	entries := Bibliography(citations, StyleAPA)
	require.Len(t, entries, 2)
	assert.Contains(t, entries[0], "Apple study")
	assert.Contains(t, entries[1], "Zebra study")
}

func TestFormatStyles(t *testing.T) {
	c := types.Citation{
		Title:   "Grid storage outlook",
		URL:     "https://outlook.example",
		Authors: []string{"A. One", "B. Two"},
		Date:    "2023-06-01",
	}

	apa := Format(c, StyleAPA)
	assert.Contains(t, apa, "(2023)")
	assert.Contains(t, apa, "A. One and B. Two")

	mla := Format(c, StyleMLA)
	assert.Contains(t, mla, `"Grid storage outlook"`)

	chicago := Format(c, StyleChicago)
	assert.Contains(t, chicago, "2023")
	assert.Contains(t, chicago, "https://outlook.example")
}

func TestFormatAcceptsLowercaseStyleNames(t *testing.T) {
	// The config layer validates and stores styles as "apa", "mla" and
	// "chicago"; those values must select the same formats as the exported
	// constants.
	c := types.Citation{
		Title:   "Solar Trends",
		URL:     "https://x.example",
		Authors: []string{"Doe"},
		Date:    "2024",
	}

	assert.Equal(t, Format(c, StyleMLA), Format(c, Style("mla")))
	assert.Equal(t, Format(c, StyleChicago), Format(c, Style("chicago")))
	assert.Equal(t, Format(c, StyleAPA), Format(c, Style("apa")))

	mla := Format(c, Style("mla"))
	assert.Contains(t, mla, `"Solar Trends"`)
	assert.NotContains(t, mla, "(2024)", "lowercase mla must not fall back to APA")
}

func TestFormatManyAuthors(t *testing.T) {
	c := types.Citation{Title: "T", Authors: []string{"A", "B", "C", "D"}}
	assert.Contains(t, Format(c, StyleAPA), "A et al.")
}

func TestValidateQuality(t *testing.T) {
	report := ValidateQuality([]types.Citation{
		{Title: "Full", URL: "https://f.example", Content: "c"},
		{Title: "", URL: "https://n.example", Content: "c"},
	})
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 1, report.Complete)
	assert.Equal(t, 0.5, report.Completeness)
	assert.NotEmpty(t, report.Issues)

	empty := ValidateQuality(nil)
	assert.Equal(t, 0, empty.Total)
	assert.NotEmpty(t, empty.Issues)
}
