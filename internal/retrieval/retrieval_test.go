package retrieval

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"deepresearch/internal/types"
)

// scriptedSearcher returns canned documents per query.
type scriptedSearcher struct {
	results map[string][]types.Document
	err     error
}

func (s *scriptedSearcher) Search(_ context.Context, query string, _ int) ([]types.Document, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.results[query], nil
}

// scriptedFetcher returns canned content per URL.
type scriptedFetcher struct {
	pages map[string]string
}

func (f *scriptedFetcher) Fetch(_ context.Context, url string) (string, error) {
	content, ok := f.pages[url]
	if !ok {
		return "", errors.New("fetch failed")
	}
	return content, nil
}

func longText(word string) string {
	return strings.Repeat(word+" ", 60)
}

func TestRetrieveMergesAndDedupes(t *testing.T) {
	searcher := &scriptedSearcher{results: map[string][]types.Document{
		"solar europe": {
			{Title: "A", URL: "https://a.example", Content: longText("solar")},
			{Title: "B", URL: "https://b.example", Content: longText("panels")},
		},
		"eu policy": {
			{Title: "A again", URL: "https://a.example", Content: longText("dup")},
			{Title: "C", URL: "https://c.example", Content: longText("policy")},
		},
	}}

	r := NewRetriever(10, zap.NewNop(),
		WithSearcher(types.SourceWeb, searcher),
		WithFetcher(&scriptedFetcher{}))

	docs := r.Retrieve(context.Background(), []string{"solar europe", "eu policy"}, []types.SourceKind{types.SourceWeb})
	require.Len(t, docs, 3, "same URL across terms is kept once")

	urls := make(map[string]bool)
	for _, d := range docs {
		urls[d.URL] = true
	}
	assert.True(t, urls["https://a.example"])
	assert.True(t, urls["https://b.example"])
	assert.True(t, urls["https://c.example"])
}

func TestRetrieveFailedSearchReturnsEmpty(t *testing.T) {
	r := NewRetriever(10, zap.NewNop(),
		WithSearcher(types.SourceWeb, &scriptedSearcher{err: errors.New("network down")}),
		WithFetcher(&scriptedFetcher{}))

	docs := r.Retrieve(context.Background(), []string{"anything"}, []types.SourceKind{types.SourceWeb})
	assert.Empty(t, docs, "failed search yields empty slice, not an error")
}

func TestRetrieveEnrichesSnippets(t *testing.T) {
	searcher := &scriptedSearcher{results: map[string][]types.Document{
		"q": {
			{Title: "Thin", URL: "https://thin.example", Content: "short snippet"},
			{Title: "Gone", URL: "https://gone.example", Content: "other snippet"},
		},
	}}
	fetcher := &scriptedFetcher{pages: map[string]string{
		"https://thin.example": longText("full page content"),
	}}

	r := NewRetriever(10, zap.NewNop(),
		WithSearcher(types.SourceWeb, searcher),
		WithFetcher(fetcher))

	docs := r.Retrieve(context.Background(), []string{"q"}, []types.SourceKind{types.SourceWeb})
	require.Len(t, docs, 2)

	byURL := make(map[string]types.Document)
	for _, d := range docs {
		byURL[d.URL] = d
	}
	assert.Greater(t, len(byURL["https://thin.example"].Content), minContentLength)
	assert.Equal(t, "other snippet", byURL["https://gone.example"].Content, "fetch failure keeps the snippet")
}

// limitRecordingSearcher records the per-term limit it is asked for.
type limitRecordingSearcher struct {
	limits []int
}

func (s *limitRecordingSearcher) Search(_ context.Context, _ string, limit int) ([]types.Document, error) {
	s.limits = append(s.limits, limit)
	return nil, nil
}

func TestSearchDepthWidensPerTermLimit(t *testing.T) {
	terms := []string{"a", "b"}
	kinds := []types.SourceKind{types.SourceWeb}

	for depth, want := range map[string]int{"shallow": 4, "medium": 8, "deep": 12} {
		searcher := &limitRecordingSearcher{}
		r := NewRetriever(8, zap.NewNop(),
			WithSearcher(types.SourceWeb, searcher),
			WithFetcher(&scriptedFetcher{}),
			WithSearchDepth(depth))

		r.Retrieve(context.Background(), terms, kinds)
		require.Len(t, searcher.limits, 2, depth)
		assert.Equal(t, want, searcher.limits[0], depth)
	}
}

func TestFetchTimeoutConfigurable(t *testing.T) {
	f := NewHTTPFetcher(zap.NewNop(), 30*time.Second)
	assert.Equal(t, 30*time.Second, f.httpClient.Timeout)

	fallback := NewHTTPFetcher(zap.NewNop(), 0)
	assert.Equal(t, defaultFetchTimeout, fallback.httpClient.Timeout)

	r := NewRetriever(5, zap.NewNop(), WithFetchTimeout(30*time.Second))
	httpFetcher, ok := r.fetcher.(*HTTPFetcher)
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, httpFetcher.httpClient.Timeout)
}

func TestRetrieveCapsAtMaxSources(t *testing.T) {
	var many []types.Document
	for i := 0; i < 8; i++ {
		many = append(many, types.Document{
			Title:   "T",
			URL:     fmt.Sprintf("https://site%d.example", i),
			Content: longText("words"),
		})
	}
	r := NewRetriever(3, zap.NewNop(),
		WithSearcher(types.SourceWeb, &scriptedSearcher{results: map[string][]types.Document{"q": many}}),
		WithFetcher(&scriptedFetcher{}))

	docs := r.Retrieve(context.Background(), []string{"q"}, nil)
	assert.Len(t, docs, 3)
}

func TestParseDDGResults(t *testing.T) {
	markup := `<html><body>
		<div class="result">
			<a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fsolar">Solar power in Europe</a>
			<a class="result__snippet">Installed capacity grew rapidly during 2023.</a>
		</div>
		<div class="result">
			<a class="result__a" href="https://plain.example/page">Plain link result</a>
			<div class="result__snippet">Another snippet here.</div>
		</div>
	</body></html>`

	docs := parseDDGResults(markup, 10)
	require.Len(t, docs, 2)
	assert.Equal(t, "https://example.com/solar", docs[0].URL)
	assert.Equal(t, "Solar power in Europe", docs[0].Title)
	assert.Equal(t, "Installed capacity grew rapidly during 2023.", docs[0].Content)
	assert.Equal(t, "https://plain.example/page", docs[1].URL)
}

func TestParseDDGResultsLimit(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("<html><body>")
	for i := 0; i < 5; i++ {
		fmt.Fprintf(&sb, `<a class="result__a" href="https://r%d.example">R%d</a>`, i, i)
	}
	sb.WriteString("</body></html>")

	docs := parseDDGResults(sb.String(), 2)
	assert.Len(t, docs, 2)
}

func TestCleanDDGHref(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"//duckduckgo.com/l/?uddg=https%3A%2F%2Ftarget.example%2Fa", "https://target.example/a"},
		{"https://direct.example/page", "https://direct.example/page"},
		{"javascript:void(0)", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanDDGHref(tt.in), tt.in)
	}
}

func TestExtractText(t *testing.T) {
	markup := `<html><head><title>T</title><style>body{}</style></head>
	<body><nav>menu items</nav><script>var x=1;</script>
	<p>Visible   paragraph
	text.</p><footer>footer text</footer></body></html>`

	text := ExtractText(markup)
	assert.Contains(t, text, "Visible paragraph text.")
	assert.NotContains(t, text, "var x")
	assert.NotContains(t, text, "menu items")
	assert.NotContains(t, text, "footer text")
}

func TestArxivSearch(t *testing.T) {
	feed := `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/2401.00001v1</id>
    <title>Grid-Scale  Storage
	 Survey</title>
    <summary>We survey storage technologies for renewable grids.</summary>
    <published>2024-01-01T00:00:00Z</published>
    <author><name>A. Researcher</name></author>
    <author><name>B. Author</name></author>
  </entry>
</feed>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "all:grid storage", r.URL.Query().Get("search_query"))
		w.Write([]byte(feed))
	}))
	defer srv.Close()

	s := NewArxivSearcher(zap.NewNop())
	s.endpoint = srv.URL

	docs, err := s.Search(context.Background(), "grid storage", 5)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Grid-Scale Storage Survey", docs[0].Title)
	assert.Equal(t, "http://arxiv.org/abs/2401.00001v1", docs[0].URL)
	assert.Equal(t, types.SourceAcademic, docs[0].SourceType)
	assert.Equal(t, []string{"A. Researcher", "B. Author"}, docs[0].Authors)
	assert.NotEmpty(t, docs[0].Content)
}

func TestScoreSource(t *testing.T) {
	rich := types.Document{
		Title:      "Survey",
		URL:        "https://journal.example/paper",
		Content:    strings.Repeat("x", 3000),
		SourceType: types.SourceAcademic,
		Authors:    []string{"A"},
	}
	thin := types.Document{URL: "http://blog.example", Content: strings.Repeat("x", 120)}

	assert.Greater(t, ScoreSource(rich), ScoreSource(thin))
	assert.LessOrEqual(t, ScoreSource(rich), 1.0)
	assert.GreaterOrEqual(t, ScoreSource(thin), 0.0)
}
