package retrieval

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"deepresearch/internal/types"
)

const ddgEndpoint = "https://html.duckduckgo.com/html/"

// userAgent identifies us to search endpoints that reject blank agents.
const userAgent = "Mozilla/5.0 (X11; Linux x86_64) deepresearch/1.0"

// DuckDuckGoSearcher queries the HTML (no-JS) DuckDuckGo endpoint and parses
// result anchors out of the markup.
type DuckDuckGoSearcher struct {
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewDuckDuckGoSearcher creates a web searcher with a sane timeout.
func NewDuckDuckGoSearcher(logger *zap.Logger) *DuckDuckGoSearcher {
	return &DuckDuckGoSearcher{
		endpoint:   ddgEndpoint,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		logger:     logger.Named("ddg"),
	}
}

// Search returns up to limit web documents for the query. Content holds the
// result snippet; the retriever fetches full page text separately.
func (s *DuckDuckGoSearcher) Search(ctx context.Context, query string, limit int) ([]types.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.endpoint+"?q="+url.QueryEscape(query), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}

	docs := parseDDGResults(string(body), limit)
	s.logger.Debug("search complete", zap.String("query", query), zap.Int("results", len(docs)))
	return docs, nil
}

// parseDDGResults walks the result markup collecting result__a anchors and
// their result__snippet siblings.
func parseDDGResults(markup string, limit int) []types.Document {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil
	}

	var docs []types.Document
	pending := -1

	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case n.Data == "a" && hasClass(n, "result__a"):
				if len(docs) < limit {
					href := cleanDDGHref(attr(n, "href"))
					if href != "" {
						docs = append(docs, types.Document{
							Title:       textContent(n),
							URL:         href,
							SourceType:  types.SourceWeb,
							RetrievedAt: time.Now(),
						})
						pending = len(docs) - 1
					}
				}
			case hasClass(n, "result__snippet"):
				if pending >= 0 {
					docs[pending].Content = textContent(n)
					pending = -1
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(root)
	return docs
}

// cleanDDGHref unwraps DuckDuckGo's redirect links (//duckduckgo.com/l/?uddg=...)
// to the target URL.
func cleanDDGHref(href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if strings.Contains(parsed.Path, "/l/") {
		if target := parsed.Query().Get("uddg"); target != "" {
			href = target
		}
	}
	if !strings.HasPrefix(href, "http") {
		return ""
	}
	return href
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// textContent joins the text nodes under n, whitespace-collapsed.
func textContent(n *html.Node) string {
	var sb strings.Builder
	var traverse func(*html.Node)
	traverse = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
			sb.WriteString(" ")
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
