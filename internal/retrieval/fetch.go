package retrieval

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// maxContentChars caps extracted page text before it reaches prompts.
const maxContentChars = 5000

// defaultFetchTimeout applies when no fetch timeout is configured.
const defaultFetchTimeout = 15 * time.Second

// HTTPFetcher fetches a page and extracts its visible text with the HTML
// tokenizer. Good enough for static pages; JS-heavy pages need RodFetcher.
type HTTPFetcher struct {
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPFetcher creates the default page fetcher. A non-positive timeout
// falls back to defaultFetchTimeout.
func NewHTTPFetcher(logger *zap.Logger, timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &HTTPFetcher{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("fetcher"),
	}
}

// Fetch loads a URL and returns its extracted text content.
func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build fetch request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read page: %w", err)
	}

	return ExtractText(string(body)), nil
}

// skippedElements contribute no visible text.
var skippedElements = map[string]bool{
	"script": true, "style": true, "noscript": true,
	"nav": true, "header": true, "footer": true, "iframe": true,
}

// ExtractText strips markup from an HTML document and returns its visible
// text, whitespace-collapsed and capped at maxContentChars.
func ExtractText(markup string) string {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return ""
	}

	var sb strings.Builder
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode && skippedElements[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(root)

	text := strings.Join(strings.Fields(sb.String()), " ")
	if len(text) > maxContentChars {
		text = text[:maxContentChars]
	}
	return text
}
