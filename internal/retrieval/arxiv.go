package retrieval

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"deepresearch/internal/types"
)

const arxivEndpoint = "http://export.arxiv.org/api/query"

// ArxivSearcher queries the arXiv Atom API for academic sources.
type ArxivSearcher struct {
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewArxivSearcher creates an academic searcher.
func NewArxivSearcher(logger *zap.Logger) *ArxivSearcher {
	return &ArxivSearcher{
		endpoint:   arxivEndpoint,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		logger:     logger.Named("arxiv"),
	}
}

type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID        string        `xml:"id"`
	Title     string        `xml:"title"`
	Summary   string        `xml:"summary"`
	Published string        `xml:"published"`
	Authors   []arxivAuthor `xml:"author"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

// Search returns up to limit academic documents. The abstract serves as
// content; arXiv abstracts are substantial enough to extract findings from.
func (s *ArxivSearcher) Search(ctx context.Context, query string, limit int) ([]types.Document, error) {
	params := url.Values{}
	params.Set("search_query", "all:"+query)
	params.Set("max_results", fmt.Sprintf("%d", limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build arxiv request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arxiv request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read arxiv response: %w", err)
	}

	var feed arxivFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("failed to parse arxiv feed: %w", err)
	}

	var docs []types.Document
	for _, entry := range feed.Entries {
		var authors []string
		for _, a := range entry.Authors {
			if a.Name != "" {
				authors = append(authors, a.Name)
			}
		}
		docs = append(docs, types.Document{
			Title:       strings.Join(strings.Fields(entry.Title), " "),
			URL:         strings.TrimSpace(entry.ID),
			Content:     strings.TrimSpace(entry.Summary),
			SourceType:  types.SourceAcademic,
			Authors:     authors,
			Published:   entry.Published,
			RetrievedAt: time.Now(),
		})
	}

	s.logger.Debug("arxiv search complete", zap.String("query", query), zap.Int("results", len(docs)))
	return docs, nil
}
