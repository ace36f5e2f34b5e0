// Package retrieval implements the document retrieval collaborator: web and
// academic search, page content extraction, and source quality scoring. A
// fully failed search returns an empty slice, never an error; the pipeline
// decides what an empty phase means.
package retrieval

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"deepresearch/internal/types"
)

// fetchConcurrency bounds parallel page fetches within one retrieval call.
// The pipeline above this boundary is strictly sequential.
const fetchConcurrency = 4

// minContentLength is the shortest page text worth keeping over the search
// snippet.
const minContentLength = 100

// Searcher finds candidate documents for one query.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]types.Document, error)
}

// Fetcher loads the text content of a page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Retriever merges results from per-kind searchers and enriches them with
// fetched page content.
type Retriever struct {
	searchers    map[types.SourceKind]Searcher
	fetcher      Fetcher
	maxSources   int
	depth        string
	fetchTimeout time.Duration
	logger       *zap.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithSearcher registers a searcher for a source kind.
func WithSearcher(kind types.SourceKind, s Searcher) Option {
	return func(r *Retriever) { r.searchers[kind] = s }
}

// WithFetcher replaces the page fetcher.
func WithFetcher(f Fetcher) Option {
	return func(r *Retriever) { r.fetcher = f }
}

// WithSearchDepth sets how aggressively each term is searched: "shallow",
// "medium" (the default) or "deep". Deeper searches over-fetch candidates
// per term and let quality ranking trim back down to the source cap.
func WithSearchDepth(depth string) Option {
	return func(r *Retriever) {
		if depth != "" {
			r.depth = depth
		}
	}
}

// WithFetchTimeout sets the page fetch timeout used by the default HTTP
// fetcher. Ignored when WithFetcher supplies a custom fetcher.
func WithFetchTimeout(d time.Duration) Option {
	return func(r *Retriever) { r.fetchTimeout = d }
}

// NewRetriever builds a retriever. Without options it searches DuckDuckGo for
// web sources and arXiv for academic ones.
func NewRetriever(maxSources int, logger *zap.Logger, opts ...Option) *Retriever {
	if maxSources <= 0 {
		maxSources = 10
	}
	r := &Retriever{
		searchers:  make(map[types.SourceKind]Searcher),
		maxSources: maxSources,
		depth:      "medium",
		logger:     logger.Named("retriever"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if len(r.searchers) == 0 {
		r.searchers[types.SourceWeb] = NewDuckDuckGoSearcher(logger)
		r.searchers[types.SourceAcademic] = NewArxivSearcher(logger)
	}
	if r.fetcher == nil {
		r.fetcher = NewHTTPFetcher(logger, r.fetchTimeout)
	}
	return r
}

// Retrieve searches every term against every requested source kind, merges
// the results, deduplicates by URL, ranks by source quality, and caps at the
// configured maximum. Individual search failures are logged and skipped.
func (r *Retriever) Retrieve(ctx context.Context, terms []string, kinds []types.SourceKind) []types.Document {
	if len(kinds) == 0 {
		kinds = []types.SourceKind{types.SourceWeb}
	}

	perTermLimit := r.maxSources
	if len(terms) > 1 {
		perTermLimit = (r.maxSources + len(terms) - 1) / len(terms)
	}
	perTermLimit *= depthMultiplier(r.depth)

	seen := make(map[string]bool)
	var docs []types.Document
	for _, kind := range kinds {
		searcher, ok := r.searchers[kind]
		if !ok {
			// Report-kind sources come from the web searcher.
			searcher, ok = r.searchers[types.SourceWeb]
			if !ok {
				continue
			}
		}
		for _, term := range terms {
			results, err := searcher.Search(ctx, term, perTermLimit)
			if err != nil {
				r.logger.Warn("search failed",
					zap.String("kind", string(kind)),
					zap.String("term", term),
					zap.Error(err))
				continue
			}
			for _, doc := range results {
				if doc.URL == "" || seen[doc.URL] {
					continue
				}
				seen[doc.URL] = true
				docs = append(docs, doc)
			}
		}
	}

	r.enrichContent(ctx, docs)

	kept := docs[:0]
	for _, doc := range docs {
		if doc.Content != "" {
			kept = append(kept, doc)
		}
	}
	docs = kept

	sort.SliceStable(docs, func(i, j int) bool {
		return ScoreSource(docs[i]) > ScoreSource(docs[j])
	})
	if len(docs) > r.maxSources {
		docs = docs[:r.maxSources]
	}

	r.logger.Info("retrieval complete",
		zap.Int("documents", len(docs)),
		zap.Strings("terms", terms))
	return docs
}

// depthMultiplier converts a search depth into a per-term candidate
// multiplier. Unknown values get the medium behavior.
func depthMultiplier(depth string) int {
	switch depth {
	case "shallow":
		return 1
	case "deep":
		return 3
	default: // medium
		return 2
	}
}

// enrichContent fetches page text for documents that only carry a search
// snippet. Fetch failures keep the snippet.
func (r *Retriever) enrichContent(ctx context.Context, docs []types.Document) {
	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(fetchConcurrency)

	var mu sync.Mutex
	for i := range docs {
		if len(docs[i].Content) >= minContentLength {
			continue
		}
		i := i
		grp.Go(func() error {
			content, err := r.fetcher.Fetch(grpCtx, docs[i].URL)
			if err != nil {
				r.logger.Debug("fetch failed, keeping snippet",
					zap.String("url", docs[i].URL), zap.Error(err))
				return nil
			}
			if len(content) >= minContentLength {
				mu.Lock()
				docs[i].Content = content
				mu.Unlock()
			}
			return nil
		})
	}
	_ = grp.Wait()
}
