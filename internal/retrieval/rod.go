package retrieval

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// RodFetcher renders pages in a headless browser before extracting text.
// Selected by config for JS-heavy sources; the plain HTTPFetcher covers
// everything else.
type RodFetcher struct {
	browser *rod.Browser
	logger  *zap.Logger
}

// NewRodFetcher launches a headless browser and connects to it.
func NewRodFetcher(ctx context.Context, logger *zap.Logger) (*RodFetcher, error) {
	controlURL, err := launcher.New().Headless(true).Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	return &RodFetcher{
		browser: browser,
		logger:  logger.Named("rod"),
	}, nil
}

// Fetch renders a page and returns its extracted text.
func (f *RodFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	page, err := f.browser.Page(proto.TargetCreateTarget{URL: pageURL})
	if err != nil {
		return "", fmt.Errorf("failed to open page: %w", err)
	}
	defer page.Close()

	page = page.Context(ctx)
	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("page load failed: %w", err)
	}

	markup, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("failed to read page html: %w", err)
	}

	f.logger.Debug("rendered page", zap.String("url", pageURL))
	return ExtractText(markup), nil
}

// Close shuts the browser down.
func (f *RodFetcher) Close() error {
	if f.browser == nil {
		return nil
	}
	return f.browser.Close()
}
