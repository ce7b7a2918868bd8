// Package content extracts article text and keywords from candidate URLs
package content

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/markusmobius/go-trafilatura"

	"github.com/feedlab/persnews/pkg/config"
)

// ExtractResult holds extracted article content
type ExtractResult struct {
	Text     string   // plain article text
	Keywords []string // cleaned metadata tags/categories, capped
}

// HTTPExtractor extracts article content from URLs using trafilatura
type HTTPExtractor struct {
	client        *http.Client
	userAgent     string
	minTextLength int
	maxKeywords   int
}

// NewHTTPExtractor creates a new content extractor
func NewHTTPExtractor(cfg config.ExtractionConfig) *HTTPExtractor {
	return &HTTPExtractor{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		userAgent:     cfg.UserAgent,
		minTextLength: cfg.MinTextLength,
		maxKeywords:   cfg.MaxKeywords,
	}
}

// Extract retrieves the article and returns its text and cleaned keywords
func (e *HTTPExtractor) Extract(ctx context.Context, urlStr string) (*ExtractResult, error) {
	// validate URL
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("parse URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid URL: %s", urlStr)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch URL %s: %w", urlStr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d for URL %s", resp.StatusCode, urlStr)
	}

	opts := trafilatura.Options{
		EnableFallback:  true,
		ExcludeComments: true,
		Deduplicate:     true,
		OriginalURL:     parsedURL,
	}

	result, err := trafilatura.Extract(resp.Body, opts)
	if err != nil {
		return nil, fmt.Errorf("extract content from %s: %w", urlStr, err)
	}
	if result == nil {
		return nil, fmt.Errorf("no content extracted from %s", urlStr)
	}

	text := strings.TrimSpace(result.ContentText)
	if text == "" {
		return nil, fmt.Errorf("no text content extracted from %s", urlStr)
	}
	if e.minTextLength > 0 && len(text) < e.minTextLength {
		return nil, fmt.Errorf("extracted text too short (%d chars) from %s", len(text), urlStr)
	}

	// metadata tags and categories serve as article keywords
	raw := make([]string, 0, len(result.Metadata.Tags)+len(result.Metadata.Categories))
	raw = append(raw, result.Metadata.Tags...)
	raw = append(raw, result.Metadata.Categories...)

	return &ExtractResult{
		Text:     text,
		Keywords: CleanKeywords(raw, e.maxKeywords),
	}, nil
}

// dateFmt for published timestamps, RFC3339 with T and Z stripped
const dateFmt = "2006-01-02 15:04:05"

// CleanDate reformats an RFC3339 timestamp for display, passing through
// values it cannot parse
func CleanDate(published string) string {
	t, err := time.Parse(time.RFC3339, published)
	if err != nil {
		return strings.TrimSpace(published)
	}
	return t.UTC().Format(dateFmt)
}
