// Package feed fetches candidate articles for a keyword from an external
// news source. Two sources are provided: the NewsAPI JSON endpoint and
// Google News RSS search for keyless operation.
package feed

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/feedlab/persnews/pkg/config"
	"github.com/feedlab/persnews/pkg/domain"
)

// Source searches candidate articles for one keyword
type Source interface {
	Search(ctx context.Context, keyword string) ([]domain.Article, error)
}

// NewSource picks a source implementation from configuration
func NewSource(cfg config.FetchConfig) (Source, error) {
	switch cfg.Provider {
	case "newsapi":
		return NewNewsAPI(cfg), nil
	case "rss":
		return NewGoogleNews(cfg), nil
	default:
		return nil, fmt.Errorf("unknown fetch provider %q", cfg.Provider)
	}
}

// newHTTPClient builds the shared client shape for both sources
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
