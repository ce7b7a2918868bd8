package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/feedlab/persnews/pkg/config"
	"github.com/feedlab/persnews/pkg/domain"
)

const googleNewsEndpoint = "https://news.google.com/rss/search"

// GoogleNews searches candidate articles through the Google News RSS search
// feed. Needs no API key, used as the default source.
type GoogleNews struct {
	client    *http.Client
	endpoint  string
	language  string
	pageSize  int
	userAgent string
}

// NewGoogleNews creates a Google News RSS source from configuration
func NewGoogleNews(cfg config.FetchConfig) *GoogleNews {
	return &GoogleNews{
		client:    newHTTPClient(cfg.Timeout),
		endpoint:  googleNewsEndpoint,
		language:  cfg.Language,
		pageSize:  cfg.PageSize,
		userAgent: cfg.UserAgent,
	}
}

// Search returns candidate articles for the keyword
func (g *GoogleNews) Search(ctx context.Context, keyword string) ([]domain.Article, error) {
	params := url.Values{}
	params.Set("q", keyword)
	params.Set("hl", g.language)

	body, err := g.fetch(ctx, g.endpoint+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer body.Close()

	parser := gofeed.NewParser()
	parsed, err := parser.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse feed for %q: %w", keyword, err)
	}

	limit := g.pageSize
	if limit > len(parsed.Items) {
		limit = len(parsed.Items)
	}

	articles := make([]domain.Article, 0, limit)
	for _, item := range parsed.Items[:limit] {
		article := domain.Article{
			URL:         item.Link,
			Title:       item.Title,
			Description: item.Description,
		}
		if item.Author != nil {
			article.Author = item.Author.Name
		}
		if item.PublishedParsed != nil {
			article.PublishedAt = item.PublishedParsed.UTC().Format(time.RFC3339)
		} else {
			article.PublishedAt = item.Published
		}
		if item.Image != nil {
			article.ImageURL = item.Image.URL
		}
		articles = append(articles, article)
	}
	return articles, nil
}

// fetch retrieves the raw feed body
func (g *GoogleNews) fetch(ctx context.Context, feedURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", feedURL, err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, feedURL)
	}
	return resp.Body, nil
}
