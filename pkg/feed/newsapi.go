package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/feedlab/persnews/pkg/config"
	"github.com/feedlab/persnews/pkg/domain"
)

const newsAPIEndpoint = "https://newsapi.org/v2/everything"

// NewsAPI searches candidate articles through newsapi.org
type NewsAPI struct {
	client    *http.Client
	endpoint  string
	apiKey    string
	language  string
	pageSize  int
	userAgent string
}

// NewNewsAPI creates a NewsAPI source from configuration
func NewNewsAPI(cfg config.FetchConfig) *NewsAPI {
	return &NewsAPI{
		client:    newHTTPClient(cfg.Timeout),
		endpoint:  newsAPIEndpoint,
		apiKey:    cfg.APIKey,
		language:  cfg.Language,
		pageSize:  cfg.PageSize,
		userAgent: cfg.UserAgent,
	}
}

// newsAPIResponse mirrors the /v2/everything response shape
type newsAPIResponse struct {
	Status   string `json:"status"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Articles []struct {
		Author      string `json:"author"`
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		URLToImage  string `json:"urlToImage"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

// Search returns candidate articles for the keyword
func (n *NewsAPI) Search(ctx context.Context, keyword string) ([]domain.Article, error) {
	params := url.Values{}
	params.Set("q", keyword)
	params.Set("language", n.language)
	params.Set("pageSize", strconv.Itoa(n.pageSize))
	params.Set("apiKey", n.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.endpoint+"?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", n.userAgent)

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", keyword, err)
	}
	defer resp.Body.Close()

	var body newsAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response for %q: %w", keyword, err)
	}

	if body.Status != "ok" {
		return nil, fmt.Errorf("newsapi error for %q: %s (%s)", keyword, body.Message, body.Code)
	}

	articles := make([]domain.Article, 0, len(body.Articles))
	for _, a := range body.Articles {
		articles = append(articles, domain.Article{
			URL:         a.URL,
			Title:       a.Title,
			Author:      a.Author,
			PublishedAt: a.PublishedAt,
			ImageURL:    a.URLToImage,
			Description: a.Description,
		})
	}
	return articles, nil
}
