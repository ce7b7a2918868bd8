// Package service glues the rating store, affinity model, candidate sources
// and credibility scoring into the personalization flow.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/feedlab/persnews/pkg/content"
	"github.com/feedlab/persnews/pkg/domain"
)

const defaultPredictions = 5

// ErrInvalidRating indicates a rating outside the 1..5 scale
var ErrInvalidRating = errors.New("rating must be between 1 and 5 inclusive")

// RatingStore persists explicit user ratings
type RatingStore interface {
	UpsertRating(ctx context.Context, userID int64, keywordText string, rating int) (int64, error)
	HasRatings(ctx context.Context, userID int64) (bool, error)
}

// Recommender ranks keywords for a user from learned affinity
type Recommender interface {
	Refresh(ctx context.Context) error
	AppendRating(userID, keywordID int64, rating int)
	PredictTopKeywords(ctx context.Context, userID int64, amount int) ([]string, error)
}

// Source searches candidate articles for a keyword
type Source interface {
	Search(ctx context.Context, keyword string) ([]domain.Article, error)
}

// Extractor pulls article text and keywords from a URL
type Extractor interface {
	Extract(ctx context.Context, url string) (*content.ExtractResult, error)
}

// TruthScorer aggregates a credibility score for an article
type TruthScorer interface {
	ScoreArticle(ctx context.Context, body, title string) (float64, error)
}

// Config holds orchestrator settings
type Config struct {
	DefaultKeywords []string      // cold-start set for users with no ratings
	MaxConcurrent   int           // concurrent keyword pipelines
	RefreshInterval time.Duration // background model rebuild interval
}

// Orchestrator decides per user between cold-start keywords and model
// predictions, then builds scored headlines for each keyword
type Orchestrator struct {
	store     RatingStore
	model     Recommender
	source    Source
	extractor Extractor
	scorer    TruthScorer
	cfg       Config

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New creates an orchestrator with all collaborators wired in
func New(store RatingStore, model Recommender, source Source, extractor Extractor, scorer TruthScorer, cfg Config) *Orchestrator {
	if len(cfg.DefaultKeywords) == 0 {
		cfg.DefaultKeywords = []string{"apple", "google", "covid19", "usa", "cats"}
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 5
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 15 * time.Minute
	}
	return &Orchestrator{store: store, model: model, source: source, extractor: extractor, scorer: scorer, cfg: cfg}
}

// KeywordsFor resolves the keyword set for the user: the fixed cold-start
// set for users without ratings or with no predictions in the held-out
// split, model predictions otherwise.
func (o *Orchestrator) KeywordsFor(ctx context.Context, userID int64) ([]string, error) {
	rated, err := o.store.HasRatings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("cold-start check for user %d: %w", userID, err)
	}
	if !rated {
		log.Printf("[INFO] user %d has no ratings, using default keywords", userID)
		return o.cfg.DefaultKeywords, nil
	}

	keywords, err := o.model.PredictTopKeywords(ctx, userID, defaultPredictions)
	if err != nil {
		return nil, fmt.Errorf("predict keywords for user %d: %w", userID, err)
	}
	if len(keywords) == 0 {
		log.Printf("[INFO] no predictions for user %d, using default keywords", userID)
		return o.cfg.DefaultKeywords, nil
	}
	return keywords, nil
}

// Personalize returns scored headlines for the user. Keywords are processed
// concurrently; a failing keyword or article degrades to omission, the
// response as a whole never fails for one article's problem.
func (o *Orchestrator) Personalize(ctx context.Context, userID int64) ([]domain.Headline, error) {
	keywords, err := o.KeywordsFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	perKeyword := make([][]domain.Headline, len(keywords))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.MaxConcurrent)

	for i, keyword := range keywords {
		g.Go(func() error {
			perKeyword[i] = o.headlinesFor(gctx, keyword)
			return nil
		})
	}
	_ = g.Wait() // keyword workers only log failures

	var headlines []domain.Headline
	for _, hs := range perKeyword {
		headlines = append(headlines, hs...)
	}
	return headlines, nil
}

// headlinesFor builds scored headlines for one keyword, dropping articles
// that fail to fetch, extract or score
func (o *Orchestrator) headlinesFor(ctx context.Context, keyword string) []domain.Headline {
	articles, err := o.source.Search(ctx, keyword)
	if err != nil {
		log.Printf("[WARN] search for keyword %q failed: %v", keyword, err)
		return nil
	}

	headlines := make([]domain.Headline, 0, len(articles))
	for _, article := range articles {
		headline, err := o.buildHeadline(ctx, &article)
		if err != nil {
			log.Printf("[WARN] dropped article %s: %v", article.URL, err)
			continue
		}
		headlines = append(headlines, *headline)
	}
	return headlines
}

// buildHeadline extracts, scores and assembles one headline
func (o *Orchestrator) buildHeadline(ctx context.Context, article *domain.Article) (*domain.Headline, error) {
	extracted, err := o.extractor.Extract(ctx, article.URL)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}

	title := content.CleanString(article.Title)
	score, err := o.scorer.ScoreArticle(ctx, extracted.Text, title)
	if err != nil {
		return nil, fmt.Errorf("score: %w", err)
	}

	return &domain.Headline{
		URL:         content.CleanString(article.URL),
		Title:       title,
		Author:      content.CleanString(article.Author),
		PublishedAt: content.CleanDate(article.PublishedAt),
		ImageURL:    article.ImageURL,
		Description: content.CleanString(article.Description),
		Keywords:    extracted.Keywords,
		TruthScore:  fmt.Sprintf("%.2f%%", score*100),
	}, nil
}

// Rate validates and persists a rating, then folds it into the model
func (o *Orchestrator) Rate(ctx context.Context, userID int64, keyword string, rating int) error {
	if rating < 1 || rating > 5 {
		return ErrInvalidRating
	}

	keywordID, err := o.store.UpsertRating(ctx, userID, keyword, rating)
	if err != nil {
		return fmt.Errorf("persist rating: %w", err)
	}

	o.model.AppendRating(userID, keywordID, rating)
	return nil
}

// Start launches the background model refresher
func (o *Orchestrator) Start(ctx context.Context) {
	ctx, o.cancel = context.WithCancel(ctx)

	o.wg.Add(1)
	go o.refreshWorker(ctx)

	log.Printf("[INFO] orchestrator started, model refresh every %v", o.cfg.RefreshInterval)
}

// Stop shuts the refresher down and waits for it
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
	log.Printf("[INFO] orchestrator stopped")
}

// refreshWorker rebuilds the affinity snapshot on a fixed interval
func (o *Orchestrator) refreshWorker(ctx context.Context) {
	defer o.wg.Done()

	// initial build so first requests see the persisted ratings
	if err := o.model.Refresh(ctx); err != nil {
		log.Printf("[WARN] initial model refresh failed: %v", err)
	}

	ticker := time.NewTicker(o.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := o.model.Refresh(ctx); err != nil {
				log.Printf("[WARN] model refresh failed: %v", err)
			}
		}
	}
}
