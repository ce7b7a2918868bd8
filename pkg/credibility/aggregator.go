// Package credibility turns raw article text into a single credibility score
// by fanning out sentence-level classifier calls and averaging the results.
package credibility

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrClassification indicates no scoring unit could be classified. Callers
// decide whether to drop the article or degrade the response.
var ErrClassification = errors.New("classification failed")

// Scorer is the opaque per-unit classifier capability. It must be safe for
// concurrent use; the probability is the likelihood the text is non-deceptive.
type Scorer interface {
	Score(ctx context.Context, text string) (float64, error)
}

// Config holds aggregation settings
type Config struct {
	Timeout    time.Duration // overall budget for one article, 0 disables
	MaxWorkers int           // concurrent unit classifications
}

// Aggregator scores whole articles through a shared Scorer. Stateless apart
// from the read-only scorer, aggregations for different articles may run
// concurrently.
type Aggregator struct {
	scorer     Scorer
	timeout    time.Duration
	maxWorkers int
}

// NewAggregator creates an aggregator around the given scorer
func NewAggregator(scorer Scorer, cfg Config) *Aggregator {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 8
	}
	return &Aggregator{scorer: scorer, timeout: cfg.Timeout, maxWorkers: cfg.MaxWorkers}
}

// ScoreArticle splits the body into sentence units, adds the title as one
// more unit, classifies every unit concurrently and returns the arithmetic
// mean of the probabilities. It waits for all units, there is no
// first-N-complete shortcut. Units that fail to classify are excluded from
// the mean; if every unit fails the call fails with ErrClassification.
func (a *Aggregator) ScoreArticle(ctx context.Context, body, title string) (float64, error) {
	units := SplitUnits(body, title)
	if len(units) == 0 {
		return 0, fmt.Errorf("%w: no scorable units", ErrClassification)
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	type unitResult struct {
		prob float64
		err  error
	}
	results := make([]unitResult, len(units))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.maxWorkers)
	for i, unit := range units {
		g.Go(func() error {
			prob, err := a.scorer.Score(gctx, unit)
			results[i] = unitResult{prob: prob, err: err}
			return nil // unit failures are collected, not propagated
		})
	}
	_ = g.Wait() // workers never return errors

	var sum float64
	var ok int
	var lastErr error
	for i, res := range results {
		if res.err != nil {
			log.Printf("[WARN] unit %d of %d failed classification: %v", i+1, len(units), res.err)
			lastErr = res.err
			continue
		}
		sum += res.prob
		ok++
	}

	if ok == 0 {
		return 0, fmt.Errorf("%w: all %d units failed: %v", ErrClassification, len(units), lastErr)
	}
	return sum / float64(ok), nil
}

// SplitUnits breaks article text into independently scorable units, one per
// sentence-terminating period, plus the title. Whitespace is trimmed and
// empty units are dropped, so the classifier is never called on blank input.
func SplitUnits(body, title string) []string {
	parts := strings.Split(body, ".")
	units := make([]string, 0, len(parts)+1)
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			units = append(units, t)
		}
	}
	if t := strings.TrimSpace(title); t != "" {
		units = append(units, t)
	}
	return units
}
