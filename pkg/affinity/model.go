// Package affinity implements the collaborative-filtering model that learns
// per-user keyword preferences from explicit 1..5 ratings.
//
// The model keeps an in-memory snapshot of the full rating matrix and fits a
// latent-factor model (biased matrix factorization trained by SGD) on a
// shuffled training split. Predictions are generated only for (user, keyword)
// pairs landing in the held-out split; a user absent from that split gets an
// empty result and callers fall back to the cold-start keyword set.
package affinity

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/feedlab/persnews/pkg/domain"
	"github.com/feedlab/persnews/pkg/repository"
)

const (
	ratingMin = 1.0
	ratingMax = 5.0
)

// RatingStore provides the persisted rating set and keyword lookup
type RatingStore interface {
	ListRatings(ctx context.Context) ([]domain.Rating, error)
	GetKeyword(ctx context.Context, keywordID int64) (string, error)
}

// Config holds training parameters for the factorization
type Config struct {
	Factors        int     // dimension of latent factor vectors
	Epochs         int     // SGD passes over the training split
	LearningRate   float64
	Regularization float64
	TestFraction   float64 // held-out fraction, predictions cover only these pairs
	Seed           int64   // 0 means time-based
}

// Model serves ranked keyword predictions from the latest rating snapshot.
// The snapshot is replaced atomically by Refresh/AppendRating; each predict
// call fits a fresh factorization against the snapshot it captured, so a
// model is never paired with ratings it was not trained from.
type Model struct {
	store RatingStore
	cfg   Config

	mu       sync.RWMutex
	snapshot []domain.Rating

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New creates a model bound to the given store. The snapshot is empty until
// the first Refresh.
func New(store RatingStore, cfg Config) *Model {
	if cfg.Factors <= 0 {
		cfg.Factors = 20
	}
	if cfg.Epochs <= 0 {
		cfg.Epochs = 20
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = 0.005
	}
	if cfg.Regularization <= 0 {
		cfg.Regularization = 0.02
	}
	if cfg.TestFraction <= 0 || cfg.TestFraction >= 1 {
		cfg.TestFraction = 0.25
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Model{
		store: store,
		cfg:   cfg,
		rng:   rand.New(rand.NewSource(seed)), //nolint:gosec // not used for crypto
	}
}

// Refresh pulls the complete rating set from the store and swaps it in as the
// active snapshot. Empty or tiny rating sets are fine, only store failures
// are reported.
func (m *Model) Refresh(ctx context.Context) error {
	ratings, err := m.store.ListRatings(ctx)
	if err != nil {
		return fmt.Errorf("load ratings: %w", err)
	}

	m.mu.Lock()
	m.snapshot = ratings
	m.mu.Unlock()

	log.Printf("[DEBUG] affinity snapshot rebuilt, %d ratings", len(ratings))
	return nil
}

// AppendRating incorporates one new or changed rating. There is no
// incremental fit, the in-memory snapshot grows by one row and the next
// predict call rebuilds from it, exactly as if the store had been reloaded.
func (m *Model) AppendRating(userID, keywordID int64, rating int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// last-write-wins for an existing (user, keyword) pair
	next := make([]domain.Rating, 0, len(m.snapshot)+1)
	for _, r := range m.snapshot {
		if r.UserID == userID && r.KeywordID == keywordID {
			continue
		}
		next = append(next, r)
	}
	next = append(next, domain.Rating{UserID: userID, KeywordID: keywordID, Rating: rating})
	m.snapshot = next
}

// PredictTopKeywords returns up to amount keyword texts ranked by predicted
// rating for the user, highest first. Predictions exist only for pairs that
// landed in the held-out split; an unknown user or one missing from the
// split gets an empty result.
func (m *Model) PredictTopKeywords(ctx context.Context, userID int64, amount int) ([]string, error) {
	if amount <= 0 {
		amount = 5
	}

	m.mu.RLock()
	snapshot := make([]domain.Rating, len(m.snapshot))
	copy(snapshot, m.snapshot)
	m.mu.RUnlock()

	if len(snapshot) == 0 {
		return nil, nil
	}

	trainSet, testSet := m.split(snapshot)

	model := newFactorModel(m.cfg)
	m.rngMu.Lock()
	model.fit(trainSet, m.rng)
	m.rngMu.Unlock()

	// predicted ratings for the user's held-out pairs, in split order
	type estimate struct {
		keywordID int64
		value     float64
	}
	var estimates []estimate
	for _, r := range testSet {
		if r.UserID != userID {
			continue
		}
		estimates = append(estimates, estimate{keywordID: r.KeywordID, value: model.predict(r.UserID, r.KeywordID)})
	}

	// stable sort keeps split order for ties
	sort.SliceStable(estimates, func(i, j int) bool { return estimates[i].value > estimates[j].value })

	keywords := make([]string, 0, amount)
	for _, est := range estimates {
		if len(keywords) == amount {
			break
		}
		text, err := m.store.GetKeyword(ctx, est.keywordID)
		if errors.Is(err, repository.ErrKeywordNotFound) {
			log.Printf("[WARN] unresolvable keyword id %d, skipped", est.keywordID)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("resolve keyword %d: %w", est.keywordID, err)
		}
		keywords = append(keywords, text)
	}
	return keywords, nil
}

// split shuffles the snapshot and carves off the held-out fraction.
// Training and held-out subsets are always disjoint.
func (m *Model) split(ratings []domain.Rating) (trainSet, testSet []domain.Rating) {
	shuffled := make([]domain.Rating, len(ratings))
	copy(shuffled, ratings)

	m.rngMu.Lock()
	m.rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	m.rngMu.Unlock()

	testLen := int(math.Ceil(float64(len(shuffled)) * m.cfg.TestFraction))
	if testLen > len(shuffled) {
		testLen = len(shuffled)
	}
	return shuffled[testLen:], shuffled[:testLen]
}
