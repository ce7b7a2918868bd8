package affinity

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedlab/persnews/pkg/domain"
	"github.com/feedlab/persnews/pkg/repository"
)

// storeMock implements RatingStore for tests
type storeMock struct {
	ListRatingsFunc func(ctx context.Context) ([]domain.Rating, error)
	GetKeywordFunc  func(ctx context.Context, keywordID int64) (string, error)
}

func (m *storeMock) ListRatings(ctx context.Context) ([]domain.Rating, error) {
	return m.ListRatingsFunc(ctx)
}

func (m *storeMock) GetKeyword(ctx context.Context, keywordID int64) (string, error) {
	return m.GetKeywordFunc(ctx, keywordID)
}

// fixedStore returns a mock backed by a static rating set and keyword table
func fixedStore(ratings []domain.Rating, keywords map[int64]string) *storeMock {
	return &storeMock{
		ListRatingsFunc: func(context.Context) ([]domain.Rating, error) { return ratings, nil },
		GetKeywordFunc: func(_ context.Context, id int64) (string, error) {
			text, ok := keywords[id]
			if !ok {
				return "", repository.ErrKeywordNotFound
			}
			return text, nil
		},
	}
}

func TestModel_PredictTopKeywords(t *testing.T) {
	keywords := map[int64]string{1: "apple", 2: "google", 3: "covid19", 4: "usa"}
	ratings := []domain.Rating{
		{UserID: 1, KeywordID: 1, Rating: 5},
		{UserID: 1, KeywordID: 2, Rating: 1},
		{UserID: 1, KeywordID: 3, Rating: 4},
		{UserID: 1, KeywordID: 4, Rating: 2},
		{UserID: 2, KeywordID: 1, Rating: 2},
		{UserID: 2, KeywordID: 2, Rating: 5},
		{UserID: 2, KeywordID: 3, Rating: 3},
		{UserID: 3, KeywordID: 1, Rating: 4},
		{UserID: 3, KeywordID: 4, Rating: 1},
	}

	t.Run("bounded, known keywords, no duplicates", func(t *testing.T) {
		// run across several seeds, split randomness must never break the contract
		for seed := int64(1); seed <= 20; seed++ {
			model := New(fixedStore(ratings, keywords), Config{Seed: seed, Epochs: 5})
			require.NoError(t, model.Refresh(context.Background()))

			got, err := model.PredictTopKeywords(context.Background(), 1, 2)
			require.NoError(t, err, "seed %d", seed)
			assert.LessOrEqual(t, len(got), 2, "seed %d", seed)

			seen := map[string]bool{}
			for _, kw := range got {
				assert.Contains(t, []string{"apple", "google", "covid19", "usa"}, kw, "seed %d", seed)
				assert.False(t, seen[kw], "duplicate keyword %q, seed %d", kw, seed)
				seen[kw] = true
			}
		}
	})

	t.Run("user with no ratings gets empty result", func(t *testing.T) {
		model := New(fixedStore(ratings, keywords), Config{Seed: 42, Epochs: 5})
		require.NoError(t, model.Refresh(context.Background()))

		got, err := model.PredictTopKeywords(context.Background(), 99, 5)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("empty rating set gets empty result", func(t *testing.T) {
		model := New(fixedStore(nil, keywords), Config{Seed: 42})
		require.NoError(t, model.Refresh(context.Background()))

		got, err := model.PredictTopKeywords(context.Background(), 1, 5)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("predict before refresh is empty, not an error", func(t *testing.T) {
		model := New(fixedStore(ratings, keywords), Config{Seed: 42})
		got, err := model.PredictTopKeywords(context.Background(), 1, 5)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("unresolvable keyword id skipped", func(t *testing.T) {
		// keyword table missing ids 3 and 4
		model := New(fixedStore(ratings, map[int64]string{1: "apple", 2: "google"}), Config{Seed: 7, Epochs: 5})
		require.NoError(t, model.Refresh(context.Background()))

		got, err := model.PredictTopKeywords(context.Background(), 1, 5)
		require.NoError(t, err)
		for _, kw := range got {
			assert.Contains(t, []string{"apple", "google"}, kw)
		}
	})

	t.Run("default amount applied", func(t *testing.T) {
		model := New(fixedStore(ratings, keywords), Config{Seed: 3, Epochs: 5})
		require.NoError(t, model.Refresh(context.Background()))

		got, err := model.PredictTopKeywords(context.Background(), 1, 0)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(got), 5)
	})
}

func TestModel_AppendRatingEquivalentToRefresh(t *testing.T) {
	keywords := map[int64]string{1: "apple", 2: "google", 3: "covid19"}
	base := []domain.Rating{
		{UserID: 1, KeywordID: 1, Rating: 5},
		{UserID: 1, KeywordID: 2, Rating: 1},
		{UserID: 2, KeywordID: 1, Rating: 2},
		{UserID: 2, KeywordID: 3, Rating: 4},
	}
	added := domain.Rating{UserID: 1, KeywordID: 3, Rating: 5}

	// model A: refresh on the base set, then append in memory
	modelA := New(fixedStore(base, keywords), Config{Seed: 11, Epochs: 10})
	require.NoError(t, modelA.Refresh(context.Background()))
	modelA.AppendRating(added.UserID, added.KeywordID, added.Rating)

	// model B: refresh on a store that already holds the new rating
	full := append(append([]domain.Rating{}, base...), added)
	modelB := New(fixedStore(full, keywords), Config{Seed: 11, Epochs: 10})
	require.NoError(t, modelB.Refresh(context.Background()))

	// same seed, same snapshot order: identical split and fit
	gotA, err := modelA.PredictTopKeywords(context.Background(), 1, 5)
	require.NoError(t, err)
	gotB, err := modelB.PredictTopKeywords(context.Background(), 1, 5)
	require.NoError(t, err)
	assert.Equal(t, gotB, gotA)
}

func TestModel_AppendRatingLastWriteWins(t *testing.T) {
	model := New(fixedStore(nil, nil), Config{Seed: 1})
	require.NoError(t, model.Refresh(context.Background()))

	model.AppendRating(1, 1, 2)
	model.AppendRating(1, 1, 5) // overwrites, no history

	model.mu.RLock()
	defer model.mu.RUnlock()
	require.Len(t, model.snapshot, 1)
	assert.Equal(t, 5, model.snapshot[0].Rating)
}

func TestModel_RefreshPropagatesStoreError(t *testing.T) {
	store := &storeMock{
		ListRatingsFunc: func(context.Context) ([]domain.Rating, error) {
			return nil, fmt.Errorf("db gone")
		},
	}
	model := New(store, Config{Seed: 1})
	err := model.Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load ratings")
}

func TestModel_SplitDisjointAndComplete(t *testing.T) {
	var ratings []domain.Rating
	for i := 0; i < 40; i++ {
		ratings = append(ratings, domain.Rating{UserID: int64(i % 5), KeywordID: int64(i), Rating: i%5 + 1})
	}

	model := New(fixedStore(ratings, nil), Config{Seed: 9, TestFraction: 0.25})
	trainSet, testSet := model.split(ratings)

	assert.Len(t, testSet, 10) // ceil(40 * 0.25)
	assert.Len(t, trainSet, 30)

	seen := map[int64]int{}
	for _, r := range trainSet {
		seen[r.KeywordID]++
	}
	for _, r := range testSet {
		seen[r.KeywordID]++
	}
	require.Len(t, seen, 40, "split must cover every rating exactly once")
	for id, n := range seen {
		assert.Equal(t, 1, n, "keyword %d appears in both subsets", id)
	}
}

func TestFactorModel_DegenerateFit(t *testing.T) {
	model := New(fixedStore(nil, nil), Config{Seed: 1})

	fm := newFactorModel(model.cfg)
	fm.fit(nil, model.rng)

	assert.False(t, fm.trained)
	assert.InDelta(t, 3.0, fm.predict(1, 1), 0.0001, "untrained model predicts scale midpoint")
}

func TestFactorModel_LearnsPreferences(t *testing.T) {
	// a strongly separable signal: user 1 loves keyword 1, hates keyword 2,
	// and several lookalike users reinforce it
	var trainSet []domain.Rating
	for u := int64(1); u <= 6; u++ {
		trainSet = append(trainSet,
			domain.Rating{UserID: u, KeywordID: 1, Rating: 5},
			domain.Rating{UserID: u, KeywordID: 2, Rating: 1},
		)
	}

	model := New(fixedStore(nil, nil), Config{Seed: 5, Epochs: 50})
	fm := newFactorModel(model.cfg)
	fm.fit(trainSet, model.rng)
	require.True(t, fm.trained)

	high := fm.predict(1, 1)
	low := fm.predict(1, 2)
	assert.Greater(t, high, low, "predicted %v for loved vs %v for hated", high, low)
}

func TestFactorModel_UnknownPairsFallBackToMean(t *testing.T) {
	trainSet := []domain.Rating{
		{UserID: 1, KeywordID: 1, Rating: 4},
		{UserID: 2, KeywordID: 2, Rating: 2},
	}
	model := New(fixedStore(nil, nil), Config{Seed: 2, Epochs: 10})
	fm := newFactorModel(model.cfg)
	fm.fit(trainSet, model.rng)

	// both user and keyword unseen: exactly the global mean
	assert.InDelta(t, 3.0, fm.predict(99, 99), 0.0001)
}
