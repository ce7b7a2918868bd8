package credibility

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scorerMock implements Scorer for tests
type scorerMock struct {
	ScoreFunc func(ctx context.Context, text string) (float64, error)
	calls     atomic.Int32
}

func (m *scorerMock) Score(ctx context.Context, text string) (float64, error) {
	m.calls.Add(1)
	return m.ScoreFunc(ctx, text)
}

func TestSplitUnits(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		title string
		want  []string
	}{
		{
			name:  "sentences plus title",
			body:  "Cats are great. Dogs are fine.",
			title: "Pets",
			want:  []string{"Cats are great", "Dogs are fine", "Pets"},
		},
		{
			name:  "empty body keeps title",
			body:  "",
			title: "Pets",
			want:  []string{"Pets"},
		},
		{
			name:  "whitespace and periods only",
			body:  " . . .  ",
			title: "Pets",
			want:  []string{"Pets"},
		},
		{
			name:  "no periods in body",
			body:  "one long sentence without terminator",
			title: "T",
			want:  []string{"one long sentence without terminator", "T"},
		},
		{
			name:  "everything empty",
			body:  "",
			title: "  ",
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitUnits(tt.body, tt.title)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAggregator_ScoreArticle(t *testing.T) {
	// classifier gives 0.9 to units mentioning cats, 0.1 to everything else
	catScorer := &scorerMock{
		ScoreFunc: func(_ context.Context, text string) (float64, error) {
			if strings.Contains(text, "Cats") {
				return 0.9, nil
			}
			return 0.1, nil
		},
	}

	t.Run("mean over sentences and title", func(t *testing.T) {
		agg := NewAggregator(catScorer, Config{})
		got, err := agg.ScoreArticle(context.Background(), "Cats are great. Dogs are fine.", "Pets")
		require.NoError(t, err)
		assert.InDelta(t, (0.9+0.1+0.1)/3, got, 0.0001)
	})

	t.Run("sentence order does not matter", func(t *testing.T) {
		agg := NewAggregator(catScorer, Config{})
		a, err := agg.ScoreArticle(context.Background(), "Cats are great. Dogs are fine.", "Pets")
		require.NoError(t, err)
		b, err := agg.ScoreArticle(context.Background(), "Dogs are fine. Cats are great.", "Pets")
		require.NoError(t, err)
		assert.InDelta(t, a, b, 0.0001)
	})

	t.Run("empty body scores the title alone", func(t *testing.T) {
		agg := NewAggregator(catScorer, Config{})
		got, err := agg.ScoreArticle(context.Background(), "", "Cats everywhere")
		require.NoError(t, err)
		assert.InDelta(t, 0.9, got, 0.0001)
	})

	t.Run("result stays within the unit range", func(t *testing.T) {
		agg := NewAggregator(catScorer, Config{})
		got, err := agg.ScoreArticle(context.Background(), "A. B. C. Cats.", "T")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 1.0)
	})

	t.Run("no scorable units fails", func(t *testing.T) {
		agg := NewAggregator(catScorer, Config{})
		_, err := agg.ScoreArticle(context.Background(), " . . ", "  ")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrClassification)
	})
}

func TestAggregator_PartialFailures(t *testing.T) {
	t.Run("failed unit excluded from mean", func(t *testing.T) {
		scorer := &scorerMock{
			ScoreFunc: func(_ context.Context, text string) (float64, error) {
				if text == "bad" {
					return 0, fmt.Errorf("boom")
				}
				return 0.5, nil
			},
		}
		agg := NewAggregator(scorer, Config{})
		got, err := agg.ScoreArticle(context.Background(), "good. bad.", "title")
		require.NoError(t, err)
		assert.InDelta(t, 0.5, got, 0.0001) // mean of the two surviving units
	})

	t.Run("all units failing returns ErrClassification", func(t *testing.T) {
		scorer := &scorerMock{
			ScoreFunc: func(context.Context, string) (float64, error) {
				return 0, fmt.Errorf("boom")
			},
		}
		agg := NewAggregator(scorer, Config{})
		_, err := agg.ScoreArticle(context.Background(), "a. b.", "c")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrClassification)
	})
}

func TestAggregator_WaitsForAllUnits(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	scorer := &scorerMock{
		ScoreFunc: func(_ context.Context, text string) (float64, error) {
			cur := inFlight.Add(1)
			for {
				prev := maxInFlight.Load()
				if cur <= prev || maxInFlight.CompareAndSwap(prev, cur) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond) // slow unit delays the whole aggregation
			inFlight.Add(-1)
			return 0.5, nil
		},
	}

	agg := NewAggregator(scorer, Config{MaxWorkers: 4})
	start := time.Now()
	got, err := agg.ScoreArticle(context.Background(), "a. b. c.", "d")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got, 0.0001)

	assert.EqualValues(t, 4, scorer.calls.Load(), "every unit must be classified")
	assert.Greater(t, maxInFlight.Load(), int32(1), "units must run concurrently")
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond, "must wait for the slowest unit")
}

func TestAggregator_Timeout(t *testing.T) {
	scorer := &scorerMock{
		ScoreFunc: func(ctx context.Context, _ string) (float64, error) {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(5 * time.Second):
				return 0.5, nil
			}
		},
	}

	agg := NewAggregator(scorer, Config{Timeout: 50 * time.Millisecond})
	_, err := agg.ScoreArticle(context.Background(), "a. b.", "c")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrClassification)
}
