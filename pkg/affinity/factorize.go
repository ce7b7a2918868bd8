package affinity

import (
	"log"
	"math/rand"

	"github.com/feedlab/persnews/pkg/domain"
)

// factorModel is one trained biased matrix factorization instance. It
// represents each user and keyword as a low-dimensional vector plus a bias
// term and predicts a rating as globalMean + biases + inner product.
// Derived from a single rating snapshot, discarded with it.
type factorModel struct {
	cfg Config

	userIndex map[int64]int
	itemIndex map[int64]int

	userFactors [][]float64
	itemFactors [][]float64
	userBias    []float64
	itemBias    []float64

	globalMean float64
	trained    bool
}

func newFactorModel(cfg Config) *factorModel {
	return &factorModel{
		cfg:       cfg,
		userIndex: make(map[int64]int),
		itemIndex: make(map[int64]int),
	}
}

// fit trains the factorization on the training split with plain SGD.
// A degenerate split (no rows) leaves the model untrained, predictions then
// fall back to the scale midpoint. Never fails.
func (fm *factorModel) fit(trainSet []domain.Rating, rng *rand.Rand) {
	if len(trainSet) == 0 {
		log.Printf("[WARN] affinity fit skipped, empty training split")
		return
	}

	// build user and keyword indices
	for _, r := range trainSet {
		if _, ok := fm.userIndex[r.UserID]; !ok {
			fm.userIndex[r.UserID] = len(fm.userIndex)
		}
		if _, ok := fm.itemIndex[r.KeywordID]; !ok {
			fm.itemIndex[r.KeywordID] = len(fm.itemIndex)
		}
	}

	numUsers := len(fm.userIndex)
	numItems := len(fm.itemIndex)
	numFactors := fm.cfg.Factors

	var sum float64
	for _, r := range trainSet {
		sum += float64(r.Rating)
	}
	fm.globalMean = sum / float64(len(trainSet))

	// small random initialization around zero
	initVector := func() []float64 {
		v := make([]float64, numFactors)
		for f := range v {
			v[f] = 0.1 * (rng.Float64() - 0.5)
		}
		return v
	}

	fm.userFactors = make([][]float64, numUsers)
	for u := range fm.userFactors {
		fm.userFactors[u] = initVector()
	}
	fm.itemFactors = make([][]float64, numItems)
	for i := range fm.itemFactors {
		fm.itemFactors[i] = initVector()
	}
	fm.userBias = make([]float64, numUsers)
	fm.itemBias = make([]float64, numItems)

	lr := fm.cfg.LearningRate
	reg := fm.cfg.Regularization

	for epoch := 0; epoch < fm.cfg.Epochs; epoch++ {
		for _, r := range trainSet {
			u := fm.userIndex[r.UserID]
			i := fm.itemIndex[r.KeywordID]

			pred := fm.globalMean + fm.userBias[u] + fm.itemBias[i] + dot(fm.userFactors[u], fm.itemFactors[i])
			err := float64(r.Rating) - pred

			fm.userBias[u] += lr * (err - reg*fm.userBias[u])
			fm.itemBias[i] += lr * (err - reg*fm.itemBias[i])

			uf, itf := fm.userFactors[u], fm.itemFactors[i]
			for f := 0; f < numFactors; f++ {
				ufv, ifv := uf[f], itf[f]
				uf[f] += lr * (err*ifv - reg*ufv)
				itf[f] += lr * (err*ufv - reg*ifv)
			}
		}
	}

	fm.trained = true
}

// predict estimates a rating for a (user, keyword) pair. Unknown users or
// keywords contribute no bias or factors, the estimate degrades toward the
// global mean. No clamping, ranking does not require it.
func (fm *factorModel) predict(userID, keywordID int64) float64 {
	if !fm.trained {
		return (ratingMin + ratingMax) / 2
	}

	est := fm.globalMean
	u, knownUser := fm.userIndex[userID]
	i, knownItem := fm.itemIndex[keywordID]

	if knownUser {
		est += fm.userBias[u]
	}
	if knownItem {
		est += fm.itemBias[i]
	}
	if knownUser && knownItem {
		est += dot(fm.userFactors[u], fm.itemFactors[i])
	}
	return est
}

func dot(a, b []float64) float64 {
	var sum float64
	for f := range a {
		sum += a[f] * b[f]
	}
	return sum
}
