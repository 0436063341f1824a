package nace

import (
	"container/heap"
)

// Aggregation defaults.
const (
	DefaultMaxCodes       = 3
	DefaultScoreThreshold = 0.7
)

// BestCodes picks up to maxCodes distinct labels whose score is strictly above threshold,
// highest score first. A label keeps the score of its first occurrence. When nothing clears the
// threshold the single best-scoring label is returned instead, so any non-empty input yields a code.
func BestCodes(sets []PredictionSet, maxCodes int, threshold float64) []string {
	var (
		pool  predictionHeap
		added = make(map[string]struct{})
		best  *Prediction
	)
	for _, set := range sets {
		for _, list := range set.Lists {
			for i := range list.Predictions {
				p := list.Predictions[i]
				if best == nil || p.Score > best.Score {
					best = &p
				}
				if _, ok := added[p.Label]; ok || p.Score <= threshold {
					continue
				}
				added[p.Label] = struct{}{}
				pool = append(pool, p)
			}
		}
	}
	heap.Init(&pool)

	var codes []string
	for pool.Len() > 0 && len(codes) < maxCodes {
		codes = append(codes, heap.Pop(&pool).(Prediction).Label)
	}
	if len(codes) == 0 && best != nil {
		codes = append(codes, best.Label)
	}
	return codes
}

type predictionHeap []Prediction

func (h predictionHeap) Len() int           { return len(h) }
func (h predictionHeap) Less(i, j int) bool { return h[i].Score > h[j].Score }
func (h predictionHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *predictionHeap) Push(x any) {
	*h = append(*h, x.(Prediction))
}

func (h *predictionHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
