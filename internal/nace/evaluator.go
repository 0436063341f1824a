package nace

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Weights are the points awarded per comparison outcome.
type Weights struct {
	Exact    int `mapstructure:"exact"`
	Prefix3  int `mapstructure:"prefix3"`
	Prefix2  int `mapstructure:"prefix2"`
	Mismatch int `mapstructure:"mismatch"`
}

// DefaultWeights is +10 exact, +3 three-character prefix, +1 two-character prefix, -10 miss.
func DefaultWeights() Weights {
	return Weights{Exact: 10, Prefix3: 3, Prefix2: 1, Mismatch: -10}
}

// EvaluationSummary is a snapshot of the running totals.
type EvaluationSummary struct {
	ExactMatches   int `json:"exact_matches"`
	Prefix3Matches int `json:"prefix3_matches"`
	Prefix2Matches int `json:"prefix2_matches"`
	TotalScore     int `json:"total_score"`
	Comparisons    int `json:"comparisons"`
}

// Evaluator accumulates match counts and score over many comparisons. It is safe for concurrent use.
type Evaluator struct {
	mu      sync.Mutex
	weights Weights
	totals  EvaluationSummary
}

// NewEvaluator creates an Evaluator with the given weights.
func NewEvaluator(weights Weights) *Evaluator {
	return &Evaluator{weights: weights}
}

// Compare scores test codes against validation codes and adds the result to the running totals.
// Each validation code can be consumed by at most one test code; every validation code left
// unconsumed costs a mismatch. It returns the score of this comparison alone.
func (e *Evaluator) Compare(validation, test []string) int {
	delta := EvaluationSummary{Comparisons: 1}
	used := make(map[string]struct{}, len(validation))

	for _, tc := range test {
		matched := false
		for _, vc := range validation {
			if _, ok := used[vc]; ok {
				continue
			}
			switch {
			case vc == tc:
				delta.ExactMatches++
				delta.TotalScore += e.weights.Exact
			case strings.HasPrefix(vc, prefix(tc, 3)):
				delta.Prefix3Matches++
				delta.TotalScore += e.weights.Prefix3
			case strings.HasPrefix(vc, prefix(tc, 2)):
				delta.Prefix2Matches++
				delta.TotalScore += e.weights.Prefix2
			default:
				continue
			}
			used[vc] = struct{}{}
			matched = true
			break
		}
		if !matched {
			delta.TotalScore += e.weights.Mismatch
		}
	}
	for _, vc := range validation {
		if _, ok := used[vc]; !ok {
			delta.TotalScore += e.weights.Mismatch
		}
	}

	e.mu.Lock()
	e.totals.ExactMatches += delta.ExactMatches
	e.totals.Prefix3Matches += delta.Prefix3Matches
	e.totals.Prefix2Matches += delta.Prefix2Matches
	e.totals.TotalScore += delta.TotalScore
	e.totals.Comparisons++
	e.mu.Unlock()
	return delta.TotalScore
}

// Summary returns the current totals.
func (e *Evaluator) Summary() EvaluationSummary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totals
}

// Print writes a human-readable overview of the totals.
func (e *Evaluator) Print(w io.Writer) error {
	s := e.Summary()
	_, err := fmt.Fprintf(w,
		"Nace Code Evaluation Results:\n"+
			"Total Exact Matches: %d\n"+
			"Total Matches Ignoring Last Digit: %d\n"+
			"Total Matches Ignoring Last Two Digits: %d\n"+
			"Total Score: %d\n"+
			"Total Comparisons: %d\n",
		s.ExactMatches, s.Prefix3Matches, s.Prefix2Matches, s.TotalScore, s.Comparisons)
	if err != nil {
		return fmt.Errorf("print evaluation: %w", err)
	}
	return nil
}

func prefix(s string, n int) string {
	if len(s) < n {
		return s
	}
	return s[:n]
}
