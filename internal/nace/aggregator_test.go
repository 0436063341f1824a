package nace

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func set(lists ...[]Prediction) PredictionSet {
	var s PredictionSet
	for _, l := range lists {
		s.Add(PredictionList{Predictions: l})
	}
	return s
}

func TestBestCodes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		sets      []PredictionSet
		maxCodes  int
		threshold float64
		want      []string
	}{
		{
			name: "orders by score and caps at max",
			sets: []PredictionSet{
				set([]Prediction{{Label: "A", Score: 0.9}, {Label: "B", Score: 0.8}}),
				set([]Prediction{{Label: "C", Score: 0.75}, {Label: "D", Score: 0.95}}),
			},
			maxCodes:  3,
			threshold: 0.7,
			want:      []string{"D", "A", "B"},
		},
		{
			name:      "falls back to the best available label",
			sets:      []PredictionSet{set([]Prediction{{Label: "A", Score: 0.4}, {Label: "B", Score: 0.6}})},
			maxCodes:  3,
			threshold: 0.7,
			want:      []string{"B"},
		},
		{
			name:      "first occurrence of a label wins",
			sets:      []PredictionSet{set([]Prediction{{Label: "A", Score: 0.71}}, []Prediction{{Label: "A", Score: 0.99}, {Label: "B", Score: 0.8}})},
			maxCodes:  1,
			threshold: 0.7,
			want:      []string{"B"},
		},
		{
			name:      "threshold is strict",
			sets:      []PredictionSet{set([]Prediction{{Label: "A", Score: 0.7}, {Label: "B", Score: 0.5}})},
			maxCodes:  3,
			threshold: 0.7,
			want:      []string{"A"},
		},
		{
			name:      "empty input yields no codes",
			sets:      nil,
			maxCodes:  3,
			threshold: 0.7,
			want:      nil,
		},
		{
			name:      "empty lists yield no codes",
			sets:      []PredictionSet{set(nil, nil)},
			maxCodes:  3,
			threshold: 0.7,
			want:      nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, BestCodes(tc.sets, tc.maxCodes, tc.threshold))
		})
	}
}

func TestBestCodesLengthBound(t *testing.T) {
	t.Parallel()

	s := set([]Prediction{
		{Label: "A", Score: 0.91}, {Label: "B", Score: 0.92}, {Label: "C", Score: 0.93},
		{Label: "D", Score: 0.94}, {Label: "E", Score: 0.95},
	})
	for maxCodes := 1; maxCodes <= 5; maxCodes++ {
		codes := BestCodes([]PredictionSet{s}, maxCodes, 0.7)
		require.Len(t, codes, maxCodes)
		seen := map[string]bool{}
		for _, c := range codes {
			require.False(t, seen[c], "codes must be distinct")
			seen[c] = true
		}
	}
}

func TestPredictionSetLen(t *testing.T) {
	t.Parallel()

	s := set([]Prediction{{Label: "A"}}, []Prediction{{Label: "B"}, {Label: "C"}})
	require.Equal(t, 3, s.Len())
}
