// Package nace aggregates classifier predictions into NACE codes and scores them against known codes.
package nace

// Prediction is one classifier label with its confidence.
type Prediction struct {
	Label     string  `json:"label"`
	Score     float64 `json:"score"`
	InputData string  `json:"inputData,omitempty"`
}

// PredictionList holds the predictions for a single input text.
type PredictionList struct {
	Predictions []Prediction `json:"predictions"`
	InputData   string       `json:"inputData"`
}

// PredictionSet groups the prediction lists of one document.
type PredictionSet struct {
	Lists []PredictionList `json:"predictions"`
}

// Add appends a list to the set.
func (s *PredictionSet) Add(list PredictionList) {
	s.Lists = append(s.Lists, list)
}

// Len counts the predictions across every list.
func (s PredictionSet) Len() int {
	n := 0
	for _, l := range s.Lists {
		n += len(l.Predictions)
	}
	return n
}
