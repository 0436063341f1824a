// Package partner loads and saves the business partners whose websites are analyzed.
package partner

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JakeFAU/nace-crawler/internal/nace"
)

// ErrNoWebsite marks a partner that cannot be crawled.
var ErrNoWebsite = errors.New("partner has no website")

// BusinessPartner is one company with its ground-truth and predicted codes.
type BusinessPartner struct {
	Key                    string               `json:"businessPartnerKey"`
	Website                string               `json:"website"`
	DunsAndBradstreetCodes []string             `json:"dunsAndBradstreetCodes"`
	NaceCodes              []string             `json:"naceCodes"`
	Predictions            []nace.PredictionSet `json:"naceCodePredictions"`
	ProcessedData          [][]string           `json:"processedData"`
}

// UnmarshalJSON accepts both saved partners and the raw input rows, which name the key "key".
func (p *BusinessPartner) UnmarshalJSON(data []byte) error {
	type plain BusinessPartner
	var aux struct {
		plain
		LegacyKey string `json:"key"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("decode partner: %w", err)
	}
	*p = BusinessPartner(aux.plain)
	if p.Key == "" {
		p.Key = aux.LegacyKey
	}
	return nil
}

// Validate reports whether the partner can be analyzed.
func (p *BusinessPartner) Validate() error {
	if strings.TrimSpace(p.Website) == "" {
		return fmt.Errorf("%s: %w", p.Key, ErrNoWebsite)
	}
	return nil
}

// AddProcessedData appends the paragraphs of one document; empty lists are ignored.
func (p *BusinessPartner) AddProcessedData(paragraphs []string) {
	if len(paragraphs) == 0 {
		return
	}
	p.ProcessedData = append(p.ProcessedData, paragraphs)
}

// AddPredictionSet appends the predictions of one document; empty sets are ignored.
func (p *BusinessPartner) AddPredictionSet(set nace.PredictionSet) {
	if len(set.Lists) == 0 {
		return
	}
	p.Predictions = append(p.Predictions, set)
}

// Reset drops everything derived from a previous analysis.
func (p *BusinessPartner) Reset() {
	p.NaceCodes = nil
	p.Predictions = nil
	p.ProcessedData = nil
}

// Load decodes a JSON array of partners. A positive limit keeps only the first limit entries.
func Load(r io.Reader, limit int) ([]*BusinessPartner, error) {
	var partners []*BusinessPartner
	if err := json.NewDecoder(r).Decode(&partners); err != nil {
		return nil, fmt.Errorf("decode partners: %w", err)
	}
	if limit > 0 && len(partners) > limit {
		partners = partners[:limit]
	}
	return partners, nil
}

// LoadFile reads partners from path.
func LoadFile(path string, limit int) ([]*BusinessPartner, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open partners: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Load(f, limit)
}

// Save writes partners as an indented JSON array.
func Save(w io.Writer, partners []*BusinessPartner) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(partners); err != nil {
		return fmt.Errorf("encode partners: %w", err)
	}
	return nil
}

// SaveFile writes partners to dir/partners-<timestamp>.json and returns the path.
func SaveFile(dir string, partners []*BusinessPartner, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, "partners-"+now.Format("20060102150405")+".json")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create partners file: %w", err)
	}
	if err := Save(f, partners); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close partners file: %w", err)
	}
	return path, nil
}

type dunsRow struct {
	Key   string   `json:"key"`
	Codes []string `json:"dunsIndustryCodeList"`
}

// LoadDunsCodes reads the Dun & Bradstreet export and returns codes by partner key with the
// dots removed ("28.13" becomes "2813").
func LoadDunsCodes(r io.Reader) (map[string][]string, error) {
	var rows []dunsRow
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode duns codes: %w", err)
	}
	out := make(map[string][]string, len(rows))
	for _, row := range rows {
		if row.Key == "" || row.Codes == nil {
			continue
		}
		if _, seen := out[row.Key]; seen {
			continue
		}
		codes := make([]string, len(row.Codes))
		for i, c := range row.Codes {
			codes[i] = strings.ReplaceAll(c, ".", "")
		}
		out[row.Key] = codes
	}
	return out, nil
}

// ApplyDunsCodes sets DunsAndBradstreetCodes on every partner whose key has codes.
// Partners without an entry keep what they already have.
func ApplyDunsCodes(partners []*BusinessPartner, codes map[string][]string) int {
	n := 0
	for _, p := range partners {
		if c, ok := codes[p.Key]; ok {
			p.DunsAndBradstreetCodes = c
			n++
		}
	}
	return n
}
