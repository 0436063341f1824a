package keywords

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

type fileFormat struct {
	Tiers [][]string `yaml:"tiers"`
}

// Load reads a YAML table of the form
//
//	tiers:
//	  - [über-uns, about-us]
//	  - [company, firma]
//
// where the first list is tier 1.
func Load(r io.Reader) (*Table, error) {
	var f fileFormat
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode keyword table: %w", err)
	}
	if len(f.Tiers) == 0 {
		return nil, fmt.Errorf("keyword table has no tiers")
	}
	return New(f.Tiers)
}

// LoadFile reads a YAML table from path.
func LoadFile(path string) (*Table, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open keyword table: %w", err)
	}
	defer func() { _ = fh.Close() }()
	return Load(fh)
}
