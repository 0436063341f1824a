// Package textproc turns a document's paragraphs into classifier-ready text chunks.
package textproc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JakeFAU/nace-crawler/internal/document"
)

// Stage names accepted in Config.Stages.
const (
	StageRemoveShort    = "removeShortParagraphs"
	StageSplit          = "splitParagraphsAt"
	StageRemoveKeywords = "removeParagraphsWithKeywords"
	StageRemoveDups     = "removeDuplicatedParagraphs"
)

// ErrUnknownStage is returned for a stage name the pipeline does not implement.
var ErrUnknownStage = errors.New("unknown text processing stage")

// ErrInvalidSplitLength is returned when splitting is requested with a non-positive length.
var ErrInvalidSplitLength = errors.New("split length must be > 0")

// DefaultBannedKeywords are dropped by removeParagraphsWithKeywords unless overridden.
var DefaultBannedKeywords = []string{
	"datenschutz", "cookies", "cookie-richtlinie", "nutzungsbedingungen", "agb", "impressum",
	"datenschutzerklärung", "cookie-einstellungen", "datenschutzeinstellungen",
	"datenschutzrichtlinien", "java script", "javascript", "js", "ecmascript", "script",
}

// DefaultStages is the stage order used when none is configured.
var DefaultStages = []string{StageSplit, StageRemoveShort, StageRemoveKeywords, StageRemoveDups}

// Config selects and tunes the pipeline stages.
type Config struct {
	Stages         []string `mapstructure:"stages"`
	MinLength      int      `mapstructure:"min_length"`
	SplitLength    int      `mapstructure:"split_length"`
	BannedKeywords []string `mapstructure:"banned_keywords"`
}

// DefaultConfig mirrors the service defaults.
func DefaultConfig() Config {
	return Config{
		Stages:         append([]string(nil), DefaultStages...),
		MinLength:      100,
		SplitLength:    512,
		BannedKeywords: append([]string(nil), DefaultBannedKeywords...),
	}
}

// Pipeline applies the configured stages to a document's paragraphs.
type Pipeline struct {
	cfg Config
}

// New validates the stage list and returns a Pipeline.
func New(cfg Config) (*Pipeline, error) {
	for _, s := range cfg.Stages {
		switch s {
		case StageRemoveShort, StageRemoveKeywords, StageRemoveDups:
		case StageSplit:
			if cfg.SplitLength <= 0 {
				return nil, fmt.Errorf("stage %s: %w", s, ErrInvalidSplitLength)
			}
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownStage, s)
		}
	}
	return &Pipeline{cfg: cfg}, nil
}

// Process extracts <p> texts in document order and runs every stage over them.
func (p *Pipeline) Process(doc *document.Document) ([]string, error) {
	return p.Apply(doc.Paragraphs())
}

// Apply runs the stages over an explicit paragraph list.
func (p *Pipeline) Apply(paragraphs []string) ([]string, error) {
	text := paragraphs
	for _, stage := range p.cfg.Stages {
		switch stage {
		case StageRemoveShort:
			text = RemoveShort(text, p.cfg.MinLength)
		case StageSplit:
			split, err := SplitAt(text, p.cfg.SplitLength)
			if err != nil {
				return nil, err
			}
			text = split
		case StageRemoveKeywords:
			text = RemoveWithKeywords(text, p.cfg.BannedKeywords)
		case StageRemoveDups:
			text = RemoveDuplicates(text)
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownStage, stage)
		}
	}
	return text, nil
}

// RemoveShort drops paragraphs shorter than minLen characters. A non-positive minLen keeps everything.
func RemoveShort(text []string, minLen int) []string {
	if minLen <= 0 {
		return text
	}
	out := make([]string, 0, len(text))
	for _, t := range text {
		if len([]rune(t)) >= minLen {
			out = append(out, t)
		}
	}
	return out
}

// SplitAt cuts each paragraph into consecutive chunks of at most size characters.
func SplitAt(text []string, size int) ([]string, error) {
	if size <= 0 {
		return nil, ErrInvalidSplitLength
	}
	var out []string
	for _, t := range text {
		runes := []rune(t)
		for i := 0; i < len(runes); i += size {
			end := min(i+size, len(runes))
			out = append(out, string(runes[i:end]))
		}
	}
	return out, nil
}

// RemoveWithKeywords drops paragraphs containing any banned keyword (case-sensitive).
func RemoveWithKeywords(text []string, banned []string) []string {
	if len(banned) == 0 {
		return text
	}
	out := make([]string, 0, len(text))
	for _, t := range text {
		if !containsAny(t, banned) {
			out = append(out, t)
		}
	}
	return out
}

// RemoveDuplicates keeps the first occurrence of each paragraph.
func RemoveDuplicates(text []string) []string {
	seen := make(map[string]struct{}, len(text))
	out := make([]string, 0, len(text))
	for _, t := range text {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if w != "" && strings.Contains(s, w) {
			return true
		}
	}
	return false
}
