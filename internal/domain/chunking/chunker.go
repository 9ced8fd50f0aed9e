// Package chunking implements strategy-selected text segmentation:
// fixed/sentence/paragraph/hybrid, with an auto selector keyed on text
// shape. It generalizes a single paragraph-then-token-budget SimpleChunker
// (internal/infra/uploadask/chunker/simple.go) into the four-strategy
// family, keeping a similar token-counting helper
// (github.com/pkoukk/tiktoken-go, cl100k_base) as a secondary sizing signal
// alongside the rune-count budgets Params describes.
package chunking

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// Strategy names a chunking algorithm.
type Strategy string

const (
	StrategyAuto      Strategy = "auto"
	StrategyFixed     Strategy = "fixed"
	StrategySentence  Strategy = "sentence"
	StrategyParagraph Strategy = "paragraph"
	StrategyHybrid    Strategy = "hybrid"
)

// Params controls chunk sizing. Zero values fall back to the package defaults.
type Params struct {
	ChunkSize int
	Overlap   int
	Min       int
	Max       int
}

// Chunk is a single segmented unit of text.
type Chunk struct {
	Index      int
	Content    string
	TokenCount int
}

func (p Params) withDefaults() Params {
	if p.ChunkSize <= 0 {
		p.ChunkSize = 1000
	}
	if p.Overlap <= 0 {
		p.Overlap = 200
	}
	if p.Min <= 0 {
		p.Min = 100
	}
	if p.Max <= 0 {
		p.Max = 2000
	}
	return p
}

// Chunker segments text per Strategy and Params.
type Chunker struct {
	encoder *tiktoken.Tiktoken
}

// New constructs a Chunker, best-effort loading the cl100k_base encoder for
// token-count estimation (nil encoder degrades to word counting).
func New() *Chunker {
	enc, _ := tiktoken.GetEncoding("cl100k_base")
	return &Chunker{encoder: enc}
}

// Chunk splits text using strategy (or the auto-selected one) and params,
// then post-processes by dropping sub-Min fragments and truncating
// over-Max ones.
func (c *Chunker) Chunk(text string, strategy Strategy, params Params) []Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	params = params.withDefaults()
	if strategy == "" || strategy == StrategyAuto {
		if utf8.RuneCountInString(text) < 500 {
			// Auto mode keeps short text whole as a single chunk; the Min
			// filter does not apply to it.
			content := truncateRunes(text, params.Max)
			return []Chunk{{Index: 0, Content: content, TokenCount: c.countTokens(content)}}
		}
		strategy = c.selectAuto(text, params)
	}

	var raw []string
	switch strategy {
	case StrategyFixed:
		raw = c.chunkFixed(text, params)
	case StrategySentence:
		raw = c.chunkSentence(text, params)
	case StrategyParagraph:
		raw = c.chunkParagraph(text, params)
	case StrategyHybrid:
		raw = c.chunkHybrid(text, params)
	default:
		raw = c.chunkFixed(text, params)
	}

	return c.postProcess(raw, params)
}

// selectAuto implements the auto-selection rules.
func (c *Chunker) selectAuto(text string, params Params) Strategy {
	if utf8.RuneCountInString(text) < 500 {
		return StrategyFixed
	}
	paragraphs := paragraphPattern.Split(text, -1)
	if countNonEmpty(paragraphs) >= 3 && avgLen(paragraphs) >= 100 && avgLen(paragraphs) <= params.ChunkSize {
		return StrategyParagraph
	}
	sentences := splitSentences(text)
	if len(sentences) > 0 && avgLen(sentences) < 120 {
		return StrategySentence
	}
	return StrategyHybrid
}

func (c *Chunker) postProcess(raw []string, params Params) []Chunk {
	out := make([]Chunk, 0, len(raw))
	for _, content := range raw {
		content = strings.TrimSpace(content)
		if content == "" {
			continue
		}
		if utf8.RuneCountInString(content) < params.Min {
			continue
		}
		if utf8.RuneCountInString(content) > params.Max {
			content = truncateRunes(content, params.Max)
		}
		out = append(out, Chunk{Index: len(out), Content: content, TokenCount: c.countTokens(content)})
	}
	return out
}

func (c *Chunker) countTokens(text string) int {
	if text == "" {
		return 0
	}
	if c.encoder != nil {
		return len(c.encoder.Encode(text, nil, nil))
	}
	return len(strings.Fields(text))
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func countNonEmpty(parts []string) int {
	n := 0
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			n++
		}
	}
	return n
}

func avgLen(parts []string) int {
	total, n := 0, 0
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		total += utf8.RuneCountInString(p)
		n++
	}
	if n == 0 {
		return 0
	}
	return total / n
}

var paragraphPattern = regexp.MustCompile(`\n\s*\n+`)

// sentenceEnd matches Latin and CJK sentence terminators followed by
// whitespace, splitting on `[.。!?！？] `.
var sentenceEnd = regexp.MustCompile(`([.。!?！？])\s+`)

func splitSentences(text string) []string {
	marked := sentenceEnd.ReplaceAllString(text, "$1\x00")
	parts := strings.Split(marked, "\x00")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, strings.TrimSpace(p))
		}
	}
	return out
}
