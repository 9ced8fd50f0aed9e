package chunking

import (
	"regexp"
	"strings"
)

// DocType names a coarse document shape used to pick chunk-size defaults,
// mirroring original_source/services/chunking_optimizer.py's five presets.
type DocType string

const (
	DocTypePDF      DocType = "pdf"
	DocTypeMarkdown DocType = "markdown"
	DocTypeCode     DocType = "code"
	DocTypeDialogue DocType = "dialogue"
	DocTypeArticle  DocType = "article"
)

// docTypeDefaults are the base (chunk size, overlap) pairs per doc type,
// ported from chunking_optimizer.py's configs table.
var docTypeDefaults = map[DocType]Params{
	DocTypePDF:      {ChunkSize: 1000, Overlap: 200},
	DocTypeMarkdown: {ChunkSize: 800, Overlap: 150},
	DocTypeCode:     {ChunkSize: 600, Overlap: 100},
	DocTypeDialogue: {ChunkSize: 500, Overlap: 100},
	DocTypeArticle:  {ChunkSize: 1200, Overlap: 250},
}

var (
	codeFencePattern    = regexp.MustCompile("```|^\\s{4}\\S|;\\s*$|^\\s*(func|def|class|import)\\s")
	markdownHeadPattern = regexp.MustCompile(`(?m)^#{1,6}\s`)
	dialoguePattern     = regexp.MustCompile(`(?m)^\s*(Q:|A:|问：|答：|[A-Za-z]+:)\s`)
)

// ClassifyDocType inspects text's structural shape — code fences, markdown
// headers, dialogue markers, paragraph/sentence length — and returns the
// closest DocType, following the rule cascade in
// chunking_optimizer.py's _classify_doc_type: code, then markdown, then
// dialogue, then long-sentence article, defaulting to pdf.
func ClassifyDocType(text string) DocType {
	lines := strings.Split(text, "\n")
	dialogueLines := 0
	for _, l := range lines {
		if dialoguePattern.MatchString(l) {
			dialogueLines++
		}
	}
	hasCode := codeFencePattern.MatchString(text)
	hasMarkdownHeaders := markdownHeadPattern.MatchString(text)
	isDialogue := len(lines) > 0 && float64(dialogueLines)/float64(len(lines)) > 0.2

	paragraphs := paragraphPattern.Split(text, -1)
	hasParagraphs := countNonEmpty(paragraphs) >= 3
	avgSentenceLen := avgLen(splitSentences(text))

	switch {
	case hasCode:
		return DocTypeCode
	case hasMarkdownHeaders:
		return DocTypeMarkdown
	case isDialogue:
		return DocTypeDialogue
	case hasParagraphs && avgSentenceLen > 150:
		return DocTypeArticle
	default:
		return DocTypePDF
	}
}

// Recommend returns doc-type-tuned Params for text, following
// chunking_optimizer.py's get_config: classify, then take that type's base
// chunk size/overlap. Unlike the Python original, there is no persisted
// query-length history to scale against yet, so this returns the
// type's static base tuning; QueryLengthScale below applies the same
// multiplier rule once that history is available.
func Recommend(text string) Params {
	dt := ClassifyDocType(text)
	return docTypeDefaults[dt].withDefaults()
}

// QueryLengthScale reapplies chunking_optimizer.py's get_optimal_chunk_size
// multiplier — larger average queries get larger chunks — to an existing
// Params, once a caller has a rolling average query length to offer
// (retrieval.Pipeline may track this; C4 itself holds no query history).
func QueryLengthScale(base Params, avgQueryLen int) Params {
	mult := 1.0
	switch {
	case avgQueryLen < 50:
		mult = 0.8
	case avgQueryLen < 100:
		mult = 1.0
	case avgQueryLen < 200:
		mult = 1.2
	default:
		mult = 1.5
	}
	base.ChunkSize = int(float64(base.ChunkSize) * mult)
	overlap := int(float64(base.ChunkSize) * 0.4)
	if overlap > base.Overlap {
		overlap = base.Overlap
	}
	if overlap < 100 {
		overlap = 100
	}
	base.Overlap = overlap
	return base.withDefaults()
}
