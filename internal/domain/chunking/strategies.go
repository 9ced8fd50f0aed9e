package chunking

import (
	"strings"
	"unicode/utf8"
)

// chunkFixed splits at target size, preferring a break at a sentence end
// within the trailing 100 runes of the window, else a paragraph boundary,
// else a word boundary, else a hard cut. The next window backs off by
// Overlap runes.
func (c *Chunker) chunkFixed(text string, params Params) []string {
	runes := []rune(text)
	var out []string
	start := 0
	for start < len(runes) {
		end := start + params.ChunkSize
		if end >= len(runes) {
			out = append(out, string(runes[start:]))
			break
		}
		cut := findBreak(runes, start, end)
		out = append(out, string(runes[start:cut]))
		next := cut - params.Overlap
		if next <= start {
			next = cut
		}
		start = next
	}
	return out
}

// findBreak looks backward from end (bounded by the trailing 100 runes) for
// a sentence terminator, then a paragraph boundary, then whitespace, and
// otherwise hard-cuts at end.
func findBreak(runes []rune, start, end int) int {
	windowStart := end - 100
	if windowStart < start {
		windowStart = start
	}
	for i := end; i > windowStart; i-- {
		if isSentenceTerminator(runes[i-1]) {
			return i
		}
	}
	for i := end; i > windowStart; i-- {
		if runes[i-1] == '\n' && i < len(runes) && runes[i] == '\n' {
			return i
		}
	}
	for i := end; i > windowStart; i-- {
		if runes[i-1] == ' ' || runes[i-1] == '\n' {
			return i
		}
	}
	return end
}

func isSentenceTerminator(r rune) bool {
	switch r {
	case '.', '。', '!', '?', '！', '？':
		return true
	}
	return false
}

// chunkSentence accumulates sentences until target size; on overflow it
// starts a new chunk seeded with trailing sentences totalling Overlap
// runes. A sentence longer than ChunkSize on its own is split by word.
func (c *Chunker) chunkSentence(text string, params Params) []string {
	sentences := splitSentences(text)
	var out []string
	var current strings.Builder
	var pending []string

	flush := func() {
		content := strings.TrimSpace(current.String())
		if content != "" {
			out = append(out, content)
		}
		current.Reset()
		pending = nil
	}

	for _, s := range sentences {
		if utf8.RuneCountInString(s) > params.ChunkSize {
			flush()
			out = append(out, splitByWord(s, params.ChunkSize)...)
			continue
		}
		if current.Len() > 0 && utf8.RuneCountInString(current.String())+utf8.RuneCountInString(s) > params.ChunkSize {
			tail := pending
			flush()
			seed := seedFromTail(tail, params.Overlap)
			if seed != "" {
				current.WriteString(seed)
				current.WriteString(" ")
			}
		}
		current.WriteString(s)
		current.WriteString(" ")
		pending = append(pending, s)
	}
	flush()
	return out
}

func seedFromTail(sentences []string, overlapRunes int) string {
	if overlapRunes <= 0 || len(sentences) == 0 {
		return ""
	}
	var tail []string
	count := 0
	for i := len(sentences) - 1; i >= 0 && count < overlapRunes; i-- {
		tail = append(tail, sentences[i])
		count += utf8.RuneCountInString(sentences[i])
	}
	// sentences were appended in reverse; rebuild in original order.
	for l, r := 0, len(tail)-1; l < r; l, r = l+1, r-1 {
		tail[l], tail[r] = tail[r], tail[l]
	}
	parts := strings.Fields(strings.Join(tail, " "))
	return strings.Join(parts, " ")
}

// chunkParagraph accumulates paragraphs; an oversize paragraph falls back to
// the sentence strategy.
func (c *Chunker) chunkParagraph(text string, params Params) []string {
	paragraphs := paragraphPattern.Split(text, -1)
	var out []string
	var current strings.Builder

	flush := func() {
		content := strings.TrimSpace(current.String())
		if content != "" {
			out = append(out, content)
		}
		current.Reset()
	}

	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if utf8.RuneCountInString(p) > params.Max {
			flush()
			out = append(out, c.chunkSentence(p, params)...)
			continue
		}
		if current.Len() > 0 && utf8.RuneCountInString(current.String())+utf8.RuneCountInString(p) > params.ChunkSize {
			flush()
		}
		current.WriteString(p)
		current.WriteString("\n\n")
	}
	flush()
	return out
}

// chunkHybrid tries paragraph grouping, falling back to sentence for
// oversize paragraphs and to fixed for paragraphs so large that sentence
// splitting still leaves an oversize remainder.
func (c *Chunker) chunkHybrid(text string, params Params) []string {
	paragraphs := paragraphPattern.Split(text, -1)
	var out []string
	var current strings.Builder

	flush := func() {
		content := strings.TrimSpace(current.String())
		if content != "" {
			out = append(out, content)
		}
		current.Reset()
	}

	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		switch {
		case utf8.RuneCountInString(p) > params.Max*2:
			flush()
			out = append(out, c.chunkFixed(p, params)...)
		case utf8.RuneCountInString(p) > params.Max:
			flush()
			out = append(out, c.chunkSentence(p, params)...)
		default:
			if current.Len() > 0 && utf8.RuneCountInString(current.String())+utf8.RuneCountInString(p) > params.ChunkSize {
				flush()
			}
			current.WriteString(p)
			current.WriteString("\n\n")
		}
	}
	flush()
	return out
}

func splitByWord(text string, maxRunes int) []string {
	words := strings.Fields(text)
	var out []string
	var current strings.Builder
	count := 0
	for _, w := range words {
		wl := utf8.RuneCountInString(w)
		if count+wl > maxRunes && current.Len() > 0 {
			out = append(out, strings.TrimSpace(current.String()))
			current.Reset()
			count = 0
		}
		current.WriteString(w)
		current.WriteString(" ")
		count += wl + 1
	}
	if current.Len() > 0 {
		out = append(out, strings.TrimSpace(current.String()))
	}
	return out
}
