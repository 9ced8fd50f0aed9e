package chunking

import (
	"strings"
	"testing"
)

func TestAutoSelectsFixedForShortText(t *testing.T) {
	c := New()
	chunks := c.Chunk("short text under five hundred characters", StrategyAuto, Params{})
	if len(chunks) != 1 {
		t.Fatalf("expected a single chunk, got %d", len(chunks))
	}
}

func TestFixedStrategyRespectsOverlap(t *testing.T) {
	c := New()
	text := strings.Repeat("word ", 1000)
	chunks := c.Chunk(text, StrategyFixed, Params{ChunkSize: 200, Overlap: 50, Min: 1, Max: 10000})
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
}

func TestParagraphStrategyFallsBackOnOversizeParagraph(t *testing.T) {
	c := New()
	huge := strings.Repeat("a sentence. ", 400)
	text := "intro para.\n\n" + huge
	chunks := c.Chunk(text, StrategyParagraph, Params{ChunkSize: 500, Max: 1000, Min: 1})
	if len(chunks) < 2 {
		t.Fatalf("expected the oversize paragraph to be split, got %d chunks", len(chunks))
	}
}

func TestPostProcessDropsBelowMin(t *testing.T) {
	c := New()
	chunks := c.Chunk("hi", StrategyFixed, Params{ChunkSize: 1000, Min: 100})
	if len(chunks) != 0 {
		t.Fatalf("expected sub-min chunk to be dropped, got %d", len(chunks))
	}
}
