package chunk

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/recallio/recall-mvp/engine/domain"
)

func TestChunkRejectsBlankText(t *testing.T) {
	c := New(DefaultOptions())
	for _, text := range []string{"", "   ", "\n\t "} {
		if _, err := c.Chunk(text); !errors.Is(err, domain.ErrEmptyText) {
			t.Errorf("Chunk(%q): expected ErrEmptyText, got %v", text, err)
		}
	}
}

func TestChunkShortTextSingleChunk(t *testing.T) {
	c := New(Options{MaxChunkSize: 100, Overlap: 10})
	text := "short enough to fit"

	chunks, err := c.Chunk(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	got := chunks[0]
	if got.Text != text || got.Index != 0 || got.StartOffset != 0 || got.EndOffset != len(text) {
		t.Fatalf("unexpected chunk: %+v", got)
	}
}

func TestChunkExactMaxSizeSingleChunk(t *testing.T) {
	c := New(Options{MaxChunkSize: 10})
	chunks, err := c.Chunk("abcdefghij")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk for text at the size limit, got %d", len(chunks))
	}
}

func TestChunkDeterministic(t *testing.T) {
	c := New(Options{MaxChunkSize: 30, Overlap: 5})
	text := strings.Repeat("The quick brown fox jumps. ", 10)

	a, err := c.Chunk(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := c.Chunk(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatal("same input produced different chunks")
	}
}

func TestChunkSizeAndIndexInvariants(t *testing.T) {
	c := New(Options{MaxChunkSize: 50, Overlap: 10})
	text := strings.Repeat("Some sentences here. They vary a bit in length! Right? ", 20)

	chunks, err := c.Chunk(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if ch.Index != i {
			t.Errorf("chunk %d has index %d", i, ch.Index)
		}
		if len(ch.Text) > 50 {
			t.Errorf("chunk %d is %d chars, exceeds max", i, len(ch.Text))
		}
		if ch.Text == "" {
			t.Errorf("chunk %d is empty", i)
		}
	}
}

func TestChunkOverlapRepeatsTail(t *testing.T) {
	// No whitespace anywhere, so every cut is a hard cut and the raw
	// window equals the emitted text.
	c := New(Options{MaxChunkSize: 10, Overlap: 3})
	text := strings.Repeat("0123456789", 10)

	chunks, err := c.Chunk(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < len(chunks)-1; i++ {
		cur, next := chunks[i].Text, chunks[i+1].Text
		tail := cur[len(cur)-3:]
		if !strings.HasPrefix(next, tail) {
			t.Fatalf("chunk %d tail %q not repeated at start of chunk %d (%q)", i, tail, i+1, next)
		}
	}
}

func TestChunkOverlapLargerThanSizeStillAdvances(t *testing.T) {
	c := New(Options{MaxChunkSize: 10, Overlap: 20})
	text := strings.Repeat("0123456789", 10)

	chunks, err := c.Chunk(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Degenerate overlap falls back to contiguous full-size windows.
	if len(chunks) != 10 {
		t.Fatalf("expected 10 contiguous chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if ch.StartOffset != i*10 || ch.EndOffset != i*10+10 {
			t.Errorf("chunk %d window [%d,%d), want [%d,%d)", i, ch.StartOffset, ch.EndOffset, i*10, i*10+10)
		}
	}
}

func TestChunkNoBoundariesExactSplit(t *testing.T) {
	c := New(Options{MaxChunkSize: 10, Overlap: 0})
	chunks, err := c.Chunk(strings.Repeat("abcdefghij", 3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if ch.Text != "abcdefghij" {
			t.Errorf("chunk %d text %q", i, ch.Text)
		}
	}
}

func TestChunkBreaksAtSentenceEnd(t *testing.T) {
	c := New(Options{MaxChunkSize: 20, Overlap: 0})
	chunks, err := c.Chunk("abcdefghij klmnop. qrstuvwxyz1234567890")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chunks[0].Text != "abcdefghij klmnop." {
		t.Fatalf("first chunk %q, want break after the sentence", chunks[0].Text)
	}
	if chunks[0].EndOffset != 18 {
		t.Fatalf("first chunk end offset %d, want 18", chunks[0].EndOffset)
	}
}

func TestChunkPrefersNewlineOverSentence(t *testing.T) {
	c := New(Options{MaxChunkSize: 20, Overlap: 0})
	chunks, err := c.Chunk("abcdefghijkl\nmno. pqrstuvwxyz0123456789")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chunks[0].Text != "abcdefghijkl" {
		t.Fatalf("first chunk %q, want break at the newline", chunks[0].Text)
	}
}

func TestChunkIgnoresFrontHalfBoundary(t *testing.T) {
	// The only sentence end sits in the front half of the window, so the
	// chunker hard-cuts at the size limit instead of using it.
	c := New(Options{MaxChunkSize: 20, Overlap: 0})
	chunks, err := c.Chunk("abc. defghijklmnopqrstuvwxyz")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chunks[0].Text != "abc. defghijklmnopqr" {
		t.Fatalf("first chunk %q, want a hard cut at 20 chars", chunks[0].Text)
	}
}

func TestChunkDropsWhitespaceOnlyWindows(t *testing.T) {
	c := New(Options{MaxChunkSize: 5, Overlap: 0})
	chunks, err := c.Chunk("aaaaa     bbbbb")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, ch := range chunks {
		if strings.TrimSpace(ch.Text) == "" {
			t.Fatalf("chunk %d is whitespace-only", i)
		}
		if ch.Index != i {
			t.Fatalf("indices not contiguous after a dropped window: chunk %d has index %d", i, ch.Index)
		}
	}
	if chunks[0].Text != "aaaaa" {
		t.Errorf("first chunk %q", chunks[0].Text)
	}
	if last := chunks[len(chunks)-1].Text; !strings.HasPrefix(last, "b") {
		t.Errorf("last chunk %q", last)
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	c := New(Options{MaxChunkSize: 0, Overlap: -5})
	if c.opts.MaxChunkSize != DefaultOptions().MaxChunkSize {
		t.Errorf("max chunk size %d", c.opts.MaxChunkSize)
	}
	if c.opts.Overlap != 0 {
		t.Errorf("overlap %d, want 0", c.opts.Overlap)
	}
}
