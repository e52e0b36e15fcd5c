// Package chunk splits long text into overlapping, embeddable segments.
// Size accounting is character-based: roughly four characters per token
// for English keeps the default well under embedding-model input limits
// without pulling in a tokenizer.
package chunk

import (
	"strings"
	"unicode"

	"github.com/recallio/recall-mvp/engine/domain"
)

// Options configures the chunker.
type Options struct {
	// MaxChunkSize is the maximum number of characters per chunk.
	MaxChunkSize int
	// Overlap is the number of characters repeated between consecutive
	// chunks for context continuity.
	Overlap int
}

// DefaultOptions returns the production defaults: 2000-character chunks
// (~500 tokens) with a 10% overlap.
func DefaultOptions() Options {
	return Options{MaxChunkSize: 2000, Overlap: 200}
}

// Chunk is one contiguous segment of a source text. StartOffset and
// EndOffset describe the pre-trim window in the original text.
type Chunk struct {
	Text        string
	Index       int
	StartOffset int
	EndOffset   int
}

// Chunker splits text with a preference for sentence and paragraph
// boundaries. It is a pure function of its inputs: the same text and
// options always yield the same chunks.
type Chunker struct {
	opts Options
}

// New creates a Chunker.
func New(opts Options) *Chunker {
	if opts.MaxChunkSize <= 0 {
		opts.MaxChunkSize = DefaultOptions().MaxChunkSize
	}
	if opts.Overlap < 0 {
		opts.Overlap = 0
	}
	return &Chunker{opts: opts}
}

// Chunk splits text into chunks of at most MaxChunkSize characters.
// Blank input is rejected; text that fits in one chunk is returned
// untouched.
func (c *Chunker) Chunk(text string) ([]Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.NewValidationError("text", text, domain.ErrEmptyText)
	}

	if len(text) <= c.opts.MaxChunkSize {
		return []Chunk{{Text: text, Index: 0, StartOffset: 0, EndOffset: len(text)}}, nil
	}

	var chunks []Chunk
	chunkIndex := 0
	start := 0

	for start < len(text) {
		length := c.opts.MaxChunkSize
		if remaining := len(text) - start; remaining < length {
			length = remaining
		}

		// Not the last chunk? Break at a sentence boundary if one exists.
		if start+length < len(text) {
			length = findBoundary(text, start, length)
		}

		chunkText := strings.TrimSpace(text[start : start+length])
		if chunkText != "" {
			chunks = append(chunks, Chunk{
				Text:        chunkText,
				Index:       chunkIndex,
				StartOffset: start,
				EndOffset:   start + length,
			})
			chunkIndex++
		}

		// Advance by (length - overlap) so the next chunk repeats the
		// last Overlap characters. Always advance at least one character.
		advance := length - c.opts.Overlap
		if advance < 1 {
			advance = length
		}
		start += advance
	}

	return chunks, nil
}

// findBoundary scans backwards from the end of the proposed chunk for
// the best break point and returns the adjusted length. The lookback is
// limited to the back half of the window, [searchStart, end): a boundary
// in the front half is ignored in favour of a hard cut. Newline and
// plain-space matches must fall strictly after searchStart; sentence
// punctuation may sit on it.
func findBoundary(text string, start, maxLength int) int {
	searchStart := start + maxLength/2
	end := start + maxLength

	// Paragraph breaks first.
	for i := end - 1; i >= searchStart; i-- {
		if text[i] == '\n' {
			if i > searchStart {
				return i - start + 1 // include the newline
			}
			break
		}
	}

	// Then sentence enders followed by whitespace.
	for i := end - 1; i >= searchStart; i-- {
		if isSentenceEnd(text[i]) && i+1 < len(text) && unicode.IsSpace(rune(text[i+1])) {
			return i - start + 1 // include the punctuation
		}
	}

	// Last resort: break at any space.
	for i := end - 1; i >= searchStart; i-- {
		if text[i] == ' ' {
			if i > searchStart {
				return i - start
			}
			break
		}
	}

	// No good boundary found.
	return maxLength
}

func isSentenceEnd(b byte) bool {
	return b == '.' || b == '?' || b == '!'
}
