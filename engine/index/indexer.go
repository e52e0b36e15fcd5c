// Package index orchestrates document indexing: chunk the text, embed
// each chunk, derive deterministic point ids, and batch-write to the
// vector store in one acknowledged call.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/recallio/recall-mvp/engine/chunk"
	"github.com/recallio/recall-mvp/engine/domain"
	"github.com/recallio/recall-mvp/engine/identity"
	"github.com/recallio/recall-mvp/engine/semantic"
	"github.com/recallio/recall-mvp/pkg/fn"
)

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Writer persists records into the vector store.
type Writer interface {
	Upsert(ctx context.Context, records []semantic.Record) error
}

// Options configures the indexing pipeline.
type Options struct {
	Chunking chunk.Options
	// EmbedWorkers bounds the concurrent per-chunk embedding calls
	// within one document. Chunk order is preserved regardless.
	EmbedWorkers int
}

// DefaultOptions returns production defaults.
func DefaultOptions() Options {
	return Options{Chunking: chunk.DefaultOptions(), EmbedWorkers: 4}
}

// Indexer is the indexing orchestrator. Stateless; safe for concurrent
// use across requests.
type Indexer struct {
	embed   Embedder
	store   Writer
	chunker *chunk.Chunker
	opts    Options
	logger  *slog.Logger
}

// New creates an Indexer.
func New(embed Embedder, store Writer, opts Options, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.EmbedWorkers <= 0 {
		opts.EmbedWorkers = DefaultOptions().EmbedWorkers
	}
	return &Indexer{
		embed:   embed,
		store:   store,
		chunker: chunk.New(opts.Chunking),
		opts:    opts,
		logger:  logger,
	}
}

// Index indexes a single document. The whole document succeeds or fails
// as a unit: an embedding or storage error aborts every chunk.
// Re-indexing identical input recomputes the same ids and overwrites in
// place.
func (ix *Indexer) Index(ctx context.Context, req domain.IndexRequest) (domain.IndexResult, error) {
	if err := domain.ValidateIndexRequest(req); err != nil {
		return domain.IndexResult{}, err
	}

	// Deterministic source id: from the caller-supplied id if present,
	// else from the raw text.
	idSource := req.ID
	if idSource == "" {
		idSource = req.Text
	}
	sourceID := identity.Derive(idSource)

	chunks, err := ix.chunker.Chunk(req.Text)
	if err != nil {
		return domain.IndexResult{}, err
	}

	pointIDs := make([]string, len(chunks))
	for i := range chunks {
		if len(chunks) == 1 {
			pointIDs[i] = sourceID
		} else {
			pointIDs[i] = identity.ChunkID(sourceID, i)
		}
	}

	// One remote call per chunk; issue them concurrently but keep the
	// index-to-position mapping intact.
	vectors := fn.Collect(fn.ParMapResult(chunks, ix.opts.EmbedWorkers, func(c chunk.Chunk) fn.Result[[]float32] {
		return fn.FromPair(ix.embed.Embed(ctx, c.Text))
	}))
	if vectors.IsErr() {
		_, embedErr := vectors.Unwrap()
		return domain.IndexResult{}, fmt.Errorf("index: embed: %w", embedErr)
	}
	embedded, _ := vectors.Unwrap()

	now := time.Now().UnixMilli()
	records := make([]semantic.Record, len(chunks))
	for i, c := range chunks {
		records[i] = semantic.Record{
			ID:      pointIDs[i],
			Vector:  embedded[i],
			Payload: buildPayload(req, c, sourceID, len(chunks), now),
		}
	}

	if err := ix.store.Upsert(ctx, records); err != nil {
		return domain.IndexResult{}, fmt.Errorf("index: store: %w", err)
	}

	ix.logger.Info("document indexed",
		"point_id", pointIDs[0],
		"chunks", len(chunks),
		"tags", len(req.Tags),
	)

	return domain.IndexResult{
		PointID:       pointIDs[0],
		TotalChunks:   len(chunks),
		ChunkPointIDs: pointIDs,
	}, nil
}

// IndexBatch indexes independent documents, isolating per-document
// failures so one bad document never aborts the rest.
func (ix *Indexer) IndexBatch(ctx context.Context, reqs []domain.IndexRequest) domain.BatchResult {
	res := domain.BatchResult{Total: len(reqs), Errors: []string{}}

	for _, req := range reqs {
		if _, err := ix.Index(ctx, req); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("[%s]: %s", batchLabel(req), err))
			continue
		}
		res.Succeeded++
	}
	res.Failed = len(res.Errors)
	return res
}

// buildPayload assembles the storage payload for one chunk. Every chunk
// inherits the parent document's tags so tag-filtered queries still
// match each fragment; chunk linkage is present only for multi-chunk
// documents.
func buildPayload(req domain.IndexRequest, c chunk.Chunk, sourceID string, totalChunks int, indexedAtMs int64) map[string]any {
	payload := map[string]any{
		semantic.KeyText:        c.Text,
		semantic.KeyIndexedAtMs: indexedAtMs,
	}

	if totalChunks > 1 {
		payload[semantic.KeySourceDocID] = sourceID
		payload[semantic.KeyChunkIndex] = c.Index
		payload[semantic.KeyTotalChunks] = totalChunks
	}

	for k, v := range req.Tags {
		payload[semantic.TagPrefix+k] = v
	}
	for k, v := range req.Properties {
		payload[semantic.PropPrefix+k] = v
	}
	return payload
}

func batchLabel(req domain.IndexRequest) string {
	if req.ID != "" {
		return req.ID
	}
	if req.Text == "" {
		return "(empty)"
	}
	if len(req.Text) > 40 {
		// Back up to a rune boundary so the label stays valid UTF-8.
		cut := 40
		for cut > 0 && !utf8.RuneStart(req.Text[cut]) {
			cut--
		}
		return req.Text[:cut]
	}
	return req.Text
}
