package failures

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/recallio/recall-mvp/engine/semantic"
)

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Writer persists records into the vector store.
type Writer interface {
	Upsert(ctx context.Context, records []semantic.Record) error
}

// Indexer embeds failure reports and upserts them as single points.
type Indexer struct {
	embed  Embedder
	store  Writer
	logger *slog.Logger
}

// NewIndexer creates an Indexer.
func NewIndexer(embed Embedder, store Writer, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{embed: embed, store: store, logger: logger}
}

// IndexReport embeds one failure and writes it with an acknowledged
// upsert. The failure payload is flat; failures never chunk because the
// embedding text is bounded by the normalised stack prefix.
func (ix *Indexer) IndexReport(ctx context.Context, r Report) (Result, error) {
	testName := PickTestName(r.Result)
	pointID := PointID(r)
	signatureID := SignatureID(r, testName)

	vector, err := ix.embed.Embed(ctx, BuildEmbeddingText(r, testName))
	if err != nil {
		return Result{}, fmt.Errorf("failures: embed: %w", err)
	}

	record := semantic.Record{
		ID:     pointID,
		Vector: vector,
		Payload: map[string]any{
			"project_name":        r.Project,
			"definition_name":     r.Definition,
			"build_id":            r.BuildID,
			"build_name":          r.BuildName,
			"test_run_id":         r.TestRunID,
			"test_result_id":      r.Result.ID,
			"test_name":           testName,
			"automated_test_name": r.Result.AutomatedTestName,
			"computer_name":       r.Result.ComputerName,
			"outcome":             r.Result.Outcome,
			"timestamp_ms":        timestampMs(r.Result),
			"signature_id":        signatureID,
			"error_message":       r.Result.ErrorMessage,
			"stack_trace":         r.Result.StackTrace,
		},
	}

	if err := ix.store.Upsert(ctx, []semantic.Record{record}); err != nil {
		return Result{}, fmt.Errorf("failures: store: %w", err)
	}

	ix.logger.Info("failure indexed",
		"point_id", pointID,
		"signature_id", signatureID,
		"test", testName,
	)
	return Result{PointID: pointID, SignatureID: signatureID}, nil
}

// timestampMs prefers the completion time, then the start time, then now.
func timestampMs(r TestResult) int64 {
	switch {
	case r.CompletedAt != nil:
		return r.CompletedAt.UnixMilli()
	case r.StartedAt != nil:
		return r.StartedAt.UnixMilli()
	default:
		return time.Now().UnixMilli()
	}
}
