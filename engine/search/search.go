// Package search implements the three retrieval modes over the vector
// store: fixed top-K, score-threshold, and metadata-only browsing.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/recallio/recall-mvp/engine/domain"
)

// Default limits, matching the API defaults.
const (
	DefaultTopK           = 5
	DefaultThreshold      = 0.4
	DefaultThresholdLimit = 100
	DefaultBrowseLimit    = 25
)

// Embedder turns query text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Store is the retrieval surface of the vector store.
type Store interface {
	Query(ctx context.Context, vector []float32, limit int, tags map[string]string, scoreThreshold *float32) ([]domain.Hit, error)
	Browse(ctx context.Context, tags map[string]string, limit int) ([]domain.Hit, error)
}

// TopKRequest asks for at most K results ranked by similarity. K nil
// means "use the default"; an explicit non-positive K is rejected
// rather than silently replaced.
type TopKRequest struct {
	QueryText string            `json:"query_text"`
	K         *int              `json:"k,omitempty"`
	Tags      map[string]string `json:"tags,omitempty"`
}

// ThresholdRequest asks for every match at or above ScoreThreshold, up
// to the safety cap Limit. A nil threshold means "use the default"; an
// explicit zero disables the score floor.
type ThresholdRequest struct {
	QueryText      string            `json:"query_text"`
	ScoreThreshold *float32          `json:"score_threshold,omitempty"`
	Limit          int               `json:"limit"`
	Tags           map[string]string `json:"tags,omitempty"`
}

// MetadataRequest browses by tag filter only; no vector is involved.
type MetadataRequest struct {
	Limit int               `json:"limit"`
	Tags  map[string]string `json:"tags,omitempty"`
}

// Service is the retrieval orchestrator. Stateless per request.
type Service struct {
	embed  Embedder
	store  Store
	logger *slog.Logger
}

// New creates a Service.
func New(embed Embedder, store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{embed: embed, store: store, logger: logger}
}

// TopK embeds the query and returns up to K results, ranked by cosine
// similarity descending.
func (s *Service) TopK(ctx context.Context, req TopKRequest) ([]domain.Hit, error) {
	if err := domain.ValidateQueryText(req.QueryText); err != nil {
		return nil, err
	}
	k := DefaultTopK
	if req.K != nil {
		if *req.K <= 0 {
			return nil, domain.NewValidationError("k", strconv.Itoa(*req.K), domain.ErrNonPositiveLimit)
		}
		k = *req.K
	}

	vector, err := s.embed.Embed(ctx, req.QueryText)
	if err != nil {
		return nil, fmt.Errorf("search: embed query: %w", err)
	}

	hits, err := s.store.Query(ctx, vector, k, req.Tags, nil)
	if err != nil {
		return nil, fmt.Errorf("search: topk: %w", err)
	}
	s.logger.Info("topk search", "k", k, "tags", len(req.Tags), "hits", len(hits))
	return hits, nil
}

// Threshold embeds the query and returns every match scoring at or
// above the cutoff, up to the cap.
func (s *Service) Threshold(ctx context.Context, req ThresholdRequest) ([]domain.Hit, error) {
	if err := domain.ValidateQueryText(req.QueryText); err != nil {
		return nil, err
	}
	threshold := float32(DefaultThreshold)
	if req.ScoreThreshold != nil {
		threshold = *req.ScoreThreshold
	}
	if req.Limit <= 0 {
		req.Limit = DefaultThresholdLimit
	}

	vector, err := s.embed.Embed(ctx, req.QueryText)
	if err != nil {
		return nil, fmt.Errorf("search: embed query: %w", err)
	}

	hits, err := s.store.Query(ctx, vector, req.Limit, req.Tags, &threshold)
	if err != nil {
		return nil, fmt.Errorf("search: threshold: %w", err)
	}
	s.logger.Info("threshold search", "threshold", threshold, "hits", len(hits))
	return hits, nil
}

// Metadata browses by tag filter only. Hits carry the sentinel score 0
// because no similarity is computed.
func (s *Service) Metadata(ctx context.Context, req MetadataRequest) ([]domain.Hit, error) {
	if req.Limit <= 0 {
		req.Limit = DefaultBrowseLimit
	}

	hits, err := s.store.Browse(ctx, req.Tags, req.Limit)
	if err != nil {
		return nil, fmt.Errorf("search: metadata: %w", err)
	}
	s.logger.Info("metadata search", "tags", len(req.Tags), "hits", len(hits))
	return hits, nil
}
