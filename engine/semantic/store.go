// Package semantic is the sole owner of all Qdrant operations: collection
// bootstrap, idempotent upserts, filtered similarity search over gRPC,
// and filter-only browsing over the REST scroll API.
package semantic

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/recallio/recall-mvp/engine/domain"
	"github.com/recallio/recall-mvp/pkg/fn"
)

// pointsAPI is the slice of pb.PointsClient the store uses.
type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
}

// collectionsAPI is the slice of pb.CollectionsClient the store uses.
type collectionsAPI interface {
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// Store talks to one Qdrant collection.
type Store struct {
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
	httpBase    string
	httpClient  *http.Client
	collection  string
}

// New creates a Store connected to Qdrant at the given gRPC address.
// httpBase is the REST endpoint (e.g. http://localhost:6333), used only
// for the scroll/browse surface.
func New(addr, httpBase, collection string) (*Store, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	return &Store{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		httpBase:    httpBase,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		collection:  collection,
	}, nil
}

// NewWithClients creates a Store over pre-built clients. Used in tests.
func NewWithClients(points pointsAPI, collections collectionsAPI, collection string) *Store {
	return &Store{
		points:      points,
		collections: collections,
		httpClient:  &http.Client{},
		collection:  collection,
	}
}

// Close closes the underlying gRPC connection.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// EnsureCollection creates the collection with cosine distance.
// AlreadyExists is treated as success so repeated startups are cheap.
func (s *Store) EnsureCollection(ctx context.Context, dims int) error {
	_, err := s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return fmt.Errorf("semantic: create collection %s: %w", s.collection, err)
	}
	return nil
}

// Bootstrap ensures the collection exists, retrying with a fixed delay
// to tolerate the API process starting before Qdrant is ready.
func (s *Store) Bootstrap(ctx context.Context, dims, attempts int, delay time.Duration, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	result := fn.Retry(ctx, fn.RetryOpts{
		MaxAttempts: attempts,
		InitialWait: delay,
		MaxWait:     delay,
	}, func(ctx context.Context) fn.Result[struct{}] {
		if err := s.EnsureCollection(ctx, dims); err != nil {
			logger.Warn("bootstrap attempt failed", "collection", s.collection, "err", err)
			return fn.Err[struct{}](err)
		}
		return fn.Ok(struct{}{})
	})
	if result.IsErr() {
		_, err := result.Unwrap()
		return fmt.Errorf("semantic: bootstrap %s: %w", s.collection, err)
	}
	logger.Info("collection ready", "collection", s.collection)
	return nil
}

// Upsert stores records, waiting for the write to be acknowledged.
// Writes are full overwrites keyed by the record id: re-indexing the
// same logical document is last-write-wins, never a duplicate.
func (s *Store) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, len(records))
	for i, r := range records {
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: r.ID},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: r.Vector},
				},
			},
			Payload: toValues(r.Payload),
		}
	}

	wait := true
	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("semantic: upsert %d points: %w", len(records), err)
	}
	return nil
}

// Query performs similarity search, optionally constrained by a tag
// filter and a minimum score. Results are ranked by cosine similarity,
// descending.
func (s *Store) Query(ctx context.Context, vector []float32, limit int, tags map[string]string, scoreThreshold *float32) ([]domain.Hit, error) {
	req := &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         vector,
		Limit:          uint64(limit),
		Filter:         Filter(tags),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		ScoreThreshold: scoreThreshold,
	}

	resp, err := s.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("semantic: search: %w", err)
	}

	hits := make([]domain.Hit, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		hits[i] = domain.Hit{
			ID:      r.GetId().GetUuid(),
			Score:   r.GetScore(),
			Payload: fromValues(r.GetPayload()),
		}
	}
	return hits, nil
}
