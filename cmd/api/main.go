// Package main implements the Recall API server: document indexing,
// the three search modes, and RAG chat over a Qdrant collection.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/recallio/recall-mvp/engine/chunk"
	"github.com/recallio/recall-mvp/engine/domain"
	"github.com/recallio/recall-mvp/engine/index"
	"github.com/recallio/recall-mvp/engine/rag"
	"github.com/recallio/recall-mvp/engine/search"
	"github.com/recallio/recall-mvp/engine/semantic"
	"github.com/recallio/recall-mvp/pkg/fn"
	"github.com/recallio/recall-mvp/pkg/metrics"
	"github.com/recallio/recall-mvp/pkg/mid"
	"github.com/recallio/recall-mvp/pkg/openai"
	"github.com/recallio/recall-mvp/pkg/resilience"
)

// Config holds all environment-based configuration.
type Config struct {
	Port           string
	QdrantGRPC     string
	QdrantHTTP     string
	Collection     string
	VectorDim      int
	OpenAIBaseURL  string
	OpenAIKey      string
	EmbedModel     string
	ChatModel      string
	MaxChunkSize   int
	ChunkOverlap   int
	EmbedWorkers   int
	EmbedRateLimit float64
	CORSOrigin     string
}

func loadConfig() Config {
	return Config{
		Port:           envOr("PORT", "8080"),
		QdrantGRPC:     envOr("QDRANT_GRPC", "localhost:6334"),
		QdrantHTTP:     envOr("QDRANT_HTTP", "http://localhost:6333"),
		Collection:     envOr("QDRANT_COLLECTION", "documents"),
		VectorDim:      envIntOr("VECTOR_DIM", 1536),
		OpenAIBaseURL:  envOr("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIKey:      envOr("OPENAI_API_KEY", ""),
		EmbedModel:     envOr("EMBED_MODEL", "text-embedding-3-small"),
		ChatModel:      envOr("CHAT_MODEL", "gpt-4o-mini"),
		MaxChunkSize:   envIntOr("MAX_CHUNK_SIZE", 2000),
		ChunkOverlap:   envIntOr("CHUNK_OVERLAP", 200),
		EmbedWorkers:   envIntOr("EMBED_WORKERS", 4),
		EmbedRateLimit: float64(envIntOr("EMBED_RATE_LIMIT", 0)),
		CORSOrigin:     envOr("CORS_ORIGIN", "*"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

var met = metrics.New()

var (
	mIndexed     = met.Counter("recall_api_documents_indexed_total", "Documents indexed")
	mIndexErrors = met.Counter("recall_api_index_errors_total", "Failed index requests")
	mChunks      = met.Counter("recall_api_chunks_indexed_total", "Chunks written to the vector store")
	mSearches    = func(mode string) *metrics.Counter {
		return met.Counter(metrics.WithLabels("recall_api_searches_total", "mode", mode), "Search requests by mode")
	}
	mChats = met.Counter("recall_api_chats_total", "Chat requests")
	// Indexing embeds every chunk of a document, so it runs long-tailed;
	// a search is one embed plus one query.
	mIndexDur  = met.Histogram("recall_api_index_duration_seconds", "Per-document indexing time", []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60})
	mSearchDur = met.Histogram("recall_api_search_duration_seconds", "Per-query search time", []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5})
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Connect to Qdrant ---
	store, err := semantic.New(cfg.QdrantGRPC, cfg.QdrantHTTP, cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer store.Close()

	// Qdrant may still be starting; retry collection creation with a
	// fixed delay before taking traffic.
	if err := store.Bootstrap(ctx, cfg.VectorDim, 30, time.Second, logger); err != nil {
		return err
	}

	// --- Model providers, guarded by a shared circuit breaker ---
	ai := openai.New(openai.Config{
		BaseURL:           cfg.OpenAIBaseURL,
		APIKey:            cfg.OpenAIKey,
		EmbedModel:        cfg.EmbedModel,
		ChatModel:         cfg.ChatModel,
		RequestsPerSecond: cfg.EmbedRateLimit,
	})
	guarded := &guardedProvider{
		inner:   ai,
		breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts),
	}

	// --- Services ---
	indexer := index.New(guarded, store, index.Options{
		Chunking:     chunk.Options{MaxChunkSize: cfg.MaxChunkSize, Overlap: cfg.ChunkOverlap},
		EmbedWorkers: cfg.EmbedWorkers,
	}, logger)
	searcher := search.New(guarded, store, logger)
	chatter := rag.New(searcher, guarded, logger)

	// --- HTTP server ---
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("POST /api/documents", handleIndex(indexer, logger))
	mux.HandleFunc("POST /api/documents/batch", handleIndexBatch(indexer, logger))
	mux.HandleFunc("POST /api/search/topk", handleTopK(searcher, logger))
	mux.HandleFunc("POST /api/search/threshold", handleThreshold(searcher, logger))
	mux.HandleFunc("POST /api/search/metadata", handleMetadata(searcher, logger))
	mux.HandleFunc("POST /api/chat", handleChat(chatter, logger))
	mux.Handle("GET /metrics", met.Handler())

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
		mid.OTel("recall-api"),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port, "collection", cfg.Collection)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// --- Handlers ---

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleIndex(indexer *index.Indexer, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.IndexRequest
		if !decode(w, r, &req) {
			return
		}

		start := time.Now()
		res, err := indexer.Index(r.Context(), req)
		if err != nil {
			mIndexErrors.Inc()
			writeError(w, logger, "index failed", err)
			return
		}
		mIndexed.Inc()
		mChunks.Add(int64(res.TotalChunks))
		mIndexDur.Since(start)
		writeJSON(w, http.StatusOK, res)
	}
}

func handleIndexBatch(indexer *index.Indexer, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var reqs []domain.IndexRequest
		if !decode(w, r, &reqs) {
			return
		}

		res := indexer.IndexBatch(r.Context(), reqs)
		mIndexed.Add(int64(res.Succeeded))
		writeJSON(w, http.StatusOK, res)
	}
}

func handleTopK(searcher *search.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req search.TopKRequest
		if !decode(w, r, &req) {
			return
		}

		start := time.Now()
		hits, err := searcher.TopK(r.Context(), req)
		if err != nil {
			writeError(w, logger, "topk search failed", err)
			return
		}
		mSearches("topk").Inc()
		mSearchDur.Since(start)
		writeJSON(w, http.StatusOK, hits)
	}
}

func handleThreshold(searcher *search.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req search.ThresholdRequest
		if !decode(w, r, &req) {
			return
		}

		start := time.Now()
		hits, err := searcher.Threshold(r.Context(), req)
		if err != nil {
			writeError(w, logger, "threshold search failed", err)
			return
		}
		mSearches("threshold").Inc()
		mSearchDur.Since(start)
		writeJSON(w, http.StatusOK, hits)
	}
}

func handleMetadata(searcher *search.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req search.MetadataRequest
		if !decode(w, r, &req) {
			return
		}

		hits, err := searcher.Metadata(r.Context(), req)
		if err != nil {
			writeError(w, logger, "metadata search failed", err)
			return
		}
		mSearches("metadata").Inc()
		writeJSON(w, http.StatusOK, hits)
	}
}

func handleChat(chatter *rag.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req rag.Request
		if !decode(w, r, &req) {
			return
		}

		answer, err := chatter.Chat(r.Context(), req)
		if err != nil {
			writeError(w, logger, "chat failed", err)
			return
		}
		mChats.Inc()
		writeJSON(w, http.StatusOK, answer)
	}
}

// --- Helpers ---

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps validation failures to 400 and everything else
// (upstream providers, storage) to 500, always with the message attached.
func writeError(w http.ResponseWriter, logger *slog.Logger, title string, err error) {
	logger.Error(title, "err", err)
	status := http.StatusInternalServerError
	if domain.IsValidation(err) {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": title, "detail": err.Error()})
}

// --- Adapters ---

// guardedProvider routes embedding and generation calls through a
// circuit breaker so a flapping model endpoint fails fast.
type guardedProvider struct {
	inner   *openai.Client
	breaker *resilience.Breaker
}

func (g *guardedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return resilience.CallResult(g.breaker, ctx, func(ctx context.Context) fn.Result[[]float32] {
		return fn.FromPair(g.inner.Embed(ctx, text))
	}).Unwrap()
}

func (g *guardedProvider) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return resilience.CallResult(g.breaker, ctx, func(ctx context.Context) fn.Result[string] {
		return fn.FromPair(g.inner.Generate(ctx, systemPrompt, userPrompt))
	}).Unwrap()
}
