// Command worker consumes CI test-failure reports from NATS and indexes
// them into the Qdrant collection for similarity search over failures.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/recallio/recall-mvp/engine/failures"
	"github.com/recallio/recall-mvp/engine/semantic"
	"github.com/recallio/recall-mvp/pkg/metrics"
	"github.com/recallio/recall-mvp/pkg/openai"
)

var met = metrics.New()

func main() {
	_ = godotenv.Load()

	var (
		natsURL     = flag.String("nats", nats.DefaultURL, "NATS server URL")
		qdrantGRPC  = flag.String("qdrant", "localhost:6334", "Qdrant gRPC address")
		qdrantHTTP  = flag.String("qdrant-http", "http://localhost:6333", "Qdrant REST base URL")
		collection  = flag.String("collection", "failed-tests", "Qdrant collection name")
		vectorDim   = flag.Int("dim", 1536, "embedding vector size")
		openaiBase  = flag.String("openai", "https://api.openai.com/v1", "OpenAI-compatible base URL")
		embedModel  = flag.String("embed-model", "text-embedding-3-small", "embedding model")
		metricsPort = flag.Int("metrics-port", 9091, "metrics HTTP port")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	met.ServeAsync(*metricsPort)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := semantic.New(*qdrantGRPC, *qdrantHTTP, *collection)
	if err != nil {
		logger.Error("qdrant connect failed", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.Bootstrap(ctx, *vectorDim, 30, time.Second, logger); err != nil {
		logger.Error("bootstrap failed", "err", err)
		os.Exit(1)
	}

	nc, err := nats.Connect(*natsURL)
	if err != nil {
		logger.Error("nats connect failed", "err", err)
		os.Exit(1)
	}
	defer nc.Close()

	ai := openai.New(openai.Config{
		BaseURL:    *openaiBase,
		APIKey:     os.Getenv("OPENAI_API_KEY"),
		EmbedModel: *embedModel,
	})

	indexer := failures.NewIndexer(&countingEmbedder{inner: ai}, store, logger)

	sub, err := failures.StartConsumer(nc, indexer, logger)
	if err != nil {
		logger.Error("subscribe failed", "err", err)
		os.Exit(1)
	}
	defer sub.Unsubscribe()

	logger.Info("worker started",
		"subject", failures.Subject,
		"collection", *collection,
		"nats", *natsURL,
	)

	<-ctx.Done()
	logger.Info("shutdown signal received")
}

var (
	mEmbeds      = met.Counter("recall_worker_embeddings_total", "Embedding calls issued")
	mEmbedErrors = met.Counter("recall_worker_embed_errors_total", "Failed embedding calls")
	mEmbedDur    = met.Histogram("recall_worker_embed_duration_seconds", "Embedding call latency", []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5})
)

// countingEmbedder wraps the model client with worker metrics.
type countingEmbedder struct {
	inner *openai.Client
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vec, err := c.inner.Embed(ctx, text)
	mEmbeds.Inc()
	mEmbedDur.Since(start)
	if err != nil {
		mEmbedErrors.Inc()
	}
	return vec, err
}
