// Package rag orchestrates retrieval-augmented generation: embed the
// question, retrieve the most similar chunks, assemble them into a
// numbered context block, and ask the generation model to answer from
// that context alone.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/recallio/recall-mvp/engine/domain"
	"github.com/recallio/recall-mvp/engine/search"
	"github.com/recallio/recall-mvp/engine/semantic"
	"github.com/recallio/recall-mvp/pkg/fn"
)

const defaultSystemPrompt = `You are a helpful assistant. Answer the user's question based ONLY on
the provided context documents. If the context does not contain enough
information to answer, say so clearly - do not make up facts.`

// Retriever is the retrieval step backing the chat pipeline.
type Retriever interface {
	TopK(ctx context.Context, req search.TopKRequest) ([]domain.Hit, error)
}

// Generator produces an answer from a system and user prompt.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Request is one chat turn. K nil means the retrieval default.
type Request struct {
	Question       string            `json:"question"`
	K              *int              `json:"k,omitempty"`
	ScoreThreshold *float32          `json:"score_threshold,omitempty"`
	Tags           map[string]string `json:"tags,omitempty"`
	SystemPrompt   string            `json:"system_prompt,omitempty"`
}

// Answer is the generated reply plus the chunks that grounded it.
type Answer struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// Source is a single chunk that contributed to the answer.
type Source struct {
	ID    string  `json:"id"`
	Score float32 `json:"score"`
	Text  string  `json:"text"`
}

// Service runs the chat pipeline.
type Service struct {
	retriever Retriever
	generate  Generator
	logger    *slog.Logger
}

// New creates a Service.
func New(retriever Retriever, generate Generator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{retriever: retriever, generate: generate, logger: logger}
}

// Chat answers a question grounded in retrieved chunks.
func (s *Service) Chat(ctx context.Context, req Request) (*Answer, error) {
	if err := domain.ValidateQueryText(req.Question); err != nil {
		return nil, err
	}

	hits, err := s.retriever.TopK(ctx, search.TopKRequest{
		QueryText: req.Question,
		K:         req.K,
		Tags:      req.Tags,
	})
	if err != nil {
		return nil, fmt.Errorf("rag: retrieve: %w", err)
	}

	// An optional score floor excludes weak matches from the context
	// even when they made the top K.
	if req.ScoreThreshold != nil {
		hits = fn.Filter(hits, func(h domain.Hit) bool {
			return h.Score >= *req.ScoreThreshold
		})
	}

	sources := fn.Map(hits, func(h domain.Hit) Source {
		text, _ := h.Payload[semantic.KeyText].(string)
		return Source{ID: h.ID, Score: h.Score, Text: text}
	})

	systemPrompt := req.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}

	answer, err := s.generate.Generate(ctx, systemPrompt, buildUserPrompt(req.Question, sources))
	if err != nil {
		return nil, fmt.Errorf("rag: generate: %w", err)
	}

	s.logger.Info("chat answered", "sources", len(sources), "question_len", len(req.Question))
	return &Answer{Answer: answer, Sources: sources}, nil
}

// buildUserPrompt formats the retrieved chunks as a numbered context
// block followed by the question.
func buildUserPrompt(question string, sources []Source) string {
	parts := make([]string, len(sources))
	for i, src := range sources {
		parts[i] = fmt.Sprintf("[%d] %s", i+1, src.Text)
	}

	var b strings.Builder
	b.WriteString("Context:\n")
	b.WriteString(strings.Join(parts, "\n\n"))
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	return b.String()
}
