package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"ragline/pkg/config"
)

// NoInputResponse is returned for empty prompts without touching any backend.
const NoInputResponse = "No input provided."

const (
	fallbackSystemPrompt  = "You are a helpful assistant. Answer briefly."
	retrievalSystemPrompt = "You are a helpful assistant. Answer the question using only the provided context. " +
		"If the context does not contain the answer, say so briefly."

	embedBatchSize = 64
)

// Backend is the slice of the model client the engine depends on.
type Backend interface {
	Complete(ctx context.Context, system string, prompt string) (string, error)
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// Engine answers natural-language queries over an in-memory document index,
// degrading to direct completion when no index could be built.
//
// The engine is immutable after construction and safe for unbounded concurrent
// Query calls. Its mode (index or fallback) never changes for the process
// lifetime.
type Engine struct {
	backend Backend
	index   *vectorIndex
	topK    int
	log     *slog.Logger
}

var (
	sharedMu     sync.Mutex
	sharedEngine *Engine
)

// Shared returns the process-wide engine, building it on first call. Concurrent
// first callers block on the gate and observe the same instance.
func Shared(ctx context.Context, cfg config.RAGConfig, backend Backend, log *slog.Logger) *Engine {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if sharedEngine == nil {
		sharedEngine = New(ctx, cfg, backend, log)
	}

	return sharedEngine
}

// New builds an engine over the configured document directory. Construction
// never fails: a missing directory, an empty corpus, or a build error all
// produce a working engine in fallback mode.
func New(ctx context.Context, cfg config.RAGConfig, backend Backend, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "rag.engine")

	engine := &Engine{backend: backend, topK: cfg.TopK, log: log}

	index, err := buildIndex(ctx, cfg, backend)
	if err != nil {
		log.Warn("Document index unavailable, using fallback responses", "data_dir", cfg.DataDir, "error", err)
		return engine
	}

	engine.index = index
	log.Info("Document index built", "data_dir", cfg.DataDir, "chunks", len(index.chunks))

	return engine
}

// Available reports whether retrieval mode is active.
func (e *Engine) Available() bool {
	return e.index != nil
}

// Query answers one prompt. Backend failures are returned to the caller; the
// per-message boundary upstream decides what the user sees.
func (e *Engine) Query(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return NoInputResponse, nil
	}

	if e.index == nil {
		return e.backend.Complete(ctx, fallbackSystemPrompt, prompt)
	}

	vectors, err := e.backend.Embed(ctx, []string{prompt})
	if err != nil {
		return "", fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return "", fmt.Errorf("embed query: empty embedding response")
	}

	retrieved := e.index.search(vectors[0], e.topK)
	return e.backend.Complete(ctx, retrievalSystemPrompt, retrievalPrompt(retrieved, prompt))
}

func retrievalPrompt(retrieved []chunk, prompt string) string {
	var b strings.Builder
	b.WriteString("Context:\n")
	for _, c := range retrieved {
		b.WriteString("---\n")
		b.WriteString(c.Content)
		b.WriteString("\n")
	}
	b.WriteString("---\n\nQuestion: ")
	b.WriteString(prompt)

	return b.String()
}

func buildIndex(ctx context.Context, cfg config.RAGConfig, backend Backend) (*vectorIndex, error) {
	documents, err := loadDocuments(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	if len(documents) == 0 {
		return nil, fmt.Errorf("no documents found under %s", cfg.DataDir)
	}

	var chunks []chunk
	for _, doc := range documents {
		for _, piece := range splitText(doc.Content, cfg.ChunkSize, cfg.ChunkOverlap) {
			chunks = append(chunks, chunk{Source: doc.Source, Content: piece})
		}
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("documents under %s produced no chunks", cfg.DataDir)
	}

	for start := 0; start < len(chunks); start += embedBatchSize {
		end := min(start+embedBatchSize, len(chunks))

		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Content)
		}

		vectors, err := backend.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed documents: %w", err)
		}
		if len(vectors) != len(texts) {
			return nil, fmt.Errorf("embed documents: got %d vectors for %d chunks", len(vectors), len(texts))
		}
		for i := range vectors {
			chunks[start+i].Vector = vectors[i]
		}
	}

	return &vectorIndex{chunks: chunks}, nil
}
