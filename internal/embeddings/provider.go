// Package embeddings provides embedding generation for the retrieval pipeline.
package embeddings

import (
	"context"
	"errors"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrEmbeddingUnavailable indicates the embedding model could not be
	// loaded. This is fatal to pipeline setup, not per-query.
	ErrEmbeddingUnavailable = errors.New("embedding model unavailable")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// Provider generates vector embeddings from text.
//
// Providers are expensive to construct (model load) and are built once per
// process. All methods are safe for concurrent use.
type Provider interface {
	// EmbedDocuments generates embeddings for multiple texts, one vector per
	// input in the same order. Vectors are unit-normalized.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query. Some models
	// encode queries differently from documents.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the embedding dimension for the configured model.
	Dimension() int

	// ModelName returns the configured model name.
	ModelName() string

	// Close releases resources held by the provider.
	Close() error
}
