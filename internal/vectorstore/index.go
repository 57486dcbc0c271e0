// Package vectorstore provides the vector index abstraction and its two
// backend implementations: an embedded chromem-go store and a managed
// Qdrant index reached over gRPC.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
)

// UpsertBatchSize is the backend upsert chunk limit. Batches larger than
// this are split transparently by Upsert.
const UpsertBatchSize = 100

// Sentinel errors for vector index operations.
var (
	// ErrInvalidConfig indicates invalid backend configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrStorageIO indicates a local disk failure (permissions, disk full).
	ErrStorageIO = errors.New("vector store I/O failure")

	// ErrRemoteIndex indicates a remote index failure that persisted through
	// bounded retries.
	ErrRemoteIndex = errors.New("remote index failure")

	// ErrDimensionMismatch indicates an existing remote index whose vector
	// dimension disagrees with the configured embedding model. Fatal;
	// requires an operator to pick a compatible index or model.
	ErrDimensionMismatch = errors.New("index dimension mismatch")

	// ErrCountUnavailable indicates the backend cannot cheaply report its
	// entry count. A legitimate result, not a failure.
	ErrCountUnavailable = errors.New("count unavailable")

	// ErrEmptyEntries indicates an empty or nil entry slice.
	ErrEmptyEntries = errors.New("empty or nil entries")
)

// Entry is the persisted unit inside a vector index: id, embedding vector
// and metadata. The metadata carries the original narrative text under
// "text" so similarity search can return content, not just ids.
type Entry struct {
	ID       string
	Vector   []float32
	Metadata map[string]interface{}
}

// ScoredDocument is one similarity search hit.
type ScoredDocument struct {
	ID       string
	Text     string
	Metadata map[string]interface{}

	// Score is the cosine similarity (higher = more similar).
	Score float32
}

// BatchUpsertError reports a failure partway through a chunked upsert.
// Succeeded lists the chunk indices already committed so the caller can
// resume instead of re-uploading everything; duplicate upserts of an
// already-present id are safe because of last-write-wins.
type BatchUpsertError struct {
	Succeeded   []int
	FailedBatch int
	Err         error
}

func (e *BatchUpsertError) Error() string {
	return fmt.Sprintf("upsert batch %d failed (%d batches committed): %v",
		e.FailedBatch, len(e.Succeeded), e.Err)
}

func (e *BatchUpsertError) Unwrap() error { return e.Err }

// Index is the polymorphic vector storage abstraction. Both backend
// variants satisfy it identically; callers never depend on backend types.
//
// All methods are safe for concurrent read-style use by in-flight queries;
// Upsert and Wipe are expected to be driven by a single ingestion loop.
type Index interface {
	// Upsert inserts or replaces entries keyed by id (last-write-wins, no
	// versioning). Batches larger than UpsertBatchSize are chunked
	// transparently and uploaded sequentially; a mid-run failure returns a
	// *BatchUpsertError naming the committed chunks.
	Upsert(ctx context.Context, entries []Entry) error

	// Query returns up to k entries ordered by descending cosine similarity
	// to vector. Ties break in the backend's insertion/storage order
	// (stable but backend-defined). A non-nil filter restricts results to
	// entries whose metadata satisfies every condition.
	Query(ctx context.Context, vector []float32, k int, filter Filter) ([]ScoredDocument, error)

	// Count returns the number of persisted entries. Returns
	// ErrCountUnavailable when the backend cannot cheaply report it.
	Count(ctx context.Context) (int, error)

	// Wipe deletes all entries. Used only when re-indexing is forced.
	Wipe(ctx context.Context) error

	// Exists reports whether any persisted state already exists:
	// a populated on-disk collection for the local variant, an existing
	// non-empty remote index for the cloud variant.
	Exists(ctx context.Context) (bool, error)

	// Kind identifies the backend ("chromem" or "qdrant").
	Kind() string

	// Close releases the backend connection and resources.
	Close() error
}

func chunkEntries(entries []Entry, size int) [][]Entry {
	if size <= 0 {
		size = UpsertBatchSize
	}
	var chunks [][]Entry
	for start := 0; start < len(entries); start += size {
		end := start + size
		if end > len(entries) {
			end = len(entries)
		}
		chunks = append(chunks, entries[start:end])
	}
	return chunks
}
