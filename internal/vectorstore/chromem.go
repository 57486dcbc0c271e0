package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var chromemTracer = otel.Tracer("finrag.vectorstore.chromem")

// ChromemConfig holds configuration for the embedded chromem-go store.
type ChromemConfig struct {
	// Path is the directory for persistent storage. Presence of persisted
	// collection state in this directory is the signal used by Exists.
	Path string

	// Compress enables gzip compression for stored data.
	Compress bool

	// Collection is the collection name.
	Collection string

	// VectorSize is the expected embedding dimension.
	// Must match the embedding provider's output dimension.
	VectorSize int
}

// Validate validates the configuration.
func (c ChromemConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("%w: path required", ErrInvalidConfig)
	}
	if c.Collection == "" {
		return fmt.Errorf("%w: collection required", ErrInvalidConfig)
	}
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidConfig)
	}
	return nil
}

// ChromemIndex implements Index using chromem-go, an embeddable pure-Go
// vector database persisting to gob files in a directory. There are no
// network failure modes; disk errors surface as ErrStorageIO.
type ChromemIndex struct {
	db     *chromem.DB
	config ChromemConfig
	logger *zap.Logger
}

// NewChromemIndex opens or creates a persistent chromem store at the
// configured directory.
func NewChromemIndex(cfg ChromemConfig, logger *zap.Logger) (*ChromemIndex, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating directory %s: %v", ErrStorageIO, cfg.Path, err)
	}

	db, err := chromem.NewPersistentDB(cfg.Path, cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("%w: opening store at %s: %v", ErrStorageIO, cfg.Path, err)
	}

	idx := &ChromemIndex{
		db:     db,
		config: cfg,
		logger: logger,
	}

	logger.Info("chromem index opened",
		zap.String("path", cfg.Path),
		zap.String("collection", cfg.Collection),
		zap.Int("vector_size", cfg.VectorSize),
	)
	return idx, nil
}

// noEmbeddingFunc guards against chromem ever being asked to embed: all
// entries arrive with vectors already attached.
func noEmbeddingFunc(context.Context, string) ([]float32, error) {
	return nil, errors.New("embedding vector must be supplied by the caller")
}

func (s *ChromemIndex) collection() *chromem.Collection {
	return s.db.GetCollection(s.config.Collection, noEmbeddingFunc)
}

// Upsert inserts or replaces entries. Chunks of UpsertBatchSize are written
// sequentially; a mid-run disk failure reports committed chunks via
// *BatchUpsertError.
func (s *ChromemIndex) Upsert(ctx context.Context, entries []Entry) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemIndex.Upsert")
	defer span.End()
	span.SetAttributes(attribute.Int("entry_count", len(entries)))

	if len(entries) == 0 {
		return ErrEmptyEntries
	}

	collection, err := s.db.GetOrCreateCollection(s.config.Collection, nil, noEmbeddingFunc)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: collection %s: %v", ErrStorageIO, s.config.Collection, err)
	}

	var succeeded []int
	for i, chunk := range chunkEntries(entries, UpsertBatchSize) {
		docs := make([]chromem.Document, len(chunk))
		for j, e := range chunk {
			docs[j] = chromem.Document{
				ID:        e.ID,
				Content:   entryText(e.Metadata),
				Metadata:  metadataToString(e.Metadata),
				Embedding: e.Vector,
			}
		}
		// Concurrency 1: embeddings are precomputed, nothing to parallelize.
		if err := collection.AddDocuments(ctx, docs, 1); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return &BatchUpsertError{
				Succeeded:   succeeded,
				FailedBatch: i,
				Err:         fmt.Errorf("%w: %v", ErrStorageIO, err),
			}
		}
		succeeded = append(succeeded, i)
	}

	span.SetStatus(codes.Ok, "success")
	s.logger.Debug("upserted entries",
		zap.String("collection", s.config.Collection),
		zap.Int("count", len(entries)),
	)
	return nil
}

// Query returns up to k entries by descending cosine similarity.
//
// chromem's native where-filter supports string equality only, so range
// predicates are evaluated here: the query over-fetches the collection and
// applies the filter before truncating to k.
func (s *ChromemIndex) Query(ctx context.Context, vector []float32, k int, filter Filter) ([]ScoredDocument, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemIndex.Query")
	defer span.End()
	span.SetAttributes(attribute.Int("k", k))

	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector cannot be empty")
	}

	collection := s.collection()
	if collection == nil {
		return []ScoredDocument{}, nil
	}

	total := collection.Count()
	if total == 0 {
		return []ScoredDocument{}, nil
	}

	// Over-fetch when filtering; chromem caps nResults at the doc count.
	fetch := k
	if filter != nil || fetch > total {
		fetch = total
	}

	results, err := collection.QueryEmbedding(ctx, vector, fetch, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: querying collection %s: %v", ErrStorageIO, s.config.Collection, err)
	}

	docs := make([]ScoredDocument, 0, len(results))
	for _, r := range results {
		meta := metadataFromString(r.Metadata)
		if filter != nil && !filter.Matches(meta) {
			continue
		}
		docs = append(docs, ScoredDocument{
			ID:       r.ID,
			Text:     r.Content,
			Metadata: meta,
			Score:    r.Similarity,
		})
		if len(docs) == k {
			break
		}
	}

	span.SetAttributes(attribute.Int("results_count", len(docs)))
	span.SetStatus(codes.Ok, "success")
	return docs, nil
}

// Count returns the number of persisted entries.
func (s *ChromemIndex) Count(ctx context.Context) (int, error) {
	collection := s.collection()
	if collection == nil {
		return 0, nil
	}
	return collection.Count(), nil
}

// Wipe deletes all entries by dropping the collection.
func (s *ChromemIndex) Wipe(ctx context.Context) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemIndex.Wipe")
	defer span.End()

	if s.collection() == nil {
		return nil
	}
	if err := s.db.DeleteCollection(s.config.Collection); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: deleting collection %s: %v", ErrStorageIO, s.config.Collection, err)
	}

	span.SetStatus(codes.Ok, "success")
	s.logger.Info("wiped chromem collection", zap.String("collection", s.config.Collection))
	return nil
}

// Exists reports whether a populated collection is persisted on disk.
func (s *ChromemIndex) Exists(ctx context.Context) (bool, error) {
	collection := s.collection()
	return collection != nil && collection.Count() > 0, nil
}

// Kind identifies the backend.
func (s *ChromemIndex) Kind() string { return "chromem" }

// Close releases the store. chromem persists on write; nothing to flush.
func (s *ChromemIndex) Close() error { return nil }

// entryText extracts the narrative text carried in entry metadata.
func entryText(metadata map[string]interface{}) string {
	if t, ok := metadata["text"].(string); ok {
		return t
	}
	return ""
}

// metadataToString converts metadata for chromem, which stores string maps.
// The text lives in Document.Content and is not duplicated here.
func metadataToString(metadata map[string]interface{}) map[string]string {
	if metadata == nil {
		return nil
	}
	result := make(map[string]string, len(metadata))
	for k, v := range metadata {
		if k == "text" {
			continue
		}
		switch val := v.(type) {
		case string:
			result[k] = val
		case int:
			result[k] = fmt.Sprintf("%d", val)
		case int64:
			result[k] = fmt.Sprintf("%d", val)
		case float64:
			result[k] = fmt.Sprintf("%g", val)
		case bool:
			result[k] = fmt.Sprintf("%t", val)
		default:
			result[k] = fmt.Sprintf("%v", val)
		}
	}
	return result
}

func metadataFromString(metadata map[string]string) map[string]interface{} {
	if metadata == nil {
		return nil
	}
	result := make(map[string]interface{}, len(metadata))
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		result[k] = metadata[k]
	}
	return result
}

var _ Index = (*ChromemIndex)(nil)
