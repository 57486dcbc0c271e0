package vectorstore

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var qdrantTracer = otel.Tracer("finrag.vectorstore.qdrant")

// collectionNamePattern validates collection names.
// Pattern: lowercase letters, numbers, underscores, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// pointIDNamespace seeds deterministic point UUIDs so re-upserting a
// document id maps onto the same Qdrant point (last-write-wins).
var pointIDNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// QdrantConfig holds configuration for the Qdrant gRPC client.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address.
	Host string

	// Port is the Qdrant gRPC port (NOT the HTTP REST port).
	// Default: 6334 (gRPC), not 6333 (HTTP).
	Port int

	// Collection is the collection used for all operations.
	Collection string

	// VectorSize is the dimensionality of embeddings.
	// MUST match the embedding provider's output dimension.
	VectorSize uint64

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool

	// MaxRetries is the maximum retry attempts for transient failures.
	// Default: 3.
	MaxRetries int

	// RetryBackoff is the initial backoff duration for retries.
	// Doubles on each retry. Default: 1 second.
	RetryBackoff time.Duration

	// MaxMessageSize is the maximum gRPC message size in bytes.
	// Default: 50MB.
	MaxMessageSize int
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	if c.Collection == "" {
		return fmt.Errorf("%w: collection required", ErrInvalidConfig)
	}
	if !collectionNamePattern.MatchString(c.Collection) {
		return fmt.Errorf("%w: collection name must match ^[a-z0-9_]{1,64}$, got %q", ErrInvalidConfig, c.Collection)
	}
	if c.VectorSize == 0 {
		return fmt.Errorf("%w: vector size required", ErrInvalidConfig)
	}
	return nil
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = time.Second
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
}

// IsTransientError reports whether an error is worth retrying.
// Network timeouts and temporary unavailability retry; invalid arguments,
// not-found and auth failures do not.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}

	st, ok := status.FromError(err)
	if !ok {
		return false
	}

	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	default:
		return false
	}
}

// QdrantIndex implements Index against a managed Qdrant instance using the
// native gRPC client (port 6334). Binary protobuf encoding avoids the HTTP
// layer's payload size limits during bulk indexing.
//
// The collection is created on first use if absent. An existing collection
// whose vector dimension disagrees with the configured embedding model is
// fatal (ErrDimensionMismatch).
type QdrantIndex struct {
	client *qdrant.Client
	config QdrantConfig
	logger *zap.Logger
}

// NewQdrantIndex connects to Qdrant, health-checks the connection and
// ensures the collection exists with a compatible dimension.
func NewQdrantIndex(cfg QdrantConfig, logger *zap.Logger) (*QdrantIndex, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if !cfg.UseTLS {
		fmt.Fprintf(os.Stderr, "WARNING: Qdrant gRPC using plaintext (TLS disabled). Insecure for production.\n")
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		UseTLS: cfg.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(cfg.MaxMessageSize),
				grpc.MaxCallSendMsgSize(cfg.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to %s:%d: %v", ErrRemoteIndex, cfg.Host, cfg.Port, err)
	}

	idx := &QdrantIndex{
		client: client,
		config: cfg,
		logger: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.HealthCheck(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: health check: %v", ErrRemoteIndex, err)
	}

	if err := idx.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info("qdrant index connected",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("collection", cfg.Collection),
		zap.Uint64("vector_size", cfg.VectorSize),
	)
	return idx, nil
}

// ensureCollection creates the collection if absent and verifies the
// dimension of an existing one.
func (s *QdrantIndex) ensureCollection(ctx context.Context) error {
	var info *qdrant.CollectionInfo
	err := s.retryOperation(ctx, "get_collection_info", func() error {
		res, err := s.client.GetCollectionInfo(ctx, s.config.Collection)
		if err != nil {
			if st, ok := status.FromError(err); ok && st.Code() == grpccodes.NotFound {
				info = nil
				return nil
			}
			return err
		}
		info = res
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: checking collection %s: %v", ErrRemoteIndex, s.config.Collection, err)
	}

	if info == nil {
		err := s.retryOperation(ctx, "create_collection", func() error {
			return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
				CollectionName: s.config.Collection,
				VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
					Size:     s.config.VectorSize,
					Distance: qdrant.Distance_Cosine,
				}),
			})
		})
		if err != nil {
			return fmt.Errorf("%w: creating collection %s: %v", ErrRemoteIndex, s.config.Collection, err)
		}
		s.logger.Info("created qdrant collection",
			zap.String("collection", s.config.Collection),
			zap.Uint64("vector_size", s.config.VectorSize),
		)
		return nil
	}

	if existing := collectionDimension(info); existing != 0 && existing != s.config.VectorSize {
		return fmt.Errorf("%w: collection %s has dimension %d, model produces %d",
			ErrDimensionMismatch, s.config.Collection, existing, s.config.VectorSize)
	}
	return nil
}

func collectionDimension(info *qdrant.CollectionInfo) uint64 {
	cfg := info.GetConfig().GetParams().GetVectorsConfig()
	if cfg == nil {
		return 0
	}
	if params := cfg.GetParams(); params != nil {
		return params.GetSize()
	}
	return 0
}

// retryOperation retries an operation with exponential backoff for
// transient gRPC failures, up to MaxRetries attempts.
func (s *QdrantIndex) retryOperation(ctx context.Context, operationName string, operation func() error) error {
	backoff := s.config.RetryBackoff

	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}

		if !IsTransientError(err) {
			return fmt.Errorf("%s failed (permanent): %w", operationName, err)
		}

		if attempt == s.config.MaxRetries {
			return fmt.Errorf("%s failed after %d retries: %w", operationName, s.config.MaxRetries, err)
		}

		s.logger.Warn("transient failure, retrying",
			zap.String("operation", operationName),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s canceled: %w", operationName, ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}
	return nil
}

// pointID derives the deterministic Qdrant point UUID for a document id.
// The original document id is preserved in the payload under "id".
func pointID(docID string) *qdrant.PointId {
	return qdrant.NewIDUUID(uuid.NewSHA1(pointIDNamespace, []byte(docID)).String())
}

// Upsert inserts or replaces entries. Chunks of UpsertBatchSize upload
// sequentially; each chunk retries independently on transient failures,
// and a chunk that exhausts retries reports progress via *BatchUpsertError.
func (s *QdrantIndex) Upsert(ctx context.Context, entries []Entry) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantIndex.Upsert")
	defer span.End()
	span.SetAttributes(
		attribute.Int("entry_count", len(entries)),
		attribute.String("collection", s.config.Collection),
	)

	if len(entries) == 0 {
		return ErrEmptyEntries
	}

	var succeeded []int
	for i, chunk := range chunkEntries(entries, UpsertBatchSize) {
		points := make([]*qdrant.PointStruct, len(chunk))
		for j, e := range chunk {
			payload := make(map[string]*qdrant.Value, len(e.Metadata)+1)
			payload["id"] = qdrant.NewValueString(e.ID)
			for k, v := range e.Metadata {
				switch val := v.(type) {
				case string:
					payload[k] = qdrant.NewValueString(val)
				case int:
					payload[k] = qdrant.NewValueInt(int64(val))
				case int64:
					payload[k] = qdrant.NewValueInt(val)
				case float64:
					payload[k] = qdrant.NewValueDouble(val)
				case bool:
					payload[k] = qdrant.NewValueBool(val)
				default:
					payload[k] = qdrant.NewValueString(fmt.Sprintf("%v", val))
				}
			}

			points[j] = &qdrant.PointStruct{
				Id:      pointID(e.ID),
				Vectors: qdrant.NewVectors(e.Vector...),
				Payload: payload,
			}
		}

		err := s.retryOperation(ctx, "upsert", func() error {
			_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
				CollectionName: s.config.Collection,
				Points:         points,
			})
			return err
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return &BatchUpsertError{
				Succeeded:   succeeded,
				FailedBatch: i,
				Err:         fmt.Errorf("%w: %v", ErrRemoteIndex, err),
			}
		}
		succeeded = append(succeeded, i)
	}

	span.SetAttributes(attribute.Int("points_added", len(entries)))
	span.SetStatus(codes.Ok, "success")
	return nil
}

// buildFilter converts a Filter into native Qdrant conditions. Equality on
// strings uses keyword match; numeric equality and range operators map to
// range conditions so integer and double payloads both match.
func buildFilter(f Filter) *qdrant.Filter {
	if len(f) == 0 {
		return nil
	}

	var must []*qdrant.Condition
	for field, conditions := range f {
		for _, cond := range conditions {
			if num, ok := toFloat(cond.Value); ok {
				r := &qdrant.Range{}
				switch cond.Op {
				case OpEq:
					r.Gte = qdrant.PtrOf(num)
					r.Lte = qdrant.PtrOf(num)
				case OpGte:
					r.Gte = qdrant.PtrOf(num)
				case OpLte:
					r.Lte = qdrant.PtrOf(num)
				}
				must = append(must, qdrant.NewRange(field, r))
				continue
			}
			// Non-numeric values only support equality.
			must = append(must, qdrant.NewMatch(field, fmt.Sprintf("%v", cond.Value)))
		}
	}
	if len(must) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: must}
}

// Query returns up to k entries by descending cosine similarity, filtered
// server-side when a filter is supplied.
func (s *QdrantIndex) Query(ctx context.Context, vector []float32, k int, filter Filter) ([]ScoredDocument, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantIndex.Query")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", s.config.Collection),
		attribute.Int("k", k),
	)

	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector cannot be empty")
	}

	var results []*qdrant.ScoredPoint
	err := s.retryOperation(ctx, "query", func() error {
		res, err := s.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: s.config.Collection,
			Query:          qdrant.NewQuery(vector...),
			Limit:          qdrant.PtrOf(uint64(k)),
			WithPayload:    qdrant.NewWithPayload(true),
			Filter:         buildFilter(filter),
		})
		if err != nil {
			return err
		}
		results = res
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: querying collection %s: %v", ErrRemoteIndex, s.config.Collection, err)
	}

	docs := make([]ScoredDocument, len(results))
	for i, point := range results {
		doc := ScoredDocument{Score: point.Score}
		if point.Payload != nil {
			doc.Metadata = make(map[string]interface{}, len(point.Payload))
			for key, v := range point.Payload {
				switch val := v.Kind.(type) {
				case *qdrant.Value_StringValue:
					switch key {
					case "id":
						doc.ID = val.StringValue
					case "text":
						doc.Text = val.StringValue
						doc.Metadata[key] = val.StringValue
					default:
						doc.Metadata[key] = val.StringValue
					}
				case *qdrant.Value_IntegerValue:
					doc.Metadata[key] = val.IntegerValue
				case *qdrant.Value_DoubleValue:
					doc.Metadata[key] = val.DoubleValue
				case *qdrant.Value_BoolValue:
					doc.Metadata[key] = val.BoolValue
				}
			}
		}
		docs[i] = doc
	}

	span.SetAttributes(attribute.Int("results_count", len(docs)))
	span.SetStatus(codes.Ok, "success")
	return docs, nil
}

// Count returns the exact point count, or ErrCountUnavailable when the
// remote index cannot report it.
func (s *QdrantIndex) Count(ctx context.Context) (int, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantIndex.Count")
	defer span.End()

	var count uint64
	err := s.retryOperation(ctx, "count", func() error {
		res, err := s.client.Count(ctx, &qdrant.CountPoints{
			CollectionName: s.config.Collection,
			Exact:          qdrant.PtrOf(true),
		})
		if err != nil {
			return err
		}
		count = res
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("%w: %v", ErrCountUnavailable, err)
	}

	span.SetAttributes(attribute.Int("count", int(count)))
	span.SetStatus(codes.Ok, "success")
	return int(count), nil
}

// Wipe deletes all entries by dropping and recreating the collection.
func (s *QdrantIndex) Wipe(ctx context.Context) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantIndex.Wipe")
	defer span.End()
	span.SetAttributes(attribute.String("collection", s.config.Collection))

	err := s.retryOperation(ctx, "delete_collection", func() error {
		return s.client.DeleteCollection(ctx, s.config.Collection)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: deleting collection %s: %v", ErrRemoteIndex, s.config.Collection, err)
	}

	if err := s.ensureCollection(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "success")
	s.logger.Info("wiped qdrant collection", zap.String("collection", s.config.Collection))
	return nil
}

// Exists reports whether the remote collection exists and holds points.
func (s *QdrantIndex) Exists(ctx context.Context) (bool, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantIndex.Exists")
	defer span.End()

	var exists bool
	err := s.retryOperation(ctx, "collection_exists", func() error {
		info, err := s.client.GetCollectionInfo(ctx, s.config.Collection)
		if err != nil {
			if st, ok := status.FromError(err); ok && st.Code() == grpccodes.NotFound {
				exists = false
				return nil
			}
			return err
		}
		exists = info.GetPointsCount() > 0
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("%w: checking collection %s: %v", ErrRemoteIndex, s.config.Collection, err)
	}

	span.SetStatus(codes.Ok, "success")
	return exists, nil
}

// Kind identifies the backend.
func (s *QdrantIndex) Kind() string { return "qdrant" }

// Close closes the gRPC connection.
func (s *QdrantIndex) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

var _ Index = (*QdrantIndex)(nil)
