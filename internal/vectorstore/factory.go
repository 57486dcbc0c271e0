package vectorstore

import (
	"fmt"

	"github.com/fundnexus/finrag/internal/config"
	"go.uber.org/zap"
)

// NewIndex creates an Index from configuration.
//
// The VectorStoreConfig.Provider field selects the implementation:
//   - "chromem" (default): embedded persistent store, no external services
//   - "qdrant": managed Qdrant index over gRPC
//
// dimension is the embedding model's output dimension; both backends need
// it to create their collection.
func NewIndex(cfg *config.Config, dimension int, logger *zap.Logger) (Index, error) {
	switch cfg.VectorStore.Provider {
	case "chromem", "":
		return NewChromemIndex(ChromemConfig{
			Path:       cfg.VectorStore.Chromem.Path,
			Compress:   cfg.VectorStore.Chromem.Compress,
			Collection: cfg.VectorStore.Chromem.Collection,
			VectorSize: dimension,
		}, logger)

	case "qdrant":
		return NewQdrantIndex(QdrantConfig{
			Host:         cfg.VectorStore.Qdrant.Host,
			Port:         cfg.VectorStore.Qdrant.Port,
			Collection:   cfg.VectorStore.Qdrant.Collection,
			VectorSize:   uint64(dimension),
			UseTLS:       cfg.VectorStore.Qdrant.UseTLS,
			MaxRetries:   cfg.VectorStore.Qdrant.MaxRetries,
			RetryBackoff: cfg.VectorStore.Qdrant.RetryBackoff,
		}, logger)

	default:
		return nil, fmt.Errorf("%w: unsupported provider %q (supported: chromem, qdrant)",
			ErrInvalidConfig, cfg.VectorStore.Provider)
	}
}
