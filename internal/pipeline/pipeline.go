// Package pipeline orchestrates ingestion and retrieval over the financial
// profile dataset: loading and serializing records, embedding them, indexing
// the vectors and answering questions against the index.
package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/fundnexus/finrag/internal/config"
	"github.com/fundnexus/finrag/internal/embeddings"
	"github.com/fundnexus/finrag/internal/generation"
	"github.com/fundnexus/finrag/internal/vectorstore"
	"go.uber.org/zap"
)

// Sentinel errors for pipeline operations.
var (
	// ErrNotReady indicates a query arrived before Setup completed.
	ErrNotReady = errors.New("pipeline not ready")

	// ErrGenerationFailed indicates answer generation failed after retry.
	// Logged, never propagated: the answer degrades to retrieval output.
	ErrGenerationFailed = generation.ErrGenerationFailed
)

// Stage is the ingestion progress marker. Stages only advance during a
// Setup run; a failed run reports the last completed stage via *SetupError.
type Stage int

// Ingestion stages in order.
const (
	StageUnconfigured Stage = iota
	StageDatasetLoaded
	StageDocumentsPrepared
	StageEmbeddingReady
	StageIndexed
	StageReady
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageUnconfigured:
		return "unconfigured"
	case StageDatasetLoaded:
		return "dataset_loaded"
	case StageDocumentsPrepared:
		return "documents_prepared"
	case StageEmbeddingReady:
		return "embedding_ready"
	case StageIndexed:
		return "indexed"
	case StageReady:
		return "ready"
	case StageFailed:
		return "failed"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// SetupError reports a failed Setup run, naming the last stage that
// completed before the failure.
type SetupError struct {
	Stage Stage
	Err   error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setup failed after stage %s: %v", e.Stage, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// Pipeline is the ingestion and retrieval orchestrator. A single Pipeline
// serves one dataset and one index; construct once per process.
//
// Setup is mutex-guarded: a concurrent Setup waits, observes Ready and
// no-ops. Queries are safe once Ready.
type Pipeline struct {
	cfg    *config.Config
	logger *zap.Logger

	mu       sync.RWMutex
	stage    Stage
	provider embeddings.Provider
	index    vectorstore.Index
	gen      generation.Capability
	genSet   bool

	// succeededBatches tracks upsert chunks committed by a prior failed
	// Setup run so a retry resumes instead of re-uploading.
	succeededBatches map[int]bool

	skippedRows int
}

// Option configures a Pipeline at construction.
type Option func(*Pipeline)

// WithProvider injects a pre-built embedding provider.
func WithProvider(p embeddings.Provider) Option {
	return func(pl *Pipeline) { pl.provider = p }
}

// WithIndex injects a pre-built vector index.
func WithIndex(idx vectorstore.Index) Option {
	return func(pl *Pipeline) { pl.index = idx }
}

// WithGeneration injects the generation capability, overriding what Setup
// would derive from configuration.
func WithGeneration(c generation.Capability) Option {
	return func(pl *Pipeline) {
		pl.gen = c
		pl.genSet = true
	}
}

// New creates a Pipeline. Dependencies not injected via options are
// constructed lazily during Setup from configuration.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{
		cfg:              cfg,
		logger:           logger,
		stage:            StageUnconfigured,
		succeededBatches: make(map[int]bool),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Stage returns the current ingestion stage.
func (p *Pipeline) Stage() Stage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stage
}

// Ready reports whether the pipeline can serve queries.
func (p *Pipeline) Ready() bool {
	return p.Stage() == StageReady
}

// Close releases the embedding model and index connection.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if p.provider != nil {
		if err := p.provider.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing embedding provider: %w", err))
		}
		p.provider = nil
	}
	if p.index != nil {
		if err := p.index.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing index: %w", err))
		}
		p.index = nil
	}
	p.stage = StageUnconfigured
	return errors.Join(errs...)
}
