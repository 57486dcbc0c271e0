package pipeline

import (
	"context"
	"errors"

	"github.com/fundnexus/finrag/internal/dataset"
	"github.com/fundnexus/finrag/internal/embeddings"
	"github.com/fundnexus/finrag/internal/generation"
	"github.com/fundnexus/finrag/internal/vectorstore"
	"go.uber.org/zap"
)

// Setup runs the ingestion state machine: load the dataset, serialize
// records, build the embedding provider and index, and populate the index.
//
// With forceRecreate the index is wiped and rebuilt from scratch. Without
// it, an existing populated index is authoritative and re-embedding is
// skipped entirely.
//
// Setup is idempotent: calling it on a Ready pipeline without force is a
// no-op. A failed run leaves committed upsert chunks recorded so the next
// attempt resumes where it stopped.
func (p *Pipeline) Setup(ctx context.Context, forceRecreate bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stage == StageReady && !forceRecreate {
		p.logger.Debug("setup skipped, already ready")
		return nil
	}

	if err := p.setupLocked(ctx, forceRecreate); err != nil {
		p.stage = StageFailed
		return err
	}
	p.stage = StageReady
	return nil
}

// Rebuild wipes the index and re-ingests the dataset from scratch.
func (p *Pipeline) Rebuild(ctx context.Context) error {
	return p.Setup(ctx, true)
}

func (p *Pipeline) setupLocked(ctx context.Context, forceRecreate bool) error {
	stage := StageUnconfigured
	fail := func(err error) error {
		return &SetupError{Stage: stage, Err: err}
	}

	// Load dataset. Missing file or malformed header is fatal.
	rows, err := dataset.Load(p.cfg.Dataset.Path)
	if err != nil {
		return fail(err)
	}
	stage = StageDatasetLoaded
	p.logger.Info("dataset loaded",
		zap.String("path", p.cfg.Dataset.Path),
		zap.Int("rows", len(rows)),
	)

	// Serialize. Malformed rows are skipped and logged, never fatal.
	docs := make([]dataset.Document, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		doc, err := dataset.Serialize(row)
		if err != nil {
			skipped++
			p.logger.Warn("skipping malformed record",
				zap.Int("row", row.Index),
				zap.Error(err),
			)
			continue
		}
		docs = append(docs, doc)
	}
	p.skippedRows = skipped
	stage = StageDocumentsPrepared
	p.logger.Info("documents prepared",
		zap.Int("documents", len(docs)),
		zap.Int("skipped", skipped),
	)

	// Construct the embedding provider once; reused across re-setups.
	if p.provider == nil {
		provider, err := embeddings.NewFastEmbedProvider(embeddings.FastEmbedConfig{
			Model:    p.cfg.Embeddings.Model,
			CacheDir: p.cfg.Embeddings.CacheDir,
		})
		if err != nil {
			return fail(err)
		}
		p.provider = provider
	}
	stage = StageEmbeddingReady

	if p.index == nil {
		index, err := vectorstore.NewIndex(p.cfg, p.provider.Dimension(), p.logger)
		if err != nil {
			return fail(err)
		}
		p.index = index
	}

	populate := true
	if forceRecreate {
		if err := p.index.Wipe(ctx); err != nil {
			return fail(err)
		}
		p.succeededBatches = make(map[int]bool)
	} else {
		exists, err := p.index.Exists(ctx)
		if err != nil {
			return fail(err)
		}
		// An existing populated index is authoritative, unless a prior
		// failed run left partial progress to resume.
		if exists && len(p.succeededBatches) == 0 {
			populate = false
			p.logger.Info("index already populated, skipping ingestion",
				zap.String("backend", p.index.Kind()),
			)
		}
	}

	if populate && len(docs) > 0 {
		if err := p.ingest(ctx, docs); err != nil {
			return fail(err)
		}
		p.succeededBatches = make(map[int]bool)
	}
	stage = StageIndexed

	count, err := p.index.Count(ctx)
	switch {
	case errors.Is(err, vectorstore.ErrCountUnavailable):
		p.logger.Info("index ready", zap.String("backend", p.index.Kind()),
			zap.String("documents", "unknown"))
	case err != nil:
		return fail(err)
	default:
		p.logger.Info("index ready", zap.String("backend", p.index.Kind()),
			zap.Int("documents", count))
	}

	p.setupGeneration()
	return nil
}

// ingest embeds and upserts documents in sequential batches. Chunks already
// committed by a prior failed run are skipped.
func (p *Pipeline) ingest(ctx context.Context, docs []dataset.Document) error {
	batches := chunkDocuments(docs, vectorstore.UpsertBatchSize)
	for i, batch := range batches {
		if p.succeededBatches[i] {
			p.logger.Debug("batch already committed, skipping", zap.Int("batch", i))
			continue
		}

		texts := make([]string, len(batch))
		for j, doc := range batch {
			texts[j] = doc.Text
		}
		vectors, err := p.provider.EmbedDocuments(ctx, texts)
		if err != nil {
			return err
		}

		entries := make([]vectorstore.Entry, len(batch))
		for j, doc := range batch {
			metadata := make(map[string]interface{}, len(doc.Metadata)+1)
			for k, v := range doc.Metadata {
				metadata[k] = v
			}
			metadata["text"] = doc.Text
			entries[j] = vectorstore.Entry{
				ID:       doc.ID,
				Vector:   vectors[j],
				Metadata: metadata,
			}
		}

		if err := p.index.Upsert(ctx, entries); err != nil {
			return err
		}
		p.succeededBatches[i] = true
		p.logger.Info("uploaded batch",
			zap.Int("batch", i+1),
			zap.Int("total", len(batches)),
			zap.Int("entries", len(batch)),
		)
	}
	return nil
}

// setupGeneration derives the generation capability from configuration.
// Missing credentials leave it Absent; the pipeline is still Ready.
func (p *Pipeline) setupGeneration() {
	if p.genSet {
		return
	}
	p.genSet = true

	if p.cfg.Generation.APIKey == "" {
		p.gen = generation.Absent()
		p.logger.Info("generation disabled, no API key configured")
		return
	}

	client, err := generation.NewGeminiClient(generation.GeminiConfig{
		APIKey:  p.cfg.Generation.APIKey,
		Model:   p.cfg.Generation.Model,
		BaseURL: p.cfg.Generation.BaseURL,
		Timeout: p.cfg.Generation.Timeout,
	})
	if err != nil {
		p.gen = generation.Absent()
		p.logger.Warn("generation client unavailable, answers degrade to retrieval",
			zap.Error(err),
		)
		return
	}
	p.gen = generation.NewCapability(client)
	p.logger.Info("generation enabled", zap.String("model", p.cfg.Generation.Model))
}

func chunkDocuments(docs []dataset.Document, size int) [][]dataset.Document {
	var chunks [][]dataset.Document
	for start := 0; start < len(docs); start += size {
		end := start + size
		if end > len(docs) {
			end = len(docs)
		}
		chunks = append(chunks, docs[start:end])
	}
	return chunks
}
