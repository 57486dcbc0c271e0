package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fundnexus/finrag/internal/generation"
	"github.com/fundnexus/finrag/internal/vectorstore"
	"go.uber.org/zap"
)

// Query parameter bounds. Out-of-range values clamp rather than error, so
// callers over the CLI surface never see a validation failure for k.
const (
	DefaultTopK     = 5
	MaxAnswerTopK   = 20
	MaxSearchTopK   = 50
	sourceRuneLimit = 500
)

// Source is one retrieved profile backing an answer.
type Source struct {
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	Score    float32                `json:"score"`
}

// AnswerResult is the outcome of an Answer call. The shape is identical
// whether the answer came from the generation model or the retrieval
// fallback.
type AnswerResult struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources,omitempty"`
}

// Answer retrieves the top-k most similar profiles and produces an answer.
//
// When generation is available the retrieved narratives and the verbatim
// question go through the model; a failure is retried once, and a second
// failure degrades to the retrieval fallback rather than erroring. When
// generation is absent the fallback answer carries the raw profiles.
func (p *Pipeline) Answer(ctx context.Context, question string, k int, returnSources bool) (AnswerResult, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stage != StageReady {
		return AnswerResult{}, fmt.Errorf("%w: stage %s", ErrNotReady, p.stage)
	}
	if question == "" {
		return AnswerResult{}, fmt.Errorf("question cannot be empty")
	}
	k = clampK(k, MaxAnswerTopK)

	vector, err := p.provider.EmbedQuery(ctx, question)
	if err != nil {
		return AnswerResult{}, fmt.Errorf("embedding question: %w", err)
	}

	docs, err := p.index.Query(ctx, vector, k, nil)
	if err != nil {
		return AnswerResult{}, fmt.Errorf("querying index: %w", err)
	}
	if len(docs) == 0 {
		return AnswerResult{Answer: "No matching financial profiles found in the index."}, nil
	}

	contexts := make([]string, len(docs))
	for i, doc := range docs {
		contexts[i] = doc.Text
	}

	answer, generated := p.generate(ctx, contexts, question)

	result := AnswerResult{Answer: answer}
	if returnSources {
		result.Sources = make([]Source, len(docs))
		for i, doc := range docs {
			content := doc.Text
			if generated {
				content = truncateRunes(content, sourceRuneLimit)
			}
			result.Sources[i] = Source{
				Content:  content,
				Metadata: doc.Metadata,
				Score:    doc.Score,
			}
		}
	}
	return result, nil
}

// generate invokes the generation model with one retry, degrading to the
// fallback answer on absence or persistent failure. The second return value
// reports whether the model produced the answer.
func (p *Pipeline) generate(ctx context.Context, contexts []string, question string) (string, bool) {
	if !p.gen.Available() {
		return generation.FormatFallback(contexts), false
	}

	gen := p.gen.Get()
	answer, err := gen.Generate(ctx, contexts, question)
	if err != nil {
		p.logger.Warn("generation failed, retrying once", zap.Error(err))
		answer, err = gen.Generate(ctx, contexts, question)
	}
	if err != nil {
		p.logger.Error("generation failed after retry, degrading to retrieval",
			zap.Error(fmt.Errorf("%w: %v", ErrGenerationFailed, err)),
		)
		return generation.FormatFallback(contexts), false
	}
	return answer, true
}

// SimilaritySearch retrieves the top-k profiles for a query without any
// generation step. The filter uses the wire shape accepted by
// vectorstore.ParseFilter and is passed through to the index.
func (p *Pipeline) SimilaritySearch(ctx context.Context, query string, k int, rawFilter map[string]interface{}) ([]vectorstore.ScoredDocument, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stage != StageReady {
		return nil, fmt.Errorf("%w: stage %s", ErrNotReady, p.stage)
	}
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	k = clampK(k, MaxSearchTopK)

	filter, err := vectorstore.ParseFilter(rawFilter)
	if err != nil {
		return nil, err
	}

	vector, err := p.provider.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	return p.index.Query(ctx, vector, k, filter)
}

// DocumentCount is an index entry count that may be unknown: some backends
// cannot cheaply report it. Marshals as the number or the string "Unknown".
type DocumentCount struct {
	N     int
	Known bool
}

func (c DocumentCount) String() string {
	if !c.Known {
		return "Unknown"
	}
	return fmt.Sprintf("%d", c.N)
}

// MarshalJSON renders the count or "Unknown".
func (c DocumentCount) MarshalJSON() ([]byte, error) {
	if !c.Known {
		return json.Marshal("Unknown")
	}
	return json.Marshal(c.N)
}

// Statistics describes the pipeline's current state.
type Statistics struct {
	Backend             string        `json:"backend"`
	EmbeddingModel      string        `json:"embedding_model"`
	Ready               bool          `json:"ready"`
	GenerationAvailable bool          `json:"generation_available"`
	TotalDocuments      DocumentCount `json:"total_documents"`
	SkippedRows         int           `json:"skipped_rows,omitempty"`
}

// Statistics reports backend kind, model, readiness and document count.
// Count is fetched live so it reflects the index, not stale setup state.
func (p *Pipeline) Statistics(ctx context.Context) Statistics {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := Statistics{
		Ready:       p.stage == StageReady,
		SkippedRows: p.skippedRows,
	}
	if p.provider != nil {
		stats.EmbeddingModel = p.provider.ModelName()
	}
	if p.genSet {
		stats.GenerationAvailable = p.gen.Available()
	}
	if p.index != nil {
		stats.Backend = p.index.Kind()
		if count, err := p.index.Count(ctx); err == nil {
			stats.TotalDocuments = DocumentCount{N: count, Known: true}
		}
	}
	return stats
}

func clampK(k, max int) int {
	if k <= 0 {
		return DefaultTopK
	}
	if k > max {
		return max
	}
	return k
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
