// Package retriever fuses vector and lexical search into one ranked set.
//
// Pure vector search misses exact-keyword entities (IDs, names, codes) that
// embedding models dilute; pure lexical search misses paraphrase. The two
// legs run concurrently and merge through an explicit weighted fusion with
// a documented tie-break, so rankings are reproducible.
package retriever

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"docchat/internal/embedding"
	"docchat/internal/logger"
	"docchat/internal/model"
)

// ChunkSearcher is the slice of the chunk store the retriever needs.
type ChunkSearcher interface {
	SearchVector(ctx context.Context, queryVec []float32, k int) ([]model.RetrievedChunk, error)
	SearchLexical(ctx context.Context, query string, k int) ([]model.RetrievedChunk, error)
}

// Config holds the fusion weights and per-intent result counts. Weights are
// tuning knobs, not spec constants; defaults favor lexical hits because
// exact matches on rare tokens are high-precision signals.
type Config struct {
	VectorWeight  float64
	LexicalWeight float64
	SummaryTopK   int
	DetailTopK    int
	DefaultTopK   int
}

// DefaultConfig returns the default retrieval tuning.
func DefaultConfig() Config {
	return Config{
		VectorWeight:  0.4,
		LexicalWeight: 0.6,
		SummaryTopK:   8,
		DetailTopK:    20,
		DefaultTopK:   15,
	}
}

// Retriever performs hybrid retrieval against a chunk store.
type Retriever struct {
	store    ChunkSearcher
	embedder embedding.Embedder
	cfg      Config
}

// New creates a hybrid retriever. Zero-value config fields fall back to
// defaults.
func New(store ChunkSearcher, embedder embedding.Embedder, cfg Config) *Retriever {
	def := DefaultConfig()
	if cfg.VectorWeight <= 0 && cfg.LexicalWeight <= 0 {
		cfg.VectorWeight = def.VectorWeight
		cfg.LexicalWeight = def.LexicalWeight
	}
	if cfg.SummaryTopK <= 0 {
		cfg.SummaryTopK = def.SummaryTopK
	}
	if cfg.DetailTopK <= 0 {
		cfg.DetailTopK = def.DetailTopK
	}
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = def.DefaultTopK
	}
	return &Retriever{store: store, embedder: embedder, cfg: cfg}
}

// TopK returns the result count used for the given intent: detail casts a
// wider net, summary stays small and diverse.
func (r *Retriever) TopK(intent model.Intent) int {
	switch intent {
	case model.IntentSummary:
		return r.cfg.SummaryTopK
	case model.IntentDetail:
		return r.cfg.DetailTopK
	default:
		return r.cfg.DefaultTopK
	}
}

// Retrieve runs both search legs concurrently and merges them. An empty
// corpus yields an empty set; an embedding failure is an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, intent model.Intent) ([]model.RetrievedChunk, error) {
	k := r.TopK(intent)
	logger.Debug("retrieve: intent=%s k=%d", intent, k)

	var vecResults, lexResults []model.RetrievedChunk
	var vecErr, lexErr error

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		var vec []float32
		vec, vecErr = r.embedder.Embed(ctx, query)
		if vecErr != nil {
			vecErr = fmt.Errorf("embed query: %w", vecErr)
			return
		}
		vecResults, vecErr = r.store.SearchVector(ctx, vec, k)
	}()
	go func() {
		defer wg.Done()
		lexResults, lexErr = r.store.SearchLexical(ctx, query, k)
	}()
	wg.Wait()

	if vecErr != nil {
		return nil, vecErr
	}
	if lexErr != nil {
		return nil, lexErr
	}
	logger.Debug("retrieve: %d vector hits, %d lexical hits", len(vecResults), len(lexResults))

	merged := r.merge(vecResults, lexResults)
	if intent == model.IntentSummary {
		merged = diversify(merged, k)
	}
	if len(merged) > k {
		merged = merged[:k]
	}
	logger.Debug("retrieve: %d merged results", len(merged))
	return merged, nil
}

// merge fuses the two ranked lists by chunk id. Scores from each leg are
// normalized to [0,1] by that leg's maximum before the weighted sum, since
// cosine similarity and bm25 live on different scales. A chunk present in
// both legs is marked MatchBoth.
func (r *Retriever) merge(vec, lex []model.RetrievedChunk) []model.RetrievedChunk {
	byID := make(map[string]*model.RetrievedChunk, len(vec)+len(lex))
	var order []string

	vmax := maxScore(vec)
	for _, rc := range vec {
		score := 0.0
		if vmax > 0 {
			score = rc.Score / vmax
		}
		entry := rc
		entry.Score = r.cfg.VectorWeight * score
		byID[rc.Chunk.ID] = &entry
		order = append(order, rc.Chunk.ID)
	}

	lmax := maxScore(lex)
	for _, rc := range lex {
		score := 0.0
		if lmax > 0 {
			score = rc.Score / lmax
		}
		if existing, ok := byID[rc.Chunk.ID]; ok {
			existing.Score += r.cfg.LexicalWeight * score
			existing.Match = model.MatchBoth
			continue
		}
		entry := rc
		entry.Score = r.cfg.LexicalWeight * score
		byID[rc.Chunk.ID] = &entry
		order = append(order, rc.Chunk.ID)
	}

	merged := make([]model.RetrievedChunk, 0, len(order))
	for _, id := range order {
		merged = append(merged, *byID[id])
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		if merged[i].Chunk.SequenceIndex != merged[j].Chunk.SequenceIndex {
			return merged[i].Chunk.SequenceIndex < merged[j].Chunk.SequenceIndex
		}
		return merged[i].Chunk.ID < merged[j].Chunk.ID
	})
	return merged
}

// diversify biases a ranked set toward breadth: one chunk per document
// first, then remaining chunks in rank order until k is reached.
func diversify(rs []model.RetrievedChunk, k int) []model.RetrievedChunk {
	if len(rs) <= 1 {
		return rs
	}

	seen := make(map[string]bool)
	taken := make(map[string]bool)
	var out []model.RetrievedChunk

	for _, rc := range rs {
		if len(out) >= k {
			return out
		}
		if seen[rc.Chunk.DocumentID] {
			continue
		}
		seen[rc.Chunk.DocumentID] = true
		taken[rc.Chunk.ID] = true
		out = append(out, rc)
	}
	for _, rc := range rs {
		if len(out) >= k {
			break
		}
		if taken[rc.Chunk.ID] {
			continue
		}
		out = append(out, rc)
	}
	return out
}

func maxScore(rs []model.RetrievedChunk) float64 {
	m := 0.0
	for _, rc := range rs {
		if rc.Score > m {
			m = rc.Score
		}
	}
	return m
}
