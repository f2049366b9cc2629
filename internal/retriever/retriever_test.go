package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/model"
)

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vec, f.err
}

func (f *fakeEmbedder) Dims() int { return len(f.vec) }

type fakeSearcher struct {
	vec    []model.RetrievedChunk
	lex    []model.RetrievedChunk
	vecErr error
	lexErr error
}

func (f *fakeSearcher) SearchVector(ctx context.Context, queryVec []float32, k int) ([]model.RetrievedChunk, error) {
	if f.vecErr != nil {
		return nil, f.vecErr
	}
	if len(f.vec) > k {
		return f.vec[:k], nil
	}
	return f.vec, nil
}

func (f *fakeSearcher) SearchLexical(ctx context.Context, query string, k int) ([]model.RetrievedChunk, error) {
	if f.lexErr != nil {
		return nil, f.lexErr
	}
	if len(f.lex) > k {
		return f.lex[:k], nil
	}
	return f.lex, nil
}

func rc(id, docID string, seq int, score float64, match model.MatchKind) model.RetrievedChunk {
	return model.RetrievedChunk{
		Chunk: model.Chunk{ID: id, DocumentID: docID, Filename: docID + ".md", Text: "text " + id, SequenceIndex: seq},
		Score: score,
		Match: match,
	}
}

func TestRetrieve_MergesBothLegs(t *testing.T) {
	s := &fakeSearcher{
		vec: []model.RetrievedChunk{
			rc("c1", "d1", 0, 0.9, model.MatchVector),
			rc("c2", "d1", 1, 0.5, model.MatchVector),
		},
		lex: []model.RetrievedChunk{
			rc("c1", "d1", 0, 4.0, model.MatchLexical),
			rc("c3", "d2", 0, 2.0, model.MatchLexical),
		},
	}
	r := New(s, &fakeEmbedder{vec: []float32{1, 0}}, Config{})

	got, err := r.Retrieve(context.Background(), "pipeline", model.IntentGeneral)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Chunk ids are unique after fusion.
	seen := map[string]bool{}
	for _, rc := range got {
		assert.False(t, seen[rc.Chunk.ID], "duplicate chunk %s", rc.Chunk.ID)
		seen[rc.Chunk.ID] = true
	}

	// c1 tops rank at both legs' maxima: 0.4*1 + 0.6*1 = 1.0.
	assert.Equal(t, "c1", got[0].Chunk.ID)
	assert.Equal(t, model.MatchBoth, got[0].Match)
	assert.InDelta(t, 1.0, got[0].Score, 1e-9)

	// c3: lexical only, 0.6 * (2.0/4.0) = 0.3.
	// c2: vector only, 0.4 * (0.5/0.9) ≈ 0.222.
	assert.Equal(t, "c3", got[1].Chunk.ID)
	assert.InDelta(t, 0.3, got[1].Score, 1e-9)
	assert.Equal(t, "c2", got[2].Chunk.ID)
	assert.Equal(t, model.MatchVector, got[2].Match)
	assert.Equal(t, model.MatchLexical, got[1].Match)
}

func TestRetrieve_Deterministic(t *testing.T) {
	s := &fakeSearcher{
		vec: []model.RetrievedChunk{
			rc("cb", "d1", 2, 0.8, model.MatchVector),
			rc("ca", "d1", 2, 0.8, model.MatchVector),
		},
		lex: []model.RetrievedChunk{
			rc("cc", "d2", 2, 3.0, model.MatchLexical),
		},
	}
	r := New(s, &fakeEmbedder{vec: []float32{1}}, Config{})

	first, err := r.Retrieve(context.Background(), "q", model.IntentGeneral)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := r.Retrieve(context.Background(), "q", model.IntentGeneral)
		require.NoError(t, err)
		require.Equal(t, first, again, "run %d differs", i)
	}

	// Equal score and sequence resolve by chunk id.
	assert.Equal(t, "ca", first[1].Chunk.ID)
	assert.Equal(t, "cb", first[2].Chunk.ID)
}

func TestRetrieve_EmptyCorpus(t *testing.T) {
	r := New(&fakeSearcher{}, &fakeEmbedder{vec: []float32{1}}, Config{})
	got, err := r.Retrieve(context.Background(), "anything", model.IntentGeneral)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRetrieve_EmbedErrorPropagates(t *testing.T) {
	embedErr := errors.New("model unreachable")
	r := New(&fakeSearcher{}, &fakeEmbedder{err: embedErr}, Config{})

	_, err := r.Retrieve(context.Background(), "q", model.IntentGeneral)
	require.Error(t, err)
	assert.ErrorIs(t, err, embedErr)
	assert.Contains(t, err.Error(), "embed query")
}

func TestRetrieve_SearchErrorPropagates(t *testing.T) {
	searchErr := errors.New("fts index corrupt")
	r := New(&fakeSearcher{lexErr: searchErr}, &fakeEmbedder{vec: []float32{1}}, Config{})

	_, err := r.Retrieve(context.Background(), "q", model.IntentGeneral)
	assert.ErrorIs(t, err, searchErr)
}

func TestTopK_PerIntent(t *testing.T) {
	r := New(&fakeSearcher{}, &fakeEmbedder{vec: []float32{1}}, Config{})

	assert.Equal(t, 8, r.TopK(model.IntentSummary))
	assert.Equal(t, 20, r.TopK(model.IntentDetail))
	assert.Equal(t, 15, r.TopK(model.IntentGeneral))
	assert.Equal(t, 15, r.TopK(model.IntentFollowUp))
}

func TestRetrieve_RespectsTopK(t *testing.T) {
	var vec []model.RetrievedChunk
	for i := 0; i < 30; i++ {
		vec = append(vec, rc(string(rune('a'+i)), "d1", i, float64(30-i), model.MatchVector))
	}
	r := New(&fakeSearcher{vec: vec}, &fakeEmbedder{vec: []float32{1}}, Config{DefaultTopK: 5})

	got, err := r.Retrieve(context.Background(), "q", model.IntentGeneral)
	require.NoError(t, err)
	assert.Len(t, got, 5)
}

func TestRetrieve_SummaryDiversity(t *testing.T) {
	// d1 dominates the ranking; summary intent should still surface d2 and
	// d3 near the top.
	s := &fakeSearcher{
		vec: []model.RetrievedChunk{
			rc("a1", "d1", 0, 0.99, model.MatchVector),
			rc("a2", "d1", 1, 0.98, model.MatchVector),
			rc("a3", "d1", 2, 0.97, model.MatchVector),
			rc("b1", "d2", 0, 0.50, model.MatchVector),
			rc("c1", "d3", 0, 0.40, model.MatchVector),
		},
	}
	r := New(s, &fakeEmbedder{vec: []float32{1}}, Config{SummaryTopK: 3})

	got, err := r.Retrieve(context.Background(), "summarize", model.IntentSummary)
	require.NoError(t, err)
	require.Len(t, got, 3)

	docs := map[string]bool{}
	for _, rc := range got {
		docs[rc.Chunk.DocumentID] = true
	}
	assert.Len(t, docs, 3, "summary set should span all documents")
	assert.Equal(t, "a1", got[0].Chunk.ID)
}

func TestRetrieve_GeneralKeepsRankOrder(t *testing.T) {
	s := &fakeSearcher{
		vec: []model.RetrievedChunk{
			rc("a1", "d1", 0, 0.99, model.MatchVector),
			rc("a2", "d1", 1, 0.98, model.MatchVector),
			rc("b1", "d2", 0, 0.50, model.MatchVector),
		},
	}
	r := New(s, &fakeEmbedder{vec: []float32{1}}, Config{DefaultTopK: 2})

	got, err := r.Retrieve(context.Background(), "q", model.IntentGeneral)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a1", got[0].Chunk.ID)
	assert.Equal(t, "a2", got[1].Chunk.ID)
}
