package assembler

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/model"
)

func rc(id, docID, filename string, seq int, text string) model.RetrievedChunk {
	return model.RetrievedChunk{
		Chunk: model.Chunk{ID: id, DocumentID: docID, Filename: filename, Text: text, SequenceIndex: seq},
	}
}

func TestBuild_EmptySet(t *testing.T) {
	ctx := Build(nil, model.IntentGeneral, nil, 4000)
	assert.Equal(t, NoRelevantContent, ctx.Text)
	assert.Empty(t, ctx.Citations)
	assert.Empty(t, ctx.ChunkIDs)
}

func TestBuild_General(t *testing.T) {
	set := []model.RetrievedChunk{
		rc("c1", "d1", "alpha.md", 0, "first passage"),
		rc("c2", "d2", "beta.md", 0, "second passage"),
		rc("c3", "d1", "alpha.md", 3, "third passage"),
	}

	ctx := Build(set, model.IntentGeneral, nil, 4000)

	// Rank order with a numbered source header per chunk.
	i1 := strings.Index(ctx.Text, "[Source 1: alpha.md]\nfirst passage")
	i2 := strings.Index(ctx.Text, "[Source 2: beta.md]\nsecond passage")
	i3 := strings.Index(ctx.Text, "[Source 3: alpha.md]\nthird passage")
	require.True(t, i1 >= 0 && i2 >= 0 && i3 >= 0, "context: %s", ctx.Text)
	assert.True(t, i1 < i2 && i2 < i3)

	assert.Equal(t, []string{"c1", "c2", "c3"}, ctx.ChunkIDs)

	// Citations deduplicate per document, first appearance first.
	require.Len(t, ctx.Citations, 2)
	assert.Equal(t, "d1", ctx.Citations[0].DocumentID)
	assert.Equal(t, "alpha.md", ctx.Citations[0].Filename)
	assert.Equal(t, "d2", ctx.Citations[1].DocumentID)
}

func TestBuild_BudgetDropsWholeChunk(t *testing.T) {
	long := strings.Repeat("x", 300)
	set := []model.RetrievedChunk{
		rc("c1", "d1", "a.md", 0, long),
		rc("c2", "d1", "a.md", 1, long),
		rc("c3", "d1", "a.md", 2, long),
	}

	// 100 tokens = 400 chars: room for one block, not two.
	ctx := Build(set, model.IntentGeneral, nil, 100)

	assert.Equal(t, []string{"c1"}, ctx.ChunkIDs)
	assert.Contains(t, ctx.Text, long)
	// The overflowing chunk is dropped entirely, never cut.
	assert.NotContains(t, ctx.Text, "[Source 2")
	assert.LessOrEqual(t, len(ctx.Text), 100*4)
}

func TestBuild_BudgetStopsAtFirstOverflow(t *testing.T) {
	set := []model.RetrievedChunk{
		rc("c1", "d1", "a.md", 0, strings.Repeat("a", 350)),
		rc("c2", "d1", "a.md", 1, strings.Repeat("b", 350)),
		rc("c3", "d1", "a.md", 2, "tiny"),
	}

	ctx := Build(set, model.IntentGeneral, nil, 100)

	// Assembly stops at the first overflow even though c3 would fit.
	assert.Equal(t, []string{"c1"}, ctx.ChunkIDs)
	assert.NotContains(t, ctx.Text, "tiny")
}

func TestBuild_NothingFits(t *testing.T) {
	set := []model.RetrievedChunk{
		rc("c1", "d1", "a.md", 0, strings.Repeat("x", 10000)),
	}
	ctx := Build(set, model.IntentGeneral, nil, 10)

	assert.Equal(t, NoRelevantContent, ctx.Text)
	assert.Empty(t, ctx.ChunkIDs)
}

func TestBuild_Detail_SequenceOrderPerDocument(t *testing.T) {
	// Retrieval rank interleaves documents and scrambles sequence order.
	set := []model.RetrievedChunk{
		rc("c5", "d1", "a.md", 5, "a-five"),
		rc("c9", "d2", "b.md", 9, "b-nine"),
		rc("c2", "d1", "a.md", 2, "a-two"),
		rc("c1", "d2", "b.md", 1, "b-one"),
	}

	ctx := Build(set, model.IntentDetail, nil, 4000)

	// Within each document, chunks read in sequence order.
	assert.True(t, strings.Index(ctx.Text, "a-two") < strings.Index(ctx.Text, "a-five"))
	assert.True(t, strings.Index(ctx.Text, "b-one") < strings.Index(ctx.Text, "b-nine"))
	// Documents keep their rank order: d1 before d2.
	assert.True(t, strings.Index(ctx.Text, "a-two") < strings.Index(ctx.Text, "b-one"))
	// One header per document.
	assert.Equal(t, 1, strings.Count(ctx.Text, "[Source 1: a.md]"))
	assert.Equal(t, 1, strings.Count(ctx.Text, "[Source 2: b.md]"))
	assert.Equal(t, []string{"c2", "c5", "c1", "c9"}, ctx.ChunkIDs)
}

func TestBuild_Summary_InterleavesDocuments(t *testing.T) {
	set := []model.RetrievedChunk{
		rc("a1", "d1", "a.md", 0, "a-first"),
		rc("a2", "d1", "a.md", 1, "a-second"),
		rc("b1", "d2", "b.md", 0, "b-first"),
	}

	ctx := Build(set, model.IntentSummary, nil, 4000)

	// Round-robin: every document contributes before any repeats.
	assert.True(t, strings.Index(ctx.Text, "b-first") < strings.Index(ctx.Text, "a-second"))
	assert.Equal(t, []string{"a1", "b1", "a2"}, ctx.ChunkIDs)
	assert.Equal(t, 1, strings.Count(ctx.Text, "[Source 1: a.md]"))
	assert.Equal(t, 1, strings.Count(ctx.Text, "[Source 2: b.md]"))
	require.Len(t, ctx.Citations, 2)
}

func TestBuild_FollowUp_RecapLeads(t *testing.T) {
	set := []model.RetrievedChunk{
		rc("c1", "d1", "a.md", 0, "relevant passage"),
	}
	recent := []model.Turn{
		{Query: "old question", Answer: "old answer", Sources: []string{"a.md"}},
		{Query: "who runs deploys?", Answer: "The infra team runs deploys.", Sources: []string{"runbook.md"}},
	}

	ctx := Build(set, model.IntentFollowUp, recent, 4000)

	require.True(t, strings.HasPrefix(ctx.Text, "Previous question: who runs deploys?"),
		"context: %s", ctx.Text)
	assert.Contains(t, ctx.Text, "Previous answer: The infra team runs deploys.")
	assert.Contains(t, ctx.Text, "Previously cited: runbook.md")
	assert.NotContains(t, ctx.Text, "old question")
	assert.Contains(t, ctx.Text, "[Source 1: a.md]\nrelevant passage")

	// The recap is not a chunk and never appears in attribution.
	assert.Equal(t, []string{"c1"}, ctx.ChunkIDs)
	require.Len(t, ctx.Citations, 1)
	assert.Equal(t, "d1", ctx.Citations[0].DocumentID)
}

func TestBuild_FollowUp_CapsPriorAnswer(t *testing.T) {
	set := []model.RetrievedChunk{rc("c1", "d1", "a.md", 0, "passage")}
	recent := []model.Turn{{Query: "q", Answer: strings.Repeat("y", 1000)}}

	ctx := Build(set, model.IntentFollowUp, recent, 4000)

	assert.Contains(t, ctx.Text, strings.Repeat("y", priorAnswerCap)+"...")
	assert.NotContains(t, ctx.Text, strings.Repeat("y", priorAnswerCap+1))
}

func TestBuild_FollowUp_CapKeepsRunesWhole(t *testing.T) {
	set := []model.RetrievedChunk{rc("c1", "d1", "a.md", 0, "passage")}
	// 2-byte runes offset by one byte so the cap lands mid-rune.
	recent := []model.Turn{{Query: "q", Answer: "a" + strings.Repeat("é", 300)}}

	ctx := Build(set, model.IntentFollowUp, recent, 4000)

	require.True(t, utf8.ValidString(ctx.Text), "recap cut a rune in half")
	assert.Contains(t, ctx.Text, "é...")
}

func TestBuild_FollowUp_NoHistoryFallsThrough(t *testing.T) {
	set := []model.RetrievedChunk{rc("c1", "d1", "a.md", 0, "passage")}

	ctx := Build(set, model.IntentFollowUp, nil, 4000)

	assert.False(t, strings.Contains(ctx.Text, "Previous question"))
	assert.Contains(t, ctx.Text, "[Source 1: a.md]\npassage")
}

func TestBuild_UnknownIntentUsesGeneral(t *testing.T) {
	set := []model.RetrievedChunk{rc("c1", "d1", "a.md", 0, "passage")}
	ctx := Build(set, model.Intent("mystery"), nil, 4000)
	assert.Contains(t, ctx.Text, "[Source 1: a.md]\npassage")
}
