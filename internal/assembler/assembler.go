// Package assembler shapes retrieved chunks and conversation history into a
// bounded context payload with source attribution.
package assembler

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"docchat/internal/model"
)

// NoRelevantContent is emitted instead of an empty context so the
// generation step can produce an honest "not found" answer rather than
// fabricating one.
const NoRelevantContent = "No relevant content was found in the uploaded documents for this question."

// charsPerToken is the rough token-to-character conversion used to charge
// text against the budget.
const charsPerToken = 4

// priorAnswerCap bounds the recap of the previous turn's answer.
const priorAnswerCap = 240

// Strategy arranges a retrieved set into budget-charged blocks.
type Strategy func(b *builder, set []model.RetrievedChunk, recent []model.Turn)

// strategies is the intent dispatch table. Each strategy is pure over
// (set, recent, budget).
var strategies = map[model.Intent]Strategy{
	model.IntentSummary:  buildSummary,
	model.IntentDetail:   buildDetail,
	model.IntentFollowUp: buildFollowUp,
	model.IntentGeneral:  buildGeneral,
}

// Build assembles the context for a turn. tokenBudget is a hard cap:
// assembly stops once the next chunk would overflow; chunks are never cut
// mid-text.
func Build(set []model.RetrievedChunk, intent model.Intent, recent []model.Turn, tokenBudget int) model.Context {
	if len(set) == 0 {
		return model.Context{Text: NoRelevantContent}
	}
	if tokenBudget <= 0 {
		tokenBudget = 4000
	}

	b := &builder{budget: tokenBudget * charsPerToken}
	strategy, ok := strategies[intent]
	if !ok {
		strategy = buildGeneral
	}
	strategy(b, set, recent)

	if len(b.chunkIDs) == 0 && len(b.blocks) == 0 {
		return model.Context{Text: NoRelevantContent}
	}
	return model.Context{
		Text:      strings.Join(b.blocks, "\n\n"),
		Citations: b.citations,
		ChunkIDs:  b.chunkIDs,
	}
}

// builder accumulates blocks while enforcing the character budget and
// recording attribution in first-appearance order.
type builder struct {
	budget    int
	used      int
	blocks    []string
	citations []model.Citation
	chunkIDs  []string
	cited     map[string]bool
	full      bool
}

// addChunk charges a chunk block against the budget. Returns false once the
// budget is full; the overflowing chunk is dropped whole.
func (b *builder) addChunk(header string, c model.Chunk) bool {
	if b.full {
		return false
	}
	block := c.Text
	if header != "" {
		block = header + "\n" + c.Text
	}
	if b.used+len(block) > b.budget {
		b.full = true
		return false
	}
	b.blocks = append(b.blocks, block)
	b.used += len(block)
	b.chunkIDs = append(b.chunkIDs, c.ID)
	if b.cited == nil {
		b.cited = make(map[string]bool)
	}
	if !b.cited[c.DocumentID] {
		b.cited[c.DocumentID] = true
		b.citations = append(b.citations, model.Citation{DocumentID: c.DocumentID, Filename: c.Filename})
	}
	return true
}

// addPreamble charges a non-chunk block (e.g. the follow-up recap). It is
// always included, even on a tiny budget, so references keep an antecedent.
func (b *builder) addPreamble(text string) {
	b.blocks = append(b.blocks, text)
	b.used += len(text)
}

// buildGeneral concatenates chunks in fused rank order, one source header
// per chunk.
func buildGeneral(b *builder, set []model.RetrievedChunk, _ []model.Turn) {
	for i, rc := range set {
		header := fmt.Sprintf("[Source %d: %s]", i+1, rc.Chunk.Filename)
		if !b.addChunk(header, rc.Chunk) {
			return
		}
	}
}

// buildSummary prefers breadth: documents in rank order, one header each,
// chunks interleaved round-robin across documents so no single document
// dominates the budget.
func buildSummary(b *builder, set []model.RetrievedChunk, _ []model.Turn) {
	docs, byDoc := groupByDocument(set)

	headerDone := make(map[string]bool)
	for round := 0; ; round++ {
		advanced := false
		for i, docID := range docs {
			chunks := byDoc[docID]
			if round >= len(chunks) {
				continue
			}
			advanced = true
			c := chunks[round].Chunk
			header := ""
			if !headerDone[docID] {
				headerDone[docID] = true
				header = fmt.Sprintf("[Source %d: %s]", i+1, c.Filename)
			}
			if !b.addChunk(header, c) {
				return
			}
		}
		if !advanced {
			return
		}
	}
}

// buildDetail prefers depth: chunks regrouped per document and re-ordered by
// sequence index, preserving the original narrative flow.
func buildDetail(b *builder, set []model.RetrievedChunk, _ []model.Turn) {
	docs, byDoc := groupByDocument(set)

	for i, docID := range docs {
		chunks := byDoc[docID]
		sort.SliceStable(chunks, func(a, z int) bool {
			return chunks[a].Chunk.SequenceIndex < chunks[z].Chunk.SequenceIndex
		})
		header := fmt.Sprintf("[Source %d: %s]", i+1, chunks[0].Chunk.Filename)
		for _, rc := range chunks {
			if !b.addChunk(header, rc.Chunk) {
				return
			}
			header = ""
		}
	}
}

// buildFollowUp prepends a compact recap of the prior turn so unresolved
// references ("it", "that") have an antecedent, then continues as general.
func buildFollowUp(b *builder, set []model.RetrievedChunk, recent []model.Turn) {
	if len(recent) > 0 {
		prev := recent[len(recent)-1]
		answer := prev.Answer
		if len(answer) > priorAnswerCap {
			cut := priorAnswerCap
			for cut > 0 && !utf8.RuneStart(answer[cut]) {
				cut--
			}
			answer = answer[:cut] + "..."
		}
		var recap strings.Builder
		recap.WriteString("Previous question: " + prev.Query)
		recap.WriteString("\nPrevious answer: " + answer)
		if len(prev.Sources) > 0 {
			recap.WriteString("\nPreviously cited: " + strings.Join(prev.Sources, ", "))
		}
		b.addPreamble(recap.String())
	}
	buildGeneral(b, set, nil)
}

// groupByDocument splits a retrieved set per document, documents in
// first-appearance (rank) order.
func groupByDocument(set []model.RetrievedChunk) ([]string, map[string][]model.RetrievedChunk) {
	var docs []string
	byDoc := make(map[string][]model.RetrievedChunk)
	for _, rc := range set {
		if _, ok := byDoc[rc.Chunk.DocumentID]; !ok {
			docs = append(docs, rc.Chunk.DocumentID)
		}
		byDoc[rc.Chunk.DocumentID] = append(byDoc[rc.Chunk.DocumentID], rc)
	}
	return docs, byDoc
}
