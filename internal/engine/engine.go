// Package engine orchestrates a question/answer turn: history, intent,
// hybrid retrieval, context assembly, generation, and the citation
// invariant.
package engine

import (
	"context"
	"strings"

	"docchat/internal/assembler"
	"docchat/internal/generation"
	"docchat/internal/intent"
	"docchat/internal/logger"
	"docchat/internal/memory"
	"docchat/internal/model"
	"docchat/internal/retriever"
)

// Config bounds context growth per turn.
type Config struct {
	TokenBudget  int // hard cap on assembled context, approximate tokens
	HistoryTurns int // how many prior turns the assembler may read
}

// DefaultConfig returns the default turn limits.
func DefaultConfig() Config {
	return Config{TokenBudget: 4000, HistoryTurns: 6}
}

// Answer is the outcome of one turn.
type Answer struct {
	Text       string           `json:"answer"`
	Intent     model.Intent     `json:"intent"`
	Citations  []model.Citation `json:"citations,omitempty"`
	Sources    []string         `json:"sources,omitempty"`
	Confidence float64          `json:"confidence"`
}

// Engine wires the retrieval core to the generation capability.
type Engine struct {
	memory     *memory.Memory
	classifier *intent.Classifier
	retriever  *retriever.Retriever
	generator  generation.Generator
	cfg        Config
}

// New creates an engine. Zero-value config fields fall back to defaults.
func New(mem *memory.Memory, cls *intent.Classifier, ret *retriever.Retriever, gen generation.Generator, cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.TokenBudget <= 0 {
		cfg.TokenBudget = def.TokenBudget
	}
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = def.HistoryTurns
	}
	return &Engine{memory: mem, classifier: cls, retriever: ret, generator: gen, cfg: cfg}
}

// Ask runs one full turn for a session. Turns against the same session are
// serialized; either a complete answer with citations is returned or an
// error, never a partial answer.
func (e *Engine) Ask(ctx context.Context, sessionID, query string) (*Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	unlock := e.memory.Lock(sessionID)
	defer unlock()

	recent, err := e.memory.Recent(ctx, sessionID, e.cfg.HistoryTurns)
	if err != nil {
		return nil, err
	}

	it := e.classifier.Classify(query, recent)
	logger.Info("intent: %s", it)

	set, err := e.retriever.Retrieve(ctx, query, it)
	if err != nil {
		return nil, &CapabilityError{Step: StepRetrieval, Err: err}
	}

	cctx := assembler.Build(set, it, recent, e.cfg.TokenBudget)

	answerText, err := e.generator.Generate(ctx, cctx.Text, query)
	if err != nil {
		return nil, &CapabilityError{Step: StepGeneration, Err: err}
	}

	if err := verifyCitations(cctx, set); err != nil {
		logger.Error("%v", err)
		return nil, err
	}

	ans := &Answer{
		Text:       answerText,
		Intent:     it,
		Citations:  cctx.Citations,
		Sources:    sourceNames(cctx.Citations),
		Confidence: confidence(set),
	}

	turn := model.Turn{
		Query:         query,
		Intent:        it,
		Answer:        answerText,
		CitedChunkIDs: cctx.ChunkIDs,
		Sources:       ans.Sources,
	}
	if err := e.memory.Append(ctx, sessionID, turn); err != nil {
		return nil, err
	}

	return ans, nil
}

// verifyCitations checks that every cited chunk was part of the retrieved
// set handed to assembly. A mismatch is an internal bug.
func verifyCitations(cctx model.Context, set []model.RetrievedChunk) error {
	supplied := make(map[string]bool, len(set))
	for _, rc := range set {
		supplied[rc.Chunk.ID] = true
	}
	for _, id := range cctx.ChunkIDs {
		if !supplied[id] {
			return &InvariantError{Detail: "cited chunk " + id + " not in retrieved set"}
		}
	}
	return nil
}

// confidence is the position-weighted average of the top three retrieval
// scores, capped at 1.
func confidence(set []model.RetrievedChunk) float64 {
	if len(set) == 0 {
		return 0
	}
	var weighted, total float64
	for i, rc := range set {
		if i >= 3 {
			break
		}
		w := 1.0 / float64(i+1)
		weighted += rc.Score * w
		total += w
	}
	c := weighted / total
	if c > 1 {
		c = 1
	}
	return c
}

func sourceNames(citations []model.Citation) []string {
	names := make([]string, 0, len(citations))
	for _, c := range citations {
		names = append(names, c.Filename)
	}
	return names
}
