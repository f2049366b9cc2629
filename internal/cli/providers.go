package cli

import (
	"context"
	"fmt"
	"os"

	"docchat/internal/config"
	"docchat/internal/embedding"
	"docchat/internal/engine"
	"docchat/internal/generation"
	"docchat/internal/intent"
	"docchat/internal/memory"
	"docchat/internal/retriever"
	"docchat/internal/store"
)

func apiKey(env, fallback string) string {
	if env == "" {
		env = fallback
	}
	return os.Getenv(env)
}

func newEmbedder(cfg *config.Config) (embedding.Embedder, error) {
	e := cfg.Embedder
	switch e.Provider {
	case "ollama", "":
		var baseURL, model string
		if e.Ollama != nil {
			baseURL, model = e.Ollama.BaseURL, e.Ollama.Model
		}
		return embedding.NewOllamaEmbedder(baseURL, model), nil
	case "openai":
		var baseURL, keyEnv, model string
		var dims int
		if e.OpenAI != nil {
			baseURL, keyEnv, model, dims = e.OpenAI.BaseURL, e.OpenAI.APIKeyEnv, e.OpenAI.Model, e.OpenAI.Dims
		}
		return embedding.NewOpenAIEmbedder(baseURL, apiKey(keyEnv, "OPENAI_API_KEY"), model, dims), nil
	case "gemini":
		var keyEnv, model string
		if e.Gemini != nil {
			keyEnv, model = e.Gemini.APIKeyEnv, e.Gemini.Model
		}
		return embedding.NewGeminiEmbedder(apiKey(keyEnv, "GEMINI_API_KEY"), model)
	default:
		return nil, fmt.Errorf("unknown embedder provider: %s", e.Provider)
	}
}

func newGenerator(ctx context.Context, cfg *config.Config) (generation.Generator, error) {
	g := cfg.Generator
	switch g.Provider {
	case "extractive", "":
		return generation.NewExtractiveGenerator(), nil
	case "openai":
		var baseURL, keyEnv, model string
		if g.OpenAI != nil {
			baseURL, keyEnv, model = g.OpenAI.BaseURL, g.OpenAI.APIKeyEnv, g.OpenAI.Model
		}
		return generation.NewOpenAIGenerator(baseURL, apiKey(keyEnv, "OPENAI_API_KEY"), model), nil
	case "gemini":
		var keyEnv, model, tier string
		if g.Gemini != nil {
			keyEnv, model, tier = g.Gemini.APIKeyEnv, g.Gemini.Model, g.Gemini.Tier
		}
		return generation.NewGeminiGenerator(ctx, apiKey(keyEnv, "GEMINI_API_KEY"), model, tier)
	default:
		return nil, fmt.Errorf("unknown generator provider: %s", g.Provider)
	}
}

func buildEngine(ctx context.Context, cfg *config.Config, s *store.SQLiteStore) (*engine.Engine, error) {
	emb, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	gen, err := newGenerator(ctx, cfg)
	if err != nil {
		return nil, err
	}

	ret := retriever.New(s, emb, retriever.Config{
		VectorWeight:  cfg.Retrieval.VectorWeight,
		LexicalWeight: cfg.Retrieval.LexicalWeight,
		SummaryTopK:   cfg.Retrieval.SummaryTopK,
		DetailTopK:    cfg.Retrieval.DetailTopK,
		DefaultTopK:   cfg.Retrieval.DefaultTopK,
	})
	cls := intent.New(intent.Markers{
		FollowUp: cfg.Markers.FollowUp,
		Summary:  cfg.Markers.Summary,
		Detail:   cfg.Markers.Detail,
	})
	mem := memory.New(s)

	return engine.New(mem, cls, ret, gen, engine.Config{
		TokenBudget:  cfg.Context.TokenBudget,
		HistoryTurns: cfg.Context.HistoryTurns,
	}), nil
}
