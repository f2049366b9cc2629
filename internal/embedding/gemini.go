package embedding

import (
	"context"
	"fmt"

	genai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiEmbedder uses Google Generative AI embeddings
// (text-embedding-004, 768 dims).
type GeminiEmbedder struct {
	apiKey string
	model  string
	dims   int
}

// NewGeminiEmbedder creates a Gemini-backed embedder.
func NewGeminiEmbedder(apiKey, model string) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("missing API key for gemini embeddings")
	}
	if model == "" {
		model = "text-embedding-004"
	}
	return &GeminiEmbedder{apiKey: apiKey, model: model, dims: 768}, nil
}

func (e *GeminiEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(e.apiKey))
	if err != nil {
		return nil, err
	}
	defer client.Close()

	em := client.EmbeddingModel(e.model)
	resp, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embedding failed: %w", err)
	}
	if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return resp.Embedding.Values, nil
}

func (e *GeminiEmbedder) Dims() int { return e.dims }
