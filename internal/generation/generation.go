// Package generation provides the answer-generation capability consumed by
// the engine. Providers receive the assembled context and the question and
// return answer text; failures surface to the caller, never retried here.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Generator produces an answer from assembled context and a question.
type Generator interface {
	Generate(ctx context.Context, contextText, question string) (string, error)
}

const systemInstruction = "You are a document Q&A assistant. Answer the question using only the provided context. " +
	"Cite specific details from the context; if the context does not contain the answer, say so plainly instead of guessing."

func buildPrompt(contextText, question string) string {
	var b strings.Builder
	b.WriteString("Context from documents:\n")
	b.WriteString(contextText)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	return b.String()
}

// --- OpenAI-compatible Provider ---

// OpenAIGenerator uses any OpenAI-compatible chat completion API.
type OpenAIGenerator struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewOpenAIGenerator creates a generator against an OpenAI-compatible API.
func NewOpenAIGenerator(baseURL, apiKey, model string) *OpenAIGenerator {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIGenerator{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (g *OpenAIGenerator) Generate(ctx context.Context, contextText, question string) (string, error) {
	body, _ := json.Marshal(chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemInstruction},
			{Role: "user", Content: buildPrompt(contextText, question)},
		},
		Temperature: 0.3,
	})
	req, err := http.NewRequestWithContext(ctx, "POST", g.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("openai error %d: %s", resp.StatusCode, string(b))
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no completion returned")
	}
	return result.Choices[0].Message.Content, nil
}

// --- Extractive fallback ---

// ExtractiveGenerator returns the assembled context verbatim, prefixed with
// the question. It needs no API key, so retrieval stays usable offline.
type ExtractiveGenerator struct{}

// NewExtractiveGenerator creates the no-LLM fallback generator.
func NewExtractiveGenerator() *ExtractiveGenerator { return &ExtractiveGenerator{} }

func (g *ExtractiveGenerator) Generate(_ context.Context, contextText, question string) (string, error) {
	var b strings.Builder
	b.WriteString("Most relevant passages for: ")
	b.WriteString(question)
	b.WriteString("\n\n")
	b.WriteString(contextText)
	return b.String(), nil
}
