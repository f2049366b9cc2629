package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	genai "github.com/google/generative-ai-go/genai"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"docchat/internal/logger"
)

// GeminiGenerator uses Google Generative AI behind a circuit breaker and a
// client-side rate limiter sized for the account tier.
type GeminiGenerator struct {
	client  *genai.Client
	model   string
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

// RateLimits holds per-tier request quotas.
type RateLimits struct {
	RPM int // requests per minute
}

func tierLimits(tier string) RateLimits {
	switch tier {
	case "tier1":
		return RateLimits{RPM: 1000}
	case "tier2":
		return RateLimits{RPM: 2000}
	default: // free
		return RateLimits{RPM: 10}
	}
}

// NewGeminiGenerator creates a Gemini-backed generator.
func NewGeminiGenerator(ctx context.Context, apiKey, model, tier string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("missing API key for gemini generation")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	limits := tierLimits(tier)
	limiter := rate.NewLimiter(rate.Limit(float64(limits.RPM)*0.9/60.0), 1)

	return &GeminiGenerator{
		client:  client,
		model:   model,
		breaker: breaker,
		limiter: limiter,
	}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, contextText, question string) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	result, err := g.breaker.Execute(func() (interface{}, error) {
		gm := g.client.GenerativeModel(g.model)
		gm.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(systemInstruction)},
		}
		temp := float32(0.3)
		gm.Temperature = &temp

		resp, err := gm.GenerateContent(ctx, genai.Text(buildPrompt(contextText, question)))
		if err != nil {
			return nil, err
		}
		return resp, nil
	})
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}

	resp := result.(*genai.GenerateContentResponse)
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no candidates returned")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("empty response")
	}
	return b.String(), nil
}

// Close releases the underlying API client.
func (g *GeminiGenerator) Close() error {
	return g.client.Close()
}
