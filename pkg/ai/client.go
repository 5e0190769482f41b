// Package ai produces delay-risk assessments and effort estimates for
// tasks, backed by the Gemini API with a deterministic fallback so a
// caller always receives a result.
package ai

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Generator abstracts the LLM call so the service can be exercised
// without network access.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Model() string
}

// GeminiGenerator calls the Gemini API.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator creates a Gemini-backed generator.
func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiGenerator{client: client, model: model}, nil
}

// Generate sends a single-turn prompt and returns the text reply.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("Gemini generate failed: %w", err)
	}

	text := result.Text()
	if text == "" {
		return "", fmt.Errorf("empty reply from model")
	}
	return text, nil
}

// Model returns the configured model name.
func (g *GeminiGenerator) Model() string {
	return g.model
}
