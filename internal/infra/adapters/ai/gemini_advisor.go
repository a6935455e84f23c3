package ai

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"ingestion-pipeline/internal/domain"
	"ingestion-pipeline/internal/domain/model"
	"ingestion-pipeline/internal/domain/ports/adapter"
)

var _ adapter.AIAdvisor = (*GeminiAdvisor)(nil)

// GeminiAdvisor consults a Gemini model through the GenAI SDK.
type GeminiAdvisor struct {
	client *genai.Client
	model  string
}

func NewGeminiAdvisor(ctx context.Context, apiKey, model string) (*GeminiAdvisor, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key empty")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &GeminiAdvisor{client: client, model: model}, nil
}

func (g *GeminiAdvisor) Name() string { return "gemini" }

func (g *GeminiAdvisor) Consult(ctx context.Context, rec *model.Record, results []model.RuleResult) (adapter.Suggestion, error) {
	prompt := systemPrompt + "\n\n" + buildPrompt(rec, results)

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return adapter.Suggestion{}, fmt.Errorf("%w: %v", domain.ErrAdvisorUnavailable, err)
	}
	text := resp.Text()
	if text == "" {
		return adapter.Suggestion{}, fmt.Errorf("%w: empty response", domain.ErrAdvisorUnavailable)
	}
	return parseSuggestion(text)
}
