package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/pkoukk/tiktoken-go"

	"ingestion-pipeline/internal/domain"
	"ingestion-pipeline/internal/domain/model"
	"ingestion-pipeline/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.AIAdvisor = (*OpenAIAdvisor)(nil)

const maxPromptTokens = 4000

// OpenAIAdvisor consults an OpenAI chat model. Prompts are trimmed to a
// token budget so oversized payloads degrade gracefully instead of erroring.
type OpenAIAdvisor struct {
	client openai.Client
	model  string
	enc    *tiktoken.Tiktoken
}

func NewOpenAIAdvisor(apiKey, model string) (*OpenAIAdvisor, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// Unknown model names still get a usable budget estimate.
		if enc, err = tiktoken.GetEncoding("cl100k_base"); err != nil {
			return nil, err
		}
	}
	return &OpenAIAdvisor{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
		enc:    enc,
	}, nil
}

func (o *OpenAIAdvisor) Name() string { return "openai" }

func (o *OpenAIAdvisor) Consult(ctx context.Context, rec *model.Record, results []model.RuleResult) (adapter.Suggestion, error) {
	prompt := o.trim(buildPrompt(rec, results))

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return adapter.Suggestion{}, fmt.Errorf("%w: %v", domain.ErrAdvisorUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return adapter.Suggestion{}, fmt.Errorf("%w: empty completion", domain.ErrAdvisorUnavailable)
	}
	return parseSuggestion(resp.Choices[0].Message.Content)
}

// trim cuts the prompt to the token budget, dropping from the tail; the
// prompt renders rule outcomes before the payload so they survive the cut.
func (o *OpenAIAdvisor) trim(prompt string) string {
	tokens := o.enc.Encode(prompt, nil, nil)
	if len(tokens) <= maxPromptTokens {
		return prompt
	}
	return o.enc.Decode(tokens[:maxPromptTokens])
}
