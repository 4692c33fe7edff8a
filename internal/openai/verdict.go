package openai

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultVerdictModel is the chat model used for scoring step performances.
	DefaultVerdictModel = openai.GPT4oMini

	verdictSystemMessage = "You are a certified nursing assistant instructor grading simulated clinical skills. Respond with exactly one JSON object and nothing else."
)

// ChatAPI defines the interface for chat completion calls.
type ChatAPI interface {
	CreateCompletion(ctx context.Context, system, prompt string) (string, error)
}

// VerdictClient issues one chat completion per verification.
type VerdictClient struct {
	api ChatAPI
}

type ChatAdapter struct {
	client *openai.Client
	model  string
}

func NewChatAdapter(apiKey, model string) *ChatAdapter {
	if model == "" {
		model = DefaultVerdictModel
	}
	return &ChatAdapter{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

// CreateCompletion calls the OpenAI chat completion API and returns the raw
// text of the first choice.
func (a *ChatAdapter) CreateCompletion(ctx context.Context, system, prompt string) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: system,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: 0.2,
		MaxTokens:   800,
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no completion choices returned")
	}

	return resp.Choices[0].Message.Content, nil
}

// NewVerdictClient creates a VerdictClient backed by the OpenAI chat API.
func NewVerdictClient(apiKey, model string) *VerdictClient {
	return &VerdictClient{api: NewChatAdapter(apiKey, model)}
}

// NewVerdictClientWithAPI creates a VerdictClient with a custom ChatAPI (for testing).
func NewVerdictClientWithAPI(api ChatAPI) *VerdictClient {
	return &VerdictClient{api: api}
}

// Complete sends one grading prompt and returns the raw model response.
// There is no retry at this layer; the caller owns fallback behavior.
func (c *VerdictClient) Complete(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", ErrEmptyText
	}
	return c.api.CreateCompletion(ctx, verdictSystemMessage, prompt)
}
