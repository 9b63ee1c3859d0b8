package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

var ErrMissingAPIKey = errors.New("openai API key is required")

type IChatGPT interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	Close() error
}

type chatGPTService struct {
	client *openai.Client
	model  string
}

func NewChatGPT(apiKey string, model string) (IChatGPT, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	if model == "" {
		model = openai.GPT4oMini
	}

	return &chatGPTService{
		client: openai.NewClient(apiKey),
		model:  model,
	}, nil
}

func (c *chatGPTService) GenerateText(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			Temperature: 0.2,
			MaxTokens:   400,
		},
	)
	if err != nil {
		return "", fmt.Errorf("ChatGPT API error: %w", err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("no response from ChatGPT")
	}

	return resp.Choices[0].Message.Content, nil
}

func (c *chatGPTService) Close() error {
	return nil
}
