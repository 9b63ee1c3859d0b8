package gemini

import (
	"context"
	"errors"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

var (
	ErrMissingAPIKey = errors.New("gemini API key is required")
	ErrEmptyResponse = errors.New("no response from Gemini API")
)

type IGemini interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	Close() error
}

type geminiClient struct {
	modelName string
	client    *genai.Client
}

func NewGeminiClient(apiKey string, modelName string) (IGemini, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	if modelName == "" {
		modelName = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	return &geminiClient{
		modelName: modelName,
		client:    client,
	}, nil
}

// GenerateText sends a text-only prompt and joins every text part of the
// first candidate.
func (g *geminiClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	model := g.client.GenerativeModel(g.modelName)

	res, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}

	if len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}

	var sb strings.Builder
	for _, part := range res.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}

	if strings.TrimSpace(sb.String()) == "" {
		return "", ErrEmptyResponse
	}

	return sb.String(), nil
}

func (g *geminiClient) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
