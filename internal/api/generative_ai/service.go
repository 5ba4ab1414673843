package generativeAI

import (
	"context"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"
)

const defaultModel = "gemini-2.0-flash"

type AIClient struct {
	client *genai.Client
	model  string
}

func NewAIClient(ctx context.Context, model string) (*AIClient, error) {
	apiKey := os.Getenv("GOOGLE_GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_GEMINI_API_KEY environment variable is not set")
	}
	if model == "" {
		model = defaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &AIClient{
		client: client,
		model:  model,
	}, nil
}

func (ai *AIClient) GenerateResponse(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (string, error) {
	chat, err := ai.client.Chats.Create(ctx, ai.model, config, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create chat: %w", err)
	}
	result, err := chat.SendMessage(ctx, genai.Part{Text: prompt})
	if err != nil {
		return "", err
	}

	var txt string
	for _, candidate := range result.Candidates {
		if candidate.Content != nil && len(candidate.Content.Parts) > 0 {
			txt = candidate.Content.Parts[0].Text
			break
		}
	}
	if txt == "" {
		return "", fmt.Errorf("no valid content in model response")
	}
	return txt, nil
}

// StripJSONFences removes the markdown code fences models tend to wrap
// JSON payloads in.
func StripJSONFences(txt string) string {
	txt = strings.TrimSpace(txt)
	txt = strings.TrimPrefix(txt, "```json")
	txt = strings.TrimPrefix(txt, "```")
	txt = strings.TrimSuffix(txt, "```")
	return strings.TrimSpace(txt)
}
