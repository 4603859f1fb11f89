package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"lectio_backend/internal/config"

	openai "github.com/sashabaranov/go-openai"
)

// ContentGenerator is the single-shot LLM contract the content provider
// depends on. One call, no retries; callers own the timeout.
type ContentGenerator interface {
	GenerateJSON(ctx context.Context, system, prompt string) (json.RawMessage, error)
}

// AIService talks to an OpenAI-compatible chat completion endpoint.
type AIService struct {
	client *openai.Client

	mu    sync.RWMutex
	model string
}

func NewAIService(cfg config.AIConfig) *AIService {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &AIService{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}
}

// SetModel swaps the model at runtime (config hot reload).
func (s *AIService) SetModel(model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if model != "" {
		s.model = model
	}
}

func (s *AIService) currentModel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

func (s *AIService) GenerateJSON(ctx context.Context, system, prompt string) (json.RawMessage, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.currentModel(),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("ai returned no choices")
	}

	return json.RawMessage(stripCodeFence(resp.Choices[0].Message.Content)), nil
}

// stripCodeFence unwraps ```json ... ``` blocks some models still emit even
// in JSON mode.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
