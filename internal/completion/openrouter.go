package completion

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/valpere/vidscribe/internal/model"
)

const defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

// OpenRouterBackend talks to an OpenAI-compatible chat completions endpoint.
type OpenRouterBackend struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewOpenRouterBackend(apiKey, baseURL string, client *http.Client) *OpenRouterBackend {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultOpenRouterBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	return &OpenRouterBackend{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  client,
	}
}

func (b *OpenRouterBackend) Name() model.Backend { return model.BackendOpenRouter }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string           `json:"model"`
	Messages       []chatMessage    `json:"messages"`
	Temperature    *float64         `json:"temperature,omitempty"`
	MaxTokens      int              `json:"max_tokens,omitempty"`
	Reasoning      *openAIReasoning `json:"reasoning,omitempty"`
	PromptCacheKey string           `json:"prompt_cache_key,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Code    any    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (b *OpenRouterBackend) Send(ctx context.Context, call Call) (string, error) {
	if b.apiKey == "" {
		return "", fmt.Errorf("openrouter: %w", ErrMissingCredential)
	}

	payload := chatRequest{
		Model: call.Model,
		Messages: []chatMessage{
			{Role: "system", Content: call.System},
			{Role: "user", Content: call.User},
		},
		Temperature: call.Params.Temperature,
		MaxTokens:   call.Params.MaxOutputTokens,
	}
	if effort := call.Params.ReasoningEffort; effort != "" {
		payload.Reasoning = &openAIReasoning{Effort: effort}
	}
	if call.Annotation != nil {
		payload.PromptCacheKey = call.Annotation.Key
	}

	headers := map[string]string{
		"HTTP-Referer": "https://vidscribe.local",
		"X-Title":      "vidscribe",
	}
	body, err := postJSON(ctx, b.client, b.baseURL+"/chat/completions", b.apiKey, headers, payload)
	if err != nil {
		return "", err
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("openrouter: failed to decode response: %w", err)
	}
	if resp.Error != nil && resp.Error.Message != "" {
		// OpenRouter reports upstream provider failures in-band with a 200.
		if code, ok := resp.Error.Code.(float64); ok && code >= 400 {
			return "", &StatusError{StatusCode: int(code), Body: resp.Error.Message}
		}
		return "", fmt.Errorf("openrouter: api error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", &EmptyContentError{Reason: "no choices"}
	}

	choice := resp.Choices[0]
	if refusal := strings.TrimSpace(choice.Message.Refusal); refusal != "" {
		return "", &RefusalError{Message: refusal}
	}
	if choice.FinishReason == "content_filter" {
		return "", &RefusalError{Message: "content filter"}
	}
	content := strings.TrimSpace(choice.Message.Content)
	if content == "" {
		return "", &EmptyContentError{Reason: fmt.Sprintf("finish_reason=%q", choice.FinishReason)}
	}
	return content, nil
}
