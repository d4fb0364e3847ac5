package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/valpere/vidscribe/internal/model"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIBackend talks to the OpenAI Responses API.
type OpenAIBackend struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewOpenAIBackend returns a backend for api.openai.com or a compatible
// base URL.
func NewOpenAIBackend(apiKey, baseURL string, client *http.Client) *OpenAIBackend {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultOpenAIBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	return &OpenAIBackend{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  client,
	}
}

func (b *OpenAIBackend) Name() model.Backend { return model.BackendOpenAI }

type openAIInput struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIReasoning struct {
	Effort string `json:"effort"`
}

type openAIRequest struct {
	Model                string           `json:"model"`
	Input                []openAIInput    `json:"input"`
	Temperature          *float64         `json:"temperature,omitempty"`
	MaxOutputTokens      int              `json:"max_output_tokens,omitempty"`
	Reasoning            *openAIReasoning `json:"reasoning,omitempty"`
	PromptCacheKey       string           `json:"prompt_cache_key,omitempty"`
	PromptCacheRetention string           `json:"prompt_cache_retention,omitempty"`
	Store                bool             `json:"store"`
}

type openAIResponse struct {
	Status string `json:"status"`
	Output []struct {
		Type    string `json:"type"`
		Content []struct {
			Type    string `json:"type"`
			Text    string `json:"text"`
			Refusal string `json:"refusal"`
		} `json:"content"`
	} `json:"output"`
	IncompleteDetails *struct {
		Reason string `json:"reason"`
	} `json:"incomplete_details"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// promptCacheRetention maps a retention window onto the two policies the
// Responses API accepts.
func promptCacheRetention(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	if d >= 24*time.Hour {
		return "24h"
	}
	return "in-memory"
}

func (b *OpenAIBackend) Send(ctx context.Context, call Call) (string, error) {
	if b.apiKey == "" {
		return "", fmt.Errorf("openai: %w", ErrMissingCredential)
	}

	payload := openAIRequest{
		Model: call.Model,
		Input: []openAIInput{
			{Role: "system", Content: call.System},
			{Role: "user", Content: call.User},
		},
		MaxOutputTokens: call.Params.MaxOutputTokens,
	}
	if effort := call.Params.ReasoningEffort; effort != "" {
		payload.Reasoning = &openAIReasoning{Effort: effort}
	} else {
		payload.Temperature = call.Params.Temperature
	}
	if call.Annotation != nil {
		payload.PromptCacheKey = call.Annotation.Key
		payload.PromptCacheRetention = promptCacheRetention(call.Annotation.Retention)
	}

	body, err := postJSON(ctx, b.client, b.baseURL+"/responses", b.apiKey, nil, payload)
	if err != nil {
		return "", err
	}

	var resp openAIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("openai: failed to decode response: %w", err)
	}
	if resp.Error != nil && resp.Error.Message != "" {
		return "", fmt.Errorf("openai: api error %s: %s", resp.Error.Code, resp.Error.Message)
	}

	var sb strings.Builder
	for _, item := range resp.Output {
		if item.Type != "message" {
			continue
		}
		for _, part := range item.Content {
			switch part.Type {
			case "output_text":
				sb.WriteString(part.Text)
			case "refusal":
				return "", &RefusalError{Message: part.Refusal}
			}
		}
	}
	if text := strings.TrimSpace(sb.String()); text != "" {
		return text, nil
	}

	reason := resp.Status
	if resp.IncompleteDetails != nil && resp.IncompleteDetails.Reason != "" {
		reason = resp.IncompleteDetails.Reason
		if reason == "content_filter" {
			return "", &RefusalError{Message: "content filter"}
		}
	}
	return "", &EmptyContentError{Reason: fmt.Sprintf("status=%q, body=%s", reason, summarizeSnippet(string(body)))}
}

// postJSON sends payload and returns the response body, mapping non-2xx
// responses to *StatusError.
func postJSON(ctx context.Context, client *http.Client, endpoint, apiKey string, headers map[string]string, payload any) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return body, &StatusError{
			StatusCode: resp.StatusCode,
			Body:       summarizeSnippet(string(body)),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	return body, nil
}
