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

const defaultOllamaBaseURL = "http://localhost:11434"

// OllamaBackend talks to a local Ollama server's chat endpoint. It needs no
// credential and ignores cache annotations.
type OllamaBackend struct {
	baseURL string
	client  *http.Client
}

func NewOllamaBackend(baseURL string, client *http.Client) *OllamaBackend {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultOllamaBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	return &OllamaBackend{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  client,
	}
}

func (b *OllamaBackend) Name() model.Backend { return model.BackendOllama }

type ollamaOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"`
}

type ollamaRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  *ollamaOptions `json:"options,omitempty"`
}

type ollamaResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	DoneReason string `json:"done_reason"`
	Error      string `json:"error"`
}

func (b *OllamaBackend) Send(ctx context.Context, call Call) (string, error) {
	payload := ollamaRequest{
		Model: call.Model,
		Messages: []chatMessage{
			{Role: "system", Content: call.System},
			{Role: "user", Content: call.User},
		},
		Stream: false,
	}
	if call.Params.Temperature != nil || call.Params.MaxOutputTokens > 0 {
		payload.Options = &ollamaOptions{
			Temperature: call.Params.Temperature,
			NumPredict:  call.Params.MaxOutputTokens,
		}
	}

	body, err := postJSON(ctx, b.client, b.baseURL+"/api/chat", "", nil, payload)
	if err != nil {
		return "", err
	}

	var resp ollamaResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("ollama: failed to decode response: %w", err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("ollama: api error: %s", resp.Error)
	}
	content := strings.TrimSpace(resp.Message.Content)
	if content == "" {
		return "", &EmptyContentError{Reason: fmt.Sprintf("done_reason=%q", resp.DoneReason)}
	}
	return content, nil
}
