package completion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/valpere/vidscribe/internal/model"
)

// GeminiBackend calls the Gemini API through the genai SDK. Cache
// annotations are ignored; Gemini caches implicitly.
type GeminiBackend struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	mu     sync.Mutex
	client *genai.Client
}

func NewGeminiBackend(apiKey, baseURL string, httpClient *http.Client) *GeminiBackend {
	return &GeminiBackend{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    strings.TrimSpace(baseURL),
		httpClient: httpClient,
	}
}

func (b *GeminiBackend) Name() model.Backend { return model.BackendGemini }

func (b *GeminiBackend) Send(ctx context.Context, call Call) (string, error) {
	if b.apiKey == "" {
		return "", fmt.Errorf("gemini: %w", ErrMissingCredential)
	}

	client, err := b.sdkClient(ctx)
	if err != nil {
		return "", err
	}

	genCfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(call.System, genai.RoleUser),
	}
	if t := call.Params.Temperature; t != nil {
		genCfg.Temperature = genai.Ptr(float32(*t))
	}
	if n := call.Params.MaxOutputTokens; n > 0 {
		genCfg.MaxOutputTokens = int32(n)
	}

	result, err := client.Models.GenerateContent(ctx, call.Model, genai.Text(call.User), genCfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", &StatusError{StatusCode: apiErr.Code, Body: apiErr.Message}
		}
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}

	if result == nil || len(result.Candidates) == 0 {
		if result != nil && result.PromptFeedback != nil && result.PromptFeedback.BlockReason != "" {
			return "", &RefusalError{Message: string(result.PromptFeedback.BlockReason)}
		}
		return "", &EmptyContentError{Reason: "no candidates"}
	}

	candidate := result.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", &RefusalError{Message: "safety filter"}
	}
	if candidate.Content == nil {
		return "", &EmptyContentError{Reason: fmt.Sprintf("finish_reason=%q", candidate.FinishReason)}
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil && !part.Thought {
			sb.WriteString(part.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", &EmptyContentError{Reason: fmt.Sprintf("finish_reason=%q", candidate.FinishReason)}
	}
	return text, nil
}

// sdkClient builds the genai client on first use and reuses it for every
// later call and retry. A failed build is not cached.
func (b *GeminiBackend) sdkClient(ctx context.Context) (*genai.Client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client != nil {
		return b.client, nil
	}
	cfg := &genai.ClientConfig{
		APIKey:     b.apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: b.httpClient,
	}
	if b.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: b.baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	b.client = client
	return client, nil
}
