package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/insightloop/glean/pkg/config"
)

const geminiDefaultBase = "https://generativelanguage.googleapis.com/v1beta"

// GeminiProvider implements Provider over the Gemini REST API. The SDK-less
// client keeps the dependency surface small; streaming rides the same SSE
// decoder the claude provider's SDK uses internally.
type GeminiProvider struct {
	base
	baseURL    string
	httpClient *http.Client
}

// NewGeminiProvider builds the gemini provider. An empty URL uses the public
// Generative Language endpoint.
func NewGeminiProvider(cfg config.ProviderConfig) *GeminiProvider {
	baseURL := cfg.URL
	if baseURL == "" {
		baseURL = geminiDefaultBase
	}
	return &GeminiProvider{
		base:       base{name: "gemini", cfg: cfg},
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: StreamTimeout},
	}
}

func (p *GeminiProvider) SupportsClarification() bool { return true }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (p *GeminiProvider) Chat(ctx context.Context, req *AIRequest) *AIResponse {
	ctx, cancel := context.WithTimeout(ctx, ChatTimeout)
	defer cancel()

	resp, err := p.post(ctx, "generateContent", "", req)
	if err != nil {
		return errorResponse(p.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errorResponse(p.name, err)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return errorResponse(p.name, fmt.Errorf("invalid gemini response: %w", err))
	}
	return ParseAIResponse(candidateText(&parsed))
}

func (p *GeminiProvider) StreamChat(ctx context.Context, req *AIRequest, onChunk ChunkFunc) *AIResponse {
	ctx, cancel := context.WithTimeout(ctx, StreamTimeout)
	defer cancel()

	resp, err := p.post(ctx, "streamGenerateContent", "alt=sse", req)
	if err != nil {
		return errorResponse(p.name, err)
	}

	decoder := ssestream.NewDecoder(resp)
	defer func() { _ = decoder.Close() }()

	var b strings.Builder
	for decoder.Next() {
		event := decoder.Event()
		var chunk geminiResponse
		if err := json.Unmarshal(event.Data, &chunk); err != nil {
			// Non-JSON keepalives are skipped; only text chunks are forwarded.
			continue
		}
		if text := candidateText(&chunk); text != "" {
			b.WriteString(text)
			if onChunk != nil {
				onChunk(text)
			}
		}
	}
	if err := decoder.Err(); err != nil {
		return errorResponse(p.name, err)
	}
	return ParseAIResponse(b.String())
}

// post issues a generateContent call. Non-2xx statuses become errors carrying
// the response body, which holds the API's error message.
func (p *GeminiProvider) post(ctx context.Context, method, query string, req *AIRequest) (*http.Response, error) {
	payload := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: promptFor(req)}}},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode gemini request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:%s", p.baseURL, p.cfg.Model, method)
	if query != "" {
		url += "?" + query
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", p.cfg.APIKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		resp.Body.Close()
		return nil, fmt.Errorf("gemini API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return resp, nil
}

func candidateText(resp *geminiResponse) string {
	if len(resp.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	return b.String()
}
