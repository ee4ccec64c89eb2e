package llm

import (
	"context"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/insightloop/glean/pkg/config"
)

const anthropicMaxTokens = 4096

// AnthropicProvider implements Provider over the Claude Messages API.
type AnthropicProvider struct {
	base
	client anthropic.Client
}

// NewAnthropicProvider builds the claude provider. An empty URL uses the
// SDK's default endpoint.
func NewAnthropicProvider(cfg config.ProviderConfig) *AnthropicProvider {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.URL != "" {
		opts = append(opts, option.WithBaseURL(cfg.URL))
	}
	return &AnthropicProvider{
		base:   base{name: "claude", cfg: cfg},
		client: anthropic.NewClient(opts...),
	}
}

func (p *AnthropicProvider) SupportsClarification() bool { return true }

func (p *AnthropicProvider) Chat(ctx context.Context, req *AIRequest) *AIResponse {
	ctx, cancel := context.WithTimeout(ctx, ChatTimeout)
	defer cancel()

	msg, err := p.client.Messages.New(ctx, p.params(req))
	if err != nil {
		return errorResponse(p.name, err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(text.Text)
		}
	}
	return ParseAIResponse(b.String())
}

func (p *AnthropicProvider) StreamChat(ctx context.Context, req *AIRequest, onChunk ChunkFunc) *AIResponse {
	ctx, cancel := context.WithTimeout(ctx, StreamTimeout)
	defer cancel()

	stream := p.client.Messages.NewStreaming(ctx, p.params(req))
	defer func() { _ = stream.Close() }()

	var b strings.Builder
	for stream.Next() {
		event := stream.Current()
		deltaEvent, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
		if !ok {
			continue
		}
		// Only text deltas matter here; thinking and tool deltas are skipped.
		if delta, ok := deltaEvent.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
			b.WriteString(delta.Text)
			if onChunk != nil {
				onChunk(delta.Text)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return errorResponse(p.name, err)
	}
	return ParseAIResponse(b.String())
}

func (p *AnthropicProvider) params(req *AIRequest) anthropic.MessageNewParams {
	return anthropic.MessageNewParams{
		Model:     anthropic.Model(p.cfg.Model),
		MaxTokens: anthropicMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(promptFor(req))),
		},
	}
}
