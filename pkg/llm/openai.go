package llm

import (
	"context"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/insightloop/glean/pkg/config"
)

// OpenAIProvider implements Provider over the Chat Completions API. It also
// backs the eren provider, which is the same wire protocol served from a
// private gateway at a custom base URL.
type OpenAIProvider struct {
	base
	client        openai.Client
	clarification bool
}

// NewOpenAIProvider builds the openai provider.
func NewOpenAIProvider(cfg config.ProviderConfig) *OpenAIProvider {
	return newCompletionsProvider("openai", cfg, true)
}

// NewErenProvider builds the eren provider: Chat Completions against the
// gateway URL from configuration. The gateway is single-shot, so it does not
// take part in the clarification loop.
func NewErenProvider(cfg config.ProviderConfig) *OpenAIProvider {
	return newCompletionsProvider("eren", cfg, false)
}

func newCompletionsProvider(name string, cfg config.ProviderConfig, clarification bool) *OpenAIProvider {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.URL != "" {
		opts = append(opts, option.WithBaseURL(cfg.URL))
	}
	return &OpenAIProvider{
		base:          base{name: name, cfg: cfg},
		client:        openai.NewClient(opts...),
		clarification: clarification,
	}
}

func (p *OpenAIProvider) SupportsClarification() bool { return p.clarification }

func (p *OpenAIProvider) Chat(ctx context.Context, req *AIRequest) *AIResponse {
	ctx, cancel := context.WithTimeout(ctx, ChatTimeout)
	defer cancel()

	completion, err := p.client.Chat.Completions.New(ctx, p.params(req))
	if err != nil {
		return errorResponse(p.name, err)
	}
	if len(completion.Choices) == 0 {
		return &AIResponse{Type: TypeDirectAnswer, Content: "The AI service returned an empty response."}
	}
	return ParseAIResponse(completion.Choices[0].Message.Content)
}

func (p *OpenAIProvider) StreamChat(ctx context.Context, req *AIRequest, onChunk ChunkFunc) *AIResponse {
	ctx, cancel := context.WithTimeout(ctx, StreamTimeout)
	defer cancel()

	stream := p.client.Chat.Completions.NewStreaming(ctx, p.params(req))
	defer func() { _ = stream.Close() }()

	acc := openai.ChatCompletionAccumulator{}
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)
		if len(chunk.Choices) > 0 {
			if delta := chunk.Choices[0].Delta.Content; delta != "" && onChunk != nil {
				onChunk(delta)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return errorResponse(p.name, err)
	}
	if len(acc.Choices) == 0 {
		return &AIResponse{Type: TypeDirectAnswer, Content: "The AI service returned an empty response."}
	}
	return ParseAIResponse(acc.Choices[0].Message.Content)
}

func (p *OpenAIProvider) params(req *AIRequest) openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.cfg.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(promptFor(req)),
		},
	}
}
