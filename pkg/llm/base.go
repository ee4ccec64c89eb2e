package llm

import (
	"github.com/insightloop/glean/pkg/config"
	"github.com/insightloop/glean/pkg/prompt"
)

// base carries the shared provider identity and configuration.
type base struct {
	name string
	cfg  config.ProviderConfig
}

func (b *base) Name() string       { return b.name }
func (b *base) IsConfigured() bool { return b.cfg.Configured() }

// promptFor resolves the text actually sent: the caller-supplied raw prompt
// for the analysis and dashboard phases, the built decision prompt otherwise.
func promptFor(req *AIRequest) string {
	if req.RawPrompt {
		return req.Prompt
	}
	return prompt.Decision(req.UserMessage, req.ConversationHistory, req.AvailableSchemas)
}
