// Package llm implements the AI provider contract: streaming and
// non-streaming chat over multiple remote LLM services, plus the shared
// structured-JSON response parsing.
package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/insightloop/glean/pkg/models"
)

const (
	// ChatTimeout bounds a non-streaming chat call.
	ChatTimeout = 60 * time.Second

	// StreamTimeout bounds a full streaming chat call.
	StreamTimeout = 120 * time.Second
)

// ResponseType classifies what the model decided to do.
type ResponseType string

const (
	TypeClarificationNeeded ResponseType = "CLARIFICATION_NEEDED"
	TypeReadyToExecute      ResponseType = "READY_TO_EXECUTE"
	TypeDirectAnswer        ResponseType = "DIRECT_ANSWER"
)

// AIRequest carries everything a provider needs for one chat turn.
type AIRequest struct {
	UserMessage         string
	AvailableSchemas    []models.SourceSchema
	ConversationHistory []models.Message
	UserID              int64
	ConversationID      int64
	FirstMessage        bool

	// RawPrompt short-circuits prompt building: the Prompt field is sent
	// verbatim. Used by the analysis and dashboard phases.
	RawPrompt bool
	Prompt    string
}

// AIResponse is the parsed outcome of one chat turn.
type AIResponse struct {
	Type                  ResponseType         `json:"type"`
	Content               string               `json:"content"`
	Intent                string               `json:"intent,omitempty"`
	ClarificationQuestion string               `json:"clarificationQuestion,omitempty"`
	SuggestedOptions      []string             `json:"suggestedOptions,omitempty"`
	DataRequests          []models.DataRequest `json:"dataRequests,omitempty"`
}

// ChunkFunc receives streaming text deltas as they arrive. It is invoked
// from the task owning the orchestration, preserving emission order.
type ChunkFunc func(delta string)

// Provider is the uniform contract over one remote LLM service.
// Chat and StreamChat never return an error: transport failures are
// converted to a DIRECT_ANSWER carrying the error summary, so the
// orchestrator can always surface a useful message.
type Provider interface {
	Name() string
	IsConfigured() bool
	SupportsClarification() bool

	Chat(ctx context.Context, req *AIRequest) *AIResponse

	// StreamChat delivers text deltas to onChunk as they arrive and parses
	// the accumulated text once the stream closes.
	StreamChat(ctx context.Context, req *AIRequest, onChunk ChunkFunc) *AIResponse
}

// errorResponse converts a transport failure into a usable answer.
// The error is logged here and not re-thrown.
func errorResponse(provider string, err error) *AIResponse {
	slog.Error("LLM call failed", "provider", provider, "error", err)
	return &AIResponse{
		Type:    TypeDirectAnswer,
		Content: "The AI service is currently unavailable: " + err.Error(),
	}
}
