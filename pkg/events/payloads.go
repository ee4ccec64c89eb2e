package events

import (
	"time"

	"github.com/insightloop/glean/pkg/models"
)

// ActivityPayload is one progress message on the activity (or pong) channel.
// Timestamps are ISO-8601 UTC with millisecond precision on the wire.
type ActivityPayload struct {
	EventID        string    `json:"event_id,omitempty"`
	Phase          Phase     `json:"phase"`
	Status         Status    `json:"status"`
	Message        string    `json:"message"`
	ConversationID int64     `json:"conversation_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// ClarificationPayload asks the user a follow-up question before execution.
type ClarificationPayload struct {
	ConversationID   int64     `json:"conversation_id"`
	Question         string    `json:"question"`
	SuggestedOptions []string  `json:"suggested_options,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// Envelope is the wire frame delivered to a subscriber: the channel name plus
// the channel-typed payload (ActivityPayload, ClarificationPayload, or
// models.AnalyzeResponse).
type Envelope struct {
	Channel Channel `json:"channel"`
	Payload any     `json:"payload"`
}

// ResponseEnvelope wraps a final AnalyzeResponse for the response channel.
func ResponseEnvelope(resp models.AnalyzeResponse) Envelope {
	return Envelope{Channel: ChannelResponse, Payload: resp}
}

// ErrorEnvelope wraps a failed AnalyzeResponse for the error channel.
func ErrorEnvelope(resp models.AnalyzeResponse) Envelope {
	return Envelope{Channel: ChannelError, Payload: resp}
}
