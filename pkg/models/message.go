package models

import "time"

// MessageRole identifies the author of a conversation message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is one persisted conversation turn.
type Message struct {
	ID             int64       `json:"id" db:"id"`
	ConversationID int64       `json:"conversation_id" db:"conversation_id"`
	Role           MessageRole `json:"role" db:"role"`
	Content        string      `json:"content" db:"content"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
}

// Conversation is the persisted conversation record.
type Conversation struct {
	ID        int64     `json:"id" db:"id"`
	OwnerID   int64     `json:"owner_id" db:"owner_id"`
	Title     string    `json:"title" db:"title"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// AnalyzeRequest is the inbound message a user sends over the transport.
type AnalyzeRequest struct {
	UserMessage             string  `json:"user_message"`
	ConversationID          int64   `json:"conversation_id,omitempty"`
	ConnectionIDs           []int64 `json:"connection_ids"`
	AIProvider              string  `json:"ai_provider,omitempty"`
	IsClarificationResponse bool    `json:"is_clarification_response,omitempty"`
	ClarificationAnswer     string  `json:"clarification_answer,omitempty"`
}
