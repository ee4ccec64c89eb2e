// Package repository defines the persistence contract the engine depends on
// (connections, conversations, messages) and a Postgres implementation.
// The engine only reads connection records; it never writes them.
package repository

import (
	"context"
	"errors"

	"github.com/insightloop/glean/pkg/models"
)

var (
	// ErrNotFound indicates the record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrNotOwned indicates the record exists but belongs to another user.
	ErrNotOwned = errors.New("record not owned by user")
)

// ConnectionStore resolves user-owned connection records.
type ConnectionStore interface {
	// GetConnection returns the connection with the given id, enforcing
	// ownership: a mismatch yields ErrNotOwned.
	GetConnection(ctx context.Context, connectionID, ownerID int64) (*models.Connection, error)
}

// ConversationStore persists conversations and their messages.
type ConversationStore interface {
	// CreateConversation creates a conversation seeded with a title and
	// returns its id.
	CreateConversation(ctx context.Context, ownerID int64, title string) (int64, error)

	// GetConversation returns the conversation, enforcing ownership.
	GetConversation(ctx context.Context, conversationID, ownerID int64) (*models.Conversation, error)

	// AddMessage appends a message to a conversation.
	AddMessage(ctx context.Context, msg *models.Message) error

	// ListMessages returns a conversation's messages in creation order.
	ListMessages(ctx context.Context, conversationID int64) ([]models.Message, error)
}

// Store is the combined persistence contract the orchestrator is wired with.
type Store interface {
	ConnectionStore
	ConversationStore
}
