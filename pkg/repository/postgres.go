package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/insightloop/glean/pkg/models"
)

// PostgresStore implements Store over the engine's own Postgres database.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore opens the repository database.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository database: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Ping verifies the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type connectionRow struct {
	ID       int64          `db:"id"`
	OwnerID  int64          `db:"owner_id"`
	Name     string         `db:"name"`
	Kind     string         `db:"type"`
	Host     sql.NullString `db:"host"`
	Port     sql.NullInt64  `db:"port"`
	Database sql.NullString `db:"database_name"`
	Username sql.NullString `db:"username"`
	Password sql.NullString `db:"password"`
	Detail   []byte         `db:"detail"`
}

// GetConnection resolves a connection record, refusing ownership mismatches.
func (s *PostgresStore) GetConnection(ctx context.Context, connectionID, ownerID int64) (*models.Connection, error) {
	var row connectionRow
	err := s.db.GetContext(ctx, &row,
		`SELECT id, owner_id, name, type, host, port, database_name, username, password, detail
		 FROM connections WHERE id = $1`, connectionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: connection %d", ErrNotFound, connectionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load connection %d: %w", connectionID, err)
	}
	if row.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: connection %d", ErrNotOwned, connectionID)
	}

	kind, err := models.ParseSourceKind(row.Kind)
	if err != nil {
		return nil, err
	}

	conn := &models.Connection{
		ID:       row.ID,
		OwnerID:  row.OwnerID,
		Name:     row.Name,
		Kind:     kind,
		Host:     row.Host.String,
		Port:     int(row.Port.Int64),
		Database: row.Database.String,
		Username: row.Username.String,
		Password: row.Password.String,
	}
	if len(row.Detail) > 0 {
		if err := json.Unmarshal(row.Detail, &conn.Detail); err != nil {
			return nil, fmt.Errorf("invalid detail blob on connection %d: %w", connectionID, err)
		}
	}
	return conn, nil
}

// CreateConversation creates a conversation and returns its id.
func (s *PostgresStore) CreateConversation(ctx context.Context, ownerID int64, title string) (int64, error) {
	var id int64
	err := s.db.QueryRowxContext(ctx,
		`INSERT INTO conversations (owner_id, title, created_at) VALUES ($1, $2, NOW()) RETURNING id`,
		ownerID, title).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create conversation: %w", err)
	}
	return id, nil
}

// GetConversation loads a conversation, refusing ownership mismatches.
func (s *PostgresStore) GetConversation(ctx context.Context, conversationID, ownerID int64) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.GetContext(ctx, &conv,
		`SELECT id, owner_id, title, created_at FROM conversations WHERE id = $1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: conversation %d", ErrNotFound, conversationID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation %d: %w", conversationID, err)
	}
	if conv.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: conversation %d", ErrNotOwned, conversationID)
	}
	return &conv, nil
}

// AddMessage appends a message to a conversation.
func (s *PostgresStore) AddMessage(ctx context.Context, msg *models.Message) error {
	err := s.db.QueryRowxContext(ctx,
		`INSERT INTO messages (conversation_id, role, content, created_at)
		 VALUES ($1, $2, $3, NOW()) RETURNING id, created_at`,
		msg.ConversationID, msg.Role, msg.Content).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to persist message: %w", err)
	}
	return nil
}

// ListMessages returns a conversation's messages in creation order.
func (s *PostgresStore) ListMessages(ctx context.Context, conversationID int64) ([]models.Message, error) {
	var messages []models.Message
	err := s.db.SelectContext(ctx, &messages,
		`SELECT id, conversation_id, role, content, created_at
		 FROM messages WHERE conversation_id = $1 ORDER BY created_at, id`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}
