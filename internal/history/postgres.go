// internal/history/postgres.go
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"workout-insights/internal/models"

	"github.com/google/uuid"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS conversations (
    id         TEXT PRIMARY KEY,
    user_id    TEXT NOT NULL,
    title      TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS conversations_user_updated_idx ON conversations (user_id, updated_at DESC);
CREATE TABLE IF NOT EXISTS messages (
    id              TEXT PRIMARY KEY,
    conversation_id TEXT NOT NULL REFERENCES conversations (id) ON DELETE CASCADE,
    user_id         TEXT NOT NULL,
    role            TEXT NOT NULL,
    content         TEXT NOT NULL,
    feedback        TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMPTZ NOT NULL,
    updated_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS messages_conversation_idx ON messages (conversation_id, created_at);
`

var _ Store = (*PostgresStore)(nil)

// PostgresStore keeps conversations and messages in two tables.
type PostgresStore struct {
	db          *sql.DB
	now         func() time.Time
	schemaReady atomic.Bool
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// EnsureSchema creates the tables when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("create history schema: %w", err)
	}
	s.schemaReady.Store(true)
	return nil
}

// Ensure checks that the store is reachable and its tables exist, creating
// them first if EnsureSchema has not succeeded yet.
func (s *PostgresStore) Ensure(ctx context.Context) error {
	if !s.schemaReady.Load() {
		if err := s.EnsureSchema(ctx); err != nil {
			return err
		}
	}
	var conversations, messages sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT to_regclass('conversations')::text, to_regclass('messages')::text",
	).Scan(&conversations, &messages)
	if err != nil {
		return fmt.Errorf("history store unreachable: %w", err)
	}
	if !conversations.Valid || !messages.Valid {
		return errors.New("history tables are missing")
	}
	return nil
}

func (s *PostgresStore) CreateConversation(ctx context.Context, userID, title string) (*models.Conversation, error) {
	now := s.now()
	conv := &models.Conversation{
		ID:        uuid.NewString(),
		Type:      TypeConversation,
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO conversations (id, user_id, title, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)",
		conv.ID, conv.UserID, conv.Title, conv.CreatedAt, conv.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

func (s *PostgresStore) GetConversation(ctx context.Context, userID, conversationID string) (*models.Conversation, error) {
	conv := &models.Conversation{Type: TypeConversation}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, user_id, title, created_at, updated_at FROM conversations WHERE id = $1 AND user_id = $2",
		conversationID, userID,
	).Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return conv, nil
}

// ListConversations returns a page of the user's conversations, most recently updated first.
// A limit <= 0 returns every conversation from offset on.
func (s *PostgresStore) ListConversations(ctx context.Context, userID string, offset, limit int) ([]models.Conversation, error) {
	var pageSize interface{}
	if limit > 0 {
		pageSize = limit
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, user_id, title, created_at, updated_at FROM conversations WHERE user_id = $1 ORDER BY updated_at DESC OFFSET $2 LIMIT $3",
		userID, offset, pageSize,
	)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	conversations := []models.Conversation{}
	for rows.Next() {
		conv := models.Conversation{Type: TypeConversation}
		if err := rows.Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		conversations = append(conversations, conv)
	}
	return conversations, rows.Err()
}

func (s *PostgresStore) RenameConversation(ctx context.Context, userID, conversationID, title string) (*models.Conversation, error) {
	conv := &models.Conversation{Type: TypeConversation}
	err := s.db.QueryRowContext(ctx,
		"UPDATE conversations SET title = $1, updated_at = $2 WHERE id = $3 AND user_id = $4 RETURNING id, user_id, title, created_at, updated_at",
		title, s.now(), conversationID, userID,
	).Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
	}
	if err != nil {
		return nil, fmt.Errorf("rename conversation: %w", err)
	}
	return conv, nil
}

func (s *PostgresStore) DeleteConversation(ctx context.Context, userID, conversationID string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM conversations WHERE id = $1 AND user_id = $2",
		conversationID, userID,
	)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
	}
	return nil
}

// CreateMessage appends msg and bumps the conversation's updated_at in one transaction.
func (s *PostgresStore) CreateMessage(ctx context.Context, messageID, conversationID, userID string, msg models.ChatMessage) (*models.Message, error) {
	if messageID == "" {
		messageID = uuid.NewString()
	}
	now := s.now()
	stored := &models.Message{
		ID:             messageID,
		Type:           TypeMessage,
		ConversationID: conversationID,
		UserID:         userID,
		Role:           msg.Role,
		Content:        msg.Content,
		Feedback:       msg.Feedback,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin message transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		"UPDATE conversations SET updated_at = $1 WHERE id = $2 AND user_id = $3",
		now, conversationID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("touch conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
	}

	res, err = tx.ExecContext(ctx,
		"INSERT INTO messages (id, conversation_id, user_id, role, content, feedback, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) ON CONFLICT (id) DO NOTHING",
		stored.ID, stored.ConversationID, stored.UserID, stored.Role, stored.Content, stored.Feedback, stored.CreatedAt, stored.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: %s", ErrMessageExists, stored.ID)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit message: %w", err)
	}
	return stored, nil
}

func (s *PostgresStore) GetMessages(ctx context.Context, userID, conversationID string) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, conversation_id, user_id, role, content, feedback, created_at, updated_at FROM messages WHERE conversation_id = $1 AND user_id = $2 ORDER BY created_at ASC",
		conversationID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		m := models.Message{Type: TypeMessage}
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.UserID, &m.Role, &m.Content, &m.Feedback, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (s *PostgresStore) UpdateMessageFeedback(ctx context.Context, userID, messageID, feedback string) (*models.Message, error) {
	m := &models.Message{Type: TypeMessage}
	err := s.db.QueryRowContext(ctx,
		"UPDATE messages SET feedback = $1, updated_at = $2 WHERE id = $3 AND user_id = $4 RETURNING id, conversation_id, user_id, role, content, feedback, created_at, updated_at",
		feedback, s.now(), messageID, userID,
	).Scan(&m.ID, &m.ConversationID, &m.UserID, &m.Role, &m.Content, &m.Feedback, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrMessageNotFound, messageID)
	}
	if err != nil {
		return nil, fmt.Errorf("update message feedback: %w", err)
	}
	return m, nil
}

// DeleteMessages removes every message of the conversation and reports how many went.
func (s *PostgresStore) DeleteMessages(ctx context.Context, userID, conversationID string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM messages WHERE conversation_id = $1 AND user_id = $2",
		conversationID, userID,
	)
	if err != nil {
		return 0, fmt.Errorf("delete messages: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
