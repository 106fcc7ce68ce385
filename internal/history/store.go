// Package history persists chat conversations and their messages.
package history

import (
	"context"
	"errors"

	"workout-insights/internal/models"
)

var (
	ErrConversationNotFound = errors.New("CONVERSATION_NOT_FOUND")
	ErrMessageNotFound      = errors.New("MESSAGE_NOT_FOUND")
	ErrMessageExists        = errors.New("MESSAGE_EXISTS")
)

const (
	TypeConversation = "conversation"
	TypeMessage      = "message"
)

// Store is the conversation store. Every call is scoped to one user.
type Store interface {
	Ensure(ctx context.Context) error

	CreateConversation(ctx context.Context, userID, title string) (*models.Conversation, error)
	GetConversation(ctx context.Context, userID, conversationID string) (*models.Conversation, error)
	ListConversations(ctx context.Context, userID string, offset, limit int) ([]models.Conversation, error)
	RenameConversation(ctx context.Context, userID, conversationID, title string) (*models.Conversation, error)
	DeleteConversation(ctx context.Context, userID, conversationID string) error

	// CreateMessage returns ErrMessageExists when messageID is already stored.
	CreateMessage(ctx context.Context, messageID, conversationID, userID string, msg models.ChatMessage) (*models.Message, error)
	GetMessages(ctx context.Context, userID, conversationID string) ([]models.Message, error)
	UpdateMessageFeedback(ctx context.Context, userID, messageID, feedback string) (*models.Message, error)
	DeleteMessages(ctx context.Context, userID, conversationID string) (int64, error)
}
