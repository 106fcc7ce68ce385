package history

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"workout-insights/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := NewPostgresStore(db)
	s.now = func() time.Time { return fixedNow }
	return s, mock
}

var conversationColumns = []string{"id", "user_id", "title", "created_at", "updated_at"}
var messageColumns = []string{"id", "conversation_id", "user_id", "role", "content", "feedback", "created_at", "updated_at"}

func TestPostgresStore_EnsureSchema(t *testing.T) {
	s, mock := newTestStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS conversations").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Ensure(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(mock sqlmock.Sqlmock)
		wantErr string
	}{
		{
			name: "tables present",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT to_regclass").
					WillReturnRows(sqlmock.NewRows([]string{"c", "m"}).AddRow("conversations", "messages"))
			},
		},
		{
			name: "tables missing",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT to_regclass").
					WillReturnRows(sqlmock.NewRows([]string{"c", "m"}).AddRow("conversations", nil))
			},
			wantErr: "history tables are missing",
		},
		{
			name: "unreachable",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT to_regclass").WillReturnError(errors.New("connection refused"))
			},
			wantErr: "history store unreachable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newTestStore(t)
			s.schemaReady.Store(true)
			tt.setup(mock)
			err := s.Ensure(context.Background())
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestPostgresStore_EnsureCreatesMissingSchema(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS conversations").WillReturnError(errors.New("connection refused"))
	assert.ErrorContains(t, s.Ensure(context.Background()), "create history schema")

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS conversations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT to_regclass").
		WillReturnRows(sqlmock.NewRows([]string{"c", "m"}).AddRow("conversations", "messages"))
	require.NoError(t, s.Ensure(context.Background()))

	mock.ExpectQuery("SELECT to_regclass").
		WillReturnRows(sqlmock.NewRows([]string{"c", "m"}).AddRow("conversations", "messages"))
	require.NoError(t, s.Ensure(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateConversation(t *testing.T) {
	s, mock := newTestStore(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO conversations (id, user_id, title, created_at, updated_at)")).
		WithArgs(sqlmock.AnyArg(), "user-1", "Leg Day", fixedNow, fixedNow).
		WillReturnResult(sqlmock.NewResult(1, 1))

	conv, err := s.CreateConversation(context.Background(), "user-1", "Leg Day")
	require.NoError(t, err)
	assert.NotEmpty(t, conv.ID)
	assert.Equal(t, TypeConversation, conv.Type)
	assert.Equal(t, "Leg Day", conv.Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetConversation(t *testing.T) {
	s, mock := newTestStore(t)
	query := regexp.QuoteMeta("FROM conversations WHERE id = $1 AND user_id = $2")

	mock.ExpectQuery(query).WithArgs("c1", "user-1").
		WillReturnRows(sqlmock.NewRows(conversationColumns).AddRow("c1", "user-1", "Leg Day", fixedNow, fixedNow))
	conv, err := s.GetConversation(context.Background(), "user-1", "c1")
	require.NoError(t, err)
	assert.Equal(t, "Leg Day", conv.Title)

	mock.ExpectQuery(query).WithArgs("c2", "user-1").WillReturnError(sql.ErrNoRows)
	_, err = s.GetConversation(context.Background(), "user-1", "c2")
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestPostgresStore_ListConversations(t *testing.T) {
	s, mock := newTestStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY updated_at DESC OFFSET $2 LIMIT $3")).
		WithArgs("user-1", 25, 25).
		WillReturnRows(sqlmock.NewRows(conversationColumns).
			AddRow("c2", "user-1", "Newer", fixedNow, fixedNow).
			AddRow("c1", "user-1", "Older", fixedNow.Add(-time.Hour), fixedNow.Add(-time.Hour)))

	list, err := s.ListConversations(context.Background(), "user-1", 25, 25)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c2", list[0].ID)
	assert.Equal(t, TypeConversation, list[1].Type)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY updated_at DESC OFFSET $2 LIMIT $3")).
		WithArgs("user-1", 0, nil).
		WillReturnRows(sqlmock.NewRows(conversationColumns))
	all, err := s.ListConversations(context.Background(), "user-1", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestPostgresStore_RenameConversation(t *testing.T) {
	s, mock := newTestStore(t)
	query := regexp.QuoteMeta("UPDATE conversations SET title = $1")

	mock.ExpectQuery(query).WithArgs("New", fixedNow, "c1", "user-1").
		WillReturnRows(sqlmock.NewRows(conversationColumns).AddRow("c1", "user-1", "New", fixedNow, fixedNow))
	conv, err := s.RenameConversation(context.Background(), "user-1", "c1", "New")
	require.NoError(t, err)
	assert.Equal(t, "New", conv.Title)

	mock.ExpectQuery(query).WillReturnRows(sqlmock.NewRows(conversationColumns))
	_, err = s.RenameConversation(context.Background(), "user-1", "missing", "New")
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestPostgresStore_DeleteConversation(t *testing.T) {
	s, mock := newTestStore(t)
	query := regexp.QuoteMeta("DELETE FROM conversations WHERE id = $1 AND user_id = $2")

	mock.ExpectExec(query).WithArgs("c1", "user-1").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.DeleteConversation(context.Background(), "user-1", "c1"))

	mock.ExpectExec(query).WithArgs("c9", "user-1").WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, s.DeleteConversation(context.Background(), "user-1", "c9"), ErrConversationNotFound)
}

func TestPostgresStore_CreateMessage(t *testing.T) {
	t.Run("appends and touches conversation", func(t *testing.T) {
		s, mock := newTestStore(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("UPDATE conversations SET updated_at = $1")).
			WithArgs(fixedNow, "c1", "user-1").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO messages")).
			WithArgs("m1", "c1", "user-1", "user", "How many pushups?", "", fixedNow, fixedNow).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		msg, err := s.CreateMessage(context.Background(), "m1", "c1", "user-1", models.ChatMessage{Role: "user", Content: "How many pushups?"})
		require.NoError(t, err)
		assert.Equal(t, "m1", msg.ID)
		assert.Equal(t, TypeMessage, msg.Type)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("id already stored", func(t *testing.T) {
		s, mock := newTestStore(t)
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE conversations").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (id) DO NOTHING")).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		_, err := s.CreateMessage(context.Background(), "m1", "c1", "user-1", models.ChatMessage{Role: "assistant", Content: "x"})
		assert.ErrorIs(t, err, ErrMessageExists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown conversation", func(t *testing.T) {
		s, mock := newTestStore(t)
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE conversations").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		_, err := s.CreateMessage(context.Background(), "", "gone", "user-1", models.ChatMessage{Role: "user", Content: "x"})
		assert.ErrorIs(t, err, ErrConversationNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStore_GetMessages(t *testing.T) {
	s, mock := newTestStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM messages WHERE conversation_id = $1 AND user_id = $2 ORDER BY created_at ASC")).
		WithArgs("c1", "user-1").
		WillReturnRows(sqlmock.NewRows(messageColumns).
			AddRow("m1", "c1", "user-1", "user", "hi", "", fixedNow, fixedNow).
			AddRow("m2", "c1", "user-1", "assistant", "hello", "positive", fixedNow, fixedNow))

	msgs, err := s.GetMessages(context.Background(), "user-1", "c1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "positive", msgs[1].Feedback)
}

func TestPostgresStore_UpdateMessageFeedback(t *testing.T) {
	s, mock := newTestStore(t)
	query := regexp.QuoteMeta("UPDATE messages SET feedback = $1")

	mock.ExpectQuery(query).WithArgs("negative", fixedNow, "m2", "user-1").
		WillReturnRows(sqlmock.NewRows(messageColumns).AddRow("m2", "c1", "user-1", "assistant", "hello", "negative", fixedNow, fixedNow))
	msg, err := s.UpdateMessageFeedback(context.Background(), "user-1", "m2", "negative")
	require.NoError(t, err)
	assert.Equal(t, "negative", msg.Feedback)

	mock.ExpectQuery(query).WillReturnError(sql.ErrNoRows)
	_, err = s.UpdateMessageFeedback(context.Background(), "user-1", "m404", "negative")
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestPostgresStore_DeleteMessages(t *testing.T) {
	s, mock := newTestStore(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM messages")).WithArgs("c1", "user-1").WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := s.DeleteMessages(context.Background(), "user-1", "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}
