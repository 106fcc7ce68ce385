package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	warns  []string
	errors []string
}

func (l *recordingLogger) Warn(msg string, _ map[string]interface{})  { l.warns = append(l.warns, msg) }
func (l *recordingLogger) Error(msg string, _ map[string]interface{}) { l.errors = append(l.errors, msg) }

func TestErrorHandler_Handle(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
		wantWarn   bool
	}{
		{
			name:       "invalid request",
			err:        NewInvalidRequestError("message_id is required"),
			wantStatus: http.StatusBadRequest,
			wantBody:   "message_id is required",
			wantWarn:   true,
		},
		{
			name:       "conversation not found",
			err:        NewConversationNotFoundError("abc"),
			wantStatus: http.StatusNotFound,
			wantBody:   "Conversation abc was not found. It either does not exist or the logged in user does not have access to it.",
			wantWarn:   true,
		},
		{
			name:       "wrapped standard error",
			err:        fmt.Errorf("outer: %w", NewHistoryUnavailableError(nil)),
			wantStatus: http.StatusInternalServerError,
			wantBody:   "Chat history is not available",
		},
		{
			name:       "plain error",
			err:        fmt.Errorf("boom"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &recordingLogger{}
			h := NewErrorHandler(log)

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/history/read", nil)
			h.Handle(rec, req, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantBody, body["error"])

			if tt.wantWarn {
				assert.Len(t, log.warns, 1)
				assert.Empty(t, log.errors)
			} else {
				assert.Len(t, log.errors, 1)
			}
		})
	}
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeQueryExecutionFailed))
	assert.Equal(t, "AI", GetErrorCategory(ErrCodeQueryGenerationFailed))
	assert.Equal(t, "SEARCH", GetErrorCategory(ErrCodeEmbeddingFailed))
	assert.Equal(t, "TEMPLATE", GetErrorCategory(ErrCodeTemplateValidationFailed))
	assert.Equal(t, "HISTORY", GetErrorCategory(ErrCodeConversationNotFound))
	assert.Equal(t, "OTHER", GetErrorCategory("SOMETHING_ELSE"))
}
