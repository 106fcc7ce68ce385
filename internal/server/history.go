// internal/server/history.go
package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "workout-insights/internal/common/errors"
	"workout-insights/internal/common/llm"
	"workout-insights/internal/conversation"
	"workout-insights/internal/history"
	"workout-insights/internal/models"
)

const historyPageSize = 25

type conversationIDRequest struct {
	ConversationID string `json:"conversation_id"`
	Title          string `json:"title"`
}

type feedbackRequest struct {
	MessageID       string `json:"message_id"`
	MessageFeedback string `json:"message_feedback"`
}

// historyError maps store errors onto HTTP errors.
func historyError(err error, conversationID string) error {
	switch {
	case errors.Is(err, history.ErrConversationNotFound):
		return apperrors.NewConversationNotFoundError(conversationID)
	case errors.Is(err, history.ErrMessageNotFound):
		return apperrors.NewMessageNotFoundError(conversationID)
	default:
		return apperrors.NewHistoryUnavailableError(err)
	}
}

// handleHistoryGenerate records the user turn, creating the conversation when needed,
// then answers it like /conversation.
func (s *Server) handleHistoryGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := conversation.Decode(r.Body)
	if err != nil {
		s.errs.Handle(w, r, apperrors.NewInvalidRequestError("request must be json"))
		return
	}

	if s.deps.History == nil {
		s.track(ctx, "ChatHistoryDisabled", map[string]interface{}{"message": "answering without chat history"})
		s.runConversation(w, r, req)
		return
	}

	env := req.Envelope()
	if len(env.Messages) == 0 || env.Messages[len(env.Messages)-1].Role != llm.RoleUser {
		s.track(ctx, "NoUserMessage", map[string]interface{}{"status_code": http.StatusBadRequest})
		s.errs.Handle(w, r, apperrors.NewInvalidRequestError("No user message found"))
		return
	}

	userID := userFrom(ctx)
	metadata := map[string]interface{}{}
	conversationID := env.ConversationID

	// Persistence failures other than an unknown conversation do not block the answer.
	if conversationID == "" {
		title := s.deps.Titles.Execute(ctx, toModelMessages(env.Messages))
		s.track(ctx, "TitleGenerated", map[string]interface{}{"title": title})

		conv, err := s.deps.History.CreateConversation(ctx, userID, title)
		if err != nil {
			s.log(r).Error("create conversation failed", map[string]interface{}{"error": err.Error()})
		} else {
			conversationID = conv.ID
			metadata["title"] = title
			metadata["date"] = conv.CreatedAt
		}
	}

	if conversationID != "" {
		last := env.Messages[len(env.Messages)-1]
		_, err := s.deps.History.CreateMessage(ctx, "", conversationID, userID, last)
		switch {
		case errors.Is(err, history.ErrConversationNotFound):
			s.track(ctx, "ConversationNotFound", map[string]interface{}{"conversation_id": conversationID})
			s.errs.Handle(w, r, apperrors.NewConversationNotFoundError(conversationID))
			return
		case err != nil:
			s.log(r).Error("store user message failed", map[string]interface{}{"error": err.Error()})
		default:
			s.track(ctx, "MessageCreated", map[string]interface{}{
				"conversation_id": conversationID,
				"user_id":         userID,
			})
		}
		metadata["conversation_id"] = conversationID
	}

	for k, v := range metadata {
		env.HistoryMetadata[k] = v
	}
	s.track(ctx, "ConversationHistoryGenerated", map[string]interface{}{"conversation_id": conversationID})
	s.runConversation(w, r, req)
}

// handleHistoryUpdate stores the assistant turn and the tool message right before it.
func (s *Server) handleHistoryUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var body conversation.Envelope
	if err := decodeBody(r, &body); err != nil {
		s.errs.Handle(w, r, err)
		return
	}

	if s.deps.History == nil {
		s.track(ctx, "HistoryNotConfigured", nil)
		s.errs.Handle(w, r, apperrors.NewHistoryUnavailableError(errors.New("chat history is disabled")))
		return
	}

	if body.ConversationID == "" {
		s.track(ctx, "MissingConversationId", map[string]interface{}{"error": "No conversation_id in request"})
		apperrors.WriteJSON(w, http.StatusOK, map[string]string{
			"status":  "skipped",
			"message": "No conversation_id provided",
		})
		return
	}

	msgs := body.Messages
	if len(msgs) == 0 || msgs[len(msgs)-1].Role != llm.RoleAssistant {
		s.track(ctx, "NoAssistantMessage", map[string]interface{}{"status_code": http.StatusBadRequest})
		s.errs.Handle(w, r, apperrors.NewInvalidRequestError("No bot messages found"))
		return
	}

	userID := userFrom(ctx)
	if len(msgs) > 1 && msgs[len(msgs)-2].Role == llm.RoleTool {
		if _, err := s.deps.History.CreateMessage(ctx, "", body.ConversationID, userID, msgs[len(msgs)-2]); err != nil {
			s.errs.Handle(w, r, historyError(err, body.ConversationID))
			return
		}
	}
	assistant := msgs[len(msgs)-1]
	messageID := assistant.ID
	if conversation.SharedResponseID(messageID) {
		messageID = ""
	}
	_, err := s.deps.History.CreateMessage(ctx, messageID, body.ConversationID, userID, assistant)
	if errors.Is(err, history.ErrMessageExists) {
		s.track(ctx, "DuplicateMessageId", map[string]interface{}{"message_id": messageID})
		_, err = s.deps.History.CreateMessage(ctx, "", body.ConversationID, userID, assistant)
	}
	if err != nil {
		s.errs.Handle(w, r, historyError(err, body.ConversationID))
		return
	}

	s.track(ctx, "ConversationHistoryUpdated", map[string]interface{}{"conversation_id": body.ConversationID})
	apperrors.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleMessageFeedback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req feedbackRequest
	if err := decodeBody(r, &req); err != nil {
		s.errs.Handle(w, r, err)
		return
	}
	if req.MessageID == "" {
		s.track(ctx, "MissingMessageId", map[string]interface{}{"status_code": http.StatusBadRequest})
		s.errs.Handle(w, r, apperrors.NewInvalidRequestError("message_id is required"))
		return
	}
	if req.MessageFeedback == "" {
		s.track(ctx, "MissingMessageFeedback", map[string]interface{}{"status_code": http.StatusBadRequest})
		s.errs.Handle(w, r, apperrors.NewInvalidRequestError("message_feedback is required"))
		return
	}
	if !s.historyReady(w, r) {
		return
	}

	_, err := s.deps.History.UpdateMessageFeedback(ctx, userFrom(ctx), req.MessageID, req.MessageFeedback)
	if errors.Is(err, history.ErrMessageNotFound) {
		s.track(ctx, "MessageNotFoundOrAccessDenied", map[string]interface{}{"message_id": req.MessageID})
		s.errs.Handle(w, r, apperrors.NewMessageNotFoundError(req.MessageID))
		return
	}
	if err != nil {
		s.errs.Handle(w, r, apperrors.NewHistoryUnavailableError(err))
		return
	}

	s.track(ctx, "MessageFeedbackUpdated", map[string]interface{}{
		"message_id":       req.MessageID,
		"message_feedback": req.MessageFeedback,
	})
	apperrors.WriteJSON(w, http.StatusOK, map[string]string{
		"message":    fmt.Sprintf("Successfully updated message with feedback %s", req.MessageFeedback),
		"message_id": req.MessageID,
	})
}

func (s *Server) handleClearMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := s.conversationRequest(w, r)
	if !ok {
		return
	}

	n, err := s.deps.History.DeleteMessages(ctx, userFrom(ctx), req.ConversationID)
	if err != nil {
		s.errs.Handle(w, r, historyError(err, req.ConversationID))
		return
	}

	s.track(ctx, "MessagesCleared", map[string]interface{}{
		"conversation_id": req.ConversationID,
		"deleted":         n,
	})
	apperrors.WriteJSON(w, http.StatusOK, map[string]string{
		"message":         "Successfully deleted messages in conversation",
		"conversation_id": req.ConversationID,
	})
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := s.conversationRequest(w, r)
	if !ok {
		return
	}

	userID := userFrom(ctx)
	if _, err := s.deps.History.DeleteMessages(ctx, userID, req.ConversationID); err != nil {
		s.errs.Handle(w, r, historyError(err, req.ConversationID))
		return
	}
	if err := s.deps.History.DeleteConversation(ctx, userID, req.ConversationID); err != nil {
		s.errs.Handle(w, r, historyError(err, req.ConversationID))
		return
	}

	s.track(ctx, "ConversationDeleted", map[string]interface{}{
		"user_id":         userID,
		"conversation_id": req.ConversationID,
	})
	apperrors.WriteJSON(w, http.StatusOK, map[string]string{
		"message":         "Successfully deleted conversation and messages",
		"conversation_id": req.ConversationID,
	})
}

func (s *Server) handleDeleteAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !s.historyReady(w, r) {
		return
	}

	userID := userFrom(ctx)
	conversations, err := s.deps.History.ListConversations(ctx, userID, 0, 0)
	if err != nil {
		s.errs.Handle(w, r, apperrors.NewHistoryUnavailableError(err))
		return
	}
	if len(conversations) == 0 {
		s.track(ctx, "NoConversationsToDelete", map[string]interface{}{"user_id": userID})
		s.errs.Handle(w, r, apperrors.NewResourceNotFoundError(fmt.Sprintf("No conversations for %s were found", userID)))
		return
	}

	for _, conv := range conversations {
		if _, err := s.deps.History.DeleteMessages(ctx, userID, conv.ID); err != nil {
			s.errs.Handle(w, r, historyError(err, conv.ID))
			return
		}
		if err := s.deps.History.DeleteConversation(ctx, userID, conv.ID); err != nil {
			s.errs.Handle(w, r, historyError(err, conv.ID))
			return
		}
	}

	s.track(ctx, "AllConversationsDeleted", map[string]interface{}{
		"user_id":       userID,
		"deleted_count": len(conversations),
	})
	apperrors.WriteJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Successfully deleted conversation and messages for user %s", userID),
	})
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	offset, err := strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	if !s.historyReady(w, r) {
		return
	}

	userID := userFrom(ctx)
	conversations, err := s.deps.History.ListConversations(ctx, userID, offset, historyPageSize)
	if err != nil {
		s.track(ctx, "NoConversationsFound", map[string]interface{}{"user_id": userID})
		s.errs.Handle(w, r, apperrors.NewHistoryUnavailableError(err))
		return
	}

	s.track(ctx, "ConversationsListed", map[string]interface{}{
		"user_id":            userID,
		"conversation_count": len(conversations),
	})
	apperrors.WriteJSON(w, http.StatusOK, conversations)
}

type readMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	Feedback  *string   `json:"feedback"`
}

func (s *Server) handleReadConversation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := s.conversationRequest(w, r)
	if !ok {
		return
	}

	userID := userFrom(ctx)
	if _, err := s.deps.History.GetConversation(ctx, userID, req.ConversationID); err != nil {
		if errors.Is(err, history.ErrConversationNotFound) {
			s.track(ctx, "ConversationNotFound", map[string]interface{}{"conversation_id": req.ConversationID})
		}
		s.errs.Handle(w, r, historyError(err, req.ConversationID))
		return
	}

	stored, err := s.deps.History.GetMessages(ctx, userID, req.ConversationID)
	if err != nil {
		s.errs.Handle(w, r, historyError(err, req.ConversationID))
		return
	}

	messages := make([]readMessage, 0, len(stored))
	for _, m := range stored {
		messages = append(messages, toReadMessage(m))
	}

	s.track(ctx, "ConversationRead", map[string]interface{}{
		"conversation_id": req.ConversationID,
		"message_count":   len(messages),
	})
	apperrors.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"conversation_id": req.ConversationID,
		"messages":        messages,
	})
}

func (s *Server) handleRenameConversation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := s.conversationRequest(w, r)
	if !ok {
		return
	}

	userID := userFrom(ctx)
	if _, err := s.deps.History.GetConversation(ctx, userID, req.ConversationID); err != nil {
		if errors.Is(err, history.ErrConversationNotFound) {
			s.track(ctx, "ConversationNotFoundForRename", map[string]interface{}{"conversation_id": req.ConversationID})
		}
		s.errs.Handle(w, r, historyError(err, req.ConversationID))
		return
	}

	if strings.TrimSpace(req.Title) == "" {
		s.track(ctx, "MissingTitle", map[string]interface{}{"conversation_id": req.ConversationID})
		s.errs.Handle(w, r, apperrors.NewInvalidRequestError("title is required"))
		return
	}

	updated, err := s.deps.History.RenameConversation(ctx, userID, req.ConversationID, req.Title)
	if err != nil {
		s.errs.Handle(w, r, historyError(err, req.ConversationID))
		return
	}

	s.track(ctx, "ConversationRenamed", map[string]interface{}{
		"conversation_id": req.ConversationID,
		"new_title":       req.Title,
	})
	apperrors.WriteJSON(w, http.StatusOK, updated)
}

func (s *Server) handleEnsure(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.deps.History == nil {
		apperrors.WriteJSON(w, http.StatusOK, map[string]string{
			"message": "Chat history disabled, answering through the enhancer pipeline",
		})
		return
	}

	if err := s.deps.History.Ensure(ctx); err != nil {
		s.track(ctx, "HistoryEnsureFailed", map[string]interface{}{"error": err.Error()})
		apperrors.WriteJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}

	s.track(ctx, "HistoryEnsureSuccess", map[string]interface{}{"status": "working"})
	apperrors.WriteJSON(w, http.StatusOK, map[string]string{"message": "Chat history is configured and working"})
}

// conversationRequest decodes a body that must name a conversation and checks history is configured.
func (s *Server) conversationRequest(w http.ResponseWriter, r *http.Request) (conversationIDRequest, bool) {
	var req conversationIDRequest
	if err := decodeBody(r, &req); err != nil {
		s.errs.Handle(w, r, err)
		return req, false
	}
	if req.ConversationID == "" {
		s.track(r.Context(), "MissingConversationId", map[string]interface{}{"path": r.URL.Path})
		s.errs.Handle(w, r, apperrors.NewInvalidRequestError("conversation_id is required"))
		return req, false
	}
	return req, s.historyReady(w, r)
}

func (s *Server) historyReady(w http.ResponseWriter, r *http.Request) bool {
	if s.deps.History == nil {
		s.track(r.Context(), "HistoryNotConfigured", nil)
		s.errs.Handle(w, r, apperrors.NewHistoryUnavailableError(errors.New("chat history is disabled")))
		return false
	}
	return true
}

func toModelMessages(msgs []models.ChatMessage) []llm.Message {
	out := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, llm.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

func toReadMessage(m models.Message) readMessage {
	out := readMessage{ID: m.ID, Role: m.Role, Content: m.Content, CreatedAt: m.CreatedAt}
	if m.Feedback != "" {
		feedback := m.Feedback
		out.Feedback = &feedback
	}
	return out
}
