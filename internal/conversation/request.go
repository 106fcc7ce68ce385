// Package conversation turns a chat request into a chat-completion reply, routing
// browse and template requests through the enhancer pipeline or the model.
package conversation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"workout-insights/internal/common/llm"
	"workout-insights/internal/models"
)

var ErrInvalidRequest = errors.New("INVALID_REQUEST")

const chatTypeTemplate = "template"

// Envelope is the request body shared by both request kinds.
type Envelope struct {
	ConversationID    string                  `json:"conversation_id,omitempty"`
	Messages          []models.ChatMessage    `json:"messages"`
	ChatType          string                  `json:"chat_type,omitempty"`
	PromptflowRequest *models.PipelineRequest `json:"promptflow_request,omitempty"`
	HistoryMetadata   map[string]interface{}  `json:"history_metadata,omitempty"`
}

// Request is either a BrowseRequest or a TemplateRequest.
type Request interface {
	Envelope() *Envelope
	Kind() string
	sealed()
}

type BrowseRequest struct{ body Envelope }

type TemplateRequest struct{ body Envelope }

func (r *BrowseRequest) Envelope() *Envelope { return &r.body }
func (r *BrowseRequest) Kind() string        { return "browse" }
func (r *BrowseRequest) sealed()             {}

func (r *TemplateRequest) Envelope() *Envelope { return &r.body }
func (r *TemplateRequest) Kind() string        { return chatTypeTemplate }
func (r *TemplateRequest) sealed()             {}

// Decode reads one chat request. Any chat_type other than "template" is browse.
func Decode(r io.Reader) (Request, error) {
	var body Envelope
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return FromEnvelope(body), nil
}

func FromEnvelope(body Envelope) Request {
	if body.HistoryMetadata == nil {
		body.HistoryMetadata = map[string]interface{}{}
	}
	if body.ChatType == chatTypeTemplate {
		return &TemplateRequest{body: body}
	}
	return &BrowseRequest{body: body}
}

// UserMessage is the content of the first user message, or "".
func (e *Envelope) UserMessage() string {
	for _, m := range e.Messages {
		if m.Role == llm.RoleUser {
			return m.Content
		}
	}
	return ""
}

// LastUserMessage is the content of the most recent user message, or "".
func (e *Envelope) LastUserMessage() string {
	for i := len(e.Messages) - 1; i >= 0; i-- {
		if e.Messages[i].Role == llm.RoleUser {
			return e.Messages[i].Content
		}
	}
	return ""
}

// PipelineRequest is the pipeline call for this request. The query defaults to the user message.
func (e *Envelope) PipelineRequest() models.PipelineRequest {
	var req models.PipelineRequest
	if e.PromptflowRequest != nil {
		req = *e.PromptflowRequest
	}
	if req.Query == "" {
		req.Query = e.UserMessage()
	}
	return req
}

// ModelMessages converts the conversation for the model, dropping tool messages.
func (e *Envelope) ModelMessages(system string) []llm.Message {
	out := make([]llm.Message, 0, len(e.Messages)+1)
	out = append(out, llm.Message{Role: llm.RoleSystem, Content: system})
	for _, m := range e.Messages {
		if m.Role == llm.RoleTool || m.Role == "" {
			continue
		}
		out = append(out, llm.Message{Role: m.Role, Content: m.Content})
	}
	return out
}
