// internal/models/chat.go
package models

// ChatMessage is a message as the chat client sends it.
type ChatMessage struct {
	ID       string `json:"id,omitempty"`
	Role     string `json:"role"`
	Content  string `json:"content"`
	Date     string `json:"date,omitempty"`
	Feedback string `json:"feedback,omitempty"`
}

// ResponseMessage is a message inside a chat completion choice.
type ResponseMessage struct {
	ID       string                 `json:"id"`
	Role     string                 `json:"role"`
	Content  string                 `json:"content"`
	Date     string                 `json:"date"`
	Feedback *string                `json:"feedback"`
	Context  map[string]interface{} `json:"context"`
}

type Choice struct {
	Index        int               `json:"index"`
	Messages     []ResponseMessage `json:"messages"`
	FinishReason string            `json:"finish_reason,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatCompletion is one response frame in the chat client's wire format.
type ChatCompletion struct {
	ID              string                 `json:"id"`
	Model           string                 `json:"model,omitempty"`
	Created         int64                  `json:"created,omitempty"`
	Object          string                 `json:"object,omitempty"`
	Choices         []Choice               `json:"choices"`
	Usage           *Usage                 `json:"usage,omitempty"`
	HistoryMetadata map[string]interface{} `json:"history_metadata"`
	APIMRequestID   string                 `json:"apim-request-id,omitempty"`
}

// DocumentTemplate is the structured outline produced in template mode.
type DocumentTemplate struct {
	Template []TemplateSection `json:"template"`
}

type TemplateSection struct {
	SectionTitle       string `json:"section_title"`
	SectionDescription string `json:"section_description"`
}
