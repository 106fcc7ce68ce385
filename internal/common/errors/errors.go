// Package errors provides standardized error handling for the HTTP surface and pipeline stages.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInvalidRequest       ErrorCode = "INVALID_REQUEST"
	ErrCodeConfigurationMissing ErrorCode = "CONFIGURATION_MISSING"
	ErrCodeInternal             ErrorCode = "INTERNAL_ERROR"

	ErrCodeSchemaDiscoveryFailed ErrorCode = "SCHEMA_DISCOVERY_FAILED"
	ErrCodeQueryGenerationFailed ErrorCode = "QUERY_GENERATION_FAILED"
	ErrCodeQueryExecutionFailed  ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeDatabaseConnection    ErrorCode = "DATABASE_CONNECTION_FAILED"

	ErrCodeSearchQueryFailed ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeEmbeddingFailed   ErrorCode = "EMBEDDING_FAILED"
	ErrCodeIndexNotFound     ErrorCode = "INDEX_NOT_FOUND"

	ErrCodeLLMTimeout               ErrorCode = "LLM_TIMEOUT"
	ErrCodeLLMEnhancementFailed     ErrorCode = "LLM_ENHANCEMENT_FAILED"
	ErrCodeTemplateGenerationFailed ErrorCode = "TEMPLATE_GENERATION_FAILED"
	ErrCodeTemplateValidationFailed ErrorCode = "TEMPLATE_VALIDATION_FAILED"
	ErrCodePipelineUnavailable      ErrorCode = "PIPELINE_UNAVAILABLE"

	ErrCodeHistoryUnavailable   ErrorCode = "HISTORY_UNAVAILABLE"
	ErrCodeConversationNotFound ErrorCode = "CONVERSATION_NOT_FOUND"
	ErrCodeMessageNotFound      ErrorCode = "MESSAGE_NOT_FOUND"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata attaches a key/value pair and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. Error Constructors
// ==========================

// NewInvalidRequestError creates a client error whose message is returned verbatim.
func NewInvalidRequestError(message string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidRequest,
		Message:   message,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewConfigurationMissingError(setting string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConfigurationMissing,
		Message:   fmt.Sprintf("%s is not configured", setting),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnection,
		Message:   "Database connection failed",
		Details:   errString(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewLLMTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeLLMTimeout,
		Message:   "Language model request timed out",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewPipelineUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePipelineUnavailable,
		Message:   "Enhancer pipeline is unavailable",
		Details:   errString(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewHistoryUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeHistoryUnavailable,
		Message:   "Chat history is not available",
		Details:   errString(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewConversationNotFoundError keeps the user facing wording of the history API.
func NewConversationNotFoundError(conversationID string) *StandardError {
	return &StandardError{
		Code: ErrCodeConversationNotFound,
		Message: fmt.Sprintf(
			"Conversation %s was not found. It either does not exist or the logged in user does not have access to it.",
			conversationID,
		),
		Retryable: false,
		Metadata:  map[string]interface{}{"conversation_id": conversationID},
		Timestamp: time.Now().UTC(),
	}
}

func NewMessageNotFoundError(messageID string) *StandardError {
	return &StandardError{
		Code: ErrCodeMessageNotFound,
		Message: fmt.Sprintf(
			"Unable to update message %s. It either does not exist or the user does not have access to it.",
			messageID,
		),
		Retryable: false,
		Metadata:  map[string]interface{}{"message_id": messageID},
		Timestamp: time.Now().UTC(),
	}
}

// NewResourceNotFoundError creates a generic not found error with a caller supplied message.
func NewResourceNotFoundError(message string) *StandardError {
	return &StandardError{
		Code:      "RESOURCE_NOT_FOUND",
		Message:   message,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "EXTERNAL_SERVICE_ERROR",
		Message:   fmt.Sprintf("External service '%s' failed", service),
		Details:   errString(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ==========================
// 3. Utility Functions
// ==========================

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "TEMPLATE"):
		return "TEMPLATE"
	case strings.Contains(codeStr, "SCHEMA") || strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY_EXECUTION"):
		return "DATABASE"
	case strings.Contains(codeStr, "SEARCH") || strings.Contains(codeStr, "INDEX") || strings.Contains(codeStr, "EMBEDDING"):
		return "SEARCH"
	case strings.Contains(codeStr, "LLM") || strings.Contains(codeStr, "QUERY_GENERATION") || strings.Contains(codeStr, "PIPELINE"):
		return "AI"
	case strings.Contains(codeStr, "HISTORY") || strings.Contains(codeStr, "CONVERSATION") || strings.Contains(codeStr, "MESSAGE"):
		return "HISTORY"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "CONFIGURATION"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
