// internal/common/errors/handler.go
package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"time"
)

// ErrorHandler writes errors as JSON responses with a status derived from the error code.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle normalizes err, logs it and writes {"error": message}.
func (h *ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	stdErr := Normalize(err)
	status := HTTPStatus(stdErr.Code)

	fields := map[string]interface{}{
		"errorCode":     string(stdErr.Code),
		"errorCategory": GetErrorCategory(stdErr.Code),
		"status":        status,
		"details":       stdErr.Details,
	}
	if r != nil {
		fields["path"] = r.URL.Path
		fields["method"] = r.Method
	}
	for k, v := range stdErr.Metadata {
		fields[k] = v
	}

	if h.logger != nil {
		if status >= http.StatusInternalServerError {
			h.logger.Error(stdErr.Message, fields)
		} else {
			h.logger.Warn(stdErr.Message, fields)
		}
	}

	WriteJSON(w, status, map[string]string{"error": stdErr.Message})
}

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   errString(err),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// HTTPStatus maps an error code onto the response status.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidRequest, ErrCodeTemplateValidationFailed:
		return http.StatusBadRequest
	case ErrCodeConversationNotFound, ErrCodeMessageNotFound, ErrCodeIndexNotFound, "RESOURCE_NOT_FOUND":
		return http.StatusNotFound
	case ErrCodeLLMTimeout:
		return http.StatusGatewayTimeout
	case ErrCodePipelineUnavailable, "EXTERNAL_SERVICE_ERROR":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON encodes body with the given status.
func WriteJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
