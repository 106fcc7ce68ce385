// internal/server/chat.go
package server

import (
	"errors"
	"mime"
	"net/http"

	apperrors "workout-insights/internal/common/errors"
	"workout-insights/internal/conversation"
	"workout-insights/internal/models"
	"workout-insights/internal/pipeline"
	generatesection "workout-insights/internal/workers/ai-conversation/generate-section"
)

func isJSON(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	if !isJSON(r) {
		s.track(r.Context(), "InvalidRequestFormat", map[string]interface{}{
			"status_code": http.StatusUnsupportedMediaType,
			"detail":      "Request must be JSON",
		})
		apperrors.WriteJSON(w, http.StatusUnsupportedMediaType, map[string]string{"error": "request must be json"})
		return
	}

	req, err := conversation.Decode(r.Body)
	if err != nil {
		s.errs.Handle(w, r, apperrors.NewInvalidRequestError("request must be json"))
		return
	}
	s.runConversation(w, r, req)
}

// runConversation answers req and writes the reply as JSON or as a frame stream.
func (s *Server) runConversation(w http.ResponseWriter, r *http.Request, req conversation.Request) {
	reply, err := s.deps.Conversation.Handle(r.Context(), req)
	if err != nil {
		s.errs.Handle(w, r, err)
		return
	}
	if err := reply.Write(r.Context(), w); err != nil {
		s.log(r).Warn("reply stream interrupted", map[string]interface{}{"error": err.Error()})
	}
}

func (s *Server) handleFrontendSettings(w http.ResponseWriter, r *http.Request) {
	feedback := s.deps.History != nil && s.deps.Config != nil && s.deps.Config.ChatHistory.Feedback
	settings := map[string]interface{}{
		"auth_enabled":     false,
		"feedback_enabled": feedback,
		"sanitize_answer":  false,
	}
	if s.deps.Config != nil {
		settings["ui"] = s.deps.Config.UI
		settings["sanitize_answer"] = s.deps.Config.UI.SanitizeReply
	}
	apperrors.WriteJSON(w, http.StatusOK, settings)
}

// handleScore runs the enhancer pipeline directly.
func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	if s.deps.Analyzer == nil {
		s.errs.Handle(w, r, apperrors.NewPipelineUnavailableError(errors.New("pipeline is disabled")))
		return
	}

	var req models.PipelineRequest
	if err := decodeBody(r, &req); err != nil {
		s.errs.Handle(w, r, err)
		return
	}
	if req.Query == "" {
		s.errs.Handle(w, r, apperrors.NewInvalidRequestError("query is required"))
		return
	}

	resp, err := s.deps.Analyzer.Analyze(r.Context(), req)
	if err != nil {
		if errors.Is(err, pipeline.ErrInvalidRequest) {
			s.errs.Handle(w, r, apperrors.NewInvalidRequestError(err.Error()))
			return
		}
		s.errs.Handle(w, r, apperrors.NewPipelineUnavailableError(err))
		return
	}
	apperrors.WriteJSON(w, http.StatusOK, resp)
}

type sectionRequest struct {
	SectionTitle       *string `json:"sectionTitle"`
	SectionDescription *string `json:"sectionDescription"`
}

func (s *Server) handleGenerateSection(w http.ResponseWriter, r *http.Request) {
	var req sectionRequest
	if err := decodeBody(r, &req); err != nil {
		s.errs.Handle(w, r, err)
		return
	}
	if req.SectionTitle == nil {
		s.track(r.Context(), "GenerateSectionFailed", map[string]interface{}{"error": "sectionTitle missing"})
		s.errs.Handle(w, r, apperrors.NewInvalidRequestError("sectionTitle is required"))
		return
	}
	if req.SectionDescription == nil {
		s.track(r.Context(), "GenerateSectionFailed", map[string]interface{}{"error": "sectionDescription missing"})
		s.errs.Handle(w, r, apperrors.NewInvalidRequestError("sectionDescription is required"))
		return
	}

	out, err := s.deps.Sections.Execute(r.Context(), *req.SectionTitle, *req.SectionDescription)
	if err != nil {
		s.track(r.Context(), "GenerateSectionFailed", map[string]interface{}{"error": err.Error()})
		s.errs.Handle(w, r, apperrors.NewExternalServiceError("llm", err))
		return
	}

	event := "SectionContentGenerated"
	if out.Source == generatesection.SourcePipeline {
		event = "PipelineSectionGenerated"
	}
	s.track(r.Context(), event, map[string]interface{}{
		"sectionTitle":  *req.SectionTitle,
		"contentLength": len(out.Content),
	})
	apperrors.WriteJSON(w, http.StatusOK, map[string]string{"section_content": out.Content})
}
