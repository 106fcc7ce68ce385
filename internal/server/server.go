// Package server exposes the chat, history, section and scoring routes over chi.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"workout-insights/internal/common/config"
	apperrors "workout-insights/internal/common/errors"
	"workout-insights/internal/common/llm"
	"workout-insights/internal/common/logger"
	"workout-insights/internal/common/metrics"
	"workout-insights/internal/common/observability"
	"workout-insights/internal/conversation"
	"workout-insights/internal/history"
	"workout-insights/internal/pipeline"
	generatesection "workout-insights/internal/workers/ai-conversation/generate-section"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const principalHeader = "X-Ms-Client-Principal-Id"

type TitleGenerator interface {
	Execute(ctx context.Context, conversation []llm.Message) string
}

type SectionGenerator interface {
	Execute(ctx context.Context, title, description string) (*generatesection.Output, error)
}

// Deps are the collaborators behind the routes. History and Analyzer may be nil.
type Deps struct {
	Config        *config.Config
	Conversation  *conversation.Service
	History       history.Store
	Titles        TitleGenerator
	Sections      SectionGenerator
	Analyzer      pipeline.Analyzer
	Tracker       *observability.Tracker
	Observability *observability.Observability
	// Ready reports whether downstream stores answer. Nil means always ready.
	Ready  func(ctx context.Context) error
	Logger logger.Logger
}

type Server struct {
	deps   Deps
	errs   *apperrors.ErrorHandler
	logger logger.Logger
}

func New(deps Deps) *Server {
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Server{
		deps:   deps,
		errs:   apperrors.NewErrorHandler(log),
		logger: log,
	}
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestContext)

	r.Post("/conversation", s.handleConversation)
	r.Get("/frontend_settings", s.handleFrontendSettings)
	r.Post("/score", s.handleScore)
	r.Post("/section/generate", s.handleGenerateSection)

	r.Route("/history", func(r chi.Router) {
		r.Post("/generate", s.handleHistoryGenerate)
		r.Post("/update", s.handleHistoryUpdate)
		r.Post("/message_feedback", s.handleMessageFeedback)
		r.Post("/clear", s.handleClearMessages)
		r.Delete("/delete", s.handleDeleteConversation)
		r.Delete("/delete_all", s.handleDeleteAll)
		r.Get("/list", s.handleListConversations)
		r.Post("/read", s.handleReadConversation)
		r.Post("/rename", s.handleRenameConversation)
		r.Get("/ensure", s.handleEnsure)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		apperrors.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	r.Get("/ready", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// requestContext attaches the caller's user id and a request scoped logger.
func (s *Server) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		metrics.RequestsInFlight.Inc()
		defer metrics.RequestsInFlight.Dec()

		userID := s.userID(r)
		reqLog := s.logger.With(map[string]interface{}{
			"requestId": middleware.GetReqID(r.Context()),
			"userId":    userID,
			"path":      r.URL.Path,
		})
		ctx := logger.IntoContext(r.Context(), reqLog)
		ctx = context.WithValue(ctx, userKey{}, userID)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		duration := time.Since(start)
		s.deps.Observability.RecordRequestDuration(ctx, r.URL.Path, ww.Status(), duration)
		reqLog.Debug("request served", map[string]interface{}{
			"method":     r.Method,
			"status":     ww.Status(),
			"durationMs": duration.Milliseconds(),
		})
	})
}

type userKey struct{}

func (s *Server) userID(r *http.Request) string {
	if id := r.Header.Get(principalHeader); id != "" {
		return id
	}
	if s.deps.Config != nil {
		return s.deps.Config.Server.SampleUserID
	}
	return ""
}

func userFrom(ctx context.Context) string {
	id, _ := ctx.Value(userKey{}).(string)
	return id
}

func (s *Server) track(ctx context.Context, name string, props map[string]interface{}) {
	s.deps.Tracker.Track(ctx, name, props)
}

func (s *Server) log(r *http.Request) logger.Logger {
	return logger.FromContext(r.Context(), s.logger)
}

// decodeBody reads a JSON object body. Missing bodies decode to the zero value.
func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperrors.NewInvalidRequestError("request must be json")
	}
	return nil
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.deps.Ready(ctx); err != nil {
			apperrors.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
	}
	apperrors.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
