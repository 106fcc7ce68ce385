// internal/conversation/service.go
package conversation

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	apperrors "workout-insights/internal/common/errors"
	"workout-insights/internal/common/llm"
	"workout-insights/internal/common/logger"
	"workout-insights/internal/common/observability"
	"workout-insights/internal/models"
	"workout-insights/internal/pipeline"
	generatetemplate "workout-insights/internal/workers/ai-conversation/generate-template"

	"github.com/google/uuid"
)

const (
	pipelineResponseID = "promptflow-response"
	templateResponseID = "template-response"
	templateModel      = "template-generator"
	templateRequestID  = "template-request"
)

// SharedResponseID reports whether id is one of the fixed ids every pipeline or
// template reply carries. Such ids do not identify a single message.
func SharedResponseID(id string) bool {
	return id == pipelineResponseID || id == templateResponseID
}

// TemplateGenerator produces a document template from a user request and pipeline insights.
type TemplateGenerator interface {
	Execute(ctx context.Context, userMessage, insights string) (*generatetemplate.Output, error)
}

type Options struct {
	Stream                bool
	Model                 string
	SystemMessage         string
	TemplateSystemMessage string
	Temperature           float32
	MaxTokens             int
}

// Reply is either a plain JSON completion or a frame stream.
type Reply struct {
	Completion *models.ChatCompletion
	Frames     FrameProducer
}

// Write sends the reply as JSON or as newline-delimited frames.
func (r *Reply) Write(ctx context.Context, w http.ResponseWriter) error {
	if r.Frames != nil {
		return WriteFrames(ctx, w, r.Frames)
	}
	apperrors.WriteJSON(w, http.StatusOK, r.Completion)
	return nil
}

type Service struct {
	analyzer  pipeline.Analyzer
	templates TemplateGenerator
	model     llm.Client
	tracker   *observability.Tracker
	opts      Options
	logger    logger.Logger
	now       func() time.Time
}

// NewService wires the conversation flow. A nil analyzer sends every request to the model.
func NewService(analyzer pipeline.Analyzer, templates TemplateGenerator, model llm.Client, tracker *observability.Tracker, opts Options, log logger.Logger) *Service {
	return &Service{
		analyzer:  analyzer,
		templates: templates,
		model:     model,
		tracker:   tracker,
		opts:      opts,
		logger:    log.With(map[string]interface{}{"component": "conversation"}),
		now:       time.Now,
	}
}

// PipelineEnabled reports whether requests go through the enhancer pipeline first.
func (s *Service) PipelineEnabled() bool { return s.analyzer != nil }

// Handle answers one chat request. Pipeline failures fall back to a direct model call.
func (s *Service) Handle(ctx context.Context, req Request) (*Reply, error) {
	log := logger.FromContext(ctx, s.logger)

	if s.analyzer != nil {
		reply, err := s.viaPipeline(ctx, req)
		if err == nil {
			return reply, nil
		}
		log.Warn("pipeline failed, falling back to the model", map[string]interface{}{
			"chatType": req.Kind(),
			"error":    err.Error(),
		})
	}
	return s.direct(ctx, req)
}

func (s *Service) viaPipeline(ctx context.Context, req Request) (*Reply, error) {
	env := req.Envelope()
	userMessage := env.UserMessage()
	s.tracker.Track(ctx, "PipelineRequestReceived", map[string]interface{}{"chat_type": req.Kind()})

	resp, err := s.analyzer.Analyze(ctx, env.PipelineRequest())
	if err != nil {
		return nil, err
	}
	analysis := resp.EnhancedResult.Text()

	switch req.(type) {
	case *TemplateRequest:
		completion := s.templateCompletion(ctx, userMessage, analysis, env.HistoryMetadata)
		s.tracker.Track(ctx, "PipelineResponseFormatted", map[string]interface{}{
			"result_length": len(completion.Choices[0].Messages[0].Content),
			"chat_type":     req.Kind(),
		})
		return &Reply{Completion: completion}, nil
	default:
		completion := s.analysisCompletion(userMessage, analysis, env.HistoryMetadata)
		s.tracker.Track(ctx, "PipelineResponseFormatted", map[string]interface{}{
			"result_length": len(analysis),
			"chat_type":     req.Kind(),
		})
		if s.opts.Stream {
			return &Reply{Frames: SingleFrame{Completion: *completion}}, nil
		}
		return &Reply{Completion: completion}, nil
	}
}

// templateCompletion runs the second stage. On failure the first stage analysis is returned instead.
func (s *Service) templateCompletion(ctx context.Context, userMessage, insights string, metadata map[string]interface{}) *models.ChatCompletion {
	out, err := s.templates.Execute(ctx, userMessage, insights)
	if err != nil {
		s.tracker.Track(ctx, "TemplateGenerationFallback", map[string]interface{}{"error": err.Error()})
		return s.analysisCompletion(userMessage, insights, metadata)
	}

	s.tracker.Track(ctx, "TemplateGenerated", map[string]interface{}{
		"promptflow_insights_length": len(insights),
		"template_sections":          len(out.Template.Template),
		"user_message":               truncate(userMessage, 100),
	})

	return &models.ChatCompletion{
		ID:      templateResponseID,
		Model:   templateModel,
		Created: s.now().Unix(),
		Object:  "chat.completion",
		Choices: []models.Choice{{
			Messages: []models.ResponseMessage{assistantMessage(templateResponseID, out.Content, "")},
		}},
		Usage:           usage(userMessage, out.Completion),
		HistoryMetadata: map[string]interface{}{},
		APIMRequestID:   templateRequestID,
	}
}

func (s *Service) analysisCompletion(userMessage, content string, metadata map[string]interface{}) *models.ChatCompletion {
	return &models.ChatCompletion{
		ID:      pipelineResponseID,
		Created: s.now().Unix(),
		Object:  "chat.completion",
		Choices: []models.Choice{{
			Index:        0,
			Messages:     []models.ResponseMessage{assistantMessage(pipelineResponseID, content, "")},
			FinishReason: finishReasonStop,
		}},
		Usage:           usage(userMessage, content),
		HistoryMetadata: metadata,
	}
}

func (s *Service) direct(ctx context.Context, req Request) (*Reply, error) {
	env := req.Envelope()
	_, browse := req.(*BrowseRequest)

	s.tracker.Track(ctx, "ConversationRequestReceived", map[string]interface{}{
		"chat_type":         req.Kind(),
		"streaming_enabled": s.opts.Stream,
	})

	system := s.opts.SystemMessage
	if !browse {
		system = s.opts.TemplateSystemMessage
	}
	modelReq := llm.Request{
		Messages:    env.ModelMessages(system),
		Temperature: s.opts.Temperature,
		MaxTokens:   s.opts.MaxTokens,
	}
	id := uuid.NewString()

	if s.opts.Stream && browse {
		if streamer, ok := s.model.(llm.Streamer); ok {
			s.tracker.Track(ctx, "ConversationStreamResponsePrepared", map[string]interface{}{"id": id})
			return &Reply{Frames: DeltaFrames{
				Streamer:        streamer,
				Request:         modelReq,
				ID:              id,
				HistoryMetadata: env.HistoryMetadata,
			}}, nil
		}
	}

	content, err := s.model.Complete(ctx, modelReq)
	if err != nil {
		if errors.Is(err, llm.ErrTimeout) {
			return nil, apperrors.NewLLMTimeoutError()
		}
		return nil, apperrors.NewExternalServiceError("llm", err)
	}

	completion := &models.ChatCompletion{
		ID:      id,
		Model:   s.opts.Model,
		Created: s.now().Unix(),
		Object:  "chat.completion",
		Choices: []models.Choice{{
			Index:        0,
			Messages:     []models.ResponseMessage{assistantMessage(id, content, s.now().UTC().Format(time.RFC3339))},
			FinishReason: finishReasonStop,
		}},
		Usage:           usage(env.LastUserMessage(), content),
		HistoryMetadata: env.HistoryMetadata,
	}

	if s.opts.Stream && browse {
		s.tracker.Track(ctx, "ConversationStreamResponsePrepared", map[string]interface{}{"id": id})
		return &Reply{Frames: SingleFrame{Completion: *completion}}, nil
	}
	s.tracker.Track(ctx, "ConversationCompleteResponsePrepared", map[string]interface{}{"id": id})
	return &Reply{Completion: completion}, nil
}

func assistantMessage(id, content, date string) models.ResponseMessage {
	return models.ResponseMessage{
		ID:      id,
		Role:    llm.RoleAssistant,
		Content: content,
		Date:    date,
		Context: map[string]interface{}{},
	}
}

// usage counts whitespace separated words, not model tokens.
func usage(prompt, completion string) *models.Usage {
	p, c := len(strings.Fields(prompt)), len(strings.Fields(completion))
	return &models.Usage{PromptTokens: p, CompletionTokens: c, TotalTokens: p + c}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
