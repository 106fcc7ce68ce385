package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"workout-insights/internal/common/config"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// Gemini talks to Google's generative language API.
type Gemini struct {
	client         *genai.Client
	chatModel      string
	embeddingModel string
}

func NewGemini(ctx context.Context, cfg config.LLMConfig) (*Gemini, error) {
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Gemini{client: client, chatModel: cfg.ChatDeployment, embeddingModel: cfg.EmbeddingDeployment}, nil
}

func (g *Gemini) Close() error {
	return g.client.Close()
}

// session splits req into a configured chat session and the final turn to send.
func (g *Gemini) session(req Request) (*genai.ChatSession, []genai.Part, error) {
	model := g.client.GenerativeModel(g.chatModel)
	temp := req.Temperature
	model.GenerationConfig = genai.GenerationConfig{Temperature: &temp}
	if req.MaxTokens > 0 {
		maxTokens := int32(req.MaxTokens)
		model.GenerationConfig.MaxOutputTokens = &maxTokens
	}

	system, history := toGeminiContents(req.Messages)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	if len(history) == 0 {
		return nil, nil, errors.New("gemini request has no user turn")
	}

	last := history[len(history)-1]
	cs := model.StartChat()
	cs.History = history[:len(history)-1]
	return cs, last.Parts, nil
}

// toGeminiContents folds system messages into one instruction and maps the rest onto user/model turns.
func toGeminiContents(messages []Message) (string, []*genai.Content) {
	var system []string
	var history []*genai.Content
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
			continue
		case RoleAssistant:
			history = append(history, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(m.Content)}})
		case RoleTool:
			// tool output has no gemini turn of its own
			continue
		default:
			history = append(history, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(m.Content)}})
		}
	}
	return strings.Join(system, "\n\n"), history
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return b.String()
}

func (g *Gemini) Complete(ctx context.Context, req Request) (string, error) {
	cs, parts, err := g.session(req)
	if err != nil {
		return "", err
	}
	resp, err := cs.SendMessage(ctx, parts...)
	if err != nil {
		return "", wrapCallError(err)
	}
	text := responseText(resp)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (g *Gemini) Stream(ctx context.Context, req Request, onDelta func(delta string) error) error {
	cs, parts, err := g.session(req)
	if err != nil {
		return err
	}
	iter := cs.SendMessageStream(ctx, parts...)
	for {
		resp, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return wrapCallError(err)
		}
		if text := responseText(resp); text != "" {
			if err := onDelta(text); err != nil {
				return err
			}
		}
	}
}

func (g *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := g.client.EmbeddingModel(g.embeddingModel).EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, wrapCallError(err)
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("%w: no embedding data received from gemini", ErrEmptyResponse)
	}
	return res.Embedding.Values, nil
}
