package llm

import (
	"context"
	"errors"
	"fmt"
	"io"

	"workout-insights/internal/common/config"
	commonhttp "workout-insights/internal/common/http"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAI serves both api.openai.com style endpoints and Azure OpenAI deployments.
type OpenAI struct {
	client         *openai.Client
	chatModel      string
	embeddingModel string
}

func NewOpenAI(cfg config.LLMConfig, httpClient *commonhttp.Client) *OpenAI {
	var clientCfg openai.ClientConfig
	if cfg.Provider == "azure" {
		clientCfg = openai.DefaultAzureConfig(cfg.APIKey, cfg.Endpoint)
		clientCfg.APIVersion = cfg.APIVersion
		// deployments are addressed by their configured name as is
		clientCfg.AzureModelMapperFunc = func(model string) string { return model }
	} else {
		clientCfg = openai.DefaultConfig(cfg.APIKey)
		if cfg.Endpoint != "" {
			clientCfg.BaseURL = cfg.Endpoint
		}
	}
	if httpClient != nil {
		clientCfg.HTTPClient = httpClient.Standard()
	}

	return &OpenAI{
		client:         openai.NewClientWithConfig(clientCfg),
		chatModel:      cfg.ChatDeployment,
		embeddingModel: cfg.EmbeddingDeployment,
	}
}

func (o *OpenAI) chatRequest(req Request) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return openai.ChatCompletionRequest{
		Model:       o.chatModel,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
}

func (o *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, o.chatRequest(req))
	if err != nil {
		return "", wrapCallError(err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

func (o *OpenAI) Stream(ctx context.Context, req Request, onDelta func(delta string) error) error {
	chatReq := o.chatRequest(req)
	chatReq.Stream = true

	stream, err := o.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return wrapCallError(err)
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return wrapCallError(err)
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
			continue
		}
		if err := onDelta(resp.Choices[0].Delta.Content); err != nil {
			return err
		}
	}
}

func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(o.embeddingModel),
		Input: []string{text},
	})
	if err != nil {
		return nil, wrapCallError(err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: no embedding data", ErrEmptyResponse)
	}
	return resp.Data[0].Embedding, nil
}
