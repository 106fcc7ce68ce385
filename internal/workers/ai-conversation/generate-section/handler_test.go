package generatesection

import (
	"context"
	"errors"
	"testing"

	"workout-insights/internal/common/config"
	"workout-insights/internal/common/llm"
	"workout-insights/internal/common/llm/llmtest"
	"workout-insights/internal/common/logger"
	"workout-insights/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAnalyzer struct {
	mock.Mock
}

func (m *mockAnalyzer) Analyze(ctx context.Context, req models.PipelineRequest) (*models.PipelineResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*models.PipelineResponse)
	return resp, args.Error(1)
}

func newConfig() *Config {
	return LoadConfig(config.LLMConfig{
		Prompts: config.PromptsConfig{
			SystemMessage:          "base system",
			GenerateSectionContent: "Write the section.",
		},
	})
}

func TestHandler_Execute_Pipeline(t *testing.T) {
	analyzer := &mockAnalyzer{}
	analyzer.On("Analyze", mock.Anything, models.PipelineRequest{
		Query: "Generate detailed content for a Progress section. Requirements: Weekly trends",
	}).Return(&models.PipelineResponse{
		EnhancedResult: models.EnhancedAnalysis{Status: models.StatusSuccess, EnhancedAnalysis: "Volume up 10%"},
	}, nil)

	provider := &llmtest.MockProvider{}
	var req llm.Request
	provider.On("Complete", mock.Anything, llmtest.WithSystem(formatSystemPrompt)).
		Run(func(args mock.Arguments) { req = args.Get(1).(llm.Request) }).
		Return("Your weekly volume rose 10%.", nil)

	h := NewHandler(newConfig(), analyzer, provider, logger.NewTestLogger(t))
	out, err := h.Execute(context.Background(), "Progress", "Weekly trends")
	require.NoError(t, err)
	assert.Equal(t, SourcePipeline, out.Source)
	assert.Equal(t, "Your weekly volume rose 10%.", out.Content)

	assert.Equal(t, 800, req.MaxTokens)
	assert.Equal(t, float32(0.7), req.Temperature)
	assert.Contains(t, req.Messages[1].Content, "Section Title: Progress\nSection Requirements: Weekly trends\n\nBased on this workout data analysis:\nVolume up 10%")
	analyzer.AssertExpectations(t)
}

func TestHandler_Execute_FallsBackToDirect(t *testing.T) {
	analyzer := &mockAnalyzer{}
	analyzer.On("Analyze", mock.Anything, mock.Anything).Return(nil, errors.New("pipeline down"))

	provider := &llmtest.MockProvider{}
	var req llm.Request
	provider.On("Complete", mock.Anything, llmtest.WithSystem("base system")).
		Run(func(args mock.Arguments) { req = args.Get(1).(llm.Request) }).
		Return("Direct content", nil)

	h := NewHandler(newConfig(), analyzer, provider, logger.NewTestLogger(t))
	out, err := h.Execute(context.Background(), "Goals", "Next month")
	require.NoError(t, err)
	assert.Equal(t, SourceDirect, out.Source)
	assert.Equal(t, "Direct content", out.Content)
	assert.Contains(t, req.Messages[1].Content, "Write the section.\n    Section Title: Goals\n    Section Description: Next month")
}

func TestHandler_Execute_NoAnalyzer(t *testing.T) {
	provider := &llmtest.MockProvider{}
	provider.On("Complete", mock.Anything, llmtest.WithSystem("base system")).Return("", errors.New("quota exceeded")).Once()

	h := NewHandler(newConfig(), nil, provider, logger.NewTestLogger(t))
	out, err := h.Execute(context.Background(), "Goals", "Next month")
	assert.Nil(t, out)
	assert.ErrorIs(t, err, ErrSectionGenerationFailed)
	provider.AssertExpectations(t)
}
