// Package llmtest provides a testify mock of the llm.Provider interface.
package llmtest

import (
	"context"

	"workout-insights/internal/common/llm"

	"github.com/stretchr/testify/mock"
)

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Complete(ctx context.Context, req llm.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// Stream replays the []string returned by the expectation as deltas.
func (m *MockProvider) Stream(ctx context.Context, req llm.Request, onDelta func(string) error) error {
	args := m.Called(ctx, req)
	if deltas, ok := args.Get(0).([]string); ok {
		for _, d := range deltas {
			if err := onDelta(d); err != nil {
				return err
			}
		}
	}
	return args.Error(1)
}

func (m *MockProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	vec, _ := args.Get(0).([]float32)
	return vec, args.Error(1)
}

// WithSystem matches a request whose first message is the given system prompt.
func WithSystem(system string) interface{} {
	return mock.MatchedBy(func(req llm.Request) bool {
		return len(req.Messages) > 0 && req.Messages[0].Role == llm.RoleSystem && req.Messages[0].Content == system
	})
}
