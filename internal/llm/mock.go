package llm

import (
	"context"

	"github.com/voxgate/voxgate/internal/domain"
)

// MockClient is a test double for Client.
type MockClient struct {
	CompleteFunc func(ctx context.Context, history []domain.Message) (string, error)
	ExtractFunc  func(ctx context.Context, transcript string) (*ExtractResult, error)
}

func (m *MockClient) Complete(ctx context.Context, history []domain.Message) (string, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, history)
	}
	return "mock reply", nil
}

func (m *MockClient) Extract(ctx context.Context, transcript string) (*ExtractResult, error) {
	if m.ExtractFunc != nil {
		return m.ExtractFunc(ctx, transcript)
	}
	return &ExtractResult{}, nil
}
