package llm

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockClient struct {
	mock.Mock
}

func (m *MockClient) Hints(ctx context.Context, transcript, medicalHistory string) (string, error) {
	args := m.Called(ctx, transcript, medicalHistory)
	return args.String(0), args.Error(1)
}

func (m *MockClient) Summarize(ctx context.Context, transcript string) (string, error) {
	args := m.Called(ctx, transcript)
	return args.String(0), args.Error(1)
}
