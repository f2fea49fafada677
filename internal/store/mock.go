package store

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dkeye/medassist/internal/domain"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) SaveConsultation(ctx context.Context, c Consultation) (int64, error) {
	args := m.Called(ctx, c)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) SetSummary(ctx context.Context, id int64, summary string) error {
	args := m.Called(ctx, id, summary)
	return args.Error(0)
}

func (m *MockStore) GetConsultation(ctx context.Context, appointment domain.ExternalID) (Consultation, error) {
	args := m.Called(ctx, appointment)
	return args.Get(0).(Consultation), args.Error(1)
}

func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
