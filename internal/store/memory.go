package store

import (
	"context"
	"sync"

	"github.com/dkeye/medassist/internal/domain"
)

// Memory is a Store for development and tests. Contents die with the process.
type Memory struct {
	mu   sync.RWMutex
	rows []Consultation
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) SaveConsultation(_ context.Context, c Consultation) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = int64(len(m.rows) + 1)
	m.rows = append(m.rows, c)
	return c.ID, nil
}

func (m *Memory) SetSummary(_ context.Context, id int64, summary string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id < 1 || id > int64(len(m.rows)) {
		return ErrNotFound
	}
	m.rows[id-1].Summary = summary
	return nil
}

func (m *Memory) GetConsultation(_ context.Context, appointment domain.ExternalID) (Consultation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.rows) - 1; i >= 0; i-- {
		if m.rows[i].AppointmentID == appointment {
			return m.rows[i], nil
		}
	}
	return Consultation{}, ErrNotFound
}

func (m *Memory) Close() error { return nil }
