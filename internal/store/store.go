// Package store persists finished consultations.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/medassist/internal/domain"
)

var ErrNotFound = errors.New("consultation not found")

// EndReason records which terminal transition ended a call.
type EndReason string

const (
	ReasonEndCall    EndReason = "end-call"
	ReasonLeft       EndReason = "left"
	ReasonDisconnect EndReason = "disconnect"
	ReasonEvicted    EndReason = "evicted"
)

type Consultation struct {
	ID            int64             `json:"id"`
	AppointmentID domain.ExternalID `json:"appointmentId"`
	RoomID        domain.RoomID     `json:"roomId"`
	Transcript    string            `json:"transcript"`
	EndReason     EndReason         `json:"endReason"`
	EndedAt       time.Time         `json:"endedAt"`
	Summary       string            `json:"summary,omitempty"`
}

type Store interface {
	// SaveConsultation inserts c and returns its id.
	SaveConsultation(ctx context.Context, c Consultation) (int64, error)
	SetSummary(ctx context.Context, id int64, summary string) error
	// GetConsultation returns the latest consultation for an appointment.
	GetConsultation(ctx context.Context, appointment domain.ExternalID) (Consultation, error)
	Close() error
}

// Open picks a Store by driver name: "postgres", "sqlite", or "memory" (also the empty string).
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "", "memory":
		return NewMemory(), nil
	case "postgres", "sqlite":
		return OpenSQL(ctx, driver, dsn)
	}
	return nil, fmt.Errorf("store: unknown driver %q", driver)
}
