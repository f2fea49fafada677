package orch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"github.com/dkeye/medassist/internal/app"
	"github.com/dkeye/medassist/internal/core"
	"github.com/dkeye/medassist/internal/domain"
	"github.com/dkeye/medassist/internal/store"
)

// Assistant is the fire-and-forget LLM side channel. Both calls return false when the
// request was not queued; callbacks run on the assistant's goroutines.
type Assistant interface {
	Hints(transcript, medicalHistory string, reply func(string, error)) bool
	Summarize(transcript string, done func(string, error)) bool
}

const defaultPersistTimeout = 5 * time.Second

// Orchestrator turns signaling events into table updates and outbound frames. Handlers never
// return errors to the transport: failures are logged and, where the sender can act on them,
// answered with an error frame.
type Orchestrator struct {
	Registry    *app.Registry
	Rooms       *app.RoomManager
	Relay       *app.Relay
	Transcripts *app.Transcripts
	Policy      app.Policy

	Store          store.Store
	Assistant      Assistant
	PersistTimeout time.Duration

	bg conc.WaitGroup
}

func New(reg *app.Registry, rooms *app.RoomManager, policy app.Policy) *Orchestrator {
	return &Orchestrator{
		Registry:    reg,
		Rooms:       rooms,
		Relay:       &app.Relay{Rooms: rooms},
		Transcripts: &app.Transcripts{Rooms: rooms},
		Policy:      policy,
	}
}

// Wait blocks until background persistence has finished.
func (o *Orchestrator) Wait() { o.bg.Wait() }

func (o *Orchestrator) Connect(id domain.ConnID, conn core.SignalConnection, cancel context.CancelFunc) {
	o.Registry.Bind(id, conn, cancel)
	o.send(id, connected{envelope: envelope{"connected"}, ConnectionID: id})
}

// Disconnect runs when the transport is gone: the patient becomes unreachable and any room the
// connection sat in is torn down.
func (o *Orchestrator) Disconnect(id domain.ConnID) {
	o.Registry.Unregister(id)
	if td, ok := o.Rooms.Leave(id); ok {
		o.announce(td, store.ReasonDisconnect)
	}
	o.Registry.Unbind(id)
	log.Info().Str("module", "orch").Str("conn", string(id)).Msg("disconnected")
}

// Fail sends an error frame with code to id.
func (o *Orchestrator) Fail(id domain.ConnID, code string) {
	o.send(id, errorMsg{envelope: envelope{"error"}, Error: code})
}

func (o *Orchestrator) Pong(id domain.ConnID) {
	o.send(id, envelope{"pong"})
}

func (o *Orchestrator) send(id domain.ConnID, m message) {
	conn, ok := o.Registry.Conn(id)
	if !ok {
		log.Debug().Str("module", "orch").Str("conn", string(id)).Str("event", m.eventType()).Msg("send to unknown connection")
		return
	}
	b, err := json.Marshal(m)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("event", m.eventType()).Msg("marshal")
		return
	}
	if err := conn.TrySend(b); err != nil {
		o.backpressure(id, conn, m.eventType(), err)
	}
}

func (o *Orchestrator) sendAll(to []domain.Participant, m message) {
	for _, p := range to {
		o.send(p.Conn, m)
	}
}

func (o *Orchestrator) backpressure(id domain.ConnID, conn core.SignalConnection, event string, err error) {
	logger := log.Warn().Err(err).Str("module", "orch").Str("conn", string(id)).Str("event", event)
	if o.Policy == nil {
		logger.Msg("frame dropped")
		return
	}
	switch o.Policy.OnBackPressure(event, id) {
	case app.KickMember:
		logger.Msg("kicking slow connection")
		if !o.Registry.Cancel(id) {
			conn.Close()
		}
	case app.DropFrame, app.NoAction:
		logger.Msg("frame dropped")
	}
}
