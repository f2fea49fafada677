package orch

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/medassist/internal/app"
	"github.com/dkeye/medassist/internal/domain"
	"github.com/dkeye/medassist/internal/store"
)

// JoinRoom seats id in room under role. A connection sitting in another room leaves it first.
func (o *Orchestrator) JoinRoom(id domain.ConnID, room domain.RoomID, roleName, userName string) {
	if room == "" {
		o.Fail(id, "missing_room")
		return
	}
	role, err := domain.ParseRole(roleName)
	if err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("conn", string(id)).Msg("join rejected")
		o.Fail(id, "unknown_role")
		return
	}
	name, err := domain.NormalizeName(userName)
	switch {
	case errors.Is(err, domain.ErrNameEmpty):
		name = string(role)
	case err != nil:
		o.Fail(id, "invalid_name")
		return
	}

	p := domain.Participant{Conn: id, Role: role, DisplayName: name}
	if role == domain.RolePatient {
		if patient, _, ok := o.Registry.PatientOf(id); ok {
			p.ExternalID = patient
		}
	}

	res := o.Rooms.Join(room, p)
	if res.Previous != nil {
		o.announce(*res.Previous, store.ReasonLeft)
	}
	if res.Replaced != nil {
		o.Fail(res.Replaced.Conn, "replaced")
	}

	joined := userJoined{envelope: envelope{"user-joined"}, Role: role, UserName: name, ConnectionID: id}
	for _, other := range res.Room.Occupants {
		if other.Conn != id {
			o.send(other.Conn, joined)
		}
	}
	if res.Ready {
		o.sendAll(res.Room.Occupants, readyToCall{envelope: envelope{"ready-to-call"}, RoomID: room})
	}
}

// LeaveRoom tears down id's room but keeps the socket open.
func (o *Orchestrator) LeaveRoom(id domain.ConnID) {
	if td, ok := o.Rooms.Leave(id); ok {
		o.announce(td, store.ReasonLeft)
	}
	o.send(id, envelope{"left"})
}

// EndCall ends room on behalf of id. Ending an unknown or already ended room is a no-op.
func (o *Orchestrator) EndCall(id domain.ConnID, room domain.RoomID) {
	td, err := o.Rooms.End(room, id)
	if err != nil {
		ev := log.Debug()
		if errors.Is(err, app.ErrNotInRoom) {
			ev = log.Warn()
		}
		ev.Err(err).Str("module", "orch").Str("conn", string(id)).Str("room", string(room)).Msg("end-call ignored")
		return
	}
	o.announce(td, store.ReasonEndCall)
}

// Evict ends room administratively.
func (o *Orchestrator) Evict(room domain.RoomID) error {
	td, err := o.Rooms.End(room, "")
	if err != nil {
		return err
	}
	log.Info().Str("module", "orch").Str("room", string(room)).Msg("room evicted")
	o.announce(td, store.ReasonEvicted)
	return nil
}

// announce emits the terminal notification for a torn down room and persists it. A departure
// yields user-left for the survivors; an explicit end yields call-ended for everyone seated.
func (o *Orchestrator) announce(td app.Teardown, reason store.EndReason) {
	if td.Leaver != nil {
		o.sendAll(td.Survivors, userLeft{envelope: envelope{"user-left"}, Role: td.Leaver.Role})
	} else {
		o.sendAll(td.Survivors, callEnded{envelope: envelope{"call-ended"}, Transcript: td.Transcript})
	}
	o.persist(td, reason)
}
