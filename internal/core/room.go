package core

import (
	"time"

	"github.com/dkeye/medassist/internal/domain"
)

// Room is the in-memory state of one consultation: two role seats, the lifecycle state and
// the transcript. It is not safe for concurrent use; app.RoomManager owns every Room and
// only touches it under its table lock. The transcript carries its own lock.
type Room struct {
	ID        domain.RoomID
	CreatedAt time.Time

	seats      map[domain.Role]domain.Participant
	state      CallState
	paired     bool
	transcript *Transcript
}

func NewRoom(id domain.RoomID) *Room {
	return &Room{
		ID:         id,
		CreatedAt:  time.Now().UTC(),
		seats:      make(map[domain.Role]domain.Participant, len(domain.Roles)),
		state:      StateEmpty,
		transcript: NewTranscript(),
	}
}

// SeatResult reports what a Seat call changed.
type SeatResult struct {
	// Replaced is the previous occupant of the role when it was a different connection.
	Replaced *domain.Participant
	// Ready is true only when this seat moved the room into StateReady.
	Ready bool
}

// Seat puts p into its role's seat, silently replacing any previous occupant. Replacing a
// seat during an active call drops the room back to ready so the pair renegotiates.
func (r *Room) Seat(p domain.Participant) SeatResult {
	var res SeatResult
	if prev, ok := r.seats[p.Role]; ok && prev.Conn != p.Conn {
		res.Replaced = &prev
	}
	r.seats[p.Role] = p

	ev := EventPaired
	switch {
	case len(r.seats) < len(domain.Roles):
		ev = EventOccupied
	case res.Replaced != nil:
		ev = EventReseated
	}
	before := r.state
	r.state, _ = Advance(r.state, ev)
	res.Ready = before != StateReady && r.state == StateReady
	if res.Ready {
		r.paired = true
	}
	return res
}

// Vacate frees whichever seat conn holds.
func (r *Room) Vacate(conn domain.ConnID) (domain.Participant, bool) {
	for role, p := range r.seats {
		if p.Conn == conn {
			delete(r.seats, role)
			return p, true
		}
	}
	return domain.Participant{}, false
}

// Holder returns the participant seated with conn.
func (r *Room) Holder(conn domain.ConnID) (domain.Participant, bool) {
	for _, p := range r.seats {
		if p.Conn == conn {
			return p, true
		}
	}
	return domain.Participant{}, false
}

func (r *Room) Occupant(role domain.Role) (domain.Participant, bool) {
	p, ok := r.seats[role]
	return p, ok
}

// Occupants lists seated participants, doctor first.
func (r *Room) Occupants() []domain.Participant {
	out := make([]domain.Participant, 0, len(r.seats))
	for _, role := range domain.Roles {
		if p, ok := r.seats[role]; ok {
			out = append(out, p)
		}
	}
	return out
}

func (r *Room) Empty() bool { return len(r.seats) == 0 }

func (r *Room) State() CallState { return r.state }

// Paired reports whether both roles were ever seated together.
func (r *Room) Paired() bool { return r.paired }

func (r *Room) Transcript() *Transcript { return r.transcript }

// Observe feeds ev into the state machine and reports whether the state changed.
func (r *Room) Observe(ev CallEvent) (CallState, bool) {
	before := r.state
	r.state, _ = Advance(r.state, ev)
	return r.state, r.state != before
}

// View copies the room for use outside the table lock.
func (r *Room) View() RoomView {
	return RoomView{
		ID:         r.ID,
		State:      r.state,
		Occupants:  r.Occupants(),
		Transcript: r.transcript,
		CreatedAt:  r.CreatedAt,
	}
}

// RoomView is a read-only copy of a Room. Transcript is shared with the live room.
type RoomView struct {
	ID         domain.RoomID
	State      CallState
	Occupants  []domain.Participant
	Transcript *Transcript
	CreatedAt  time.Time
}

func (v RoomView) Occupant(role domain.Role) (domain.Participant, bool) {
	for _, p := range v.Occupants {
		if p.Role == role {
			return p, true
		}
	}
	return domain.Participant{}, false
}

func (v RoomView) Has(conn domain.ConnID) bool {
	for _, p := range v.Occupants {
		if p.Conn == conn {
			return true
		}
	}
	return false
}

// Info is the API view of a room (no transport fields).
func (v RoomView) Info() RoomInfo {
	info := RoomInfo{ID: v.ID, State: v.State, CreatedAt: v.CreatedAt}
	if d, ok := v.Occupant(domain.RoleDoctor); ok {
		info.Doctor = d.DisplayName
	}
	if p, ok := v.Occupant(domain.RolePatient); ok {
		info.Patient = p.DisplayName
	}
	if v.Transcript != nil {
		info.TranscriptLines = v.Transcript.Len()
	}
	return info
}

type RoomInfo struct {
	ID              domain.RoomID `json:"roomId"`
	State           CallState     `json:"state"`
	Doctor          string        `json:"doctor,omitempty"`
	Patient         string        `json:"patient,omitempty"`
	TranscriptLines int           `json:"transcriptLines"`
	CreatedAt       time.Time     `json:"createdAt"`
}
