package app

import (
	"errors"
	"sort"
	"sync"

	"github.com/dkeye/medassist/internal/core"
	"github.com/dkeye/medassist/internal/domain"
	"github.com/rs/zerolog/log"
)

var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrNotInRoom     = errors.New("connection is not in room")
	ErrNoCounterpart = errors.New("counterpart has not joined")
)

// RoomManager is the room table. Every Room lives here and is only touched under mu.
// Lock order: RoomManager.mu, then a room's transcript lock, then the registry. The
// registry never calls back into the room table.
type RoomManager struct {
	mu     sync.RWMutex
	rooms  map[domain.RoomID]*core.Room
	byConn map[domain.ConnID]domain.RoomID
}

func NewRoomManager() *RoomManager {
	return &RoomManager{
		rooms:  make(map[domain.RoomID]*core.Room),
		byConn: make(map[domain.ConnID]domain.RoomID),
	}
}

type JoinResult struct {
	Room core.RoomView
	// Replaced is the superseded occupant of the joined role.
	Replaced *domain.Participant
	// Ready is set only on the transition into core.StateReady.
	Ready bool
	// Previous is the teardown of the room the connection sat in before, if it was another one.
	Previous *Teardown
}

// Teardown describes a room that just reached core.StateEnded and was removed from the table.
type Teardown struct {
	Room domain.RoomID
	// Leaver is nil for end-call and eviction.
	Leaver     *domain.Participant
	Survivors  []domain.Participant
	Transcript string
	// Paired is false when both roles were never seated together.
	Paired bool
}

// Join seats p in room id, creating the room on first use.
func (m *RoomManager) Join(id domain.RoomID, p domain.Participant) JoinResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	var res JoinResult
	if cur, ok := m.byConn[p.Conn]; ok && cur != id {
		if td, ok := m.leaveLocked(p.Conn); ok {
			res.Previous = &td
		}
	}

	room, ok := m.rooms[id]
	if !ok {
		room = core.NewRoom(id)
		m.rooms[id] = room
		log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("created room")
	}
	// switching roles inside the same room frees the old seat first
	if held, ok := room.Holder(p.Conn); ok && held.Role != p.Role {
		room.Vacate(p.Conn)
	}

	seat := room.Seat(p)
	if seat.Replaced != nil {
		delete(m.byConn, seat.Replaced.Conn)
		log.Info().Str("module", "app.rooms").Str("room", string(id)).
			Str("role", string(p.Role)).Str("replaced", string(seat.Replaced.Conn)).Msg("occupant replaced")
	}
	m.byConn[p.Conn] = id

	res.Room = room.View()
	res.Replaced = seat.Replaced
	res.Ready = seat.Ready
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Str("conn", string(p.Conn)).
		Str("role", string(p.Role)).Stringer("state", room.State()).Msg("joined room")
	return res
}

// Leave tears down the room conn sits in. Survivors are notified by the caller.
func (m *RoomManager) Leave(conn domain.ConnID) (Teardown, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.leaveLocked(conn)
}

func (m *RoomManager) leaveLocked(conn domain.ConnID) (Teardown, bool) {
	id, ok := m.byConn[conn]
	if !ok {
		return Teardown{}, false
	}
	room, ok := m.rooms[id]
	if !ok {
		delete(m.byConn, conn)
		return Teardown{}, false
	}
	leaver, _ := room.Vacate(conn)
	td := m.endLocked(room)
	td.Leaver = &leaver
	return td, true
}

// End terminates room id on behalf of by. An empty by is an administrative eviction.
func (m *RoomManager) End(id domain.RoomID, by domain.ConnID) (Teardown, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[id]
	if !ok {
		return Teardown{}, ErrRoomNotFound
	}
	if by != "" {
		if _, ok := room.Holder(by); !ok {
			return Teardown{}, ErrNotInRoom
		}
	}
	return m.endLocked(room), nil
}

func (m *RoomManager) endLocked(room *core.Room) Teardown {
	room.Observe(core.EventTerminated)
	td := Teardown{
		Room:       room.ID,
		Survivors:  room.Occupants(),
		Transcript: room.Transcript().Close(),
		Paired:     room.Paired(),
	}
	for _, p := range td.Survivors {
		delete(m.byConn, p.Conn)
	}
	for conn, id := range m.byConn {
		if id == room.ID {
			delete(m.byConn, conn)
		}
	}
	delete(m.rooms, room.ID)
	log.Info().Str("module", "app.rooms").Str("room", string(room.ID)).Msg("room ended")
	return td
}

// Counterpart resolves the sender's seat and the occupant opposite it.
func (m *RoomManager) Counterpart(id domain.RoomID, from domain.ConnID) (sender, peer domain.Participant, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[id]
	if !ok {
		return sender, peer, ErrRoomNotFound
	}
	sender, ok = room.Holder(from)
	if !ok {
		return sender, peer, ErrNotInRoom
	}
	peer, ok = room.Occupant(sender.Role.Counterpart())
	if !ok {
		return sender, peer, ErrNoCounterpart
	}
	return sender, peer, nil
}

// MarkAnswered records a relayed answer. changed is true on READY to ACTIVE.
func (m *RoomManager) MarkAnswered(id domain.RoomID) (state core.CallState, changed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[id]
	if !ok {
		return core.StateEnded, false
	}
	return room.Observe(core.EventAnswered)
}

func (m *RoomManager) Lookup(id domain.RoomID) (core.RoomView, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[id]
	if !ok {
		return core.RoomView{}, false
	}
	return room.View(), true
}

// Read runs fn on room id under the table read lock, so no join or teardown can interleave.
// fn must not block or call back into the manager.
func (m *RoomManager) Read(id domain.RoomID, fn func(*core.Room)) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[id]
	if !ok {
		return false
	}
	fn(room)
	return true
}

func (m *RoomManager) RoomOf(conn domain.ConnID) (domain.RoomID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byConn[conn]
	return id, ok
}

func (m *RoomManager) List() []core.RoomInfo {
	m.mu.RLock()
	out := make([]core.RoomInfo, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r.View().Info())
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
