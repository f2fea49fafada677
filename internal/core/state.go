package core

import "fmt"

// CallState is the lifecycle of one consultation room.
type CallState int

const (
	StateEmpty CallState = iota
	StateJoining
	StateReady
	StateActive
	StateEnded
)

var stateNames = map[CallState]string{
	StateEmpty:   "empty",
	StateJoining: "joining",
	StateReady:   "ready",
	StateActive:  "active",
	StateEnded:   "ended",
}

func (s CallState) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s CallState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *CallState) UnmarshalText(b []byte) error {
	for st, name := range stateNames {
		if name == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown call state %q", b)
}

// CallEvent is something observed by the coordinator that may move a room forward.
type CallEvent int

const (
	// EventOccupied: exactly one role is seated.
	EventOccupied CallEvent = iota
	// EventPaired: both roles are seated.
	EventPaired
	// EventReseated: both roles are seated and one of them by a new connection.
	EventReseated
	// EventAnswered: an SDP answer was relayed.
	EventAnswered
	// EventTerminated: end-call, leave, disconnect or eviction.
	EventTerminated
)

type transitionKey struct {
	from CallState
	ev   CallEvent
}

// transitions holds every legal move. A missing key means the event is ignored.
var transitions = map[transitionKey]CallState{
	{StateEmpty, EventOccupied}:   StateJoining,
	{StateEmpty, EventPaired}:     StateReady,
	{StateJoining, EventOccupied}: StateJoining,
	{StateJoining, EventPaired}:   StateReady,
	{StateReady, EventPaired}:     StateReady,
	{StateReady, EventReseated}:   StateReady,
	{StateReady, EventAnswered}:   StateActive,
	{StateActive, EventPaired}:    StateActive,
	{StateActive, EventAnswered}:  StateActive,

	// a reconnect during a live call needs a fresh offer
	{StateActive, EventReseated}: StateReady,

	// a role switch inside the room can leave a single occupant
	{StateReady, EventOccupied}:  StateJoining,
	{StateActive, EventOccupied}: StateJoining,

	{StateEmpty, EventTerminated}:   StateEnded,
	{StateJoining, EventTerminated}: StateEnded,
	{StateReady, EventTerminated}:   StateEnded,
	{StateActive, EventTerminated}:  StateEnded,
}

// Advance applies ev to s. ok is false when ev is not legal in s, in which case s is returned.
func Advance(s CallState, ev CallEvent) (next CallState, ok bool) {
	next, ok = transitions[transitionKey{s, ev}]
	if !ok {
		return s, false
	}
	return next, true
}
