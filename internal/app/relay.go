package app

import (
	"encoding/json"
	"fmt"

	"github.com/dkeye/medassist/internal/core"
	"github.com/dkeye/medassist/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

type SignalKind string

const (
	SignalOffer     SignalKind = "offer"
	SignalAnswer    SignalKind = "answer"
	SignalCandidate SignalKind = "ice-candidate"
)

func ParseSignalKind(s string) (SignalKind, bool) {
	switch k := SignalKind(s); k {
	case SignalOffer, SignalAnswer, SignalCandidate:
		return k, true
	}
	return "", false
}

// Field is the payload key the kind travels under, both inbound and outbound.
func (k SignalKind) Field() string {
	switch k {
	case SignalOffer:
		return "offer"
	case SignalAnswer:
		return "answer"
	default:
		return "candidate"
	}
}

// Delivery is where a relayed payload goes.
type Delivery struct {
	From domain.Participant
	To   domain.Participant
	// Activated is set when this answer moved the room to core.StateActive.
	Activated bool
}

// Relay forwards negotiation payloads to the other occupant of a room. Payload bytes are
// never rewritten.
type Relay struct {
	Rooms *RoomManager
}

func (r *Relay) Route(id domain.RoomID, from domain.ConnID, kind SignalKind, payload json.RawMessage) (Delivery, error) {
	sender, peer, err := r.Rooms.Counterpart(id, from)
	if err != nil {
		return Delivery{}, err
	}
	logger := log.With().Str("module", "app.relay").Str("room", string(id)).
		Str("conn", string(from)).Str("kind", string(kind)).Logger()

	pol := sender.Role.Policy()
	switch {
	case kind == SignalOffer && !pol.Offers, kind == SignalAnswer && !pol.Answers:
		logger.Warn().Str("role", string(sender.Role)).Msg("role does not own this half of the exchange")
	}
	if err := InspectPayload(kind, payload); err != nil {
		logger.Warn().Err(err).Msg("unexpected payload shape")
	}

	d := Delivery{From: sender, To: peer}
	if kind == SignalAnswer {
		if st, changed := r.Rooms.MarkAnswered(id); changed && st == core.StateActive {
			d.Activated = true
			logger.Info().Msg("call active")
		}
	}
	return d, nil
}

// InspectPayload checks that payload looks like what kind carries. It is advisory only.
func InspectPayload(kind SignalKind, payload json.RawMessage) error {
	if len(payload) == 0 {
		return fmt.Errorf("empty %s payload", kind)
	}
	switch kind {
	case SignalOffer, SignalAnswer:
		var sd struct {
			Type string `json:"type"`
			SDP  string `json:"sdp"`
		}
		if err := json.Unmarshal(payload, &sd); err != nil {
			return fmt.Errorf("session description: %w", err)
		}
		want := webrtc.SDPTypeOffer
		if kind == SignalAnswer {
			want = webrtc.SDPTypeAnswer
		}
		if got := webrtc.NewSDPType(sd.Type); got != want {
			return fmt.Errorf("sdp type %q, want %s", sd.Type, want)
		}
	case SignalCandidate:
		var c webrtc.ICECandidateInit
		if err := json.Unmarshal(payload, &c); err != nil {
			return fmt.Errorf("ice candidate: %w", err)
		}
	}
	return nil
}
