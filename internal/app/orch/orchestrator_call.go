package orch

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/medassist/internal/app"
	"github.com/dkeye/medassist/internal/domain"
)

func (o *Orchestrator) RegisterPatient(id domain.ConnID, patient domain.ExternalID, name string) {
	if patient == "" {
		o.Fail(id, "missing_patient")
		return
	}
	o.Registry.Register(patient, id, name)
	o.send(id, registered{envelope: envelope{"registered"}, PatientID: patient})
}

// InitiateCall rings the patient's connection, or tells the caller the patient is offline.
func (o *Orchestrator) InitiateCall(id domain.ConnID, appointment, patient domain.ExternalID, doctorName string) {
	if appointment == "" || patient == "" {
		o.Fail(id, "bad_payload")
		return
	}
	logger := log.With().Str("module", "orch").Str("conn", string(id)).
		Str("appointment", string(appointment)).Str("patient", string(patient)).Logger()

	target, ok := o.Registry.Lookup(patient)
	if !ok {
		logger.Info().Msg("patient offline")
		o.send(id, patientOffline{envelope: envelope{"patient-offline"}, PatientID: patient})
		return
	}
	logger.Info().Str("target", string(target)).Msg("ringing patient")
	o.send(target, incomingCall{
		envelope:      envelope{"incoming-call"},
		AppointmentID: appointment,
		DoctorName:    doctorName,
		RoomID:        domain.RoomFor(appointment),
	})
}

// Signal forwards an offer, answer or candidate to the other occupant of room.
func (o *Orchestrator) Signal(id domain.ConnID, room domain.RoomID, kind app.SignalKind, payload json.RawMessage) {
	d, err := o.Relay.Route(room, id, kind, payload)
	if err != nil {
		ev := log.Warn()
		if errors.Is(err, app.ErrNoCounterpart) {
			ev = log.Debug()
		}
		ev.Err(err).Str("module", "orch").Str("conn", string(id)).Str("room", string(room)).
			Str("kind", string(kind)).Msg("signal dropped")
		return
	}
	m := relayed{envelope: envelope{string(kind)}, From: id}
	switch kind {
	case app.SignalOffer:
		m.Offer = payload
	case app.SignalAnswer:
		m.Answer = payload
	case app.SignalCandidate:
		m.Candidate = payload
	}
	o.send(d.To.Conn, m)
}

// Transcript appends a caption fragment and fans it out to the room in append order.
func (o *Orchestrator) Transcript(id domain.ConnID, room domain.RoomID, speaker, text string) {
	_, err := o.Transcripts.Append(room, id, speaker, text, func(e domain.TranscriptEntry, to []domain.Participant) {
		o.sendAll(to, transcriptUpdate{envelope: envelope{"transcript-update"}, Speaker: e.Speaker, Text: e.Text})
	})
	if err != nil && !errors.Is(err, app.ErrEmptyFragment) {
		log.Debug().Err(err).Str("module", "orch").Str("conn", string(id)).Str("room", string(room)).Msg("transcript dropped")
	}
}

// RequestAIHints answers the requester with the current transcript and, when an assistant is
// configured, queues a hint request whose answer arrives later as ai-hints.
func (o *Orchestrator) RequestAIHints(id domain.ConnID, room domain.RoomID, medicalHistory string) {
	view, ok := o.Rooms.Lookup(room)
	if !ok || !view.Has(id) {
		log.Debug().Str("module", "orch").Str("conn", string(id)).Str("room", string(room)).Msg("hints for foreign room ignored")
		return
	}
	snapshot := view.Transcript.Snapshot()

	o.send(id, envelope{"ai-hints-processing"})
	o.send(id, aiHintsData{envelope: envelope{"ai-hints-data"}, Transcript: snapshot, MedicalHistory: medicalHistory})

	if o.Assistant == nil {
		return
	}
	queued := o.Assistant.Hints(snapshot, medicalHistory, func(hints string, err error) {
		if err != nil {
			log.Error().Err(err).Str("module", "orch").Str("room", string(room)).Msg("hints failed")
			o.send(id, errorMsg{envelope: envelope{"ai-hints-error"}, Error: "ai_hints_failed"})
			return
		}
		o.send(id, aiHints{envelope: envelope{"ai-hints"}, Hints: hints})
	})
	if !queued {
		o.send(id, errorMsg{envelope: envelope{"ai-hints-error"}, Error: "busy"})
	}
}

func (o *Orchestrator) WhoAmI(id domain.ConnID) {
	m := whoAmI{envelope: envelope{"whoami"}, ConnectionID: id}
	if patient, name, ok := o.Registry.PatientOf(id); ok {
		m.PatientID = patient
		m.DisplayName = name
	}
	if room, ok := o.Rooms.RoomOf(id); ok {
		m.RoomID = room
		if view, ok := o.Rooms.Lookup(room); ok {
			for _, p := range view.Occupants {
				if p.Conn == id {
					m.Role = p.Role
					m.DisplayName = p.DisplayName
				}
			}
		}
	}
	o.send(id, m)
}
