package orch

import (
	"encoding/json"

	"github.com/dkeye/medassist/internal/domain"
)

type message interface {
	eventType() string
}

// envelope carries the event name; every outbound frame embeds it.
type envelope struct {
	Type string `json:"type"`
}

func (e envelope) eventType() string { return e.Type }

type connected struct {
	envelope
	ConnectionID domain.ConnID `json:"connectionId"`
}

type errorMsg struct {
	envelope
	Error string `json:"error"`
}

type incomingCall struct {
	envelope
	AppointmentID domain.ExternalID `json:"appointmentId"`
	DoctorName    string            `json:"doctorName"`
	RoomID        domain.RoomID     `json:"roomId"`
}

type patientOffline struct {
	envelope
	PatientID domain.ExternalID `json:"patientId"`
}

type registered struct {
	envelope
	PatientID domain.ExternalID `json:"patientId"`
}

type userJoined struct {
	envelope
	Role         domain.Role   `json:"role"`
	UserName     string        `json:"userName"`
	ConnectionID domain.ConnID `json:"connectionId"`
}

type readyToCall struct {
	envelope
	RoomID domain.RoomID `json:"roomId"`
}

type relayed struct {
	envelope
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
	From      domain.ConnID   `json:"from"`
}

type transcriptUpdate struct {
	envelope
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

type aiHintsData struct {
	envelope
	Transcript     string `json:"transcript"`
	MedicalHistory string `json:"medicalHistory"`
}

type aiHints struct {
	envelope
	Hints string `json:"hints"`
}

type callEnded struct {
	envelope
	Transcript string `json:"transcript"`
}

type userLeft struct {
	envelope
	Role domain.Role `json:"role"`
}

type whoAmI struct {
	envelope
	ConnectionID domain.ConnID     `json:"connectionId"`
	Role         domain.Role       `json:"role,omitempty"`
	RoomID       domain.RoomID     `json:"roomId,omitempty"`
	DisplayName  string            `json:"displayName,omitempty"`
	PatientID    domain.ExternalID `json:"patientId,omitempty"`
}
