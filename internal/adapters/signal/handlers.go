package signal

import (
	"encoding/json"

	"github.com/dkeye/medassist/internal/app"
	"github.com/dkeye/medassist/internal/domain"
)

func (ctl *SignalWSController) handleRegisterPatient(id domain.ConnID, data []byte) {
	var p struct {
		PatientID   domain.ExternalID `json:"patientId"`
		PatientName string            `json:"patientName"`
	}
	if !ctl.decode(id, "register-patient", data, &p) {
		return
	}
	ctl.Orch.RegisterPatient(id, p.PatientID, p.PatientName)
}

func (ctl *SignalWSController) handleInitiateCall(id domain.ConnID, data []byte) {
	if !ctl.allow(id, "initiate-call") {
		return
	}
	var p struct {
		AppointmentID domain.ExternalID `json:"appointmentId"`
		PatientID     domain.ExternalID `json:"patientId"`
		DoctorName    string            `json:"doctorName"`
	}
	if !ctl.decode(id, "initiate-call", data, &p) {
		return
	}
	ctl.Orch.InitiateCall(id, p.AppointmentID, p.PatientID, p.DoctorName)
}

func (ctl *SignalWSController) handleJoin(id domain.ConnID, data []byte) {
	var p struct {
		RoomID   domain.RoomID `json:"roomId"`
		Role     string        `json:"role"`
		UserName string        `json:"userName"`
	}
	if !ctl.decode(id, "join-room", data, &p) {
		return
	}
	ctl.Orch.JoinRoom(id, p.RoomID, p.Role, p.UserName)
}

func (ctl *SignalWSController) handleRelay(id domain.ConnID, event string, data []byte) {
	kind, _ := app.ParseSignalKind(event)
	var p struct {
		RoomID    domain.RoomID   `json:"roomId"`
		Offer     json.RawMessage `json:"offer"`
		Answer    json.RawMessage `json:"answer"`
		Candidate json.RawMessage `json:"candidate"`
	}
	if !ctl.decode(id, event, data, &p) {
		return
	}
	payload := p.Candidate
	switch kind {
	case app.SignalOffer:
		payload = p.Offer
	case app.SignalAnswer:
		payload = p.Answer
	}
	ctl.Orch.Signal(id, p.RoomID, kind, payload)
}

func (ctl *SignalWSController) handleTranscript(id domain.ConnID, data []byte) {
	var p struct {
		RoomID  domain.RoomID `json:"roomId"`
		Speaker string        `json:"speaker"`
		Text    string        `json:"text"`
	}
	if !ctl.decode(id, "transcript", data, &p) {
		return
	}
	ctl.Orch.Transcript(id, p.RoomID, p.Speaker, p.Text)
}

func (ctl *SignalWSController) handleAIHints(id domain.ConnID, data []byte) {
	if !ctl.allow(id, "request-ai-hints") {
		return
	}
	var p struct {
		RoomID         domain.RoomID `json:"roomId"`
		MedicalHistory string        `json:"medicalHistory"`
	}
	if !ctl.decode(id, "request-ai-hints", data, &p) {
		return
	}
	ctl.Orch.RequestAIHints(id, p.RoomID, p.MedicalHistory)
}

func (ctl *SignalWSController) handleEndCall(id domain.ConnID, data []byte) {
	var p struct {
		RoomID domain.RoomID `json:"roomId"`
	}
	if !ctl.decode(id, "end-call", data, &p) {
		return
	}
	ctl.Orch.EndCall(id, p.RoomID)
}
