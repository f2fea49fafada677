package app

import (
	"context"
	"sync"

	"github.com/dkeye/medassist/internal/core"
	"github.com/dkeye/medassist/internal/domain"
	"github.com/rs/zerolog/log"
)

type sessionEntry struct {
	Conn   core.SignalConnection
	Cancel context.CancelFunc
}

type patientEntry struct {
	Conn domain.ConnID
	Name string
}

// Registry tracks live signaling connections and which patients are reachable through them.
// Sessions and patients are separate tables, each behind its own lock.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.ConnID]*sessionEntry

	pmu      sync.RWMutex
	patients map[domain.ExternalID]patientEntry
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[domain.ConnID]*sessionEntry),
		patients: make(map[domain.ExternalID]patientEntry),
	}
}

func (r *Registry) Bind(id domain.ConnID, conn core.SignalConnection, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id] = &sessionEntry{Conn: conn, Cancel: cancel}
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("bound signal")
}

func (r *Registry) Unbind(id domain.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("unbind session")
}

func (r *Registry) Conn(id domain.ConnID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[id]; ok {
		return e.Conn, true
	}
	return nil, false
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Cancel stops the connection's pumps. The adapter's read loop then runs the disconnect path.
func (r *Registry) Cancel(id domain.ConnID) bool {
	r.mu.RLock()
	e, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("canceled session")
	return true
}

// Register maps a patient to the connection it is reachable on. Last writer wins.
func (r *Registry) Register(patient domain.ExternalID, id domain.ConnID, name string) {
	r.pmu.Lock()
	defer r.pmu.Unlock()
	prev, had := r.patients[patient]
	r.patients[patient] = patientEntry{Conn: id, Name: name}
	ev := log.Info().Str("module", "app.registry").Str("patient", string(patient)).Str("conn", string(id))
	if had && prev.Conn != id {
		ev = ev.Str("replaced", string(prev.Conn))
	}
	ev.Msg("registered patient")
}

func (r *Registry) Lookup(patient domain.ExternalID) (domain.ConnID, bool) {
	r.pmu.RLock()
	defer r.pmu.RUnlock()
	e, ok := r.patients[patient]
	return e.Conn, ok
}

// Unregister drops every patient mapping that points at id.
func (r *Registry) Unregister(id domain.ConnID) int {
	r.pmu.Lock()
	defer r.pmu.Unlock()
	n := 0
	for patient, e := range r.patients {
		if e.Conn == id {
			delete(r.patients, patient)
			n++
		}
	}
	if n > 0 {
		log.Info().Str("module", "app.registry").Str("conn", string(id)).Int("patients", n).Msg("unregistered patients")
	}
	return n
}

// PatientOf returns the patient registered on id, if any.
func (r *Registry) PatientOf(id domain.ConnID) (domain.ExternalID, string, bool) {
	r.pmu.RLock()
	defer r.pmu.RUnlock()
	for patient, e := range r.patients {
		if e.Conn == id {
			return patient, e.Name, true
		}
	}
	return "", "", false
}

func (r *Registry) Online(patient domain.ExternalID) bool {
	_, ok := r.Lookup(patient)
	return ok
}
