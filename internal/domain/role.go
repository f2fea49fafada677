package domain

import (
	"errors"
	"fmt"
	"strings"
)

type Role string

const (
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

var ErrUnknownRole = errors.New("unknown role")

// Roles lists every seat a room has, in broadcast order.
var Roles = [...]Role{RoleDoctor, RolePatient}

func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleDoctor, RolePatient:
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// Counterpart returns the role sitting opposite r.
func (r Role) Counterpart() Role {
	if r == RoleDoctor {
		return RolePatient
	}
	return RoleDoctor
}

// SignalPolicy says which half of the SDP exchange a role owns.
type SignalPolicy struct {
	Offers  bool
	Answers bool
}

// The doctor always offers once ready-to-call fires; the patient only answers.
var signalPolicies = map[Role]SignalPolicy{
	RoleDoctor:  {Offers: true},
	RolePatient: {Answers: true},
}

func (r Role) Policy() SignalPolicy { return signalPolicies[r] }
