package app

import "github.com/dkeye/medassist/internal/domain"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	KickMember
)

// Policy decides what happens when a frame of type event cannot be queued for conn.
type Policy interface {
	OnBackPressure(event string, conn domain.ConnID) BackpressureAction
}

// SimplePolicy kicks a connection that misses a lifecycle or negotiation frame and drops the rest.
type SimplePolicy struct{}

var criticalEvents = map[string]bool{
	"incoming-call": true,
	"ready-to-call": true,
	"call-ended":    true,
	"user-left":     true,
	"offer":         true,
	"answer":        true,
}

func (SimplePolicy) OnBackPressure(event string, conn domain.ConnID) BackpressureAction {
	if criticalEvents[event] {
		return KickMember
	}
	return DropFrame
}
