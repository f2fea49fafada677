package core

import (
	"strings"
	"sync"
	"time"

	"github.com/dkeye/medassist/internal/domain"
)

// Transcript is the append-only caption log of one room.
type Transcript struct {
	mu      sync.Mutex
	entries []domain.TranscriptEntry
	closed  bool
	now     func() time.Time
}

func NewTranscript() *Transcript {
	return &Transcript{now: func() time.Time { return time.Now().UTC() }}
}

// Append records text under speaker with a server timestamp. Blank text and appends after
// Close are dropped. deliver runs while the lock is held, so fan-out order equals append
// order; it must only enqueue.
func (t *Transcript) Append(speaker, text string, deliver func(domain.TranscriptEntry)) (domain.TranscriptEntry, bool) {
	if strings.TrimSpace(text) == "" {
		return domain.TranscriptEntry{}, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return domain.TranscriptEntry{}, false
	}
	e := domain.TranscriptEntry{Speaker: speaker, Text: text, Timestamp: t.now()}
	t.entries = append(t.entries, e)
	if deliver != nil {
		deliver(e)
	}
	return e, true
}

// Snapshot joins all entries as "speaker: text" lines in append order.
func (t *Transcript) Snapshot() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Transcript) snapshotLocked() string {
	var b strings.Builder
	for i, e := range t.entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(e.Line())
	}
	return b.String()
}

func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *Transcript) Entries() []domain.TranscriptEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.TranscriptEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Close freezes the transcript and returns its final text.
func (t *Transcript) Close() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return t.snapshotLocked()
}
