package core

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dkeye/medassist/internal/domain"
)

func TestTranscript_appendAndSnapshot(t *testing.T) {
	tr := NewTranscript()
	var delivered []string
	deliver := func(e domain.TranscriptEntry) { delivered = append(delivered, e.Line()) }

	_, ok := tr.Append("A", "x", deliver)
	assert.True(t, ok)
	_, ok = tr.Append("B", "   ", deliver)
	assert.False(t, ok, "blank fragments are dropped")
	_, ok = tr.Append("B", "y", deliver)
	assert.True(t, ok)

	assert.Equal(t, "A: x\nB: y", tr.Snapshot())
	assert.Equal(t, []string{"A: x", "B: y"}, delivered)
	assert.Equal(t, 2, tr.Len())
}

func TestTranscript_closed(t *testing.T) {
	tr := NewTranscript()
	tr.Append("A", "x", nil)
	assert.Equal(t, "A: x", tr.Close())

	_, ok := tr.Append("A", "late", nil)
	assert.False(t, ok)
	assert.Equal(t, "A: x", tr.Snapshot())
}

func TestTranscript_emptySnapshot(t *testing.T) {
	assert.Equal(t, "", NewTranscript().Snapshot())
}

func TestTranscript_deliveryOrderMatchesLog(t *testing.T) {
	tr := NewTranscript()
	var (
		mu  sync.Mutex
		out []domain.TranscriptEntry
		wg  sync.WaitGroup
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Append("S", "t", func(e domain.TranscriptEntry) {
				mu.Lock()
				out = append(out, e)
				mu.Unlock()
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, tr.Entries(), out)
}
