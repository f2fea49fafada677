package orch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/medassist/internal/app"
	"github.com/dkeye/medassist/internal/core"
	"github.com/dkeye/medassist/internal/domain"
	"github.com/dkeye/medassist/internal/store"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	full   bool
	closed bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full {
		return errors.New("backpressure")
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// of returns every received frame of the given type, decoded.
func (c *fakeConn) of(t *testing.T, typ string) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []map[string]any
	for _, f := range c.frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(f, &m))
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

func (c *fakeConn) raw(t *testing.T, typ string) string {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range c.frames {
		var env envelope
		require.NoError(t, json.Unmarshal(f, &env))
		if env.Type == typ {
			return string(f)
		}
	}
	return ""
}

type fakeAssistant struct {
	hints   string
	summary string
	err     error
	busy    bool
}

func (a *fakeAssistant) Hints(_, _ string, reply func(string, error)) bool {
	if a.busy {
		return false
	}
	reply(a.hints, a.err)
	return true
}

func (a *fakeAssistant) Summarize(_ string, done func(string, error)) bool {
	if a.busy {
		return false
	}
	done(a.summary, a.err)
	return true
}

func newOrch() *Orchestrator {
	return New(app.NewRegistry(), app.NewRoomManager(), app.SimplePolicy{})
}

func connect(o *Orchestrator, id domain.ConnID) *fakeConn {
	c := &fakeConn{}
	o.Connect(id, c, func() {})
	return c
}

// pair seats doctor "A" on conn d and patient "B" on conn p in consultation-99.
func pair(o *Orchestrator) (d, p *fakeConn) {
	d, p = connect(o, "d"), connect(o, "p")
	o.JoinRoom("d", "consultation-99", "doctor", "A")
	o.JoinRoom("p", "consultation-99", "patient", "B")
	return d, p
}

func TestConnect_announcesConnectionID(t *testing.T) {
	o := newOrch()
	c := connect(o, "c1")
	assert.JSONEq(t, `{"type":"connected","connectionId":"c1"}`, c.raw(t, "connected"))
}

func TestInitiateCall_ringsRegisteredPatient(t *testing.T) {
	o := newOrch()
	doctor, patient := connect(o, "d"), connect(o, "p")

	o.RegisterPatient("p", "7", "Sam")
	o.InitiateCall("d", "99", "7", "Dr. X")

	assert.JSONEq(t,
		`{"type":"incoming-call","appointmentId":99,"doctorName":"Dr. X","roomId":"consultation-99"}`,
		patient.raw(t, "incoming-call"))
	assert.Empty(t, doctor.of(t, "incoming-call"))
	assert.Empty(t, doctor.of(t, "patient-offline"))
}

func TestInitiateCall_patientOffline(t *testing.T) {
	o := newOrch()
	doctor := connect(o, "d")
	o.InitiateCall("d", "99", "7", "Dr. X")
	assert.JSONEq(t, `{"type":"patient-offline","patientId":7}`, doctor.raw(t, "patient-offline"))

	p := connect(o, "p")
	o.RegisterPatient("p", "7", "Sam")
	o.Disconnect("p")
	o.InitiateCall("d", "99", "7", "Dr. X")
	assert.Len(t, doctor.of(t, "patient-offline"), 2, "disconnect unregisters the patient")
	assert.Empty(t, p.of(t, "incoming-call"))
}

func TestJoinRoom_readyAndUserJoined(t *testing.T) {
	o := newOrch()
	d, p := pair(o)

	assert.Len(t, d.of(t, "ready-to-call"), 1)
	assert.Len(t, p.of(t, "ready-to-call"), 1)
	assert.JSONEq(t, `{"type":"ready-to-call","roomId":"consultation-99"}`, p.raw(t, "ready-to-call"))

	joined := d.of(t, "user-joined")
	require.Len(t, joined, 1)
	assert.Equal(t, "patient", joined[0]["role"])
	assert.Equal(t, "B", joined[0]["userName"])
	assert.Empty(t, p.of(t, "user-joined"), "joiner is not told about itself")

	// a reconnecting doctor replaces the old one without a second ready-to-call
	d2 := connect(o, "d2")
	o.JoinRoom("d2", "consultation-99", "doctor", "A")
	assert.Len(t, p.of(t, "ready-to-call"), 1)
	assert.Empty(t, d2.of(t, "ready-to-call"))
}

func TestJoinRoom_rejectsBadInput(t *testing.T) {
	o := newOrch()
	c := connect(o, "c")
	o.JoinRoom("c", "consultation-1", "nurse", "N")
	o.JoinRoom("c", "", "doctor", "N")
	errs := c.of(t, "error")
	require.Len(t, errs, 2)
	assert.Equal(t, "unknown_role", errs[0]["error"])
	assert.Equal(t, "missing_room", errs[1]["error"])
	assert.Empty(t, o.Rooms.List())
}

func TestJoinRoom_emptyNameDefaultsToRole(t *testing.T) {
	o := newOrch()
	connect(o, "d")
	p := connect(o, "p")
	o.JoinRoom("p", "consultation-1", "patient", "")
	o.JoinRoom("d", "consultation-1", "doctor", "  ")
	joined := p.of(t, "user-joined")
	require.Len(t, joined, 1)
	assert.Equal(t, "doctor", joined[0]["userName"])
}

func TestSignal_offerReachesOnlyPatient(t *testing.T) {
	o := newOrch()
	d, p := pair(o)

	offer := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	o.Signal("d", "consultation-99", app.SignalOffer, offer)

	assert.JSONEq(t, `{"type":"offer","offer":{"type":"offer","sdp":"v=0"},"from":"d"}`, p.raw(t, "offer"))
	assert.Empty(t, d.of(t, "offer"))

	o.Signal("p", "consultation-99", app.SignalAnswer, json.RawMessage(`{"type":"answer","sdp":"v=0"}`))
	assert.Len(t, d.of(t, "answer"), 1)
	view, ok := o.Rooms.Lookup("consultation-99")
	require.True(t, ok)
	assert.Equal(t, core.StateActive, view.State)
}

func TestSignal_beforeCounterpartIsDropped(t *testing.T) {
	o := newOrch()
	d := connect(o, "d")
	o.JoinRoom("d", "consultation-1", "doctor", "A")
	o.Signal("d", "consultation-1", app.SignalCandidate, json.RawMessage(`{"candidate":"c"}`))
	o.Signal("d", "missing", app.SignalCandidate, json.RawMessage(`{"candidate":"c"}`))
	assert.Empty(t, d.of(t, "ice-candidate"))
	assert.Empty(t, d.of(t, "error"))
}

func TestTranscript_fansOutInOrder(t *testing.T) {
	o := newOrch()
	d, p := pair(o)

	o.Transcript("d", "consultation-99", "A", "x")
	o.Transcript("p", "consultation-99", "", "y")
	o.Transcript("p", "consultation-99", "B", "   ")

	for _, c := range []*fakeConn{d, p} {
		got := c.of(t, "transcript-update")
		require.Len(t, got, 2)
		assert.Equal(t, "A", got[0]["speaker"])
		assert.Equal(t, "x", got[0]["text"])
		assert.Equal(t, "B", got[1]["speaker"], "speaker defaults to display name")
	}
}

func TestEndCall_broadcastsTranscriptOnce(t *testing.T) {
	o := newOrch()
	ms := &store.MockStore{}
	ms.On("SaveConsultation", mock.Anything, mock.MatchedBy(func(c store.Consultation) bool {
		return c.AppointmentID == "99" && c.RoomID == "consultation-99" &&
			c.Transcript == "A: x\nB: y" && c.EndReason == store.ReasonEndCall
	})).Return(int64(1), nil).Once()
	o.Store = ms
	d, p := pair(o)

	o.Transcript("d", "consultation-99", "A", "x")
	o.Transcript("p", "consultation-99", "B", "y")
	o.EndCall("d", "consultation-99")
	o.EndCall("d", "consultation-99")
	o.EndCall("p", "consultation-99")

	for _, c := range []*fakeConn{d, p} {
		require.Len(t, c.of(t, "call-ended"), 1)
		assert.JSONEq(t, `{"type":"call-ended","transcript":"A: x\nB: y"}`, c.raw(t, "call-ended"))
		assert.Empty(t, c.of(t, "user-left"))
	}
	_, ok := o.Rooms.Lookup("consultation-99")
	assert.False(t, ok)

	o.Wait()
	ms.AssertExpectations(t)
}

func TestEndCall_byOutsiderIsIgnored(t *testing.T) {
	o := newOrch()
	d, _ := pair(o)
	connect(o, "x")
	o.EndCall("x", "consultation-99")
	assert.Empty(t, d.of(t, "call-ended"))
	_, ok := o.Rooms.Lookup("consultation-99")
	assert.True(t, ok)
}

func TestDisconnect_notifiesSurvivor(t *testing.T) {
	o := newOrch()
	ms := &store.MockStore{}
	ms.On("SaveConsultation", mock.Anything, mock.MatchedBy(func(c store.Consultation) bool {
		return c.EndReason == store.ReasonDisconnect && c.Transcript == "B: hi"
	})).Return(int64(3), nil).Once()
	o.Store = ms
	d, _ := pair(o)
	o.Transcript("p", "consultation-99", "B", "hi")

	o.Disconnect("p")

	left := d.of(t, "user-left")
	require.Len(t, left, 1)
	assert.Equal(t, "patient", left[0]["role"])
	assert.Empty(t, d.of(t, "call-ended"))
	_, ok := o.Rooms.Lookup("consultation-99")
	assert.False(t, ok)
	_, ok = o.Registry.Conn("p")
	assert.False(t, ok)

	// the survivor's own later disconnect has nothing left to tear down
	o.Disconnect("d")
	o.Wait()
	ms.AssertExpectations(t)
}

func TestLeaveRoom_keepsSocket(t *testing.T) {
	o := newOrch()
	d, p := pair(o)
	o.LeaveRoom("d")
	assert.Len(t, d.of(t, "left"), 1)
	assert.Len(t, p.of(t, "user-left"), 1)
	_, ok := o.Registry.Conn("d")
	assert.True(t, ok)
}

func TestJoinRoom_switchingRoomsLeavesFirst(t *testing.T) {
	o := newOrch()
	d, p := pair(o)
	o.JoinRoom("d", "consultation-100", "doctor", "A")
	assert.Len(t, p.of(t, "user-left"), 1)
	assert.Empty(t, d.of(t, "user-left"))
	_, ok := o.Rooms.Lookup("consultation-99")
	assert.False(t, ok)
}

func TestJoinRoom_reconnectDuringCallRenegotiates(t *testing.T) {
	o := newOrch()
	d, p := pair(o)
	o.Signal("d", "consultation-99", app.SignalOffer, json.RawMessage(`{"type":"offer","sdp":"v=0"}`))
	o.Signal("p", "consultation-99", app.SignalAnswer, json.RawMessage(`{"type":"answer","sdp":"v=0"}`))
	require.Len(t, d.of(t, "ready-to-call"), 1)

	p2 := connect(o, "p2")
	o.JoinRoom("p2", "consultation-99", "patient", "B")

	assert.Len(t, d.of(t, "ready-to-call"), 2, "doctor offers again to the new connection")
	assert.Len(t, p2.of(t, "ready-to-call"), 1)
	replaced := p.of(t, "error")
	require.Len(t, replaced, 1)
	assert.Equal(t, "replaced", replaced[0]["error"])

	view, ok := o.Rooms.Lookup("consultation-99")
	require.True(t, ok)
	assert.Equal(t, core.StateReady, view.State)

	// another replacement while ready does not fire again
	p3 := connect(o, "p3")
	o.JoinRoom("p3", "consultation-99", "patient", "B")
	assert.Len(t, d.of(t, "ready-to-call"), 2)
	assert.Empty(t, p3.of(t, "ready-to-call"))
}

func TestJoinRoom_roleSwitchDisplacesOccupant(t *testing.T) {
	o := newOrch()
	d, p := pair(o)

	o.JoinRoom("d", "consultation-99", "patient", "A")
	displaced := p.of(t, "error")
	require.Len(t, displaced, 1)
	assert.Equal(t, "replaced", displaced[0]["error"])

	d2 := connect(o, "d2")
	o.JoinRoom("d2", "consultation-99", "doctor", "C")
	assert.Len(t, d2.of(t, "ready-to-call"), 1)
	assert.Len(t, d.of(t, "ready-to-call"), 2)
	assert.Len(t, p.of(t, "ready-to-call"), 1)
}

func TestEvict(t *testing.T) {
	o := newOrch()
	ms := &store.MockStore{}
	ms.On("SaveConsultation", mock.Anything, mock.MatchedBy(func(c store.Consultation) bool {
		return c.EndReason == store.ReasonEvicted
	})).Return(int64(1), nil).Once()
	o.Store = ms
	d, p := pair(o)

	require.NoError(t, o.Evict("consultation-99"))
	assert.Len(t, d.of(t, "call-ended"), 1)
	assert.Len(t, p.of(t, "call-ended"), 1)
	assert.ErrorIs(t, o.Evict("consultation-99"), app.ErrRoomNotFound)
	o.Wait()
	ms.AssertExpectations(t)
}

func TestPersist_attachesSummary(t *testing.T) {
	o := newOrch()
	ms := &store.MockStore{}
	ms.On("SaveConsultation", mock.Anything, mock.Anything).Return(int64(5), nil).Once()
	ms.On("SetSummary", mock.Anything, int64(5), "all good").Return(nil).Once()
	o.Store = ms
	o.Assistant = &fakeAssistant{summary: "all good"}
	pair(o)
	o.Transcript("d", "consultation-99", "A", "x")
	o.EndCall("d", "consultation-99")
	o.Wait()
	ms.AssertExpectations(t)
}

func TestPersist_emptyTranscriptSkipsSummary(t *testing.T) {
	o := newOrch()
	ms := &store.MockStore{}
	ms.On("SaveConsultation", mock.Anything, mock.Anything).Return(int64(5), nil).Once()
	o.Store = ms
	o.Assistant = &fakeAssistant{summary: "unused"}
	pair(o)
	o.EndCall("d", "consultation-99")
	o.Wait()
	ms.AssertExpectations(t)
	ms.AssertNotCalled(t, "SetSummary", mock.Anything, mock.Anything, mock.Anything)
}

func TestPersist_unpairedEmptyRoomIsNotSaved(t *testing.T) {
	o := newOrch()
	ms := &store.MockStore{}
	o.Store = ms
	connect(o, "d")
	o.JoinRoom("d", "consultation-99", "doctor", "A")
	o.LeaveRoom("d")
	o.Wait()
	ms.AssertNotCalled(t, "SaveConsultation", mock.Anything, mock.Anything)
}

func TestPersist_unpairedRoomWithTranscriptIsSaved(t *testing.T) {
	o := newOrch()
	ms := &store.MockStore{}
	ms.On("SaveConsultation", mock.Anything, mock.MatchedBy(func(c store.Consultation) bool {
		return c.Transcript == "A: note" && c.EndReason == store.ReasonLeft
	})).Return(int64(2), nil).Once()
	o.Store = ms
	connect(o, "d")
	o.JoinRoom("d", "consultation-99", "doctor", "A")
	o.Transcript("d", "consultation-99", "", "note")
	o.LeaveRoom("d")
	o.Wait()
	ms.AssertExpectations(t)
}

func TestRequestAIHints(t *testing.T) {
	o := newOrch()
	o.Assistant = &fakeAssistant{hints: "ask about sleep"}
	d, p := pair(o)
	o.Transcript("p", "consultation-99", "B", "tired")

	o.RequestAIHints("d", "consultation-99", "none")

	assert.Len(t, d.of(t, "ai-hints-processing"), 1)
	assert.JSONEq(t, `{"type":"ai-hints-data","transcript":"B: tired","medicalHistory":"none"}`, d.raw(t, "ai-hints-data"))
	assert.JSONEq(t, `{"type":"ai-hints","hints":"ask about sleep"}`, d.raw(t, "ai-hints"))
	assert.Empty(t, p.of(t, "ai-hints-data"), "only the requester gets hints")
}

func TestRequestAIHints_assistantBusyOrFailing(t *testing.T) {
	o := newOrch()
	a := &fakeAssistant{busy: true}
	o.Assistant = a
	d, _ := pair(o)

	o.RequestAIHints("d", "consultation-99", "")
	a.busy, a.err = false, errors.New("upstream")
	o.RequestAIHints("d", "consultation-99", "")

	errs := d.of(t, "ai-hints-error")
	require.Len(t, errs, 2)
	assert.Equal(t, "busy", errs[0]["error"])
	assert.Equal(t, "ai_hints_failed", errs[1]["error"])

	o.RequestAIHints("d", "elsewhere", "")
	assert.Len(t, d.of(t, "ai-hints-data"), 2)
}

func TestWhoAmI(t *testing.T) {
	o := newOrch()
	p := connect(o, "p")
	o.RegisterPatient("p", "7", "Sam")
	o.JoinRoom("p", "consultation-99", "patient", "Sam")
	o.WhoAmI("p")
	assert.JSONEq(t,
		`{"type":"whoami","connectionId":"p","role":"patient","roomId":"consultation-99","displayName":"Sam","patientId":7}`,
		p.raw(t, "whoami"))
}

func TestBackpressure_kicksOnCriticalFrame(t *testing.T) {
	o := newOrch()
	connect(o, "d")
	slow := &fakeConn{full: true}
	ctx, cancel := context.WithCancel(context.Background())
	o.Connect("p", slow, cancel)

	o.JoinRoom("d", "consultation-1", "doctor", "A")
	o.JoinRoom("p", "consultation-1", "patient", "B")
	assert.Error(t, ctx.Err(), "missing ready-to-call kicks the connection")
}

func TestBackpressure_dropsTranscriptFrames(t *testing.T) {
	o := newOrch()
	d, _ := pair(o)
	ctx, cancel := context.WithCancel(context.Background())
	slow := &fakeConn{full: true}
	o.Connect("p2", slow, cancel)
	o.JoinRoom("p2", "consultation-99", "patient", "B")

	o.Transcript("d", "consultation-99", "A", "x")
	assert.NoError(t, ctx.Err())
	assert.Len(t, d.of(t, "transcript-update"), 1)
}
