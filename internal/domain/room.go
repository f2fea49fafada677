package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const RoomPrefix = "consultation-"

type RoomID string

// RoomFor derives the room id both parties compute for an appointment.
func RoomFor(appointment ExternalID) RoomID {
	return RoomID(RoomPrefix + string(appointment))
}

// Appointment recovers the appointment id from a consultation room id.
func (id RoomID) Appointment() (ExternalID, bool) {
	s, ok := strings.CutPrefix(string(id), RoomPrefix)
	if !ok || s == "" {
		return "", false
	}
	return ExternalID(s), true
}

// ExternalID is a durable id owned by the persistence side (patient, appointment).
// Clients send it either as a JSON number or a string; numbers are echoed back as numbers.
// Integral numbers in any notation (7.0, 1e2) are canonicalized; fractions are rejected.
type ExternalID string

func (id *ExternalID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ExternalID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("external id: %w", err)
	}
	v, err := n.Int64()
	if err != nil {
		f, ferr := n.Float64()
		if ferr != nil || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
			return fmt.Errorf("external id %s: not an integer", n)
		}
		v = int64(f)
	}
	*id = ExternalID(strconv.FormatInt(v, 10))
	return nil
}

func (id ExternalID) MarshalJSON() ([]byte, error) {
	if id.numeric() {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id ExternalID) numeric() bool {
	n, err := strconv.ParseInt(string(id), 10, 64)
	return err == nil && strconv.FormatInt(n, 10) == string(id)
}

// TranscriptEntry is one attributed utterance of captioned speech.
type TranscriptEntry struct {
	Speaker   string    `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

func (e TranscriptEntry) Line() string { return e.Speaker + ": " + e.Text }
