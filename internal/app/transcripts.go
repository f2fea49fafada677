package app

import (
	"errors"
	"strings"

	"github.com/dkeye/medassist/internal/core"
	"github.com/dkeye/medassist/internal/domain"
	"github.com/rs/zerolog/log"
)

var (
	ErrEmptyFragment    = errors.New("empty transcript fragment")
	ErrTranscriptClosed = errors.New("transcript closed")
)

// Transcripts appends caption fragments to rooms. It reads membership from the room table
// but never mutates it.
type Transcripts struct {
	Rooms *RoomManager
}

// Append adds text to room id on behalf of from. An empty speaker falls back to the sender's
// display name. deliver receives the entry and the room's current occupants; it runs under the
// table read lock and the transcript lock and must not block.
func (t *Transcripts) Append(
	id domain.RoomID,
	from domain.ConnID,
	speaker, text string,
	deliver func(domain.TranscriptEntry, []domain.Participant),
) (domain.TranscriptEntry, error) {
	if strings.TrimSpace(text) == "" {
		return domain.TranscriptEntry{}, ErrEmptyFragment
	}
	speaker = strings.TrimSpace(speaker)

	var (
		entry domain.TranscriptEntry
		err   error
	)
	found := t.Rooms.Read(id, func(room *core.Room) {
		sender, ok := room.Holder(from)
		if !ok {
			err = ErrNotInRoom
			return
		}
		if speaker == "" {
			speaker = sender.DisplayName
		}
		var appended bool
		entry, appended = room.Transcript().Append(speaker, text, func(e domain.TranscriptEntry) {
			if deliver != nil {
				deliver(e, room.Occupants())
			}
		})
		if !appended {
			err = ErrTranscriptClosed
		}
	})
	if !found {
		return domain.TranscriptEntry{}, ErrRoomNotFound
	}
	if err != nil {
		return domain.TranscriptEntry{}, err
	}
	log.Debug().Str("module", "app.transcripts").Str("room", string(id)).Str("speaker", speaker).Msg("appended")
	return entry, nil
}

// Snapshot returns the room's transcript text.
func (t *Transcripts) Snapshot(id domain.RoomID) (string, error) {
	view, ok := t.Rooms.Lookup(id)
	if !ok {
		return "", ErrRoomNotFound
	}
	return view.Transcript.Snapshot(), nil
}
