package orch

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/medassist/internal/app"
	"github.com/dkeye/medassist/internal/domain"
	"github.com/dkeye/medassist/internal/store"
)

// persist saves a finished consultation in the background and, when an assistant is
// configured, attaches a summary once it arrives. Rooms that never paired and hold no
// transcript are not saved.
func (o *Orchestrator) persist(td app.Teardown, reason store.EndReason) {
	if o.Store == nil {
		return
	}
	if !td.Paired && td.Transcript == "" {
		log.Debug().Str("module", "orch").Str("room", string(td.Room)).Msg("nothing to persist")
		return
	}
	appointment, ok := td.Room.Appointment()
	if !ok {
		appointment = domain.ExternalID(td.Room)
	}
	c := store.Consultation{
		AppointmentID: appointment,
		RoomID:        td.Room,
		Transcript:    td.Transcript,
		EndReason:     reason,
		EndedAt:       time.Now().UTC(),
	}
	o.bg.Go(func() {
		logger := log.With().Str("module", "orch").Str("room", string(td.Room)).Str("reason", string(reason)).Logger()

		ctx, cancel := context.WithTimeout(context.Background(), o.persistTimeout())
		defer cancel()
		id, err := o.Store.SaveConsultation(ctx, c)
		if err != nil {
			logger.Error().Err(err).Msg("persist consultation")
			return
		}
		logger.Info().Int64("consultation", id).Msg("consultation saved")

		if c.Transcript == "" || o.Assistant == nil {
			return
		}
		queued := o.Assistant.Summarize(c.Transcript, func(summary string, err error) {
			if err != nil {
				logger.Error().Err(err).Msg("summarize consultation")
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), o.persistTimeout())
			defer cancel()
			if err := o.Store.SetSummary(ctx, id, summary); err != nil {
				logger.Error().Err(err).Msg("save summary")
			}
		})
		if !queued {
			logger.Warn().Msg("summary skipped")
		}
	})
}

func (o *Orchestrator) persistTimeout() time.Duration {
	if o.PersistTimeout > 0 {
		return o.PersistTimeout
	}
	return defaultPersistTimeout
}
