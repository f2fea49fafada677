package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/dkeye/medassist/internal/domain"
)

var (
	//go:embed schema_postgres.sql
	schemaPostgres string
	//go:embed schema_sqlite.sql
	schemaSQLite string
)

// SQLStore keeps consultations in postgres or sqlite. Queries are written with ? placeholders
// and rebound for postgres.
type SQLStore struct {
	db     *sql.DB
	driver string
}

func OpenSQL(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	s := &SQLStore{db: db, driver: driver}
	if err := s.setup(ctx); err != nil {
		db.Close()
		return nil, err
	}
	log.Info().Str("module", "store").Str("driver", driver).Msg("database ready")
	return s, nil
}

func (s *SQLStore) setup(ctx context.Context) error {
	schema := schemaPostgres
	if s.driver == "sqlite" {
		// one writer; also keeps ":memory:" databases alive across calls
		s.db.SetMaxOpenConns(1)
		if _, err := s.db.ExecContext(ctx, `
			PRAGMA journal_mode = WAL;
			PRAGMA busy_timeout = 5000;
		`); err != nil {
			return fmt.Errorf("configure database: %w", err)
		}
		schema = schemaSQLite
	}
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *SQLStore) rebind(q string) string {
	if s.driver != "postgres" {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) SaveConsultation(ctx context.Context, c Consultation) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, s.rebind(`
		INSERT INTO consultations (appointment_id, room_id, transcript, end_reason, ended_at, summary)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`),
		string(c.AppointmentID), string(c.RoomID), c.Transcript, string(c.EndReason), c.EndedAt.UTC(), c.Summary,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("save consultation: %w", err)
	}
	return id, nil
}

func (s *SQLStore) SetSummary(ctx context.Context, id int64, summary string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE consultations SET summary = ? WHERE id = ?`), summary, id)
	if err != nil {
		return fmt.Errorf("set summary: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) GetConsultation(ctx context.Context, appointment domain.ExternalID) (Consultation, error) {
	var (
		c              Consultation
		appt, room, er string
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, appointment_id, room_id, transcript, end_reason, ended_at, summary
		FROM consultations
		WHERE appointment_id = ?
		ORDER BY id DESC
		LIMIT 1`), string(appointment),
	).Scan(&c.ID, &appt, &room, &c.Transcript, &er, &c.EndedAt, &c.Summary)
	if errors.Is(err, sql.ErrNoRows) {
		return Consultation{}, ErrNotFound
	}
	if err != nil {
		return Consultation{}, fmt.Errorf("get consultation: %w", err)
	}
	c.AppointmentID = domain.ExternalID(appt)
	c.RoomID = domain.RoomID(room)
	c.EndReason = EndReason(er)
	return c, nil
}

func (s *SQLStore) Close() error { return s.db.Close() }
