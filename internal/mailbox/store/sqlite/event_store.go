// Package sqlite implements the event log on SQLite via the serialized
// write worker.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	dbpkg "github.com/modkit/mailhub/internal/db"
	"github.com/modkit/mailhub/internal/mailbox/model"
	"github.com/modkit/mailhub/internal/mailbox/store"
)

type EventStore struct {
	conn   *sql.DB
	writer *dbpkg.Worker
	logger zerolog.Logger
}

func NewEventStore(conn *sql.DB, writer *dbpkg.Worker, logger zerolog.Logger) *EventStore {
	return &EventStore{
		conn:   conn,
		writer: writer,
		logger: logger.With().Str("component", "event_store").Logger(),
	}
}

// WriteEvent appends one row.  EventHistory-kind events are dropped on
// purpose: persisting a history reply would replay copies of the log back
// into itself on the next read.
func (s *EventStore) WriteEvent(ctx context.Context, ev model.Event) error {
	if ev.Kind == model.KindEventHistory {
		return nil
	}
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("WriteEvent validate: %w", err)
	}

	var device any
	if ev.Device != nil {
		device = string(*ev.Device)
	}

	var data any
	if ev.Data != nil {
		b, err := json.Marshal(ev.Data)
		if err != nil {
			return fmt.Errorf("WriteEvent marshal bundle: %w", err)
		}
		data = string(b)
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO events(kind, timestamp, device, data)
VALUES (?, ?, ?, ?);
`, string(ev.Kind), ev.Timestamp, device, data); err != nil {
			return fmt.Errorf("WriteEvent insert: %w", err)
		}
		return nil
	})
}

// AllEvents scans the whole log in timestamp order.  A row that no longer
// decodes is logged with its rowid and skipped, so one corrupt row cannot
// make the rest of the history unreadable.
func (s *EventStore) AllEvents(ctx context.Context) ([]model.Event, error) {
	rows, err := s.conn.QueryContext(ctx, `
SELECT id, kind, timestamp, device, data
FROM events
ORDER BY timestamp ASC, id ASC;
`)
	if err != nil {
		return nil, fmt.Errorf("AllEvents query: %w", err)
	}
	defer rows.Close()

	events := make([]model.Event, 0)
	for rows.Next() {
		var (
			id     int64
			kind   string
			ts     int64
			device sql.NullString
			data   sql.NullString
		)
		if err := rows.Scan(&id, &kind, &ts, &device, &data); err != nil {
			return nil, fmt.Errorf("AllEvents scan: %w", err)
		}

		ev, err := decodeRow(kind, ts, device, data)
		if err != nil {
			s.logger.Warn().Int64("rowid", id).Err(err).Msg("skipping undecodable event row")
			continue
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("AllEvents rows: %w", err)
	}
	return events, nil
}

// LatestMailStatus returns the newest MailDelivered or MailPickedUp event.
func (s *EventStore) LatestMailStatus(ctx context.Context) (model.Event, error) {
	var (
		kind   string
		ts     int64
		device sql.NullString
		data   sql.NullString
	)
	err := s.conn.QueryRowContext(ctx, `
SELECT kind, timestamp, device, data
FROM events
WHERE kind IN (?, ?)
ORDER BY timestamp DESC, id DESC
LIMIT 1;
`, string(model.KindMailDelivered), string(model.KindMailPickedUp)).
		Scan(&kind, &ts, &device, &data)

	if err == sql.ErrNoRows {
		return model.Event{}, store.ErrMailStatusNotFound
	}
	if err != nil {
		return model.Event{}, fmt.Errorf("LatestMailStatus query: %w", err)
	}

	ev, err := decodeRow(kind, ts, device, data)
	if err != nil {
		return model.Event{}, fmt.Errorf("LatestMailStatus decode: %w", err)
	}
	return ev, nil
}

// Reset wipes the log.  Test and maintenance use only.
func (s *EventStore) Reset(ctx context.Context) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM events;`); err != nil {
			return fmt.Errorf("Reset: %w", err)
		}
		return nil
	})
}

func decodeRow(kind string, ts int64, device, data sql.NullString) (model.Event, error) {
	k, err := model.ParseEventKind(kind)
	if err != nil {
		return model.Event{}, err
	}

	ev := model.Event{Kind: k, Timestamp: ts}

	if device.Valid {
		d, err := model.ParseDeviceType(device.String)
		if err != nil {
			return model.Event{}, err
		}
		ev.Device = &d
	}

	if data.Valid {
		var b model.Bundle
		if err := json.Unmarshal([]byte(data.String), &b); err != nil {
			return model.Event{}, &model.DecodeError{Field: "data", Msg: err.Error(), Err: err}
		}
		if err := b.Validate(); err != nil {
			return model.Event{}, err
		}
		ev.Data = &b
	}

	return ev, nil
}

var _ store.EventStore = (*EventStore)(nil)
