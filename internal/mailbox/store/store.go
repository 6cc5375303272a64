// Package store defines the append-only event log contract.
package store

import (
	"context"
	"errors"

	"github.com/modkit/mailhub/internal/mailbox/model"
)

// ErrMailStatusNotFound means the log holds no MailDelivered or MailPickedUp
// row yet.  It is deliberately distinct from a connectivity failure: the
// watchdog seeds the alternation from it, and the protocol turns it into a
// "no history yet" error event rather than a server error.
var ErrMailStatusNotFound = errors.New("no mail status recorded")

// EventStore persists events as an append-only log.
//
// WriteEvent silently ignores EventHistory-kind events so a history reply
// can never be replayed into the log it was read from.
type EventStore interface {
	WriteEvent(ctx context.Context, ev model.Event) error

	// AllEvents returns the full log ordered by timestamp.  An empty log
	// yields an empty slice, not an error.  Rows that no longer decode are
	// skipped so one corrupt row cannot poison the whole history.
	AllEvents(ctx context.Context) ([]model.Event, error)

	// LatestMailStatus returns the most recent MailDelivered or MailPickedUp
	// event, or ErrMailStatusNotFound.
	LatestMailStatus(ctx context.Context) (model.Event, error)

	// Reset deletes every row.  Test and maintenance use only; nothing in
	// the serving path deletes from the log.
	Reset(ctx context.Context) error
}
