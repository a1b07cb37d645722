// Package postgres implements the event store on PostgreSQL.
//
// Point transactions are SELECT ... FOR UPDATE followed by a full-row
// UPDATE; committed mutations are published to the change feed so facade
// subscriptions can re-query.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"agendad/internal/domain"
	"agendad/internal/facade"
	"agendad/internal/sweep"
)

// Feed receives committed changes. Satisfied by changefeed.Feed.
type Feed interface {
	Publish(change domain.Change)
}

// Store implements sweep.Store and facade.Store using PostgreSQL.
type Store struct {
	db        *sql.DB
	opTimeout time.Duration
	feed      Feed
}

// New creates a store. opTimeout bounds each database operation; zero
// disables the bound.
func New(db *sql.DB, opTimeout time.Duration) *Store {
	return &Store{db: db, opTimeout: opTimeout}
}

// WithFeed attaches a change feed; committed mutations are published to it.
func (s *Store) WithFeed(feed Feed) *Store {
	s.feed = feed
	return s
}

// EnsureSchema creates the events table and its indexes if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

func (s *Store) publish(kind domain.ChangeKind, ev domain.Event) {
	if s.feed != nil {
		s.feed.Publish(domain.Change{Kind: kind, Event: ev})
	}
}

// InsertEvent stores a new event and publishes a created change.
func (s *Store) InsertEvent(ctx context.Context, ev domain.Event) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, queryInsertEvent,
		ev.ID,
		ev.Title,
		ev.Description,
		ev.Timezone,
		string(ev.Status),
		ev.RecurrenceRule,
		ev.StartAt,
		ev.EndAt,
		ev.NextRunAt,
		ev.LastPostedAt,
		ev.PostedAt,
		ev.CreatedBy,
		ev.CreatedAt,
		ev.UpdatedAt,
	)
	if err != nil {
		return classify(err)
	}

	s.publish(domain.ChangeKindCreated, ev)
	return nil
}

// UpdateEvent merges patch into the stored event inside a row transaction
// and publishes the updated state.
func (s *Store) UpdateEvent(ctx context.Context, id uuid.UUID, patch domain.EventPatch) error {
	var updated domain.Event

	err := s.inRowTx(ctx, id, func(ctx context.Context, tx *sql.Tx, cur domain.Event) (bool, error) {
		applyPatch(&cur, patch, time.Now().UTC())
		if err := writeEvent(ctx, tx, cur); err != nil {
			return false, err
		}
		updated = cur
		return true, nil
	})
	if err != nil {
		return err
	}

	s.publish(domain.ChangeKindUpdated, updated)
	return nil
}

// DeleteEvent removes the event and publishes a deleted change carrying its
// last committed state.
func (s *Store) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	var deleted domain.Event

	err := s.inRowTx(ctx, id, func(ctx context.Context, tx *sql.Tx, cur domain.Event) (bool, error) {
		if _, err := tx.ExecContext(ctx, queryDeleteEvent, id); err != nil {
			return false, err
		}
		deleted = cur
		return true, nil
	})
	if err != nil {
		return err
	}

	s.publish(domain.ChangeKindDeleted, deleted)
	return nil
}

// DueEvents returns up to limit scheduled events with next_run_at <= now.
func (s *Store) DueEvents(ctx context.Context, now time.Time, limit int) ([]domain.Event, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, queryDueEvents, now, limit)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// UpcomingEvents returns scheduled events ordered by next_run_at ascending.
func (s *Store) UpcomingEvents(ctx context.Context, limit int) ([]domain.Event, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, queryUpcomingEvents, limit)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// EventsForDay returns the owner's events with start_at in [dayStart, dayEnd).
func (s *Store) EventsForDay(ctx context.Context, owner string, dayStart, dayEnd time.Time) ([]domain.Event, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, queryEventsForDay, owner, dayStart, dayEnd)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// AdvanceEvent re-reads the event under a row lock and applies the patch
// decide returns, if any. Returns domain.ErrEventNotFound when the record
// is gone.
func (s *Store) AdvanceEvent(ctx context.Context, id uuid.UUID, decide func(domain.Event) (domain.EventPatch, bool)) (bool, error) {
	var (
		applied bool
		updated domain.Event
	)

	err := s.inRowTx(ctx, id, func(ctx context.Context, tx *sql.Tx, cur domain.Event) (bool, error) {
		patch, apply := decide(cur)
		if !apply {
			return false, nil
		}

		applyPatch(&cur, patch, time.Now().UTC())
		if err := writeEvent(ctx, tx, cur); err != nil {
			return false, err
		}

		applied = true
		updated = cur
		return true, nil
	})
	if err != nil {
		return false, err
	}

	if applied {
		s.publish(domain.ChangeKindUpdated, updated)
	}
	return applied, nil
}

// inRowTx runs fn against the row-locked current state of one event.
// fn returns commit=true to commit; false rolls back without error.
func (s *Store) inRowTx(ctx context.Context, id uuid.UUID, fn func(ctx context.Context, tx *sql.Tx, cur domain.Event) (bool, error)) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	defer tx.Rollback()

	cur, err := scanEvent(tx.QueryRowContext(ctx, queryGetEventForUpdate, id))
	if err == sql.ErrNoRows {
		return domain.ErrEventNotFound
	}
	if err != nil {
		return classify(err)
	}

	commit, err := fn(ctx, tx, cur)
	if err != nil {
		return classify(err)
	}
	if !commit {
		return nil
	}

	if err := tx.Commit(); err != nil {
		return classify(err)
	}
	return nil
}

func writeEvent(ctx context.Context, tx *sql.Tx, ev domain.Event) error {
	_, err := tx.ExecContext(ctx, queryUpdateEvent,
		ev.ID,
		ev.Title,
		ev.Description,
		ev.Timezone,
		string(ev.Status),
		ev.RecurrenceRule,
		ev.StartAt,
		ev.EndAt,
		ev.NextRunAt,
		ev.LastPostedAt,
		ev.PostedAt,
		ev.UpdatedAt,
	)
	return err
}

// applyPatch merges non-nil patch fields into ev and refreshes UpdatedAt.
func applyPatch(ev *domain.Event, p domain.EventPatch, now time.Time) {
	if p.Title != nil {
		ev.Title = *p.Title
	}
	if p.Description != nil {
		ev.Description = *p.Description
	}
	if p.Timezone != nil {
		ev.Timezone = *p.Timezone
	}
	if p.Status != nil {
		ev.Status = *p.Status
	}
	if p.RecurrenceRule != nil {
		ev.RecurrenceRule = *p.RecurrenceRule
	}
	if p.StartAt != nil {
		ev.StartAt = *p.StartAt
	}
	if p.EndAt != nil {
		ev.EndAt = *p.EndAt
	}
	if p.NextRunAt != nil {
		ev.NextRunAt = *p.NextRunAt
	}
	if p.LastPostedAt != nil {
		ev.LastPostedAt = p.LastPostedAt
	}
	if p.PostedAt != nil {
		ev.PostedAt = p.PostedAt
	}
	ev.UpdatedAt = now
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (domain.Event, error) {
	var (
		ev           domain.Event
		status       string
		lastPostedAt sql.NullTime
		postedAt     sql.NullTime
	)

	err := row.Scan(
		&ev.ID,
		&ev.Title,
		&ev.Description,
		&ev.Timezone,
		&status,
		&ev.RecurrenceRule,
		&ev.StartAt,
		&ev.EndAt,
		&ev.NextRunAt,
		&lastPostedAt,
		&postedAt,
		&ev.CreatedBy,
		&ev.CreatedAt,
		&ev.UpdatedAt,
	)
	if err != nil {
		return domain.Event{}, err
	}

	ev.Status = domain.EventStatus(status)
	if lastPostedAt.Valid {
		t := lastPostedAt.Time
		ev.LastPostedAt = &t
	}
	if postedAt.Valid {
		t := postedAt.Time
		ev.PostedAt = &t
	}
	return ev, nil
}

func scanEvents(rows *sql.Rows) ([]domain.Event, error) {
	var result []domain.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return result, nil
}

// classify wraps schema-level failures (missing table/index) in
// domain.StoreConfigError; everything else passes through untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "42P01") || strings.Contains(msg, "does not exist") {
		return &domain.StoreConfigError{Err: err}
	}
	return err
}

// Compile-time interface assertions
var (
	_ sweep.Store  = (*Store)(nil)
	_ facade.Store = (*Store)(nil)
)
