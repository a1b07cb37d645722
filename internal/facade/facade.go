// Package facade is the authenticated surface through which callers create,
// edit, list and watch events. Every operation takes an explicit principal;
// a nil principal fails with *AuthRequiredError before any store access.
//
// The facade enforces creation-time defaults (status=scheduled, nextRunAt
// falling back to startAt) and rejects malformed recurrence rules. It does
// NOT re-validate the status/nextRunAt invariants on UpdateEvent: a caller
// that hand-edits those fields inconsistently owns the consequences.
package facade

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"agendad/internal/auth"
	"agendad/internal/domain"
	"agendad/internal/recurrence"
)

// Listing bounds for ListUpcoming and SubscribeUpcoming.
const (
	DefaultListLimit = 200
	MaxListLimit     = 500
)

// AuthRequiredError reports a facade call without a resolved principal.
type AuthRequiredError struct {
	Op string
}

func (e *AuthRequiredError) Error() string {
	return "auth required: " + e.Op
}

// ErrInvalidRecurrenceRule rejects create input whose non-empty rule does
// not parse.
var ErrInvalidRecurrenceRule = errors.New("invalid recurrence rule")

// Store is the slice of the event store the facade needs.
type Store interface {
	InsertEvent(ctx context.Context, ev domain.Event) error
	UpdateEvent(ctx context.Context, id uuid.UUID, patch domain.EventPatch) error
	DeleteEvent(ctx context.Context, id uuid.UUID) error
	UpcomingEvents(ctx context.Context, limit int) ([]domain.Event, error)
	EventsForDay(ctx context.Context, owner string, dayStart, dayEnd time.Time) ([]domain.Event, error)
}

// Feed delivers committed store changes for the subscription surface.
type Feed interface {
	Subscribe() (<-chan domain.Change, func())
}

// AddEventInput carries caller-supplied fields for AddEvent.
type AddEventInput struct {
	Title          string
	Description    string
	Timezone       string
	RecurrenceRule string
	StartAt        time.Time
	EndAt          time.Time

	// NextRunAt defaults to StartAt when nil.
	NextRunAt *time.Time
}

type Facade struct {
	store Store
	feed  Feed
	clock func() time.Time
}

func New(store Store, feed Feed) *Facade {
	return &Facade{
		store: store,
		feed:  feed,
		clock: time.Now,
	}
}

// AddEvent creates a scheduled event owned by the principal.
func (f *Facade) AddEvent(ctx context.Context, p *auth.Principal, in AddEventInput) (domain.Event, error) {
	if p == nil {
		return domain.Event{}, &AuthRequiredError{Op: "addEvent"}
	}

	if in.RecurrenceRule != "" {
		if recurrence.Parse(in.RecurrenceRule, in.StartAt) == nil {
			return domain.Event{}, fmt.Errorf("%w: %q", ErrInvalidRecurrenceRule, in.RecurrenceRule)
		}
	}

	nextRunAt := in.StartAt
	if in.NextRunAt != nil {
		nextRunAt = *in.NextRunAt
	}

	now := f.clock().UTC()
	ev := domain.Event{
		ID:             uuid.New(),
		Title:          in.Title,
		Description:    in.Description,
		Timezone:       in.Timezone,
		Status:         domain.EventStatusScheduled,
		RecurrenceRule: in.RecurrenceRule,
		StartAt:        in.StartAt.UTC(),
		EndAt:          in.EndAt.UTC(),
		NextRunAt:      nextRunAt.UTC(),
		CreatedBy:      p.Subject,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := f.store.InsertEvent(ctx, ev); err != nil {
		return domain.Event{}, fmt.Errorf("insert event: %w", err)
	}
	return ev, nil
}

// UpdateEvent merges patch into the event and refreshes updatedAt.
func (f *Facade) UpdateEvent(ctx context.Context, p *auth.Principal, id uuid.UUID, patch domain.EventPatch) error {
	if p == nil {
		return &AuthRequiredError{Op: "updateEvent"}
	}
	return f.store.UpdateEvent(ctx, id, patch)
}

// RemoveEvent deletes the event.
func (f *Facade) RemoveEvent(ctx context.Context, p *auth.Principal, id uuid.UUID) error {
	if p == nil {
		return &AuthRequiredError{Op: "removeEvent"}
	}
	return f.store.DeleteEvent(ctx, id)
}

// ListUpcoming returns events ordered by nextRunAt ascending. max defaults
// to DefaultListLimit and is clamped to MaxListLimit.
func (f *Facade) ListUpcoming(ctx context.Context, p *auth.Principal, max int) ([]domain.Event, error) {
	if p == nil {
		return nil, &AuthRequiredError{Op: "listUpcoming"}
	}
	return f.store.UpcomingEvents(ctx, clampLimit(max))
}

func clampLimit(max int) int {
	switch {
	case max <= 0:
		return DefaultListLimit
	case max > MaxListLimit:
		return MaxListLimit
	}
	return max
}
