package domain

import (
	"time"

	"github.com/google/uuid"
)

type EventStatus string

const (
	EventStatusScheduled EventStatus = "scheduled"
	EventStatusPosted    EventStatus = "posted"
)

// Event is a schedulable item with an optional recurrence rule.
//
// While Status is "scheduled", NextRunAt is the instant at which the next
// sweep transition fires. Once Status is "posted" the event is terminal:
// PostedAt is set and NextRunAt is no longer meaningful.
type Event struct {
	ID uuid.UUID

	Title       string
	Description string

	// Timezone is an IANA zone name, or empty for UTC. It anchors
	// recurrence evaluation (e.g. which local weekday a rule fires on).
	Timezone string

	Status EventStatus

	// RecurrenceRule is an RFC 5545 RRULE string; empty means one-shot.
	RecurrenceRule string

	StartAt time.Time
	EndAt   time.Time

	NextRunAt time.Time

	// LastPostedAt records the most recent sweep transition (diagnostic).
	LastPostedAt *time.Time

	// PostedAt is set once, when the event becomes terminally posted.
	PostedAt *time.Time

	CreatedBy string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// EventPatch is a partial update; nil fields are left unchanged.
// UpdatedAt is refreshed by the store on every applied patch.
type EventPatch struct {
	Title          *string
	Description    *string
	Timezone       *string
	Status         *EventStatus
	RecurrenceRule *string
	StartAt        *time.Time
	EndAt          *time.Time
	NextRunAt      *time.Time
	LastPostedAt   *time.Time
	PostedAt       *time.Time
}

// IsZero reports whether the patch would change nothing.
func (p EventPatch) IsZero() bool {
	return p.Title == nil && p.Description == nil && p.Timezone == nil &&
		p.Status == nil && p.RecurrenceRule == nil && p.StartAt == nil &&
		p.EndAt == nil && p.NextRunAt == nil && p.LastPostedAt == nil &&
		p.PostedAt == nil
}
