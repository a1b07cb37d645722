package api

import (
	"time"

	"agendad/internal/domain"
)

type CreateEventRequest struct {
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Timezone       string     `json:"timezone,omitempty"`
	RecurrenceRule string     `json:"recurrence_rule,omitempty"`
	StartAt        time.Time  `json:"start_at"`
	EndAt          time.Time  `json:"end_at,omitempty"` // default: start_at + 1h
	NextRunAt      *time.Time `json:"next_run_at,omitempty"`
}

type QuickAddRequest struct {
	Text string `json:"text"`
}

// UpdateEventRequest is a partial update; absent fields are left unchanged.
// Editing status/next_run_at inconsistently is the caller's responsibility.
type UpdateEventRequest struct {
	Title          *string    `json:"title,omitempty"`
	Description    *string    `json:"description,omitempty"`
	Timezone       *string    `json:"timezone,omitempty"`
	Status         *string    `json:"status,omitempty"`
	RecurrenceRule *string    `json:"recurrence_rule,omitempty"`
	StartAt        *time.Time `json:"start_at,omitempty"`
	EndAt          *time.Time `json:"end_at,omitempty"`
	NextRunAt      *time.Time `json:"next_run_at,omitempty"`
}

type EventResponse struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Description    string `json:"description,omitempty"`
	Timezone       string `json:"timezone,omitempty"`
	Status         string `json:"status"`
	RecurrenceRule string `json:"recurrence_rule,omitempty"`
	StartAt        string `json:"start_at"`
	EndAt          string `json:"end_at"`
	NextRunAt      string `json:"next_run_at"`
	LastPostedAt   string `json:"last_posted_at,omitempty"`
	PostedAt       string `json:"posted_at,omitempty"`
	CreatedBy      string `json:"created_by"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

type ListEventsResponse struct {
	Events []EventResponse `json:"events"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func toEventResponse(ev domain.Event) EventResponse {
	return EventResponse{
		ID:             ev.ID.String(),
		Title:          ev.Title,
		Description:    ev.Description,
		Timezone:       ev.Timezone,
		Status:         string(ev.Status),
		RecurrenceRule: ev.RecurrenceRule,
		StartAt:        formatTime(ev.StartAt),
		EndAt:          formatTime(ev.EndAt),
		NextRunAt:      formatTime(ev.NextRunAt),
		LastPostedAt:   formatOptionalTime(ev.LastPostedAt),
		PostedAt:       formatOptionalTime(ev.PostedAt),
		CreatedBy:      ev.CreatedBy,
		CreatedAt:      formatTime(ev.CreatedAt),
		UpdatedAt:      formatTime(ev.UpdatedAt),
	}
}

func toEventResponses(events []domain.Event) []EventResponse {
	out := make([]EventResponse, len(events))
	for i, ev := range events {
		out[i] = toEventResponse(ev)
	}
	return out
}
