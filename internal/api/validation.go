package api

import (
	"fmt"
	"time"

	"agendad/internal/recurrence"
)

func validateCreateEvent(req CreateEventRequest) error {
	if req.Title == "" {
		return fmt.Errorf("title is required")
	}

	if req.StartAt.IsZero() {
		return fmt.Errorf("start_at is required")
	}

	if !req.EndAt.IsZero() && !req.EndAt.After(req.StartAt) {
		return fmt.Errorf("end_at must be after start_at")
	}

	if req.Timezone != "" {
		if err := validateTimezone(req.Timezone); err != nil {
			return fmt.Errorf("invalid timezone: %w", err)
		}
	}

	if req.RecurrenceRule != "" {
		if recurrence.Parse(req.RecurrenceRule, req.StartAt) == nil {
			return fmt.Errorf("invalid recurrence_rule: %q", req.RecurrenceRule)
		}
	}

	return nil
}

func validateUpdateEvent(req UpdateEventRequest) error {
	if req.Title != nil && *req.Title == "" {
		return fmt.Errorf("title must not be empty")
	}

	if req.Timezone != nil && *req.Timezone != "" {
		if err := validateTimezone(*req.Timezone); err != nil {
			return fmt.Errorf("invalid timezone: %w", err)
		}
	}

	if req.Status != nil && *req.Status != "scheduled" && *req.Status != "posted" {
		return fmt.Errorf("status must be 'scheduled' or 'posted', got %q", *req.Status)
	}

	if req.RecurrenceRule != nil && *req.RecurrenceRule != "" {
		anchor := time.Now().UTC()
		if req.StartAt != nil {
			anchor = *req.StartAt
		}
		if recurrence.Parse(*req.RecurrenceRule, anchor) == nil {
			return fmt.Errorf("invalid recurrence_rule: %q", *req.RecurrenceRule)
		}
	}

	return nil
}

func validateTimezone(tz string) error {
	_, err := time.LoadLocation(tz)
	return err
}
