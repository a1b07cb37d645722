package api

import (
	"testing"
	"time"
)

func strptr(s string) *string { return &s }

func TestValidateUpdateEvent(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		req     UpdateEventRequest
		wantErr bool
	}{
		{"empty patch", UpdateEventRequest{}, false},
		{"valid title", UpdateEventRequest{Title: strptr("x")}, false},
		{"empty title", UpdateEventRequest{Title: strptr("")}, true},
		{"valid status scheduled", UpdateEventRequest{Status: strptr("scheduled")}, false},
		{"valid status posted", UpdateEventRequest{Status: strptr("posted")}, false},
		{"unknown status", UpdateEventRequest{Status: strptr("paused")}, true},
		{"valid timezone", UpdateEventRequest{Timezone: strptr("Europe/Paris")}, false},
		{"clearing timezone", UpdateEventRequest{Timezone: strptr("")}, false},
		{"bad timezone", UpdateEventRequest{Timezone: strptr("Mars/Olympus")}, true},
		{"valid rule", UpdateEventRequest{RecurrenceRule: strptr("FREQ=DAILY")}, false},
		{"clearing rule", UpdateEventRequest{RecurrenceRule: strptr("")}, false},
		{"bad rule", UpdateEventRequest{RecurrenceRule: strptr("FREQ=SOMETIMES")}, true},
		{"rule anchored at new start", UpdateEventRequest{RecurrenceRule: strptr("FREQ=WEEKLY"), StartAt: &now}, false},
	}

	for _, tc := range cases {
		err := validateUpdateEvent(tc.req)
		if tc.wantErr && err == nil {
			t.Errorf("%s: expected error, got nil", tc.name)
		}
		if !tc.wantErr && err != nil {
			t.Errorf("%s: unexpected error: %v", tc.name, err)
		}
	}
}

func TestValidateCreateEvent_EndAtOptional(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	req := CreateEventRequest{Title: "x", StartAt: now}
	if err := validateCreateEvent(req); err != nil {
		t.Errorf("omitted end_at should validate, got %v", err)
	}

	req.EndAt = now.Add(time.Hour)
	if err := validateCreateEvent(req); err != nil {
		t.Errorf("end after start should validate, got %v", err)
	}

	req.EndAt = now
	if err := validateCreateEvent(req); err == nil {
		t.Error("end_at equal to start_at should fail")
	}
}
