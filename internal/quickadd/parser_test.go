package quickadd

import (
	"errors"
	"testing"
	"time"

	"agendad/internal/recurrence"
)

// Monday, 10:00 UTC.
var monday = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

func TestParse_TomorrowAtThree(t *testing.T) {
	p := NewParser()

	intent, err := p.Parse("team meeting tomorrow at 3pm", monday)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	want := time.Date(2024, 1, 16, 15, 0, 0, 0, time.UTC)
	if !intent.StartAt.Equal(want) {
		t.Errorf("StartAt = %v, want %v", intent.StartAt, want)
	}
	if !intent.EndAt.Equal(want.Add(time.Hour)) {
		t.Errorf("EndAt = %v, want start+1h", intent.EndAt)
	}
	if intent.RecurrenceRule != "" {
		t.Errorf("RecurrenceRule = %q, want empty for one-shot text", intent.RecurrenceRule)
	}
	if intent.Title != "team meeting tomorrow at 3pm" {
		t.Errorf("Title = %q, want the verbatim input", intent.Title)
	}
	if !intent.NextRunAt.Equal(intent.StartAt) {
		t.Errorf("NextRunAt = %v, want StartAt %v", intent.NextRunAt, intent.StartAt)
	}
}

func TestParse_EveryMonday(t *testing.T) {
	p := NewParser()

	intent, err := p.Parse("standup every monday", monday)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if intent.RecurrenceRule != recurrence.WeeklyOn(time.Monday) {
		t.Errorf("RecurrenceRule = %q, want %q", intent.RecurrenceRule, recurrence.WeeklyOn(time.Monday))
	}
	if intent.StartAt.Before(monday) {
		t.Errorf("StartAt = %v is in the past (now=%v)", intent.StartAt, monday)
	}
	if intent.StartAt.Weekday() != time.Monday {
		t.Errorf("StartAt landed on %v, want Monday", intent.StartAt.Weekday())
	}
}

func TestParse_NoDateFound(t *testing.T) {
	p := NewParser()

	_, err := p.Parse("hello world", monday)
	if err == nil {
		t.Fatal("Parse should fail for text with no date")
	}

	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("error = %T, want *ParseError", err)
	}
	if parseErr.Input != "hello world" {
		t.Errorf("ParseError.Input = %q, want the original text", parseErr.Input)
	}
}

func TestParse_ForwardBias(t *testing.T) {
	p := NewParser()

	// "9am" on a 10:00 now resolves behind the clock; it must roll forward,
	// never schedule in the past.
	intent, err := p.Parse("standup daily at 9am", monday)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if intent.StartAt.Before(monday) {
		t.Errorf("StartAt = %v is in the past (now=%v)", intent.StartAt, monday)
	}
	if intent.RecurrenceRule != recurrence.Daily {
		t.Errorf("RecurrenceRule = %q, want %q", intent.RecurrenceRule, recurrence.Daily)
	}
	if got := intent.StartAt.Hour(); got != 9 {
		t.Errorf("StartAt hour = %d, want the resolved clock time 9", got)
	}
}

func TestDetectRecurrence(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"water plants daily", recurrence.Daily},
		{"take out trash every day", recurrence.Daily},
		{"review weekly", recurrence.Weekly},
		{"sync every week", recurrence.Weekly},
		{"pay rent monthly", recurrence.Monthly},
		{"report every month", recurrence.Monthly},
		{"renew domain yearly", recurrence.Yearly},
		{"insurance every year", recurrence.Yearly},
		{"checkup annually", recurrence.Yearly},
		{"standup every monday", recurrence.WeeklyOn(time.Monday)},
		{"gym every friday", recurrence.WeeklyOn(time.Friday)},
		{"one-off meeting", ""},
	}

	for _, tc := range cases {
		if got := detectRecurrence(tc.text); got != tc.want {
			t.Errorf("detectRecurrence(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}

func TestDetectRecurrence_Precedence(t *testing.T) {
	// Several cues present: the first class in the fixed order wins.
	cases := []struct {
		text string
		want string
	}{
		{"sync daily and every monday", recurrence.Daily},
		{"review weekly every month", recurrence.Weekly},
		{"report monthly or every year", recurrence.Monthly},
	}

	for _, tc := range cases {
		if got := detectRecurrence(tc.text); got != tc.want {
			t.Errorf("detectRecurrence(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}

func TestForwardBias_WeeklyStepsWholeWeeks(t *testing.T) {
	// Resolved to last Monday; a weekly-on-Monday rule must land on a
	// Monday at or after now.
	start := monday.AddDate(0, 0, -7)

	got := forwardBias(start, monday, recurrence.WeeklyOn(time.Monday))
	if got.Before(monday) {
		t.Errorf("forwardBias = %v is before now %v", got, monday)
	}
	if got.Weekday() != time.Monday {
		t.Errorf("forwardBias landed on %v, want Monday", got.Weekday())
	}
}

func TestForwardBias_FutureUntouched(t *testing.T) {
	start := monday.Add(2 * time.Hour)
	if got := forwardBias(start, monday, ""); !got.Equal(start) {
		t.Errorf("forwardBias moved a future start: %v -> %v", start, got)
	}
}
