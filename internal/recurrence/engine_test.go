package recurrence

import (
	"testing"
	"time"
)

var anchor = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC) // a Monday

func TestParse_Daily(t *testing.T) {
	rule := Parse(Daily, anchor)
	if rule == nil {
		t.Fatal("Parse returned nil for a valid rule")
	}

	next, ok := rule.NextAfter(anchor, false)
	if !ok {
		t.Fatal("NextAfter reported exhaustion")
	}

	want := anchor.Add(24 * time.Hour)
	if !next.Equal(want) {
		t.Errorf("NextAfter = %v, want %v", next, want)
	}
}

func TestParse_WeeklyOnMonday(t *testing.T) {
	rule := Parse(WeeklyOn(time.Monday), anchor)
	if rule == nil {
		t.Fatal("Parse returned nil for a valid rule")
	}

	next, ok := rule.NextAfter(anchor, false)
	if !ok {
		t.Fatal("NextAfter reported exhaustion")
	}

	want := anchor.AddDate(0, 0, 7)
	if !next.Equal(want) {
		t.Errorf("NextAfter = %v, want next Monday %v", next, want)
	}
	if next.Weekday() != time.Monday {
		t.Errorf("NextAfter landed on %v, want Monday", next.Weekday())
	}
}

func TestNextAfter_Inclusive(t *testing.T) {
	rule := Parse(Daily, anchor)
	if rule == nil {
		t.Fatal("Parse returned nil")
	}

	next, ok := rule.NextAfter(anchor, true)
	if !ok {
		t.Fatal("NextAfter reported exhaustion")
	}
	if !next.Equal(anchor) {
		t.Errorf("inclusive NextAfter = %v, want anchor %v", next, anchor)
	}
}

func TestNextAfter_ExhaustedByCount(t *testing.T) {
	rule := Parse("FREQ=DAILY;COUNT=2", anchor)
	if rule == nil {
		t.Fatal("Parse returned nil")
	}

	// Occurrences are the anchor and the next day; after that, nothing.
	afterLast := anchor.Add(48 * time.Hour)
	if _, ok := rule.NextAfter(afterLast, false); ok {
		t.Error("NextAfter should report exhaustion past COUNT")
	}
}

func TestNextAfter_ExhaustedByUntil(t *testing.T) {
	rule := Parse("FREQ=DAILY;UNTIL=20240117T100000Z", anchor)
	if rule == nil {
		t.Fatal("Parse returned nil")
	}

	if _, ok := rule.NextAfter(anchor.AddDate(0, 0, 10), false); ok {
		t.Error("NextAfter should report exhaustion past UNTIL")
	}
}

func TestParse_SelfAnchoredRuleSet(t *testing.T) {
	text := "DTSTART:20240115T100000Z\nRRULE:FREQ=DAILY"

	rule := Parse(text, time.Time{})
	if rule == nil {
		t.Fatal("Parse returned nil for a DTSTART-carrying rule")
	}

	next, ok := rule.NextAfter(anchor, false)
	if !ok {
		t.Fatal("NextAfter reported exhaustion")
	}
	want := anchor.Add(24 * time.Hour)
	if !next.Equal(want) {
		t.Errorf("NextAfter = %v, want %v", next, want)
	}
}

func TestParse_Malformed(t *testing.T) {
	for _, text := range []string{
		"FREQ=SOMETIMES",
		"not a rule at all",
		"FREQ=",
	} {
		if rule := Parse(text, anchor); rule != nil {
			t.Errorf("Parse(%q) = %v, want nil", text, rule)
		}
	}
}

func TestWeeklyOn(t *testing.T) {
	cases := map[time.Weekday]string{
		time.Monday: "FREQ=WEEKLY;BYDAY=MO",
		time.Friday: "FREQ=WEEKLY;BYDAY=FR",
		time.Sunday: "FREQ=WEEKLY;BYDAY=SU",
	}
	for day, want := range cases {
		if got := WeeklyOn(day); got != want {
			t.Errorf("WeeklyOn(%v) = %q, want %q", day, got, want)
		}
	}
}
