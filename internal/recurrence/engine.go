// Package recurrence evaluates RFC 5545 recurrence rules.
//
// It wraps teambition/rrule-go behind a two-method contract: Parse a rule
// string against an anchor instant, then step through occurrences with
// NextAfter. Malformed input never raises; Parse returns nil.
package recurrence

import (
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// nexter is satisfied by both *rrule.RRule and *rrule.Set.
type nexter interface {
	After(dt time.Time, inc bool) time.Time
}

// Rule is a parsed recurrence rule bound to an anchor instant.
type Rule struct {
	next nexter
}

// Parse parses ruleText anchored at dtstart. It first attempts a strict
// parse with dtstart bound; if the rule string carries its own anchor
// (DTSTART line) that parse fails, so it retries as a self-anchored rule
// set. Returns nil on unrecoverable syntax.
//
// Callers must not pass empty or whitespace-only rule text; that case means
// "no recurrence" and is decided before reaching the engine.
func Parse(ruleText string, dtstart time.Time) *Rule {
	opt, err := rrule.StrToROption(strings.TrimSpace(ruleText))
	if err == nil {
		opt.Dtstart = dtstart
		if r, err := rrule.NewRRule(*opt); err == nil {
			return &Rule{next: r}
		}
	}

	if set, err := rrule.StrToRRuleSet(ruleText); err == nil {
		return &Rule{next: set}
	}

	return nil
}

// NextAfter returns the next occurrence strictly after ref, or at/after ref
// when inclusive is true. The second return is false when the rule's
// occurrences are exhausted (bounded by COUNT or UNTIL).
func (r *Rule) NextAfter(ref time.Time, inclusive bool) (time.Time, bool) {
	t := r.next.After(ref, inclusive)
	if t.IsZero() {
		return time.Time{}, false
	}
	return t, true
}

// Weekday rule helpers used by quick-add output.

// Daily, Weekly, Monthly and Yearly are the canonical one-keyword rules.
const (
	Daily   = "FREQ=DAILY"
	Weekly  = "FREQ=WEEKLY"
	Monthly = "FREQ=MONTHLY"
	Yearly  = "FREQ=YEARLY"
)

var byday = map[time.Weekday]string{
	time.Monday:    "MO",
	time.Tuesday:   "TU",
	time.Wednesday: "WE",
	time.Thursday:  "TH",
	time.Friday:    "FR",
	time.Saturday:  "SA",
	time.Sunday:    "SU",
}

// WeeklyOn returns the rule for a weekly recurrence on the given weekday.
func WeeklyOn(day time.Weekday) string {
	return "FREQ=WEEKLY;BYDAY=" + byday[day]
}
