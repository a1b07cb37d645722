// Package quickadd converts free text into a structured scheduling intent.
//
// The date/time anchor is extracted by the olebedev/when natural-language
// resolver and biased toward the future: an expression that resolves to an
// instant in the past is rolled forward, never left behind "now". Recurrence
// is detected from a fixed-precedence keyword scan. Text with no resolvable
// date/time yields a *ParseError, never a panic and never a guess.
package quickadd

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"agendad/internal/recurrence"
)

// DefaultDuration is the event length applied when the text does not
// specify an end.
const DefaultDuration = time.Hour

// Intent is the structured result of parsing quick-add text.
type Intent struct {
	Title       string
	Description string
	Timezone    string

	StartAt time.Time
	EndAt   time.Time

	// RecurrenceRule is empty for one-shot intents.
	RecurrenceRule string

	NextRunAt time.Time
}

// ParseError reports quick-add text with no resolvable date or time.
// It is a user-facing condition, not a fault.
type ParseError struct {
	Input string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("no date or time found in %q", e.Input)
}

// Parser parses quick-add text. Safe for concurrent use.
type Parser struct {
	w *when.Parser
}

func NewParser() *Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return &Parser{w: w}
}

// Parse extracts a scheduling intent from text, resolving relative
// expressions against now. The title deliberately keeps the full input,
// including the recognized date and recurrence phrases.
func (p *Parser) Parse(text string, now time.Time) (Intent, error) {
	r, err := p.w.Parse(text, now)
	if err != nil || r == nil {
		return Intent{}, &ParseError{Input: text}
	}

	rule := detectRecurrence(text)

	start := forwardBias(r.Time, now, rule)
	end := start.Add(DefaultDuration)

	return Intent{
		Title:          text,
		Description:    "",
		Timezone:       start.Location().String(),
		StartAt:        start,
		EndAt:          end,
		RecurrenceRule: rule,
		NextRunAt:      start,
	}, nil
}

var weekdayNames = map[string]time.Weekday{
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sunday":    time.Sunday,
}

// detectRecurrence scans text for recurrence keywords. The precedence is
// fixed: daily, weekly, monthly, yearly, then "every <weekday>"; the first
// matching class wins even when the text contains several cues.
func detectRecurrence(text string) string {
	t := strings.ToLower(text)

	switch {
	case strings.Contains(t, "daily"), strings.Contains(t, "every day"):
		return recurrence.Daily
	case strings.Contains(t, "weekly"), strings.Contains(t, "every week"):
		return recurrence.Weekly
	case strings.Contains(t, "monthly"), strings.Contains(t, "every month"):
		return recurrence.Monthly
	case strings.Contains(t, "yearly"), strings.Contains(t, "every year"), strings.Contains(t, "annually"):
		return recurrence.Yearly
	}

	for name, day := range weekdayNames {
		if strings.Contains(t, "every "+name) {
			return recurrence.WeeklyOn(day)
		}
	}

	return ""
}

// forwardBias rolls a resolved start that landed in the past forward to the
// next plausible instant at or after now. Weekly-on-weekday intents jump to
// the next matching weekday; everything else advances day by day, keeping
// the resolved clock time.
func forwardBias(start, now time.Time, rule string) time.Time {
	if !start.Before(now) {
		return start
	}

	// A weekly-on-weekday anchor is already on the right weekday, so it
	// advances in whole weeks; anything else advances day by day.
	step := 24 * time.Hour
	if strings.HasPrefix(rule, "FREQ=WEEKLY;BYDAY=") {
		step = 7 * 24 * time.Hour
	}

	// Bounded: a resolved anchor is never more than a year behind now.
	for i := 0; i < 366 && start.Before(now); i++ {
		start = start.Add(step)
	}
	return start
}
