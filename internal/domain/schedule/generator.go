package schedule

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

// GenerationCap is the hard ceiling on slots produced by a single
// generation run. It protects storage and clients from unbounded
// materialization of long-running rules.
const GenerationCap = 80

// GenerateSlots expands a rule into ordered (start, end) slots inside
// [rangeStart, rangeEnd]. The first slot falls on the first date on/after
// max(rule.StartDate, rangeStart) matching the rule's weekday; subsequent
// slots step by IntervalWeeks. Pure: identical inputs always produce
// identical output.
//
// Zero produced slots is reported as ErrNoOccurrences so callers treat it
// as a validation failure rather than a silent success.
func GenerateSlots(rule RecurrenceRule, rangeStart, rangeEnd time.Time, limit int) ([]Slot, error) {
	if rule.IntervalWeeks < 1 {
		return nil, fmt.Errorf("%w: interval weeks must be at least 1", ErrValidation)
	}
	if rule.Weekday < 0 || rule.Weekday > 6 {
		return nil, fmt.Errorf("%w: weekday must be between 0 and 6", ErrValidation)
	}
	if rule.DurationMinutes <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", ErrValidation)
	}
	hour, minute, err := ParseTimeOfDay(rule.TimeOfDay)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > GenerationCap {
		limit = GenerationCap
	}

	loc := rule.StartDate.Location()

	from := dateOf(rule.StartDate)
	if rs := dateOf(rangeStart.In(loc)); rs.After(from) {
		from = rs
	}
	until := dateOf(rule.EndDate.In(loc))
	if !rangeEnd.IsZero() {
		if re := dateOf(rangeEnd.In(loc)); re.Before(until) {
			until = re
		}
	}

	offset := (rule.Weekday - int(from.Weekday()) + 7) % 7
	firstDay := from.AddDate(0, 0, offset)
	if firstDay.After(until) {
		return nil, ErrNoOccurrences
	}

	dtstart := time.Date(firstDay.Year(), firstDay.Month(), firstDay.Day(), hour, minute, 0, 0, loc)
	untilAt := time.Date(until.Year(), until.Month(), until.Day(), hour, minute, 0, 0, loc)

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:     rrule.WEEKLY,
		Interval: rule.IntervalWeeks,
		Dtstart:  dtstart,
		Until:    untilAt,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	starts := r.All()
	if len(starts) == 0 {
		return nil, ErrNoOccurrences
	}
	if len(starts) > limit {
		starts = starts[:limit]
	}

	duration := time.Duration(rule.DurationMinutes) * time.Minute
	slots := make([]Slot, 0, len(starts))
	for _, start := range starts {
		slots = append(slots, Slot{StartsAt: start, EndsAt: start.Add(duration)})
	}

	return slots, nil
}

// ParseTimeOfDay parses a "HH:MM" wall-clock value.
func ParseTimeOfDay(value string) (hour, minute int, err error) {
	parsed, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: invalid time of day %q", ErrValidation, value)
	}
	return parsed.Hour(), parsed.Minute(), nil
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
