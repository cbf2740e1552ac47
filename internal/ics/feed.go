// Package ics renders a group's schedule as an iCalendar feed so coaches
// can subscribe from their own calendar clients.
package ics

import (
	"time"

	scheduledomain "club-planner-go/internal/domain/schedule"
	ical "github.com/arran4/golang-ical"
)

const uidSuffix = "@club-planner"

// BuildGroupCalendar serializes the occurrences into a VCALENDAR. Each
// occurrence becomes one VEVENT keyed by its id; cancelled occurrences
// stay in the feed with STATUS:CANCELLED so subscribed clients drop them.
func BuildGroupCalendar(productID string, occurrences []scheduledomain.Occurrence, now time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)

	for i := range occurrences {
		occurrence := occurrences[i]

		event := cal.AddEvent(occurrence.ID + uidSuffix)
		event.SetDtStampTime(now)
		event.SetStartAt(occurrence.StartsAt)
		event.SetEndAt(occurrence.EndsAt)
		event.SetSummary(summaryFor(occurrence))
		if occurrence.Location != "" {
			event.SetLocation(occurrence.Location)
		}
		if occurrence.Notes != "" {
			event.SetDescription(occurrence.Notes)
		}
		if occurrence.Status == scheduledomain.OccurrenceCancelled {
			event.SetStatus(ical.ObjectStatusCancelled)
		} else {
			event.SetStatus(ical.ObjectStatusConfirmed)
		}
	}

	return cal.Serialize()
}

func summaryFor(occurrence scheduledomain.Occurrence) string {
	if occurrence.Title != "" {
		return occurrence.Title
	}
	return occurrence.ActivityType
}
