package ics

import (
	"strings"
	"testing"
	"time"

	scheduledomain "club-planner-go/internal/domain/schedule"
)

func TestBuildGroupCalendar(t *testing.T) {
	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	start := time.Date(2024, time.March, 5, 18, 0, 0, 0, time.UTC)

	occurrences := []scheduledomain.Occurrence{
		{
			ID:           "occ-1",
			ActivityType: scheduledomain.ActivityTraining,
			Title:        "U15 training",
			Location:     "Hall A",
			Notes:        "bring water",
			StartsAt:     start,
			EndsAt:       start.Add(90 * time.Minute),
			Status:       scheduledomain.OccurrenceScheduled,
		},
		{
			ID:           "occ-2",
			ActivityType: scheduledomain.ActivityCamp,
			StartsAt:     start.AddDate(0, 0, 7),
			EndsAt:       start.AddDate(0, 0, 7).Add(90 * time.Minute),
			Status:       scheduledomain.OccurrenceCancelled,
		},
	}

	feed := BuildGroupCalendar("-//club-planner//schedule//EN", occurrences, now)

	if !strings.Contains(feed, "BEGIN:VCALENDAR") || !strings.Contains(feed, "END:VCALENDAR") {
		t.Fatal("feed is not a VCALENDAR")
	}
	if !strings.Contains(feed, "UID:occ-1@club-planner") {
		t.Error("event uid missing")
	}
	if !strings.Contains(feed, "SUMMARY:U15 training") {
		t.Error("title should become the summary")
	}
	if !strings.Contains(feed, "LOCATION:Hall A") {
		t.Error("location missing")
	}
	if !strings.Contains(feed, "SUMMARY:camp") {
		t.Error("untitled events fall back to the activity type")
	}
	if !strings.Contains(feed, "STATUS:CANCELLED") {
		t.Error("cancelled occurrences must carry STATUS:CANCELLED")
	}
	if !strings.Contains(feed, "STATUS:CONFIRMED") {
		t.Error("scheduled occurrences must carry STATUS:CONFIRMED")
	}
	if strings.Count(feed, "BEGIN:VEVENT") != 2 {
		t.Errorf("expected 2 events, got %d", strings.Count(feed, "BEGIN:VEVENT"))
	}
}

func TestBuildGroupCalendarEmpty(t *testing.T) {
	feed := BuildGroupCalendar("-//club-planner//schedule//EN", nil, time.Now())
	if !strings.Contains(feed, "BEGIN:VCALENDAR") {
		t.Fatal("empty feed must still be a valid calendar")
	}
	if strings.Contains(feed, "BEGIN:VEVENT") {
		t.Fatal("empty schedule must produce no events")
	}
}
