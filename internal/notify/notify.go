// Package notify defines the facts the scheduling core emits for the
// notification dispatcher. The core supplies structured data only;
// rendering and delivery belong to the surrounding application.
package notify

import (
	"context"
	"time"

	"club-planner-go/pkg/logger"
	"github.com/google/uuid"
)

type Dispatcher interface {
	ScheduleChanged(ctx context.Context, event ScheduleChangedEvent)
	RosterChanged(ctx context.Context, event RosterChangedEvent)
	OccurrenceDeleted(ctx context.Context, event OccurrenceDeletedEvent)
}

type ScheduleChangedEvent struct {
	EventID       string
	GroupID       string
	RuleID        string
	OldStart      time.Time
	OldEnd        time.Time
	NewStart      time.Time
	NewEnd        time.Time
	OccurrenceIDs []string
}

type RosterChangedEvent struct {
	EventID          string
	GroupID          string
	OccurrenceID     string
	AddedPersonIDs   []string
	RemovedPersonIDs []string
}

type OccurrenceDeletedEvent struct {
	EventID      string
	GroupID      string
	OccurrenceID string
	StartsAt     time.Time
}

func NewEventID() string {
	return uuid.NewString()
}

// LogDispatcher records emitted facts in the application log. It stands in
// for a real delivery pipeline.
type LogDispatcher struct {
	log logger.Logger
}

func NewLogDispatcher(log logger.Logger) *LogDispatcher {
	return &LogDispatcher{log: log}
}

func (d *LogDispatcher) ScheduleChanged(_ context.Context, event ScheduleChangedEvent) {
	d.log.Info("notify: schedule changed",
		"event_id", event.EventID,
		"group_id", event.GroupID,
		"rule_id", event.RuleID,
		"old_start", event.OldStart,
		"new_start", event.NewStart,
		"occurrences", len(event.OccurrenceIDs),
	)
}

func (d *LogDispatcher) RosterChanged(_ context.Context, event RosterChangedEvent) {
	d.log.Info("notify: roster changed",
		"event_id", event.EventID,
		"group_id", event.GroupID,
		"occurrence_id", event.OccurrenceID,
		"added", len(event.AddedPersonIDs),
		"removed", len(event.RemovedPersonIDs),
	)
}

func (d *LogDispatcher) OccurrenceDeleted(_ context.Context, event OccurrenceDeletedEvent) {
	d.log.Info("notify: occurrence deleted",
		"event_id", event.EventID,
		"group_id", event.GroupID,
		"occurrence_id", event.OccurrenceID,
		"starts_at", event.StartsAt,
	)
}

type NoopDispatcher struct{}

func (NoopDispatcher) ScheduleChanged(context.Context, ScheduleChangedEvent)     {}
func (NoopDispatcher) RosterChanged(context.Context, RosterChangedEvent)         {}
func (NoopDispatcher) OccurrenceDeleted(context.Context, OccurrenceDeletedEvent) {}
