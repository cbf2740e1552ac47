package schedule

import (
	"context"
	"time"
)

type Repository interface {
	Transaction(ctx context.Context, fn func(Repository) error) error

	// Rule operations. Update checks the expected version and returns
	// ErrVersionConflict on mismatch.
	CreateRule(ctx context.Context, rule *RecurrenceRule) error
	GetRuleByID(ctx context.Context, ruleID string) (*RecurrenceRule, error)
	UpdateRule(ctx context.Context, rule *RecurrenceRule, expectedVersion int64) error
	DeleteRule(ctx context.Context, ruleID string) (bool, error)

	// Occurrence operations.
	GetOccurrenceByID(ctx context.Context, occurrenceID string) (*Occurrence, error)
	ListOccurrencesByRule(ctx context.Context, ruleID string) ([]Occurrence, error)
	ListScheduledForGroup(ctx context.Context, groupID string, asOf time.Time) ([]Occurrence, error)
	ListForGroupBetween(ctx context.Context, groupID string, from, to time.Time) ([]Occurrence, error)
	InsertOccurrenceBatch(ctx context.Context, occurrences []Occurrence) ([]string, error)
	UpdateOccurrence(ctx context.Context, occurrence *Occurrence, expectedVersion int64) error
	DeleteOccurrence(ctx context.Context, occurrenceID string) (bool, error)
	DeleteFutureForRule(ctx context.Context, ruleID string, asOf time.Time) (int64, error)
	DeleteAllForRule(ctx context.Context, ruleID string) (int64, error)
	DeleteFutureForGroup(ctx context.Context, groupID string, asOf time.Time) (int64, error)

	// Roster operations. UpsertRosterEntry is insert-if-absent on
	// (occurrence, person); DeleteRosterEntry tolerates absence.
	ListRoster(ctx context.Context, occurrenceID string) ([]RosterEntry, error)
	ReplaceRoster(ctx context.Context, occurrenceID string, entries []RosterEntry) error
	UpsertRosterEntry(ctx context.Context, entry *RosterEntry) error
	DeleteRosterEntry(ctx context.Context, occurrenceID, personID string) (bool, error)

	// Structure operations.
	ListStructure(ctx context.Context, occurrenceID string) ([]StructureItem, error)
	ReplaceStructure(ctx context.Context, occurrenceID string, items []StructureItem) error
}
