package schedule

import "time"

// Activity types a group can schedule.
const (
	ActivityTraining  = "training"
	ActivityCamp      = "camp"
	ActivityInterclub = "interclub"
)

// Occurrence statuses.
const (
	OccurrenceScheduled = "scheduled"
	OccurrenceCancelled = "cancelled"
)

// Roster roles.
const (
	RolePlayer = "player"
	RoleCoach  = "coach"
	RoleGuest  = "guest"
)

// Attendance statuses for player and guest roster entries.
const (
	AttendanceExpected = "expected"
	AttendancePresent  = "present"
	AttendanceAbsent   = "absent"
	AttendanceExcused  = "excused"
)

// RecurrenceRule is the declarative template a series is generated from.
// Version supports optimistic concurrency: every edit must present the
// version it read.
type RecurrenceRule struct {
	ID              string    `gorm:"type:uuid;primaryKey"`
	GroupID         string    `gorm:"type:uuid;index;not null"`
	ClubID          string    `gorm:"type:uuid;index;not null"`
	ActivityType    string    `gorm:"not null"`
	Title           string    `gorm:"type:text"`
	Location        string    `gorm:"type:text"`
	Notes           string    `gorm:"type:text"`
	DurationMinutes int       `gorm:"not null"`
	Weekday         int       `gorm:"not null"`
	TimeOfDay       string    `gorm:"not null"`
	IntervalWeeks   int       `gorm:"not null;default:1"`
	StartDate       time.Time `gorm:"type:date;not null"`
	EndDate         time.Time `gorm:"type:date;not null"`
	IsActive        bool      `gorm:"not null;default:true"`
	CreatedBy       string    `gorm:"type:uuid"`
	Version         int64     `gorm:"not null;default:1"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}

// Occurrence is one concrete scheduled instance. RuleID is nil for
// standalone occurrences.
type Occurrence struct {
	ID              string    `gorm:"type:uuid;primaryKey"`
	RuleID          *string   `gorm:"type:uuid;index"`
	GroupID         string    `gorm:"type:uuid;index;not null"`
	ClubID          string    `gorm:"type:uuid;index;not null"`
	ActivityType    string    `gorm:"not null"`
	Title           string    `gorm:"type:text"`
	Location        string    `gorm:"type:text"`
	Notes           string    `gorm:"type:text"`
	StartsAt        time.Time `gorm:"not null;index"`
	EndsAt          time.Time `gorm:"not null"`
	DurationMinutes int       `gorm:"not null"`
	Status          string    `gorm:"not null;default:scheduled"`
	Version         int64     `gorm:"not null;default:1"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}

// RosterEntry links a person to an occurrence. One entry per
// (occurrence, person); attendance status applies to players and guests.
type RosterEntry struct {
	ID           string    `gorm:"type:uuid;primaryKey"`
	OccurrenceID string    `gorm:"type:uuid;not null;uniqueIndex:idx_roster_occurrence_person"`
	PersonID     string    `gorm:"type:uuid;not null;uniqueIndex:idx_roster_occurrence_person"`
	Role         string    `gorm:"not null"`
	Status       string    `gorm:"type:text"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

// StructureItem is one content segment of an occurrence. Position defines
// display and application order; no two items share a position within one
// occurrence.
type StructureItem struct {
	ID           string    `gorm:"type:uuid;primaryKey"`
	OccurrenceID string    `gorm:"type:uuid;not null;uniqueIndex:idx_structure_occurrence_position"`
	Category     string    `gorm:"not null"`
	Minutes      int       `gorm:"not null"`
	Note         string    `gorm:"type:text"`
	Position     int       `gorm:"not null;uniqueIndex:idx_structure_occurrence_position"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

// Slot is a generated (start, end) pair before materialization.
type Slot struct {
	StartsAt time.Time
	EndsAt   time.Time
}

// RosterMember is a roster membership independent of a concrete occurrence.
type RosterMember struct {
	PersonID string
	Role     string
}

// RuleInput carries the user-editable fields of a recurrence rule.
type RuleInput struct {
	GroupID         string
	ClubID          string
	ActivityType    string
	Title           string
	Location        string
	Notes           string
	DurationMinutes int
	Weekday         int
	TimeOfDay       string
	IntervalWeeks   int
	StartDate       time.Time
	EndDate         time.Time
	IsActive        bool
}

type CreateSeriesInput struct {
	Rule      RuleInput
	Roster    []RosterMember
	Coaches   []string
	Structure StructureUpdate
	CreatedBy string
}

type CreateOccurrenceInput struct {
	GroupID         string
	ClubID          string
	ActivityType    string
	Title           string
	Location        string
	Notes           string
	StartsAt        time.Time
	DurationMinutes int
	Roster          []RosterMember
	Coaches         []string
	Structure       StructureUpdate
	CreatedBy       string
}

// EditOccurrenceInput mutates a single occurrence. Nil pointers leave the
// field untouched; a nil Roster leaves the roster untouched (and skips
// propagation).
type EditOccurrenceInput struct {
	OccurrenceID    string
	Version         int64
	Title           *string
	Location        *string
	Notes           *string
	StartsAt        *time.Time
	DurationMinutes *int
	Status          *string
	Roster          *RosterUpdate
	Structure       StructureUpdate
}

// RosterUpdate is the full desired roster of an occurrence.
type RosterUpdate struct {
	Members []RosterMember
	Coaches []string
}

type EditSeriesInput struct {
	RuleID    string
	Version   int64
	Rule      RuleInput
	Structure StructureUpdate
}

type SeriesResult struct {
	Rule          RecurrenceRule
	OccurrenceIDs []string
}

type EditOccurrenceResult struct {
	Occurrence  Occurrence
	Propagation *PropagationReport
}

// OccurrenceDetail bundles an occurrence with its sub-records for reads.
type OccurrenceDetail struct {
	Occurrence Occurrence
	Roster     []RosterEntry
	Structure  []StructureItem
}
