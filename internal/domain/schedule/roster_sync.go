package schedule

import (
	"context"
	"fmt"
	"time"

	"club-planner-go/pkg/logger"
	"github.com/google/uuid"
)

// PropagationScope names the set of sibling occurrences a roster change
// fans out to. Only group scope exists today; it is an explicit parameter
// so narrower scopes can be added without changing the contract.
type PropagationScope string

const ScopeGroup PropagationScope = "group"

// PropagateInput describes a roster delta to fan out. The originating
// occurrence is excluded because it was already updated directly.
type PropagateInput struct {
	GroupID             string
	Added               []RosterMember
	Removed             []string
	ExcludeOccurrenceID string
	AsOf                time.Time
	Scope               PropagationScope
}

type PropagationFailure struct {
	OccurrenceID string
	Err          error
}

// PropagationReport summarizes a fan-out run. Failures are collected, not
// fatal: the originating edit is already durable.
type PropagationReport struct {
	Targets int
	Updated int
	Failed  []PropagationFailure
}

func (r PropagationReport) Ok() bool {
	return len(r.Failed) == 0
}

// RosterSyncEngine propagates roster additions and removals to the
// scheduled future occurrences of a group. Membership follows the group,
// not the recurrence rule, so standalone and series occurrences are
// treated alike.
type RosterSyncEngine struct {
	repo Repository
	log  logger.Logger
}

func NewRosterSyncEngine(repo Repository, log logger.Logger) *RosterSyncEngine {
	return &RosterSyncEngine{repo: repo, log: log}
}

// Propagate applies the delta to every scheduled occurrence of the group
// with startsAt >= asOf, except the excluded one. Additions are
// insert-if-absent; removals tolerate absence. Per-target failures go
// into the report and never unwind work already done.
func (e *RosterSyncEngine) Propagate(ctx context.Context, input PropagateInput) (PropagationReport, error) {
	var report PropagationReport

	if len(input.Added) == 0 && len(input.Removed) == 0 {
		return report, nil
	}
	if input.Scope == "" {
		input.Scope = ScopeGroup
	}
	if input.Scope != ScopeGroup {
		return report, fmt.Errorf("%w: unsupported propagation scope %q", ErrValidation, input.Scope)
	}

	targets, err := e.repo.ListScheduledForGroup(ctx, input.GroupID, input.AsOf)
	if err != nil {
		return report, err
	}

	for _, target := range targets {
		if target.ID == input.ExcludeOccurrenceID {
			continue
		}
		report.Targets++

		if err := e.applyToOccurrence(ctx, target.ID, input); err != nil {
			e.log.InternalError("roster sync: target update failed", err,
				"group_id", input.GroupID,
				"occurrence_id", target.ID,
			)
			report.Failed = append(report.Failed, PropagationFailure{OccurrenceID: target.ID, Err: err})
			continue
		}
		report.Updated++
	}

	return report, nil
}

func (e *RosterSyncEngine) applyToOccurrence(ctx context.Context, occurrenceID string, input PropagateInput) error {
	for _, member := range input.Added {
		entry := RosterEntry{
			ID:           uuid.NewString(),
			OccurrenceID: occurrenceID,
			PersonID:     member.PersonID,
			Role:         member.Role,
			Status:       initialAttendance(member.Role),
		}
		if err := e.repo.UpsertRosterEntry(ctx, &entry); err != nil {
			return err
		}
	}
	for _, personID := range input.Removed {
		if _, err := e.repo.DeleteRosterEntry(ctx, occurrenceID, personID); err != nil {
			return err
		}
	}
	return nil
}

func initialAttendance(role string) string {
	if role == RoleCoach {
		return ""
	}
	return AttendanceExpected
}

// diffRoster computes the membership delta between a stored roster and a
// desired one. A person present in both sides is not part of the delta
// even if their role changed.
func diffRoster(current []RosterEntry, next []RosterMember) (added []RosterMember, removed []string) {
	currentByPerson := make(map[string]struct{}, len(current))
	for _, entry := range current {
		currentByPerson[entry.PersonID] = struct{}{}
	}
	nextByPerson := make(map[string]struct{}, len(next))
	for _, member := range next {
		nextByPerson[member.PersonID] = struct{}{}
		if _, ok := currentByPerson[member.PersonID]; !ok {
			added = append(added, member)
		}
	}
	for _, entry := range current {
		if _, ok := nextByPerson[entry.PersonID]; !ok {
			removed = append(removed, entry.PersonID)
		}
	}
	return added, removed
}
