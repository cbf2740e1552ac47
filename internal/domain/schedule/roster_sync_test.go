package schedule

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPropagateAppliesDeltaToFutureScheduled(t *testing.T) {
	repo := newFakeRepo()
	engine := NewRosterSyncEngine(repo, testLogger())
	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

	seedOccurrence(repo, "origin", "group-1", now.Add(24*time.Hour), OccurrenceScheduled)
	seedOccurrence(repo, "target-1", "group-1", now.Add(48*time.Hour), OccurrenceScheduled)
	seedOccurrence(repo, "target-2", "group-1", now.Add(72*time.Hour), OccurrenceScheduled)
	seedOccurrence(repo, "past", "group-1", now.Add(-24*time.Hour), OccurrenceScheduled)
	seedOccurrence(repo, "cancelled", "group-1", now.Add(96*time.Hour), OccurrenceCancelled)

	repo.roster["target-1"] = []RosterEntry{{ID: "t1-old", OccurrenceID: "target-1", PersonID: "old", Role: RolePlayer, Status: AttendanceExpected}}

	report, err := engine.Propagate(context.Background(), PropagateInput{
		GroupID:             "group-1",
		Added:               []RosterMember{{PersonID: "new-player", Role: RolePlayer}, {PersonID: "new-coach", Role: RoleCoach}},
		Removed:             []string{"old"},
		ExcludeOccurrenceID: "origin",
		AsOf:                now,
		Scope:               ScopeGroup,
	})
	if err != nil {
		t.Fatalf("propagate: %v", err)
	}

	if report.Targets != 2 || report.Updated != 2 {
		t.Fatalf("expected 2/2 targets updated, got %d/%d", report.Updated, report.Targets)
	}

	for _, id := range []string{"target-1", "target-2"} {
		persons := rosterPersons(repo.roster[id])
		if persons["new-player"] != RolePlayer {
			t.Errorf("%s: new player missing", id)
		}
		if persons["new-coach"] != RoleCoach {
			t.Errorf("%s: new coach missing", id)
		}
		if _, ok := persons["old"]; ok {
			t.Errorf("%s: removal not applied", id)
		}
	}
	for _, entry := range repo.roster["target-1"] {
		switch entry.Role {
		case RoleCoach:
			if entry.Status != "" {
				t.Errorf("coach entry should carry no attendance, got %q", entry.Status)
			}
		default:
			if entry.Status != AttendanceExpected {
				t.Errorf("player entry should start expected, got %q", entry.Status)
			}
		}
	}

	if len(repo.roster["origin"]) != 0 {
		t.Error("excluded origin must not be touched")
	}
	if len(repo.roster["past"]) != 0 {
		t.Error("past occurrences must not be touched")
	}
	if len(repo.roster["cancelled"]) != 0 {
		t.Error("cancelled occurrences must not be touched")
	}
}

func TestPropagateIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	engine := NewRosterSyncEngine(repo, testLogger())
	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

	seedOccurrence(repo, "target", "group-1", now.Add(24*time.Hour), OccurrenceScheduled)

	input := PropagateInput{
		GroupID: "group-1",
		Added:   []RosterMember{{PersonID: "p1", Role: RolePlayer}},
		Removed: []string{"never-there"},
		AsOf:    now,
		Scope:   ScopeGroup,
	}

	for run := 0; run < 2; run++ {
		report, err := engine.Propagate(context.Background(), input)
		if err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
		if !report.Ok() {
			t.Fatalf("run %d: unexpected failures %v", run, report.Failed)
		}
	}

	if len(repo.roster["target"]) != 1 {
		t.Fatalf("expected exactly one entry after repeated runs, got %d", len(repo.roster["target"]))
	}
}

func TestPropagateEmptyDeltaIsNoop(t *testing.T) {
	repo := newFakeRepo()
	engine := NewRosterSyncEngine(repo, testLogger())

	report, err := engine.Propagate(context.Background(), PropagateInput{GroupID: "group-1", Scope: ScopeGroup})
	if err != nil {
		t.Fatalf("propagate: %v", err)
	}
	if report.Targets != 0 || report.Updated != 0 || !report.Ok() {
		t.Fatalf("expected empty report, got %+v", report)
	}
}

func TestPropagateRejectsUnknownScope(t *testing.T) {
	repo := newFakeRepo()
	engine := NewRosterSyncEngine(repo, testLogger())

	_, err := engine.Propagate(context.Background(), PropagateInput{
		GroupID: "group-1",
		Added:   []RosterMember{{PersonID: "p1", Role: RolePlayer}},
		Scope:   PropagationScope("club"),
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestPropagateCollectsPerTargetFailures(t *testing.T) {
	repo := newFakeRepo()
	engine := NewRosterSyncEngine(repo, testLogger())
	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

	seedOccurrence(repo, "target-1", "group-1", now.Add(24*time.Hour), OccurrenceScheduled)
	seedOccurrence(repo, "target-2", "group-1", now.Add(48*time.Hour), OccurrenceScheduled)
	seedOccurrence(repo, "target-3", "group-1", now.Add(72*time.Hour), OccurrenceScheduled)
	repo.failUpsert["target-2"] = true

	report, err := engine.Propagate(context.Background(), PropagateInput{
		GroupID: "group-1",
		Added:   []RosterMember{{PersonID: "p1", Role: RolePlayer}},
		AsOf:    now,
		Scope:   ScopeGroup,
	})
	if err != nil {
		t.Fatalf("propagate: %v", err)
	}

	if report.Targets != 3 || report.Updated != 2 {
		t.Fatalf("expected 2/3 targets updated, got %d/%d", report.Updated, report.Targets)
	}
	if len(report.Failed) != 1 || report.Failed[0].OccurrenceID != "target-2" {
		t.Fatalf("expected a single failure for target-2, got %+v", report.Failed)
	}

	// Surviving targets keep their updates despite the failure.
	for _, id := range []string{"target-1", "target-3"} {
		if len(repo.roster[id]) != 1 {
			t.Errorf("%s: expected the addition to stick", id)
		}
	}
}

func TestDiffRoster(t *testing.T) {
	current := []RosterEntry{
		{PersonID: "a", Role: RolePlayer},
		{PersonID: "b", Role: RolePlayer},
	}
	next := []RosterMember{
		{PersonID: "b", Role: RoleCoach},
		{PersonID: "c", Role: RolePlayer},
	}

	added, removed := diffRoster(current, next)

	if len(added) != 1 || added[0].PersonID != "c" {
		t.Errorf("expected only c added, got %+v", added)
	}
	if len(removed) != 1 || removed[0] != "a" {
		t.Errorf("expected only a removed, got %v", removed)
	}
}
