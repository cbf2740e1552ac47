package schedule

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"testing"
	"time"

	"club-planner-go/internal/notify"
	"club-planner-go/pkg/logger"
)

type fakeRepo struct {
	rules       map[string]*RecurrenceRule
	occurrences map[string]*Occurrence
	roster      map[string][]RosterEntry
	structure   map[string][]StructureItem

	// occurrence ids whose roster upserts fail, for fan-out failure tests
	failUpsert map[string]bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		rules:       make(map[string]*RecurrenceRule),
		occurrences: make(map[string]*Occurrence),
		roster:      make(map[string][]RosterEntry),
		structure:   make(map[string][]StructureItem),
		failUpsert:  make(map[string]bool),
	}
}

func (r *fakeRepo) Transaction(ctx context.Context, fn func(Repository) error) error {
	return fn(r)
}

func (r *fakeRepo) CreateRule(ctx context.Context, rule *RecurrenceRule) error {
	stored := *rule
	r.rules[rule.ID] = &stored
	return nil
}

func (r *fakeRepo) GetRuleByID(ctx context.Context, ruleID string) (*RecurrenceRule, error) {
	rule, ok := r.rules[ruleID]
	if !ok {
		return nil, ErrRuleNotFound
	}
	copied := *rule
	return &copied, nil
}

func (r *fakeRepo) UpdateRule(ctx context.Context, rule *RecurrenceRule, expectedVersion int64) error {
	existing, ok := r.rules[rule.ID]
	if !ok {
		return ErrRuleNotFound
	}
	if existing.Version != expectedVersion {
		return ErrVersionConflict
	}
	stored := *rule
	stored.Version = expectedVersion + 1
	r.rules[rule.ID] = &stored
	rule.Version = stored.Version
	return nil
}

func (r *fakeRepo) DeleteRule(ctx context.Context, ruleID string) (bool, error) {
	if _, ok := r.rules[ruleID]; !ok {
		return false, nil
	}
	delete(r.rules, ruleID)
	return true, nil
}

func (r *fakeRepo) GetOccurrenceByID(ctx context.Context, occurrenceID string) (*Occurrence, error) {
	occurrence, ok := r.occurrences[occurrenceID]
	if !ok {
		return nil, ErrOccurrenceNotFound
	}
	copied := *occurrence
	return &copied, nil
}

func (r *fakeRepo) ListOccurrencesByRule(ctx context.Context, ruleID string) ([]Occurrence, error) {
	var result []Occurrence
	for _, occurrence := range r.occurrences {
		if occurrence.RuleID != nil && *occurrence.RuleID == ruleID {
			result = append(result, *occurrence)
		}
	}
	sortByStart(result)
	return result, nil
}

func (r *fakeRepo) ListScheduledForGroup(ctx context.Context, groupID string, asOf time.Time) ([]Occurrence, error) {
	var result []Occurrence
	for _, occurrence := range r.occurrences {
		if occurrence.GroupID != groupID || occurrence.Status != OccurrenceScheduled {
			continue
		}
		if occurrence.StartsAt.Before(asOf) {
			continue
		}
		result = append(result, *occurrence)
	}
	sortByStart(result)
	return result, nil
}

func (r *fakeRepo) ListForGroupBetween(ctx context.Context, groupID string, from, to time.Time) ([]Occurrence, error) {
	var result []Occurrence
	for _, occurrence := range r.occurrences {
		if occurrence.GroupID != groupID {
			continue
		}
		if !from.IsZero() && occurrence.StartsAt.Before(from) {
			continue
		}
		if !to.IsZero() && !occurrence.StartsAt.Before(to) {
			continue
		}
		result = append(result, *occurrence)
	}
	sortByStart(result)
	return result, nil
}

func (r *fakeRepo) InsertOccurrenceBatch(ctx context.Context, occurrences []Occurrence) ([]string, error) {
	ids := make([]string, 0, len(occurrences))
	for _, occurrence := range occurrences {
		stored := occurrence
		r.occurrences[occurrence.ID] = &stored
		ids = append(ids, occurrence.ID)
	}
	return ids, nil
}

func (r *fakeRepo) UpdateOccurrence(ctx context.Context, occurrence *Occurrence, expectedVersion int64) error {
	existing, ok := r.occurrences[occurrence.ID]
	if !ok {
		return ErrOccurrenceNotFound
	}
	if existing.Version != expectedVersion {
		return ErrVersionConflict
	}
	stored := *occurrence
	stored.Version = expectedVersion + 1
	r.occurrences[occurrence.ID] = &stored
	occurrence.Version = stored.Version
	return nil
}

func (r *fakeRepo) DeleteOccurrence(ctx context.Context, occurrenceID string) (bool, error) {
	if _, ok := r.occurrences[occurrenceID]; !ok {
		return false, nil
	}
	delete(r.occurrences, occurrenceID)
	delete(r.roster, occurrenceID)
	delete(r.structure, occurrenceID)
	return true, nil
}

func (r *fakeRepo) DeleteFutureForRule(ctx context.Context, ruleID string, asOf time.Time) (int64, error) {
	var count int64
	for id, occurrence := range r.occurrences {
		if occurrence.RuleID == nil || *occurrence.RuleID != ruleID {
			continue
		}
		if occurrence.StartsAt.Before(asOf) {
			continue
		}
		delete(r.occurrences, id)
		delete(r.roster, id)
		delete(r.structure, id)
		count++
	}
	return count, nil
}

func (r *fakeRepo) DeleteAllForRule(ctx context.Context, ruleID string) (int64, error) {
	var count int64
	for id, occurrence := range r.occurrences {
		if occurrence.RuleID == nil || *occurrence.RuleID != ruleID {
			continue
		}
		delete(r.occurrences, id)
		delete(r.roster, id)
		delete(r.structure, id)
		count++
	}
	return count, nil
}

func (r *fakeRepo) DeleteFutureForGroup(ctx context.Context, groupID string, asOf time.Time) (int64, error) {
	var count int64
	for id, occurrence := range r.occurrences {
		if occurrence.GroupID != groupID || occurrence.StartsAt.Before(asOf) {
			continue
		}
		delete(r.occurrences, id)
		delete(r.roster, id)
		delete(r.structure, id)
		count++
	}
	return count, nil
}

func (r *fakeRepo) ListRoster(ctx context.Context, occurrenceID string) ([]RosterEntry, error) {
	return append([]RosterEntry(nil), r.roster[occurrenceID]...), nil
}

func (r *fakeRepo) ReplaceRoster(ctx context.Context, occurrenceID string, entries []RosterEntry) error {
	r.roster[occurrenceID] = append([]RosterEntry(nil), entries...)
	return nil
}

func (r *fakeRepo) UpsertRosterEntry(ctx context.Context, entry *RosterEntry) error {
	if r.failUpsert[entry.OccurrenceID] {
		return fmt.Errorf("storage unavailable")
	}
	for _, existing := range r.roster[entry.OccurrenceID] {
		if existing.PersonID == entry.PersonID {
			return nil
		}
	}
	r.roster[entry.OccurrenceID] = append(r.roster[entry.OccurrenceID], *entry)
	return nil
}

func (r *fakeRepo) DeleteRosterEntry(ctx context.Context, occurrenceID, personID string) (bool, error) {
	entries := r.roster[occurrenceID]
	for i, entry := range entries {
		if entry.PersonID == personID {
			r.roster[occurrenceID] = append(entries[:i], entries[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRepo) ListStructure(ctx context.Context, occurrenceID string) ([]StructureItem, error) {
	return append([]StructureItem(nil), r.structure[occurrenceID]...), nil
}

func (r *fakeRepo) ReplaceStructure(ctx context.Context, occurrenceID string, items []StructureItem) error {
	r.structure[occurrenceID] = append([]StructureItem(nil), items...)
	return nil
}

func sortByStart(occurrences []Occurrence) {
	sort.Slice(occurrences, func(i, j int) bool {
		return occurrences[i].StartsAt.Before(occurrences[j].StartsAt)
	})
}

func testLogger() logger.Logger {
	return logger.New(io.Discard, logger.LevelCritical, "text")
}

func newTestService(repo *fakeRepo, now time.Time) *Service {
	s := NewService(repo, NewRosterSyncEngine(repo, testLogger()), notify.NoopDispatcher{}, testLogger())
	s.now = func() time.Time { return now }
	return s
}

func ruleInput() RuleInput {
	return RuleInput{
		GroupID:         "group-1",
		ClubID:          "club-1",
		ActivityType:    ActivityTraining,
		Title:           "U15 training",
		Location:        "Hall A",
		DurationMinutes: 90,
		Weekday:         2,
		TimeOfDay:       "18:00",
		IntervalWeeks:   1,
		StartDate:       date(2024, time.January, 1),
		EndDate:         date(2024, time.March, 31),
		IsActive:        true,
	}
}

func seedOccurrence(repo *fakeRepo, id, groupID string, startsAt time.Time, status string) {
	repo.occurrences[id] = &Occurrence{
		ID:              id,
		GroupID:         groupID,
		ClubID:          "club-1",
		ActivityType:    ActivityTraining,
		StartsAt:        startsAt,
		EndsAt:          startsAt.Add(90 * time.Minute),
		DurationMinutes: 90,
		Status:          status,
		Version:         1,
	}
}

func rosterPersons(entries []RosterEntry) map[string]string {
	persons := make(map[string]string, len(entries))
	for _, entry := range entries {
		persons[entry.PersonID] = entry.Role
	}
	return persons
}

func TestCreateSeriesMaterializesOccurrences(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, date(2024, time.January, 1))

	input := CreateSeriesInput{
		Rule: ruleInput(),
		Roster: []RosterMember{
			{PersonID: "p1", Role: RolePlayer},
			{PersonID: "p2", Role: RoleGuest},
		},
		Coaches: []string{"c1"},
		Structure: StructureUpdate{Items: []StructureItemInput{
			{Category: "warmup", Minutes: 15},
			{Category: "drills", Minutes: 60, Note: "serve focus"},
		}},
		CreatedBy: "c1",
	}
	input.Rule.EndDate = date(2024, time.January, 31)

	result, err := svc.CreateSeries(context.Background(), input)
	if err != nil {
		t.Fatalf("create series: %v", err)
	}

	if len(result.OccurrenceIDs) != 5 {
		t.Fatalf("expected 5 occurrences, got %d", len(result.OccurrenceIDs))
	}
	if result.Rule.Version != 1 {
		t.Errorf("expected rule version 1, got %d", result.Rule.Version)
	}
	if _, ok := repo.rules[result.Rule.ID]; !ok {
		t.Fatal("rule was not stored")
	}

	for _, id := range result.OccurrenceIDs {
		occurrence, ok := repo.occurrences[id]
		if !ok {
			t.Fatalf("occurrence %s was not stored", id)
		}
		if occurrence.Status != OccurrenceScheduled {
			t.Errorf("occurrence %s: expected scheduled, got %s", id, occurrence.Status)
		}
		if occurrence.RuleID == nil || *occurrence.RuleID != result.Rule.ID {
			t.Errorf("occurrence %s: not linked to rule", id)
		}
		if occurrence.Location != "Hall A" {
			t.Errorf("occurrence %s: expected location from rule, got %q", id, occurrence.Location)
		}

		roster := repo.roster[id]
		if len(roster) != 3 {
			t.Fatalf("occurrence %s: expected 3 roster entries, got %d", id, len(roster))
		}
		persons := rosterPersons(roster)
		if persons["c1"] != RoleCoach {
			t.Errorf("occurrence %s: expected c1 as coach, got %q", id, persons["c1"])
		}
		for _, entry := range roster {
			if entry.Role == RoleCoach && entry.Status != "" {
				t.Errorf("coach entry should have no attendance, got %q", entry.Status)
			}
			if entry.Role != RoleCoach && entry.Status != AttendanceExpected {
				t.Errorf("player entry should start expected, got %q", entry.Status)
			}
		}

		structure := repo.structure[id]
		if len(structure) != 2 {
			t.Fatalf("occurrence %s: expected 2 structure items, got %d", id, len(structure))
		}
		if structure[0].Position != 0 || structure[1].Position != 1 {
			t.Errorf("structure positions should follow template order")
		}
	}
}

func TestCreateSeriesZeroSlotsStoresNothing(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, date(2024, time.January, 1))

	input := CreateSeriesInput{Rule: ruleInput(), CreatedBy: "c1"}
	input.Rule.StartDate = date(2024, time.January, 1)
	input.Rule.EndDate = date(2024, time.January, 1)

	_, err := svc.CreateSeries(context.Background(), input)
	if !errors.Is(err, ErrNoOccurrences) {
		t.Fatalf("expected ErrNoOccurrences, got %v", err)
	}

	if len(repo.rules) != 0 || len(repo.occurrences) != 0 {
		t.Fatal("zero-slot creation must not store anything")
	}
}

func TestCreateSeriesRejectsBadInput(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, date(2024, time.January, 1))

	input := CreateSeriesInput{Rule: ruleInput(), CreatedBy: "c1"}
	input.Rule.ActivityType = "picnic"
	if _, err := svc.CreateSeries(context.Background(), input); !errors.Is(err, ErrValidation) {
		t.Errorf("bad activity type: expected ErrValidation, got %v", err)
	}

	input = CreateSeriesInput{
		Rule: ruleInput(),
		Roster: []RosterMember{
			{PersonID: "p1", Role: RolePlayer},
			{PersonID: "p1", Role: RoleGuest},
		},
		CreatedBy: "c1",
	}
	if _, err := svc.CreateSeries(context.Background(), input); !errors.Is(err, ErrValidation) {
		t.Errorf("duplicate person: expected ErrValidation, got %v", err)
	}

	input = CreateSeriesInput{Rule: ruleInput(), CreatedBy: "c1"}
	input.Rule.EndDate = input.Rule.StartDate.AddDate(0, 0, -7)
	if _, err := svc.CreateSeries(context.Background(), input); !errors.Is(err, ErrValidation) {
		t.Errorf("end before start: expected ErrValidation, got %v", err)
	}
}

func TestCreateOccurrenceStandalone(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, date(2024, time.January, 1))

	startsAt := time.Date(2024, time.February, 10, 9, 0, 0, 0, time.UTC)
	occurrence, err := svc.CreateOccurrence(context.Background(), CreateOccurrenceInput{
		GroupID:         "group-1",
		ClubID:          "club-1",
		ActivityType:    ActivityInterclub,
		Title:           "Interclub vs Riverside",
		StartsAt:        startsAt,
		DurationMinutes: 240,
		Roster:          []RosterMember{{PersonID: "p1", Role: RolePlayer}},
		Coaches:         []string{"c1"},
		CreatedBy:       "c1",
	})
	if err != nil {
		t.Fatalf("create occurrence: %v", err)
	}

	if occurrence.RuleID != nil {
		t.Error("standalone occurrence must not reference a rule")
	}
	if !occurrence.EndsAt.Equal(startsAt.Add(4 * time.Hour)) {
		t.Errorf("expected computed end %v, got %v", startsAt.Add(4*time.Hour), occurrence.EndsAt)
	}
	if len(repo.roster[occurrence.ID]) != 2 {
		t.Errorf("expected 2 roster entries, got %d", len(repo.roster[occurrence.ID]))
	}
}

func TestEditOccurrenceUpdatesAndBumpsVersion(t *testing.T) {
	repo := newFakeRepo()
	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(repo, now)

	seedOccurrence(repo, "occ-1", "group-1", now.Add(24*time.Hour), OccurrenceScheduled)

	title := "Moved session"
	newStart := now.Add(48 * time.Hour)
	duration := 120

	result, err := svc.EditOccurrence(context.Background(), EditOccurrenceInput{
		OccurrenceID:    "occ-1",
		Version:         1,
		Title:           &title,
		StartsAt:        &newStart,
		DurationMinutes: &duration,
	})
	if err != nil {
		t.Fatalf("edit occurrence: %v", err)
	}

	if result.Occurrence.Version != 2 {
		t.Errorf("expected version 2, got %d", result.Occurrence.Version)
	}
	if result.Occurrence.Title != title {
		t.Errorf("expected title %q, got %q", title, result.Occurrence.Title)
	}
	if !result.Occurrence.EndsAt.Equal(newStart.Add(2 * time.Hour)) {
		t.Errorf("end time not recomputed: %v", result.Occurrence.EndsAt)
	}
	if result.Propagation != nil {
		t.Error("no roster change, propagation report should be nil")
	}

	// A writer holding the old version must be rejected.
	stale := "stale"
	_, err = svc.EditOccurrence(context.Background(), EditOccurrenceInput{
		OccurrenceID: "occ-1",
		Version:      1,
		Title:        &stale,
	})
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
	if repo.occurrences["occ-1"].Title != title {
		t.Error("stale edit must not be applied")
	}
}

func TestEditOccurrenceUnknownID(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, date(2024, time.March, 1))

	_, err := svc.EditOccurrence(context.Background(), EditOccurrenceInput{OccurrenceID: "missing", Version: 1})
	if !errors.Is(err, ErrOccurrenceNotFound) {
		t.Fatalf("expected ErrOccurrenceNotFound, got %v", err)
	}
}

func TestEditOccurrenceRosterPropagatesGroupWide(t *testing.T) {
	repo := newFakeRepo()
	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(repo, now)

	seedOccurrence(repo, "origin", "group-1", now.Add(24*time.Hour), OccurrenceScheduled)
	seedOccurrence(repo, "sib-1", "group-1", now.Add(48*time.Hour), OccurrenceScheduled)
	seedOccurrence(repo, "sib-2", "group-1", now.Add(72*time.Hour), OccurrenceScheduled)
	seedOccurrence(repo, "past", "group-1", now.Add(-24*time.Hour), OccurrenceScheduled)
	seedOccurrence(repo, "cancelled", "group-1", now.Add(96*time.Hour), OccurrenceCancelled)

	for _, id := range []string{"origin", "sib-1", "sib-2", "past", "cancelled"} {
		repo.roster[id] = []RosterEntry{{ID: id + "-p1", OccurrenceID: id, PersonID: "p1", Role: RolePlayer, Status: AttendanceExpected}}
	}

	result, err := svc.EditOccurrence(context.Background(), EditOccurrenceInput{
		OccurrenceID: "origin",
		Version:      1,
		Roster: &RosterUpdate{Members: []RosterMember{
			{PersonID: "p2", Role: RolePlayer},
		}},
	})
	if err != nil {
		t.Fatalf("edit occurrence: %v", err)
	}

	if result.Propagation == nil {
		t.Fatal("expected a propagation report")
	}
	if result.Propagation.Targets != 2 || result.Propagation.Updated != 2 {
		t.Fatalf("expected 2/2 targets updated, got %d/%d", result.Propagation.Updated, result.Propagation.Targets)
	}
	if !result.Propagation.Ok() {
		t.Fatalf("unexpected failures: %v", result.Propagation.Failed)
	}

	// p1 was dropped and p2 added on the origin; the delta fans out to
	// scheduled future siblings only.
	origin := rosterPersons(repo.roster["origin"])
	if _, ok := origin["p1"]; ok {
		t.Error("origin should no longer contain p1")
	}
	for _, id := range []string{"sib-1", "sib-2"} {
		persons := rosterPersons(repo.roster[id])
		if _, ok := persons["p2"]; !ok {
			t.Errorf("%s: p2 was not propagated", id)
		}
		if _, ok := persons["p1"]; ok {
			t.Errorf("%s: p1 removal was not propagated", id)
		}
	}
	for _, id := range []string{"past", "cancelled"} {
		persons := rosterPersons(repo.roster[id])
		if _, ok := persons["p2"]; ok {
			t.Errorf("%s: must not receive propagated additions", id)
		}
		if _, ok := persons["p1"]; !ok {
			t.Errorf("%s: must keep its roster", id)
		}
	}
}

func TestEditOccurrenceRoleChangeDoesNotPropagate(t *testing.T) {
	repo := newFakeRepo()
	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(repo, now)

	seedOccurrence(repo, "origin", "group-1", now.Add(24*time.Hour), OccurrenceScheduled)
	seedOccurrence(repo, "sib-1", "group-1", now.Add(48*time.Hour), OccurrenceScheduled)
	for _, id := range []string{"origin", "sib-1"} {
		repo.roster[id] = []RosterEntry{{ID: id + "-p1", OccurrenceID: id, PersonID: "p1", Role: RolePlayer, Status: AttendanceExpected}}
	}

	result, err := svc.EditOccurrence(context.Background(), EditOccurrenceInput{
		OccurrenceID: "origin",
		Version:      1,
		Roster: &RosterUpdate{Members: []RosterMember{
			{PersonID: "p1", Role: RoleCoach},
		}},
	})
	if err != nil {
		t.Fatalf("edit occurrence: %v", err)
	}

	if result.Propagation != nil {
		t.Error("role-only change is not a membership delta")
	}
	if rosterPersons(repo.roster["origin"])["p1"] != RoleCoach {
		t.Error("origin role change was not applied")
	}
	if rosterPersons(repo.roster["sib-1"])["p1"] != RolePlayer {
		t.Error("sibling roster must stay untouched")
	}
}

func TestEditOccurrenceStructureClearVersusNoop(t *testing.T) {
	repo := newFakeRepo()
	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(repo, now)

	seedOccurrence(repo, "occ-1", "group-1", now.Add(24*time.Hour), OccurrenceScheduled)
	repo.structure["occ-1"] = []StructureItem{{ID: "item-1", OccurrenceID: "occ-1", Category: "warmup", Minutes: 15, Position: 0}}

	// Empty items without the clear flag: no change requested.
	if _, err := svc.EditOccurrence(context.Background(), EditOccurrenceInput{OccurrenceID: "occ-1", Version: 1}); err != nil {
		t.Fatalf("edit occurrence: %v", err)
	}
	if len(repo.structure["occ-1"]) != 1 {
		t.Fatal("no-op structure update must preserve the existing structure")
	}

	// The explicit clear flag empties it.
	if _, err := svc.EditOccurrence(context.Background(), EditOccurrenceInput{
		OccurrenceID: "occ-1",
		Version:      2,
		Structure:    StructureUpdate{Clear: true},
	}); err != nil {
		t.Fatalf("edit occurrence: %v", err)
	}
	if len(repo.structure["occ-1"]) != 0 {
		t.Fatal("clear must remove the structure")
	}
}

func TestEditSeriesRegeneratesFutureOnly(t *testing.T) {
	repo := newFakeRepo()
	now := date(2024, time.February, 15)
	svc := newTestService(repo, now)

	created, err := svc.CreateSeries(context.Background(), CreateSeriesInput{
		Rule:   ruleInput(),
		Roster: []RosterMember{{PersonID: "p1", Role: RolePlayer}},
		Structure: StructureUpdate{Items: []StructureItemInput{
			{Category: "warmup", Minutes: 15},
		}},
		CreatedBy: "c1",
	})
	if err != nil {
		t.Fatalf("create series: %v", err)
	}
	if len(created.OccurrenceIDs) != 13 {
		t.Fatalf("expected 13 occurrences, got %d", len(created.OccurrenceIDs))
	}

	pastIDs := make(map[string]bool)
	futureIDs := make(map[string]bool)
	for _, id := range created.OccurrenceIDs {
		if repo.occurrences[id].StartsAt.Before(now) {
			pastIDs[id] = true
		} else {
			futureIDs[id] = true
		}
	}
	if len(pastIDs) != 7 {
		t.Fatalf("expected 7 past occurrences, got %d", len(pastIDs))
	}

	edited := ruleInput()
	edited.Weekday = 4
	edited.Location = "Hall B"

	result, err := svc.EditSeries(context.Background(), EditSeriesInput{
		RuleID:  created.Rule.ID,
		Version: 1,
		Rule:    edited,
	})
	if err != nil {
		t.Fatalf("edit series: %v", err)
	}

	if result.Rule.Version != 2 {
		t.Errorf("expected rule version 2, got %d", result.Rule.Version)
	}
	// Thursdays from Feb 15 through Mar 28.
	if len(result.OccurrenceIDs) != 7 {
		t.Fatalf("expected 7 regenerated occurrences, got %d", len(result.OccurrenceIDs))
	}

	for id := range pastIDs {
		if _, ok := repo.occurrences[id]; !ok {
			t.Errorf("past occurrence %s must survive regeneration", id)
		}
	}
	for id := range futureIDs {
		if _, ok := repo.occurrences[id]; ok {
			t.Errorf("old future occurrence %s must be replaced", id)
		}
	}
	for _, id := range result.OccurrenceIDs {
		occurrence := repo.occurrences[id]
		if occurrence.StartsAt.Weekday() != time.Thursday {
			t.Errorf("occurrence %s: expected Thursday, got %v", id, occurrence.StartsAt.Weekday())
		}
		if occurrence.Location != "Hall B" {
			t.Errorf("occurrence %s: expected new location, got %q", id, occurrence.Location)
		}
		persons := rosterPersons(repo.roster[id])
		if _, ok := persons["p1"]; !ok {
			t.Errorf("occurrence %s: roster was not reapplied", id)
		}
		if len(repo.structure[id]) != 1 {
			t.Errorf("occurrence %s: structure template was not reapplied", id)
		}
	}
}

func TestEditSeriesLateDayEditKeepsPastCount(t *testing.T) {
	repo := newFakeRepo()
	// Tuesday 20:00, two hours after the rule's 18:00 slot started.
	now := time.Date(2024, time.March, 5, 20, 0, 0, 0, time.UTC)
	svc := newTestService(repo, now)

	created, err := svc.CreateSeries(context.Background(), CreateSeriesInput{Rule: ruleInput(), CreatedBy: "c1"})
	if err != nil {
		t.Fatalf("create series: %v", err)
	}

	pastBefore := 0
	for _, occurrence := range repo.occurrences {
		if occurrence.StartsAt.Before(now) {
			pastBefore++
		}
	}
	if pastBefore != 10 {
		t.Fatalf("expected 10 past occurrences, got %d", pastBefore)
	}

	result, err := svc.EditSeries(context.Background(), EditSeriesInput{
		RuleID:  created.Rule.ID,
		Version: 1,
		Rule:    ruleInput(),
	})
	if err != nil {
		t.Fatalf("edit series: %v", err)
	}

	// Today's 18:00 occurrence survived as history; regeneration must not
	// recreate it.
	pastAfter := 0
	for _, occurrence := range repo.occurrences {
		if occurrence.StartsAt.Before(now) {
			pastAfter++
		}
	}
	if pastAfter != pastBefore {
		t.Fatalf("past occurrence count changed: before=%d after=%d", pastBefore, pastAfter)
	}

	if len(result.OccurrenceIDs) != 3 {
		t.Fatalf("expected 3 regenerated occurrences, got %d", len(result.OccurrenceIDs))
	}
	today := time.Date(2024, time.March, 5, 18, 0, 0, 0, time.UTC)
	count := 0
	for _, occurrence := range repo.occurrences {
		if occurrence.StartsAt.Equal(today) {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one occurrence at %v, got %d", today, count)
	}
}

func TestEditSeriesLateDayEditOnLastSlotFails(t *testing.T) {
	repo := newFakeRepo()
	now := time.Date(2024, time.March, 5, 20, 0, 0, 0, time.UTC)
	svc := newTestService(repo, now)

	created, err := svc.CreateSeries(context.Background(), CreateSeriesInput{Rule: ruleInput(), CreatedBy: "c1"})
	if err != nil {
		t.Fatalf("create series: %v", err)
	}

	// Shrinking the window to end today leaves an active rule with only
	// the already-started slot, which counts as no occurrences.
	shrunk := ruleInput()
	shrunk.EndDate = date(2024, time.March, 5)

	_, err = svc.EditSeries(context.Background(), EditSeriesInput{
		RuleID:  created.Rule.ID,
		Version: 1,
		Rule:    shrunk,
	})
	if !errors.Is(err, ErrNoOccurrences) {
		t.Fatalf("expected ErrNoOccurrences, got %v", err)
	}
}

func TestEditSeriesVersionConflict(t *testing.T) {
	repo := newFakeRepo()
	now := date(2024, time.February, 15)
	svc := newTestService(repo, now)

	created, err := svc.CreateSeries(context.Background(), CreateSeriesInput{Rule: ruleInput(), CreatedBy: "c1"})
	if err != nil {
		t.Fatalf("create series: %v", err)
	}
	before := len(repo.occurrences)

	_, err = svc.EditSeries(context.Background(), EditSeriesInput{
		RuleID:  created.Rule.ID,
		Version: 7,
		Rule:    ruleInput(),
	})
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
	if len(repo.occurrences) != before {
		t.Fatal("conflicting edit must leave occurrences untouched")
	}
}

func TestEditSeriesActiveRuleNeedsFutureWindow(t *testing.T) {
	repo := newFakeRepo()
	now := date(2024, time.February, 15)
	svc := newTestService(repo, now)

	created, err := svc.CreateSeries(context.Background(), CreateSeriesInput{Rule: ruleInput(), CreatedBy: "c1"})
	if err != nil {
		t.Fatalf("create series: %v", err)
	}

	shrunk := ruleInput()
	shrunk.EndDate = date(2024, time.January, 31)

	_, err = svc.EditSeries(context.Background(), EditSeriesInput{
		RuleID:  created.Rule.ID,
		Version: 1,
		Rule:    shrunk,
	})
	if !errors.Is(err, ErrNoOccurrences) {
		t.Fatalf("expected ErrNoOccurrences for an active rule, got %v", err)
	}
}

func TestEditSeriesDeactivationClearsFuture(t *testing.T) {
	repo := newFakeRepo()
	now := date(2024, time.February, 15)
	svc := newTestService(repo, now)

	created, err := svc.CreateSeries(context.Background(), CreateSeriesInput{Rule: ruleInput(), CreatedBy: "c1"})
	if err != nil {
		t.Fatalf("create series: %v", err)
	}

	ended := ruleInput()
	ended.EndDate = date(2024, time.January, 31)
	ended.IsActive = false

	result, err := svc.EditSeries(context.Background(), EditSeriesInput{
		RuleID:  created.Rule.ID,
		Version: 1,
		Rule:    ended,
	})
	if err != nil {
		t.Fatalf("edit series: %v", err)
	}

	if len(result.OccurrenceIDs) != 0 {
		t.Fatalf("expected no regenerated occurrences, got %d", len(result.OccurrenceIDs))
	}
	for _, occurrence := range repo.occurrences {
		if !occurrence.StartsAt.Before(now) {
			t.Errorf("future occurrence %s should have been removed", occurrence.ID)
		}
	}
	if len(repo.occurrences) == 0 {
		t.Fatal("past occurrences must survive deactivation")
	}
}

func TestDeleteSeriesRemovesRuleAndOccurrences(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, date(2024, time.February, 15))

	created, err := svc.CreateSeries(context.Background(), CreateSeriesInput{Rule: ruleInput(), CreatedBy: "c1"})
	if err != nil {
		t.Fatalf("create series: %v", err)
	}

	if err := svc.DeleteSeries(context.Background(), created.Rule.ID); err != nil {
		t.Fatalf("delete series: %v", err)
	}

	if len(repo.rules) != 0 {
		t.Error("rule must be removed")
	}
	if len(repo.occurrences) != 0 {
		t.Error("whole-series deletion removes past and future alike")
	}

	if err := svc.DeleteSeries(context.Background(), "missing"); !errors.Is(err, ErrRuleNotFound) {
		t.Fatalf("expected ErrRuleNotFound, got %v", err)
	}
}

func TestDeleteGroupKeepHistory(t *testing.T) {
	repo := newFakeRepo()
	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(repo, now)

	seedOccurrence(repo, "past-1", "group-1", now.Add(-48*time.Hour), OccurrenceScheduled)
	seedOccurrence(repo, "past-2", "group-1", now.Add(-24*time.Hour), OccurrenceCancelled)
	seedOccurrence(repo, "future-1", "group-1", now.Add(24*time.Hour), OccurrenceScheduled)
	seedOccurrence(repo, "future-2", "group-1", now.Add(48*time.Hour), OccurrenceScheduled)
	seedOccurrence(repo, "other-group", "group-2", now.Add(24*time.Hour), OccurrenceScheduled)

	count, err := svc.DeleteGroupKeepHistory(context.Background(), "group-1")
	if err != nil {
		t.Fatalf("delete group future: %v", err)
	}

	if count != 2 {
		t.Fatalf("expected 2 deletions, got %d", count)
	}
	for _, id := range []string{"past-1", "past-2", "other-group"} {
		if _, ok := repo.occurrences[id]; !ok {
			t.Errorf("%s must survive", id)
		}
	}
	for _, id := range []string{"future-1", "future-2"} {
		if _, ok := repo.occurrences[id]; ok {
			t.Errorf("%s must be removed", id)
		}
	}
}

func TestDeleteOccurrence(t *testing.T) {
	repo := newFakeRepo()
	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(repo, now)

	seedOccurrence(repo, "occ-1", "group-1", now.Add(24*time.Hour), OccurrenceScheduled)

	if err := svc.DeleteOccurrence(context.Background(), "occ-1"); err != nil {
		t.Fatalf("delete occurrence: %v", err)
	}
	if _, ok := repo.occurrences["occ-1"]; ok {
		t.Fatal("occurrence must be removed")
	}

	if err := svc.DeleteOccurrence(context.Background(), "occ-1"); !errors.Is(err, ErrOccurrenceNotFound) {
		t.Fatalf("expected ErrOccurrenceNotFound, got %v", err)
	}
}

func TestGetOccurrenceDetail(t *testing.T) {
	repo := newFakeRepo()
	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(repo, now)

	seedOccurrence(repo, "occ-1", "group-1", now.Add(24*time.Hour), OccurrenceScheduled)
	repo.roster["occ-1"] = []RosterEntry{{ID: "e1", OccurrenceID: "occ-1", PersonID: "p1", Role: RolePlayer, Status: AttendanceExpected}}
	repo.structure["occ-1"] = []StructureItem{{ID: "i1", OccurrenceID: "occ-1", Category: "warmup", Minutes: 15, Position: 0}}

	detail, err := svc.GetOccurrence(context.Background(), "occ-1")
	if err != nil {
		t.Fatalf("get occurrence: %v", err)
	}
	if detail.Occurrence.ID != "occ-1" || len(detail.Roster) != 1 || len(detail.Structure) != 1 {
		t.Fatal("detail must bundle occurrence, roster and structure")
	}
}
