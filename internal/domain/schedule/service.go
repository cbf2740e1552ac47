package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"club-planner-go/internal/notify"
	"club-planner-go/pkg/logger"
	"github.com/google/uuid"
)

// Service coordinates series and occurrence edits. Series-scope edits
// regenerate the future window inside one transaction; occurrence-scope
// roster edits fan out through the RosterSyncEngine after the primary
// write is durable.
type Service struct {
	repo     Repository
	sync     *RosterSyncEngine
	notifier notify.Dispatcher
	log      logger.Logger
	now      func() time.Time
}

func NewService(repo Repository, sync *RosterSyncEngine, notifier notify.Dispatcher, log logger.Logger) *Service {
	return &Service{
		repo:     repo,
		sync:     sync,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// CreateSeries validates the rule, materializes its occurrences from the
// rule's start date, and applies the initial roster and structure to each
// of them. Nothing is stored when generation yields zero slots.
func (s *Service) CreateSeries(ctx context.Context, input CreateSeriesInput) (*SeriesResult, error) {
	if err := validateRule(input.Rule); err != nil {
		return nil, err
	}
	if err := validateStructure(input.Structure); err != nil {
		return nil, err
	}
	members, err := combineRoster(input.Roster, input.Coaches)
	if err != nil {
		return nil, err
	}

	rule := buildRule(input.Rule, input.CreatedBy)

	slots, err := GenerateSlots(rule, rule.StartDate, rule.EndDate, GenerationCap)
	if err != nil {
		return nil, err
	}

	occurrences := buildOccurrences(rule, slots)
	ids := occurrenceIDs(occurrences)

	err = s.repo.Transaction(ctx, func(tx Repository) error {
		if err := tx.CreateRule(ctx, &rule); err != nil {
			return err
		}
		if _, err := tx.InsertOccurrenceBatch(ctx, occurrences); err != nil {
			return err
		}
		for _, id := range ids {
			if len(members) == 0 {
				break
			}
			if err := tx.ReplaceRoster(ctx, id, rosterEntriesFor(id, members)); err != nil {
				return err
			}
		}
		return applyStructure(ctx, tx, input.Structure, ids)
	})
	if err != nil {
		return nil, err
	}

	s.notifier.ScheduleChanged(ctx, notify.ScheduleChangedEvent{
		EventID:       notify.NewEventID(),
		GroupID:       rule.GroupID,
		RuleID:        rule.ID,
		NewStart:      slots[0].StartsAt,
		NewEnd:        slots[len(slots)-1].EndsAt,
		OccurrenceIDs: ids,
	})

	return &SeriesResult{Rule: rule, OccurrenceIDs: ids}, nil
}

// CreateOccurrence stores a single standalone occurrence with its roster
// and structure.
func (s *Service) CreateOccurrence(ctx context.Context, input CreateOccurrenceInput) (*Occurrence, error) {
	if err := validateOccurrenceInput(input); err != nil {
		return nil, err
	}
	if err := validateStructure(input.Structure); err != nil {
		return nil, err
	}
	members, err := combineRoster(input.Roster, input.Coaches)
	if err != nil {
		return nil, err
	}

	occurrence := Occurrence{
		ID:              uuid.NewString(),
		GroupID:         input.GroupID,
		ClubID:          input.ClubID,
		ActivityType:    input.ActivityType,
		Title:           strings.TrimSpace(input.Title),
		Location:        strings.TrimSpace(input.Location),
		Notes:           input.Notes,
		StartsAt:        input.StartsAt,
		EndsAt:          input.StartsAt.Add(time.Duration(input.DurationMinutes) * time.Minute),
		DurationMinutes: input.DurationMinutes,
		Status:          OccurrenceScheduled,
		Version:         1,
	}

	err = s.repo.Transaction(ctx, func(tx Repository) error {
		if _, err := tx.InsertOccurrenceBatch(ctx, []Occurrence{occurrence}); err != nil {
			return err
		}
		if len(members) > 0 {
			if err := tx.ReplaceRoster(ctx, occurrence.ID, rosterEntriesFor(occurrence.ID, members)); err != nil {
				return err
			}
		}
		return applyStructure(ctx, tx, input.Structure, []string{occurrence.ID})
	})
	if err != nil {
		return nil, err
	}

	s.notifier.ScheduleChanged(ctx, notify.ScheduleChangedEvent{
		EventID:       notify.NewEventID(),
		GroupID:       occurrence.GroupID,
		NewStart:      occurrence.StartsAt,
		NewEnd:        occurrence.EndsAt,
		OccurrenceIDs: []string{occurrence.ID},
	})

	return &occurrence, nil
}

// EditOccurrence mutates one occurrence. When the roster changes, the
// delta is propagated group-wide after the edit is committed; propagation
// failures are reported back but never unwind the edit.
func (s *Service) EditOccurrence(ctx context.Context, input EditOccurrenceInput) (*EditOccurrenceResult, error) {
	occurrence, err := s.repo.GetOccurrenceByID(ctx, input.OccurrenceID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	oldStart, oldEnd := occurrence.StartsAt, occurrence.EndsAt

	var members []RosterMember
	if input.Roster != nil {
		members, err = combineRoster(input.Roster.Members, input.Roster.Coaches)
		if err != nil {
			return nil, err
		}
	}
	if err := validateStructure(input.Structure); err != nil {
		return nil, err
	}
	if err := applyOccurrenceEdit(occurrence, input); err != nil {
		return nil, err
	}

	var added []RosterMember
	var removed []string

	err = s.repo.Transaction(ctx, func(tx Repository) error {
		if err := tx.UpdateOccurrence(ctx, occurrence, input.Version); err != nil {
			return err
		}
		if input.Roster != nil {
			current, err := tx.ListRoster(ctx, occurrence.ID)
			if err != nil {
				return err
			}
			added, removed = diffRoster(current, members)
			if err := tx.ReplaceRoster(ctx, occurrence.ID, rosterEntriesFor(occurrence.ID, members)); err != nil {
				return err
			}
		}
		return applyStructure(ctx, tx, input.Structure, []string{occurrence.ID})
	})
	if err != nil {
		return nil, err
	}

	result := &EditOccurrenceResult{Occurrence: *occurrence}

	if len(added) > 0 || len(removed) > 0 {
		report, err := s.sync.Propagate(ctx, PropagateInput{
			GroupID:             occurrence.GroupID,
			Added:               added,
			Removed:             removed,
			ExcludeOccurrenceID: occurrence.ID,
			AsOf:                now,
			Scope:               ScopeGroup,
		})
		if err != nil {
			// The direct edit is already durable; surface the failed
			// fan-out instead of failing the request.
			s.log.InternalError("roster propagation failed", err, "occurrence_id", occurrence.ID)
			report.Failed = append(report.Failed, PropagationFailure{Err: err})
		}
		result.Propagation = &report

		s.notifier.RosterChanged(ctx, notify.RosterChangedEvent{
			EventID:          notify.NewEventID(),
			GroupID:          occurrence.GroupID,
			OccurrenceID:     occurrence.ID,
			AddedPersonIDs:   personIDs(added),
			RemovedPersonIDs: removed,
		})
	}

	if !occurrence.StartsAt.Equal(oldStart) || !occurrence.EndsAt.Equal(oldEnd) {
		s.notifier.ScheduleChanged(ctx, notify.ScheduleChangedEvent{
			EventID:       notify.NewEventID(),
			GroupID:       occurrence.GroupID,
			OldStart:      oldStart,
			OldEnd:        oldEnd,
			NewStart:      occurrence.StartsAt,
			NewEnd:        occurrence.EndsAt,
			OccurrenceIDs: []string{occurrence.ID},
		})
	}

	return result, nil
}

// EditSeries updates the rule and regenerates its future occurrences.
// Generation runs before any mutation; the delete-future, re-insert and
// reapply steps share one transaction so a mid-sequence failure cannot
// leave the series half-regenerated. Past occurrences are never touched.
func (s *Service) EditSeries(ctx context.Context, input EditSeriesInput) (*SeriesResult, error) {
	rule, err := s.repo.GetRuleByID(ctx, input.RuleID)
	if err != nil {
		return nil, err
	}

	effective := input.Rule
	effective.GroupID = rule.GroupID
	effective.ClubID = rule.ClubID
	if err := validateRule(effective); err != nil {
		return nil, err
	}
	if err := validateStructure(input.Structure); err != nil {
		return nil, err
	}

	now := s.now()

	updated := *rule
	applyRuleInput(&updated, effective)

	slots, err := GenerateSlots(updated, now, updated.EndDate, GenerationCap)
	if err != nil {
		if !errors.Is(err, ErrNoOccurrences) {
			return nil, err
		}
		slots = nil
	}
	// Generation anchors on dates, so an edit running after the rule's
	// time of day can emit today's already-started slot. That slot was
	// kept as history by the future-only delete below; inserting it again
	// would duplicate it.
	slots = pendingSlots(slots, now)
	// An inactive rule may legitimately end with no future window; an
	// active one must not lose all of its occurrences.
	if len(slots) == 0 && updated.IsActive {
		return nil, ErrNoOccurrences
	}

	members, structureTemplate, existing, err := s.captureTemplate(ctx, rule.ID, now)
	if err != nil {
		return nil, err
	}
	structure := input.Structure
	if structure.isNoop() {
		structure = structureTemplate
	}

	occurrences := buildOccurrences(updated, slots)
	ids := occurrenceIDs(occurrences)

	err = s.repo.Transaction(ctx, func(tx Repository) error {
		if err := tx.UpdateRule(ctx, &updated, input.Version); err != nil {
			return err
		}
		if _, err := tx.DeleteFutureForRule(ctx, rule.ID, now); err != nil {
			return err
		}
		if len(occurrences) == 0 {
			return nil
		}
		if _, err := tx.InsertOccurrenceBatch(ctx, occurrences); err != nil {
			return err
		}
		for _, id := range ids {
			if len(members) == 0 {
				break
			}
			if err := tx.ReplaceRoster(ctx, id, rosterEntriesFor(id, members)); err != nil {
				return err
			}
		}
		return applyStructure(ctx, tx, structure, ids)
	})
	if err != nil {
		return nil, err
	}

	event := notify.ScheduleChangedEvent{
		EventID:       notify.NewEventID(),
		GroupID:       updated.GroupID,
		RuleID:        updated.ID,
		OccurrenceIDs: ids,
	}
	if first := firstScheduledAfter(existing, now); first != nil {
		event.OldStart = first.StartsAt
		event.OldEnd = first.EndsAt
	}
	if len(slots) > 0 {
		event.NewStart = slots[0].StartsAt
		event.NewEnd = slots[len(slots)-1].EndsAt
	}
	s.notifier.ScheduleChanged(ctx, event)

	return &SeriesResult{Rule: updated, OccurrenceIDs: ids}, nil
}

// DeleteOccurrence removes a single occurrence regardless of rule
// membership.
func (s *Service) DeleteOccurrence(ctx context.Context, occurrenceID string) error {
	occurrence, err := s.repo.GetOccurrenceByID(ctx, occurrenceID)
	if err != nil {
		return err
	}

	deleted, err := s.repo.DeleteOccurrence(ctx, occurrenceID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrOccurrenceNotFound
	}

	s.notifier.OccurrenceDeleted(ctx, notify.OccurrenceDeletedEvent{
		EventID:      notify.NewEventID(),
		GroupID:      occurrence.GroupID,
		OccurrenceID: occurrence.ID,
		StartsAt:     occurrence.StartsAt,
	})

	return nil
}

// DeleteSeries removes the rule and every one of its occurrences, past and
// future. This is the explicit whole-series deletion, distinct from
// regeneration and from DeleteGroupKeepHistory.
func (s *Service) DeleteSeries(ctx context.Context, ruleID string) error {
	rule, err := s.repo.GetRuleByID(ctx, ruleID)
	if err != nil {
		return err
	}

	err = s.repo.Transaction(ctx, func(tx Repository) error {
		if _, err := tx.DeleteAllForRule(ctx, ruleID); err != nil {
			return err
		}
		deleted, err := tx.DeleteRule(ctx, ruleID)
		if err != nil {
			return err
		}
		if !deleted {
			return ErrRuleNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.notifier.ScheduleChanged(ctx, notify.ScheduleChangedEvent{
		EventID: notify.NewEventID(),
		GroupID: rule.GroupID,
		RuleID:  rule.ID,
	})

	return nil
}

// DeleteGroupKeepHistory removes the group's future occurrences while
// preserving past ones, so history survives the group itself going away.
func (s *Service) DeleteGroupKeepHistory(ctx context.Context, groupID string) (int64, error) {
	now := s.now()
	count, err := s.repo.DeleteFutureForGroup(ctx, groupID, now)
	if err != nil {
		return 0, err
	}

	s.notifier.ScheduleChanged(ctx, notify.ScheduleChangedEvent{
		EventID: notify.NewEventID(),
		GroupID: groupID,
	})

	return count, nil
}

// GetOccurrence loads an occurrence with its roster and structure.
func (s *Service) GetOccurrence(ctx context.Context, occurrenceID string) (*OccurrenceDetail, error) {
	occurrence, err := s.repo.GetOccurrenceByID(ctx, occurrenceID)
	if err != nil {
		return nil, err
	}
	roster, err := s.repo.ListRoster(ctx, occurrenceID)
	if err != nil {
		return nil, err
	}
	structure, err := s.repo.ListStructure(ctx, occurrenceID)
	if err != nil {
		return nil, err
	}
	return &OccurrenceDetail{Occurrence: *occurrence, Roster: roster, Structure: structure}, nil
}

// ListGroupOccurrences returns a group's occurrences inside [from, to).
func (s *Service) ListGroupOccurrences(ctx context.Context, groupID string, from, to time.Time) ([]Occurrence, error) {
	if strings.TrimSpace(groupID) == "" {
		return nil, fmt.Errorf("%w: group id is required", ErrValidation)
	}
	return s.repo.ListForGroupBetween(ctx, groupID, from, to)
}

// captureTemplate reads the roster and structure that regeneration should
// reapply, taken from the rule's earliest future scheduled occurrence or,
// failing that, its latest occurrence. It runs before anything is deleted.
func (s *Service) captureTemplate(ctx context.Context, ruleID string, asOf time.Time) ([]RosterMember, StructureUpdate, []Occurrence, error) {
	occurrences, err := s.repo.ListOccurrencesByRule(ctx, ruleID)
	if err != nil {
		return nil, StructureUpdate{}, nil, err
	}

	source := firstScheduledAfter(occurrences, asOf)
	if source == nil && len(occurrences) > 0 {
		source = &occurrences[len(occurrences)-1]
	}
	if source == nil {
		return nil, StructureUpdate{}, occurrences, nil
	}

	roster, err := s.repo.ListRoster(ctx, source.ID)
	if err != nil {
		return nil, StructureUpdate{}, nil, err
	}
	structure, err := s.repo.ListStructure(ctx, source.ID)
	if err != nil {
		return nil, StructureUpdate{}, nil, err
	}

	members := make([]RosterMember, 0, len(roster))
	for _, entry := range roster {
		members = append(members, RosterMember{PersonID: entry.PersonID, Role: entry.Role})
	}

	return members, structureTemplateOf(structure), occurrences, nil
}

// pendingSlots drops slots that already started. Only the leading slot can
// be behind the clock, but scanning forward keeps the contract obvious.
func pendingSlots(slots []Slot, asOf time.Time) []Slot {
	for len(slots) > 0 && slots[0].StartsAt.Before(asOf) {
		slots = slots[1:]
	}
	return slots
}

func firstScheduledAfter(occurrences []Occurrence, asOf time.Time) *Occurrence {
	for i := range occurrences {
		if occurrences[i].Status != OccurrenceScheduled {
			continue
		}
		if !occurrences[i].StartsAt.Before(asOf) {
			return &occurrences[i]
		}
	}
	return nil
}

func validateRule(input RuleInput) error {
	if strings.TrimSpace(input.GroupID) == "" {
		return fmt.Errorf("%w: group id is required", ErrValidation)
	}
	if strings.TrimSpace(input.ClubID) == "" {
		return fmt.Errorf("%w: club id is required", ErrValidation)
	}
	if !validActivityType(input.ActivityType) {
		return fmt.Errorf("%w: unknown activity type %q", ErrValidation, input.ActivityType)
	}
	if input.DurationMinutes <= 0 {
		return fmt.Errorf("%w: duration must be positive", ErrValidation)
	}
	if input.Weekday < 0 || input.Weekday > 6 {
		return fmt.Errorf("%w: weekday must be between 0 and 6", ErrValidation)
	}
	if input.IntervalWeeks < 1 {
		return fmt.Errorf("%w: interval weeks must be at least 1", ErrValidation)
	}
	if _, _, err := ParseTimeOfDay(input.TimeOfDay); err != nil {
		return err
	}
	if input.StartDate.IsZero() || input.EndDate.IsZero() {
		return fmt.Errorf("%w: start and end date are required", ErrValidation)
	}
	if input.EndDate.Before(input.StartDate) {
		return fmt.Errorf("%w: end date is before start date", ErrValidation)
	}
	return nil
}

func validateOccurrenceInput(input CreateOccurrenceInput) error {
	if strings.TrimSpace(input.GroupID) == "" {
		return fmt.Errorf("%w: group id is required", ErrValidation)
	}
	if strings.TrimSpace(input.ClubID) == "" {
		return fmt.Errorf("%w: club id is required", ErrValidation)
	}
	if !validActivityType(input.ActivityType) {
		return fmt.Errorf("%w: unknown activity type %q", ErrValidation, input.ActivityType)
	}
	if input.StartsAt.IsZero() {
		return fmt.Errorf("%w: start time is required", ErrValidation)
	}
	if input.DurationMinutes <= 0 {
		return fmt.Errorf("%w: duration must be positive", ErrValidation)
	}
	return nil
}

func applyOccurrenceEdit(occurrence *Occurrence, input EditOccurrenceInput) error {
	if input.Title != nil {
		occurrence.Title = strings.TrimSpace(*input.Title)
	}
	if input.Location != nil {
		occurrence.Location = strings.TrimSpace(*input.Location)
	}
	if input.Notes != nil {
		occurrence.Notes = *input.Notes
	}
	if input.StartsAt != nil {
		occurrence.StartsAt = *input.StartsAt
	}
	if input.DurationMinutes != nil {
		if *input.DurationMinutes <= 0 {
			return fmt.Errorf("%w: duration must be positive", ErrValidation)
		}
		occurrence.DurationMinutes = *input.DurationMinutes
	}
	if input.Status != nil {
		if *input.Status != OccurrenceScheduled && *input.Status != OccurrenceCancelled {
			return fmt.Errorf("%w: unknown status %q", ErrValidation, *input.Status)
		}
		occurrence.Status = *input.Status
	}
	occurrence.EndsAt = occurrence.StartsAt.Add(time.Duration(occurrence.DurationMinutes) * time.Minute)
	if !occurrence.EndsAt.After(occurrence.StartsAt) {
		return fmt.Errorf("%w: occurrence ends before it starts", ErrValidation)
	}
	return nil
}

func validActivityType(value string) bool {
	switch value {
	case ActivityTraining, ActivityCamp, ActivityInterclub:
		return true
	default:
		return false
	}
}

func buildRule(input RuleInput, createdBy string) RecurrenceRule {
	return RecurrenceRule{
		ID:              uuid.NewString(),
		GroupID:         input.GroupID,
		ClubID:          input.ClubID,
		ActivityType:    input.ActivityType,
		Title:           strings.TrimSpace(input.Title),
		Location:        strings.TrimSpace(input.Location),
		Notes:           input.Notes,
		DurationMinutes: input.DurationMinutes,
		Weekday:         input.Weekday,
		TimeOfDay:       input.TimeOfDay,
		IntervalWeeks:   input.IntervalWeeks,
		StartDate:       input.StartDate,
		EndDate:         input.EndDate,
		IsActive:        input.IsActive,
		CreatedBy:       createdBy,
		Version:         1,
	}
}

func applyRuleInput(rule *RecurrenceRule, input RuleInput) {
	rule.ActivityType = input.ActivityType
	rule.Title = strings.TrimSpace(input.Title)
	rule.Location = strings.TrimSpace(input.Location)
	rule.Notes = input.Notes
	rule.DurationMinutes = input.DurationMinutes
	rule.Weekday = input.Weekday
	rule.TimeOfDay = input.TimeOfDay
	rule.IntervalWeeks = input.IntervalWeeks
	rule.StartDate = input.StartDate
	rule.EndDate = input.EndDate
	rule.IsActive = input.IsActive
}

func buildOccurrences(rule RecurrenceRule, slots []Slot) []Occurrence {
	occurrences := make([]Occurrence, 0, len(slots))
	for _, slot := range slots {
		ruleID := rule.ID
		occurrences = append(occurrences, Occurrence{
			ID:              uuid.NewString(),
			RuleID:          &ruleID,
			GroupID:         rule.GroupID,
			ClubID:          rule.ClubID,
			ActivityType:    rule.ActivityType,
			Title:           rule.Title,
			Location:        rule.Location,
			Notes:           rule.Notes,
			StartsAt:        slot.StartsAt,
			EndsAt:          slot.EndsAt,
			DurationMinutes: rule.DurationMinutes,
			Status:          OccurrenceScheduled,
			Version:         1,
		})
	}
	return occurrences
}

func occurrenceIDs(occurrences []Occurrence) []string {
	ids := make([]string, 0, len(occurrences))
	for _, occurrence := range occurrences {
		ids = append(ids, occurrence.ID)
	}
	return ids
}

// combineRoster merges player/guest members with the coach list into one
// roster, rejecting duplicate persons and unknown roles.
func combineRoster(members []RosterMember, coaches []string) ([]RosterMember, error) {
	combined := make([]RosterMember, 0, len(members)+len(coaches))
	seen := make(map[string]struct{}, len(members)+len(coaches))

	for _, member := range members {
		if strings.TrimSpace(member.PersonID) == "" {
			return nil, fmt.Errorf("%w: roster person id is required", ErrValidation)
		}
		if member.Role != RolePlayer && member.Role != RoleGuest && member.Role != RoleCoach {
			return nil, fmt.Errorf("%w: unknown roster role %q", ErrValidation, member.Role)
		}
		if _, ok := seen[member.PersonID]; ok {
			return nil, fmt.Errorf("%w: duplicate roster person %s", ErrValidation, member.PersonID)
		}
		seen[member.PersonID] = struct{}{}
		combined = append(combined, member)
	}
	for _, personID := range coaches {
		if strings.TrimSpace(personID) == "" {
			return nil, fmt.Errorf("%w: coach person id is required", ErrValidation)
		}
		if _, ok := seen[personID]; ok {
			continue
		}
		seen[personID] = struct{}{}
		combined = append(combined, RosterMember{PersonID: personID, Role: RoleCoach})
	}

	return combined, nil
}

func rosterEntriesFor(occurrenceID string, members []RosterMember) []RosterEntry {
	entries := make([]RosterEntry, 0, len(members))
	for _, member := range members {
		entries = append(entries, RosterEntry{
			ID:           uuid.NewString(),
			OccurrenceID: occurrenceID,
			PersonID:     member.PersonID,
			Role:         member.Role,
			Status:       initialAttendance(member.Role),
		})
	}
	return entries
}

func personIDs(members []RosterMember) []string {
	ids := make([]string, 0, len(members))
	for _, member := range members {
		ids = append(ids, member.PersonID)
	}
	return ids
}
