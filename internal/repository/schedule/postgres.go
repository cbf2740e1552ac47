package schedule

import (
	"context"
	"errors"
	"time"

	scheduledomain "club-planner-go/internal/domain/schedule"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresRepository struct {
	db *gorm.DB
}

func NewPostgres(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Transaction(ctx context.Context, fn func(scheduledomain.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&PostgresRepository{db: tx})
	})
}

// Rule operations

func (r *PostgresRepository) CreateRule(ctx context.Context, rule *scheduledomain.RecurrenceRule) error {
	return r.db.WithContext(ctx).Create(rule).Error
}

func (r *PostgresRepository) GetRuleByID(ctx context.Context, ruleID string) (*scheduledomain.RecurrenceRule, error) {
	var rule scheduledomain.RecurrenceRule
	if err := r.db.WithContext(ctx).
		Where("id = ?", ruleID).
		First(&rule).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, scheduledomain.ErrRuleNotFound
		}
		return nil, err
	}
	return &rule, nil
}

func (r *PostgresRepository) UpdateRule(ctx context.Context, rule *scheduledomain.RecurrenceRule, expectedVersion int64) error {
	result := r.db.WithContext(ctx).
		Model(&scheduledomain.RecurrenceRule{}).
		Where("id = ? AND version = ?", rule.ID, expectedVersion).
		Updates(map[string]interface{}{
			"activity_type":    rule.ActivityType,
			"title":            rule.Title,
			"location":         rule.Location,
			"notes":            rule.Notes,
			"duration_minutes": rule.DurationMinutes,
			"weekday":          rule.Weekday,
			"time_of_day":      rule.TimeOfDay,
			"interval_weeks":   rule.IntervalWeeks,
			"start_date":       rule.StartDate,
			"end_date":         rule.EndDate,
			"is_active":        rule.IsActive,
			"version":          expectedVersion + 1,
			"updated_at":       time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.staleRule(ctx, rule.ID)
	}
	rule.Version = expectedVersion + 1
	return nil
}

func (r *PostgresRepository) staleRule(ctx context.Context, ruleID string) error {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&scheduledomain.RecurrenceRule{}).
		Where("id = ?", ruleID).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return scheduledomain.ErrRuleNotFound
	}
	return scheduledomain.ErrVersionConflict
}

func (r *PostgresRepository) DeleteRule(ctx context.Context, ruleID string) (bool, error) {
	result := r.db.WithContext(ctx).Delete(&scheduledomain.RecurrenceRule{}, "id = ?", ruleID)
	return result.RowsAffected > 0, result.Error
}

// Occurrence operations

func (r *PostgresRepository) GetOccurrenceByID(ctx context.Context, occurrenceID string) (*scheduledomain.Occurrence, error) {
	var occurrence scheduledomain.Occurrence
	if err := r.db.WithContext(ctx).
		Where("id = ?", occurrenceID).
		First(&occurrence).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, scheduledomain.ErrOccurrenceNotFound
		}
		return nil, err
	}
	return &occurrence, nil
}

func (r *PostgresRepository) ListOccurrencesByRule(ctx context.Context, ruleID string) ([]scheduledomain.Occurrence, error) {
	var occurrences []scheduledomain.Occurrence
	if err := r.db.WithContext(ctx).
		Where("rule_id = ?", ruleID).
		Order("starts_at asc").
		Find(&occurrences).Error; err != nil {
		return nil, err
	}
	return occurrences, nil
}

func (r *PostgresRepository) ListScheduledForGroup(ctx context.Context, groupID string, asOf time.Time) ([]scheduledomain.Occurrence, error) {
	var occurrences []scheduledomain.Occurrence
	if err := r.db.WithContext(ctx).
		Where("group_id = ? AND status = ? AND starts_at >= ?", groupID, scheduledomain.OccurrenceScheduled, asOf).
		Order("starts_at asc").
		Find(&occurrences).Error; err != nil {
		return nil, err
	}
	return occurrences, nil
}

func (r *PostgresRepository) ListForGroupBetween(ctx context.Context, groupID string, from, to time.Time) ([]scheduledomain.Occurrence, error) {
	query := r.db.WithContext(ctx).Where("group_id = ?", groupID)
	if !from.IsZero() {
		query = query.Where("starts_at >= ?", from)
	}
	if !to.IsZero() {
		query = query.Where("starts_at < ?", to)
	}

	var occurrences []scheduledomain.Occurrence
	if err := query.Order("starts_at asc").Find(&occurrences).Error; err != nil {
		return nil, err
	}
	return occurrences, nil
}

// InsertOccurrenceBatch creates all rows in one statement so the batch is
// atomic inside the caller's transaction.
func (r *PostgresRepository) InsertOccurrenceBatch(ctx context.Context, occurrences []scheduledomain.Occurrence) ([]string, error) {
	if len(occurrences) == 0 {
		return nil, nil
	}
	if err := r.db.WithContext(ctx).Create(&occurrences).Error; err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(occurrences))
	for _, occurrence := range occurrences {
		ids = append(ids, occurrence.ID)
	}
	return ids, nil
}

func (r *PostgresRepository) UpdateOccurrence(ctx context.Context, occurrence *scheduledomain.Occurrence, expectedVersion int64) error {
	result := r.db.WithContext(ctx).
		Model(&scheduledomain.Occurrence{}).
		Where("id = ? AND version = ?", occurrence.ID, expectedVersion).
		Updates(map[string]interface{}{
			"title":            occurrence.Title,
			"location":         occurrence.Location,
			"notes":            occurrence.Notes,
			"starts_at":        occurrence.StartsAt,
			"ends_at":          occurrence.EndsAt,
			"duration_minutes": occurrence.DurationMinutes,
			"status":           occurrence.Status,
			"version":          expectedVersion + 1,
			"updated_at":       time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.staleOccurrence(ctx, occurrence.ID)
	}
	occurrence.Version = expectedVersion + 1
	return nil
}

func (r *PostgresRepository) staleOccurrence(ctx context.Context, occurrenceID string) error {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&scheduledomain.Occurrence{}).
		Where("id = ?", occurrenceID).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return scheduledomain.ErrOccurrenceNotFound
	}
	return scheduledomain.ErrVersionConflict
}

func (r *PostgresRepository) DeleteOccurrence(ctx context.Context, occurrenceID string) (bool, error) {
	result := r.db.WithContext(ctx).Delete(&scheduledomain.Occurrence{}, "id = ?", occurrenceID)
	return result.RowsAffected > 0, result.Error
}

func (r *PostgresRepository) DeleteFutureForRule(ctx context.Context, ruleID string, asOf time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Delete(&scheduledomain.Occurrence{}, "rule_id = ? AND starts_at >= ?", ruleID, asOf)
	return result.RowsAffected, result.Error
}

func (r *PostgresRepository) DeleteAllForRule(ctx context.Context, ruleID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Delete(&scheduledomain.Occurrence{}, "rule_id = ?", ruleID)
	return result.RowsAffected, result.Error
}

func (r *PostgresRepository) DeleteFutureForGroup(ctx context.Context, groupID string, asOf time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Delete(&scheduledomain.Occurrence{}, "group_id = ? AND starts_at >= ?", groupID, asOf)
	return result.RowsAffected, result.Error
}

// Roster operations

func (r *PostgresRepository) ListRoster(ctx context.Context, occurrenceID string) ([]scheduledomain.RosterEntry, error) {
	var entries []scheduledomain.RosterEntry
	if err := r.db.WithContext(ctx).
		Where("occurrence_id = ?", occurrenceID).
		Order("created_at asc").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *PostgresRepository) ReplaceRoster(ctx context.Context, occurrenceID string, entries []scheduledomain.RosterEntry) error {
	if err := r.db.WithContext(ctx).Where("occurrence_id = ?", occurrenceID).Delete(&scheduledomain.RosterEntry{}).Error; err != nil {
		return err
	}

	if len(entries) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Create(&entries).Error
}

// UpsertRosterEntry inserts the entry unless the person is already on the
// occurrence's roster.
func (r *PostgresRepository) UpsertRosterEntry(ctx context.Context, entry *scheduledomain.RosterEntry) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "occurrence_id"}, {Name: "person_id"}},
			DoNothing: true,
		}).
		Create(entry).Error
}

func (r *PostgresRepository) DeleteRosterEntry(ctx context.Context, occurrenceID, personID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Delete(&scheduledomain.RosterEntry{}, "occurrence_id = ? AND person_id = ?", occurrenceID, personID)
	return result.RowsAffected > 0, result.Error
}

// Structure operations

func (r *PostgresRepository) ListStructure(ctx context.Context, occurrenceID string) ([]scheduledomain.StructureItem, error) {
	var items []scheduledomain.StructureItem
	if err := r.db.WithContext(ctx).
		Where("occurrence_id = ?", occurrenceID).
		Order("position asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *PostgresRepository) ReplaceStructure(ctx context.Context, occurrenceID string, items []scheduledomain.StructureItem) error {
	if err := r.db.WithContext(ctx).Where("occurrence_id = ?", occurrenceID).Delete(&scheduledomain.StructureItem{}).Error; err != nil {
		return err
	}

	if len(items) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Create(&items).Error
}
