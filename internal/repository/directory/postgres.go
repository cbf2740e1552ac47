package directory

import (
	"context"
	"time"

	directorydomain "club-planner-go/internal/domain/directory"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresRepository struct {
	db *gorm.DB
}

func NewPostgres(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) UpsertProfile(ctx context.Context, profile *directorydomain.Profile) error {
	updates := map[string]interface{}{
		"updated_at": time.Now().UTC(),
	}
	if profile.Email != nil {
		updates["email"] = profile.Email
	}
	if profile.DisplayName != nil {
		updates["display_name"] = profile.DisplayName
	}
	if profile.AvatarURL != nil {
		updates["avatar_url"] = profile.AvatarURL
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "person_id"}},
			DoUpdates: clause.Assignments(updates),
		}).
		Create(profile).Error
}

func (r *PostgresRepository) GetProfilesByIDs(ctx context.Context, personIDs []string) ([]directorydomain.Profile, error) {
	if len(personIDs) == 0 {
		return nil, nil
	}

	var profiles []directorydomain.Profile
	if err := r.db.WithContext(ctx).
		Where("person_id IN ?", personIDs).
		Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}
