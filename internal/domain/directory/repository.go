package directory

import "context"

type Repository interface {
	UpsertProfile(ctx context.Context, profile *Profile) error
	GetProfilesByIDs(ctx context.Context, personIDs []string) ([]Profile, error)
}
