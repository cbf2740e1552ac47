package directory

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type Service struct {
	repo     Repository
	cache    Cache
	cacheTTL time.Duration
}

func NewService(repo Repository, cache Cache, cacheTTL time.Duration) *Service {
	if cache == nil {
		cache = noopCache{}
	}
	return &Service{repo: repo, cache: cache, cacheTTL: cacheTTL}
}

func (s *Service) UpsertProfile(ctx context.Context, personID, email, displayName, avatarURL string) error {
	if strings.TrimSpace(personID) == "" {
		return fmt.Errorf("person id is required")
	}

	profile := Profile{PersonID: personID}
	if email != "" {
		profile.Email = &email
	}
	if displayName != "" {
		profile.DisplayName = &displayName
	}
	if avatarURL != "" {
		profile.AvatarURL = &avatarURL
	}

	if err := s.repo.UpsertProfile(ctx, &profile); err != nil {
		return err
	}

	if displayName != "" {
		s.cache.SetName(personID, displayName, s.cacheTTL)
	}
	return nil
}

// DisplayNames resolves person ids to display names. Unknown ids are
// simply absent from the result; callers fall back to the raw id.
func (s *Service) DisplayNames(ctx context.Context, personIDs []string) (map[string]string, error) {
	names := make(map[string]string, len(personIDs))

	missing := make([]string, 0, len(personIDs))
	for _, personID := range personIDs {
		if name, ok := s.cache.GetName(personID); ok {
			names[personID] = name
			continue
		}
		missing = append(missing, personID)
	}
	if len(missing) == 0 {
		return names, nil
	}

	profiles, err := s.repo.GetProfilesByIDs(ctx, missing)
	if err != nil {
		return nil, err
	}
	for _, profile := range profiles {
		if profile.DisplayName == nil || *profile.DisplayName == "" {
			continue
		}
		names[profile.PersonID] = *profile.DisplayName
		s.cache.SetName(profile.PersonID, *profile.DisplayName, s.cacheTTL)
	}

	return names, nil
}
