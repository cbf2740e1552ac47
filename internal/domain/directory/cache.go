package directory

import "time"

type Cache interface {
	GetName(personID string) (string, bool)
	SetName(personID, name string, ttl time.Duration)
	Clear()
}

type noopCache struct{}

func (noopCache) GetName(string) (string, bool) {
	return "", false
}

func (noopCache) SetName(string, string, time.Duration) {}

func (noopCache) Clear() {}
