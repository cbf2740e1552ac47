package directory

import "time"

// Profile mirrors the club directory's record for a person. The core
// consumes it read-only for name resolution; the auth middleware keeps it
// fresh on login.
type Profile struct {
	PersonID    string    `gorm:"type:uuid;primaryKey"`
	Email       *string   `gorm:"type:text"`
	DisplayName *string   `gorm:"type:text"`
	AvatarURL   *string   `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}
