package models

import "time"

// User represents application user. Accounts are provisioned by the
// external auth service; this core only scopes data per user.
type User struct {
	ID          uint   `gorm:"primaryKey"`
	Username    string `gorm:"size:64;uniqueIndex;not null"`
	DisplayName string `gorm:"size:64"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
