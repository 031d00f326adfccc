package models

import (
	"strings"
	"time"
)

const (
	UserRoleManager = "MANAGER"
	UserRoleUser    = "USER"
)

type User struct {
	ID          int       `gorm:"primary_key" json:"id"`
	Email       string    `gorm:"size:150;not null;uniqueIndex" json:"email"`
	Password    string    `gorm:"size:255;not null" json:"-"`
	FirstName   string    `gorm:"size:100" json:"first_name"`
	LastName    string    `gorm:"size:100" json:"last_name"`
	Role        string    `gorm:"size:20;not null" json:"role"`
	FirebaseUid *string   `gorm:"size:128;uniqueIndex" json:"firebase_uid"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// DisplayName is "First Last", or the email when both are blank.
func (u User) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name == "" {
		return u.Email
	}
	return name
}

// SplitDisplayName splits on the first space: "Rakoto Jean Paul" -> ("Rakoto", "Jean Paul").
func SplitDisplayName(displayName string) (string, string) {
	displayName = strings.TrimSpace(displayName)
	first, last, found := strings.Cut(displayName, " ")
	if !found {
		return displayName, ""
	}
	return first, strings.TrimSpace(last)
}
