package model

import "time"

type User struct {
	ID              string    `gorm:"primaryKey;size:255" json:"id"`
	Email           *string   `gorm:"uniqueIndex;size:255" json:"email"`
	FirstName       string    `gorm:"size:255" json:"firstName"`
	LastName        string    `gorm:"size:255" json:"lastName"`
	ProfileImageURL string    `gorm:"size:1024" json:"profileImageUrl"`
	Username        *string   `gorm:"uniqueIndex;size:255" json:"username,omitempty"`
	PasswordHash    string    `gorm:"column:password;size:255" json:"-"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func (User) TableName() string {
	return "users"
}

// Fixed identities used when the service runs without an identity provider.
const (
	OfflineUserID  = "offline-user"
	OfflineAdminID = "admin-user"
)
