package model

import (
	"time"

	"gorm.io/datatypes"
)

// Session is a server-side login session. Sess holds the serialized SessionData.
type Session struct {
	SID    string         `gorm:"column:sid;primaryKey;size:255" json:"sid"`
	Sess   datatypes.JSON `gorm:"column:sess;type:jsonb;not null" json:"-"`
	Expire time.Time      `gorm:"column:expire;not null;index:IDX_session_expire" json:"expire"`
}

func (Session) TableName() string {
	return "sessions"
}

// SessionData is the decoded content of Session.Sess.
type SessionData struct {
	UserID       string                 `json:"userId"`
	Claims       map[string]interface{} `json:"claims,omitempty"`
	AccessToken  string                 `json:"access_token,omitempty"`
	RefreshToken string                 `json:"refresh_token,omitempty"`
	ExpiresAt    int64                  `json:"expires_at"`
}
