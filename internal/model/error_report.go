package model

import (
	"time"

	"github.com/lib/pq"
)

type ErrorReport struct {
	ID          int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Title       string         `gorm:"not null;size:255" json:"title"`
	Content     string         `gorm:"not null;type:text" json:"content"`
	Priority    string         `gorm:"not null;size:50;default:'보통'" json:"priority"`
	System      string         `gorm:"not null;size:100;index" json:"system"`
	Status      string         `gorm:"not null;size:50;default:'접수됨';index" json:"status"`
	Browser     *string        `gorm:"size:255" json:"browser"`
	OS          *string        `gorm:"column:os;size:255" json:"os"`
	Attachments pq.StringArray `gorm:"type:text[]" json:"attachments"`
	ReporterID  string         `gorm:"not null;size:255;index" json:"reporterId"`
	Reporter    *User          `gorm:"foreignKey:ReporterID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	CreatedAt   time.Time      `gorm:"index" json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

func (ErrorReport) TableName() string {
	return "errors"
}

// Status constants
const (
	StatusReceived   = "접수됨"
	StatusInProgress = "처리중"
	StatusCompleted  = "완료"
	StatusOnHold     = "보류"

	// StatusAll disables the status filter when listing reports.
	StatusAll = "모든 상태"
)

const DefaultPriority = "보통"

// Statuses lists the valid status labels in workflow order.
var Statuses = []string{StatusReceived, StatusInProgress, StatusCompleted, StatusOnHold}

func IsValidStatus(status string) bool {
	for _, s := range Statuses {
		if s == status {
			return true
		}
	}
	return false
}
