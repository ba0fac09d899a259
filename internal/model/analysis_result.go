package model

import (
	"time"

	"gorm.io/datatypes"
)

// AnalysisResult records every generated AI analysis. It is write-only.
type AnalysisResult struct {
	ID           int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	AnalysisType string         `gorm:"not null;size:50" json:"analysisType"`
	Period       string         `gorm:"not null;size:20" json:"period"`
	Data         datatypes.JSON `gorm:"type:jsonb;not null" json:"data"`
	Metadata     datatypes.JSON `gorm:"type:jsonb" json:"metadata"`
	CreatedAt    time.Time      `json:"createdAt"`
}

func (AnalysisResult) TableName() string {
	return "analysis_results"
}

// Analysis types
const (
	AnalysisPattern = "pattern"
	AnalysisTrend   = "trend"
	AnalysisSummary = "summary"
)

// Periods
const (
	PeriodDaily   = "daily"
	PeriodWeekly  = "weekly"
	PeriodMonthly = "monthly"
)
