package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/srmaas/errorreport/internal/ai"
	"github.com/srmaas/errorreport/internal/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	// riskyThreshold is the report count from which a system is flagged.
	riskyThreshold = 3
	// cautionThreshold upgrades a flagged system from monitoring to caution.
	cautionThreshold = 4

	signalLimit  = 2
	forecastSize = 3
)

var trendLabels = map[string][]string{
	model.PeriodDaily:   {"6일전", "5일전", "4일전", "3일전", "2일전", "1일전", "오늘"},
	model.PeriodWeekly:  {"6주전", "5주전", "4주전", "3주전", "2주전", "1주전", "이번주"},
	model.PeriodMonthly: {"6개월전", "5개월전", "4개월전", "3개월전", "2개월전", "1개월전", "이번달"},
}

var forecastLabels = map[string][]string{
	model.PeriodDaily:   {"2일전", "1일전", "오늘", "1일후", "2일후", "3일후"},
	model.PeriodWeekly:  {"2주전", "1주전", "현재", "1주후", "2주후", "3주후"},
	model.PeriodMonthly: {"2개월전", "1개월전", "이번달", "1개월후", "2개월후", "3개월후"},
}

// AnalyticsHandler derives dashboard analytics from stored reports.
type AnalyticsHandler struct {
	store     ReportStore
	assistant ai.Assistant
	logger    *zap.Logger
}

func NewAnalyticsHandler(store ReportStore, assistant ai.Assistant, logger *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{store: store, assistant: assistant, logger: logger}
}

type SystemChange struct {
	Name     string `json:"name"`
	Increase int64  `json:"increase,omitempty"`
	Decrease int64  `json:"decrease,omitempty"`
}

type SystemWarning struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

type GenerateAnalysisRequest struct {
	AnalysisType string `json:"analysisType"`
	Period       string `json:"period"`
}

// BasicStats returns headline numbers for the analytics dashboard
func (h *AnalyticsHandler) BasicStats(c *gin.Context) {
	ctx := c.Request.Context()

	total, err := h.store.CountErrors(ctx)
	if err != nil {
		h.fail(c, "count errors", err, "Failed to fetch basic statistics")
		return
	}
	resolved, err := h.store.CountResolved(ctx)
	if err != nil {
		h.fail(c, "count resolved errors", err, "Failed to fetch basic statistics")
		return
	}
	avgHours, err := h.store.AverageResolutionHours(ctx)
	if err != nil {
		h.fail(c, "average resolution time", err, "Failed to fetch basic statistics")
		return
	}
	categories, err := h.store.GetCategoryStats(ctx)
	if err != nil {
		h.fail(c, "category stats", err, "Failed to fetch basic statistics")
		return
	}
	weekly, err := h.store.GetWeeklyStats(ctx)
	if err != nil {
		h.fail(c, "weekly stats", err, "Failed to fetch basic statistics")
		return
	}

	risky := 0
	for _, cat := range categories {
		if cat.Count >= riskyThreshold {
			risky++
		}
	}

	var trend int64
	if n := len(weekly); n >= 2 {
		trend = percentChange(weekly[n-2].Errors, weekly[n-1].Errors)
	}

	c.JSON(http.StatusOK, gin.H{
		"totalErrors":        total,
		"resolvedErrors":     resolved,
		"resolutionRate":     percent(resolved, total),
		"avgResolutionTime":  math.Round(avgHours*10) / 10,
		"riskySystems":       risky,
		"errorTrend":         trend,
		"systemDistribution": categories,
	})
}

// Trends returns per-bucket counts and the systems whose volume moved most
// between the last two buckets
func (h *AnalyticsHandler) Trends(c *gin.Context) {
	period, ok := analyticsPeriod(c, c.Query("period"))
	if !ok {
		return
	}
	ctx := c.Request.Context()

	stats, err := h.store.GetPeriodStats(ctx, period)
	if err != nil {
		h.fail(c, "period stats", err, "Failed to fetch trend data")
		return
	}
	shifts, err := h.store.GetCategoryShift(ctx, period)
	if err != nil {
		h.fail(c, "category shift", err, "Failed to fetch trend data")
		return
	}
	categories, err := h.store.GetCategoryStats(ctx)
	if err != nil {
		h.fail(c, "category stats", err, "Failed to fetch trend data")
		return
	}

	errorCounts := make([]int64, len(stats))
	resolvedCounts := make([]int64, len(stats))
	for i, s := range stats {
		errorCounts[i] = s.Errors
		resolvedCounts[i] = s.Resolved
	}

	sort.SliceStable(shifts, func(i, j int) bool {
		return shifts[i].Current-shifts[i].Previous > shifts[j].Current-shifts[j].Previous
	})
	increasing := []SystemChange{}
	for _, s := range shifts {
		if len(increasing) == signalLimit {
			break
		}
		if s.Current > s.Previous {
			increasing = append(increasing, SystemChange{Name: s.Category, Increase: s.Current - s.Previous})
		}
	}
	decreasing := []SystemChange{}
	for i := len(shifts) - 1; i >= 0 && len(decreasing) < signalLimit; i-- {
		if s := shifts[i]; s.Current < s.Previous {
			decreasing = append(decreasing, SystemChange{Name: s.Category, Decrease: s.Current - s.Previous})
		}
	}

	warnings := []SystemWarning{}
	for _, cat := range categories {
		if len(warnings) == signalLimit {
			break
		}
		if cat.Count < riskyThreshold {
			continue
		}
		status := "모니터링"
		if cat.Count >= cautionThreshold {
			status = "주의"
		}
		warnings = append(warnings, SystemWarning{Name: cat.Category, Status: status})
	}

	c.JSON(http.StatusOK, gin.H{
		"period":            period,
		"labels":            trendLabels[period],
		"errorCounts":       errorCounts,
		"resolvedCounts":    resolvedCounts,
		"increasingSystems": increasing,
		"decreasingSystems": decreasing,
		"warningSystems":    warnings,
	})
}

// Predictions projects the next three buckets with a least-squares line
// over the last seven
func (h *AnalyticsHandler) Predictions(c *gin.Context) {
	raw := c.Param("period")
	if raw == "" {
		raw = c.Query("period")
	}
	period, ok := analyticsPeriod(c, raw)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	stats, err := h.store.GetPeriodStats(ctx, period)
	if err != nil {
		h.fail(c, "period stats", err, "Failed to fetch prediction data")
		return
	}
	status, err := h.store.GetErrorStats(ctx)
	if err != nil {
		h.fail(c, "error stats", err, "Failed to fetch prediction data")
		return
	}
	total, err := h.store.CountErrors(ctx)
	if err != nil {
		h.fail(c, "count errors", err, "Failed to fetch prediction data")
		return
	}
	categories, err := h.store.GetCategoryStats(ctx)
	if err != nil {
		h.fail(c, "category stats", err, "Failed to fetch prediction data")
		return
	}

	series := make([]float64, len(stats))
	for i, s := range stats {
		series[i] = float64(s.Errors)
	}
	slope, intercept, r2 := linearFit(series)

	actual := make([]*int64, 0, 2*forecastSize)
	predicted := make([]*int64, 0, 2*forecastSize)
	for _, s := range stats[len(stats)-forecastSize:] {
		v := s.Errors
		actual = append(actual, &v)
		predicted = append(predicted, nil)
	}
	for i := 0; i < forecastSize; i++ {
		x := float64(len(series) + i)
		v := int64(math.Max(0, math.Round(slope*x+intercept)))
		actual = append(actual, nil)
		predicted = append(predicted, &v)
	}
	next := *predicted[forecastSize]

	riskLevel := "low"
	switch {
	case next > 20:
		riskLevel = "high"
	case next > 8:
		riskLevel = "medium"
	}

	topSystem := ai.CategoryStationSupport
	if len(categories) > 0 {
		topSystem = categories[0].Category
	}

	c.JSON(http.StatusOK, gin.H{
		"period":         period,
		"labels":         forecastLabels[period],
		"actual":         actual,
		"predicted":      predicted,
		"nextWeekErrors": next,
		"riskLevel":      riskLevel,
		"confidence":     int(math.Round(50 + 45*r2)),
		"recommendations": []string{
			fmt.Sprintf("예방 점검: %s 시스템 우선 점검 필요", topSystem),
			fmt.Sprintf("모니터링: 현재 %d건 신규 오류 확인 필요", status.NewErrors),
			fmt.Sprintf("처리 현황: 총 %d건 중 %d건 완료, 지속 관리 필요", total, status.Completed),
		},
	})
}

// GenerateAIAnalysis writes an analysis narrative and records it
func (h *AnalyticsHandler) GenerateAIAnalysis(c *gin.Context) {
	var req GenerateAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.AnalysisType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Analysis type is required"})
		return
	}
	if req.Period == "" {
		req.Period = model.PeriodWeekly
	}
	if _, ok := trendLabels[req.Period]; !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid period"})
		return
	}
	ctx := c.Request.Context()

	data, err := h.analysisData(ctx, req.Period)
	if err != nil {
		h.logger.Error("collect analysis data", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "AI 분석 생성 중 오류가 발생했습니다."})
		return
	}

	insight := h.assistant.GenerateAnalysis(ctx, req.AnalysisType, *data)

	result, err := analysisRecord(req.AnalysisType, req.Period, insight, data)
	if err != nil {
		h.logger.Error("encode analysis result", zap.String("type", req.AnalysisType), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "AI 분석 생성 중 오류가 발생했습니다."})
		return
	}
	if err := h.store.SaveAnalysisResult(ctx, result); err != nil {
		h.logger.Error("save analysis result", zap.String("type", req.AnalysisType), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "AI 분석 생성 중 오류가 발생했습니다."})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"message":      "AI 분석이 성공적으로 완료되었습니다.",
		"insight":      insight,
		"analysisType": req.AnalysisType,
		"period":       req.Period,
	})
}

func (h *AnalyticsHandler) analysisData(ctx context.Context, period string) (*ai.AnalysisData, error) {
	status, err := h.store.GetErrorStats(ctx)
	if err != nil {
		return nil, err
	}
	total, err := h.store.CountErrors(ctx)
	if err != nil {
		return nil, err
	}
	resolved, err := h.store.CountResolved(ctx)
	if err != nil {
		return nil, err
	}
	stats, err := h.store.GetPeriodStats(ctx, period)
	if err != nil {
		return nil, err
	}
	categories, err := h.store.GetCategoryStats(ctx)
	if err != nil {
		return nil, err
	}
	return &ai.AnalysisData{
		TotalErrors:    total,
		ResolvedErrors: resolved,
		NewErrors:      status.NewErrors,
		InProgress:     status.InProgress,
		Completed:      status.Completed,
		WeeklyStats:    stats,
		CategoryStats:  categories,
	}, nil
}

func (h *AnalyticsHandler) fail(c *gin.Context, op string, err error, message string) {
	h.logger.Error(op, zap.Error(err))
	errorMessage(c, http.StatusInternalServerError, message)
}

func analyticsPeriod(c *gin.Context, raw string) (string, bool) {
	if raw == "" {
		return model.PeriodWeekly, true
	}
	if _, ok := trendLabels[raw]; !ok {
		errorMessage(c, http.StatusBadRequest, "Invalid period")
		return "", false
	}
	return raw, true
}

func percent(part, whole int64) int64 {
	if whole == 0 {
		return 0
	}
	return int64(math.Round(float64(part) / float64(whole) * 100))
}

// percentChange is the change from prev to cur in percent. Growth from zero
// counts as 100.
func percentChange(prev, cur int64) int64 {
	if prev == 0 {
		if cur > 0 {
			return 100
		}
		return 0
	}
	return int64(math.Round(float64(cur-prev) / float64(prev) * 100))
}

// linearFit fits y = slope*x + intercept over x = 0..n-1 and reports the
// coefficient of determination. A flat series fits perfectly.
func linearFit(ys []float64) (slope, intercept, r2 float64) {
	n := float64(len(ys))
	if n == 0 {
		return 0, 0, 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range ys {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, sumY / n, 1
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n

	mean := sumY / n
	var ssTot, ssRes float64
	for i, y := range ys {
		fit := slope*float64(i) + intercept
		ssRes += (y - fit) * (y - fit)
		ssTot += (y - mean) * (y - mean)
	}
	if ssTot == 0 {
		return slope, intercept, 1
	}
	return slope, intercept, 1 - ssRes/ssTot
}

// analysisRecord builds the stored row: the insight as data and the inputs it
// was generated from as metadata.
func analysisRecord(kind, period, insight string, snapshot interface{}) (*model.AnalysisResult, error) {
	payload, err := json.Marshal(gin.H{"insight": insight})
	if err != nil {
		return nil, fmt.Errorf("encode insight: %w", err)
	}
	metadata, err := json.Marshal(gin.H{
		"snapshot":    snapshot,
		"generatedAt": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return &model.AnalysisResult{
		AnalysisType: kind,
		Period:       period,
		Data:         datatypes.JSON(payload),
		Metadata:     datatypes.JSON(metadata),
	}, nil
}
