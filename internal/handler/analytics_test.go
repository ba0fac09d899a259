package handler

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/srmaas/errorreport/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinearFit(t *testing.T) {
	tests := []struct {
		name      string
		ys        []float64
		slope     float64
		intercept float64
		r2        float64
	}{
		{"flat", []float64{0, 0, 0, 0, 0, 0, 0}, 0, 0, 1},
		{"rising", []float64{1, 2, 3, 4, 5, 6, 7}, 1, 1, 1},
		{"falling", []float64{12, 10, 8, 6, 4, 2, 0}, -2, 12, 1},
		{"single", []float64{4}, 0, 4, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slope, intercept, r2 := linearFit(tt.ys)
			assert.InDelta(t, tt.slope, slope, 1e-9)
			assert.InDelta(t, tt.intercept, intercept, 1e-9)
			assert.InDelta(t, tt.r2, r2, 1e-9)
		})
	}

	_, _, r2 := linearFit([]float64{0, 5, 0, 5, 0, 5, 0})
	assert.Less(t, r2, 0.5)
}

func TestPercentChange(t *testing.T) {
	assert.Equal(t, int64(0), percentChange(0, 0))
	assert.Equal(t, int64(100), percentChange(0, 3))
	assert.Equal(t, int64(50), percentChange(4, 6))
	assert.Equal(t, int64(-25), percentChange(4, 3))
	assert.Equal(t, int64(38), percent(3, 8))
	assert.Equal(t, int64(0), percent(3, 0))
}

func TestBasicStats(t *testing.T) {
	s := newTestServer(t)
	for i := 0; i < 3; i++ {
		s.createReport(t, gin.H{"title": "a", "content": "내용", "system": "열차운행"})
	}
	s.createReport(t, gin.H{"title": "b", "content": "내용", "system": "기타", "status": "완료"})

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/analytics/basic-stats", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		TotalErrors        int64   `json:"totalErrors"`
		ResolvedErrors     int64   `json:"resolvedErrors"`
		ResolutionRate     int64   `json:"resolutionRate"`
		AvgResolutionTime  float64 `json:"avgResolutionTime"`
		RiskySystems       int     `json:"riskySystems"`
		ErrorTrend         int64   `json:"errorTrend"`
		SystemDistribution []struct {
			Category string `json:"category"`
			Count    int64  `json:"count"`
		} `json:"systemDistribution"`
	}
	decode(t, w, &resp)

	assert.Equal(t, int64(4), resp.TotalErrors)
	assert.Equal(t, int64(1), resp.ResolvedErrors)
	assert.Equal(t, int64(25), resp.ResolutionRate)
	assert.Equal(t, 1, resp.RiskySystems)
	assert.Equal(t, int64(100), resp.ErrorTrend)
	require.Len(t, resp.SystemDistribution, 2)
	assert.Equal(t, "열차운행", resp.SystemDistribution[0].Category)
}

func TestTrends(t *testing.T) {
	s := newTestServer(t)
	for i := 0; i < 4; i++ {
		s.createReport(t, gin.H{"title": "a", "content": "내용", "system": "열차운행"})
	}

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/analytics/trends?period=daily", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Labels            []string        `json:"labels"`
		ErrorCounts       []int64         `json:"errorCounts"`
		ResolvedCounts    []int64         `json:"resolvedCounts"`
		IncreasingSystems []SystemChange  `json:"increasingSystems"`
		DecreasingSystems []SystemChange  `json:"decreasingSystems"`
		WarningSystems    []SystemWarning `json:"warningSystems"`
	}
	decode(t, w, &resp)

	assert.Equal(t, trendLabels[model.PeriodDaily], resp.Labels)
	assert.Equal(t, []int64{0, 0, 0, 0, 0, 0, 4}, resp.ErrorCounts)
	assert.Len(t, resp.ResolvedCounts, 7)
	assert.Equal(t, []SystemChange{{Name: "열차운행", Increase: 4}}, resp.IncreasingSystems)
	assert.Empty(t, resp.DecreasingSystems)
	assert.Equal(t, []SystemWarning{{Name: "열차운행", Status: "주의"}}, resp.WarningSystems)

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/analytics/trends?period=hourly", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPredictions(t *testing.T) {
	s := newTestServer(t)

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/analytics/predictions", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Labels          []string `json:"labels"`
		Actual          []*int64 `json:"actual"`
		Predicted       []*int64 `json:"predicted"`
		NextWeekErrors  int64    `json:"nextWeekErrors"`
		RiskLevel       string   `json:"riskLevel"`
		Confidence      int      `json:"confidence"`
		Recommendations []string `json:"recommendations"`
	}
	decode(t, w, &resp)

	assert.Equal(t, []string{"2주전", "1주전", "현재", "1주후", "2주후", "3주후"}, resp.Labels)
	require.Len(t, resp.Actual, 6)
	require.Len(t, resp.Predicted, 6)
	for i := 0; i < 3; i++ {
		require.NotNil(t, resp.Actual[i])
		assert.Nil(t, resp.Predicted[i])
		assert.Nil(t, resp.Actual[i+3])
		require.NotNil(t, resp.Predicted[i+3])
	}
	assert.Equal(t, int64(0), resp.NextWeekErrors)
	assert.Equal(t, "low", resp.RiskLevel)
	assert.Equal(t, 95, resp.Confidence)
	require.Len(t, resp.Recommendations, 3)
	assert.Contains(t, resp.Recommendations[0], "역무지원")

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/analytics/predictions/monthly", nil))
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &resp)
	assert.Equal(t, "이번달", resp.Labels[2])

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/analytics/predictions/yearly", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerateAIAnalysis(t *testing.T) {
	s := newTestServer(t)
	s.createReport(t, gin.H{"title": "a", "content": "내용", "system": "시설관리"})

	w := s.doJSON(t, http.MethodPost, "/api/analytics/generate-ai-analysis", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"Analysis type is required"}`, w.Body.String())

	w = s.doJSON(t, http.MethodPost, "/api/analytics/generate-ai-analysis", gin.H{"analysisType": "pattern"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool   `json:"success"`
		Insight string `json:"insight"`
		Period  string `json:"period"`
	}
	decode(t, w, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, model.PeriodWeekly, resp.Period)
	assert.Contains(t, resp.Insight, "AI 분석 결과 (pattern)")
	assert.Contains(t, resp.Insight, "시설관리")

	var saved []model.AnalysisResult
	require.NoError(t, s.store.DB().WithContext(context.Background()).Find(&saved).Error)
	require.Len(t, saved, 1)
	assert.Equal(t, "pattern", saved[0].AnalysisType)
	assert.Contains(t, string(saved[0].Data), "insight")
}

func TestAnalysisRecord(t *testing.T) {
	record, err := analysisRecord(model.AnalysisSummary, model.PeriodWeekly, "요약", gin.H{"totalErrors": 3})
	require.NoError(t, err)
	assert.Equal(t, model.AnalysisSummary, record.AnalysisType)
	assert.Equal(t, model.PeriodWeekly, record.Period)
	assert.JSONEq(t, `{"insight":"요약"}`, string(record.Data))

	var metadata struct {
		Snapshot    map[string]int `json:"snapshot"`
		GeneratedAt string         `json:"generatedAt"`
	}
	require.NoError(t, json.Unmarshal(record.Metadata, &metadata))
	assert.Equal(t, 3, metadata.Snapshot["totalErrors"])
	assert.NotEmpty(t, metadata.GeneratedAt)

	_, err = analysisRecord(model.AnalysisSummary, model.PeriodWeekly, "요약", gin.H{"rate": math.NaN()})
	assert.Error(t, err)
}
