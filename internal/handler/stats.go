package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// StatsHandler serves the admin dashboard aggregates.
type StatsHandler struct {
	store  ReportStore
	logger *zap.Logger
}

func NewStatsHandler(store ReportStore, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{store: store, logger: logger}
}

// ErrorStats returns report counts per status
func (h *StatsHandler) ErrorStats(c *gin.Context) {
	stats, err := h.store.GetErrorStats(c.Request.Context())
	if err != nil {
		h.logger.Error("fetch error stats", zap.Error(err))
		errorMessage(c, http.StatusInternalServerError, "Failed to fetch error stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// WeeklyStats returns the last seven weeks, oldest first
func (h *StatsHandler) WeeklyStats(c *gin.Context) {
	stats, err := h.store.GetWeeklyStats(c.Request.Context())
	if err != nil {
		h.logger.Error("fetch weekly stats", zap.Error(err))
		errorMessage(c, http.StatusInternalServerError, "Failed to fetch weekly stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// CategoryStats returns report counts per system, largest first
func (h *StatsHandler) CategoryStats(c *gin.Context) {
	stats, err := h.store.GetCategoryStats(c.Request.Context())
	if err != nil {
		h.logger.Error("fetch category stats", zap.Error(err))
		errorMessage(c, http.StatusInternalServerError, "Failed to fetch category stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}
