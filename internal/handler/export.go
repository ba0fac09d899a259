package handler

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/srmaas/errorreport/internal/model"
	"github.com/srmaas/errorreport/internal/storage"
	"go.uber.org/zap"
)

type ExportHandler struct {
	store  ReportStore
	logger *zap.Logger
}

func NewExportHandler(store ReportStore, logger *zap.Logger) *ExportHandler {
	return &ExportHandler{store: store, logger: logger}
}

// Export downloads every report matching the list filters
func (h *ExportHandler) Export(c *gin.Context) {
	format := c.DefaultQuery("format", "json")
	switch format {
	case "json", "csv", "md", "markdown":
	default:
		errorMessage(c, http.StatusBadRequest, "Invalid format. Use json, csv, or md")
		return
	}

	var reports []model.ErrorReport
	err := h.store.ListAllErrors(c.Request.Context(), storage.ListOptions{
		Search: c.Query("search"),
		Status: c.Query("status"),
	}, func(batch []model.ErrorReport) error {
		reports = append(reports, batch...)
		return nil
	})
	if err != nil {
		h.logger.Error("export error reports", zap.Error(err))
		errorMessage(c, http.StatusInternalServerError, "Failed to export errors")
		return
	}
	if reports == nil {
		reports = []model.ErrorReport{}
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].ID > reports[j].ID })

	name := "errors-" + time.Now().Format("20060102")
	switch format {
	case "json":
		h.exportJSON(c, name, reports)
	case "csv":
		h.exportCSV(c, name, reports)
	default:
		h.exportMarkdown(c, name, reports)
	}
}

func (h *ExportHandler) exportJSON(c *gin.Context, name string, reports []model.ErrorReport) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.json", name))
	c.JSON(http.StatusOK, reports)
}

func (h *ExportHandler) exportCSV(c *gin.Context, name string, reports []model.ErrorReport) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	// Header
	writer.Write([]string{"ID", "Title", "System", "Status", "Priority", "Reporter", "Created", "Updated", "Attachments", "Content"})

	for _, r := range reports {
		writer.Write([]string{
			strconv.FormatInt(r.ID, 10),
			r.Title,
			r.System,
			r.Status,
			r.Priority,
			r.ReporterID,
			r.CreatedAt.Format(time.RFC3339),
			r.UpdatedAt.Format(time.RFC3339),
			strings.Join(r.Attachments, " "),
			r.Content,
		})
	}

	writer.Flush()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.csv", name))
	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}

func (h *ExportHandler) exportMarkdown(c *gin.Context, name string, reports []model.ErrorReport) {
	var buf bytes.Buffer

	buf.WriteString("# 오류 보고 목록\n\n")
	buf.WriteString(fmt.Sprintf("**Exported:** %s  \n", time.Now().Format("2006-01-02 15:04:05")))
	buf.WriteString(fmt.Sprintf("**Total:** %d\n\n", len(reports)))

	for _, r := range reports {
		buf.WriteString(fmt.Sprintf("## #%d %s\n\n", r.ID, r.Title))
		buf.WriteString(fmt.Sprintf("- **System:** %s\n", r.System))
		buf.WriteString(fmt.Sprintf("- **Status:** %s\n", r.Status))
		buf.WriteString(fmt.Sprintf("- **Priority:** %s\n", r.Priority))
		buf.WriteString(fmt.Sprintf("- **Created:** %s\n\n", r.CreatedAt.Format("2006-01-02 15:04:05")))
		buf.WriteString(r.Content)
		buf.WriteString("\n\n")

		for _, a := range r.Attachments {
			buf.WriteString(fmt.Sprintf("![attachment](%s)\n", a))
		}
		if len(r.Attachments) > 0 {
			buf.WriteString("\n")
		}

		buf.WriteString("---\n\n")
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.md", name))
	c.Data(http.StatusOK, "text/markdown", buf.Bytes())
}
