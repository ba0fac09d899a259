package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/srmaas/errorreport/internal/ai"
	"github.com/srmaas/errorreport/internal/auth"
	"github.com/srmaas/errorreport/internal/middleware"
	"github.com/srmaas/errorreport/internal/model"
	"github.com/srmaas/errorreport/internal/storage"
	"github.com/srmaas/errorreport/internal/upload"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type ErrorReportHandler struct {
	store     ReportStore
	assistant ai.Assistant
	uploads   *upload.Store
	logger    *zap.Logger
}

func NewErrorReportHandler(store ReportStore, assistant ai.Assistant, uploads *upload.Store, logger *zap.Logger) *ErrorReportHandler {
	return &ErrorReportHandler{store: store, assistant: assistant, uploads: uploads, logger: logger}
}

// CreateErrorReportRequest is accepted as JSON or as multipart form fields.
// Multipart submissions carry their images as "attachments" file parts.
type CreateErrorReportRequest struct {
	Title       string   `json:"title" form:"title" binding:"max=255"`
	Content     string   `json:"content" form:"content" binding:"required"`
	Priority    string   `json:"priority" form:"priority" binding:"omitempty,max=50"`
	System      string   `json:"system" form:"system" binding:"omitempty,max=100"`
	Status      string   `json:"status" form:"status" binding:"omitempty,report_status"`
	Browser     *string  `json:"browser" form:"browser" binding:"omitempty,max=255"`
	OS          *string  `json:"os" form:"os" binding:"omitempty,max=255"`
	Attachments []string `json:"attachments" form:"-" binding:"omitempty,max=5,dive,attachment_path"`
}

type UpdateErrorReportRequest struct {
	Title       *string   `json:"title" binding:"omitempty,min=1,max=255"`
	Content     *string   `json:"content" binding:"omitempty,min=1"`
	Priority    *string   `json:"priority" binding:"omitempty,max=50"`
	System      *string   `json:"system" binding:"omitempty,min=1,max=100"`
	Status      *string   `json:"status" binding:"omitempty,report_status"`
	Browser     *string   `json:"browser" binding:"omitempty,max=255"`
	OS          *string   `json:"os" binding:"omitempty,max=255"`
	Attachments *[]string `json:"attachments" binding:"omitempty,max=5,dive,attachment_path"`
}

// Create files a new report for the signed-in user. A blank title or system
// is filled in by the assistant.
func (h *ErrorReportHandler) Create(c *gin.Context) {
	var req CreateErrorReportRequest
	if err := c.ShouldBind(&req); err != nil {
		errorMessage(c, http.StatusBadRequest, "Failed to create error report")
		return
	}

	attachments := req.Attachments
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		refs, err := h.saveAttachments(c)
		if err != nil {
			switch {
			case errors.Is(err, upload.ErrTooManyFiles):
				errorMessage(c, http.StatusBadRequest, "Too many attachments")
			case errors.Is(err, upload.ErrFileTooLarge):
				errorMessage(c, http.StatusBadRequest, "Attachment exceeds 10MB")
			default:
				h.logger.Error("save attachments", zap.Error(err))
				errorMessage(c, http.StatusInternalServerError, "Failed to create error report")
			}
			return
		}
		attachments = refs
	}

	ctx := c.Request.Context()
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = h.assistant.GenerateTitle(ctx, req.Content)
	}
	system := strings.TrimSpace(req.System)
	if system == "" {
		system = h.assistant.ClassifySystem(ctx, req.Content)
	}

	report := &model.ErrorReport{
		Title:      title,
		Content:    req.Content,
		Priority:   req.Priority,
		System:     system,
		Status:     req.Status,
		Browser:    req.Browser,
		OS:         req.OS,
		ReporterID: auth.UserID(c),
	}
	if len(attachments) > 0 {
		report.Attachments = attachments
	}

	created, err := h.store.CreateError(ctx, report)
	if err != nil {
		h.logger.Error("create error report", zap.Error(err))
		errorMessage(c, http.StatusInternalServerError, "Failed to create error report")
		return
	}

	middleware.RecordReportSubmitted(created.System)
	c.JSON(http.StatusCreated, created)
}

func (h *ErrorReportHandler) saveAttachments(c *gin.Context) ([]string, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, err
	}
	return h.uploads.SaveImages(form.File["attachments"])
}

// List returns reports with pagination and filters
func (h *ErrorReportHandler) List(c *gin.Context) {
	page, limit := pagination(c)

	result, err := h.store.ListErrors(c.Request.Context(), storage.ListOptions{
		Search: c.Query("search"),
		Status: c.Query("status"),
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		h.logger.Error("list error reports", zap.Error(err))
		errorMessage(c, http.StatusInternalServerError, "Failed to fetch errors")
		return
	}

	totalPages := int((result.Total + int64(limit) - 1) / int64(limit))

	c.JSON(http.StatusOK, gin.H{
		"errors":     result.Items,
		"total":      result.Total,
		"page":       page,
		"limit":      limit,
		"totalPages": totalPages,
	})
}

func pagination(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}
	return page, limit
}

func reportID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		errorMessage(c, http.StatusBadRequest, "Invalid error ID")
		return 0, false
	}
	return id, true
}

func (h *ErrorReportHandler) Get(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}

	report, err := h.store.GetError(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("get error report", zap.Int64("id", id), zap.Error(err))
		errorMessage(c, http.StatusInternalServerError, "Failed to fetch error")
		return
	}
	if report == nil {
		errorMessage(c, http.StatusNotFound, "Error not found")
		return
	}

	c.JSON(http.StatusOK, report)
}

// Update applies a partial update. An empty body or {} only refreshes updatedAt.
func (h *ErrorReportHandler) Update(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}

	var req UpdateErrorReportRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		errorMessage(c, http.StatusBadRequest, "Failed to update error")
		return
	}

	report, err := h.store.UpdateError(c.Request.Context(), id, storage.ErrorReportUpdate{
		Title:       req.Title,
		Content:     req.Content,
		Priority:    req.Priority,
		System:      req.System,
		Status:      req.Status,
		Browser:     req.Browser,
		OS:          req.OS,
		Attachments: req.Attachments,
	})
	if err != nil {
		h.logger.Error("update error report", zap.Int64("id", id), zap.Error(err))
		errorMessage(c, http.StatusInternalServerError, "Failed to update error")
		return
	}
	if report == nil {
		errorMessage(c, http.StatusNotFound, "Error not found")
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h *ErrorReportHandler) Delete(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}

	deleted, err := h.store.DeleteError(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("delete error report", zap.Int64("id", id), zap.Error(err))
		errorMessage(c, http.StatusInternalServerError, "Failed to delete error")
		return
	}
	if !deleted {
		errorMessage(c, http.StatusNotFound, "Error not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Error deleted successfully"})
}
