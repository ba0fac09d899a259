package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/srmaas/errorreport/internal/ai"
	"github.com/srmaas/errorreport/internal/llm"
	"github.com/srmaas/errorreport/internal/upload"
	"go.uber.org/zap"
)

// AIHandler serves the writing aids used while filling in a report. The
// assistant never fails, so these routes only reject bad input.
type AIHandler struct {
	assistant ai.Assistant
	uploads   *upload.Store
	logger    *zap.Logger
}

func NewAIHandler(assistant ai.Assistant, uploads *upload.Store, logger *zap.Logger) *AIHandler {
	return &AIHandler{assistant: assistant, uploads: uploads, logger: logger}
}

type TitleRequest struct {
	Content string `json:"content" binding:"required,min=10"`
}

type SystemRequest struct {
	Content string `json:"content" binding:"required,min=5"`
}

type ImageRequest struct {
	ImagePath string `json:"imagePath" binding:"required"`
}

type TranscribeRequest struct {
	AudioData string `json:"audioData" binding:"required"`
}

// GenerateTitle suggests a report title for the given content
func (h *AIHandler) GenerateTitle(c *gin.Context) {
	var req TitleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorMessage(c, http.StatusBadRequest, "Content must be at least 10 characters long")
		return
	}

	title := h.assistant.GenerateTitle(c.Request.Context(), req.Content)
	c.JSON(http.StatusOK, gin.H{"title": title})
}

// AnalyzeSystem picks the system category for the given content
func (h *AIHandler) AnalyzeSystem(c *gin.Context) {
	var req SystemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorMessage(c, http.StatusBadRequest, "Content must be at least 5 characters long")
		return
	}

	system := h.assistant.ClassifySystem(c.Request.Context(), req.Content)
	c.JSON(http.StatusOK, gin.H{"system": system})
}

// AnalyzeImage describes an uploaded screenshot
func (h *AIHandler) AnalyzeImage(c *gin.Context) {
	var req ImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorMessage(c, http.StatusBadRequest, "Image path is required")
		return
	}

	if !h.uploads.Exists(req.ImagePath) {
		errorMessage(c, http.StatusNotFound, "Image file not found")
		return
	}
	image, err := h.uploads.Read(req.ImagePath)
	if err != nil {
		h.logger.Error("read image", zap.String("path", req.ImagePath), zap.Error(err))
		errorMessage(c, http.StatusInternalServerError, "Failed to analyze image")
		return
	}

	analysis := h.assistant.AnalyzeImage(c.Request.Context(), image)
	c.JSON(http.StatusOK, gin.H{"analysis": analysis})
}

// Transcribe converts a base64 recording into text
func (h *AIHandler) Transcribe(c *gin.Context) {
	var req TranscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorMessage(c, http.StatusBadRequest, "Audio data is required")
		return
	}

	audio, err := llm.DecodeBase64Audio(req.AudioData)
	if err != nil {
		h.logger.Warn("decode audio", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": "Failed to transcribe audio",
			"error":   err.Error(),
		})
		return
	}

	transcription := h.assistant.TranscribeAudio(c.Request.Context(), audio)
	c.JSON(http.StatusOK, gin.H{
		"transcription": transcription,
		"success":       true,
	})
}
