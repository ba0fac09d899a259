package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/srmaas/errorreport/internal/upload"
)

// FileHandler serves stored attachments.
type FileHandler struct {
	uploads *upload.Store
}

func NewFileHandler(uploads *upload.Store) *FileHandler {
	return &FileHandler{uploads: uploads}
}

func (h *FileHandler) Serve(c *gin.Context) {
	name := c.Param("filename")
	if !h.uploads.Exists(name) {
		errorMessage(c, http.StatusNotFound, "File not found")
		return
	}
	c.File(h.uploads.Path(name))
}
