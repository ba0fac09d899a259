package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/srmaas/errorreport/internal/auth"
	"go.uber.org/zap"
)

type UserHandler struct {
	auth   auth.Authenticator
	logger *zap.Logger
}

func NewUserHandler(authenticator auth.Authenticator, logger *zap.Logger) *UserHandler {
	return &UserHandler{auth: authenticator, logger: logger}
}

// Current returns the signed-in user
func (h *UserHandler) Current(c *gin.Context) {
	user, err := h.auth.CurrentUser(c)
	if errors.Is(err, auth.ErrUnauthenticated) {
		errorMessage(c, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if err != nil {
		h.logger.Error("fetch current user", zap.Error(err))
		errorMessage(c, http.StatusInternalServerError, "Failed to fetch user")
		return
	}
	c.JSON(http.StatusOK, user)
}
