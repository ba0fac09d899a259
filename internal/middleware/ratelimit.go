package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/srmaas/errorreport/internal/limiter"
	"go.uber.org/zap"
)

// RateChecker decides whether a client may perform an action.
type RateChecker interface {
	Check(ctx context.Context, clientID, action string) (*limiter.CheckResult, error)
}

// RateLimit limits action per client IP. A nil checker disables limiting and
// a failing checker lets the request through.
func RateLimit(checker RateChecker, action string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if checker == nil {
			c.Next()
			return
		}

		result, err := checker.Check(c.Request.Context(), c.ClientIP(), action)
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.String("action", action), zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt, 10))

		if !result.Allowed {
			recordRateLimited(action)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"message": "요청이 너무 많습니다. 잠시 후 다시 시도해 주세요.",
			})
			return
		}
		c.Next()
	}
}
