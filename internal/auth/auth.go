package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/srmaas/errorreport/internal/config"
	"github.com/srmaas/errorreport/internal/model"
	"go.uber.org/zap"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOIDC    Mode = "oidc"
)

// Role selects which identity a route is served with in offline mode.
// With an identity provider every authenticated user holds both roles.
type Role int

const (
	RoleReporter Role = iota
	RoleAdmin
)

const contextUserIDKey = "userID"

var ErrUnauthenticated = errors.New("unauthenticated")

// Authenticator is the authentication strategy chosen once at startup.
type Authenticator interface {
	Mode() Mode
	RegisterRoutes(r gin.IRouter)
	Require(role Role) gin.HandlerFunc
	CurrentUser(c *gin.Context) (*model.User, error)
}

type UserStore interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
	UpsertUser(ctx context.Context, user *model.User) (*model.User, error)
}

// New selects the strategy from the configuration. The offline strategy seeds
// its fixed identities before returning.
func New(ctx context.Context, cfg *config.Config, users UserStore, sessions *SessionStore, logger *zap.Logger) (Authenticator, error) {
	if cfg.UseOfflineAuth() {
		offline := NewOffline(users, logger)
		if err := offline.EnsureIdentities(ctx); err != nil {
			return nil, err
		}
		return offline, nil
	}

	return NewOIDC(OIDCConfig{
		IssuerURL:     cfg.OIDCIssuerURL,
		ClientID:      cfg.OIDCClientID,
		ClientSecret:  cfg.OIDCClientSecret,
		RedirectURL:   cfg.OIDCRedirectURL,
		SessionSecret: cfg.SessionSecret,
		SessionTTL:    cfg.SessionTTL,
		SecureCookie:  !cfg.IsDevelopment(),
	}, users, sessions, logger), nil
}

// UserID returns the identity attached to the request by Require.
func UserID(c *gin.Context) string {
	return c.GetString(contextUserIDKey)
}

func setUserID(c *gin.Context, id string) {
	c.Set(contextUserIDKey, id)
}

func unauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
}
