package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/srmaas/errorreport/internal/model"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	stateCookie   = "oauth_state"
	SessionCookie = "srmaas.sid"

	providerCacheKey = "provider"
	providerCacheTTL = time.Hour
)

type OIDCConfig struct {
	IssuerURL     string
	ClientID      string
	ClientSecret  string
	RedirectURL   string
	SessionSecret string
	SessionTTL    time.Duration
	SecureCookie  bool
}

// OIDC authenticates users with the authorization-code flow against an
// OpenID Connect provider and keeps them logged in with server-side sessions.
type OIDC struct {
	cfg       OIDCConfig
	users     UserStore
	sessions  *SessionStore
	providers *cache.Cache
	logger    *zap.Logger
	now       func() time.Time
}

func NewOIDC(cfg OIDCConfig, users UserStore, sessions *SessionStore, logger *zap.Logger) *OIDC {
	return &OIDC{
		cfg:       cfg,
		users:     users,
		sessions:  sessions,
		providers: cache.New(providerCacheTTL, 10*time.Minute),
		logger:    logger,
		now:       time.Now,
	}
}

func (o *OIDC) Mode() Mode { return ModeOIDC }

func (o *OIDC) RegisterRoutes(r gin.IRouter) {
	r.GET("/login", o.Login)
	r.GET("/callback", o.Callback)
	r.GET("/logout", o.Logout)
}

// provider returns the discovered provider configuration, memoized for an hour.
func (o *OIDC) provider(ctx context.Context) (*oidc.Provider, error) {
	if cached, ok := o.providers.Get(providerCacheKey); ok {
		return cached.(*oidc.Provider), nil
	}

	provider, err := oidc.NewProvider(ctx, o.cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("discover oidc provider: %w", err)
	}
	o.providers.Set(providerCacheKey, provider, cache.DefaultExpiration)
	return provider, nil
}

func (o *OIDC) oauthConfig(provider *oidc.Provider) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     o.cfg.ClientID,
		ClientSecret: o.cfg.ClientSecret,
		RedirectURL:  o.cfg.RedirectURL,
		Endpoint:     provider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "email", "profile", oidc.ScopeOfflineAccess},
	}
}

func (o *OIDC) setCookie(c *gin.Context, name, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, maxAge, "/", "", o.cfg.SecureCookie, true)
}

// Login redirects to the provider's authorization endpoint.
func (o *OIDC) Login(c *gin.Context) {
	provider, err := o.provider(c.Request.Context())
	if err != nil {
		o.logger.Error("oidc discovery failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Authentication provider unavailable"})
		return
	}

	state, err := generateState()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to start login"})
		return
	}
	o.setCookie(c, stateCookie, state, 600)

	authURL := o.oauthConfig(provider).AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "login consent"))
	c.Redirect(http.StatusFound, authURL)
}

type idTokenClaims struct {
	Sub             string `json:"sub"`
	Email           string `json:"email"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	ProfileImageURL string `json:"profile_image_url"`
}

// Callback completes the code exchange, records the user and opens a session.
func (o *OIDC) Callback(c *gin.Context) {
	ctx := c.Request.Context()

	savedState, err := c.Cookie(stateCookie)
	if err != nil || savedState == "" || c.Query("state") != savedState {
		c.Redirect(http.StatusFound, "/api/login")
		return
	}
	o.setCookie(c, stateCookie, "", -1)

	code := c.Query("code")
	if code == "" {
		c.Redirect(http.StatusFound, "/api/login")
		return
	}

	provider, err := o.provider(ctx)
	if err != nil {
		o.logger.Error("oidc discovery failed", zap.Error(err))
		c.Redirect(http.StatusFound, "/api/login")
		return
	}

	token, err := o.oauthConfig(provider).Exchange(ctx, code)
	if err != nil {
		o.logger.Warn("oidc code exchange failed", zap.Error(err))
		c.Redirect(http.StatusFound, "/api/login")
		return
	}

	data, err := o.sessionFromToken(ctx, provider, token, nil)
	if err != nil {
		o.logger.Warn("oidc id token rejected", zap.Error(err))
		c.Redirect(http.StatusFound, "/api/login")
		return
	}

	sid, err := o.sessions.Create(ctx, data, o.cfg.SessionTTL)
	if err != nil {
		o.logger.Error("failed to create session", zap.Error(err))
		c.Redirect(http.StatusFound, "/api/login")
		return
	}

	cookie, err := SignSessionCookie(sid, o.cfg.SessionSecret, o.cfg.SessionTTL)
	if err != nil {
		o.logger.Error("failed to sign session cookie", zap.Error(err))
		c.Redirect(http.StatusFound, "/api/login")
		return
	}
	o.setCookie(c, SessionCookie, cookie, int(o.cfg.SessionTTL.Seconds()))

	o.logger.Info("user logged in", zap.String("userId", data.UserID))
	c.Redirect(http.StatusFound, "/")
}

// sessionFromToken verifies the ID token carried by token and upserts the
// user it names. Without an ID token the previous session data is kept.
func (o *OIDC) sessionFromToken(ctx context.Context, provider *oidc.Provider, token *oauth2.Token, prev *model.SessionData) (*model.SessionData, error) {
	data := &model.SessionData{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry.Unix(),
	}
	if prev != nil {
		data.UserID = prev.UserID
		data.Claims = prev.Claims
		if data.RefreshToken == "" {
			data.RefreshToken = prev.RefreshToken
		}
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		if prev == nil {
			return nil, errors.New("token response has no id_token")
		}
		return data, nil
	}

	idToken, err := provider.Verifier(&oidc.Config{ClientID: o.cfg.ClientID}).Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("verify id token: %w", err)
	}

	var claims idTokenClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("decode id token claims: %w", err)
	}
	var raw map[string]interface{}
	if err := idToken.Claims(&raw); err != nil {
		return nil, fmt.Errorf("decode id token claims: %w", err)
	}

	user := &model.User{
		ID:              claims.Sub,
		FirstName:       claims.FirstName,
		LastName:        claims.LastName,
		ProfileImageURL: claims.ProfileImageURL,
	}
	if claims.Email != "" {
		user.Email = &claims.Email
	}
	if _, err := o.users.UpsertUser(ctx, user); err != nil {
		return nil, err
	}

	data.UserID = claims.Sub
	data.Claims = raw
	data.ExpiresAt = idToken.Expiry.Unix()
	return data, nil
}

// Logout ends the session and hands over to the provider's end-session
// endpoint when it advertises one.
func (o *OIDC) Logout(c *gin.Context) {
	ctx := c.Request.Context()

	if value, err := c.Cookie(SessionCookie); err == nil {
		if sid, err := ParseSessionCookie(value, o.cfg.SessionSecret); err == nil {
			if err := o.sessions.Delete(ctx, sid); err != nil {
				o.logger.Warn("failed to delete session", zap.Error(err))
			}
		}
	}
	o.setCookie(c, SessionCookie, "", -1)

	provider, err := o.provider(ctx)
	if err != nil {
		c.Redirect(http.StatusFound, "/")
		return
	}

	var meta struct {
		EndSessionEndpoint string `json:"end_session_endpoint"`
	}
	if err := provider.Claims(&meta); err != nil || meta.EndSessionEndpoint == "" {
		c.Redirect(http.StatusFound, "/")
		return
	}

	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	params := url.Values{}
	params.Set("client_id", o.cfg.ClientID)
	params.Set("post_logout_redirect_uri", scheme+"://"+c.Request.Host)
	c.Redirect(http.StatusFound, meta.EndSessionEndpoint+"?"+params.Encode())
}

// Require admits requests with a live session, refreshing expired access
// tokens through the provider's token endpoint.
func (o *OIDC) Require(role Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		value, err := c.Cookie(SessionCookie)
		if err != nil || value == "" {
			unauthorized(c)
			return
		}
		sid, err := ParseSessionCookie(value, o.cfg.SessionSecret)
		if err != nil {
			unauthorized(c)
			return
		}

		data, err := o.sessions.Get(ctx, sid)
		if err != nil {
			o.logger.Error("failed to load session", zap.Error(err))
			unauthorized(c)
			return
		}
		if data == nil || data.UserID == "" {
			unauthorized(c)
			return
		}

		if o.now().Unix() <= data.ExpiresAt {
			setUserID(c, data.UserID)
			c.Next()
			return
		}

		if data.RefreshToken == "" {
			unauthorized(c)
			return
		}

		refreshed, err := o.refresh(ctx, data)
		if err != nil {
			o.logger.Warn("token refresh failed", zap.String("userId", data.UserID), zap.Error(err))
			unauthorized(c)
			return
		}
		if err := o.sessions.Save(ctx, sid, refreshed); err != nil {
			o.logger.Error("failed to save refreshed session", zap.Error(err))
			unauthorized(c)
			return
		}

		setUserID(c, refreshed.UserID)
		c.Next()
	}
}

func (o *OIDC) refresh(ctx context.Context, data *model.SessionData) (*model.SessionData, error) {
	provider, err := o.provider(ctx)
	if err != nil {
		return nil, err
	}

	expired := &oauth2.Token{
		RefreshToken: data.RefreshToken,
		Expiry:       time.Unix(data.ExpiresAt, 0),
	}
	token, err := o.oauthConfig(provider).TokenSource(ctx, expired).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	return o.sessionFromToken(ctx, provider, token, data)
}

func (o *OIDC) CurrentUser(c *gin.Context) (*model.User, error) {
	id := UserID(c)
	if id == "" {
		return nil, ErrUnauthenticated
	}
	user, err := o.users.GetUser(c.Request.Context(), id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUnauthenticated
	}
	return user, nil
}

func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
