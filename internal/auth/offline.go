package auth

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/srmaas/errorreport/internal/model"
	"go.uber.org/zap"
)

// Offline serves every request with a fixed identity. Reporter routes run as
// the offline user and admin routes as the admin system account.
type Offline struct {
	users  UserStore
	logger *zap.Logger
}

func NewOffline(users UserStore, logger *zap.Logger) *Offline {
	return &Offline{users: users, logger: logger}
}

func offlineEmail(v string) *string { return &v }

func offlineIdentities() []model.User {
	return []model.User{
		{
			ID:        model.OfflineUserID,
			Email:     offlineEmail("offline@local"),
			FirstName: "오프라인",
			LastName:  "사용자",
		},
		{
			ID:        model.OfflineAdminID,
			Email:     offlineEmail("admin@local"),
			FirstName: "관리자",
			LastName:  "시스템",
		},
	}
}

// EnsureIdentities upserts the fixed identities so reports can reference them.
func (o *Offline) EnsureIdentities(ctx context.Context) error {
	for _, identity := range offlineIdentities() {
		user := identity
		if _, err := o.users.UpsertUser(ctx, &user); err != nil {
			return fmt.Errorf("seed offline identity %s: %w", identity.ID, err)
		}
	}
	o.logger.Info("offline identities ready", zap.String("user", model.OfflineUserID), zap.String("admin", model.OfflineAdminID))
	return nil
}

func (o *Offline) Mode() Mode { return ModeOffline }

// RegisterRoutes is a no-op: there is no login flow offline.
func (o *Offline) RegisterRoutes(r gin.IRouter) {}

func (o *Offline) Require(role Role) gin.HandlerFunc {
	id := model.OfflineUserID
	if role == RoleAdmin {
		id = model.OfflineAdminID
	}
	return func(c *gin.Context) {
		setUserID(c, id)
		c.Next()
	}
}

func (o *Offline) CurrentUser(c *gin.Context) (*model.User, error) {
	id := UserID(c)
	if id == "" {
		id = model.OfflineUserID
	}

	user, err := o.users.GetUser(c.Request.Context(), id)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	for _, identity := range offlineIdentities() {
		if identity.ID == id {
			return &identity, nil
		}
	}
	return nil, ErrUnauthenticated
}
