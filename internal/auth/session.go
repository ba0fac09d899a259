package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/srmaas/errorreport/internal/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const sessionIssuer = "srmaas"

// SessionStore keeps login sessions in the sessions table.
type SessionStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewSessionStore(db *gorm.DB) *SessionStore {
	return &SessionStore{db: db, now: time.Now}
}

// WithClock replaces the time source. It returns the store for chaining.
func (s *SessionStore) WithClock(now func() time.Time) *SessionStore {
	s.now = now
	return s
}

func (s *SessionStore) Create(ctx context.Context, data *model.SessionData, ttl time.Duration) (string, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode session: %w", err)
	}

	session := model.Session{
		SID:    uuid.NewString(),
		Sess:   datatypes.JSON(payload),
		Expire: s.now().Add(ttl).UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&session).Error; err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return session.SID, nil
}

// Get returns the session data, or nil when the session is unknown or expired.
func (s *SessionStore) Get(ctx context.Context, sid string) (*model.SessionData, error) {
	var session model.Session
	err := s.db.WithContext(ctx).
		Where("sid = ? AND expire > ?", sid, s.now().UTC()).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var data model.SessionData
	if err := json.Unmarshal(session.Sess, &data); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sid, err)
	}
	return &data, nil
}

// Save replaces the stored data without extending the expiry.
func (s *SessionStore) Save(ctx context.Context, sid string, data *model.SessionData) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	err = s.db.WithContext(ctx).Model(&model.Session{}).
		Where("sid = ?", sid).
		Update("sess", datatypes.JSON(payload)).Error
	if err != nil {
		return fmt.Errorf("save session %s: %w", sid, err)
	}
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, sid string) error {
	if err := s.db.WithContext(ctx).Where("sid = ?", sid).Delete(&model.Session{}).Error; err != nil {
		return fmt.Errorf("delete session %s: %w", sid, err)
	}
	return nil
}

// PurgeExpired removes every expired session and returns how many were deleted.
func (s *SessionStore) PurgeExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).Where("expire <= ?", s.now().UTC()).Delete(&model.Session{})
	if result.Error != nil {
		return 0, fmt.Errorf("purge sessions: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *SessionStore) CountExpired(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.Session{}).Where("expire <= ?", s.now().UTC()).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count expired sessions: %w", err)
	}
	return n, nil
}

type sessionClaims struct {
	SID string `json:"sid"`
	jwt.RegisteredClaims
}

// SignSessionCookie produces the cookie value identifying a session.
func SignSessionCookie(sid, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		SID: sid,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    sessionIssuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseSessionCookie validates the cookie signature and returns the session id.
func ParseSessionCookie(value, secret string) (string, error) {
	token, err := jwt.ParseWithClaims(value, &sessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(sessionIssuer))
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid || claims.SID == "" {
		return "", errors.New("invalid session cookie")
	}
	return claims.SID, nil
}
