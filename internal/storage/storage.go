package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/srmaas/errorreport/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	DefaultListLimit = 20
	exportBatchSize  = 200
)

// Storage is the single access point to persisted users, reports and
// analysis results. Absent rows are reported as nil results, not errors.
type Storage struct {
	db  *gorm.DB
	now func() time.Time
	loc *time.Location
}

type Option func(*Storage)

// WithClock overrides the time source used for timestamps and stat windows.
func WithClock(now func() time.Time) Option {
	return func(s *Storage) { s.now = now }
}

// WithLocation sets the time zone in which weeks, days and months are cut.
func WithLocation(loc *time.Location) Option {
	return func(s *Storage) { s.loc = loc }
}

func New(db *gorm.DB, opts ...Option) *Storage {
	s := &Storage{db: db, now: time.Now, loc: time.Local}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// timestamp is the current time as persisted. Rows are always written in UTC.
func (s *Storage) timestamp() time.Time {
	return s.now().UTC()
}

// DB exposes the underlying handle for components sharing the connection.
func (s *Storage) DB() *gorm.DB {
	return s.db
}

// Users

func (s *Storage) GetUser(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return &user, nil
}

func (s *Storage) UpsertUser(ctx context.Context, user *model.User) (*model.User, error) {
	now := s.timestamp()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "first_name", "last_name", "profile_image_url", "username", "updated_at"}),
	}).Create(user).Error
	if err != nil {
		return nil, fmt.Errorf("upsert user %s: %w", user.ID, err)
	}

	return s.GetUser(ctx, user.ID)
}

// Reports

type ListOptions struct {
	Search string
	Status string
	Limit  int
	Offset int
}

type ListResult struct {
	Items []model.ErrorReport
	Total int64
}

// ErrorReportUpdate carries the fields of a partial update. Nil fields are left untouched.
type ErrorReportUpdate struct {
	Title       *string
	Content     *string
	Priority    *string
	System      *string
	Status      *string
	Browser     *string
	OS          *string
	Attachments *[]string
}

func (s *Storage) CreateError(ctx context.Context, report *model.ErrorReport) (*model.ErrorReport, error) {
	if report.Priority == "" {
		report.Priority = model.DefaultPriority
	}
	if report.Status == "" {
		report.Status = model.StatusReceived
	}
	now := s.timestamp()
	report.ID = 0
	report.CreatedAt = now
	report.UpdatedAt = now

	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(report).Error; err != nil {
		return nil, fmt.Errorf("create error report: %w", err)
	}
	return report, nil
}

func (s *Storage) filtered(ctx context.Context, opts ListOptions) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&model.ErrorReport{})
	if opts.Search != "" {
		pattern := "%" + opts.Search + "%"
		query = query.Where("title LIKE ? OR content LIKE ?", pattern, pattern)
	}
	if opts.Status != "" && opts.Status != model.StatusAll {
		query = query.Where("status = ?", opts.Status)
	}
	return query
}

func (s *Storage) ListErrors(ctx context.Context, opts ListOptions) (*ListResult, error) {
	if opts.Limit <= 0 {
		opts.Limit = DefaultListLimit
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	var total int64
	if err := s.filtered(ctx, opts).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count error reports: %w", err)
	}

	items := []model.ErrorReport{}
	err := s.filtered(ctx, opts).
		Order("created_at DESC").
		Order("id DESC").
		Limit(opts.Limit).
		Offset(opts.Offset).
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("list error reports: %w", err)
	}

	return &ListResult{Items: items, Total: total}, nil
}

// ListAllErrors walks every report matching the search and status filters in
// batches in ascending id order. Limit and Offset are ignored.
func (s *Storage) ListAllErrors(ctx context.Context, opts ListOptions, fn func([]model.ErrorReport) error) error {
	var batch []model.ErrorReport
	result := s.filtered(ctx, opts).
		FindInBatches(&batch, exportBatchSize, func(tx *gorm.DB, _ int) error {
			return fn(batch)
		})
	if result.Error != nil {
		return fmt.Errorf("iterate error reports: %w", result.Error)
	}
	return nil
}

func (s *Storage) GetError(ctx context.Context, id int64) (*model.ErrorReport, error) {
	var report model.ErrorReport
	err := s.db.WithContext(ctx).First(&report, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get error report %d: %w", id, err)
	}
	return &report, nil
}

func (s *Storage) UpdateError(ctx context.Context, id int64, update ErrorReportUpdate) (*model.ErrorReport, error) {
	fields := map[string]interface{}{"updated_at": s.timestamp()}
	if update.Title != nil {
		fields["title"] = *update.Title
	}
	if update.Content != nil {
		fields["content"] = *update.Content
	}
	if update.Priority != nil {
		fields["priority"] = *update.Priority
	}
	if update.System != nil {
		fields["system"] = *update.System
	}
	if update.Status != nil {
		fields["status"] = *update.Status
	}
	if update.Browser != nil {
		fields["browser"] = *update.Browser
	}
	if update.OS != nil {
		fields["os"] = *update.OS
	}
	if update.Attachments != nil {
		fields["attachments"] = toStringArray(*update.Attachments)
	}

	result := s.db.WithContext(ctx).Model(&model.ErrorReport{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return nil, fmt.Errorf("update error report %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return s.GetError(ctx, id)
}

func (s *Storage) DeleteError(ctx context.Context, id int64) (bool, error) {
	result := s.db.WithContext(ctx).Delete(&model.ErrorReport{}, id)
	if result.Error != nil {
		return false, fmt.Errorf("delete error report %d: %w", id, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// Analysis results

func (s *Storage) SaveAnalysisResult(ctx context.Context, result *model.AnalysisResult) error {
	if result.CreatedAt.IsZero() {
		result.CreatedAt = s.timestamp()
	}
	if err := s.db.WithContext(ctx).Create(result).Error; err != nil {
		return fmt.Errorf("save analysis result: %w", err)
	}
	return nil
}
