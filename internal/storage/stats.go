package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/srmaas/errorreport/internal/model"
)

// statWindow is the number of buckets returned by period statistics.
const statWindow = 7

type ErrorStats struct {
	NewErrors  int64 `json:"newErrors"`
	InProgress int64 `json:"inProgress"`
	Completed  int64 `json:"completed"`
	OnHold     int64 `json:"onHold"`
}

type PeriodStat struct {
	Week     string `json:"week"`
	Errors   int64  `json:"errors"`
	Resolved int64  `json:"resolved"`
}

type CategoryStat struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

func (s *Storage) GetErrorStats(ctx context.Context) (*ErrorStats, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var rows []statusCount
	err := s.db.WithContext(ctx).Model(&model.ErrorReport{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count reports by status: %w", err)
	}

	stats := &ErrorStats{}
	for _, row := range rows {
		switch row.Status {
		case model.StatusReceived:
			stats.NewErrors = row.Count
		case model.StatusInProgress:
			stats.InProgress = row.Count
		case model.StatusCompleted:
			stats.Completed = row.Count
		case model.StatusOnHold:
			stats.OnHold = row.Count
		}
	}
	return stats, nil
}

func (s *Storage) GetWeeklyStats(ctx context.Context) ([]PeriodStat, error) {
	return s.GetPeriodStats(ctx, model.PeriodWeekly)
}

// GetPeriodStats returns seven consecutive buckets ending with the current
// day, Monday-anchored week or calendar month, oldest first. Each bucket counts
// the reports created in it and, of those, the ones already completed.
func (s *Storage) GetPeriodStats(ctx context.Context, period string) ([]PeriodStat, error) {
	starts := s.bucketStarts(period)
	end := s.advance(period, starts[len(starts)-1])

	type createdRow struct {
		Status    string
		CreatedAt time.Time
	}
	var rows []createdRow
	err := s.db.WithContext(ctx).Model(&model.ErrorReport{}).
		Select("status, created_at").
		Where("created_at >= ? AND created_at < ?", starts[0].UTC(), end.UTC()).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load %s stats: %w", period, err)
	}

	stats := make([]PeriodStat, len(starts))
	for i, start := range starts {
		stats[i].Week = s.label(period, start)
	}
	for _, row := range rows {
		created := row.CreatedAt.In(s.loc)
		for i := len(starts) - 1; i >= 0; i-- {
			if !created.Before(starts[i]) {
				stats[i].Errors++
				if row.Status == model.StatusCompleted {
					stats[i].Resolved++
				}
				break
			}
		}
	}
	return stats, nil
}

func (s *Storage) bucketStarts(period string) []time.Time {
	now := s.now().In(s.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)

	starts := make([]time.Time, statWindow)
	for i := 0; i < statWindow; i++ {
		back := statWindow - 1 - i
		switch period {
		case model.PeriodDaily:
			starts[i] = today.AddDate(0, 0, -back)
		case model.PeriodMonthly:
			starts[i] = time.Date(now.Year(), now.Month()-time.Month(back), 1, 0, 0, 0, 0, s.loc)
		default:
			starts[i] = mondayOf(today).AddDate(0, 0, -7*back)
		}
	}
	return starts
}

func (s *Storage) advance(period string, start time.Time) time.Time {
	switch period {
	case model.PeriodDaily:
		return start.AddDate(0, 0, 1)
	case model.PeriodMonthly:
		return start.AddDate(0, 1, 0)
	default:
		return start.AddDate(0, 0, 7)
	}
}

func (s *Storage) label(period string, start time.Time) string {
	if period == model.PeriodMonthly {
		return fmt.Sprintf("%d년 %d월", start.Year(), int(start.Month()))
	}
	return fmt.Sprintf("%d월 %d일", int(start.Month()), start.Day())
}

// mondayOf returns midnight of the Monday starting t's week.
func mondayOf(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset)
}

func (s *Storage) GetCategoryStats(ctx context.Context) ([]CategoryStat, error) {
	stats := []CategoryStat{}
	err := s.db.WithContext(ctx).Model(&model.ErrorReport{}).
		Select("system as category, count(*) as count").
		Group("system").
		Order("count DESC").
		Order("category ASC").
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("count reports by system: %w", err)
	}
	return stats, nil
}

func (s *Storage) CountErrors(ctx context.Context) (int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&model.ErrorReport{}).Count(&total).Error; err != nil {
		return 0, fmt.Errorf("count reports: %w", err)
	}
	return total, nil
}

func (s *Storage) CountResolved(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&model.ErrorReport{}).
		Where("status = ?", model.StatusCompleted).
		Count(&total).Error
	if err != nil {
		return 0, fmt.Errorf("count resolved reports: %w", err)
	}
	return total, nil
}

// AverageResolutionHours is the mean time between creation and the last update
// of completed reports. It is 0 when nothing has been completed.
func (s *Storage) AverageResolutionHours(ctx context.Context) (float64, error) {
	type span struct {
		CreatedAt time.Time
		UpdatedAt time.Time
	}
	var rows []span
	err := s.db.WithContext(ctx).Model(&model.ErrorReport{}).
		Select("created_at, updated_at").
		Where("status = ?", model.StatusCompleted).
		Scan(&rows).Error
	if err != nil {
		return 0, fmt.Errorf("load resolution times: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	var total time.Duration
	for _, row := range rows {
		total += row.UpdatedAt.Sub(row.CreatedAt)
	}
	return total.Hours() / float64(len(rows)), nil
}

func toStringArray(values []string) pq.StringArray {
	if values == nil {
		return nil
	}
	return pq.StringArray(values)
}

// CategoryShift compares a system's report count in the current bucket with
// the bucket before it.
type CategoryShift struct {
	Category string `json:"category"`
	Current  int64  `json:"current"`
	Previous int64  `json:"previous"`
}

// GetCategoryShift counts reports per system in the last two buckets of the
// period, ordered by category.
func (s *Storage) GetCategoryShift(ctx context.Context, period string) ([]CategoryShift, error) {
	starts := s.bucketStarts(period)
	previousStart := starts[len(starts)-2]
	currentStart := starts[len(starts)-1]
	end := s.advance(period, currentStart)

	type systemRow struct {
		System    string
		CreatedAt time.Time
	}
	var rows []systemRow
	err := s.db.WithContext(ctx).Model(&model.ErrorReport{}).
		Select("system, created_at").
		Where("created_at >= ? AND created_at < ?", previousStart.UTC(), end.UTC()).
		Order("system ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load %s category shift: %w", period, err)
	}

	shifts := []CategoryShift{}
	index := map[string]int{}
	for _, row := range rows {
		i, ok := index[row.System]
		if !ok {
			i = len(shifts)
			index[row.System] = i
			shifts = append(shifts, CategoryShift{Category: row.System})
		}
		if row.CreatedAt.In(s.loc).Before(currentStart) {
			shifts[i].Previous++
		} else {
			shifts[i].Current++
		}
	}
	return shifts, nil
}
