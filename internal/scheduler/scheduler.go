package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Purger removes expired rows and reports how many were deleted.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// SessionReaper periodically deletes expired login sessions.
type SessionReaper struct {
	purger   Purger
	interval time.Duration
	logger   *zap.Logger

	mu        sync.Mutex
	running   bool
	runs      int
	purged    int64
	lastRunAt time.Time
	lastError string
	stopChan  chan struct{}
}

func NewSessionReaper(purger Purger, interval time.Duration, logger *zap.Logger) *SessionReaper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &SessionReaper{
		purger:   purger,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start purges once immediately and then on every tick until ctx is done or
// Stop is called. It blocks; run it on its own goroutine.
func (s *SessionReaper) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info("session reaper started", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			s.setStopped()
			s.logger.Info("session reaper stopped", zap.String("reason", "context done"))
			return
		case <-s.stopChan:
			s.logger.Info("session reaper stopped", zap.String("reason", "stop signal"))
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

func (s *SessionReaper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		close(s.stopChan)
		s.running = false
	}
}

func (s *SessionReaper) setStopped() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// RunOnce performs a single purge and returns the number of removed sessions.
func (s *SessionReaper) RunOnce(ctx context.Context) int64 {
	n, err := s.purger.PurgeExpired(ctx)

	s.mu.Lock()
	s.runs++
	s.lastRunAt = time.Now()
	if err != nil {
		s.lastError = err.Error()
	} else {
		s.lastError = ""
		s.purged += n
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("purge expired sessions", zap.Error(err))
		return 0
	}
	if n > 0 {
		s.logger.Info("purged expired sessions", zap.Int64("count", n))
	}
	return n
}

// GetStatus returns current reaper status
func (s *SessionReaper) GetStatus() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := map[string]interface{}{
		"running":  s.running,
		"interval": s.interval.String(),
		"runs":     s.runs,
		"purged":   s.purged,
	}
	if !s.lastRunAt.IsZero() {
		status["lastRunAt"] = s.lastRunAt.UTC().Format(time.RFC3339)
	}
	if s.lastError != "" {
		status["lastError"] = s.lastError
	}
	return status
}
