package limiter

import (
	"context"
	"fmt"
	"time"
)

// AI routes that are rate limited per client.
const (
	ActionGenerateTitle  = "generate-title"
	ActionAnalyzeSystem  = "analyze-system"
	ActionAnalyzeImage   = "analyze-image"
	ActionTranscribe     = "transcribe"
	ActionGenerateReport = "ai-analysis"
)

type ActionConfig struct {
	Limit  int64
	Window time.Duration
}

var DefaultLimits = map[string]ActionConfig{
	ActionGenerateTitle:  {Limit: 30, Window: time.Minute},
	ActionAnalyzeSystem:  {Limit: 30, Window: time.Minute},
	ActionAnalyzeImage:   {Limit: 10, Window: time.Minute},
	ActionTranscribe:     {Limit: 10, Window: time.Minute},
	ActionGenerateReport: {Limit: 5, Window: time.Minute},
}

// Counter is a fixed-window counter store.
type Counter interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
}

type Limiter struct {
	counter Counter
	limits  map[string]ActionConfig
}

type CheckResult struct {
	Allowed   bool  `json:"allowed"`
	Remaining int64 `json:"remaining"`
	ResetAt   int64 `json:"resetAt"`
	Limit     int64 `json:"limit"`
}

func NewLimiter(counter Counter) *Limiter {
	return &Limiter{counter: counter, limits: DefaultLimits}
}

func (l *Limiter) Check(ctx context.Context, clientID, action string) (*CheckResult, error) {
	config, ok := l.limits[action]
	if !ok {
		config = ActionConfig{Limit: 100, Window: time.Minute}
	}

	key := fmt.Sprintf("rate:%s:%s", clientID, action)

	count, err := l.counter.Incr(ctx, key, config.Window)
	if err != nil {
		return nil, fmt.Errorf("failed to increment counter: %w", err)
	}

	ttl, err := l.counter.TTL(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get TTL: %w", err)
	}
	if ttl < 0 {
		ttl = config.Window
	}

	remaining := config.Limit - count
	if remaining < 0 {
		remaining = 0
	}

	return &CheckResult{
		Allowed:   count <= config.Limit,
		Remaining: remaining,
		ResetAt:   time.Now().Add(ttl).Unix(),
		Limit:     config.Limit,
	}, nil
}
