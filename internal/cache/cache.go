package cache

import (
	"context"
	"time"
)

// DashboardCache stores JSON-encodable dashboard responses. Get reports a
// miss with false and a nil error.
type DashboardCache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

type NoopDashboardCache struct{}

func (NoopDashboardCache) Get(_ context.Context, _ string, _ any) (bool, error) {
	return false, nil
}

func (NoopDashboardCache) Set(_ context.Context, _ string, _ any, _ time.Duration) error {
	return nil
}
