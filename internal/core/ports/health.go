package ports

import "context"

// HealthChecker pings one backing dependency for /health.
type HealthChecker interface {
	Ping(ctx context.Context) error
	Name() string // "postgresql", "redis"
}
