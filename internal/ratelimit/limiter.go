package ratelimit

import "context"

// RateLimiter controls command throughput per device.
type RateLimiter interface {
	Allow(ctx context.Context, deviceID string) (bool, error)
	Wait(ctx context.Context, deviceID string) error
}
