// Package limiter provides sliding-window admission control keyed by client
// identifier, with in-memory and Redis-backed implementations.
package limiter

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

const (
	// DefaultWindow is the sliding-window span.
	DefaultWindow = 60 * time.Second
	// DefaultMaxRequests is the admission threshold per identifier per window.
	DefaultMaxRequests = 100
)

// Stats aggregates limiter state for observability.
type Stats struct {
	TrackedIdentifiers int   `json:"tracked_identifiers"`
	InWindowRequests   int64 `json:"in_window_requests"`
}

// Limiter admits or rejects requests per client identifier over a sliding
// window. The check-then-record step is atomic per identifier.
type Limiter interface {
	// Allow prunes expired entries for id and either records the request and
	// admits it, or rejects it without recording.
	Allow(ctx context.Context, id string) (bool, error)
	// Stats returns aggregate limiter state.
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// Config holds limiter tuning shared by every backend.
type Config struct {
	Window      time.Duration
	MaxRequests int
}

func (c Config) withDefaults() Config {
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}

	if c.MaxRequests <= 0 {
		c.MaxRequests = DefaultMaxRequests
	}

	return c
}

// New creates a limiter backend based on the URL scheme
// (memory:// or redis://host:port).
func New(url string, cfg Config, logger *slog.Logger) (Limiter, error) {
	scheme, _, found := strings.Cut(url, "://")
	if !found {
		return nil, errors.New("limiter URL must include a scheme (memory:// or redis://)")
	}

	switch scheme {
	case "memory":
		return NewMemoryLimiter(cfg, logger), nil
	case "redis", "rediss":
		return NewRedisLimiter(url, cfg, logger)
	default:
		return nil, errors.New("unsupported limiter scheme: " + scheme + " (supported: memory://, redis://)")
	}
}
