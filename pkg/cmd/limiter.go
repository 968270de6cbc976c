package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/shiphook/pkg/limiter"
)

// NewLimiter creates the rate limiter backend for the given URL
// (memory:// or redis://host:port).
//
// nolint:ireturn // Factory intentionally returns the limiter interface
func NewLimiter(url string, window time.Duration, maxRequests int, logger *slog.Logger) limiter.Limiter {
	l, err := limiter.New(url, limiter.Config{Window: window, MaxRequests: maxRequests}, logger)
	if err != nil {
		panic(fmt.Errorf("failed to create rate limiter: %w", err))
	}

	return l
}
