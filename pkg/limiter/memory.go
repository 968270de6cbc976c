package limiter

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// MemoryLimiter keeps per-identifier request timestamps in process memory.
// A background sweep at window interval drops identifiers whose pruned
// record is empty, bounding memory under identifier churn.
type MemoryLimiter struct {
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time
	mu      sync.Mutex
	records map[string][]time.Time
	done    chan struct{}
	once    sync.Once
}

// NewMemoryLimiter creates an in-memory sliding-window limiter and starts
// its sweep goroutine.
func NewMemoryLimiter(cfg Config, logger *slog.Logger) *MemoryLimiter {
	l := &MemoryLimiter{
		cfg:     cfg.withDefaults(),
		logger:  logger.With("module", "rate_limiter"),
		now:     time.Now,
		records: make(map[string][]time.Time),
		done:    make(chan struct{}),
	}

	go l.sweep()

	return l
}

// Allow prunes expired timestamps for id, rejects without recording when the
// threshold is reached, and otherwise records the request. The whole
// sequence runs under one lock so concurrent requests cannot both slip past
// the threshold.
func (l *MemoryLimiter) Allow(_ context.Context, id string) (bool, error) {
	now := l.now()
	cutoff := now.Add(-l.cfg.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	recent := pruneBefore(l.records[id], cutoff)

	if len(recent) >= l.cfg.MaxRequests {
		l.records[id] = recent
		l.logger.Warn("Rate limit exceeded", "identifier", id, "in_window", len(recent))

		return false, nil
	}

	l.records[id] = append(recent, now)

	return true, nil
}

// Stats returns the tracked-identifier count and the summed in-window
// request count.
func (l *MemoryLimiter) Stats(_ context.Context) (Stats, error) {
	cutoff := l.now().Add(-l.cfg.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	var total int64

	for _, timestamps := range l.records {
		total += int64(len(pruneBefore(timestamps, cutoff)))
	}

	return Stats{
		TrackedIdentifiers: len(l.records),
		InWindowRequests:   total,
	}, nil
}

// Close stops the sweep goroutine.
func (l *MemoryLimiter) Close() error {
	l.once.Do(func() {
		close(l.done)
	})

	return nil
}

func (l *MemoryLimiter) sweep() {
	ticker := time.NewTicker(l.cfg.Window)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.removeEmptyRecords()
		}
	}
}

func (l *MemoryLimiter) removeEmptyRecords() {
	cutoff := l.now().Add(-l.cfg.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0

	for id, timestamps := range l.records {
		recent := pruneBefore(timestamps, cutoff)
		if len(recent) == 0 {
			delete(l.records, id)

			removed++

			continue
		}

		l.records[id] = recent
	}

	if removed > 0 {
		l.logger.Debug("Swept idle rate limit records", "removed", removed, "remaining", len(l.records))
	}
}

// pruneBefore drops timestamps at or before cutoff. Timestamps are appended
// in order, so the first in-window index bounds the survivors.
func pruneBefore(timestamps []time.Time, cutoff time.Time) []time.Time {
	for i, ts := range timestamps {
		if ts.After(cutoff) {
			return timestamps[i:]
		}
	}

	return nil
}
