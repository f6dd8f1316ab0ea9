package ratelimit

import (
	"context"
	"sync"
	"time"

	domainRateLimit "github.com/AzielCF/wa-relay/domains/ratelimit"
)

type window struct {
	count int64
	start time.Time
}

// MemoryLimiter is a fixed-window counter per key held in process memory.
type MemoryLimiter struct {
	mu      sync.Mutex
	limit   int
	windows map[string]*window
	now     func() time.Time
}

func NewMemoryLimiter(limit int) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   limit,
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (domainRateLimit.Result, error) {
	now := l.now()
	if key == "" {
		return domainRateLimit.Unlimited(l.limit, now), nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) > domainRateLimit.Window {
		w = &window{start: now}
		l.windows[key] = w
	}
	w.count++
	return domainRateLimit.Evaluate(l.limit, w.count, w.start.Add(domainRateLimit.Window)), nil
}

// Sweep forgets windows that ended before now.
func (l *MemoryLimiter) Sweep() int {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, w := range l.windows {
		if now.Sub(w.start) > domainRateLimit.Window {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (l *MemoryLimiter) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}
