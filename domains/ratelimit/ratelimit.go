package ratelimit

import (
	"context"
	"time"
)

// Window is the fixed rate-limit window.
const Window = 60 * time.Second

// Result is reported to the caller whether or not the request is limited.
type Result struct {
	Limited   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

type ILimiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// Unlimited is the result for requests that carry no key.
func Unlimited(limit int, now time.Time) Result {
	return Result{Limit: limit, Remaining: limit, Reset: now.Add(Window)}
}

func remaining(limit int, count int64) int {
	if r := int64(limit) - count; r > 0 {
		return int(r)
	}
	return 0
}

// Evaluate builds the result for the count-th request of a window.
func Evaluate(limit int, count int64, reset time.Time) Result {
	return Result{
		Limited:   count > int64(limit),
		Limit:     limit,
		Remaining: remaining(limit, count),
		Reset:     reset,
	}
}
