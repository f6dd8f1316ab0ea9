package ratelimit

import (
	"context"
	"time"

	domainRateLimit "github.com/AzielCF/wa-relay/domains/ratelimit"
	"github.com/AzielCF/wa-relay/infrastructure/valkey"
	"github.com/sirupsen/logrus"
)

// ValkeyLimiter shares counters across processes. When the server cannot be
// reached the request is let through and the failure logged.
type ValkeyLimiter struct {
	client *valkey.Client
	limit  int
}

func NewValkeyLimiter(client *valkey.Client, limit int) *ValkeyLimiter {
	return &ValkeyLimiter{client: client, limit: limit}
}

func (l *ValkeyLimiter) Allow(ctx context.Context, key string) (domainRateLimit.Result, error) {
	now := time.Now()
	if key == "" {
		return domainRateLimit.Unlimited(l.limit, now), nil
	}

	count, ttl, err := l.client.IncrWindow(ctx, l.client.Key("rate", key), domainRateLimit.Window)
	if err != nil {
		logrus.WithError(err).Warn("[RATE_LIMIT] Valkey unavailable, allowing request")
		return domainRateLimit.Unlimited(l.limit, now), nil
	}
	return domainRateLimit.Evaluate(l.limit, count, now.Add(ttl)), nil
}
