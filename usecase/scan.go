package usecase

import (
	"context"

	domainEngine "github.com/AzielCF/wa-relay/domains/engine"
	"github.com/sirupsen/logrus"
)

// ScanLimits bounds the history walk used to find a message the durable store
// cannot serve.
type ScanLimits struct {
	MaxThreads int
	PerThread  int
}

func (l ScanLimits) withDefaults() ScanLimits {
	if l.MaxThreads <= 0 {
		l.MaxThreads = 50
	}
	if l.PerThread <= 0 {
		l.PerThread = 100
	}
	return l
}

// findLive looks for messageID in the engine's recent history. hint, when
// known, is scanned first.
func findLive(ctx context.Context, engine domainEngine.Engine, limits ScanLimits, messageID, hint string) (domainEngine.Message, bool) {
	limits = limits.withDefaults()

	threads, err := engine.Threads(ctx)
	if err != nil {
		logrus.WithError(err).Warn("[MEDIA] Failed to list chats for scan")
		return domainEngine.Message{}, false
	}
	if len(threads) > limits.MaxThreads {
		threads = threads[:limits.MaxThreads]
	}
	if hint != "" {
		threads = append([]string{hint}, threads...)
	}

	seen := make(map[string]bool, len(threads))
	for _, thread := range threads {
		if seen[thread] {
			continue
		}
		seen[thread] = true
		if ctx.Err() != nil {
			return domainEngine.Message{}, false
		}

		msgs, err := engine.RecentMessages(ctx, thread, limits.PerThread)
		if err != nil {
			logrus.WithError(err).Debugf("[MEDIA] Failed to fetch messages of %s", thread)
			continue
		}
		for _, m := range msgs {
			if m.ID == messageID {
				return m, true
			}
		}
	}
	return domainEngine.Message{}, false
}
