package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	coreconfig "github.com/AzielCF/wa-relay/core/config"
	coreDB "github.com/AzielCF/wa-relay/core/database"
	domainMedia "github.com/AzielCF/wa-relay/domains/media"
	domainMessage "github.com/AzielCF/wa-relay/domains/message"
	domainRateLimit "github.com/AzielCF/wa-relay/domains/ratelimit"
	domainSession "github.com/AzielCF/wa-relay/domains/session"
	"github.com/AzielCF/wa-relay/infrastructure/mediastore"
	"github.com/AzielCF/wa-relay/infrastructure/ratelimit"
	"github.com/AzielCF/wa-relay/infrastructure/storage"
	"github.com/AzielCF/wa-relay/infrastructure/valkey"
	"github.com/AzielCF/wa-relay/infrastructure/whatsapp"
	"github.com/AzielCF/wa-relay/pkg/eventbus"
	"github.com/AzielCF/wa-relay/pkg/metrics"
	"github.com/AzielCF/wa-relay/pkg/msgworker"
	"github.com/AzielCF/wa-relay/usecase"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const metricsNamespace = "wa_relay"

var (
	db           *gorm.DB
	valkeyClient *valkey.Client
	eventBus     *eventbus.Bus
	eventPool    *msgworker.Pool
	promMetrics  *metrics.Prom
	rateLimiter  domainRateLimit.ILimiter

	sessionUsecase domainSession.ISessionUsecase
	messageUsecase domainMessage.IMessageUsecase
	mediaUsecase   domainMedia.IMediaUsecase
	migrator       usecase.Migrator

	stopBackground context.CancelFunc
)

// legacyOpener adapts the sqlite reader to the migration source contract.
func legacyOpener(path string) usecase.LegacyOpener {
	return func() (usecase.LegacySource, error) {
		store, err := storage.OpenLegacy(path)
		if errors.Is(err, storage.ErrNoLegacyStore) {
			return nil, usecase.ErrNoLegacySource
		}
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}

func newLimiter(ctx context.Context, cfg *coreconfig.Config) domainRateLimit.ILimiter {
	if cfg.Database.ValkeyEnabled {
		client, err := valkey.NewClient(valkey.Config{
			URL:            cfg.Database.ValkeyURL,
			Address:        cfg.Database.ValkeyAddress,
			Password:       cfg.Database.ValkeyPassword,
			DB:             cfg.Database.ValkeyDB,
			KeyPrefix:      cfg.Database.ValkeyKeyPrefix,
			ConnectTimeout: 5 * time.Second,
		})
		if err == nil {
			valkeyClient = client
			logrus.Info("[RATE_LIMIT] Using valkey backed limiter")
			return ratelimit.NewValkeyLimiter(client, cfg.RateLimit.PerMinute)
		}
		logrus.WithError(err).Warn("[RATE_LIMIT] Valkey unavailable, falling back to in-memory limiter")
	}

	limiter := ratelimit.NewMemoryLimiter(cfg.RateLimit.PerMinute)
	go limiter.RunSweeper(ctx, time.Minute)
	return limiter
}

// buildApp opens the stores and wires every component. withEngines is false
// for commands that only touch storage.
func buildApp(withEngines bool) error {
	cfg := coreconfig.Global
	ctx, cancel := context.WithCancel(context.Background())
	stopBackground = cancel

	var err error
	db, err = coreDB.NewDatabase(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	messageRepo := storage.NewMessageGormRepository(db)
	metadataRepo := storage.NewMetadataGormRepository(db)
	if err := messageRepo.InitSchema(ctx); err != nil {
		return fmt.Errorf("init message schema: %w", err)
	}
	if err := metadataRepo.InitSchema(ctx); err != nil {
		return fmt.Errorf("init metadata schema: %w", err)
	}

	mediaStore, err := mediastore.NewDiskStore(cfg.Paths.Media)
	if err != nil {
		return fmt.Errorf("open media store: %w", err)
	}

	migrator = usecase.NewMigrationService(usecase.MigrationDeps{
		Open:            legacyOpener(cfg.Paths.LegacySQLite),
		Messages:        messageRepo,
		Metadata:        metadataRepo,
		Media:           mediaStore,
		LegacyMediaRoot: cfg.Paths.Media,
		Workers:         cfg.WorkerPool.Size,
	})
	if !withEngines {
		return nil
	}

	promMetrics = metrics.NewProm(metricsNamespace)
	rateLimiter = newLimiter(ctx, cfg)

	registry := usecase.NewRegistry()
	eventBus = eventbus.New(256, nil)
	eventBus.SetSnapshot(registry.Snapshot)

	eventPool = msgworker.NewPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize)
	eventPool.Start(ctx)

	promMetrics.GaugeFunc(metricsNamespace, "clients", "Live clients", func() float64 {
		return float64(registry.Len())
	})
	promMetrics.GaugeFunc(metricsNamespace, "sse_subscribers", "Connected event stream subscribers", func() float64 {
		return float64(eventBus.Count())
	})
	promMetrics.GaugeFunc(metricsNamespace, "events_dropped", "Subscribers dropped for falling behind", func() float64 {
		return float64(eventBus.Dropped())
	})

	scan := usecase.ScanLimits{
		MaxThreads: cfg.Media.ScanMaxThreads,
		PerThread:  cfg.Media.ScanPerThread,
	}

	sessionUsecase = usecase.NewSessionService(usecase.SessionDeps{
		Registry: registry,
		Metadata: metadataRepo,
		Messages: messageRepo,
		Media:    mediaStore,
		Factory: whatsapp.NewFactory(whatsapp.Options{
			StoragesPath:     cfg.Paths.Storages,
			LogLevel:         cfg.Whatsapp.LogLevel,
			OS:               cfg.Whatsapp.OS,
			HistoryPerThread: cfg.Media.ScanPerThread,
		}),
		Bus:     eventBus,
		Pool:    eventPool,
		Metrics: promMetrics,
	})
	messageUsecase = usecase.NewMessageService(usecase.MessageDeps{
		Registry: registry,
		Messages: messageRepo,
		Media:    mediaStore,
		Bus:      eventBus,
		Metrics:  promMetrics,
		Scan:     scan,
	})
	mediaUsecase = usecase.NewMediaService(usecase.MediaDeps{
		Registry: registry,
		Messages: messageRepo,
		Media:    mediaStore,
		Metrics:  promMetrics,
		Scan:     scan,
	})
	return nil
}

// runMigration imports the legacy store when one is present.
func runMigration(ctx context.Context) {
	report, err := migrator.Run(ctx)
	if err != nil {
		logrus.WithError(err).Error("[MIGRATION] Legacy import failed")
		return
	}
	if report.Messages == 0 && report.Sessions == 0 && report.Skipped == 0 && report.Failed == 0 {
		return
	}
	logrus.WithFields(logrus.Fields{
		"sessions": report.Sessions,
		"messages": report.Messages,
		"skipped":  report.Skipped,
		"media":    report.Media,
		"failed":   report.Failed,
		"removed":  report.Removed,
	}).Info("[MIGRATION] Legacy import finished")
}

// StopApp releases every component in reverse start order.
func StopApp() {
	logrus.Info("[APP] Stopping application...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if sessionUsecase != nil {
		sessionUsecase.Shutdown(ctx)
	}
	if eventPool != nil {
		eventPool.Stop()
	}
	if eventBus != nil {
		eventBus.Close()
	}
	if stopBackground != nil {
		stopBackground()
	}
	if valkeyClient != nil {
		valkeyClient.Close()
	}
	if db != nil {
		if err := coreDB.Close(db); err != nil {
			logrus.WithError(err).Warn("[APP] Database close failed")
		}
	}

	logrus.Info("[APP] Application stopped cleanly.")
}
