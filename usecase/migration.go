package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	domainMedia "github.com/AzielCF/wa-relay/domains/media"
	domainMessage "github.com/AzielCF/wa-relay/domains/message"
	domainSession "github.com/AzielCF/wa-relay/domains/session"
	pkgUtils "github.com/AzielCF/wa-relay/pkg/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// LegacySource is a history store written by earlier releases.
type LegacySource interface {
	Path() string
	Messages(ctx context.Context) ([]domainMessage.Message, error)
	Sessions(ctx context.Context) ([]domainSession.Metadata, error)
	Close() error
	// Remove closes the source and deletes it.
	Remove() error
}

// ErrNoLegacySource is returned by a LegacyOpener when there is nothing to migrate.
var ErrNoLegacySource = errors.New("no legacy store")

type LegacyOpener func() (LegacySource, error)

type MigrationDeps struct {
	Open     LegacyOpener
	Messages domainMessage.IMessageRepository
	Metadata domainSession.IMetadataRepository
	Media    domainMedia.IMediaStore
	// LegacyMediaRoot is where legacy media paths are relative to.
	LegacyMediaRoot string
	Workers         int
}

type MigrationReport struct {
	Sessions int64 `json:"sessions"`
	Messages int64 `json:"messages"`
	Skipped  int64 `json:"skipped"`
	Media    int64 `json:"media"`
	Failed   int64 `json:"failed"`
	Removed  bool  `json:"removed"`
}

type Migrator interface {
	Run(ctx context.Context) (MigrationReport, error)
}

type serviceMigration struct {
	MigrationDeps
}

func NewMigrationService(deps MigrationDeps) Migrator {
	if deps.Workers <= 0 {
		deps.Workers = 8
	}
	return &serviceMigration{MigrationDeps: deps}
}

func legacyAddress(addr string) string {
	if strings.HasSuffix(addr, "@c.us") {
		return strings.TrimSuffix(addr, "@c.us") + "@s.whatsapp.net"
	}
	return addr
}

// Run copies the legacy history into the message store without touching rows
// that already exist. The legacy store is deleted only after a pass without
// failures.
func (service *serviceMigration) Run(ctx context.Context) (MigrationReport, error) {
	var report MigrationReport

	src, err := service.Open()
	if errors.Is(err, ErrNoLegacySource) {
		logrus.Debug("[MIGRATION] No legacy store found")
		return report, nil
	}
	if err != nil {
		return report, fmt.Errorf("open legacy store: %w", err)
	}
	log := logrus.WithField("path", src.Path())
	log.Info("[MIGRATION] Legacy store found, migrating")

	sessions, err := src.Sessions(ctx)
	if err != nil {
		src.Close()
		return report, fmt.Errorf("read legacy clients: %w", err)
	}
	for _, meta := range sessions {
		written, err := service.Metadata.InsertIfAbsent(ctx, meta)
		if err != nil {
			report.Failed++
			log.WithError(err).Errorf("[MIGRATION] Failed to migrate client %s", meta.ID)
			continue
		}
		if written {
			report.Sessions++
		}
	}

	rows, err := src.Messages(ctx)
	if err != nil {
		src.Close()
		return report, fmt.Errorf("read legacy messages: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(service.Workers)
	for _, row := range rows {
		row := row
		g.Go(func() error {
			service.migrateRow(gctx, row, &report)
			return nil
		})
	}
	_ = g.Wait()

	if report.Failed > 0 || ctx.Err() != nil {
		src.Close()
		log.Warnf("[MIGRATION] %d rows failed, legacy store kept for retry", report.Failed)
		return report, nil
	}
	if err := src.Remove(); err != nil {
		log.WithError(err).Warn("[MIGRATION] Failed to delete legacy store")
		return report, nil
	}
	report.Removed = true
	log.Infof("[MIGRATION] Done: %d messages, %d skipped, %d media files, %d clients",
		report.Messages, report.Skipped, report.Media, report.Sessions)
	return report, nil
}

func (service *serviceMigration) migrateRow(ctx context.Context, row domainMessage.Message, report *MigrationReport) {
	row.ThreadID = legacyAddress(row.ThreadID)
	row.Sender = legacyAddress(row.Sender)
	if row.MediaPath != "" {
		rel, ok := service.adoptMedia(row)
		if ok {
			atomic.AddInt64(&report.Media, 1)
		}
		row.MediaPath = rel
	}

	written, err := service.Messages.InsertIfAbsent(ctx, row)
	switch {
	case err != nil:
		atomic.AddInt64(&report.Failed, 1)
		logrus.WithError(err).WithField("client_id", row.SessionID).Errorf("[MIGRATION] Failed to copy message %s", row.ID)
	case written:
		atomic.AddInt64(&report.Messages, 1)
	default:
		atomic.AddInt64(&report.Skipped, 1)
	}
}

// adoptMedia returns the cache path for a legacy media file, copying it in
// when it lives outside the cache. An unreadable file leaves the row without
// a path.
func (service *serviceMigration) adoptMedia(row domainMessage.Message) (string, bool) {
	if service.Media.Exists(row.MediaPath) {
		return row.MediaPath, false
	}
	if service.LegacyMediaRoot == "" {
		return "", false
	}

	full, err := pkgUtils.JoinWithin(service.LegacyMediaRoot, row.MediaPath)
	if err != nil {
		return "", false
	}
	data, err := os.ReadFile(full)
	if err != nil {
		logrus.WithError(err).Debugf("[MIGRATION] Legacy media of %s unavailable", row.ID)
		return "", false
	}
	rel, err := service.Media.Save(row.SessionID, row.ID, row.MediaType, full, data)
	if err != nil {
		logrus.WithError(err).Warnf("[MIGRATION] Failed to copy media of %s", row.ID)
		return "", false
	}
	return rel, true
}
