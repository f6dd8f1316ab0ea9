package usecase

import (
	"context"
	"errors"
	"time"

	domainEngine "github.com/AzielCF/wa-relay/domains/engine"
	domainMedia "github.com/AzielCF/wa-relay/domains/media"
	domainMessage "github.com/AzielCF/wa-relay/domains/message"
	pkgError "github.com/AzielCF/wa-relay/pkg/error"
	"github.com/AzielCF/wa-relay/pkg/metrics"
	"github.com/sirupsen/logrus"
)

type MediaDeps struct {
	Registry *Registry
	Messages domainMessage.IMessageRepository
	Media    domainMedia.IMediaStore
	Metrics  metrics.Metrics
	Scan     ScanLimits
	// Timeout bounds a single engine download.
	Timeout time.Duration
}

type serviceMedia struct {
	MediaDeps
}

func NewMediaService(deps MediaDeps) domainMedia.IMediaUsecase {
	if deps.Metrics == nil {
		deps.Metrics = metrics.Noop{}
	}
	if deps.Timeout <= 0 {
		deps.Timeout = 2 * time.Minute
	}
	return &serviceMedia{MediaDeps: deps}
}

func (service *serviceMedia) Exists(ctx context.Context, sessionID, messageID string) (domainMedia.ExistsResponse, error) {
	if !service.Registry.Has(sessionID) {
		return domainMedia.ExistsResponse{}, pkgError.ErrSessionNotFound
	}

	rec, err := service.Messages.GetByID(ctx, sessionID, messageID)
	if errors.Is(err, pkgError.ErrMessageNotFound) {
		return domainMedia.ExistsResponse{}, nil
	}
	if err != nil {
		return domainMedia.ExistsResponse{}, err
	}
	if rec.MediaPath == "" {
		return domainMedia.ExistsResponse{}, nil
	}

	path := rec.MediaPath
	return domainMedia.ExistsResponse{
		Exists:    service.Media.Exists(path),
		MediaPath: &path,
	}, nil
}

// Download serves the cached file of a message, fetching it from the engine
// on first use.
func (service *serviceMedia) Download(ctx context.Context, sessionID, messageID string) (domainMedia.File, error) {
	sess, ok := service.Registry.Get(sessionID)
	if !ok {
		return domainMedia.File{}, pkgError.ErrSessionNotFound
	}
	log := logrus.WithField("client_id", sessionID)

	var hint string
	var fileGone bool
	rec, err := service.Messages.GetByID(ctx, sessionID, messageID)
	switch {
	case err == nil:
		hint = rec.ThreadID
		if rec.MediaPath != "" {
			if service.Media.Exists(rec.MediaPath) {
				full, err := service.Media.Resolve(rec.MediaPath)
				if err != nil {
					return domainMedia.File{}, err
				}
				service.Metrics.IncMediaServed("cache")
				return domainMedia.File{Path: full, MimeType: rec.MediaType}, nil
			}
			fileGone = true
			log.Warnf("[MEDIA] Recorded file %s is missing, fetching again", rec.MediaPath)
		}
	case !errors.Is(err, pkgError.ErrMessageNotFound):
		return domainMedia.File{}, err
	}

	msg, found := findLive(ctx, sess.Engine, service.Scan, messageID, hint)
	if !found || !msg.HasMedia {
		if fileGone {
			return domainMedia.File{}, pkgError.ErrMediaFileGone
		}
		return domainMedia.File{}, pkgError.ErrMediaNotFound
	}
	msg.Normalize(sessionID, time.Now())

	dlCtx, cancel := context.WithTimeout(ctx, service.Timeout)
	defer cancel()
	media, err := sess.Engine.Download(dlCtx, msg)
	if errors.Is(err, domainEngine.ErrNoMedia) {
		return domainMedia.File{}, pkgError.ErrMediaNotFound
	}
	if err != nil {
		return domainMedia.File{}, pkgError.EngineFailure(err)
	}

	mimeType := media.MimeType
	if mimeType == "" {
		mimeType = msg.MimeType
	}
	service.Metrics.IncMediaServed("engine")

	rel, err := saveMedia(ctx, service.Media, service.Messages, sessionID, msg, media)
	if rel == "" {
		// the cache is unavailable, serve from memory
		service.Metrics.IncPersistFailures("media")
		log.WithError(err).Warnf("[MEDIA] Failed to cache %s", messageID)
		return domainMedia.File{Data: media.Data, MimeType: mimeType, FileName: media.FileName}, nil
	}
	if err != nil {
		service.Metrics.IncPersistFailures("media")
		log.WithError(err).Warnf("[MEDIA] Failed to record media path of %s", messageID)
	}

	full, err := service.Media.Resolve(rel)
	if err != nil {
		return domainMedia.File{Data: media.Data, MimeType: mimeType, FileName: media.FileName}, nil
	}
	return domainMedia.File{Path: full, MimeType: mimeType, FileName: media.FileName}, nil
}
