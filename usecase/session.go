package usecase

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	domainEngine "github.com/AzielCF/wa-relay/domains/engine"
	domainMedia "github.com/AzielCF/wa-relay/domains/media"
	domainMessage "github.com/AzielCF/wa-relay/domains/message"
	domainSession "github.com/AzielCF/wa-relay/domains/session"
	"github.com/AzielCF/wa-relay/pkg/eventbus"
	pkgError "github.com/AzielCF/wa-relay/pkg/error"
	"github.com/AzielCF/wa-relay/pkg/metrics"
	"github.com/AzielCF/wa-relay/pkg/msgworker"
	pkgUtils "github.com/AzielCF/wa-relay/pkg/utils"
	"github.com/AzielCF/wa-relay/validations"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// SessionDeps wires the orchestrator.
type SessionDeps struct {
	Registry *Registry
	Metadata domainSession.IMetadataRepository
	Messages domainMessage.IMessageRepository
	Media    domainMedia.IMediaStore
	Factory  domainEngine.Factory
	Bus      *eventbus.Bus
	Pool     *msgworker.Pool
	Metrics  metrics.Metrics
	// MediaTimeout bounds the eager download of inbound media.
	MediaTimeout time.Duration
}

type serviceSession struct {
	SessionDeps

	ctx      context.Context
	cancel   context.CancelFunc
	createMu sync.Mutex
	// background media fetches, waited for on shutdown
	fetches sync.WaitGroup
	now     func() time.Time

	workMu sync.Mutex
	work   map[string]*inflight
}

// inflight tracks the event handling and media fetches of one live session.
// Once stopped, no new work starts and ctx is cancelled.
type inflight struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

func newInflight(parent context.Context) *inflight {
	ctx, cancel := context.WithCancel(parent)
	return &inflight{ctx: ctx, cancel: cancel}
}

// begin reports whether work may start; a true result must be paired with done.
func (w *inflight) begin() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return false
	}
	w.wg.Add(1)
	return true
}

func (w *inflight) done() { w.wg.Done() }

// stop cancels running work and waits for it to return.
func (w *inflight) stop() {
	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()
	w.cancel()
	w.wg.Wait()
}

func NewSessionService(deps SessionDeps) domainSession.ISessionUsecase {
	return newSessionService(deps)
}

func newSessionService(deps SessionDeps) *serviceSession {
	if deps.Metrics == nil {
		deps.Metrics = metrics.Noop{}
	}
	if deps.MediaTimeout <= 0 {
		deps.MediaTimeout = 2 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &serviceSession{
		SessionDeps: deps,
		ctx:         ctx,
		cancel:      cancel,
		now:         time.Now,
		work:        make(map[string]*inflight),
	}
}

func (service *serviceSession) Create(ctx context.Context, id string) (domainSession.Info, error) {
	if err := validations.ValidateSessionID(id); err != nil {
		return domainSession.Info{}, err
	}
	if id == "" {
		id = fmt.Sprintf("c_%d", service.now().UnixMilli())
	}

	service.createMu.Lock()
	defer service.createMu.Unlock()
	if service.Registry.Has(id) {
		return domainSession.Info{}, pkgError.ErrSessionExists
	}

	meta := domainSession.Metadata{ID: id, CreatedAt: service.now().UTC()}
	existing, err := service.Metadata.Get(ctx, id)
	switch {
	case err == nil:
		meta = *existing
	case errors.Is(err, pkgError.ErrSessionNotFound):
		meta.APIKey = pkgUtils.GenerateAPIKey()
		if err := service.Metadata.Save(ctx, meta); err != nil {
			return domainSession.Info{}, fmt.Errorf("persist client metadata: %w", err)
		}
	default:
		return domainSession.Info{}, fmt.Errorf("load client metadata: %w", err)
	}

	if err := service.launch(meta); err != nil {
		return domainSession.Info{}, err
	}
	service.Metrics.IncSessionsCreated()
	logrus.WithField("client_id", id).Info("[SESSION] Client created")
	return service.Get(id)
}

// launch builds the engine, registers the session and starts the handshake
// in the background.
func (service *serviceSession) launch(meta domainSession.Metadata) error {
	engine, err := service.Factory(meta.ID)
	if err != nil {
		return pkgError.EngineFailure(err)
	}
	if err := service.Registry.Add(meta.ID, meta.APIKey, meta.CreatedAt, engine); err != nil {
		_ = engine.Close(context.Background())
		return err
	}
	work := newInflight(service.ctx)
	service.workMu.Lock()
	service.work[meta.ID] = work
	service.workMu.Unlock()

	go service.pump(meta.ID, engine, work)
	go func() {
		if err := engine.Start(service.ctx); err != nil {
			logrus.WithError(err).WithField("client_id", meta.ID).Error("[SESSION] Engine failed to start")
			service.applyStatus(meta.ID, engine, domainEngine.Event{Kind: domainEngine.KindAuthFailure, Reason: err.Error()})
		}
	}()
	return nil
}

// pump forwards engine events to the worker pool. Every event of a session
// lands on the same worker, so they are handled in emission order.
func (service *serviceSession) pump(id string, engine domainEngine.Engine, work *inflight) {
	for evt := range engine.Events() {
		evt := evt
		err := service.Pool.Submit(service.ctx, msgworker.Job{
			SessionID: id,
			Kind:      string(evt.Kind),
			Handler: func(ctx context.Context) error {
				if !work.begin() {
					return nil
				}
				defer work.done()
				service.handleEvent(ctx, id, engine, work, evt)
				return nil
			},
		})
		if err != nil {
			logrus.WithError(err).WithField("client_id", id).Debugf("[EVENTS] Dropped %s event", evt.Kind)
		}
	}
	logrus.WithField("client_id", id).Debug("[EVENTS] Event stream closed")
}

func (service *serviceSession) publish(kind domainEngine.Kind, id string, payload any) {
	service.Bus.Publish(string(kind), id, payload)
	service.Metrics.IncEventsPublished(string(kind))
}

func (service *serviceSession) handleEvent(ctx context.Context, id string, engine domainEngine.Engine, work *inflight, evt domainEngine.Event) {
	if !service.Registry.Owns(id, engine) {
		return
	}
	switch evt.Kind {
	case domainEngine.KindQR, domainEngine.KindReady, domainEngine.KindAuthenticated,
		domainEngine.KindAuthFailure, domainEngine.KindDisconnected:
		service.applyStatus(id, engine, evt)

	case domainEngine.KindMessage, domainEngine.KindMessageCreate, domainEngine.KindMessageEdit:
		if evt.Message == nil {
			return
		}
		service.handleMessage(ctx, id, engine, work, evt.Kind, *evt.Message)

	default:
		service.publish(evt.Kind, id, evt.Data)
	}
}

func (service *serviceSession) applyStatus(id string, engine domainEngine.Engine, evt domainEngine.Event) {
	if !service.Registry.Owns(id, engine) {
		return
	}
	log := logrus.WithField("client_id", id)
	var payload map[string]any

	switch evt.Kind {
	case domainEngine.KindQR:
		service.Registry.SetQR(id, evt.QRImage)
		payload = map[string]any{"qr": evt.QRCode}
		log.Info("[SESSION] QR code received")
	case domainEngine.KindAuthenticated:
		service.Registry.SetStatus(id, domainSession.StatusAuthenticated)
		payload = map[string]any{}
		log.Info("[SESSION] Authenticated")
	case domainEngine.KindReady:
		service.Registry.SetStatus(id, domainSession.StatusReady)
		payload = map[string]any{}
		log.Info("[SESSION] Ready")
	case domainEngine.KindAuthFailure:
		service.Registry.SetStatus(id, domainSession.StatusAuthFailure)
		payload = map[string]any{"message": evt.Reason}
		log.Warnf("[SESSION] Authentication failure: %s", evt.Reason)
	case domainEngine.KindDisconnected:
		service.Registry.SetStatus(id, domainSession.StatusDisconnected)
		payload = map[string]any{"reason": evt.Reason}
		log.Warnf("[SESSION] Disconnected: %s", evt.Reason)
	}
	service.publish(evt.Kind, id, payload)
}

// toRecord converts an engine message into a history row.
func toRecord(sessionID string, msg domainEngine.Message) domainMessage.Message {
	return domainMessage.Message{
		ID:         msg.ID,
		SessionID:  sessionID,
		ThreadID:   msg.ThreadID,
		Sender:     msg.Sender,
		Body:       msg.Body,
		Timestamp:  msg.Timestamp,
		HasMedia:   msg.HasMedia,
		MediaType:  msg.MimeType,
		IsLocation: msg.Type == domainEngine.TypeLocation,
		IsContact:  msg.Type == domainEngine.TypeContact,
		IsSticker:  msg.Type == domainEngine.TypeSticker,
	}
}

func messagePayload(rec domainMessage.Message, to string) map[string]any {
	var mediaType any
	if rec.MediaType != "" {
		mediaType = rec.MediaCategory()
	}
	return map[string]any{
		"id":         rec.ID,
		"from":       rec.Sender,
		"to":         to,
		"body":       rec.Body,
		"hasMedia":   rec.HasMedia,
		"mediaType":  mediaType,
		"chatId":     rec.ThreadID,
		"timestamp":  rec.Timestamp,
		"isLocation": rec.IsLocation,
		"isContact":  rec.IsContact,
		"isSticker":  rec.IsSticker,
	}
}

func (service *serviceSession) handleMessage(ctx context.Context, id string, engine domainEngine.Engine, work *inflight, kind domainEngine.Kind, msg domainEngine.Message) {
	msg.Normalize(id, service.now())
	rec := toRecord(id, msg)

	direction := "inbound"
	if msg.FromMe {
		direction = "outbound"
	}
	if err := service.Messages.Upsert(ctx, rec); err != nil {
		service.Metrics.IncPersistFailures("upsert")
		logrus.WithError(err).WithField("client_id", id).Errorf("[STORAGE] Failed to save message %s", rec.ID)
	} else {
		service.Registry.IncSaved(id)
		service.Metrics.IncMessagesPersisted(direction)
	}

	if msg.HasMedia && kind != domainEngine.KindMessageEdit {
		service.fetchMedia(id, engine, work, msg)
	}
	service.publish(kind, id, messagePayload(rec, msg.To))
}

// fetchMedia downloads inbound media in the background and records the file
// on the existing message row. Failures only leave the row without a path.
func (service *serviceSession) fetchMedia(id string, engine domainEngine.Engine, work *inflight, msg domainEngine.Message) {
	if !work.begin() {
		return
	}
	service.fetches.Add(1)
	go func() {
		defer service.fetches.Done()
		defer work.done()
		ctx, cancel := context.WithTimeout(work.ctx, service.MediaTimeout)
		defer cancel()

		log := logrus.WithField("client_id", id)
		media, err := engine.Download(ctx, msg)
		if err != nil {
			log.WithError(err).Warnf("[MEDIA] Eager download failed for %s", msg.ID)
			return
		}
		if ctx.Err() != nil || !service.Registry.Owns(id, engine) {
			return
		}
		if err := service.attachMedia(ctx, id, msg, media); err != nil {
			service.Metrics.IncPersistFailures("media")
			log.WithError(err).Warnf("[MEDIA] Failed to store media for %s", msg.ID)
		}
	}()
}

// attachMedia writes media to the cache and records it on the message row.
// The row is never created here; without one the file is removed again.
func (service *serviceSession) attachMedia(ctx context.Context, id string, msg domainEngine.Message, media *domainEngine.Media) error {
	mimeType, fileName := mediaMeta(msg, media)
	rel, err := service.Media.Save(id, msg.ID, mimeType, fileName, media.Data)
	if err != nil {
		return err
	}
	if err := service.Messages.UpdateMedia(ctx, id, msg.ID, rel, mimeType); err != nil {
		if rmErr := service.Media.Remove(rel); rmErr != nil {
			logrus.WithError(rmErr).WithField("client_id", id).Warnf("[MEDIA] Failed to remove %s", rel)
		}
		return fmt.Errorf("record media path: %w", err)
	}
	return nil
}

func mediaMeta(msg domainEngine.Message, media *domainEngine.Media) (mimeType, fileName string) {
	mimeType, fileName = media.MimeType, media.FileName
	if mimeType == "" {
		mimeType = msg.MimeType
	}
	if fileName == "" {
		fileName = msg.FileName
	}
	return mimeType, fileName
}

// saveMedia writes media to the cache and records it on the message row,
// creating the row when only the engine knew the message.
func saveMedia(ctx context.Context, store domainMedia.IMediaStore, repo domainMessage.IMessageRepository, sessionID string, msg domainEngine.Message, media *domainEngine.Media) (string, error) {
	mimeType, fileName := mediaMeta(msg, media)
	rel, err := store.Save(sessionID, msg.ID, mimeType, fileName, media.Data)
	if err != nil {
		return "", err
	}

	err = repo.UpdateMedia(ctx, sessionID, msg.ID, rel, mimeType)
	if errors.Is(err, pkgError.ErrMessageNotFound) {
		rec := toRecord(sessionID, msg)
		rec.MediaPath, rec.MediaType, rec.HasMedia = rel, mimeType, true
		err = repo.Upsert(ctx, rec)
	}
	if err != nil {
		return rel, fmt.Errorf("record media path: %w", err)
	}
	return rel, nil
}

func (service *serviceSession) Delete(ctx context.Context, id string) error {
	sess, ok := service.Registry.Remove(id)
	if !ok {
		return pkgError.ErrSessionNotFound
	}
	log := logrus.WithField("client_id", id)

	service.workMu.Lock()
	work := service.work[id]
	delete(service.work, id)
	service.workMu.Unlock()
	if work != nil {
		work.stop()
	}

	if err := sess.Engine.Logout(ctx); err != nil {
		log.WithError(err).Warn("[SESSION] Engine logout failed")
	}

	paths, err := service.Messages.MediaPaths(ctx, id)
	if err != nil {
		log.WithError(err).Warn("[MEDIA] Failed to list media files")
	}
	for _, p := range paths {
		if err := service.Media.Remove(p); err != nil {
			log.WithError(err).Warnf("[MEDIA] Failed to remove %s", p)
		}
	}
	if err := service.Media.RemoveSession(id); err != nil {
		log.WithError(err).Warn("[MEDIA] Failed to remove media directory")
	}

	removed, err := service.Messages.DeleteAllForSession(ctx, id)
	if err != nil {
		service.Metrics.IncPersistFailures("delete")
		log.WithError(err).Error("[STORAGE] Failed to delete messages")
	}
	if err := service.Metadata.Delete(ctx, id); err != nil {
		service.Metrics.IncPersistFailures("delete")
		log.WithError(err).Error("[STORAGE] Failed to delete client metadata")
	}

	service.Metrics.IncSessionsDeleted()
	log.Infof("[SESSION] Client deleted (%d messages removed)", removed)
	return nil
}

func (service *serviceSession) RotateKey(ctx context.Context, id string, credential domainSession.Credential) (string, error) {
	sess, ok := service.Registry.Get(id)
	if !ok {
		return "", pkgError.ErrSessionNotFound
	}
	authorized := credential.UIAuthenticated ||
		(credential.CurrentAPIKey != "" && keysEqual(credential.CurrentAPIKey, sess.APIKey))
	if !authorized {
		return "", pkgError.ErrUnauthorized
	}

	newKey := pkgUtils.GenerateAPIKey()
	meta := domainSession.Metadata{ID: id, APIKey: newKey, CreatedAt: sess.CreatedAt}
	if err := service.Metadata.Save(ctx, meta); err != nil {
		return "", fmt.Errorf("persist rotated key: %w", err)
	}
	service.Registry.SetKey(id, newKey)
	logrus.WithField("client_id", id).Info("[SESSION] API key rotated")
	return newKey, nil
}

func memoryUsage() string {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return humanize.IBytes(m.Sys)
}

func (service *serviceSession) info(s sessionView, mem string) domainSession.Info {
	return domainSession.Info{
		ID:            s.ID,
		Status:        s.Status,
		APIKey:        s.APIKey,
		Uptime:        service.now().Sub(s.StartedAt).Milliseconds(),
		MessagesSaved: s.MessagesSaved,
		MemoryUsage:   mem,
	}
}

func (service *serviceSession) List() []domainSession.Info {
	mem := memoryUsage()
	list := service.Registry.List()
	out := make([]domainSession.Info, 0, len(list))
	for _, s := range list {
		out = append(out, service.info(s, mem))
	}
	return out
}

func (service *serviceSession) Get(id string) (domainSession.Info, error) {
	s, ok := service.Registry.Get(id)
	if !ok {
		return domainSession.Info{}, pkgError.ErrSessionNotFound
	}
	return service.info(s, memoryUsage()), nil
}

func (service *serviceSession) Summaries() []domainSession.Summary {
	return service.Registry.Summaries()
}

func (service *serviceSession) Authorize(apiKey, clientID string) (string, error) {
	if clientID == "" {
		if id, ok := service.Registry.FindByKey(apiKey); ok {
			return id, nil
		}
		clientID = domainSession.DefaultID
	}
	sess, ok := service.Registry.Get(clientID)
	if !ok {
		return "", pkgError.ErrSessionNotFound
	}
	if sess.APIKey != "" && !keysEqual(apiKey, sess.APIKey) {
		return "", pkgError.ErrInvalidAPIKey
	}
	return clientID, nil
}

func (service *serviceSession) QRImage(id string) ([]byte, error) {
	png, ok := service.Registry.QR(id)
	if !ok {
		return nil, pkgError.ErrSessionNotFound
	}
	if len(png) == 0 {
		return nil, pkgError.ErrQRNotAvailable
	}
	return png, nil
}

func (service *serviceSession) SetStatusMessage(ctx context.Context, id, text string) error {
	sess, ok := service.Registry.Get(id)
	if !ok {
		return pkgError.ErrSessionNotFound
	}
	if err := sess.Engine.SetStatusMessage(ctx, text); err != nil {
		return pkgError.EngineFailure(err)
	}
	return nil
}

// Restore brings back every persisted session, or creates the default one
// when there are none. A session that fails to start is logged and skipped.
func (service *serviceSession) Restore(ctx context.Context) error {
	metas, err := service.Metadata.List(ctx)
	if err != nil {
		return fmt.Errorf("load client metadata: %w", err)
	}
	if len(metas) == 0 {
		logrus.Info("[SESSION] No clients found, creating default client")
		_, err := service.Create(ctx, domainSession.DefaultID)
		return err
	}

	var g errgroup.Group
	for _, meta := range metas {
		meta := meta
		g.Go(func() error {
			if err := service.launch(meta); err != nil {
				logrus.WithError(err).WithField("client_id", meta.ID).Error("[SESSION] Failed to restore client")
				return nil
			}
			logrus.WithField("client_id", meta.ID).Info("[SESSION] Client restored")
			return nil
		})
	}
	_ = g.Wait()
	return nil
}

// Shutdown releases every engine in parallel and waits for pending media
// downloads. The device link is kept so the next start resumes.
func (service *serviceSession) Shutdown(ctx context.Context) {
	sessions := service.Registry.Drain()

	var g errgroup.Group
	for _, s := range sessions {
		s := s
		g.Go(func() error {
			if err := s.Engine.Close(ctx); err != nil {
				logrus.WithError(err).WithField("client_id", s.ID).Warn("[SESSION] Engine close failed")
			}
			return nil
		})
	}
	_ = g.Wait()

	service.cancel()
	service.fetches.Wait()
	logrus.Infof("[SESSION] Released %d clients", len(sessions))
}
