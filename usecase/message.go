package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	domainEngine "github.com/AzielCF/wa-relay/domains/engine"
	domainMedia "github.com/AzielCF/wa-relay/domains/media"
	domainMessage "github.com/AzielCF/wa-relay/domains/message"
	"github.com/AzielCF/wa-relay/pkg/eventbus"
	pkgError "github.com/AzielCF/wa-relay/pkg/error"
	"github.com/AzielCF/wa-relay/pkg/metrics"
	"github.com/AzielCF/wa-relay/validations"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
	outgoingSender      = "outgoing"
)

type MessageDeps struct {
	Registry *Registry
	Messages domainMessage.IMessageRepository
	Media    domainMedia.IMediaStore
	Bus      *eventbus.Bus
	Metrics  metrics.Metrics
	Scan     ScanLimits
}

type serviceMessage struct {
	MessageDeps
	now func() time.Time
}

func NewMessageService(deps MessageDeps) domainMessage.IMessageUsecase {
	return newMessageService(deps)
}

func newMessageService(deps MessageDeps) *serviceMessage {
	if deps.Metrics == nil {
		deps.Metrics = metrics.Noop{}
	}
	return &serviceMessage{MessageDeps: deps, now: time.Now}
}

func (service *serviceMessage) engineFor(sessionID string) (domainEngine.Engine, error) {
	sess, ok := service.Registry.Get(sessionID)
	if !ok {
		return nil, pkgError.ErrSessionNotFound
	}
	return sess.Engine, nil
}

func (service *serviceMessage) save(ctx context.Context, rec domainMessage.Message) {
	if err := service.Messages.Upsert(ctx, rec); err != nil {
		service.Metrics.IncPersistFailures("upsert")
		logrus.WithError(err).WithField("client_id", rec.SessionID).Errorf("[STORAGE] Failed to save message %s", rec.ID)
		return
	}
	service.Registry.IncSaved(rec.SessionID)
	service.Metrics.IncMessagesPersisted("outbound")
}

// complete records the outcome of a send. A failed send is kept in history
// under a synthetic id and the engine error is returned.
func (service *serviceMessage) complete(ctx context.Context, sessionID, to string, rec domainMessage.Message, res domainEngine.SendResult, sendErr error) (domainMessage.SendResponse, error) {
	rec.SessionID = sessionID
	rec.Sender = outgoingSender

	if sendErr != nil {
		rec.ID = fmt.Sprintf("out_%d_%s", service.now().UnixMilli(), strings.SplitN(uuid.NewString(), "-", 2)[0])
		rec.ThreadID = to
		rec.Timestamp = service.now().Unix()
		rec.Body = "[FAILED SEND] " + rec.Body
		rec.MediaPath = ""
		service.save(ctx, rec)
		logrus.WithError(sendErr).WithField("client_id", sessionID).Warnf("[SESSION] Send to %s failed", to)

		if errors.Is(sendErr, domainEngine.ErrInvalidAddress) {
			return domainMessage.SendResponse{}, pkgError.ValidationError(sendErr.Error())
		}
		return domainMessage.SendResponse{}, pkgError.EngineFailure(sendErr)
	}

	rec.ID = res.ID
	rec.ThreadID = res.ChatID
	if rec.ThreadID == "" {
		rec.ThreadID = to
	}
	rec.Timestamp = res.Timestamp.Unix()
	if res.Timestamp.IsZero() {
		rec.Timestamp = service.now().Unix()
	}
	service.save(ctx, rec)

	service.Bus.Publish(string(domainEngine.KindMessageCreate), sessionID, messagePayload(rec, rec.ThreadID))
	service.Metrics.IncEventsPublished(string(domainEngine.KindMessageCreate))
	return domainMessage.SendResponse{Success: true, ID: rec.ID}, nil
}

func (service *serviceMessage) SendText(ctx context.Context, sessionID string, request domainMessage.SendTextRequest) (domainMessage.SendResponse, error) {
	if err := validations.ValidateSendText(ctx, request); err != nil {
		return domainMessage.SendResponse{}, err
	}
	engine, err := service.engineFor(sessionID)
	if err != nil {
		return domainMessage.SendResponse{}, err
	}

	res, sendErr := engine.SendText(ctx, request.To, request.Message, domainEngine.TextOptions{
		Mentions:        request.Mentions,
		QuotedMessageID: request.QuotedMessageID,
	})
	return service.complete(ctx, sessionID, request.To, domainMessage.Message{Body: request.Message}, res, sendErr)
}

func decodeBase64(data string) ([]byte, error) {
	out, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, pkgError.ValidationError("data: must be base64 encoded")
	}
	return out, nil
}

// sendMedia uploads media and caches the sent file under the returned id.
func (service *serviceMessage) sendMedia(ctx context.Context, sessionID, to string, media domainEngine.OutgoingMedia, rec domainMessage.Message) (domainMessage.SendResponse, error) {
	engine, err := service.engineFor(sessionID)
	if err != nil {
		return domainMessage.SendResponse{}, err
	}
	if media.MimeType == "" {
		media.MimeType = mimetype.Detect(media.Data).String()
	}
	rec.HasMedia = true
	rec.MediaType = media.MimeType

	res, sendErr := engine.SendMedia(ctx, to, media)
	if sendErr == nil {
		rel, err := service.Media.Save(sessionID, res.ID, media.MimeType, media.FileName, media.Data)
		if err != nil {
			logrus.WithError(err).WithField("client_id", sessionID).Warnf("[MEDIA] Failed to cache sent media %s", res.ID)
		}
		rec.MediaPath = rel
	}
	return service.complete(ctx, sessionID, to, rec, res, sendErr)
}

func (service *serviceMessage) SendMedia(ctx context.Context, sessionID string, request domainMessage.SendMediaRequest) (domainMessage.SendResponse, error) {
	if err := validations.ValidateSendMedia(ctx, request); err != nil {
		return domainMessage.SendResponse{}, err
	}
	data, err := decodeBase64(request.Data)
	if err != nil {
		return domainMessage.SendResponse{}, err
	}

	body := request.Filename
	if body == "" {
		body = "Media"
	}
	return service.sendMedia(ctx, sessionID, request.To, domainEngine.OutgoingMedia{
		Data:     data,
		MimeType: request.Mimetype,
		FileName: request.Filename,
		Caption:  request.Caption,
	}, domainMessage.Message{Body: body})
}

func (service *serviceMessage) SendSticker(ctx context.Context, sessionID string, request domainMessage.SendStickerRequest) (domainMessage.SendResponse, error) {
	if err := validations.ValidateSendSticker(ctx, request); err != nil {
		return domainMessage.SendResponse{}, err
	}
	data, err := decodeBase64(request.Data)
	if err != nil {
		return domainMessage.SendResponse{}, err
	}
	return service.sendMedia(ctx, sessionID, request.To, domainEngine.OutgoingMedia{
		Data:     data,
		MimeType: "image/webp",
		Sticker:  true,
	}, domainMessage.Message{Body: "Sticker", IsSticker: true})
}

func (service *serviceMessage) SendLocation(ctx context.Context, sessionID string, request domainMessage.SendLocationRequest) (domainMessage.SendResponse, error) {
	if err := validations.ValidateSendLocation(ctx, request); err != nil {
		return domainMessage.SendResponse{}, err
	}
	engine, err := service.engineFor(sessionID)
	if err != nil {
		return domainMessage.SendResponse{}, err
	}

	lat, lng := *request.Latitude, *request.Longitude
	body := request.Address
	if body == "" {
		body = fmt.Sprintf("Location: %v,%v", lat, lng)
	}
	res, sendErr := engine.SendLocation(ctx, request.To, lat, lng, request.Address)
	return service.complete(ctx, sessionID, request.To, domainMessage.Message{Body: body, IsLocation: true}, res, sendErr)
}

func (service *serviceMessage) SendContact(ctx context.Context, sessionID string, request domainMessage.SendContactRequest) (domainMessage.SendResponse, error) {
	if err := validations.ValidateSendContact(ctx, request); err != nil {
		return domainMessage.SendResponse{}, err
	}
	engine, err := service.engineFor(sessionID)
	if err != nil {
		return domainMessage.SendResponse{}, err
	}

	body := request.DisplayName
	if body == "" {
		body = "Contact: " + request.ContactNumber
	}
	res, sendErr := engine.SendContact(ctx, request.To, request.ContactNumber, request.DisplayName)
	return service.complete(ctx, sessionID, request.To, domainMessage.Message{Body: body, IsContact: true}, res, sendErr)
}

func (service *serviceMessage) SendPoll(ctx context.Context, sessionID string, request domainMessage.SendPollRequest) (domainMessage.SendResponse, error) {
	if err := validations.ValidateSendPoll(ctx, request); err != nil {
		return domainMessage.SendResponse{}, err
	}
	engine, err := service.engineFor(sessionID)
	if err != nil {
		return domainMessage.SendResponse{}, err
	}

	body := fmt.Sprintf("Poll: %s (%d options)", request.Question, len(request.Options))
	res, sendErr := engine.SendPoll(ctx, request.To, request.Question, request.Options, request.AllowMultipleAnswers)
	return service.complete(ctx, sessionID, request.To, domainMessage.Message{Body: body}, res, sendErr)
}

func (service *serviceMessage) React(ctx context.Context, sessionID, messageID string, request domainMessage.ReactRequest) error {
	if err := validations.ValidateReact(ctx, request); err != nil {
		return err
	}
	engine, err := service.engineFor(sessionID)
	if err != nil {
		return err
	}

	hint := ""
	if rec, err := service.Messages.GetByID(ctx, sessionID, messageID); err == nil {
		hint = rec.ThreadID
	}
	target, ok := findLive(ctx, engine, service.Scan, messageID, hint)
	if !ok {
		return pkgError.ErrMessageNotFound
	}
	if err := engine.React(ctx, target, request.Emoji); err != nil {
		return pkgError.EngineFailure(err)
	}
	return nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultHistoryLimit
	case limit > maxHistoryLimit:
		return maxHistoryLimit
	}
	return limit
}

// ListMessages merges durable rows with messages only the engine holds.
// Durable rows win on id collisions; the result is ascending by timestamp.
func (service *serviceMessage) ListMessages(ctx context.Context, sessionID, threadID string, limit int) ([]domainMessage.View, error) {
	engine, err := service.engineFor(sessionID)
	if err != nil {
		return nil, err
	}
	limit = clampLimit(limit)

	stored, err := service.Messages.ListByThread(ctx, sessionID, threadID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	merged := make(map[string]domainMessage.Message, len(stored))
	for _, m := range stored {
		merged[m.ID] = m
	}

	live, err := engine.RecentMessages(ctx, threadID, limit)
	if err != nil {
		logrus.WithError(err).WithField("client_id", sessionID).Warn("[SESSION] Failed to fetch live messages")
	}
	for _, m := range live {
		m.Normalize(sessionID, service.now())
		if _, ok := merged[m.ID]; ok {
			continue
		}
		rec := toRecord(sessionID, m)
		rec.MediaPath = ""
		merged[m.ID] = rec
	}

	out := make([]domainMessage.Message, 0, len(merged))
	for _, m := range merged {
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp == out[j].Timestamp {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp < out[j].Timestamp
	})
	if len(out) > limit {
		out = out[len(out)-limit:]
	}

	views := make([]domainMessage.View, 0, len(out))
	for _, m := range out {
		views = append(views, m.View())
	}
	return views, nil
}

func (service *serviceMessage) Search(ctx context.Context, sessionID string, request domainMessage.SearchRequest) ([]domainMessage.SearchResult, error) {
	if err := validations.ValidateSearch(ctx, request); err != nil {
		return nil, err
	}
	if _, err := service.engineFor(sessionID); err != nil {
		return nil, err
	}

	rows, err := service.Messages.Search(ctx, sessionID, request.Query, request.ChatID, clampLimit(request.Limit))
	if err != nil {
		return nil, fmt.Errorf("search messages: %w", err)
	}
	out := make([]domainMessage.SearchResult, 0, len(rows))
	for _, m := range rows {
		out = append(out, domainMessage.SearchResult{
			ID:        m.ID,
			From:      m.Sender,
			To:        m.ThreadID,
			Body:      m.Body,
			Timestamp: m.Timestamp,
		})
	}
	return out, nil
}

// Chats lists the engine's chats, most recent first, followed by chats only
// the durable store knows.
func (service *serviceMessage) Chats(ctx context.Context, sessionID string) ([]string, error) {
	engine, err := service.engineFor(sessionID)
	if err != nil {
		return nil, err
	}

	live, err := engine.Threads(ctx)
	if err != nil {
		logrus.WithError(err).WithField("client_id", sessionID).Warn("[SESSION] Failed to list live chats")
	}
	stored, err := service.Messages.Threads(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}

	seen := make(map[string]bool, len(live)+len(stored))
	out := make([]string, 0, len(live)+len(stored))
	for _, list := range [][]string{live, stored} {
		for _, id := range list {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out, nil
}
