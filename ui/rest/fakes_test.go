package rest

import (
	"context"
	"sync"

	domainMedia "github.com/AzielCF/wa-relay/domains/media"
	domainMessage "github.com/AzielCF/wa-relay/domains/message"
	domainSession "github.com/AzielCF/wa-relay/domains/session"
	pkgError "github.com/AzielCF/wa-relay/pkg/error"
)

type fakeSessions struct {
	mu         sync.Mutex
	keys       map[string]string
	qr         map[string][]byte
	credential domainSession.Credential
	about      string
	deleted    []string
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{keys: map[string]string{}, qr: map[string][]byte{}}
}

func (f *fakeSessions) Create(ctx context.Context, id string) (domainSession.Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.keys[id]; ok {
		return domainSession.Info{}, pkgError.ErrSessionExists
	}
	f.keys[id] = "key-" + id
	return domainSession.Info{ID: id, APIKey: "key-" + id, Status: domainSession.StatusInitializing}, nil
}

func (f *fakeSessions) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.keys[id]; !ok {
		return pkgError.ErrSessionNotFound
	}
	delete(f.keys, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeSessions) RotateKey(ctx context.Context, id string, credential domainSession.Credential) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.credential = credential
	key, ok := f.keys[id]
	if !ok {
		return "", pkgError.ErrSessionNotFound
	}
	if !credential.UIAuthenticated && credential.CurrentAPIKey != key {
		return "", pkgError.ErrUnauthorized
	}
	f.keys[id] = "rotated"
	return "rotated", nil
}

func (f *fakeSessions) List() []domainSession.Info {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domainSession.Info
	for id, key := range f.keys {
		out = append(out, domainSession.Info{ID: id, APIKey: key, Status: domainSession.StatusReady})
	}
	return out
}

func (f *fakeSessions) Get(id string) (domainSession.Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.keys[id]; !ok {
		return domainSession.Info{}, pkgError.ErrSessionNotFound
	}
	return domainSession.Info{ID: id, Status: domainSession.StatusReady, Uptime: 5, MessagesSaved: 2, MemoryUsage: "1.0 MiB"}, nil
}

func (f *fakeSessions) Summaries() []domainSession.Summary { return nil }

func (f *fakeSessions) Authorize(apiKey, clientID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if clientID == "" {
		for id, key := range f.keys {
			if apiKey != "" && key == apiKey {
				return id, nil
			}
		}
		clientID = domainSession.DefaultID
	}
	key, ok := f.keys[clientID]
	if !ok {
		return "", pkgError.ErrSessionNotFound
	}
	if key != "" && key != apiKey {
		return "", pkgError.ErrInvalidAPIKey
	}
	return clientID, nil
}

func (f *fakeSessions) QRImage(id string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.keys[id]; !ok {
		return nil, pkgError.ErrSessionNotFound
	}
	png, ok := f.qr[id]
	if !ok {
		return nil, pkgError.ErrQRNotAvailable
	}
	return png, nil
}

func (f *fakeSessions) SetStatusMessage(ctx context.Context, id, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.about = text
	return nil
}

func (f *fakeSessions) Restore(ctx context.Context) error { return nil }
func (f *fakeSessions) Shutdown(ctx context.Context)      {}

type fakeMessages struct {
	mu       sync.Mutex
	clientID string
	text     domainMessage.SendTextRequest
	err      error
}

func (f *fakeMessages) record(clientID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clientID = clientID
	return f.err
}

func (f *fakeMessages) SendText(ctx context.Context, sessionID string, request domainMessage.SendTextRequest) (domainMessage.SendResponse, error) {
	f.mu.Lock()
	f.text = request
	f.mu.Unlock()
	if err := f.record(sessionID); err != nil {
		return domainMessage.SendResponse{}, err
	}
	return domainMessage.SendResponse{Success: true, ID: "wamid-1"}, nil
}

func (f *fakeMessages) SendMedia(ctx context.Context, sessionID string, request domainMessage.SendMediaRequest) (domainMessage.SendResponse, error) {
	return domainMessage.SendResponse{Success: true, ID: "media-1"}, f.record(sessionID)
}

func (f *fakeMessages) SendSticker(ctx context.Context, sessionID string, request domainMessage.SendStickerRequest) (domainMessage.SendResponse, error) {
	return domainMessage.SendResponse{Success: true, ID: "sticker-1"}, f.record(sessionID)
}

func (f *fakeMessages) SendLocation(ctx context.Context, sessionID string, request domainMessage.SendLocationRequest) (domainMessage.SendResponse, error) {
	return domainMessage.SendResponse{Success: true, ID: "location-1"}, f.record(sessionID)
}

func (f *fakeMessages) SendContact(ctx context.Context, sessionID string, request domainMessage.SendContactRequest) (domainMessage.SendResponse, error) {
	return domainMessage.SendResponse{Success: true, ID: "contact-1"}, f.record(sessionID)
}

func (f *fakeMessages) SendPoll(ctx context.Context, sessionID string, request domainMessage.SendPollRequest) (domainMessage.SendResponse, error) {
	return domainMessage.SendResponse{Success: true, ID: "poll-1"}, f.record(sessionID)
}

func (f *fakeMessages) React(ctx context.Context, sessionID, messageID string, request domainMessage.ReactRequest) error {
	return f.record(sessionID)
}

func (f *fakeMessages) ListMessages(ctx context.Context, sessionID, threadID string, limit int) ([]domainMessage.View, error) {
	if err := f.record(sessionID); err != nil {
		return nil, err
	}
	return []domainMessage.View{{ID: "m1", From: threadID, Body: "hi", Timestamp: int64(limit)}}, nil
}

func (f *fakeMessages) Search(ctx context.Context, sessionID string, request domainMessage.SearchRequest) ([]domainMessage.SearchResult, error) {
	return nil, f.record(sessionID)
}

func (f *fakeMessages) Chats(ctx context.Context, sessionID string) ([]string, error) {
	return []string{"a@s.whatsapp.net"}, f.record(sessionID)
}

type fakeMedia struct {
	file domainMedia.File
	err  error
}

func (f *fakeMedia) Exists(ctx context.Context, sessionID, messageID string) (domainMedia.ExistsResponse, error) {
	if f.file.Path == "" {
		return domainMedia.ExistsResponse{}, f.err
	}
	p := "c1/" + messageID
	return domainMedia.ExistsResponse{Exists: true, MediaPath: &p}, f.err
}

func (f *fakeMedia) Download(ctx context.Context, sessionID, messageID string) (domainMedia.File, error) {
	return f.file, f.err
}
