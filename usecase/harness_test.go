package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AzielCF/wa-relay/core/database"
	domainEngine "github.com/AzielCF/wa-relay/domains/engine"
	"github.com/AzielCF/wa-relay/infrastructure/mediastore"
	"github.com/AzielCF/wa-relay/infrastructure/storage"
	"github.com/AzielCF/wa-relay/pkg/eventbus"
	"github.com/AzielCF/wa-relay/pkg/msgworker"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	mu        sync.Mutex
	events    chan domainEngine.Event
	closeOnce sync.Once

	threads   map[string][]domainEngine.Message
	order     []string
	media     map[string]*domainEngine.Media
	sendErr   error
	sent      []string
	reactions []string
	status    string
	loggedOut bool
	closed    bool
	downloads int32

	// when set, Download signals downloading and holds until gate closes
	gate        chan struct{}
	downloading chan struct{}
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		events:  make(chan domainEngine.Event, 32),
		threads: make(map[string][]domainEngine.Message),
		media:   make(map[string]*domainEngine.Media),
	}
}

func (f *fakeEngine) addLive(msg domainEngine.Message, media *domainEngine.Media) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.threads[msg.ThreadID]; !ok {
		f.order = append(f.order, msg.ThreadID)
	}
	f.threads[msg.ThreadID] = append(f.threads[msg.ThreadID], msg)
	if media != nil {
		f.media[msg.ID] = media
	}
}

func (f *fakeEngine) emit(evt domainEngine.Event) { f.events <- evt }

func (f *fakeEngine) Start(ctx context.Context) error   { return nil }
func (f *fakeEngine) Events() <-chan domainEngine.Event { return f.events }

func (f *fakeEngine) result(to, prefix string) (domainEngine.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return domainEngine.SendResult{}, f.sendErr
	}
	f.sent = append(f.sent, to)
	return domainEngine.SendResult{
		ID:        prefix + "_" + to,
		ChatID:    to + "@s.whatsapp.net",
		Timestamp: time.Unix(1700000000, 0),
	}, nil
}

func (f *fakeEngine) SendText(ctx context.Context, to, text string, opts domainEngine.TextOptions) (domainEngine.SendResult, error) {
	return f.result(to, "text")
}

func (f *fakeEngine) SendMedia(ctx context.Context, to string, media domainEngine.OutgoingMedia) (domainEngine.SendResult, error) {
	return f.result(to, "media")
}

func (f *fakeEngine) SendLocation(ctx context.Context, to string, latitude, longitude float64, address string) (domainEngine.SendResult, error) {
	return f.result(to, "location")
}

func (f *fakeEngine) SendContact(ctx context.Context, to, contactNumber, displayName string) (domainEngine.SendResult, error) {
	return f.result(to, "contact")
}

func (f *fakeEngine) SendPoll(ctx context.Context, to, question string, options []string, multipleAnswers bool) (domainEngine.SendResult, error) {
	return f.result(to, "poll")
}

func (f *fakeEngine) React(ctx context.Context, target domainEngine.Message, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions = append(f.reactions, target.ID+":"+emoji)
	return nil
}

func (f *fakeEngine) SetStatusMessage(ctx context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = text
	return nil
}

func (f *fakeEngine) Threads(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.order...), nil
}

func (f *fakeEngine) RecentMessages(ctx context.Context, threadID string, limit int) ([]domainEngine.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.threads[threadID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]domainEngine.Message(nil), msgs...), nil
}

func (f *fakeEngine) Download(ctx context.Context, msg domainEngine.Message) (*domainEngine.Media, error) {
	atomic.AddInt32(&f.downloads, 1)
	if f.gate != nil {
		f.downloading <- struct{}{}
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.media[msg.ID]
	if !ok {
		return nil, domainEngine.ErrNoMedia
	}
	return m, nil
}

func (f *fakeEngine) Close(ctx context.Context) error {
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.closed = true
		f.mu.Unlock()
		close(f.events)
	})
	return nil
}

func (f *fakeEngine) Logout(ctx context.Context) error {
	f.mu.Lock()
	f.loggedOut = true
	f.mu.Unlock()
	return f.Close(ctx)
}

type harness struct {
	registry *Registry
	messages *storage.MessageGormRepository
	metadata *storage.MetadataGormRepository
	media    *mediastore.DiskStore
	bus      *eventbus.Bus
	sessions *serviceSession
	msgs     *serviceMessage

	mu      sync.Mutex
	engines map[string]*fakeEngine
}

func newHarness(t *testing.T, opts ...func(*SessionDeps)) *harness {
	t.Helper()
	ctx := context.Background()

	db, err := database.NewInMemory()
	require.NoError(t, err)

	h := &harness{
		registry: NewRegistry(),
		messages: storage.NewMessageGormRepository(db),
		metadata: storage.NewMetadataGormRepository(db),
		engines:  make(map[string]*fakeEngine),
	}
	require.NoError(t, h.messages.InitSchema(ctx))
	require.NoError(t, h.metadata.InitSchema(ctx))

	h.media, err = mediastore.NewDiskStore(t.TempDir())
	require.NoError(t, err)

	h.bus = eventbus.New(64, h.registry.Snapshot)
	pool := msgworker.NewPool(4, 64)
	pool.Start(ctx)

	deps := SessionDeps{
		Registry: h.registry,
		Metadata: h.metadata,
		Messages: h.messages,
		Media:    h.media,
		Bus:      h.bus,
		Pool:     pool,
		Factory: func(id string) (domainEngine.Engine, error) {
			if id == "broken" {
				return nil, errors.New("no device store")
			}
			e := newFakeEngine()
			h.mu.Lock()
			h.engines[id] = e
			h.mu.Unlock()
			return e, nil
		},
	}
	for _, opt := range opts {
		opt(&deps)
	}
	h.sessions = newSessionService(deps)
	h.msgs = newMessageService(MessageDeps{
		Registry: h.registry,
		Messages: h.messages,
		Media:    h.media,
		Bus:      h.bus,
	})

	t.Cleanup(func() {
		h.sessions.Shutdown(context.Background())
		pool.Stop()
		h.bus.Close()
		_ = database.Close(db)
	})
	return h
}

func (h *harness) engine(id string) *fakeEngine {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.engines[id]
}

// create starts a session and returns its engine.
func (h *harness) create(t *testing.T, id string) *fakeEngine {
	t.Helper()
	_, err := h.sessions.Create(context.Background(), id)
	require.NoError(t, err)
	e := h.engine(id)
	require.NotNil(t, e)
	return e
}
