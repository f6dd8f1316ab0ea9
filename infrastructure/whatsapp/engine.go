package whatsapp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	domainEngine "github.com/AzielCF/wa-relay/domains/engine"
	"github.com/sirupsen/logrus"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waCompanionReg"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	_ "github.com/mattn/go-sqlite3"
)

// Options configures every engine built by a factory.
type Options struct {
	StoragesPath string
	LogLevel     string
	OS           string
	EventBuffer  int
	// HistoryPerThread bounds the recent messages kept per chat.
	HistoryPerThread int
}

var devicePropsOnce sync.Once

// NewFactory returns a factory that builds one whatsmeow client per session,
// each with its own device store at <StoragesPath>/whatsapp-<id>.db.
func NewFactory(opts Options) domainEngine.Factory {
	if opts.StoragesPath == "" {
		opts.StoragesPath = "storages"
	}
	if opts.LogLevel == "" {
		opts.LogLevel = "ERROR"
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 256
	}
	devicePropsOnce.Do(func() {
		osName := opts.OS
		if osName == "" {
			osName = "Linux"
		}
		chrome := waCompanionReg.DeviceProps_CHROME
		store.DeviceProps.PlatformType = &chrome
		store.DeviceProps.Os = proto.String(osName)
		store.DeviceProps.RequireFullSync = proto.Bool(false)
	})

	return func(sessionID string) (domainEngine.Engine, error) {
		if sessionID == "" {
			return nil, fmt.Errorf("session id is required")
		}
		return newEngine(sessionID, opts), nil
	}
}

// Engine drives one WhatsApp account through whatsmeow.
type Engine struct {
	sessionID string
	opts      Options

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	client    *whatsmeow.Client
	container *sqlstore.Container
	handlerID uint32

	events   chan domainEngine.Event
	sendMu   sync.RWMutex
	closed   bool
	done     chan struct{}
	doneOnce sync.Once

	history *history
}

func newEngine(sessionID string, opts Options) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		sessionID: sessionID,
		opts:      opts,
		ctx:       ctx,
		cancel:    cancel,
		events:    make(chan domainEngine.Event, opts.EventBuffer),
		done:      make(chan struct{}),
		history:   newHistory(opts.HistoryPerThread),
	}
}

func (e *Engine) Events() <-chan domainEngine.Event {
	return e.events
}

func (e *Engine) dbPath() string {
	return filepath.Join(e.opts.StoragesPath, fmt.Sprintf("whatsapp-%s.db", e.sessionID))
}

func (e *Engine) logTag() string {
	if len(e.sessionID) > 8 {
		return e.sessionID[:8]
	}
	return e.sessionID
}

// Start opens the device store and connects. A device without credentials
// goes through the QR pairing flow, reported as KindQR events.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.client != nil {
		if !e.client.IsConnected() {
			return e.client.Connect()
		}
		return nil
	}

	if err := os.MkdirAll(e.opts.StoragesPath, 0755); err != nil {
		return fmt.Errorf("failed to create storage dir: %w", err)
	}

	dbLog := waLog.Stdout("DB-"+e.logTag(), e.opts.LogLevel, true)
	container, err := sqlstore.New(ctx, "sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on", e.dbPath()), dbLog)
	if err != nil {
		return fmt.Errorf("failed to init device store: %w", err)
	}

	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		_ = container.Close()
		return fmt.Errorf("failed to get device: %w", err)
	}
	if device == nil {
		device = container.NewDevice()
	}

	client := whatsmeow.NewClient(device, waLog.Stdout("Client-"+e.logTag(), e.opts.LogLevel, true))
	client.EnableAutoReconnect = true
	client.AutoTrustIdentity = true

	e.container = container
	e.client = client
	e.handlerID = client.AddEventHandler(e.handleEvent)

	if client.Store.ID == nil {
		qrChan, err := client.GetQRChannel(e.ctx)
		if err != nil {
			return fmt.Errorf("failed to get QR channel: %w", err)
		}
		if err := client.Connect(); err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		go e.watchQR(qrChan)
		return nil
	}

	if err := client.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	return nil
}

func (e *Engine) currentClient() (*whatsmeow.Client, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return nil, domainEngine.ErrNotReady
	}
	return e.client, nil
}

// readyClient returns the client only when it is connected and paired.
func (e *Engine) readyClient() (*whatsmeow.Client, error) {
	client, err := e.currentClient()
	if err != nil {
		return nil, err
	}
	if !client.IsConnected() || !client.IsLoggedIn() {
		return nil, domainEngine.ErrNotReady
	}
	return client, nil
}

// emit queues evt for the consumer. It blocks while the buffer is full and
// gives up once the engine is closed.
func (e *Engine) emit(evt domainEngine.Event) {
	e.sendMu.RLock()
	defer e.sendMu.RUnlock()
	if e.closed {
		return
	}
	select {
	case e.events <- evt:
	case <-e.done:
	}
}

func (e *Engine) release() {
	e.mu.Lock()
	client, container := e.client, e.container
	if client != nil && e.handlerID != 0 {
		client.RemoveEventHandler(e.handlerID)
		e.handlerID = 0
	}
	e.client, e.container = nil, nil
	e.mu.Unlock()

	if client != nil {
		client.Disconnect()
	}
	if container != nil {
		if err := container.Close(); err != nil {
			logrus.WithError(err).WithField("client_id", e.sessionID).Warn("[WHATSAPP] Failed to close device store")
		}
	}
}

// Close disconnects and closes the event channel. Safe to call twice.
func (e *Engine) Close(_ context.Context) error {
	e.doneOnce.Do(func() {
		e.cancel()
		close(e.done)
		e.release()

		e.sendMu.Lock()
		e.closed = true
		close(e.events)
		e.sendMu.Unlock()
	})
	return nil
}

// Logout unlinks the device when paired, then closes and removes the device store.
func (e *Engine) Logout(ctx context.Context) error {
	var logoutErr error
	if client, err := e.currentClient(); err == nil && client.IsLoggedIn() {
		logoutErr = client.Logout(ctx)
	}
	_ = e.Close(ctx)

	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(e.dbPath() + suffix); err != nil && !os.IsNotExist(err) {
			logrus.WithError(err).WithField("client_id", e.sessionID).Warn("[WHATSAPP] Failed to remove device store")
		}
	}
	return logoutErr
}
