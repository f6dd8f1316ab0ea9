package session

import (
	"context"
	"time"
)

type Status string

const (
	StatusInitializing  Status = "initializing"
	StatusQR            Status = "qr"
	StatusAuthenticated Status = "authenticated"
	StatusReady         Status = "ready"
	StatusAuthFailure   Status = "auth_failure"
	StatusDisconnected  Status = "disconnected"
)

// DefaultID is the session used when a request names none.
const DefaultID = "default"

// Metadata is the durable part of a session.
type Metadata struct {
	ID        string
	APIKey    string
	CreatedAt time.Time
}

// Info is a point-in-time view of a live session with its telemetry.
type Info struct {
	ID            string `json:"id"`
	Status        Status `json:"status"`
	APIKey        string `json:"apiKey,omitempty"`
	Uptime        int64  `json:"uptime"`
	MessagesSaved int64  `json:"messagesSaved"`
	MemoryUsage   string `json:"memoryUsage"`
}

// Summary is the entry of the initial "clients" event.
type Summary struct {
	ID     string `json:"id"`
	Status Status `json:"status"`
}

// Credential is what a caller presents to rotate a key.
type Credential struct {
	UIAuthenticated bool
	CurrentAPIKey   string
}

type IMetadataRepository interface {
	InitSchema(ctx context.Context) error
	Save(ctx context.Context, meta Metadata) error
	// InsertIfAbsent never replaces an existing record.
	InsertIfAbsent(ctx context.Context, meta Metadata) (bool, error)
	Get(ctx context.Context, id string) (*Metadata, error)
	List(ctx context.Context) ([]Metadata, error)
	Delete(ctx context.Context, id string) error
}

type ISessionUsecase interface {
	Create(ctx context.Context, id string) (Info, error)
	Delete(ctx context.Context, id string) error
	RotateKey(ctx context.Context, id string, credential Credential) (string, error)
	List() []Info
	Get(id string) (Info, error)
	Summaries() []Summary
	// Authorize resolves the session a request targets and checks its key.
	Authorize(apiKey, clientID string) (string, error)
	QRImage(id string) ([]byte, error)
	SetStatusMessage(ctx context.Context, id, text string) error
	Restore(ctx context.Context) error
	Shutdown(ctx context.Context)
}
