package engine

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind names an engine event. The values double as SSE event names.
type Kind string

const (
	KindQR            Kind = "qr"
	KindReady         Kind = "ready"
	KindAuthenticated Kind = "authenticated"
	KindAuthFailure   Kind = "auth_failure"
	KindDisconnected  Kind = "disconnected"
	KindMessage       Kind = "message"
	KindMessageCreate Kind = "message_create"
	KindMessageEdit   Kind = "message_edit"
	KindRevoke        Kind = "message_revoke_everyone"
	KindAck           Kind = "message_ack"
	KindReaction      Kind = "message_reaction"
	KindGroupJoin     Kind = "group_join"
	KindGroupLeave    Kind = "group_leave"
	KindGroupUpdate   Kind = "group_update"
)

// Event is one notification from an engine, in emission order.
type Event struct {
	Kind Kind
	// QRCode and QRImage (PNG) are set for KindQR.
	QRCode  string
	QRImage []byte
	// Reason is set for KindAuthFailure and KindDisconnected.
	Reason string
	// Message is set for KindMessage, KindMessageCreate and KindMessageEdit.
	Message *Message
	// Data carries the payload of the remaining kinds.
	Data map[string]any
}

// MessageType mirrors the engine's own message classification.
type MessageType string

const (
	TypeText     MessageType = "chat"
	TypeImage    MessageType = "image"
	TypeVideo    MessageType = "video"
	TypeAudio    MessageType = "audio"
	TypeDocument MessageType = "document"
	TypeSticker  MessageType = "sticker"
	TypeLocation MessageType = "location"
	TypeContact  MessageType = "contact_card"
	TypePoll     MessageType = "poll_creation"
)

// Message is an engine message normalized at the boundary.
type Message struct {
	ID        string
	ThreadID  string
	Sender    string
	To        string
	Body      string
	Timestamp int64
	FromMe    bool
	Type      MessageType
	HasMedia  bool
	MimeType  string
	FileName  string

	// Handle is engine private state needed to download media or react.
	Handle any
}

// Normalize fills the fields an engine may omit. The fallback id is derived
// from the session, sender and timestamp; the thread falls back to sender,
// then recipient.
func (m *Message) Normalize(sessionID string, now time.Time) {
	if m.Timestamp <= 0 {
		m.Timestamp = now.Unix()
	}
	if m.ThreadID == "" {
		switch {
		case m.Sender != "":
			m.ThreadID = m.Sender
		case m.To != "":
			m.ThreadID = m.To
		default:
			m.ThreadID = "unknown_" + sessionID
		}
	}
	if m.ID == "" {
		sender := m.Sender
		if sender == "" {
			sender = "unknown"
		}
		m.ID = fmt.Sprintf("%s_%s_%d", sessionID, sender, m.Timestamp)
	}
	if m.Type == "" {
		m.Type = TypeText
	}
}

// Media is downloaded message content.
type Media struct {
	Data     []byte
	MimeType string
	FileName string
}

type SendResult struct {
	ID string
	// ChatID is the normalized address the message went to.
	ChatID    string
	Timestamp time.Time
}

type TextOptions struct {
	Mentions        []string
	QuotedMessageID string
}

type OutgoingMedia struct {
	Data     []byte
	MimeType string
	FileName string
	Caption  string
	Sticker  bool
}

var (
	ErrNotReady       = errors.New("client is not ready")
	ErrNoMedia        = errors.New("message has no media")
	ErrInvalidAddress = errors.New("invalid chat address")
)

// Engine is one automation session. Start begins the handshake; progress and
// inbound traffic are reported on Events, which is closed after Close.
type Engine interface {
	Start(ctx context.Context) error
	Events() <-chan Event

	SendText(ctx context.Context, to, text string, opts TextOptions) (SendResult, error)
	SendMedia(ctx context.Context, to string, media OutgoingMedia) (SendResult, error)
	SendLocation(ctx context.Context, to string, latitude, longitude float64, address string) (SendResult, error)
	SendContact(ctx context.Context, to, contactNumber, displayName string) (SendResult, error)
	SendPoll(ctx context.Context, to, question string, options []string, multipleAnswers bool) (SendResult, error)
	React(ctx context.Context, target Message, emoji string) error
	SetStatusMessage(ctx context.Context, text string) error

	// Threads lists the chats the engine knows about, most recent first.
	Threads(ctx context.Context) ([]string, error)
	// RecentMessages returns up to limit live messages of a thread, oldest first.
	RecentMessages(ctx context.Context, threadID string, limit int) ([]Message, error)
	Download(ctx context.Context, msg Message) (*Media, error)

	// Close disconnects and closes Events. Logout additionally unlinks the device.
	Close(ctx context.Context) error
	Logout(ctx context.Context) error
}

// Factory builds the engine for a session id.
type Factory func(sessionID string) (Engine, error)
