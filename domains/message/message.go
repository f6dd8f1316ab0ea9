package message

import (
	"context"
	"strings"
)

// Message is one durable history row.
type Message struct {
	ID         string
	SessionID  string
	ThreadID   string
	Sender     string
	Body       string
	Timestamp  int64
	HasMedia   bool
	MediaType  string // full MIME type, e.g. image/jpeg
	MediaPath  string // relative to the media root, empty when not cached
	IsLocation bool
	IsContact  bool
	IsSticker  bool
}

// MediaCategory returns the top-level MIME type ("image" for image/jpeg).
func (m Message) MediaCategory() string {
	return MimeCategory(m.MediaType)
}

// MimeCategory returns the part of mime before '/', or mime itself.
func MimeCategory(mime string) string {
	if i := strings.IndexByte(mime, '/'); i >= 0 {
		return mime[:i]
	}
	return mime
}

// View is the JSON shape of a message in history listings.
type View struct {
	ID         string  `json:"id"`
	From       string  `json:"from"`
	Body       string  `json:"body"`
	Timestamp  int64   `json:"timestamp"`
	HasMedia   bool    `json:"hasMedia"`
	MediaType  *string `json:"mediaType"`
	MediaPath  *string `json:"mediaPath"`
	IsLocation bool    `json:"isLocation"`
	IsContact  bool    `json:"isContact"`
	IsSticker  bool    `json:"isSticker"`
}

func (m Message) View() View {
	v := View{
		ID:         m.ID,
		From:       m.Sender,
		Body:       m.Body,
		Timestamp:  m.Timestamp,
		HasMedia:   m.HasMedia,
		IsLocation: m.IsLocation,
		IsContact:  m.IsContact,
		IsSticker:  m.IsSticker,
	}
	if m.MediaType != "" {
		cat := m.MediaCategory()
		v.MediaType = &cat
	}
	if m.MediaPath != "" {
		p := m.MediaPath
		v.MediaPath = &p
	}
	return v
}

type IMessageRepository interface {
	InitSchema(ctx context.Context) error
	// Upsert inserts msg or, when the id exists, updates body and timestamp only.
	Upsert(ctx context.Context, msg Message) error
	// InsertIfAbsent never touches an existing row. It reports whether a row was written.
	InsertIfAbsent(ctx context.Context, msg Message) (bool, error)
	GetByID(ctx context.Context, sessionID, id string) (*Message, error)
	ListByThread(ctx context.Context, sessionID, threadID string, limit int) ([]Message, error)
	Search(ctx context.Context, sessionID, query, threadID string, limit int) ([]Message, error)
	Threads(ctx context.Context, sessionID string) ([]string, error)
	UpdateMedia(ctx context.Context, sessionID, id, mediaPath, mediaType string) error
	MediaPaths(ctx context.Context, sessionID string) ([]string, error)
	DeleteAllForSession(ctx context.Context, sessionID string) (int64, error)
}

type IMessageUsecase interface {
	SendText(ctx context.Context, sessionID string, request SendTextRequest) (SendResponse, error)
	SendMedia(ctx context.Context, sessionID string, request SendMediaRequest) (SendResponse, error)
	SendSticker(ctx context.Context, sessionID string, request SendStickerRequest) (SendResponse, error)
	SendLocation(ctx context.Context, sessionID string, request SendLocationRequest) (SendResponse, error)
	SendContact(ctx context.Context, sessionID string, request SendContactRequest) (SendResponse, error)
	SendPoll(ctx context.Context, sessionID string, request SendPollRequest) (SendResponse, error)
	React(ctx context.Context, sessionID, messageID string, request ReactRequest) error
	ListMessages(ctx context.Context, sessionID, threadID string, limit int) ([]View, error)
	Search(ctx context.Context, sessionID string, request SearchRequest) ([]SearchResult, error)
	Chats(ctx context.Context, sessionID string) ([]string, error)
}
