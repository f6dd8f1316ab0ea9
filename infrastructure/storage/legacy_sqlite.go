package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	domainMessage "github.com/AzielCF/wa-relay/domains/message"
	domainSession "github.com/AzielCF/wa-relay/domains/session"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// ErrNoLegacyStore is returned by OpenLegacy when the file does not exist.
var ErrNoLegacyStore = errors.New("legacy store not found")

// LegacyStore reads the single-file history written by earlier releases.
type LegacyStore struct {
	path string
	db   *sql.DB
}

func OpenLegacy(path string) (*LegacyStore, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoLegacyStore
		}
		return nil, err
	}
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return nil, fmt.Errorf("open legacy store: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open legacy store: %w", err)
	}
	return &LegacyStore{path: path, db: db}, nil
}

func (s *LegacyStore) Path() string { return s.path }

func (s *LegacyStore) hasTable(ctx context.Context, name string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&n)
	return n > 0, err
}

// Messages returns every legacy message row.
func (s *LegacyStore) Messages(ctx context.Context) ([]domainMessage.Message, error) {
	ok, err := s.hasTable(ctx, "messages")
	if err != nil || !ok {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, client_id, chat_id, from_user, body, timestamp,
		has_media, media_type, media_path, is_location, is_contact, is_sticker FROM messages`)
	if err != nil {
		return nil, fmt.Errorf("read legacy messages: %w", err)
	}
	defer rows.Close()

	var out []domainMessage.Message
	for rows.Next() {
		var (
			id                               string
			clientID, chatID, from, body     sql.NullString
			mediaType, mediaPath             sql.NullString
			ts                               sql.NullInt64
			hasMedia, isLoc, isCont, isStick sql.NullInt64
		)
		if err := rows.Scan(&id, &clientID, &chatID, &from, &body, &ts,
			&hasMedia, &mediaType, &mediaPath, &isLoc, &isCont, &isStick); err != nil {
			logrus.Warnf("[MIGRATION] Skipping unreadable legacy row: %v", err)
			continue
		}
		out = append(out, domainMessage.Message{
			ID:         id,
			SessionID:  clientID.String,
			ThreadID:   chatID.String,
			Sender:     from.String,
			Body:       body.String,
			Timestamp:  ts.Int64,
			HasMedia:   hasMedia.Int64 != 0,
			MediaType:  mediaType.String,
			MediaPath:  mediaPath.String,
			IsLocation: isLoc.Int64 != 0,
			IsContact:  isCont.Int64 != 0,
			IsSticker:  isStick.Int64 != 0,
		})
	}
	return out, rows.Err()
}

// Sessions returns the legacy client metadata rows, if the table exists.
func (s *LegacyStore) Sessions(ctx context.Context) ([]domainSession.Metadata, error) {
	ok, err := s.hasTable(ctx, "clients_metadata")
	if err != nil || !ok {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, "SELECT id, api_key, created_at FROM clients_metadata")
	if err != nil {
		return nil, fmt.Errorf("read legacy metadata: %w", err)
	}
	defer rows.Close()

	var out []domainSession.Metadata
	for rows.Next() {
		var (
			id        string
			apiKey    sql.NullString
			createdAt sql.NullString
		)
		if err := rows.Scan(&id, &apiKey, &createdAt); err != nil {
			logrus.Warnf("[MIGRATION] Skipping unreadable legacy client row: %v", err)
			continue
		}
		if apiKey.String == "" {
			continue
		}
		out = append(out, domainSession.Metadata{ID: id, APIKey: apiKey.String, CreatedAt: parseLegacyTime(createdAt.String)})
	}
	return out, rows.Err()
}

func parseLegacyTime(v string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}

func (s *LegacyStore) Close() error {
	return s.db.Close()
}

// Remove closes the store and deletes the file with its journal side files.
func (s *LegacyStore) Remove() error {
	_ = s.db.Close()
	for _, suffix := range []string{"-wal", "-shm", "-journal"} {
		_ = os.Remove(s.path + suffix)
	}
	return os.Remove(s.path)
}
