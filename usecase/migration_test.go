package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	domainMessage "github.com/AzielCF/wa-relay/domains/message"
	domainSession "github.com/AzielCF/wa-relay/domains/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLegacy struct {
	rows     []domainMessage.Message
	sessions []domainSession.Metadata
	closed   bool
	removed  bool
}

func (f *fakeLegacy) Path() string { return "legacy.db" }
func (f *fakeLegacy) Messages(ctx context.Context) ([]domainMessage.Message, error) {
	return f.rows, nil
}
func (f *fakeLegacy) Sessions(ctx context.Context) ([]domainSession.Metadata, error) {
	return f.sessions, nil
}
func (f *fakeLegacy) Close() error  { f.closed = true; return nil }
func (f *fakeLegacy) Remove() error { f.removed = true; return nil }

func TestMigration_NoLegacySource(t *testing.T) {
	h := newHarness(t)
	svc := NewMigrationService(MigrationDeps{
		Open:     func() (LegacySource, error) { return nil, ErrNoLegacySource },
		Messages: h.messages,
		Metadata: h.metadata,
		Media:    h.media,
	})

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, MigrationReport{}, report)
}

func TestMigration_CopiesWithoutOverwriting(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	legacyMedia := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(legacyMedia, "c1"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(legacyMedia, "c1", "old.jpg"), []byte("jpeg"), 0644))

	require.NoError(t, h.messages.Upsert(ctx, domainMessage.Message{ID: "m1", SessionID: "c1", ThreadID: "x", Body: "current", Timestamp: 50}))
	require.NoError(t, h.metadata.Save(ctx, domainSession.Metadata{ID: "c1", APIKey: "current-key", CreatedAt: time.Now()}))

	src := &fakeLegacy{
		rows: []domainMessage.Message{
			{ID: "m1", SessionID: "c1", ThreadID: "x", Body: "stale", Timestamp: 10},
			{ID: "m2", SessionID: "c1", ThreadID: "123@c.us", Sender: "123@c.us", Body: "old", Timestamp: 20},
			{ID: "m3", SessionID: "c1", ThreadID: "123@c.us", Timestamp: 30, HasMedia: true, MediaType: "image/jpeg", MediaPath: "c1/old.jpg"},
			{ID: "m4", SessionID: "c1", ThreadID: "123@c.us", Timestamp: 40, HasMedia: true, MediaType: "image/jpeg", MediaPath: "c1/lost.jpg"},
		},
		sessions: []domainSession.Metadata{
			{ID: "c1", APIKey: "legacy-key", CreatedAt: time.Now()},
			{ID: "c2", APIKey: "k2", CreatedAt: time.Now()},
		},
	}
	svc := NewMigrationService(MigrationDeps{
		Open:            func() (LegacySource, error) { return src, nil },
		Messages:        h.messages,
		Metadata:        h.metadata,
		Media:           h.media,
		LegacyMediaRoot: legacyMedia,
		Workers:         2,
	})

	report, err := svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), report.Messages)
	assert.Equal(t, int64(1), report.Skipped)
	assert.Equal(t, int64(1), report.Media)
	assert.Equal(t, int64(1), report.Sessions)
	assert.True(t, report.Removed)
	assert.True(t, src.removed)

	m1, err := h.messages.GetByID(ctx, "c1", "m1")
	require.NoError(t, err)
	assert.Equal(t, "current", m1.Body)

	m2, err := h.messages.GetByID(ctx, "c1", "m2")
	require.NoError(t, err)
	assert.Equal(t, "123@s.whatsapp.net", m2.ThreadID)
	assert.Equal(t, "123@s.whatsapp.net", m2.Sender)

	m3, err := h.messages.GetByID(ctx, "c1", "m3")
	require.NoError(t, err)
	assert.Equal(t, "c1/m3.jpg", m3.MediaPath)
	assert.True(t, h.media.Exists(m3.MediaPath))

	m4, err := h.messages.GetByID(ctx, "c1", "m4")
	require.NoError(t, err)
	assert.Empty(t, m4.MediaPath)

	meta, err := h.metadata.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "current-key", meta.APIKey)
	_, err = h.metadata.Get(ctx, "c2")
	assert.NoError(t, err)
}

// flakyInserts fails the copy of one message id.
type flakyInserts struct {
	domainMessage.IMessageRepository
	failID string
}

func (f flakyInserts) InsertIfAbsent(ctx context.Context, msg domainMessage.Message) (bool, error) {
	if msg.ID == f.failID {
		return false, errors.New("database is locked")
	}
	return f.IMessageRepository.InsertIfAbsent(ctx, msg)
}

func TestMigration_KeepsLegacyStoreWhenARowFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	src := &fakeLegacy{
		rows: []domainMessage.Message{
			{ID: "m1", SessionID: "c1", ThreadID: "123@c.us", Body: "kept", Timestamp: 10},
			{ID: "m2", SessionID: "c1", ThreadID: "123@c.us", Body: "lost", Timestamp: 20},
		},
	}
	svc := NewMigrationService(MigrationDeps{
		Open:     func() (LegacySource, error) { return src, nil },
		Messages: flakyInserts{IMessageRepository: h.messages, failID: "m2"},
		Metadata: h.metadata,
		Media:    h.media,
		Workers:  2,
	})

	report, err := svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.Messages)
	assert.Equal(t, int64(1), report.Failed)
	assert.False(t, report.Removed)
	assert.False(t, src.removed)
	assert.True(t, src.closed)

	_, err = h.messages.GetByID(ctx, "c1", "m1")
	assert.NoError(t, err)
}
