package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domainMessage "github.com/AzielCF/wa-relay/domains/message"
	pkgError "github.com/AzielCF/wa-relay/pkg/error"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// --- Persistence Model ---

type messageModel struct {
	ID         string  `gorm:"column:id;primaryKey"`
	ClientID   string  `gorm:"column:client_id;not null;index:idx_messages_client_chat,priority:1"`
	ChatID     string  `gorm:"column:chat_id;not null;index:idx_messages_client_chat,priority:2"`
	FromUser   string  `gorm:"column:from_user"`
	Body       string  `gorm:"column:body;type:text"`
	Timestamp  int64   `gorm:"column:timestamp"`
	HasMedia   bool    `gorm:"column:has_media"`
	MediaType  *string `gorm:"column:media_type"`
	MediaPath  *string `gorm:"column:media_path"`
	IsLocation bool    `gorm:"column:is_location"`
	IsContact  bool    `gorm:"column:is_contact"`
	IsSticker  bool    `gorm:"column:is_sticker"`
	CreatedAt  time.Time
}

func (messageModel) TableName() string {
	return "messages"
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func toMessageModel(m domainMessage.Message) messageModel {
	return messageModel{
		ID:         m.ID,
		ClientID:   m.SessionID,
		ChatID:     m.ThreadID,
		FromUser:   m.Sender,
		Body:       m.Body,
		Timestamp:  m.Timestamp,
		HasMedia:   m.HasMedia,
		MediaType:  nullable(m.MediaType),
		MediaPath:  nullable(m.MediaPath),
		IsLocation: m.IsLocation,
		IsContact:  m.IsContact,
		IsSticker:  m.IsSticker,
	}
}

func (m messageModel) toDomain() domainMessage.Message {
	return domainMessage.Message{
		ID:         m.ID,
		SessionID:  m.ClientID,
		ThreadID:   m.ChatID,
		Sender:     m.FromUser,
		Body:       m.Body,
		Timestamp:  m.Timestamp,
		HasMedia:   m.HasMedia,
		MediaType:  deref(m.MediaType),
		MediaPath:  deref(m.MediaPath),
		IsLocation: m.IsLocation,
		IsContact:  m.IsContact,
		IsSticker:  m.IsSticker,
	}
}

// --- Repository Implementation ---

type MessageGormRepository struct {
	db *gorm.DB
}

func NewMessageGormRepository(db *gorm.DB) *MessageGormRepository {
	return &MessageGormRepository{db: db}
}

func (r *MessageGormRepository) InitSchema(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&messageModel{})
}

func (r *MessageGormRepository) Upsert(ctx context.Context, msg domainMessage.Message) error {
	if msg.ID == "" {
		return pkgError.ValidationError("message id: cannot be blank.")
	}
	model := toMessageModel(msg)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"body", "timestamp"}),
	}).Create(&model).Error
	if err != nil {
		return fmt.Errorf("upsert message %s: %w", msg.ID, err)
	}
	return nil
}

func (r *MessageGormRepository) InsertIfAbsent(ctx context.Context, msg domainMessage.Message) (bool, error) {
	model := toMessageModel(msg)
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&model)
	if result.Error != nil {
		return false, fmt.Errorf("insert message %s: %w", msg.ID, result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *MessageGormRepository) GetByID(ctx context.Context, sessionID, id string) (*domainMessage.Message, error) {
	var model messageModel
	err := r.db.WithContext(ctx).Where("id = ? AND client_id = ?", id, sessionID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgError.ErrMessageNotFound
		}
		return nil, err
	}
	msg := model.toDomain()
	return &msg, nil
}

// ListByThread returns the newest limit rows of a thread, newest first.
func (r *MessageGormRepository) ListByThread(ctx context.Context, sessionID, threadID string, limit int) ([]domainMessage.Message, error) {
	var models []messageModel
	q := r.db.WithContext(ctx).
		Where("client_id = ? AND chat_id = ?", sessionID, threadID).
		Order("timestamp DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	return toDomainList(models), nil
}

// Search matches query against message bodies, case-insensitively, newest first.
func (r *MessageGormRepository) Search(ctx context.Context, sessionID, query, threadID string, limit int) ([]domainMessage.Message, error) {
	var models []messageModel
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	q := r.db.WithContext(ctx).
		Where("client_id = ?", sessionID).
		Where("LOWER(body) LIKE ? ESCAPE '\\'", pattern)
	if threadID != "" {
		q = q.Where("chat_id = ?", threadID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Order("timestamp DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	return toDomainList(models), nil
}

func (r *MessageGormRepository) Threads(ctx context.Context, sessionID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&messageModel{}).
		Where("client_id = ?", sessionID).
		Distinct("chat_id").
		Order("chat_id").
		Pluck("chat_id", &ids).Error
	return ids, err
}

// UpdateMedia records a cached file for an existing row. It reports
// pkgError.ErrMessageNotFound when no durable row matches.
func (r *MessageGormRepository) UpdateMedia(ctx context.Context, sessionID, id, mediaPath, mediaType string) error {
	result := r.db.WithContext(ctx).Model(&messageModel{}).
		Where("id = ? AND client_id = ?", id, sessionID).
		Updates(map[string]any{
			"media_path": mediaPath,
			"media_type": mediaType,
			"has_media":  true,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgError.ErrMessageNotFound
	}
	return nil
}

func (r *MessageGormRepository) MediaPaths(ctx context.Context, sessionID string) ([]string, error) {
	var paths []string
	err := r.db.WithContext(ctx).Model(&messageModel{}).
		Where("client_id = ? AND media_path IS NOT NULL AND media_path <> ''", sessionID).
		Pluck("media_path", &paths).Error
	return paths, err
}

func (r *MessageGormRepository) DeleteAllForSession(ctx context.Context, sessionID string) (int64, error) {
	result := r.db.WithContext(ctx).Where("client_id = ?", sessionID).Delete(&messageModel{})
	return result.RowsAffected, result.Error
}

func toDomainList(models []messageModel) []domainMessage.Message {
	out := make([]domainMessage.Message, 0, len(models))
	for _, m := range models {
		out = append(out, m.toDomain())
	}
	return out
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
