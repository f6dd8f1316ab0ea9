package storage

import (
	"context"
	"errors"
	"time"

	domainSession "github.com/AzielCF/wa-relay/domains/session"
	pkgError "github.com/AzielCF/wa-relay/pkg/error"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type clientMetadataModel struct {
	ID        string    `gorm:"column:id;primaryKey"`
	APIKey    string    `gorm:"column:api_key;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (clientMetadataModel) TableName() string {
	return "clients_metadata"
}

type MetadataGormRepository struct {
	db *gorm.DB
}

func NewMetadataGormRepository(db *gorm.DB) *MetadataGormRepository {
	return &MetadataGormRepository{db: db}
}

func (r *MetadataGormRepository) InitSchema(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&clientMetadataModel{})
}

// Save inserts meta or replaces the key of an existing row. CreatedAt is kept.
func (r *MetadataGormRepository) Save(ctx context.Context, meta domainSession.Metadata) error {
	model := clientMetadataModel{ID: meta.ID, APIKey: meta.APIKey, CreatedAt: meta.CreatedAt}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"api_key"}),
	}).Create(&model).Error
}

// InsertIfAbsent writes meta unless the id is already known.
func (r *MetadataGormRepository) InsertIfAbsent(ctx context.Context, meta domainSession.Metadata) (bool, error) {
	model := clientMetadataModel{ID: meta.ID, APIKey: meta.APIKey, CreatedAt: meta.CreatedAt}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&model)
	return result.RowsAffected > 0, result.Error
}

func (r *MetadataGormRepository) Get(ctx context.Context, id string) (*domainSession.Metadata, error) {
	var model clientMetadataModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgError.ErrSessionNotFound
		}
		return nil, err
	}
	meta := model.toDomain()
	return &meta, nil
}

func (r *MetadataGormRepository) List(ctx context.Context) ([]domainSession.Metadata, error) {
	var models []clientMetadataModel
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domainSession.Metadata, 0, len(models))
	for _, m := range models {
		out = append(out, m.toDomain())
	}
	return out, nil
}

func (r *MetadataGormRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&clientMetadataModel{}, "id = ?", id).Error
}

func (m clientMetadataModel) toDomain() domainSession.Metadata {
	return domainSession.Metadata{ID: m.ID, APIKey: m.APIKey, CreatedAt: m.CreatedAt}
}
