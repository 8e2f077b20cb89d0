package repository

import (
	"context"

	"opsstay/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RecordRepository owns the active set of risk records and the deletion archive.
type RecordRepository interface {
	Create(ctx context.Context, record *model.RiskRecord) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.RiskRecord, error)
	// SearchOne returns the most recently created record matching the
	// normalized query exactly, the normalized query as a substring, or the
	// raw query as a substring of the raw name. gorm.ErrRecordNotFound when
	// nothing matches.
	SearchOne(ctx context.Context, norm, raw string) (*model.RiskRecord, error)
	List(ctx context.Context, limit int) ([]model.RiskRecord, error)
	Delete(ctx context.Context, id uuid.UUID) error
	CreateArchive(ctx context.Context, entry *model.DeletionArchive) error
}

type recordRepository struct {
	db *gorm.DB
}

func NewRecordRepository(db *gorm.DB) RecordRepository {
	return &recordRepository{db: db}
}

func (r *recordRepository) Create(ctx context.Context, record *model.RiskRecord) error {
	return GetDB(ctx, r.db).Create(record).Error
}

func (r *recordRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.RiskRecord, error) {
	var record model.RiskRecord
	if err := GetDB(ctx, r.db).First(&record, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *recordRepository) SearchOne(ctx context.Context, norm, raw string) (*model.RiskRecord, error) {
	var record model.RiskRecord
	err := GetDB(ctx, r.db).
		Where("full_name_norm = ? OR full_name_norm LIKE ? OR LOWER(full_name) LIKE LOWER(?)",
			norm, "%"+norm+"%", "%"+raw+"%").
		Order("created_at DESC").
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *recordRepository) List(ctx context.Context, limit int) ([]model.RiskRecord, error) {
	var records []model.RiskRecord
	if err := GetDB(ctx, r.db).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *recordRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Delete(&model.RiskRecord{}, "id = ?", id).Error
}

func (r *recordRepository) CreateArchive(ctx context.Context, entry *model.DeletionArchive) error {
	return GetDB(ctx, r.db).Create(entry).Error
}
