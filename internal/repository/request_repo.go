package repository

import (
	"context"
	"time"

	"opsstay/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReviewStamp carries the reviewer identity written on a status transition.
type ReviewStamp struct {
	ReviewerID   *uuid.UUID
	ReviewerName string
	ReviewedAt   time.Time
}

// RequestRepository owns pending/approved/rejected pre-check requests.
// Status transitions go through MarkReviewed, a conditional update guarded on
// the current pending status so concurrent reviews of the same id serialize
// at the database.
type RequestRepository interface {
	Create(ctx context.Context, req *model.RiskRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.RiskRequest, error)
	List(ctx context.Context, status string, page, limit int) ([]model.RiskRequest, int64, error)
	// MarkReviewed moves a pending request to the given terminal status and
	// stamps the reviewer. Returns false when the request was not pending
	// anymore (lost race or already decided).
	MarkReviewed(ctx context.Context, id uuid.UUID, status string, stamp ReviewStamp) (bool, error)
	// RevertToPending is the compensating rollback: status back to pending,
	// reviewer stamp cleared. Only the workflow itself calls this.
	RevertToPending(ctx context.Context, id uuid.UUID) error
}

type requestRepository struct {
	db *gorm.DB
}

func NewRequestRepository(db *gorm.DB) RequestRepository {
	return &requestRepository{db: db}
}

func (r *requestRepository) Create(ctx context.Context, req *model.RiskRequest) error {
	return GetDB(ctx, r.db).Create(req).Error
}

func (r *requestRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.RiskRequest, error) {
	var req model.RiskRequest
	if err := GetDB(ctx, r.db).First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *requestRepository) List(ctx context.Context, status string, page, limit int) ([]model.RiskRequest, int64, error) {
	var requests []model.RiskRequest
	var total int64

	db := GetDB(ctx, r.db)
	query := db.Model(&model.RiskRequest{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	fetchQuery := db.Order("created_at DESC").Offset(offset).Limit(limit)
	if status != "" {
		fetchQuery = fetchQuery.Where("status = ?", status)
	}
	if err := fetchQuery.Find(&requests).Error; err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}

func (r *requestRepository) MarkReviewed(ctx context.Context, id uuid.UUID, status string, stamp ReviewStamp) (bool, error) {
	res := GetDB(ctx, r.db).
		Model(&model.RiskRequest{}).
		Where("id = ? AND status = ?", id, model.RequestPending).
		Updates(map[string]interface{}{
			"status":           status,
			"reviewed_by_id":   stamp.ReviewerID,
			"reviewed_by_name": stamp.ReviewerName,
			"reviewed_at":      stamp.ReviewedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *requestRepository) RevertToPending(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).
		Model(&model.RiskRequest{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":           model.RequestPending,
			"reviewed_by_id":   nil,
			"reviewed_by_name": "",
			"reviewed_at":      nil,
		}).Error
}
