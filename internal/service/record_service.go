package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"opsstay/internal/model"
	"opsstay/internal/repository"
	"opsstay/pkg/apperr"
	"opsstay/pkg/normtr"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateRecordInput struct {
	FullName   string `json:"full_name" binding:"required"`
	RiskLevel  string `json:"risk_level" binding:"required,oneof=bilgi dikkat kritik"`
	Summary    string `json:"summary"`
	HotelName  string `json:"hotel_name"`
	Department string `json:"department"`
}

type RecordResponse struct {
	ID            string `json:"id"`
	FullName      string `json:"full_name"`
	FullNameNorm  string `json:"full_name_norm"`
	HotelName     string `json:"hotel_name"`
	Department    string `json:"department"`
	RiskLevel     string `json:"risk_level"`
	Summary       string `json:"summary"`
	CreatedByName string `json:"created_by_name"`
	CreatedAt     string `json:"created_at"`
}

// --- Interface ---

// RecordService owns the canonical set of active pre-check records.
type RecordService interface {
	CreateRecord(ctx context.Context, input CreateRecordInput, ident model.Identity) (*RecordResponse, error)
	// Search resolves a free-text guest name to at most one record. A nil
	// result with a nil error means no record matched; search never fails
	// just because nothing was found.
	Search(ctx context.Context, query string) (*RecordResponse, error)
	DeleteRecord(ctx context.Context, id string, ident model.Identity) error
	ListRecords(ctx context.Context, limit int) ([]RecordResponse, error)
}

type recordService struct {
	repo  repository.RecordRepository
	audit repository.AuditRepository
	tx    repository.TransactionManager
}

func NewRecordService(repo repository.RecordRepository, audit repository.AuditRepository, tx repository.TransactionManager) RecordService {
	return &recordService{repo: repo, audit: audit, tx: tx}
}

// --- Implementation ---

func (s *recordService) CreateRecord(ctx context.Context, input CreateRecordInput, ident model.Identity) (*RecordResponse, error) {
	name := strings.TrimSpace(input.FullName)
	if name == "" {
		return nil, apperr.Validation("full_name is required")
	}
	if !model.ValidRiskLevel(input.RiskLevel) {
		return nil, apperr.Newf(apperr.CodeValidation, "risk_level must be one of %s, %s, %s",
			model.RiskLevelInfo, model.RiskLevelCaution, model.RiskLevelCritical)
	}

	summary := strings.TrimSpace(input.Summary)
	if summary == "" {
		summary = model.SummaryPlaceholder
	}

	hotel := strings.TrimSpace(input.HotelName)
	if hotel == "" {
		hotel = ident.HotelName
	}
	department := strings.TrimSpace(input.Department)
	if department == "" {
		department = ident.Department
	}

	record := &model.RiskRecord{
		FullName:      name,
		FullNameNorm:  normtr.Normalize(name),
		HotelName:     hotel,
		Department:    department,
		RiskLevel:     input.RiskLevel,
		Summary:       summary,
		CreatedByID:   ident.ID,
		CreatedByName: ident.DisplayName,
	}

	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if createErr := s.repo.Create(txCtx, record); createErr != nil {
			return createErr
		}

		details, _ := json.Marshal(map[string]interface{}{
			"full_name":  record.FullName,
			"risk_level": record.RiskLevel,
		})
		return s.audit.Log(txCtx, &model.AuditLog{
			UserID:     ident.ID,
			ActorName:  ident.DisplayName,
			Action:     model.ActionCreateRecord,
			EntityID:   record.ID.String(),
			EntityName: record.FullName,
			Details:    string(details),
		})
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorage, "create record", err)
	}

	resp := toRecordResponse(record)
	return &resp, nil
}

func (s *recordService) Search(ctx context.Context, query string) (*RecordResponse, error) {
	raw := strings.TrimSpace(query)
	norm := normtr.Normalize(query)
	if norm == "" {
		return nil, nil
	}

	record, err := s.repo.SearchOne(ctx, norm, raw)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperr.Wrap(apperr.CodeStorage, "search records", err)
	}

	resp := toRecordResponse(record)
	return &resp, nil
}

func (s *recordService) DeleteRecord(ctx context.Context, id string, ident model.Identity) error {
	recordID, err := uuid.Parse(id)
	if err != nil {
		return apperr.Validation("invalid record id")
	}

	// Archive and delete must land together: an archive entry without the
	// delete would fabricate a removal, a delete without the archive would
	// lose the only historical copy.
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		record, findErr := s.repo.FindByID(txCtx, recordID)
		if findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return apperr.NotFound("record not found")
			}
			return findErr
		}

		entry := &model.DeletionArchive{
			RecordID:        record.ID,
			FullName:        record.FullName,
			FullNameNorm:    record.FullNameNorm,
			HotelName:       record.HotelName,
			Department:      record.Department,
			RiskLevel:       record.RiskLevel,
			Summary:         record.Summary,
			RecordCreatedAt: record.CreatedAt,
			CreatedByName:   record.CreatedByName,
			DeletedByID:     ident.ID,
			DeletedByName:   ident.DisplayName,
		}
		if archiveErr := s.repo.CreateArchive(txCtx, entry); archiveErr != nil {
			return archiveErr
		}

		if deleteErr := s.repo.Delete(txCtx, record.ID); deleteErr != nil {
			return deleteErr
		}

		details, _ := json.Marshal(map[string]interface{}{
			"full_name":  record.FullName,
			"risk_level": record.RiskLevel,
			"archive_id": entry.ID.String(),
		})
		return s.audit.Log(txCtx, &model.AuditLog{
			UserID:     ident.ID,
			ActorName:  ident.DisplayName,
			Action:     model.ActionDeleteRecord,
			EntityID:   record.ID.String(),
			EntityName: record.FullName,
			Details:    string(details),
		})
	})
	if err != nil {
		if apperr.IsCode(err, apperr.CodeNotFound) {
			return err
		}
		return apperr.Wrap(apperr.CodeStorage, "delete record", err)
	}
	return nil
}

func (s *recordService) ListRecords(ctx context.Context, limit int) ([]RecordResponse, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	records, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorage, "list records", err)
	}

	result := make([]RecordResponse, 0, len(records))
	for _, r := range records {
		result = append(result, toRecordResponse(&r))
	}
	return result, nil
}

// --- Helpers ---

func toRecordResponse(r *model.RiskRecord) RecordResponse {
	return RecordResponse{
		ID:            r.ID.String(),
		FullName:      r.FullName,
		FullNameNorm:  r.FullNameNorm,
		HotelName:     r.HotelName,
		Department:    r.Department,
		RiskLevel:     r.RiskLevel,
		Summary:       r.Summary,
		CreatedByName: r.CreatedByName,
		CreatedAt:     r.CreatedAt.Format(time.RFC3339),
	}
}
