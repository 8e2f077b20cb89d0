package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"opsstay/internal/model"
	"opsstay/internal/repository"
	"opsstay/pkg/apperr"
	"opsstay/pkg/normtr"

	"github.com/google/uuid"
)

// Compensation budget for the approval saga. After this many failed rollback
// attempts the request is reported as a fatal inconsistency.
const (
	compensationAttempts = 3
	compensationBackoff  = 100 * time.Millisecond
)

// --- DTOs ---

type SubmitRequestInput struct {
	FullName  string `json:"full_name" binding:"required"`
	RiskLevel string `json:"risk_level" binding:"required,oneof=bilgi dikkat kritik"`
	Summary   string `json:"summary"`
}

type RequestFilter struct {
	Status string // pending, approved, rejected or empty for all
	Page   int
	Limit  int
}

type RequestResponse struct {
	ID                  string  `json:"id"`
	FullName            string  `json:"full_name"`
	FullNameNorm        string  `json:"full_name_norm"`
	RiskLevel           string  `json:"risk_level"`
	Summary             string  `json:"summary"`
	HotelName           string  `json:"hotel_name"`
	Department          string  `json:"department"`
	Status              string  `json:"status"`
	CreatedByName       string  `json:"created_by_name"`
	CreatedByRole       string  `json:"created_by_role"`
	CreatedByDepartment string  `json:"created_by_department"`
	CreatedByHotel      string  `json:"created_by_hotel"`
	ReviewedByName      string  `json:"reviewed_by_name,omitempty"`
	ReviewedAt          *string `json:"reviewed_at"`
	CreatedAt           string  `json:"created_at"`
}

// --- Interface ---

// RequestService owns the pending/approved/rejected review workflow. Approval
// promotes a request into a durable record through a compensating two-step
// saga; requests themselves are never deleted.
type RequestService interface {
	Submit(ctx context.Context, input SubmitRequestInput, ident model.Identity) (*RequestResponse, error)
	List(ctx context.Context, filter RequestFilter) ([]RequestResponse, int64, error)
	Approve(ctx context.Context, id string, reviewer model.Identity) (*RecordResponse, error)
	Reject(ctx context.Context, id string, reviewer model.Identity) (*RequestResponse, error)
}

type requestService struct {
	repo    repository.RequestRepository
	records RecordService
	audit   repository.AuditRepository
}

func NewRequestService(repo repository.RequestRepository, records RecordService, audit repository.AuditRepository) RequestService {
	return &requestService{repo: repo, records: records, audit: audit}
}

// --- Implementation ---

func (s *requestService) Submit(ctx context.Context, input SubmitRequestInput, ident model.Identity) (*RequestResponse, error) {
	if !ident.CanSubmit() {
		return nil, apperr.Forbidden("editor or manager role required to submit requests")
	}

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

	req := &model.RiskRequest{
		FullName:            name,
		FullNameNorm:        normtr.Normalize(name),
		RiskLevel:           input.RiskLevel,
		Summary:             summary,
		HotelName:           ident.HotelName,
		Department:          ident.Department,
		Status:              model.RequestPending,
		CreatedByID:         ident.ID,
		CreatedByName:       ident.DisplayName,
		CreatedByRole:       ident.Role,
		CreatedByHotel:      ident.HotelName,
		CreatedByDepartment: ident.Department,
	}

	if err := s.repo.Create(ctx, req); err != nil {
		return nil, apperr.Wrap(apperr.CodeStorage, "submit request", err)
	}

	s.writeAudit(ctx, ident, model.ActionCreateRequest, req, map[string]interface{}{
		"full_name":  req.FullName,
		"risk_level": req.RiskLevel,
	})

	resp := toRequestResponse(req)
	return &resp, nil
}

func (s *requestService) List(ctx context.Context, filter RequestFilter) ([]RequestResponse, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}

	requests, total, err := s.repo.List(ctx, filter.Status, filter.Page, filter.Limit)
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.CodeStorage, "list requests", err)
	}

	result := make([]RequestResponse, 0, len(requests))
	for _, r := range requests {
		result = append(result, toRequestResponse(&r))
	}
	return result, total, nil
}

// Approve promotes a pending request into a durable record. The two writes
// are deliberately not one transaction: the status flip must be durable
// before record creation starts, so a crash in between leaves the request
// approved-but-recordless — detectable and compensable from request state
// alone, and impossible to double-promote on retry.
func (s *requestService) Approve(ctx context.Context, id string, reviewer model.Identity) (*RecordResponse, error) {
	req, err := s.loadForReview(ctx, id, reviewer)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	ok, err := s.repo.MarkReviewed(ctx, req.ID, model.RequestApproved, repository.ReviewStamp{
		ReviewerID:   reviewer.ID,
		ReviewerName: reviewer.DisplayName,
		ReviewedAt:   now,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorage, "mark request approved", err)
	}
	if !ok {
		// Lost the race against a concurrent review of the same request.
		return nil, apperr.InvalidState("request is no longer pending")
	}

	submitter := model.Identity{
		ID:          req.CreatedByID,
		DisplayName: req.CreatedByName,
		Role:        req.CreatedByRole,
		HotelName:   req.CreatedByHotel,
		Department:  req.CreatedByDepartment,
	}

	record, err := s.records.CreateRecord(ctx, CreateRecordInput{
		FullName:   req.FullName,
		RiskLevel:  req.RiskLevel,
		Summary:    req.Summary,
		HotelName:  req.HotelName,
		Department: req.Department,
	}, submitter)
	if err != nil {
		if compErr := s.compensate(ctx, req.ID); compErr != nil {
			log.Printf("FATAL: request %s is approved with no record and rollback failed; manual reconciliation required: %v", req.ID, compErr)
			return nil, apperr.Wrap(apperr.CodeConsistency,
				fmt.Sprintf("approval rollback failed for request %s", req.ID), compErr)
		}
		return nil, fmt.Errorf("promote request %s: %w", req.ID, err)
	}

	s.writeAudit(ctx, reviewer, model.ActionApproveRequest, req, map[string]interface{}{
		"full_name": req.FullName,
		"record_id": record.ID,
	})

	return record, nil
}

func (s *requestService) Reject(ctx context.Context, id string, reviewer model.Identity) (*RequestResponse, error) {
	req, err := s.loadForReview(ctx, id, reviewer)
	if err != nil {
		return nil, err
	}

	ok, err := s.repo.MarkReviewed(ctx, req.ID, model.RequestRejected, repository.ReviewStamp{
		ReviewerID:   reviewer.ID,
		ReviewerName: reviewer.DisplayName,
		ReviewedAt:   time.Now(),
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorage, "mark request rejected", err)
	}
	if !ok {
		return nil, apperr.InvalidState("request is no longer pending")
	}

	s.writeAudit(ctx, reviewer, model.ActionRejectRequest, req, map[string]interface{}{
		"full_name": req.FullName,
	})

	updated, err := s.repo.FindByID(ctx, req.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorage, "reload request", err)
	}

	resp := toRequestResponse(updated)
	return &resp, nil
}

// loadForReview enforces the reviewer permission (defense in depth — the
// route is already gated) and the pending precondition.
func (s *requestService) loadForReview(ctx context.Context, id string, reviewer model.Identity) (*model.RiskRequest, error) {
	if !reviewer.CanReview() {
		return nil, apperr.Forbidden("manager role required to review requests")
	}

	requestID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Validation("invalid request id")
	}

	req, err := s.repo.FindByID(ctx, requestID)
	if err != nil {
		return nil, apperr.NotFound("request not found")
	}
	if req.Status != model.RequestPending {
		return nil, apperr.Newf(apperr.CodeInvalidState, "request is already %s", req.Status)
	}
	return req, nil
}

// compensate reverts an approved-but-recordless request to pending. Retried
// because the request must never be silently stuck in approved.
func (s *requestService) compensate(ctx context.Context, id uuid.UUID) error {
	var err error
	for attempt := 1; attempt <= compensationAttempts; attempt++ {
		if err = s.repo.RevertToPending(ctx, id); err == nil {
			return nil
		}
		log.Printf("WARN: rollback attempt %d/%d for request %s failed: %v", attempt, compensationAttempts, id, err)
		time.Sleep(compensationBackoff * time.Duration(attempt))
	}
	return err
}

// writeAudit records a workflow action. Audit failures here are logged, not
// surfaced: the state change has already landed.
func (s *requestService) writeAudit(ctx context.Context, actor model.Identity, action string, req *model.RiskRequest, payload map[string]interface{}) {
	details, _ := json.Marshal(payload)
	entry := &model.AuditLog{
		UserID:     actor.ID,
		ActorName:  actor.DisplayName,
		Action:     action,
		EntityID:   req.ID.String(),
		EntityName: req.FullName,
		Details:    string(details),
	}
	if err := s.audit.Log(ctx, entry); err != nil {
		log.Printf("WARN: audit write for %s on request %s failed: %v", action, req.ID, err)
	}
}

// --- Helpers ---

func toRequestResponse(r *model.RiskRequest) RequestResponse {
	resp := RequestResponse{
		ID:                  r.ID.String(),
		FullName:            r.FullName,
		FullNameNorm:        r.FullNameNorm,
		RiskLevel:           r.RiskLevel,
		Summary:             r.Summary,
		HotelName:           r.HotelName,
		Department:          r.Department,
		Status:              r.Status,
		CreatedByName:       r.CreatedByName,
		CreatedByRole:       r.CreatedByRole,
		CreatedByDepartment: r.CreatedByDepartment,
		CreatedByHotel:      r.CreatedByHotel,
		ReviewedByName:      r.ReviewedByName,
		CreatedAt:           r.CreatedAt.Format(time.RFC3339),
	}
	if r.ReviewedAt != nil {
		s := r.ReviewedAt.Format(time.RFC3339)
		resp.ReviewedAt = &s
	}
	return resp
}
