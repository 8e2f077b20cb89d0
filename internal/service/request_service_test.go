package service

import (
	"context"
	"errors"
	"testing"

	"opsstay/internal/model"
	"opsstay/internal/repository"
	"opsstay/pkg/apperr"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func viewerIdentity() model.Identity {
	id := uuid.New()
	return model.Identity{
		ID:          &id,
		DisplayName: "Gece Denetçisi",
		Role:        model.RoleViewer,
		HotelName:   "Opsstay Hotel Taksim",
		Department:  "Muhasebe",
	}
}

type requestHarness struct {
	db       *gorm.DB
	reqRepo  repository.RequestRepository
	records  RecordService
	requests RequestService
}

func setupRequestService(t *testing.T) *requestHarness {
	t.Helper()

	db := openTestDB(t)
	auditRepo := repository.NewAuditRepository(db)
	txManager := repository.NewTransactionManager(db)
	recordSvc := NewRecordService(repository.NewRecordRepository(db), auditRepo, txManager)
	reqRepo := repository.NewRequestRepository(db)
	return &requestHarness{
		db:       db,
		reqRepo:  reqRepo,
		records:  recordSvc,
		requests: NewRequestService(reqRepo, recordSvc, auditRepo),
	}
}

func (h *requestHarness) loadRequest(t *testing.T, id string) *model.RiskRequest {
	t.Helper()

	var req model.RiskRequest
	if err := h.db.First(&req, "id = ?", id).Error; err != nil {
		t.Fatalf("load request %s: %v", id, err)
	}
	return &req
}

func (h *requestHarness) countRecords(t *testing.T) int64 {
	t.Helper()

	var count int64
	if err := h.db.Model(&model.RiskRecord{}).Count(&count).Error; err != nil {
		t.Fatalf("count records: %v", err)
	}
	return count
}

func TestSubmitRequest(t *testing.T) {
	h := setupRequestService(t)
	submitter := editorIdentity()

	resp, err := h.requests.Submit(context.Background(), SubmitRequestInput{
		FullName:  "Ali Yılmaz",
		RiskLevel: model.RiskLevelCaution,
		Summary:   "late payment",
	}, submitter)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if resp.Status != model.RequestPending {
		t.Errorf("Status = %q, want %q", resp.Status, model.RequestPending)
	}
	if resp.FullNameNorm != "ali yilmaz" {
		t.Errorf("FullNameNorm = %q, want %q", resp.FullNameNorm, "ali yilmaz")
	}
	if resp.ReviewedAt != nil || resp.ReviewedByName != "" {
		t.Errorf("new request carries a reviewer stamp: %+v", resp)
	}

	// Submitter context is frozen onto the request at submit time.
	if resp.CreatedByName != submitter.DisplayName ||
		resp.CreatedByRole != model.RoleEditor ||
		resp.CreatedByDepartment != submitter.Department ||
		resp.CreatedByHotel != submitter.HotelName {
		t.Errorf("submitter snapshot not captured: %+v", resp)
	}

	// Submitting never touches the record set.
	if n := h.countRecords(t); n != 0 {
		t.Errorf("records after submit = %d, want 0", n)
	}
}

func TestSubmitRequestBlankSummaryPlaceholder(t *testing.T) {
	h := setupRequestService(t)

	resp, err := h.requests.Submit(context.Background(), SubmitRequestInput{
		FullName:  "Ayşe Kaya",
		RiskLevel: model.RiskLevelInfo,
	}, editorIdentity())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if resp.Summary != model.SummaryPlaceholder {
		t.Errorf("Summary = %q, want placeholder %q", resp.Summary, model.SummaryPlaceholder)
	}
}

func TestSubmitRequestForbiddenForViewer(t *testing.T) {
	h := setupRequestService(t)

	_, err := h.requests.Submit(context.Background(), SubmitRequestInput{
		FullName:  "Ali Yılmaz",
		RiskLevel: model.RiskLevelInfo,
	}, viewerIdentity())
	if !apperr.IsCode(err, apperr.CodeForbidden) {
		t.Errorf("viewer submit: got %v, want forbidden error", err)
	}
}

func TestApprovePromotesRequestToRecord(t *testing.T) {
	h := setupRequestService(t)
	ctx := context.Background()
	submitter := editorIdentity()
	reviewer := managerIdentity()

	submitted, err := h.requests.Submit(ctx, SubmitRequestInput{
		FullName:  "Ali Yılmaz",
		RiskLevel: model.RiskLevelCaution,
		Summary:   "late payment",
	}, submitter)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	record, err := h.requests.Approve(ctx, submitted.ID, reviewer)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}

	if record.FullName != "Ali Yılmaz" || record.FullNameNorm != "ali yilmaz" {
		t.Errorf("record name = %q/%q, want Ali Yılmaz/ali yilmaz", record.FullName, record.FullNameNorm)
	}
	if record.RiskLevel != model.RiskLevelCaution || record.Summary != "late payment" {
		t.Errorf("record payload not carried over: %+v", record)
	}
	// The record is attributed to the submitter, not the approving manager.
	if record.CreatedByName != submitter.DisplayName {
		t.Errorf("CreatedByName = %q, want submitter %q", record.CreatedByName, submitter.DisplayName)
	}

	req := h.loadRequest(t, submitted.ID)
	if req.Status != model.RequestApproved {
		t.Errorf("request status = %q, want %q", req.Status, model.RequestApproved)
	}
	if req.ReviewedByName != reviewer.DisplayName || req.ReviewedAt == nil {
		t.Errorf("reviewer stamp missing: %+v", req)
	}

	// The promoted record is immediately searchable, diacritics included.
	found, err := h.records.Search(ctx, "ALİ YILMAZ")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if found == nil || found.ID != record.ID {
		t.Fatalf("promoted record not searchable: %+v", found)
	}
}

func TestApproveAlreadyDecided(t *testing.T) {
	h := setupRequestService(t)
	ctx := context.Background()
	reviewer := managerIdentity()

	submitted, err := h.requests.Submit(ctx, SubmitRequestInput{
		FullName:  "Ali Yılmaz",
		RiskLevel: model.RiskLevelInfo,
	}, editorIdentity())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if _, err := h.requests.Approve(ctx, submitted.ID, reviewer); err != nil {
		t.Fatalf("first Approve: %v", err)
	}

	_, err = h.requests.Approve(ctx, submitted.ID, reviewer)
	if !apperr.IsCode(err, apperr.CodeInvalidState) {
		t.Errorf("second approve: got %v, want invalid-state error", err)
	}
	_, err = h.requests.Reject(ctx, submitted.ID, reviewer)
	if !apperr.IsCode(err, apperr.CodeInvalidState) {
		t.Errorf("reject after approve: got %v, want invalid-state error", err)
	}

	// The decided request and its single record are untouched.
	if req := h.loadRequest(t, submitted.ID); req.Status != model.RequestApproved {
		t.Errorf("status changed by failed re-review: %q", req.Status)
	}
	if n := h.countRecords(t); n != 1 {
		t.Errorf("records = %d, want exactly 1", n)
	}
}

func TestApproveUnknownRequest(t *testing.T) {
	h := setupRequestService(t)
	reviewer := managerIdentity()

	_, err := h.requests.Approve(context.Background(), uuid.NewString(), reviewer)
	if !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Errorf("unknown id: got %v, want not-found error", err)
	}

	_, err = h.requests.Approve(context.Background(), "not-a-uuid", reviewer)
	if !apperr.IsCode(err, apperr.CodeValidation) {
		t.Errorf("malformed id: got %v, want validation error", err)
	}
}

func TestReviewForbiddenForNonManagers(t *testing.T) {
	h := setupRequestService(t)
	ctx := context.Background()

	submitted, err := h.requests.Submit(ctx, SubmitRequestInput{
		FullName:  "Ali Yılmaz",
		RiskLevel: model.RiskLevelInfo,
	}, editorIdentity())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	for _, ident := range []model.Identity{editorIdentity(), viewerIdentity()} {
		if _, err := h.requests.Approve(ctx, submitted.ID, ident); !apperr.IsCode(err, apperr.CodeForbidden) {
			t.Errorf("%s approve: got %v, want forbidden error", ident.Role, err)
		}
		if _, err := h.requests.Reject(ctx, submitted.ID, ident); !apperr.IsCode(err, apperr.CodeForbidden) {
			t.Errorf("%s reject: got %v, want forbidden error", ident.Role, err)
		}
	}

	if req := h.loadRequest(t, submitted.ID); req.Status != model.RequestPending {
		t.Errorf("status = %q after denied reviews, want pending", req.Status)
	}
}

func TestRejectNeverCreatesRecord(t *testing.T) {
	h := setupRequestService(t)
	ctx := context.Background()
	reviewer := managerIdentity()

	submitted, err := h.requests.Submit(ctx, SubmitRequestInput{
		FullName:  "Ali Yılmaz",
		RiskLevel: model.RiskLevelCritical,
		Summary:   "chargeback dispute",
	}, editorIdentity())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	resp, err := h.requests.Reject(ctx, submitted.ID, reviewer)
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}

	if resp.Status != model.RequestRejected {
		t.Errorf("Status = %q, want %q", resp.Status, model.RequestRejected)
	}
	if resp.ReviewedByName != reviewer.DisplayName || resp.ReviewedAt == nil {
		t.Errorf("reviewer stamp missing: %+v", resp)
	}

	if n := h.countRecords(t); n != 0 {
		t.Errorf("records after reject = %d, want 0", n)
	}
	found, err := h.records.Search(ctx, "Ali Yılmaz")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if found != nil {
		t.Errorf("rejected request leaked into search: %+v", found)
	}
}

func TestSearchSeesOnlyApprovedOutcome(t *testing.T) {
	h := setupRequestService(t)
	ctx := context.Background()
	reviewer := managerIdentity()

	rejected, err := h.requests.Submit(ctx, SubmitRequestInput{
		FullName:  "Ali Yılmaz",
		RiskLevel: model.RiskLevelCritical,
		Summary:   "rejected note",
	}, editorIdentity())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	approved, err := h.requests.Submit(ctx, SubmitRequestInput{
		FullName:  "ALİ YILMAZ",
		RiskLevel: model.RiskLevelCaution,
		Summary:   "approved note",
	}, editorIdentity())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if _, err := h.requests.Reject(ctx, rejected.ID, reviewer); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if _, err := h.requests.Approve(ctx, approved.ID, reviewer); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	found, err := h.records.Search(ctx, "ali yilmaz")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if found == nil {
		t.Fatal("approved record not found")
	}
	if found.Summary != "approved note" {
		t.Errorf("Summary = %q, want the approved request's data", found.Summary)
	}
}

func TestListRequestsByStatus(t *testing.T) {
	h := setupRequestService(t)
	ctx := context.Background()
	reviewer := managerIdentity()

	first, err := h.requests.Submit(ctx, SubmitRequestInput{
		FullName:  "Ali Yılmaz",
		RiskLevel: model.RiskLevelInfo,
	}, editorIdentity())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := h.requests.Submit(ctx, SubmitRequestInput{
		FullName:  "Ayşe Kaya",
		RiskLevel: model.RiskLevelCaution,
	}, editorIdentity()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := h.requests.Approve(ctx, first.ID, reviewer); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	pending, total, err := h.requests.List(ctx, RequestFilter{Status: model.RequestPending})
	if err != nil {
		t.Fatalf("List pending: %v", err)
	}
	if total != 1 || len(pending) != 1 || pending[0].FullName != "Ayşe Kaya" {
		t.Errorf("pending list = %d/%d, want the one undecided request", len(pending), total)
	}

	approved, total, err := h.requests.List(ctx, RequestFilter{Status: model.RequestApproved})
	if err != nil {
		t.Fatalf("List approved: %v", err)
	}
	if total != 1 || len(approved) != 1 || approved[0].ID != first.ID {
		t.Errorf("approved list = %d/%d, want the decided request", len(approved), total)
	}

	all, total, err := h.requests.List(ctx, RequestFilter{})
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	if total != 2 || len(all) != 2 {
		t.Errorf("unfiltered list = %d/%d, want 2", len(all), total)
	}
}

// failingRecordService rejects record creation so the approval rollback path
// can be exercised. It also observes the request status at the moment record
// creation starts, to pin down the write ordering of the workflow.
type failingRecordService struct {
	RecordService
	h            *requestHarness
	requestID    string
	statusAtCall string
}

func (f *failingRecordService) CreateRecord(ctx context.Context, input CreateRecordInput, ident model.Identity) (*RecordResponse, error) {
	var req model.RiskRequest
	if err := f.h.db.First(&req, "id = ?", f.requestID).Error; err == nil {
		f.statusAtCall = req.Status
	}
	return nil, errors.New("record store unavailable")
}

func TestApproveRollsBackWhenRecordCreationFails(t *testing.T) {
	h := setupRequestService(t)
	ctx := context.Background()
	reviewer := managerIdentity()

	submitted, err := h.requests.Submit(ctx, SubmitRequestInput{
		FullName:  "Ali Yılmaz",
		RiskLevel: model.RiskLevelCaution,
		Summary:   "late payment",
	}, editorIdentity())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	failing := &failingRecordService{RecordService: h.records, h: h, requestID: submitted.ID}
	requests := NewRequestService(h.reqRepo, failing, repository.NewAuditRepository(h.db))

	_, err = requests.Approve(ctx, submitted.ID, reviewer)
	if err == nil {
		t.Fatal("Approve succeeded despite record creation failure")
	}
	if apperr.IsCode(err, apperr.CodeConsistency) {
		t.Fatalf("rollback succeeded, error must not be a consistency failure: %v", err)
	}

	// The status flip was durable before record creation started.
	if failing.statusAtCall != model.RequestApproved {
		t.Errorf("status at record creation = %q, want %q", failing.statusAtCall, model.RequestApproved)
	}

	// Compensation put the request back where it started, stamp cleared.
	req := h.loadRequest(t, submitted.ID)
	if req.Status != model.RequestPending {
		t.Errorf("status after rollback = %q, want pending", req.Status)
	}
	if req.ReviewedByID != nil || req.ReviewedByName != "" || req.ReviewedAt != nil {
		t.Errorf("reviewer stamp not cleared after rollback: %+v", req)
	}
	if n := h.countRecords(t); n != 0 {
		t.Errorf("records after failed approval = %d, want 0", n)
	}

	// The request is reviewable again once the store recovers.
	record, err := h.requests.Approve(ctx, submitted.ID, reviewer)
	if err != nil {
		t.Fatalf("retry Approve: %v", err)
	}
	if record.FullNameNorm != "ali yilmaz" {
		t.Errorf("retry produced wrong record: %+v", record)
	}
}

// revertFailRepo makes the compensating rollback itself fail.
type revertFailRepo struct {
	repository.RequestRepository
}

func (r *revertFailRepo) RevertToPending(ctx context.Context, id uuid.UUID) error {
	return errors.New("connection reset")
}

func TestApproveReportsConsistencyFailure(t *testing.T) {
	h := setupRequestService(t)
	ctx := context.Background()

	submitted, err := h.requests.Submit(ctx, SubmitRequestInput{
		FullName:  "Ali Yılmaz",
		RiskLevel: model.RiskLevelInfo,
	}, editorIdentity())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	failing := &failingRecordService{RecordService: h.records, h: h, requestID: submitted.ID}
	requests := NewRequestService(&revertFailRepo{h.reqRepo}, failing, repository.NewAuditRepository(h.db))

	_, err = requests.Approve(ctx, submitted.ID, managerIdentity())
	if !apperr.IsCode(err, apperr.CodeConsistency) {
		t.Fatalf("got %v, want consistency error", err)
	}

	// The request is left approved with no record, flagged for manual repair.
	req := h.loadRequest(t, submitted.ID)
	if req.Status != model.RequestApproved {
		t.Errorf("status = %q, want approved (stuck state under repair)", req.Status)
	}
	if n := h.countRecords(t); n != 0 {
		t.Errorf("records = %d, want 0", n)
	}
}
