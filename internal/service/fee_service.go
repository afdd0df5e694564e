package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/campushq/admissions-api/internal/models"
	"github.com/campushq/admissions-api/internal/repository"
	appErrors "github.com/campushq/admissions-api/pkg/errors"
)

type feeRepository interface {
	List(ctx context.Context, filter models.FeeFilter) ([]models.Fee, int, *models.FeeTotals, error)
	FindByID(ctx context.Context, id string) (*models.Fee, error)
	CreateIn(ctx context.Context, tx *sqlx.Tx, fee *models.Fee) error
	Update(ctx context.Context, fee *models.Fee) error
	UpdateStatus(ctx context.Context, id string, status models.FeeStatus) error
	ListDuePastDate(ctx context.Context, asOf time.Time) ([]models.Fee, error)
	ListUnsettled(ctx context.Context) ([]models.Fee, error)
	Delete(ctx context.Context, id string) error
}

type feeStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type receiptNumberAllocator interface {
	NextReceiptNumber(ctx context.Context, tx *sqlx.Tx) (string, error)
}

// CreateFeeRequest describes a payment ledger entry creation payload. The
// derived fields (pending amount, status, receipt number) are computed, never
// accepted.
type CreateFeeRequest struct {
	StudentID     string     `json:"student_id" validate:"required"`
	FeeType       string     `json:"fee_type" validate:"required,oneof='Admission Fee' 'Yearly Fee' 'Semester Fee' 'Exam Fee' 'Caution Deposit' Other"`
	AcademicYear  string     `json:"academic_year" validate:"required"`
	Semester      *int       `json:"semester"`
	TotalAmount   float64    `json:"total_amount" validate:"required,gt=0"`
	PaidAmount    float64    `json:"paid_amount" validate:"min=0"`
	PaymentDate   *time.Time `json:"payment_date"`
	PaymentMode   string     `json:"payment_mode" validate:"required,oneof=Cash UPI Card 'Bank Transfer' Cheque Other"`
	TransactionID string     `json:"transaction_id"`
	DueDate       *time.Time `json:"due_date"`
	PaidBy        string     `json:"paid_by"`
	Remarks       string     `json:"remarks"`

	ActorID   string `json:"-"`
	ActorName string `json:"-"`
}

// UpdateFeeRequest describes a ledger entry correction payload.
type UpdateFeeRequest struct {
	FeeType       string     `json:"fee_type" validate:"required,oneof='Admission Fee' 'Yearly Fee' 'Semester Fee' 'Exam Fee' 'Caution Deposit' Other"`
	AcademicYear  string     `json:"academic_year" validate:"required"`
	Semester      *int       `json:"semester"`
	TotalAmount   float64    `json:"total_amount" validate:"required,gt=0"`
	PaidAmount    float64    `json:"paid_amount" validate:"min=0"`
	PaymentDate   *time.Time `json:"payment_date"`
	PaymentMode   string     `json:"payment_mode" validate:"required,oneof=Cash UPI Card 'Bank Transfer' Cheque Other"`
	TransactionID string     `json:"transaction_id"`
	DueDate       *time.Time `json:"due_date"`
	PaidBy        string     `json:"paid_by"`
	Remarks       string     `json:"remarks"`

	ActorID string `json:"-"`
}

// FeeListResult bundles a fee page with its monetary totals.
type FeeListResult struct {
	Fees       []models.Fee       `json:"fees"`
	Totals     models.FeeTotals   `json:"totals"`
	Pagination *models.Pagination `json:"-"`
}

// FeeService manages the payment ledger. Status and pending amount are always
// derived from the recorded amounts; receipt numbers come from the per-year
// counter and commit atomically with the entry.
type FeeService struct {
	repo      feeRepository
	students  feeStudentReader
	sequences receiptNumberAllocator
	tx        txRunner
	audit     auditWriter
	now       func() time.Time
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFeeService constructs a FeeService.
func NewFeeService(repo feeRepository, students feeStudentReader, sequences receiptNumberAllocator, tx txRunner, audit auditWriter, validate *validator.Validate, logger *zap.Logger) *FeeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeeService{repo: repo, students: students, sequences: sequences, tx: tx, audit: audit, now: time.Now, validator: validate, logger: logger}
}

// List returns ledger entries with pagination metadata and monetary totals.
func (s *FeeService) List(ctx context.Context, filter models.FeeFilter) (*FeeListResult, error) {
	fees, total, totals, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list fees")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return &FeeListResult{
		Fees:       fees,
		Totals:     *totals,
		Pagination: &models.Pagination{Page: page, PageSize: size, TotalCount: total},
	}, nil
}

// Get returns a single ledger entry.
func (s *FeeService) Get(ctx context.Context, id string) (*models.Fee, error) {
	fee, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "fee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee")
	}
	return fee, nil
}

// Create records a payment. The receipt number allocation and the ledger
// insert commit in one transaction.
func (s *FeeService) Create(ctx context.Context, req CreateFeeRequest) (*models.Fee, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid fee payload")
	}
	if req.PaidAmount > req.TotalAmount {
		return nil, appErrors.Clone(appErrors.ErrValidation, "paid amount cannot exceed total amount")
	}
	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	now := s.now().UTC()
	fee := &models.Fee{
		StudentID:      student.ID,
		StudentName:    student.FullName,
		StudentCode:    student.StudentID,
		CourseName:     student.Course,
		FeeType:        models.FeeType(req.FeeType),
		AcademicYear:   req.AcademicYear,
		Semester:       req.Semester,
		TotalAmount:    req.TotalAmount,
		PaidAmount:     req.PaidAmount,
		PaymentMode:    req.PaymentMode,
		TransactionID:  req.TransactionID,
		DueDate:        req.DueDate,
		PaidBy:         req.PaidBy,
		Remarks:        req.Remarks,
		RecordedBy:     req.ActorID,
		RecordedByName: req.ActorName,
	}
	if req.PaymentDate != nil {
		fee.PaymentDate = *req.PaymentDate
	}
	if fee.PaidBy == "" {
		fee.PaidBy = student.FullName
	}
	ApplyFeeDerivation(fee, now)

	// A receipt number collision re-allocates in a fresh transaction; the
	// unique constraint backstops the counter.
	for attempt := 1; ; attempt++ {
		err = s.tx.RunInTx(ctx, func(tx *sqlx.Tx) error {
			receipt, err := s.sequences.NextReceiptNumber(ctx, tx)
			if err != nil {
				return err
			}
			fee.ReceiptNumber = receipt
			return s.repo.CreateIn(ctx, tx, fee)
		})
		if err == repository.ErrDuplicateReceiptNumber && attempt < allocationAttempts {
			s.logger.Warn("receipt number collision, reallocating",
				zap.String("student_id", fee.StudentID), zap.Int("attempt", attempt))
			continue
		}
		break
	}
	if err != nil {
		switch {
		case err == repository.ErrDuplicateReceiptNumber:
			return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "receipt number collision persisted")
		case repository.IsUnavailable(err):
			return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "store unavailable while recording payment")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
		}
	}

	s.logger.Info("payment recorded",
		zap.String("fee_id", fee.ID),
		zap.String("receipt", fee.ReceiptNumber),
		zap.Float64("paid", fee.PaidAmount))
	s.writeAudit(ctx, req.ActorID, models.AuditActionFeeCreate, fee)
	return fee, nil
}

// Update corrects a ledger entry and re-derives its status.
func (s *FeeService) Update(ctx context.Context, id string, req UpdateFeeRequest) (*models.Fee, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid fee payload")
	}
	if req.PaidAmount > req.TotalAmount {
		return nil, appErrors.Clone(appErrors.ErrValidation, "paid amount cannot exceed total amount")
	}
	fee, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "fee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee")
	}
	fee.FeeType = models.FeeType(req.FeeType)
	fee.AcademicYear = req.AcademicYear
	fee.Semester = req.Semester
	fee.TotalAmount = req.TotalAmount
	fee.PaidAmount = req.PaidAmount
	fee.PaymentMode = req.PaymentMode
	fee.TransactionID = req.TransactionID
	fee.DueDate = req.DueDate
	fee.PaidBy = req.PaidBy
	fee.Remarks = req.Remarks
	if req.PaymentDate != nil {
		fee.PaymentDate = *req.PaymentDate
	}
	ApplyFeeDerivation(fee, s.now().UTC())
	if err := s.repo.Update(ctx, fee); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update fee")
	}
	s.writeAudit(ctx, req.ActorID, models.AuditActionFeeUpdate, fee)
	return fee, nil
}

// Delete removes a ledger entry permanently.
func (s *FeeService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "fee not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete fee")
	}
	return nil
}

// ListUnsettled returns every entry that still carries a pending amount.
func (s *FeeService) ListUnsettled(ctx context.Context) ([]models.Fee, error) {
	fees, err := s.repo.ListUnsettled(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list unsettled fees")
	}
	return fees, nil
}

// SweepOverdue re-derives the status of unsettled entries whose due date has
// passed. Runs periodically so Overdue does not depend on reads.
func (s *FeeService) SweepOverdue(ctx context.Context) (int, error) {
	now := s.now().UTC()
	fees, err := s.repo.ListDuePastDate(ctx, now)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list past-due fees")
	}
	updated := 0
	for i := range fees {
		fee := &fees[i]
		status := DeriveFeeStatus(fee.TotalAmount, fee.PaidAmount, fee.DueDate, now)
		if status == fee.PaymentStatus {
			continue
		}
		if err := s.repo.UpdateStatus(ctx, fee.ID, status); err != nil {
			s.logger.Error("overdue sweep update failed", zap.String("fee_id", fee.ID), zap.Error(err))
			continue
		}
		updated++
	}
	if updated > 0 {
		s.logger.Info("overdue sweep applied", zap.Int("updated", updated))
	}
	return updated, nil
}

func (s *FeeService) writeAudit(ctx context.Context, actorID, action string, fee *models.Fee) {
	if s.audit == nil || actorID == "" {
		return
	}
	entry := &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "fee",
		ResourceID: &fee.ID,
		NewValues:  []byte(`{"receipt_number":"` + fee.ReceiptNumber + `"}`),
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("fee audit log failed", zap.String("fee_id", fee.ID), zap.Error(err))
	}
}
