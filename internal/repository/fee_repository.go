package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/campushq/admissions-api/internal/models"
)

// ErrDuplicateReceiptNumber signals that the allocated receipt number collided
// with an already-issued one. Callers re-allocate and retry.
var ErrDuplicateReceiptNumber = errors.New("receipt number already issued")

const feeColumns = `id, student_id, student_name, student_code, course_name, fee_type, academic_year, semester,
        total_amount, paid_amount, pending_amount, payment_date, payment_mode, transaction_id, receipt_number,
        payment_status, due_date, paid_by, remarks, recorded_by, recorded_by_name, created_at, updated_at`

// FeeRepository manages persistence for payment ledger entries.
type FeeRepository struct {
	db *sqlx.DB
}

// NewFeeRepository constructs a FeeRepository.
func NewFeeRepository(db *sqlx.DB) *FeeRepository {
	return &FeeRepository{db: db}
}

// List returns fees matching the provided filters with a total count and monetary totals.
func (r *FeeRepository) List(ctx context.Context, filter models.FeeFilter) ([]models.Fee, int, *models.FeeTotals, error) {
	baseQuery := `FROM fees WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.PaymentStatus != "" {
		conditions = append(conditions, fmt.Sprintf("payment_status = $%d", len(args)+1))
		args = append(args, filter.PaymentStatus)
	}
	if filter.FeeType != "" {
		conditions = append(conditions, fmt.Sprintf("fee_type = $%d", len(args)+1))
		args = append(args, filter.FeeType)
	}
	if filter.AcademicYear != "" {
		conditions = append(conditions, fmt.Sprintf("academic_year = $%d", len(args)+1))
		args = append(args, filter.AcademicYear)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"payment_date":   true,
		"total_amount":   true,
		"receipt_number": true,
		"created_at":     true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}
	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", feeColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var fees []models.Fee
	if err := r.db.SelectContext(ctx, &fees, listQuery, args...); err != nil {
		return nil, 0, nil, fmt.Errorf("list fees: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, nil, fmt.Errorf("count fees: %w", err)
	}

	totalsQuery := fmt.Sprintf(`SELECT COALESCE(SUM(total_amount), 0) AS total_amount,
        COALESCE(SUM(paid_amount), 0) AS total_paid,
        COALESCE(SUM(pending_amount), 0) AS total_pending %s`, baseQuery)
	var totals models.FeeTotals
	if err := r.db.GetContext(ctx, &totals, totalsQuery, args...); err != nil {
		return nil, 0, nil, fmt.Errorf("fee totals: %w", err)
	}

	return fees, total, &totals, nil
}

// FindByID fetches a fee by identifier.
func (r *FeeRepository) FindByID(ctx context.Context, id string) (*models.Fee, error) {
	query := fmt.Sprintf("SELECT %s FROM fees WHERE id = $1 LIMIT 1", feeColumns)
	var fee models.Fee
	if err := r.db.GetContext(ctx, &fee, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find fee by id: %w", err)
	}
	return &fee, nil
}

// FindByReceiptNumber fetches a fee by its issued receipt number.
func (r *FeeRepository) FindByReceiptNumber(ctx context.Context, receipt string) (*models.Fee, error) {
	query := fmt.Sprintf("SELECT %s FROM fees WHERE receipt_number = $1 LIMIT 1", feeColumns)
	var fee models.Fee
	if err := r.db.GetContext(ctx, &fee, query, receipt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find fee by receipt: %w", err)
	}
	return &fee, nil
}

const feeInsertQuery = `INSERT INTO fees (id, student_id, student_name, student_code, course_name, fee_type, academic_year, semester,
        total_amount, paid_amount, pending_amount, payment_date, payment_mode, transaction_id, receipt_number,
        payment_status, due_date, paid_by, remarks, recorded_by, recorded_by_name, created_at, updated_at)
        VALUES (:id, :student_id, :student_name, :student_code, :course_name, :fee_type, :academic_year, :semester,
        :total_amount, :paid_amount, :pending_amount, :payment_date, :payment_mode, :transaction_id, :receipt_number,
        :payment_status, :due_date, :paid_by, :remarks, :recorded_by, :recorded_by_name, :created_at, :updated_at)`

// CreateIn inserts a new ledger entry inside the caller's transaction, so the
// entry commits together with the sequence value behind its receipt number. A
// unique violation on the receipt column surfaces as ErrDuplicateReceiptNumber.
func (r *FeeRepository) CreateIn(ctx context.Context, tx *sqlx.Tx, fee *models.Fee) error {
	if fee.ID == "" {
		fee.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if fee.CreatedAt.IsZero() {
		fee.CreatedAt = now
	}
	if fee.PaymentDate.IsZero() {
		fee.PaymentDate = now
	}
	fee.UpdatedAt = now
	if _, err := tx.NamedExecContext(ctx, feeInsertQuery, fee); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" && strings.Contains(pqErr.Constraint, "receipt_number") {
			return ErrDuplicateReceiptNumber
		}
		return fmt.Errorf("create fee: %w", err)
	}
	return nil
}

// Update modifies the mutable fields of a ledger entry. Receipt number and
// student linkage are immutable once issued.
func (r *FeeRepository) Update(ctx context.Context, fee *models.Fee) error {
	fee.UpdatedAt = time.Now().UTC()
	const query = `UPDATE fees SET fee_type = :fee_type, academic_year = :academic_year, semester = :semester,
        total_amount = :total_amount, paid_amount = :paid_amount, pending_amount = :pending_amount,
        payment_date = :payment_date, payment_mode = :payment_mode, transaction_id = :transaction_id,
        payment_status = :payment_status, due_date = :due_date, paid_by = :paid_by, remarks = :remarks,
        updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, fee); err != nil {
		return fmt.Errorf("update fee: %w", err)
	}
	return nil
}

// Delete removes a ledger entry permanently.
func (r *FeeRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM fees WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete fee: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListByStudent returns all ledger entries for one student, newest first.
func (r *FeeRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Fee, error) {
	query := fmt.Sprintf("SELECT %s FROM fees WHERE student_id = $1 ORDER BY payment_date DESC, created_at DESC", feeColumns)
	var fees []models.Fee
	if err := r.db.SelectContext(ctx, &fees, query, studentID); err != nil {
		return nil, fmt.Errorf("list fees by student: %w", err)
	}
	return fees, nil
}

// StudentTotals aggregates the monetary position of one student over all entries.
func (r *FeeRepository) StudentTotals(ctx context.Context, studentID string) (*models.FeeTotals, error) {
	const query = `SELECT COALESCE(SUM(total_amount), 0) AS total_amount,
        COALESCE(SUM(paid_amount), 0) AS total_paid,
        COALESCE(SUM(pending_amount), 0) AS total_pending
        FROM fees WHERE student_id = $1`
	var totals models.FeeTotals
	if err := r.db.GetContext(ctx, &totals, query, studentID); err != nil {
		return nil, fmt.Errorf("student fee totals: %w", err)
	}
	return &totals, nil
}

// ListUnsettled returns every entry that still carries a pending amount,
// ordered so the most overdue surface first.
func (r *FeeRepository) ListUnsettled(ctx context.Context) ([]models.Fee, error) {
	query := fmt.Sprintf(`SELECT %s FROM fees
        WHERE payment_status IN ($1, $2, $3)
        ORDER BY due_date ASC NULLS LAST, created_at DESC`, feeColumns)
	var fees []models.Fee
	if err := r.db.SelectContext(ctx, &fees, query, models.FeeStatusPending, models.FeeStatusPartial, models.FeeStatusOverdue); err != nil {
		return nil, fmt.Errorf("list unsettled fees: %w", err)
	}
	return fees, nil
}

// ListDuePastDate returns unsettled entries whose due date has passed, for the
// overdue re-derivation sweep.
func (r *FeeRepository) ListDuePastDate(ctx context.Context, asOf time.Time) ([]models.Fee, error) {
	query := fmt.Sprintf(`SELECT %s FROM fees
        WHERE payment_status IN ($1, $2) AND due_date IS NOT NULL AND due_date < $3`, feeColumns)
	var fees []models.Fee
	if err := r.db.SelectContext(ctx, &fees, query, models.FeeStatusPending, models.FeeStatusPartial, asOf); err != nil {
		return nil, fmt.Errorf("list past-due fees: %w", err)
	}
	return fees, nil
}

// UpdateStatus rewrites just the derived payment status of an entry.
func (r *FeeRepository) UpdateStatus(ctx context.Context, id string, status models.FeeStatus) error {
	const query = `UPDATE fees SET payment_status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update fee status: %w", err)
	}
	return nil
}

// Totals aggregates monetary sums over the whole ledger, for the dashboard.
func (r *FeeRepository) Totals(ctx context.Context) (*models.FeeTotals, error) {
	const query = `SELECT COALESCE(SUM(total_amount), 0) AS total_amount,
        COALESCE(SUM(paid_amount), 0) AS total_paid,
        COALESCE(SUM(pending_amount), 0) AS total_pending
        FROM fees`
	var totals models.FeeTotals
	if err := r.db.GetContext(ctx, &totals, query); err != nil {
		return nil, fmt.Errorf("fee totals: %w", err)
	}
	return &totals, nil
}
