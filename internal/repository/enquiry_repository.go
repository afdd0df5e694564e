package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campushq/admissions-api/internal/models"
)

const enquiryColumns = `id, student_name, email, phone, course_applied, enquiry_date, status, source, address, remarks, follow_up_date, created_at, updated_at`

// EnquiryRepository manages persistence for admission enquiries.
type EnquiryRepository struct {
	db *sqlx.DB
}

// NewEnquiryRepository constructs an EnquiryRepository.
func NewEnquiryRepository(db *sqlx.DB) *EnquiryRepository {
	return &EnquiryRepository{db: db}
}

// List returns enquiries matching the provided filters with a total count.
func (r *EnquiryRepository) List(ctx context.Context, filter models.EnquiryFilter) ([]models.Enquiry, int, error) {
	baseQuery := `FROM enquiries WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.CourseApplied != "" {
		conditions = append(conditions, fmt.Sprintf("course_applied = $%d", len(args)+1))
		args = append(args, filter.CourseApplied)
	}
	if filter.Source != "" {
		conditions = append(conditions, fmt.Sprintf("source = $%d", len(args)+1))
		args = append(args, filter.Source)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(student_name) LIKE $%d OR LOWER(email) LIKE $%d OR phone LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"enquiry_date": true,
		"student_name": true,
		"status":       true,
		"created_at":   true,
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

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", enquiryColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var enquiries []models.Enquiry
	if err := r.db.SelectContext(ctx, &enquiries, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list enquiries: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enquiries: %w", err)
	}
	return enquiries, total, nil
}

// FindByID fetches an enquiry by identifier.
func (r *EnquiryRepository) FindByID(ctx context.Context, id string) (*models.Enquiry, error) {
	query := fmt.Sprintf("SELECT %s FROM enquiries WHERE id = $1 LIMIT 1", enquiryColumns)
	var enquiry models.Enquiry
	if err := r.db.GetContext(ctx, &enquiry, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find enquiry by id: %w", err)
	}
	return &enquiry, nil
}

// Create inserts a new enquiry.
func (r *EnquiryRepository) Create(ctx context.Context, enquiry *models.Enquiry) error {
	if enquiry.ID == "" {
		enquiry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enquiry.CreatedAt.IsZero() {
		enquiry.CreatedAt = now
	}
	if enquiry.EnquiryDate.IsZero() {
		enquiry.EnquiryDate = now
	}
	enquiry.UpdatedAt = now
	const query = `INSERT INTO enquiries (id, student_name, email, phone, course_applied, enquiry_date, status, source, address, remarks, follow_up_date, created_at, updated_at)
        VALUES (:id, :student_name, :email, :phone, :course_applied, :enquiry_date, :status, :source, :address, :remarks, :follow_up_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enquiry); err != nil {
		return fmt.Errorf("create enquiry: %w", err)
	}
	return nil
}

// Update modifies an existing enquiry.
func (r *EnquiryRepository) Update(ctx context.Context, enquiry *models.Enquiry) error {
	enquiry.UpdatedAt = time.Now().UTC()
	const query = `UPDATE enquiries SET student_name = :student_name, email = :email, phone = :phone, course_applied = :course_applied, enquiry_date = :enquiry_date, status = :status, source = :source, address = :address, remarks = :remarks, follow_up_date = :follow_up_date, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, enquiry); err != nil {
		return fmt.Errorf("update enquiry: %w", err)
	}
	return nil
}

// UpdateStatus sets the funnel status of an enquiry.
func (r *EnquiryRepository) UpdateStatus(ctx context.Context, id string, status models.EnquiryStatus) error {
	const query = `UPDATE enquiries SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update enquiry status: %w", err)
	}
	return nil
}

// UpdateStatusIn sets the funnel status inside the caller's transaction.
func (r *EnquiryRepository) UpdateStatusIn(ctx context.Context, tx *sqlx.Tx, id string, status models.EnquiryStatus) error {
	const query = `UPDATE enquiries SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update enquiry status: %w", err)
	}
	return nil
}

// Delete removes an enquiry permanently.
func (r *EnquiryRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM enquiries WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete enquiry: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountSince returns the number of enquiries created after the given time.
func (r *EnquiryRepository) CountSince(ctx context.Context, since time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM enquiries WHERE created_at >= $1`
	var total int
	if err := r.db.GetContext(ctx, &total, query, since); err != nil {
		return 0, fmt.Errorf("count recent enquiries: %w", err)
	}
	return total, nil
}

// StatusCounts returns enquiry totals grouped by status.
func (r *EnquiryRepository) StatusCounts(ctx context.Context) ([]models.StatusCount, error) {
	const query = `SELECT status, COUNT(*) AS count FROM enquiries GROUP BY status`
	var counts []models.StatusCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("enquiry status counts: %w", err)
	}
	return counts, nil
}

// ListRecent returns the most recently created enquiries.
func (r *EnquiryRepository) ListRecent(ctx context.Context, limit int) ([]models.Enquiry, error) {
	if limit <= 0 || limit > 50 {
		limit = 5
	}
	query := fmt.Sprintf("SELECT %s FROM enquiries ORDER BY created_at DESC LIMIT %d", enquiryColumns, limit)
	var enquiries []models.Enquiry
	if err := r.db.SelectContext(ctx, &enquiries, query); err != nil {
		return nil, fmt.Errorf("list recent enquiries: %w", err)
	}
	return enquiries, nil
}
