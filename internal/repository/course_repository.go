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

const courseColumns = `id, course_name, course_code, duration_years, duration_semesters, department, total_fees, admission_fee,
        caution_deposit, yearly_fee, exam_fee_per_sem, seats_total, seats_filled, seats_available, description, eligibility,
        is_active, created_at, updated_at`

// CourseRepository manages persistence for courses and their seat counters.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs a CourseRepository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// List returns courses matching the provided filters with a total count.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	baseQuery := `FROM courses WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.IsActive != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", len(args)+1))
		args = append(args, *filter.IsActive)
	}
	if filter.Department != "" {
		conditions = append(conditions, fmt.Sprintf("department = $%d", len(args)+1))
		args = append(args, filter.Department)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(course_name) LIKE $%d OR LOWER(course_code) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"course_name": true,
		"course_code": true,
		"department":  true,
		"created_at":  true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "course_name"
	}
	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "ASC"
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

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", courseColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// ListActiveSummaries returns the trimmed active-course list used by dropdowns.
func (r *CourseRepository) ListActiveSummaries(ctx context.Context) ([]models.CourseSummary, error) {
	const query = `SELECT id, course_name, course_code, total_fees, seats_total, seats_filled, seats_available
        FROM courses WHERE is_active = TRUE ORDER BY course_name ASC`
	var summaries []models.CourseSummary
	if err := r.db.SelectContext(ctx, &summaries, query); err != nil {
		return nil, fmt.Errorf("list active courses: %w", err)
	}
	return summaries, nil
}

// FindByID fetches a course by identifier.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	query := fmt.Sprintf("SELECT %s FROM courses WHERE id = $1 LIMIT 1", courseColumns)
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find course by id: %w", err)
	}
	return &course, nil
}

// FindByName fetches a course by its display name.
func (r *CourseRepository) FindByName(ctx context.Context, name string) (*models.Course, error) {
	query := fmt.Sprintf("SELECT %s FROM courses WHERE LOWER(course_name) = LOWER($1) LIMIT 1", courseColumns)
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, name); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find course by name: %w", err)
	}
	return &course, nil
}

// ExistsByCode checks if a course with the given code exists, optionally excluding an ID.
func (r *CourseRepository) ExistsByCode(ctx context.Context, code, excludeID string) (bool, error) {
	query := "SELECT 1 FROM courses WHERE course_code = $1"
	args := []interface{}{code}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check course code: %w", err)
	}
	return true, nil
}

// Create inserts a new course. seats_available is stored derived from the capacity columns.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now
	course.SeatsAvailable = course.SeatsTotal - course.SeatsFilled
	const query = `INSERT INTO courses (id, course_name, course_code, duration_years, duration_semesters, department, total_fees, admission_fee,
        caution_deposit, yearly_fee, exam_fee_per_sem, seats_total, seats_filled, seats_available, description, eligibility, is_active, created_at, updated_at)
        VALUES (:id, :course_name, :course_code, :duration_years, :duration_semesters, :department, :total_fees, :admission_fee,
        :caution_deposit, :yearly_fee, :exam_fee_per_sem, :seats_total, :seats_filled, :seats_available, :description, :eligibility, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update modifies course metadata and capacity. Raising or lowering seats_total
// re-derives seats_available against the current fill; the guard rejects a
// total below the already-filled count.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET course_name = :course_name, course_code = :course_code, duration_years = :duration_years,
        duration_semesters = :duration_semesters, department = :department, total_fees = :total_fees, admission_fee = :admission_fee,
        caution_deposit = :caution_deposit, yearly_fee = :yearly_fee, exam_fee_per_sem = :exam_fee_per_sem,
        seats_total = :seats_total, seats_available = :seats_total - seats_filled, description = :description,
        eligibility = :eligibility, is_active = :is_active, updated_at = :updated_at
        WHERE id = :id AND seats_filled <= :seats_total`
	res, err := r.db.NamedExecContext(ctx, query, course)
	if err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

const adjustSeatsQuery = `UPDATE courses SET seats_filled = seats_filled + $2,
        seats_available = seats_total - (seats_filled + $2), updated_at = $3
        WHERE id = $1 AND seats_filled + $2 >= 0 AND seats_filled + $2 <= seats_total
        RETURNING ` + courseColumns

// AdjustFilledSeats applies a relative seat delta in one guarded statement.
// The WHERE clause is the occupancy invariant; a concurrent increment past
// capacity simply matches zero rows and surfaces as sql.ErrNoRows.
func (r *CourseRepository) AdjustFilledSeats(ctx context.Context, id string, delta int) (*models.Course, error) {
	var course models.Course
	err := r.db.GetContext(ctx, &course, adjustSeatsQuery, id, delta, time.Now().UTC())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("adjust course seats: %w", err)
	}
	return &course, nil
}

// AdjustFilledSeatsIn applies a relative seat delta inside the caller's transaction.
func (r *CourseRepository) AdjustFilledSeatsIn(ctx context.Context, tx *sqlx.Tx, id string, delta int) (*models.Course, error) {
	var course models.Course
	err := tx.GetContext(ctx, &course, adjustSeatsQuery, id, delta, time.Now().UTC())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("adjust course seats: %w", err)
	}
	return &course, nil
}

// SetFilledSeats sets the absolute filled count, for manual reconciliation.
func (r *CourseRepository) SetFilledSeats(ctx context.Context, id string, filled int) (*models.Course, error) {
	const query = `UPDATE courses SET seats_filled = $2, seats_available = seats_total - $2, updated_at = $3
        WHERE id = $1 AND $2 >= 0 AND $2 <= seats_total
        RETURNING ` + courseColumns
	var course models.Course
	err := r.db.GetContext(ctx, &course, query, id, filled, time.Now().UTC())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("set course seats: %w", err)
	}
	return &course, nil
}

// Delete removes a course permanently.
func (r *CourseRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM courses WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
