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

// ErrDuplicateStudentID signals that the allocated student code collided with
// an already-issued one. Callers re-allocate and retry.
var ErrDuplicateStudentID = errors.New("student code already issued")

const studentColumns = `id, student_id, enquiry_id, full_name, email, phone, date_of_birth, gender, course, year, semester, admission_date,
        address_street, address_city, address_state, address_pincode, guardian_name, guardian_phone, guardian_relation,
        blood_group, status, remarks, created_at, updated_at`

// StudentRepository manages persistence for enrolled students.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students matching the provided filters with a total count.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	baseQuery := `FROM students WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Course != "" {
		conditions = append(conditions, fmt.Sprintf("course = $%d", len(args)+1))
		args = append(args, filter.Course)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Year > 0 {
		conditions = append(conditions, fmt.Sprintf("year = $%d", len(args)+1))
		args = append(args, filter.Year)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(full_name) LIKE $%d OR LOWER(student_id) LIKE $%d OR LOWER(email) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"full_name":      true,
		"student_id":     true,
		"admission_date": true,
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

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", studentColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// ListAll returns every student matching the filter without pagination, for exports.
func (r *StudentRepository) ListAll(ctx context.Context, filter models.StudentFilter) ([]models.Student, error) {
	filter.Page = 1
	filter.PageSize = 100

	var all []models.Student
	for {
		batch, total, err := r.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(all) >= total || len(batch) == 0 {
			return all, nil
		}
		filter.Page++
	}
}

// FindByID fetches a student by internal identifier.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE id = $1 LIMIT 1", studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student by id: %w", err)
	}
	return &student, nil
}

// FindByStudentID fetches a student by the issued STU code.
func (r *StudentRepository) FindByStudentID(ctx context.Context, studentID string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE student_id = $1 LIMIT 1", studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student by student id: %w", err)
	}
	return &student, nil
}

// FindByEnquiryID fetches the student created from a given enquiry, if any.
func (r *StudentRepository) FindByEnquiryID(ctx context.Context, enquiryID string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE enquiry_id = $1 LIMIT 1", studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, enquiryID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student by enquiry id: %w", err)
	}
	return &student, nil
}

// ExistsByEmail checks if a student with the given email exists, optionally excluding an ID.
func (r *StudentRepository) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	query := "SELECT 1 FROM students WHERE LOWER(email) = LOWER($1)"
	args := []interface{}{email}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check student email: %w", err)
	}
	return true, nil
}

const studentInsertQuery = `INSERT INTO students (id, student_id, enquiry_id, full_name, email, phone, date_of_birth, gender, course, year, semester, admission_date,
        address_street, address_city, address_state, address_pincode, guardian_name, guardian_phone, guardian_relation,
        blood_group, status, remarks, created_at, updated_at)
        VALUES (:id, :student_id, :enquiry_id, :full_name, :email, :phone, :date_of_birth, :gender, :course, :year, :semester, :admission_date,
        :address_street, :address_city, :address_state, :address_pincode, :guardian_name, :guardian_phone, :guardian_relation,
        :blood_group, :status, :remarks, :created_at, :updated_at)`

// Create inserts a new student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	prepareStudentInsert(student)
	if _, err := r.db.NamedExecContext(ctx, studentInsertQuery, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// CreateIn inserts a new student inside the caller's transaction, so the record
// commits together with the sequence value that produced its student code. A
// unique violation on the code column surfaces as ErrDuplicateStudentID.
func (r *StudentRepository) CreateIn(ctx context.Context, tx *sqlx.Tx, student *models.Student) error {
	prepareStudentInsert(student)
	if _, err := tx.NamedExecContext(ctx, studentInsertQuery, student); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" && strings.Contains(pqErr.Constraint, "student_id") {
			return ErrDuplicateStudentID
		}
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

func prepareStudentInsert(student *models.Student) {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	if student.AdmissionDate.IsZero() {
		student.AdmissionDate = now
	}
	student.UpdatedAt = now
}

// Update modifies an existing student. The issued student code is immutable.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET full_name = :full_name, email = :email, phone = :phone, date_of_birth = :date_of_birth, gender = :gender,
        course = :course, year = :year, semester = :semester, admission_date = :admission_date,
        address_street = :address_street, address_city = :address_city, address_state = :address_state, address_pincode = :address_pincode,
        guardian_name = :guardian_name, guardian_phone = :guardian_phone, guardian_relation = :guardian_relation,
        blood_group = :blood_group, status = :status, remarks = :remarks, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// UpdateStatus sets the administrative status of a student.
func (r *StudentRepository) UpdateStatus(ctx context.Context, id string, status models.StudentStatus) error {
	const query = `UPDATE students SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update student status: %w", err)
	}
	return nil
}

// Delete removes a student permanently.
func (r *StudentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM students WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountSince returns the number of students admitted after the given time.
func (r *StudentRepository) CountSince(ctx context.Context, since time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM students WHERE created_at >= $1`
	var total int
	if err := r.db.GetContext(ctx, &total, query, since); err != nil {
		return 0, fmt.Errorf("count recent students: %w", err)
	}
	return total, nil
}

// StatusCounts returns student totals grouped by status.
func (r *StudentRepository) StatusCounts(ctx context.Context) ([]models.StatusCount, error) {
	const query = `SELECT status, COUNT(*) AS count FROM students GROUP BY status`
	var counts []models.StatusCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("student status counts: %w", err)
	}
	return counts, nil
}

// ListRecent returns the most recently admitted students.
func (r *StudentRepository) ListRecent(ctx context.Context, limit int) ([]models.Student, error) {
	if limit <= 0 || limit > 50 {
		limit = 5
	}
	query := fmt.Sprintf("SELECT %s FROM students ORDER BY created_at DESC LIMIT %d", studentColumns, limit)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query); err != nil {
		return nil, fmt.Errorf("list recent students: %w", err)
	}
	return students, nil
}
