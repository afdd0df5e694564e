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

const communicationColumns = `id, enquiry_id, student_id, communication_type, subject, notes, communication_date,
        follow_up_required, follow_up_date, follow_up_completed, recorded_by, recorded_by_name, created_at, updated_at`

// CommunicationRepository manages persistence for communication log entries.
type CommunicationRepository struct {
	db *sqlx.DB
}

// NewCommunicationRepository constructs a CommunicationRepository.
func NewCommunicationRepository(db *sqlx.DB) *CommunicationRepository {
	return &CommunicationRepository{db: db}
}

// List returns communications matching the provided filters with a total count.
func (r *CommunicationRepository) List(ctx context.Context, filter models.CommunicationFilter) ([]models.Communication, int, error) {
	baseQuery := `FROM communications WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.EnquiryID != "" {
		conditions = append(conditions, fmt.Sprintf("enquiry_id = $%d", len(args)+1))
		args = append(args, filter.EnquiryID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Type != "" {
		conditions = append(conditions, fmt.Sprintf("communication_type = $%d", len(args)+1))
		args = append(args, filter.Type)
	}
	if filter.FollowUpRequired != nil {
		conditions = append(conditions, fmt.Sprintf("follow_up_required = $%d", len(args)+1))
		args = append(args, *filter.FollowUpRequired)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"communication_date": true,
		"follow_up_date":     true,
		"created_at":         true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "communication_date"
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

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", communicationColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var communications []models.Communication
	if err := r.db.SelectContext(ctx, &communications, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list communications: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count communications: %w", err)
	}
	return communications, total, nil
}

// FindByID fetches a communication by identifier.
func (r *CommunicationRepository) FindByID(ctx context.Context, id string) (*models.Communication, error) {
	query := fmt.Sprintf("SELECT %s FROM communications WHERE id = $1 LIMIT 1", communicationColumns)
	var comm models.Communication
	if err := r.db.GetContext(ctx, &comm, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find communication by id: %w", err)
	}
	return &comm, nil
}

const communicationInsertQuery = `INSERT INTO communications (id, enquiry_id, student_id, communication_type, subject, notes, communication_date,
        follow_up_required, follow_up_date, follow_up_completed, recorded_by, recorded_by_name, created_at, updated_at)
        VALUES (:id, :enquiry_id, :student_id, :communication_type, :subject, :notes, :communication_date,
        :follow_up_required, :follow_up_date, :follow_up_completed, :recorded_by, :recorded_by_name, :created_at, :updated_at)`

// Create inserts a new communication log entry.
func (r *CommunicationRepository) Create(ctx context.Context, comm *models.Communication) error {
	prepareCommunicationInsert(comm)
	if _, err := r.db.NamedExecContext(ctx, communicationInsertQuery, comm); err != nil {
		return fmt.Errorf("create communication: %w", err)
	}
	return nil
}

// CreateIn inserts a new communication log entry inside the caller's transaction.
func (r *CommunicationRepository) CreateIn(ctx context.Context, tx *sqlx.Tx, comm *models.Communication) error {
	prepareCommunicationInsert(comm)
	if _, err := tx.NamedExecContext(ctx, communicationInsertQuery, comm); err != nil {
		return fmt.Errorf("create communication: %w", err)
	}
	return nil
}

func prepareCommunicationInsert(comm *models.Communication) {
	if comm.ID == "" {
		comm.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if comm.CreatedAt.IsZero() {
		comm.CreatedAt = now
	}
	if comm.CommunicationDate.IsZero() {
		comm.CommunicationDate = now
	}
	comm.UpdatedAt = now
}

// Update modifies an existing communication log entry.
func (r *CommunicationRepository) Update(ctx context.Context, comm *models.Communication) error {
	comm.UpdatedAt = time.Now().UTC()
	const query = `UPDATE communications SET communication_type = :communication_type, subject = :subject, notes = :notes,
        communication_date = :communication_date, follow_up_required = :follow_up_required, follow_up_date = :follow_up_date,
        follow_up_completed = :follow_up_completed, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, comm); err != nil {
		return fmt.Errorf("update communication: %w", err)
	}
	return nil
}

// CompleteFollowUp marks the follow-up of an entry as done.
func (r *CommunicationRepository) CompleteFollowUp(ctx context.Context, id string) error {
	const query = `UPDATE communications SET follow_up_completed = TRUE, updated_at = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("complete follow-up: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListPendingFollowUps returns entries whose follow-up is due on or before the
// given day and not yet completed.
func (r *CommunicationRepository) ListPendingFollowUps(ctx context.Context, dueBy time.Time) ([]models.Communication, error) {
	query := fmt.Sprintf(`SELECT %s FROM communications
        WHERE follow_up_required = TRUE AND follow_up_completed = FALSE AND follow_up_date IS NOT NULL AND follow_up_date <= $1
        ORDER BY follow_up_date ASC`, communicationColumns)
	var communications []models.Communication
	if err := r.db.SelectContext(ctx, &communications, query, dueBy); err != nil {
		return nil, fmt.Errorf("list pending follow-ups: %w", err)
	}
	return communications, nil
}

// Delete removes a communication log entry permanently.
func (r *CommunicationRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM communications WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete communication: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
