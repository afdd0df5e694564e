package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campushq/admissions-api/internal/models"
)

const receiptJobColumns = `id, fee_id, format, status, progress, file_path, error_message, created_by, created_at, updated_at, finished_at`

// ReceiptJobRepository manages persistence for asynchronous receipt renders.
type ReceiptJobRepository struct {
	db *sqlx.DB
}

// NewReceiptJobRepository constructs a ReceiptJobRepository.
func NewReceiptJobRepository(db *sqlx.DB) *ReceiptJobRepository {
	return &ReceiptJobRepository{db: db}
}

// Create inserts a new queued job.
func (r *ReceiptJobRepository) Create(ctx context.Context, job *models.ReceiptJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	if job.Status == "" {
		job.Status = models.ReceiptStatusQueued
	}
	const query = `INSERT INTO receipt_jobs (id, fee_id, format, status, progress, file_path, error_message, created_by, created_at, updated_at, finished_at)
        VALUES (:id, :fee_id, :format, :status, :progress, :file_path, :error_message, :created_by, :created_at, :updated_at, :finished_at)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create receipt job: %w", err)
	}
	return nil
}

// FindByID fetches a job by identifier.
func (r *ReceiptJobRepository) FindByID(ctx context.Context, id string) (*models.ReceiptJob, error) {
	query := fmt.Sprintf("SELECT %s FROM receipt_jobs WHERE id = $1 LIMIT 1", receiptJobColumns)
	var job models.ReceiptJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find receipt job by id: %w", err)
	}
	return &job, nil
}

// UpdateProgress records the current state and completion percentage of a job.
func (r *ReceiptJobRepository) UpdateProgress(ctx context.Context, id string, status models.ReceiptStatus, progress int) error {
	const query = `UPDATE receipt_jobs SET status = $2, progress = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, progress, time.Now().UTC()); err != nil {
		return fmt.Errorf("update receipt job progress: %w", err)
	}
	return nil
}

// MarkDone records a finished render with the stored artifact path.
func (r *ReceiptJobRepository) MarkDone(ctx context.Context, id, filePath string) error {
	now := time.Now().UTC()
	const query = `UPDATE receipt_jobs SET status = $2, progress = 100, file_path = $3, updated_at = $4, finished_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ReceiptStatusDone, filePath, now); err != nil {
		return fmt.Errorf("mark receipt job done: %w", err)
	}
	return nil
}

// MarkFailed records a failed render with the error detail.
func (r *ReceiptJobRepository) MarkFailed(ctx context.Context, id, message string) error {
	now := time.Now().UTC()
	const query = `UPDATE receipt_jobs SET status = $2, error_message = $3, updated_at = $4, finished_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ReceiptStatusFailed, message, now); err != nil {
		return fmt.Errorf("mark receipt job failed: %w", err)
	}
	return nil
}

// ListFinishedBefore returns completed jobs older than the cutoff, so the
// cleanup sweep can delete their artifacts.
func (r *ReceiptJobRepository) ListFinishedBefore(ctx context.Context, cutoff time.Time) ([]models.ReceiptJob, error) {
	query := fmt.Sprintf(`SELECT %s FROM receipt_jobs
        WHERE status IN ($1, $2) AND finished_at IS NOT NULL AND finished_at < $3`, receiptJobColumns)
	var jobs []models.ReceiptJob
	if err := r.db.SelectContext(ctx, &jobs, query, models.ReceiptStatusDone, models.ReceiptStatusFailed, cutoff); err != nil {
		return nil, fmt.Errorf("list finished receipt jobs: %w", err)
	}
	return jobs, nil
}

// Delete removes a job record.
func (r *ReceiptJobRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM receipt_jobs WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete receipt job: %w", err)
	}
	return nil
}
