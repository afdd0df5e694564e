package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/campushq/admissions-api/internal/models"
)

const conversionColumns = `id, enquiry_id, student_id, seats_updated, enquiry_updated, communication_logged, created_at, updated_at`

// ErrConversionExists signals that a conversion marker already exists for the enquiry.
var ErrConversionExists = errors.New("conversion already recorded for enquiry")

// ConversionRepository manages the persisted workflow markers for
// enquiry→student conversions.
type ConversionRepository struct {
	db *sqlx.DB
}

// NewConversionRepository constructs a ConversionRepository.
func NewConversionRepository(db *sqlx.DB) *ConversionRepository {
	return &ConversionRepository{db: db}
}

// FindByEnquiryID fetches the conversion marker for an enquiry, if one exists.
func (r *ConversionRepository) FindByEnquiryID(ctx context.Context, enquiryID string) (*models.Conversion, error) {
	query := fmt.Sprintf("SELECT %s FROM conversions WHERE enquiry_id = $1 LIMIT 1", conversionColumns)
	var conv models.Conversion
	if err := r.db.GetContext(ctx, &conv, query, enquiryID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find conversion by enquiry: %w", err)
	}
	return &conv, nil
}

// CreateIn inserts the marker inside the caller's transaction. The unique
// constraint on enquiry_id makes the marker the at-most-once gate for the
// whole conversion: a concurrent duplicate surfaces as ErrConversionExists.
func (r *ConversionRepository) CreateIn(ctx context.Context, tx *sqlx.Tx, conv *models.Conversion) error {
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}
	conv.UpdatedAt = now
	const query = `INSERT INTO conversions (id, enquiry_id, student_id, seats_updated, enquiry_updated, communication_logged, created_at, updated_at)
        VALUES (:id, :enquiry_id, :student_id, :seats_updated, :enquiry_updated, :communication_logged, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, conv); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrConversionExists
		}
		return fmt.Errorf("create conversion: %w", err)
	}
	return nil
}

// Step columns that MarkStep may touch.
const (
	ConversionStepSeats         = "seats_updated"
	ConversionStepEnquiry       = "enquiry_updated"
	ConversionStepCommunication = "communication_logged"
)

var conversionStepColumns = map[string]bool{
	ConversionStepSeats:         true,
	ConversionStepEnquiry:       true,
	ConversionStepCommunication: true,
}

// MarkStep flips a single step flag to true.
func (r *ConversionRepository) MarkStep(ctx context.Context, id, step string) error {
	if !conversionStepColumns[step] {
		return fmt.Errorf("unknown conversion step %q", step)
	}
	query := fmt.Sprintf(`UPDATE conversions SET %s = TRUE, updated_at = $2 WHERE id = $1`, step)
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark conversion step %s: %w", step, err)
	}
	return nil
}

// MarkStepIn flips a single step flag inside the caller's transaction.
func (r *ConversionRepository) MarkStepIn(ctx context.Context, tx *sqlx.Tx, id, step string) error {
	if !conversionStepColumns[step] {
		return fmt.Errorf("unknown conversion step %q", step)
	}
	query := fmt.Sprintf(`UPDATE conversions SET %s = TRUE, updated_at = $2 WHERE id = $1`, step)
	if _, err := tx.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark conversion step %s: %w", step, err)
	}
	return nil
}

// ListIncomplete returns markers with at least one pending step, oldest first,
// for the resume sweep.
func (r *ConversionRepository) ListIncomplete(ctx context.Context, limit int) ([]models.Conversion, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM conversions
        WHERE NOT (seats_updated AND enquiry_updated AND communication_logged)
        ORDER BY created_at ASC LIMIT %d`, conversionColumns, limit)
	var convs []models.Conversion
	if err := r.db.SelectContext(ctx, &convs, query); err != nil {
		return nil, fmt.Errorf("list incomplete conversions: %w", err)
	}
	return convs, nil
}
