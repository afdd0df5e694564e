package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Sequence kinds backed by the id_sequences counter table.
const (
	SequenceKindStudent = "student"
	SequenceKindReceipt = "receipt"
)

// seedQueries recover the highest already-issued suffix for a scope. They run
// once per (kind, year), on the first allocation, so the legacy max-scan never
// sits on the hot path.
var seedQueries = map[string]string{
	SequenceKindStudent: `SELECT COALESCE(MAX(CAST(RIGHT(student_id, 4) AS INTEGER)), 0) FROM students WHERE student_id LIKE $1`,
	SequenceKindReceipt: `SELECT COALESCE(MAX(CAST(RIGHT(receipt_number, 5) AS INTEGER)), 0) FROM fees WHERE receipt_number LIKE $1`,
}

var seedPrefixTags = map[string]string{
	SequenceKindStudent: "STU",
	SequenceKindReceipt: "RCP",
}

// SequenceRepository hands out strictly increasing per-scope counter values.
type SequenceRepository struct {
	db *sqlx.DB
}

// NewSequenceRepository constructs the repository.
func NewSequenceRepository(db *sqlx.DB) *SequenceRepository {
	return &SequenceRepository{db: db}
}

// Next atomically increments and returns the counter for (kind, yearPrefix),
// opening its own transaction.
func (r *SequenceRepository) Next(ctx context.Context, kind, yearPrefix string) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin sequence tx: %w", err)
	}
	value, err := r.NextIn(ctx, tx, kind, yearPrefix)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit sequence tx: %w", err)
	}
	return value, nil
}

// NextIn increments the scope counter inside the caller's transaction, so
// identifier allocation commits or rolls back together with the record that
// consumes it.
func (r *SequenceRepository) NextIn(ctx context.Context, tx *sqlx.Tx, kind, yearPrefix string) (int64, error) {
	const update = `UPDATE id_sequences SET last_value = last_value + 1
        WHERE kind = $1 AND year_prefix = $2 RETURNING last_value`

	var value int64
	err := tx.GetContext(ctx, &value, update, kind, yearPrefix)
	if err == nil {
		return value, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("increment sequence %s/%s: %w", kind, yearPrefix, err)
	}

	seed, err := r.seed(ctx, tx, kind, yearPrefix)
	if err != nil {
		return 0, err
	}

	// Two first-allocations can race here; ON CONFLICT folds the loser into a
	// plain increment so both still get distinct values.
	const insert = `INSERT INTO id_sequences (kind, year_prefix, last_value)
        VALUES ($1, $2, $3)
        ON CONFLICT (kind, year_prefix)
        DO UPDATE SET last_value = id_sequences.last_value + 1
        RETURNING last_value`
	if err := tx.GetContext(ctx, &value, insert, kind, yearPrefix, seed+1); err != nil {
		return 0, fmt.Errorf("seed sequence %s/%s: %w", kind, yearPrefix, err)
	}
	return value, nil
}

func (r *SequenceRepository) seed(ctx context.Context, tx *sqlx.Tx, kind, yearPrefix string) (int64, error) {
	query, ok := seedQueries[kind]
	if !ok {
		return 0, fmt.Errorf("unknown sequence kind %q", kind)
	}
	pattern := seedPrefixTags[kind] + yearPrefix + "%"
	var seed int64
	if err := tx.GetContext(ctx, &seed, query, pattern); err != nil {
		return 0, fmt.Errorf("seed scan %s/%s: %w", kind, yearPrefix, err)
	}
	return seed, nil
}
