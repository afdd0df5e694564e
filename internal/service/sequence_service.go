package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/campushq/admissions-api/internal/repository"
)

type sequenceStore interface {
	Next(ctx context.Context, kind, yearPrefix string) (int64, error)
	NextIn(ctx context.Context, tx *sqlx.Tx, kind, yearPrefix string) (int64, error)
}

// allocationAttempts bounds the allocate-and-insert retries taken when a
// unique constraint reports an identifier collision.
const allocationAttempts = 3

// SequenceService formats institution identifiers from the per-scope counters.
// Student codes look like STU250001, receipt numbers like RCP2500001; the
// two digits after the tag are the allocation year.
type SequenceService struct {
	repo   sequenceStore
	now    func() time.Time
	logger *zap.Logger
}

// NewSequenceService constructs a SequenceService.
func NewSequenceService(repo sequenceStore, logger *zap.Logger) *SequenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SequenceService{repo: repo, now: time.Now, logger: logger}
}

func (s *SequenceService) yearPrefix() string {
	return s.now().UTC().Format("06")
}

// NextStudentID allocates the next student code inside the caller's transaction.
func (s *SequenceService) NextStudentID(ctx context.Context, tx *sqlx.Tx) (string, error) {
	prefix := s.yearPrefix()
	value, err := s.repo.NextIn(ctx, tx, repository.SequenceKindStudent, prefix)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("STU%s%04d", prefix, value), nil
}

// NextReceiptNumber allocates the next receipt number inside the caller's transaction.
func (s *SequenceService) NextReceiptNumber(ctx context.Context, tx *sqlx.Tx) (string, error) {
	prefix := s.yearPrefix()
	value, err := s.repo.NextIn(ctx, tx, repository.SequenceKindReceipt, prefix)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("RCP%s%05d", prefix, value), nil
}
