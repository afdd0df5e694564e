package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushq/admissions-api/internal/models"
)

func newConversionMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestConversionRepositoryCreateIn(t *testing.T) {
	db, mock, cleanup := newConversionMock(t)
	defer cleanup()
	repo := NewConversionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO conversions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)

	conv := &models.Conversion{EnquiryID: "enq-1", StudentID: "stu-1"}
	require.NoError(t, repo.CreateIn(context.Background(), tx, conv))
	require.NoError(t, tx.Commit())
	assert.NotEmpty(t, conv.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConversionRepositoryCreateInDuplicate(t *testing.T) {
	db, mock, cleanup := newConversionMock(t)
	defer cleanup()
	repo := NewConversionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO conversions").
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)

	conv := &models.Conversion{EnquiryID: "enq-1", StudentID: "stu-1"}
	err = repo.CreateIn(context.Background(), tx, conv)
	assert.Equal(t, ErrConversionExists, err)
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConversionRepositoryMarkStep(t *testing.T) {
	db, mock, cleanup := newConversionMock(t)
	defer cleanup()
	repo := NewConversionRepository(db)

	mock.ExpectExec("UPDATE conversions SET seats_updated = TRUE").
		WithArgs("conv-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkStep(context.Background(), "conv-1", ConversionStepSeats))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConversionRepositoryMarkStepRejectsUnknownColumn(t *testing.T) {
	db, _, cleanup := newConversionMock(t)
	defer cleanup()
	repo := NewConversionRepository(db)

	err := repo.MarkStep(context.Background(), "conv-1", "status; DROP TABLE conversions")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown conversion step")
}

func TestConversionRepositoryListIncomplete(t *testing.T) {
	db, mock, cleanup := newConversionMock(t)
	defer cleanup()
	repo := NewConversionRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "enquiry_id", "student_id", "seats_updated", "enquiry_updated", "communication_logged", "created_at", "updated_at"}).
		AddRow("conv-1", "enq-1", "stu-1", true, false, false, now, now)
	mock.ExpectQuery("SELECT id, enquiry_id, student_id, seats_updated").
		WillReturnRows(rows)

	convs, err := repo.ListIncomplete(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.False(t, convs[0].Complete())
	assert.NoError(t, mock.ExpectationsWereMet())
}
