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

func newFeeMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func feeRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "student_id", "student_name", "student_code", "course_name", "fee_type",
		"academic_year", "semester", "total_amount", "paid_amount", "pending_amount", "payment_date", "payment_mode",
		"transaction_id", "receipt_number", "payment_status", "due_date", "paid_by", "remarks",
		"recorded_by", "recorded_by_name", "created_at", "updated_at"}).
		AddRow("fee-1", "stu-1", "Priya Sharma", "STU250001", "MBA", models.FeeTypeAdmission,
			"2025-26", nil, 10000.0, 10000.0, 0.0, now, "UPI",
			"", "RCP2500001", models.FeeStatusPaid, nil, "Priya Sharma", "",
			"user-1", "Admin", now, now)
}

func TestFeeRepositoryListReturnsTotals(t *testing.T) {
	db, mock, cleanup := newFeeMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)

	mock.ExpectQuery("SELECT id, student_id, student_name, student_code, course_name").
		WithArgs("stu-1").
		WillReturnRows(feeRows())
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM fees").
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(total_amount\\), 0\\)").
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"total_amount", "total_paid", "total_pending"}).AddRow(10000.0, 10000.0, 0.0))

	fees, total, totals, err := repo.List(context.Background(), models.FeeFilter{StudentID: "stu-1"})
	require.NoError(t, err)
	assert.Len(t, fees, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, 10000.0, totals.TotalPaid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeeRepositoryCreateInAllocatesWithinTx(t *testing.T) {
	db, mock, cleanup := newFeeMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO fees").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)

	fee := &models.Fee{
		StudentID:     "stu-1",
		StudentName:   "Priya Sharma",
		ReceiptNumber: "RCP2500002",
		TotalAmount:   10000,
		PaidAmount:    4000,
		PendingAmount: 6000,
		PaymentStatus: models.FeeStatusPartial,
	}
	require.NoError(t, repo.CreateIn(context.Background(), tx, fee))
	require.NoError(t, tx.Commit())
	assert.NotEmpty(t, fee.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeeRepositoryCreateInMapsReceiptCollision(t *testing.T) {
	db, mock, cleanup := newFeeMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO fees").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "fees_receipt_number_key"})
	mock.ExpectRollback()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)

	fee := &models.Fee{StudentID: "stu-1", ReceiptNumber: "RCP2500002", TotalAmount: 10000}
	err = repo.CreateIn(context.Background(), tx, fee)
	assert.Equal(t, ErrDuplicateReceiptNumber, err)
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeeRepositoryListDuePastDate(t *testing.T) {
	db, mock, cleanup := newFeeMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)

	asOf := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT id, student_id, student_name, student_code, course_name").
		WithArgs(models.FeeStatusPending, models.FeeStatusPartial, asOf).
		WillReturnRows(feeRows())

	fees, err := repo.ListDuePastDate(context.Background(), asOf)
	require.NoError(t, err)
	assert.Len(t, fees, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeeRepositoryStudentTotals(t *testing.T) {
	db, mock, cleanup := newFeeMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)

	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(total_amount\\), 0\\)").
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"total_amount", "total_paid", "total_pending"}).AddRow(50000.0, 20000.0, 30000.0))

	totals, err := repo.StudentTotals(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 30000.0, totals.TotalPending)
	assert.NoError(t, mock.ExpectationsWereMet())
}
