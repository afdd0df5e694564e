package repository

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSequenceMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestSequenceRepositoryNextIncrementsExistingCounter(t *testing.T) {
	db, mock, cleanup := newSequenceMock(t)
	defer cleanup()
	repo := NewSequenceRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE id_sequences SET last_value = last_value \\+ 1").
		WithArgs(SequenceKindStudent, "25").
		WillReturnRows(sqlmock.NewRows([]string{"last_value"}).AddRow(42))
	mock.ExpectCommit()

	value, err := repo.Next(context.Background(), SequenceKindStudent, "25")
	require.NoError(t, err)
	assert.Equal(t, int64(42), value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSequenceRepositoryNextSeedsFromLegacyMax(t *testing.T) {
	db, mock, cleanup := newSequenceMock(t)
	defer cleanup()
	repo := NewSequenceRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE id_sequences SET last_value = last_value \\+ 1").
		WithArgs(SequenceKindStudent, "25").
		WillReturnRows(sqlmock.NewRows([]string{"last_value"}))
	mock.ExpectQuery("SELECT COALESCE\\(MAX\\(CAST\\(RIGHT\\(student_id, 4\\) AS INTEGER\\)\\), 0\\) FROM students").
		WithArgs("STU25%").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(17))
	mock.ExpectQuery("INSERT INTO id_sequences").
		WithArgs(SequenceKindStudent, "25", int64(18)).
		WillReturnRows(sqlmock.NewRows([]string{"last_value"}).AddRow(18))
	mock.ExpectCommit()

	value, err := repo.Next(context.Background(), SequenceKindStudent, "25")
	require.NoError(t, err)
	assert.Equal(t, int64(18), value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSequenceRepositoryNextSeedsEmptyScopeFromOne(t *testing.T) {
	db, mock, cleanup := newSequenceMock(t)
	defer cleanup()
	repo := NewSequenceRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE id_sequences SET last_value = last_value \\+ 1").
		WithArgs(SequenceKindReceipt, "26").
		WillReturnRows(sqlmock.NewRows([]string{"last_value"}))
	mock.ExpectQuery("SELECT COALESCE\\(MAX\\(CAST\\(RIGHT\\(receipt_number, 5\\) AS INTEGER\\)\\), 0\\) FROM fees").
		WithArgs("RCP26%").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(0))
	mock.ExpectQuery("INSERT INTO id_sequences").
		WithArgs(SequenceKindReceipt, "26", int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"last_value"}).AddRow(1))
	mock.ExpectCommit()

	value, err := repo.Next(context.Background(), SequenceKindReceipt, "26")
	require.NoError(t, err)
	assert.Equal(t, int64(1), value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSequenceRepositoryNextUnknownKind(t *testing.T) {
	db, mock, cleanup := newSequenceMock(t)
	defer cleanup()
	repo := NewSequenceRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE id_sequences SET last_value = last_value \\+ 1").
		WithArgs("bogus", "25").
		WillReturnRows(sqlmock.NewRows([]string{"last_value"}))
	mock.ExpectRollback()

	_, err := repo.Next(context.Background(), "bogus", "25")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown sequence kind")
	assert.NoError(t, mock.ExpectationsWereMet())
}
