package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushq/admissions-api/internal/models"
)

func newEnquiryMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func enquiryRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "student_name", "email", "phone", "course_applied", "enquiry_date", "status",
		"source", "address", "remarks", "follow_up_date", "created_at", "updated_at"}).
		AddRow("enq-1", "Priya Sharma", "priya@example.com", "9876543210", "MBA", now, models.EnquiryStatusNew,
			models.EnquirySourceWebsite, "", "", nil, now, now)
}

func TestEnquiryRepositoryList(t *testing.T) {
	db, mock, cleanup := newEnquiryMock(t)
	defer cleanup()
	repo := NewEnquiryRepository(db)

	mock.ExpectQuery("SELECT id, student_name, email, phone, course_applied").
		WillReturnRows(enquiryRows())
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM enquiries").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	enquiries, total, err := repo.List(context.Background(), models.EnquiryFilter{})
	require.NoError(t, err)
	assert.Len(t, enquiries, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnquiryRepositoryListWithFilters(t *testing.T) {
	db, mock, cleanup := newEnquiryMock(t)
	defer cleanup()
	repo := NewEnquiryRepository(db)

	mock.ExpectQuery("SELECT id, student_name, email, phone, course_applied").
		WithArgs(models.EnquiryStatusNew, "%priya%").
		WillReturnRows(enquiryRows())
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM enquiries").
		WithArgs(models.EnquiryStatusNew, "%priya%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	enquiries, total, err := repo.List(context.Background(), models.EnquiryFilter{
		Status: models.EnquiryStatusNew,
		Search: "Priya",
	})
	require.NoError(t, err)
	assert.Len(t, enquiries, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnquiryRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newEnquiryMock(t)
	defer cleanup()
	repo := NewEnquiryRepository(db)

	mock.ExpectQuery("SELECT id, student_name, email, phone, course_applied").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.Equal(t, sql.ErrNoRows, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnquiryRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newEnquiryMock(t)
	defer cleanup()
	repo := NewEnquiryRepository(db)

	mock.ExpectExec("INSERT INTO enquiries").
		WillReturnResult(sqlmock.NewResult(1, 1))

	enquiry := &models.Enquiry{
		StudentName:   "Priya Sharma",
		Email:         "priya@example.com",
		Phone:         "9876543210",
		CourseApplied: "MBA",
		Status:        models.EnquiryStatusNew,
		Source:        models.EnquirySourceWebsite,
	}
	err := repo.Create(context.Background(), enquiry)
	require.NoError(t, err)
	assert.NotEmpty(t, enquiry.ID)
	assert.False(t, enquiry.EnquiryDate.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnquiryRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newEnquiryMock(t)
	defer cleanup()
	repo := NewEnquiryRepository(db)

	mock.ExpectExec("UPDATE enquiries SET status").
		WithArgs("enq-1", models.EnquiryStatusAdmitted, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), "enq-1", models.EnquiryStatusAdmitted)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnquiryRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newEnquiryMock(t)
	defer cleanup()
	repo := NewEnquiryRepository(db)

	mock.ExpectExec("DELETE FROM enquiries").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "missing")
	assert.Equal(t, sql.ErrNoRows, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
