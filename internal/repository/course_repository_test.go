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

func newCourseMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func courseRows(filled, total int) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "course_name", "course_code", "duration_years", "duration_semesters", "department",
		"total_fees", "admission_fee", "caution_deposit", "yearly_fee", "exam_fee_per_sem",
		"seats_total", "seats_filled", "seats_available", "description", "eligibility", "is_active", "created_at", "updated_at"}).
		AddRow("course-1", "MBA", "MBA01", 2, 4, "Management", 200000.0, 10000.0, 5000.0, 90000.0, 1500.0,
			total, filled, total-filled, "", "", true, now, now)
}

func TestCourseRepositoryAdjustFilledSeats(t *testing.T) {
	db, mock, cleanup := newCourseMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery("UPDATE courses SET seats_filled = seats_filled \\+ \\$2").
		WithArgs("course-1", 1, sqlmock.AnyArg()).
		WillReturnRows(courseRows(50, 50))

	course, err := repo.AdjustFilledSeats(context.Background(), "course-1", 1)
	require.NoError(t, err)
	assert.Equal(t, 50, course.SeatsFilled)
	assert.Equal(t, 0, course.SeatsAvailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryAdjustFilledSeatsGuardRejectsOverfill(t *testing.T) {
	db, mock, cleanup := newCourseMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	// Course already at capacity: the guarded UPDATE matches no rows.
	mock.ExpectQuery("UPDATE courses SET seats_filled = seats_filled \\+ \\$2").
		WithArgs("course-1", 1, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.AdjustFilledSeats(context.Background(), "course-1", 1)
	assert.Equal(t, sql.ErrNoRows, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositorySetFilledSeats(t *testing.T) {
	db, mock, cleanup := newCourseMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery("UPDATE courses SET seats_filled = \\$2, seats_available = seats_total - \\$2").
		WithArgs("course-1", 30, sqlmock.AnyArg()).
		WillReturnRows(courseRows(30, 50))

	course, err := repo.SetFilledSeats(context.Background(), "course-1", 30)
	require.NoError(t, err)
	assert.Equal(t, 30, course.SeatsFilled)
	assert.Equal(t, 20, course.SeatsAvailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryCreateDerivesAvailable(t *testing.T) {
	db, mock, cleanup := newCourseMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectExec("INSERT INTO courses").
		WillReturnResult(sqlmock.NewResult(1, 1))

	course := &models.Course{CourseName: "MBA", CourseCode: "MBA01", SeatsTotal: 50, SeatsFilled: 5}
	err := repo.Create(context.Background(), course)
	require.NoError(t, err)
	assert.Equal(t, 45, course.SeatsAvailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryListActiveSummaries(t *testing.T) {
	db, mock, cleanup := newCourseMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	rows := sqlmock.NewRows([]string{"id", "course_name", "course_code", "total_fees", "seats_total", "seats_filled", "seats_available"}).
		AddRow("course-1", "MBA", "MBA01", 200000.0, 50, 49, 1)
	mock.ExpectQuery("SELECT id, course_name, course_code, total_fees, seats_total, seats_filled, seats_available").
		WillReturnRows(rows)

	summaries, err := repo.ListActiveSummaries(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 1, summaries[0].SeatsAvailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}
