package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campushq/admissions-api/internal/models"
	appErrors "github.com/campushq/admissions-api/pkg/errors"
)

type mockCourseRepo struct {
	courses  map[string]*models.Course
	codes    map[string]bool
	created  *models.Course
	deleted  []string
	updated  *models.Course
	adjusted []int
}

func (m *mockCourseRepo) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	var out []models.Course
	for _, c := range m.courses {
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (m *mockCourseRepo) ListActiveSummaries(ctx context.Context) ([]models.CourseSummary, error) {
	var out []models.CourseSummary
	for _, c := range m.courses {
		if c.IsActive {
			out = append(out, models.CourseSummary{ID: c.ID, CourseName: c.CourseName})
		}
	}
	return out, nil
}

func (m *mockCourseRepo) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := m.courses[id]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseRepo) ExistsByCode(ctx context.Context, code, excludeID string) (bool, error) {
	return m.codes[code], nil
}

func (m *mockCourseRepo) Create(ctx context.Context, course *models.Course) error {
	if m.courses == nil {
		m.courses = make(map[string]*models.Course)
	}
	if course.ID == "" {
		course.ID = "new-course"
	}
	course.SeatsAvailable = course.SeatsTotal - course.SeatsFilled
	m.courses[course.ID] = course
	m.created = course
	return nil
}

func (m *mockCourseRepo) Update(ctx context.Context, course *models.Course) error {
	stored, ok := m.courses[course.ID]
	if !ok {
		return sql.ErrNoRows
	}
	if stored.SeatsFilled > course.SeatsTotal {
		return sql.ErrNoRows
	}
	copied := *course
	copied.SeatsFilled = stored.SeatsFilled
	copied.SeatsAvailable = copied.SeatsTotal - copied.SeatsFilled
	m.courses[course.ID] = &copied
	m.updated = &copied
	return nil
}

func (m *mockCourseRepo) AdjustFilledSeats(ctx context.Context, id string, delta int) (*models.Course, error) {
	c, ok := m.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	next := c.SeatsFilled + delta
	if next < 0 || next > c.SeatsTotal {
		return nil, sql.ErrNoRows
	}
	c.SeatsFilled = next
	c.SeatsAvailable = c.SeatsTotal - next
	m.adjusted = append(m.adjusted, delta)
	copied := *c
	return &copied, nil
}

func (m *mockCourseRepo) SetFilledSeats(ctx context.Context, id string, filled int) (*models.Course, error) {
	c, ok := m.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if filled < 0 || filled > c.SeatsTotal {
		return nil, sql.ErrNoRows
	}
	c.SeatsFilled = filled
	c.SeatsAvailable = c.SeatsTotal - filled
	copied := *c
	return &copied, nil
}

func (m *mockCourseRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.courses[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.courses, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func newCourseService(repo *mockCourseRepo) (*CourseService, *mockAuditWriter) {
	audit := &mockAuditWriter{}
	return NewCourseService(repo, audit, validator.New(), zap.NewNop()), audit
}

func TestCourseServiceCreate(t *testing.T) {
	repo := &mockCourseRepo{}
	svc, _ := newCourseService(repo)

	course, err := svc.Create(context.Background(), CreateCourseRequest{
		CourseName: "MBA", CourseCode: "MBA01", SeatsTotal: 60, TotalFees: 250000,
	})
	require.NoError(t, err)
	assert.Equal(t, 60, course.SeatsAvailable)
	assert.True(t, course.IsActive)
	assert.NotNil(t, repo.created)
}

func TestCourseServiceCreateDuplicateCode(t *testing.T) {
	repo := &mockCourseRepo{codes: map[string]bool{"MBA01": true}}
	svc, _ := newCourseService(repo)

	_, err := svc.Create(context.Background(), CreateCourseRequest{CourseName: "MBA", CourseCode: "MBA01"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestCourseServiceUpdateRejectsShrinkBelowFilled(t *testing.T) {
	repo := &mockCourseRepo{courses: map[string]*models.Course{
		"c1": {ID: "c1", CourseName: "MBA", CourseCode: "MBA01", SeatsTotal: 60, SeatsFilled: 40, SeatsAvailable: 20, IsActive: true},
	}}
	svc, _ := newCourseService(repo)

	_, err := svc.Update(context.Background(), "c1", UpdateCourseRequest{
		CourseName: "MBA", CourseCode: "MBA01", SeatsTotal: 30,
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrPreconditionFailed))
}

func TestCourseServiceUpdateRederivesAvailable(t *testing.T) {
	repo := &mockCourseRepo{courses: map[string]*models.Course{
		"c1": {ID: "c1", CourseName: "MBA", CourseCode: "MBA01", SeatsTotal: 60, SeatsFilled: 40, SeatsAvailable: 20, IsActive: true},
	}}
	svc, _ := newCourseService(repo)

	course, err := svc.Update(context.Background(), "c1", UpdateCourseRequest{
		CourseName: "MBA", CourseCode: "MBA01", SeatsTotal: 80,
	})
	require.NoError(t, err)
	assert.Equal(t, 40, course.SeatsAvailable)
}

func TestCourseServiceAdjustSeats(t *testing.T) {
	repo := &mockCourseRepo{courses: map[string]*models.Course{
		"c1": {ID: "c1", SeatsTotal: 50, SeatsFilled: 10, SeatsAvailable: 40},
	}}
	svc, audit := newCourseService(repo)

	course, err := svc.AdjustSeats(context.Background(), "c1", AdjustSeatsRequest{Delta: -3, ActorID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, 7, course.SeatsFilled)
	assert.Equal(t, 43, course.SeatsAvailable)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditActionSeatOverride, audit.entries[0].Action)
}

func TestCourseServiceAdjustSeatsCapacityViolation(t *testing.T) {
	repo := &mockCourseRepo{courses: map[string]*models.Course{
		"c1": {ID: "c1", SeatsTotal: 50, SeatsFilled: 50},
	}}
	svc, _ := newCourseService(repo)

	_, err := svc.AdjustSeats(context.Background(), "c1", AdjustSeatsRequest{Delta: 1})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrCapacityExceeded))
}

func TestCourseServiceAdjustSeatsMissingCourse(t *testing.T) {
	repo := &mockCourseRepo{}
	svc, _ := newCourseService(repo)

	_, err := svc.AdjustSeats(context.Background(), "missing", AdjustSeatsRequest{Delta: 1})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestCourseServiceSetSeats(t *testing.T) {
	repo := &mockCourseRepo{courses: map[string]*models.Course{
		"c1": {ID: "c1", SeatsTotal: 50, SeatsFilled: 10},
	}}
	svc, _ := newCourseService(repo)

	filled := 25
	course, err := svc.SetSeats(context.Background(), "c1", SetSeatsRequest{Filled: &filled})
	require.NoError(t, err)
	assert.Equal(t, 25, course.SeatsFilled)
	assert.Equal(t, 25, course.SeatsAvailable)
}

func TestCourseServiceDeleteBlockedWhenFilled(t *testing.T) {
	repo := &mockCourseRepo{courses: map[string]*models.Course{
		"c1": {ID: "c1", SeatsTotal: 50, SeatsFilled: 3},
	}}
	svc, _ := newCourseService(repo)

	err := svc.Delete(context.Background(), "c1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrPreconditionFailed))
	assert.Empty(t, repo.deleted)
}
