package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campushq/admissions-api/internal/models"
	"github.com/campushq/admissions-api/internal/repository"
	appErrors "github.com/campushq/admissions-api/pkg/errors"
)

type mockConversionStore struct {
	markers map[string]*models.Conversion
	steps   []string
}

func (m *mockConversionStore) FindByEnquiryID(ctx context.Context, enquiryID string) (*models.Conversion, error) {
	if c, ok := m.markers[enquiryID]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockConversionStore) CreateIn(ctx context.Context, tx *sqlx.Tx, conv *models.Conversion) error {
	if m.markers == nil {
		m.markers = make(map[string]*models.Conversion)
	}
	if conv.ID == "" {
		conv.ID = "conv-1"
	}
	m.markers[conv.EnquiryID] = conv
	return nil
}

func (m *mockConversionStore) MarkStep(ctx context.Context, id, step string) error {
	m.steps = append(m.steps, step)
	return nil
}

func (m *mockConversionStore) ListIncomplete(ctx context.Context, limit int) ([]models.Conversion, error) {
	var out []models.Conversion
	for _, c := range m.markers {
		if !c.Complete() {
			out = append(out, *c)
		}
	}
	return out, nil
}

type mockConversionEnquiryStore struct {
	enquiries map[string]*models.Enquiry
	statuses  map[string]models.EnquiryStatus
}

func (m *mockConversionEnquiryStore) FindByID(ctx context.Context, id string) (*models.Enquiry, error) {
	if e, ok := m.enquiries[id]; ok {
		copied := *e
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockConversionEnquiryStore) UpdateStatus(ctx context.Context, id string, status models.EnquiryStatus) error {
	if m.statuses == nil {
		m.statuses = make(map[string]models.EnquiryStatus)
	}
	m.statuses[id] = status
	return nil
}

type mockConversionStudentStore struct {
	students     map[string]*models.Student
	created      *models.Student
	dupRemaining int
	createErr    error
}

func (m *mockConversionStudentStore) CreateIn(ctx context.Context, tx *sqlx.Tx, student *models.Student) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.dupRemaining > 0 {
		m.dupRemaining--
		return repository.ErrDuplicateStudentID
	}
	if m.students == nil {
		m.students = make(map[string]*models.Student)
	}
	if student.ID == "" {
		student.ID = "stu-row-1"
	}
	m.students[student.ID] = student
	m.created = student
	return nil
}

func (m *mockConversionStudentStore) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

type mockConversionCourseStore struct {
	course   *models.Course
	adjusted int
	full     bool
}

func (m *mockConversionCourseStore) FindByName(ctx context.Context, name string) (*models.Course, error) {
	if m.course == nil || m.course.CourseName != name {
		return nil, sql.ErrNoRows
	}
	copied := *m.course
	return &copied, nil
}

func (m *mockConversionCourseStore) AdjustFilledSeats(ctx context.Context, id string, delta int) (*models.Course, error) {
	if m.full {
		return nil, sql.ErrNoRows
	}
	m.adjusted += delta
	m.course.SeatsFilled += delta
	m.course.SeatsAvailable = m.course.SeatsTotal - m.course.SeatsFilled
	copied := *m.course
	return &copied, nil
}

type mockCommunicationWriter struct {
	created []*models.Communication
}

func (m *mockCommunicationWriter) Create(ctx context.Context, comm *models.Communication) error {
	if comm.ID == "" {
		comm.ID = "comm-1"
	}
	m.created = append(m.created, comm)
	return nil
}

type mockStudentIDAllocator struct {
	counter int
}

func (m *mockStudentIDAllocator) NextStudentID(ctx context.Context, tx *sqlx.Tx) (string, error) {
	m.counter++
	return fmt.Sprintf("STU25%04d", m.counter), nil
}

type mockTxRunner struct{}

func (m *mockTxRunner) RunInTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return fn(nil)
}

type mockAuditWriter struct {
	entries []*models.AuditLog
}

func (m *mockAuditWriter) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.entries = append(m.entries, log)
	return nil
}

func newConversionFixture(status models.EnquiryStatus, seatsFilled, seatsTotal int) (*ConversionService, *mockConversionStore, *mockConversionEnquiryStore, *mockConversionStudentStore, *mockConversionCourseStore, *mockCommunicationWriter, *mockAuditWriter) {
	conversions := &mockConversionStore{}
	enquiries := &mockConversionEnquiryStore{enquiries: map[string]*models.Enquiry{
		"enq-1": {ID: "enq-1", StudentName: "Priya Sharma", Email: "priya@example.com", Phone: "9876543210", CourseApplied: "MBA", Status: status},
	}}
	students := &mockConversionStudentStore{}
	courses := &mockConversionCourseStore{course: &models.Course{
		ID: "crs-1", CourseName: "MBA", SeatsTotal: seatsTotal, SeatsFilled: seatsFilled,
		SeatsAvailable: seatsTotal - seatsFilled, IsActive: true,
	}}
	comms := &mockCommunicationWriter{}
	audit := &mockAuditWriter{}
	svc := NewConversionService(conversions, enquiries, students, courses, comms,
		&mockStudentIDAllocator{}, &mockTxRunner{}, audit, validator.New(), zap.NewNop())
	return svc, conversions, enquiries, students, courses, comms, audit
}

func validConvertRequest() ConvertEnquiryRequest {
	return ConvertEnquiryRequest{
		DateOfBirth:  time.Date(2004, 5, 20, 0, 0, 0, 0, time.UTC),
		Gender:       "Female",
		Year:         1,
		Semester:     1,
		GuardianName: "R Sharma",
		ActorID:      "user-1",
	}
}

func TestConversionServiceConvert(t *testing.T) {
	svc, conversions, enquiries, students, courses, comms, audit := newConversionFixture(models.EnquiryStatusNew, 10, 50)

	result, err := svc.Convert(context.Background(), "enq-1", validConvertRequest())
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "STU250001", result.Student.StudentID)
	assert.Equal(t, models.StudentStatusActive, result.Student.Status)
	assert.Equal(t, "MBA", result.Student.Course)
	assert.False(t, result.Resumed)

	assert.True(t, result.Automation.SeatsUpdated)
	assert.True(t, result.Automation.EnquiryUpdated)
	assert.True(t, result.Automation.CommunicationLogged)

	assert.Equal(t, 1, courses.adjusted)
	assert.Equal(t, models.EnquiryStatusAdmitted, enquiries.statuses["enq-1"])
	require.Len(t, comms.created, 1)
	assert.Equal(t, models.CommunicationSystem, comms.created[0].CommunicationType)
	assert.Equal(t, "system", comms.created[0].RecordedBy)

	marker := conversions.markers["enq-1"]
	require.NotNil(t, marker)
	assert.True(t, marker.Complete())
	assert.Equal(t, students.created.ID, marker.StudentID)

	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditActionConversion, audit.entries[0].Action)
}

func TestConversionServiceConvertLastSeat(t *testing.T) {
	svc, _, _, _, courses, _, _ := newConversionFixture(models.EnquiryStatusContacted, 49, 50)

	result, err := svc.Convert(context.Background(), "enq-1", validConvertRequest())
	require.NoError(t, err)
	assert.True(t, result.Automation.SeatsUpdated)
	assert.Equal(t, 50, courses.course.SeatsFilled)
	assert.Equal(t, 0, courses.course.SeatsAvailable)
}

func TestConversionServiceConvertNoSeats(t *testing.T) {
	svc, _, _, students, _, _, _ := newConversionFixture(models.EnquiryStatusNew, 50, 50)

	_, err := svc.Convert(context.Background(), "enq-1", validConvertRequest())
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrCapacityExceeded))
	assert.Nil(t, students.created)
}

func TestConversionServiceConvertAlreadyAdmitted(t *testing.T) {
	svc, conversions, _, _, _, _, _ := newConversionFixture(models.EnquiryStatusAdmitted, 10, 50)
	conversions.markers = map[string]*models.Conversion{
		"enq-1": {ID: "conv-1", EnquiryID: "enq-1", StudentID: "stu-row-1",
			SeatsUpdated: true, EnquiryUpdated: true, CommunicationLogged: true},
	}

	_, err := svc.Convert(context.Background(), "enq-1", validConvertRequest())
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrAlreadyAdmitted))
}

func TestConversionServiceConvertAdmittedWithoutMarker(t *testing.T) {
	svc, _, _, _, _, _, _ := newConversionFixture(models.EnquiryStatusAdmitted, 10, 50)

	_, err := svc.Convert(context.Background(), "enq-1", validConvertRequest())
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrAlreadyAdmitted))
}

func TestConversionServiceConvertRejectedEnquiry(t *testing.T) {
	svc, _, _, _, _, _, _ := newConversionFixture(models.EnquiryStatusRejected, 10, 50)

	_, err := svc.Convert(context.Background(), "enq-1", validConvertRequest())
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrPreconditionFailed))
}

func TestConversionServiceConvertResumesPartial(t *testing.T) {
	svc, conversions, enquiries, students, courses, comms, _ := newConversionFixture(models.EnquiryStatusNew, 11, 50)
	students.students = map[string]*models.Student{
		"stu-row-1": {ID: "stu-row-1", StudentID: "STU250001", Course: "MBA", Status: models.StudentStatusActive},
	}
	conversions.markers = map[string]*models.Conversion{
		"enq-1": {ID: "conv-1", EnquiryID: "enq-1", StudentID: "stu-row-1", SeatsUpdated: true},
	}

	result, err := svc.Convert(context.Background(), "enq-1", ConvertEnquiryRequest{})
	require.NoError(t, err)
	assert.True(t, result.Resumed)
	assert.Equal(t, "STU250001", result.Student.StudentID)

	// Seats were already counted by the first attempt.
	assert.Equal(t, 0, courses.adjusted)
	assert.Equal(t, models.EnquiryStatusAdmitted, enquiries.statuses["enq-1"])
	require.Len(t, comms.created, 1)
	assert.True(t, conversions.markers["enq-1"].Complete())
}

func TestConversionServiceConvertSeatRaceFailsConversion(t *testing.T) {
	svc, conversions, enquiries, students, courses, comms, _ := newConversionFixture(models.EnquiryStatusNew, 49, 50)
	courses.full = true

	_, err := svc.Convert(context.Background(), "enq-1", validConvertRequest())
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrCapacityExceeded))

	// The enquiry is not admitted and no admission log is written.
	assert.Empty(t, enquiries.statuses)
	assert.Empty(t, comms.created)

	// Student row and marker survive so a retry can resume once a seat opens.
	require.NotNil(t, students.created)
	marker := conversions.markers["enq-1"]
	require.NotNil(t, marker)
	assert.False(t, marker.SeatsUpdated)
	assert.False(t, marker.Complete())
}

func TestConversionServiceConvertRetriesStudentCodeCollision(t *testing.T) {
	svc, _, _, students, _, _, _ := newConversionFixture(models.EnquiryStatusNew, 10, 50)
	students.dupRemaining = 2

	result, err := svc.Convert(context.Background(), "enq-1", validConvertRequest())
	require.NoError(t, err)
	// Two collisions consumed two counter values before the third stuck.
	assert.Equal(t, "STU250003", result.Student.StudentID)
}

func TestConversionServiceConvertCollisionExhaustsRetries(t *testing.T) {
	svc, _, _, students, _, _, _ := newConversionFixture(models.EnquiryStatusNew, 10, 50)
	students.dupRemaining = 3

	_, err := svc.Convert(context.Background(), "enq-1", validConvertRequest())
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestConversionServiceConvertStoreUnavailable(t *testing.T) {
	svc, _, enquiries, students, _, _, _ := newConversionFixture(models.EnquiryStatusNew, 10, 50)
	students.createErr = &pq.Error{Code: "08006"}

	_, err := svc.Convert(context.Background(), "enq-1", validConvertRequest())
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrStoreUnavailable))
	assert.Empty(t, enquiries.statuses)
}

func TestConversionServicePrefill(t *testing.T) {
	svc, _, _, _, _, _, _ := newConversionFixture(models.EnquiryStatusNew, 10, 50)

	prefill, err := svc.Prefill(context.Background(), "enq-1")
	require.NoError(t, err)
	assert.Equal(t, "Priya Sharma", prefill.FullName)
	assert.Equal(t, "MBA", prefill.Course)

	_, err = svc.Prefill(context.Background(), "missing")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestConversionServiceResumeIncomplete(t *testing.T) {
	svc, conversions, enquiries, students, _, _, _ := newConversionFixture(models.EnquiryStatusNew, 11, 50)
	students.students = map[string]*models.Student{
		"stu-row-1": {ID: "stu-row-1", StudentID: "STU250001", Course: "MBA"},
	}
	conversions.markers = map[string]*models.Conversion{
		"enq-1": {ID: "conv-1", EnquiryID: "enq-1", StudentID: "stu-row-1", SeatsUpdated: true},
	}

	require.NoError(t, svc.ResumeIncomplete(context.Background(), 10))
	assert.Equal(t, models.EnquiryStatusAdmitted, enquiries.statuses["enq-1"])
}
