package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushq/admissions-api/internal/models"
	"github.com/campushq/admissions-api/internal/service"
)

type fakeCommunicationRepo struct {
	pending   []models.Communication
	lastDueBy time.Time
}

func (f *fakeCommunicationRepo) List(context.Context, models.CommunicationFilter) ([]models.Communication, int, error) {
	return nil, 0, nil
}

func (f *fakeCommunicationRepo) FindByID(context.Context, string) (*models.Communication, error) {
	return nil, sql.ErrNoRows
}

func (f *fakeCommunicationRepo) Create(context.Context, *models.Communication) error { return nil }

func (f *fakeCommunicationRepo) Update(context.Context, *models.Communication) error { return nil }

func (f *fakeCommunicationRepo) CompleteFollowUp(context.Context, string) error {
	return sql.ErrNoRows
}

func (f *fakeCommunicationRepo) ListPendingFollowUps(_ context.Context, dueBy time.Time) ([]models.Communication, error) {
	f.lastDueBy = dueBy
	return f.pending, nil
}

func (f *fakeCommunicationRepo) Delete(context.Context, string) error { return sql.ErrNoRows }

type fakeCommEnquiries struct{}

func (fakeCommEnquiries) FindByID(context.Context, string) (*models.Enquiry, error) {
	return nil, sql.ErrNoRows
}

type fakeCommStudents struct{}

func (fakeCommStudents) FindByID(context.Context, string) (*models.Student, error) {
	return nil, sql.ErrNoRows
}

func TestCommunicationHandlerPendingFollowUps(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &fakeCommunicationRepo{pending: []models.Communication{{ID: "c1", Subject: "Campus tour"}}}
	handler := NewCommunicationHandler(service.NewCommunicationService(repo, fakeCommEnquiries{}, fakeCommStudents{}, nil, nil))

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/communications/follow-ups?due_by=2026-09-15", nil)

	handler.PendingFollowUps(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2026, repo.lastDueBy.Year())
	assert.Equal(t, time.September, repo.lastDueBy.Month())

	var envelope struct {
		Data []models.Communication `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, "Campus tour", envelope.Data[0].Subject)
}

func TestCommunicationHandlerPendingFollowUpsRejectsBadDate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewCommunicationHandler(nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/communications/follow-ups?due_by=next-tuesday", nil)

	handler.PendingFollowUps(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCommunicationHandlerGetNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewCommunicationHandler(service.NewCommunicationService(&fakeCommunicationRepo{}, fakeCommEnquiries{}, fakeCommStudents{}, nil, nil))

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/communications/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	handler.Get(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
