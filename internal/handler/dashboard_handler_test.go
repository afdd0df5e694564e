package handler

import (
	"context"
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
	appErrors "github.com/campushq/admissions-api/pkg/errors"
)

type fakeEnquiryReader struct {
	recent int
	counts []models.StatusCount
	latest []models.Enquiry
}

func (f *fakeEnquiryReader) CountSince(context.Context, time.Time) (int, error) {
	return f.recent, nil
}

func (f *fakeEnquiryReader) StatusCounts(context.Context) ([]models.StatusCount, error) {
	return f.counts, nil
}

func (f *fakeEnquiryReader) ListRecent(context.Context, int) ([]models.Enquiry, error) {
	return f.latest, nil
}

type fakeStudentReader struct {
	recent int
	counts []models.StatusCount
	latest []models.Student
}

func (f *fakeStudentReader) CountSince(context.Context, time.Time) (int, error) {
	return f.recent, nil
}

func (f *fakeStudentReader) StatusCounts(context.Context) ([]models.StatusCount, error) {
	return f.counts, nil
}

func (f *fakeStudentReader) ListRecent(context.Context, int) ([]models.Student, error) {
	return f.latest, nil
}

type fakeFeeReader struct {
	totals models.FeeTotals
}

func (f *fakeFeeReader) Totals(context.Context) (*models.FeeTotals, error) {
	totals := f.totals
	return &totals, nil
}

type stubCacheStore struct {
	entries map[string][]byte
}

func (s *stubCacheStore) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := s.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (s *stubCacheStore) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.entries[key] = raw
	return nil
}

func (s *stubCacheStore) DeleteByPattern(context.Context, string) error {
	s.entries = map[string][]byte{}
	return nil
}

func newDashboardHandlerFixture() *DashboardHandler {
	cacheSvc := service.NewCacheService(&stubCacheStore{entries: map[string][]byte{}}, nil, time.Minute, nil, true)
	dashboardSvc := service.NewDashboardService(
		&fakeEnquiryReader{recent: 4, counts: []models.StatusCount{{Status: "New", Count: 10}, {Status: "Admitted", Count: 3}}},
		&fakeStudentReader{recent: 3, counts: []models.StatusCount{{Status: "Active", Count: 12}}},
		&fakeFeeReader{totals: models.FeeTotals{TotalAmount: 100000, TotalPaid: 70000, TotalPending: 30000}},
		cacheSvc, time.Minute, nil)
	return NewDashboardHandler(dashboardSvc)
}

func TestDashboardHandlerStats(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newDashboardHandlerFixture()

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/stats", nil)

	handler.Stats(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "miss", envelope.Meta["cache"])

	overview, ok := envelope.Data["overview"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(13), overview["total_enquiries"])
	assert.Equal(t, float64(12), overview["total_students"])
}

func TestDashboardHandlerStatsCacheHit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newDashboardHandlerFixture()

	first := httptest.NewRecorder()
	c1, _ := gin.CreateTestContext(first)
	c1.Request = httptest.NewRequest(http.MethodGet, "/dashboard/stats", nil)
	handler.Stats(c1)
	require.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	c2, _ := gin.CreateTestContext(second)
	c2.Request = httptest.NewRequest(http.MethodGet, "/dashboard/stats", nil)
	handler.Stats(c2)

	require.Equal(t, http.StatusOK, second.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &envelope))
	assert.Equal(t, "hit", envelope.Meta["cache"])
}

func TestDashboardHandlerRecentActivity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newDashboardHandlerFixture()

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/recent-activities", nil)

	handler.RecentActivity(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "miss", envelope.Meta["cache"])
}

type responseEnvelope struct {
	Data map[string]interface{} `json:"data"`
	Meta map[string]interface{} `json:"meta"`
}
