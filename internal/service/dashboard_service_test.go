package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campushq/admissions-api/internal/models"
	appErrors "github.com/campushq/admissions-api/pkg/errors"
)

type mockDashboardEnquiries struct {
	counts []models.StatusCount
	since  int
	recent []models.Enquiry
	calls  int
}

func (m *mockDashboardEnquiries) CountSince(ctx context.Context, since time.Time) (int, error) {
	return m.since, nil
}

func (m *mockDashboardEnquiries) StatusCounts(ctx context.Context) ([]models.StatusCount, error) {
	m.calls++
	return m.counts, nil
}

func (m *mockDashboardEnquiries) ListRecent(ctx context.Context, limit int) ([]models.Enquiry, error) {
	return m.recent, nil
}

type mockDashboardStudents struct {
	counts []models.StatusCount
	since  int
	recent []models.Student
}

func (m *mockDashboardStudents) CountSince(ctx context.Context, since time.Time) (int, error) {
	return m.since, nil
}

func (m *mockDashboardStudents) StatusCounts(ctx context.Context) ([]models.StatusCount, error) {
	return m.counts, nil
}

func (m *mockDashboardStudents) ListRecent(ctx context.Context, limit int) ([]models.Student, error) {
	return m.recent, nil
}

type mockDashboardFees struct {
	totals models.FeeTotals
}

func (m *mockDashboardFees) Totals(ctx context.Context) (*models.FeeTotals, error) {
	totals := m.totals
	return &totals, nil
}

type memoryCacheRepo struct {
	entries map[string][]byte
	deleted []string
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.entries == nil {
		m.entries = make(map[string][]byte)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.deleted = append(m.deleted, pattern)
	m.entries = make(map[string][]byte)
	return nil
}

func newDashboardFixture(cache *CacheService) (*DashboardService, *mockDashboardEnquiries) {
	enquiries := &mockDashboardEnquiries{
		counts: []models.StatusCount{
			{Status: "New", Count: 12},
			{Status: "Contacted", Count: 7},
			{Status: "Admitted", Count: 5},
			{Status: "Rejected", Count: 2},
		},
		since:  4,
		recent: []models.Enquiry{{ID: "e1", StudentName: "Priya Sharma"}},
	}
	students := &mockDashboardStudents{
		counts: []models.StatusCount{
			{Status: "Active", Count: 40},
			{Status: "Graduated", Count: 10},
		},
		since:  3,
		recent: []models.Student{{ID: "s1", FullName: "Priya Sharma"}},
	}
	fees := &mockDashboardFees{totals: models.FeeTotals{TotalAmount: 100000, TotalPaid: 60000, TotalPending: 40000}}
	svc := NewDashboardService(enquiries, students, fees, cache, time.Minute, zap.NewNop())
	return svc, enquiries
}

func TestDashboardServiceStats(t *testing.T) {
	cache := NewCacheService(nil, nil, 0, zap.NewNop(), false)
	svc, _ := newDashboardFixture(cache)

	stats, cached, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)

	assert.Equal(t, 26, stats.Overview.TotalEnquiries)
	assert.Equal(t, 50, stats.Overview.TotalStudents)
	assert.Equal(t, 4, stats.Overview.RecentEnquiries)
	assert.Equal(t, 3, stats.Overview.RecentAdmissions)
	assert.Equal(t, 12, stats.Enquiries.New)
	assert.Equal(t, 5, stats.Enquiries.Admitted)
	assert.Equal(t, 40, stats.Students.Active)
	assert.Equal(t, 10, stats.Students.Graduated)
	assert.Equal(t, 40000.0, stats.Fees.TotalPending)
}

func TestDashboardServiceStatsServedFromCache(t *testing.T) {
	repo := &memoryCacheRepo{}
	cache := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)
	svc, enquiries := newDashboardFixture(cache)

	_, cached, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 1, enquiries.calls)

	stats, cached, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, 1, enquiries.calls)
	assert.Equal(t, 26, stats.Overview.TotalEnquiries)
}

func TestDashboardServiceRecentActivity(t *testing.T) {
	cache := NewCacheService(nil, nil, 0, zap.NewNop(), false)
	svc, _ := newDashboardFixture(cache)

	activity, cached, err := svc.RecentActivity(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)
	require.Len(t, activity.RecentEnquiries, 1)
	require.Len(t, activity.RecentStudents, 1)
}

func TestDashboardServiceInvalidateCache(t *testing.T) {
	repo := &memoryCacheRepo{}
	cache := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)
	svc, enquiries := newDashboardFixture(cache)

	_, _, err := svc.Stats(context.Background())
	require.NoError(t, err)

	svc.InvalidateCache(context.Background())
	assert.Contains(t, repo.deleted, "dashboard:*")

	_, cached, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 2, enquiries.calls)
}
