package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/campushq/admissions-api/internal/models"
	appErrors "github.com/campushq/admissions-api/pkg/errors"
)

type dashboardEnquiryReader interface {
	CountSince(ctx context.Context, since time.Time) (int, error)
	StatusCounts(ctx context.Context) ([]models.StatusCount, error)
	ListRecent(ctx context.Context, limit int) ([]models.Enquiry, error)
}

type dashboardStudentReader interface {
	CountSince(ctx context.Context, since time.Time) (int, error)
	StatusCounts(ctx context.Context) ([]models.StatusCount, error)
	ListRecent(ctx context.Context, limit int) ([]models.Student, error)
}

type dashboardFeeReader interface {
	Totals(ctx context.Context) (*models.FeeTotals, error)
}

const (
	dashboardStatsCacheKey    = "dashboard:stats"
	dashboardActivityCacheKey = "dashboard:activity"
	dashboardRecentWindow     = 7 * 24 * time.Hour
	dashboardRecentLimit      = 5
)

// DashboardService aggregates funnel statistics for the overview screen.
type DashboardService struct {
	enquiries dashboardEnquiryReader
	students  dashboardStudentReader
	fees      dashboardFeeReader
	cache     *CacheService
	cacheTTL  time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(enquiries dashboardEnquiryReader, students dashboardStudentReader, fees dashboardFeeReader, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		enquiries: enquiries,
		students:  students,
		fees:      fees,
		cache:     cache,
		cacheTTL:  cacheTTL,
		now:       time.Now,
		logger:    logger,
	}
}

// Stats returns the aggregated dashboard counters. The boolean reports
// whether the payload came from cache.
func (s *DashboardService) Stats(ctx context.Context) (*models.DashboardStats, bool, error) {
	var cached models.DashboardStats
	if hit, err := s.cache.Get(ctx, dashboardStatsCacheKey, &cached); err == nil && hit {
		return &cached, true, nil
	}

	stats, err := s.composeStats(ctx)
	if err != nil {
		return nil, false, err
	}
	if err := s.cache.Set(ctx, dashboardStatsCacheKey, stats, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache dashboard stats", zap.Error(err))
	}
	return stats, false, nil
}

// RecentActivity returns the latest enquiries and admissions.
func (s *DashboardService) RecentActivity(ctx context.Context) (*models.RecentActivity, bool, error) {
	var cached models.RecentActivity
	if hit, err := s.cache.Get(ctx, dashboardActivityCacheKey, &cached); err == nil && hit {
		return &cached, true, nil
	}

	enquiries, err := s.enquiries.ListRecent(ctx, dashboardRecentLimit)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list recent enquiries")
	}
	students, err := s.students.ListRecent(ctx, dashboardRecentLimit)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list recent students")
	}
	activity := &models.RecentActivity{RecentEnquiries: enquiries, RecentStudents: students}
	if err := s.cache.Set(ctx, dashboardActivityCacheKey, activity, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache recent activity", zap.Error(err))
	}
	return activity, false, nil
}

// InvalidateCache drops cached dashboard payloads. Write paths call this so
// the overview never serves stale counters longer than a write cycle.
func (s *DashboardService) InvalidateCache(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, "dashboard:*"); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}

func (s *DashboardService) composeStats(ctx context.Context) (*models.DashboardStats, error) {
	now := s.now().UTC()
	since := now.Add(-dashboardRecentWindow)

	enquiryCounts, err := s.enquiries.StatusCounts(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enquiries")
	}
	studentCounts, err := s.students.StatusCounts(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}
	recentEnquiries, err := s.enquiries.CountSince(ctx, since)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count recent enquiries")
	}
	recentAdmissions, err := s.students.CountSince(ctx, since)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count recent admissions")
	}
	feeTotals, err := s.fees.Totals(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to total fees")
	}

	stats := &models.DashboardStats{
		Enquiries: foldEnquiryCounts(enquiryCounts),
		Students:  foldStudentCounts(studentCounts),
		Fees:      *feeTotals,
		Generated: now,
	}
	stats.Overview = models.DashboardOverview{
		TotalEnquiries:   stats.Enquiries.Total,
		TotalStudents:    stats.Students.Total,
		RecentEnquiries:  recentEnquiries,
		RecentAdmissions: recentAdmissions,
	}
	return stats, nil
}

func foldEnquiryCounts(rows []models.StatusCount) models.EnquiryStatusCounts {
	var counts models.EnquiryStatusCounts
	for _, row := range rows {
		counts.Total += row.Count
		switch models.EnquiryStatus(row.Status) {
		case models.EnquiryStatusNew:
			counts.New = row.Count
		case models.EnquiryStatusContacted:
			counts.Contacted = row.Count
		case models.EnquiryStatusAdmitted:
			counts.Admitted = row.Count
		case models.EnquiryStatusRejected:
			counts.Rejected = row.Count
		}
	}
	return counts
}

func foldStudentCounts(rows []models.StatusCount) models.StudentStatusCounts {
	var counts models.StudentStatusCounts
	for _, row := range rows {
		counts.Total += row.Count
		switch models.StudentStatus(row.Status) {
		case models.StudentStatusActive:
			counts.Active = row.Count
		case models.StudentStatusInactive:
			counts.Inactive = row.Count
		case models.StudentStatusGraduated:
			counts.Graduated = row.Count
		case models.StudentStatusDropped:
			counts.Dropped = row.Count
		}
	}
	return counts
}
