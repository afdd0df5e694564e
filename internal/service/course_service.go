package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campushq/admissions-api/internal/models"
	appErrors "github.com/campushq/admissions-api/pkg/errors"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	ListActiveSummaries(ctx context.Context) ([]models.CourseSummary, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	ExistsByCode(ctx context.Context, code, excludeID string) (bool, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	AdjustFilledSeats(ctx context.Context, id string, delta int) (*models.Course, error)
	SetFilledSeats(ctx context.Context, id string, filled int) (*models.Course, error)
	Delete(ctx context.Context, id string) error
}

// CreateCourseRequest describes a course creation payload.
type CreateCourseRequest struct {
	CourseName        string  `json:"course_name" validate:"required,min=2,max=150"`
	CourseCode        string  `json:"course_code" validate:"required,min=2,max=20"`
	DurationYears     int     `json:"duration_years" validate:"min=0"`
	DurationSemesters int     `json:"duration_semesters" validate:"min=0"`
	Department        string  `json:"department"`
	TotalFees         float64 `json:"total_fees" validate:"min=0"`
	AdmissionFee      float64 `json:"admission_fee" validate:"min=0"`
	CautionDeposit    float64 `json:"caution_deposit" validate:"min=0"`
	YearlyFee         float64 `json:"yearly_fee" validate:"min=0"`
	ExamFeePerSem     float64 `json:"exam_fee_per_sem" validate:"min=0"`
	SeatsTotal        int     `json:"seats_total" validate:"min=0"`
	Description       string  `json:"description"`
	Eligibility       string  `json:"eligibility"`
	IsActive          *bool   `json:"is_active"`
}

// UpdateCourseRequest describes a course update payload.
type UpdateCourseRequest struct {
	CourseName        string  `json:"course_name" validate:"required,min=2,max=150"`
	CourseCode        string  `json:"course_code" validate:"required,min=2,max=20"`
	DurationYears     int     `json:"duration_years" validate:"min=0"`
	DurationSemesters int     `json:"duration_semesters" validate:"min=0"`
	Department        string  `json:"department"`
	TotalFees         float64 `json:"total_fees" validate:"min=0"`
	AdmissionFee      float64 `json:"admission_fee" validate:"min=0"`
	CautionDeposit    float64 `json:"caution_deposit" validate:"min=0"`
	YearlyFee         float64 `json:"yearly_fee" validate:"min=0"`
	ExamFeePerSem     float64 `json:"exam_fee_per_sem" validate:"min=0"`
	SeatsTotal        int     `json:"seats_total" validate:"min=0"`
	Description       string  `json:"description"`
	Eligibility       string  `json:"eligibility"`
	IsActive          *bool   `json:"is_active"`
}

// AdjustSeatsRequest describes a relative seat adjustment.
type AdjustSeatsRequest struct {
	Delta int `json:"delta" validate:"required"`

	ActorID string `json:"-"`
}

// SetSeatsRequest describes an absolute filled-seat correction.
type SetSeatsRequest struct {
	Filled *int `json:"filled" validate:"required,min=0"`

	ActorID string `json:"-"`
}

// CourseService manages courses and their seat occupancy.
type CourseService struct {
	repo      courseRepository
	audit     auditWriter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs a CourseService.
func NewCourseService(repo courseRepository, audit auditWriter, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// List returns courses with pagination metadata.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return courses, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// ActiveList returns the trimmed active-course list for dropdowns.
func (s *CourseService) ActiveList(ctx context.Context) ([]models.CourseSummary, error) {
	summaries, err := s.repo.ListActiveSummaries(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list active courses")
	}
	return summaries, nil
}

// Get returns a single course.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// Create registers a new course with all seats free.
func (s *CourseService) Create(ctx context.Context, req CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	exists, err := s.repo.ExistsByCode(ctx, req.CourseCode, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate course code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "course code already in use")
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	course := &models.Course{
		CourseName:        req.CourseName,
		CourseCode:        req.CourseCode,
		DurationYears:     req.DurationYears,
		DurationSemesters: req.DurationSemesters,
		Department:        req.Department,
		TotalFees:         req.TotalFees,
		AdmissionFee:      req.AdmissionFee,
		CautionDeposit:    req.CautionDeposit,
		YearlyFee:         req.YearlyFee,
		ExamFeePerSem:     req.ExamFeePerSem,
		SeatsTotal:        req.SeatsTotal,
		Description:       req.Description,
		Eligibility:       req.Eligibility,
		IsActive:          active,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	s.logger.Info("course created", zap.String("course_id", course.ID), zap.String("code", course.CourseCode))
	return course, nil
}

// Update modifies course metadata and capacity.
func (s *CourseService) Update(ctx context.Context, id string, req UpdateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if req.SeatsTotal < course.SeatsFilled {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed,
			fmt.Sprintf("seats_total cannot drop below the %d already filled", course.SeatsFilled))
	}
	exists, err := s.repo.ExistsByCode(ctx, req.CourseCode, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate course code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "course code already in use")
	}
	course.CourseName = req.CourseName
	course.CourseCode = req.CourseCode
	course.DurationYears = req.DurationYears
	course.DurationSemesters = req.DurationSemesters
	course.Department = req.Department
	course.TotalFees = req.TotalFees
	course.AdmissionFee = req.AdmissionFee
	course.CautionDeposit = req.CautionDeposit
	course.YearlyFee = req.YearlyFee
	course.ExamFeePerSem = req.ExamFeePerSem
	course.SeatsTotal = req.SeatsTotal
	course.Description = req.Description
	course.Eligibility = req.Eligibility
	if req.IsActive != nil {
		course.IsActive = *req.IsActive
	}
	if err := s.repo.Update(ctx, course); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "seat capacity changed concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	course.SeatsAvailable = course.SeatsTotal - course.SeatsFilled
	return course, nil
}

// AdjustSeats applies a relative manual correction to the filled-seat counter.
func (s *CourseService) AdjustSeats(ctx context.Context, id string, req AdjustSeatsRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid seat adjustment payload")
	}
	return s.applySeatChange(ctx, id, req.ActorID, func() (*models.Course, error) {
		return s.repo.AdjustFilledSeats(ctx, id, req.Delta)
	})
}

// SetSeats sets the absolute filled-seat counter.
func (s *CourseService) SetSeats(ctx context.Context, id string, req SetSeatsRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid seat payload")
	}
	return s.applySeatChange(ctx, id, req.ActorID, func() (*models.Course, error) {
		return s.repo.SetFilledSeats(ctx, id, *req.Filled)
	})
}

func (s *CourseService) applySeatChange(ctx context.Context, id, actorID string, change func() (*models.Course, error)) (*models.Course, error) {
	// Existence first, so a missing course is NotFound rather than a
	// capacity violation.
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	course, err := change()
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrCapacityExceeded, "seat change violates course capacity")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to change course seats")
	}
	s.writeSeatAudit(ctx, actorID, course)
	return course, nil
}

func (s *CourseService) writeSeatAudit(ctx context.Context, actorID string, course *models.Course) {
	if s.audit == nil || actorID == "" {
		return
	}
	entry := &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionSeatOverride,
		Resource:   "course",
		ResourceID: &course.ID,
		NewValues:  []byte(fmt.Sprintf(`{"seats_filled":%d,"seats_available":%d}`, course.SeatsFilled, course.SeatsAvailable)),
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("seat audit log failed", zap.String("course_id", course.ID), zap.Error(err))
	}
}

// Delete removes a course permanently.
func (s *CourseService) Delete(ctx context.Context, id string) error {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if course.SeatsFilled > 0 {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "course still has admitted students")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	return nil
}
