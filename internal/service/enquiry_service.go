package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campushq/admissions-api/internal/models"
	appErrors "github.com/campushq/admissions-api/pkg/errors"
)

type enquiryRepository interface {
	List(ctx context.Context, filter models.EnquiryFilter) ([]models.Enquiry, int, error)
	FindByID(ctx context.Context, id string) (*models.Enquiry, error)
	Create(ctx context.Context, enquiry *models.Enquiry) error
	Update(ctx context.Context, enquiry *models.Enquiry) error
	UpdateStatus(ctx context.Context, id string, status models.EnquiryStatus) error
	Delete(ctx context.Context, id string) error
}

// CreateEnquiryRequest describes an enquiry creation payload.
type CreateEnquiryRequest struct {
	StudentName   string     `json:"student_name" validate:"required,min=2,max=150"`
	Email         string     `json:"email" validate:"required,email"`
	Phone         string     `json:"phone" validate:"required,min=7,max=20"`
	CourseApplied string     `json:"course_applied" validate:"required"`
	Source        string     `json:"source" validate:"required,oneof=Walk-in Phone Email Website Referral 'Social Media'"`
	Address       string     `json:"address"`
	Remarks       string     `json:"remarks"`
	FollowUpDate  *time.Time `json:"follow_up_date"`
}

// UpdateEnquiryRequest describes an enquiry update payload.
type UpdateEnquiryRequest struct {
	StudentName   string     `json:"student_name" validate:"required,min=2,max=150"`
	Email         string     `json:"email" validate:"required,email"`
	Phone         string     `json:"phone" validate:"required,min=7,max=20"`
	CourseApplied string     `json:"course_applied" validate:"required"`
	Source        string     `json:"source" validate:"required,oneof=Walk-in Phone Email Website Referral 'Social Media'"`
	Address       string     `json:"address"`
	Remarks       string     `json:"remarks"`
	FollowUpDate  *time.Time `json:"follow_up_date"`
}

// UpdateEnquiryStatusRequest describes a status transition payload.
type UpdateEnquiryStatusRequest struct {
	Status models.EnquiryStatus `json:"status" validate:"required"`
}

// EnquiryService manages the admission enquiry funnel.
type EnquiryService struct {
	repo      enquiryRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnquiryService constructs an EnquiryService.
func NewEnquiryService(repo enquiryRepository, validate *validator.Validate, logger *zap.Logger) *EnquiryService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnquiryService{repo: repo, validator: validate, logger: logger}
}

// List returns enquiries with pagination metadata.
func (s *EnquiryService) List(ctx context.Context, filter models.EnquiryFilter) ([]models.Enquiry, *models.Pagination, error) {
	enquiries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enquiries")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return enquiries, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a single enquiry.
func (s *EnquiryService) Get(ctx context.Context, id string) (*models.Enquiry, error) {
	enquiry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enquiry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enquiry")
	}
	return enquiry, nil
}

// Create records a new enquiry entering the funnel at status New.
func (s *EnquiryService) Create(ctx context.Context, req CreateEnquiryRequest) (*models.Enquiry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enquiry payload")
	}
	enquiry := &models.Enquiry{
		StudentName:   req.StudentName,
		Email:         req.Email,
		Phone:         req.Phone,
		CourseApplied: req.CourseApplied,
		Status:        models.EnquiryStatusNew,
		Source:        models.EnquirySource(req.Source),
		Address:       req.Address,
		Remarks:       req.Remarks,
		FollowUpDate:  req.FollowUpDate,
	}
	if err := s.repo.Create(ctx, enquiry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enquiry")
	}
	s.logger.Info("enquiry created", zap.String("enquiry_id", enquiry.ID), zap.String("course", enquiry.CourseApplied))
	return enquiry, nil
}

// Update modifies the contact and course details of an enquiry. Admitted
// enquiries are frozen; their data already seeded a student record.
func (s *EnquiryService) Update(ctx context.Context, id string, req UpdateEnquiryRequest) (*models.Enquiry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enquiry payload")
	}
	enquiry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enquiry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enquiry")
	}
	if enquiry.Status == models.EnquiryStatusAdmitted {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "admitted enquiries cannot be edited")
	}
	enquiry.StudentName = req.StudentName
	enquiry.Email = req.Email
	enquiry.Phone = req.Phone
	enquiry.CourseApplied = req.CourseApplied
	enquiry.Source = models.EnquirySource(req.Source)
	enquiry.Address = req.Address
	enquiry.Remarks = req.Remarks
	enquiry.FollowUpDate = req.FollowUpDate
	if err := s.repo.Update(ctx, enquiry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enquiry")
	}
	return enquiry, nil
}

// UpdateStatus transitions the funnel status. Setting Admitted directly is a
// manual override: no student record, seat count or communication log comes
// with it. The conversion workflow is the automated path.
func (s *EnquiryService) UpdateStatus(ctx context.Context, id string, req UpdateEnquiryStatusRequest) (*models.Enquiry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	if !models.ValidEnquiryStatus(req.Status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown enquiry status")
	}
	enquiry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enquiry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enquiry")
	}
	if enquiry.Status == models.EnquiryStatusAdmitted {
		return nil, appErrors.Clone(appErrors.ErrAlreadyAdmitted, "")
	}
	if err := s.repo.UpdateStatus(ctx, id, req.Status); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enquiry status")
	}
	enquiry.Status = req.Status
	return enquiry, nil
}

// Delete removes an enquiry. Admitted enquiries stay for the audit trail.
func (s *EnquiryService) Delete(ctx context.Context, id string) error {
	enquiry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "enquiry not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enquiry")
	}
	if enquiry.Status == models.EnquiryStatusAdmitted {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "admitted enquiries cannot be deleted")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "enquiry not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete enquiry")
	}
	return nil
}
