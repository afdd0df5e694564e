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

type communicationRepository interface {
	List(ctx context.Context, filter models.CommunicationFilter) ([]models.Communication, int, error)
	FindByID(ctx context.Context, id string) (*models.Communication, error)
	Create(ctx context.Context, comm *models.Communication) error
	Update(ctx context.Context, comm *models.Communication) error
	CompleteFollowUp(ctx context.Context, id string) error
	ListPendingFollowUps(ctx context.Context, dueBy time.Time) ([]models.Communication, error)
	Delete(ctx context.Context, id string) error
}

type communicationEnquiryReader interface {
	FindByID(ctx context.Context, id string) (*models.Enquiry, error)
}

type communicationStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// CreateCommunicationRequest describes a communication log payload. At least
// one of enquiry and student must be referenced.
type CreateCommunicationRequest struct {
	EnquiryID         string     `json:"enquiry_id"`
	StudentID         string     `json:"student_id"`
	CommunicationType string     `json:"communication_type" validate:"required"`
	Subject           string     `json:"subject" validate:"required,min=2,max=200"`
	Notes             string     `json:"notes"`
	CommunicationDate *time.Time `json:"communication_date"`
	FollowUpRequired  bool       `json:"follow_up_required"`
	FollowUpDate      *time.Time `json:"follow_up_date"`

	ActorID   string `json:"-"`
	ActorName string `json:"-"`
}

// UpdateCommunicationRequest describes a communication update payload.
type UpdateCommunicationRequest struct {
	CommunicationType string     `json:"communication_type" validate:"required"`
	Subject           string     `json:"subject" validate:"required,min=2,max=200"`
	Notes             string     `json:"notes"`
	CommunicationDate *time.Time `json:"communication_date"`
	FollowUpRequired  bool       `json:"follow_up_required"`
	FollowUpDate      *time.Time `json:"follow_up_date"`
	FollowUpCompleted bool       `json:"follow_up_completed"`
}

// CommunicationService manages the interaction log and its follow-up queue.
type CommunicationService struct {
	repo      communicationRepository
	enquiries communicationEnquiryReader
	students  communicationStudentReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCommunicationService constructs a CommunicationService.
func NewCommunicationService(repo communicationRepository, enquiries communicationEnquiryReader, students communicationStudentReader, validate *validator.Validate, logger *zap.Logger) *CommunicationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommunicationService{repo: repo, enquiries: enquiries, students: students, validator: validate, logger: logger}
}

// List returns communications with pagination metadata.
func (s *CommunicationService) List(ctx context.Context, filter models.CommunicationFilter) ([]models.Communication, *models.Pagination, error) {
	communications, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list communications")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return communications, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a single communication log entry.
func (s *CommunicationService) Get(ctx context.Context, id string) (*models.Communication, error) {
	comm, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "communication not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load communication")
	}
	return comm, nil
}

// Create records a new interaction.
func (s *CommunicationService) Create(ctx context.Context, req CreateCommunicationRequest) (*models.Communication, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid communication payload")
	}
	if req.EnquiryID == "" && req.StudentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "communication must reference an enquiry or a student")
	}
	if req.FollowUpRequired && req.FollowUpDate == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "follow-up date is required when a follow-up is requested")
	}

	comm := &models.Communication{
		CommunicationType: models.CommunicationType(req.CommunicationType),
		Subject:           req.Subject,
		Notes:             req.Notes,
		FollowUpRequired:  req.FollowUpRequired,
		FollowUpDate:      req.FollowUpDate,
		RecordedBy:        req.ActorID,
		RecordedByName:    req.ActorName,
	}
	if req.CommunicationDate != nil {
		comm.CommunicationDate = *req.CommunicationDate
	}
	if req.EnquiryID != "" {
		if _, err := s.enquiries.FindByID(ctx, req.EnquiryID); err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "enquiry not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enquiry")
		}
		comm.EnquiryID = &req.EnquiryID
	}
	if req.StudentID != "" {
		if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
		}
		comm.StudentID = &req.StudentID
	}

	if err := s.repo.Create(ctx, comm); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create communication")
	}
	return comm, nil
}

// Update modifies a communication log entry.
func (s *CommunicationService) Update(ctx context.Context, id string, req UpdateCommunicationRequest) (*models.Communication, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid communication payload")
	}
	if req.FollowUpRequired && req.FollowUpDate == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "follow-up date is required when a follow-up is requested")
	}
	comm, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "communication not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load communication")
	}
	comm.CommunicationType = models.CommunicationType(req.CommunicationType)
	comm.Subject = req.Subject
	comm.Notes = req.Notes
	comm.FollowUpRequired = req.FollowUpRequired
	comm.FollowUpDate = req.FollowUpDate
	comm.FollowUpCompleted = req.FollowUpCompleted
	if req.CommunicationDate != nil {
		comm.CommunicationDate = *req.CommunicationDate
	}
	if err := s.repo.Update(ctx, comm); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update communication")
	}
	return comm, nil
}

// CompleteFollowUp marks a follow-up as done.
func (s *CommunicationService) CompleteFollowUp(ctx context.Context, id string) (*models.Communication, error) {
	if err := s.repo.CompleteFollowUp(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "communication not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete follow-up")
	}
	return s.Get(ctx, id)
}

// PendingFollowUps lists follow-ups due on or before the given day.
func (s *CommunicationService) PendingFollowUps(ctx context.Context, dueBy time.Time) ([]models.Communication, error) {
	if dueBy.IsZero() {
		dueBy = time.Now().UTC()
	}
	communications, err := s.repo.ListPendingFollowUps(ctx, dueBy)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending follow-ups")
	}
	return communications, nil
}

// Delete removes a communication log entry.
func (s *CommunicationService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "communication not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete communication")
	}
	return nil
}
