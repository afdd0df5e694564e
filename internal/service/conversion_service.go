package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/campushq/admissions-api/internal/models"
	"github.com/campushq/admissions-api/internal/repository"
	appErrors "github.com/campushq/admissions-api/pkg/errors"
)

type conversionStore interface {
	FindByEnquiryID(ctx context.Context, enquiryID string) (*models.Conversion, error)
	CreateIn(ctx context.Context, tx *sqlx.Tx, conv *models.Conversion) error
	MarkStep(ctx context.Context, id, step string) error
	ListIncomplete(ctx context.Context, limit int) ([]models.Conversion, error)
}

type conversionEnquiryStore interface {
	FindByID(ctx context.Context, id string) (*models.Enquiry, error)
	UpdateStatus(ctx context.Context, id string, status models.EnquiryStatus) error
}

type conversionStudentStore interface {
	CreateIn(ctx context.Context, tx *sqlx.Tx, student *models.Student) error
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type conversionCourseStore interface {
	FindByName(ctx context.Context, name string) (*models.Course, error)
	AdjustFilledSeats(ctx context.Context, id string, delta int) (*models.Course, error)
}

type conversionCommunicationWriter interface {
	Create(ctx context.Context, comm *models.Communication) error
}

type studentIDAllocator interface {
	NextStudentID(ctx context.Context, tx *sqlx.Tx) (string, error)
}

type txRunner interface {
	RunInTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// ConvertEnquiryRequest carries the admission details collected when an
// enquiry is converted into a student.
type ConvertEnquiryRequest struct {
	DateOfBirth      time.Time `json:"date_of_birth" validate:"required"`
	Gender           string    `json:"gender" validate:"required,oneof=Male Female Other"`
	Year             int       `json:"year" validate:"min=0"`
	Semester         int       `json:"semester" validate:"min=0"`
	AddressStreet    string    `json:"address_street"`
	AddressCity      string    `json:"address_city"`
	AddressState     string    `json:"address_state"`
	AddressPincode   string    `json:"address_pincode"`
	GuardianName     string    `json:"guardian_name"`
	GuardianPhone    string    `json:"guardian_phone"`
	GuardianRelation string    `json:"guardian_relation"`
	BloodGroup       string    `json:"blood_group"`
	Remarks          string    `json:"remarks"`

	ActorID   string `json:"-"`
	ActorName string `json:"-"`
}

// ConversionService orchestrates the enquiry→student admission workflow.
// Identifier allocation, student insert and the workflow marker commit in one
// transaction; the downstream automation steps each flip their marker flag as
// they land, so a crash mid-way leaves a resumable record instead of a silent
// inconsistency.
type ConversionService struct {
	conversions    conversionStore
	enquiries      conversionEnquiryStore
	students       conversionStudentStore
	courses        conversionCourseStore
	communications conversionCommunicationWriter
	sequences      studentIDAllocator
	tx             txRunner
	audit          auditWriter
	validator      *validator.Validate
	logger         *zap.Logger
}

// NewConversionService constructs a ConversionService.
func NewConversionService(
	conversions conversionStore,
	enquiries conversionEnquiryStore,
	students conversionStudentStore,
	courses conversionCourseStore,
	communications conversionCommunicationWriter,
	sequences studentIDAllocator,
	tx txRunner,
	audit auditWriter,
	validate *validator.Validate,
	logger *zap.Logger,
) *ConversionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversionService{
		conversions:    conversions,
		enquiries:      enquiries,
		students:       students,
		courses:        courses,
		communications: communications,
		sequences:      sequences,
		tx:             tx,
		audit:          audit,
		validator:      validate,
		logger:         logger,
	}
}

// Prefill returns enquiry fields pre-filled into the admission form.
func (s *ConversionService) Prefill(ctx context.Context, enquiryID string) (*models.ConversionPrefill, error) {
	enquiry, err := s.enquiries.FindByID(ctx, enquiryID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enquiry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enquiry")
	}
	if enquiry.Status == models.EnquiryStatusAdmitted {
		return nil, appErrors.Clone(appErrors.ErrAlreadyAdmitted, "")
	}
	return &models.ConversionPrefill{
		EnquiryID: enquiry.ID,
		FullName:  enquiry.StudentName,
		Email:     enquiry.Email,
		Phone:     enquiry.Phone,
		Course:    enquiry.CourseApplied,
		Address:   enquiry.Address,
		Remarks:   enquiry.Remarks,
	}, nil
}

// Convert admits the enquiry as a student.
func (s *ConversionService) Convert(ctx context.Context, enquiryID string, req ConvertEnquiryRequest) (*models.ConversionResult, error) {
	enquiry, err := s.enquiries.FindByID(ctx, enquiryID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enquiry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enquiry")
	}

	// An existing marker decides idempotency before anything else: a complete
	// one means the admission already happened, an incomplete one means a
	// previous attempt died mid-way and only the pending steps should run.
	marker, err := s.conversions.FindByEnquiryID(ctx, enquiryID)
	if err != nil && err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load conversion state")
	}
	if marker != nil {
		if marker.Complete() {
			return nil, appErrors.Clone(appErrors.ErrAlreadyAdmitted, "")
		}
		return s.resume(ctx, enquiry, marker)
	}
	if enquiry.Status == models.EnquiryStatusAdmitted {
		return nil, appErrors.Clone(appErrors.ErrAlreadyAdmitted, "")
	}
	if enquiry.Status == models.EnquiryStatusRejected {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "enquiry already rejected")
	}

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid conversion payload")
	}

	course, err := s.courses.FindByName(ctx, enquiry.CourseApplied)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "applied course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if !course.IsActive {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "applied course is inactive")
	}
	if course.SeatsAvailable <= 0 {
		return nil, appErrors.Clone(appErrors.ErrCapacityExceeded, "")
	}

	student := &models.Student{
		EnquiryID:        &enquiry.ID,
		FullName:         enquiry.StudentName,
		Email:            enquiry.Email,
		Phone:            enquiry.Phone,
		DateOfBirth:      req.DateOfBirth,
		Gender:           req.Gender,
		Course:           enquiry.CourseApplied,
		Year:             req.Year,
		Semester:         req.Semester,
		AddressStreet:    req.AddressStreet,
		AddressCity:      req.AddressCity,
		AddressState:     req.AddressState,
		AddressPincode:   req.AddressPincode,
		GuardianName:     req.GuardianName,
		GuardianPhone:    req.GuardianPhone,
		GuardianRelation: req.GuardianRelation,
		BloodGroup:       req.BloodGroup,
		Status:           models.StudentStatusActive,
		Remarks:          req.Remarks,
	}
	marker = &models.Conversion{EnquiryID: enquiry.ID}

	// The unique student_id constraint backstops the counter; a residual
	// collision re-allocates in a fresh transaction.
	for attempt := 1; ; attempt++ {
		err = s.tx.RunInTx(ctx, func(tx *sqlx.Tx) error {
			studentID, err := s.sequences.NextStudentID(ctx, tx)
			if err != nil {
				return fmt.Errorf("allocate student id: %w", err)
			}
			student.StudentID = studentID
			if err := s.students.CreateIn(ctx, tx, student); err != nil {
				return err
			}
			marker.StudentID = student.ID
			return s.conversions.CreateIn(ctx, tx, marker)
		})
		if err == repository.ErrDuplicateStudentID && attempt < allocationAttempts {
			s.logger.Warn("student code collision, reallocating",
				zap.String("enquiry_id", enquiry.ID), zap.Int("attempt", attempt))
			continue
		}
		break
	}
	if err != nil {
		switch {
		case err == repository.ErrConversionExists:
			return nil, appErrors.Clone(appErrors.ErrAlreadyAdmitted, "")
		case err == repository.ErrDuplicateStudentID:
			return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "student code collision persisted")
		case repository.IsUnavailable(err):
			return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "store unavailable during admission")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to admit student")
		}
	}

	s.logger.Info("enquiry converted",
		zap.String("enquiry_id", enquiry.ID),
		zap.String("student_id", student.StudentID),
		zap.String("course", enquiry.CourseApplied))

	automation, err := s.runAutomation(ctx, enquiry, marker, course.ID, student)
	if err != nil {
		return nil, err
	}
	s.writeAudit(ctx, req.ActorID, enquiry.ID, student)

	return &models.ConversionResult{Student: student, Automation: automation}, nil
}

// resume finishes the pending automation steps of an earlier attempt.
func (s *ConversionService) resume(ctx context.Context, enquiry *models.Enquiry, marker *models.Conversion) (*models.ConversionResult, error) {
	student, err := s.students.FindByID(ctx, marker.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load admitted student")
	}

	var courseID string
	if !marker.SeatsUpdated {
		course, err := s.courses.FindByName(ctx, enquiry.CourseApplied)
		if err == nil {
			courseID = course.ID
		} else if err != sql.ErrNoRows {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
		}
	}

	s.logger.Info("resuming partial conversion",
		zap.String("enquiry_id", enquiry.ID),
		zap.String("student_id", student.StudentID))

	automation, err := s.runAutomation(ctx, enquiry, marker, courseID, student)
	if err != nil {
		return nil, err
	}
	return &models.ConversionResult{Student: student, Automation: automation, Resumed: true}, nil
}

// runAutomation performs the post-admission steps that are still pending on
// the marker. Capacity exhaustion on the seat step fails the conversion: the
// student row and the marker survive for resumption, but the enquiry is not
// admitted and the error is returned. Transient step failures are logged,
// leave the flag false and let the remaining steps run.
func (s *ConversionService) runAutomation(ctx context.Context, enquiry *models.Enquiry, marker *models.Conversion, courseID string, student *models.Student) (models.ConversionAutomation, error) {
	if !marker.SeatsUpdated && courseID != "" {
		if _, err := s.courses.AdjustFilledSeats(ctx, courseID, 1); err != nil {
			if err == sql.ErrNoRows {
				s.logger.Warn("course filled up before seat update",
					zap.String("enquiry_id", enquiry.ID),
					zap.String("course_id", courseID))
				return automationState(marker), appErrors.Clone(appErrors.ErrCapacityExceeded, "course filled up during admission; retry once a seat opens")
			}
			s.logger.Error("seat update failed", zap.String("enquiry_id", enquiry.ID), zap.Error(err))
		} else if err := s.conversions.MarkStep(ctx, marker.ID, repository.ConversionStepSeats); err != nil {
			s.logger.Error("mark seats step failed", zap.String("conversion_id", marker.ID), zap.Error(err))
		} else {
			marker.SeatsUpdated = true
		}
	}

	if !marker.EnquiryUpdated {
		if err := s.enquiries.UpdateStatus(ctx, enquiry.ID, models.EnquiryStatusAdmitted); err != nil {
			s.logger.Error("enquiry status update failed", zap.String("enquiry_id", enquiry.ID), zap.Error(err))
		} else if err := s.conversions.MarkStep(ctx, marker.ID, repository.ConversionStepEnquiry); err != nil {
			s.logger.Error("mark enquiry step failed", zap.String("conversion_id", marker.ID), zap.Error(err))
		} else {
			marker.EnquiryUpdated = true
		}
	}

	if !marker.CommunicationLogged {
		comm := &models.Communication{
			EnquiryID:         &enquiry.ID,
			StudentID:         &student.ID,
			CommunicationType: models.CommunicationSystem,
			Subject:           "Admission confirmed",
			Notes:             fmt.Sprintf("Enquiry converted to admission. Student ID %s issued for %s.", student.StudentID, student.Course),
			RecordedBy:        "system",
			RecordedByName:    "System",
		}
		if err := s.communications.Create(ctx, comm); err != nil {
			s.logger.Error("conversion communication log failed", zap.String("enquiry_id", enquiry.ID), zap.Error(err))
		} else if err := s.conversions.MarkStep(ctx, marker.ID, repository.ConversionStepCommunication); err != nil {
			s.logger.Error("mark communication step failed", zap.String("conversion_id", marker.ID), zap.Error(err))
		} else {
			marker.CommunicationLogged = true
		}
	}

	return automationState(marker), nil
}

func automationState(marker *models.Conversion) models.ConversionAutomation {
	return models.ConversionAutomation{
		SeatsUpdated:        marker.SeatsUpdated,
		EnquiryUpdated:      marker.EnquiryUpdated,
		CommunicationLogged: marker.CommunicationLogged,
	}
}

func (s *ConversionService) writeAudit(ctx context.Context, actorID, enquiryID string, student *models.Student) {
	if s.audit == nil || actorID == "" {
		return
	}
	entry := &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionConversion,
		Resource:   "enquiry",
		ResourceID: &enquiryID,
		NewValues:  []byte(fmt.Sprintf(`{"student_id":%q}`, student.StudentID)),
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("conversion audit log failed", zap.String("enquiry_id", enquiryID), zap.Error(err))
	}
}

// ResumeIncomplete sweeps markers with pending steps, finishing them in the
// background. Invoked on startup and periodically.
func (s *ConversionService) ResumeIncomplete(ctx context.Context, limit int) error {
	markers, err := s.conversions.ListIncomplete(ctx, limit)
	if err != nil {
		return err
	}
	for i := range markers {
		marker := markers[i]
		enquiry, err := s.enquiries.FindByID(ctx, marker.EnquiryID)
		if err != nil {
			s.logger.Error("resume sweep: load enquiry failed", zap.String("enquiry_id", marker.EnquiryID), zap.Error(err))
			continue
		}
		if _, err := s.resume(ctx, enquiry, &marker); err != nil {
			s.logger.Error("resume sweep: conversion resume failed", zap.String("enquiry_id", marker.EnquiryID), zap.Error(err))
		}
	}
	return nil
}
