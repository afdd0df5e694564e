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
	"github.com/campushq/admissions-api/pkg/export"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	ListAll(ctx context.Context, filter models.StudentFilter) ([]models.Student, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)
	CreateIn(ctx context.Context, tx *sqlx.Tx, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	UpdateStatus(ctx context.Context, id string, status models.StudentStatus) error
	Delete(ctx context.Context, id string) error
}

type studentFeeReader interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.Fee, error)
	StudentTotals(ctx context.Context, studentID string) (*models.FeeTotals, error)
}

// CreateStudentRequest describes a direct admission payload, used when a
// student is enrolled without going through the enquiry funnel. The student
// code is allocated, never accepted.
type CreateStudentRequest struct {
	FullName         string     `json:"full_name" validate:"required,min=2,max=150"`
	Email            string     `json:"email" validate:"required,email"`
	Phone            string     `json:"phone" validate:"required,min=7,max=20"`
	DateOfBirth      time.Time  `json:"date_of_birth" validate:"required"`
	Gender           string     `json:"gender" validate:"required,oneof=Male Female Other"`
	Course           string     `json:"course" validate:"required"`
	Year             int        `json:"year" validate:"min=0"`
	Semester         int        `json:"semester" validate:"min=0"`
	AdmissionDate    *time.Time `json:"admission_date"`
	AddressStreet    string     `json:"address_street"`
	AddressCity      string     `json:"address_city"`
	AddressState     string     `json:"address_state"`
	AddressPincode   string     `json:"address_pincode"`
	GuardianName     string     `json:"guardian_name"`
	GuardianPhone    string     `json:"guardian_phone"`
	GuardianRelation string     `json:"guardian_relation"`
	BloodGroup       string     `json:"blood_group"`
	Remarks          string     `json:"remarks"`
}

// UpdateStudentRequest describes a student update payload. The issued student
// code is not part of it; codes never change once allocated.
type UpdateStudentRequest struct {
	FullName         string    `json:"full_name" validate:"required,min=2,max=150"`
	Email            string    `json:"email" validate:"required,email"`
	Phone            string    `json:"phone" validate:"required,min=7,max=20"`
	DateOfBirth      time.Time `json:"date_of_birth" validate:"required"`
	Gender           string    `json:"gender" validate:"required,oneof=Male Female Other"`
	Course           string    `json:"course" validate:"required"`
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
}

// UpdateStudentStatusRequest describes a status transition payload.
type UpdateStudentStatusRequest struct {
	Status models.StudentStatus `json:"status" validate:"required"`
}

// StudentFeeSummary pairs a student's ledger entries with derived totals.
type StudentFeeSummary struct {
	Fees   []models.Fee     `json:"fees"`
	Totals models.FeeTotals `json:"totals"`
}

// StudentService manages enrolled student records.
type StudentService struct {
	repo      studentRepository
	fees      studentFeeReader
	sequences studentIDAllocator
	tx        txRunner
	exporter  *export.CSVExporter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs a StudentService.
func NewStudentService(repo studentRepository, fees studentFeeReader, sequences studentIDAllocator, tx txRunner, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, fees: fees, sequences: sequences, tx: tx, exporter: export.NewCSVExporter(), validator: validate, logger: logger}
}

// Create enrolls a student directly, outside the enquiry funnel. The student
// code allocation and the insert commit in one transaction. Course seats are
// not touched here; seat automation belongs to the conversion workflow.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	exists, err := s.repo.ExistsByEmail(ctx, req.Email, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate student email")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a student already uses this email")
	}

	student := &models.Student{
		FullName:         req.FullName,
		Email:            req.Email,
		Phone:            req.Phone,
		DateOfBirth:      req.DateOfBirth,
		Gender:           req.Gender,
		Course:           req.Course,
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
	if req.AdmissionDate != nil {
		student.AdmissionDate = *req.AdmissionDate
	}

	// A student code collision re-allocates in a fresh transaction; the
	// unique constraint backstops the counter.
	for attempt := 1; ; attempt++ {
		err = s.tx.RunInTx(ctx, func(tx *sqlx.Tx) error {
			code, err := s.sequences.NextStudentID(ctx, tx)
			if err != nil {
				return err
			}
			student.StudentID = code
			return s.repo.CreateIn(ctx, tx, student)
		})
		if err == repository.ErrDuplicateStudentID && attempt < allocationAttempts {
			s.logger.Warn("student code collision, reallocating",
				zap.String("email", req.Email), zap.Int("attempt", attempt))
			continue
		}
		break
	}
	if err != nil {
		switch {
		case err == repository.ErrDuplicateStudentID:
			return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "student code collision persisted")
		case repository.IsUnavailable(err):
			return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "store unavailable during enrollment")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
		}
	}

	s.logger.Info("student enrolled",
		zap.String("student_id", student.ID),
		zap.String("code", student.StudentID))
	return student, nil
}

// List returns students with pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return students, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a single student.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Update modifies a student's mutable fields.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	exists, err := s.repo.ExistsByEmail(ctx, req.Email, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate student email")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "another student already uses this email")
	}
	student.FullName = req.FullName
	student.Email = req.Email
	student.Phone = req.Phone
	student.DateOfBirth = req.DateOfBirth
	student.Gender = req.Gender
	student.Course = req.Course
	student.Year = req.Year
	student.Semester = req.Semester
	student.AddressStreet = req.AddressStreet
	student.AddressCity = req.AddressCity
	student.AddressState = req.AddressState
	student.AddressPincode = req.AddressPincode
	student.GuardianName = req.GuardianName
	student.GuardianPhone = req.GuardianPhone
	student.GuardianRelation = req.GuardianRelation
	student.BloodGroup = req.BloodGroup
	student.Remarks = req.Remarks
	if err := s.repo.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return student, nil
}

// UpdateStatus transitions a student's administrative status.
func (s *StudentService) UpdateStatus(ctx context.Context, id string, req UpdateStudentStatusRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	if !models.ValidStudentStatus(req.Status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown student status")
	}
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if err := s.repo.UpdateStatus(ctx, id, req.Status); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student status")
	}
	student.Status = req.Status
	return student, nil
}

// Delete removes a student record permanently.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	return nil
}

// FeeSummary returns a student's ledger entries with derived totals.
func (s *StudentService) FeeSummary(ctx context.Context, id string) (*StudentFeeSummary, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	fees, err := s.fees.ListByStudent(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student fees")
	}
	totals, err := s.fees.StudentTotals(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student fee totals")
	}
	return &StudentFeeSummary{Fees: fees, Totals: *totals}, nil
}

// ExportCSV renders the filtered student roster as CSV.
func (s *StudentService) ExportCSV(ctx context.Context, filter models.StudentFilter) ([]byte, string, error) {
	students, err := s.repo.ListAll(ctx, filter)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to export students")
	}
	dataset := export.Dataset{
		Headers: []string{"Student ID", "Full Name", "Email", "Phone", "Course", "Year", "Semester", "Status", "Admission Date"},
	}
	for _, st := range students {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Student ID":     st.StudentID,
			"Full Name":      st.FullName,
			"Email":          st.Email,
			"Phone":          st.Phone,
			"Course":         st.Course,
			"Year":           fmt.Sprintf("%d", st.Year),
			"Semester":       fmt.Sprintf("%d", st.Semester),
			"Status":         string(st.Status),
			"Admission Date": st.AdmissionDate.Format("2006-01-02"),
		})
	}
	payload, err := s.exporter.Render(dataset)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render student export")
	}
	filename := fmt.Sprintf("students-%s.csv", time.Now().UTC().Format("20060102-150405"))
	return payload, filename, nil
}
