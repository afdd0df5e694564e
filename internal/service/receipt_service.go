package service

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campushq/admissions-api/internal/models"
	appErrors "github.com/campushq/admissions-api/pkg/errors"
	"github.com/campushq/admissions-api/pkg/export"
	"github.com/campushq/admissions-api/pkg/jobs"
	"github.com/campushq/admissions-api/pkg/storage"
)

type receiptJobRepository interface {
	Create(ctx context.Context, job *models.ReceiptJob) error
	FindByID(ctx context.Context, id string) (*models.ReceiptJob, error)
	UpdateProgress(ctx context.Context, id string, status models.ReceiptStatus, progress int) error
	MarkDone(ctx context.Context, id, filePath string) error
	MarkFailed(ctx context.Context, id, message string) error
	ListFinishedBefore(ctx context.Context, cutoff time.Time) ([]models.ReceiptJob, error)
	Delete(ctx context.Context, id string) error
}

type receiptFeeReader interface {
	FindByID(ctx context.Context, id string) (*models.Fee, error)
}

type receiptQueue interface {
	Enqueue(job jobs.Job) error
}

// ReceiptDownload bundles a signed token with its expiry for API responses.
type ReceiptDownload struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ReceiptService renders payment receipts asynchronously. Enqueue returns a
// job record immediately; workers render the artifact, store it on disk and
// mark the job done or failed.
type ReceiptService struct {
	repo    receiptJobRepository
	fees    receiptFeeReader
	queue   receiptQueue
	storage *storage.LocalStorage
	signer  *storage.SignedURLSigner
	pdf     *export.PDFExporter
	csv     *export.CSVExporter
	metrics *MetricsService
	now     func() time.Time
	logger  *zap.Logger
}

// NewReceiptService constructs a ReceiptService.
func NewReceiptService(repo receiptJobRepository, fees receiptFeeReader, store *storage.LocalStorage, signer *storage.SignedURLSigner, metrics *MetricsService, logger *zap.Logger) *ReceiptService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReceiptService{
		repo:    repo,
		fees:    fees,
		storage: store,
		signer:  signer,
		pdf:     export.NewPDFExporter(),
		csv:     export.NewCSVExporter(),
		metrics: metrics,
		now:     time.Now,
		logger:  logger,
	}
}

// AttachQueue wires the worker queue used for rendering. The queue handler
// should call Process.
func (s *ReceiptService) AttachQueue(queue receiptQueue) {
	s.queue = queue
}

// Enqueue validates the fee and queues an asynchronous render job.
func (s *ReceiptService) Enqueue(ctx context.Context, feeID string, format models.ReceiptFormat, actorID string) (*models.ReceiptJob, error) {
	if format != models.ReceiptFormatPDF && format != models.ReceiptFormatCSV {
		return nil, appErrors.Clone(appErrors.ErrValidation, "receipt format must be pdf or csv")
	}
	if _, err := s.fees.FindByID(ctx, feeID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "fee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee")
	}

	job := &models.ReceiptJob{
		ID:        uuid.NewString(),
		FeeID:     feeID,
		Format:    format,
		Status:    models.ReceiptStatusQueued,
		CreatedBy: actorID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create receipt job")
	}

	if s.queue == nil {
		if markErr := s.repo.MarkFailed(ctx, job.ID, "render queue unavailable"); markErr != nil {
			s.logger.Error("failed to fail orphaned receipt job", zap.String("job_id", job.ID), zap.Error(markErr))
		}
		return nil, appErrors.Clone(appErrors.ErrInternal, "receipt rendering is unavailable")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "receipt.render", Payload: job.ID}); err != nil {
		if markErr := s.repo.MarkFailed(ctx, job.ID, "enqueue failed: "+err.Error()); markErr != nil {
			s.logger.Error("failed to fail orphaned receipt job", zap.String("job_id", job.ID), zap.Error(markErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue receipt job")
	}
	s.logger.Info("receipt job queued", zap.String("job_id", job.ID), zap.String("fee_id", feeID), zap.String("format", string(format)))
	return job, nil
}

// Status returns the current state of a render job.
func (s *ReceiptService) Status(ctx context.Context, jobID string) (*models.ReceiptJob, error) {
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "receipt job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load receipt job")
	}
	return job, nil
}

// Process renders the receipt for the given job. It is invoked by queue
// workers; failures are recorded on the job and returned for retry handling.
func (s *ReceiptService) Process(ctx context.Context, queueJob jobs.Job) error {
	jobID, ok := queueJob.Payload.(string)
	if !ok || jobID == "" {
		return fmt.Errorf("receipt job payload must be a job id")
	}

	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load receipt job %s: %w", jobID, err)
	}
	if job.Status == models.ReceiptStatusDone || job.Status == models.ReceiptStatusFailed {
		return nil
	}

	if err := s.repo.UpdateProgress(ctx, job.ID, models.ReceiptStatusProcessing, 10); err != nil {
		s.logger.Warn("failed to mark receipt job processing", zap.String("job_id", job.ID), zap.Error(err))
	}

	fee, err := s.fees.FindByID(ctx, job.FeeID)
	if err != nil {
		return s.fail(ctx, job, fmt.Errorf("load fee %s: %w", job.FeeID, err))
	}

	var payload []byte
	switch job.Format {
	case models.ReceiptFormatCSV:
		payload, err = s.csv.Render(receiptDataset(fee))
	default:
		payload, err = s.pdf.RenderReceipt(receiptDocument(fee, s.now().UTC()))
	}
	if err != nil {
		return s.fail(ctx, job, fmt.Errorf("render receipt: %w", err))
	}

	if err := s.repo.UpdateProgress(ctx, job.ID, models.ReceiptStatusProcessing, 70); err != nil {
		s.logger.Warn("failed to record receipt job progress", zap.String("job_id", job.ID), zap.Error(err))
	}

	filename := fmt.Sprintf("%s/%s.%s", s.now().UTC().Format("2006/01"), fee.ReceiptNumber, job.Format)
	stored, err := s.storage.Save(filename, payload)
	if err != nil {
		return s.fail(ctx, job, fmt.Errorf("store receipt: %w", err))
	}

	if err := s.repo.MarkDone(ctx, job.ID, stored); err != nil {
		return fmt.Errorf("mark receipt job done: %w", err)
	}
	s.metrics.RecordReceiptJob("done")
	s.logger.Info("receipt rendered", zap.String("job_id", job.ID), zap.String("file", stored))
	return nil
}

// Download issues a signed download token for a finished job.
func (s *ReceiptService) Download(ctx context.Context, jobID string) (*ReceiptDownload, error) {
	job, err := s.Status(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.ReceiptStatusDone || job.FilePath == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "receipt is not ready for download")
	}
	token, expiresAt, err := s.signer.Generate(job.ID, *job.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download token")
	}
	return &ReceiptDownload{Token: token, ExpiresAt: expiresAt}, nil
}

// OpenSigned validates a download token and opens the referenced artifact.
func (s *ReceiptService) OpenSigned(ctx context.Context, token string) (*os.File, *models.ReceiptJob, error) {
	jobID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}
	job, err := s.Status(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	if job.FilePath == nil || *job.FilePath != relPath {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "receipt file not found")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "receipt file not found")
	}
	return file, job, nil
}

// Cleanup deletes artifacts and job rows finished before the retention cutoff.
func (s *ReceiptService) Cleanup(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := s.now().UTC().Add(-retention)
	finished, err := s.repo.ListFinishedBefore(ctx, cutoff)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list finished receipt jobs")
	}
	removed := 0
	for _, job := range finished {
		if job.FilePath != nil {
			if err := s.storage.Delete(*job.FilePath); err != nil {
				s.logger.Warn("failed to delete receipt artifact", zap.String("job_id", job.ID), zap.Error(err))
				continue
			}
		}
		if err := s.repo.Delete(ctx, job.ID); err != nil {
			s.logger.Warn("failed to delete receipt job row", zap.String("job_id", job.ID), zap.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		s.logger.Info("receipt cleanup completed", zap.Int("removed", removed))
	}
	return removed, nil
}

func (s *ReceiptService) fail(ctx context.Context, job *models.ReceiptJob, cause error) error {
	if err := s.repo.MarkFailed(ctx, job.ID, cause.Error()); err != nil {
		s.logger.Error("failed to mark receipt job failed", zap.String("job_id", job.ID), zap.Error(err))
	}
	s.metrics.RecordReceiptJob("failed")
	return cause
}

func receiptDocument(fee *models.Fee, now time.Time) export.ReceiptDocument {
	fields := []export.ReceiptField{
		{Label: "Student", Value: fee.StudentName},
		{Label: "Student ID", Value: fee.StudentCode},
		{Label: "Course", Value: fee.CourseName},
		{Label: "Fee Type", Value: string(fee.FeeType)},
		{Label: "Academic Year", Value: fee.AcademicYear},
		{Label: "Total Amount", Value: formatAmount(fee.TotalAmount)},
		{Label: "Paid Amount", Value: formatAmount(fee.PaidAmount)},
		{Label: "Pending Amount", Value: formatAmount(fee.PendingAmount)},
		{Label: "Payment Mode", Value: fee.PaymentMode},
		{Label: "Payment Status", Value: string(fee.PaymentStatus)},
		{Label: "Paid By", Value: fee.PaidBy},
	}
	if fee.Semester != nil {
		fields = append(fields, export.ReceiptField{Label: "Semester", Value: strconv.Itoa(*fee.Semester)})
	}
	if fee.TransactionID != "" {
		fields = append(fields, export.ReceiptField{Label: "Transaction ID", Value: fee.TransactionID})
	}
	return export.ReceiptDocument{
		Title:         "Fee Receipt",
		ReceiptNumber: fee.ReceiptNumber,
		IssuedOn:      now.Format("02 Jan 2006"),
		Fields:        fields,
		FooterNote:    "This is a computer generated receipt.",
	}
}

func receiptDataset(fee *models.Fee) export.Dataset {
	headers := []string{"Receipt Number", "Student", "Student ID", "Course", "Fee Type", "Academic Year",
		"Total Amount", "Paid Amount", "Pending Amount", "Payment Mode", "Payment Status", "Payment Date"}
	row := map[string]string{
		"Receipt Number": fee.ReceiptNumber,
		"Student":        fee.StudentName,
		"Student ID":     fee.StudentCode,
		"Course":         fee.CourseName,
		"Fee Type":       string(fee.FeeType),
		"Academic Year":  fee.AcademicYear,
		"Total Amount":   formatAmount(fee.TotalAmount),
		"Paid Amount":    formatAmount(fee.PaidAmount),
		"Pending Amount": formatAmount(fee.PendingAmount),
		"Payment Mode":   fee.PaymentMode,
		"Payment Status": string(fee.PaymentStatus),
		"Payment Date":   fee.PaymentDate.Format("2006-01-02"),
	}
	return export.Dataset{Headers: headers, Rows: []map[string]string{row}}
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
