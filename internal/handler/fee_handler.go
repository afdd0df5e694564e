package handler

import (
	"net/http"
	"path"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/campushq/admissions-api/internal/models"
	"github.com/campushq/admissions-api/internal/service"
	appErrors "github.com/campushq/admissions-api/pkg/errors"
	"github.com/campushq/admissions-api/pkg/response"
)

// FeeHandler exposes the payment ledger and the asynchronous receipt pipeline.
type FeeHandler struct {
	fees      *service.FeeService
	receipts  *service.ReceiptService
	dashboard *service.DashboardService
	metrics   *service.MetricsService
}

// NewFeeHandler constructs FeeHandler.
func NewFeeHandler(fees *service.FeeService, receipts *service.ReceiptService, dashboard *service.DashboardService, metrics *service.MetricsService) *FeeHandler {
	return &FeeHandler{fees: fees, receipts: receipts, dashboard: dashboard, metrics: metrics}
}

// List godoc
// @Summary List fee ledger entries
// @Description Returns ledger entries with monetary totals over the filtered selection
// @Tags Fees
// @Produce json
// @Param student_id query string false "Filter by student"
// @Param status query string false "Filter by payment status"
// @Param fee_type query string false "Filter by fee type"
// @Param academic_year query string false "Filter by academic year"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /fees [get]
func (h *FeeHandler) List(c *gin.Context) {
	var filter models.FeeFilter
	filter.StudentID = c.Query("student_id")
	filter.PaymentStatus = models.FeeStatus(c.Query("status"))
	filter.FeeType = models.FeeType(c.Query("fee_type"))
	filter.AcademicYear = c.Query("academic_year")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	result, err := h.fees.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result.Fees, result.Pagination, map[string]interface{}{
		"totals": result.Totals,
	})
}

// Get godoc
// @Summary Get fee ledger entry
// @Tags Fees
// @Produce json
// @Param id path string true "Fee ID"
// @Success 200 {object} response.Envelope
// @Router /fees/{id} [get]
func (h *FeeHandler) Get(c *gin.Context) {
	fee, err := h.fees.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fee, nil)
}

// Create godoc
// @Summary Record a payment
// @Description Records a ledger entry. The receipt number is allocated atomically with the insert; status and pending amount are derived.
// @Tags Fees
// @Accept json
// @Produce json
// @Param payload body service.CreateFeeRequest true "Payment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /fees [post]
func (h *FeeHandler) Create(c *gin.Context) {
	var req service.CreateFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.ActorID, req.ActorName = actorFromContext(c)

	fee, err := h.fees.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordPayment(fee.PaidAmount)
	h.dashboard.InvalidateCache(c.Request.Context())
	response.Created(c, fee)
}

// Update godoc
// @Summary Correct a ledger entry
// @Description Updates amounts and metadata. Status and pending amount are re-derived; the receipt number never changes.
// @Tags Fees
// @Accept json
// @Produce json
// @Param id path string true "Fee ID"
// @Param payload body service.UpdateFeeRequest true "Correction payload"
// @Success 200 {object} response.Envelope
// @Router /fees/{id} [put]
func (h *FeeHandler) Update(c *gin.Context) {
	var req service.UpdateFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.ActorID, _ = actorFromContext(c)

	fee, err := h.fees.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.dashboard.InvalidateCache(c.Request.Context())
	response.JSON(c, http.StatusOK, fee, nil)
}

// Delete godoc
// @Summary Delete fee ledger entry
// @Tags Fees
// @Produce json
// @Param id path string true "Fee ID"
// @Success 204
// @Router /fees/{id} [delete]
func (h *FeeHandler) Delete(c *gin.Context) {
	if err := h.fees.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	h.dashboard.InvalidateCache(c.Request.Context())
	response.NoContent(c)
}

// PendingAll godoc
// @Summary List unsettled fees
// @Description Returns every ledger entry that still carries a pending amount, most overdue first
// @Tags Fees
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /fees/pending/all [get]
func (h *FeeHandler) PendingAll(c *gin.Context) {
	fees, err := h.fees.ListUnsettled(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fees, nil)
}

// EnqueueReceipt godoc
// @Summary Queue receipt generation
// @Description Queues an asynchronous receipt render for a ledger entry. Poll the returned job for progress.
// @Tags Receipts
// @Accept json
// @Produce json
// @Param id path string true "Fee ID"
// @Param format query string false "Receipt format (pdf or csv)" default(pdf)
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /fees/{id}/receipt [post]
func (h *FeeHandler) EnqueueReceipt(c *gin.Context) {
	format := models.ReceiptFormat(c.DefaultQuery("format", string(models.ReceiptFormatPDF)))
	actorID, _ := actorFromContext(c)

	job, err := h.receipts.Enqueue(c.Request.Context(), c.Param("id"), format, actorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job, nil)
}

// ReceiptStatus godoc
// @Summary Get receipt job status
// @Tags Receipts
// @Produce json
// @Param id path string true "Receipt job ID"
// @Success 200 {object} response.Envelope
// @Router /receipts/{id} [get]
func (h *FeeHandler) ReceiptStatus(c *gin.Context) {
	job, err := h.receipts.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// ReceiptDownloadToken godoc
// @Summary Issue a signed receipt download token
// @Description Returns a short-lived token for the finished artifact. Exchange it at /receipts/download.
// @Tags Receipts
// @Produce json
// @Param id path string true "Receipt job ID"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /receipts/{id}/download [get]
func (h *FeeHandler) ReceiptDownloadToken(c *gin.Context) {
	download, err := h.receipts.Download(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, download, nil)
}

// DownloadReceipt godoc
// @Summary Download a rendered receipt
// @Description Streams the artifact referenced by a signed token. No session required; the token itself authorizes the download.
// @Tags Receipts
// @Produce application/octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Router /receipts/download [get]
func (h *FeeHandler) DownloadReceipt(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "download token is required"))
		return
	}

	file, job, err := h.receipts.OpenSigned(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	contentType := "application/pdf"
	if job.Format == models.ReceiptFormatCSV {
		contentType = "text/csv"
	}
	filename := "receipt." + string(job.Format)
	if job.FilePath != nil {
		filename = path.Base(*job.FilePath)
	}

	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Header("Content-Type", contentType)
	http.ServeContent(c.Writer, c.Request, filename, job.UpdatedAt, file)
}
