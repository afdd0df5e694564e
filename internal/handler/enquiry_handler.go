package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/campushq/admissions-api/internal/models"
	"github.com/campushq/admissions-api/internal/service"
	appErrors "github.com/campushq/admissions-api/pkg/errors"
	"github.com/campushq/admissions-api/pkg/response"
)

// EnquiryHandler exposes enquiry funnel endpoints, including the conversion
// workflow.
type EnquiryHandler struct {
	enquiries   *service.EnquiryService
	conversions *service.ConversionService
	dashboard   *service.DashboardService
	metrics     *service.MetricsService
}

// NewEnquiryHandler constructs EnquiryHandler.
func NewEnquiryHandler(enquiries *service.EnquiryService, conversions *service.ConversionService, dashboard *service.DashboardService, metrics *service.MetricsService) *EnquiryHandler {
	return &EnquiryHandler{enquiries: enquiries, conversions: conversions, dashboard: dashboard, metrics: metrics}
}

// List godoc
// @Summary List enquiries
// @Tags Enquiries
// @Produce json
// @Param search query string false "Search by name, email or phone"
// @Param status query string false "Filter by funnel status"
// @Param course query string false "Filter by applied course"
// @Param source query string false "Filter by enquiry source"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /enquiries [get]
func (h *EnquiryHandler) List(c *gin.Context) {
	var filter models.EnquiryFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.Status = models.EnquiryStatus(c.Query("status"))
	filter.CourseApplied = c.Query("course")
	filter.Source = models.EnquirySource(c.Query("source"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	enquiries, pagination, err := h.enquiries.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enquiries, pagination)
}

// Get godoc
// @Summary Get enquiry detail
// @Tags Enquiries
// @Produce json
// @Param id path string true "Enquiry ID"
// @Success 200 {object} response.Envelope
// @Router /enquiries/{id} [get]
func (h *EnquiryHandler) Get(c *gin.Context) {
	enquiry, err := h.enquiries.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enquiry, nil)
}

// Create godoc
// @Summary Create enquiry
// @Tags Enquiries
// @Accept json
// @Produce json
// @Param payload body service.CreateEnquiryRequest true "Enquiry payload"
// @Success 201 {object} response.Envelope
// @Router /enquiries [post]
func (h *EnquiryHandler) Create(c *gin.Context) {
	var req service.CreateEnquiryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	enquiry, err := h.enquiries.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.dashboard.InvalidateCache(c.Request.Context())
	response.Created(c, enquiry)
}

// Update godoc
// @Summary Update enquiry
// @Tags Enquiries
// @Accept json
// @Produce json
// @Param id path string true "Enquiry ID"
// @Param payload body service.UpdateEnquiryRequest true "Enquiry payload"
// @Success 200 {object} response.Envelope
// @Router /enquiries/{id} [put]
func (h *EnquiryHandler) Update(c *gin.Context) {
	var req service.UpdateEnquiryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	enquiry, err := h.enquiries.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enquiry, nil)
}

// UpdateStatus godoc
// @Summary Update enquiry funnel status
// @Description Transition an enquiry between funnel statuses. Setting Admitted directly is a manual override without conversion automation.
// @Tags Enquiries
// @Accept json
// @Produce json
// @Param id path string true "Enquiry ID"
// @Param payload body service.UpdateEnquiryStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /enquiries/{id}/status [patch]
func (h *EnquiryHandler) UpdateStatus(c *gin.Context) {
	var req service.UpdateEnquiryStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	enquiry, err := h.enquiries.UpdateStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.dashboard.InvalidateCache(c.Request.Context())
	response.JSON(c, http.StatusOK, enquiry, nil)
}

// Delete godoc
// @Summary Delete enquiry
// @Tags Enquiries
// @Produce json
// @Param id path string true "Enquiry ID"
// @Success 204
// @Router /enquiries/{id} [delete]
func (h *EnquiryHandler) Delete(c *gin.Context) {
	if err := h.enquiries.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	h.dashboard.InvalidateCache(c.Request.Context())
	response.NoContent(c)
}

// Prefill godoc
// @Summary Prefill admission form
// @Description Returns enquiry fields pre-filled into the student admission form
// @Tags Enquiries
// @Produce json
// @Param id path string true "Enquiry ID"
// @Success 200 {object} response.Envelope
// @Router /enquiries/{id}/for-conversion [get]
func (h *EnquiryHandler) Prefill(c *gin.Context) {
	prefill, err := h.conversions.Prefill(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, prefill, nil)
}

// Convert godoc
// @Summary Convert enquiry to student
// @Description Admits the enquiry as a student, allocates a student ID, takes a course seat and logs the admission
// @Tags Enquiries
// @Accept json
// @Produce json
// @Param id path string true "Enquiry ID"
// @Param payload body service.ConvertEnquiryRequest true "Admission details"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /enquiries/{id}/convert [post]
func (h *EnquiryHandler) Convert(c *gin.Context) {
	var req service.ConvertEnquiryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.ActorID, req.ActorName = actorFromContext(c)

	result, err := h.conversions.Convert(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.metrics.RecordConversion(conversionOutcome(err))
		response.Error(c, err)
		return
	}
	h.dashboard.InvalidateCache(c.Request.Context())
	if result.Resumed {
		h.metrics.RecordConversion("resumed")
		response.JSON(c, http.StatusOK, result, nil)
		return
	}
	h.metrics.RecordConversion("converted")
	response.Created(c, result)
}

func conversionOutcome(err error) string {
	switch {
	case appErrors.Is(err, appErrors.ErrAlreadyAdmitted):
		return "already_admitted"
	case appErrors.Is(err, appErrors.ErrCapacityExceeded):
		return "no_seats"
	case appErrors.Is(err, appErrors.ErrValidation):
		return "invalid"
	default:
		return "error"
	}
}
