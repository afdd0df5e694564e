package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campushq/admissions-api/internal/models"
	"github.com/campushq/admissions-api/internal/service"
	appErrors "github.com/campushq/admissions-api/pkg/errors"
	"github.com/campushq/admissions-api/pkg/response"
)

// CommunicationHandler exposes the interaction log and its follow-up queue.
type CommunicationHandler struct {
	communications *service.CommunicationService
}

// NewCommunicationHandler constructs CommunicationHandler.
func NewCommunicationHandler(communications *service.CommunicationService) *CommunicationHandler {
	return &CommunicationHandler{communications: communications}
}

// List godoc
// @Summary List communications
// @Tags Communications
// @Produce json
// @Param enquiry_id query string false "Filter by enquiry"
// @Param student_id query string false "Filter by student"
// @Param type query string false "Filter by communication type"
// @Param follow_up_required query bool false "Filter by follow-up flag"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /communications [get]
func (h *CommunicationHandler) List(c *gin.Context) {
	var filter models.CommunicationFilter
	filter.EnquiryID = c.Query("enquiry_id")
	filter.StudentID = c.Query("student_id")
	filter.Type = models.CommunicationType(c.Query("type"))
	if raw := c.Query("follow_up_required"); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			filter.FollowUpRequired = &v
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	communications, pagination, err := h.communications.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, communications, pagination)
}

// Get godoc
// @Summary Get communication detail
// @Tags Communications
// @Produce json
// @Param id path string true "Communication ID"
// @Success 200 {object} response.Envelope
// @Router /communications/{id} [get]
func (h *CommunicationHandler) Get(c *gin.Context) {
	comm, err := h.communications.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, comm, nil)
}

// Create godoc
// @Summary Record a communication
// @Description Records an interaction against an enquiry or a student
// @Tags Communications
// @Accept json
// @Produce json
// @Param payload body service.CreateCommunicationRequest true "Communication payload"
// @Success 201 {object} response.Envelope
// @Router /communications [post]
func (h *CommunicationHandler) Create(c *gin.Context) {
	var req service.CreateCommunicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.ActorID, req.ActorName = actorFromContext(c)

	comm, err := h.communications.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, comm)
}

// Update godoc
// @Summary Update communication
// @Tags Communications
// @Accept json
// @Produce json
// @Param id path string true "Communication ID"
// @Param payload body service.UpdateCommunicationRequest true "Communication payload"
// @Success 200 {object} response.Envelope
// @Router /communications/{id} [put]
func (h *CommunicationHandler) Update(c *gin.Context) {
	var req service.UpdateCommunicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	comm, err := h.communications.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, comm, nil)
}

// CompleteFollowUp godoc
// @Summary Complete a follow-up
// @Tags Communications
// @Produce json
// @Param id path string true "Communication ID"
// @Success 200 {object} response.Envelope
// @Router /communications/{id}/follow-up [patch]
func (h *CommunicationHandler) CompleteFollowUp(c *gin.Context) {
	comm, err := h.communications.CompleteFollowUp(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, comm, nil)
}

// PendingFollowUps godoc
// @Summary List pending follow-ups
// @Description Lists incomplete follow-ups due on or before the given date (defaults to today)
// @Tags Communications
// @Produce json
// @Param due_by query string false "Due-by date (RFC 3339 or YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /communications/follow-ups/pending [get]
func (h *CommunicationHandler) PendingFollowUps(c *gin.Context) {
	var dueBy time.Time
	if raw := c.Query("due_by"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			parsed, err = time.Parse("2006-01-02", raw)
		}
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "due_by must be RFC 3339 or YYYY-MM-DD"))
			return
		}
		dueBy = parsed
	}

	communications, err := h.communications.PendingFollowUps(c.Request.Context(), dueBy)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, communications, nil)
}

// Delete godoc
// @Summary Delete communication
// @Tags Communications
// @Produce json
// @Param id path string true "Communication ID"
// @Success 204
// @Router /communications/{id} [delete]
func (h *CommunicationHandler) Delete(c *gin.Context) {
	if err := h.communications.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
