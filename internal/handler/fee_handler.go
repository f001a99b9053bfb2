package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Azizbek961/crm-edu-crm/internal/models"
	"github.com/Azizbek961/crm-edu-crm/internal/service"
	appErrors "github.com/Azizbek961/crm-edu-crm/pkg/errors"
	"github.com/Azizbek961/crm-edu-crm/pkg/response"
)

// FeeHandler handles fee endpoints.
type FeeHandler struct {
	service  *service.FeeService
	payments *service.PaymentService
	scopes   *service.ScopeService
}

// NewFeeHandler creates a new fee handler.
func NewFeeHandler(svc *service.FeeService, payments *service.PaymentService, scopes *service.ScopeService) *FeeHandler {
	return &FeeHandler{service: svc, payments: payments, scopes: scopes}
}

// List godoc
// @Summary List fees
// @Description List fees with effective status bucketing
// @Tags Fees
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param status query string false "paid, pending or overdue"
// @Param student_id query string false "Student filter"
// @Param search query string false "Search by student name"
// @Param due_from query string false "Due from YYYY-MM-DD"
// @Param due_to query string false "Due to YYYY-MM-DD"
// @Success 200 {object} response.Envelope
// @Router /fees [get]
func (h *FeeHandler) List(c *gin.Context) {
	scope, err := scopeFromContext(c, h.scopes)
	if err != nil {
		response.Error(c, err)
		return
	}

	var filter models.FeeFilter
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}
	if status := c.Query("status"); status != "" {
		st := models.FeeStatus(status)
		filter.Status = &st
	}
	filter.StudentID = c.Query("student_id")
	filter.Search = c.Query("search")
	if from, err := time.Parse("2006-01-02", c.Query("due_from")); err == nil {
		filter.DueFrom = &from
	}
	if to, err := time.Parse("2006-01-02", c.Query("due_to")); err == nil {
		filter.DueTo = &to
	}
	filter.SortBy = c.Query("sort_by")
	filter.SortOrder = c.Query("sort_order")

	fees, pagination, err := h.service.List(c.Request.Context(), scope, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, fees, pagination)
}

// Create godoc
// @Summary Create fee
// @Description Record a pending payment obligation for a student
// @Tags Fees
// @Accept json
// @Produce json
// @Param payload body service.CreateFeeRequest true "Create fee payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /fees [post]
func (h *FeeHandler) Create(c *gin.Context) {
	var req service.CreateFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	fee, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, fee)
}

// UpdateStatus godoc
// @Summary Update fee status
// @Description Move a fee between statuses; marking paid stamps the paid date
// @Tags Fees
// @Accept json
// @Produce json
// @Param id path string true "Fee ID"
// @Param payload body service.UpdateFeeStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /fees/{id}/status [put]
func (h *FeeHandler) UpdateStatus(c *gin.Context) {
	var req service.UpdateFeeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	fee, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, fee, nil)
}

// Delete godoc
// @Summary Delete fee
// @Tags Fees
// @Produce json
// @Param id path string true "Fee ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /fees/{id} [delete]
func (h *FeeHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Summary godoc
// @Summary Fee summary
// @Description Amounts and counts per effective status within the caller's scope
// @Tags Fees
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /fees/summary [get]
func (h *FeeHandler) Summary(c *gin.Context) {
	scope, err := scopeFromContext(c, h.scopes)
	if err != nil {
		response.Error(c, err)
		return
	}

	summary, err := h.service.Summary(c.Request.Context(), scope)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, summary, nil)
}

// PaymentLink godoc
// @Summary Create payment link
// @Description Generate a hosted payment page for an unpaid fee
// @Tags Fees
// @Produce json
// @Param id path string true "Fee ID"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /fees/{id}/payment-link [post]
func (h *FeeHandler) PaymentLink(c *gin.Context) {
	scope, err := scopeFromContext(c, h.scopes)
	if err != nil {
		response.Error(c, err)
		return
	}

	// Row access follows the same rules as reading the fee.
	if _, err := h.service.Get(c.Request.Context(), scope, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	link, err := h.payments.CreateLink(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, link)
}
