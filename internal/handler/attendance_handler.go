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

// AttendanceHandler handles attendance endpoints.
type AttendanceHandler struct {
	service *service.AttendanceService
	scopes  *service.ScopeService
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(svc *service.AttendanceService, scopes *service.ScopeService) *AttendanceHandler {
	return &AttendanceHandler{service: svc, scopes: scopes}
}

func attendanceFilterFromQuery(c *gin.Context) models.AttendanceFilter {
	var filter models.AttendanceFilter
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}
	if status := c.Query("status"); status != "" {
		st := models.AttendanceStatus(status)
		filter.Status = &st
	}
	filter.GroupID = c.Query("group_id")
	filter.StudentID = c.Query("student_id")
	if date, err := time.Parse("2006-01-02", c.Query("date")); err == nil {
		filter.Date = &date
	}
	if from, err := time.Parse("2006-01-02", c.Query("date_from")); err == nil {
		filter.DateFrom = &from
	}
	if to, err := time.Parse("2006-01-02", c.Query("date_to")); err == nil {
		filter.DateTo = &to
	}
	filter.SortBy = c.Query("sort_by")
	filter.SortOrder = c.Query("sort_order")
	return filter
}

// List godoc
// @Summary List attendance
// @Description List attendance records with pagination and filtering
// @Tags Attendance
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param group_id query string false "Group filter"
// @Param student_id query string false "Student filter"
// @Param status query string false "Status filter"
// @Param date query string false "Exact date YYYY-MM-DD"
// @Param date_from query string false "From date YYYY-MM-DD"
// @Param date_to query string false "To date YYYY-MM-DD"
// @Success 200 {object} response.Envelope
// @Router /attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	scope, err := scopeFromContext(c, h.scopes)
	if err != nil {
		response.Error(c, err)
		return
	}

	records, pagination, err := h.service.List(c.Request.Context(), scope, attendanceFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, records, pagination)
}

// Mark godoc
// @Summary Mark attendance
// @Description Record one student's attendance; same student/group/date overwrites
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.MarkAttendanceRequest true "Attendance payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /attendance [post]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	scope, err := scopeFromContext(c, h.scopes)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req service.MarkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	record, err := h.service.Mark(c.Request.Context(), scope, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, record)
}

// Bulk godoc
// @Summary Bulk mark attendance
// @Description Save a whole group sheet; invalid rows are reported, valid rows are saved
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.BulkAttendanceRequest true "Bulk payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /attendance/bulk [post]
func (h *AttendanceHandler) Bulk(c *gin.Context) {
	scope, err := scopeFromContext(c, h.scopes)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req service.BulkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	result, err := h.service.BulkMark(c.Request.Context(), scope, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	meta := map[string]interface{}{"saved": result.Saved}
	if len(result.Errors) > 0 {
		msgs := make([]string, 0, len(result.Errors))
		for _, e := range result.Errors {
			msgs = append(msgs, e.StudentID+": "+e.Reason)
		}
		meta["errors"] = msgs
	}
	response.JSON(c, http.StatusOK, result, nil, meta)
}

// Update godoc
// @Summary Update attendance
// @Description Correct the status or notes of a record
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Attendance ID"
// @Param payload body service.UpdateAttendanceRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /attendance/{id} [put]
func (h *AttendanceHandler) Update(c *gin.Context) {
	scope, err := scopeFromContext(c, h.scopes)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req service.UpdateAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	record, err := h.service.Update(c.Request.Context(), scope, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, record, nil)
}

// Delete godoc
// @Summary Delete attendance
// @Tags Attendance
// @Produce json
// @Param id path string true "Attendance ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /attendance/{id} [delete]
func (h *AttendanceHandler) Delete(c *gin.Context) {
	scope, err := scopeFromContext(c, h.scopes)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.service.Delete(c.Request.Context(), scope, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Export godoc
// @Summary Export attendance
// @Description Download filtered attendance as CSV, or PDF with format=pdf
// @Tags Attendance
// @Produce text/csv
// @Param format query string false "csv or pdf"
// @Param group_id query string false "Group filter"
// @Param student_id query string false "Student filter"
// @Param date_from query string false "From date YYYY-MM-DD"
// @Param date_to query string false "To date YYYY-MM-DD"
// @Success 200 {file} file
// @Router /attendance/export [get]
func (h *AttendanceHandler) Export(c *gin.Context) {
	scope, err := scopeFromContext(c, h.scopes)
	if err != nil {
		response.Error(c, err)
		return
	}

	format := service.ExportFormatCSV
	if c.Query("format") == "pdf" {
		format = service.ExportFormatPDF
	}

	payload, err := h.service.Export(c.Request.Context(), scope, attendanceFilterFromQuery(c), format)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+payload.Filename+`"`)
	c.Data(http.StatusOK, payload.ContentType, payload.Data)
}

// GroupAttendance godoc
// @Summary Group attendance
// @Description Attendance records of one group with status counts
// @Tags Attendance
// @Produce json
// @Param id path string true "Group ID"
// @Success 200 {object} response.Envelope
// @Router /groups/{id}/attendance [get]
func (h *AttendanceHandler) GroupAttendance(c *gin.Context) {
	scope, err := scopeFromContext(c, h.scopes)
	if err != nil {
		response.Error(c, err)
		return
	}

	filter := attendanceFilterFromQuery(c)
	filter.GroupID = c.Param("id")

	records, pagination, err := h.service.List(c.Request.Context(), scope, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	counts, err := h.service.StatusCounts(c.Request.Context(), scope, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	meta := map[string]interface{}{"counts": counts}
	response.JSON(c, http.StatusOK, records, pagination, meta)
}
