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

// ExamHandler handles exam and result endpoints.
type ExamHandler struct {
	service *service.ExamService
	scopes  *service.ScopeService
}

// NewExamHandler creates a new exam handler.
func NewExamHandler(svc *service.ExamService, scopes *service.ScopeService) *ExamHandler {
	return &ExamHandler{service: svc, scopes: scopes}
}

// List godoc
// @Summary List exams
// @Description List exams with pagination and filtering
// @Tags Exams
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param subject_id query string false "Subject filter"
// @Param group_id query string false "Group filter"
// @Param date query string false "Exact date YYYY-MM-DD"
// @Param date_from query string false "From date YYYY-MM-DD"
// @Param date_to query string false "To date YYYY-MM-DD"
// @Param search query string false "Search term"
// @Success 200 {object} response.Envelope
// @Router /exams [get]
func (h *ExamHandler) List(c *gin.Context) {
	scope, err := scopeFromContext(c, h.scopes)
	if err != nil {
		response.Error(c, err)
		return
	}

	var filter models.ExamFilter
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SubjectID = c.Query("subject_id")
	filter.GroupID = c.Query("group_id")
	if date, err := time.Parse("2006-01-02", c.Query("date")); err == nil {
		filter.Date = &date
	}
	if from, err := time.Parse("2006-01-02", c.Query("date_from")); err == nil {
		filter.DateFrom = &from
	}
	if to, err := time.Parse("2006-01-02", c.Query("date_to")); err == nil {
		filter.DateTo = &to
	}
	filter.Search = c.Query("search")
	filter.SortBy = c.Query("sort_by")
	filter.SortOrder = c.Query("sort_order")

	exams, pagination, err := h.service.List(c.Request.Context(), scope, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, exams, pagination)
}

// Get godoc
// @Summary Get exam
// @Description Exam with its grading roster
// @Tags Exams
// @Produce json
// @Param id path string true "Exam ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /exams/{id} [get]
func (h *ExamHandler) Get(c *gin.Context) {
	scope, err := scopeFromContext(c, h.scopes)
	if err != nil {
		response.Error(c, err)
		return
	}

	detail, err := h.service.Get(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, detail, nil)
}

// Create godoc
// @Summary Schedule exam
// @Description Teachers may only schedule for their own groups
// @Tags Exams
// @Accept json
// @Produce json
// @Param payload body service.CreateExamRequest true "Create exam payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /exams [post]
func (h *ExamHandler) Create(c *gin.Context) {
	scope, err := scopeFromContext(c, h.scopes)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req service.CreateExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	exam, err := h.service.Create(c.Request.Context(), scope, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, exam)
}

// Update godoc
// @Summary Update exam
// @Tags Exams
// @Accept json
// @Produce json
// @Param id path string true "Exam ID"
// @Param payload body service.UpdateExamRequest true "Update exam payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /exams/{id} [put]
func (h *ExamHandler) Update(c *gin.Context) {
	scope, err := scopeFromContext(c, h.scopes)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req service.UpdateExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	exam, err := h.service.Update(c.Request.Context(), scope, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, exam, nil)
}

// Delete godoc
// @Summary Delete exam
// @Description Removes the exam together with its results
// @Tags Exams
// @Produce json
// @Param id path string true "Exam ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /exams/{id} [delete]
func (h *ExamHandler) Delete(c *gin.Context) {
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

// Roster godoc
// @Summary Exam roster
// @Description Group members merged with their results
// @Tags Exams
// @Produce json
// @Param id path string true "Exam ID"
// @Success 200 {object} response.Envelope
// @Router /exams/{id}/results [get]
func (h *ExamHandler) Roster(c *gin.Context) {
	scope, err := scopeFromContext(c, h.scopes)
	if err != nil {
		response.Error(c, err)
		return
	}

	detail, err := h.service.Get(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, detail.Roster, nil)
}

// SaveResults godoc
// @Summary Save exam results
// @Description Bulk upsert of scores; invalid entries are reported, valid ones saved
// @Tags Exams
// @Accept json
// @Produce json
// @Param id path string true "Exam ID"
// @Param payload body service.SaveResultsRequest true "Results payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /exams/{id}/results [put]
func (h *ExamHandler) SaveResults(c *gin.Context) {
	scope, err := scopeFromContext(c, h.scopes)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req service.SaveResultsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	result, err := h.service.SaveResults(c.Request.Context(), scope, c.Param("id"), req)
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

// ListResults godoc
// @Summary List results
// @Description Result rows with filters and an aggregate stats block
// @Tags Results
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param subject_id query string false "Subject filter"
// @Param group_id query string false "Group filter"
// @Param exam_id query string false "Exam filter"
// @Param student_id query string false "Student filter"
// @Param passed query bool false "Passed filter at the 50 percent threshold"
// @Success 200 {object} response.Envelope
// @Router /results [get]
func (h *ExamHandler) ListResults(c *gin.Context) {
	scope, err := scopeFromContext(c, h.scopes)
	if err != nil {
		response.Error(c, err)
		return
	}

	var filter models.ResultFilter
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SubjectID = c.Query("subject_id")
	filter.GroupID = c.Query("group_id")
	filter.ExamID = c.Query("exam_id")
	filter.StudentID = c.Query("student_id")
	if from, err := time.Parse("2006-01-02", c.Query("date_from")); err == nil {
		filter.DateFrom = &from
	}
	if to, err := time.Parse("2006-01-02", c.Query("date_to")); err == nil {
		filter.DateTo = &to
	}
	if passed := c.Query("passed"); passed != "" {
		if val, err := strconv.ParseBool(passed); err == nil {
			filter.Passed = &val
		}
	}
	filter.SortBy = c.Query("sort_by")
	filter.SortOrder = c.Query("sort_order")

	rows, pagination, err := h.service.ListResults(c.Request.Context(), scope, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	var meta map[string]interface{}
	statsFor := filter.StudentID
	if scope.Role == models.RoleStudent {
		statsFor = scope.StudentID
	}
	if statsFor != "" {
		stats, err := h.service.ResultStats(c.Request.Context(), scope, statsFor)
		if err != nil {
			response.Error(c, err)
			return
		}
		meta = map[string]interface{}{"stats": stats}
	}

	response.JSON(c, http.StatusOK, rows, pagination, meta)
}
