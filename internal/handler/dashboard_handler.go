package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Azizbek961/crm-edu-crm/internal/service"
	"github.com/Azizbek961/crm-edu-crm/pkg/response"
)

// DashboardHandler handles role specific dashboard endpoints.
type DashboardHandler struct {
	service *service.DashboardService
	scopes  *service.ScopeService
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(svc *service.DashboardService, scopes *service.ScopeService) *DashboardHandler {
	return &DashboardHandler{service: svc, scopes: scopes}
}

// Admin godoc
// @Summary Admin dashboard
// @Description School wide totals, fee buckets, revenue and attendance trend
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/admin [get]
func (h *DashboardHandler) Admin(c *gin.Context) {
	payload, err := h.service.Admin(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, payload, nil)
}

// Teacher godoc
// @Summary Teacher dashboard
// @Description Group tiles, homework counts and attendance rate for the caller's groups
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/teacher [get]
func (h *DashboardHandler) Teacher(c *gin.Context) {
	scope, err := scopeFromContext(c, h.scopes)
	if err != nil {
		response.Error(c, err)
		return
	}

	payload, err := h.service.Teacher(c.Request.Context(), scope)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, payload, nil)
}

// Student godoc
// @Summary Student dashboard
// @Description Personal overview; parents pass student_id for a linked child
// @Tags Dashboard
// @Produce json
// @Param student_id query string false "Child id for parent callers"
// @Success 200 {object} response.Envelope
// @Router /dashboard/student [get]
func (h *DashboardHandler) Student(c *gin.Context) {
	scope, err := scopeFromContext(c, h.scopes)
	if err != nil {
		response.Error(c, err)
		return
	}

	payload, err := h.service.Student(c.Request.Context(), scope, c.Query("student_id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, payload, nil)
}
