package healthstatus

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sharath018/health-management-backend/internal/access"
	"github.com/sharath018/health-management-backend/internal/apperr"
	"github.com/sharath018/health-management-backend/internal/reports"
)

type Handler struct {
	service Service
}

func NewHandler(s Service) *Handler {
	return &Handler{service: s}
}

// patientParam reads ?patient_id; zero when absent.
func patientParam(c *gin.Context) (uint, bool) {
	v := c.Query("patient_id")
	if v == "" {
		return 0, true
	}
	id, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid patient_id"})
		return 0, false
	}
	return uint(id), true
}

// Record handles POST /health-status.
// @Summary Record a health reading
// @Tags Health Status
// @Accept json
// @Produce json
// @Param body body Input true "Reading"
// @Success 201 {object} HealthStatus
// @Router /api/v1/health-status [post]
func (h *Handler) Record(c *gin.Context) {
	var in Input
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := h.service.Record(c.Request.Context(), access.ActorFrom(c.Request.Context()), in)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *Handler) List(c *gin.Context) {
	id, ok := patientParam(c)
	if !ok {
		return
	}
	out, err := h.service.List(c.Request.Context(), access.ActorFrom(c.Request.Context()), id)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) Current(c *gin.Context) {
	id, ok := patientParam(c)
	if !ok {
		return
	}
	out, err := h.service.Current(c.Request.Context(), access.ActorFrom(c.Request.Context()), id)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) Summary(c *gin.Context) {
	id, ok := patientParam(c)
	if !ok {
		return
	}
	out, err := h.service.Summary(c.Request.Context(), access.ActorFrom(c.Request.Context()), id)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Dashboard handles GET /doctor/dashboard.
// @Summary Per-patient counts and latest status
// @Tags Doctor
// @Produce json
// @Success 200 {array} DashboardRow
// @Router /api/v1/doctor/dashboard [get]
func (h *Handler) Dashboard(c *gin.Context) {
	out, err := h.service.DoctorDashboard(c.Request.Context(), access.ActorFrom(c.Request.Context()))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) ExportDashboard(c *gin.Context) {
	f, err := h.service.ExportDashboard(c.Request.Context(), access.ActorFrom(c.Request.Context()))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	reports.Attach(c, f)
}
