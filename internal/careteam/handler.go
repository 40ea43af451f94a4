package careteam

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sharath018/health-management-backend/internal/access"
	"github.com/sharath018/health-management-backend/internal/apperr"
)

type Handler struct {
	service Service
}

func NewHandler(s Service) *Handler {
	return &Handler{service: s}
}

func patientID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Patient ID is required to assign."})
		return 0, false
	}
	return uint(id), true
}

// ListPatients handles GET /doctor/patients.
func (h *Handler) ListPatients(c *gin.Context) {
	out, err := h.service.ListPatients(c.Request.Context(), access.ActorFrom(c.Request.Context()))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"patients": out})
}

// PatientDetail handles GET /doctor/patients/:id.
// @Summary Everything assigned to one patient
// @Tags Doctor
// @Produce json
// @Param id path int true "Patient ID"
// @Success 200 {object} PatientDetail
// @Router /api/v1/doctor/patients/{id} [get]
func (h *Handler) PatientDetail(c *gin.Context) {
	id, ok := patientID(c)
	if !ok {
		return
	}
	out, err := h.service.PatientDetail(c.Request.Context(), access.ActorFrom(c.Request.Context()), id)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Assign handles PATCH /doctor/patients/:id/assign.
func (h *Handler) Assign(c *gin.Context) {
	id, ok := patientID(c)
	if !ok {
		return
	}
	msg, err := h.service.AssignToSelf(c.Request.Context(), access.ActorFrom(c.Request.Context()), id)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}
