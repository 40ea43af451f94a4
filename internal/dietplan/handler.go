package dietplan

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sharath018/health-management-backend/internal/access"
	"github.com/sharath018/health-management-backend/internal/apperr"
	"github.com/sharath018/health-management-backend/internal/reports"
	"github.com/sharath018/health-management-backend/utils"
)

type Handler struct {
	service Service
}

func NewHandler(s Service) *Handler {
	return &Handler{service: s}
}

func pathID(c *gin.Context, what string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + what + " ID"})
		return 0, false
	}
	return uint(id), true
}

// ===============================
// Meal portions
// ===============================

// ListPortions handles GET /meal-portions?search=.
func (h *Handler) ListPortions(c *gin.Context) {
	out, err := h.service.ListPortions(c.Request.Context(), c.Query("search"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) CreatePortion(c *gin.Context) {
	var in PortionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.service.CreatePortion(c.Request.Context(), access.ActorFrom(c.Request.Context()), in)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) UpdatePortion(c *gin.Context) {
	id, ok := pathID(c, "meal portion")
	if !ok {
		return
	}
	var in PortionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.service.UpdatePortion(c.Request.Context(), access.ActorFrom(c.Request.Context()), id, in)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) DeletePortion(c *gin.Context) {
	id, ok := pathID(c, "meal portion")
	if !ok {
		return
	}
	if err := h.service.DeletePortion(c.Request.Context(), access.ActorFrom(c.Request.Context()), id); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Meal portion deleted successfully"})
}

// ===============================
// Diet plans
// ===============================

// Create handles POST /diet-plans.
// @Summary Assign a diet plan to a patient
// @Tags DietPlans
// @Accept json
// @Produce json
// @Param body body CreateInput true "Plan"
// @Success 201 {object} DietPlan
// @Failure 409 {object} map[string]string
// @Router /api/v1/diet-plans [post]
func (h *Handler) Create(c *gin.Context) {
	var in CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	plan, err := h.service.Create(c.Request.Context(), access.ActorFrom(c.Request.Context()), in)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, plan)
}

// List handles GET /diet-plans?patient_name=&from_date=&to_date=.
func (h *Handler) List(c *gin.Context) {
	from, to, err := reports.DateRange(c.Query("from_date"), c.Query("to_date"), nil)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	plans, err := h.service.List(c.Request.Context(), access.ActorFrom(c.Request.Context()), Filter{
		PatientName: c.Query("patient_name"),
		FromDate:    from,
		ToDate:      to,
	})
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": plans, "count": len(plans)})
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := pathID(c, "diet plan")
	if !ok {
		return
	}
	plan, err := h.service.Get(c.Request.Context(), access.ActorFrom(c.Request.Context()), id)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (h *Handler) Delete(c *gin.Context) {
	id, ok := pathID(c, "diet plan")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), access.ActorFrom(c.Request.Context()), id); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Diet plan deleted successfully"})
}

// DayView handles GET /diet-plans/day-view?date=&patient_id=.
// @Summary Patient diet plan by date
// @Tags DietPlans
// @Produce json
// @Param date query string false "YYYY-MM-DD"
// @Param patient_id query int false "Required for staff"
// @Success 200 {array} DayView
// @Router /api/v1/diet-plans/day-view [get]
func (h *Handler) DayView(c *gin.Context) {
	var day *utils.Date
	if raw := c.Query("date"); raw != "" {
		d, err := utils.ParseDate(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date format. Use YYYY-MM-DD."})
			return
		}
		day = &d
	}
	var patientID uint
	if raw := c.Query("patient_id"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid patient_id"})
			return
		}
		patientID = uint(v)
	}
	days, err := h.service.PatientView(c.Request.Context(), access.ActorFrom(c.Request.Context()), patientID, day)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, days)
}

// UpdateStatus handles POST /diet-plans/status as JSON or multipart with an
// optional "reason_audio" file.
func (h *Handler) UpdateStatus(c *gin.Context) {
	var in StatusInput
	if err := c.ShouldBind(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "diet_plan, status and date are required"})
		return
	}
	var audio *Audio
	if fh, err := c.FormFile("reason_audio"); err == nil {
		f, err := fh.Open()
		if err != nil {
			apperr.Respond(c, apperr.Internal(err))
			return
		}
		defer f.Close()
		audio = &Audio{Filename: fh.Filename, ContentType: fh.Header.Get("Content-Type"), Body: f}
	}
	st, err := h.service.UpdateStatus(c.Request.Context(), access.ActorFrom(c.Request.Context()), in, audio)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// ExportPDF handles GET /diet-plans/:id/pdf.
func (h *Handler) ExportPDF(c *gin.Context) {
	id, ok := pathID(c, "diet plan")
	if !ok {
		return
	}
	f, err := h.service.ExportPDF(c.Request.Context(), access.ActorFrom(c.Request.Context()), id)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	reports.Attach(c, f)
}
