package exercise

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

func exerciseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid exercise ID"})
		return 0, false
	}
	return uint(id), true
}

// formUpload opens an optional multipart file. The caller closes it.
func formUpload(c *gin.Context, field string) (*Upload, func(), error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, func() {}, nil
	}
	f, err := fh.Open()
	if err != nil {
		return nil, func() {}, err
	}
	return &Upload{Filename: fh.Filename, ContentType: fh.Header.Get("Content-Type"), Body: f}, func() { f.Close() }, nil
}

// List handles GET /exercises.
// @Summary List exercises
// @Tags Exercises
// @Produce json
// @Param patient_name query string false "Patient name"
// @Param exercise_name query string false "Exercise name"
// @Param exercise_type query string false "strength, cardio, flexibility or balance"
// @Param from_date query string false "YYYY-MM-DD"
// @Param to_date query string false "YYYY-MM-DD"
// @Success 200 {array} Exercise
// @Router /api/v1/exercises [get]
func (h *Handler) List(c *gin.Context) {
	from, to, err := reports.DateRange(c.Query("from_date"), c.Query("to_date"), nil)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := h.service.List(c.Request.Context(), access.ActorFrom(c.Request.Context()), Filter{
		PatientName:  c.Query("patient_name"),
		ExerciseName: c.Query("exercise_name"),
		ExerciseType: Type(c.Query("exercise_type")),
		FromDate:     from,
		ToDate:       to,
	})
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Create handles POST /exercises as JSON or multipart with an optional "media" file.
func (h *Handler) Create(c *gin.Context) {
	var in Input
	if err := c.ShouldBind(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	media, done, err := formUpload(c, "media")
	if err != nil {
		apperr.Respond(c, apperr.Internal(err))
		return
	}
	defer done()
	e, err := h.service.Create(c.Request.Context(), access.ActorFrom(c.Request.Context()), in, media)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := exerciseID(c)
	if !ok {
		return
	}
	e, err := h.service.Get(c.Request.Context(), access.ActorFrom(c.Request.Context()), id)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *Handler) Replace(c *gin.Context) {
	id, ok := exerciseID(c)
	if !ok {
		return
	}
	var in Input
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	e, err := h.service.Replace(c.Request.Context(), access.ActorFrom(c.Request.Context()), id, in)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *Handler) Patch(c *gin.Context) {
	id, ok := exerciseID(c)
	if !ok {
		return
	}
	var in Patch
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	e, err := h.service.Patch(c.Request.Context(), access.ActorFrom(c.Request.Context()), id, in)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *Handler) Delete(c *gin.Context) {
	id, ok := exerciseID(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), access.ActorFrom(c.Request.Context()), id); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Exercise deleted successfully"})
}

type statusRequest struct {
	Status Status `form:"status" json:"status" binding:"required"`
}

// UpdateStatus handles POST /exercises/:id/status with an optional "reason_audio" file.
func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := exerciseID(c)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}
	audio, done, err := formUpload(c, "reason_audio")
	if err != nil {
		apperr.Respond(c, apperr.Internal(err))
		return
	}
	defer done()
	st, err := h.service.UpdateStatus(c.Request.Context(), access.ActorFrom(c.Request.Context()), id, req.Status, audio)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

type reviewRequest struct {
	Response string `json:"response" binding:"required"`
}

// AddResponse handles POST /exercises/:id/responses.
func (h *Handler) AddResponse(c *gin.Context) {
	id, ok := exerciseID(c)
	if !ok {
		return
	}
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "response is required"})
		return
	}
	resp, err := h.service.AddDoctorResponse(c.Request.Context(), access.ActorFrom(c.Request.Context()), id, req.Response)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) ListResponses(c *gin.Context) {
	id, ok := exerciseID(c)
	if !ok {
		return
	}
	out, err := h.service.ListDoctorResponses(c.Request.Context(), access.ActorFrom(c.Request.Context()), id)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
