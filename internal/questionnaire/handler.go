package questionnaire

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

func questionID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid question ID"})
		return 0, false
	}
	return uint(id), true
}

// ListQuestions handles GET /questions?category=.
// @Summary List questions
// @Tags Questionnaire
// @Produce json
// @Param category query string false "initial, diet or general"
// @Success 200 {object} QuestionList
// @Router /api/v1/questions [get]
func (h *Handler) ListQuestions(c *gin.Context) {
	out, err := h.service.ListQuestions(c.Request.Context(), access.ActorFrom(c.Request.Context()), Category(c.Query("category")))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// CreateQuestion handles POST /questions.
// @Summary Create a question
// @Tags Questionnaire
// @Accept json
// @Produce json
// @Param body body QuestionInput true "Question"
// @Success 201 {object} Question
// @Router /api/v1/questions [post]
func (h *Handler) CreateQuestion(c *gin.Context) {
	var in QuestionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	q, err := h.service.CreateQuestion(c.Request.Context(), access.ActorFrom(c.Request.Context()), in)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, q)
}

func (h *Handler) GetQuestion(c *gin.Context) {
	id, ok := questionID(c)
	if !ok {
		return
	}
	q, err := h.service.GetQuestion(c.Request.Context(), access.ActorFrom(c.Request.Context()), id)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

// ReplaceQuestion handles PUT /questions/:id.
func (h *Handler) ReplaceQuestion(c *gin.Context) {
	id, ok := questionID(c)
	if !ok {
		return
	}
	var in QuestionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	q, err := h.service.ReplaceQuestion(c.Request.Context(), access.ActorFrom(c.Request.Context()), id, in)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

// PatchQuestion handles PATCH /questions/:id.
func (h *Handler) PatchQuestion(c *gin.Context) {
	id, ok := questionID(c)
	if !ok {
		return
	}
	var in QuestionPatch
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	q, err := h.service.PatchQuestion(c.Request.Context(), access.ActorFrom(c.Request.Context()), id, in)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (h *Handler) DeleteQuestion(c *gin.Context) {
	id, ok := questionID(c)
	if !ok {
		return
	}
	if err := h.service.DeleteQuestion(c.Request.Context(), access.ActorFrom(c.Request.Context()), id); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Question deleted successfully"})
}

// ===============================
// Responses
// ===============================

type bulkRequest struct {
	Responses []AnswerItem `json:"responses" binding:"required,dive"`
}

// BulkSubmit handles POST /responses/bulk.
// @Summary Submit initial questionnaire answers
// @Tags Questionnaire
// @Accept json
// @Produce json
// @Param body body bulkRequest true "Answers"
// @Success 201 {object} BulkResult
// @Router /api/v1/responses/bulk [post]
func (h *Handler) BulkSubmit(c *gin.Context) {
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "responses must be a list of {question, answer}"})
		return
	}
	out, err := h.service.BulkSubmit(c.Request.Context(), access.ActorFrom(c.Request.Context()), req.Responses)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

// ListResponses handles GET /responses?user_id=.
func (h *Handler) ListResponses(c *gin.Context) {
	var userID *uint
	if raw := c.Query("user_id"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user_id"})
			return
		}
		id := uint(v)
		userID = &id
	}
	rows, err := h.service.ListResponses(c.Request.Context(), access.ActorFrom(c.Request.Context()), userID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows, "count": len(rows)})
}

// ===============================
// Diet questions
// ===============================

// DietQuestions handles GET /diet-questions.
// @Summary Current diet questionnaire state
// @Tags Questionnaire
// @Produce json
// @Success 200 {object} DietQuestionnaireView
// @Router /api/v1/diet-questions [get]
func (h *Handler) DietQuestions(c *gin.Context) {
	view, err := h.service.DietQuestionnaire(c.Request.Context(), access.ActorFrom(c.Request.Context()))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// SubmitDietQuestions handles POST /diet-questions.
func (h *Handler) SubmitDietQuestions(c *gin.Context) {
	var in DietSubmission
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	view, err := h.service.SubmitDietAnswers(c.Request.Context(), access.ActorFrom(c.Request.Context()), in)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}
