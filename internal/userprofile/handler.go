package userprofile

import (
	"net/http"

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

// GetMyProfile handles GET /profile. The profile is created on first access.
// @Summary Get own profile
// @Tags Profile
// @Produce json
// @Success 200 {object} ProfileResponse
// @Router /api/v1/profile [get]
func (h *Handler) GetMyProfile(c *gin.Context) {
	p, err := h.service.Get(c.Request.Context(), access.ActorFrom(c.Request.Context()))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// UpdateMyProfile handles PUT /profile.
func (h *Handler) UpdateMyProfile(c *gin.Context) {
	var in ProfileInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.service.Update(c.Request.Context(), access.ActorFrom(c.Request.Context()), in)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// UploadImage handles POST /profile/image (multipart field "image").
func (h *Handler) UploadImage(c *gin.Context) {
	fh, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		apperr.Respond(c, apperr.Internal(err))
		return
	}
	defer f.Close()

	p, err := h.service.UploadImage(c.Request.Context(), access.ActorFrom(c.Request.Context()), fh.Filename, f, fh.Header.Get("Content-Type"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
