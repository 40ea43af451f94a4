package notification

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sharath018/health-management-backend/internal/access"
	"github.com/sharath018/health-management-backend/internal/apperr"
)

type Handler struct {
	Service Service
}

func NewHandler(s Service) *Handler {
	return &Handler{Service: s}
}

// List handles GET /notifications?unread=true&limit=20.
// @Summary My notifications
// @Tags Notifications
// @Produce json
// @Param unread query bool false "Only unread"
// @Param limit query int false "Max rows (default 20)"
// @Success 200 {object} Page
// @Router /api/v1/notifications [get]
func (h *Handler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	unread := c.Query("unread") == "true"
	page, err := h.Service.List(c.Request.Context(), access.ActorFrom(c.Request.Context()), unread, limit)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// MarkRead handles PATCH /notifications/:id/read.
func (h *Handler) MarkRead(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid notification ID"})
		return
	}
	if err := h.Service.MarkRead(c.Request.Context(), access.ActorFrom(c.Request.Context()), uint(id)); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "marked as read"})
}

// MarkAllRead handles PATCH /notifications/read-all.
func (h *Handler) MarkAllRead(c *gin.Context) {
	n, err := h.Service.MarkAllRead(c.Request.Context(), access.ActorFrom(c.Request.Context()))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "marked as read", "updated": n})
}

// Stream handles GET /notifications/stream as server-sent events.
func (h *Handler) Stream(c *gin.Context) {
	ctx := c.Request.Context()
	ch, closeFn, err := h.Service.Subscribe(ctx, access.ActorFrom(ctx))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	defer closeFn()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.Status(http.StatusInternalServerError)
		return
	}
	_, _ = io.WriteString(c.Writer, ":ok\n\n")
	flusher.Flush()

	for {
		select {
		case payload, ok := <-ch:
			if !ok {
				return
			}
			_, _ = io.WriteString(c.Writer, "event: inapp\ndata: "+payload+"\n\n")
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}

// RegisterDevice handles POST /notifications/devices.
func (h *Handler) RegisterDevice(c *gin.Context) {
	var in DeviceInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "device_token is required"})
		return
	}
	if err := h.Service.RegisterDevice(c.Request.Context(), access.ActorFrom(c.Request.Context()), in); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "device token registered successfully"})
}

type removeDeviceRequest struct {
	DeviceToken string `json:"device_token" binding:"required"`
}

// RemoveDevice handles DELETE /notifications/devices.
func (h *Handler) RemoveDevice(c *gin.Context) {
	var req removeDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "device_token is required"})
		return
	}
	if err := h.Service.RemoveDevice(c.Request.Context(), access.ActorFrom(c.Request.Context()), req.DeviceToken); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "device token removed successfully"})
}
