package auth

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sharath018/health-management-backend/internal/access"
	"github.com/sharath018/health-management-backend/internal/apperr"
)

// AccessClaimsKey is the gin context key the auth middleware stores verified claims under.
const AccessClaimsKey = "access_claims"

type Handler struct{ service Service }

func NewHandler(s Service) *Handler { return &Handler{s} }

// ===============================
// OTP
// ===============================

type otpRequest struct {
	PhoneNumber string `json:"phone_number" binding:"required" example:"9876543210"`
}

type otpVerifyRequest struct {
	PhoneNumber string `json:"phone_number" binding:"required" example:"9876543210"`
	OTP         string `json:"otp" binding:"required,len=6" example:"123456"`
}

// RequestOTP handles POST /auth/otp/request and /auth/otp/resend.
// @Summary Send a login OTP
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body otpRequest true "Phone number"
// @Success 200 {object} OTPResult
// @Router /api/v1/auth/otp/request [post]
func (h *Handler) RequestOTP(c *gin.Context) {
	var req otpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Phone number is required."})
		return
	}
	result, err := h.service.RequestOTP(c.Request.Context(), req.PhoneNumber)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// VerifyOTP handles POST /auth/otp/verify.
// @Summary Verify an OTP and issue tokens
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body otpVerifyRequest true "Phone and code"
// @Success 200 {object} LoginResult
// @Router /api/v1/auth/otp/verify [post]
func (h *Handler) VerifyOTP(c *gin.Context) {
	var req otpVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Phone number and a 6 digit OTP are required."})
		return
	}
	result, err := h.service.VerifyOTP(c.Request.Context(), req.PhoneNumber, req.OTP)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ===============================
// Registration and password login
// ===============================

type registerRequest struct {
	PhoneNumber string `json:"phone_number" binding:"required" example:"9876543210"`
	FirstName   string `json:"first_name" example:"Anita"`
	LastName    string `json:"last_name" example:"Rao"`
}

// Register handles POST /auth/register. The caller then verifies via OTP.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := h.service.Register(c.Request.Context(), RegisterInput(req))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Registration successful. Verify your phone number to continue.", "user": user})
}

type loginRequest struct {
	Username string `json:"username" binding:"required" example:"admin"`
	Password string `json:"password" binding:"required" example:"secret123"`
}

// Login handles POST /auth/login for password accounts.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := h.service.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ===============================
// Tokens
// ===============================

type refreshRequest struct {
	Refresh string `json:"refresh" binding:"required"`
}

func (h *Handler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "refresh token is required"})
		return
	}
	tokens, err := h.service.Refresh(c.Request.Context(), req.Refresh)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, tokens)
}

type logoutRequest struct {
	Refresh string `json:"refresh"`
}

// Logout handles POST /auth/logout. The refresh token in the body is optional.
func (h *Handler) Logout(c *gin.Context) {
	var req logoutRequest
	_ = c.ShouldBindJSON(&req)

	var claims *AccessClaims
	if v, ok := c.Get(AccessClaimsKey); ok {
		claims, _ = v.(*AccessClaims)
	}
	if err := h.service.Logout(c.Request.Context(), access.ActorFrom(c.Request.Context()), claims, req.Refresh); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// ===============================
// Accounts
// ===============================

// Me handles GET /me.
func (h *Handler) Me(c *gin.Context) {
	actor := access.ActorFrom(c.Request.Context())
	if err := access.RequireAuthenticated(actor); err != nil {
		apperr.Respond(c, err)
		return
	}
	user, err := h.service.GetUser(c.Request.Context(), actor.UserID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

type accountRequest struct {
	Username    string `json:"username"`
	PhoneNumber string `json:"phone_number" binding:"required"`
	FirstName   string `json:"first_name" binding:"required"`
	LastName    string `json:"last_name"`
	Password    string `json:"password"`
}

// CreateAdmin handles POST /admins (superadmin only).
func (h *Handler) CreateAdmin(c *gin.Context) { h.createAccount(c, access.RoleAdmin) }

// CreateDoctor handles POST /doctors (admin only).
func (h *Handler) CreateDoctor(c *gin.Context) { h.createAccount(c, access.RoleDoctor) }

func (h *Handler) createAccount(c *gin.Context, role access.Role) {
	var req accountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := h.service.CreateAccount(c.Request.Context(), access.ActorFrom(c.Request.Context()), AccountInput{
		Role:        role,
		Username:    req.Username,
		PhoneNumber: req.PhoneNumber,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Password:    req.Password,
	})
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// ListUsers handles GET /users?role=&phone=&first_name=&last_name=.
func (h *Handler) ListUsers(c *gin.Context) {
	filter := UserFilter{
		Role:      access.Role(c.Query("role")),
		Phone:     c.Query("phone"),
		FirstName: c.Query("first_name"),
		LastName:  c.Query("last_name"),
	}
	users, err := h.service.ListUsers(c.Request.Context(), access.ActorFrom(c.Request.Context()), filter)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": users, "count": len(users)})
}

// ListDoctors handles GET /doctors.
func (h *Handler) ListDoctors(c *gin.Context) {
	users, err := h.service.ListUsers(c.Request.Context(), access.ActorFrom(c.Request.Context()), UserFilter{
		Role:      access.RoleDoctor,
		FirstName: c.Query("first_name"),
		LastName:  c.Query("last_name"),
	})
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": users, "count": len(users)})
}

type activeRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// SetActive handles PATCH /users/:id/active.
func (h *Handler) SetActive(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}
	var req activeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "is_active is required"})
		return
	}
	user, err := h.service.SetActive(c.Request.Context(), access.ActorFrom(c.Request.Context()), uint(id), *req.IsActive)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
