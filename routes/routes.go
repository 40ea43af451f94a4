package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/sharath018/health-management-backend/config"
	_ "github.com/sharath018/health-management-backend/docs"
	"github.com/sharath018/health-management-backend/internal/access"
	"github.com/sharath018/health-management-backend/internal/auditlog"
	"github.com/sharath018/health-management-backend/internal/auth"
	"github.com/sharath018/health-management-backend/internal/careteam"
	"github.com/sharath018/health-management-backend/internal/dietplan"
	"github.com/sharath018/health-management-backend/internal/exercise"
	"github.com/sharath018/health-management-backend/internal/healthstatus"
	"github.com/sharath018/health-management-backend/internal/labreport"
	"github.com/sharath018/health-management-backend/internal/notification"
	"github.com/sharath018/health-management-backend/internal/questionnaire"
	"github.com/sharath018/health-management-backend/internal/userprofile"
	"github.com/sharath018/health-management-backend/middleware"
)

// Handlers bundles every module's HTTP handler for Setup.
type Handlers struct {
	Auth          *auth.Handler
	Audit         *auditlog.Handler
	Profile       *userprofile.Handler
	Questionnaire *questionnaire.Handler
	DietPlan      *dietplan.Handler
	Exercise      *exercise.Handler
	LabReport     *labreport.Handler
	HealthStatus  *healthstatus.Handler
	CareTeam      *careteam.Handler
	Notification  *notification.Handler
}

// Deps is what the router needs beyond the handlers.
type Deps struct {
	Config        *config.Config
	Authenticator middleware.TokenAuthenticator
	Redis         *redis.Client // nil keeps rate limit counters in memory
	Ping          func() error  // database liveness for /healthz
}

func NewRouter(d Deps, h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger())
	Setup(r, d, h)
	return r
}

func Setup(r *gin.Engine, d Deps, h Handlers) {
	cfg := d.Config

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	// SSE responses must not be buffered by the compressor.
	r.Use(gzip.Gzip(gzip.BestSpeed, gzip.WithExcludedPaths([]string{"/api/v1/notifications/stream"})))

	if cfg.S3Bucket == "" {
		r.Static("/uploads", cfg.UploadPath)
	}

	r.GET("/healthz", func(c *gin.Context) {
		if d.Ping != nil {
			if err := d.Ping(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "DOWN", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api/v1")
	api.Use(middleware.RateLimiter(d.Redis, "rl:api", cfg.RateLimitPerMinute))
	api.Use(middleware.AuditMiddleware())

	// ========== Auth (public) ==========
	otpLimit := middleware.RateLimiter(d.Redis, "rl:otp", cfg.OTPRateLimitPerMinute)
	authGroup := api.Group("/auth")
	{
		authGroup.POST("/otp/request", otpLimit, h.Auth.RequestOTP)
		authGroup.POST("/otp/resend", otpLimit, h.Auth.RequestOTP)
		authGroup.POST("/otp/verify", otpLimit, h.Auth.VerifyOTP)
		authGroup.POST("/register", h.Auth.Register)
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/refresh", h.Auth.Refresh)
	}

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(d.Authenticator))

	protected.POST("/auth/logout", h.Auth.Logout)
	protected.GET("/me", h.Auth.Me)

	// ========== Accounts ==========
	managers := middleware.RequireRole(access.RoleSuperAdmin, access.RoleAdmin)
	protected.POST("/admins", middleware.RequireRole(access.RoleSuperAdmin), h.Auth.CreateAdmin)
	protected.POST("/doctors", managers, middleware.RequirePermission(access.ResourceDoctor), h.Auth.CreateDoctor)
	protected.GET("/doctors", managers, h.Auth.ListDoctors)
	protected.GET("/users", managers, h.Auth.ListUsers)
	// The target's role decides who may toggle it, so the check lives in the service.
	protected.PATCH("/users/:id/active", managers, h.Auth.SetActive)

	// ========== Audit logs ==========
	audit := protected.Group("/audit-logs", middleware.RequireRole(access.RoleSuperAdmin))
	{
		audit.GET("", h.Audit.GetAuditLogs)
		audit.GET("/:id", h.Audit.GetAuditLogByID)
	}

	// ========== Profile ==========
	profile := protected.Group("/profile")
	{
		profile.GET("", h.Profile.GetMyProfile)
		profile.PUT("", middleware.RequirePermission(access.ResourceProfile), h.Profile.UpdateMyProfile)
		// An image upload changes the profile, so it is checked as an update.
		profile.POST("/image", middleware.RequirePermissionAs(http.MethodPut, access.ResourceProfile), h.Profile.UploadImage)
	}

	// ========== Questionnaire ==========
	questions := protected.Group("/questions", middleware.RequirePermission(access.ResourceQuestion))
	{
		questions.GET("", h.Questionnaire.ListQuestions)
		questions.POST("", h.Questionnaire.CreateQuestion)
		questions.GET("/:id", h.Questionnaire.GetQuestion)
		questions.PUT("/:id", h.Questionnaire.ReplaceQuestion)
		questions.PATCH("/:id", h.Questionnaire.PatchQuestion)
		questions.DELETE("/:id", h.Questionnaire.DeleteQuestion)
	}
	responses := protected.Group("/responses", middleware.RequirePermission(access.ResourcePatientResponse))
	{
		responses.POST("/bulk", h.Questionnaire.BulkSubmit)
		responses.GET("", h.Questionnaire.ListResponses)
	}
	dietQuestions := protected.Group("/diet-questions", middleware.RequirePermission(access.ResourcePatientDietQuestion))
	{
		dietQuestions.GET("", h.Questionnaire.DietQuestions)
		dietQuestions.POST("", h.Questionnaire.SubmitDietQuestions)
	}

	// ========== Diet plans ==========
	portions := protected.Group("/meal-portions", middleware.RequirePermission(access.ResourceMealPortion))
	{
		portions.GET("", h.DietPlan.ListPortions)
		portions.POST("", h.DietPlan.CreatePortion)
		portions.PUT("/:id", h.DietPlan.UpdatePortion)
		portions.DELETE("/:id", h.DietPlan.DeletePortion)
	}
	plans := protected.Group("/diet-plans")
	{
		planPerm := middleware.RequirePermission(access.ResourceDietPlan)
		plans.GET("", planPerm, h.DietPlan.List)
		plans.POST("", planPerm, h.DietPlan.Create)
		plans.GET("/day-view", planPerm, h.DietPlan.DayView)
		// Patients record their own meal status; the status row is what gets created.
		plans.POST("/status", middleware.RequirePermission(access.ResourceDietPlanStatus), h.DietPlan.UpdateStatus)
		plans.GET("/:id", planPerm, h.DietPlan.Get)
		plans.DELETE("/:id", planPerm, h.DietPlan.Delete)
		plans.GET("/:id/pdf", planPerm, h.DietPlan.ExportPDF)
	}

	// ========== Exercises ==========
	exercises := protected.Group("/exercises")
	{
		exPerm := middleware.RequirePermission(access.ResourceExercise)
		exercises.GET("", exPerm, h.Exercise.List)
		exercises.POST("", exPerm, h.Exercise.Create)
		exercises.GET("/:id", exPerm, h.Exercise.Get)
		exercises.PUT("/:id", exPerm, h.Exercise.Replace)
		exercises.PATCH("/:id", exPerm, h.Exercise.Patch)
		exercises.DELETE("/:id", exPerm, h.Exercise.Delete)
		exercises.POST("/:id/status", middleware.RequirePermission(access.ResourceExerciseStatus), h.Exercise.UpdateStatus)

		respPerm := middleware.RequirePermission(access.ResourceDoctorExerciseResponse)
		exercises.GET("/:id/responses", respPerm, h.Exercise.ListResponses)
		exercises.POST("/:id/responses", respPerm, h.Exercise.AddResponse)
	}

	// ========== Lab reports ==========
	labs := protected.Group("/lab-reports", middleware.RequirePermission(access.ResourceLabReport))
	{
		labs.GET("", h.LabReport.List)
		labs.POST("", h.LabReport.Create)
		labs.GET("/export", h.LabReport.Export)
		labs.GET("/:id", h.LabReport.Get)
		labs.PUT("/:id", h.LabReport.Update)
		labs.DELETE("/:id", h.LabReport.Delete)
	}

	// ========== Health status ==========
	health := protected.Group("/health-status", middleware.RequirePermission(access.ResourceHealthStatus))
	{
		health.GET("", h.HealthStatus.List)
		health.POST("", h.HealthStatus.Record)
		health.GET("/current", h.HealthStatus.Current)
		health.GET("/summary", h.HealthStatus.Summary)
	}

	// ========== Doctor ==========
	doctor := protected.Group("/doctor")
	{
		staff := middleware.RequireRole(access.RoleSuperAdmin, access.RoleAdmin, access.RoleDoctor)
		doctor.GET("/dashboard", staff, h.HealthStatus.Dashboard)
		doctor.GET("/dashboard/export", staff, h.HealthStatus.ExportDashboard)

		patients := doctor.Group("/patients", middleware.RequireRole(access.RoleDoctor))
		patients.GET("", h.CareTeam.ListPatients)
		patients.GET("/:id", h.CareTeam.PatientDetail)
		patients.PATCH("/:id/assign", middleware.RequirePermission(access.ResourcePatient), h.CareTeam.Assign)
	}

	// ========== Notifications ==========
	// Every route here acts on the caller's own inbox and devices.
	notifications := protected.Group("/notifications")
	{
		notifications.GET("", h.Notification.List)
		notifications.GET("/stream", h.Notification.Stream)
		notifications.PATCH("/read-all", h.Notification.MarkAllRead)
		notifications.PATCH("/:id/read", h.Notification.MarkRead)
		notifications.POST("/devices", h.Notification.RegisterDevice)
		notifications.DELETE("/devices", h.Notification.RemoveDevice)
	}
}
