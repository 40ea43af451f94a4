// @title Health Management API
// @version 1.0
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/sharath018/health-management-backend/config"
	"github.com/sharath018/health-management-backend/database"
	"github.com/sharath018/health-management-backend/internal/auditlog"
	"github.com/sharath018/health-management-backend/internal/auth"
	"github.com/sharath018/health-management-backend/internal/careteam"
	"github.com/sharath018/health-management-backend/internal/dietplan"
	"github.com/sharath018/health-management-backend/internal/events"
	"github.com/sharath018/health-management-backend/internal/exercise"
	"github.com/sharath018/health-management-backend/internal/healthstatus"
	"github.com/sharath018/health-management-backend/internal/labreport"
	"github.com/sharath018/health-management-backend/internal/notification"
	"github.com/sharath018/health-management-backend/internal/questionnaire"
	"github.com/sharath018/health-management-backend/internal/reports"
	"github.com/sharath018/health-management-backend/internal/scheduler"
	"github.com/sharath018/health-management-backend/internal/userprofile"
	"github.com/sharath018/health-management-backend/middleware"
	"github.com/sharath018/health-management-backend/routes"
	"github.com/sharath018/health-management-backend/utils"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "health-server",
		Short: "Maternal health management API",
	}
	rootCmd.AddCommand(serveCmd(), migrateCmd(), superAdminCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// bootstrap loads config, configures logging and opens the database.
func bootstrap() (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	utils.InitLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run migrations, seed groups and start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations and seed permission groups",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := bootstrap()
			if err != nil {
				return err
			}
			if err := database.Migrate(db); err != nil {
				return err
			}
			authSvc := auth.NewService(auth.NewRepository(db), nil, auth.LogSender{}, auditlog.NewService(auditlog.NewRepository(db)), cfg)
			return authSvc.SeedGroups(cmd.Context())
		},
	}
}

func superAdminCmd() *cobra.Command {
	var username, password, phone string
	cmd := &cobra.Command{
		Use:   "create-superadmin",
		Short: "Create the bootstrap superadmin if the username is free",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := bootstrap()
			if err != nil {
				return err
			}
			authSvc := auth.NewService(auth.NewRepository(db), nil, auth.LogSender{}, auditlog.NewService(auditlog.NewRepository(db)), cfg)
			if err := authSvc.SeedGroups(cmd.Context()); err != nil {
				return err
			}
			if username == "" {
				username = cfg.SuperAdminUsername
			}
			if password == "" {
				password = cfg.SuperAdminPassword
			}
			if phone == "" {
				phone = cfg.SuperAdminPhone
			}
			return authSvc.SeedSuperAdmin(cmd.Context(), username, password, phone)
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "superadmin username (default SUPERADMIN_USERNAME)")
	cmd.Flags().StringVar(&password, "password", "", "superadmin password (default SUPERADMIN_PASSWORD)")
	cmd.Flags().StringVar(&phone, "phone", "", "superadmin phone (default SUPERADMIN_PHONE)")
	return cmd
}

func runServer() error {
	cfg, db, err := bootstrap()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(db); err != nil {
		return err
	}

	// Infrastructure
	if err := utils.InitRedis(cfg); err != nil {
		return err
	}
	files, err := utils.NewFileStore(ctx, cfg)
	if err != nil {
		return err
	}
	fcmClient, err := utils.InitFirebase(ctx, cfg)
	if err != nil {
		log.Warn().Err(err).Msg("push notifications disabled")
	}

	var sender auth.OTPSender = auth.LogSender{}
	switch {
	case cfg.MSG91APIKey != "":
		sender = auth.NewMSG91Sender(cfg.MSG91BaseURL, cfg.MSG91APIKey, cfg.MSG91TemplateID)
	case !cfg.IsDev():
		return errors.New("MSG91_API_KEY is required outside development")
	}

	// Repositories & services
	authRepo := auth.NewRepository(db)
	auditSvc := auditlog.NewService(auditlog.NewRepository(db))
	authSvc := auth.NewService(authRepo, utils.NewRedisTokenStore(utils.RedisClient), sender, auditSvc, cfg)

	notificationSvc := notification.NewService(
		notification.NewRepository(db),
		&notification.RedisBroker{Client: utils.RedisClient},
		notification.NewFCMChannel(fcmClient),
	)

	var publisher events.Publisher = &events.DirectPublisher{Handler: notificationSvc}
	if len(cfg.KafkaBrokers) > 0 {
		writer := utils.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer writer.Close()
		publisher = &events.KafkaPublisher{Writer: writer}

		reader := utils.NewKafkaReader(cfg.KafkaBrokers, cfg.KafkaTopic, "notification-service")
		go func() {
			if err := events.Consume(ctx, reader, notificationSvc); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("event consumer stopped")
			}
		}()
		log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("events routed through kafka")
	}

	exporter := reports.NewExporter()
	profileSvc := userprofile.NewService(userprofile.NewRepository(db), authRepo, files, auditSvc)
	questionnaireSvc := questionnaire.NewService(questionnaire.NewRepository(db), authRepo, auditSvc, publisher,
		func() int { return cfg.DietQuestionAddDays })
	dietSvc := dietplan.NewService(dietplan.NewRepository(db), authRepo, files, exporter, auditSvc, publisher)
	exerciseSvc := exercise.NewService(exercise.NewRepository(db), authRepo, files, auditSvc, publisher)
	labSvc := labreport.NewService(labreport.NewRepository(db), authRepo, files, exporter, auditSvc, publisher)
	healthSvc := healthstatus.NewService(healthstatus.NewRepository(db), authRepo, exporter, auditSvc, publisher)
	careSvc := careteam.NewService(authRepo, profileSvc, careteam.NewRecords(db), auditSvc)

	if cfg.SchedulerEnabled {
		sc := scheduler.DefaultConfig()
		s, err := scheduler.Start(sc, scheduler.NewJobs(questionnaireSvc, dietSvc, sc.TaskTimeout))
		if err != nil {
			return err
		}
		defer s.Stop()
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	router := routes.NewRouter(routes.Deps{
		Config:        cfg,
		Authenticator: authSvc,
		Redis:         utils.RedisClient,
		Ping:          sqlDB.Ping,
	}, routes.Handlers{
		Auth:          auth.NewHandler(authSvc),
		Audit:         auditlog.NewHandler(auditSvc),
		Profile:       userprofile.NewHandler(profileSvc),
		Questionnaire: questionnaire.NewHandler(questionnaireSvc),
		DietPlan:      dietplan.NewHandler(dietSvc),
		Exercise:      exercise.NewHandler(exerciseSvc),
		LabReport:     labreport.NewHandler(labSvc),
		HealthStatus:  healthstatus.NewHandler(healthSvc),
		CareTeam:      careteam.NewHandler(careSvc),
		Notification:  notification.NewHandler(notificationSvc),
	})

	// Seeding runs after the router is built so every gated resource is checked.
	if err := authSvc.SeedGroups(ctx, middleware.GatedResources()...); err != nil {
		return err
	}
	if cfg.SuperAdminPhone != "" || cfg.IsDev() {
		if err := authSvc.SeedSuperAdmin(ctx, cfg.SuperAdminUsername, cfg.SuperAdminPassword, cfg.SuperAdminPhone); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// Cancelled on shutdown so open notification streams end.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}
