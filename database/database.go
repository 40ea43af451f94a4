package database

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sharath018/health-management-backend/config"
	"github.com/sharath018/health-management-backend/internal/auditlog"
	"github.com/sharath018/health-management-backend/internal/auth"
	"github.com/sharath018/health-management-backend/internal/dietplan"
	"github.com/sharath018/health-management-backend/internal/exercise"
	"github.com/sharath018/health-management-backend/internal/healthstatus"
	"github.com/sharath018/health-management-backend/internal/labreport"
	"github.com/sharath018/health-management-backend/internal/notification"
	"github.com/sharath018/health-management-backend/internal/questionnaire"
	"github.com/sharath018/health-management-backend/internal/userprofile"
)

// Connect opens the postgres pool. Queries are logged at Info in development only.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	level := logger.Warn
	if cfg.IsDev() {
		level = logger.Info
	}
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(level),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres %s/%s: %w", cfg.DBHost, cfg.DBName, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	log.Info().Str("host", cfg.DBHost).Str("db", cfg.DBName).Msg("connected to postgres")
	return db, nil
}

// Models lists every table the service owns, parents before children.
func Models() []interface{} {
	return []interface{}{
		&auth.Group{},
		&auth.GroupCapability{},
		&auth.User{},
		&auditlog.AuditLog{},
		&userprofile.Profile{},

		&questionnaire.Question{},
		&questionnaire.Option{},
		&questionnaire.PatientResponse{},
		&questionnaire.PatientDietQuestion{},

		&dietplan.MealPortion{},
		&dietplan.DietPlan{},
		&dietplan.DietPlanDate{},
		&dietplan.DietPlanMeal{},
		&dietplan.DietPlanStatus{},

		&exercise.Exercise{},
		&exercise.ExerciseStatus{},
		&exercise.DoctorExerciseResponse{},

		&labreport.LabReport{},
		&healthstatus.HealthStatus{},

		&notification.InAppNotification{},
		&notification.FCMDeviceToken{},
	}
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	log.Info().Int("tables", len(Models())).Msg("database migrations completed")
	return nil
}
