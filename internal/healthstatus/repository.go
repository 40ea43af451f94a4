package healthstatus

import (
	"context"

	"gorm.io/gorm"

	"github.com/sharath018/health-management-backend/internal/access"
	"github.com/sharath018/health-management-backend/internal/dietplan"
	"github.com/sharath018/health-management-backend/internal/exercise"
	"github.com/sharath018/health-management-backend/internal/labreport"
)

type Repository interface {
	Create(ctx context.Context, h *HealthStatus) error
	Latest(ctx context.Context, userID uint) (*HealthStatus, error)
	// List returns newest first; userID nil lists every patient.
	List(ctx context.Context, userID *uint) ([]HealthStatus, error)
	Counts(ctx context.Context, userID uint) (Counts, error)
	Dashboard(ctx context.Context) ([]DashboardRow, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, h *HealthStatus) error {
	return r.db.WithContext(ctx).Create(h).Error
}

func (r *repository) Latest(ctx context.Context, userID uint) (*HealthStatus, error) {
	var h HealthStatus
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC, id DESC").First(&h).Error
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (r *repository) List(ctx context.Context, userID *uint) ([]HealthStatus, error) {
	q := r.db.WithContext(ctx).Model(&HealthStatus{})
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	}
	var out []HealthStatus
	err := q.Order("created_at DESC, id DESC").Find(&out).Error
	return out, err
}

func (r *repository) Counts(ctx context.Context, userID uint) (Counts, error) {
	var c Counts
	db := r.db.WithContext(ctx)
	if err := db.Model(&dietplan.DietPlan{}).Where("patient_id = ?", userID).Count(&c.DietPlans).Error; err != nil {
		return c, err
	}
	if err := db.Model(&labreport.LabReport{}).Where("patient_id = ?", userID).Count(&c.LabReports).Error; err != nil {
		return c, err
	}
	if err := db.Model(&exercise.Exercise{}).Where("user_id = ?", userID).Count(&c.Exercises).Error; err != nil {
		return c, err
	}
	return c, nil
}

const dashboardSQL = `
SELECT u.id AS patient_id,
       u.username,
       TRIM(CONCAT(u.first_name, ' ', u.last_name)) AS full_name,
       (SELECT COUNT(*) FROM diet_plans d WHERE d.patient_id = u.id) AS diet_plans,
       (SELECT COUNT(*) FROM lab_reports l WHERE l.patient_id = u.id) AS lab_reports,
       (SELECT COUNT(*) FROM exercises e WHERE e.user_id = u.id) AS exercises,
       (SELECT h.status FROM health_statuses h WHERE h.user_id = u.id
         ORDER BY h.created_at DESC, h.id DESC LIMIT 1) AS latest_status,
       u.assigned_doctor_id
FROM users u
WHERE u.role = ? AND u.is_active
ORDER BY u.id`

func (r *repository) Dashboard(ctx context.Context) ([]DashboardRow, error) {
	var out []DashboardRow
	err := r.db.WithContext(ctx).Raw(dashboardSQL, access.RolePatient).Scan(&out).Error
	return out, err
}
