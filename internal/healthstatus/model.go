package healthstatus

import (
	"github.com/sharath018/health-management-backend/internal/access"
)

// HealthStatus is an append-only snapshot. The newest row is the current status.
type HealthStatus struct {
	ID           uint     `gorm:"primaryKey" json:"id"`
	UserID       uint     `gorm:"not null;index" json:"user_id"`
	SystolicBP   *int     `json:"systolic_bp,omitempty"`
	DiastolicBP  *int     `json:"diastolic_bp,omitempty"`
	WeightKg     *float64 `json:"weight_kg,omitempty"`
	HeightCm     *float64 `json:"height_cm,omitempty"`
	BMI          *float64 `json:"bmi,omitempty"`
	BMICategory  string   `gorm:"size:30" json:"bmi_category,omitempty"`
	Calories     *int     `json:"calories,omitempty"`
	StreakDays   int      `gorm:"not null;default:1" json:"streak_days"`
	Status       string   `gorm:"type:text" json:"status"`
	RecordedByID uint     `gorm:"not null" json:"recorded_by"`

	access.AuditFields
}

type Input struct {
	UserID      uint     `json:"user_id"`
	SystolicBP  *int     `json:"systolic_bp"`
	DiastolicBP *int     `json:"diastolic_bp"`
	WeightKg    *float64 `json:"weight_kg"`
	HeightCm    *float64 `json:"height_cm"`
	Calories    *int     `json:"calories"`
	Status      string   `json:"status"`
}

type Counts struct {
	DietPlans  int64 `json:"diet_plans"`
	LabReports int64 `json:"lab_reports"`
	Exercises  int64 `json:"exercises"`
}

// Summary is the patient home screen.
type Summary struct {
	PatientID uint `json:"patient_id"`
	Counts
	Latest *HealthStatus `json:"latest_status"`
}

type DashboardRow struct {
	PatientID        uint    `json:"patient_id"`
	Username         string  `json:"username"`
	FullName         string  `json:"full_name"`
	DietPlans        int64   `json:"diet_plans"`
	LabReports       int64   `json:"lab_reports"`
	Exercises        int64   `json:"exercises"`
	LatestStatus     *string `json:"latest_status"`
	AssignedDoctorID *uint   `json:"assigned_doctor_id"`
}
