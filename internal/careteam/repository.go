package careteam

import (
	"context"

	"gorm.io/gorm"

	"github.com/sharath018/health-management-backend/internal/dietplan"
	"github.com/sharath018/health-management-backend/internal/exercise"
	"github.com/sharath018/health-management-backend/internal/labreport"
	"github.com/sharath018/health-management-backend/internal/questionnaire"
)

// Records reads everything assigned to one patient.
type Records interface {
	Exercises(ctx context.Context, patientID uint) ([]exercise.Exercise, error)
	DietPlans(ctx context.Context, patientID uint) ([]dietplan.DietPlan, error)
	LabReports(ctx context.Context, patientID uint) ([]labreport.LabReport, error)
	Responses(ctx context.Context, patientID uint) ([]questionnaire.PatientResponse, error)
}

type records struct {
	db        *gorm.DB
	exercises exercise.Repository
	plans     dietplan.Repository
	answers   questionnaire.Repository
}

func NewRecords(db *gorm.DB) Records {
	return &records{
		db:        db,
		exercises: exercise.NewRepository(db),
		plans:     dietplan.NewRepository(db),
		answers:   questionnaire.NewRepository(db),
	}
}

func (r *records) Exercises(ctx context.Context, patientID uint) ([]exercise.Exercise, error) {
	return r.exercises.List(ctx, &patientID, exercise.Filter{})
}

func (r *records) DietPlans(ctx context.Context, patientID uint) ([]dietplan.DietPlan, error) {
	return r.plans.PlansForPatient(ctx, patientID)
}

func (r *records) LabReports(ctx context.Context, patientID uint) ([]labreport.LabReport, error) {
	var out []labreport.LabReport
	err := r.db.WithContext(ctx).Where("patient_id = ?", patientID).
		Order("date_of_report DESC, id DESC").Find(&out).Error
	return out, err
}

func (r *records) Responses(ctx context.Context, patientID uint) ([]questionnaire.PatientResponse, error) {
	return r.answers.ListResponses(ctx, &patientID)
}
