package dietplan

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sharath018/health-management-backend/internal/access"
	"github.com/sharath018/health-management-backend/utils"
)

type Repository interface {
	CreatePortion(ctx context.Context, p *MealPortion) error
	UpdatePortion(ctx context.Context, p *MealPortion) error
	DeletePortion(ctx context.Context, id uint) error
	GetPortion(ctx context.Context, id uint) (*MealPortion, error)
	ListPortions(ctx context.Context, search string) ([]MealPortion, error)
	PortionsByIDs(ctx context.Context, ids []uint) ([]MealPortion, error)
	PortionNameTaken(ctx context.Context, name string, exceptID uint) (bool, error)

	CreatePlan(ctx context.Context, plan *DietPlan) error
	GetPlan(ctx context.Context, id uint) (*DietPlan, error)
	ListPlans(ctx context.Context, scope access.DietPlanScope, actorID uint, f Filter) ([]DietPlan, error)
	PlansForPatient(ctx context.Context, patientID uint) ([]DietPlan, error)
	DeletePlan(ctx context.Context, id uint) error
	// ExistingDates returns which of dates already carry a plan for the patient.
	ExistingDates(ctx context.Context, patientID uint, dates []utils.Date) ([]utils.Date, error)
	PatientsWithPlanOn(ctx context.Context, day utils.Date) ([]uint, error)

	GetMeal(ctx context.Context, id uint) (*DietPlanMeal, error)
	PlanHasDate(ctx context.Context, planID uint, day utils.Date) (bool, error)
	UpsertStatus(ctx context.Context, st *DietPlanStatus, keepAudio bool) error
	GetStatus(ctx context.Context, patientID, mealID uint, day utils.Date) (*DietPlanStatus, error)
	StatusesForPatient(ctx context.Context, patientID uint) ([]DietPlanStatus, error)

	Transaction(ctx context.Context, fn func(tx Repository) error) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Transaction(ctx context.Context, fn func(tx Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&repository{db: tx})
	})
}

// =============================
// Meal portions
// =============================

func (r *repository) CreatePortion(ctx context.Context, p *MealPortion) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *repository) UpdatePortion(ctx context.Context, p *MealPortion) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *repository) DeletePortion(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM diet_plan_meal_portions WHERE meal_portion_id = ?", id).Error; err != nil {
			return err
		}
		res := tx.Delete(&MealPortion{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *repository) GetPortion(ctx context.Context, id uint) (*MealPortion, error) {
	var p MealPortion
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repository) ListPortions(ctx context.Context, search string) ([]MealPortion, error) {
	query := r.db.WithContext(ctx).Model(&MealPortion{})
	if search != "" {
		query = query.Where("name ILIKE ?", "%"+search+"%")
	}
	var out []MealPortion
	err := query.Order("name ASC").Find(&out).Error
	return out, err
}

func (r *repository) PortionsByIDs(ctx context.Context, ids []uint) ([]MealPortion, error) {
	var out []MealPortion
	if len(ids) == 0 {
		return out, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&out).Error
	return out, err
}

func (r *repository) PortionNameTaken(ctx context.Context, name string, exceptID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&MealPortion{}).
		Where("LOWER(name) = LOWER(?) AND id <> ?", name, exceptID).
		Count(&n).Error
	return n > 0, err
}

// =============================
// Plans
// =============================

// CreatePlan inserts the plan with its dates and meals and links the portions.
func (r *repository) CreatePlan(ctx context.Context, plan *DietPlan) error {
	return r.db.WithContext(ctx).Create(plan).Error
}

func preloadPlan(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Dates", func(db *gorm.DB) *gorm.DB { return db.Order("date ASC") }).
		Preload("Meals.Portions")
}

func (r *repository) GetPlan(ctx context.Context, id uint) (*DietPlan, error) {
	var p DietPlan
	if err := preloadPlan(r.db.WithContext(ctx)).First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repository) ListPlans(ctx context.Context, scope access.DietPlanScope, actorID uint, f Filter) ([]DietPlan, error) {
	query := preloadPlan(r.db.WithContext(ctx)).Model(&DietPlan{})

	switch scope {
	case access.DietPlanScopeOwnPatient:
		query = query.Where("diet_plans.patient_id = ?", actorID)
	case access.DietPlanScopeCreatedByDoctor:
		query = query.Where("diet_plans.doctor_id = ?", actorID)
	case access.DietPlanScopeAll:
	default:
		return []DietPlan{}, nil
	}

	if f.PatientName != "" {
		like := "%" + f.PatientName + "%"
		query = query.Joins("JOIN users ON users.id = diet_plans.patient_id").
			Where("users.first_name ILIKE ? OR users.last_name ILIKE ? OR users.username ILIKE ?", like, like, like)
	}
	if f.FromDate != nil || f.ToDate != nil {
		sub := r.db.Model(&DietPlanDate{}).Select("diet_plan_id")
		if f.FromDate != nil {
			sub = sub.Where("date >= ?", utils.DateOf(*f.FromDate))
		}
		if f.ToDate != nil {
			sub = sub.Where("date <= ?", utils.DateOf(*f.ToDate))
		}
		query = query.Where("diet_plans.id IN (?)", sub)
	}

	var out []DietPlan
	err := query.Order("diet_plans.id DESC").Find(&out).Error
	return out, err
}

func (r *repository) PlansForPatient(ctx context.Context, patientID uint) ([]DietPlan, error) {
	var out []DietPlan
	err := preloadPlan(r.db.WithContext(ctx)).Where("patient_id = ?", patientID).Order("id ASC").Find(&out).Error
	return out, err
}

func (r *repository) DeletePlan(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		meals := tx.Model(&DietPlanMeal{}).Select("id").Where("diet_plan_id = ?", id)
		if err := tx.Where("diet_plan_meal_id IN (?)", meals).Delete(&DietPlanStatus{}).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM diet_plan_meal_portions WHERE diet_plan_meal_id IN (?)", meals).Error; err != nil {
			return err
		}
		if err := tx.Where("diet_plan_id = ?", id).Delete(&DietPlanMeal{}).Error; err != nil {
			return err
		}
		if err := tx.Where("diet_plan_id = ?", id).Delete(&DietPlanDate{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&DietPlan{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *repository) ExistingDates(ctx context.Context, patientID uint, dates []utils.Date) ([]utils.Date, error) {
	var out []utils.Date
	if len(dates) == 0 {
		return out, nil
	}
	err := r.db.WithContext(ctx).Model(&DietPlanDate{}).
		Joins("JOIN diet_plans ON diet_plans.id = diet_plan_dates.diet_plan_id").
		Where("diet_plans.patient_id = ? AND diet_plan_dates.date IN ?", patientID, dates).
		Order("diet_plan_dates.date ASC").
		Pluck("diet_plan_dates.date", &out).Error
	return out, err
}

func (r *repository) PatientsWithPlanOn(ctx context.Context, day utils.Date) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&DietPlan{}).
		Distinct("diet_plans.patient_id").
		Joins("JOIN diet_plan_dates ON diet_plan_dates.diet_plan_id = diet_plans.id").
		Where("diet_plan_dates.date = ?", day).
		Pluck("diet_plans.patient_id", &ids).Error
	return ids, err
}

// =============================
// Status
// =============================

func (r *repository) GetMeal(ctx context.Context, id uint) (*DietPlanMeal, error) {
	var m DietPlanMeal
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *repository) PlanHasDate(ctx context.Context, planID uint, day utils.Date) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&DietPlanDate{}).
		Where("diet_plan_id = ? AND date = ?", planID, day).
		Count(&n).Error
	return n > 0, err
}

// UpsertStatus writes on the (patient, meal, date) unique index so concurrent
// submissions converge on one row. keepAudio leaves a stored recording untouched.
func (r *repository) UpsertStatus(ctx context.Context, st *DietPlanStatus, keepAudio bool) error {
	columns := []string{"status", "updated_at", "updated_by_id"}
	if !keepAudio {
		columns = append(columns, "reason_audio_url")
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "patient_id"}, {Name: "diet_plan_meal_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(st).Error
}

func (r *repository) GetStatus(ctx context.Context, patientID, mealID uint, day utils.Date) (*DietPlanStatus, error) {
	var st DietPlanStatus
	err := r.db.WithContext(ctx).
		Where("patient_id = ? AND diet_plan_meal_id = ? AND date = ?", patientID, mealID, day).
		First(&st).Error
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (r *repository) StatusesForPatient(ctx context.Context, patientID uint) ([]DietPlanStatus, error) {
	var out []DietPlanStatus
	err := r.db.WithContext(ctx).Where("patient_id = ?", patientID).Find(&out).Error
	return out, err
}
