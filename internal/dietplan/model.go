package dietplan

import (
	"fmt"
	"time"

	"github.com/sharath018/health-management-backend/internal/access"
	"github.com/sharath018/health-management-backend/utils"
)

type MealType string

const (
	MealBreakfast MealType = "breakfast"
	MealLunch     MealType = "lunch"
	MealSnacks    MealType = "snacks"
	MealDinner    MealType = "dinner"
)

// MealOrder is the order meals are shown in, whatever order they were created in.
var MealOrder = []MealType{MealBreakfast, MealLunch, MealSnacks, MealDinner}

func (m MealType) Valid() bool {
	for _, t := range MealOrder {
		if m == t {
			return true
		}
	}
	return false
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusSkipped   Status = "skipped"
)

func (s Status) Valid() bool {
	return s == StatusPending || s == StatusCompleted || s == StatusSkipped
}

// MealPortion is a reusable food item a doctor composes meals from.
type MealPortion struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Name     string `gorm:"size:150;uniqueIndex;not null" json:"name"`
	Quantity string `gorm:"size:100" json:"quantity,omitempty"`
	Calories *int   `json:"calories,omitempty"`

	access.AuditFields
}

type DietPlan struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	PatientID uint           `gorm:"not null;index" json:"patient_id"`
	DoctorID  uint           `gorm:"not null;index" json:"doctor_id"`
	Title     string         `gorm:"size:150" json:"title,omitempty"`
	Notes     string         `gorm:"type:text" json:"notes,omitempty"`
	Dates     []DietPlanDate `gorm:"constraint:OnDelete:CASCADE" json:"dates"`
	Meals     []DietPlanMeal `gorm:"constraint:OnDelete:CASCADE" json:"meals"`

	access.AuditFields
}

type DietPlanDate struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	DietPlanID uint       `gorm:"not null;uniqueIndex:idx_plan_date" json:"diet_plan_id"`
	Date       utils.Date `gorm:"not null;uniqueIndex:idx_plan_date;index" json:"date"`
}

type DietPlanMeal struct {
	ID         uint          `gorm:"primaryKey" json:"id"`
	DietPlanID uint          `gorm:"not null;index" json:"diet_plan_id"`
	MealType   MealType      `gorm:"size:20;not null" json:"meal_type"`
	StartTime  *string       `gorm:"size:5" json:"start_time,omitempty"`
	EndTime    *string       `gorm:"size:5" json:"end_time,omitempty"`
	Portions   []MealPortion `gorm:"many2many:diet_plan_meal_portions" json:"portions"`
}

// TimeRange renders the window as "7 AM – 9 AM". Nil when either end is missing.
func (m DietPlanMeal) TimeRange() *string {
	if m.StartTime == nil || m.EndTime == nil {
		return nil
	}
	start, err1 := time.Parse("15:04", *m.StartTime)
	end, err2 := time.Parse("15:04", *m.EndTime)
	if err1 != nil || err2 != nil {
		s := fmt.Sprintf("%s – %s", *m.StartTime, *m.EndTime)
		return &s
	}
	s := fmt.Sprintf("%s – %s", clock(start), clock(end))
	return &s
}

func clock(t time.Time) string {
	if t.Minute() == 0 {
		return t.Format("3 PM")
	}
	return t.Format("3:04 PM")
}

// DietPlanStatus is unique per (patient, meal, date); writes are upserts.
type DietPlanStatus struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	PatientID      uint       `gorm:"not null;uniqueIndex:idx_status_patient_meal_date" json:"patient_id"`
	DietPlanMealID uint       `gorm:"not null;uniqueIndex:idx_status_patient_meal_date" json:"diet_plan"`
	Date           utils.Date `gorm:"not null;uniqueIndex:idx_status_patient_meal_date" json:"date"`
	Status         Status     `gorm:"size:20;not null;default:pending" json:"status"`
	ReasonAudioURL *string    `gorm:"size:512" json:"reason_audio,omitempty"`

	access.AuditFields
}

// ===============================
// Inputs
// ===============================

type PortionInput struct {
	Name     string `json:"name" binding:"required"`
	Quantity string `json:"quantity"`
	Calories *int   `json:"calories"`
}

type MealInput struct {
	MealPortions []uint  `json:"meal_portions"`
	StartTime    *string `json:"start_time"`
	EndTime      *string `json:"end_time"`
}

type CreateInput struct {
	PatientID uint                   `json:"patient" binding:"required"`
	Title     string                 `json:"title"`
	Notes     string                 `json:"notes"`
	Meals     map[MealType]MealInput `json:"meals"`
	Dates     []string               `json:"dates"`
}

type StatusInput struct {
	DietPlanMealID uint   `form:"diet_plan" json:"diet_plan" binding:"required"`
	Status         Status `form:"status" json:"status" binding:"required"`
	Date           string `form:"date" json:"date" binding:"required"`
}

type Filter struct {
	PatientName string
	FromDate    *time.Time
	ToDate      *time.Time
}

// ===============================
// Views
// ===============================

type MealView struct {
	ID        uint     `json:"id"`
	MealType  MealType `json:"meal_type"`
	TimeRange *string  `json:"time_range"`
	Portions  []string `json:"portions"`
	Status    Status   `json:"status"`
}

type DayView struct {
	Date  string     `json:"date"`
	Meals []MealView `json:"meals"`
}

type statusKey struct {
	mealID uint
	date   string
}

// DayViews lays out each assigned date with its meals in MealOrder.
// statuses may be nil, in which case every meal reads as pending.
func DayViews(plans []DietPlan, statuses []DietPlanStatus, only *utils.Date) []DayView {
	byKey := make(map[statusKey]Status, len(statuses))
	for _, st := range statuses {
		byKey[statusKey{st.DietPlanMealID, st.Date.String()}] = st.Status
	}

	var out []DayView
	for _, p := range plans {
		byType := make(map[MealType]DietPlanMeal, len(p.Meals))
		for _, m := range p.Meals {
			byType[m.MealType] = m
		}
		for _, d := range p.Dates {
			if only != nil && !d.Date.Equal(*only) {
				continue
			}
			day := DayView{Date: d.Date.String(), Meals: []MealView{}}
			for _, mt := range MealOrder {
				m, ok := byType[mt]
				if !ok {
					continue
				}
				st, ok := byKey[statusKey{m.ID, day.Date}]
				if !ok {
					st = StatusPending
				}
				names := make([]string, 0, len(m.Portions))
				for _, portion := range m.Portions {
					names = append(names, portion.Name)
				}
				day.Meals = append(day.Meals, MealView{
					ID:        m.ID,
					MealType:  m.MealType,
					TimeRange: m.TimeRange(),
					Portions:  names,
					Status:    st,
				})
			}
			out = append(out, day)
		}
	}
	sortDays(out)
	return out
}
