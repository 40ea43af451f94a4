package dietplan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/sharath018/health-management-backend/internal/access"
	"github.com/sharath018/health-management-backend/internal/apperr"
	"github.com/sharath018/health-management-backend/internal/auditlog"
	"github.com/sharath018/health-management-backend/internal/auth"
	"github.com/sharath018/health-management-backend/internal/events"
	"github.com/sharath018/health-management-backend/internal/reports"
	"github.com/sharath018/health-management-backend/utils"
)

var audioExtensions = []string{".mp3", ".wav", ".m4a", ".aac", ".ogg", ".webm"}

const (
	MsgPlanNotFound    = "Diet plan not found."
	MsgMealNotFound    = "Diet plan meal not found."
	MsgDateNotAssigned = "This date is not assigned to your diet plan."
	MsgNoPlanForDate   = "Diet plan not found for the selected date."
)

type UserStore interface {
	FindByID(ctx context.Context, id uint) (*auth.User, error)
}

// Audio is an optional skip-reason recording attached to a status update.
type Audio struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

type Service interface {
	ListPortions(ctx context.Context, search string) ([]MealPortion, error)
	CreatePortion(ctx context.Context, actor *access.Actor, in PortionInput) (*MealPortion, error)
	UpdatePortion(ctx context.Context, actor *access.Actor, id uint, in PortionInput) (*MealPortion, error)
	DeletePortion(ctx context.Context, actor *access.Actor, id uint) error

	Create(ctx context.Context, actor *access.Actor, in CreateInput) (*DietPlan, error)
	List(ctx context.Context, actor *access.Actor, f Filter) ([]DietPlan, error)
	Get(ctx context.Context, actor *access.Actor, id uint) (*DietPlan, error)
	Delete(ctx context.Context, actor *access.Actor, id uint) error
	PatientView(ctx context.Context, actor *access.Actor, patientID uint, day *utils.Date) ([]DayView, error)
	UpdateStatus(ctx context.Context, actor *access.Actor, in StatusInput, audio *Audio) (*DietPlanStatus, error)
	ExportPDF(ctx context.Context, actor *access.Actor, id uint) (*reports.File, error)
	SendDailyReminders(ctx context.Context) (int, error)
}

type service struct {
	repo      Repository
	users     UserStore
	files     utils.FileStore
	exporter  reports.Exporter
	audit     auditlog.Logger
	publisher events.Publisher
	now       func() time.Time
}

func NewService(repo Repository, users UserStore, files utils.FileStore, exporter reports.Exporter, audit auditlog.Logger, publisher events.Publisher) Service {
	return &service{
		repo:      repo,
		users:     users,
		files:     files,
		exporter:  exporter,
		audit:     audit,
		publisher: publisher,
		now:       time.Now,
	}
}

func sortDays(days []DayView) {
	sort.SliceStable(days, func(i, j int) bool { return days[i].Date < days[j].Date })
}

// =============================
// Meal portions
// =============================

func (s *service) ListPortions(ctx context.Context, search string) ([]MealPortion, error) {
	out, err := s.repo.ListPortions(ctx, strings.TrimSpace(search))
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if out == nil {
		out = []MealPortion{}
	}
	return out, nil
}

func (s *service) validatePortion(ctx context.Context, id uint, in *PortionInput) error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return apperr.Validation("name is required")
	}
	if in.Calories != nil && *in.Calories < 0 {
		return apperr.Validation("calories cannot be negative")
	}
	taken, err := s.repo.PortionNameTaken(ctx, in.Name, id)
	if err != nil {
		return apperr.Internal(err)
	}
	if taken {
		return apperr.Conflict(fmt.Sprintf("Meal portion %q already exists.", in.Name))
	}
	return nil
}

func (s *service) CreatePortion(ctx context.Context, actor *access.Actor, in PortionInput) (*MealPortion, error) {
	if err := s.validatePortion(ctx, 0, &in); err != nil {
		return nil, err
	}
	p := &MealPortion{Name: in.Name, Quantity: strings.TrimSpace(in.Quantity), Calories: in.Calories}
	p.StampCreate(actor, s.now())
	err := s.repo.CreatePortion(ctx, p)
	s.audit.LogAction(ctx, actor, access.ResourceMealPortion, &p.ID, "MEAL_PORTION_CREATED", map[string]interface{}{"name": p.Name}, err)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return p, nil
}

func (s *service) UpdatePortion(ctx context.Context, actor *access.Actor, id uint, in PortionInput) (*MealPortion, error) {
	p, err := s.repo.GetPortion(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("Meal portion not found.")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if err := s.validatePortion(ctx, id, &in); err != nil {
		return nil, err
	}
	p.Name, p.Quantity, p.Calories = in.Name, strings.TrimSpace(in.Quantity), in.Calories
	p.StampUpdate(actor, s.now())
	err = s.repo.UpdatePortion(ctx, p)
	s.audit.LogAction(ctx, actor, access.ResourceMealPortion, &p.ID, "MEAL_PORTION_UPDATED", nil, err)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return p, nil
}

func (s *service) DeletePortion(ctx context.Context, actor *access.Actor, id uint) error {
	err := s.repo.DeletePortion(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("Meal portion not found.")
	}
	s.audit.LogAction(ctx, actor, access.ResourceMealPortion, &id, "MEAL_PORTION_DELETED", nil, err)
	if err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// =============================
// Plans
// =============================

func parseClock(field string, v *string) (*string, error) {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil, nil
	}
	raw := strings.TrimSpace(*v)
	for _, layout := range []string{"15:04", "15:04:05", "3:04 PM", "3 PM"} {
		if t, err := time.Parse(layout, strings.ToUpper(raw)); err == nil {
			out := t.Format("15:04")
			return &out, nil
		}
	}
	return nil, apperr.Validation("%s must be HH:MM", field)
}

type resolvedMeal struct {
	mealType   MealType
	start, end *string
	portionIDs []uint
}

// validateCreate checks everything that does not need the database.
func validateCreate(in CreateInput) ([]utils.Date, []resolvedMeal, error) {
	if len(in.Dates) == 0 {
		return nil, nil, apperr.Validation("At least one date is required.")
	}
	if len(in.Meals) == 0 {
		return nil, nil, apperr.Validation("At least one meal is required.")
	}

	seen := make(map[string]bool, len(in.Dates))
	dates := make([]utils.Date, 0, len(in.Dates))
	for _, raw := range in.Dates {
		d, err := utils.ParseDate(strings.TrimSpace(raw))
		if err != nil {
			return nil, nil, apperr.Validation("Invalid date format. Use YYYY-MM-DD.")
		}
		if seen[d.String()] {
			return nil, nil, apperr.Validation("Duplicate date %s", d)
		}
		seen[d.String()] = true
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	var meals []resolvedMeal
	for _, mt := range MealOrder {
		if m, ok := in.Meals[mt]; ok {
			meals = append(meals, resolvedMeal{mealType: mt, portionIDs: m.MealPortions})
		}
	}
	for mt := range in.Meals {
		if !mt.Valid() {
			return nil, nil, apperr.Validation("Unknown meal type %q. Use breakfast, lunch, snacks or dinner.", mt)
		}
	}
	for i := range meals {
		mi := in.Meals[meals[i].mealType]
		if len(mi.MealPortions) == 0 {
			return nil, nil, apperr.Validation("%s needs at least one meal portion", meals[i].mealType)
		}
		var err error
		if meals[i].start, err = parseClock(string(meals[i].mealType)+" start_time", mi.StartTime); err != nil {
			return nil, nil, err
		}
		if meals[i].end, err = parseClock(string(meals[i].mealType)+" end_time", mi.EndTime); err != nil {
			return nil, nil, err
		}
		if meals[i].start != nil && meals[i].end != nil && *meals[i].start >= *meals[i].end {
			return nil, nil, apperr.Validation("%s start_time must be before end_time", meals[i].mealType)
		}
	}
	return dates, meals, nil
}

// Create stores the plan, its dates and every meal with its portions as one unit.
func (s *service) Create(ctx context.Context, actor *access.Actor, in CreateInput) (*DietPlan, error) {
	if err := access.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	dates, meals, err := validateCreate(in)
	if err != nil {
		return nil, err
	}
	patient, err := s.users.FindByID(ctx, in.PatientID)
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && patient.Role != access.RolePatient) {
		return nil, apperr.NotFound("Patient not found.")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}

	now := s.now()
	plan := &DietPlan{
		PatientID: patient.ID,
		DoctorID:  actor.UserID,
		Title:     strings.TrimSpace(in.Title),
		Notes:     strings.TrimSpace(in.Notes),
	}
	plan.StampCreate(actor, now)
	for _, d := range dates {
		plan.Dates = append(plan.Dates, DietPlanDate{Date: d})
	}

	err = s.repo.Transaction(ctx, func(tx Repository) error {
		taken, err := tx.ExistingDates(ctx, patient.ID, dates)
		if err != nil {
			return err
		}
		if len(taken) > 0 {
			return apperr.Conflict(fmt.Sprintf("Diet plan already exists for %s", taken[0]))
		}
		for _, m := range meals {
			portions, err := tx.PortionsByIDs(ctx, m.portionIDs)
			if err != nil {
				return err
			}
			if missing := missingIDs(m.portionIDs, portions); len(missing) > 0 {
				return apperr.Validation("Invalid meal portion IDs: %v", missing)
			}
			plan.Meals = append(plan.Meals, DietPlanMeal{
				MealType:  m.mealType,
				StartTime: m.start,
				EndTime:   m.end,
				Portions:  portions,
			})
		}
		return tx.CreatePlan(ctx, plan)
	})
	s.audit.LogAction(ctx, actor, access.ResourceDietPlan, &plan.ID, "DIET_PLAN_CREATED", map[string]interface{}{
		"patient_id": patient.ID,
		"dates":      len(dates),
		"meals":      len(meals),
	}, err)
	if err != nil {
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return nil, ae
		}
		return nil, apperr.Internal(err)
	}

	events.Emit(ctx, s.publisher, events.Event{
		Type:       events.DietPlanAssigned,
		UserID:     patient.ID,
		Title:      "New diet plan",
		Body:       fmt.Sprintf("A diet plan starting %s has been assigned to you.", dates[0]),
		OccurredAt: now,
	})
	return plan, nil
}

func missingIDs(want []uint, found []MealPortion) []uint {
	have := make(map[uint]bool, len(found))
	for _, p := range found {
		have[p.ID] = true
	}
	var missing []uint
	seen := make(map[uint]bool)
	for _, id := range want {
		if !have[id] && !seen[id] {
			missing = append(missing, id)
			seen[id] = true
		}
	}
	return missing
}

func (s *service) List(ctx context.Context, actor *access.Actor, f Filter) ([]DietPlan, error) {
	if err := access.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	out, err := s.repo.ListPlans(ctx, access.DietPlanScopeFor(actor.Role), actor.UserID, f)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if out == nil {
		out = []DietPlan{}
	}
	return out, nil
}

// canView mirrors the listing scope for single-plan access.
func canView(actor *access.Actor, p *DietPlan) bool {
	switch access.DietPlanScopeFor(actor.Role) {
	case access.DietPlanScopeAll:
		return true
	case access.DietPlanScopeOwnPatient:
		return p.PatientID == actor.UserID
	case access.DietPlanScopeCreatedByDoctor:
		return p.DoctorID == actor.UserID
	default:
		return false
	}
}

func (s *service) Get(ctx context.Context, actor *access.Actor, id uint) (*DietPlan, error) {
	if err := access.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	p, err := s.repo.GetPlan(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound(MsgPlanNotFound)
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !canView(actor, p) {
		return nil, apperr.Forbidden("You do not have access to this diet plan.")
	}
	return p, nil
}

func (s *service) Delete(ctx context.Context, actor *access.Actor, id uint) error {
	p, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	if actor.Role == access.RolePatient {
		return apperr.Forbidden("Patients cannot delete diet plans.")
	}
	err = s.repo.DeletePlan(ctx, p.ID)
	s.audit.LogAction(ctx, actor, access.ResourceDietPlan, &p.ID, "DIET_PLAN_DELETED", map[string]interface{}{"patient_id": p.PatientID}, err)
	if err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// PatientView returns the day-by-day layout for a patient. Patients always
// see their own plans; staff name the patient.
func (s *service) PatientView(ctx context.Context, actor *access.Actor, patientID uint, day *utils.Date) ([]DayView, error) {
	if err := access.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	if actor.Role == access.RolePatient {
		patientID = actor.UserID
	} else if patientID == 0 {
		return nil, apperr.Validation("patient_id is required")
	}

	plans, err := s.repo.PlansForPatient(ctx, patientID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if actor.Role == access.RoleDoctor {
		visible := plans[:0]
		for _, p := range plans {
			if canView(actor, &p) {
				visible = append(visible, p)
			}
		}
		plans = visible
	}
	statuses, err := s.repo.StatusesForPatient(ctx, patientID)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	days := DayViews(plans, statuses, day)
	if day != nil && len(days) == 0 {
		return nil, apperr.NotFound(MsgNoPlanForDate)
	}
	if days == nil {
		days = []DayView{}
	}
	return days, nil
}

// UpdateStatus records the patient's outcome for one meal on one assigned
// date. Audio is kept only for skipped meals; any other status clears it.
// A skipped resubmission without new audio keeps the earlier recording.
func (s *service) UpdateStatus(ctx context.Context, actor *access.Actor, in StatusInput, audio *Audio) (*DietPlanStatus, error) {
	if err := access.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	if !in.Status.Valid() {
		return nil, apperr.Validation("status must be one of pending, completed, skipped")
	}
	day, err := utils.ParseDate(strings.TrimSpace(in.Date))
	if err != nil {
		return nil, apperr.Validation("Invalid date format. Use YYYY-MM-DD.")
	}

	meal, err := s.repo.GetMeal(ctx, in.DietPlanMealID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound(MsgMealNotFound)
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	plan, err := s.repo.GetPlan(ctx, meal.DietPlanID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if plan.PatientID != actor.UserID {
		return nil, apperr.Forbidden("This diet plan is not assigned to you.")
	}
	assigned, err := s.repo.PlanHasDate(ctx, plan.ID, day)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !assigned {
		return nil, apperr.Forbidden(MsgDateNotAssigned)
	}

	st := &DietPlanStatus{
		PatientID:      actor.UserID,
		DietPlanMealID: meal.ID,
		Date:           day,
		Status:         in.Status,
	}
	keepAudio := false
	if in.Status == StatusSkipped {
		if audio != nil {
			if !utils.HasAllowedExtension(audio.Filename, audioExtensions) {
				return nil, apperr.Validation("Unsupported audio type. Allowed: %s", strings.Join(audioExtensions, ", "))
			}
			url, err := s.files.Save(ctx, "diet_status_audio", audio.Filename, audio.Body, audio.ContentType)
			if err != nil {
				return nil, apperr.Internal(err)
			}
			st.ReasonAudioURL = &url
		} else {
			keepAudio = true
		}
	}
	st.StampCreate(actor, s.now())

	err = s.repo.UpsertStatus(ctx, st, keepAudio)
	s.audit.LogAction(ctx, actor, access.ResourceDietPlanStatus, &meal.ID, "DIET_STATUS_RECORDED", map[string]interface{}{
		"date":   day.String(),
		"status": in.Status,
	}, err)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	saved, err := s.repo.GetStatus(ctx, actor.UserID, meal.ID, day)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return saved, nil
}

// ExportPDF renders one plan as a date by meal table.
func (s *service) ExportPDF(ctx context.Context, actor *access.Actor, id uint) (*reports.File, error) {
	p, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	patient, err := s.users.FindByID(ctx, p.PatientID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	title := fmt.Sprintf("Diet plan #%d for %s", p.ID, patient.FullName())
	if p.Title != "" {
		title = fmt.Sprintf("%s (%s)", p.Title, patient.FullName())
	}
	table := reports.Table{
		Name:    fmt.Sprintf("diet_plan_%d", p.ID),
		Title:   title,
		Headers: []string{"Date", "Meal", "Time", "Portions"},
		Widths:  []float64{28, 28, 40, 94},
	}
	for _, d := range DayViews([]DietPlan{*p}, nil, nil) {
		for _, m := range d.Meals {
			window := ""
			if m.TimeRange != nil {
				window = *m.TimeRange
			}
			table.Rows = append(table.Rows, []interface{}{d.Date, string(m.MealType), window, strings.Join(m.Portions, ", ")})
		}
	}
	f, err := s.exporter.Export(reports.FormatPDF, table)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return f, nil
}

// SendDailyReminders notifies every patient with a plan dated today.
func (s *service) SendDailyReminders(ctx context.Context) (int, error) {
	now := s.now()
	ids, err := s.repo.PatientsWithPlanOn(ctx, utils.DateOf(now))
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		events.Emit(ctx, s.publisher, events.Event{
			Type:       events.DietPlanReminder,
			UserID:     id,
			Title:      "Today's diet plan",
			Body:       "Your meals for today are ready. Remember to mark each one.",
			OccurredAt: now,
		})
	}
	return len(ids), nil
}
