package healthstatus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/sharath018/health-management-backend/internal/access"
	"github.com/sharath018/health-management-backend/internal/apperr"
	"github.com/sharath018/health-management-backend/internal/auditlog"
	"github.com/sharath018/health-management-backend/internal/auth"
	"github.com/sharath018/health-management-backend/internal/events"
	"github.com/sharath018/health-management-backend/internal/reports"
	"github.com/sharath018/health-management-backend/utils"
)

const MsgNoStatus = "No health status recorded yet."

type UserStore interface {
	FindByID(ctx context.Context, id uint) (*auth.User, error)
}

type Service interface {
	Record(ctx context.Context, actor *access.Actor, in Input) (*HealthStatus, error)
	List(ctx context.Context, actor *access.Actor, patientID uint) ([]HealthStatus, error)
	Current(ctx context.Context, actor *access.Actor, patientID uint) (*HealthStatus, error)
	Summary(ctx context.Context, actor *access.Actor, patientID uint) (*Summary, error)
	DoctorDashboard(ctx context.Context, actor *access.Actor) ([]DashboardRow, error)
	ExportDashboard(ctx context.Context, actor *access.Actor) (*reports.File, error)
}

type service struct {
	repo      Repository
	users     UserStore
	exporter  reports.Exporter
	audit     auditlog.Logger
	publisher events.Publisher
	now       func() time.Time
}

func NewService(repo Repository, users UserStore, exporter reports.Exporter, audit auditlog.Logger, publisher events.Publisher) Service {
	return &service{repo: repo, users: users, exporter: exporter, audit: audit, publisher: publisher, now: time.Now}
}

// target resolves whose records the caller addresses. Patients always get
// themselves; staff must name an existing patient.
func (s *service) target(ctx context.Context, actor *access.Actor, patientID uint) (*auth.User, error) {
	if err := access.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	if actor.Role == access.RolePatient {
		patientID = actor.UserID
	}
	if patientID == 0 {
		return nil, apperr.Validation("patient_id is required")
	}
	u, err := s.users.FindByID(ctx, patientID)
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && u.Role != access.RolePatient) {
		return nil, apperr.NotFound("Patient not found.")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return u, nil
}

func validate(in Input) error {
	if in.SystolicBP == nil && in.DiastolicBP == nil && in.WeightKg == nil && in.HeightCm == nil &&
		in.Calories == nil && strings.TrimSpace(in.Status) == "" {
		return apperr.Validation("at least one measurement or a status is required")
	}
	if (in.SystolicBP == nil) != (in.DiastolicBP == nil) {
		return apperr.Validation("systolic_bp and diastolic_bp must be given together")
	}
	if in.SystolicBP != nil {
		sys, dia := *in.SystolicBP, *in.DiastolicBP
		if sys < 50 || sys > 260 || dia < 30 || dia > 160 {
			return apperr.Validation("blood pressure out of range")
		}
		if sys <= dia {
			return apperr.Validation("systolic_bp must be greater than diastolic_bp")
		}
	}
	if in.Calories != nil && *in.Calories < 0 {
		return apperr.Validation("calories cannot be negative")
	}
	return nil
}

func sameDay(a, b time.Time) bool {
	return utils.DateOf(a).Equal(utils.DateOf(b))
}

// Record appends a snapshot. Height carries forward from the previous
// snapshot so BMI can be derived from a weight-only reading.
func (s *service) Record(ctx context.Context, actor *access.Actor, in Input) (*HealthStatus, error) {
	patient, err := s.target(ctx, actor, in.UserID)
	if err != nil {
		return nil, err
	}
	if err := validate(in); err != nil {
		return nil, err
	}

	prev, err := s.repo.Latest(ctx, patient.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Internal(err)
	}
	now := s.now()

	h := &HealthStatus{
		UserID:       patient.ID,
		SystolicBP:   in.SystolicBP,
		DiastolicBP:  in.DiastolicBP,
		WeightKg:     in.WeightKg,
		HeightCm:     in.HeightCm,
		Calories:     in.Calories,
		Status:       strings.TrimSpace(in.Status),
		StreakDays:   1,
		RecordedByID: actor.UserID,
	}
	if prev != nil {
		if h.HeightCm == nil {
			h.HeightCm = prev.HeightCm
		}
		switch {
		case sameDay(prev.CreatedAt, now):
			h.StreakDays = prev.StreakDays
		case sameDay(prev.CreatedAt, now.AddDate(0, 0, -1)):
			h.StreakDays = prev.StreakDays + 1
		}
	}
	if h.HeightCm != nil && h.WeightKg != nil {
		bmi, err := utils.CalculateBMI(*h.HeightCm, *h.WeightKg)
		if err != nil {
			return nil, apperr.Validation("%s", err.Error())
		}
		h.BMI = &bmi
		h.BMICategory = utils.BMICategory(bmi)
	}
	if h.Status == "" && h.BMICategory != "" {
		h.Status = h.BMICategory
	}

	h.StampCreate(actor, now)
	err = s.repo.Create(ctx, h)
	s.audit.LogAction(ctx, actor, access.ResourceHealthStatus, &h.ID, "HEALTH_STATUS_RECORDED", map[string]interface{}{"user_id": h.UserID}, err)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	s.notify(ctx, actor, patient, h)
	return h, nil
}

// notify tells the patient about staff-recorded readings and the assigned
// doctor about self-recorded ones.
func (s *service) notify(ctx context.Context, actor *access.Actor, patient *auth.User, h *HealthStatus) {
	evt := events.Event{Type: events.HealthStatusRecorded, Title: "Health status updated"}
	switch {
	case actor.UserID != patient.ID:
		evt.UserID = patient.ID
		evt.Body = fmt.Sprintf("A new reading was recorded: %s.", h.Status)
	case patient.AssignedDoctorID != nil:
		evt.UserID = *patient.AssignedDoctorID
		evt.Body = fmt.Sprintf("%s recorded a new reading: %s.", patient.FullName(), h.Status)
	default:
		log.Debug().Uint("user_id", patient.ID).Msg("no recipient for health status event")
		return
	}
	events.Emit(ctx, s.publisher, evt)
}

func (s *service) List(ctx context.Context, actor *access.Actor, patientID uint) ([]HealthStatus, error) {
	if err := access.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	var scope *uint
	switch {
	case !access.SeesAllPatients(actor.Role):
		scope = &actor.UserID
	case patientID != 0:
		scope = &patientID
	}
	out, err := s.repo.List(ctx, scope)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if out == nil {
		out = []HealthStatus{}
	}
	return out, nil
}

func (s *service) Current(ctx context.Context, actor *access.Actor, patientID uint) (*HealthStatus, error) {
	patient, err := s.target(ctx, actor, patientID)
	if err != nil {
		return nil, err
	}
	h, err := s.repo.Latest(ctx, patient.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound(MsgNoStatus)
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return h, nil
}

func (s *service) Summary(ctx context.Context, actor *access.Actor, patientID uint) (*Summary, error) {
	patient, err := s.target(ctx, actor, patientID)
	if err != nil {
		return nil, err
	}
	counts, err := s.repo.Counts(ctx, patient.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	out := &Summary{PatientID: patient.ID, Counts: counts}
	latest, err := s.repo.Latest(ctx, patient.ID)
	switch {
	case err == nil:
		out.Latest = latest
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, apperr.Internal(err)
	}
	return out, nil
}

func (s *service) DoctorDashboard(ctx context.Context, actor *access.Actor) ([]DashboardRow, error) {
	if err := access.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	if !access.IsStaff(actor.Role) {
		return nil, apperr.Forbidden("Access denied")
	}
	rows, err := s.repo.Dashboard(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if rows == nil {
		rows = []DashboardRow{}
	}
	return rows, nil
}

func (s *service) ExportDashboard(ctx context.Context, actor *access.Actor) (*reports.File, error) {
	rows, err := s.DoctorDashboard(ctx, actor)
	if err != nil {
		return nil, err
	}
	table := reports.Table{
		Name:    "doctor_dashboard",
		Title:   "Patients",
		Headers: []string{"Patient ID", "Username", "Name", "Diet Plans", "Lab Reports", "Exercises", "Latest Status"},
	}
	for _, r := range rows {
		latest := ""
		if r.LatestStatus != nil {
			latest = *r.LatestStatus
		}
		table.Rows = append(table.Rows, []interface{}{r.PatientID, r.Username, r.FullName, r.DietPlans, r.LabReports, r.Exercises, latest})
	}
	f, err := s.exporter.Export(reports.FormatExcel, table)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return f, nil
}
