package careteam

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/sharath018/health-management-backend/internal/access"
	"github.com/sharath018/health-management-backend/internal/apperr"
	"github.com/sharath018/health-management-backend/internal/auditlog"
	"github.com/sharath018/health-management-backend/internal/auth"
	"github.com/sharath018/health-management-backend/internal/dietplan"
	"github.com/sharath018/health-management-backend/internal/exercise"
	"github.com/sharath018/health-management-backend/internal/labreport"
	"github.com/sharath018/health-management-backend/internal/questionnaire"
	"github.com/sharath018/health-management-backend/internal/userprofile"
)

const MsgAlreadyAssigned = "This patient is already assigned to a doctor."

type UserStore interface {
	FindByID(ctx context.Context, id uint) (*auth.User, error)
	Update(ctx context.Context, user *auth.User, columns ...string) error
	List(ctx context.Context, filter auth.UserFilter) ([]auth.User, error)
}

type ProfileReader interface {
	GetForUser(ctx context.Context, userID uint) (*userprofile.ProfileResponse, error)
}

type PatientRow struct {
	ID               uint   `json:"id"`
	Username         string `json:"username"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	PhoneNumber      string `json:"phone_number"`
	IsActive         bool   `json:"is_active"`
	AssignedDoctorID *uint  `json:"assigned_doctor_id"`
	Assigned         bool   `json:"is_assigned"`
	AssignedToMe     bool   `json:"assigned_to_me"`
}

type PatientDetail struct {
	Patient    *userprofile.ProfileResponse    `json:"patient_details"`
	Exercises  []exercise.Exercise             `json:"assigned_exercises"`
	DietPlans  []dietplan.DietPlan             `json:"assigned_diet_plans"`
	LabReports []labreport.LabReport           `json:"lab_reports"`
	Responses  []questionnaire.PatientResponse `json:"questions"`
}

type Service interface {
	ListPatients(ctx context.Context, actor *access.Actor) ([]PatientRow, error)
	PatientDetail(ctx context.Context, actor *access.Actor, patientID uint) (*PatientDetail, error)
	AssignToSelf(ctx context.Context, actor *access.Actor, patientID uint) (string, error)
}

type service struct {
	users    UserStore
	profiles ProfileReader
	records  Records
	audit    auditlog.Logger
	now      func() time.Time
}

func NewService(users UserStore, profiles ProfileReader, records Records, audit auditlog.Logger) Service {
	return &service{users: users, profiles: profiles, records: records, audit: audit, now: time.Now}
}

func requireDoctor(actor *access.Actor) error {
	if err := access.RequireAuthenticated(actor); err != nil {
		return err
	}
	if actor.Role != access.RoleDoctor {
		return apperr.Forbidden("Unauthorized access")
	}
	return nil
}

func (s *service) patient(ctx context.Context, id uint) (*auth.User, error) {
	u, err := s.users.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && u.Role != access.RolePatient) {
		return nil, apperr.NotFound("Patient not found.")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return u, nil
}

func (s *service) ListPatients(ctx context.Context, actor *access.Actor) ([]PatientRow, error) {
	if err := requireDoctor(actor); err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx, auth.UserFilter{Role: access.RolePatient})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	out := make([]PatientRow, 0, len(users))
	for _, u := range users {
		out = append(out, PatientRow{
			ID:               u.ID,
			Username:         u.Username,
			FirstName:        u.FirstName,
			LastName:         u.LastName,
			PhoneNumber:      u.Phone(),
			IsActive:         u.IsActive,
			AssignedDoctorID: u.AssignedDoctorID,
			Assigned:         u.AssignedDoctorID != nil,
			AssignedToMe:     u.AssignedDoctorID != nil && *u.AssignedDoctorID == actor.UserID,
		})
	}
	return out, nil
}

func (s *service) PatientDetail(ctx context.Context, actor *access.Actor, patientID uint) (*PatientDetail, error) {
	if err := requireDoctor(actor); err != nil {
		return nil, err
	}
	p, err := s.patient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	profile, err := s.profiles.GetForUser(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	d := &PatientDetail{Patient: profile}
	if d.Exercises, err = s.records.Exercises(ctx, p.ID); err != nil {
		return nil, apperr.Internal(err)
	}
	if d.DietPlans, err = s.records.DietPlans(ctx, p.ID); err != nil {
		return nil, apperr.Internal(err)
	}
	if d.LabReports, err = s.records.LabReports(ctx, p.ID); err != nil {
		return nil, apperr.Internal(err)
	}
	if d.Responses, err = s.records.Responses(ctx, p.ID); err != nil {
		return nil, apperr.Internal(err)
	}
	if d.Exercises == nil {
		d.Exercises = []exercise.Exercise{}
	}
	if d.DietPlans == nil {
		d.DietPlans = []dietplan.DietPlan{}
	}
	if d.LabReports == nil {
		d.LabReports = []labreport.LabReport{}
	}
	if d.Responses == nil {
		d.Responses = []questionnaire.PatientResponse{}
	}
	return d, nil
}

// AssignToSelf is idempotent for the doctor already assigned.
func (s *service) AssignToSelf(ctx context.Context, actor *access.Actor, patientID uint) (string, error) {
	if err := requireDoctor(actor); err != nil {
		return "", err
	}
	p, err := s.patient(ctx, patientID)
	if err != nil {
		return "", err
	}
	if p.AssignedDoctorID != nil && *p.AssignedDoctorID != actor.UserID {
		return "", apperr.Conflict(MsgAlreadyAssigned)
	}
	if p.AssignedDoctorID == nil {
		p.AssignedDoctorID = actor.IDPtr()
		p.StampUpdate(actor, s.now())
		err = s.users.Update(ctx, p, "assigned_doctor_id", "updated_at", "updated_by_id")
		s.audit.LogAction(ctx, actor, access.ResourcePatient, &p.ID, "PATIENT_ASSIGNED", map[string]interface{}{"doctor_id": actor.UserID}, err)
		if err != nil {
			return "", apperr.Internal(err)
		}
	}
	return fmt.Sprintf("Patient %s has been assigned to you.", p.FullName()), nil
}
