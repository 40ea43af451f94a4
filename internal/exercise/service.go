package exercise

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/sharath018/health-management-backend/internal/access"
	"github.com/sharath018/health-management-backend/internal/apperr"
	"github.com/sharath018/health-management-backend/internal/auditlog"
	"github.com/sharath018/health-management-backend/internal/auth"
	"github.com/sharath018/health-management-backend/internal/events"
	"github.com/sharath018/health-management-backend/utils"
)

var (
	mediaExtensions = []string{".mp4", ".mov", ".webm", ".jpg", ".jpeg", ".png", ".gif"}
	audioExtensions = []string{".mp3", ".wav", ".m4a", ".aac", ".ogg", ".webm"}
)

const MsgExerciseNotFound = "Exercise not found."

type UserStore interface {
	FindByID(ctx context.Context, id uint) (*auth.User, error)
}

type Service interface {
	List(ctx context.Context, actor *access.Actor, f Filter) ([]Exercise, error)
	Create(ctx context.Context, actor *access.Actor, in Input, media *Upload) (*Exercise, error)
	Get(ctx context.Context, actor *access.Actor, id uint) (*Exercise, error)
	Replace(ctx context.Context, actor *access.Actor, id uint, in Input) (*Exercise, error)
	Patch(ctx context.Context, actor *access.Actor, id uint, in Patch) (*Exercise, error)
	Delete(ctx context.Context, actor *access.Actor, id uint) error
	UpdateStatus(ctx context.Context, actor *access.Actor, exerciseID uint, status Status, audio *Upload) (*ExerciseStatus, error)
	AddDoctorResponse(ctx context.Context, actor *access.Actor, exerciseID uint, text string) (*DoctorExerciseResponse, error)
	ListDoctorResponses(ctx context.Context, actor *access.Actor, exerciseID uint) ([]DoctorExerciseResponse, error)
}

type service struct {
	repo      Repository
	users     UserStore
	files     utils.FileStore
	audit     auditlog.Logger
	publisher events.Publisher
	now       func() time.Time
}

func NewService(repo Repository, users UserStore, files utils.FileStore, audit auditlog.Logger, publisher events.Publisher) Service {
	return &service{repo: repo, users: users, files: files, audit: audit, publisher: publisher, now: time.Now}
}

func validate(in Input) (utils.Date, error) {
	if strings.TrimSpace(in.Name) == "" {
		return utils.Date{}, apperr.Validation("exercise_name is required")
	}
	if !in.Type.Valid() {
		return utils.Date{}, apperr.Validation("exercise_type must be one of strength, cardio, flexibility, balance")
	}
	if !in.Intensity.Valid() {
		return utils.Date{}, apperr.Validation("intensity must be one of low, medium, high")
	}
	if in.DurationMinutes <= 0 {
		return utils.Date{}, apperr.Validation("duration_minutes must be positive")
	}
	if in.CaloriesBurned < 0 {
		return utils.Date{}, apperr.Validation("calories_burned cannot be negative")
	}
	d, err := utils.ParseDate(strings.TrimSpace(in.Date))
	if err != nil {
		return utils.Date{}, apperr.Validation("Invalid date format. Use YYYY-MM-DD.")
	}
	return d, nil
}

func (s *service) List(ctx context.Context, actor *access.Actor, f Filter) ([]Exercise, error) {
	if err := access.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	var scope *uint
	if !access.SeesAllPatients(actor.Role) {
		scope = &actor.UserID
	}
	out, err := s.repo.List(ctx, scope, f)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if out == nil {
		out = []Exercise{}
	}
	return out, nil
}

// Create assigns an exercise. Staff name the patient; a patient logs for self.
func (s *service) Create(ctx context.Context, actor *access.Actor, in Input, media *Upload) (*Exercise, error) {
	if err := access.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	if actor.Role == access.RolePatient {
		in.UserID = actor.UserID
	}
	day, err := validate(in)
	if err != nil {
		return nil, err
	}
	if in.UserID == 0 {
		return nil, apperr.Validation("user is required")
	}
	patient, err := s.users.FindByID(ctx, in.UserID)
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && patient.Role != access.RolePatient) {
		return nil, apperr.NotFound("Patient not found.")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}

	e := &Exercise{
		UserID:          patient.ID,
		Name:            strings.TrimSpace(in.Name),
		Type:            in.Type,
		Intensity:       in.Intensity,
		DurationMinutes: in.DurationMinutes,
		CaloriesBurned:  in.CaloriesBurned,
		Date:            day,
	}
	if media != nil {
		if !utils.HasAllowedExtension(media.Filename, mediaExtensions) {
			return nil, apperr.Validation("Unsupported media type. Allowed: %s", strings.Join(mediaExtensions, ", "))
		}
		url, err := s.files.Save(ctx, "exercise_media", media.Filename, media.Body, media.ContentType)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		e.MediaURL = &url
	}
	e.StampCreate(actor, s.now())
	err = s.repo.Create(ctx, e)
	s.audit.LogAction(ctx, actor, access.ResourceExercise, &e.ID, "EXERCISE_CREATED", map[string]interface{}{"user_id": e.UserID}, err)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	if actor.UserID != patient.ID {
		events.Emit(ctx, s.publisher, events.Event{
			Type:   events.ExerciseAssigned,
			UserID: patient.ID,
			Title:  "New exercise",
			Body:   fmt.Sprintf("%s (%d min) was added for %s.", e.Name, e.DurationMinutes, e.Date),
		})
	}
	return e, nil
}

func (s *service) load(ctx context.Context, id uint) (*Exercise, error) {
	e, err := s.repo.Get(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound(MsgExerciseNotFound)
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return e, nil
}

func (s *service) Get(ctx context.Context, actor *access.Actor, id uint) (*Exercise, error) {
	if err := access.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	e, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !access.SeesAllPatients(actor.Role) && e.UserID != actor.UserID {
		return nil, apperr.Forbidden("You do not have access to this exercise.")
	}
	return e, nil
}

func (s *service) Replace(ctx context.Context, actor *access.Actor, id uint, in Input) (*Exercise, error) {
	e, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	day, err := validate(in)
	if err != nil {
		return nil, err
	}
	e.Name, e.Type, e.Intensity = strings.TrimSpace(in.Name), in.Type, in.Intensity
	e.DurationMinutes, e.CaloriesBurned, e.Date = in.DurationMinutes, in.CaloriesBurned, day
	return s.save(ctx, actor, e, "EXERCISE_REPLACED")
}

func (s *service) Patch(ctx context.Context, actor *access.Actor, id uint, p Patch) (*Exercise, error) {
	e, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	in := Input{
		Name:            e.Name,
		Type:            e.Type,
		Intensity:       e.Intensity,
		DurationMinutes: e.DurationMinutes,
		CaloriesBurned:  e.CaloriesBurned,
		Date:            e.Date.String(),
	}
	if p.Name != nil {
		in.Name = *p.Name
	}
	if p.Type != nil {
		in.Type = *p.Type
	}
	if p.Intensity != nil {
		in.Intensity = *p.Intensity
	}
	if p.DurationMinutes != nil {
		in.DurationMinutes = *p.DurationMinutes
	}
	if p.CaloriesBurned != nil {
		in.CaloriesBurned = *p.CaloriesBurned
	}
	if p.Date != nil {
		in.Date = *p.Date
	}
	day, err := validate(in)
	if err != nil {
		return nil, err
	}
	e.Name, e.Type, e.Intensity = strings.TrimSpace(in.Name), in.Type, in.Intensity
	e.DurationMinutes, e.CaloriesBurned, e.Date = in.DurationMinutes, in.CaloriesBurned, day
	return s.save(ctx, actor, e, "EXERCISE_UPDATED")
}

func (s *service) save(ctx context.Context, actor *access.Actor, e *Exercise, action string) (*Exercise, error) {
	e.StampUpdate(actor, s.now())
	err := s.repo.Save(ctx, e)
	s.audit.LogAction(ctx, actor, access.ResourceExercise, &e.ID, action, nil, err)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return e, nil
}

func (s *service) Delete(ctx context.Context, actor *access.Actor, id uint) error {
	e, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	err = s.repo.Delete(ctx, e.ID)
	s.audit.LogAction(ctx, actor, access.ResourceExercise, &e.ID, "EXERCISE_DELETED", nil, err)
	if err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// UpdateStatus follows the diet status rules: audio only for skipped, a
// skipped resubmission without audio keeps the old recording, and any other
// status clears it.
func (s *service) UpdateStatus(ctx context.Context, actor *access.Actor, exerciseID uint, status Status, audio *Upload) (*ExerciseStatus, error) {
	if err := access.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, apperr.Validation("status must be one of pending, completed, skipped")
	}
	e, err := s.load(ctx, exerciseID)
	if err != nil {
		return nil, err
	}
	if e.UserID != actor.UserID {
		return nil, apperr.Forbidden("This exercise is not assigned to you.")
	}

	st := &ExerciseStatus{UserID: actor.UserID, ExerciseID: e.ID, Status: status}
	keepAudio := false
	if status == StatusSkipped {
		if audio != nil {
			if !utils.HasAllowedExtension(audio.Filename, audioExtensions) {
				return nil, apperr.Validation("Unsupported audio type. Allowed: %s", strings.Join(audioExtensions, ", "))
			}
			url, err := s.files.Save(ctx, "exercise_status_audio", audio.Filename, audio.Body, audio.ContentType)
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
	s.audit.LogAction(ctx, actor, access.ResourceExerciseStatus, &e.ID, "EXERCISE_STATUS_RECORDED", map[string]interface{}{"status": status}, err)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	saved, err := s.repo.GetStatus(ctx, actor.UserID, e.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return saved, nil
}

func (s *service) AddDoctorResponse(ctx context.Context, actor *access.Actor, exerciseID uint, text string) (*DoctorExerciseResponse, error) {
	if err := access.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	if actor.Role != access.RoleDoctor {
		return nil, apperr.Forbidden("Only doctors can review exercises.")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.Validation("response is required")
	}
	e, err := s.load(ctx, exerciseID)
	if err != nil {
		return nil, err
	}
	resp := &DoctorExerciseResponse{ExerciseID: e.ID, DoctorID: actor.UserID, PatientID: e.UserID, Response: text}
	resp.StampCreate(actor, s.now())
	err = s.repo.CreateResponse(ctx, resp)
	s.audit.LogAction(ctx, actor, access.ResourceDoctorExerciseResponse, &resp.ID, "EXERCISE_REVIEWED", map[string]interface{}{"exercise_id": e.ID}, err)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return resp, nil
}

func (s *service) ListDoctorResponses(ctx context.Context, actor *access.Actor, exerciseID uint) ([]DoctorExerciseResponse, error) {
	e, err := s.Get(ctx, actor, exerciseID)
	if err != nil {
		return nil, err
	}
	out, err := s.repo.ListResponses(ctx, e.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if out == nil {
		out = []DoctorExerciseResponse{}
	}
	return out, nil
}
