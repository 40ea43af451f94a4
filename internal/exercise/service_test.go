package exercise

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/sharath018/health-management-backend/internal/access"
	"github.com/sharath018/health-management-backend/internal/apperr"
	"github.com/sharath018/health-management-backend/internal/auth"
	"github.com/sharath018/health-management-backend/internal/events"
)

type memRepo struct {
	exercises map[uint]*Exercise
	statuses  []ExerciseStatus
	responses []DoctorExerciseResponse
	users     map[uint]*auth.User
	nextID    uint
}

func (m *memRepo) id() uint { m.nextID++; return m.nextID }

func (m *memRepo) Create(_ context.Context, e *Exercise) error {
	e.ID = m.id()
	cp := *e
	m.exercises[e.ID] = &cp
	return nil
}

func (m *memRepo) Save(_ context.Context, e *Exercise) error {
	cp := *e
	m.exercises[e.ID] = &cp
	return nil
}

func (m *memRepo) Delete(_ context.Context, id uint) error {
	delete(m.exercises, id)
	return nil
}

func (m *memRepo) Get(_ context.Context, id uint) (*Exercise, error) {
	e, ok := m.exercises[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *memRepo) List(_ context.Context, userID *uint, f Filter) ([]Exercise, error) {
	var out []Exercise
	for _, e := range m.exercises {
		if userID != nil && e.UserID != *userID {
			continue
		}
		if f.ExerciseType != "" && e.Type != f.ExerciseType {
			continue
		}
		out = append(out, *e)
	}
	return out, nil
}

func (m *memRepo) UpsertStatus(_ context.Context, st *ExerciseStatus, keepAudio bool) error {
	for i := range m.statuses {
		if m.statuses[i].UserID == st.UserID && m.statuses[i].ExerciseID == st.ExerciseID {
			m.statuses[i].Status = st.Status
			if !keepAudio {
				m.statuses[i].ReasonAudioURL = st.ReasonAudioURL
			}
			return nil
		}
	}
	st.ID = m.id()
	m.statuses = append(m.statuses, *st)
	return nil
}

func (m *memRepo) GetStatus(_ context.Context, userID, exerciseID uint) (*ExerciseStatus, error) {
	for _, st := range m.statuses {
		if st.UserID == userID && st.ExerciseID == exerciseID {
			cp := st
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memRepo) CreateResponse(_ context.Context, r *DoctorExerciseResponse) error {
	r.ID = m.id()
	m.responses = append(m.responses, *r)
	return nil
}

func (m *memRepo) ListResponses(_ context.Context, exerciseID uint) ([]DoctorExerciseResponse, error) {
	var out []DoctorExerciseResponse
	for _, r := range m.responses {
		if r.ExerciseID == exerciseID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRepo) FindByID(_ context.Context, id uint) (*auth.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return u, nil
}

type memFiles struct{ n int }

func (f *memFiles) Save(_ context.Context, folder, filename string, _ io.Reader, _ string) (string, error) {
	f.n++
	return "/uploads/" + folder + "/" + filename, nil
}

type nopAudit struct{}

func (nopAudit) LogAction(context.Context, *access.Actor, access.Resource, *uint, string, map[string]interface{}, error) {
}

type recordingPublisher struct{ events []events.Event }

func (p *recordingPublisher) Publish(_ context.Context, evt events.Event) error {
	p.events = append(p.events, evt)
	return nil
}

var (
	doctor  = &access.Actor{UserID: 2, Role: access.RoleDoctor}
	patient = &access.Actor{UserID: 10, Role: access.RolePatient}
	other   = &access.Actor{UserID: 11, Role: access.RolePatient}
)

func newService(t *testing.T) (*service, *memRepo, *memFiles, *recordingPublisher) {
	t.Helper()
	repo := &memRepo{
		exercises: map[uint]*Exercise{},
		users: map[uint]*auth.User{
			2:  {ID: 2, Role: access.RoleDoctor},
			10: {ID: 10, Role: access.RolePatient},
			11: {ID: 11, Role: access.RolePatient},
		},
	}
	files := &memFiles{}
	pub := &recordingPublisher{}
	svc := NewService(repo, repo, files, nopAudit{}, pub).(*service)
	svc.now = func() time.Time { return time.Date(2025, 3, 21, 8, 0, 0, 0, time.UTC) }
	return svc, repo, files, pub
}

func walk() Input {
	return Input{UserID: 10, Name: "Prenatal walk", Type: TypeCardio, Intensity: IntensityLow, DurationMinutes: 30, CaloriesBurned: 120, Date: "2025-03-21"}
}

func TestCreate(t *testing.T) {
	svc, _, files, pub := newService(t)
	ctx := context.Background()

	e, err := svc.Create(ctx, doctor, walk(), &Upload{Filename: "demo.mp4", Body: strings.NewReader("v")})
	if err != nil {
		t.Fatal(err)
	}
	if e.UserID != 10 || e.MediaURL == nil || files.n != 1 {
		t.Fatalf("exercise = %+v", e)
	}
	if len(pub.events) != 1 || pub.events[0].Type != events.ExerciseAssigned {
		t.Fatalf("events = %+v", pub.events)
	}

	own := walk()
	own.UserID = 11
	e, err = svc.Create(ctx, patient, own, nil)
	if err != nil || e.UserID != 10 {
		t.Fatalf("patient create for self = %+v %v", e, err)
	}
	if len(pub.events) != 1 {
		t.Fatal("self-logged exercise should not notify")
	}
}

func TestCreate_Validation(t *testing.T) {
	svc, _, _, _ := newService(t)
	tests := []struct {
		name   string
		mutate func(*Input)
		media  *Upload
		kind   apperr.Kind
	}{
		{"bad type", func(in *Input) { in.Type = "yoga" }, nil, apperr.KindValidation},
		{"bad intensity", func(in *Input) { in.Intensity = "extreme" }, nil, apperr.KindValidation},
		{"zero duration", func(in *Input) { in.DurationMinutes = 0 }, nil, apperr.KindValidation},
		{"bad date", func(in *Input) { in.Date = "21/03/2025" }, nil, apperr.KindValidation},
		{"doctor as patient", func(in *Input) { in.UserID = 2 }, nil, apperr.KindNotFound},
		{"bad media", func(in *Input) {}, &Upload{Filename: "x.exe", Body: strings.NewReader("")}, apperr.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := walk()
			tt.mutate(&in)
			if _, err := svc.Create(context.Background(), doctor, in, tt.media); apperr.KindOf(err) != tt.kind {
				t.Fatalf("error = %v, want %v", err, tt.kind)
			}
		})
	}
}

func TestUpdateStatus(t *testing.T) {
	svc, repo, _, _ := newService(t)
	ctx := context.Background()
	e, _ := svc.Create(ctx, doctor, walk(), nil)

	if _, err := svc.UpdateStatus(ctx, other, e.ID, StatusCompleted, nil); apperr.KindOf(err) != apperr.KindForbidden {
		t.Fatalf("other patient = %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, patient, 999, StatusCompleted, nil); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("missing exercise = %v", err)
	}

	st, err := svc.UpdateStatus(ctx, patient, e.ID, StatusSkipped, &Upload{Filename: "tired.wav", Body: strings.NewReader("a")})
	if err != nil || st.ReasonAudioURL == nil {
		t.Fatalf("skipped = %+v %v", st, err)
	}
	st, err = svc.UpdateStatus(ctx, patient, e.ID, StatusCompleted, &Upload{Filename: "ignored.wav", Body: strings.NewReader("a")})
	if err != nil || st.Status != StatusCompleted || st.ReasonAudioURL != nil {
		t.Fatalf("completed = %+v %v", st, err)
	}
	if len(repo.statuses) != 1 {
		t.Fatalf("status rows = %d", len(repo.statuses))
	}
}

func TestPatchAndScope(t *testing.T) {
	svc, _, _, _ := newService(t)
	ctx := context.Background()
	e, _ := svc.Create(ctx, doctor, walk(), nil)

	mins := 45
	got, err := svc.Patch(ctx, doctor, e.ID, Patch{DurationMinutes: &mins})
	if err != nil || got.DurationMinutes != 45 || got.Name != "Prenatal walk" {
		t.Fatalf("patched = %+v %v", got, err)
	}
	bad := Type("yoga")
	if _, err := svc.Patch(ctx, doctor, e.ID, Patch{Type: &bad}); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("bad patch = %v", err)
	}
	if _, err := svc.Get(ctx, other, e.ID); apperr.KindOf(err) != apperr.KindForbidden {
		t.Fatalf("other patient get = %v", err)
	}
	list, _ := svc.List(ctx, other, Filter{})
	if len(list) != 0 {
		t.Fatalf("other patient sees %d exercises", len(list))
	}
	list, _ = svc.List(ctx, doctor, Filter{ExerciseType: TypeCardio})
	if len(list) != 1 {
		t.Fatalf("doctor sees %d exercises", len(list))
	}
}

func TestDoctorResponses(t *testing.T) {
	svc, _, _, _ := newService(t)
	ctx := context.Background()
	e, _ := svc.Create(ctx, doctor, walk(), nil)

	if _, err := svc.AddDoctorResponse(ctx, patient, e.ID, "great"); apperr.KindOf(err) != apperr.KindForbidden {
		t.Fatalf("patient review = %v", err)
	}
	resp, err := svc.AddDoctorResponse(ctx, doctor, e.ID, "Keep the pace gentle.")
	if err != nil || resp.PatientID != 10 || resp.DoctorID != 2 {
		t.Fatalf("review = %+v %v", resp, err)
	}
	list, err := svc.ListDoctorResponses(ctx, patient, e.ID)
	if err != nil || len(list) != 1 {
		t.Fatalf("patient reads reviews = %v %v", list, err)
	}
	if _, err := svc.ListDoctorResponses(ctx, other, e.ID); apperr.KindOf(err) != apperr.KindForbidden {
		t.Fatalf("other patient reads reviews = %v", err)
	}
}
