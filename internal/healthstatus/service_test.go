package healthstatus

import (
	"context"
	"sort"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/sharath018/health-management-backend/internal/access"
	"github.com/sharath018/health-management-backend/internal/apperr"
	"github.com/sharath018/health-management-backend/internal/auth"
	"github.com/sharath018/health-management-backend/internal/events"
	"github.com/sharath018/health-management-backend/internal/reports"
)

type memRepo struct {
	rows   []HealthStatus
	counts map[uint]Counts
	users  map[uint]*auth.User
}

func (m *memRepo) Create(_ context.Context, h *HealthStatus) error {
	h.ID = uint(len(m.rows) + 1)
	m.rows = append(m.rows, *h)
	return nil
}

func (m *memRepo) Latest(_ context.Context, userID uint) (*HealthStatus, error) {
	for i := len(m.rows) - 1; i >= 0; i-- {
		if m.rows[i].UserID == userID {
			cp := m.rows[i]
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memRepo) List(_ context.Context, userID *uint) ([]HealthStatus, error) {
	var out []HealthStatus
	for i := len(m.rows) - 1; i >= 0; i-- {
		if userID == nil || m.rows[i].UserID == *userID {
			out = append(out, m.rows[i])
		}
	}
	return out, nil
}

func (m *memRepo) Counts(_ context.Context, userID uint) (Counts, error) {
	return m.counts[userID], nil
}

func (m *memRepo) Dashboard(_ context.Context) ([]DashboardRow, error) {
	var out []DashboardRow
	for _, u := range m.users {
		if u.Role != access.RolePatient {
			continue
		}
		c := m.counts[u.ID]
		row := DashboardRow{PatientID: u.ID, Username: u.Username, DietPlans: c.DietPlans, LabReports: c.LabReports, Exercises: c.Exercises}
		if h, err := m.Latest(context.Background(), u.ID); err == nil {
			row.LatestStatus = &h.Status
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PatientID < out[j].PatientID })
	return out, nil
}

func (m *memRepo) FindByID(_ context.Context, id uint) (*auth.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return u, nil
}

type nopAudit struct{}

func (nopAudit) LogAction(context.Context, *access.Actor, access.Resource, *uint, string, map[string]interface{}, error) {
}

type recordingPublisher struct{ events []events.Event }

func (p *recordingPublisher) Publish(_ context.Context, evt events.Event) error {
	p.events = append(p.events, evt)
	return nil
}

type fakeExporter struct{ table reports.Table }

func (e *fakeExporter) Export(_ string, t reports.Table) (*reports.File, error) {
	e.table = t
	return &reports.File{Filename: t.Name + ".xlsx"}, nil
}

var (
	doctor   = &access.Actor{UserID: 2, Role: access.RoleDoctor}
	patient  = &access.Actor{UserID: 10, Role: access.RolePatient}
	assigned = &access.Actor{UserID: 11, Role: access.RolePatient}
)

type fixture struct {
	svc   *service
	repo  *memRepo
	pub   *recordingPublisher
	exp   *fakeExporter
	clock time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	doc := uint(2)
	f := &fixture{
		repo: &memRepo{
			counts: map[uint]Counts{10: {DietPlans: 2, LabReports: 1, Exercises: 4}},
			users: map[uint]*auth.User{
				2:  {ID: 2, Role: access.RoleDoctor, Username: "drmeera"},
				10: {ID: 10, Role: access.RolePatient, Username: "anita"},
				11: {ID: 11, Role: access.RolePatient, Username: "kavya", FirstName: "Kavya", AssignedDoctorID: &doc},
			},
		},
		pub:   &recordingPublisher{},
		exp:   &fakeExporter{},
		clock: time.Date(2025, 5, 10, 8, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(f.repo, f.repo, f.exp, nopAudit{}, f.pub).(*service)
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func intp(v int) *int           { return &v }
func floatp(v float64) *float64 { return &v }

func TestRecord_Validation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		in   Input
	}{
		{"empty", Input{}},
		{"half bp", Input{SystolicBP: intp(120)}},
		{"inverted bp", Input{SystolicBP: intp(70), DiastolicBP: intp(90)}},
		{"bp out of range", Input{SystolicBP: intp(300), DiastolicBP: intp(90)}},
		{"negative calories", Input{Calories: intp(-5)}},
		{"implausible height", Input{HeightCm: floatp(20), WeightKg: floatp(60)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.Record(context.Background(), patient, tt.in); apperr.KindOf(err) != apperr.KindValidation {
				t.Fatalf("error = %v, want validation", err)
			}
		})
	}
}

func TestRecord_DerivesBMIAndStreak(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	h, err := f.svc.Record(ctx, patient, Input{HeightCm: floatp(160), WeightKg: floatp(64)})
	if err != nil {
		t.Fatal(err)
	}
	if h.BMI == nil || *h.BMI != 25 || h.Status != "Overweight" || h.StreakDays != 1 {
		t.Fatalf("first = %+v", h)
	}
	f.repo.rows[0].CreatedAt = f.clock

	f.clock = f.clock.Add(24 * time.Hour)
	h, err = f.svc.Record(ctx, patient, Input{WeightKg: floatp(58), Status: "Feeling well"})
	if err != nil {
		t.Fatal(err)
	}
	if h.HeightCm == nil || *h.HeightCm != 160 || h.BMI == nil || h.StreakDays != 2 || h.Status != "Feeling well" {
		t.Fatalf("next day = %+v", h)
	}
	f.repo.rows[1].CreatedAt = f.clock

	f.clock = f.clock.Add(3 * 24 * time.Hour)
	h, _ = f.svc.Record(ctx, patient, Input{Calories: intp(1900)})
	if h.StreakDays != 1 {
		t.Fatalf("streak after a gap = %d", h.StreakDays)
	}
}

func TestRecord_Notifies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Record(ctx, patient, Input{Status: "ok"}); err != nil {
		t.Fatal(err)
	}
	if len(f.pub.events) != 0 {
		t.Fatalf("unassigned self reading notified %+v", f.pub.events)
	}
	if _, err := f.svc.Record(ctx, assigned, Input{Status: "dizzy"}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Record(ctx, doctor, Input{UserID: 10, SystolicBP: intp(118), DiastolicBP: intp(76)}); err != nil {
		t.Fatal(err)
	}
	if len(f.pub.events) != 2 || f.pub.events[0].UserID != 2 || f.pub.events[1].UserID != 10 {
		t.Fatalf("events = %+v", f.pub.events)
	}
}

func TestCurrentAndScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Current(ctx, patient, 0); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("empty current = %v", err)
	}
	f.svc.Record(ctx, patient, Input{Status: "first"})
	f.svc.Record(ctx, patient, Input{Status: "second"})
	f.svc.Record(ctx, assigned, Input{Status: "other"})

	cur, err := f.svc.Current(ctx, patient, 11)
	if err != nil || cur.Status != "second" {
		t.Fatalf("current = %+v %v", cur, err)
	}
	list, _ := f.svc.List(ctx, patient, 11)
	if len(list) != 2 || list[0].Status != "second" {
		t.Fatalf("patient list = %+v", list)
	}
	list, _ = f.svc.List(ctx, doctor, 0)
	if len(list) != 3 {
		t.Fatalf("doctor list = %d", len(list))
	}
	if _, err := f.svc.Current(ctx, doctor, 0); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("doctor without patient_id = %v", err)
	}
	if _, err := f.svc.Current(ctx, doctor, 2); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("doctor as patient = %v", err)
	}
}

func TestSummaryAndDashboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.svc.Record(ctx, patient, Input{Status: "stable"})

	sum, err := f.svc.Summary(ctx, patient, 0)
	if err != nil || sum.DietPlans != 2 || sum.Exercises != 4 || sum.Latest == nil || sum.Latest.Status != "stable" {
		t.Fatalf("summary = %+v %v", sum, err)
	}

	if _, err := f.svc.DoctorDashboard(ctx, patient); apperr.KindOf(err) != apperr.KindForbidden {
		t.Fatalf("patient dashboard = %v", err)
	}
	rows, err := f.svc.DoctorDashboard(ctx, doctor)
	if err != nil || len(rows) != 2 || rows[0].LabReports != 1 || *rows[0].LatestStatus != "stable" || rows[1].LatestStatus != nil {
		t.Fatalf("dashboard = %+v %v", rows, err)
	}

	file, err := f.svc.ExportDashboard(ctx, doctor)
	if err != nil || file.Filename != "doctor_dashboard.xlsx" || len(f.exp.table.Rows) != 2 || f.exp.table.Rows[1][6] != "" {
		t.Fatalf("export = %+v %v %v", file, f.exp.table.Rows, err)
	}
}
