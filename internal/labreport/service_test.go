package labreport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/sharath018/health-management-backend/internal/access"
	"github.com/sharath018/health-management-backend/internal/apperr"
	"github.com/sharath018/health-management-backend/internal/auth"
	"github.com/sharath018/health-management-backend/internal/events"
	"github.com/sharath018/health-management-backend/internal/reports"
	"github.com/sharath018/health-management-backend/utils"
)

func init() { gin.SetMode(gin.TestMode) }

type memRepo struct {
	reports map[uint]*LabReport
	users   map[uint]*auth.User
	nextID  uint
}

func (m *memRepo) Create(_ context.Context, r *LabReport) error {
	m.nextID++
	r.ID = m.nextID
	cp := *r
	m.reports[r.ID] = &cp
	return nil
}

func (m *memRepo) Save(_ context.Context, r *LabReport) error {
	cp := *r
	m.reports[r.ID] = &cp
	return nil
}

func (m *memRepo) Delete(_ context.Context, id uint) error {
	if _, ok := m.reports[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.reports, id)
	return nil
}

func (m *memRepo) Get(_ context.Context, id uint) (*LabReport, error) {
	r, ok := m.reports[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memRepo) CountScoped(_ context.Context, patientID *uint) (int64, error) {
	var n int64
	for _, r := range m.reports {
		if patientID == nil || r.PatientID == *patientID {
			n++
		}
	}
	return n, nil
}

func (m *memRepo) List(_ context.Context, patientID *uint, f Filter, offset, limit int) ([]Listed, int64, error) {
	var out []Listed
	for _, r := range m.reports {
		if patientID != nil && r.PatientID != *patientID {
			continue
		}
		p := m.users[r.PatientID]
		if f.PatientName != "" && !strings.Contains(strings.ToLower(p.FullName()), strings.ToLower(f.PatientName)) {
			continue
		}
		if f.ReportDate != nil && !r.DateOfReport.Equal(*f.ReportDate) {
			continue
		}
		out = append(out, Listed{LabReport: *r, PatientName: p.FullName(), PatientPhone: p.Phone()})
	}
	sort.Slice(out, func(i, j int) bool { return out[j].DateOfReport.Before(out[i].DateOfReport) })
	total := int64(len(out))
	if limit > 0 {
		if offset > len(out) {
			offset = len(out)
		}
		end := offset + limit
		if end > len(out) {
			end = len(out)
		}
		out = out[offset:end]
	}
	return out, total, nil
}

func (m *memRepo) FindByID(_ context.Context, id uint) (*auth.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return u, nil
}

type memFiles struct{}

func (memFiles) Save(_ context.Context, folder, filename string, _ io.Reader, _ string) (string, error) {
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

type fakeExporter struct{ table reports.Table }

func (e *fakeExporter) Export(format string, t reports.Table) (*reports.File, error) {
	e.table = t
	return &reports.File{Filename: t.Name + ".xlsx"}, nil
}

var (
	doctor  = &access.Actor{UserID: 2, Role: access.RoleDoctor}
	admin   = &access.Actor{UserID: 1, Role: access.RoleAdmin}
	patient = &access.Actor{UserID: 10, Role: access.RolePatient}
	fresh   = &access.Actor{UserID: 11, Role: access.RolePatient}
)

func newService(t *testing.T) (*service, *memRepo, *recordingPublisher, *fakeExporter) {
	t.Helper()
	phone := "+919876543210"
	repo := &memRepo{
		reports: map[uint]*LabReport{},
		users: map[uint]*auth.User{
			1:  {ID: 1, Role: access.RoleAdmin, Username: "admin"},
			2:  {ID: 2, Role: access.RoleDoctor, Username: "drmeera"},
			10: {ID: 10, Role: access.RolePatient, FirstName: "Anita", LastName: "Rao", PhoneNumber: &phone},
			11: {ID: 11, Role: access.RolePatient, FirstName: "Kavya"},
		},
	}
	pub := &recordingPublisher{}
	exp := &fakeExporter{}
	svc := NewService(repo, repo, memFiles{}, exp, nopAudit{}, pub).(*service)
	svc.now = func() time.Time { return time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC) }
	return svc, repo, pub, exp
}

func pdf(name string) *File {
	return &File{Filename: name, Body: strings.NewReader("%PDF")}
}

func seed(t *testing.T, svc *service, dates ...string) {
	t.Helper()
	for i, d := range dates {
		if _, err := svc.Create(context.Background(), doctor, Input{PatientID: 10, ReportName: "CBC", DateOfReport: d}, pdf("cbc.pdf")); err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}
}

func TestList_EmptyScopeReturnsNoReports(t *testing.T) {
	svc, _, _, _ := newService(t)
	seed(t, svc, "2025-03-01")
	ctx := context.Background()

	for name, actor := range map[string]*access.Actor{"patient without reports": fresh, "anonymous": nil, "admin": admin} {
		res, err := svc.List(ctx, actor, Filter{}, 1, 10)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if res.Page != nil || res.Empty == nil || res.Empty.HasReports || res.Empty.Message != MsgNoReports {
			t.Fatalf("%s: listing = %+v", name, res)
		}
	}
}

func TestList_FilterMissIsAnEmptyPage(t *testing.T) {
	svc, _, _, _ := newService(t)
	seed(t, svc, "2025-03-01")

	res, err := svc.List(context.Background(), patient, Filter{PatientName: "nobody"}, 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if res.Page == nil || !res.Page.HasReports || res.Page.Count != 0 || len(res.Page.Results) != 0 {
		t.Fatalf("listing = %+v", res)
	}
}

func TestList_ScopeOrderAndPages(t *testing.T) {
	svc, _, _, _ := newService(t)
	seed(t, svc, "2025-01-10", "2025-03-01", "2025-02-14")
	ctx := context.Background()
	if _, err := svc.Create(ctx, fresh, Input{ReportName: "TSH", DateOfReport: "2025-03-20"}, pdf("tsh.pdf")); err != nil {
		t.Fatal(err)
	}

	res, _ := svc.List(ctx, patient, Filter{}, 1, 2)
	if res.Page.Count != 3 || res.Page.TotalPages != 2 || len(res.Page.Results) != 2 {
		t.Fatalf("page = %+v", res.Page)
	}
	if got := res.Page.Results[0].DateOfReport.String(); got != "2025-03-01" {
		t.Fatalf("first = %s, want newest", got)
	}

	res, _ = svc.List(ctx, doctor, Filter{}, 1, 10)
	if res.Page.Count != 4 {
		t.Fatalf("doctor count = %d", res.Page.Count)
	}

	day, _ := utils.ParseDate("2025-02-14")
	res, _ = svc.List(ctx, doctor, Filter{ReportDate: &day}, 1, 10)
	if res.Page.Count != 1 {
		t.Fatalf("report_date count = %d", res.Page.Count)
	}
}

func TestCreate(t *testing.T) {
	svc, repo, pub, _ := newService(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		actor *access.Actor
		in    Input
		file  *File
		kind  apperr.Kind
	}{
		{"missing name", patient, Input{DateOfReport: "2025-03-01"}, pdf("a.pdf"), apperr.KindValidation},
		{"bad date", patient, Input{ReportName: "CBC", DateOfReport: "03/01/2025"}, pdf("a.pdf"), apperr.KindValidation},
		{"no file", patient, Input{ReportName: "CBC", DateOfReport: "2025-03-01"}, nil, apperr.KindValidation},
		{"bad extension", patient, Input{ReportName: "CBC", DateOfReport: "2025-03-01"}, pdf("scan.png"), apperr.KindValidation},
		{"doctor without patient", doctor, Input{ReportName: "CBC", DateOfReport: "2025-03-01"}, pdf("a.pdf"), apperr.KindValidation},
		{"doctor names a doctor", doctor, Input{PatientID: 2, ReportName: "CBC", DateOfReport: "2025-03-01"}, pdf("a.pdf"), apperr.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, tt.actor, tt.in, tt.file); apperr.KindOf(err) != tt.kind {
				t.Fatalf("error = %v, want %v", err, tt.kind)
			}
		})
	}
	if len(repo.reports) != 0 {
		t.Fatalf("rejected uploads stored %d rows", len(repo.reports))
	}

	rep, err := svc.Create(ctx, patient, Input{PatientID: 11, ReportName: "CBC", DateOfReport: "2025-03-01"}, pdf("CBC.PDF"))
	if err != nil || rep.PatientID != 10 || rep.UploadedByID != 10 {
		t.Fatalf("patient upload = %+v %v", rep, err)
	}
	if len(pub.events) != 0 {
		t.Fatal("self upload should not notify")
	}
	if _, err := svc.Create(ctx, doctor, Input{PatientID: 10, ReportName: "CBC", DateOfReport: "2025-03-02"}, pdf("cbc.docx")); err != nil {
		t.Fatal(err)
	}
	if len(pub.events) != 1 || pub.events[0].Type != events.LabReportUploaded || pub.events[0].UserID != 10 {
		t.Fatalf("events = %+v", pub.events)
	}
}

func TestGetUpdateDelete_Scope(t *testing.T) {
	svc, repo, _, _ := newService(t)
	seed(t, svc, "2025-03-01")
	ctx := context.Background()

	if _, err := svc.Get(ctx, fresh, 1); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("other patient get = %v", err)
	}
	if err := svc.Delete(ctx, fresh, 1); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("other patient delete = %v", err)
	}

	rep, err := svc.Update(ctx, patient, 1, Input{ReportName: "CBC (repeat)", DateOfReport: "2025-03-05"}, nil)
	if err != nil || rep.ReportName != "CBC (repeat)" || rep.FileURL != "/uploads/lab_reports/cbc.pdf" {
		t.Fatalf("update = %+v %v", rep, err)
	}
	rep, err = svc.Update(ctx, doctor, 1, Input{ReportName: "CBC", DateOfReport: "2025-03-05"}, pdf("new.txt"))
	if err != nil || rep.FileURL != "/uploads/lab_reports/new.txt" {
		t.Fatalf("replace file = %+v %v", rep, err)
	}

	if err := svc.Delete(ctx, patient, 1); err != nil {
		t.Fatal(err)
	}
	if len(repo.reports) != 0 {
		t.Fatal("report not deleted")
	}
}

func TestExportXLSX(t *testing.T) {
	svc, _, _, exp := newService(t)
	seed(t, svc, "2025-03-01", "2025-03-09")

	f, err := svc.ExportXLSX(context.Background(), doctor, Filter{})
	if err != nil || f.Filename != "lab_reports.xlsx" {
		t.Fatalf("export = %+v %v", f, err)
	}
	if len(exp.table.Rows) != 2 || exp.table.Rows[0][1] != "Anita Rao" || exp.table.Rows[0][4] != "2025-03-09" {
		t.Fatalf("rows = %v", exp.table.Rows)
	}
}

func TestHandler_ListRendersNoReportsPayload(t *testing.T) {
	svc, _, _, _ := newService(t)
	r := gin.New()
	r.GET("/lab-reports", func(c *gin.Context) {
		c.Request = c.Request.WithContext(access.WithActor(c.Request.Context(), fresh))
	}, NewHandler(svc).List)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/lab-reports", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body) != 2 || body["has_reports"] != false || body["message"] != MsgNoReports {
		t.Fatalf("body = %s", w.Body)
	}
}
