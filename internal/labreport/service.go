package labreport

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
	"github.com/sharath018/health-management-backend/internal/reports"
	"github.com/sharath018/health-management-backend/utils"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

const MsgReportNotFound = "Lab report not found."

type UserStore interface {
	FindByID(ctx context.Context, id uint) (*auth.User, error)
}

type Service interface {
	List(ctx context.Context, actor *access.Actor, f Filter, page, limit int) (*Listing, error)
	Create(ctx context.Context, actor *access.Actor, in Input, file *File) (*LabReport, error)
	Get(ctx context.Context, actor *access.Actor, id uint) (*LabReport, error)
	Update(ctx context.Context, actor *access.Actor, id uint, in Input, file *File) (*LabReport, error)
	Delete(ctx context.Context, actor *access.Actor, id uint) error
	ExportXLSX(ctx context.Context, actor *access.Actor, f Filter) (*reports.File, error)
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

// scope returns the patient a caller is restricted to, or nil for doctors.
func scope(actor *access.Actor) *uint {
	if access.SeesAllLabReports(actor.Role) {
		return nil
	}
	id := actor.UserID
	return &id
}

func (s *service) List(ctx context.Context, actor *access.Actor, f Filter, page, limit int) (*Listing, error) {
	empty := &Listing{Empty: &NoReports{HasReports: false, Message: MsgNoReports}}
	if actor == nil {
		return empty, nil
	}
	patientID := scope(actor)

	n, err := s.repo.CountScoped(ctx, patientID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if n == 0 {
		return empty, nil
	}

	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if page <= 0 {
		page = 1
	}
	rows, total, err := s.repo.List(ctx, patientID, f, (page-1)*limit, limit)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if rows == nil {
		rows = []Listed{}
	}
	return &Listing{Page: &Page{
		HasReports: true,
		Results:    rows,
		Count:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: int((total + int64(limit) - 1) / int64(limit)),
	}}, nil
}

func validate(in Input) (string, utils.Date, error) {
	name := strings.TrimSpace(in.ReportName)
	if name == "" {
		return "", utils.Date{}, apperr.Validation("report_name is required")
	}
	d, err := utils.ParseDate(strings.TrimSpace(in.DateOfReport))
	if err != nil {
		return "", utils.Date{}, apperr.Validation("Invalid date_of_report. Use YYYY-MM-DD.")
	}
	return name, d, nil
}

func (s *service) store(ctx context.Context, file *File) (string, error) {
	if !utils.HasAllowedExtension(file.Filename, allowedExtensions) {
		return "", apperr.Validation("Unsupported file type. Allowed: %s", strings.Join(allowedExtensions, ", "))
	}
	url, err := s.files.Save(ctx, "lab_reports", file.Filename, file.Body, file.ContentType)
	if err != nil {
		return "", apperr.Internal(err)
	}
	return url, nil
}

// Create uploads a report. Patients upload for themselves; staff name the patient.
func (s *service) Create(ctx context.Context, actor *access.Actor, in Input, file *File) (*LabReport, error) {
	if err := access.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	if actor.Role == access.RolePatient {
		in.PatientID = actor.UserID
	}
	name, day, err := validate(in)
	if err != nil {
		return nil, err
	}
	if in.PatientID == 0 {
		return nil, apperr.Validation("patient is required")
	}
	if file == nil {
		return nil, apperr.Validation("file is required")
	}
	patient, err := s.users.FindByID(ctx, in.PatientID)
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && patient.Role != access.RolePatient) {
		return nil, apperr.NotFound("Patient not found.")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	url, err := s.store(ctx, file)
	if err != nil {
		return nil, err
	}

	rep := &LabReport{
		PatientID:    patient.ID,
		ReportName:   name,
		DateOfReport: day,
		FileURL:      url,
		UploadedByID: actor.UserID,
	}
	rep.StampCreate(actor, s.now())
	err = s.repo.Create(ctx, rep)
	s.audit.LogAction(ctx, actor, access.ResourceLabReport, &rep.ID, "LAB_REPORT_UPLOADED", map[string]interface{}{"patient_id": rep.PatientID}, err)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	if actor.UserID != patient.ID {
		events.Emit(ctx, s.publisher, events.Event{
			Type:   events.LabReportUploaded,
			UserID: patient.ID,
			Title:  "New lab report",
			Body:   fmt.Sprintf("%s dated %s was added to your records.", rep.ReportName, rep.DateOfReport),
		})
	}
	return rep, nil
}

func (s *service) Get(ctx context.Context, actor *access.Actor, id uint) (*LabReport, error) {
	if err := access.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	rep, err := s.repo.Get(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound(MsgReportNotFound)
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	// Out-of-scope reports look missing, as they would in a scoped list.
	if p := scope(actor); p != nil && rep.PatientID != *p {
		return nil, apperr.NotFound(MsgReportNotFound)
	}
	return rep, nil
}

// Update replaces name and date; a new file is optional.
func (s *service) Update(ctx context.Context, actor *access.Actor, id uint, in Input, file *File) (*LabReport, error) {
	rep, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	name, day, err := validate(in)
	if err != nil {
		return nil, err
	}
	if file != nil {
		url, err := s.store(ctx, file)
		if err != nil {
			return nil, err
		}
		rep.FileURL = url
	}
	rep.ReportName, rep.DateOfReport = name, day
	rep.StampUpdate(actor, s.now())
	err = s.repo.Save(ctx, rep)
	s.audit.LogAction(ctx, actor, access.ResourceLabReport, &rep.ID, "LAB_REPORT_UPDATED", map[string]interface{}{"file_replaced": file != nil}, err)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return rep, nil
}

func (s *service) Delete(ctx context.Context, actor *access.Actor, id uint) error {
	rep, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	err = s.repo.Delete(ctx, rep.ID)
	s.audit.LogAction(ctx, actor, access.ResourceLabReport, &rep.ID, "LAB_REPORT_DELETED", nil, err)
	if err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// ExportXLSX writes every report matching the filter inside the caller's scope.
func (s *service) ExportXLSX(ctx context.Context, actor *access.Actor, f Filter) (*reports.File, error) {
	if err := access.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	rows, _, err := s.repo.List(ctx, scope(actor), f, 0, 0)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	table := reports.Table{
		Name:    "lab_reports",
		Title:   "Lab Reports",
		Headers: []string{"ID", "Patient", "Phone", "Report", "Date of Report", "Uploaded By", "File"},
	}
	for _, r := range rows {
		table.Rows = append(table.Rows, []interface{}{
			r.ID, r.PatientName, r.PatientPhone, r.ReportName, r.DateOfReport.String(), r.UploadedByName, r.FileURL,
		})
	}
	file, err := s.exporter.Export(reports.FormatExcel, table)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	s.audit.LogAction(ctx, actor, access.ResourceLabReport, nil, "LAB_REPORTS_EXPORTED", map[string]interface{}{"rows": len(rows)}, nil)
	return file, nil
}
