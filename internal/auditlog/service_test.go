package auditlog

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sharath018/health-management-backend/internal/access"
)

type memRepo struct {
	entries []AuditLog
	total   int64
	filter  AuditLogFilter
}

func (m *memRepo) Create(_ context.Context, log *AuditLog) error {
	log.ID = uint(len(m.entries) + 1)
	m.entries = append(m.entries, *log)
	return nil
}

func (m *memRepo) GetByFilter(_ context.Context, f AuditLogFilter) ([]AuditLogResponse, int64, error) {
	m.filter = f
	return nil, m.total, nil
}

func (m *memRepo) GetByID(_ context.Context, id uint) (*AuditLogResponse, error) {
	for _, e := range m.entries {
		if e.ID == id {
			return &AuditLogResponse{AuditLog: e}, nil
		}
	}
	return nil, errors.New("record not found")
}

func TestLogAction_RecordsActorAndStatus(t *testing.T) {
	repo := &memRepo{}
	svc := NewService(repo)
	actor := &access.Actor{UserID: 7, Role: access.RoleDoctor, IP: "10.0.0.1"}
	planID := uint(3)

	svc.LogAction(context.Background(), actor, access.ResourceDietPlan, &planID, "DIET_PLAN_CREATED", map[string]interface{}{"dates": 2}, nil)
	svc.LogAction(context.Background(), nil, "", nil, "OTP_REQUESTED", nil, errors.New("gateway down"))

	if len(repo.entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(repo.entries))
	}
	first := repo.entries[0]
	if first.UserID == nil || *first.UserID != 7 || first.IPAddress != "10.0.0.1" || first.Status != StatusSuccess {
		t.Errorf("first entry = %+v", first)
	}
	if first.Resource != "dietplan" || *first.ResourceID != 3 {
		t.Errorf("first entry resource = %q/%v", first.Resource, first.ResourceID)
	}

	second := repo.entries[1]
	if second.UserID != nil || second.Status != StatusFailure {
		t.Errorf("second entry = %+v", second)
	}
	var details map[string]interface{}
	if err := json.Unmarshal(second.Details, &details); err != nil {
		t.Fatalf("details not JSON: %v", err)
	}
	if details["error"] != "gateway down" {
		t.Errorf("details = %v, want error recorded", details)
	}
}

func TestGetAuditLogs_Pagination(t *testing.T) {
	repo := &memRepo{total: 41}
	svc := NewService(repo)

	got, err := svc.GetAuditLogs(context.Background(), AuditLogFilter{})
	if err != nil {
		t.Fatalf("GetAuditLogs() error = %v", err)
	}
	if got.Page != 1 || got.Limit != 20 || got.TotalPages != 3 {
		t.Errorf("GetAuditLogs() = page %d limit %d pages %d, want 1/20/3", got.Page, got.Limit, got.TotalPages)
	}
	if repo.filter.Limit != 20 {
		t.Errorf("repository saw limit %d, want defaulted 20", repo.filter.Limit)
	}
}
