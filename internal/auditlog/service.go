package auditlog

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/sharath018/health-management-backend/internal/access"
)

// Logger is the write-side dependency every domain service takes.
type Logger interface {
	LogAction(ctx context.Context, actor *access.Actor, resource access.Resource, resourceID *uint, action string, details map[string]interface{}, opErr error)
}

type Service interface {
	Logger
	GetAuditLogs(ctx context.Context, filter AuditLogFilter) (*PaginatedAuditLogs, error)
	GetAuditLogByID(ctx context.Context, id uint) (*AuditLogResponse, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// LogAction records the outcome of a write. Failures to persist the entry
// are logged and swallowed so auditing never fails the operation itself.
func (s *service) LogAction(ctx context.Context, actor *access.Actor, resource access.Resource, resourceID *uint, action string, details map[string]interface{}, opErr error) {
	if details == nil {
		details = make(map[string]interface{})
	}
	status := StatusSuccess
	if opErr != nil {
		status = StatusFailure
		details["error"] = opErr.Error()
	}

	detailsJSON, err := json.Marshal(details)
	if err != nil {
		detailsJSON = []byte("{}")
	}

	entry := &AuditLog{
		UserID:     actor.IDPtr(),
		Resource:   string(resource),
		ResourceID: resourceID,
		Action:     action,
		Details:    detailsJSON,
		Status:     status,
	}
	if actor != nil {
		entry.IPAddress = actor.IP
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		log.Error().Err(err).Str("action", action).Msg("audit log write failed")
	}
}

func (s *service) GetAuditLogs(ctx context.Context, filter AuditLogFilter) (*PaginatedAuditLogs, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}

	logs, total, err := s.repo.GetByFilter(ctx, filter)
	if err != nil {
		return nil, err
	}

	return &PaginatedAuditLogs{
		Data:       logs,
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: int(math.Ceil(float64(total) / float64(filter.Limit))),
	}, nil
}

func (s *service) GetAuditLogByID(ctx context.Context, id uint) (*AuditLogResponse, error) {
	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("audit log not found: %w", err)
	}
	return entry, nil
}
