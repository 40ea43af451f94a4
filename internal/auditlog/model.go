package auditlog

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog is one recorded write, successful or not.
type AuditLog struct {
	ID         uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     *uint          `gorm:"index" json:"user_id"` // nil for anonymous calls such as OTP requests
	Resource   string         `gorm:"size:50;index" json:"resource"`
	ResourceID *uint          `gorm:"index" json:"resource_id"`
	Action     string         `gorm:"size:100;not null;index" json:"action"`
	Details    datatypes.JSON `gorm:"type:jsonb" json:"details"`
	IPAddress  string         `gorm:"size:45" json:"ip_address"`
	Status     string         `gorm:"size:20;not null;index" json:"status"`
	CreatedAt  time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// AuditLogResponse adds the acting user's name for display.
type AuditLogResponse struct {
	AuditLog
	Username *string `json:"username,omitempty"`
}

type AuditLogFilter struct {
	UserID   *uint
	Resource string
	Action   string
	Status   string
	FromDate *time.Time
	ToDate   *time.Time
	Page     int
	Limit    int
}

type PaginatedAuditLogs struct {
	Data       []AuditLogResponse `json:"data"`
	Total      int64              `json:"total"`
	Page       int                `json:"page"`
	Limit      int                `json:"limit"`
	TotalPages int                `json:"total_pages"`
}
