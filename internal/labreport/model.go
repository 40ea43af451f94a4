package labreport

import (
	"io"
	"time"

	"github.com/sharath018/health-management-backend/internal/access"
	"github.com/sharath018/health-management-backend/utils"
)

const MsgNoReports = "This patient does not have any lab report until now."

var allowedExtensions = []string{".pdf", ".doc", ".docx", ".txt"}

type LabReport struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	PatientID    uint       `gorm:"not null;index" json:"patient"`
	ReportName   string     `gorm:"size:255;not null" json:"report_name"`
	DateOfReport utils.Date `gorm:"not null;index" json:"date_of_report"`
	FileURL      string     `gorm:"size:512;not null" json:"file"`
	UploadedByID uint       `gorm:"not null;index" json:"uploaded_by"`

	access.AuditFields
}

// Listed is a report joined with the names shown in listings and exports.
type Listed struct {
	LabReport
	PatientName    string `json:"patient_name"`
	PatientPhone   string `json:"patient_phone"`
	UploadedByName string `json:"uploaded_by_name"`
}

// Filter is applied only after role scoping.
type Filter struct {
	PatientName string
	Phone       string
	ReportDate  *utils.Date
	FromDate    *time.Time
	ToDate      *time.Time
	UploadedBy  string
}

type Input struct {
	PatientID    uint   `form:"patient" json:"patient"`
	ReportName   string `form:"report_name" json:"report_name"`
	DateOfReport string `form:"date_of_report" json:"date_of_report"`
}

type File struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

type Page struct {
	HasReports bool     `json:"has_reports"`
	Results    []Listed `json:"results"`
	Count      int64    `json:"count"`
	Page       int      `json:"page"`
	Limit      int      `json:"limit"`
	TotalPages int      `json:"total_pages"`
}

// NoReports is returned instead of a page when the caller's scoped set is empty.
type NoReports struct {
	HasReports bool   `json:"has_reports"`
	Message    string `json:"message"`
}

// Listing carries either a page or, when Page is nil, the empty-state payload.
type Listing struct {
	Page  *Page
	Empty *NoReports
}
