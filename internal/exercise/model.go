package exercise

import (
	"io"
	"time"

	"github.com/sharath018/health-management-backend/internal/access"
	"github.com/sharath018/health-management-backend/utils"
)

type Type string

const (
	TypeStrength    Type = "strength"
	TypeCardio      Type = "cardio"
	TypeFlexibility Type = "flexibility"
	TypeBalance     Type = "balance"
)

func (t Type) Valid() bool {
	switch t {
	case TypeStrength, TypeCardio, TypeFlexibility, TypeBalance:
		return true
	}
	return false
}

type Intensity string

const (
	IntensityLow    Intensity = "low"
	IntensityMedium Intensity = "medium"
	IntensityHigh   Intensity = "high"
)

func (i Intensity) Valid() bool {
	return i == IntensityLow || i == IntensityMedium || i == IntensityHigh
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusSkipped   Status = "skipped"
)

func (s Status) Valid() bool {
	return s == StatusPending || s == StatusCompleted || s == StatusSkipped
}

// Exercise is an activity assigned to (or logged for) one patient.
type Exercise struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	UserID          uint       `gorm:"not null;index" json:"user_id"`
	Name            string     `gorm:"size:255;not null" json:"exercise_name"`
	Type            Type       `gorm:"size:20;not null;index" json:"exercise_type"`
	Intensity       Intensity  `gorm:"size:20;not null" json:"intensity"`
	DurationMinutes int        `gorm:"not null" json:"duration_minutes"`
	CaloriesBurned  int        `gorm:"not null;default:0" json:"calories_burned"`
	Date            utils.Date `gorm:"not null;index" json:"date"`
	MediaURL        *string    `gorm:"size:512" json:"media_url,omitempty"`

	access.AuditFields
}

// ExerciseStatus is unique per (user, exercise).
type ExerciseStatus struct {
	ID             uint    `gorm:"primaryKey" json:"id"`
	UserID         uint    `gorm:"not null;uniqueIndex:idx_exercise_status_user_exercise" json:"user_id"`
	ExerciseID     uint    `gorm:"not null;uniqueIndex:idx_exercise_status_user_exercise" json:"exercise"`
	Status         Status  `gorm:"size:20;not null;default:pending" json:"status"`
	ReasonAudioURL *string `gorm:"size:512" json:"reason_audio,omitempty"`

	access.AuditFields
}

type DoctorExerciseResponse struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	ExerciseID uint   `gorm:"not null;index" json:"exercise"`
	DoctorID   uint   `gorm:"not null;index" json:"doctor_id"`
	PatientID  uint   `gorm:"not null;index" json:"patient_id"`
	Response   string `gorm:"type:text;not null" json:"response"`

	access.AuditFields
}

type Input struct {
	UserID          uint      `form:"user" json:"user"`
	Name            string    `form:"exercise_name" json:"exercise_name"`
	Type            Type      `form:"exercise_type" json:"exercise_type"`
	Intensity       Intensity `form:"intensity" json:"intensity"`
	DurationMinutes int       `form:"duration_minutes" json:"duration_minutes"`
	CaloriesBurned  int       `form:"calories_burned" json:"calories_burned"`
	Date            string    `form:"date" json:"date"`
}

// Patch is the PATCH body; nil fields are left alone.
type Patch struct {
	Name            *string    `json:"exercise_name"`
	Type            *Type      `json:"exercise_type"`
	Intensity       *Intensity `json:"intensity"`
	DurationMinutes *int       `json:"duration_minutes"`
	CaloriesBurned  *int       `json:"calories_burned"`
	Date            *string    `json:"date"`
}

type Filter struct {
	PatientName  string
	ExerciseName string
	ExerciseType Type
	FromDate     *time.Time
	ToDate       *time.Time
}

// Upload is an optional file attached to a write.
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}
