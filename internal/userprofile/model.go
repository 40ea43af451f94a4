package userprofile

import (
	"time"

	"github.com/sharath018/health-management-backend/internal/access"
)

// Profile is the one-to-one extension of auth.User.
type Profile struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	UserID         uint       `gorm:"not null;uniqueIndex" json:"user_id"`
	DateOfBirth    *time.Time `gorm:"type:date" json:"date_of_birth,omitempty"`
	Gender         string     `gorm:"size:20" json:"gender,omitempty"`
	Address        string     `gorm:"type:text" json:"address,omitempty"`
	Specialization string     `gorm:"size:150" json:"specialization,omitempty"`
	ImageURL       string     `gorm:"size:500" json:"image_url,omitempty"`
	HeightCm       *float64   `json:"height_cm,omitempty"`
	WeightKg       *float64   `json:"weight_kg,omitempty"`
	Calories       *int       `json:"calories,omitempty"`

	access.AuditFields
}

// Age in whole years at now; nil without a date of birth.
func (p *Profile) Age(now time.Time) *int {
	if p.DateOfBirth == nil {
		return nil
	}
	dob := *p.DateOfBirth
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	if age < 0 {
		age = 0
	}
	return &age
}

// ProfileResponse merges identity fields from the user with the profile.
type ProfileResponse struct {
	Profile
	Username    string      `json:"username"`
	FirstName   string      `json:"first_name"`
	LastName    string      `json:"last_name"`
	PhoneNumber string      `json:"phone_number"`
	Role        access.Role `json:"role"`
	Age         *int        `json:"age,omitempty"`
}

// ProfileInput is a partial update; nil fields are left unchanged.
type ProfileInput struct {
	FirstName      *string  `json:"first_name"`
	LastName       *string  `json:"last_name"`
	DateOfBirth    *string  `json:"date_of_birth" example:"1994-08-17"`
	Gender         *string  `json:"gender"`
	Address        *string  `json:"address"`
	Specialization *string  `json:"specialization"`
	HeightCm       *float64 `json:"height_cm"`
	WeightKg       *float64 `json:"weight_kg"`
	Calories       *int     `json:"calories"`
}
