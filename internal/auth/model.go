package auth

import (
	"time"

	"github.com/sharath018/health-management-backend/internal/access"
)

// User is the identity record for every role.
type User struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	Username    string      `gorm:"size:150;uniqueIndex;not null" json:"username"`
	PhoneNumber *string     `gorm:"size:20;uniqueIndex" json:"phone_number"` // nil only for the bootstrap superuser
	Role        access.Role `gorm:"size:20;not null;index" json:"role"`
	FirstName   string      `gorm:"size:100" json:"first_name"`
	LastName    string      `gorm:"size:100" json:"last_name"`

	PasswordHash string `gorm:"size:255" json:"-"`
	IsSuperuser  bool   `gorm:"not null;default:false" json:"-"`
	IsActive     bool   `gorm:"not null;default:true" json:"is_active"`

	AssignedDoctorID *uint `gorm:"index" json:"assigned_doctor_id,omitempty"`

	IsVerified   bool       `gorm:"not null;default:false" json:"is_verified"`
	OTPCodeHash  string     `gorm:"size:255" json:"-"`
	OTPExpiresAt *time.Time `json:"-"`

	IsFirstLogin             bool       `gorm:"not null;default:true" json:"is_first_login"`
	InitialQuestionCompleted bool       `gorm:"not null;default:false" json:"initial_question_completed"`
	AskDietQuestion          bool       `gorm:"not null;default:false" json:"ask_diet_question"`
	LastDietQuestionAnswered *time.Time `json:"last_diet_question_answered,omitempty"`

	Groups []Group `gorm:"many2many:user_groups" json:"-"`

	access.AuditFields
}

func (u *User) FullName() string {
	switch {
	case u.FirstName == "" && u.LastName == "":
		return u.Username
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}

func (u *User) Phone() string {
	if u.PhoneNumber == nil {
		return ""
	}
	return *u.PhoneNumber
}

// Group holds capability codenames. One group is seeded per role.
type Group struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	Name         string            `gorm:"size:80;uniqueIndex;not null" json:"name"`
	Capabilities []GroupCapability `gorm:"constraint:OnDelete:CASCADE" json:"capabilities"`
}

type GroupCapability struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	GroupID  uint   `gorm:"not null;uniqueIndex:idx_group_capability" json:"group_id"`
	Codename string `gorm:"size:100;not null;uniqueIndex:idx_group_capability" json:"codename"`
}

// UserFilter mirrors the user list query parameters.
type UserFilter struct {
	Role      access.Role
	Phone     string
	FirstName string
	LastName  string
}
