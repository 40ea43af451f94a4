package userprofile

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/sharath018/health-management-backend/internal/access"
	"github.com/sharath018/health-management-backend/internal/apperr"
	"github.com/sharath018/health-management-backend/internal/auditlog"
	"github.com/sharath018/health-management-backend/internal/auth"
	"github.com/sharath018/health-management-backend/utils"
)

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

// UserStore is the slice of auth.Repository the profile service needs.
type UserStore interface {
	FindByID(ctx context.Context, id uint) (*auth.User, error)
	Update(ctx context.Context, user *auth.User, columns ...string) error
}

type Service interface {
	Get(ctx context.Context, actor *access.Actor) (*ProfileResponse, error)
	GetForUser(ctx context.Context, userID uint) (*ProfileResponse, error)
	Update(ctx context.Context, actor *access.Actor, in ProfileInput) (*ProfileResponse, error)
	UploadImage(ctx context.Context, actor *access.Actor, filename string, body io.Reader, contentType string) (*ProfileResponse, error)
}

type service struct {
	repo  Repository
	users UserStore
	files utils.FileStore
	audit auditlog.Logger
	now   func() time.Time
}

func NewService(repo Repository, users UserStore, files utils.FileStore, audit auditlog.Logger) Service {
	return &service{repo: repo, users: users, files: files, audit: audit, now: time.Now}
}

// Get returns the caller's profile, creating an empty one on first access.
func (s *service) Get(ctx context.Context, actor *access.Actor) (*ProfileResponse, error) {
	if err := access.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	return s.load(ctx, actor, actor.UserID)
}

// GetForUser is used by staff views. It also creates lazily.
func (s *service) GetForUser(ctx context.Context, userID uint) (*ProfileResponse, error) {
	return s.load(ctx, nil, userID)
}

func (s *service) load(ctx context.Context, actor *access.Actor, userID uint) (*ProfileResponse, error) {
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("User not found.")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	p, err := s.getOrCreate(ctx, actor, userID)
	if err != nil {
		return nil, err
	}
	return s.response(user, p), nil
}

func (s *service) getOrCreate(ctx context.Context, actor *access.Actor, userID uint) (*Profile, error) {
	p, err := s.repo.GetByUserID(ctx, userID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Internal(err)
	}
	p = &Profile{UserID: userID}
	p.StampCreate(actor, s.now())
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, apperr.Internal(err)
	}
	return p, nil
}

func (s *service) response(user *auth.User, p *Profile) *ProfileResponse {
	return &ProfileResponse{
		Profile:     *p,
		Username:    user.Username,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		PhoneNumber: user.Phone(),
		Role:        user.Role,
		Age:         p.Age(s.now()),
	}
}

// Update applies in. Address is kept only for patients and specialization
// only for doctors; other roles' values are ignored.
func (s *service) Update(ctx context.Context, actor *access.Actor, in ProfileInput) (*ProfileResponse, error) {
	if err := access.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	user, err := s.users.FindByID(ctx, actor.UserID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	p, err := s.getOrCreate(ctx, actor, actor.UserID)
	if err != nil {
		return nil, err
	}

	if in.DateOfBirth != nil {
		if *in.DateOfBirth == "" {
			p.DateOfBirth = nil
		} else {
			dob, err := time.Parse("2006-01-02", *in.DateOfBirth)
			if err != nil {
				return nil, apperr.Validation("Invalid date_of_birth format. Use YYYY-MM-DD")
			}
			if dob.After(s.now()) {
				return nil, apperr.Validation("date_of_birth cannot be in the future")
			}
			p.DateOfBirth = &dob
		}
	}
	if in.Gender != nil {
		p.Gender = strings.TrimSpace(*in.Gender)
	}
	if in.Address != nil && user.Role == access.RolePatient {
		p.Address = strings.TrimSpace(*in.Address)
	}
	if in.Specialization != nil && user.Role == access.RoleDoctor {
		p.Specialization = strings.TrimSpace(*in.Specialization)
	}
	if in.HeightCm != nil {
		if *in.HeightCm <= 0 {
			return nil, apperr.Validation("height_cm must be positive")
		}
		p.HeightCm = in.HeightCm
	}
	if in.WeightKg != nil {
		if *in.WeightKg <= 0 {
			return nil, apperr.Validation("weight_kg must be positive")
		}
		p.WeightKg = in.WeightKg
	}
	if in.Calories != nil {
		if *in.Calories < 0 {
			return nil, apperr.Validation("calories cannot be negative")
		}
		p.Calories = in.Calories
	}

	nameChanged := false
	if in.FirstName != nil {
		user.FirstName = strings.TrimSpace(*in.FirstName)
		nameChanged = true
	}
	if in.LastName != nil {
		user.LastName = strings.TrimSpace(*in.LastName)
		nameChanged = true
	}
	if nameChanged {
		user.StampUpdate(actor, s.now())
		if err := s.users.Update(ctx, user, "first_name", "last_name", "updated_at", "updated_by_id"); err != nil {
			return nil, apperr.Internal(err)
		}
	}

	p.StampUpdate(actor, s.now())
	err = s.repo.Update(ctx, p)
	s.audit.LogAction(ctx, actor, access.ResourceProfile, &p.ID, "PROFILE_UPDATED", nil, err)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return s.response(user, p), nil
}

func (s *service) UploadImage(ctx context.Context, actor *access.Actor, filename string, body io.Reader, contentType string) (*ProfileResponse, error) {
	if err := access.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	if !utils.HasAllowedExtension(filename, imageExtensions) {
		return nil, apperr.Validation("Unsupported image type. Allowed: %s", strings.Join(imageExtensions, ", "))
	}
	user, err := s.users.FindByID(ctx, actor.UserID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	p, err := s.getOrCreate(ctx, actor, actor.UserID)
	if err != nil {
		return nil, err
	}
	url, err := s.files.Save(ctx, "profile_images", filename, body, contentType)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	p.ImageURL = url
	p.StampUpdate(actor, s.now())
	err = s.repo.Update(ctx, p)
	s.audit.LogAction(ctx, actor, access.ResourceProfile, &p.ID, "PROFILE_IMAGE_UPLOADED", map[string]interface{}{"url": url}, err)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return s.response(user, p), nil
}
