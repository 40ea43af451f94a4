package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/sharath018/health-management-backend/config"
	"github.com/sharath018/health-management-backend/internal/access"
	"github.com/sharath018/health-management-backend/internal/apperr"
	"github.com/sharath018/health-management-backend/internal/auditlog"
)

// Messages returned to OTP clients.
const (
	MsgOTPSent          = "OTP sent successfully."
	MsgOTPVerified      = "OTP verified successfully."
	MsgOTPSendFailed    = "Failed to send OTP. Please try again."
	MsgInvalidOTP       = "Invalid OTP. Try again."
	MsgOTPExpired       = "OTP has expired. Please request a new OTP."
	MsgNoPendingOTP     = "User not found or phone number is already verified."
	MsgOTPCooldown      = "Please wait before requesting another OTP."
	MsgAccountInactive  = "This account is inactive."
	MsgPhoneExists      = "A user with this phone number already exists."
	MsgInvalidPassword  = "Invalid credentials."
	MsgUsernameExists   = "A user with this username already exists."
	MsgAccountForbidden = "You are not allowed to create this type of account."
)

var (
	ErrOTPExpired = apperr.Validation(MsgOTPExpired)
	ErrInvalidOTP = apperr.Validation(MsgInvalidOTP)
)

type OTPResult struct {
	Message   string `json:"message"`
	IsNewUser bool   `json:"is_new_user"`
}

type LoginResult struct {
	Message string     `json:"message"`
	Tokens  *TokenPair `json:"tokens"`
	User    *User      `json:"user"`
}

type RegisterInput struct {
	PhoneNumber string
	FirstName   string
	LastName    string
}

// AccountInput creates staff accounts (admins, doctors).
type AccountInput struct {
	Role        access.Role
	Username    string
	PhoneNumber string
	FirstName   string
	LastName    string
	Password    string
}

type Service interface {
	RequestOTP(ctx context.Context, phone string) (*OTPResult, error)
	VerifyOTP(ctx context.Context, phone, code string) (*LoginResult, error)
	Register(ctx context.Context, in RegisterInput) (*User, error)
	Login(ctx context.Context, username, password string) (*LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, actor *access.Actor, accessClaims *AccessClaims, refreshToken string) error
	ParseAccessToken(ctx context.Context, token string) (*AccessClaims, error)

	LoadActor(ctx context.Context, userID uint) (*User, *access.Actor, error)
	GetUser(ctx context.Context, id uint) (*User, error)
	CreateAccount(ctx context.Context, actor *access.Actor, in AccountInput) (*User, error)
	ListUsers(ctx context.Context, actor *access.Actor, filter UserFilter) ([]User, error)
	SetActive(ctx context.Context, actor *access.Actor, id uint, active bool) (*User, error)

	SeedGroups(ctx context.Context, routeResources ...access.Resource) error
	SeedSuperAdmin(ctx context.Context, username, password, phone string) error
}

type service struct {
	repo          Repository
	sessions      SessionStore
	sender        OTPSender
	audit         auditlog.Logger
	accessSecret  string
	refreshSecret string
	accessTTL     time.Duration
	refreshTTL    time.Duration
	otpTTL        time.Duration
	resendAfter   time.Duration
	countryCode   string

	now         func() time.Time
	generateOTP func() string
}

func NewService(r Repository, sessions SessionStore, sender OTPSender, audit auditlog.Logger, cfg *config.Config) Service {
	return &service{
		repo:          r,
		sessions:      sessions,
		sender:        sender,
		audit:         audit,
		accessSecret:  cfg.JWTAccessSecret,
		refreshSecret: cfg.JWTRefreshSecret,
		accessTTL:     time.Duration(cfg.JWTAccessTTLHours) * time.Hour,
		refreshTTL:    time.Duration(cfg.JWTRefreshTTLHours) * time.Hour,
		otpTTL:        time.Duration(cfg.OTPExpiryMinutes) * time.Minute,
		resendAfter:   time.Duration(cfg.OTPResendSeconds) * time.Second,
		countryCode:   cfg.MSG91CountryCode,
		now:           time.Now,
		generateOTP:   randomOTP,
	}
}

func (s *service) phone(raw string) (string, error) {
	p, err := normalizePhone(raw, s.countryCode)
	if err != nil {
		return "", apperr.Validation("%s", err.Error())
	}
	return p, nil
}

var otpColumns = []string{"otp_code_hash", "otp_expires_at"}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// =============================
// OTP
// =============================

// RequestOTP sends a fresh code. An unknown phone self-registers as a patient.
func (s *service) RequestOTP(ctx context.Context, raw string) (*OTPResult, error) {
	phone, err := s.phone(raw)
	if err != nil {
		return nil, err
	}

	if s.resendAfter > 0 {
		fresh, err := s.sessions.SetIfAbsent(ctx, otpCooldownKey(phone), "1", s.resendAfter)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		if !fresh {
			return nil, apperr.Conflict(MsgOTPCooldown)
		}
	}

	user, err := s.repo.FindByPhone(ctx, phone)
	isNew := false
	switch {
	case isNotFound(err):
		user, err = s.newPatient(ctx, phone, "", "")
		if err != nil {
			return nil, err
		}
		isNew = true
	case err != nil:
		return nil, apperr.Internal(err)
	case !user.IsActive:
		return nil, apperr.Forbidden(MsgAccountInactive)
	}

	code := s.generateOTP()
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	expires := s.now().Add(s.otpTTL)
	user.OTPCodeHash = string(hash)
	user.OTPExpiresAt = &expires
	if err := s.repo.Update(ctx, user, otpColumns...); err != nil {
		return nil, apperr.Internal(err)
	}

	if err := s.sender.SendOTP(ctx, phone, code); err != nil {
		_ = s.sessions.Delete(ctx, otpCooldownKey(phone))
		actor := &access.Actor{UserID: user.ID, Role: user.Role}
		s.audit.LogAction(ctx, actor, "", &user.ID, "OTP_SEND_FAILED", nil, err)
		return nil, apperr.Gateway(MsgOTPSendFailed, err)
	}

	return &OTPResult{Message: MsgOTPSent, IsNewUser: isNew}, nil
}

func (s *service) VerifyOTP(ctx context.Context, raw, code string) (*LoginResult, error) {
	phone, err := s.phone(raw)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.FindByPhone(ctx, phone)
	if isNotFound(err) {
		return nil, apperr.NotFound(MsgNoPendingOTP)
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if user.OTPCodeHash == "" || user.OTPExpiresAt == nil {
		return nil, apperr.Validation(MsgNoPendingOTP)
	}
	if !user.IsActive {
		return nil, apperr.Forbidden(MsgAccountInactive)
	}
	if s.now().After(*user.OTPExpiresAt) {
		user.OTPCodeHash = ""
		user.OTPExpiresAt = nil
		if err := s.repo.Update(ctx, user, otpColumns...); err != nil {
			return nil, apperr.Internal(err)
		}
		return nil, ErrOTPExpired
	}
	if bcrypt.CompareHashAndPassword([]byte(user.OTPCodeHash), []byte(code)) != nil {
		return nil, ErrInvalidOTP
	}

	user.IsVerified = true
	user.OTPCodeHash = ""
	user.OTPExpiresAt = nil
	if err := s.repo.Update(ctx, user, append(otpColumns, "is_verified")...); err != nil {
		return nil, apperr.Internal(err)
	}

	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}
	actor := &access.Actor{UserID: user.ID, Role: user.Role}
	s.audit.LogAction(ctx, actor, "", &user.ID, "LOGIN_OTP", nil, nil)
	return &LoginResult{Message: MsgOTPVerified, Tokens: tokens, User: user}, nil
}

// =============================
// Registration and login
// =============================

// Register always yields a patient account.
func (s *service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	phone, err := s.phone(in.PhoneNumber)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.FindByPhone(ctx, phone); err == nil {
		return nil, apperr.Conflict(MsgPhoneExists)
	} else if !isNotFound(err) {
		return nil, apperr.Internal(err)
	}
	return s.newPatient(ctx, phone, in.FirstName, in.LastName)
}

func (s *service) newPatient(ctx context.Context, phone, first, last string) (*User, error) {
	user := &User{
		Username:     strings.TrimPrefix(phone, "+"),
		PhoneNumber:  &phone,
		Role:         access.RolePatient,
		FirstName:    strings.TrimSpace(first),
		LastName:     strings.TrimSpace(last),
		IsActive:     true,
		IsFirstLogin: true,
	}
	if err := s.attachRoleGroup(ctx, user); err != nil {
		return nil, err
	}
	user.StampCreate(nil, s.now())
	err := s.repo.Create(ctx, user)
	s.audit.LogAction(ctx, &access.Actor{UserID: user.ID, Role: user.Role}, access.ResourcePatient, &user.ID, "PATIENT_REGISTERED", map[string]interface{}{"phone": phone}, err)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return user, nil
}

func (s *service) attachRoleGroup(ctx context.Context, user *User) error {
	group, err := s.repo.FindGroupByName(ctx, string(user.Role))
	if err != nil {
		return apperr.Internal(fmt.Errorf("group %q missing, run migrate: %w", user.Role, err))
	}
	user.Groups = []Group{*group}
	return nil
}

// Login authenticates password-holding accounts (staff and the bootstrap superuser).
func (s *service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil || user.PasswordHash == "" {
		return nil, apperr.Authentication(MsgInvalidPassword)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, apperr.Authentication(MsgInvalidPassword)
	}
	if !user.IsActive {
		return nil, apperr.Forbidden(MsgAccountInactive)
	}
	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}
	s.audit.LogAction(ctx, &access.Actor{UserID: user.ID, Role: user.Role}, "", &user.ID, "LOGIN_PASSWORD", nil, nil)
	return &LoginResult{Message: "Login successful.", Tokens: tokens, User: user}, nil
}

// =============================
// Actor resolution
// =============================

// LoadActor resolves the user behind a verified token into an Actor with groups.
func (s *service) LoadActor(ctx context.Context, userID uint) (*User, *access.Actor, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if isNotFound(err) {
		return nil, nil, apperr.Authentication("User not found.")
	}
	if err != nil {
		return nil, nil, apperr.Internal(err)
	}
	if !user.IsActive {
		return nil, nil, apperr.Authentication("User account is disabled.")
	}
	actor := &access.Actor{UserID: user.ID, Role: user.Role}
	for _, g := range user.Groups {
		codenames := make([]string, 0, len(g.Capabilities))
		for _, c := range g.Capabilities {
			codenames = append(codenames, c.Codename)
		}
		parsed, err := access.ParseGroup(g.Name, codenames)
		if err != nil {
			return nil, nil, apperr.Internal(err)
		}
		actor.Groups = append(actor.Groups, parsed)
	}
	return user, actor, nil
}

func (s *service) GetUser(ctx context.Context, id uint) (*User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if isNotFound(err) {
		return nil, apperr.NotFound("User not found.")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return user, nil
}

// =============================
// Account management
// =============================

func (s *service) CreateAccount(ctx context.Context, actor *access.Actor, in AccountInput) (*User, error) {
	if err := access.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	if !in.Role.Valid() {
		return nil, apperr.Validation("unknown role %q", in.Role)
	}
	if !access.CanCreateAccount(actor.Role, in.Role) {
		return nil, apperr.Forbidden(MsgAccountForbidden)
	}
	phone, err := s.phone(in.PhoneNumber)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.FindByPhone(ctx, phone); err == nil {
		return nil, apperr.Conflict(MsgPhoneExists)
	} else if !isNotFound(err) {
		return nil, apperr.Internal(err)
	}

	username := strings.TrimSpace(in.Username)
	if username == "" {
		username = strings.TrimPrefix(phone, "+")
	}
	if _, err := s.repo.FindByUsername(ctx, username); err == nil {
		return nil, apperr.Conflict(MsgUsernameExists)
	} else if !isNotFound(err) {
		return nil, apperr.Internal(err)
	}

	user := &User{
		Username:     username,
		PhoneNumber:  &phone,
		Role:         in.Role,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		IsActive:     true,
		IsVerified:   true,
		IsFirstLogin: false,
	}
	if in.Password != "" {
		if len(in.Password) < 6 {
			return nil, apperr.Validation("password must be at least 6 characters")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		user.PasswordHash = string(hash)
	}
	if err := s.attachRoleGroup(ctx, user); err != nil {
		return nil, err
	}
	user.StampCreate(actor, s.now())

	err = s.repo.Create(ctx, user)
	resource := access.ResourceDoctor
	if in.Role == access.RoleAdmin {
		resource = ""
	}
	s.audit.LogAction(ctx, actor, resource, &user.ID, "ACCOUNT_CREATED", map[string]interface{}{"role": in.Role, "username": username}, err)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return user, nil
}

func (s *service) ListUsers(ctx context.Context, actor *access.Actor, filter UserFilter) ([]User, error) {
	if err := access.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	if !access.CanManageAccounts(actor.Role) {
		return nil, apperr.Forbidden("Only administrators can list users.")
	}
	if filter.Role != "" && !filter.Role.Valid() {
		return nil, apperr.Validation("unknown role %q", filter.Role)
	}
	users, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return users, nil
}

func (s *service) SetActive(ctx context.Context, actor *access.Actor, id uint, active bool) (*User, error) {
	if err := access.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if !access.CanManageTarget(actor.Role, user.Role) {
		return nil, apperr.Forbidden(fmt.Sprintf("You cannot manage %s accounts.", user.Role))
	}
	user.IsActive = active
	user.StampUpdate(actor, s.now())
	err = s.repo.Update(ctx, user, "is_active", "updated_at", "updated_by_id")
	s.audit.LogAction(ctx, actor, "", &user.ID, "ACCOUNT_ACTIVE_CHANGED", map[string]interface{}{"is_active": active}, err)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return user, nil
}

// =============================
// Seeding
// =============================

// SeedGroups writes the default capability matrix, replacing stored sets.
// routeResources are the resources the router gates on; an unregistered
// one fails the seed before anything is written.
func (s *service) SeedGroups(ctx context.Context, routeResources ...access.Resource) error {
	groups := access.DefaultGroups()
	if err := access.ValidateRegistry(groups, routeResources); err != nil {
		return err
	}
	for name, caps := range groups {
		if err := s.repo.ReplaceGroupCapabilities(ctx, name, caps); err != nil {
			return fmt.Errorf("seed group %s: %w", name, err)
		}
	}
	log.Info().Int("groups", len(groups)).Msg("capability groups seeded")
	return nil
}

// SeedSuperAdmin creates the bootstrap superuser when the username is free.
func (s *service) SeedSuperAdmin(ctx context.Context, username, password, phone string) error {
	if _, err := s.repo.FindByUsername(ctx, username); err == nil {
		log.Info().Str("username", username).Msg("superadmin already exists")
		return nil
	} else if !isNotFound(err) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user := &User{
		Username:     username,
		Role:         access.RoleSuperAdmin,
		PasswordHash: string(hash),
		IsSuperuser:  true,
		IsActive:     true,
		IsVerified:   true,
		IsFirstLogin: false,
	}
	if phone != "" {
		normalized, err := s.phone(phone)
		if err != nil {
			return err
		}
		user.PhoneNumber = &normalized
	}
	if err := s.attachRoleGroup(ctx, user); err != nil {
		return err
	}
	user.StampCreate(nil, s.now())
	if err := s.repo.Create(ctx, user); err != nil {
		return err
	}
	log.Info().Str("username", username).Msg("superadmin created")
	return nil
}
