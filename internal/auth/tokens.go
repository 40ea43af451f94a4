package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sharath018/health-management-backend/internal/access"
	"github.com/sharath018/health-management-backend/internal/apperr"
)

// SessionStore is the redis-backed key store for refresh sessions,
// revoked access tokens and OTP resend cooldowns.
type SessionStore interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
}

type TokenPair struct {
	AccessToken  string `json:"access"`
	RefreshToken string `json:"refresh"`
}

// AccessClaims is what the auth middleware needs from a verified access token.
type AccessClaims struct {
	UserID    uint
	Role      access.Role
	TokenID   string
	ExpiresAt time.Time
}

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

var errInvalidToken = errors.New("invalid token")

func refreshSessionKey(jti string) string { return "session:refresh:" + jti }
func revokedAccessKey(jti string) string  { return "session:revoked:" + jti }
func otpCooldownKey(phone string) string  { return "otp:cooldown:" + phone }

func (s *service) sign(user *User, tokenType string, ttl time.Duration, secret string) (string, string, error) {
	jti := uuid.NewString()
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"role":    string(user.Role),
		"type":    tokenType,
		"jti":     jti,
		"iat":     s.now().Unix(),
		"exp":     s.now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	return signed, jti, err
}

func (s *service) issueTokens(ctx context.Context, user *User) (*TokenPair, error) {
	accessToken, _, err := s.sign(user, tokenTypeAccess, s.accessTTL, s.accessSecret)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	refreshToken, refreshJTI, err := s.sign(user, tokenTypeRefresh, s.refreshTTL, s.refreshSecret)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if err := s.sessions.Set(ctx, refreshSessionKey(refreshJTI), strconv.FormatUint(uint64(user.ID), 10), s.refreshTTL); err != nil {
		return nil, apperr.Internal(fmt.Errorf("store refresh session: %w", err))
	}
	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func (s *service) parse(tokenStr, secret, wantType string) (*AccessClaims, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, errInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims["type"] != wantType {
		return nil, errInvalidToken
	}
	userID, ok := claims["user_id"].(float64)
	if !ok {
		return nil, errInvalidToken
	}
	jti, _ := claims["jti"].(string)
	role, _ := claims["role"].(string)
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil || jti == "" {
		return nil, errInvalidToken
	}
	return &AccessClaims{UserID: uint(userID), Role: access.Role(role), TokenID: jti, ExpiresAt: exp.Time}, nil
}

// ParseAccessToken verifies signature, expiry and revocation.
func (s *service) ParseAccessToken(ctx context.Context, tokenStr string) (*AccessClaims, error) {
	claims, err := s.parse(tokenStr, s.accessSecret, tokenTypeAccess)
	if err != nil {
		return nil, apperr.Authentication("Given token not valid for any token type")
	}
	revoked, err := s.sessions.Exists(ctx, revokedAccessKey(claims.TokenID))
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if revoked {
		return nil, apperr.Authentication("Token has been revoked")
	}
	return claims, nil
}

// Refresh rotates the refresh session and returns a new pair.
func (s *service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.parse(refreshToken, s.refreshSecret, tokenTypeRefresh)
	if err != nil {
		return nil, apperr.Authentication("invalid refresh token")
	}
	if _, err := s.sessions.Get(ctx, refreshSessionKey(claims.TokenID)); err != nil {
		return nil, apperr.Authentication("refresh session expired or logged out")
	}
	user, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil || !user.IsActive {
		return nil, apperr.Authentication("user not found or inactive")
	}
	if err := s.sessions.Delete(ctx, refreshSessionKey(claims.TokenID)); err != nil {
		return nil, apperr.Internal(err)
	}
	return s.issueTokens(ctx, user)
}

// Logout drops the refresh session and revokes the access token until it expires.
func (s *service) Logout(ctx context.Context, actor *access.Actor, accessClaims *AccessClaims, refreshToken string) error {
	if err := access.RequireAuthenticated(actor); err != nil {
		return err
	}
	if refreshToken != "" {
		if rc, err := s.parse(refreshToken, s.refreshSecret, tokenTypeRefresh); err == nil && rc.UserID == actor.UserID {
			if err := s.sessions.Delete(ctx, refreshSessionKey(rc.TokenID)); err != nil {
				return apperr.Internal(err)
			}
		}
	}
	if accessClaims != nil {
		ttl := accessClaims.ExpiresAt.Sub(s.now())
		if ttl > 0 {
			if err := s.sessions.Set(ctx, revokedAccessKey(accessClaims.TokenID), "1", ttl); err != nil {
				return apperr.Internal(err)
			}
		}
	}
	s.audit.LogAction(ctx, actor, "", actor.IDPtr(), "LOGOUT", nil, nil)
	return nil
}
