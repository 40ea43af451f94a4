package notification

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/sharath018/health-management-backend/internal/access"
	"github.com/sharath018/health-management-backend/internal/apperr"
	"github.com/sharath018/health-management-backend/internal/events"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Pusher delivers to device tokens and reports tokens that should be dropped.
type Pusher interface {
	Send(ctx context.Context, tokens []string, m Message) (stale []string, err error)
}

type Service interface {
	events.Handler
	Notify(ctx context.Context, m Message) (*InAppNotification, error)
	List(ctx context.Context, actor *access.Actor, unreadOnly bool, limit int) (*Page, error)
	MarkRead(ctx context.Context, actor *access.Actor, id uint) error
	MarkAllRead(ctx context.Context, actor *access.Actor) (int64, error)
	RegisterDevice(ctx context.Context, actor *access.Actor, in DeviceInput) error
	RemoveDevice(ctx context.Context, actor *access.Actor, token string) error
	Subscribe(ctx context.Context, actor *access.Actor) (<-chan string, func() error, error)
}

type service struct {
	repo   Repository
	broker Broker
	push   Pusher
	now    func() time.Time
}

// NewService accepts a nil broker or pusher; that channel is then skipped.
func NewService(repo Repository, broker Broker, push Pusher) Service {
	s := &service{repo: repo, broker: broker, now: time.Now}
	// A typed nil *FCMChannel must not become a non-nil interface.
	if ch, ok := push.(*FCMChannel); !ok || ch != nil {
		s.push = push
	}
	return s
}

// HandleEvent turns a domain event into a notification for its recipient.
func (s *service) HandleEvent(ctx context.Context, evt events.Event) error {
	if evt.UserID == 0 {
		return nil
	}
	_, err := s.Notify(ctx, Message{
		UserID:   evt.UserID,
		Title:    evt.Title,
		Body:     evt.Body,
		Category: string(evt.Type),
	})
	return err
}

// Notify stores the in-app row, then publishes live and pushes. Only the
// store failing is an error; live and push failures are logged.
func (s *service) Notify(ctx context.Context, m Message) (*InAppNotification, error) {
	now := s.now()
	n := &InAppNotification{
		UserID:    m.UserID,
		Title:     m.Title,
		Message:   m.Body,
		Category:  m.Category,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if len(m.Data) > 0 {
		raw, err := json.Marshal(m.Data)
		if err != nil {
			return nil, err
		}
		n.Payload = datatypes.JSON(raw)
	}
	if err := s.repo.CreateInApp(ctx, n); err != nil {
		return nil, err
	}

	if s.broker != nil {
		payload, _ := json.Marshal(n)
		if err := s.broker.Publish(ctx, n.UserID, payload); err != nil {
			log.Warn().Err(err).Uint("user_id", n.UserID).Msg("live notification publish failed")
		}
	}
	if s.push != nil {
		s.pushTo(ctx, m)
	}
	return n, nil
}

func (s *service) pushTo(ctx context.Context, m Message) {
	tokens, err := s.repo.ActiveTokens(ctx, m.UserID)
	if err != nil {
		log.Warn().Err(err).Uint("user_id", m.UserID).Msg("device token lookup failed")
		return
	}
	if len(tokens) == 0 {
		return
	}
	stale, err := s.push.Send(ctx, tokens, m)
	if err != nil {
		log.Warn().Err(err).Uint("user_id", m.UserID).Int("tokens", len(tokens)).Msg("push failed")
	}
	if len(stale) > 0 {
		if err := s.repo.DeactivateTokens(ctx, stale); err != nil {
			log.Warn().Err(err).Msg("deactivate stale tokens failed")
		}
	}
}

func (s *service) List(ctx context.Context, actor *access.Actor, unreadOnly bool, limit int) (*Page, error) {
	if err := access.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	items, err := s.repo.ListInApp(ctx, actor.UserID, unreadOnly, limit)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	unread, err := s.repo.UnreadCount(ctx, actor.UserID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if items == nil {
		items = []InAppNotification{}
	}
	return &Page{Results: items, UnreadCount: unread}, nil
}

func (s *service) MarkRead(ctx context.Context, actor *access.Actor, id uint) error {
	if err := access.RequireAuthenticated(actor); err != nil {
		return err
	}
	err := s.repo.MarkRead(ctx, id, actor.UserID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("Notification not found.")
	}
	if err != nil {
		return apperr.Internal(err)
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, actor *access.Actor) (int64, error) {
	if err := access.RequireAuthenticated(actor); err != nil {
		return 0, err
	}
	n, err := s.repo.MarkAllRead(ctx, actor.UserID)
	if err != nil {
		return 0, apperr.Internal(err)
	}
	return n, nil
}

func (s *service) RegisterDevice(ctx context.Context, actor *access.Actor, in DeviceInput) error {
	if err := access.RequireAuthenticated(actor); err != nil {
		return err
	}
	switch in.DeviceType {
	case "", "android", "ios", "web":
	default:
		return apperr.Validation("device_type must be android, ios or web")
	}
	t := &FCMDeviceToken{
		UserID:      actor.UserID,
		DeviceToken: in.DeviceToken,
		DeviceType:  in.DeviceType,
		DeviceName:  in.DeviceName,
	}
	if err := s.repo.SaveDeviceToken(ctx, t); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

func (s *service) RemoveDevice(ctx context.Context, actor *access.Actor, token string) error {
	if err := access.RequireAuthenticated(actor); err != nil {
		return err
	}
	err := s.repo.RemoveDeviceToken(ctx, actor.UserID, token)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("Device token not found.")
	}
	if err != nil {
		return apperr.Internal(err)
	}
	return nil
}

func (s *service) Subscribe(ctx context.Context, actor *access.Actor) (<-chan string, func() error, error) {
	if err := access.RequireAuthenticated(actor); err != nil {
		return nil, nil, err
	}
	if s.broker == nil {
		return nil, nil, apperr.Gateway("Live notifications are unavailable.", nil)
	}
	ch, closeFn := s.broker.Subscribe(ctx, actor.UserID)
	return ch, closeFn, nil
}
