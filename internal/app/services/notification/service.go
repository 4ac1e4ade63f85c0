// Package notification consumes settlement notification events and keeps a
// per-user record of what was sent.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/R3E-Network/rental_settlement/internal/app/domain/settlement"
	"github.com/R3E-Network/rental_settlement/internal/app/storage"
	"github.com/R3E-Network/rental_settlement/internal/app/system"
	"github.com/R3E-Network/rental_settlement/internal/events"
	"github.com/R3E-Network/rental_settlement/pkg/logger"
)

// Service stores one notification per consumed event.
type Service struct {
	store      storage.NotificationStore
	subscriber events.Subscriber
	log        *logger.Logger
	now        func() time.Time
}

var _ system.Service = (*Service)(nil)

// New creates the consumer. subscriber may be nil when events are not consumed
// in this process.
func New(store storage.NotificationStore, subscriber events.Subscriber, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("notification")
	}
	return &Service{
		store:      store,
		subscriber: subscriber,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Name() string { return "notification-consumer" }

// Start subscribes Handle to the event transport.
func (s *Service) Start(ctx context.Context) error {
	if s.subscriber == nil {
		return nil
	}
	if err := s.subscriber.Subscribe(ctx, s.Handle); err != nil {
		return fmt.Errorf("subscribe notifications: %w", err)
	}
	return nil
}

func (s *Service) Stop(ctx context.Context) error { return nil }

// Handle records event as sent.
func (s *Service) Handle(ctx context.Context, event settlement.NotificationEvent) error {
	if event.RecipientID <= 0 {
		s.log.WithField("event_type", event.Type).Warn("notification without recipient ignored")
		return nil
	}
	if strings.TrimSpace(event.Subject) == "" {
		event.Subject = string(event.Type)
	}

	s.log.WithFields(logrus.Fields{
		"recipient_id":    event.RecipientID,
		"recipient_email": event.RecipientEmail,
		"event_type":      event.Type,
	}).Infof("sending notification: %s", event.Subject)

	_, err := s.store.CreateNotification(ctx, settlement.Notification{
		UserID:         event.RecipientID,
		RecipientEmail: event.RecipientEmail,
		Subject:        event.Subject,
		Message:        event.Message,
		Type:           event.Type,
		Status:         settlement.NotificationSent,
		SentAt:         s.now(),
	})
	if err != nil {
		return fmt.Errorf("store notification: %w", err)
	}
	return nil
}

// ListByUser returns the notifications sent to userID.
func (s *Service) ListByUser(ctx context.Context, userID int64) ([]settlement.Notification, error) {
	if userID <= 0 {
		return nil, errors.New("user id must be positive")
	}
	return s.store.ListNotificationsByUser(ctx, userID)
}
