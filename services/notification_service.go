package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sportsfinder/sports-finder/chat"
	"github.com/sportsfinder/sports-finder/repositories"
)

const dispatchBatchSize = 100

// Broadcaster is the hub surface the dispatcher needs.
type Broadcaster interface {
	BroadcastToRoom(room string, messageType string, payload interface{})
}

// NotificationService drains the outbox: undelivered rows are pushed to the
// recipient's websocket room and then marked delivered. Delivery is
// at-least-once; the notification id lets clients drop duplicates.
type NotificationService interface {
	DispatchPending(ctx context.Context) (int, error)
	Run(ctx context.Context, interval time.Duration)
}

type notificationService struct {
	notificationRepo repositories.NotificationRepository
	hub              Broadcaster
	logger           *slog.Logger
}

func NewNotificationService(
	notificationRepo repositories.NotificationRepository,
	hub Broadcaster,
	logger *slog.Logger,
) NotificationService {
	return &notificationService{
		notificationRepo: notificationRepo,
		hub:              hub,
		logger:           logger,
	}
}

func (s *notificationService) DispatchPending(ctx context.Context) (int, error) {
	pending, err := s.notificationRepo.ListUndelivered(ctx, dispatchBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list undelivered notifications: %w", err)
	}

	delivered := 0
	for _, n := range pending {
		s.hub.BroadcastToRoom(chat.UserRoom(n.UserID), chat.TypeNotification, n)

		if err := s.notificationRepo.MarkDelivered(ctx, n.ID, time.Now().UTC()); err != nil {
			s.logger.ErrorContext(ctx, "failed to mark notification delivered",
				slog.String("notification_id", n.ID), slog.Any("error", err))
			continue
		}
		delivered++
	}
	return delivered, nil
}

// Run dispatches on a fixed interval until the context is canceled.
func (s *notificationService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("notification dispatcher started", slog.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("notification dispatcher stopped")
			return
		case <-ticker.C:
			count, err := s.DispatchPending(ctx)
			if err != nil {
				s.logger.ErrorContext(ctx, "notification dispatch failed", slog.Any("error", err))
				continue
			}
			if count > 0 {
				s.logger.DebugContext(ctx, "notifications dispatched", slog.Int("count", count))
			}
		}
	}
}

var _ Broadcaster = (*chat.Hub)(nil)
