// Package notification creates per-user notifications tied to auction events and tracks
// their read state.
package notification

import (
	"context"
	"fmt"

	db "github.com/katatrina/auction-engine/internal/db/sqlc"
	"github.com/katatrina/auction-engine/internal/event"
	"github.com/katatrina/auction-engine/internal/worker"
	"github.com/rs/zerolog/log"
)

// Store is the persistent notification store.
type Store interface {
	InsertNotificationTx(ctx context.Context, arg db.CreateNotificationParams) (db.Notification, error)
	MarkNotificationRead(ctx context.Context, arg db.MarkNotificationReadParams) (int64, error)
	MarkAllNotificationsRead(ctx context.Context, recipientID int64) (int64, error)
	CountUnreadNotifications(ctx context.Context, recipientID int64) (int64, error)
	ListNotifications(ctx context.Context, arg db.ListNotificationsParams) ([]db.Notification, error)
}

type Center struct {
	store       Store
	sender      event.EventSender
	distributor worker.TaskDistributor // optional push mirror
}

// NewCenter creates a notification center. distributor may be nil when the push mirror is disabled.
func NewCenter(store Store, sender event.EventSender, distributor worker.TaskDistributor) *Center {
	return &Center{
		store:       store,
		sender:      sender,
		distributor: distributor,
	}
}

// Create persists a new unread notification for the recipient.
func (c *Center) Create(ctx context.Context, recipientID, auctionID int64, message string) (db.Notification, error) {
	notification, err := c.store.InsertNotificationTx(ctx, db.CreateNotificationParams{
		RecipientID: recipientID,
		AuctionID:   auctionID,
		Message:     message,
	})
	if err != nil {
		return notification, fmt.Errorf("failed to create notification: %w", err)
	}

	if c.distributor != nil {
		err = c.distributor.DistributeTaskPushNotification(ctx, &worker.PayloadPushNotification{
			NotificationID: notification.ID,
			RecipientID:    notification.RecipientID,
			AuctionID:      notification.AuctionID,
			Message:        notification.Message,
			CreatedAt:      notification.CreatedAt,
		})
		if err != nil {
			// Bản sao push chỉ là phụ, notification đã được lưu
			log.Warn().Err(err).Int64("notification_id", notification.ID).Msg("failed to enqueue push mirror task")
		}
	}

	return notification, nil
}

// MarkRead marks one notification of the recipient as read. It reports whether anything changed;
// a notification owned by another user is treated like a missing one.
func (c *Center) MarkRead(ctx context.Context, recipientID, notificationID int64) (bool, error) {
	affected, err := c.store.MarkNotificationRead(ctx, db.MarkNotificationReadParams{
		ID:          notificationID,
		RecipientID: recipientID,
	})
	if err != nil {
		return false, fmt.Errorf("failed to mark notification as read: %w", err)
	}

	if affected > 0 {
		c.mirrorRead(ctx, recipientID, notificationID)
		c.publishUnreadCountQuietly(ctx, recipientID)
	}
	return affected > 0, nil
}

// MarkAllRead marks every unread notification of the recipient as read and returns how many changed.
func (c *Center) MarkAllRead(ctx context.Context, recipientID int64) (int64, error) {
	affected, err := c.store.MarkAllNotificationsRead(ctx, recipientID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark all notifications as read: %w", err)
	}

	if affected > 0 {
		c.mirrorRead(ctx, recipientID, 0)
		c.publishUnreadCountQuietly(ctx, recipientID)
	}
	return affected, nil
}

func (c *Center) UnreadCount(ctx context.Context, recipientID int64) (int64, error) {
	count, err := c.store.CountUnreadNotifications(ctx, recipientID)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// List returns the recipient's notifications newest first, unread only unless includeRead is set.
func (c *Center) List(ctx context.Context, recipientID int64, includeRead bool) ([]db.Notification, error) {
	notifications, err := c.store.ListNotifications(ctx, db.ListNotificationsParams{
		RecipientID: recipientID,
		IncludeRead: includeRead,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}

// PublishUnreadCount sends the recipient's current unread count to their user group.
func (c *Center) PublishUnreadCount(ctx context.Context, recipientID int64) error {
	count, err := c.UnreadCount(ctx, recipientID)
	if err != nil {
		return err
	}

	c.sender.Send(event.NewUnreadCountChanged(recipientID, count))
	return nil
}

// mirrorRead propagates a read-state change to the push mirror; notificationID 0 means all.
func (c *Center) mirrorRead(ctx context.Context, recipientID, notificationID int64) {
	if c.distributor == nil {
		return
	}

	err := c.distributor.DistributeTaskMarkNotificationRead(ctx, &worker.PayloadMarkNotificationRead{
		RecipientID:    recipientID,
		NotificationID: notificationID,
	})
	if err != nil {
		log.Warn().Err(err).Int64("user_id", recipientID).Msg("failed to enqueue mark read mirror task")
	}
}

func (c *Center) publishUnreadCountQuietly(ctx context.Context, recipientID int64) {
	if err := c.PublishUnreadCount(ctx, recipientID); err != nil {
		log.Warn().Err(err).Int64("user_id", recipientID).Msg("failed to publish unread count")
	}
}
