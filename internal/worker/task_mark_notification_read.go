package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"cloud.google.com/go/firestore"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

// PayloadMarkNotificationRead asks the mirror to flip isRead. A zero NotificationID means every
// unread notification of the recipient.
type PayloadMarkNotificationRead struct {
	RecipientID    int64 `json:"recipient_id"`
	NotificationID int64 `json:"notification_id"`
}

func (distributor *RedisTaskDistributor) DistributeTaskMarkNotificationRead(
	ctx context.Context,
	payload *PayloadMarkNotificationRead,
	opts ...asynq.Option,
) error {
	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal task payload: %w", err)
	}

	task := asynq.NewTask(TaskMarkNotificationRead, jsonPayload, opts...)
	info, err := distributor.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	log.Info().Str("type", task.Type()).Str("queue", info.Queue).
		Int("max_retry", info.MaxRetry).Msg("task enqueued")

	return nil
}

func (processor *RedisTaskProcessor) ProcessTaskMarkNotificationRead(
	ctx context.Context,
	task *asynq.Task,
) error {
	var payload PayloadMarkNotificationRead
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", asynq.SkipRetry)
	}

	read := []firestore.Update{{Path: "isRead", Value: true}}
	collection := processor.firestoreClient.Collection(notificationsCollection)

	if payload.NotificationID > 0 {
		// Document có thể chưa được tạo nếu task push còn trong hàng đợi, asynq sẽ thử lại
		docID := strconv.FormatInt(payload.NotificationID, 10)
		if _, err := collection.Doc(docID).Update(ctx, read); err != nil {
			return fmt.Errorf("failed to mark notification %d as read: %w", payload.NotificationID, err)
		}
	} else {
		docs, err := collection.
			Where("recipientID", "==", strconv.FormatInt(payload.RecipientID, 10)).
			Where("isRead", "==", false).
			Documents(ctx).GetAll()
		if err != nil {
			return fmt.Errorf("failed to query unread notifications: %w", err)
		}
		for _, doc := range docs {
			if _, err = doc.Ref.Update(ctx, read); err != nil {
				return fmt.Errorf("failed to mark notification %s as read: %w", doc.Ref.ID, err)
			}
		}
	}

	log.Info().Str("type", task.Type()).Int64("recipient_id", payload.RecipientID).
		Int64("notification_id", payload.NotificationID).Msg("task processed")

	return nil
}
