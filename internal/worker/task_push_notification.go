package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

// PayloadPushNotification contains the notification data mirrored to Firestore.
type PayloadPushNotification struct {
	NotificationID int64     `json:"notification_id"`
	RecipientID    int64     `json:"recipient_id"`
	AuctionID      int64     `json:"auction_id"`
	Message        string    `json:"message"`
	CreatedAt      time.Time `json:"created_at"`
}

func (distributor *RedisTaskDistributor) DistributeTaskPushNotification(
	ctx context.Context,
	payload *PayloadPushNotification,
	opts ...asynq.Option,
) error {
	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal task payload: %w", err)
	}

	// Task ID theo notification ID để không enqueue trùng
	taskID := fmt.Sprintf("notification:push:%d", payload.NotificationID)
	task := asynq.NewTask(TaskPushNotification, jsonPayload, append(opts, asynq.TaskID(taskID))...)
	info, err := distributor.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	log.Info().Str("type", task.Type()).Str("task_id", taskID).
		Str("queue", info.Queue).Int("max_retry", info.MaxRetry).Msg("task enqueued")

	return nil
}

func (processor *RedisTaskProcessor) ProcessTaskPushNotification(
	ctx context.Context,
	task *asynq.Task,
) error {
	var payload PayloadPushNotification
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", asynq.SkipRetry)
	}

	// Document ID là notification ID nên retry sẽ ghi đè thay vì tạo bản sao
	docID := strconv.FormatInt(payload.NotificationID, 10)
	_, err := processor.firestoreClient.Collection(notificationsCollection).Doc(docID).Set(ctx, map[string]interface{}{
		"notificationID": payload.NotificationID,
		"recipientID":    strconv.FormatInt(payload.RecipientID, 10),
		"auctionID":      strconv.FormatInt(payload.AuctionID, 10),
		"message":        payload.Message,
		"isRead":         false,
		"createdAt":      payload.CreatedAt,
	})
	if err != nil {
		log.Error().Err(err).Int64("notification_id", payload.NotificationID).Msg("failed to mirror notification")
		return err
	}

	log.Info().Str("type", task.Type()).
		Int64("notification_id", payload.NotificationID).Msg("task processed")

	return nil
}
