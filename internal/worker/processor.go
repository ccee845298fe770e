package worker

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

/*
 This file contains code that picks up the tasks from the Redis queue and processes them.
*/

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
)

const notificationsCollection = "notifications"

type RedisTaskProcessor struct {
	server          *asynq.Server
	firestoreClient *firestore.Client
}

func NewRedisTaskProcessor(ctx context.Context, redisOpt asynq.RedisClientOpt, firebaseApp *firebase.App) (*RedisTaskProcessor, error) {
	firestoreClient, err := firebaseApp.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Queues: map[string]int{
				QueueCritical: 10,
				QueueDefault:  5,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Error().Err(err).Str("type", task.Type()).
					Bytes("payload", task.Payload()).Msg("process task failed")
			}),
			Logger: NewLogger(),
		},
	)

	return &RedisTaskProcessor{
		server:          server,
		firestoreClient: firestoreClient,
	}, nil
}

// Start registers the task handlers for the mux, attaches the mux to the asynq server, and starts the server.
func (processor *RedisTaskProcessor) Start() error {
	mux := asynq.NewServeMux()

	mux.HandleFunc(TaskPushNotification, processor.ProcessTaskPushNotification)
	mux.HandleFunc(TaskMarkNotificationRead, processor.ProcessTaskMarkNotificationRead)

	return processor.server.Start(mux)
}

// Shutdown stops the asynq server and releases the firestore client.
func (processor *RedisTaskProcessor) Shutdown() {
	processor.server.Shutdown()
	if err := processor.firestoreClient.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close firestore client")
	}
}
