package worker

import (
	"context"

	"github.com/hibiken/asynq"
)

const (
	TaskPushNotification     = "notification:push"
	TaskMarkNotificationRead = "notification:mark_read"
)

/*
This file contains the code that creates tasks and distributes them to the Redis queue.
*/

type TaskDistributor interface {
	DistributeTaskPushNotification(ctx context.Context, payload *PayloadPushNotification, opts ...asynq.Option) error
	DistributeTaskMarkNotificationRead(ctx context.Context, payload *PayloadMarkNotificationRead, opts ...asynq.Option) error
	Close() error
}

type RedisTaskDistributor struct {
	client *asynq.Client // client sends tasks to redis queue.
}

func NewTaskDistributor(redisOpt asynq.RedisClientOpt) TaskDistributor {
	client := asynq.NewClient(redisOpt)

	return &RedisTaskDistributor{
		client: client,
	}
}

func (distributor *RedisTaskDistributor) Close() error {
	return distributor.client.Close()
}
