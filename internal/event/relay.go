package event

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	relayChannelPrefix  = "fanout"
	relayOutboxSize     = 1024
	relayPublishTimeout = 2 * time.Second
)

type relayEnvelope struct {
	Origin string `json:"origin"`
	Event  Event  `json:"event"`
}

// RedisRelay delivers events to the local hub and forwards them through Redis Pub/Sub
// so hubs of other instances deliver them to their own connections.
type RedisRelay struct {
	hub        *Hub
	client     *redis.Client
	instanceID string
	outbox     chan Event
}

func NewRedisRelay(hub *Hub, client *redis.Client) *RedisRelay {
	return &RedisRelay{
		hub:        hub,
		client:     client,
		instanceID: uuid.NewString(),
		outbox:     make(chan Event, relayOutboxSize),
	}
}

// Send implements EventSender. Local delivery is immediate; the Redis publish is queued
// and dropped if the outbox is full.
func (r *RedisRelay) Send(ev Event) {
	r.hub.Send(ev)

	select {
	case r.outbox <- ev:
	default:
		log.Warn().Str("topic", ev.Topic).Str("event", ev.Type).Msg("relay outbox full, event not forwarded")
	}
}

// Run forwards queued events to Redis and delivers events published by other instances.
// It blocks until ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context) error {
	pubsub := r.client.PSubscribe(ctx, relayChannelPrefix+":*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to relay channels: %w", err)
	}
	log.Info().Str("instance_id", r.instanceID).Msg("fanout relay subscribed to redis ✅")

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev := <-r.outbox:
			r.forward(ctx, ev)

		case msg, ok := <-messages:
			if !ok {
				return fmt.Errorf("relay subscription closed")
			}
			envelope, err := decodeEnvelope([]byte(msg.Payload))
			if err != nil {
				log.Warn().Err(err).Str("channel", msg.Channel).Msg("failed to decode relayed event")
				continue
			}
			if envelope.Origin == r.instanceID {
				continue
			}
			r.hub.Send(envelope.Event)
		}
	}
}

func (r *RedisRelay) forward(ctx context.Context, ev Event) {
	payload, err := json.Marshal(relayEnvelope{Origin: r.instanceID, Event: ev})
	if err != nil {
		log.Error().Err(err).Str("event", ev.Type).Msg("failed to marshal relayed event")
		return
	}

	publishCtx, cancel := context.WithTimeout(ctx, relayPublishTimeout)
	defer cancel()

	if err = r.client.Publish(publishCtx, relayChannel(ev.Topic), payload).Err(); err != nil {
		log.Warn().Err(err).Str("topic", ev.Topic).Str("event", ev.Type).Msg("failed to forward event to redis")
	}
}

func relayChannel(topic string) string {
	if topic == "" {
		return relayChannelPrefix + ":broadcast"
	}
	return relayChannelPrefix + ":" + topic
}

func decodeEnvelope(payload []byte) (relayEnvelope, error) {
	var envelope relayEnvelope

	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()
	if err := decoder.Decode(&envelope); err != nil {
		return envelope, err
	}
	if envelope.Event.Type == "" {
		return envelope, fmt.Errorf("relayed event has no type")
	}

	return envelope, nil
}
