package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	channelPrefix  = "org:"
	publishTimeout = 5 * time.Second
)

// feedEnvelope is the wire form of an event on an organization channel.
type feedEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	At    int64           `json:"at"`
}

// RedisPubSub bridges organization events over Redis pub/sub. The server
// hub uses it for multi-instance fanout; the alert worker uses the publish
// side to push low_stock events into rooms it has no local access to.
type RedisPubSub struct {
	client *redis.Client
	logger *zap.Logger
}

var (
	_ Publisher  = (*RedisPubSub)(nil)
	_ Subscriber = (*RedisPubSub)(nil)
)

// NewRedisPubSub creates a Redis pub/sub bridge for organization events.
func NewRedisPubSub(client *redis.Client, logger *zap.Logger) *RedisPubSub {
	return &RedisPubSub{client: client, logger: logger}
}

func orgChannel(orgID uuid.UUID) string {
	return channelPrefix + orgID.String()
}

// PublishOrganizationEvent sends one event to the organization's channel.
func (r *RedisPubSub) PublishOrganizationEvent(orgID uuid.UUID, event string, payload []byte) error {
	body, err := json.Marshal(feedEnvelope{Event: event, Data: payload, At: time.Now().Unix()})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := r.client.Publish(ctx, orgChannel(orgID), body).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", event, err)
	}
	return nil
}

// SubscribeOrganization listens on an organization's channel and invokes
// handler for every decoded event. Closing the subscription through the
// returned cancel ends the listener goroutine.
func (r *RedisPubSub) SubscribeOrganization(orgID uuid.UUID, handler func(event string, payload []byte)) (func(), error) {
	sub := r.client.Subscribe(context.Background(), orgChannel(orgID))
	if _, err := sub.Receive(context.Background()); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", orgChannel(orgID), err)
	}

	go func() {
		// sub.Channel() is closed by cancel, which ends the range.
		for msg := range sub.Channel() {
			var env feedEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				r.logger.Warn("dropping undecodable feed message", zap.Error(err))
				continue
			}
			handler(env.Event, env.Data)
		}
	}()

	return func() { _ = sub.Close() }, nil
}
