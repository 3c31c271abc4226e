package pubsub

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ChannelSubmissions is the firehose channel carrying every lifecycle event
const ChannelSubmissions = "submissions"

// Bus publishes submission lifecycle events to Redis pub/sub and to the
// local WebSocket hub. Publishing is best-effort; a failed publish never
// affects the submission run itself.
type Bus struct {
	rdb   *redis.Client
	log   *zap.Logger
	ctx   context.Context
	wsHub WSHub
}

type WSHub interface {
	Publish(channel string, message map[string]interface{})
}

func New(rdb *redis.Client, log *zap.Logger) *Bus {
	return &Bus{
		rdb: rdb,
		log: log,
		ctx: context.Background(),
	}
}

// SetWSHub sets the WebSocket hub for event broadcasting
func (b *Bus) SetWSHub(hub WSHub) {
	b.wsHub = hub
}

// PublishSubmission publishes an event to a submission's own channel and to
// the firehose channel
func (b *Bus) PublishSubmission(submissionID string, event map[string]interface{}) error {
	if err := b.Publish("submission:"+submissionID, event); err != nil {
		return err
	}
	return b.Publish(ChannelSubmissions, event)
}

// PublishForm publishes an event to a form's channel
func (b *Bus) PublishForm(formName string, event map[string]interface{}) error {
	return b.Publish("form:"+formName, event)
}

// Publish publishes an event to a channel
func (b *Bus) Publish(channel string, event map[string]interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if err := b.rdb.Publish(b.ctx, channel, data).Err(); err != nil {
		b.log.Error("Failed to publish event", zap.String("channel", channel), zap.Error(err))
		return err
	}

	// Broadcast to WebSocket hub if available
	if b.wsHub != nil {
		b.wsHub.Publish(channel, event)
	}

	b.log.Debug("Published event", zap.String("channel", channel), zap.String("event", string(data)))
	return nil
}
