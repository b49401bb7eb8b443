// ABOUTME: Redis pub/sub relay sharing topic fan-out between gateway instances
// ABOUTME: Publishes to Redis and feeds every instance's local Broadcaster from a pattern subscription

package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRelayPrefix namespaces relay channels in Redis.
const DefaultRelayPrefix = "huddle:"

// publishTimeout bounds a single Redis PUBLISH.
const publishTimeout = 2 * time.Second

// relayEnvelope is the Redis payload. The topic is carried in the body as
// well as the channel name so the prefix can change without reparsing.
type relayEnvelope struct {
	Topic   string       `json:"topic"`
	Message *MessageView `json:"message"`
}

// RedisRelay implements Publisher across instances. Messages published here go
// to Redis; Run delivers everything received from Redis to the local broadcaster,
// including this instance's own messages. If Redis is unavailable the message
// is delivered locally only.
type RedisRelay struct {
	client *redis.Client
	prefix string
	local  Publisher
	logger *slog.Logger
}

// NewRedisRelay creates a relay. Pass an empty prefix for DefaultRelayPrefix.
func NewRedisRelay(client *redis.Client, prefix string, local Publisher, logger *slog.Logger) *RedisRelay {
	if logger == nil {
		logger = slog.Default()
	}
	if prefix == "" {
		prefix = DefaultRelayPrefix
	}
	return &RedisRelay{
		client: client,
		prefix: prefix,
		local:  local,
		logger: logger.With("component", "relay"),
	}
}

// NewRedisClient parses a redis:// URL and verifies the server responds.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// Publish sends msg to every instance subscribed to topic.
func (r *RedisRelay) Publish(topic string, msg *MessageView) {
	payload, err := json.Marshal(relayEnvelope{Topic: topic, Message: msg})
	if err != nil {
		r.logger.Error("encoding relay envelope", "error", err, "topic", topic)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := r.client.Publish(ctx, r.prefix+topic, payload).Err(); err != nil {
		r.logger.Warn("redis publish failed, delivering locally", "error", err, "topic", topic)
		r.local.Publish(topic, msg)
	}
}

// Run consumes the relay pattern subscription until ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context) error {
	pubsub := r.client.PSubscribe(ctx, r.prefix+"*")
	defer pubsub.Close()

	// wait for the subscription to be confirmed before reporting ready
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribing to relay channels: %w", err)
	}
	r.logger.Info("relay subscribed", "pattern", r.prefix+"*")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			r.deliver(m.Channel, m.Payload)
		}
	}
}

func (r *RedisRelay) deliver(channel, payload string) {
	var env relayEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil || env.Message == nil {
		r.logger.Warn("dropping malformed relay payload", "channel", channel, "error", err)
		return
	}
	if env.Topic == "" {
		env.Topic = strings.TrimPrefix(channel, r.prefix)
	}
	r.local.Publish(env.Topic, env.Message)
}

var _ Publisher = (*RedisRelay)(nil)
