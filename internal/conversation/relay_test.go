package conversation

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	topics []string
	msgs   []*MessageView
}

func (r *recordingPublisher) Publish(topic string, msg *MessageView) {
	r.topics = append(r.topics, topic)
	r.msgs = append(r.msgs, msg)
}

func unreachableClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisRelay_DeliverDecodesEnvelope(t *testing.T) {
	local := &recordingPublisher{}
	relay := NewRedisRelay(unreachableClient(t), "", local, nil)

	payload, err := json.Marshal(relayEnvelope{Topic: TopicForConversation(41), Message: makeView(7, 41)})
	require.NoError(t, err)

	relay.deliver(DefaultRelayPrefix+TopicForConversation(41), string(payload))

	require.Len(t, local.msgs, 1)
	assert.Equal(t, TopicForConversation(41), local.topics[0])
	assert.Equal(t, int64(7), local.msgs[0].ID)
}

func TestRedisRelay_DeliverFallsBackToChannelName(t *testing.T) {
	local := &recordingPublisher{}
	relay := NewRedisRelay(unreachableClient(t), "test:", local, nil)

	relay.deliver("test:/topic/public", `{"message":{"id":3}}`)

	require.Len(t, local.topics, 1)
	assert.Equal(t, TopicPublic, local.topics[0])
}

func TestRedisRelay_DeliverDropsMalformed(t *testing.T) {
	local := &recordingPublisher{}
	relay := NewRedisRelay(unreachableClient(t), "", local, nil)

	relay.deliver("huddle:/topic/public", "not json")
	relay.deliver("huddle:/topic/public", `{"topic":"/topic/public"}`)

	assert.Empty(t, local.msgs)
}

func TestRedisRelay_PublishFallsBackToLocalWhenRedisDown(t *testing.T) {
	local := &recordingPublisher{}
	relay := NewRedisRelay(unreachableClient(t), "", local, nil)

	relay.Publish(TopicPublic, makeView(1, 2))

	require.Len(t, local.msgs, 1)
	assert.Equal(t, TopicPublic, local.topics[0])
}

func TestNewRedisClient_BadURL(t *testing.T) {
	_, err := NewRedisClient(t.Context(), "not-a-url")
	assert.Error(t, err)
}
