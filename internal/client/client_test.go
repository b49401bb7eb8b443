// ABOUTME: End-to-end tests for the huddle client against an in-process gateway
// ABOUTME: Covers register/login, history, token handling and realtime delivery

package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/2389/huddle/internal/config"
	"github.com/2389/huddle/internal/conversation"
	"github.com/2389/huddle/internal/gateway"
	"github.com/2389/huddle/internal/store"
)

func startServer(t *testing.T, jwtSecret string) string {
	t.Helper()
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "huddle.db")
	cfg.Auth.BcryptCost = bcrypt.MinCost
	cfg.Auth.JWTSecret = jwtSecret

	gw, err := gateway.New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	srv := httptest.NewServer(gw.Handler())
	t.Cleanup(func() {
		srv.Close()
		_ = gw.Shutdown(context.Background())
	})
	return srv.URL
}

func nextDelivery(t *testing.T, s *Stream) Delivery {
	t.Helper()
	select {
	case d, ok := <-s.Messages():
		require.True(t, ok, "stream closed: %v", s.Err())
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
		return Delivery{}
	}
}

func TestDirectConversationID(t *testing.T) {
	assert.Equal(t, int64(41), DirectConversationID(3, 5))
	assert.Equal(t, DirectConversationID(9, 2), DirectConversationID(2, 9))

	for _, pair := range [][2]int64{{1, 2}, {98295, 98312}, {store.MaxUserID, store.MaxUserID}} {
		assert.Equal(t, conversation.DirectConversationID(pair[0], pair[1]), DirectConversationID(pair[0], pair[1]))
	}
	assert.Equal(t, conversation.TopicForConversation(41), ConversationTopic(41))
	assert.Equal(t, conversation.TopicPublic, TopicPublic)
}

func TestRegisterLoginAndErrors(t *testing.T) {
	url := startServer(t, "")
	c := New(url)
	ctx := t.Context()

	user, err := c.Register(ctx, 7, "p", "Alice")
	require.NoError(t, err)
	assert.Equal(t, "user_7", user.Username)

	_, err = c.Register(ctx, 7, "p", "Alice")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.StatusCode)
	assert.Equal(t, "User 7 already exists", apiErr.Message)

	_, err = c.Login(ctx, 7, "wrong")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Invalid credentials", apiErr.Message)

	user, err = c.Login(ctx, 7, "p")
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.DisplayName)
	assert.Empty(t, c.Token())

	_, err = c.History(ctx, 12345)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRealtimeChatRoundTrip(t *testing.T) {
	url := startServer(t, "test-secret-key-for-jwt-signing!")
	ctx := t.Context()

	carol, eve := New(url), New(url)
	_, err := carol.Register(ctx, 3, "p", "Carol")
	require.NoError(t, err)
	_, err = eve.Register(ctx, 5, "p", "Eve")
	require.NoError(t, err)

	// history and realtime need a token once the server has a secret
	_, err = carol.History(ctx, 41)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.StatusCode)

	_, err = carol.Login(ctx, 3, "p")
	require.NoError(t, err)
	require.NotEmpty(t, carol.Token())
	_, err = eve.Login(ctx, 5, "p")
	require.NoError(t, err)

	cs, err := carol.Dial(ctx, 3)
	require.NoError(t, err)
	defer cs.Close()
	es, err := eve.Dial(ctx, 5)
	require.NoError(t, err)
	defer es.Close()

	topic := ConversationTopic(DirectConversationID(3, 5))
	require.NoError(t, cs.Subscribe(topic))
	require.NoError(t, es.Subscribe(topic))

	// subscriptions are processed asynchronously; retry the first send until Eve sees one
	var got Delivery
	require.Eventually(t, func() bool {
		if _, err := cs.SendDirect(5, "hi Eve"); err != nil {
			return false
		}
		select {
		case got = <-es.Messages():
			return true
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)

	assert.Equal(t, topic, got.Topic)
	assert.Equal(t, "Carol", got.Message.SenderName)
	assert.Equal(t, int64(41), got.Message.ConversationID)

	_, err = es.SendDirect(3, "hi Carol")
	require.NoError(t, err)
	for {
		d := nextDelivery(t, cs)
		if d.Message.SenderID == 5 {
			assert.Equal(t, "hi Carol", d.Message.Content)
			break
		}
	}

	history, err := carol.History(ctx, 41)
	require.NoError(t, err)
	require.NotEmpty(t, history)
	assert.Equal(t, "hi Carol", history[len(history)-1].Content)
}

func TestDialWithoutTokenRejected(t *testing.T) {
	url := startServer(t, "test-secret-key-for-jwt-signing!")

	_, err := New(url).Dial(t.Context(), 3)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.StatusCode)
}
