// ABOUTME: Unit tests for MockStore to ensure behavior matches SQLiteStore
// ABOUTME: Focuses on copy semantics and rollback specific to the in-memory implementation

package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockStore_ReturnsCopies(t *testing.T) {
	s := NewMockStore()
	ctx := t.Context()
	seedUsers(t, s, 1, 2)
	require.NoError(t, s.CreateConversation(ctx, &Conversation{ID: 1, Title: "c", Participants: []int64{1}}))

	conv, err := s.GetConversation(ctx, 1)
	require.NoError(t, err)
	conv.Participants[0] = 99
	conv.Title = "mutated"

	again, err := s.GetConversation(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "c", again.Title)
	assert.Equal(t, []int64{1}, again.Participants)
}

func TestMockStore_InTxRollbackRestoresMessageIDs(t *testing.T) {
	s := NewMockStore()
	ctx := t.Context()
	seedUsers(t, s, 1)
	require.NoError(t, s.CreateConversation(ctx, &Conversation{ID: 1, Title: "c", Participants: []int64{1}}))

	err := s.InTx(ctx, func(q Queries) error {
		if err := q.AppendMessage(ctx, &Message{ConversationID: 1, SenderID: 1, Content: "lost"}); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)

	msg := &Message{ConversationID: 1, SenderID: 1, Content: "kept"}
	require.NoError(t, s.AppendMessage(ctx, msg))
	assert.Equal(t, int64(1), msg.ID)

	msgs, err := s.ListMessages(ctx, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "kept", msgs[0].Content)
}

func TestMockStore_PingErr(t *testing.T) {
	s := NewMockStore()
	assert.NoError(t, s.Ping(t.Context()))

	s.PingErr = errors.New("down")
	assert.Error(t, s.Ping(t.Context()))
}
