// ABOUTME: Message ledger appending and reading the ordered messages of a conversation
// ABOUTME: Stamps messages with server time; the store assigns increasing ids

package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2389/huddle/internal/chaterr"
	"github.com/2389/huddle/internal/store"
)

// Ledger appends and lists messages through a store.Queries.
type Ledger struct {
	q   store.Queries
	now func() time.Time
}

// NewLedger creates a ledger over q. A nil clock uses time.Now.
func NewLedger(q store.Queries, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{q: q, now: now}
}

// Append records a message in an existing conversation. Appending to a
// conversation that does not exist is an invalid argument.
func (l *Ledger) Append(ctx context.Context, conversationID, senderID int64, content string) (*store.Message, error) {
	if _, err := l.q.GetConversation(ctx, conversationID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, chaterr.Invalid("Conversation %d does not exist", conversationID)
		}
		return nil, fmt.Errorf("checking conversation %d: %w", conversationID, err)
	}

	msg := &store.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		SentAt:         l.now().UTC(),
	}
	if err := l.q.AppendMessage(ctx, msg); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, chaterr.Invalid("Conversation %d does not exist", conversationID)
		}
		return nil, fmt.Errorf("appending message: %w", err)
	}
	return msg, nil
}

// ListByConversation returns every message of the conversation in send order.
func (l *Ledger) ListByConversation(ctx context.Context, conversationID int64) ([]*store.Message, error) {
	msgs, err := l.q.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("listing messages for conversation %d: %w", conversationID, err)
	}
	return msgs, nil
}
