// ABOUTME: Messaging service orchestrating users, conversations and the ledger
// ABOUTME: Each send resolves or creates its conversation and appends in one store transaction

package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/2389/huddle/internal/chaterr"
	"github.com/2389/huddle/internal/store"
)

// UserDirectory defines what the service needs from the credential store
type UserDirectory interface {
	FindByID(ctx context.Context, id int64) (*store.User, error)
	RequireByID(ctx context.Context, id int64) (*store.User, error)
}

// MessageView is the read-facing projection of a message joined with its
// sender's display name. It is the shape returned over HTTP and published on topics.
type MessageView struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversationId"`
	SenderID       int64     `json:"senderId"`
	SenderName     string    `json:"senderName"`
	Content        string    `json:"content"`
	SentAt         time.Time `json:"sentAt"`
}

func newView(m *store.Message, sender *store.User) *MessageView {
	v := &MessageView{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		SentAt:         m.SentAt,
	}
	if sender != nil {
		v.SenderName = sender.DisplayName
	}
	return v
}

// DirectRequest is a two-party send. ConversationID is advisory: the id
// derived from the two users always wins.
type DirectRequest struct {
	SenderID       int64
	RecipientID    int64
	ConversationID *int64
	Content        string
}

// Service implements sending and reading messages.
type Service struct {
	store  store.Store
	users  UserDirectory
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the clock used to stamp messages.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a new messaging Service
func New(st store.Store, users UserDirectory, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:  st,
		users:  users,
		now:    time.Now,
		logger: logger.With("component", "conversation"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SendBroadcast appends a message to conversationID on behalf of senderID.
// An absent conversation is created as "Conversation <id>" with the sender
// as its only participant.
func (s *Service) SendBroadcast(ctx context.Context, senderID, conversationID int64, content string) (*MessageView, error) {
	if conversationID <= 0 {
		return nil, chaterr.Invalid("Conversation id is required")
	}
	if strings.TrimSpace(content) == "" {
		return nil, chaterr.Invalid("Message content is required")
	}

	sender, err := s.users.RequireByID(ctx, senderID)
	if err != nil {
		return nil, err
	}

	var msg *store.Message
	err = s.store.InTx(ctx, func(q store.Queries) error {
		dir := NewDirectory(q, s.logger)
		if _, err := dir.FindOrCreate(ctx, conversationID, fmt.Sprintf("Conversation %d", conversationID), sender.ID); err != nil {
			return err
		}
		if err := dir.AddParticipant(ctx, conversationID, sender.ID); err != nil {
			return err
		}
		msg, err = NewLedger(q, s.now).Append(ctx, conversationID, sender.ID, content)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("broadcast message stored",
		"message_id", msg.ID,
		"conversation_id", conversationID,
		"sender_id", sender.ID)
	return newView(msg, sender), nil
}

// SendDirect appends a message to the direct conversation between sender and
// recipient, creating it with both users as participants when absent.
func (s *Service) SendDirect(ctx context.Context, req DirectRequest) (*MessageView, error) {
	if req.SenderID <= 0 || req.RecipientID <= 0 {
		return nil, chaterr.Invalid("Sender and recipient are required")
	}
	if req.SenderID > store.MaxUserID || req.RecipientID > store.MaxUserID {
		return nil, chaterr.Invalid("User ids must be between 1 and %d", store.MaxUserID)
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, chaterr.Invalid("Message content is required")
	}

	sender, err := s.users.RequireByID(ctx, req.SenderID)
	if err != nil {
		return nil, err
	}
	recipient, err := s.users.RequireByID(ctx, req.RecipientID)
	if err != nil {
		return nil, err
	}

	requested := lo.FromPtr(req.ConversationID)

	var msg *store.Message
	err = s.store.InTx(ctx, func(q store.Queries) error {
		dir := NewDirectory(q, s.logger)
		conv, err := dir.FindOrCreateDirect(ctx, requested, sender.ID, recipient.ID)
		if err != nil {
			return err
		}
		for _, id := range []int64{sender.ID, recipient.ID} {
			if conv.HasParticipant(id) {
				continue
			}
			if err := dir.AddParticipant(ctx, conv.ID, id); err != nil {
				return err
			}
		}
		msg, err = NewLedger(q, s.now).Append(ctx, conv.ID, sender.ID, req.Content)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("direct message stored",
		"message_id", msg.ID,
		"conversation_id", msg.ConversationID,
		"sender_id", sender.ID,
		"recipient_id", recipient.ID)
	return newView(msg, sender), nil
}

// GetConversation returns the conversation or a chaterr.ErrNotFound.
func (s *Service) GetConversation(ctx context.Context, conversationID int64) (*store.Conversation, error) {
	conv, err := NewDirectory(s.store, s.logger).FindByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, chaterr.NotFound("Conversation %d not found", conversationID)
	}
	return conv, nil
}

// ListConversation returns the conversation's messages in send order. An
// unknown conversation is a chaterr.ErrNotFound.
func (s *Service) ListConversation(ctx context.Context, conversationID int64) ([]*MessageView, error) {
	if _, err := s.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}

	msgs, err := NewLedger(s.store, s.now).ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	senders := make(map[int64]*store.User)
	for _, id := range lo.Uniq(lo.Map(msgs, func(m *store.Message, _ int) int64 { return m.SenderID })) {
		u, err := s.users.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		senders[id] = u
	}

	return lo.Map(msgs, func(m *store.Message, _ int) *MessageView {
		return newView(m, senders[m.SenderID])
	}), nil
}
