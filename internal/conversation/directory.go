// ABOUTME: Conversation directory resolving and creating conversations by id
// ABOUTME: Derives a canonical, order-independent id for two-party direct conversations

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/2389/huddle/internal/chaterr"
	"github.com/2389/huddle/internal/store"
)

// DirectConversationID returns the conversation id shared by users a and b.
// It is symmetric and injective over unordered pairs of ids in 0..store.MaxUserID:
// with lo=min(a,b), hi=max(a,b) and s=lo+hi it returns s*(s+1)/2 + hi.
// Larger ids overflow; callers validate with store.ValidUserID first.
func DirectConversationID(a, b int64) int64 {
	lo, hi := min(a, b), max(a, b)
	s := lo + hi
	return s*(s+1)/2 + hi
}

// DirectTitle is the title given to a newly created direct conversation.
func DirectTitle(a, b int64) string {
	return fmt.Sprintf("Direct chat %d-%d", min(a, b), max(a, b))
}

// Directory resolves conversations against a store.Queries, which may be bound
// to a transaction.
type Directory struct {
	q      store.Queries
	logger *slog.Logger
}

// NewDirectory creates a directory over q. Pass nil logger for default.
func NewDirectory(q store.Queries, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{q: q, logger: logger}
}

// FindByID returns the conversation, or nil with no error if it does not exist.
func (d *Directory) FindByID(ctx context.Context, id int64) (*store.Conversation, error) {
	conv, err := d.q.GetConversation(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting conversation %d: %w", id, err)
	}
	return conv, nil
}

// FindOrCreate returns the conversation at id, creating it with title and the
// seed participants when absent. A concurrent create of the same id is
// resolved by re-reading the winner's row.
func (d *Directory) FindOrCreate(ctx context.Context, id int64, title string, seed ...int64) (*store.Conversation, error) {
	conv, err := d.FindByID(ctx, id)
	if err != nil || conv != nil {
		return conv, err
	}

	conv = &store.Conversation{
		ID:           id,
		Title:        title,
		Participants: seed,
	}
	err = d.q.CreateConversation(ctx, conv)
	switch {
	case err == nil:
		d.logger.Info("conversation created", "conversation_id", id, "title", title)
		return conv, nil
	case errors.Is(err, store.ErrConversationExists):
		d.logger.Debug("conversation created concurrently, re-reading", "conversation_id", id)
		existing, err := d.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, fmt.Errorf("conversation %d vanished after duplicate create", id)
		}
		return existing, nil
	default:
		return nil, fmt.Errorf("creating conversation %d: %w", id, err)
	}
}

// FindOrCreateDirect returns the direct conversation between a and b, creating
// it with both users as participants when absent. The id is always
// DirectConversationID(a, b); a non-zero requested id that disagrees is
// discarded and logged.
func (d *Directory) FindOrCreateDirect(ctx context.Context, requested, a, b int64) (*store.Conversation, error) {
	if !store.ValidUserID(a) || !store.ValidUserID(b) {
		return nil, chaterr.Invalid("User ids must be between 1 and %d", store.MaxUserID)
	}
	canonical := DirectConversationID(a, b)
	if requested != 0 && requested != canonical {
		d.logger.Warn("discarding client conversation id for direct message",
			"requested", requested,
			"canonical", canonical,
			"user_a", a,
			"user_b", b)
	}

	return d.FindOrCreate(ctx, canonical, DirectTitle(a, b), min(a, b), max(a, b))
}

// AddParticipant adds userID to the conversation. Re-adding is a no-op.
func (d *Directory) AddParticipant(ctx context.Context, conversationID, userID int64) error {
	err := d.q.AddParticipant(ctx, conversationID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return chaterr.NotFound("Conversation %d not found", conversationID)
	}
	if err != nil {
		return fmt.Errorf("adding participant %d to conversation %d: %w", userID, conversationID, err)
	}
	return nil
}
