// ABOUTME: Store interface and data types for huddle persistence
// ABOUTME: Defines User, Conversation, Message and the transactional Store interface

package store

import (
	"context"
	"errors"
	"math"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrUserExists is returned when creating a user whose id or username is taken
var ErrUserExists = errors.New("user already exists")

// ErrConversationExists is returned when creating a conversation whose id is taken.
// Callers that race to create the same conversation should re-read on this error.
var ErrConversationExists = errors.New("conversation already exists")

// MaxUserID is the largest accepted user id. It keeps the direct conversation
// id of any two users, (s*(s+1))/2 + hi with s the sum of the ids, inside int64.
const MaxUserID int64 = math.MaxInt32

// ValidUserID reports whether id is in 1..MaxUserID.
func ValidUserID(id int64) bool {
	return id > 0 && id <= MaxUserID
}

// User is a registered account. Identity is ID; Username is derived from it.
type User struct {
	ID           int64
	Username     string
	DisplayName  string
	PasswordHash string
	CreatedAt    time.Time
}

// Conversation groups messages between a set of participants.
// Participants is sorted ascending and only ever grows.
type Conversation struct {
	ID           int64
	Title        string
	CreatedAt    time.Time
	Participants []int64
}

// HasParticipant reports whether userID is a member of the conversation.
func (c *Conversation) HasParticipant(userID int64) bool {
	for _, id := range c.Participants {
		if id == userID {
			return true
		}
	}
	return false
}

// Message is a single immutable entry in a conversation.
type Message struct {
	ID             int64
	ConversationID int64
	SenderID       int64
	Content        string
	SentAt         time.Time
}

// UserStore persists user accounts.
type UserStore interface {
	// CreateUser inserts a user. Returns ErrUserExists if the id or username is taken.
	CreateUser(ctx context.Context, user *User) error

	// GetUser returns ErrNotFound if no user has the id.
	GetUser(ctx context.Context, id int64) (*User, error)
}

// Queries is the set of operations available both on the store and inside a transaction.
type Queries interface {
	UserStore

	// CreateConversation inserts the conversation and its initial participants.
	// Returns ErrConversationExists if the id is taken; the existing row is left untouched.
	CreateConversation(ctx context.Context, conv *Conversation) error

	// GetConversation returns the conversation with its participants, or ErrNotFound.
	GetConversation(ctx context.Context, id int64) (*Conversation, error)

	// AddParticipant adds userID to the conversation. Adding an existing member is a no-op.
	// Returns ErrNotFound if the conversation does not exist.
	AddParticipant(ctx context.Context, conversationID, userID int64) error

	// AppendMessage inserts msg and sets msg.ID to the assigned, strictly increasing id.
	// Returns ErrNotFound if the conversation does not exist.
	AppendMessage(ctx context.Context, msg *Message) error

	// ListMessages returns every message in the conversation ordered by SentAt, then ID.
	ListMessages(ctx context.Context, conversationID int64) ([]*Message, error)
}

// Store is the persistence layer.
type Store interface {
	Queries

	// InTx runs fn inside a single transaction. The transaction commits if fn
	// returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(q Queries) error) error

	// Ping checks that the underlying database is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying database resources.
	Close() error
}
