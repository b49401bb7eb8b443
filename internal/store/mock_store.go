// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite, mirroring its uniqueness and ordering rules

package store

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
// InTx serialises transactions and restores the previous state when fn fails.
type MockStore struct {
	txMu sync.Mutex

	mu            sync.RWMutex
	users         map[int64]*User
	usernames     map[string]int64
	conversations map[int64]*Conversation
	messages      map[int64][]*Message // keyed by conversation ID
	nextMessageID int64

	// PingErr, when set, is returned from Ping.
	PingErr error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		users:         make(map[int64]*User),
		usernames:     make(map[string]int64),
		conversations: make(map[int64]*Conversation),
		messages:      make(map[int64][]*Message),
	}
}

// CreateUser stores a new user.
func (m *MockStore) CreateUser(ctx context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[user.ID]; ok {
		return ErrUserExists
	}
	if _, ok := m.usernames[user.Username]; ok {
		return ErrUserExists
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	u := *user
	m.users[u.ID] = &u
	m.usernames[u.Username] = u.ID
	return nil
}

// GetUser retrieves a user by ID.
func (m *MockStore) GetUser(ctx context.Context, id int64) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *u
	return &out, nil
}

// CreateConversation stores a new conversation with its initial participants.
func (m *MockStore) CreateConversation(ctx context.Context, conv *Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.conversations[conv.ID]; ok {
		return ErrConversationExists
	}
	for _, userID := range conv.Participants {
		if _, ok := m.users[userID]; !ok {
			return ErrNotFound
		}
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now()
	}

	c := *conv
	c.Participants = sortedUnique(conv.Participants)
	m.conversations[c.ID] = &c
	return nil
}

// GetConversation retrieves a conversation by ID.
func (m *MockStore) GetConversation(ctx context.Context, id int64) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *c
	out.Participants = slices.Clone(c.Participants)
	return &out, nil
}

// AddParticipant adds a user to a conversation if not already present.
func (m *MockStore) AddParticipant(ctx context.Context, conversationID, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.conversations[conversationID]
	if !ok {
		return ErrNotFound
	}
	if _, ok := m.users[userID]; !ok {
		return ErrNotFound
	}
	c.Participants = sortedUnique(append(c.Participants, userID))
	return nil
}

// AppendMessage stores a message and assigns the next id.
func (m *MockStore) AppendMessage(ctx context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.conversations[msg.ConversationID]; !ok {
		return ErrNotFound
	}
	if _, ok := m.users[msg.SenderID]; !ok {
		return ErrNotFound
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now()
	}

	m.nextMessageID++
	msg.ID = m.nextMessageID

	stored := *msg
	m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], &stored)
	return nil
}

// ListMessages returns copies of a conversation's messages ordered by SentAt, then ID.
func (m *MockStore) ListMessages(ctx context.Context, conversationID int64) ([]*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored := m.messages[conversationID]
	result := make([]*Message, 0, len(stored))
	for _, msg := range stored {
		c := *msg
		result = append(result, &c)
	}

	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].SentAt.Equal(result[j].SentAt) {
			return result[i].SentAt.Before(result[j].SentAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// InTx runs fn against the mock itself. Transactions are serialised, and a
// failing fn rolls the users, conversations and messages back to their prior state.
func (m *MockStore) InTx(ctx context.Context, fn func(q Queries) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	snap := m.snapshot()
	if err := fn(m); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

// Ping returns PingErr.
func (m *MockStore) Ping(ctx context.Context) error {
	return m.PingErr
}

// Close is a no-op for the mock store.
func (m *MockStore) Close() error {
	return nil
}

type mockSnapshot struct {
	users         map[int64]*User
	usernames     map[string]int64
	conversations map[int64]*Conversation
	messages      map[int64][]*Message
	nextMessageID int64
}

func (m *MockStore) snapshot() mockSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	convs := make(map[int64]*Conversation, len(m.conversations))
	for id, c := range m.conversations {
		cc := *c
		cc.Participants = slices.Clone(c.Participants)
		convs[id] = &cc
	}
	msgs := make(map[int64][]*Message, len(m.messages))
	for id, list := range m.messages {
		msgs[id] = slices.Clone(list)
	}

	return mockSnapshot{
		users:         maps.Clone(m.users),
		usernames:     maps.Clone(m.usernames),
		conversations: convs,
		messages:      msgs,
		nextMessageID: m.nextMessageID,
	}
}

func (m *MockStore) restore(s mockSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.users = s.users
	m.usernames = s.usernames
	m.conversations = s.conversations
	m.messages = s.messages
	m.nextMessageID = s.nextMessageID
}

func sortedUnique(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

// Ensure MockStore implements Store
var _ Store = (*MockStore)(nil)
