// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Persists users, conversations, participants and messages with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so that TEXT ordering matches chronological ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// dsnParams are applied to every connection. _txlock=immediate makes BEGIN take
// the write lock up front so concurrent find-or-create sequences serialise.
const dsnParams = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// sqlQueries implements Queries against either the database or an open transaction.
type sqlQueries struct {
	db     dbtx
	logger *slog.Logger
}

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	sqlQueries
	conn *sql.DB
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed. ":memory:" opens a private
// in-memory database limited to a single connection.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	memory := path == ":memory:"
	if !memory {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?"+dsnParams)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if memory {
		// each connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	s := &SQLiteStore{
		sqlQueries: sqlQueries{db: db, logger: logger},
		conn:       db,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id            INTEGER PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			display_name  TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			created_at    TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS conversations (
			id         INTEGER PRIMARY KEY,
			title      TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS conversation_participants (
			conversation_id INTEGER NOT NULL REFERENCES conversations(id),
			user_id         INTEGER NOT NULL REFERENCES users(id),
			added_at        TEXT NOT NULL,
			PRIMARY KEY (conversation_id, user_id)
		);

		CREATE INDEX IF NOT EXISTS idx_participants_user
			ON conversation_participants(user_id);

		CREATE TABLE IF NOT EXISTS messages (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id INTEGER NOT NULL REFERENCES conversations(id),
			sender_id       INTEGER NOT NULL REFERENCES users(id),
			content         TEXT NOT NULL,
			sent_at         TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_messages_conversation_sent
			ON messages(conversation_id, sent_at, id);
	`

	_, err := s.conn.Exec(schema)
	return err
}

// InTx runs fn inside a single immediate transaction.
func (s *SQLiteStore) InTx(ctx context.Context, fn func(q Queries) error) (err error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&sqlQueries{db: tx, logger: s.logger}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Warn("rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

// CreateUser inserts a new user.
func (q *sqlQueries) CreateUser(ctx context.Context, user *User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	_, err := q.db.ExecContext(ctx, `
		INSERT INTO users (id, username, display_name, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, user.ID, user.Username, user.DisplayName, user.PasswordHash, formatTime(user.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUserExists
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	q.logger.Debug("created user", "id", user.ID)
	return nil
}

// GetUser retrieves a user by id.
func (q *sqlQueries) GetUser(ctx context.Context, id int64) (*User, error) {
	var u User
	var createdAt string

	err := q.db.QueryRowContext(ctx, `
		SELECT id, username, display_name, password_hash, created_at
		FROM users WHERE id = ?
	`, id).Scan(&u.ID, &u.Username, &u.DisplayName, &u.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing user created_at: %w", err)
	}
	return &u, nil
}

// CreateConversation inserts a conversation and its initial participants.
func (q *sqlQueries) CreateConversation(ctx context.Context, conv *Conversation) error {
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now()
	}

	_, err := q.db.ExecContext(ctx, `
		INSERT INTO conversations (id, title, created_at) VALUES (?, ?, ?)
	`, conv.ID, conv.Title, formatTime(conv.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConversationExists
		}
		return fmt.Errorf("inserting conversation: %w", err)
	}

	for _, userID := range conv.Participants {
		if err := q.insertParticipant(ctx, conv.ID, userID); err != nil {
			return err
		}
	}

	q.logger.Debug("created conversation", "id", conv.ID, "participants", len(conv.Participants))
	return nil
}

// GetConversation retrieves a conversation and its participants.
func (q *sqlQueries) GetConversation(ctx context.Context, id int64) (*Conversation, error) {
	var c Conversation
	var createdAt string

	err := q.db.QueryRowContext(ctx, `
		SELECT id, title, created_at FROM conversations WHERE id = ?
	`, id).Scan(&c.ID, &c.Title, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversation: %w", err)
	}

	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing conversation created_at: %w", err)
	}

	rows, err := q.db.QueryContext(ctx, `
		SELECT user_id FROM conversation_participants
		WHERE conversation_id = ?
		ORDER BY user_id ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("querying participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID int64
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scanning participant: %w", err)
		}
		c.Participants = append(c.Participants, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating participants: %w", err)
	}

	return &c, nil
}

// AddParticipant adds a user to a conversation; re-adding is a no-op.
func (q *sqlQueries) AddParticipant(ctx context.Context, conversationID, userID int64) error {
	exists, err := q.conversationExists(ctx, conversationID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return q.insertParticipant(ctx, conversationID, userID)
}

func (q *sqlQueries) insertParticipant(ctx context.Context, conversationID, userID int64) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO conversation_participants (conversation_id, user_id, added_at)
		VALUES (?, ?, ?)
		ON CONFLICT (conversation_id, user_id) DO NOTHING
	`, conversationID, userID, formatTime(time.Now()))
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrNotFound
		}
		return fmt.Errorf("inserting participant: %w", err)
	}
	return nil
}

func (q *sqlQueries) conversationExists(ctx context.Context, id int64) (bool, error) {
	var one int
	err := q.db.QueryRowContext(ctx, `SELECT 1 FROM conversations WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking conversation: %w", err)
	}
	return true, nil
}

// AppendMessage inserts a message and assigns its id.
func (q *sqlQueries) AppendMessage(ctx context.Context, msg *Message) error {
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now()
	}

	res, err := q.db.ExecContext(ctx, `
		INSERT INTO messages (conversation_id, sender_id, content, sent_at)
		VALUES (?, ?, ?, ?)
	`, msg.ConversationID, msg.SenderID, msg.Content, formatTime(msg.SentAt))
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrNotFound
		}
		return fmt.Errorf("inserting message: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading message id: %w", err)
	}
	msg.ID = id
	return nil
}

// ListMessages returns all messages for a conversation in chronological order.
func (q *sqlQueries) ListMessages(ctx context.Context, conversationID int64) ([]*Message, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, conversation_id, sender_id, content, sent_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY sent_at ASC, id ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		var m Message
		var sentAt string
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &sentAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		if m.SentAt, err = parseTime(sentAt); err != nil {
			return nil, fmt.Errorf("parsing message sent_at: %w", err)
		}
		messages = append(messages, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}

	return messages, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// isUniqueViolation checks if the error is a SQLite UNIQUE or PRIMARY KEY constraint violation
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "PRIMARY KEY constraint failed")
}

func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// Ensure SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)
