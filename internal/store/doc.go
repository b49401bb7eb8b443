// Package store provides persistent storage for huddle using SQLite.
//
// # Architecture
//
// Queries holds every read and write operation. Store adds InTx, which runs a
// function against a Queries bound to a single transaction, so a multi-step
// sequence such as "find or create the conversation, then append a message"
// commits or rolls back as one unit.
//
// SQLiteStore is the production implementation. MockStore is an in-memory
// implementation with the same uniqueness and ordering rules for tests.
//
// # Data Models
//
//   - User: registered account keyed by a client-chosen integer id
//   - Conversation: id, title and participant set (conversation_participants join table)
//   - Message: append-only entry with a store-assigned AUTOINCREMENT id
//
// # SQLite Configuration
//
// Connections are opened with:
//
//	_pragma=foreign_keys(1)
//	_pragma=busy_timeout(5000)
//	_pragma=journal_mode(WAL)
//	_txlock=immediate
//
// Immediate transactions take the write lock at BEGIN, so two concurrent sends
// between the same pair of users serialise instead of both trying to create
// the conversation. Timestamps are stored as fixed-width UTC TEXT so ordering
// by sent_at is chronological.
//
// # Error Handling
//
// Common errors:
//
//   - ErrNotFound: Requested entity does not exist
//   - ErrUserExists: User id or username already taken
//   - ErrConversationExists: Conversation id already taken; re-read it
package store
