// Package conversation implements conversations, messages and their realtime
// fan-out.
//
// # Overview
//
// The package sits between the HTTP/WebSocket handlers in gateway and the
// store. It owns three pieces:
//
//   - Directory: resolves conversations by id and creates them on first use
//   - Ledger: appends server-stamped messages and reads them back in order
//   - Service: the send and list flows built from the two above
//
// # Service
//
//	svc := conversation.New(store, credentials, logger)
//
// Key operations:
//
//   - SendDirect(ctx, req): two-party message; the conversation id is
//     DirectConversationID(sender, recipient) whatever the client asked for
//   - SendBroadcast(ctx, sender, id, content): message to an explicit
//     conversation id, created as "Conversation <id>" when absent
//   - ListConversation(ctx, id): MessageViews in send order
//
// Every send runs its find-or-create and append inside one store.InTx so two
// concurrent first messages between the same users create the conversation once.
//
// # Direct Conversation Ids
//
// DirectConversationID is a Cantor pairing of the sorted ids:
//
//	lo, hi := min(a, b), max(a, b)
//	s := lo + hi
//	id := s*(s+1)/2 + hi
//
// For users 3 and 5 that is 41.
//
// # Fan-out
//
// After a send commits, the gateway publishes the MessageView to
// TopicForConversation(id), and broadcast sends also to TopicPublic.
// Broadcaster delivers in process; RedisRelay routes publishes through Redis so
// every instance's Broadcaster sees them.
package conversation
