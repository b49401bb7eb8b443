// Package gateway serves huddle over HTTP and WebSocket.
//
// # Overview
//
// Gateway owns the store, the credential store, the messaging service, the
// in-memory broadcaster and, when configured, the Redis relay and a tsnet
// node. Handlers are mounted on a chi router:
//
//   - GET /health - Liveness check
//   - GET /health/ready - Readiness check (store ping)
//   - POST /api/auth/register - Register {userId, password, displayName}
//   - POST /api/auth/login - Authenticate {userId, password}
//   - GET /api/conversations/{id}/messages - History as MessageView JSON
//   - GET /api/conversations/{id}/transcript - History as an HTML page
//   - GET /ws - Realtime channel
//
// When auth.jwt_secret is set, login returns a token and the history,
// transcript and realtime endpoints require it (Authorization header, or the
// access_token query parameter for browsers).
//
// # Realtime Frames
//
// Clients send JSON frames:
//
//	{"action":"subscribe","topic":"/topic/conversations/41"}
//	{"action":"unsubscribe","topic":"/topic/conversations/41"}
//	{"action":"send","message":{"senderId":3,"recipientId":5,"content":"hi"}}
//
// A send with a recipientId takes the direct flow; otherwise it is broadcast
// to conversationId and also published on /topic/public. The server only ever
// sends {"topic":...,"message":MessageView}. Failed sends are logged and
// dropped without an error frame. A repeated clientMessageId from the same
// sender is ignored for realtime.dedupe_ttl.
//
// # Lifecycle
//
//	gw, err := gateway.New(cfg, logger)
//	err = gw.Run(ctx) // blocks until ctx is cancelled, then shuts down
package gateway
