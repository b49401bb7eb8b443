// Package client is a Go client for a huddle server.
//
// Client covers the HTTP API (Register, Login, History). Dial opens a Stream
// on the realtime channel:
//
//	c := client.New("http://localhost:8080")
//	me, err := c.Login(ctx, 3, "secret")
//	s, err := c.Dial(ctx, me.UserID)
//	_ = s.Subscribe(client.ConversationTopic(client.DirectConversationID(3, 5)))
//	_, _ = s.SendDirect(5, "hi")
//	for d := range s.Messages() { ... }
//
// Sends are fire and forget: the server never reports a failed send, so a
// caller that needs confirmation waits for its message on the topic.
package client
