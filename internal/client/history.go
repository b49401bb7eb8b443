// ABOUTME: Conversation history retrieval for the huddle client
// ABOUTME: Wraps GET /api/conversations/{id}/messages

package client

import (
	"context"
	"fmt"
	"net/http"
)

// History returns a conversation's messages in send order. An unknown
// conversation yields an error matching ErrNotFound.
func (c *Client) History(ctx context.Context, conversationID int64) ([]Message, error) {
	var msgs []Message
	path := fmt.Sprintf("/api/conversations/%d/messages", conversationID)
	if err := c.do(ctx, http.MethodGet, path, nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}
