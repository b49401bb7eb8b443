// ABOUTME: WebSocket realtime adapter: topic subscriptions and inbound send frames
// ABOUTME: Routes sends to the messaging service and publishes committed messages to topics

package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"

	"github.com/2389/huddle/internal/auth"
	"github.com/2389/huddle/internal/conversation"
	"github.com/2389/huddle/internal/dedupe"
)

// Client frame actions.
const (
	actionSubscribe   = "subscribe"
	actionUnsubscribe = "unsubscribe"
	actionSend        = "send"
)

// outboundBuffer is the number of server frames queued per connection.
const outboundBuffer = 64

// ClientFrame is a frame sent by a realtime client.
type ClientFrame struct {
	Action  string     `json:"action"`
	Topic   string     `json:"topic,omitempty"`
	Message *SendFrame `json:"message,omitempty"`
}

// SendFrame is the payload of a send action. A positive RecipientID selects the
// direct flow, otherwise the message is broadcast to ConversationID.
type SendFrame struct {
	ConversationID  *int64 `json:"conversationId,omitempty"`
	SenderID        int64  `json:"senderId"`
	RecipientID     *int64 `json:"recipientId,omitempty"`
	Content         string `json:"content"`
	ClientMessageID string `json:"clientMessageId,omitempty"`
}

// ServerFrame delivers a committed message to a topic subscriber.
type ServerFrame struct {
	Topic   string                    `json:"topic"`
	Message *conversation.MessageView `json:"message"`
}

// checkOrigin allows requests without an Origin header (non-browser clients)
// and, when realtime.allowed_origins is set, only the listed origins.
func (g *Gateway) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(g.config.Realtime.AllowedOrigins) == 0 {
		return true
	}
	return lo.Contains(g.config.Realtime.AllowedOrigins, origin)
}

// realtimeConn is one WebSocket client.
type realtimeConn struct {
	g      *Gateway
	conn   *websocket.Conn
	id     string
	logger *slog.Logger

	// userID is the authenticated user, or zero when auth is disabled
	userID int64

	ctx    context.Context
	cancel context.CancelFunc
	out    chan ServerFrame

	mu   sync.Mutex
	subs map[string]context.CancelFunc // topic -> forwarder cancel
}

// handleWebSocket handles GET /ws.
func (g *Gateway) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		g.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(g.connCtx)
	c := &realtimeConn{
		g:      g,
		conn:   conn,
		id:     uuid.New().String(),
		ctx:    ctx,
		cancel: cancel,
		out:    make(chan ServerFrame, outboundBuffer),
		subs:   make(map[string]context.CancelFunc),
	}
	if authCtx := auth.FromContext(r.Context()); authCtx != nil {
		c.userID = authCtx.UserID
	}
	c.logger = g.logger.With("conn_id", c.id, "user_id", c.userID)
	c.logger.Info("realtime client connected", "remote_addr", r.RemoteAddr)

	g.conns.Add(2)
	go func() {
		defer g.conns.Done()
		c.writePump()
	}()
	go func() {
		defer g.conns.Done()
		c.readPump()
	}()
}

// readPump reads client frames until the connection fails or is cancelled.
func (c *realtimeConn) readPump() {
	defer func() {
		c.cancel()
		c.logger.Info("realtime client disconnected")
	}()

	cfg := c.g.config.Realtime
	c.conn.SetReadLimit(cfg.MaxFrameBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(cfg.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(cfg.PongTimeout))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("realtime read error", "error", err)
			}
			return
		}

		var frame ClientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.logger.Warn("dropping malformed frame", "error", err)
			continue
		}
		c.handleFrame(&frame)
	}
}

// writePump sends queued frames and keepalive pings. It owns all writes to conn.
func (c *realtimeConn) writePump() {
	cfg := c.g.config.Realtime
	ticker := time.NewTicker(cfg.PongTimeout * 9 / 10)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.conn.WriteJSON(frame); err != nil {
				c.logger.Warn("realtime write failed", "error", err)
				c.cancel()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.cancel()
				return
			}
		case <-c.ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(time.Second))
			return
		}
	}
}

func (c *realtimeConn) handleFrame(frame *ClientFrame) {
	switch frame.Action {
	case actionSubscribe:
		c.subscribe(frame.Topic)
	case actionUnsubscribe:
		c.unsubscribe(frame.Topic)
	case actionSend:
		if frame.Message == nil {
			c.logger.Warn("dropping send frame without message")
			return
		}
		c.send(frame.Message)
	default:
		c.logger.Warn("dropping frame with unknown action", "action", frame.Action)
	}
}

// subscribe starts forwarding topic messages to this connection. Repeated
// subscriptions to the same topic are ignored.
func (c *realtimeConn) subscribe(topic string) {
	if topic != conversation.TopicPublic {
		if _, ok := conversation.ParseTopic(topic); !ok {
			c.logger.Warn("dropping subscribe to unknown topic", "topic", topic)
			return
		}
	}

	c.mu.Lock()
	if _, ok := c.subs[topic]; ok {
		c.mu.Unlock()
		return
	}
	subCtx, subCancel := context.WithCancel(c.ctx)
	c.subs[topic] = subCancel
	c.mu.Unlock()

	ch, _ := c.g.broadcaster.Subscribe(subCtx, topic)
	c.logger.Debug("subscribed", "topic", topic)

	go func() {
		for msg := range ch {
			select {
			case c.out <- ServerFrame{Topic: topic, Message: msg}:
			case <-subCtx.Done():
				return
			}
		}
	}()
}

func (c *realtimeConn) unsubscribe(topic string) {
	c.mu.Lock()
	cancel, ok := c.subs[topic]
	delete(c.subs, topic)
	c.mu.Unlock()

	if ok {
		cancel()
		c.logger.Debug("unsubscribed", "topic", topic)
	}
}

// send routes an inbound message to the direct or broadcast flow and publishes
// the committed view. Failures are logged and never reported to the client.
func (c *realtimeConn) send(m *SendFrame) {
	senderID := m.SenderID
	if c.userID != 0 {
		if senderID == 0 {
			senderID = c.userID
		}
		if senderID != c.userID {
			c.logger.Warn("dropping send for another user", "sender_id", senderID)
			return
		}
	}

	var dedupeKey string
	if m.ClientMessageID != "" {
		dedupeKey = dedupe.Key(senderID, m.ClientMessageID)
		if c.g.dedupe.CheckAndMark(dedupeKey) {
			c.logger.Debug("dropping duplicate send", "client_message_id", m.ClientMessageID)
			return
		}
	}

	err := c.g.dispatchSend(c.ctx, senderID, m)
	if err != nil {
		if dedupeKey != "" {
			c.g.dedupe.Forget(dedupeKey)
		}
		c.logger.Warn("send failed", "sender_id", senderID, "error", err)
	}
}

// dispatchSend persists a message and publishes it after commit.
func (g *Gateway) dispatchSend(ctx context.Context, senderID int64, m *SendFrame) error {
	if m.RecipientID != nil && *m.RecipientID > 0 {
		view, err := g.conversation.SendDirect(ctx, conversation.DirectRequest{
			SenderID:       senderID,
			RecipientID:    *m.RecipientID,
			ConversationID: m.ConversationID,
			Content:        m.Content,
		})
		if err != nil {
			return err
		}
		g.publisher.Publish(conversation.TopicForConversation(view.ConversationID), view)
		return nil
	}

	var conversationID int64
	if m.ConversationID != nil {
		conversationID = *m.ConversationID
	}
	view, err := g.conversation.SendBroadcast(ctx, senderID, conversationID, m.Content)
	if err != nil {
		return err
	}
	g.publisher.Publish(conversation.TopicForConversation(view.ConversationID), view)
	g.publisher.Publish(conversation.TopicPublic, view)
	return nil
}
