// ABOUTME: Realtime WebSocket session for the huddle client
// ABOUTME: Subscribe, unsubscribe and send frames, and a channel of delivered messages

package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/2389/huddle/internal/conversation"
)

// TopicPublic receives every broadcast-flow message.
const TopicPublic = conversation.TopicPublic

// ConversationTopic returns the topic for one conversation.
func ConversationTopic(id int64) string {
	return conversation.TopicForConversation(id)
}

// DirectConversationID returns the id the server gives the direct
// conversation between two users.
func DirectConversationID(a, b int64) int64 {
	return conversation.DirectConversationID(a, b)
}

type clientFrame struct {
	Action  string     `json:"action"`
	Topic   string     `json:"topic,omitempty"`
	Message *sendFrame `json:"message,omitempty"`
}

type sendFrame struct {
	ConversationID  *int64 `json:"conversationId,omitempty"`
	SenderID        int64  `json:"senderId"`
	RecipientID     *int64 `json:"recipientId,omitempty"`
	Content         string `json:"content"`
	ClientMessageID string `json:"clientMessageId"`
}

// Delivery is a message received on a subscribed topic.
type Delivery struct {
	Topic   string   `json:"topic"`
	Message *Message `json:"message"`
}

// Stream is an open realtime session. Deliveries arrive on Messages until the
// connection closes, after which Err reports why.
type Stream struct {
	conn     *websocket.Conn
	senderID int64

	writeMu sync.Mutex
	msgs    chan Delivery
	err     atomic.Value // error
}

// Dial opens the realtime channel. senderID is stamped on outgoing sends.
func (c *Client) Dial(ctx context.Context, senderID int64) (*Stream, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing server url: %w", err)
	}
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = "/ws"

	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: errorMessage(resp.Body)}
		}
		return nil, fmt.Errorf("dialing realtime channel: %w", err)
	}

	s := &Stream{conn: conn, senderID: senderID, msgs: make(chan Delivery, 64)}
	go s.readLoop()
	return s, nil
}

func (s *Stream) readLoop() {
	defer close(s.msgs)
	for {
		var d Delivery
		if err := s.conn.ReadJSON(&d); err != nil {
			s.err.Store(err)
			return
		}
		if d.Message != nil {
			s.msgs <- d
		}
	}
}

// Messages returns the delivery channel. It is closed when the stream ends.
func (s *Stream) Messages() <-chan Delivery {
	return s.msgs
}

// Err returns the error that ended the stream, or nil while it is open.
func (s *Stream) Err() error {
	if err, ok := s.err.Load().(error); ok {
		return err
	}
	return nil
}

// Subscribe starts delivery for topic.
func (s *Stream) Subscribe(topic string) error {
	return s.write(clientFrame{Action: "subscribe", Topic: topic})
}

// Unsubscribe stops delivery for topic.
func (s *Stream) Unsubscribe(topic string) error {
	return s.write(clientFrame{Action: "unsubscribe", Topic: topic})
}

// SendDirect sends content to a user. The server reports no errors back; a
// failed send simply never appears on the conversation topic.
func (s *Stream) SendDirect(recipientID int64, content string) (string, error) {
	return s.send(&sendFrame{RecipientID: &recipientID, Content: content})
}

// SendBroadcast sends content into a conversation by id.
func (s *Stream) SendBroadcast(conversationID int64, content string) (string, error) {
	return s.send(&sendFrame{ConversationID: &conversationID, Content: content})
}

// send stamps the sender and a fresh clientMessageId, which it returns.
func (s *Stream) send(f *sendFrame) (string, error) {
	f.SenderID = s.senderID
	f.ClientMessageID = uuid.New().String()
	return f.ClientMessageID, s.write(clientFrame{Action: "send", Message: f})
}

func (s *Stream) write(frame clientFrame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(frame)
}

// Close closes the connection.
func (s *Stream) Close() error {
	s.writeMu.Lock()
	_ = s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.writeMu.Unlock()
	return s.conn.Close()
}
