// ABOUTME: Terminal client for huddle: logs in over HTTP and chats over the WebSocket channel
// ABOUTME: Supports direct chats with a peer and broadcast rooms, with history on join

package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/huddle/internal/client"
)

// target is where typed lines are sent: a peer (direct) or a room (broadcast).
type target struct {
	peer int64
	room int64
}

func (t target) conversationID(self int64) int64 {
	if t.peer > 0 {
		return client.DirectConversationID(self, t.peer)
	}
	return t.room
}

func (t target) String() string {
	if t.peer > 0 {
		return "user " + strconv.FormatInt(t.peer, 10)
	}
	return "room " + strconv.FormatInt(t.room, 10)
}

func main() {
	server := flag.String("server", "http://localhost:8080", "huddle server URL")
	userID := flag.Int64("id", 0, "your user id")
	password := flag.String("password", os.Getenv("HUDDLE_PASSWORD"), "your password (or HUDDLE_PASSWORD)")
	peer := flag.Int64("peer", 0, "user id to chat with directly")
	room := flag.Int64("room", 0, "conversation id to broadcast into")
	flag.Parse()

	if *userID <= 0 || *password == "" {
		fmt.Fprintln(os.Stderr, "usage: huddle-tui -id N -password P (-peer N | -room N)")
		os.Exit(2)
	}
	if (*peer > 0) == (*room > 0) {
		fmt.Fprintln(os.Stderr, "exactly one of -peer or -room is required")
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *server, *userID, *password, target{peer: *peer, room: *room}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nGoodbye!")
}

type session struct {
	api    *client.Client
	stream *client.Stream
	self   int64
}

func run(ctx context.Context, server string, userID int64, password string, tgt target) error {
	api := client.New(server)
	me, err := api.Login(ctx, userID, password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	color.Green("Logged in as %s (%s)", me.DisplayName, me.Username)

	stream, err := api.Dial(ctx, me.UserID)
	if err != nil {
		return err
	}
	defer stream.Close()

	s := &session{api: api, stream: stream, self: me.UserID}
	if err := s.join(ctx, tgt); err != nil {
		return err
	}

	fmt.Println("Type a message and press Enter. /help for commands. Ctrl+C to quit.")
	fmt.Println()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-stream.Messages():
			if !ok {
				color.Yellow("connection closed by server")
				return stream.Err()
			}
			if d.Topic == client.ConversationTopic(tgt.conversationID(s.self)) {
				printMessage(d.Message, s.self)
			}
		case line, ok := <-lines:
			if !ok {
				return <-scanErr
			}
			next, quit, err := s.handleInput(ctx, tgt, strings.TrimSpace(line))
			if err != nil {
				color.Red("[error] %v", err)
			}
			if quit {
				return nil
			}
			tgt = next
		}
	}
}

// handleInput runs one line of input and returns the (possibly changed) target.
func (s *session) handleInput(ctx context.Context, tgt target, input string) (target, bool, error) {
	switch {
	case input == "":
		return tgt, false, nil
	case input == "/quit" || input == "/exit" || input == "/q":
		return tgt, true, nil
	case input == "/help":
		printHelp()
		return tgt, false, nil
	case input == "/history":
		return tgt, false, s.printHistory(ctx, tgt.conversationID(s.self))
	case strings.HasPrefix(input, "/peer "), strings.HasPrefix(input, "/room "):
		next, err := parseTarget(input)
		if err != nil {
			return tgt, false, err
		}
		if err := s.stream.Unsubscribe(client.ConversationTopic(tgt.conversationID(s.self))); err != nil {
			return tgt, false, err
		}
		return next, false, s.join(ctx, next)
	case strings.HasPrefix(input, "/"):
		return tgt, false, fmt.Errorf("unknown command %s", strings.Fields(input)[0])
	}

	var err error
	if tgt.peer > 0 {
		_, err = s.stream.SendDirect(tgt.peer, input)
	} else {
		_, err = s.stream.SendBroadcast(tgt.room, input)
	}
	return tgt, false, err
}

func (s *session) join(ctx context.Context, tgt target) error {
	id := tgt.conversationID(s.self)
	if err := s.stream.Subscribe(client.ConversationTopic(id)); err != nil {
		return err
	}
	color.Cyan("Now chatting with %s (conversation %d)", tgt, id)

	err := s.printHistory(ctx, id)
	if errors.Is(err, client.ErrNotFound) {
		color.HiBlack("  (no history yet)")
		return nil
	}
	return err
}

func (s *session) printHistory(ctx context.Context, conversationID int64) error {
	msgs, err := s.api.History(ctx, conversationID)
	if err != nil {
		return err
	}
	for i := range msgs {
		printMessage(&msgs[i], s.self)
	}
	return nil
}

func parseTarget(input string) (target, error) {
	fields := strings.Fields(input)
	if len(fields) != 2 {
		return target{}, fmt.Errorf("usage: %s <id>", fields[0])
	}
	id, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil || id <= 0 {
		return target{}, fmt.Errorf("invalid id %q", fields[1])
	}
	if fields[0] == "/peer" {
		return target{peer: id}, nil
	}
	return target{room: id}, nil
}

func printMessage(m *client.Message, self int64) {
	ts := color.HiBlackString(m.SentAt.Local().Format("15:04"))
	name := m.SenderName
	if name == "" {
		name = "user " + strconv.FormatInt(m.SenderID, 10)
	}
	if m.SenderID == self {
		name = color.GreenString(name)
	} else {
		name = color.CyanString(name)
	}
	fmt.Printf("%s %s: %s\n", ts, name, m.Content)
}

func printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  /peer <id>  Switch to a direct chat with a user")
	fmt.Println("  /room <id>  Switch to a broadcast room")
	fmt.Println("  /history    Reprint the conversation history")
	fmt.Println("  /help       Show this help")
	fmt.Println("  /quit       Exit (also /exit, /q)")
}
