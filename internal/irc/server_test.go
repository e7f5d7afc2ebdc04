package irc

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"testing"
	"time"
)

func startTestServer(t *testing.T) *Server {
	t.Helper()
	server := NewServer(slog.New(slog.NewTextHandler(io.Discard, nil)), "127.0.0.1", 0, "testgw", "#mesh")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = server.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	deadline := time.Now().Add(2 * time.Second)
	for server.Addr() == nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if server.Addr() == nil {
		t.Fatalf("server did not start listening")
	}

	return server
}

type testClient struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader
}

func dialTestClient(t *testing.T, server *Server) *testClient {
	t.Helper()
	conn, err := net.Dial("tcp", server.Addr().String())
	if err != nil {
		t.Fatalf("dial server: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	return &testClient{t: t, conn: conn, reader: bufio.NewReader(conn)}
}

func (c *testClient) send(line string) {
	c.t.Helper()
	if _, err := c.conn.Write([]byte(line + "\r\n")); err != nil {
		c.t.Fatalf("write %q: %v", line, err)
	}
}

// expect reads lines until one contains substr, failing on timeout.
func (c *testClient) expect(substr string) string {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			c.t.Fatalf("waiting for %q: %v", substr, err)
		}
		if strings.Contains(line, substr) {
			return strings.TrimRight(line, "\r\n")
		}
	}
}

func (c *testClient) register(nick string) {
	c.t.Helper()
	c.send("NICK " + nick)
	c.send("USER " + nick + " 0 * :" + nick)
	c.expect(" 001 ")
	c.expect(" 366 ")
}

func TestServerRegistrationAndAutoJoin(t *testing.T) {
	server := startTestServer(t)
	client := dialTestClient(t, server)

	client.send("USER alice 0 * :Alice Example")
	client.send("NICK alice")

	welcome := client.expect(" 001 alice ")
	if !strings.HasPrefix(welcome, ":testgw ") {
		t.Fatalf("welcome not from server prefix: %q", welcome)
	}
	client.expect("JOIN #mesh")
	client.expect(" 332 alice #mesh ")
	names := client.expect(" 353 alice = #mesh ")
	if !strings.Contains(names, "alice") {
		t.Fatalf("names reply missing own nick: %q", names)
	}
	client.expect(" 366 alice #mesh ")

	if server.SessionCount() != 1 {
		t.Fatalf("expected 1 registered session, got %d", server.SessionCount())
	}
}

func TestServerNickCollisionCaseInsensitive(t *testing.T) {
	server := startTestServer(t)
	first := dialTestClient(t, server)
	first.register("Alice")

	second := dialTestClient(t, server)
	second.send("NICK ALICE")
	second.send("USER other 0 * :Other")
	second.expect(" 433 ")

	if server.SessionCount() != 1 {
		t.Fatalf("expected collision to keep one registered session, got %d", server.SessionCount())
	}
}

func TestServerRoomRelayWithoutSelfEcho(t *testing.T) {
	server := startTestServer(t)
	alice := dialTestClient(t, server)
	alice.register("alice")
	bob := dialTestClient(t, server)
	bob.register("bob")
	alice.expect("bob") // bob's JOIN reaches alice

	alice.send("PRIVMSG #mesh :hello mesh")
	line := bob.expect("PRIVMSG #mesh :hello mesh")
	if !strings.HasPrefix(line, ":alice!") {
		t.Fatalf("relayed line missing sender mask: %q", line)
	}

	// No echo to the sender: nothing arrives for alice before the PONG.
	alice.send("PING :token")
	_ = alice.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		raw, err := alice.reader.ReadString('\n')
		if err != nil {
			t.Fatalf("waiting for PONG: %v", err)
		}
		if strings.Contains(raw, "hello mesh") {
			t.Fatalf("sender received their own message: %q", raw)
		}
		if strings.Contains(raw, "PONG") {
			break
		}
	}
}

func TestServerRoomMessageHookConsumesCommands(t *testing.T) {
	server := startTestServer(t)
	var mu sync.Mutex
	var gotNick, gotText string
	server.OnRoomMessage = func(nick, text string) bool {
		mu.Lock()
		gotNick, gotText = nick, text
		mu.Unlock()

		return strings.HasPrefix(text, "NODES")
	}

	alice := dialTestClient(t, server)
	alice.register("alice")
	bob := dialTestClient(t, server)
	bob.register("bob")
	alice.expect("bob")

	alice.send("PRIVMSG #mesh :NODES")
	alice.send("PRIVMSG #mesh :plain chat")
	bob.expect("PRIVMSG #mesh :plain chat")

	mu.Lock()
	defer mu.Unlock()
	if gotNick != "alice" || gotText != "plain chat" {
		t.Fatalf("hook saw nick=%q text=%q", gotNick, gotText)
	}
}

func TestServerRejectsOversizedLine(t *testing.T) {
	server := startTestServer(t)
	alice := dialTestClient(t, server)
	alice.register("alice")
	bob := dialTestClient(t, server)
	bob.register("bob")
	alice.expect("bob")

	alice.send("PRIVMSG #mesh :" + strings.Repeat("x", 4*maxLineLength))
	alice.expect(" 417 alice ")

	// The connection survives and the oversized message is never relayed.
	alice.send("PING :still-here")
	alice.expect("PONG")

	bob.send("PING :sync")
	_ = bob.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		raw, err := bob.reader.ReadString('\n')
		if err != nil {
			t.Fatalf("waiting for PONG: %v", err)
		}
		if strings.Contains(raw, "xxxx") {
			t.Fatalf("oversized line was relayed: %q", raw[:40])
		}
		if strings.Contains(raw, "PONG") {
			break
		}
	}
}

func TestServerJoinOtherChannelRejected(t *testing.T) {
	server := startTestServer(t)
	client := dialTestClient(t, server)
	client.register("alice")

	client.send("JOIN #elsewhere")
	client.expect(" 403 alice #elsewhere ")
}

func TestServerNoticeToUnknownNickIsNoOp(t *testing.T) {
	server := startTestServer(t)
	client := dialTestClient(t, server)
	client.register("alice")

	server.NoticeTo("ghost", "are you there")
	server.NoticeTo("ALICE", "delivered")
	line := client.expect("NOTICE alice :delivered")
	if !strings.HasPrefix(line, ":testgw ") {
		t.Fatalf("notice not from server: %q", line)
	}
}

func TestServerQuitNotifiesRoom(t *testing.T) {
	server := startTestServer(t)
	alice := dialTestClient(t, server)
	alice.register("alice")
	bob := dialTestClient(t, server)
	bob.register("bob")
	alice.expect("bob")

	bob.send("QUIT :done for today")
	alice.expect("QUIT :done for today")

	deadline := time.Now().Add(2 * time.Second)
	for server.SessionCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if server.SessionCount() != 1 {
		t.Fatalf("expected quit to free the nickname, got %d sessions", server.SessionCount())
	}
}
