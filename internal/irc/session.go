package irc

import (
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

type SessionState int

const (
	StateUnregistered SessionState = iota
	StateRegistered
	StateInRoom
	StateDisconnected
)

func (s SessionState) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateRegistered:
		return "registered"
	case StateInRoom:
		return "in_room"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

const sessionOutboundDepth = 64

// Session is one client connection. All writes to the connection go through
// the outbound queue and a single writer goroutine; the reader goroutine and
// the relay never touch the conn directly.
type Session struct {
	ID          string
	conn        net.Conn
	connectedAt time.Time

	mu       sync.Mutex
	state    SessionState
	nick     string
	username string
	realname string

	out       chan string
	closeOnce sync.Once
	closed    chan struct{}
}

func newSession(conn net.Conn) *Session {
	s := &Session{
		ID:          uuid.NewString(),
		conn:        conn,
		connectedAt: time.Now(),
		state:       StateUnregistered,
		out:         make(chan string, sessionOutboundDepth),
		closed:      make(chan struct{}),
	}
	go s.runWriter()

	return s
}

func (s *Session) runWriter() {
	for {
		select {
		case <-s.closed:
			return
		case line := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if _, err := s.conn.Write([]byte(line + "\r\n")); err != nil {
				s.close()

				return
			}
		}
	}
}

// send queues one line for the writer. A session whose queue is full is not
// draining; drop the line rather than block the caller.
func (s *Session) send(line string) {
	select {
	case <-s.closed:
	case s.out <- line:
	default:
	}
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		_ = s.conn.Close()
	})
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

func (s *Session) setState(state SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func (s *Session) Nick() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.nick
}

// mask is the sender prefix other clients see: nick!user@host.
func (s *Session) mask() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	host := "unknown"
	if addr, _, err := net.SplitHostPort(s.conn.RemoteAddr().String()); err == nil {
		host = addr
	}
	user := s.username
	if user == "" {
		user = "user"
	}

	return s.nick + "!" + user + "@" + host
}
