package irc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strings"
	"sync"
	"time"
)

// registrationGrace is how long a connection may stay unregistered before the
// server drops it.
const registrationGrace = 60 * time.Second

// maxLineLength bounds one inbound line. Longer lines are consumed and
// rejected so a client cannot grow the read buffer without limit.
const maxLineLength = 512

var errLineTooLong = errors.New("line exceeds maximum length")

// RoomMessageFunc sees every message addressed to the control channel before
// it is relayed. Returning true consumes the message (it was a command).
type RoomMessageFunc func(nick, text string) bool

// Server is a minimal IRC-style chat server with a single control channel.
// Clients register with NICK+USER, get auto-joined, and talk to the mesh by
// speaking into the channel.
type Server struct {
	logger         *slog.Logger
	host           string
	port           int
	name           string
	controlChannel string

	// OnRoomMessage is consulted for control-channel traffic; nil relays all.
	OnRoomMessage RoomMessageFunc

	mu       sync.Mutex
	listener net.Listener
	sessions map[string]*Session // by session ID
	byNick   map[string]*Session // by casefolded nick, registered only
	closing  bool
}

func NewServer(logger *slog.Logger, host string, port int, name, controlChannel string) *Server {
	if !strings.HasPrefix(controlChannel, "#") {
		controlChannel = "#" + controlChannel
	}

	return &Server{
		logger:         logger,
		host:           host,
		port:           port,
		name:           name,
		controlChannel: controlChannel,
		sessions:       make(map[string]*Session),
		byNick:         make(map[string]*Session),
	}
}

func (s *Server) ControlChannel() string {
	return s.controlChannel
}

// Addr reports the bound listener address once Run is up, nil before that.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}

	return s.listener.Addr()
}

// Run listens and serves until ctx is cancelled or Shutdown is called.
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.host, fmt.Sprintf("%d", s.port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	s.logger.Info("chat server listening", "addr", listener.Addr().String(), "channel", s.controlChannel)

	go func() {
		<-ctx.Done()
		s.Shutdown("Server shutting down")
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			closing := s.closing
			s.mu.Unlock()
			if closing || ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("accept: %w", err)
		}
		go s.handleConn(conn)
	}
}

// Shutdown notifies every client and closes the listener. Safe to call more
// than once.
func (s *Server) Shutdown(reason string) {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()

		return
	}
	s.closing = true
	listener := s.listener
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	if listener != nil {
		_ = listener.Close()
	}
	for _, sess := range sessions {
		sess.send("ERROR :" + reason)
		sess.close()
	}
	s.logger.Info("chat server stopped", "reason", reason)
}

func (s *Server) handleConn(conn net.Conn) {
	sess := newSession(conn)
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		sess.close()

		return
	}
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	s.logger.Debug("client connected", "session", sess.ID, "remote", conn.RemoteAddr().String())

	grace := time.AfterFunc(registrationGrace, func() {
		if sess.State() == StateUnregistered {
			sess.send("ERROR :Registration timeout")
			s.disconnect(sess, "registration timeout")
		}
	})
	defer grace.Stop()

	reader := bufio.NewReaderSize(conn, maxLineLength)
	for {
		line, err := readLimitedLine(reader)
		if err != nil {
			if errors.Is(err, errLineTooLong) {
				nick := sess.Nick()
				if nick == "" {
					nick = "*"
				}
				sess.send(fmt.Sprintf(":%s 417 %s :Input line was too long", s.name, nick))
				continue
			}
			s.disconnect(sess, "connection closed")

			return
		}
		msg, ok := ParseLine(line)
		if !ok {
			continue
		}
		if quit := s.handleMessage(sess, msg); quit {
			return
		}
	}
}

// readLimitedLine reads one line, returning errLineTooLong when the line does
// not fit the reader's buffer. The oversized line is fully consumed so the
// stream stays in sync.
func readLimitedLine(reader *bufio.Reader) (string, error) {
	line, err := reader.ReadSlice('\n')
	if err == nil {
		return string(line), nil
	}
	if err != bufio.ErrBufferFull {
		return "", err
	}
	for err == bufio.ErrBufferFull {
		_, err = reader.ReadSlice('\n')
	}
	if err != nil {
		return "", err
	}

	return "", errLineTooLong
}

// handleMessage dispatches one parsed line. Returns true when the session is
// finished and the reader should stop.
func (s *Server) handleMessage(sess *Session, msg Message) bool {
	switch msg.Verb {
	case "NICK":
		s.handleNick(sess, msg)
	case "USER":
		s.handleUser(sess, msg)
	case "PING":
		token := msg.Trailing()
		if token == "" {
			token = s.name
		}
		sess.send(fmt.Sprintf(":%s PONG %s :%s", s.name, s.name, token))
	case "PONG", "CAP", "MODE", "WHO", "WHOIS", "USERHOST":
		// Tolerated client chatter, nothing to do.
	case "JOIN":
		s.handleJoin(sess, msg)
	case "PART":
		s.handlePart(sess, msg)
	case "PRIVMSG", "NOTICE":
		s.handlePrivmsg(sess, msg)
	case "QUIT":
		reason := msg.Trailing()
		if reason == "" {
			reason = "Client quit"
		}
		s.disconnect(sess, reason)

		return true
	}

	return false
}

func (s *Server) handleNick(sess *Session, msg Message) {
	if len(msg.Params) == 0 {
		sess.send(fmt.Sprintf(":%s 431 * :No nickname given", s.name))

		return
	}
	nick := msg.Params[0]
	if !validNick(nick) {
		sess.send(fmt.Sprintf(":%s 432 * %s :Erroneous nickname", s.name, nick))

		return
	}

	folded := CasefoldNick(nick)
	s.mu.Lock()
	if other, taken := s.byNick[folded]; taken && other != sess {
		s.mu.Unlock()
		sess.send(fmt.Sprintf(":%s 433 * %s :Nickname is already in use", s.name, nick))

		return
	}
	s.mu.Unlock()

	sess.mu.Lock()
	oldNick := sess.nick
	sess.nick = nick
	registered := sess.state != StateUnregistered
	hasUser := sess.username != ""
	sess.mu.Unlock()

	if registered {
		s.mu.Lock()
		delete(s.byNick, CasefoldNick(oldNick))
		s.byNick[folded] = sess
		s.mu.Unlock()
		s.broadcastRoom(fmt.Sprintf(":%s NICK :%s", oldNick, nick), sess)
		sess.send(fmt.Sprintf(":%s NICK :%s", oldNick, nick))

		return
	}
	if hasUser {
		s.completeRegistration(sess)
	}
}

func (s *Server) handleUser(sess *Session, msg Message) {
	if sess.State() != StateUnregistered {
		sess.send(fmt.Sprintf(":%s 462 %s :You may not reregister", s.name, sess.Nick()))

		return
	}
	if len(msg.Params) < 4 {
		sess.send(fmt.Sprintf(":%s 461 * USER :Not enough parameters", s.name))

		return
	}

	sess.mu.Lock()
	sess.username = msg.Params[0]
	sess.realname = msg.Params[len(msg.Params)-1]
	hasNick := sess.nick != ""
	sess.mu.Unlock()

	if hasNick {
		s.completeRegistration(sess)
	}
}

func (s *Server) completeRegistration(sess *Session) {
	nick := sess.Nick()
	folded := CasefoldNick(nick)

	s.mu.Lock()
	if other, taken := s.byNick[folded]; taken && other != sess {
		s.mu.Unlock()
		sess.send(fmt.Sprintf(":%s 433 * %s :Nickname is already in use", s.name, nick))

		return
	}
	s.byNick[folded] = sess
	s.mu.Unlock()

	sess.setState(StateRegistered)
	sess.send(fmt.Sprintf(":%s 001 %s :Welcome to the Meshtastic gateway, %s", s.name, nick, nick))
	sess.send(fmt.Sprintf(":%s 002 %s :Your host is %s, bridging this channel to the mesh", s.name, nick, s.name))
	s.logger.Info("client registered", "session", sess.ID, "nick", nick)

	s.joinControlChannel(sess)
}

func (s *Server) joinControlChannel(sess *Session) {
	nick := sess.Nick()
	mask := sess.mask()

	s.broadcastRoom(fmt.Sprintf(":%s JOIN %s", mask, s.controlChannel), sess)
	sess.setState(StateInRoom)
	sess.send(fmt.Sprintf(":%s JOIN %s", mask, s.controlChannel))
	sess.send(fmt.Sprintf(":%s 332 %s %s :Meshtastic gateway control channel. HELP lists commands.", s.name, nick, s.controlChannel))
	sess.send(fmt.Sprintf(":%s 353 %s = %s :%s", s.name, nick, s.controlChannel, strings.Join(s.roomNicks(), " ")))
	sess.send(fmt.Sprintf(":%s 366 %s %s :End of /NAMES list", s.name, nick, s.controlChannel))
}

func (s *Server) handleJoin(sess *Session, msg Message) {
	nick := sess.Nick()
	if sess.State() == StateUnregistered {
		sess.send(fmt.Sprintf(":%s 451 * :You have not registered", s.name))

		return
	}
	if len(msg.Params) == 0 {
		sess.send(fmt.Sprintf(":%s 461 %s JOIN :Not enough parameters", s.name, nick))

		return
	}
	channel := msg.Params[0]
	if CasefoldNick(channel) != CasefoldNick(s.controlChannel) {
		sess.send(fmt.Sprintf(":%s 403 %s %s :No such channel", s.name, nick, channel))

		return
	}
	if sess.State() == StateInRoom {
		return
	}
	s.joinControlChannel(sess)
}

func (s *Server) handlePart(sess *Session, msg Message) {
	if sess.State() != StateInRoom || len(msg.Params) == 0 {
		return
	}
	if CasefoldNick(msg.Params[0]) != CasefoldNick(s.controlChannel) {
		return
	}
	mask := sess.mask()
	sess.setState(StateRegistered)
	sess.send(fmt.Sprintf(":%s PART %s", mask, s.controlChannel))
	s.broadcastRoom(fmt.Sprintf(":%s PART %s", mask, s.controlChannel), sess)
}

func (s *Server) handlePrivmsg(sess *Session, msg Message) {
	nick := sess.Nick()
	if sess.State() == StateUnregistered {
		sess.send(fmt.Sprintf(":%s 451 * :You have not registered", s.name))

		return
	}
	if len(msg.Params) < 2 {
		sess.send(fmt.Sprintf(":%s 461 %s PRIVMSG :Not enough parameters", s.name, nick))

		return
	}
	target := msg.Params[0]
	text := msg.Trailing()
	if CasefoldNick(target) != CasefoldNick(s.controlChannel) {
		sess.send(fmt.Sprintf(":%s 401 %s %s :No such nick/channel. Talk in %s.", s.name, nick, target, s.controlChannel))

		return
	}
	if text == "" {
		return
	}

	if s.OnRoomMessage != nil && s.OnRoomMessage(nick, text) {
		return
	}
	s.broadcastRoom(fmt.Sprintf(":%s PRIVMSG %s :%s", sess.mask(), s.controlChannel, text), sess)
}

// SendToRoom delivers a line to every room member as a PRIVMSG from prefix,
// which may be a nick mask or a synthetic mesh identity.
func (s *Server) SendToRoom(prefix, text string) {
	s.broadcastRoom(fmt.Sprintf(":%s PRIVMSG %s :%s", prefix, s.controlChannel, text), nil)
}

// NoticeTo sends a server notice to one nick. Unknown nicks are a no-op: the
// client may have disconnected while a mesh request was in flight.
func (s *Server) NoticeTo(nick, text string) {
	s.mu.Lock()
	sess, ok := s.byNick[CasefoldNick(nick)]
	s.mu.Unlock()
	if !ok {
		return
	}
	sess.send(fmt.Sprintf(":%s NOTICE %s :%s", s.name, sess.Nick(), text))
}

func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.byNick)
}

// broadcastRoom sends a raw line to all in-room sessions except skip.
func (s *Server) broadcastRoom(line string, skip *Session) {
	s.mu.Lock()
	targets := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if sess != skip {
			targets = append(targets, sess)
		}
	}
	s.mu.Unlock()

	for _, sess := range targets {
		if sess.State() == StateInRoom {
			sess.send(line)
		}
	}
}

func (s *Server) roomNicks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	nicks := make([]string, 0, len(s.byNick))
	for _, sess := range s.byNick {
		if sess.State() == StateInRoom || sess.State() == StateRegistered {
			nicks = append(nicks, sess.Nick())
		}
	}
	sort.Strings(nicks)

	return nicks
}

// disconnect tears a session down, frees its nickname and tells the room.
func (s *Server) disconnect(sess *Session, reason string) {
	s.mu.Lock()
	if _, tracked := s.sessions[sess.ID]; !tracked {
		s.mu.Unlock()

		return
	}
	delete(s.sessions, sess.ID)
	nick := sess.Nick()
	if nick != "" {
		if owner, ok := s.byNick[CasefoldNick(nick)]; ok && owner == sess {
			delete(s.byNick, CasefoldNick(nick))
		}
	}
	s.mu.Unlock()

	wasInRoom := sess.State() == StateInRoom
	mask := sess.mask()
	sess.setState(StateDisconnected)
	sess.close()

	if wasInRoom {
		s.broadcastRoom(fmt.Sprintf(":%s QUIT :%s", mask, reason), sess)
	}
	s.logger.Debug("client disconnected", "session", sess.ID, "nick", nick, "reason", reason)
}
