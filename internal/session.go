package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ConnState is the session manager's connection state machine.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	// StateExhausted is terminal: the attempt ceiling was hit and no further
	// automatic attempts happen until the caller asks to connect again.
	StateExhausted
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// SessionConfig defines how the live connection is established and retried.
type SessionConfig struct {
	ServerURL string
	Token     string
	UserID    string

	DialTimeout    time.Duration
	BackoffBase    time.Duration
	BackoffCeiling time.Duration
	MaxAttempts    int
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.DialTimeout == 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.BackoffBase == 0 {
		c.BackoffBase = time.Second
	}
	if c.BackoffCeiling == 0 {
		c.BackoffCeiling = 30 * time.Second
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 8
	}
	return c
}

var errSessionClosed = errors.New("chat session closed")

// Session owns the single live connection to the messaging server: it dials,
// supervises reconnects with exponential backoff, feeds inbound frames to the
// router, and guarantees the socket is closed on teardown. The command
// surface and the router only ever reach the connection through Emit and the
// state accessors.
type Session struct {
	cfg     SessionConfig
	router  *Router
	metrics *Metrics
	logger  *slog.Logger
	onState func(ConnState)

	state   atomic.Int32
	mu      sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex

	done     chan struct{}
	stopOnce sync.Once
}

func NewSession(cfg SessionConfig, router *Router, metrics *Metrics, onState func(ConnState)) *Session {
	return &Session{
		cfg:     cfg.withDefaults(),
		router:  router,
		metrics: metrics,
		logger:  slog.Default().With("component", "chat_session"),
		onState: onState,
		done:    make(chan struct{}),
	}
}

// Connect starts supervising the live connection. It is a no-op while a
// connection is active or being established. Without an auth token it logs
// and reports ErrNoCredentials instead of retrying; from the exhausted state
// it starts a fresh attempt cycle.
func (s *Session) Connect() error {
	select {
	case <-s.done:
		return errSessionClosed
	default:
	}
	if s.cfg.Token == "" {
		s.logger.Warn("connect skipped: no auth token")
		return ErrNoCredentials
	}
	if !s.state.CompareAndSwap(int32(StateDisconnected), int32(StateConnecting)) {
		if !s.state.CompareAndSwap(int32(StateExhausted), int32(StateConnecting)) {
			return nil
		}
	}
	s.notify(StateConnecting)
	go s.supervise()
	return nil
}

// Disconnect closes the live connection and stops the supervisor. Idempotent,
// safe on teardown paths that never connected.
func (s *Session) Disconnect() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn != nil {
		s.writeMu.Lock()
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()
		_ = conn.Close()
	}
	s.setState(StateDisconnected)
}

func (s *Session) State() ConnState {
	return ConnState(s.state.Load())
}

func (s *Session) IsConnected() bool {
	return s.State() == StateConnected
}

// Emit sends one client event over the live connection. Reports
// ErrNotConnected when no connection is active; nothing is queued.
func (s *Session) Emit(event string, payload interface{}) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil || !s.IsConnected() {
		return ErrNotConnected
	}
	frame, err := EncodeClientEvent(event, payload)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, frame)
	s.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("emit %s: %w", event, err)
	}
	return nil
}

func (s *Session) supervise() {
	attempt := 0
	for {
		select {
		case <-s.done:
			s.setState(StateDisconnected)
			return
		default:
		}

		conn, err := s.dial()
		if err != nil {
			attempt++
			if attempt >= s.cfg.MaxAttempts {
				s.logger.Error("giving up after repeated connect failures", "attempts", attempt, "error", err)
				s.setState(StateExhausted)
				return
			}
			delay := s.backoffDelay(attempt)
			s.logger.Warn("connect failed, retrying", "attempt", attempt, "delay", delay, "error", err)
			select {
			case <-s.done:
				s.setState(StateDisconnected)
				return
			case <-time.After(delay):
			}
			continue
		}

		// Disconnect may have raced the dial; a connection that completes
		// after teardown must be closed, not adopted.
		s.mu.Lock()
		select {
		case <-s.done:
			s.mu.Unlock()
			_ = conn.Close()
			s.setState(StateDisconnected)
			return
		default:
		}
		s.conn = conn
		s.mu.Unlock()
		attempt = 0
		s.setState(StateConnected)
		s.logger.Info("connected", "server", s.cfg.ServerURL)

		err = s.readPump(conn)

		s.mu.Lock()
		if s.conn == conn {
			s.conn = nil
		}
		s.mu.Unlock()
		_ = conn.Close()

		select {
		case <-s.done:
			s.setState(StateDisconnected)
			return
		default:
		}
		s.metrics.IncReconnect()
		s.logger.Warn("connection lost, reconnecting", "error", err)
		s.setState(StateConnecting)
	}
}

func (s *Session) dial() (*websocket.Conn, error) {
	target, err := s.handshakeURL()
	if err != nil {
		return nil, err
	}
	dialer := websocket.Dialer{HandshakeTimeout: s.cfg.DialTimeout}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.cfg.Token)
	header.Set("User-Agent", UserAgent())
	conn, _, err := dialer.Dial(target, header)
	return conn, err
}

// handshakeURL carries the token out of band and names the preferred
// transport; long-poll fallback is the server's side of the negotiation.
func (s *Session) handshakeURL() (string, error) {
	parsed, err := url.Parse(s.cfg.ServerURL)
	if err != nil {
		return "", err
	}
	if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
		return "", fmt.Errorf("invalid scheme for websocket: %s", parsed.Scheme)
	}
	query := parsed.Query()
	query.Set("token", s.cfg.Token)
	query.Set("transport", "websocket")
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// backoffDelay doubles the base per attempt, capped at the ceiling.
func (s *Session) backoffDelay(attempt int) time.Duration {
	delay := s.cfg.BackoffBase
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= s.cfg.BackoffCeiling {
			return s.cfg.BackoffCeiling
		}
	}
	if delay > s.cfg.BackoffCeiling {
		delay = s.cfg.BackoffCeiling
	}
	return delay
}

func (s *Session) readPump(conn *websocket.Conn) error {
	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if messageType != websocket.TextMessage {
			continue
		}
		s.router.Dispatch(payload)
	}
}

func (s *Session) setState(next ConnState) {
	prev := ConnState(s.state.Swap(int32(next)))
	if prev != next {
		s.notify(next)
	}
}

func (s *Session) notify(state ConnState) {
	if s.onState != nil {
		s.onState(state)
	}
}
