package internal

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Config carries everything needed to stand up a chat session.
type Config struct {
	ServerURL  string
	APIBaseURL string
	Token      string
	UserID     string
	DebugAddr  string

	DialTimeout    time.Duration
	BackoffBase    time.Duration
	BackoffCeiling time.Duration
	MaxAttempts    int
}

// ChatSession is the command surface the embedding UI drives. It composes the
// store, the typing tracker, the router, the REST client and the live session
// into one object; reads always come from the local cache, writes go to the
// server first.
type ChatSession struct {
	cfg     Config
	store   *Store
	typing  *TypingTracker
	router  *Router
	api     *APIClient
	session *Session
	metrics *Metrics
	limiter *RateLimiter

	ctx    context.Context
	cancel context.CancelFunc
}

// NewChatSession wires up a session for one authenticated user. The user id
// is required: it anchors unread accounting and outbound typing signals.
func NewChatSession(cfg Config, cb Callbacks) (*ChatSession, error) {
	if strings.TrimSpace(cfg.UserID) == "" {
		return nil, fmt.Errorf("chat session requires a user id")
	}

	metrics := NewMetrics()
	store := NewStore(cfg.UserID)
	typing := NewTypingTracker()
	router := NewRouter(store, typing, metrics, cb)

	cs := &ChatSession{
		cfg:     cfg,
		store:   store,
		typing:  typing,
		router:  router,
		api:     NewAPIClient(cfg.APIBaseURL, cfg.Token),
		metrics: metrics,
		limiter: NewRateLimiter(1, time.Second),
	}
	cs.ctx, cs.cancel = context.WithCancel(context.Background())

	onState := func(state ConnState) {
		if state != StateConnected {
			// Typing signals are perishable; a broken connection voids them.
			typing.Reset()
		}
		if cb.OnStateChange != nil {
			cb.OnStateChange(state)
		}
	}
	cs.session = NewSession(SessionConfig{
		ServerURL:      cfg.ServerURL,
		Token:          cfg.Token,
		UserID:         cfg.UserID,
		DialTimeout:    cfg.DialTimeout,
		BackoffBase:    cfg.BackoffBase,
		BackoffCeiling: cfg.BackoffCeiling,
		MaxAttempts:    cfg.MaxAttempts,
	}, router, metrics, onState)

	return cs, nil
}

// Connect brings up the live connection. Safe to call again after the
// reconnect ceiling was hit.
func (cs *ChatSession) Connect() error {
	return cs.session.Connect()
}

// Close tears the session down: the live connection, the router's notifier,
// and any in-flight REST calls.
func (cs *ChatSession) Close() {
	cs.cancel()
	cs.session.Disconnect()
	cs.router.Close()
}

// FetchConversations loads the conversation list for one status from the
// server and replaces the cached list. On failure the cache is untouched.
func (cs *ChatSession) FetchConversations(ctx context.Context, status ConversationStatus) ([]Conversation, error) {
	ctx, cancel := cs.requestContext(ctx)
	defer cancel()
	conversations, err := cs.api.ListConversations(ctx, status)
	if err != nil {
		return nil, err
	}
	cs.store.ReplaceConversations(status, conversations)
	return cs.store.Conversations(status), nil
}

// FetchMessages loads a conversation's history and replaces the cached list;
// it never merges. Pending sends survive the replace.
func (cs *ChatSession) FetchMessages(ctx context.Context, conversationID string) ([]ChatMessage, error) {
	ctx, cancel := cs.requestContext(ctx)
	defer cancel()
	messages, err := cs.api.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	cs.store.ReplaceMessages(conversationID, messages)
	return cs.store.Messages(conversationID), nil
}

// SendMessage posts a text message. While disconnected it fails immediately
// with ErrNotConnected (ErrConnectionExhausted after the reconnect ceiling)
// and nothing is queued. The message appears in the cache as pending right
// away and is swapped for the server's canonical copy on success.
func (cs *ChatSession) SendMessage(ctx context.Context, conversationID, recipientID, content string) (ChatMessage, error) {
	switch cs.session.State() {
	case StateConnected:
	case StateExhausted:
		return ChatMessage{}, ErrConnectionExhausted
	default:
		return ChatMessage{}, ErrNotConnected
	}

	correlationID := uuid.NewString()
	pending := ChatMessage{
		ID:             "pending-" + correlationID,
		ConversationID: conversationID,
		Sender:         ChatUser{ID: cs.cfg.UserID},
		Content:        content,
		Type:           MessageText,
		SentAt:         time.Now().UTC(),
		CorrelationID:  correlationID,
		State:          MessagePending,
	}
	cs.store.AppendPending(pending)

	ctx, cancel := cs.requestContext(ctx)
	defer cancel()
	canonical, err := cs.api.SendMessage(ctx, sendMessageRequest{
		ConversationID: conversationID,
		RecipientID:    recipientID,
		Content:        content,
		Type:           MessageText,
		CorrelationID:  correlationID,
	})
	if err != nil {
		cs.store.RemovePending(conversationID, correlationID)
		return ChatMessage{}, err
	}

	cs.store.ConfirmPending(conversationID, correlationID, canonical)
	cs.metrics.IncSent()
	return canonical, nil
}

// SendTypingIndicator emits typing:start or typing:stop for the operating
// user. Fire and forget: while disconnected it is a silent no-op, and starts
// are throttled per conversation so key-repeat does not flood the socket.
func (cs *ChatSession) SendTypingIndicator(conversationID string, isTyping bool) {
	if !cs.session.IsConnected() {
		return
	}
	event := EventTypingStop
	if isTyping {
		if !cs.limiter.Allow(conversationID) {
			return
		}
		event = EventTypingStart
	} else {
		cs.limiter.Forget(conversationID)
	}
	_ = cs.session.Emit(event, TypingSignal{
		ConversationID: conversationID,
		UserID:         cs.cfg.UserID,
	})
}

// MarkAsRead tells the server every message in the conversation was read and
// zeroes the local unread counter. A message:new racing the call can leave
// the counter at one until the next mark; the server remains authoritative.
func (cs *ChatSession) MarkAsRead(ctx context.Context, conversationID string) error {
	ctx, cancel := cs.requestContext(ctx)
	defer cancel()
	if err := cs.api.MarkRead(ctx, conversationID); err != nil {
		return err
	}
	cs.store.ZeroUnread(conversationID)
	return nil
}

// Conversations returns the cached list for one status.
func (cs *ChatSession) Conversations(status ConversationStatus) []Conversation {
	return cs.store.Conversations(status)
}

// Messages returns the cached history for a conversation.
func (cs *ChatSession) Messages(conversationID string) []ChatMessage {
	return cs.store.Messages(conversationID)
}

// TypingUsers returns who is currently composing in a conversation.
func (cs *ChatSession) TypingUsers(conversationID string) []ChatUser {
	return cs.typing.Typing(conversationID)
}

func (cs *ChatSession) ConnectionState() ConnState {
	return cs.session.State()
}

func (cs *ChatSession) IsConnected() bool {
	return cs.session.IsConnected()
}

// MetricsHandler exposes the session counters for the debug listener.
func (cs *ChatSession) MetricsHandler() http.Handler {
	return cs.metrics
}

func (cs *ChatSession) UserID() string {
	return cs.cfg.UserID
}

// requestContext ties a per-call context to the session lifetime so Close
// aborts in-flight REST calls.
func (cs *ChatSession) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	if cs.ctx.Err() != nil {
		cancel()
		return ctx, cancel
	}
	stop := context.AfterFunc(cs.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
