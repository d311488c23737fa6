package internal

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Callbacks are how the embedding surface hears about state changes. Every
// callback runs on the router's notifier goroutine, never on the read pump,
// so a slow consumer cannot stall inbound processing. All fields are
// optional.
type Callbacks struct {
	OnMessage     func(ChatMessage)
	OnTyping      func(conversationID string, user ChatUser, isTyping bool)
	OnPresence    func(userID string, online bool)
	OnMessageAck  func(conversationID, messageID string)
	OnStateChange func(ConnState)
}

// Router decodes inbound frames and applies them to the store and the typing
// tracker. Events for conversations the store does not track are dropped,
// unknown event names are counted and ignored, and neither ever disturbs the
// connection.
type Router struct {
	store   *Store
	typing  *TypingTracker
	metrics *Metrics
	cb      Callbacks
	logger  *slog.Logger

	notifyCh chan func()
	done     chan struct{}
	stopOnce sync.Once
}

func NewRouter(store *Store, typing *TypingTracker, metrics *Metrics, cb Callbacks) *Router {
	r := &Router{
		store:    store,
		typing:   typing,
		metrics:  metrics,
		cb:       cb,
		logger:   slog.Default().With("component", "event_router"),
		notifyCh: make(chan func(), 256),
		done:     make(chan struct{}),
	}
	go r.notifyLoop()
	return r
}

// Close stops the notifier goroutine. Queued notifications are discarded.
func (r *Router) Close() {
	r.stopOnce.Do(func() {
		close(r.done)
	})
}

// Dispatch handles one raw frame from the live connection. Malformed frames
// are counted and dropped; Dispatch never panics on server input.
func (r *Router) Dispatch(frame []byte) {
	r.metrics.IncEvent()

	var envelope Envelope
	if err := json.Unmarshal(frame, &envelope); err != nil || envelope.Event == "" {
		r.metrics.IncDropped()
		r.logger.Debug("dropping undecodable frame", "error", err)
		return
	}

	switch envelope.Event {
	case EventMessageNew:
		r.handleMessageNew(envelope.Data)
	case EventTypingIndicator:
		r.handleTyping(envelope.Data)
	case EventUserOnline:
		r.handleUserOnline(envelope.Data)
	case EventUserOffline:
		r.handleUserOffline(envelope.Data)
	case EventMessageDelivered:
		r.handleDelivered(envelope.Data)
	case EventMessageRead:
		r.handleRead(envelope.Data)
	default:
		r.metrics.IncUnknown()
		r.logger.Debug("ignoring unknown event", "event", envelope.Event)
	}
}

func (r *Router) handleMessageNew(data json.RawMessage) {
	var msg ChatMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.ID == "" || msg.ConversationID == "" {
		r.metrics.IncDropped()
		r.logger.Debug("dropping malformed message:new", "error", err)
		return
	}
	if !r.store.HasConversation(msg.ConversationID) {
		r.metrics.IncDropped()
		r.logger.Debug("dropping message for untracked conversation", "conversation", msg.ConversationID)
		return
	}
	if !r.store.ApplyMessageNew(msg) {
		// Duplicate delivery, already applied.
		return
	}
	if r.cb.OnMessage != nil {
		r.notify(func() { r.cb.OnMessage(msg) })
	}
}

func (r *Router) handleTyping(data json.RawMessage) {
	var ev TypingIndicatorEvent
	if err := json.Unmarshal(data, &ev); err != nil || ev.ConversationID == "" {
		r.metrics.IncDropped()
		return
	}
	r.typing.Set(ev.ConversationID, ev.User, ev.IsTyping)
	if r.cb.OnTyping != nil {
		r.notify(func() { r.cb.OnTyping(ev.ConversationID, ev.User, ev.IsTyping) })
	}
}

func (r *Router) handleUserOnline(data json.RawMessage) {
	var ev UserOnlineEvent
	if err := json.Unmarshal(data, &ev); err != nil || ev.UserID == "" {
		r.metrics.IncDropped()
		return
	}
	r.store.SetPresence(ev.UserID, ev.Online, nil)
	if r.cb.OnPresence != nil {
		online := ev.Online
		r.notify(func() { r.cb.OnPresence(ev.UserID, online) })
	}
}

func (r *Router) handleUserOffline(data json.RawMessage) {
	var ev UserOfflineEvent
	if err := json.Unmarshal(data, &ev); err != nil || ev.UserID == "" {
		r.metrics.IncDropped()
		return
	}
	r.store.SetPresence(ev.UserID, false, ev.LastSeenAt)
	// A user who went away is no longer typing anywhere.
	if ev.ConversationID != "" {
		r.typing.Set(ev.ConversationID, ChatUser{ID: ev.UserID}, false)
	}
	if r.cb.OnPresence != nil {
		r.notify(func() { r.cb.OnPresence(ev.UserID, false) })
	}
}

func (r *Router) handleDelivered(data json.RawMessage) {
	var ev MessageDeliveredEvent
	if err := json.Unmarshal(data, &ev); err != nil || ev.MessageID == "" {
		r.metrics.IncDropped()
		return
	}
	if !r.store.MarkDelivered(ev.ConversationID, ev.MessageID, ev.DeliveredAt) {
		return
	}
	if r.cb.OnMessageAck != nil {
		r.notify(func() { r.cb.OnMessageAck(ev.ConversationID, ev.MessageID) })
	}
}

func (r *Router) handleRead(data json.RawMessage) {
	var ev MessageReadEvent
	if err := json.Unmarshal(data, &ev); err != nil || ev.MessageID == "" {
		r.metrics.IncDropped()
		return
	}
	if !r.store.MarkRead(ev.ConversationID, ev.MessageID, ev.ReadAt) {
		return
	}
	if r.cb.OnMessageAck != nil {
		r.notify(func() { r.cb.OnMessageAck(ev.ConversationID, ev.MessageID) })
	}
}

// notify queues a callback for the notifier goroutine. When the queue is
// full the notification is counted and dropped rather than blocking the
// read pump.
func (r *Router) notify(fn func()) {
	select {
	case <-r.done:
	case r.notifyCh <- fn:
	default:
		r.metrics.IncNotifyDropped()
	}
}

func (r *Router) notifyLoop() {
	for {
		select {
		case <-r.done:
			return
		case fn := <-r.notifyCh:
			fn()
		}
	}
}
