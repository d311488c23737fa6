package internal

import (
	"sync"
	"time"
)

// Store is the in-memory source of truth the UI renders from. All mutation
// goes through the event router or the command surface; consumers only ever
// receive copies, never references into the cache.
//
// A mutex guards every map because the socket read pump and command callers
// run on different goroutines.
type Store struct {
	mu            sync.RWMutex
	selfID        string
	conversations map[string]*Conversation
	order         []string
	messages      map[string][]ChatMessage
	seen          map[string]map[string]struct{}
}

// NewStore builds an empty cache. selfID is the authenticated user's id; it
// keeps echoes of our own sends from inflating unread counters.
func NewStore(selfID string) *Store {
	return &Store{
		selfID:        selfID,
		conversations: make(map[string]*Conversation),
		messages:      make(map[string][]ChatMessage),
		seen:          make(map[string]map[string]struct{}),
	}
}

// ReplaceConversations swaps out the cached list for one status. Entries of
// other statuses are preserved; message caches for conversations that vanished
// from the server's list are pruned.
func (s *Store) ReplaceConversations(status ConversationStatus, conversations []Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	replaced := make(map[string]struct{}, len(conversations))
	for _, conversation := range conversations {
		replaced[conversation.ID] = struct{}{}
	}

	var next []string
	for _, id := range s.order {
		existing := s.conversations[id]
		if _, gone := replaced[id]; gone || existing.Status == status {
			delete(s.conversations, id)
			continue
		}
		next = append(next, id)
	}
	for i := range conversations {
		conversation := cloneConversation(&conversations[i])
		s.conversations[conversation.ID] = &conversation
		next = append(next, conversation.ID)
	}
	s.order = next

	for id := range s.messages {
		if _, ok := s.conversations[id]; !ok {
			delete(s.messages, id)
			delete(s.seen, id)
		}
	}
}

// Conversations returns the cached ordered view for one status. It never
// fetches; fetching is a command-surface concern.
func (s *Store) Conversations(status ConversationStatus) []Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Conversation, 0, len(s.order))
	for _, id := range s.order {
		conversation := s.conversations[id]
		if conversation.Status == status {
			out = append(out, cloneConversation(conversation))
		}
	}
	return out
}

// Conversation looks up a single cached conversation by id.
func (s *Store) Conversation(id string) (Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conversation, ok := s.conversations[id]
	if !ok {
		return Conversation{}, false
	}
	return cloneConversation(conversation), true
}

// HasConversation reports whether a conversation is tracked. Events for
// untracked conversations are dropped rather than creating orphans.
func (s *Store) HasConversation(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.conversations[id]
	return ok
}

// Messages returns a copy of the cached message list. Unknown conversations
// yield an empty list, meaning "not yet loaded".
func (s *Store) Messages(conversationID string) []ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cached := s.messages[conversationID]
	out := make([]ChatMessage, 0, len(cached))
	for _, message := range cached {
		out = append(out, cloneMessage(message))
	}
	return out
}

// ReplaceMessages installs the authoritative message list for a conversation,
// deduplicated by id. Pending sends that have not been confirmed yet survive
// the replace so an in-flight message is not lost from the view.
func (s *Store) ReplaceMessages(conversationID string, messages []ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conversation, ok := s.conversations[conversationID]
	if !ok {
		return
	}

	ids := make(map[string]struct{}, len(messages))
	next := make([]ChatMessage, 0, len(messages))
	for _, message := range messages {
		if _, dup := ids[message.ID]; dup {
			continue
		}
		ids[message.ID] = struct{}{}
		message.State = MessageConfirmed
		next = append(next, cloneMessage(message))
	}
	for _, message := range s.messages[conversationID] {
		if message.State == MessagePending {
			next = append(next, message)
		}
	}

	s.messages[conversationID] = next
	s.seen[conversationID] = ids
	if len(next) > 0 {
		last := cloneMessage(next[len(next)-1])
		conversation.LastMessage = &last
	}
}

// ApplyMessageNew appends an inbound message. Duplicate ids are silently
// dropped so a reconnect replay cannot double-insert. Returns true when the
// message was actually added.
func (s *Store) ApplyMessageNew(message ChatMessage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	conversation, ok := s.conversations[message.ConversationID]
	if !ok {
		return false
	}
	if s.hasSeen(message.ConversationID, message.ID) {
		return false
	}
	message.State = MessageConfirmed
	s.messages[message.ConversationID] = append(s.messages[message.ConversationID], cloneMessage(message))
	s.markSeen(message.ConversationID, message.ID)

	last := cloneMessage(message)
	conversation.LastMessage = &last
	if message.SentAt.After(conversation.UpdatedAt) {
		conversation.UpdatedAt = message.SentAt
	}
	if message.Sender.ID != s.selfID {
		conversation.UnreadCount++
	}
	return true
}

// AppendPending records an optimistic entry for an in-flight send. Returns
// false when the conversation is not tracked.
func (s *Store) AppendPending(message ChatMessage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[message.ConversationID]; !ok {
		return false
	}
	message.State = MessagePending
	s.messages[message.ConversationID] = append(s.messages[message.ConversationID], cloneMessage(message))
	return true
}

// ConfirmPending swaps the pending placeholder for the canonical message the
// server returned, matched by correlation id. When the canonical message
// already arrived over the socket the placeholder is simply removed.
func (s *Store) ConfirmPending(conversationID, correlationID string, canonical ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	canonical.State = MessageConfirmed
	if canonical.CorrelationID == "" {
		canonical.CorrelationID = correlationID
	}
	already := s.hasSeen(conversationID, canonical.ID)

	cached := s.messages[conversationID]
	idx := -1
	for i := range cached {
		if cached[i].State == MessagePending && cached[i].CorrelationID == correlationID {
			idx = i
			break
		}
	}
	switch {
	case idx >= 0 && already:
		s.messages[conversationID] = append(cached[:idx], cached[idx+1:]...)
	case idx >= 0:
		cached[idx] = cloneMessage(canonical)
		s.markSeen(conversationID, canonical.ID)
	case !already:
		s.messages[conversationID] = append(cached, cloneMessage(canonical))
		s.markSeen(conversationID, canonical.ID)
	}

	if conversation, ok := s.conversations[conversationID]; ok {
		if conversation.LastMessage == nil || !canonical.SentAt.Before(conversation.LastMessage.SentAt) {
			last := cloneMessage(canonical)
			conversation.LastMessage = &last
		}
		if canonical.SentAt.After(conversation.UpdatedAt) {
			conversation.UpdatedAt = canonical.SentAt
		}
	}
}

// RemovePending discards the placeholder for a failed send.
func (s *Store) RemovePending(conversationID, correlationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cached := s.messages[conversationID]
	for i := range cached {
		if cached[i].State == MessagePending && cached[i].CorrelationID == correlationID {
			s.messages[conversationID] = append(cached[:i], cached[i+1:]...)
			return
		}
	}
}

// MarkDelivered patches a message's delivery timestamp if it is still unset.
func (s *Store) MarkDelivered(conversationID, messageID string, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cached := s.messages[conversationID]
	for i := range cached {
		if cached[i].ID != messageID {
			continue
		}
		if cached[i].DeliveredAt != nil {
			return false
		}
		stamp := at
		cached[i].DeliveredAt = &stamp
		s.refreshLastMessage(conversationID, cached[i])
		return true
	}
	return false
}

// MarkRead patches a message's read timestamp if it is still unset. Read
// implies delivered, so an unset delivery timestamp is filled in as well.
func (s *Store) MarkRead(conversationID, messageID string, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cached := s.messages[conversationID]
	for i := range cached {
		if cached[i].ID != messageID {
			continue
		}
		if cached[i].ReadAt != nil {
			return false
		}
		stamp := at
		cached[i].ReadAt = &stamp
		if cached[i].DeliveredAt == nil {
			delivered := at
			cached[i].DeliveredAt = &delivered
		}
		s.refreshLastMessage(conversationID, cached[i])
		return true
	}
	return false
}

// ZeroUnread resets the unread counter after a successful mark-read call.
func (s *Store) ZeroUnread(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conversation, ok := s.conversations[conversationID]; ok {
		conversation.UnreadCount = 0
	}
}

// SetPresence updates the participant everywhere the user appears. A nil
// lastSeenAt leaves the previous timestamp alone.
func (s *Store) SetPresence(userID string, online bool, lastSeenAt *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conversation := range s.conversations {
		if conversation.Participant.ID != userID {
			continue
		}
		conversation.Participant.Online = online
		if lastSeenAt != nil {
			stamp := *lastSeenAt
			conversation.Participant.LastSeenAt = &stamp
		}
	}
}

func (s *Store) refreshLastMessage(conversationID string, message ChatMessage) {
	conversation, ok := s.conversations[conversationID]
	if !ok || conversation.LastMessage == nil || conversation.LastMessage.ID != message.ID {
		return
	}
	last := cloneMessage(message)
	conversation.LastMessage = &last
}

func (s *Store) hasSeen(conversationID, messageID string) bool {
	ids, ok := s.seen[conversationID]
	if !ok {
		return false
	}
	_, dup := ids[messageID]
	return dup
}

func (s *Store) markSeen(conversationID, messageID string) {
	ids, ok := s.seen[conversationID]
	if !ok {
		ids = make(map[string]struct{})
		s.seen[conversationID] = ids
	}
	ids[messageID] = struct{}{}
}

func cloneConversation(conversation *Conversation) Conversation {
	out := *conversation
	out.Participant = cloneUser(conversation.Participant)
	if conversation.LastMessage != nil {
		last := cloneMessage(*conversation.LastMessage)
		out.LastMessage = &last
	}
	return out
}

func cloneMessage(message ChatMessage) ChatMessage {
	if message.DeliveredAt != nil {
		stamp := *message.DeliveredAt
		message.DeliveredAt = &stamp
	}
	if message.ReadAt != nil {
		stamp := *message.ReadAt
		message.ReadAt = &stamp
	}
	message.Sender = cloneUser(message.Sender)
	return message
}

func cloneUser(user ChatUser) ChatUser {
	if user.LastSeenAt != nil {
		stamp := *user.LastSeenAt
		user.LastSeenAt = &stamp
	}
	return user
}
