package internal

import (
	"sort"
	"sync"
)

// TypingTracker keeps the set of users currently composing in each
// conversation. The sets are derived purely from typing events, never
// persisted, and are wiped whenever the connection drops.
type TypingTracker struct {
	mu     sync.Mutex
	typing map[string]map[string]ChatUser
}

func NewTypingTracker() *TypingTracker {
	return &TypingTracker{typing: make(map[string]map[string]ChatUser)}
}

// Set adds or removes a user from a conversation's typing set. A stop for a
// user that was never seen typing is a no-op.
func (t *TypingTracker) Set(conversationID string, user ChatUser, isTyping bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	users, ok := t.typing[conversationID]
	if !isTyping {
		if ok {
			delete(users, user.ID)
			if len(users) == 0 {
				delete(t.typing, conversationID)
			}
		}
		return
	}
	if !ok {
		users = make(map[string]ChatUser)
		t.typing[conversationID] = users
	}
	users[user.ID] = user
}

// Typing returns the users composing in a conversation, ordered by name for a
// stable render.
func (t *TypingTracker) Typing(conversationID string) []ChatUser {
	t.mu.Lock()
	defer t.mu.Unlock()
	users := t.typing[conversationID]
	out := make([]ChatUser, 0, len(users))
	for _, user := range users {
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// IsTyping reports whether one user is composing in a conversation.
func (t *TypingTracker) IsTyping(conversationID, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	users, ok := t.typing[conversationID]
	if !ok {
		return false
	}
	_, typing := users[userID]
	return typing
}

// Reset wipes all typing state. Typing signals are perishable, so a dropped
// connection invalidates everything at once.
func (t *TypingTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.typing = make(map[string]map[string]ChatUser)
}
