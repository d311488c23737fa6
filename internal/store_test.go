package internal

import (
	"fmt"
	"testing"
	"time"
)

const testSelfID = "partner-1"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store := NewStore(testSelfID)
	store.ReplaceConversations(StatusOpen, []Conversation{
		testConversation("conv-1", "admin-1", "Dana"),
		testConversation("conv-2", "admin-2", "Rami"),
	})
	return store
}

func testConversation(id, peerID, peerName string) Conversation {
	return Conversation{
		ID:          id,
		Participant: ChatUser{ID: peerID, Name: peerName, Role: RoleAdmin},
		Status:      StatusOpen,
		CreatedAt:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		UpdatedAt:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func testMessage(id, convID, senderID string, minute int) ChatMessage {
	return ChatMessage{
		ID:             id,
		ConversationID: convID,
		Sender:         ChatUser{ID: senderID},
		Content:        "hello " + id,
		Type:           MessageText,
		SentAt:         time.Date(2026, 3, 1, 10, minute, 0, 0, time.UTC),
	}
}

func TestApplyMessageNewIdempotent(t *testing.T) {
	store := newTestStore(t)
	msg := testMessage("m1", "conv-1", "admin-1", 0)

	if !store.ApplyMessageNew(msg) {
		t.Fatalf("first apply rejected")
	}
	if store.ApplyMessageNew(msg) {
		t.Fatalf("duplicate apply accepted")
	}
	if got := len(store.Messages("conv-1")); got != 1 {
		t.Fatalf("expected 1 message, got %d", got)
	}
}

func TestApplyMessageNewDropsUntrackedConversation(t *testing.T) {
	store := newTestStore(t)
	if store.ApplyMessageNew(testMessage("m1", "conv-unknown", "admin-1", 0)) {
		t.Fatalf("message for untracked conversation accepted")
	}
	if got := len(store.Messages("conv-unknown")); got != 0 {
		t.Fatalf("expected no cached messages, got %d", got)
	}
}

func TestUnreadAccounting(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 3; i++ {
		store.ApplyMessageNew(testMessage(fmt.Sprintf("m%d", i), "conv-1", "admin-1", i))
	}
	conversation, _ := store.Conversation("conv-1")
	if conversation.UnreadCount != 3 {
		t.Fatalf("expected unread 3, got %d", conversation.UnreadCount)
	}

	store.ZeroUnread("conv-1")
	conversation, _ = store.Conversation("conv-1")
	if conversation.UnreadCount != 0 {
		t.Fatalf("expected unread 0 after mark-read, got %d", conversation.UnreadCount)
	}
}

func TestOwnMessageDoesNotBumpUnread(t *testing.T) {
	store := newTestStore(t)
	store.ApplyMessageNew(testMessage("m1", "conv-1", testSelfID, 0))
	conversation, _ := store.Conversation("conv-1")
	if conversation.UnreadCount != 0 {
		t.Fatalf("own echo inflated unread to %d", conversation.UnreadCount)
	}
}

func TestMarkDeliveredIsMonotonic(t *testing.T) {
	store := newTestStore(t)
	store.ApplyMessageNew(testMessage("m1", "conv-1", testSelfID, 0))

	first := time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC)
	if !store.MarkDelivered("conv-1", "m1", first) {
		t.Fatalf("first delivery ack rejected")
	}
	if store.MarkDelivered("conv-1", "m1", first.Add(time.Minute)) {
		t.Fatalf("second delivery ack accepted")
	}
	msg := store.Messages("conv-1")[0]
	if msg.DeliveredAt == nil || !msg.DeliveredAt.Equal(first) {
		t.Fatalf("deliveredAt = %v, want %v", msg.DeliveredAt, first)
	}
}

func TestMarkReadImpliesDelivered(t *testing.T) {
	store := newTestStore(t)
	store.ApplyMessageNew(testMessage("m1", "conv-1", testSelfID, 0))

	at := time.Date(2026, 3, 1, 10, 7, 0, 0, time.UTC)
	if !store.MarkRead("conv-1", "m1", at) {
		t.Fatalf("read ack rejected")
	}
	msg := store.Messages("conv-1")[0]
	if msg.ReadAt == nil || !msg.ReadAt.Equal(at) {
		t.Fatalf("readAt = %v, want %v", msg.ReadAt, at)
	}
	if msg.DeliveredAt == nil || !msg.DeliveredAt.Equal(at) {
		t.Fatalf("read should imply delivered, got %v", msg.DeliveredAt)
	}
	if store.MarkRead("conv-1", "m1", at.Add(time.Minute)) {
		t.Fatalf("second read ack accepted")
	}
}

func TestMessagesUnknownConversationIsEmpty(t *testing.T) {
	store := newTestStore(t)
	msgs := store.Messages("conv-nope")
	if msgs == nil || len(msgs) != 0 {
		t.Fatalf("expected empty non-nil list, got %v", msgs)
	}
}

func TestReplaceMessagesDedupesAndKeepsPending(t *testing.T) {
	store := newTestStore(t)

	pending := testMessage("tmp-1", "conv-1", testSelfID, 0)
	pending.CorrelationID = "corr-1"
	if !store.AppendPending(pending) {
		t.Fatalf("pending append rejected")
	}

	store.ReplaceMessages("conv-1", []ChatMessage{
		testMessage("m1", "conv-1", "admin-1", 1),
		testMessage("m1", "conv-1", "admin-1", 1),
		testMessage("m2", "conv-1", "admin-1", 2),
	})

	msgs := store.Messages("conv-1")
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages (2 fetched + 1 pending), got %d", len(msgs))
	}
	if msgs[0].ID != "m1" || msgs[1].ID != "m2" {
		t.Fatalf("fetched order wrong: %s, %s", msgs[0].ID, msgs[1].ID)
	}
	if msgs[2].State != MessagePending {
		t.Fatalf("pending send did not survive the replace")
	}
}

func TestReplaceMessagesIsReplaceNotMerge(t *testing.T) {
	store := newTestStore(t)
	store.ApplyMessageNew(testMessage("old", "conv-1", "admin-1", 0))

	store.ReplaceMessages("conv-1", []ChatMessage{testMessage("m1", "conv-1", "admin-1", 1)})

	msgs := store.Messages("conv-1")
	if len(msgs) != 1 || msgs[0].ID != "m1" {
		t.Fatalf("expected only the fetched list, got %v", msgs)
	}
}

func TestConfirmPendingSwapsPlaceholder(t *testing.T) {
	store := newTestStore(t)

	pending := testMessage("tmp-1", "conv-1", testSelfID, 0)
	pending.CorrelationID = "corr-1"
	store.AppendPending(pending)

	canonical := testMessage("srv-1", "conv-1", testSelfID, 1)
	store.ConfirmPending("conv-1", "corr-1", canonical)

	msgs := store.Messages("conv-1")
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].ID != "srv-1" || msgs[0].State != MessageConfirmed {
		t.Fatalf("placeholder not swapped: %+v", msgs[0])
	}

	// A later socket echo of the canonical message must not double-insert.
	if store.ApplyMessageNew(canonical) {
		t.Fatalf("echo of confirmed message accepted")
	}
}

func TestConfirmPendingAfterSocketEcho(t *testing.T) {
	store := newTestStore(t)

	pending := testMessage("tmp-1", "conv-1", testSelfID, 0)
	pending.CorrelationID = "corr-1"
	store.AppendPending(pending)

	canonical := testMessage("srv-1", "conv-1", testSelfID, 1)
	if !store.ApplyMessageNew(canonical) {
		t.Fatalf("socket echo rejected")
	}
	store.ConfirmPending("conv-1", "corr-1", canonical)

	msgs := store.Messages("conv-1")
	if len(msgs) != 1 || msgs[0].ID != "srv-1" {
		t.Fatalf("expected single canonical message, got %v", msgs)
	}
}

func TestConfirmPendingKeepsNewerLastMessage(t *testing.T) {
	store := newTestStore(t)

	pending := testMessage("tmp-1", "conv-1", testSelfID, 0)
	pending.CorrelationID = "corr-1"
	store.AppendPending(pending)

	// A peer message lands while the send round-trip is still in flight.
	store.ApplyMessageNew(testMessage("m-peer", "conv-1", "admin-1", 5))

	canonical := testMessage("srv-1", "conv-1", testSelfID, 1)
	store.ConfirmPending("conv-1", "corr-1", canonical)

	conversation, _ := store.Conversation("conv-1")
	if conversation.LastMessage == nil || conversation.LastMessage.ID != "m-peer" {
		t.Fatalf("lastMessage regressed to %+v, want m-peer", conversation.LastMessage)
	}
}

func TestRemovePendingDiscardsFailedSend(t *testing.T) {
	store := newTestStore(t)

	pending := testMessage("tmp-1", "conv-1", testSelfID, 0)
	pending.CorrelationID = "corr-1"
	store.AppendPending(pending)
	store.RemovePending("conv-1", "corr-1")

	if got := len(store.Messages("conv-1")); got != 0 {
		t.Fatalf("failed send left %d messages behind", got)
	}
}

func TestSetPresenceFansOut(t *testing.T) {
	store := NewStore(testSelfID)
	store.ReplaceConversations(StatusOpen, []Conversation{
		testConversation("conv-1", "admin-1", "Dana"),
		testConversation("conv-2", "admin-1", "Dana"),
		testConversation("conv-3", "admin-2", "Rami"),
	})

	lastSeen := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
	store.SetPresence("admin-1", false, &lastSeen)

	for _, id := range []string{"conv-1", "conv-2"} {
		conversation, _ := store.Conversation(id)
		if conversation.Participant.Online {
			t.Fatalf("%s participant still online", id)
		}
		if conversation.Participant.LastSeenAt == nil || !conversation.Participant.LastSeenAt.Equal(lastSeen) {
			t.Fatalf("%s lastSeenAt not recorded", id)
		}
	}
	conversation, _ := store.Conversation("conv-3")
	if conversation.Participant.Online {
		t.Fatalf("unrelated participant touched")
	}
}

func TestReplaceConversationsPreservesOtherStatus(t *testing.T) {
	store := NewStore(testSelfID)
	archived := testConversation("conv-a", "admin-9", "Lena")
	archived.Status = StatusArchived
	store.ReplaceConversations(StatusArchived, []Conversation{archived})
	store.ReplaceConversations(StatusOpen, []Conversation{testConversation("conv-1", "admin-1", "Dana")})

	store.ReplaceConversations(StatusOpen, []Conversation{testConversation("conv-2", "admin-2", "Rami")})

	if open := store.Conversations(StatusOpen); len(open) != 1 || open[0].ID != "conv-2" {
		t.Fatalf("open list not replaced: %v", open)
	}
	if got := store.Conversations(StatusArchived); len(got) != 1 || got[0].ID != "conv-a" {
		t.Fatalf("archived list disturbed: %v", got)
	}
	if store.HasConversation("conv-1") {
		t.Fatalf("stale open conversation survived the replace")
	}
}

func TestReadViewsAreCopies(t *testing.T) {
	store := newTestStore(t)
	store.ApplyMessageNew(testMessage("m1", "conv-1", "admin-1", 0))

	msgs := store.Messages("conv-1")
	msgs[0].Content = "mutated"
	if store.Messages("conv-1")[0].Content == "mutated" {
		t.Fatalf("message view aliases the cache")
	}

	conversations := store.Conversations(StatusOpen)
	conversations[0].Participant.Name = "mutated"
	if store.Conversations(StatusOpen)[0].Participant.Name == "mutated" {
		t.Fatalf("conversation view aliases the cache")
	}
}

func TestLastMessageTracksNewest(t *testing.T) {
	store := newTestStore(t)
	store.ApplyMessageNew(testMessage("m1", "conv-1", "admin-1", 0))
	store.ApplyMessageNew(testMessage("m2", "conv-1", "admin-1", 1))

	conversation, _ := store.Conversation("conv-1")
	if conversation.LastMessage == nil || conversation.LastMessage.ID != "m2" {
		t.Fatalf("lastMessage = %+v, want m2", conversation.LastMessage)
	}
	if !conversation.UpdatedAt.Equal(time.Date(2026, 3, 1, 10, 1, 0, 0, time.UTC)) {
		t.Fatalf("updatedAt not advanced: %v", conversation.UpdatedAt)
	}
}
