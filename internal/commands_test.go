package internal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeAPISuccess(t *testing.T, w http.ResponseWriter, data interface{}) {
	t.Helper()
	err := json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "data": data})
	require.NoError(t, err)
}

func newTestChatSession(t *testing.T, rest http.Handler, cb Callbacks) (*ChatSession, *chatServerStub) {
	t.Helper()
	stub := newChatServerStub(t)
	restServer := httptest.NewServer(rest)
	t.Cleanup(restServer.Close)

	session, err := NewChatSession(Config{
		ServerURL:  stub.wsURL(),
		APIBaseURL: restServer.URL,
		Token:      "token-1",
		UserID:     testSelfID,
	}, cb)
	require.NoError(t, err)
	t.Cleanup(session.Close)
	return session, stub
}

func openConversationFixture() map[string]interface{} {
	conversation := testConversation("conv-1", "admin-1", "Dana")
	conversation.UnreadCount = 2
	return map[string]interface{}{"conversations": []Conversation{conversation}}
}

func TestNewChatSessionRequiresUserID(t *testing.T) {
	_, err := NewChatSession(Config{ServerURL: "ws://example.invalid/socket", Token: "token-1"}, Callbacks{})
	require.Error(t, err)
}

func TestSendMessageWhileDisconnected(t *testing.T) {
	session, _ := newTestChatSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeAPISuccess(t, w, openConversationFixture())
	}), Callbacks{})

	_, err := session.FetchConversations(context.Background(), StatusOpen)
	require.NoError(t, err)

	_, err = session.SendMessage(context.Background(), "conv-1", "admin-1", "hello")
	require.ErrorIs(t, err, ErrNotConnected)
	require.Empty(t, session.Messages("conv-1"))
}

func TestSendMessageAfterExhaustion(t *testing.T) {
	restServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeAPISuccess(t, w, openConversationFixture())
	}))
	t.Cleanup(restServer.Close)

	session, err := NewChatSession(Config{
		ServerURL:      "ws://127.0.0.1:1/socket",
		APIBaseURL:     restServer.URL,
		Token:          "token-1",
		UserID:         testSelfID,
		DialTimeout:    100 * time.Millisecond,
		BackoffBase:    time.Millisecond,
		BackoffCeiling: 5 * time.Millisecond,
		MaxAttempts:    2,
	}, Callbacks{})
	require.NoError(t, err)
	t.Cleanup(session.Close)

	require.NoError(t, session.Connect())
	require.Eventually(t, func() bool {
		return session.ConnectionState() == StateExhausted
	}, 5*time.Second, 10*time.Millisecond)

	_, err = session.SendMessage(context.Background(), "conv-1", "admin-1", "hello")
	require.ErrorIs(t, err, ErrConnectionExhausted)
}

func TestFetchConversationsPopulatesCache(t *testing.T) {
	session, _ := newTestChatSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeAPISuccess(t, w, openConversationFixture())
	}), Callbacks{})

	conversations, err := session.FetchConversations(context.Background(), StatusOpen)
	require.NoError(t, err)
	require.Len(t, conversations, 1)
	require.Equal(t, 2, conversations[0].UnreadCount)
	require.Len(t, session.Conversations(StatusOpen), 1)
}

func TestFetchFailurePreservesCache(t *testing.T) {
	healthy := true
	session, _ := newTestChatSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeAPISuccess(t, w, openConversationFixture())
	}), Callbacks{})

	_, err := session.FetchConversations(context.Background(), StatusOpen)
	require.NoError(t, err)

	healthy = false
	_, err = session.FetchConversations(context.Background(), StatusOpen)
	require.ErrorIs(t, err, ErrFetchFailed)
	require.Len(t, session.Conversations(StatusOpen), 1)
}

func TestSendMessageEndToEnd(t *testing.T) {
	session, _ := newTestChatSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/conversations":
			writeAPISuccess(t, w, openConversationFixture())
		case r.URL.Path == "/messages":
			var req sendMessageRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.NotEmpty(t, req.CorrelationID)

			canonical := testMessage("srv-1", req.ConversationID, testSelfID, 0)
			canonical.Content = req.Content
			canonical.CorrelationID = req.CorrelationID
			writeAPISuccess(t, w, canonical)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}), Callbacks{})

	_, err := session.FetchConversations(context.Background(), StatusOpen)
	require.NoError(t, err)
	require.NoError(t, session.Connect())
	require.Eventually(t, session.IsConnected, 2*time.Second, 10*time.Millisecond)

	sent, err := session.SendMessage(context.Background(), "conv-1", "admin-1", "hello")
	require.NoError(t, err)
	require.Equal(t, "srv-1", sent.ID)

	messages := session.Messages("conv-1")
	require.Len(t, messages, 1)
	require.Equal(t, "srv-1", messages[0].ID)
	require.Equal(t, MessageConfirmed, messages[0].State)
}

func TestFetchMessagesThenDuplicateInbound(t *testing.T) {
	session, stub := newTestChatSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/conversations":
			writeAPISuccess(t, w, openConversationFixture())
		case "/conversations/conv-1/messages":
			writeAPISuccess(t, w, map[string]interface{}{
				"messages": []ChatMessage{testMessage("m1", "conv-1", "admin-1", 0)},
			})
		}
	}), Callbacks{})

	_, err := session.FetchConversations(context.Background(), StatusOpen)
	require.NoError(t, err)
	_, err = session.FetchMessages(context.Background(), "conv-1")
	require.NoError(t, err)

	require.NoError(t, session.Connect())
	require.Eventually(t, session.IsConnected, 2*time.Second, 10*time.Millisecond)

	// m1 replayed over the socket, then a genuinely new m2.
	stub.send <- []byte(`{"event":"message:new","data":{"id":"m1","conversationId":"conv-1","sender":{"id":"admin-1"},"content":"hello m1","type":"text","sentAt":"2026-03-01T10:00:00Z"}}`)
	stub.send <- []byte(`{"event":"message:new","data":{"id":"m2","conversationId":"conv-1","sender":{"id":"admin-1"},"content":"hello m2","type":"text","sentAt":"2026-03-01T10:01:00Z"}}`)

	require.Eventually(t, func() bool {
		return len(session.Messages("conv-1")) == 2
	}, 2*time.Second, 10*time.Millisecond)

	messages := session.Messages("conv-1")
	require.Equal(t, "m1", messages[0].ID)
	require.Equal(t, "m2", messages[1].ID)
}

func TestMarkAsReadZeroesUnread(t *testing.T) {
	session, _ := newTestChatSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/conversations":
			writeAPISuccess(t, w, openConversationFixture())
		case "/conversations/conv-1/mark-read":
			require.Equal(t, http.MethodPatch, r.Method)
			writeAPISuccess(t, w, nil)
		}
	}), Callbacks{})

	_, err := session.FetchConversations(context.Background(), StatusOpen)
	require.NoError(t, err)
	require.NoError(t, session.MarkAsRead(context.Background(), "conv-1"))

	conversations := session.Conversations(StatusOpen)
	require.Len(t, conversations, 1)
	require.Zero(t, conversations[0].UnreadCount)
}

func TestTypingIndicatorThrottlesStarts(t *testing.T) {
	session, stub := newTestChatSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeAPISuccess(t, w, openConversationFixture())
	}), Callbacks{})

	require.NoError(t, session.Connect())
	require.Eventually(t, session.IsConnected, 2*time.Second, 10*time.Millisecond)

	// Simulated key repeat: only the first start within the window goes out.
	session.SendTypingIndicator("conv-1", true)
	session.SendTypingIndicator("conv-1", true)
	session.SendTypingIndicator("conv-1", false)

	first := waitFor(t, stub.received)
	require.Contains(t, string(first), `"event":"typing:start"`)
	second := waitFor(t, stub.received)
	require.Contains(t, string(second), `"event":"typing:stop"`)

	select {
	case frame := <-stub.received:
		t.Fatalf("unexpected extra frame: %s", frame)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTypingIndicatorIsSilentWhileDisconnected(t *testing.T) {
	session, stub := newTestChatSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeAPISuccess(t, w, openConversationFixture())
	}), Callbacks{})

	session.SendTypingIndicator("conv-1", true)

	select {
	case frame := <-stub.received:
		t.Fatalf("unexpected frame while disconnected: %s", frame)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCloseAbortsRequests(t *testing.T) {
	session, _ := newTestChatSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeAPISuccess(t, w, openConversationFixture())
	}), Callbacks{})

	session.Close()

	_, err := session.FetchConversations(context.Background(), StatusOpen)
	require.Error(t, err)
	require.Equal(t, StateDisconnected, session.ConnectionState())
}

func TestStateChangeResetsTyping(t *testing.T) {
	states := make(chan ConnState, 8)
	session, stub := newTestChatSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeAPISuccess(t, w, openConversationFixture())
	}), Callbacks{
		OnStateChange: func(state ConnState) { states <- state },
	})

	_, err := session.FetchConversations(context.Background(), StatusOpen)
	require.NoError(t, err)
	require.NoError(t, session.Connect())
	require.Eventually(t, session.IsConnected, 2*time.Second, 10*time.Millisecond)

	stub.send <- []byte(`{"event":"typing:indicator","data":{"conversationId":"conv-1","user":{"id":"admin-1","name":"Dana"},"isTyping":true}}`)
	require.Eventually(t, func() bool {
		return len(session.TypingUsers("conv-1")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	session.Close()
	require.Empty(t, session.TypingUsers("conv-1"))
}
