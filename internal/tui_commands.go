package internal

import (
	"context"
	"log/slog"
	"net/http"

	tea "github.com/charmbracelet/bubbletea"
)

// bubbletea messages produced by commands and by the session callbacks
type (
	errorMsg         struct{ err error }
	connStateMsg     ConnState
	inboundMsg       ChatMessage
	typingMsg        struct{ conversationID string }
	presenceMsg      struct{ userID string }
	ackMsg           struct{ conversationID string }
	conversationsMsg []Conversation
	messagesMsg      struct {
		conversationID string
		messages       []ChatMessage
	}
	sentMsg       struct{ err error }
	markedReadMsg struct{ conversationID string }
)

func connectCmd(session *ChatSession) tea.Cmd {
	return func() tea.Msg {
		if err := session.Connect(); err != nil {
			return errorMsg{err: err}
		}
		return nil
	}
}

func fetchConversationsCmd(session *ChatSession, status ConversationStatus) tea.Cmd {
	return func() tea.Msg {
		conversations, err := session.FetchConversations(context.Background(), status)
		if err != nil {
			return errorMsg{err: err}
		}
		return conversationsMsg(conversations)
	}
}

func fetchMessagesCmd(session *ChatSession, conversationID string) tea.Cmd {
	return func() tea.Msg {
		messages, err := session.FetchMessages(context.Background(), conversationID)
		if err != nil {
			return errorMsg{err: err}
		}
		return messagesMsg{conversationID: conversationID, messages: messages}
	}
}

func sendMessageCmd(session *ChatSession, conversationID, recipientID, content string) tea.Cmd {
	return func() tea.Msg {
		_, err := session.SendMessage(context.Background(), conversationID, recipientID, content)
		return sentMsg{err: err}
	}
}

func markReadCmd(session *ChatSession, conversationID string) tea.Cmd {
	return func() tea.Msg {
		if err := session.MarkAsRead(context.Background(), conversationID); err != nil {
			return errorMsg{err: err}
		}
		return markedReadMsg{conversationID: conversationID}
	}
}

// RunClient wires a chat session into the terminal UI and blocks until the
// user quits. Session callbacks are forwarded into the bubbletea loop with
// program.Send so all model mutation stays on the Update goroutine.
func RunClient(cfg Config) error {
	var program *tea.Program

	session, err := NewChatSession(cfg, Callbacks{
		OnMessage: func(message ChatMessage) {
			program.Send(inboundMsg(message))
		},
		OnTyping: func(conversationID string, _ ChatUser, _ bool) {
			program.Send(typingMsg{conversationID: conversationID})
		},
		OnPresence: func(userID string, _ bool) {
			program.Send(presenceMsg{userID: userID})
		},
		OnMessageAck: func(conversationID, _ string) {
			program.Send(ackMsg{conversationID: conversationID})
		},
		OnStateChange: func(state ConnState) {
			program.Send(connStateMsg(state))
		},
	})
	if err != nil {
		return err
	}
	defer session.Close()

	if cfg.DebugAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", session.MetricsHandler())
			if err := http.ListenAndServe(cfg.DebugAddr, mux); err != nil {
				slog.Warn("debug listener stopped", "error", err)
			}
		}()
	}

	program = tea.NewProgram(NewTUIModel(session))
	_, err = program.Run()
	return err
}
