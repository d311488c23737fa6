package internal

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// tui model struct for all the components and panes
type TUIModel struct {
	session   *ChatSession
	textInput textinput.Model

	pane          appPane
	status        ConversationStatus
	conversations []Conversation
	messages      []ChatMessage
	selected      int
	activeConv    string
	recipientID   string

	connState ConnState
	lastError error
	loading   bool
}

type appPane int

const (
	paneConversations appPane = iota
	paneChat
)

func NewTUIModel(session *ChatSession) *TUIModel {
	input := textinput.New()
	input.Placeholder = "Type a message…"
	input.CharLimit = 0
	input.Prompt = "> "

	return &TUIModel{
		session:   session,
		textInput: input,
		pane:      paneConversations,
		status:    StatusOpen,
		connState: StateDisconnected,
		loading:   true,
	}
}

func (model *TUIModel) Init() tea.Cmd {
	return tea.Batch(
		connectCmd(model.session),
		fetchConversationsCmd(model.session, model.status),
	)
}
