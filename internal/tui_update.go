package internal

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

func (model *TUIModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch typedMessage := message.(type) {
	case tea.KeyMsg:
		// Ctrl+C bails out from any pane.
		if typedMessage.Type == tea.KeyCtrlC {
			return model, tea.Quit
		}
		switch model.pane {
		case paneConversations:
			return model.updateConversationsPane(typedMessage)
		case paneChat:
			return model.updateChatPane(typedMessage)
		}

	case connStateMsg:
		model.connState = ConnState(typedMessage)
		if model.connState == StateConnected {
			model.lastError = nil
		}
		return model, nil

	case inboundMsg:
		return model, model.refreshAfterEvent(typedMessage.ConversationID)

	case typingMsg, presenceMsg:
		// Typing sets and presence flags live in the session; a render pass
		// picks them up.
		return model, nil

	case ackMsg:
		if typedMessage.conversationID == model.activeConv {
			model.messages = model.session.Messages(model.activeConv)
		}
		return model, nil

	case conversationsMsg:
		model.conversations = typedMessage
		model.loading = false
		if model.selected >= len(model.conversations) {
			model.selected = 0
		}
		return model, nil

	case messagesMsg:
		if typedMessage.conversationID == model.activeConv {
			model.messages = typedMessage.messages
		}
		return model, nil

	case sentMsg:
		if typedMessage.err != nil {
			// Keep the draft so the user can retry once reconnected.
			model.lastError = typedMessage.err
			return model, nil
		}
		model.textInput.SetValue("")
		model.messages = model.session.Messages(model.activeConv)
		return model, nil

	case markedReadMsg:
		model.conversations = model.session.Conversations(model.status)
		return model, nil

	case errorMsg:
		model.lastError = typedMessage.err
		model.loading = false
		return model, nil
	}
	return model, nil
}

func (model *TUIModel) updateConversationsPane(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "q":
		return model, tea.Quit
	case "up", "k":
		if model.selected > 0 {
			model.selected--
		}
		return model, nil
	case "down", "j":
		if model.selected < len(model.conversations)-1 {
			model.selected++
		}
		return model, nil
	case "tab":
		if model.status == StatusOpen {
			model.status = StatusArchived
		} else {
			model.status = StatusOpen
		}
		model.selected = 0
		model.loading = true
		return model, fetchConversationsCmd(model.session, model.status)
	case "r":
		model.loading = true
		return model, tea.Batch(
			connectCmd(model.session),
			fetchConversationsCmd(model.session, model.status),
		)
	case "enter":
		if model.selected >= len(model.conversations) {
			return model, nil
		}
		conversation := model.conversations[model.selected]
		model.pane = paneChat
		model.activeConv = conversation.ID
		model.recipientID = conversation.Participant.ID
		model.messages = model.session.Messages(conversation.ID)
		focusCmd := model.textInput.Focus()
		return model, tea.Batch(
			focusCmd,
			fetchMessagesCmd(model.session, conversation.ID),
			markReadCmd(model.session, conversation.ID),
		)
	}
	return model, nil
}

func (model *TUIModel) updateChatPane(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.Type {
	case tea.KeyEsc:
		model.session.SendTypingIndicator(model.activeConv, false)
		model.pane = paneConversations
		model.activeConv = ""
		model.recipientID = ""
		model.messages = nil
		model.textInput.SetValue("")
		model.textInput.Blur()
		return model, fetchConversationsCmd(model.session, model.status)
	case tea.KeyEnter:
		trimmed := strings.TrimSpace(model.textInput.Value())
		if trimmed == "" {
			return model, nil
		}
		model.session.SendTypingIndicator(model.activeConv, false)
		return model, sendMessageCmd(model.session, model.activeConv, model.recipientID, trimmed)
	}

	var command tea.Cmd
	model.textInput, command = model.textInput.Update(key)
	model.session.SendTypingIndicator(model.activeConv, true)
	return model, command
}

// refreshAfterEvent re-reads the cached views an inbound message touched.
func (model *TUIModel) refreshAfterEvent(conversationID string) tea.Cmd {
	model.conversations = model.session.Conversations(model.status)
	if conversationID != model.activeConv {
		return nil
	}
	model.messages = model.session.Messages(conversationID)
	// Reading the thread while it is open marks it read right away.
	return markReadCmd(model.session, conversationID)
}
