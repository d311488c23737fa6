package internal

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// pre styled colors, all from lipgloss
var (
	appTitleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213")).Padding(0, 1)
	listBoxStyle     = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(1, 2).MarginTop(1)
	hintStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).MarginTop(1)
	chatHeaderStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213")).BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).BorderForeground(lipgloss.Color("63")).Padding(0, 1)
	statusStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("109")).MarginTop(1)
	connectedStyle   = statusStyle.Copy().Foreground(lipgloss.Color("42")).Bold(true)
	connectingStyle  = statusStyle.Copy().Foreground(lipgloss.Color("178")).Italic(true)
	errorStyle       = statusStyle.Copy().Foreground(lipgloss.Color("196")).Bold(true)
	messageBodyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("253"))
	messageBoxStyle  = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("60")).Padding(1, 2).MarginTop(1)
	inputBoxStyle    = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1).MarginTop(1)
	timestampStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	usernameStyle    = lipgloss.NewStyle().Bold(true)
	selfStyle        = usernameStyle.Copy().Foreground(lipgloss.Color("213"))
	typingStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Italic(true)
	selectedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("213")).Bold(true)
	itemStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	unreadStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	tickStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	userColorPalette = []lipgloss.Color{
		lipgloss.Color("45"),
		lipgloss.Color("81"),
		lipgloss.Color("141"),
		lipgloss.Color("98"),
		lipgloss.Color("63"),
		lipgloss.Color("135"),
		lipgloss.Color("32"),
	}
)

func (model TUIModel) View() string {
	if model.pane == paneChat {
		return model.renderChatView()
	}
	return model.renderConversationsView()
}

func (model TUIModel) renderConversationsView() string {
	title := appTitleStyle.Render("BookChat")
	statusLabel := "Open"
	if model.status == StatusArchived {
		statusLabel = "Archived"
	}
	header := lipgloss.JoinVertical(lipgloss.Left, title, hintStyle.Render(statusLabel+" conversations"))

	var lines []string
	switch {
	case model.loading:
		lines = append(lines, connectingStyle.Render("Loading…"))
	case len(model.conversations) == 0:
		lines = append(lines, hintStyle.Render("No conversations."))
	default:
		for idx, conversation := range model.conversations {
			lines = append(lines, model.renderConversationLine(idx, conversation))
		}
	}

	sections := []string{header, model.renderStatusLine()}
	sections = append(sections, listBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)))
	sections = append(sections, hintStyle.Render("↑/↓ select • Enter open • Tab open/archived • r reconnect+refresh • q quit"))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (model TUIModel) renderConversationLine(idx int, conversation Conversation) string {
	prefix := "  "
	lineStyle := itemStyle
	if idx == model.selected {
		prefix = "➤ "
		lineStyle = selectedStyle
	}

	preview := ""
	if conversation.LastMessage != nil {
		preview = truncate(conversation.LastMessage.Content, 40)
	}
	line := fmt.Sprintf("%s%s %s", prefix, presenceDot(conversation.Participant.Online), conversation.Participant.Name)
	if preview != "" {
		line += "  " + timestampStyle.Render(preview)
	}
	if conversation.UnreadCount > 0 {
		line += " " + unreadStyle.Render(fmt.Sprintf("(%d)", conversation.UnreadCount))
	}
	return lineStyle.Render(line)
}

func (model TUIModel) renderChatView() string {
	peer := model.peerName()
	headerSegments := []string{"BookChat", fmt.Sprintf("Chat with %s", peer)}
	header := chatHeaderStyle.Render(strings.Join(headerSegments, " ┃ "))

	var messageLines []string
	for _, message := range model.messages {
		messageLines = append(messageLines, model.renderChatMessage(message))
	}
	if len(messageLines) == 0 {
		messageLines = append(messageLines, hintStyle.Render("No messages yet."))
	}

	sections := []string{header, model.renderStatusLine()}
	sections = append(sections, messageBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, messageLines...)))
	if typing := model.renderTypingLine(); typing != "" {
		sections = append(sections, typing)
	}
	sections = append(sections, inputBoxStyle.Render(model.textInput.View()))
	sections = append(sections, hintStyle.Render("Esc back to conversations"))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (model TUIModel) renderStatusLine() string {
	if model.lastError != nil {
		return errorStyle.Render("Error: " + model.lastError.Error())
	}
	switch model.connState {
	case StateConnected:
		return connectedStyle.Render("Connected")
	case StateConnecting:
		return connectingStyle.Render("Connecting…")
	case StateExhausted:
		return errorStyle.Render("Connection lost. Press r to reconnect.")
	default:
		return statusStyle.Render("Disconnected")
	}
}

func (model TUIModel) renderTypingLine() string {
	users := model.session.TypingUsers(model.activeConv)
	if len(users) == 0 {
		return ""
	}
	names := make([]string, 0, len(users))
	for _, user := range users {
		names = append(names, user.Name)
	}
	return typingStyle.Render(strings.Join(names, ", ") + " is typing…")
}

// renderChatMessage renders one message line with its timestamp, sender and
// delivery ticks.
func (model TUIModel) renderChatMessage(message ChatMessage) string {
	timestamp := timestampStyle.Render(fmt.Sprintf("[%s]", message.SentAt.Local().Format("15:04:05")))

	name := message.Sender.Name
	var nameStyle lipgloss.Style
	if message.Sender.ID == model.session.UserID() {
		nameStyle = selfStyle
		if name == "" {
			name = "me"
		}
	} else {
		nameStyle = usernameStyle.Copy().Foreground(colorForUser(name))
	}

	body := messageBodyStyle.Render(strings.ReplaceAll(message.Content, "\n", "\n   "))
	line := lipgloss.JoinHorizontal(lipgloss.Left, timestamp, " ", nameStyle.Render(name), ": ", body)
	if message.Sender.ID == model.session.UserID() {
		line = lipgloss.JoinHorizontal(lipgloss.Left, line, " ", tickStyle.Render(deliveryTicks(message)))
	}
	return line
}

// deliveryTicks mirrors the usual messenger affordance: pending, sent,
// delivered, read.
func deliveryTicks(message ChatMessage) string {
	switch {
	case message.State == MessagePending:
		return "…"
	case message.ReadAt != nil:
		return "✓✓"
	case message.DeliveredAt != nil:
		return "✓"
	default:
		return ""
	}
}

func (model TUIModel) peerName() string {
	for _, conversation := range model.conversations {
		if conversation.ID == model.activeConv {
			return conversation.Participant.Name
		}
	}
	return "…"
}

func presenceDot(online bool) string {
	if online {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Render("●")
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render("○")
}

func truncate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max-1]) + "…"
}

// color for users
func colorForUser(name string) lipgloss.Color {
	if name == "" {
		return userColorPalette[0]
	}
	var sum int
	for _, r := range name {
		sum += int(r)
	}
	return userColorPalette[sum%len(userColorPalette)]
}
