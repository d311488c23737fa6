package internal

import (
	"errors"
	"time"
)

// Role identifies which side of the booking platform a chat user belongs to.
type Role string

const (
	RolePartner Role = "partner"
	RoleAdmin   Role = "admin"
)

// ChatUser is a participant in a conversation. Users are never created by the
// client; presence events are the only thing that mutates them.
type ChatUser struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Role       Role       `json:"role"`
	AvatarRef  string     `json:"avatarRef,omitempty"`
	Online     bool       `json:"online"`
	LastSeenAt *time.Time `json:"lastSeenAt,omitempty"`
}

type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageFile  MessageType = "file"
)

// MessageState tags the local lifecycle of a message: pending while a send is
// in flight, confirmed once the server has assigned the canonical id. Inbound
// messages are always confirmed.
type MessageState int

const (
	MessageConfirmed MessageState = iota
	MessagePending
)

// ChatMessage is one entry in a conversation. DeliveredAt and ReadAt start
// unset and only ever transition to set.
type ChatMessage struct {
	ID             string       `json:"id"`
	ConversationID string       `json:"conversationId"`
	Sender         ChatUser     `json:"sender"`
	Content        string       `json:"content"`
	Type           MessageType  `json:"type"`
	AttachmentRef  string       `json:"attachmentRef,omitempty"`
	SentAt         time.Time    `json:"sentAt"`
	DeliveredAt    *time.Time   `json:"deliveredAt,omitempty"`
	ReadAt         *time.Time   `json:"readAt,omitempty"`
	CorrelationID  string       `json:"correlationId,omitempty"`
	State          MessageState `json:"-"`
}

type ConversationStatus string

const (
	StatusOpen     ConversationStatus = "open"
	StatusArchived ConversationStatus = "archived"
)

// Conversation is a single-peer thread between the operating user and one
// counterpart.
type Conversation struct {
	ID          string             `json:"id"`
	Participant ChatUser           `json:"participant"`
	LastMessage *ChatMessage       `json:"lastMessage"`
	UnreadCount int                `json:"unreadCount"`
	Status      ConversationStatus `json:"status"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// ErrNoCredentials is reported when a connection is requested without an auth
// token; it is not retried until the caller supplies one.
var ErrNoCredentials = errors.New("no auth token available")

// ErrNotConnected is reported for live-channel operations attempted while
// disconnected. Such operations are surfaced immediately, never queued.
var ErrNotConnected = errors.New("not connected to chat server")

// ErrFetchFailed wraps REST failures; the prior cache state is always left
// untouched when it is returned.
var ErrFetchFailed = errors.New("fetch failed")

// ErrConnectionExhausted marks the terminal state after the reconnect attempt
// ceiling; recovery requires a caller-initiated Connect.
var ErrConnectionExhausted = errors.New("connection attempts exhausted")
