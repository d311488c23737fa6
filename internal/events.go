package internal

import (
	"encoding/json"
	"fmt"
	"time"
)

// Server -> client event names. Names the client does not recognize are
// ignored so newer servers stay compatible with older clients.
const (
	EventMessageNew       = "message:new"
	EventTypingIndicator  = "typing:indicator"
	EventUserOnline       = "user:online"
	EventUserOffline      = "user:offline"
	EventMessageDelivered = "message:delivered:ack"
	EventMessageRead      = "message:read:ack"
)

// Client -> server event names.
const (
	EventTypingStart = "typing:start"
	EventTypingStop  = "typing:stop"
)

// Envelope is the frame format on the live connection: an event-name
// discriminator plus a payload held raw for deferred decoding.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// TypingIndicatorEvent reports that a user started or stopped composing.
type TypingIndicatorEvent struct {
	ConversationID string   `json:"conversationId"`
	User           ChatUser `json:"user"`
	IsTyping       bool     `json:"isTyping"`
}

// UserOnlineEvent marks a participant as online everywhere they appear.
type UserOnlineEvent struct {
	UserID         string `json:"userId"`
	ConversationID string `json:"conversationId"`
	Online         bool   `json:"onlineness"`
}

// UserOfflineEvent marks a participant offline and records when they were
// last seen. A missing lastSeenAt leaves the previously known timestamp
// alone.
type UserOfflineEvent struct {
	UserID         string     `json:"userId"`
	ConversationID string     `json:"conversationId"`
	LastSeenAt     *time.Time `json:"lastSeenAt,omitempty"`
}

// MessageDeliveredEvent carries the server-confirmed delivery timestamp for
// one message.
type MessageDeliveredEvent struct {
	MessageID      string    `json:"messageId"`
	ConversationID string    `json:"conversationId"`
	DeliveredAt    time.Time `json:"deliveredAt"`
}

// MessageReadEvent carries the server-confirmed read timestamp for one
// message.
type MessageReadEvent struct {
	MessageID      string    `json:"messageId"`
	ConversationID string    `json:"conversationId"`
	ReadAt         time.Time `json:"readAt"`
}

// TypingSignal is the outbound payload for typing:start and typing:stop.
type TypingSignal struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

// EncodeClientEvent wraps a payload in the wire envelope for one outbound
// event.
func EncodeClientEvent(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}
