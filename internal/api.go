package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var httpTimeout = 10 * time.Second

// APIClient talks to the booking platform's REST chat endpoints. Every
// response uses the {success, data} envelope; success:false and non-2xx
// statuses both count as fetch failures.
type APIClient struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewAPIClient(baseURL, token string) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: httpTimeout},
	}
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error,omitempty"`
}

type conversationsPayload struct {
	Conversations []Conversation `json:"conversations"`
}

type messagesPayload struct {
	Messages []ChatMessage `json:"messages"`
}

type sendMessageRequest struct {
	ConversationID string      `json:"conversationId"`
	RecipientID    string      `json:"recipientId"`
	Content        string      `json:"content"`
	Type           MessageType `json:"type"`
	CorrelationID  string      `json:"correlationId,omitempty"`
}

func (a *APIClient) ListConversations(ctx context.Context, status ConversationStatus) ([]Conversation, error) {
	endpoint := a.baseURL + "/conversations?status=" + url.QueryEscape(string(status))
	var payload conversationsPayload
	if err := a.doJSONRequest(ctx, http.MethodGet, endpoint, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Conversations, nil
}

func (a *APIClient) ListMessages(ctx context.Context, conversationID string) ([]ChatMessage, error) {
	endpoint := a.baseURL + "/conversations/" + url.PathEscape(conversationID) + "/messages"
	var payload messagesPayload
	if err := a.doJSONRequest(ctx, http.MethodGet, endpoint, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Messages, nil
}

func (a *APIClient) SendMessage(ctx context.Context, req sendMessageRequest) (ChatMessage, error) {
	var message ChatMessage
	if err := a.doJSONRequest(ctx, http.MethodPost, a.baseURL+"/messages", req, &message); err != nil {
		return ChatMessage{}, err
	}
	return message, nil
}

func (a *APIClient) MarkRead(ctx context.Context, conversationID string) error {
	endpoint := a.baseURL + "/conversations/" + url.PathEscape(conversationID) + "/mark-read"
	return a.doJSONRequest(ctx, http.MethodPatch, endpoint, nil, nil)
}

func (a *APIClient) doJSONRequest(ctx context.Context, method, endpoint string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+a.token)
	req.Header.Set("User-Agent", UserAgent())

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: server returned %d: %s", ErrFetchFailed, resp.StatusCode, readResponseError(resp.Body))
	}

	var envelope apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrFetchFailed, err)
	}
	if !envelope.Success {
		reason := envelope.Error
		if reason == "" {
			reason = "request failed"
		}
		return fmt.Errorf("%w: %s", ErrFetchFailed, reason)
	}
	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("%w: decode payload: %v", ErrFetchFailed, err)
		}
	}
	return nil
}

func readResponseError(body io.Reader) string {
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return "request failed"
	}
	var parsed map[string]string
	if err := json.Unmarshal(data, &parsed); err == nil {
		if msg, ok := parsed["error"]; ok {
			return msg
		}
	}
	return strings.TrimSpace(string(data))
}
