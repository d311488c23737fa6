package app

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ClientConfig defines the parameters the chat client needs.
type ClientConfig struct {
	ServerURL  string
	APIBaseURL string
	Token      string
	UserID     string
	DebugAddr  string
}

// Validate checks the fields a session cannot run without. The token is
// allowed to be empty here; connecting without one fails with a clear error
// instead of a retry loop.
func (cfg ClientConfig) Validate() error {
	if strings.TrimSpace(cfg.ServerURL) == "" {
		return errors.New("server URL is required")
	}
	if strings.TrimSpace(cfg.UserID) == "" {
		return errors.New("user id is required")
	}
	return nil
}

// DeriveAPIBaseURL maps the websocket URL onto its REST sibling, ws to http
// and wss to https, dropping the socket path.
func DeriveAPIBaseURL(serverURL string) (string, error) {
	parsed, err := url.Parse(serverURL)
	if err != nil {
		return "", err
	}
	switch parsed.Scheme {
	case "ws":
		parsed.Scheme = "http"
	case "wss":
		parsed.Scheme = "https"
	default:
		return "", fmt.Errorf("invalid scheme for websocket: %s", parsed.Scheme)
	}
	parsed.Path = "/api/chat"
	parsed.RawQuery = ""
	return parsed.String(), nil
}
