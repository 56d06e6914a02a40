package cli

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

// Config holds CLI configuration
type Config struct {
	ServerURL string
	Name      string
	Output    string
	Verbose   bool
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		ServerURL: "http://localhost:8080",
		Name:      defaultName(),
		Output:    "text",
		Verbose:   false,
	}
}

// RelayURL returns the websocket address of the relay behind ServerURL
func (c *Config) RelayURL() (string, error) {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return "", fmt.Errorf("invalid server URL %q: %w", c.ServerURL, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("invalid server URL %q: unsupported scheme", c.ServerURL)
	}
	u.Path = "/"
	u.RawQuery = ""
	return u.String(), nil
}

// InviteURL is the link other players use to join roomID
func (c *Config) InviteURL(roomID string) string {
	return strings.TrimSuffix(c.ServerURL, "/") + "/?room=" + url.QueryEscape(roomID)
}

func defaultName() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "player"
}
