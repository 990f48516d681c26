// Package notify sends test-run results to WhatsApp through the Twilio
// Messages API.
package notify

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// SandboxNumber is Twilio's shared WhatsApp sandbox sender
const SandboxNumber = "whatsapp:+14155238886"

const minTokenLength = 32

// ErrNotConfigured is returned when a required credential is missing
var ErrNotConfigured = errors.New("whatsapp notifications are not configured")

// Config holds the Twilio credentials and message routing
type Config struct {
	AccountSID string        `envconfig:"TWILIO_ACCOUNT_SID"`
	AuthToken  string        `envconfig:"TWILIO_AUTH_TOKEN"`
	From       string        `envconfig:"TWILIO_WHATSAPP_FROM" default:"whatsapp:+14155238886"`
	To         string        `envconfig:"TWILIO_WHATSAPP_TO"`
	APIBase    string        `envconfig:"TWILIO_API_BASE" default:"https://api.twilio.com"`
	Timeout    time.Duration `envconfig:"TWILIO_TIMEOUT" default:"30s"`
}

// LoadConfig reads Config from the process environment
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, fmt.Errorf("failed to read twilio configuration: %w", err)
	}
	return cfg, nil
}

// IsConfigured reports whether every credential and number is present
func (c Config) IsConfigured() bool {
	for _, v := range []string{c.AccountSID, c.AuthToken, c.From, c.To} {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}

// Validate checks the format of the credentials and numbers
func (c Config) Validate() error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}
	if !strings.HasPrefix(c.AccountSID, "AC") {
		return errors.New("invalid Account SID format (should start with 'AC')")
	}
	if len(c.AuthToken) < minTokenLength {
		return fmt.Errorf("invalid Auth Token format (should be %d+ characters)", minTokenLength)
	}
	if !strings.HasPrefix(c.From, "whatsapp:+") {
		return errors.New("invalid from number format (should be 'whatsapp:+1234567890')")
	}
	if !strings.HasPrefix(c.To, "whatsapp:+") {
		return errors.New("invalid to number format (should be 'whatsapp:+1234567890')")
	}
	return nil
}

// Redacted describes the configuration without leaking secrets
func (c Config) Redacted() map[string]string {
	sid := c.AccountSID
	if len(sid) > 10 {
		sid = sid[:10] + "..."
	}
	token := ""
	if c.AuthToken != "" {
		token = strings.Repeat("*", 20) + "..."
	}
	return map[string]string{
		"from":        c.From,
		"to":          c.To,
		"account_sid": sid,
		"auth_token":  token,
	}
}
