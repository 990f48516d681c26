package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

// Client posts messages to the Twilio Messages API. It makes a single
// attempt per message.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        logrus.FieldLogger
	now        func() time.Time
}

// NewClient validates cfg and returns a client for it
func NewClient(cfg Config, logger logrus.FieldLogger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.twilio.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger.WithField("component", "notify"),
		now:        time.Now,
	}, nil
}

type messageResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

type apiError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
}

// Send delivers body and returns the message SID
func (c *Client) Send(ctx context.Context, body string) (string, error) {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json",
		strings.TrimRight(c.cfg.APIBase, "/"), url.PathEscape(c.cfg.AccountSID))

	form := url.Values{}
	form.Set("From", c.cfg.From)
	form.Set("To", c.cfg.To)
	form.Set("Body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build twilio request: %w", err)
	}
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send whatsapp message: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read twilio response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Message != "" {
			return "", fmt.Errorf("twilio rejected message (HTTP %d, code %d): %s", resp.StatusCode, apiErr.Code, apiErr.Message)
		}
		return "", fmt.Errorf("twilio rejected message: HTTP %d", resp.StatusCode)
	}

	var msg messageResponse
	if err := json.Unmarshal(data, &msg); err != nil {
		return "", fmt.Errorf("failed to decode twilio response: %w", err)
	}

	c.log.WithFields(logrus.Fields{"sid": msg.SID, "to": c.cfg.To}).Info("✅ WhatsApp message sent")
	return msg.SID, nil
}

// Notify builds the message for status and sends it
func (c *Client) Notify(ctx context.Context, status Status, dashboardURL string, info WorkflowInfo) (string, error) {
	if status == StatusSuccess && dashboardURL == "" {
		return "", fmt.Errorf("a dashboard URL is required for success notifications")
	}
	return c.Send(ctx, BuildMessage(status, dashboardURL, info, c.now()))
}
