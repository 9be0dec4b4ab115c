package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bazaarlabs/bazaar-backend/pkg/config"
	pkgerrors "github.com/bazaarlabs/bazaar-backend/pkg/errors"
)

// Sender dispatches transactional email. Failures never affect the state
// transition that triggered the send.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Message is one transactional email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Client sends mail through the SendGrid v3 API.
type Client struct {
	apiKey     string
	from       string
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a mailer from configuration.
func NewClient(cfg config.MailerConfig) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("mailer api key is required")
	}
	if strings.TrimSpace(cfg.DefaultFrom) == "" {
		return nil, errors.New("mailer from address is required")
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://api.sendgrid.com"
	}
	return &Client{
		apiKey:     cfg.APIKey,
		from:       cfg.DefaultFrom,
		baseURL:    base,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

type sendgridPayload struct {
	Personalizations []struct {
		To []map[string]string `json:"to"`
	} `json:"personalizations"`
	From    map[string]string `json:"from"`
	Subject string            `json:"subject"`
	Content []map[string]string `json:"content"`
}

// Send dispatches one message.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient is required")
	}

	payload := sendgridPayload{
		From:    map[string]string{"email": c.from},
		Subject: msg.Subject,
		Content: []map[string]string{{"type": "text/html", "value": msg.Body}},
	}
	payload.Personalizations = append(payload.Personalizations, struct {
		To []map[string]string `json:"to"`
	}{To: []map[string]string{{"email": msg.To}}})

	raw, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode mail payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v3/mail/send", bytes.NewReader(raw))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build mail request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mailer unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("mailer returned %d", resp.StatusCode))
	}
	return nil
}
