// File: internal/infra/adapters/whatsapp/client.go
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"whatsapp-ai-tutor/internal/config"
	"whatsapp-ai-tutor/internal/domain/ports/adapter"
	"whatsapp-ai-tutor/internal/infra/logging"
	"whatsapp-ai-tutor/internal/infra/metrics"
)

var _ adapter.MessengerAdapter = (*Client)(nil)

// Client posts text messages through the WhatsApp Cloud (Graph) API.
// Delivery is a single attempt; the caller decides what a failure means.
type Client struct {
	token         string
	phoneNumberID string
	base          string // e.g., https://graph.facebook.com
	version       string // e.g., v20.0
	httpClient    *http.Client
	log           *zerolog.Logger
	dev           bool
}

func NewClient(cfg config.WhatsAppConfig, logger *zerolog.Logger, dev bool) *Client {
	return &Client{
		token:         cfg.Token,
		phoneNumberID: cfg.PhoneNumberID,
		base:          strings.TrimRight(cfg.APIBaseURL, "/"),
		version:       cfg.APIVersion,
		httpClient:    &http.Client{Timeout: 15 * time.Second},
		log:           logger,
		dev:           dev,
	}
}

type textBody struct {
	Body string `json:"body"`
}

type sendRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Text             textBody `json:"text"`
}

// SendText posts one message to the Graph API send-message endpoint.
func (c *Client) SendText(ctx context.Context, recipientID, text string) error {
	if c.token == "" {
		return errors.New("whatsapp: token missing")
	}
	if recipientID == "" {
		return errors.New("whatsapp: recipient required")
	}
	if strings.TrimSpace(text) == "" {
		return errors.New("whatsapp: text required")
	}

	payload := sendRequest{
		MessagingProduct: "whatsapp",
		To:               recipientID,
		Text:             textBody{Body: text},
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("whatsapp: marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s/messages", c.base, c.version, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("whatsapp: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveSend(int(time.Since(start).Milliseconds()), false)
		return fmt.Errorf("whatsapp: send: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	metrics.ObserveSend(int(time.Since(start).Milliseconds()), ok)

	if !ok {
		// Graph errors come back as {"error":{...}}; log it for diagnosis.
		var parsed struct {
			Error struct {
				Message string `json:"message"`
				Type    string `json:"type"`
				Code    int    `json:"code"`
			} `json:"error"`
		}
		if len(body) > 0 && json.Unmarshal(body, &parsed) == nil && parsed.Error.Message != "" {
			return fmt.Errorf("whatsapp: graph api error %d (%s): %s",
				parsed.Error.Code, parsed.Error.Type, parsed.Error.Message)
		}
		return fmt.Errorf("whatsapp: send failed: status %d", resp.StatusCode)
	}

	c.log.Info().
		Str("to", logging.Redact(recipientID, c.dev)).
		Int("status", resp.StatusCode).
		Msg("whatsapp message sent")
	return nil
}
