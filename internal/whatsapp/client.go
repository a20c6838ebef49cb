// Package whatsapp integrates the WhatsApp Cloud API: outbound text messages and
// the inbound webhook that turns provider messages into lead activity.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"viacrm_backend/platform/config"
	"viacrm_backend/platform/logger"
	"viacrm_backend/platform/phone"
)

const maxResponseBytes = 1 << 20

// Client sends messages through the Cloud API messages endpoint.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
	log      *logger.Logger
}

type textBody struct {
	Body string `json:"body"`
}

type sendRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textBody `json:"text"`
}

type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// APIError is a non-2xx answer from the provider.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("whatsapp api returned %d (code %d): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("whatsapp api returned %d: %s", e.StatusCode, e.Message)
}

// NewClient returns nil when the token or phone number id is missing.
func NewClient(cfg config.WhatsAppConfig, log *logger.Logger) *Client {
	if !cfg.IsWhatsAppEnabled() {
		return nil
	}

	endpoint := fmt.Sprintf("%s/%s/%s/messages",
		strings.TrimRight(cfg.GetWhatsAppBaseURL(), "/"),
		cfg.GetWhatsAppAPIVersion(),
		cfg.GetWhatsAppPhoneNumberID(),
	)

	return &Client{
		endpoint: endpoint,
		token:    cfg.GetWhatsAppToken(),
		http:     &http.Client{Timeout: 30 * time.Second},
		log:      log,
	}
}

// SendText posts a text message to a digits-only international number and
// returns the provider's JSON answer.
func (c *Client) SendText(ctx context.Context, to, text string) (json.RawMessage, error) {
	if c == nil {
		return nil, fmt.Errorf("whatsapp client is not configured")
	}

	recipient := strings.TrimPrefix(phone.FormatE164("+"+phone.Digits(to)), "+")

	body, err := json.Marshal(sendRequest{
		MessagingProduct: "whatsapp",
		To:               recipient,
		Type:             "text",
		Text:             textBody{Body: text},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal whatsapp payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whatsapp request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read whatsapp response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, parseAPIError(resp.StatusCode, data)
	}

	c.log.Info("whatsapp message sent", "to", recipient)
	if !json.Valid(data) {
		return nil, nil
	}
	return json.RawMessage(data), nil
}

func parseAPIError(status int, data []byte) *APIError {
	apiErr := &APIError{StatusCode: status}

	var envelope errorEnvelope
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Message = envelope.Error.Message
		apiErr.Code = envelope.Error.Code
		return apiErr
	}

	apiErr.Message = strings.TrimSpace(string(data))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}
