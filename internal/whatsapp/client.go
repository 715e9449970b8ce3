// Package whatsapp is the outbound messaging gateway client.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/phone"
)

// Client sends text and document messages through a GOWA-compatible gateway.
type Client struct {
	baseURL  string
	apiKey   string
	deviceID string
	region   string
	http     *http.Client
	log      *logger.Logger
}

type messageRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

type documentRequest struct {
	Phone    string `json:"phone"`
	FileURL  string `json:"file_url"`
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	Caption  string `json:"caption,omitempty"`
}

type sendResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Results struct {
		MessageID string `json:"message_id"`
		Status    string `json:"status"`
	} `json:"results"`
}

var errNotConfigured = apperr.Unavailable("whatsapp gateway not configured", nil)

// NewClient returns nil when no gateway URL is configured.
func NewClient(cfg config.WhatsAppConfig, log *logger.Logger) *Client {
	if cfg.GetWhatsAppURL() == "" {
		return nil
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.GetWhatsAppURL(), "/"),
		apiKey:   cfg.GetWhatsAppKey(),
		deviceID: cfg.GetWhatsAppDeviceID(),
		region:   cfg.GetPhoneDefaultRegion(),
		http:     &http.Client{Timeout: 15 * time.Second},
		log:      log,
	}
}

// SendMessage sends a text message and returns the gateway message id.
// userID selects the sender device when no fixed device is configured.
func (c *Client) SendMessage(ctx context.Context, userID, to, body string) (string, error) {
	if c == nil {
		return "", errNotConfigured
	}
	recipient := c.recipient(to)
	return c.post(ctx, "/send/message", userID, recipient, messageRequest{
		Phone:   recipient,
		Message: body,
	})
}

// SendDocument sends a file by URL with an optional caption.
func (c *Client) SendDocument(ctx context.Context, userID, to, fileURL, fileName, mime, caption string) (string, error) {
	if c == nil {
		return "", errNotConfigured
	}
	recipient := c.recipient(to)
	return c.post(ctx, "/send/file", userID, recipient, documentRequest{
		Phone:    recipient,
		FileURL:  fileURL,
		FileName: fileName,
		MimeType: mime,
		Caption:  caption,
	})
}

func (c *Client) recipient(to string) string {
	return strings.TrimPrefix(phone.NormalizeE164(to, c.region), "+")
}

func (c *Client) post(ctx context.Context, path, userID, recipient string, payload any) (string, error) {
	if recipient == "" {
		return "", apperr.Validation("lead has no phone number")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal whatsapp payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build whatsapp request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", formatAuthHeader(c.apiKey))
	}
	if device := c.device(userID); device != "" {
		req.Header.Set("X-Device-Id", device)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", apperr.Unavailable("whatsapp gateway unreachable", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return "", apperr.Unavailable("whatsapp gateway error",
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data))))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", apperr.Wrap(apperr.KindBadRequest, "whatsapp gateway rejected message",
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data))))
	}

	var out sendResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", apperr.Unavailable("whatsapp gateway returned malformed response", err)
	}
	if out.Results.MessageID == "" {
		return "", apperr.Unavailable("whatsapp gateway returned no message id", fmt.Errorf("code %q: %s", out.Code, out.Message))
	}

	c.log.Info("whatsapp sent via gowa", "phone", recipient, "message_id", out.Results.MessageID)
	return out.Results.MessageID, nil
}

func (c *Client) device(userID string) string {
	if c.deviceID != "" {
		return c.deviceID
	}
	return userID
}

func formatAuthHeader(apiKey string) string {
	if strings.HasPrefix(strings.ToLower(apiKey), "basic ") {
		return apiKey
	}

	encoded := base64.StdEncoding.EncodeToString([]byte(apiKey))
	return "Basic " + encoded
}
