// Package whatsapp sends outbound messages through an Evolution API
// instance and holds the engine's message templates.
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

	"leadrouter_backend/platform/config"
	"leadrouter_backend/platform/logger"
	"leadrouter_backend/platform/phone"
)

// Client talks to one Evolution API instance. A nil client is a no-op
// sender, so the engine runs without a configured transport in development.
type Client struct {
	baseURL  string
	apiKey   string
	instance string
	http     *http.Client
	log      *logger.Logger
}

type sendTextRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

// NewClient creates an Evolution API client, or nil when no URL is set.
func NewClient(cfg config.EvolutionConfig, log *logger.Logger) *Client {
	if !cfg.IsEvolutionEnabled() {
		return nil
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.GetEvolutionURL(), "/"),
		apiKey:   cfg.GetEvolutionAPIKey(),
		instance: cfg.GetEvolutionInstance(),
		http:     &http.Client{Timeout: 15 * time.Second},
		log:      log,
	}
}

// SendText delivers a plain text message to the phone (canonical digits).
func (c *Client) SendText(ctx context.Context, phoneNumber, text string) error {
	if c == nil {
		return nil
	}

	normalized := phone.Normalize(phoneNumber)
	payload := sendTextRequest{Number: normalized, Text: text}

	if err := c.post(ctx, "/message/sendText/"+c.instance, payload); err != nil {
		return err
	}

	c.log.Info("whatsapp text sent", "phone", normalized)
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal whatsapp payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("whatsapp service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return nil
}
