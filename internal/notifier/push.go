package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"StockSentinel/internal/model"
)

const defaultPushEndpoint = "https://api.line.me/v2/bot/message/push"

// PushClient sends text messages via the LINE Messaging API push endpoint.
type PushClient struct {
	Token     string
	Recipient string
	Endpoint  string
	Client    *http.Client
}

// NewPushClient creates a push client with optional proxy support.
func NewPushClient(token, recipient, proxyURL string) *PushClient {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &PushClient{
		Token:     token,
		Recipient: recipient,
		Endpoint:  defaultPushEndpoint,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

// Send pushes one text message to the configured recipient.
func (p *PushClient) Send(text string) error {
	payload := map[string]any{
		"to": p.Recipient,
		"messages": []map[string]string{
			{"type": "text", "text": text},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, p.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.Token)

	resp, err := p.Client.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("push API error: status %d, body: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// SendWithRetry sends a message with exponential backoff retry.
func (p *PushClient) SendWithRetry(ctx context.Context, text string, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		if err := p.Send(text); err != nil {
			lastErr = err
			backoff := time.Duration(1<<uint(i)) * time.Second
			log.Printf("[WARN] push send failed (attempt %d/%d): %v, retrying in %v", i+1, maxRetries+1, err, backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				continue
			}
		}
		return nil
	}
	return fmt.Errorf("all %d retries exhausted: %w", maxRetries+1, lastErr)
}

// SendDecision formats and delivers one trade decision.
func (p *PushClient) SendDecision(ctx context.Context, d *model.Decision) error {
	return p.SendWithRetry(ctx, FormatDecision(d), 3)
}

// SendAlert delivers a plain operational alert.
func (p *PushClient) SendAlert(ctx context.Context, text string) error {
	return p.SendWithRetry(ctx, text, 3)
}
