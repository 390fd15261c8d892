// Package creem is a minimal HTTP client for the Creem checkout API.
package creem

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(baseURL, apiKey string, timeout time.Duration, log *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

// CheckoutRequest carries the fields the gateway needs to open a session.
// Metadata is echoed back on the completion webhook.
type CheckoutRequest struct {
	ProductID  string         `json:"product_id"`
	SuccessURL string         `json:"success_url"`
	CancelURL  string         `json:"cancel_url"`
	Metadata   map[string]any `json:"metadata"`
}

type Checkout struct {
	ID          string `json:"id"`
	CheckoutURL string `json:"checkout_url"`
}

func (c *Client) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal checkout request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/checkouts", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("post checkout: %w", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read checkout response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.log.Error("creem checkout failed", "status", resp.StatusCode, "body", truncateBody(rawBody))
		return nil, fmt.Errorf("creem checkout: status=%d body=%s", resp.StatusCode, truncateBody(rawBody))
	}

	var checkout Checkout
	if err := json.Unmarshal(rawBody, &checkout); err != nil {
		return nil, fmt.Errorf("decode checkout response: %w", err)
	}
	if checkout.ID == "" || checkout.CheckoutURL == "" {
		return nil, fmt.Errorf("invalid checkout response (missing id or checkout_url)")
	}
	return &checkout, nil
}

func truncateBody(body []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(body))
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "…"
}
