// Package resend delivers rendered notifications through the Resend email API.
package resend

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

	"document_notifier/internal/domain/delivery"
	"document_notifier/internal/infra/metrics"
)

const (
	DefaultBaseURL = "https://api.resend.com"
	defaultTimeout = 30 * time.Second
	userAgent      = "document-notifier/1"
)

// Client implements delivery.Client. It makes exactly one request per Send; retrying is
// the dispatch engine's job.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewClient(apiKey, baseURL string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("resend API key is required")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}, nil
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	CC      []string `json:"cc,omitempty"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type sendResponse struct {
	ID string `json:"id"`
}

type apiError struct {
	StatusCode int    `json:"statusCode"`
	Name       string `json:"name"`
	Message    string `json:"message"`
}

func (c *Client) Send(ctx context.Context, msg delivery.Message) (string, error) {
	body, err := json.Marshal(sendRequest{
		From:    msg.From,
		To:      msg.To,
		CC:      msg.CC,
		Subject: msg.Subject,
		HTML:    msg.HTML,
	})
	if err != nil {
		return "", fmt.Errorf("%w: encode request: %v", delivery.ErrPermanent, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: create request: %v", delivery.ErrPermanent, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if msg.IdempotencyKey != "" {
		req.Header.Set("Idempotency-Key", msg.IdempotencyKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start).Seconds()
	if err != nil {
		metrics.ProviderRequestDuration.WithLabelValues("error").Observe(duration)
		return "", fmt.Errorf("resend request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		metrics.ProviderRequestDuration.WithLabelValues("success").Observe(duration)
		var out sendResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			// The provider accepted the message; a bad body must not cause a resend.
			return "", nil
		}
		return out.ID, nil
	}

	metrics.ProviderRequestDuration.WithLabelValues("error").Observe(duration)
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	detail := strings.TrimSpace(string(respBody))
	var ae apiError
	if json.Unmarshal(respBody, &ae) == nil && ae.Message != "" {
		detail = ae.Name + ": " + ae.Message
	}
	err = fmt.Errorf("resend returned HTTP %d: %s", resp.StatusCode, detail)
	if !retryable(resp.StatusCode) {
		return "", fmt.Errorf("%w: %v", delivery.ErrPermanent, err)
	}
	return "", err
}

// retryable reports whether a non-2xx status is worth another attempt. Timeouts, conflicts
// on an in-flight idempotency key, rate limiting and server errors are.
func retryable(status int) bool {
	switch {
	case status == http.StatusRequestTimeout, status == http.StatusConflict, status == http.StatusTooManyRequests:
		return true
	case status >= 500:
		return true
	default:
		return false
	}
}
