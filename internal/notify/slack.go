package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// SlackPoster posts short status lines to a Slack incoming webhook.
// A zero webhook URL disables posting.
type SlackPoster struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewSlackPoster builds a poster. httpClient may be nil for the default.
func NewSlackPoster(webhookURL string, httpClient *http.Client, logger *slog.Logger) *SlackPoster {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &SlackPoster{webhookURL: webhookURL, httpClient: httpClient, logger: logger}
}

// Post sends text to the webhook. No-op when no webhook is configured.
func (p *SlackPoster) Post(ctx context.Context, text string) error {
	if p.webhookURL == "" {
		return nil
	}

	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("encoding webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("posting to webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512)) //nolint:errcheck // best-effort diagnostic
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, string(body))
	}

	p.logger.Debug("posted to webhook", slog.Int("bytes", len(payload)))

	return nil
}
