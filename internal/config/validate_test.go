package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDefaults(t *testing.T) {
	require.NoError(t, Validate(DefaultConfig()))
}

func TestValidateAccumulatesErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Graph.CustomerRoot = ""
	cfg.SMTP.Port = 0
	cfg.Store.Backend = "postgres"
	cfg.Uploads.Workers = 100
	cfg.Logging.LogLevel = "loud"

	err := Validate(cfg)
	require.Error(t, err)

	msg := err.Error()
	for _, want := range []string{"customer_root", "port", "backend", "workers", "log_level"} {
		assert.True(t, strings.Contains(msg, want), "missing %q in: %s", want, msg)
	}
}

func TestValidateGraphURLs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Graph.BaseURL = "http://graph.example.com"

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_url")
	assert.Contains(t, err.Error(), "https")
}

func TestValidateSMTPSender(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SMTP.Sender = "not-an-address"

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sender")

	cfg.SMTP.Sender = "noreply@example.com"
	require.NoError(t, Validate(cfg))
}

func TestValidateSlackWebhookOptional(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, Validate(cfg))

	cfg.Slack.WebhookURL = "ftp://hooks.example.com"
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook_url")

	cfg.Slack.WebhookURL = "https://hooks.slack.com/services/T/B/x"
	require.NoError(t, Validate(cfg))
}

func TestValidateSizesAndDurations(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SMTP.MaxMessageSize = "lots"
	cfg.Uploads.MaxImageSize = "-1MiB"
	cfg.Uploads.FolderCacheTTL = "never"
	cfg.Network.Timeout = "10ms"

	err := Validate(cfg)
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "max_message_size")
	assert.Contains(t, msg, "max_image_size")
	assert.Contains(t, msg, "folder_cache_ttl")
	assert.Contains(t, msg, "timeout")
}

func TestValidateZeroTimeoutAllowed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Network.Timeout = "0"
	require.NoError(t, Validate(cfg))
}
