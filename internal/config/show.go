package config

import (
	"fmt"
	"io"
)

// redacted replaces secret values in rendered output.
const redacted = "[redacted]"

// RenderEffective writes the resolved configuration as a human-readable
// annotated summary to w. This powers the "config show" command, giving
// users visibility into the effective values after defaults, the config
// file, and the environment have all been applied. Secrets are redacted.
func RenderEffective(cfg *Config, w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("# Effective configuration\n\n")

	renderGraphSection(ew, &cfg.Graph)
	renderSMTPSection(ew, &cfg.SMTP)
	renderStoreSection(ew, &cfg.Store)
	renderSlackSection(ew, &cfg.Slack)
	renderUploadsSection(ew, &cfg.Uploads)
	renderNetworkSection(ew, &cfg.Network)
	renderLoggingSection(ew, &cfg.Logging)

	return ew.err
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops, so callers can chain
// printf calls without checking each one individually.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func renderGraphSection(ew *errWriter, g *GraphConfig) {
	ew.printf("[graph]\n")
	ew.printf("  tenant_id     = %q\n", g.TenantID)
	ew.printf("  client_id     = %q\n", g.ClientID)
	ew.printf("  client_secret = %q\n", redactIfSet(g.ClientSecret))
	ew.printf("  drive_id      = %q\n", g.DriveID)
	ew.printf("  customer_root = %q\n", g.CustomerRoot)
	ew.printf("  base_url      = %q\n", g.BaseURL)
	ew.printf("  authority_url = %q\n", g.AuthorityURL)
	ew.printf("\n")
}

func renderSMTPSection(ew *errWriter, s *SMTPConfig) {
	ew.printf("[smtp]\n")
	ew.printf("  host             = %q\n", s.Host)
	ew.printf("  port             = %d\n", s.Port)
	ew.printf("  username         = %q\n", s.Username)
	ew.printf("  password         = %q\n", redactIfSet(s.Password))
	ew.printf("  sender           = %q\n", s.Sender)
	ew.printf("  sender_name      = %q\n", s.SenderName)
	ew.printf("  max_message_size = %q\n", s.MaxMessageSize)
	ew.printf("\n")
}

func renderStoreSection(ew *errWriter, s *StoreConfig) {
	ew.printf("[store]\n")
	ew.printf("  backend        = %q\n", s.Backend)
	ew.printf("  path           = %q\n", s.Path)
	ew.printf("  admin_password = %q\n", redactIfSet(s.AdminPassword))
	ew.printf("\n")
}

func renderSlackSection(ew *errWriter, s *SlackConfig) {
	ew.printf("[slack]\n")
	ew.printf("  webhook_url = %q\n", redactIfSet(s.WebhookURL))
	ew.printf("\n")
}

func renderUploadsSection(ew *errWriter, u *UploadsConfig) {
	ew.printf("[uploads]\n")
	ew.printf("  workers          = %d\n", u.Workers)
	ew.printf("  max_image_size   = %q\n", u.MaxImageSize)
	ew.printf("  folder_cache_ttl = %q\n", u.FolderCacheTTL)
	ew.printf("\n")
}

func renderNetworkSection(ew *errWriter, n *NetworkConfig) {
	ew.printf("[network]\n")
	ew.printf("  timeout = %q\n", n.Timeout)
	ew.printf("\n")
}

func renderLoggingSection(ew *errWriter, l *LoggingConfig) {
	ew.printf("[logging]\n")
	ew.printf("  log_level  = %q\n", l.LogLevel)
	ew.printf("  log_format = %q\n", l.LogFormat)
}

// redactIfSet hides a secret while still showing whether it is configured.
func redactIfSet(s string) string {
	if s == "" {
		return ""
	}

	return redacted
}
