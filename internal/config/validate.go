package config

import (
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"
)

// Validation range constants.
const (
	minSMTPPort = 1
	maxSMTPPort = 65535
	minWorkers  = 1
	maxWorkers  = 32
	minTimeout  = 1 * time.Second
)

// storeBackends are the accepted store.backend values.
var storeBackends = map[string]bool{
	"csv":    true,
	"sqlite": true,
	"xlsx":   true,
}

// logLevels are the accepted logging.log_level values.
var logLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// logFormats are the accepted logging.log_format values.
var logFormats = map[string]bool{
	"auto": true,
	"text": true,
	"json": true,
}

// Validate checks all configuration values and returns all errors found.
// It accumulates every error rather than stopping at the first, so users
// see a complete report and can fix all issues in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateGraph(&cfg.Graph)...)
	errs = append(errs, validateSMTP(&cfg.SMTP)...)
	errs = append(errs, validateStore(&cfg.Store)...)
	errs = append(errs, validateSlack(&cfg.Slack)...)
	errs = append(errs, validateUploads(&cfg.Uploads)...)
	errs = append(errs, validateNetwork(&cfg.Network)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)

	return errors.Join(errs...)
}

func validateGraph(g *GraphConfig) []error {
	var errs []error

	if g.CustomerRoot == "" {
		errs = append(errs, errors.New("customer_root: must not be empty"))
	}

	for _, u := range []struct {
		name, value string
	}{
		{"base_url", g.BaseURL},
		{"authority_url", g.AuthorityURL},
	} {
		if err := validateHTTPSURL(u.value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", u.name, err))
		}
	}

	return errs
}

func validateSMTP(s *SMTPConfig) []error {
	var errs []error

	if s.Port < minSMTPPort || s.Port > maxSMTPPort {
		errs = append(errs, fmt.Errorf("port: must be %d-%d, got %d", minSMTPPort, maxSMTPPort, s.Port))
	}

	if s.Sender != "" {
		if _, err := mail.ParseAddress(s.Sender); err != nil {
			errs = append(errs, fmt.Errorf("sender: invalid address %q", s.Sender))
		}
	}

	if _, err := parseSize(s.MaxMessageSize); err != nil {
		errs = append(errs, fmt.Errorf("max_message_size: %w", err))
	}

	return errs
}

func validateStore(s *StoreConfig) []error {
	var errs []error

	if !storeBackends[s.Backend] {
		errs = append(errs, fmt.Errorf("backend: must be one of csv, sqlite, xlsx, got %q", s.Backend))
	}

	if s.Path == "" {
		errs = append(errs, errors.New("path: must not be empty"))
	}

	return errs
}

func validateSlack(s *SlackConfig) []error {
	if s.WebhookURL == "" {
		return nil
	}

	if err := validateHTTPSURL(s.WebhookURL); err != nil {
		return []error{fmt.Errorf("webhook_url: %w", err)}
	}

	return nil
}

func validateUploads(u *UploadsConfig) []error {
	var errs []error

	if u.Workers < minWorkers || u.Workers > maxWorkers {
		errs = append(errs, fmt.Errorf("workers: must be %d-%d, got %d", minWorkers, maxWorkers, u.Workers))
	}

	if _, err := parseSize(u.MaxImageSize); err != nil {
		errs = append(errs, fmt.Errorf("max_image_size: %w", err))
	}

	if _, err := parseDuration(u.FolderCacheTTL); err != nil {
		errs = append(errs, fmt.Errorf("folder_cache_ttl: %w", err))
	}

	return errs
}

func validateNetwork(n *NetworkConfig) []error {
	d, err := parseDuration(n.Timeout)
	if err != nil {
		return []error{fmt.Errorf("timeout: %w", err)}
	}

	if d != 0 && d < minTimeout {
		return []error{fmt.Errorf("timeout: must be at least %s, got %s", minTimeout, d)}
	}

	return nil
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	if !logLevels[strings.ToLower(l.LogLevel)] {
		errs = append(errs, fmt.Errorf("log_level: must be one of debug, info, warn, error, got %q", l.LogLevel))
	}

	if !logFormats[strings.ToLower(l.LogFormat)] {
		errs = append(errs, fmt.Errorf("log_format: must be one of auto, text, json, got %q", l.LogFormat))
	}

	return errs
}

func validateHTTPSURL(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("invalid URL %q", s)
	}

	if u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("must be an https URL, got %q", s)
	}

	return nil
}

// parseDuration parses a duration string, treating "" and "0" as zero.
func parseDuration(s string) (time.Duration, error) {
	if s == "" || s == "0" {
		return 0, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}

	if d < 0 {
		return 0, fmt.Errorf("invalid duration %q: must be non-negative", s)
	}

	return d, nil
}
