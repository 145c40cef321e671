// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for uploadrelay. It supports a
// three-layer override chain (defaults -> config file -> environment) with
// environment variables reserved for secrets and the config path.
package config

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	Graph   GraphConfig   `toml:"graph"`
	SMTP    SMTPConfig    `toml:"smtp"`
	Store   StoreConfig   `toml:"store"`
	Slack   SlackConfig   `toml:"slack"`
	Uploads UploadsConfig `toml:"uploads"`
	Network NetworkConfig `toml:"network"`
	Logging LoggingConfig `toml:"logging"`
}

// GraphConfig identifies the app registration and the target drive.
// The client secret normally arrives via UPLOADRELAY_CLIENT_SECRET rather
// than the config file.
type GraphConfig struct {
	TenantID     string `toml:"tenant_id"`
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	DriveID      string `toml:"drive_id"`
	CustomerRoot string `toml:"customer_root"`
	BaseURL      string `toml:"base_url"`
	AuthorityURL string `toml:"authority_url"`
}

// SMTPConfig controls the notification email transport.
type SMTPConfig struct {
	Host       string `toml:"host"`
	Port       int    `toml:"port"`
	Username   string `toml:"username"`
	Password   string `toml:"password"`
	Sender     string `toml:"sender"`
	SenderName string `toml:"sender_name"`
	// MaxMessageSize caps the summed attachment payload, e.g. "10 MiB".
	// "0" disables the check.
	MaxMessageSize string `toml:"max_message_size"`
}

// StoreConfig selects and locates the project directory backend.
type StoreConfig struct {
	// Backend is one of "csv", "sqlite", or "xlsx".
	Backend       string `toml:"backend"`
	Path          string `toml:"path"`
	AdminPassword string `toml:"admin_password"`
}

// SlackConfig holds the optional incoming-webhook URL for run summaries.
type SlackConfig struct {
	WebhookURL string `toml:"webhook_url"`
}

// UploadsConfig controls upload parallelism and image handling.
type UploadsConfig struct {
	Workers int `toml:"workers"`
	// MaxImageSize triggers recompression of images above this size,
	// e.g. "4 MiB". "0" uploads images as-is.
	MaxImageSize string `toml:"max_image_size"`
	// FolderCacheTTL is how long resolved folder IDs are reused, e.g. "5m".
	FolderCacheTTL string `toml:"folder_cache_ttl"`
}

// NetworkConfig controls HTTP client behavior.
type NetworkConfig struct {
	Timeout string `toml:"timeout"`
}

// LoggingConfig controls log output behavior.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}
