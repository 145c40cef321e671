package config

import "path/filepath"

// Default values for configuration options. These form the bottom layer of
// the override chain and work out of the box for everything that does not
// require credentials.
const (
	defaultCustomerRoot   = "Customer"
	defaultBaseURL        = "https://graph.microsoft.com/v1.0"
	defaultAuthorityURL   = "https://login.microsoftonline.com"
	defaultSMTPPort       = 587
	defaultSenderName     = "Order Updates"
	defaultMaxMessageSize = "10MiB"
	defaultStoreBackend   = "sqlite"
	defaultStoreFile      = "projects.db"
	defaultWorkers        = 4
	defaultMaxImageSize   = "4MiB"
	defaultFolderCacheTTL = "5m"
	defaultTimeout        = "30s"
	defaultLogLevel       = "info"
	defaultLogFormat      = "auto"
)

// DefaultConfig returns a Config populated with all default values.
// This is used both as the starting point for TOML decoding (so unset
// fields retain defaults) and as the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Graph: GraphConfig{
			CustomerRoot: defaultCustomerRoot,
			BaseURL:      defaultBaseURL,
			AuthorityURL: defaultAuthorityURL,
		},
		SMTP: SMTPConfig{
			Port:           defaultSMTPPort,
			SenderName:     defaultSenderName,
			MaxMessageSize: defaultMaxMessageSize,
		},
		Store: StoreConfig{
			Backend: defaultStoreBackend,
			Path:    defaultStorePath(),
		},
		Uploads: UploadsConfig{
			Workers:        defaultWorkers,
			MaxImageSize:   defaultMaxImageSize,
			FolderCacheTTL: defaultFolderCacheTTL,
		},
		Network: NetworkConfig{
			Timeout: defaultTimeout,
		},
		Logging: LoggingConfig{
			LogLevel:  defaultLogLevel,
			LogFormat: defaultLogFormat,
		},
	}
}

// defaultStorePath places the project database in the platform data directory.
func defaultStorePath() string {
	dir := DefaultDataDir()
	if dir == "" {
		return defaultStoreFile
	}

	return filepath.Join(dir, defaultStoreFile)
}
