package config

import "os"

// Environment variable names. Secrets are accepted only from the environment
// so they can stay out of config files checked into infrastructure repos.
const (
	EnvConfig        = "UPLOADRELAY_CONFIG"
	EnvClientSecret  = "UPLOADRELAY_CLIENT_SECRET"
	EnvSMTPPassword  = "UPLOADRELAY_SMTP_PASSWORD"
	EnvAdminPassword = "UPLOADRELAY_ADMIN_PASSWORD"
	EnvSlackWebhook  = "UPLOADRELAY_SLACK_WEBHOOK"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath    string
	ClientSecret  string
	SMTPPassword  string
	AdminPassword string
	SlackWebhook  string
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
// This does not modify the Config; ApplyEnvOverrides does that.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath:    os.Getenv(EnvConfig),
		ClientSecret:  os.Getenv(EnvClientSecret),
		SMTPPassword:  os.Getenv(EnvSMTPPassword),
		AdminPassword: os.Getenv(EnvAdminPassword),
		SlackWebhook:  os.Getenv(EnvSlackWebhook),
	}
}

// ApplyEnvOverrides writes non-empty environment values over cfg.
// Environment always wins over the config file for secrets.
func ApplyEnvOverrides(cfg *Config, env EnvOverrides) {
	if env.ClientSecret != "" {
		cfg.Graph.ClientSecret = env.ClientSecret
	}

	if env.SMTPPassword != "" {
		cfg.SMTP.Password = env.SMTPPassword
	}

	if env.AdminPassword != "" {
		cfg.Store.AdminPassword = env.AdminPassword
	}

	if env.SlackWebhook != "" {
		cfg.Slack.WebhookURL = env.SlackWebhook
	}
}
