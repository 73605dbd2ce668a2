package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"f451comms/internal/domain/dispatch"
)

// Config holds all application configuration.
type Config struct {
	Server           ServerConfig           `mapstructure:"server"`
	Auth             AuthConfig             `mapstructure:"auth"`
	CORS             CORSConfig             `mapstructure:"cors"`
	RateLimit        RateLimitConfig        `mapstructure:"rate_limit"`
	Redis            RedisConfig            `mapstructure:"redis"`
	ChannelRateLimit ChannelRateLimitConfig `mapstructure:"channel_rate_limit"`
	Main             MainConfig             `mapstructure:"main"`
	Mailgun          MailgunConfig          `mapstructure:"mailgun"`
	Slack            SlackConfig            `mapstructure:"slack"`
	Twilio           TwilioConfig           `mapstructure:"twilio"`
	Twitter          TwitterConfig          `mapstructure:"twitter"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// AuthConfig holds API key authentication settings.
type AuthConfig struct {
	APIKeys []string `mapstructure:"api_keys"`
}

// CORSConfig holds CORS policy settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

// RateLimitConfig holds per-client HTTP rate limiting settings.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// RedisConfig holds Redis connection settings. Redis is optional; when the
// address is empty the dispatch throttle is disabled.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ChannelRateLimitConfig caps how many dispatches each channel accepts per
// hour. Zero disables the throttle.
type ChannelRateLimitConfig struct {
	MaxPerHour int `mapstructure:"max_per_hour"`
}

// MainConfig holds dispatcher-wide settings: the default channel set, the
// caller-facing alias table, and the global error suppression flag.
type MainConfig struct {
	// Channels is the default channel token list used when a call names
	// none. Accepts a pipe-delimited string ("f451_slack|f451_twilio") or
	// the "all" wildcard.
	Channels string `mapstructure:"channels"`

	// ChannelMap is the alias table as "alias:channel|alias:channel",
	// e.g. "email:f451_mailgun|sms:f451_twilio".
	ChannelMap string `mapstructure:"channel_map"`

	// SuppressErrors makes per-channel delivery failures non-raising.
	SuppressErrors bool `mapstructure:"suppress_errors"`

	// LogLevel accepts slog-style names, "OFF", or 0-50 scale integers.
	LogLevel string `mapstructure:"log_level"`
}

// MailgunConfig holds Mailgun email channel settings. The channel is enabled
// when both the API key and sender domain are present.
type MailgunConfig struct {
	PrivAPIKey string `mapstructure:"priv_api_key"`
	FromDomain string `mapstructure:"from_domain"`
	FromName   string `mapstructure:"from_name"`
	ToEmail    string `mapstructure:"to_email"`
	Subject    string `mapstructure:"subject"`
	Tags       string `mapstructure:"tags"`
	Tracking   string `mapstructure:"tracking"`
	Testmode   string `mapstructure:"testmode"`
}

// Enabled reports whether the Mailgun channel has usable credentials.
func (c MailgunConfig) Enabled() bool {
	return c.PrivAPIKey != "" && c.FromDomain != ""
}

// Defaults returns the channel's configured default attribute values.
func (c MailgunConfig) Defaults() map[string]string {
	return map[string]string{
		dispatch.KeyToEmail:  c.ToEmail,
		dispatch.KeySubject:  c.Subject,
		dispatch.KeyTags:     c.Tags,
		dispatch.KeyTracking: c.Tracking,
		dispatch.KeyTestmode: c.Testmode,
	}
}

// SlackConfig holds Slack chat channel settings. The channel is enabled when
// the bot token is present.
type SlackConfig struct {
	AuthToken     string `mapstructure:"auth_token"`
	SigningSecret string `mapstructure:"signing_secret"`
	AppToken      string `mapstructure:"app_token"`
	ToChannel     string `mapstructure:"to_channel"`
	FromSlack     string `mapstructure:"from_slack"`
	IconEmoji     string `mapstructure:"icon_emoji"`
}

// Enabled reports whether the Slack channel has usable credentials.
func (c SlackConfig) Enabled() bool {
	return c.AuthToken != ""
}

// Defaults returns the channel's configured default attribute values.
func (c SlackConfig) Defaults() map[string]string {
	return map[string]string{
		dispatch.KeyToChannel: c.ToChannel,
		dispatch.KeyIconEmoji: c.IconEmoji,
	}
}

// TwilioConfig holds Twilio SMS channel settings. The channel is enabled when
// the account SID, auth token, and sender number are all present.
type TwilioConfig struct {
	AcctSID   string `mapstructure:"acct_sid"`
	AuthToken string `mapstructure:"auth_token"`
	FromPhone string `mapstructure:"from_phone"`
	ToPhone   string `mapstructure:"to_phone"`
}

// Enabled reports whether the Twilio channel has usable credentials.
func (c TwilioConfig) Enabled() bool {
	return c.AcctSID != "" && c.AuthToken != "" && c.FromPhone != ""
}

// Defaults returns the channel's configured default attribute values.
func (c TwilioConfig) Defaults() map[string]string {
	return map[string]string{
		dispatch.KeyToPhone: c.ToPhone,
	}
}

// TwitterConfig holds Twitter social channel settings. The channel is enabled
// when all four OAuth 1.0a credentials are present.
type TwitterConfig struct {
	UserKey    string `mapstructure:"user_key"`
	UserSecret string `mapstructure:"user_secret"`
	AuthToken  string `mapstructure:"auth_token"`
	AuthSecret string `mapstructure:"auth_secret"`
	ToTwitter  string `mapstructure:"to_twitter"`
	Tags       string `mapstructure:"tags"`
}

// Enabled reports whether the Twitter channel has usable credentials.
func (c TwitterConfig) Enabled() bool {
	return c.UserKey != "" && c.UserSecret != "" && c.AuthToken != "" && c.AuthSecret != ""
}

// Defaults returns the channel's configured default attribute values.
func (c TwitterConfig) Defaults() map[string]string {
	return map[string]string{
		dispatch.KeyToTwitter: c.ToTwitter,
		dispatch.KeyTags:      c.Tags,
	}
}

// DefaultChannels returns the configured default channel token list.
func (c *Config) DefaultChannels() []string {
	return dispatch.SplitList(c.Main.Channels)
}

// ChannelAliases returns the parsed alias table.
func (c *Config) ChannelAliases() map[string]string {
	return dispatch.ParseKeyValueMap(c.Main.ChannelMap)
}

// Load reads configuration from config.yaml and environment variables.
// Environment variables use the F451COMMS_ prefix and underscore separators.
// Example: F451COMMS_MAILGUN_PRIV_API_KEY overrides mailgun.priv_api_key.
//
// Extra file paths (e.g. from CLI --config/--secrets flags) are merged in
// order after the default config file, later files winning.
func Load(extraFiles ...string) (*Config, error) {
	v := viper.New()

	// Config file settings
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Load .env file if it exists
	_ = godotenv.Load()

	// Environment variable settings
	v.SetEnvPrefix("F451COMMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("rate_limit.requests_per_second", 10)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("channel_rate_limit.max_per_hour", 0)
	v.SetDefault("main.channels", "")
	v.SetDefault("main.channel_map", "")
	v.SetDefault("main.suppress_errors", false)
	v.SetDefault("main.log_level", "INFO")
	v.SetDefault("slack.from_slack", "f451 Communications")
	v.SetDefault("slack.icon_emoji", ":robot_face:")

	// Credential keys need registered defaults so env-only deployments
	// survive Unmarshal (viper only maps env vars for keys it knows).
	for _, key := range []string{
		"mailgun.priv_api_key", "mailgun.from_domain", "mailgun.from_name",
		"mailgun.to_email", "mailgun.subject", "mailgun.tags",
		"mailgun.tracking", "mailgun.testmode",
		"slack.auth_token", "slack.signing_secret", "slack.app_token",
		"slack.to_channel",
		"twilio.acct_sid", "twilio.auth_token", "twilio.from_phone",
		"twilio.to_phone",
		"twitter.user_key", "twitter.user_secret", "twitter.auth_token",
		"twitter.auth_secret", "twitter.to_twitter", "twitter.tags",
	} {
		v.SetDefault(key, "")
	}

	// Read config file (optional — env vars can provide everything)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	for _, path := range extraFiles {
		if path == "" {
			continue
		}
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("merging config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Handle comma-separated API keys from env var
	if apiKeysStr := v.GetString("auth.api_keys"); apiKeysStr != "" && len(cfg.Auth.APIKeys) == 0 {
		keys := strings.Split(apiKeysStr, ",")
		for i := range keys {
			keys[i] = strings.TrimSpace(keys[i])
		}
		cfg.Auth.APIKeys = keys
	}

	return &cfg, nil
}
