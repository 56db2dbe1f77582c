package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/debuck1718/smartstudent/internal/api"
)

// Prefix is the environment variable prefix, e.g. SMARTSTUDENT_API_URL.
const Prefix = "SMARTSTUDENT"

// Config holds agent and CLI settings loaded from the environment.
type Config struct {
	// APIURL overrides the base URL chosen from APIHost.
	APIURL  string `envconfig:"API_URL"`
	APIHost string `envconfig:"API_HOST" default:"localhost"`

	// AssetOrigin serves the app shell; it defaults to the API base URL.
	AssetOrigin string `envconfig:"ASSET_ORIGIN"`
	// SessionCookie is a "name=value" cookie sent with CLI API calls.
	SessionCookie string `envconfig:"SESSION_COOKIE"`
	Timezone      string `envconfig:"TIMEZONE"`

	Addr   string `envconfig:"LISTEN_ADDR" default:"127.0.0.1:8787"`
	DBPath string `envconfig:"DB_PATH" default:"smartstudent.db"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	OutboxPassphrase  string `envconfig:"OUTBOX_PASSPHRASE"`
	OutboxConcurrency int    `envconfig:"OUTBOX_CONCURRENCY" default:"4"`

	RefreshInterval      time.Duration `envconfig:"REFRESH_INTERVAL" default:"6h"`
	ConnectivityInterval time.Duration `envconfig:"CONNECTIVITY_INTERVAL" default:"30s"`
	FeedbackInterval     time.Duration `envconfig:"FEEDBACK_INTERVAL" default:"15s"`

	// NativeBridgeURL, when set, receives LOCAL_NOTIFICATION messages.
	NativeBridgeURL string `envconfig:"NATIVE_BRIDGE_URL"`

	VAPIDPublicKey  string `envconfig:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `envconfig:"VAPID_PRIVATE_KEY"`
	PushSubscriber  string `envconfig:"PUSH_SUBSCRIBER" default:"mailto:noreply@smartstudent.app"`
}

// Load reads configuration from SMARTSTUDENT_* environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.APIURL != "" {
		u, err := url.Parse(c.APIURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("load config: %s_API_URL must be an absolute URL, got %q", Prefix, c.APIURL)
		}
	}
	if c.OutboxConcurrency < 1 {
		return fmt.Errorf("load config: %s_OUTBOX_CONCURRENCY must be positive", Prefix)
	}
	if c.RefreshInterval <= 0 || c.ConnectivityInterval <= 0 || c.FeedbackInterval <= 0 {
		return fmt.Errorf("load config: intervals must be positive")
	}
	return nil
}

// BaseURL returns the API base URL: the explicit override when set,
// otherwise the one derived from APIHost.
func (c *Config) BaseURL() string {
	if c.APIURL != "" {
		return c.APIURL
	}
	return api.BaseURLFor(c.APIHost)
}

// Origin returns where app shell assets are fetched from.
func (c *Config) Origin() string {
	if c.AssetOrigin != "" {
		return c.AssetOrigin
	}
	return c.BaseURL()
}

// AgentURL returns the websocket URL pages use to reach the local agent.
func (c *Config) AgentURL() string {
	return "ws://" + c.Addr + "/agent/ws"
}

// Usage prints the recognized environment variables.
func Usage() error {
	return envconfig.Usage(Prefix, &Config{})
}
