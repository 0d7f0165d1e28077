package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// DefaultAdminContact is the placeholder value shipped with a fresh
// deployment. While the admin contact still holds it, the dedup queue
// refuses to schedule any job that would reach the Slack API.
const DefaultAdminContact = "seatadmin@localhost.local"

// Config carries every knob the service needs. All dependencies are passed
// explicitly to the components that use them; nothing reads settings from
// ambient state after startup.
type Config struct {
	ListenAddr  string `env:"SLACKSYNC_LISTEN_ADDR" envDefault:":8080"`
	PostgresDSN string `env:"SLACKSYNC_PG_DSN"`

	SlackToken  string   `env:"SLACKSYNC_SLACK_TOKEN"`
	SlackScopes []string `env:"SLACKSYNC_SLACK_SCOPES" envSeparator:","`

	AdminContact string `env:"SLACKSYNC_ADMIN_CONTACT" envDefault:"seatadmin@localhost.local"`

	// PageSize caps how many entries each paginated Slack call requests.
	PageSize int `env:"SLACKSYNC_PAGE_SIZE" envDefault:"200"`
	// RetryCap bounds retries of rate-limited operations, per channel op.
	RetryCap int `env:"SLACKSYNC_RETRY_CAP" envDefault:"3"`
	// GraceDelay is the scheduling delay handed to the job backend so the
	// tracking row lands before the job can start.
	GraceDelay    time.Duration `env:"SLACKSYNC_GRACE_DELAY" envDefault:"3s"`
	SweepInterval time.Duration `env:"SLACKSYNC_SWEEP_INTERVAL" envDefault:"10m"`

	// GeneralChannelID identifies the workspace's always-open channel. The
	// reconciler never invites to it or kicks from it.
	GeneralChannelID string `env:"SLACKSYNC_GENERAL_CHANNEL_ID"`

	// APISecret signs bearer tokens for the inspection endpoints.
	APISecret string `env:"SLACKSYNC_API_SECRET"`
}

// Load parses configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.PageSize <= 0 {
		return Config{}, fmt.Errorf("page size must be positive, got %d", cfg.PageSize)
	}
	return cfg, nil
}

// AdminContactConfigured reports whether the operator replaced the default
// administrative contact.
func (c Config) AdminContactConfigured() bool {
	return c.AdminContact != "" && c.AdminContact != DefaultAdminContact
}
