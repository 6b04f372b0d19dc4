package cfg

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/pelletier/go-toml"
)

const (
	DefLogFormat        = "logfmt"
	DefLogTimeKey       = "time_iso8601"
	DefLogLevel         = "info"
	DefWebhookEndpoint  = "/listener/github"
	DefSweepInterval    = "10m"
	DefStatusContext    = "worlddriven"
	DefHTTPListenAddr   = ":8080"
	minSweepIntervalDur = time.Minute
)

type Config struct {
	HTTPListenAddr            string `toml:"http_server_listen_addr" env:"WORLDDRIVEN_HTTP_LISTEN_ADDR"`
	HTTPGithubWebhookEndpoint string `toml:"github_webhook_endpoint"`
	GithubWebHookSecret       string `toml:"github_webhook_secret" env:"WORLDDRIVEN_GITHUB_WEBHOOK_SECRET"`
	GithubAPIToken            string `toml:"github_api_token" env:"WORLDDRIVEN_GITHUB_TOKEN"`
	GithubAppID               int64  `toml:"github_app_id" env:"WORLDDRIVEN_GITHUB_APP_ID"`
	GithubAppPrivateKeyFile   string `toml:"github_app_private_key_file" env:"WORLDDRIVEN_GITHUB_APP_PRIVATE_KEY_FILE"`
	DatabaseDSN               string `toml:"database_dsn" env:"WORLDDRIVEN_DATABASE_DSN"`
	APIToken                  string `toml:"api_token" env:"WORLDDRIVEN_API_TOKEN"`
	LogFormat                 string `toml:"log_format"`
	LogTimeKey                string `toml:"log_time_key"`
	LogLevel                  string `toml:"log_level" env:"WORLDDRIVEN_LOG_LEVEL"`
	SweepInterval             string `toml:"sweep_interval"`
	StatusContext             string `toml:"status_context"`
	DashboardURL              string `toml:"dashboard_url" env:"WORLDDRIVEN_DASHBOARD_URL"`
	WebhookFilterQuery        string `toml:"webhook_filter_query"`
	DryRun                    bool   `toml:"dry_run"`

	Repositories []GithubRepository `toml:"repository"`
}

// GithubRepository is a governed repository that is defined in the
// configuration file. The entries are only used when no database is
// configured.
type GithubRepository struct {
	Owner          string `toml:"owner"`
	RepositoryName string `toml:"repository"`
	InstallationID int64  `toml:"installation_id"`
}

// Load reads a toml configuration from reader, applies the environment
// variable overrides and the defaults for unset settings.
func Load(reader io.Reader) (*Config, error) {
	var result Config

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	if err := toml.Unmarshal(data, &result); err != nil {
		return nil, err
	}

	if err := cleanenv.ReadEnv(&result); err != nil {
		return nil, fmt.Errorf("applying environment variables failed: %w", err)
	}

	result.setDefaults()

	if err := result.validate(); err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *Config) setDefaults() {
	if r.HTTPListenAddr == "" {
		r.HTTPListenAddr = DefHTTPListenAddr
	}
	if r.HTTPGithubWebhookEndpoint == "" {
		r.HTTPGithubWebhookEndpoint = DefWebhookEndpoint
	}
	if r.LogFormat == "" {
		r.LogFormat = DefLogFormat
	}
	if r.LogTimeKey == "" {
		r.LogTimeKey = DefLogTimeKey
	}
	if r.LogLevel == "" {
		r.LogLevel = DefLogLevel
	}
	if r.SweepInterval == "" {
		r.SweepInterval = DefSweepInterval
	}
	if r.StatusContext == "" {
		r.StatusContext = DefStatusContext
	}
}

func (r *Config) validate() error {
	d, err := time.ParseDuration(r.SweepInterval)
	if err != nil {
		return fmt.Errorf("sweep_interval: %w", err)
	}
	if d < minSweepIntervalDur {
		return fmt.Errorf("sweep_interval: must be at least %s", minSweepIntervalDur)
	}

	if r.GithubAppID != 0 && r.GithubAppPrivateKeyFile == "" {
		return errors.New("github_app_private_key_file must be set when github_app_id is configured")
	}

	for i, repo := range r.Repositories {
		if repo.Owner == "" || repo.RepositoryName == "" {
			return fmt.Errorf("repository entry %d: owner and repository must be set", i+1)
		}
	}

	return nil
}

// SweepIntervalDuration returns the parsed sweep_interval setting.
func (r *Config) SweepIntervalDuration() time.Duration {
	d, err := time.ParseDuration(r.SweepInterval)
	if err != nil {
		return 0
	}

	return d
}

func (r *Config) Marshal(writer io.Writer) error {
	return toml.NewEncoder(writer).Encode(r)
}
