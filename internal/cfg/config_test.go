package cfg

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCfg = `
http_server_listen_addr = ":8085"
github_webhook_secret = "secret"
github_api_token = "file-token"
log_format = "json"
sweep_interval = "30m"
dashboard_url = "https://www.worlddriven.org"
dry_run = true

[[repository]]
owner = "worlddriven"
repository = "core"
installation_id = 4711

[[repository]]
owner = "worlddriven"
repository = "webapp"
`

func TestLoad(t *testing.T) {
	config, err := Load(strings.NewReader(testCfg))
	require.NoError(t, err)

	assert.Equal(t, ":8085", config.HTTPListenAddr)
	assert.Equal(t, "secret", config.GithubWebHookSecret)
	assert.Equal(t, "file-token", config.GithubAPIToken)
	assert.Equal(t, "json", config.LogFormat)
	assert.Equal(t, 30*time.Minute, config.SweepIntervalDuration())
	assert.True(t, config.DryRun)

	require.Len(t, config.Repositories, 2)
	assert.Equal(t, GithubRepository{Owner: "worlddriven", RepositoryName: "core", InstallationID: 4711}, config.Repositories[0])
	assert.Equal(t, int64(0), config.Repositories[1].InstallationID)
}

func TestLoadAppliesDefaults(t *testing.T) {
	config, err := Load(strings.NewReader(""))
	require.NoError(t, err)

	assert.Equal(t, DefHTTPListenAddr, config.HTTPListenAddr)
	assert.Equal(t, DefWebhookEndpoint, config.HTTPGithubWebhookEndpoint)
	assert.Equal(t, DefLogFormat, config.LogFormat)
	assert.Equal(t, DefLogTimeKey, config.LogTimeKey)
	assert.Equal(t, DefLogLevel, config.LogLevel)
	assert.Equal(t, DefStatusContext, config.StatusContext)
	assert.Equal(t, 10*time.Minute, config.SweepIntervalDuration())
	assert.Empty(t, config.Repositories)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("WORLDDRIVEN_GITHUB_TOKEN", "env-token")
	t.Setenv("WORLDDRIVEN_DATABASE_DSN", "postgres://localhost/worlddriven")
	t.Setenv("WORLDDRIVEN_API_TOKEN", "api-token")

	config, err := Load(strings.NewReader(testCfg))
	require.NoError(t, err)

	assert.Equal(t, "env-token", config.GithubAPIToken)
	assert.Equal(t, "postgres://localhost/worlddriven", config.DatabaseDSN)
	assert.Equal(t, "api-token", config.APIToken)
}

func TestLoadInvalid(t *testing.T) {
	tcs := []struct {
		name string
		cfg  string
	}{
		{name: "invalid toml", cfg: "log_format = "},
		{name: "invalid sweep interval", cfg: `sweep_interval = "often"`},
		{name: "sweep interval too short", cfg: `sweep_interval = "1s"`},
		{name: "app id without key", cfg: `github_app_id = 12`},
		{name: "repository without owner", cfg: "[[repository]]\nrepository = \"core\"\n"},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tc.cfg))
			assert.Error(t, err)
		})
	}
}

func TestMarshalLoadsAgain(t *testing.T) {
	config, err := Load(strings.NewReader(testCfg))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, config.Marshal(&buf))

	loaded, err := Load(&buf)
	require.NoError(t, err)
	assert.Equal(t, config, loaded)
}
