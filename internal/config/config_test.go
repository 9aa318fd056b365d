// FilePath: server/watchdog/internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o600))
	return dir
}

const minimal = `
database:
  timescaledb:
    host: tsdb
  postgres_app:
    host: appdb
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := load(viper.New(), writeConfig(t, minimal))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5432, cfg.Database.TimescaleDB.Port)
	assert.Equal(t, "instant", cfg.Alerting.Limits.Mode)
	assert.Equal(t, 120*time.Minute, cfg.Alerting.Limits.Cooldown)
	assert.Equal(t, 5*time.Minute, cfg.Alerting.Limits.Lookback, "lookback defaults to the tick interval")
	assert.Equal(t, 20*time.Minute, cfg.Alerting.Health.InactivityThreshold)
	assert.False(t, cfg.Alerting.Leak.Enabled)
	assert.False(t, cfg.Keycloak.Enabled())
	assert.Empty(t, cfg.Redis.Addr())
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("WATCHDOG_DATABASE__TIMESCALEDB__HOST", "tsdb-env")
	t.Setenv("WATCHDOG_ALERTING__LIMITS__MODE", "average")
	t.Setenv("WATCHDOG_REDIS__HOST", "cache")

	cfg, err := load(viper.New(), writeConfig(t, minimal))
	require.NoError(t, err)
	assert.Equal(t, "tsdb-env", cfg.Database.TimescaleDB.Host)
	assert.Equal(t, "average", cfg.Alerting.Limits.Mode)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr())
}

func TestLoadWithoutFileUsesEnvironment(t *testing.T) {
	t.Setenv("WATCHDOG_DATABASE__TIMESCALEDB__HOST", "tsdb")
	t.Setenv("WATCHDOG_DATABASE__POSTGRES_APP__HOST", "appdb")

	cfg, err := load(viper.New(), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "appdb", cfg.Database.AppDB.Host)
}

func TestValidateConfig(t *testing.T) {
	cases := map[string]string{
		"missing database": `
server:
  port: 1
`,
		"unknown mode": minimal + `
alerting:
  limits:
    mode: median
`,
		"zero cooldown": minimal + `
alerting:
  health:
    cooldown: 0s
`,
		"leak without mqtt": minimal + `
alerting:
  leak:
    enabled: true
`,
		"mqtt without broker": minimal + `
mqtt:
  enabled: true
`,
		"redis channel without redis": minimal + `
notify:
  redis_channel: alerts
`,
		"keycloak without realm": minimal + `
keycloak:
  url: http://kc
`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := load(viper.New(), writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadLeakWithMQTT(t *testing.T) {
	cfg, err := load(viper.New(), writeConfig(t, minimal+`
mqtt:
  enabled: true
  broker: tcp://broker:1883
alerting:
  leak:
    enabled: true
    inactivity_window: 90m
`))
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, cfg.Alerting.Leak.InactivityWindow)
	assert.Equal(t, "zigbee2mqtt", cfg.MQTT.TopicPrefix)
	assert.Equal(t, byte(1), byte(cfg.MQTT.QoS))
}
