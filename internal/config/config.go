// FilePath: server/watchdog/internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Keycloak   KeycloakConfig
	Redis      RedisConfig
	MQTT       MQTTConfig
	Alerting   AlertingConfig
	Notify     NotifyConfig
	Monitoring MonitoringConfig
	Retention  RetentionConfig
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	TimescaleDB PostgresConfig `mapstructure:"timescaledb"`
	AppDB       PostgresConfig `mapstructure:"postgres_app"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// KeycloakConfig enables token introspection when URL is set.
type KeycloakConfig struct {
	URL          string `mapstructure:"url"`
	Realm        string `mapstructure:"realm"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

// Enabled reports whether requests must carry a keycloak token.
func (k KeycloakConfig) Enabled() bool {
	return k.URL != ""
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns host:port, or "" when redis is not configured.
func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type MQTTConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Broker          string        `mapstructure:"broker"`
	ClientID        string        `mapstructure:"client_id"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	QoS             int           `mapstructure:"qos"`
	TopicPrefix     string        `mapstructure:"topic_prefix"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	ActionTimeout   time.Duration `mapstructure:"action_timeout"`
}

type AlertingConfig struct {
	Limits LimitsConfig `mapstructure:"limits"`
	Health HealthConfig `mapstructure:"health"`
	Leak   LeakConfig   `mapstructure:"leak"`
}

type LimitsConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	Cooldown time.Duration `mapstructure:"cooldown"`
	Mode     string        `mapstructure:"mode"`
	// Lookback bounds the first evaluation window; defaults to Interval.
	Lookback time.Duration `mapstructure:"lookback"`
}

type HealthConfig struct {
	Enabled             bool          `mapstructure:"enabled"`
	Interval            time.Duration `mapstructure:"interval"`
	Cooldown            time.Duration `mapstructure:"cooldown"`
	InactivityThreshold time.Duration `mapstructure:"inactivity_threshold"`
}

type LeakConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Interval         time.Duration `mapstructure:"interval"`
	Cooldown         time.Duration `mapstructure:"cooldown"`
	InactivityWindow time.Duration `mapstructure:"inactivity_window"`
}

type NotifyConfig struct {
	Log            bool          `mapstructure:"log"`
	WebhookURL     string        `mapstructure:"webhook_url"`
	WebhookTimeout time.Duration `mapstructure:"webhook_timeout"`
	RedisChannel   string        `mapstructure:"redis_channel"`
	Template       string        `mapstructure:"template"`
}

type MonitoringConfig struct {
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
	MetricsPath    string `mapstructure:"metrics_path"`
}

type RetentionConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	MaxAge   time.Duration `mapstructure:"max_age"`
	Interval time.Duration `mapstructure:"interval"`
}

// Load initializes configuration from environment variables and config file
func Load() (*Config, error) {
	return load(viper.New(), "./config")
}

func load(v *viper.Viper, paths ...string) (*Config, error) {
	v.SetEnvPrefix("WATCHDOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	// Load config file if exists
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if config.Alerting.Limits.Lookback <= 0 {
		config.Alerting.Limits.Lookback = config.Alerting.Limits.Interval
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Keys without a default still have to be known for env overrides
	for _, key := range []string{
		"database.timescaledb.host", "database.timescaledb.user", "database.timescaledb.password", "database.timescaledb.dbname",
		"database.postgres_app.host", "database.postgres_app.user", "database.postgres_app.password", "database.postgres_app.dbname",
		"keycloak.url", "keycloak.realm", "keycloak.client_id", "keycloak.client_secret",
		"redis.host", "redis.password",
		"mqtt.broker", "mqtt.client_id", "mqtt.username", "mqtt.password",
		"notify.webhook_url", "notify.redis_channel", "notify.template",
	} {
		v.SetDefault(key, "")
	}

	// Database defaults
	v.SetDefault("database.timescaledb.port", 5432)
	v.SetDefault("database.timescaledb.sslmode", "disable")
	v.SetDefault("database.postgres_app.port", 5432)
	v.SetDefault("database.postgres_app.sslmode", "disable")

	// Redis defaults
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	// MQTT defaults
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("mqtt.topic_prefix", "zigbee2mqtt")
	v.SetDefault("mqtt.refresh_interval", "5m")
	v.SetDefault("mqtt.connect_timeout", "10s")
	v.SetDefault("mqtt.action_timeout", "10s")

	// Alerting defaults
	v.SetDefault("alerting.limits.enabled", true)
	v.SetDefault("alerting.limits.interval", "5m")
	v.SetDefault("alerting.limits.cooldown", "120m")
	v.SetDefault("alerting.limits.mode", "instant")
	v.SetDefault("alerting.limits.lookback", "0s")
	v.SetDefault("alerting.health.enabled", true)
	v.SetDefault("alerting.health.interval", "1m")
	v.SetDefault("alerting.health.cooldown", "120m")
	v.SetDefault("alerting.health.inactivity_threshold", "20m")
	v.SetDefault("alerting.leak.enabled", false)
	v.SetDefault("alerting.leak.interval", "1m")
	v.SetDefault("alerting.leak.cooldown", "120m")
	v.SetDefault("alerting.leak.inactivity_window", "2h")

	// Notify defaults
	v.SetDefault("notify.log", true)
	v.SetDefault("notify.webhook_timeout", "10s")

	// Monitoring defaults
	v.SetDefault("monitoring.metrics_enabled", true)
	v.SetDefault("monitoring.metrics_path", "/metrics")

	// Retention defaults
	v.SetDefault("retention.enabled", false)
	v.SetDefault("retention.max_age", "8760h")
	v.SetDefault("retention.interval", "24h")
}

func validateConfig(config *Config) error {
	if config.Database.TimescaleDB.Host == "" {
		return fmt.Errorf("timescaledb host is required")
	}
	if config.Database.AppDB.Host == "" {
		return fmt.Errorf("postgres app host is required")
	}
	if config.Keycloak.Enabled() && config.Keycloak.Realm == "" {
		return fmt.Errorf("keycloak realm is required when keycloak url is set")
	}

	limits := config.Alerting.Limits
	if limits.Enabled {
		if limits.Mode != "instant" && limits.Mode != "average" {
			return fmt.Errorf("alerting.limits.mode must be instant or average, got %q", limits.Mode)
		}
		if err := positive("alerting.limits", limits.Interval, limits.Cooldown); err != nil {
			return err
		}
	}
	health := config.Alerting.Health
	if health.Enabled {
		if err := positive("alerting.health", health.Interval, health.Cooldown, health.InactivityThreshold); err != nil {
			return err
		}
	}
	leak := config.Alerting.Leak
	if leak.Enabled {
		if err := positive("alerting.leak", leak.Interval, leak.Cooldown, leak.InactivityWindow); err != nil {
			return err
		}
		if !config.MQTT.Enabled {
			return fmt.Errorf("alerting.leak requires mqtt.enabled")
		}
	}

	if config.MQTT.Enabled {
		if config.MQTT.Broker == "" {
			return fmt.Errorf("mqtt broker is required when mqtt is enabled")
		}
		if config.MQTT.QoS < 0 || config.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt qos must be 0, 1 or 2, got %d", config.MQTT.QoS)
		}
		if config.MQTT.RefreshInterval <= 0 {
			return fmt.Errorf("mqtt refresh_interval must be positive")
		}
	}
	if config.Notify.RedisChannel != "" && config.Redis.Addr() == "" {
		return fmt.Errorf("notify.redis_channel requires redis.host")
	}
	if config.Retention.Enabled {
		if err := positive("retention", config.Retention.MaxAge, config.Retention.Interval); err != nil {
			return err
		}
	}
	return nil
}

func positive(section string, durations ...time.Duration) error {
	for _, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s: intervals, cooldowns and thresholds must be positive, got %s", section, d)
		}
	}
	return nil
}
