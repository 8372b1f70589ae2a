package config

import (
	"context"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/turtacn/possync/pkg/errors"
	"github.com/turtacn/possync/pkg/logger"
)

// LoadConfig loads the configuration from file and environment variables.
func LoadConfig(log logger.Logger) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Load from config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/possync/")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.ErrConfiguration("failed to read config file").WithCause(err)
		}
	}

	// Load from environment variables
	v.SetEnvPrefix("POSSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.ErrConfiguration("failed to unmarshal config").WithCause(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.ErrConfiguration(err.Error())
	}

	// Reload on file change so log-level tweaks don't need a restart.
	// Connection-level settings still require one.
	v.OnConfigChange(func(e fsnotify.Event) {
		var next Config
		if err := v.Unmarshal(&next); err != nil {
			log.Warn(context.Background(), "ignoring config reload",
				logger.String("file", e.Name), logger.Any("error", err.Error()))
			return
		}
		if err := next.Validate(); err != nil {
			log.Warn(context.Background(), "ignoring invalid config reload",
				logger.String("file", e.Name), logger.Any("error", err.Error()))
			return
		}
		cfg = next
		log.Info(context.Background(), "configuration reloaded", logger.String("file", e.Name))
	})
	v.WatchConfig()

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 16)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", 60)
	v.SetDefault("database.max_conn_idle_time", 15)
	v.SetDefault("database.conn_timeout", 10)

	v.SetDefault("vault.mount_path", "secret")

	v.SetDefault("graph.login_host", "https://login.microsoftonline.com")
	v.SetDefault("graph.api_host", "https://graph.microsoft.com")
	v.SetDefault("graph.scope", "https://graph.microsoft.com/.default")

	v.SetDefault("search.index", "compliance-posture")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.sync_topic", "possync.sync.events")
	v.SetDefault("kafka.write_timeout", "10s")
	v.SetDefault("kafka.batch_size", 100)
	v.SetDefault("kafka.batch_timeout", "1s")
	v.SetDefault("kafka.required_acks", 1)

	v.SetDefault("redis.enabled", false)

	v.SetDefault("sync.score_days", 90)
	v.SetDefault("sync.schedule_enabled", false)
	v.SetDefault("sync.schedule_every", "24h")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "possync")
}
