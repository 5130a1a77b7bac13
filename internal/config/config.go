// Package config loads the process configuration from defaults, an optional
// botmux.yaml, and BOTMUX_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full process configuration.
type Config struct {
	DataDir  string `mapstructure:"data_dir"`
	LogLevel string `mapstructure:"log_level"`
	Language string `mapstructure:"language"`

	Database struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"database"`

	Vault struct {
		Key string `mapstructure:"key"`
	} `mapstructure:"vault"`

	Platform struct {
		Name string `mapstructure:"name"`
	} `mapstructure:"platform"`

	Sandbox struct {
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"sandbox"`

	Sync struct {
		Schedule string `mapstructure:"schedule"`
	} `mapstructure:"sync"`

	Commands struct {
		PrivateMarker string `mapstructure:"private_marker"`
	} `mapstructure:"commands"`

	HTTP struct {
		Listen string `mapstructure:"listen"`
	} `mapstructure:"http"`
}

func defaultDataDir() string {
	return filepath.Join(os.Getenv("HOME"), ".botmux")
}

// Load reads the configuration. An explicit path loads exactly that file; an
// empty path searches the working directory and the data dir for botmux.yaml
// and tolerates its absence.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("log_level", "info")
	v.SetDefault("language", "en")
	v.SetDefault("database.dsn", "")
	v.SetDefault("vault.key", "")
	v.SetDefault("platform.name", "telegram")
	v.SetDefault("sandbox.timeout", 30*time.Second)
	v.SetDefault("sync.schedule", "@every 10m")
	v.SetDefault("commands.private_marker", "private")
	v.SetDefault("http.listen", "127.0.0.1:8080")

	v.SetEnvPrefix("BOTMUX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("botmux")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(defaultDataDir())
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Database.DSN == "" {
		cfg.Database.DSN = filepath.Join(cfg.DataDir, "botmux.db")
	}
	return &cfg, nil
}
