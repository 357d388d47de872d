// Package config loads Jin's process-wide configuration once at
// startup with viper, from Jin's own config file and environment
// variables.
package config

import (
	"os"
	"path/filepath"

	"github.com/dabstractor/jin-sub008/internal/jinerr"
	"github.com/spf13/viper"
)

// Config is the resolved set of process-wide settings, in precedence
// order env override > config file > built-in default.
type Config struct {
	StoreHome   string `mapstructure:"store_home"`
	AuthorName  string `mapstructure:"author_name"`
	AuthorEmail string `mapstructure:"author_email"`
	RemoteURL   string `mapstructure:"remote_url"`
	AuditLogDir string `mapstructure:"audit_log_dir"`
}

const (
	EnvConfigHome = "JIN_CONFIG_HOME"
	EnvStoreHome  = "JIN_DIR"
	EnvAuthorName = "JIN_AUTHOR_NAME"
	EnvAuthorEmail = "JIN_AUTHOR_EMAIL"
	EnvRemoteURL  = "JIN_REMOTE_URL"
)

// Load reads $JIN_CONFIG_HOME/config.yaml (defaulting to
// ~/.config/jin when the env var is unset), then applies environment
// overrides on top.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	configHome := os.Getenv(EnvConfigHome)
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, jinerr.Wrap(jinerr.KindIO, "config.Load", "", err)
		}
		configHome = filepath.Join(home, ".config", "jin")
	}
	v.AddConfigPath(configHome)

	v.SetDefault("author_name", "jin")
	v.SetDefault("author_email", "jin@localhost")
	v.SetDefault("audit_log_dir", filepath.Join(configHome, "audit"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, jinerr.Wrap(jinerr.KindParseError, "config.Load", configHome, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, jinerr.Wrap(jinerr.KindParseError, "config.Load", configHome, err)
	}

	if storeHome := os.Getenv(EnvStoreHome); storeHome != "" {
		c.StoreHome = storeHome
	}
	if c.StoreHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, jinerr.Wrap(jinerr.KindIO, "config.Load", "", err)
		}
		c.StoreHome = filepath.Join(home, ".jin-store")
	}
	if name := os.Getenv(EnvAuthorName); name != "" {
		c.AuthorName = name
	}
	if email := os.Getenv(EnvAuthorEmail); email != "" {
		c.AuthorEmail = email
	}
	if remote := os.Getenv(EnvRemoteURL); remote != "" {
		c.RemoteURL = remote
	}

	return &c, nil
}

// Author formats the config's author as a git-style "Name <email>"
// string for store.CommitOpts.
func (c *Config) Author() string {
	return c.AuthorName + " <" + c.AuthorEmail + ">"
}
