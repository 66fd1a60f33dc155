package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every configurable value for the watcher.
type Config struct {
	Timezone string `mapstructure:"timezone"` // IANA zone that decides the row date
	Schedule string `mapstructure:"schedule"` // cron spec for the schedule command

	Log     LogConfig     `mapstructure:"log"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Qiita   QiitaConfig   `mapstructure:"qiita"`
	Hatena  HatenaConfig  `mapstructure:"hatena"`
	Storage StorageConfig `mapstructure:"storage"`
}

type LogConfig struct {
	Level string `mapstructure:"level"` // debug|info|warn|error
}

type HTTPConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxRedirects int           `mapstructure:"max_redirects"`
}

type QiitaConfig struct {
	BaseURL            string `mapstructure:"base_url"`
	AccessToken        string `mapstructure:"access_token"`
	Username           string `mapstructure:"username"`
	PerPage            int    `mapstructure:"per_page"`
	StockerConcurrency int    `mapstructure:"stocker_concurrency"`
}

type HatenaConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	ContentBaseURL string `mapstructure:"content_base_url"`
}

type StorageConfig struct {
	DSN     string     `mapstructure:"dsn"`      // sqlite path or libsql:// URL; empty disables
	CSVPath string     `mapstructure:"csv_path"` // local CSV file; empty disables
	SFTP    SFTPConfig `mapstructure:"sftp"`
}

// SFTPConfig points at a CSV file on a remote host. Host empty disables it.
type SFTPConfig struct {
	Host           string `mapstructure:"host"` // host:port
	User           string `mapstructure:"user"`
	KeyPath        string `mapstructure:"key_path"`
	KnownHostsPath string `mapstructure:"known_hosts_path"`
	Path           string `mapstructure:"path"`
}

// Load reads configuration from (in decreasing priority):
//  1. environment variables, e.g. QIITA_ACCESS_TOKEN for qiita.access_token
//  2. a .env file in the working directory, if present
//  3. a yaml file (./configs/config.yaml), if present
//  4. defaults
func Load() (*Config, error) {
	_ = godotenv.Load() // .env is optional

	v := viper.New()

	v.SetDefault("log.level", "info")
	v.SetDefault("timezone", "Asia/Tokyo")
	v.SetDefault("schedule", "@daily")

	v.SetDefault("http.timeout", "30s")
	v.SetDefault("http.max_redirects", 20)

	v.SetDefault("qiita.base_url", "https://qiita.com/api/v2")
	v.SetDefault("qiita.access_token", "")
	v.SetDefault("qiita.username", "")
	v.SetDefault("qiita.per_page", 100)
	v.SetDefault("qiita.stocker_concurrency", 1)

	v.SetDefault("hatena.base_url", "http://b.hatena.ne.jp")
	v.SetDefault("hatena.content_base_url", "https://qiita.com")

	v.SetDefault("storage.dsn", "./data/kpi.db")
	v.SetDefault("storage.csv_path", "")
	v.SetDefault("storage.sftp.host", "")
	v.SetDefault("storage.sftp.user", "")
	v.SetDefault("storage.sftp.key_path", "")
	v.SetDefault("storage.sftp.known_hosts_path", "")
	v.SetDefault("storage.sftp.path", "")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("cannot decode config: %w", err)
	}
	return &cfg, nil
}

// ValidateCollect checks what a collection run needs.
func (c *Config) ValidateCollect() error {
	if c.Qiita.AccessToken == "" {
		return fmt.Errorf("qiita.access_token (QIITA_ACCESS_TOKEN) must not be empty")
	}
	if c.Qiita.Username == "" {
		return fmt.Errorf("qiita.username (QIITA_USERNAME) must not be empty")
	}
	if c.Qiita.PerPage < 0 || c.Qiita.PerPage > 100 {
		return fmt.Errorf("qiita.per_page must be at most 100 and not negative, got %d", c.Qiita.PerPage)
	}
	if c.Storage.SFTP.Host != "" && (c.Storage.SFTP.User == "" || c.Storage.SFTP.KeyPath == "" || c.Storage.SFTP.Path == "") {
		return fmt.Errorf("storage.sftp needs user, key_path and path when host is set")
	}
	return nil
}

// QiitaAccessToken implements collector.CredentialProvider.
func (c *Config) QiitaAccessToken() string { return c.Qiita.AccessToken }

// QiitaUsername implements collector.CredentialProvider.
func (c *Config) QiitaUsername() string { return c.Qiita.Username }
