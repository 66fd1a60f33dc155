package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("QIITA_ACCESS_TOKEN", "")
	t.Setenv("QIITA_USERNAME", "")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, "Asia/Tokyo", cfg.Timezone)
	require.Equal(t, "@daily", cfg.Schedule)
	require.Equal(t, 30*time.Second, cfg.HTTP.Timeout)
	require.Equal(t, 20, cfg.HTTP.MaxRedirects)
	require.Equal(t, "https://qiita.com/api/v2", cfg.Qiita.BaseURL)
	require.Equal(t, 1, cfg.Qiita.StockerConcurrency)
	require.Equal(t, 100, cfg.Qiita.PerPage)
	require.Equal(t, "http://b.hatena.ne.jp", cfg.Hatena.BaseURL)
	require.Equal(t, "./data/kpi.db", cfg.Storage.DSN)

	require.Error(t, cfg.ValidateCollect())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("QIITA_ACCESS_TOKEN", "secret-token")
	t.Setenv("QIITA_USERNAME", "alice")
	t.Setenv("QIITA_STOCKER_CONCURRENCY", "4")
	t.Setenv("HTTP_TIMEOUT", "5s")
	t.Setenv("STORAGE_CSV_PATH", "/tmp/kpi.csv")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("QIITA_PER_PAGE", "20")

	cfg, err := Load()
	require.NoError(t, err)

	require.NoError(t, cfg.ValidateCollect())
	require.Equal(t, "secret-token", cfg.QiitaAccessToken())
	require.Equal(t, "alice", cfg.QiitaUsername())
	require.Equal(t, 4, cfg.Qiita.StockerConcurrency)
	require.Equal(t, 5*time.Second, cfg.HTTP.Timeout)
	require.Equal(t, "/tmp/kpi.csv", cfg.Storage.CSVPath)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, 20, cfg.Qiita.PerPage)
}

func TestValidateSFTP(t *testing.T) {
	cfg := &Config{
		Qiita: QiitaConfig{AccessToken: "t", Username: "u"},
		Storage: StorageConfig{
			SFTP: SFTPConfig{Host: "example.com:22"},
		},
	}
	require.Error(t, cfg.ValidateCollect())

	cfg.Storage.SFTP.User = "deploy"
	cfg.Storage.SFTP.KeyPath = "/home/deploy/.ssh/id_ed25519"
	cfg.Storage.SFTP.Path = "/srv/kpi/kpi.csv"
	require.NoError(t, cfg.ValidateCollect())
}

func TestValidatePerPage(t *testing.T) {
	cfg := &Config{Qiita: QiitaConfig{AccessToken: "t", Username: "u", PerPage: 101}}
	require.ErrorContains(t, cfg.ValidateCollect(), "qiita.per_page")

	cfg.Qiita.PerPage = 0 // falls back to the client default
	require.NoError(t, cfg.ValidateCollect())
}
