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

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "http://localhost:5000", cfg.Backend.URL)
	assert.Equal(t, 2*time.Second, cfg.Pipeline.PollInterval)
	assert.True(t, cfg.IsDev())
	assert.False(t, cfg.HasDatabase())
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
environment: prod
backend:
  url: "http://scanner:5000/"
  timeout: 10s
db:
  host: db.internal
pipeline:
  history_limit: 5
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	t.Setenv("POMFLOW_DB_USER", "pipeline")
	t.Setenv("POMFLOW_SERVER_ADDR", ":9090")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "http://scanner:5000", cfg.Backend.URL, "trailing slash is trimmed")
	assert.Equal(t, 10*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, "db.internal", cfg.DB.Host)
	assert.Equal(t, "pipeline", cfg.DB.User)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 5, cfg.Pipeline.HistoryLimit)
	assert.False(t, cfg.IsDev())
	assert.True(t, cfg.HasDatabase())
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestConfig_DatabaseDSN(t *testing.T) {
	var cfg Config
	cfg.DB.Host = "db"
	cfg.DB.Port = 5432
	cfg.DB.User = "u"
	cfg.DB.Password = "p"
	cfg.DB.Name = "pomflow"
	cfg.DB.SSLMode = "disable"

	assert.Equal(t, "host=db port=5432 user=u password=p dbname=pomflow sslmode=disable", cfg.DatabaseDSN())
}
