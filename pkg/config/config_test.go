package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
server:
  name: dinein-test
  port: 8181
storage:
  driver: memory
lifecycle:
  call_expiry: 2m
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("DINEIN_AUTH_JWT_SECRET", "s3cret")
	t.Setenv("DINEIN_SERVER_PORT", "9999")

	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	assert.Equal(t, "dinein-test", cfg.Server.Name)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, 2*time.Minute, cfg.Lifecycle.CallExpiry)
	assert.Equal(t, time.Minute, cfg.Lifecycle.SweepInterval)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, "local", cfg.Notify.Broker)
	assert.Equal(t, "0.0.0.0:9999", cfg.Server.Addr())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("DINEIN_AUTH_JWT_SECRET", "s3cret")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "mongo", cfg.Storage.Driver)
	assert.Equal(t, 3*time.Minute, cfg.Lifecycle.CallExpiry)
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("DINEIN_AUTH_JWT_SECRET", "")

	_, err := Load(writeConfig(t, sample))
	assert.ErrorContains(t, err, "jwt_secret")
}

func TestValidate(t *testing.T) {
	t.Setenv("DINEIN_AUTH_JWT_SECRET", "s3cret")
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	bad := *cfg
	bad.Storage.Driver = "postgres"
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Notify.Broker = "kafka"
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Lifecycle.SweepInterval = 0
	assert.Error(t, bad.Validate())
}

func TestMySQLDSN(t *testing.T) {
	c := MySQLConfig{Host: "db", Port: 3306, Username: "u", Password: "p", Database: "dinein"}
	assert.Equal(t, "u:p@tcp(db:3306)/dinein?charset=utf8mb4&parseTime=True&loc=Local", c.DSN())
}
