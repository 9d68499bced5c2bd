package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg, err := decode(v)
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, StorageLocal, cfg.Storage.Driver)
	assert.Equal(t, 5*time.Second, cfg.Database.RequestTimeout)
	assert.Equal(t, 24*time.Hour, cfg.Render.CacheTTL)
	assert.Equal(t, "media:events", cfg.Redis.Stream)
	assert.Equal(t, "mediavault", cfg.Database.Postgres.ApplicationName)
	assert.Equal(t, 30*time.Second, cfg.Database.Postgres.HealthCheckPeriod)
	assert.Equal(t, 10*time.Second, cfg.Database.Postgres.ConnectTimeout)
}

func TestYAMLOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
database:
  driver: badger
  badger:
    inmemory: true
security:
  enabled: true
  privatekeys:
    u1: secret-one
allowcorsorigins: "https://a.example,https://b.example"
`)))

	cfg, err := decode(v)
	require.NoError(t, err)

	assert.Equal(t, DriverBadger, cfg.Database.Driver)
	assert.True(t, cfg.Database.Badger.InMemory)
	assert.Equal(t, "secret-one", cfg.Security.PrivateKeys["u1"])
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowCORSOrigins)
}

func TestValidateRejectsUnknownDrivers(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("database.driver", "mongo")
	_, err := decode(v)
	assert.Error(t, err)

	v = viper.New()
	setDefaults(v)
	v.Set("database.driver", DriverPostgres)
	_, err = decode(v)
	assert.Error(t, err, "postgres without dsn")
}
