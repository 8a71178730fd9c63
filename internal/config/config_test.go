package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Setenv("DB_HOST", "test-host")
	t.Setenv("DB_MAX_OPEN_CONNS", "20")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("STORAGE_DRIVER", "minio")
	t.Setenv("UPLOADS_DIR", "/srv/uploads")

	cfg := Load()

	assert.Equal(t, "test-host", cfg.Database.Host)
	assert.Equal(t, 20, cfg.Database.MaxOpenConns)
	assert.True(t, cfg.MinIO.UseSSL)
	assert.Equal(t, "minio", cfg.Storage.Driver)
	assert.Equal(t, "/srv/uploads", cfg.Storage.UploadsDir)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.True(t, cfg.Storage.ConfineUploads)
}

func TestLoad_ConfineUploadsOverride(t *testing.T) {
	t.Setenv("CONFINE_UPLOADS", "false")

	assert.False(t, Load().Storage.ConfineUploads)
}

func TestLoad_ConfigFileWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "htmlvault.yaml")
	content := `
port: "9090"
max_upload_mb: 25
database:
  driver: mongo
mongo:
  uri: mongodb://file-host:27017
storage:
  uploads_dir: /data/uploads
nats:
  url: nats://file-host:4222
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("MONGO_URI", "mongodb://env-host:27017")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 25, cfg.MaxUploadMB)
	assert.Equal(t, "mongo", cfg.Database.Driver)
	assert.Equal(t, "mongodb://env-host:27017", cfg.Mongo.URI)
	assert.Equal(t, "/data/uploads", cfg.Storage.UploadsDir)
	assert.Equal(t, "nats://file-host:4222", cfg.NATS.URL)
	// Defaults survive keys the file does not mention.
	assert.Equal(t, "documents", cfg.Mongo.Collection)
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [unclosed"), 0o644))
	_, err = LoadFile(path)
	assert.ErrorContains(t, err, "parse config file")
}

func TestDerivedValues(t *testing.T) {
	cfg := &AppConfig{Timezone: "Asia/Jakarta", MaxUploadMB: 2, WatchDebounceMS: 50}
	assert.Equal(t, "Asia/Jakarta", cfg.Location().String())
	assert.Equal(t, 2*1024*1024, cfg.MaxUploadBytes())
	assert.Equal(t, 50*time.Millisecond, cfg.WatchDebounce())

	cfg = &AppConfig{Timezone: "Not/AZone"}
	assert.Equal(t, time.UTC, cfg.Location())
	assert.Equal(t, 100*1024*1024, cfg.MaxUploadBytes())
	assert.Equal(t, 500*time.Millisecond, cfg.WatchDebounce())
}

func TestGetEnv(t *testing.T) {
	key := "TEST_ENV_VAR"
	t.Setenv(key, "value")

	assert.Equal(t, "value", getEnv(key, "default"))
	assert.Equal(t, "default", getEnv("NON_EXISTENT", "default"))
}

func TestGetEnvBool(t *testing.T) {
	key := "TEST_BOOL_VAR"

	t.Setenv(key, "true")
	assert.True(t, getEnvBool(key, false))

	t.Setenv(key, "false")
	assert.False(t, getEnvBool(key, true))

	t.Setenv(key, "invalid")
	assert.True(t, getEnvBool(key, true))

	os.Unsetenv(key)
	assert.True(t, getEnvBool(key, true))
}

func TestGetEnvInt(t *testing.T) {
	key := "TEST_INT_VAR"

	t.Setenv(key, "123")
	assert.Equal(t, 123, getEnvInt(key, 0))

	t.Setenv(key, "invalid")
	assert.Equal(t, 10, getEnvInt(key, 10))

	os.Unsetenv(key)
	assert.Equal(t, 10, getEnvInt(key, 10))
}
