package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Driver             string `yaml:"driver"`
	Host               string `yaml:"host"`
	Port               string `yaml:"port"`
	User               string `yaml:"user"`
	Password           string `yaml:"password"`
	Name               string `yaml:"name"`
	SSLMode            string `yaml:"sslmode"`
	MaxOpenConns       int    `yaml:"max_open_conns"`
	MaxIdleConns       int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeSec int    `yaml:"conn_max_lifetime_sec"`
}

// MongoConfig holds MongoDB settings used when DB_DRIVER=mongo.
type MongoConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// StorageConfig selects the managed storage backend.
type StorageConfig struct {
	Driver     string `yaml:"driver"`
	UploadsDir string `yaml:"uploads_dir"`
	StagingDir string `yaml:"staging_dir"`

	// ConfineUploads keeps media references of HTTP uploads inside the
	// files sent with them. The importer CLI is never confined.
	ConfineUploads bool `yaml:"confine_uploads"`
}

// NATSConfig holds event publishing settings. An empty URL disables events.
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from an optional YAML file and environment variables.
type AppConfig struct {
	Env             string         `yaml:"env"`
	LogLevel        string         `yaml:"log_level"`
	Timezone        string         `yaml:"timezone"`
	AppHost         string         `yaml:"app_host"`
	Port            string         `yaml:"port"`
	MaxUploadMB     int            `yaml:"max_upload_mb"`
	WatchDebounceMS int            `yaml:"watch_debounce_ms"`
	Database        DatabaseConfig `yaml:"database"`
	Mongo           MongoConfig    `yaml:"mongo"`
	MinIO           MinIOConfig    `yaml:"minio"`
	Storage         StorageConfig  `yaml:"storage"`
	NATS            NATSConfig     `yaml:"nats"`
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// When CONFIG_FILE names a YAML file its values become the defaults; real
// environment variables still take precedence.
func Load() *AppConfig {
	base := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if fromFile, err := LoadFile(path); err == nil {
			base = fromFile
		}
	}
	return applyEnv(base)
}

// LoadFile reads a YAML config file on top of the built-in defaults.
func LoadFile(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

func defaults() *AppConfig {
	return &AppConfig{
		Env:             "development",
		LogLevel:        "info",
		Timezone:        "UTC",
		AppHost:         "localhost:8080",
		Port:            "8080",
		MaxUploadMB:     100,
		WatchDebounceMS: 500,
		Database: DatabaseConfig{
			Driver:             "postgres",
			Port:               "5432",
			SSLMode:            "disable",
			MaxOpenConns:       10,
			MaxIdleConns:       5,
			ConnMaxLifetimeSec: 300,
		},
		Mongo: MongoConfig{
			Database:   "htmlvault",
			Collection: "documents",
		},
		Storage: StorageConfig{
			Driver:         "local",
			UploadsDir:     "uploads",
			StagingDir:     os.TempDir(),
			ConfineUploads: true,
		},
		NATS: NATSConfig{
			SubjectPrefix: "htmlvault",
		},
	}
}

func applyEnv(c *AppConfig) *AppConfig {
	c.Env = getEnv("APP_ENV", c.Env)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.Timezone = getEnv("TIMEZONE", c.Timezone)
	c.AppHost = getEnv("APP_HOST", c.AppHost)
	c.Port = getEnv("PORT", c.Port)
	c.MaxUploadMB = getEnvInt("MAX_UPLOAD_MB", c.MaxUploadMB)
	c.WatchDebounceMS = getEnvInt("WATCH_DEBOUNCE_MS", c.WatchDebounceMS)

	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnv("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.Name = getEnv("DB_NAME", c.Database.Name)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)
	c.Database.MaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", c.Database.MaxIdleConns)
	c.Database.ConnMaxLifetimeSec = getEnvInt("DB_CONN_MAX_LIFETIME_SEC", c.Database.ConnMaxLifetimeSec)

	c.Mongo.URI = getEnv("MONGO_URI", c.Mongo.URI)
	c.Mongo.Database = getEnv("MONGO_DATABASE", c.Mongo.Database)
	c.Mongo.Collection = getEnv("MONGO_COLLECTION", c.Mongo.Collection)

	c.MinIO.Endpoint = getEnv("MINIO_ENDPOINT", c.MinIO.Endpoint)
	c.MinIO.AccessKey = getEnv("MINIO_ACCESS_KEY", c.MinIO.AccessKey)
	c.MinIO.SecretKey = getEnv("MINIO_SECRET_KEY", c.MinIO.SecretKey)
	c.MinIO.Bucket = getEnv("MINIO_BUCKET", c.MinIO.Bucket)
	c.MinIO.UseSSL = getEnvBool("MINIO_USE_SSL", c.MinIO.UseSSL)

	c.Storage.Driver = getEnv("STORAGE_DRIVER", c.Storage.Driver)
	c.Storage.UploadsDir = getEnv("UPLOADS_DIR", c.Storage.UploadsDir)
	c.Storage.StagingDir = getEnv("STAGING_DIR", c.Storage.StagingDir)
	c.Storage.ConfineUploads = getEnvBool("CONFINE_UPLOADS", c.Storage.ConfineUploads)

	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)
	c.NATS.SubjectPrefix = getEnv("NATS_SUBJECT_PREFIX", c.NATS.SubjectPrefix)
	return c
}

// Location resolves Timezone, falling back to UTC for unknown names.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// MaxUploadBytes is the request body limit derived from MaxUploadMB.
func (c *AppConfig) MaxUploadBytes() int {
	if c.MaxUploadMB <= 0 {
		return 100 * 1024 * 1024
	}
	return c.MaxUploadMB * 1024 * 1024
}

// WatchDebounce is the watcher debounce window.
func (c *AppConfig) WatchDebounce() time.Duration {
	if c.WatchDebounceMS <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.WatchDebounceMS) * time.Millisecond
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}
