package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	DriverMemory   = "memory"
	DriverBadger   = "badger"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	StorageMemory = "memory"
	StorageLocal  = "local"
	StorageS3     = "s3"
)

type HTTPConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxUploadBytes int64
}

type LogConfig struct {
	Level string
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
	// ApplicationName is reported to the server as application_name unless
	// the DSN already sets one.
	ApplicationName   string
	HealthCheckPeriod time.Duration
	ConnectTimeout    time.Duration
}

type SQLiteConfig struct {
	Path string
}

type BadgerConfig struct {
	Dir      string
	InMemory bool
}

type DatabaseConfig struct {
	Driver         string
	RequestTimeout time.Duration
	Postgres       PostgresConfig
	SQLite         SQLiteConfig
	Badger         BadgerConfig
}

type LocalStorageConfig struct {
	Root string
}

type ObjectStoreConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
}

type StorageConfig struct {
	Driver         string
	RequestTimeout time.Duration
	Local          LocalStorageConfig
	S3             ObjectStoreConfig
}

type RedisConfig struct {
	Enabled      bool
	Addr         string
	Password     string
	DB           int
	Stream       string
	// StreamMaxLen caps the event stream on publish and on cleanup.
	StreamMaxLen int64
}

type RenderConfig struct {
	CacheTTL       time.Duration
	MaxPixels      int
	DefaultQuality int
}

type SecurityConfig struct {
	Enabled            bool
	RequireAccessToken bool
	SignatureWindow    time.Duration
	PrivateKeys        map[string]string
}

type WorkerConfig struct {
	Group         string
	Consumer      string
	ClaimInterval time.Duration
}

type JobsConfig struct {
	CleanupSpec string
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	Log              LogConfig
	Database         DatabaseConfig
	Storage          StorageConfig
	Redis            RedisConfig
	Render           RenderConfig
	Security         SecurityConfig
	Worker           WorkerConfig
	Jobs             JobsConfig
	AllowCORSOrigins []string
}

func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("MEDIAVAULT")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*AppConfig, error) {
	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) validate() error {
	switch c.Database.Driver {
	case DriverMemory, DriverBadger, DriverSQLite:
	case DriverPostgres:
		if c.Database.Postgres.DSN == "" {
			return errors.New("database.postgres.dsn required for postgres driver")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	switch c.Storage.Driver {
	case StorageMemory, StorageLocal:
	case StorageS3:
		if c.Storage.S3.Endpoint == "" {
			return errors.New("storage.s3.endpoint required for s3 driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "30s")
	v.SetDefault("http.idletimeout", "60s")
	v.SetDefault("http.maxuploadbytes", 32<<20)

	v.SetDefault("log.level", "")

	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.requesttimeout", "5s")
	v.SetDefault("database.postgres.maxopen", 30)
	v.SetDefault("database.postgres.maxidle", 10)
	v.SetDefault("database.postgres.connmaxlifetime", "30m")
	v.SetDefault("database.postgres.applicationname", "mediavault")
	v.SetDefault("database.postgres.healthcheckperiod", "30s")
	v.SetDefault("database.postgres.connecttimeout", "10s")
	v.SetDefault("database.sqlite.path", "./data/mediavault.db")
	v.SetDefault("database.badger.dir", "./data/badger")

	v.SetDefault("storage.driver", StorageLocal)
	v.SetDefault("storage.requesttimeout", "30s")
	v.SetDefault("storage.local.root", "./data/blobs")
	v.SetDefault("storage.s3.bucket", "mediavault-images")
	v.SetDefault("storage.s3.usessl", false)
	v.SetDefault("storage.s3.region", "us-east-1")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.stream", "media:events")
	v.SetDefault("redis.streammaxlen", 100_000)

	v.SetDefault("render.cachettl", "24h")
	v.SetDefault("render.maxpixels", 50_000_000)
	v.SetDefault("render.defaultquality", 90)

	v.SetDefault("security.enabled", false)
	v.SetDefault("security.requireaccesstoken", false)
	v.SetDefault("security.signaturewindow", "5m")

	v.SetDefault("worker.group", "media-workers")
	v.SetDefault("worker.consumer", "worker-1")
	v.SetDefault("worker.claiminterval", "10s")

	v.SetDefault("jobs.cleanupspec", "0 0 3 * * *")
}
