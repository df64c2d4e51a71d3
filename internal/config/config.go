package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	StoreDriverMongo    = "mongo"
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	StorageDriverLocal = "local"
	StorageDriverMinio = "minio"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// TrustedProxies may set X-Forwarded-For; ClientIP ignores the header from anyone else.
	TrustedProxies []string
}

type MongoConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

type StoreConfig struct {
	Driver   string
	Mongo    MongoConfig
	Postgres PostgresConfig
}

type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	PoolSize    int
	DialTimeout time.Duration
}

type StorageConfig struct {
	Driver        string
	Root          string
	MaxUploadSize int64
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	Region        string
}

type SecurityConfig struct {
	TokenSecret    string
	TokenTTL       time.Duration
	AllowAnonymous bool
	AnonymousUser  string
}

type GeneratorConfig struct {
	BaseURL      string
	APIKey       string
	ImageModel   string
	ChatModel    string
	VisionModel  string
	DefaultSize  string
	DefaultStyle string
	Timeout      time.Duration
	StoryWorkers int
}

type RateLimitConfig struct {
	RPS   float64
	Burst int
}

type WorkerConfig struct {
	Stream        string
	Group         string
	Consumer      string
	ClaimInterval time.Duration
	MaxDeliveries int64
}

type JobsConfig struct {
	CleanupSchedule     string
	LeaderboardSchedule string
	OrphanTTL           time.Duration
}

type LogConfig struct {
	Level string
}

type AppConfig struct {
	Environment  string
	HTTP         HTTPConfig
	Store        StoreConfig
	Redis        RedisConfig
	Storage      StorageConfig
	Security     SecurityConfig
	Generator    GeneratorConfig
	RateLimit    RateLimitConfig
	Worker       WorkerConfig
	Jobs         JobsConfig
	Log          LogConfig
	AllowOrigins []string
}

func (c *AppConfig) IsProduction() bool {
	return c.Environment == "production"
}

func Load() (*AppConfig, error) {
	// .env is optional; values already in the environment win.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("IMAGETALES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
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
	return &cfg, nil
}

// ValidateWorker adds the checks that only apply to cmd/worker. The memory store lives in
// the API process, so a worker pointed at one would see no images and treat every upload
// as an orphan.
func (c *AppConfig) ValidateWorker() error {
	if c.Store.Driver == StoreDriverMemory {
		return fmt.Errorf("store.driver %q cannot be shared with the worker; use %q or %q",
			StoreDriverMemory, StoreDriverMongo, StoreDriverPostgres)
	}
	return nil
}

func (c *AppConfig) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case StoreDriverMongo:
		if c.Store.Mongo.URI == "" {
			errs = append(errs, errors.New("store.mongo.uri is required"))
		}
	case StoreDriverPostgres:
		if c.Store.Postgres.DSN == "" {
			errs = append(errs, errors.New("store.postgres.dsn is required"))
		}
	case StoreDriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}

	switch c.Storage.Driver {
	case StorageDriverLocal:
		if c.Storage.Root == "" {
			errs = append(errs, errors.New("storage.root is required"))
		}
	case StorageDriverMinio:
		if c.Storage.Endpoint == "" || c.Storage.Bucket == "" {
			errs = append(errs, errors.New("storage.endpoint and storage.bucket are required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}

	if c.Storage.MaxUploadSize <= 0 {
		errs = append(errs, errors.New("storage.maxuploadsize must be positive"))
	}
	if c.Security.TokenTTL <= 0 {
		errs = append(errs, errors.New("security.tokenttl must be positive"))
	}
	if c.Security.TokenSecret == "" && c.IsProduction() {
		errs = append(errs, errors.New("security.tokensecret is required in production"))
	}
	if c.Security.AllowAnonymous && c.Security.AnonymousUser == "" {
		errs = append(errs, errors.New("security.anonymoususer is required when anonymous access is allowed"))
	}
	if c.Generator.Timeout <= 0 {
		errs = append(errs, errors.New("generator.timeout must be positive"))
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0 {
		errs = append(errs, errors.New("ratelimit.rps and ratelimit.burst must be positive"))
	}

	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 6001)
	v.SetDefault("http.readtimeout", "15s")
	v.SetDefault("http.writetimeout", "180s") // story generation runs long
	v.SetDefault("http.idletimeout", "60s")
	v.SetDefault("http.trustedproxies", []string{})

	v.SetDefault("store.driver", StoreDriverMongo)
	v.SetDefault("store.mongo.uri", "mongodb://127.0.0.1:27017")
	v.SetDefault("store.mongo.database", "imagetales")
	v.SetDefault("store.mongo.connecttimeout", "10s")
	v.SetDefault("store.postgres.dsn", "")
	v.SetDefault("store.postgres.maxopen", 30)
	v.SetDefault("store.postgres.maxidle", 10)
	v.SetDefault("store.postgres.connmaxlifetime", "30m")
	v.SetDefault("store.postgres.automigrate", true)

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.poolsize", 10)
	v.SetDefault("redis.dialtimeout", "5s")

	v.SetDefault("storage.driver", StorageDriverLocal)
	v.SetDefault("storage.root", "./data")
	v.SetDefault("storage.maxuploadsize", 10<<20)
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.accesskey", "")
	v.SetDefault("storage.secretkey", "")
	v.SetDefault("storage.bucket", "imagetales")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")

	v.SetDefault("security.tokensecret", "")
	v.SetDefault("security.tokenttl", "24h")
	v.SetDefault("security.allowanonymous", true)
	v.SetDefault("security.anonymoususer", "anonymous_user")

	v.SetDefault("generator.baseurl", "https://api.openai.com/v1")
	v.SetDefault("generator.apikey", "")
	v.SetDefault("generator.imagemodel", "dall-e-3")
	v.SetDefault("generator.chatmodel", "gpt-4o-mini")
	v.SetDefault("generator.visionmodel", "gpt-4o")
	v.SetDefault("generator.defaultsize", "1024x1024")
	v.SetDefault("generator.defaultstyle", "vivid")
	v.SetDefault("generator.timeout", "120s")
	v.SetDefault("generator.storyworkers", 3)

	v.SetDefault("ratelimit.rps", 2)
	v.SetDefault("ratelimit.burst", 5)

	v.SetDefault("worker.stream", "imagetales:tasks")
	v.SetDefault("worker.group", "imagetales-workers")
	v.SetDefault("worker.consumer", "worker-1")
	v.SetDefault("worker.claiminterval", "30s")
	v.SetDefault("worker.maxdeliveries", 5)

	v.SetDefault("jobs.cleanupschedule", "0 0 3 * * *")
	v.SetDefault("jobs.leaderboardschedule", "0 */10 * * * *")
	v.SetDefault("jobs.orphanttl", "24h")

	v.SetDefault("log.level", "")
	v.SetDefault("alloworigins", []string{})
}
