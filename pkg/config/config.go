package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/johnquangdev/meetbot/pkg/validator"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Scheduler SchedulerConfig
	Failure   FailureConfig
	Calendar  CalendarConfig
	LiveKit   LiveKitConfig
	Storage   StorageConfig
	Database  DatabaseConfig
	Redis     RedisConfig
}

// ServerConfig holds process and status API configuration
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	Host            string        `envconfig:"HOST" default:"0.0.0.0"`
	Environment     string        `envconfig:"ENVIRONMENT" default:"development" validate:"oneof=development staging production"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s" validate:"gt=0"`
	StartAttempts   int           `envconfig:"START_ATTEMPTS" default:"3" validate:"min=1"`
	RestartDelay    time.Duration `envconfig:"RESTART_DELAY" default:"5s"`
	InitAttempts    int           `envconfig:"INIT_ATTEMPTS" default:"3" validate:"min=1"`
	InitDelay       time.Duration `envconfig:"INIT_DELAY" default:"2s"`
	APIToken        string        `envconfig:"STATUS_API_TOKEN"`
}

// SchedulerConfig holds the session scheduler tuning
type SchedulerConfig struct {
	ConcurrencyLimit   int           `envconfig:"MAX_CONCURRENT_MEETINGS" default:"40" validate:"min=1"`
	BasePort           int           `envconfig:"BASE_PORT" default:"9222" validate:"min=1,max=65535"`
	LeadTime           time.Duration `envconfig:"JOIN_LEAD_TIME" default:"1m" validate:"gte=0"`
	DiscoveryWindow    time.Duration `envconfig:"DISCOVERY_WINDOW" default:"15m" validate:"gt=0"`
	CyclePause         time.Duration `envconfig:"CYCLE_PAUSE" default:"60s" validate:"gt=0"`
	ProbeInterval      time.Duration `envconfig:"PROBE_INTERVAL" default:"30s" validate:"gt=0"`
	WorkerJoinTimeout  time.Duration `envconfig:"WORKER_JOIN_TIMEOUT" default:"1s" validate:"gt=0"`
	DriverCloseTimeout time.Duration `envconfig:"DRIVER_CLOSE_TIMEOUT" default:"10s" validate:"gt=0"`
}

// FailureConfig holds failed-meeting suppression settings. Zero values disable suppression.
type FailureConfig struct {
	Cooldown    time.Duration `envconfig:"FAILURE_COOLDOWN" default:"5m" validate:"gte=0"`
	MaxFailures int           `envconfig:"MAX_JOIN_FAILURES" default:"3" validate:"gte=0"`
	Window      time.Duration `envconfig:"FAILURE_WINDOW" default:"24h" validate:"gte=0"`
	Backend     string        `envconfig:"FAILURE_BACKEND" default:"memory" validate:"oneof=memory redis"`
}

// CalendarConfig holds calendar source configuration
type CalendarConfig struct {
	Source          string   `envconfig:"CALENDAR_SOURCE" default:"google" validate:"oneof=google static"`
	CredentialsFile string   `envconfig:"GOOGLE_CREDENTIALS_FILE" default:"credentials.json"`
	ImpersonateUser string   `envconfig:"GOOGLE_IMPERSONATE_USER"`
	CalendarIDs     []string `envconfig:"MONITORED_CALENDARS"`
	AuthorizedUsers []string `envconfig:"AUTHORIZED_USERS"`
	WorkspaceDomain string   `envconfig:"WORKSPACE_DOMAIN"`
	StaticFile      string   `envconfig:"STATIC_CALENDAR_FILE" default:"meetings.json"`
	RequestsPerSec  float64  `envconfig:"CALENDAR_RPS" default:"5" validate:"gt=0"`
	APIBaseURL      string   `envconfig:"CALENDAR_API_URL" default:"https://www.googleapis.com/calendar/v3" validate:"url"`
}

// LiveKitConfig holds LiveKit participant and egress configuration
type LiveKitConfig struct {
	URL         string        `envconfig:"LIVEKIT_URL" default:"ws://localhost:7880"`
	APIKey      string        `envconfig:"LIVEKIT_API_KEY"`
	APISecret   string        `envconfig:"LIVEKIT_API_SECRET"`
	BotIdentity string        `envconfig:"LIVEKIT_BOT_IDENTITY" default:"meetbot"`
	BotName     string        `envconfig:"LIVEKIT_BOT_NAME" default:"Meeting Bot"`
	TokenTTL    time.Duration `envconfig:"LIVEKIT_TOKEN_TTL" default:"6h" validate:"gt=0"`
	Record      bool          `envconfig:"LIVEKIT_RECORD" default:"true"`
	UseMock     bool          `envconfig:"LIVEKIT_USE_MOCK" default:"false"`
	MockLength  time.Duration `envconfig:"LIVEKIT_MOCK_SESSION_LENGTH" default:"5m"`
}

// StorageConfig holds output storage configuration
type StorageConfig struct {
	Type            string `envconfig:"STORAGE_TYPE" default:"minio" validate:"oneof=minio local"`
	Endpoint        string `envconfig:"STORAGE_ENDPOINT" default:"localhost:9000"`
	AccessKeyID     string `envconfig:"STORAGE_ACCESS_KEY" default:"minioadmin"`
	SecretAccessKey string `envconfig:"STORAGE_SECRET_KEY" default:"minioadmin"`
	BucketName      string `envconfig:"STORAGE_BUCKET" default:"meetbot"`
	Region          string `envconfig:"STORAGE_REGION" default:"us-east-1"`
	UseSSL          bool   `envconfig:"STORAGE_USE_SSL" default:"false"`
	Prefix          string `envconfig:"STORAGE_PREFIX" default:"recordings"`
	Extension       string `envconfig:"STORAGE_EXTENSION" default:"mp4" validate:"alphanum"`
	LocalDir        string `envconfig:"STORAGE_LOCAL_DIR" default:"recordings"`
}

// DatabaseConfig holds database configuration. History is disabled when Enabled is false.
type DatabaseConfig struct {
	Enabled     bool          `envconfig:"DB_ENABLED" default:"false"`
	Host        string        `envconfig:"DB_HOST" default:"localhost"`
	Port        string        `envconfig:"DB_PORT" default:"5432"`
	User        string        `envconfig:"DB_USER" default:"postgres"`
	Password    string        `envconfig:"DB_PASSWORD" default:"postgres"`
	Name        string        `envconfig:"DB_NAME" default:"meetbot"`
	SSLMode     string        `envconfig:"DB_SSLMODE" default:"disable"`
	MaxConns    int           `envconfig:"DB_MAX_CONNS" default:"10" validate:"min=1"`
	MinConns    int           `envconfig:"DB_MIN_CONNS" default:"2" validate:"min=0"`
	AutoMigrate bool          `envconfig:"DB_AUTO_MIGRATE" default:"true"`
	Retention   time.Duration `envconfig:"DB_HISTORY_RETENTION" default:"720h" validate:"gte=0"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     string `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables or defaults")
	}

	config := &Config{}
	if err := envconfig.Process("", config); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := validator.New().Validate(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if last := c.Scheduler.BasePort + c.Scheduler.ConcurrencyLimit - 1; last > 65535 {
		return fmt.Errorf("BASE_PORT + MAX_CONCURRENT_MEETINGS exceeds port range (last port %d)", last)
	}
	if c.Calendar.Source == "google" && c.Calendar.ImpersonateUser == "" {
		return fmt.Errorf("GOOGLE_IMPERSONATE_USER is required for the google calendar source")
	}
	if !c.LiveKit.UseMock && (c.LiveKit.APIKey == "" || c.LiveKit.APISecret == "") {
		return fmt.Errorf("LIVEKIT_API_KEY and LIVEKIT_API_SECRET are required")
	}
	if c.Failure.Backend == "redis" && c.Redis.Host == "" {
		return fmt.Errorf("REDIS_HOST is required for the redis failure backend")
	}
	return nil
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

// GetServerAddr returns the status API listen address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}
