package config

import (
	"os"
	"strconv"
	"time"

	"github.com/eresh-mittal/ImageProc/internal/constants"
)

// Default values used when the corresponding environment variable is not set
const (
	DefaultPort              = "8080"
	DefaultUploadDir         = "uploads"
	DefaultProcessedDir      = "processed_images"
	DefaultOutputDir         = "outputs"
	DefaultRowConcurrency    = 4
	DefaultEntryConcurrency  = 2
	DefaultMaxConcurrentJobs = 2
	DefaultFetchTimeout      = 30 * time.Second
	DefaultTransformTimeout  = 30 * time.Second
	DefaultWebhookTimeout    = 30 * time.Second
	DefaultPollInterval      = 2 * time.Second
	// DefaultBodyLimit caps uploaded request bodies at 32 MiB
	DefaultBodyLimit = 32 << 20
)

// Config holds the runtime settings of the service
type Config struct {
	Port string
	// BodyLimit is the maximum request body size in bytes
	BodyLimit int

	DB DBConfig

	UploadDir    string
	ProcessedDir string
	OutputDir    string

	RowConcurrency    int
	EntryConcurrency  int
	MaxConcurrentJobs int

	FetchTimeout     time.Duration
	TransformTimeout time.Duration
	WebhookTimeout   time.Duration
	PollInterval     time.Duration

	// NATSURL enables publishing completion events when non-empty
	NATSURL string
}

// DBConfig holds the database connection settings
type DBConfig struct {
	Driver     string
	Host       string
	Port       int
	User       string
	Password   string
	Name       string
	SSLEnabled bool
	// Path is only used by the sqlite driver
	Path string
}

// Load builds a Config from the environment
func Load() Config {
	return Config{
		Port:      GetEnv(constants.EnvPort, DefaultPort),
		BodyLimit: GetEnvInt(constants.EnvBodyLimit, DefaultBodyLimit),
		DB: DBConfig{
			Driver:     GetEnv(constants.EnvDBDriver, "postgres"),
			Host:       GetEnv(constants.EnvDBHost, ""),
			Port:       GetEnvInt(constants.EnvDBPort, 0),
			User:       GetEnv(constants.EnvDBUser, ""),
			Password:   GetEnv(constants.EnvDBPassword, ""),
			Name:       GetEnv(constants.EnvDBName, ""),
			SSLEnabled: GetEnvBool(constants.EnvDBSSLEnabled, false),
			Path:       GetEnv(constants.EnvDBPath, "data/imageproc.db"),
		},
		UploadDir:         GetEnv(constants.EnvUploadDir, DefaultUploadDir),
		ProcessedDir:      GetEnv(constants.EnvProcessedDir, DefaultProcessedDir),
		OutputDir:         GetEnv(constants.EnvOutputDir, DefaultOutputDir),
		RowConcurrency:    GetEnvInt(constants.EnvRowConcurrency, DefaultRowConcurrency),
		EntryConcurrency:  GetEnvInt(constants.EnvEntryConcurrency, DefaultEntryConcurrency),
		MaxConcurrentJobs: GetEnvInt(constants.EnvMaxConcurrentJobs, DefaultMaxConcurrentJobs),
		FetchTimeout:      GetEnvDuration(constants.EnvFetchTimeout, DefaultFetchTimeout),
		TransformTimeout:  GetEnvDuration(constants.EnvTransformTimeout, DefaultTransformTimeout),
		WebhookTimeout:    GetEnvDuration(constants.EnvWebhookTimeout, DefaultWebhookTimeout),
		PollInterval:      GetEnvDuration(constants.EnvPollInterval, DefaultPollInterval),
		NATSURL:           GetEnv(constants.EnvNATSURL, ""),
	}
}

// GetEnv retrieves the value of an environment variable with a fallback value if not set
func GetEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// GetEnvInt retrieves an integer environment variable, returning fallback if it is unset or malformed
func GetEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}

// GetEnvBool retrieves a boolean environment variable, returning fallback if it is unset or malformed
func GetEnvBool(key string, fallback bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return b
}

// GetEnvDuration retrieves a duration environment variable such as "30s",
// returning fallback if it is unset or malformed
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
