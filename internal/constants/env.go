// Package constants provides centralized definitions of constants used throughout the application
package constants

// Environment variable names
const (
	// EnvPort is the port the API server listens on
	EnvPort = "PORT"
	// EnvBodyLimit caps upload size in bytes
	EnvBodyLimit = "BODY_LIMIT"
	// EnvLogLevel is the logrus level name (trace, debug, info, ...)
	EnvLogLevel = "LOG_LEVEL"

	// EnvDBDriver selects the gorm dialect: postgres, mysql or sqlite
	EnvDBDriver     = "DB_DRIVER"
	EnvDBHost       = "DB_HOST"
	EnvDBPort       = "DB_PORT"
	EnvDBUser       = "DB_USER"
	EnvDBPassword   = "DB_PASSWORD"
	EnvDBName       = "DB_NAME"
	EnvDBSSLEnabled = "DB_SSL_ENABLED"
	// EnvDBPath is the database file used by the sqlite driver
	EnvDBPath = "DB_PATH"

	// EnvUploadDir is where uploaded CSV files are kept
	EnvUploadDir = "UPLOAD_DIR"
	// EnvProcessedDir is where resized images are written
	EnvProcessedDir = "PROCESSED_DIR"
	// EnvOutputDir is where result CSV artifacts are written
	EnvOutputDir = "OUTPUT_DIR"

	EnvRowConcurrency    = "ROW_CONCURRENCY"
	EnvEntryConcurrency  = "ENTRY_CONCURRENCY"
	EnvMaxConcurrentJobs = "MAX_CONCURRENT_JOBS"

	EnvFetchTimeout     = "FETCH_TIMEOUT"
	EnvTransformTimeout = "TRANSFORM_TIMEOUT"
	EnvWebhookTimeout   = "WEBHOOK_TIMEOUT"
	EnvPollInterval     = "POLL_INTERVAL"

	// EnvNATSURL enables completion events on NATS when set
	EnvNATSURL = "NATS_URL"

	// EnvServerAddress is read by the CLI to locate the API server
	EnvServerAddress = "IMAGEPROC_SERVER_ADDRESS"
)
