package config

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"
	defaultPort       = 8080
	defaultEnv        = "development"
	defaultDBHost     = "127.0.0.1"
	defaultDBPort     = 3306
	defaultDBUser     = "root"
	defaultDBPassword = "password"
	defaultDBName     = "yetuga_portal"
	defaultDBCharset  = "utf8mb4"
	defaultDBLoc      = "Local"
	defaultRedisHost  = "localhost"
	defaultRedisPort  = 6379
	defaultRedisDB    = 0

	defaultSessionCookie   = "YETUGA_SESSID"
	defaultSessionLifetime = 1800
	defaultSessionRotation = 300

	defaultLockoutSeconds = 900
	defaultLimitAttempts  = 5
	defaultLimitWindow    = 300
	defaultAPIAttempts    = 100

	defaultBarkServer = "https://api.day.app"
	defaultSiteName   = "Yetuga"
	defaultPublicURL  = "http://localhost:8080"
)

// Storage backends accepted by session.backend and rate_limit.backend.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)
