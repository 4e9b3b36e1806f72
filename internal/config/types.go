package config

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int                   `yaml:"port"`
	DSN            string                `yaml:"dsn"` // MySQL DSN
	RedisURL       string                `yaml:"redis_url"`
	Database       DatabaseRuntimeConfig `yaml:"database"`
	Redis          RedisRuntimeConfig    `yaml:"redis"`
	Env            string                `yaml:"env"` // "development" | "production"
	Paths          RuntimePathsConfig    `yaml:"paths"`
	AllowedOrigins []string              `yaml:"allowed_origins"`
	// TrustedProxies lists the addresses allowed to set X-Forwarded-For.
	// Empty means the peer address is the client.
	TrustedProxies []string        `yaml:"trusted_proxies"`
	Timezone       string          `yaml:"timezone"`
	Session        SessionConfig   `yaml:"session"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
	Alerts         AlertConfig     `yaml:"alerts"`
	Mail           MailConfig      `yaml:"mail"`
	PublicURL      string          `yaml:"public_url"` // base for links in outgoing mail
}

type DatabaseRuntimeConfig struct {
	Disabled  bool              `yaml:"disabled"`
	DSN       string            `yaml:"dsn"`
	URL       string            `yaml:"url"`
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	User      string            `yaml:"user"`
	Password  string            `yaml:"password"`
	Name      string            `yaml:"name"`
	Charset   string            `yaml:"charset"`
	ParseTime bool              `yaml:"parse_time"`
	Loc       string            `yaml:"loc"`
	Params    map[string]string `yaml:"params"`
}

type RedisRuntimeConfig struct {
	URL      string            `yaml:"url"`
	Host     string            `yaml:"host"`
	Port     int               `yaml:"port"`
	Username string            `yaml:"username"`
	Password string            `yaml:"password"`
	DB       int               `yaml:"db"`
	TLS      bool              `yaml:"tls"`
	Scheme   string            `yaml:"scheme"`
	Params   map[string]string `yaml:"params"`
}

type RuntimePathsConfig struct {
	Logs  string `yaml:"logs"`
	State string `yaml:"state"`
}

// SessionConfig controls cookie naming, sliding expiry and identifier rotation.
type SessionConfig struct {
	Backend         string `yaml:"backend"`
	CookieName      string `yaml:"cookie_name"`
	LifetimeSeconds int    `yaml:"lifetime_seconds"`
	RotationSeconds int    `yaml:"rotation_seconds"`
	SecureCookie    bool   `yaml:"secure_cookie"`
}

// LimitPolicy is a max-attempts-per-window pair for one rate limited action.
type LimitPolicy struct {
	MaxAttempts   int `yaml:"max_attempts"`
	WindowSeconds int `yaml:"window_seconds"`
}

type RateLimitConfig struct {
	Backend        string      `yaml:"backend"`
	LockoutSeconds int         `yaml:"lockout_seconds"`
	Login          LimitPolicy `yaml:"login"`
	Register       LimitPolicy `yaml:"register"`
	PasswordReset  LimitPolicy `yaml:"password_reset"`
	APICall        LimitPolicy `yaml:"api_call"`
}

type AlertConfig struct {
	BarkKey    string `yaml:"bark_key"`
	BarkServer string `yaml:"bark_server"`
}

// MailConfig selects how password reset links are delivered. With Enable
// false the link is only written to the debug log.
type MailConfig struct {
	Enable    bool   `yaml:"enable"`
	From      string `yaml:"from"`
	ReplyTo   string `yaml:"reply_to"`
	SiteName  string `yaml:"site_name"`
	SMTPHost  string `yaml:"smtp_host"`
	SMTPPort  int    `yaml:"smtp_port"`
	SMTPUser  string `yaml:"smtp_user"`
	SMTPPass  string `yaml:"smtp_pass"`
	ResendKey string `yaml:"resend_key"`
}

type rawAppConfig struct {
	Port           int                `yaml:"port"`
	DSN            string             `yaml:"dsn"`
	DatabaseURL    string             `yaml:"database_url"`
	RedisURL       string             `yaml:"redis_url"`
	Database       rawDatabaseConfig  `yaml:"database"`
	Redis          rawRedisConfig     `yaml:"redis"`
	Env            string             `yaml:"env"`
	Paths          RuntimePathsConfig `yaml:"paths"`
	LogDir         string             `yaml:"log_dir"`
	AllowedOrigins []string           `yaml:"allowed_origins"`
	TrustedProxies []string           `yaml:"trusted_proxies"`
	Timezone       string             `yaml:"timezone"`
	TZ             string             `yaml:"tz"`
	Session        rawSessionConfig   `yaml:"session"`
	RateLimit      rawRateLimitConfig `yaml:"rate_limit"`
	Alerts         AlertConfig        `yaml:"alerts"`
	Mail           rawMailConfig      `yaml:"mail"`
	PublicURL      string             `yaml:"public_url"`
}

type rawMailConfig struct {
	Enable    *bool  `yaml:"enable"`
	From      string `yaml:"from"`
	ReplyTo   string `yaml:"reply_to"`
	SiteName  string `yaml:"site_name"`
	SMTPHost  string `yaml:"smtp_host"`
	SMTPPort  int    `yaml:"smtp_port"`
	SMTPUser  string `yaml:"smtp_user"`
	SMTPPass  string `yaml:"smtp_pass"`
	ResendKey string `yaml:"resend_key"`
}

type rawDatabaseConfig struct {
	Disabled  *bool             `yaml:"disabled"`
	DSN       string            `yaml:"dsn"`
	URL       string            `yaml:"url"`
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	User      string            `yaml:"user"`
	Password  string            `yaml:"password"`
	Name      string            `yaml:"name"`
	Charset   string            `yaml:"charset"`
	ParseTime *bool             `yaml:"parse_time"`
	Loc       string            `yaml:"loc"`
	Params    map[string]string `yaml:"params"`
}

type rawRedisConfig struct {
	URL      string            `yaml:"url"`
	Host     string            `yaml:"host"`
	Port     int               `yaml:"port"`
	Username string            `yaml:"username"`
	Password string            `yaml:"password"`
	DB       *int              `yaml:"db"`
	TLS      *bool             `yaml:"tls"`
	Scheme   string            `yaml:"scheme"`
	Params   map[string]string `yaml:"params"`
}

type rawSessionConfig struct {
	Backend         string `yaml:"backend"`
	CookieName      string `yaml:"cookie_name"`
	LifetimeSeconds int    `yaml:"lifetime_seconds"`
	RotationSeconds int    `yaml:"rotation_seconds"`
	SecureCookie    *bool  `yaml:"secure_cookie"`
}

type rawRateLimitConfig struct {
	Backend        string      `yaml:"backend"`
	LockoutSeconds int         `yaml:"lockout_seconds"`
	Login          LimitPolicy `yaml:"login"`
	Register       LimitPolicy `yaml:"register"`
	PasswordReset  LimitPolicy `yaml:"password_reset"`
	APICall        LimitPolicy `yaml:"api_call"`
}
