package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML file at configPath, applies defaults and validates
// the ranges the rest of the process depends on.
func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}
	return Parse(content, path)
}

// Parse decodes raw YAML content. name is only used in error messages.
func Parse(content []byte, name string) (*AppConfig, error) {
	cfg := defaultAppConfig()
	raw := rawAppConfig{}
	if len(bytes.TrimSpace(content)) > 0 {
		decoder := yaml.NewDecoder(bytes.NewReader(content))
		decoder.KnownFields(true)
		if err := decoder.Decode(&raw); err != nil {
			return nil, fmt.Errorf("parse config file %q: %w", name, err)
		}
	}

	applyRawAppConfig(&cfg, raw)
	if err := validate(&cfg, name); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *AppConfig, name string) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("invalid port %d in %q, expected 1-65535", cfg.Port, name)
	}
	if cfg.Database.Port < 1 || cfg.Database.Port > 65535 {
		return fmt.Errorf("invalid database.port %d in %q, expected 1-65535", cfg.Database.Port, name)
	}
	if cfg.Redis.Port < 1 || cfg.Redis.Port > 65535 {
		return fmt.Errorf("invalid redis.port %d in %q, expected 1-65535", cfg.Redis.Port, name)
	}
	if cfg.Redis.DB < 0 {
		return fmt.Errorf("invalid redis.db %d in %q, expected >= 0", cfg.Redis.DB, name)
	}
	if !validBackend(cfg.Session.Backend) {
		return fmt.Errorf("invalid session.backend %q in %q, expected memory, file or redis", cfg.Session.Backend, name)
	}
	if !validBackend(cfg.RateLimit.Backend) {
		return fmt.Errorf("invalid rate_limit.backend %q in %q, expected memory, file or redis", cfg.RateLimit.Backend, name)
	}
	if cfg.Mail.Enable && cfg.Mail.ResendKey == "" && cfg.Mail.SMTPHost == "" {
		return fmt.Errorf("mail.enable is set in %q but neither mail.smtp_host nor mail.resend_key is configured", name)
	}
	if err := validateProxies(cfg.TrustedProxies); err != nil {
		return fmt.Errorf("invalid trusted_proxies in %q: %w", name, err)
	}
	if cfg.Session.RotationSeconds > cfg.Session.LifetimeSeconds {
		return fmt.Errorf("session.rotation_seconds %d exceeds session.lifetime_seconds %d in %q",
			cfg.Session.RotationSeconds, cfg.Session.LifetimeSeconds, name)
	}
	return nil
}

func validBackend(v string) bool {
	switch v {
	case BackendMemory, BackendFile, BackendRedis:
		return true
	}
	return false
}

func defaultAppConfig() AppConfig {
	cfg := AppConfig{
		Port: defaultPort,
		Env:  defaultEnv,
		Database: DatabaseRuntimeConfig{
			Host:      defaultDBHost,
			Port:      defaultDBPort,
			User:      defaultDBUser,
			Password:  defaultDBPassword,
			Name:      defaultDBName,
			Charset:   defaultDBCharset,
			ParseTime: true,
			Loc:       defaultDBLoc,
		},
		Redis: RedisRuntimeConfig{
			Host: defaultRedisHost,
			Port: defaultRedisPort,
			DB:   defaultRedisDB,
		},
		Session: SessionConfig{
			Backend:         BackendFile,
			CookieName:      defaultSessionCookie,
			LifetimeSeconds: defaultSessionLifetime,
			RotationSeconds: defaultSessionRotation,
		},
		RateLimit: RateLimitConfig{
			Backend:        BackendFile,
			LockoutSeconds: defaultLockoutSeconds,
			Login:          LimitPolicy{MaxAttempts: defaultLimitAttempts, WindowSeconds: defaultLimitWindow},
			Register:       LimitPolicy{MaxAttempts: defaultLimitAttempts, WindowSeconds: defaultLimitWindow},
			PasswordReset:  LimitPolicy{MaxAttempts: defaultLimitAttempts, WindowSeconds: defaultLimitWindow},
			APICall:        LimitPolicy{MaxAttempts: defaultAPIAttempts, WindowSeconds: defaultLimitWindow},
		},
		Alerts:    AlertConfig{BarkServer: defaultBarkServer},
		Mail:      MailConfig{SiteName: defaultSiteName},
		PublicURL: defaultPublicURL,
	}
	cfg.Database = normalizeDatabaseConfig(cfg.Database)
	cfg.Redis = normalizeRedisConfig(cfg.Redis)
	cfg.DSN = cfg.Database.DSNValue()
	cfg.RedisURL = cfg.Redis.URLValue()
	return cfg
}

func applyRawAppConfig(cfg *AppConfig, raw rawAppConfig) {
	if raw.Port != 0 {
		cfg.Port = raw.Port
	}
	cfg.Database = applyRawDatabaseConfig(cfg.Database, raw)
	cfg.Redis = applyRawRedisConfig(cfg.Redis, raw)
	if v := strings.TrimSpace(raw.Env); v != "" {
		cfg.Env = v
	}
	if v := strings.TrimSpace(raw.Paths.Logs); v != "" {
		cfg.Paths.Logs = v
	}
	if v := strings.TrimSpace(raw.LogDir); v != "" {
		cfg.Paths.Logs = v
	}
	if v := strings.TrimSpace(raw.Paths.State); v != "" {
		cfg.Paths.State = v
	}
	if raw.AllowedOrigins != nil {
		cfg.AllowedOrigins = trimList(raw.AllowedOrigins)
	}
	if raw.TrustedProxies != nil {
		cfg.TrustedProxies = trimList(raw.TrustedProxies)
	}
	if v := strings.TrimSpace(raw.Timezone); v != "" {
		cfg.Timezone = v
	}
	if v := strings.TrimSpace(raw.TZ); v != "" {
		cfg.Timezone = v
	}

	cfg.Session = applyRawSessionConfig(cfg.Session, raw.Session)
	cfg.RateLimit = applyRawRateLimitConfig(cfg.RateLimit, raw.RateLimit)

	if v := strings.TrimSpace(raw.Alerts.BarkKey); v != "" {
		cfg.Alerts.BarkKey = v
	}
	if v := strings.TrimRight(strings.TrimSpace(raw.Alerts.BarkServer), "/"); v != "" {
		cfg.Alerts.BarkServer = v
	}

	cfg.Mail = applyRawMailConfig(cfg.Mail, raw.Mail)
	if v := strings.TrimRight(strings.TrimSpace(raw.PublicURL), "/"); v != "" {
		cfg.PublicURL = v
	}

	cfg.DSN = cfg.Database.DSNValue()
	cfg.RedisURL = cfg.Redis.URLValue()
	cfg.Env = strings.ToLower(orDefault(cfg.Env, defaultEnv))
}

func applyRawDatabaseConfig(current DatabaseRuntimeConfig, raw rawAppConfig) DatabaseRuntimeConfig {
	cfg := current

	if raw.Database.Disabled != nil {
		cfg.Disabled = *raw.Database.Disabled
	}
	if v := strings.TrimSpace(raw.Database.DSN); v != "" {
		cfg.DSN = v
	}
	if v := strings.TrimSpace(raw.Database.URL); v != "" {
		cfg.DSN = v
	}
	if v := strings.TrimSpace(raw.DSN); v != "" {
		cfg.DSN = v
	}
	if v := strings.TrimSpace(raw.DatabaseURL); v != "" {
		cfg.DSN = v
	}
	if v := strings.TrimSpace(raw.Database.Host); v != "" {
		cfg.Host = v
	}
	if raw.Database.Port != 0 {
		cfg.Port = raw.Database.Port
	}
	if v := strings.TrimSpace(raw.Database.User); v != "" {
		cfg.User = v
	}
	if v := strings.TrimSpace(raw.Database.Password); v != "" {
		cfg.Password = v
	}
	if v := strings.TrimSpace(raw.Database.Name); v != "" {
		cfg.Name = v
	}
	if v := strings.TrimSpace(raw.Database.Charset); v != "" {
		cfg.Charset = v
	}
	if raw.Database.ParseTime != nil {
		cfg.ParseTime = *raw.Database.ParseTime
	}
	if v := strings.TrimSpace(raw.Database.Loc); v != "" {
		cfg.Loc = v
	}
	if raw.Database.Params != nil {
		cfg.Params = cleanParams(raw.Database.Params)
	}

	return normalizeDatabaseConfig(cfg)
}

func applyRawRedisConfig(current RedisRuntimeConfig, raw rawAppConfig) RedisRuntimeConfig {
	cfg := current

	if v := strings.TrimSpace(raw.Redis.URL); v != "" {
		cfg.URL = v
	}
	if v := strings.TrimSpace(raw.RedisURL); v != "" {
		cfg.URL = v
	}
	if v := strings.TrimSpace(raw.Redis.Host); v != "" {
		cfg.Host = v
	}
	if raw.Redis.Port != 0 {
		cfg.Port = raw.Redis.Port
	}
	if v := strings.TrimSpace(raw.Redis.Username); v != "" {
		cfg.Username = v
	}
	if v := strings.TrimSpace(raw.Redis.Password); v != "" {
		cfg.Password = v
	}
	if raw.Redis.DB != nil {
		cfg.DB = *raw.Redis.DB
	}
	if raw.Redis.TLS != nil {
		cfg.TLS = *raw.Redis.TLS
	}
	if v := strings.TrimSpace(raw.Redis.Scheme); v != "" {
		cfg.Scheme = v
	}
	if raw.Redis.Params != nil {
		cfg.Params = cleanParams(raw.Redis.Params)
	}

	return normalizeRedisConfig(cfg)
}

func applyRawSessionConfig(current SessionConfig, raw rawSessionConfig) SessionConfig {
	cfg := current
	if v := strings.ToLower(strings.TrimSpace(raw.Backend)); v != "" {
		cfg.Backend = v
	}
	if v := strings.TrimSpace(raw.CookieName); v != "" {
		cfg.CookieName = v
	}
	if raw.LifetimeSeconds > 0 {
		cfg.LifetimeSeconds = raw.LifetimeSeconds
	}
	if raw.RotationSeconds > 0 {
		cfg.RotationSeconds = raw.RotationSeconds
	}
	if raw.SecureCookie != nil {
		cfg.SecureCookie = *raw.SecureCookie
	}
	return cfg
}

func applyRawRateLimitConfig(current RateLimitConfig, raw rawRateLimitConfig) RateLimitConfig {
	cfg := current
	if v := strings.ToLower(strings.TrimSpace(raw.Backend)); v != "" {
		cfg.Backend = v
	}
	if raw.LockoutSeconds > 0 {
		cfg.LockoutSeconds = raw.LockoutSeconds
	}
	cfg.Login = mergePolicy(cfg.Login, raw.Login)
	cfg.Register = mergePolicy(cfg.Register, raw.Register)
	cfg.PasswordReset = mergePolicy(cfg.PasswordReset, raw.PasswordReset)
	cfg.APICall = mergePolicy(cfg.APICall, raw.APICall)
	return cfg
}

func applyRawMailConfig(current MailConfig, raw rawMailConfig) MailConfig {
	cfg := current
	if raw.Enable != nil {
		cfg.Enable = *raw.Enable
	}
	if v := strings.TrimSpace(raw.From); v != "" {
		cfg.From = v
	}
	if v := strings.TrimSpace(raw.ReplyTo); v != "" {
		cfg.ReplyTo = v
	}
	if v := strings.TrimSpace(raw.SiteName); v != "" {
		cfg.SiteName = v
	}
	if v := strings.TrimSpace(raw.SMTPHost); v != "" {
		cfg.SMTPHost = v
	}
	if raw.SMTPPort != 0 {
		cfg.SMTPPort = raw.SMTPPort
	}
	if v := strings.TrimSpace(raw.SMTPUser); v != "" {
		cfg.SMTPUser = v
	}
	if raw.SMTPPass != "" {
		cfg.SMTPPass = raw.SMTPPass
	}
	if v := strings.TrimSpace(raw.ResendKey); v != "" {
		cfg.ResendKey = v
	}
	return cfg
}

func mergePolicy(current, raw LimitPolicy) LimitPolicy {
	if raw.MaxAttempts > 0 {
		current.MaxAttempts = raw.MaxAttempts
	}
	if raw.WindowSeconds > 0 {
		current.WindowSeconds = raw.WindowSeconds
	}
	return current
}

func (c *AppConfig) IsDev() bool {
	return strings.EqualFold(c.Env, defaultEnv)
}

func (c *AppConfig) LogDir() string {
	if c == nil {
		return runtimeDir("", "logs")
	}
	return runtimeDir(c.Paths.Logs, "logs")
}

// StateDir is where the file backends keep session and rate-limit records.
func (c *AppConfig) StateDir() string {
	if c == nil {
		return runtimeDir("", "state")
	}
	return runtimeDir(c.Paths.State, "state")
}

func (c SessionConfig) Lifetime() time.Duration {
	return time.Duration(c.LifetimeSeconds) * time.Second
}

func (c SessionConfig) RotationInterval() time.Duration {
	return time.Duration(c.RotationSeconds) * time.Second
}

func (c RateLimitConfig) Lockout() time.Duration {
	return time.Duration(c.LockoutSeconds) * time.Second
}

func (p LimitPolicy) Window() time.Duration {
	return time.Duration(p.WindowSeconds) * time.Second
}
