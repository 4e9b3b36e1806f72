package config

import (
	"fmt"
	"net"
	"strings"
)

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}

func orDefaultInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

// normalizeDatabaseConfig fills every field DSNValue formats.
func normalizeDatabaseConfig(cfg DatabaseRuntimeConfig) DatabaseRuntimeConfig {
	cfg.DSN = strings.TrimSpace(cfg.DSN)
	cfg.URL = strings.TrimSpace(cfg.URL)
	cfg.Host = orDefault(cfg.Host, defaultDBHost)
	cfg.Port = orDefaultInt(cfg.Port, defaultDBPort)
	cfg.User = orDefault(cfg.User, defaultDBUser)
	cfg.Password = orDefault(cfg.Password, defaultDBPassword)
	cfg.Name = orDefault(cfg.Name, defaultDBName)
	cfg.Charset = orDefault(cfg.Charset, defaultDBCharset)
	cfg.Loc = orDefault(cfg.Loc, defaultDBLoc)
	cfg.Params = cleanParams(cfg.Params)
	return cfg
}

// normalizeRedisConfig fills every field URLValue formats. Unknown schemes
// fall back to plain redis.
func normalizeRedisConfig(cfg RedisRuntimeConfig) RedisRuntimeConfig {
	if raw := strings.TrimSpace(cfg.URL); raw != "" && !strings.HasPrefix(raw, "redis://") && !strings.HasPrefix(raw, "rediss://") {
		cfg.URL = "redis://" + raw
	} else {
		cfg.URL = raw
	}
	cfg.Host = orDefault(cfg.Host, defaultRedisHost)
	cfg.Port = orDefaultInt(cfg.Port, defaultRedisPort)
	cfg.Username = strings.TrimSpace(cfg.Username)
	cfg.Password = strings.TrimSpace(cfg.Password)
	if cfg.DB < 0 {
		cfg.DB = defaultRedisDB
	}

	scheme := strings.ToLower(strings.TrimSpace(cfg.Scheme))
	switch {
	case scheme == "rediss", scheme == "" && cfg.TLS:
		cfg.Scheme = "rediss"
	default:
		cfg.Scheme = "redis"
	}
	cfg.Params = cleanParams(cfg.Params)
	return cfg
}

// cleanParams trims keys and values and drops empty pairs.
func cleanParams(input map[string]string) map[string]string {
	if input == nil {
		return nil
	}
	out := make(map[string]string, len(input))
	for key, value := range input {
		k, v := strings.TrimSpace(key), strings.TrimSpace(value)
		if k != "" && v != "" {
			out[k] = v
		}
	}
	return out
}

func trimList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// validateProxies accepts bare addresses and CIDR ranges, the forms gin's
// SetTrustedProxies understands.
func validateProxies(proxies []string) error {
	for _, p := range proxies {
		if strings.Contains(p, "/") {
			if _, _, err := net.ParseCIDR(p); err != nil {
				return fmt.Errorf("trusted proxy %q: %w", p, err)
			}
			continue
		}
		if net.ParseIP(p) == nil {
			return fmt.Errorf("trusted proxy %q is not an IP address or CIDR range", p)
		}
	}
	return nil
}
