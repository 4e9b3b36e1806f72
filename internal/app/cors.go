package app

import (
	"net/url"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// originAllowlist holds allowed_origins entries split by kind: exact hosts,
// "*.domain" suffixes and "host:*" any-port prefixes.
type originAllowlist struct {
	exact    map[string]struct{}
	suffixes []string
	prefixes []string
}

func newOriginAllowlist(patterns []string) *originAllowlist {
	l := &originAllowlist{exact: make(map[string]struct{}, len(patterns))}
	for _, p := range patterns {
		switch {
		case strings.HasPrefix(p, "*."):
			l.suffixes = append(l.suffixes, p[1:])
		case strings.HasSuffix(p, ":*"):
			l.prefixes = append(l.prefixes, p[:len(p)-1])
		default:
			l.exact[p] = struct{}{}
		}
	}
	return l
}

// Allows matches the host[:port] of a browser Origin header.
func (l *originAllowlist) Allows(origin string) bool {
	host := origin
	if u, err := url.Parse(origin); err == nil && u.Host != "" {
		host = u.Host
	}
	if _, ok := l.exact[host]; ok {
		return true
	}
	for _, s := range l.suffixes {
		if strings.HasSuffix(host, s) {
			return true
		}
	}
	for _, p := range l.prefixes {
		if strings.HasPrefix(host, p) {
			return true
		}
	}
	return false
}

// corsPolicy allows credentialed requests from the configured origins. In
// development, or with no origins configured, any origin is accepted.
func corsPolicy(origins []string, dev bool) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-CSRF-Token", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		AllowOriginFunc:  func(string) bool { return true },
	}
	if len(origins) > 0 && !dev {
		cfg.AllowOriginFunc = newOriginAllowlist(origins).Allows
	}
	return cors.New(cfg)
}
