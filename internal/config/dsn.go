package config

import (
	"net"
	neturl "net/url"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
)

// DSNValue renders the connection string for the MySQL driver. An explicit
// dsn or url wins; otherwise the normalized host fields are formatted by the
// driver itself, so loc and parseTime land in its native fields.
func (c DatabaseRuntimeConfig) DSNValue() string {
	if c.DSN != "" {
		return c.DSN
	}
	if c.URL != "" {
		return c.URL
	}

	dsn := mysql.NewConfig()
	dsn.User = c.User
	dsn.Passwd = c.Password
	dsn.Net = "tcp"
	dsn.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	dsn.DBName = c.Name
	dsn.ParseTime = c.ParseTime
	dsn.Params = map[string]string{"charset": c.Charset}

	// An unknown zone is passed through so the driver reports it on connect.
	if loc, err := time.LoadLocation(c.Loc); err == nil {
		dsn.Loc = loc
	} else {
		dsn.Params["loc"] = c.Loc
	}
	for key, value := range c.Params {
		switch key {
		case "parseTime":
			dsn.ParseTime = value == "true"
		case "loc":
			if loc, err := time.LoadLocation(value); err == nil {
				dsn.Loc = loc
			}
		default:
			dsn.Params[key] = value
		}
	}
	return dsn.FormatDSN()
}

// URLValue renders the redis:// or rediss:// URL go-redis parses on connect.
func (c RedisRuntimeConfig) URLValue() string {
	if c.URL != "" {
		return c.URL
	}

	u := &neturl.URL{
		Scheme: c.Scheme,
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + strconv.Itoa(c.DB),
	}
	switch {
	case c.Username != "" && c.Password != "":
		u.User = neturl.UserPassword(c.Username, c.Password)
	case c.Username != "":
		u.User = neturl.User(c.Username)
	case c.Password != "":
		u.User = neturl.UserPassword("", c.Password)
	}
	if len(c.Params) > 0 {
		query := neturl.Values{}
		for key, value := range c.Params {
			query.Set(key, value)
		}
		u.RawQuery = query.Encode()
	}
	return u.String()
}
