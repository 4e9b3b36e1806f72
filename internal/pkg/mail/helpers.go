package mail

import (
	"github.com/yetuga/portal/internal/config"
)

// BuildMailConfig maps the application's mail section onto a Config.
func BuildMailConfig(cfg *config.AppConfig) Config {
	if cfg == nil {
		return Config{}
	}
	m := cfg.Mail
	mc := Config{
		Enable:   m.Enable,
		Host:     m.SMTPHost,
		Port:     m.SMTPPort,
		User:     m.SMTPUser,
		Pass:     m.SMTPPass,
		From:     m.From,
		ReplyTo:  m.ReplyTo,
		SiteName: m.SiteName,
	}
	if m.ResendKey != "" {
		mc.UseResend = true
		mc.ResendKey = m.ResendKey
	}
	return mc
}
