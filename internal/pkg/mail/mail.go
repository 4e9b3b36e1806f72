package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"net/smtp"
	"strings"
	"time"
)

const defaultResendEndpoint = "https://api.resend.com/emails"

// Config holds mail provider settings.
type Config struct {
	Enable    bool
	Host      string
	Port      int
	User      string
	Pass      string
	From      string
	ReplyTo   string
	UseResend bool
	ResendKey string
	// ResendEndpoint overrides the Resend API URL.
	ResendEndpoint string
	SiteName       string
}

// Message is a single email to send.
type Message struct {
	To      []string
	Subject string
	HTML    string
}

// Sender sends emails via SMTP or Resend.
type Sender struct {
	cfg        Config
	httpClient *http.Client
}

func New(cfg Config) *Sender {
	if cfg.ResendEndpoint == "" {
		cfg.ResendEndpoint = defaultResendEndpoint
	}
	if strings.TrimSpace(cfg.SiteName) == "" {
		cfg.SiteName = "Yetuga"
	}
	return &Sender{cfg: cfg, httpClient: &http.Client{Timeout: 15 * time.Second}}
}

// Enabled reports whether Send delivers anything.
func (s *Sender) Enabled() bool { return s != nil && s.cfg.Enable }

// Send dispatches an email. Uses Resend if configured, otherwise SMTP.
func (s *Sender) Send(ctx context.Context, msg Message) error {
	if !s.Enabled() {
		return nil
	}
	if s.cfg.UseResend && s.cfg.ResendKey != "" {
		return s.sendResend(ctx, msg)
	}
	return s.sendSMTP(msg)
}

func (s *Sender) from() string {
	if s.cfg.From != "" {
		return s.cfg.From
	}
	return s.cfg.User
}

// sendSMTP sends via net/smtp.
func (s *Sender) sendSMTP(msg Message) error {
	port := s.cfg.Port
	if port == 0 {
		port = 587
	}
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, port)

	var body bytes.Buffer
	body.WriteString("MIME-Version: 1.0\r\n")
	body.WriteString(fmt.Sprintf("From: %s\r\n", s.from()))
	body.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(msg.To, ", ")))
	body.WriteString(fmt.Sprintf("Subject: %s\r\n", msg.Subject))
	body.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	if s.cfg.ReplyTo != "" {
		body.WriteString(fmt.Sprintf("Reply-To: %s\r\n", s.cfg.ReplyTo))
	}
	body.WriteString("\r\n")
	body.WriteString(msg.HTML)

	auth := smtp.PlainAuth("", s.cfg.User, s.cfg.Pass, s.cfg.Host)
	return smtp.SendMail(addr, auth, s.from(), msg.To, body.Bytes())
}

// sendResend sends via the Resend HTTP API.
func (s *Sender) sendResend(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(map[string]interface{}{
		"from":    s.from(),
		"to":      msg.To,
		"subject": msg.Subject,
		"html":    msg.HTML,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.ResendEndpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.ResendKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return fmt.Errorf("resend error %d: %s", resp.StatusCode, errResp.Message)
	}
	return nil
}

const passwordResetTpl = `<!DOCTYPE html>
<html lang="en">
<body style="font-family:sans-serif;background:#f5f5f5;padding:20px">
<div style="max-width:600px;margin:0 auto;background:#fff;border-radius:8px;padding:24px">
  <h2 style="color:#333">Reset your {{.SiteName}} password</h2>
  <p>Hello {{.Name}},</p>
  <p>We received a request to reset the password for your account. The link below is valid for {{.ValidFor}}.</p>
  <p style="margin-top:24px">
    <a href="{{.ResetURL}}" style="background:#0ea5e9;color:#fff;padding:8px 16px;text-decoration:none;border-radius:4px">Choose a new password</a>
  </p>
  <p style="color:#999;font-size:12px">If you did not ask for this, ignore this email. Your password stays unchanged.</p>
  <p style="color:#999;font-size:10px;text-align:center">&copy;{{year}} {{.SiteName}}</p>
</div>
</body>
</html>`

// PasswordResetData is the data for password reset emails.
type PasswordResetData struct {
	Name     string
	ResetURL string
	ValidFor time.Duration
}

type passwordResetView struct {
	SiteName string
	Name     string
	ResetURL string
	ValidFor string
}

func renderTemplate(tpl string, data interface{}) (string, error) {
	t, err := template.New("").Funcs(template.FuncMap{
		"year": func() int {
			return time.Now().Year()
		},
	}).Parse(tpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// SendPasswordReset mails a reset link.
func (s *Sender) SendPasswordReset(ctx context.Context, to string, data PasswordResetData) error {
	name := strings.TrimSpace(data.Name)
	if name == "" {
		name = "there"
	}
	html, err := renderTemplate(passwordResetTpl, passwordResetView{
		SiteName: s.cfg.SiteName,
		Name:     name,
		ResetURL: data.ResetURL,
		ValidFor: humanDuration(data.ValidFor),
	})
	if err != nil {
		return err
	}
	return s.Send(ctx, Message{
		To:      []string{to},
		Subject: fmt.Sprintf("[%s] Password reset", s.cfg.SiteName),
		HTML:    html,
	})
}

func humanDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "a short time"
	case d%time.Hour == 0 && d == time.Hour:
		return "1 hour"
	case d%time.Hour == 0:
		return fmt.Sprintf("%d hours", d/time.Hour)
	default:
		return fmt.Sprintf("%d minutes", d/time.Minute)
	}
}
