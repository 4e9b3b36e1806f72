// Package csrf issues the per-session token embedded in state changing forms
// and verifies it on submission.
package csrf

import (
	"github.com/yetuga/portal/internal/pkg/session"
	"github.com/yetuga/portal/internal/pkg/tokenvault"
)

const (
	// FieldName is the hidden form field carrying the token.
	FieldName = "csrf_token"
	// HeaderName carries the token for script initiated requests.
	HeaderName = "X-CSRF-Token"
)

// Tokens binds CSRF tokens to sessions.
type Tokens struct {
	vault *tokenvault.Vault
}

func New(vault *tokenvault.Vault) *Tokens {
	if vault == nil {
		vault = tokenvault.Default
	}
	return &Tokens{vault: vault}
}

// Token returns the session's token, creating it on first use.
func (t *Tokens) Token(s *session.Session) (string, error) {
	if s.CSRFToken != "" {
		return s.CSRFToken, nil
	}
	return t.Regenerate(s)
}

// Regenerate replaces the token, invalidating forms rendered earlier.
func (t *Tokens) Regenerate(s *session.Session) (string, error) {
	token, err := t.vault.Generate()
	if err != nil {
		return "", err
	}
	s.CSRFToken = token
	s.MarkDirty()
	return token, nil
}

// Verify compares candidate with the session's token in constant time.
// A session without a token verifies nothing.
func Verify(s *session.Session, candidate string) bool {
	if s == nil {
		return false
	}
	return tokenvault.Compare(candidate, s.CSRFToken)
}
