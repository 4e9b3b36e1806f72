// Package tokenvault issues and compares the unguessable secrets the portal
// hands out: session identifiers, CSRF tokens and password reset tokens.
package tokenvault

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
)

// TokenBytes is the amount of randomness behind every token.
const TokenBytes = 32

// TokenLength is the length of an encoded token.
const TokenLength = TokenBytes * 2

// Vault generates tokens from a random source. The zero value is not usable;
// use New or Default.
type Vault struct {
	random io.Reader
}

// Default reads from crypto/rand.
var Default = New(rand.Reader)

// New returns a Vault reading from r.
func New(r io.Reader) *Vault {
	return &Vault{random: r}
}

// Generate returns a fresh hex encoded token. There is no weaker fallback:
// when the random source fails the error is returned and the caller must
// abort whatever needed the token.
func (v *Vault) Generate() (string, error) {
	b := make([]byte, TokenBytes)
	n, err := io.ReadFull(v.random, b)
	if err != nil {
		return "", fmt.Errorf("read random source: %w (got %d of %d bytes)", err, n, TokenBytes)
	}
	return hex.EncodeToString(b), nil
}

// MustGenerate panics where Generate would fail.
func (v *Vault) MustGenerate() string {
	token, err := v.Generate()
	if err != nil {
		panic(err)
	}
	return token
}

// Generate uses the Default vault.
func Generate() (string, error) {
	return Default.Generate()
}

// Compare reports whether candidate equals reference in time independent of
// where they differ. An empty reference never matches.
func Compare(candidate, reference string) bool {
	if reference == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(reference)) == 1
}

// Hash returns the hex SHA-256 of token, for storing tokens at rest.
func Hash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
