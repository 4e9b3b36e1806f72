package tokenvault

import (
	"bytes"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hexToken = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestGenerateShape(t *testing.T) {
	token, err := Generate()
	require.NoError(t, err)
	assert.Len(t, token, TokenLength)
	assert.Regexp(t, hexToken, token)
}

func TestGenerateNeverCollides(t *testing.T) {
	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		token, err := Generate()
		require.NoError(t, err)
		if _, dup := seen[token]; dup {
			t.Fatalf("duplicate token after %d draws", i)
		}
		seen[token] = struct{}{}
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestGenerateFailsWithoutFallback(t *testing.T) {
	v := New(failingReader{})
	token, err := v.Generate()
	assert.Error(t, err)
	assert.Empty(t, token)
	assert.Panics(t, func() { v.MustGenerate() })
}

func TestGenerateShortRead(t *testing.T) {
	v := New(bytes.NewReader(make([]byte, TokenBytes-1)))
	_, err := v.Generate()
	assert.Error(t, err)
}

func TestGenerateDeterministicSource(t *testing.T) {
	v := New(bytes.NewReader(bytes.Repeat([]byte{0xab}, TokenBytes)))
	token, err := v.Generate()
	require.NoError(t, err)
	assert.Equal(t, string(bytes.Repeat([]byte("ab"), TokenBytes)), token)
}

func TestCompare(t *testing.T) {
	token, err := Generate()
	require.NoError(t, err)

	tests := []struct {
		name      string
		candidate string
		reference string
		want      bool
	}{
		{"identical", token, token, true},
		{"different", token[:63] + "x", token, false},
		{"prefix", token[:32], token, false},
		{"empty candidate", "", token, false},
		{"empty reference", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(tt.candidate, tt.reference))
		})
	}
}

func TestHashIsStable(t *testing.T) {
	assert.Equal(t, Hash("abc"), Hash("abc"))
	assert.NotEqual(t, Hash("abc"), Hash("abd"))
	assert.Len(t, Hash("abc"), 64)
}
