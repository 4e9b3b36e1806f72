package proctitle

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetRejectsBlankTitle(t *testing.T) {
	assert.ErrorIs(t, Set("   "), errEmptyTitle)
}

func TestSetRewritesArgs(t *testing.T) {
	saved := os.Args[0]
	t.Cleanup(func() { os.Args[0] = saved })

	require.NoError(t, Set(" yetuga-portal-test "))
	assert.Equal(t, "yetuga-portal-test", os.Args[0])
}
