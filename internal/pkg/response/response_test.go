package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func TestOKWrapsSlices(t *testing.T) {
	c, w := newContext()
	OK(c, []string{"a"})
	assert.JSONEq(t, `{"data":["a"]}`, w.Body.String())
}

func TestFailEnvelope(t *testing.T) {
	c, w := newContext()
	Unauthorized(c, "session_expired")
	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(0), body["ok"])
	assert.Equal(t, "session_expired", body["error"])
}

func TestTooManyRequests(t *testing.T) {
	c, w := newContext()
	TooManyRequests(c, "slow down", 42)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), `"remaining_block_time":42`)
}

func TestRedirectWithReason(t *testing.T) {
	c, w := newContext()
	RedirectWithReason(c, "/login", "csrf_failed")
	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login?error=csrf_failed", w.Header().Get("Location"))
}
