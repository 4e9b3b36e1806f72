package response

import (
	"net/http"
	"net/url"
	"reflect"

	"github.com/gin-gonic/gin"
)

// Pagination metadata returned with paginated responses.
type Pagination struct {
	Total       int64 `json:"total"`
	CurrentPage int   `json:"current_page"`
	TotalPage   int   `json:"total_page"`
	Size        int   `json:"size"`
	HasNextPage bool  `json:"has_next_page"`
}

// pagedResponse is the envelope for paginated list responses.
type pagedResponse struct {
	Data       interface{} `json:"data"`
	Pagination Pagination  `json:"pagination"`
}

// OK sends a 200 response. Arrays/slices are wrapped in {data: [...]}.
func OK(c *gin.Context, data interface{}) {
	if data != nil {
		v := reflect.ValueOf(data)
		if v.Kind() == reflect.Slice {
			c.JSON(http.StatusOK, gin.H{"data": data})
			return
		}
	}
	c.JSON(http.StatusOK, data)
}

// Paged sends a paginated response.
func Paged(c *gin.Context, data interface{}, pagination Pagination) {
	c.JSON(http.StatusOK, pagedResponse{
		Data:       data,
		Pagination: pagination,
	})
}

// Created sends a 201 response.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// Fail aborts with the standard error envelope. reason is a stable machine
// readable code and may be empty.
func Fail(c *gin.Context, status int, reason, message string) {
	body := gin.H{"ok": 0, "code": status, "message": message}
	if reason != "" {
		body["error"] = reason
	}
	c.AbortWithStatusJSON(status, body)
}

// BadRequest sends a 400 error response.
func BadRequest(c *gin.Context, message string) {
	Fail(c, http.StatusBadRequest, "", message)
}

// Unauthorized sends a 401 error response.
func Unauthorized(c *gin.Context, reason string) {
	Fail(c, http.StatusUnauthorized, reason, "Please sign in to continue")
}

// Forbidden sends a 403 error response.
func Forbidden(c *gin.Context, reason string) {
	Fail(c, http.StatusForbidden, reason, "You do not have access to this resource")
}

// NotFound sends a 404 error response.
func NotFound(c *gin.Context) {
	Fail(c, http.StatusNotFound, "", "Not Found")
}

// MethodNotAllowed sends a 405 error response.
func MethodNotAllowed(c *gin.Context) {
	Fail(c, http.StatusMethodNotAllowed, "invalid_method", "Method not allowed")
}

// TooManyRequests sends a 429 carrying the lockout left.
func TooManyRequests(c *gin.Context, message string, retryAfterSeconds int64) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"ok":                   0,
		"code":                 http.StatusTooManyRequests,
		"error":                "rate_limited",
		"message":              message,
		"remaining_block_time": retryAfterSeconds,
	})
}

// InternalError sends a 500 error response. The cause is never echoed.
func InternalError(c *gin.Context) {
	Fail(c, http.StatusInternalServerError, "", "Internal server error")
}

// UnprocessableEntity sends a 422 error response.
func UnprocessableEntity(c *gin.Context, message string) {
	Fail(c, http.StatusUnprocessableEntity, "", message)
}

// Conflict sends a 409 error response.
func Conflict(c *gin.Context, message string) {
	Fail(c, http.StatusConflict, "", message)
}

// RedirectWithReason aborts with a 302 to path carrying ?error=reason.
func RedirectWithReason(c *gin.Context, path, reason string) {
	RedirectWith(c, path, "error", reason)
}

// RedirectWith aborts with a 302 to path carrying one query parameter.
func RedirectWith(c *gin.Context, path, key, value string) {
	target := path
	if value != "" {
		target += "?" + url.Values{key: {value}}.Encode()
	}
	c.Redirect(http.StatusFound, target)
	c.Abort()
}
