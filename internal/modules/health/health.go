// Package health reports backend reachability and lets administrators read
// the process log files.
package health

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/thejerf/abtime"

	"github.com/yetuga/portal/internal/pkg/response"
	"github.com/yetuga/portal/internal/pkg/role"
)

const pingTimeout = 2 * time.Second

// Check is one backend pinged by /healthz.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

type logItem struct {
	Size     string `json:"size"`
	Filename string `json:"filename"`
	Created  int64  `json:"created"`
}

type Handler struct {
	checks []Check
	logDir string
	clock  abtime.AbstractTime
}

func NewHandler(logDir string, clock abtime.AbstractTime, checks ...Check) *Handler {
	if clock == nil {
		clock = abtime.NewRealTime()
	}
	return &Handler{checks: checks, logDir: logDir, clock: clock}
}

// RegisterRoutes mounts /healthz and the admin log endpoints behind guard.
func (h *Handler) RegisterRoutes(r gin.IRouter, guard func(role.Requirement) gin.HandlerFunc) {
	r.GET("/healthz", h.healthz)
	logs := r.Group("/admin/logs", guard(role.Exactly(role.Admin)))
	logs.GET("", h.listLogs)
	logs.GET("/:filename", h.readLog)
}

func (h *Handler) healthz(c *gin.Context) {
	status := "ok"
	code := http.StatusOK
	backends := make(gin.H, len(h.checks))
	for _, check := range h.checks {
		ctx, cancel := context.WithTimeout(c.Request.Context(), pingTimeout)
		err := check.Ping(ctx)
		cancel()
		backends[check.Name] = err == nil
		if err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	c.JSON(code, gin.H{
		"status":      status,
		"backends":    backends,
		"server_time": h.clock.Now().UnixMilli(),
	})
}

func (h *Handler) listLogs(c *gin.Context) {
	entries, err := os.ReadDir(h.logDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			response.OK(c, []logItem{})
			return
		}
		response.InternalError(c)
		return
	}

	items := make([]logItem, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".log") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		items = append(items, logItem{
			Size:     formatByteSize(info.Size()),
			Filename: entry.Name(),
			Created:  info.ModTime().UnixMilli(),
		})
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Created > items[j].Created
	})
	response.OK(c, items)
}

func (h *Handler) readLog(c *gin.Context) {
	filename := filepath.Base(strings.TrimSpace(c.Param("filename")))
	if filename == "." || filename == string(filepath.Separator) || !strings.HasSuffix(filename, ".log") {
		response.UnprocessableEntity(c, "filename must name a .log file")
		return
	}
	data, err := os.ReadFile(filepath.Join(h.logDir, filename))
	if err != nil {
		response.NotFound(c)
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", data)
}

func formatByteSize(size int64) string {
	switch {
	case size >= 1<<20:
		return fmt.Sprintf("%.2f MB", float64(size)/(1<<20))
	case size >= 1<<10:
		return fmt.Sprintf("%.2f KB", float64(size)/(1<<10))
	default:
		return fmt.Sprintf("%d B", size)
	}
}
