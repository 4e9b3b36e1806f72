//go:build linux

// Package proctitle names the running process so the portal is easy to
// spot in ps and top.
package proctitle

import (
	"errors"
	"os"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"
)

// the kernel keeps 15 bytes of comm plus the terminator
const commMax = 15

var errEmptyTitle = errors.New("empty process title")

// Set renames the process via PR_SET_NAME and rewrites os.Args[0].
func Set(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return errEmptyTitle
	}
	if len(os.Args) > 0 {
		os.Args[0] = title
	}

	comm := make([]byte, commMax+1)
	copy(comm, title)
	return unix.Prctl(unix.PR_SET_NAME, uintptr(unsafe.Pointer(&comm[0])), 0, 0, 0)
}
