//go:build !linux

package proctitle

import (
	"errors"
	"os"
	"strings"
)

var errEmptyTitle = errors.New("empty process title")

// Set only rewrites os.Args[0]; other platforms have no portable rename.
func Set(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return errEmptyTitle
	}
	if len(os.Args) > 0 {
		os.Args[0] = title
	}
	return nil
}
