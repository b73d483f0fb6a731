// Package remote holds the listing types shared by every store backend.
package remote

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrFolderNotFound is the only recoverable listing error: the caller may
// create the folder. Every other backend error is a transport failure.
var ErrFolderNotFound = errors.New("folder not found")

// Entry is one raw listing record of a remote folder. Document names carry
// no file extension.
type Entry struct {
	IsFile bool
	Name   string
}

// DocumentName is the remote name a local file is stored under.
func DocumentName(localPath string) string {
	base := filepath.Base(localPath)
	if strings.EqualFold(filepath.Ext(base), ".pdf") {
		return base[:len(base)-len(".pdf")]
	}
	return base
}
