// Package dropcache empties the kernel page cache through the procfs
// control file.
package dropcache

import (
	"errors"

	"github.com/user/shardbench/pkg/ports"
)

// DefaultPath is the kernel control file for dropping caches.
const DefaultPath = "/proc/sys/vm/drop_caches"

// ErrUnsupported is returned on platforms without a drop_caches interface.
var ErrUnsupported = errors.New("dropcache: not supported on this platform")

// Dropper implements ports.CacheDropper. Writing the control file
// requires root privileges.
type Dropper struct {
	path string
}

// New creates a Dropper writing to path, or DefaultPath if empty.
func New(path string) *Dropper {
	if path == "" {
		path = DefaultPath
	}
	return &Dropper{path: path}
}

// code returns the value written to the control file: 1 frees the page
// cache, 2 dentries and inodes, 3 both.
func code(opts ports.DropOptions) string {
	switch {
	case opts.PageCache && opts.DentriesAndInodes:
		return "3"
	case opts.PageCache:
		return "1"
	case opts.DentriesAndInodes:
		return "2"
	default:
		return ""
	}
}

var _ ports.CacheDropper = (*Dropper)(nil)
