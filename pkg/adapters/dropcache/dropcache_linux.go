//go:build linux

package dropcache

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/user/shardbench/pkg/ports"
)

// Drop flushes dirty pages to disk and then drops the selected caches.
func (d *Dropper) Drop(ctx context.Context, opts ports.DropOptions) error {
	c := code(opts)
	if c == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	unix.Sync()
	if err := os.WriteFile(d.path, []byte(c), 0644); err != nil {
		return fmt.Errorf("drop caches: %w", err)
	}
	return nil
}
