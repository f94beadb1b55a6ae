//go:build !linux

package dropcache

import (
	"context"

	"github.com/user/shardbench/pkg/ports"
)

// Drop always fails outside Linux.
func (d *Dropper) Drop(ctx context.Context, opts ports.DropOptions) error {
	return ErrUnsupported
}
