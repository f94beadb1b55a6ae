package pipeline

import (
	"context"
	"errors"
	"io"
)

// Iterator yields pipeline elements one at a time. Next returns io.EOF
// once the sequence is exhausted. Close releases any resources held by
// the iterator and its upstream; it is safe to call more than once.
type Iterator interface {
	Next(ctx context.Context) (any, error)
	Close() error
}

// sliceIterator replays a fixed slice of elements.
type sliceIterator struct {
	items []any
	pos   int
}

// FromSlice returns an iterator over items.
func FromSlice(items []any) Iterator {
	return &sliceIterator{items: items}
}

func (it *sliceIterator) Next(ctx context.Context) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if it.pos >= len(it.items) {
		return nil, io.EOF
	}
	v := it.items[it.pos]
	it.pos++
	return v, nil
}

func (it *sliceIterator) Close() error { return nil }

// Collect drains it into a slice and closes it.
func Collect(ctx context.Context, it Iterator) ([]any, error) {
	var out []any
	err := ForEach(ctx, it, func(v any) error {
		out = append(out, v)
		return nil
	})
	return out, err
}

// ForEach calls fn for every element of it, then closes it.
func ForEach(ctx context.Context, it Iterator, fn func(any) error) (err error) {
	defer func() {
		if cerr := it.Close(); err == nil {
			err = cerr
		}
	}()
	for {
		v, err := it.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(v); err != nil {
			return err
		}
	}
}

// takeIterator stops after n elements.
type takeIterator struct {
	src  Iterator
	left int
}

// Take limits it to at most n elements.
func Take(it Iterator, n int) Iterator {
	return &takeIterator{src: it, left: n}
}

func (it *takeIterator) Next(ctx context.Context) (any, error) {
	if it.left <= 0 {
		return nil, io.EOF
	}
	v, err := it.src.Next(ctx)
	if err != nil {
		return nil, err
	}
	it.left--
	return v, nil
}

func (it *takeIterator) Close() error { return it.src.Close() }

// flatIterator emits the members of each upstream element in turn.
type flatIterator struct {
	src     Iterator
	expand  func(any) ([]any, error)
	pending []any
}

func (it *flatIterator) Next(ctx context.Context) (any, error) {
	for len(it.pending) == 0 {
		v, err := it.src.Next(ctx)
		if err != nil {
			return nil, err
		}
		if it.pending, err = it.expand(v); err != nil {
			return nil, err
		}
	}
	v := it.pending[0]
	it.pending = it.pending[1:]
	return v, nil
}

func (it *flatIterator) Close() error { return it.src.Close() }
