package pipeline

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/user/shardbench/pkg/schema"
)

// Elements returns a source replaying items on every Open.
func Elements(items ...any) Source {
	return SourceFunc(func(ctx context.Context) (Iterator, error) {
		return FromSlice(items), nil
	})
}

// Generate returns a source producing n elements by calling fn with
// each index in order.
func Generate(n int, fn func(i int) (any, error)) Source {
	return SourceFunc(func(ctx context.Context) (Iterator, error) {
		return &generator{n: n, fn: fn}, nil
	})
}

type generator struct {
	n, i int
	fn   func(int) (any, error)
}

func (g *generator) Next(ctx context.Context) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if g.i >= g.n {
		return nil, io.EOF
	}
	v, err := g.fn(g.i)
	if err != nil {
		return nil, err
	}
	g.i++
	return v, nil
}

func (g *generator) Close() error { return nil }

// batchIterator groups consecutive elements into schema.Batch values.
type batchIterator struct {
	src  Iterator
	size int
	done bool
}

// Batch groups consecutive elements of it into batches of size. The
// final batch may be smaller.
func Batch(it Iterator, size int) Iterator {
	if size < 1 {
		size = 1
	}
	return &batchIterator{src: it, size: size}
}

func (b *batchIterator) Next(ctx context.Context) (any, error) {
	if b.done {
		return nil, io.EOF
	}
	batch := make(schema.Batch, 0, b.size)
	for len(batch) < b.size {
		v, err := b.src.Next(ctx)
		if errors.Is(err, io.EOF) {
			b.done = true
			break
		}
		if err != nil {
			return nil, err
		}
		batch = append(batch, v)
	}
	if len(batch) == 0 {
		return nil, io.EOF
	}
	return batch, nil
}

func (b *batchIterator) Close() error { return b.src.Close() }

type prefetched struct {
	v   any
	err error
}

// prefetchIterator reads ahead of its consumer on a background goroutine.
type prefetchIterator struct {
	src    Iterator
	ch     chan prefetched
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
	err    error
}

// Prefetch reads up to buffer elements ahead of the consumer. Close
// stops the background reader and waits for it before closing it.
func Prefetch(ctx context.Context, it Iterator, buffer int) Iterator {
	if buffer < 1 {
		buffer = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	p := &prefetchIterator{src: it, ch: make(chan prefetched, buffer), cancel: cancel}
	p.wg.Add(1)
	go p.run(ctx)
	return p
}

func (p *prefetchIterator) run(ctx context.Context) {
	defer p.wg.Done()
	defer close(p.ch)
	for {
		v, err := p.src.Next(ctx)
		select {
		case p.ch <- prefetched{v: v, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

func (p *prefetchIterator) Next(ctx context.Context) (any, error) {
	select {
	case r, ok := <-p.ch:
		if !ok {
			return nil, io.EOF
		}
		return r.v, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *prefetchIterator) Close() error {
	p.once.Do(func() {
		p.cancel()
		p.wg.Wait()
		p.err = p.src.Close()
	})
	return p.err
}

// Cache materializes a sequence in memory the first time it is fully
// traversed and replays it on later passes.
type Cache struct {
	src    Iterator
	items  []any
	filled bool
}

// NewCache wraps it. The cache owns it; call Close when done.
func NewCache(it Iterator) *Cache {
	return &Cache{src: it}
}

// Iterator returns an iterator for one pass over the cached sequence.
// Passes must not overlap. A pass started before the cache is filled
// replays what is cached and then continues reading the source.
func (c *Cache) Iterator() Iterator {
	if c.filled {
		return FromSlice(c.items)
	}
	return &cacheFiller{c: c}
}

// Len returns the number of cached elements.
func (c *Cache) Len() int {
	return len(c.items)
}

type cacheFiller struct {
	c   *Cache
	pos int
}

func (f *cacheFiller) Next(ctx context.Context) (any, error) {
	if f.pos < len(f.c.items) {
		v := f.c.items[f.pos]
		f.pos++
		return v, nil
	}
	v, err := f.c.src.Next(ctx)
	if errors.Is(err, io.EOF) {
		f.c.filled = true
		return nil, io.EOF
	}
	if err != nil {
		return nil, err
	}
	f.c.items = append(f.c.items, v)
	f.pos++
	return v, nil
}

func (f *cacheFiller) Close() error { return nil }

// Close releases the wrapped iterator.
func (c *Cache) Close() error {
	return c.src.Close()
}
