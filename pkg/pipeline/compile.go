package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/user/shardbench/pkg/ports"
	"github.com/user/shardbench/pkg/schema"
)

// FusedNameSeparator joins the member names of a fused node.
const FusedNameSeparator = " > "

// chunkFactor bounds how many elements per worker are in flight in an
// ordered parallel map.
const chunkFactor = 4

// Options controls compilation.
type Options struct {
	// Fuse merges runs of adjacent Transform steps into one node.
	Fuse bool
	// Parallelism is the number of workers used for element-wise nodes.
	// Values below 2 run sequentially.
	Parallelism int
	// Logger receives debug output. Nil disables logging.
	Logger ports.Logger
}

// Node is one executable stage of a compiled pipeline. A fused node
// holds several Transform steps applied in order.
type Node struct {
	Name   string
	Kind   Kind
	Input  schema.Schema
	Output schema.Schema
	steps  []Step
}

// Members returns the names of the steps making up the node.
func (n Node) Members() []string {
	return Pipeline(n.steps).Names()
}

// Compiled is an executable form of a validated pipeline.
type Compiled struct {
	source      Step
	nodes       []Node
	parallelism int
}

// Compile validates p and groups its steps into executable nodes.
// Validation always runs on the declared step list, before fusion.
func Compile(p Pipeline, opts Options) (*Compiled, error) {
	if err := Validate(p); err != nil {
		return nil, err
	}

	c := &Compiled{source: p[0], parallelism: opts.Parallelism}
	rest := p[1:]
	for i := 0; i < len(rest); {
		s := rest[i]
		if !opts.Fuse || s.Kind != KindTransform {
			c.nodes = append(c.nodes, singleNode(s))
			i++
			continue
		}
		j := i
		for j < len(rest) && rest[j].Kind == KindTransform {
			j++
		}
		c.nodes = append(c.nodes, fuse(rest[i:j]))
		i = j
	}

	if opts.Logger != nil {
		opts.Logger.Debug("Compiled %d steps into %d nodes", len(p), len(c.nodes)+1)
	}
	return c, nil
}

func singleNode(s Step) Node {
	return Node{Name: s.Name, Kind: s.Kind, Input: *s.Input, Output: s.Output, steps: []Step{s}}
}

func fuse(run []Step) Node {
	names := make([]string, len(run))
	for i, s := range run {
		names[i] = s.Name
	}
	return Node{
		Name:   strings.Join(names, FusedNameSeparator),
		Kind:   KindTransform,
		Input:  *run[0].Input,
		Output: run[len(run)-1].Output,
		steps:  append([]Step(nil), run...),
	}
}

// Nodes returns the compiled nodes after the source.
func (c *Compiled) Nodes() []Node {
	return append([]Node(nil), c.nodes...)
}

// SourceName returns the name of the source step.
func (c *Compiled) SourceName() string {
	return c.source.Name
}

// Output returns the schema of the compiled pipeline's elements.
func (c *Compiled) Output() schema.Schema {
	if len(c.nodes) == 0 {
		return c.source.Output
	}
	return c.nodes[len(c.nodes)-1].Output
}

// Open starts the source and chains every node onto it.
func (c *Compiled) Open(ctx context.Context) (Iterator, error) {
	it, err := c.source.source.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open source %q: %w", c.source.Name, err)
	}
	for _, n := range c.nodes {
		it = n.wrap(it, c.parallelism)
	}
	return it, nil
}

// wrap applies the node to the upstream iterator according to its kind.
func (n Node) wrap(up Iterator, parallelism int) Iterator {
	switch n.Kind {
	case KindTransform:
		steps := n.steps
		return newOrderedMap(up, parallelism, func(v any) ([]any, error) {
			for _, s := range steps {
				out, err := s.transform.Apply(v)
				if err != nil {
					return nil, fmt.Errorf("step %q: %w", s.Name, err)
				}
				v = out
			}
			return []any{v}, nil
		})
	case KindTransformUnbatch:
		s := n.steps[0]
		return newOrderedMap(up, parallelism, func(v any) ([]any, error) {
			out, err := s.expand.Expand(v)
			if err != nil {
				return nil, fmt.Errorf("step %q: %w", s.Name, err)
			}
			return out, nil
		})
	case KindDatasetTransform:
		return n.steps[0].sequence.Transform(up)
	case KindUnbatch:
		return &flatIterator{src: up, expand: schema.Unbatch}
	default:
		panic(fmt.Sprintf("pipeline: node %q has unexpected kind %s", n.Name, n.Kind))
	}
}

// orderedMap applies fn to upstream elements with bounded parallelism
// and emits the results in upstream order. Elements are processed in
// chunks; a chunk is emitted only once all of it is done.
type orderedMap struct {
	src     Iterator
	fn      func(any) ([]any, error)
	workers int
	out     []any
	done    bool
}

func newOrderedMap(src Iterator, workers int, fn func(any) ([]any, error)) *orderedMap {
	if workers < 1 {
		workers = 1
	}
	return &orderedMap{src: src, fn: fn, workers: workers}
}

func (m *orderedMap) Next(ctx context.Context) (any, error) {
	for len(m.out) == 0 {
		if m.done {
			return nil, io.EOF
		}
		if err := m.fill(ctx); err != nil {
			return nil, err
		}
	}
	v := m.out[0]
	m.out = m.out[1:]
	return v, nil
}

func (m *orderedMap) fill(ctx context.Context) error {
	var chunk []any
	for len(chunk) < m.workers*chunkFactor {
		v, err := m.src.Next(ctx)
		if errors.Is(err, io.EOF) {
			m.done = true
			break
		}
		if err != nil {
			return err
		}
		chunk = append(chunk, v)
	}

	results := make([][]any, len(chunk))
	if m.workers == 1 {
		for i, v := range chunk {
			out, err := m.fn(v)
			if err != nil {
				return err
			}
			results[i] = out
		}
	} else {
		g, _ := errgroup.WithContext(ctx)
		g.SetLimit(m.workers)
		for i, v := range chunk {
			g.Go(func() error {
				out, err := m.fn(v)
				if err != nil {
					return err
				}
				results[i] = out
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}

	for _, r := range results {
		m.out = append(m.out, r...)
	}
	return nil
}

func (m *orderedMap) Close() error { return m.src.Close() }
