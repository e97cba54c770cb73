package workflow

import (
	"context"
	"fmt"

	"github.com/mingkeli/devagent/pkg/resilience"
	"github.com/mingkeli/devagent/pkg/utils"
)

// End is the terminal marker every path must reach.
const End = "__end__"

// NodeFunc is one graph node: it receives the accumulated state and returns
// a partial delta. Nodes never mutate the state directly.
type NodeFunc func(ctx context.Context, s *State) (*Delta, error)

// RouterFunc picks the next node name from the merged state.
type RouterFunc func(s *State) string

// Builder assembles a graph before compilation.
type Builder struct {
	nodes      map[string]NodeFunc
	edges      map[string]string
	routers    map[string]RouterFunc
	routerDest map[string][]string
	entryPoint string
	err        error
}

// NewBuilder creates an empty graph builder.
func NewBuilder() *Builder {
	return &Builder{
		nodes:      make(map[string]NodeFunc),
		edges:      make(map[string]string),
		routers:    make(map[string]RouterFunc),
		routerDest: make(map[string][]string),
	}
}

// AddNode registers a named node. Duplicate names are a compile error.
func (b *Builder) AddNode(name string, fn NodeFunc) *Builder {
	if _, exists := b.nodes[name]; exists {
		b.fail(fmt.Errorf("duplicate node %q", name))
		return b
	}
	if name == End {
		b.fail(fmt.Errorf("node name %q is reserved", End))
		return b
	}
	b.nodes[name] = fn
	return b
}

// AddEdge adds an unconditional edge.
func (b *Builder) AddEdge(from, to string) *Builder {
	b.edges[from] = to
	return b
}

// AddConditionalEdges attaches a router to a node. targets declares every
// name the router may return, so the compiler can validate them and reject
// cycles.
func (b *Builder) AddConditionalEdges(from string, router RouterFunc, targets []string) *Builder {
	b.routers[from] = router
	b.routerDest[from] = targets
	return b
}

// SetEntryPoint declares where execution starts.
func (b *Builder) SetEntryPoint(name string) *Builder {
	b.entryPoint = name
	return b
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Compile validates the graph and yields an immutable executor. The graph
// must be a DAG modulo the terminal sink; cycles are rejected here, not at
// run time.
func (b *Builder) Compile() (*Graph, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.entryPoint == "" {
		return nil, fmt.Errorf("graph has no entry point")
	}
	if _, ok := b.nodes[b.entryPoint]; !ok {
		return nil, fmt.Errorf("entry point %q is not a node", b.entryPoint)
	}

	// Every edge target must exist.
	adjacency := make(map[string][]string)
	addTarget := func(from, to string) error {
		if to == End {
			return nil
		}
		if _, ok := b.nodes[to]; !ok {
			return fmt.Errorf("edge %s -> %s targets unknown node", from, to)
		}
		adjacency[from] = append(adjacency[from], to)
		return nil
	}
	for from, to := range b.edges {
		if _, ok := b.nodes[from]; !ok {
			return nil, fmt.Errorf("edge from unknown node %q", from)
		}
		if err := addTarget(from, to); err != nil {
			return nil, err
		}
	}
	for from, targets := range b.routerDest {
		if _, ok := b.nodes[from]; !ok {
			return nil, fmt.Errorf("conditional edges from unknown node %q", from)
		}
		for _, to := range targets {
			if err := addTarget(from, to); err != nil {
				return nil, err
			}
		}
	}

	if cycle := findCycle(adjacency); cycle != "" {
		return nil, fmt.Errorf("graph contains a cycle through %q", cycle)
	}

	return &Graph{
		nodes:      b.nodes,
		edges:      b.edges,
		routers:    b.routers,
		entryPoint: b.entryPoint,
	}, nil
}

// findCycle runs a coloring DFS over the adjacency map; End is excluded by
// construction. Returns a node on a cycle, or "".
func findCycle(adjacency map[string][]string) string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	colors := make(map[string]int)

	var visit func(node string) string
	visit = func(node string) string {
		colors[node] = gray
		for _, next := range adjacency[node] {
			switch colors[next] {
			case gray:
				return next
			case white:
				if hit := visit(next); hit != "" {
					return hit
				}
			}
		}
		colors[node] = black
		return ""
	}

	for node := range adjacency {
		if colors[node] == white {
			if hit := visit(node); hit != "" {
				return hit
			}
		}
	}
	return ""
}

// Graph is the compiled, immutable executor.
type Graph struct {
	nodes      map[string]NodeFunc
	edges      map[string]string
	routers    map[string]RouterFunc
	entryPoint string
}

// Run executes nodes strictly sequentially from the entry point until End.
// A node error is wrapped into an ErrorContext and handed to the resilience
// manager; its fallback response terminates the turn.
func (g *Graph) Run(ctx context.Context, s *State, res *resilience.Manager, logger *utils.Logger) error {
	current := g.entryPoint
	for current != End {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn, ok := g.nodes[current]
		if !ok {
			return fmt.Errorf("executor reached unknown node %q", current)
		}

		delta, err := runNode(ctx, fn, s)
		if err != nil {
			if logger != nil {
				logger.Errorf("node %s failed: %v", current, err)
			}
			ectx := resilience.NewErrorContext(resilience.ErrUnknown, err, current, s.Exec.UserInput, "")
			result := &resilience.FallbackResult{}
			if res != nil {
				result = res.HandleError(err, ectx)
			}
			s.Err = err.Error()
			if result.Response != "" {
				s.Response = result.Response
			} else {
				s.Response = fmt.Sprintf("❌ 处理失败: %v", err)
			}
			return nil
		}
		merge(s, delta)

		if router, ok := g.routers[current]; ok {
			current = router(s)
			continue
		}
		if next, ok := g.edges[current]; ok {
			current = next
			continue
		}
		current = End
	}
	return nil
}

// runNode isolates node panics so a misbehaving node degrades into a normal
// error instead of killing the turn's goroutine.
func runNode(ctx context.Context, fn NodeFunc, s *State) (delta *Delta, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("node panicked: %v", r)
		}
	}()
	return fn(ctx, s)
}
