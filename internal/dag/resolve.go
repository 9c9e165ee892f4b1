package dag

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/vk/gridbuild/internal/ctxlog"
	"github.com/vk/gridbuild/internal/task"
)

// CycleError reports a requirement loop. Detection is the task the walk
// re-entered and Cycle the tasks between its two visits.
type CycleError struct {
	Message   string
	Detection *task.Task
	Cycle     []*task.Task
}

func (e *CycleError) Error() string { return e.Message }

func newCycleError(detection *task.Task, cycle []*task.Task) *CycleError {
	names := []string{detection.Name}
	for _, t := range cycle {
		names = append(names, t.Name)
	}
	names = append(names, detection.Name)
	return &CycleError{
		Message:   strings.Join(names, " requires "),
		Detection: detection,
		Cycle:     cycle,
	}
}

type color int

const (
	white color = iota
	gray
	black
)

type resolver struct {
	lookup Lookup
	colors map[task.Key]color
	stack  []*task.Task
	graph  *Graph
}

// Resolve walks the requirements of roots depth first, in order, and
// returns the graph of every task reached. Each resolved requirement is
// recorded on the requiring task.
func Resolve(ctx context.Context, roots []*task.Task, lookup Lookup) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	r := &resolver{
		lookup: lookup,
		colors: make(map[task.Key]color),
		graph:  &Graph{byKey: make(map[task.Key]*Node)},
	}
	for _, root := range roots {
		if r.colors[root.Key()] == white {
			if err := r.visit(ctx, root); err != nil {
				return nil, err
			}
		}
		n := r.graph.byKey[root.Key()]
		if !slices.Contains(r.graph.Roots, n) {
			r.graph.Roots = append(r.graph.Roots, n)
		}
	}
	logger.Debug("Resolved task graph.", "roots", len(roots), "tasks", len(r.graph.Nodes))
	return r.graph, nil
}

func (r *resolver) visit(ctx context.Context, t *task.Task) error {
	r.colors[t.Key()] = gray
	r.stack = append(r.stack, t)

	type edge struct {
		ref string
		dep *task.Task
	}
	var edges []edge
	for _, ref := range t.References() {
		dep, err := r.lookup(ctx, t, ref)
		if err != nil {
			return fmt.Errorf("%s: task %s requires %s: %w", ref.Location, t.Name, ref, err)
		}
		t.AddResolved(dep.Key())
		edges = append(edges, edge{ref: refKey(ref), dep: dep})

		switch r.colors[dep.Key()] {
		case gray:
			i := slices.IndexFunc(r.stack, func(s *task.Task) bool { return s.Key() == dep.Key() })
			return newCycleError(dep, slices.Clone(r.stack[i+1:]))
		case white:
			if err := r.visit(ctx, dep); err != nil {
				return err
			}
		}
	}

	n := &Node{ID: len(r.graph.Nodes), Task: t, refs: make(map[string]*Node, len(edges))}
	for _, e := range edges {
		dep := r.graph.byKey[e.dep.Key()]
		n.refs[e.ref] = dep
		if !slices.Contains(n.Deps, dep) {
			n.Deps = append(n.Deps, dep)
			dep.Dependents = append(dep.Dependents, n)
		}
	}
	r.graph.Nodes = append(r.graph.Nodes, n)
	r.graph.byKey[t.Key()] = n

	r.stack = r.stack[:len(r.stack)-1]
	r.colors[t.Key()] = black
	return nil
}
