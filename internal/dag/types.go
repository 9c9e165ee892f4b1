package dag

import (
	"context"
	"sync/atomic"

	"github.com/vk/gridbuild/internal/pathlike"
	"github.com/vk/gridbuild/internal/task"
)

// Lookup resolves a reference made by a task to the referenced task.
type Lookup func(ctx context.Context, from *task.Task, ref pathlike.TaskReference) (*task.Task, error)

// State is the execution state of a node.
type State int32

const (
	Pending State = iota
	Running
	Done
	Cached
	Failed
	Skipped
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Done:
		return "done"
	case Cached:
		return "cached"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	}
	return "unknown"
}

// Node is one task in the graph. ID is its index in Graph.Nodes.
type Node struct {
	ID         int
	Task       *task.Task
	Deps       []*Node
	Dependents []*Node

	// Set by the executor before the node is marked finished.
	Digest     string
	OutputPath string
	Err        error

	state    atomic.Int32
	depCount atomic.Int32
	refs     map[string]*Node
}

// State returns the current execution state.
func (n *Node) State() State { return State(n.state.Load()) }

func (n *Node) claim(to State) bool {
	return n.state.CompareAndSwap(int32(Pending), int32(to))
}

// dependency returns the node a reference of this node resolved to.
func (n *Node) dependency(ref pathlike.TaskReference) (*Node, bool) {
	dep, ok := n.refs[refKey(ref)]
	return dep, ok
}

func refKey(ref pathlike.TaskReference) string {
	return ref.String()
}

// Graph is an arena of nodes. Nodes are stored in topological order:
// every node comes after all of its dependencies.
type Graph struct {
	Nodes []*Node
	Roots []*Node

	byKey map[task.Key]*Node
}

// Node returns the node of the task with key k.
func (g *Graph) Node(k task.Key) (*Node, bool) {
	n, ok := g.byKey[k]
	return n, ok
}

// Tasks returns the tasks of the graph in topological order.
func (g *Graph) Tasks() []*task.Task {
	tasks := make([]*task.Task, len(g.Nodes))
	for i, n := range g.Nodes {
		tasks[i] = n.Task
	}
	return tasks
}
