package dag

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/vk/gridbuild/internal/action"
	"github.com/vk/gridbuild/internal/buildfile"
	"github.com/vk/gridbuild/internal/cache"
	"github.com/vk/gridbuild/internal/config"
	"github.com/vk/gridbuild/internal/ctxlog"
	"github.com/vk/gridbuild/internal/fsutil"
	"github.com/vk/gridbuild/internal/outputs"
	"github.com/vk/gridbuild/internal/process"
	"github.com/vk/gridbuild/internal/workspace"
)

// ErrSkipped is the error of a node that did not run because a requirement failed.
var ErrSkipped = errors.New("skipped due to upstream failure")

// BuildFiles gives access to loaded build files by path.
type BuildFiles interface {
	Get(path string) (*buildfile.BuildFile, bool)
}

// Options configures an Executor. Zero values select the defaults.
type Options struct {
	Workers   int
	DryRun    bool
	Force     bool
	Allocator outputs.Allocator
	Cache     *cache.Store
	Launcher  process.Launcher
	Finder    fsutil.Finder
	Files     BuildFiles
	Stdout    io.Writer
	HashFunc  action.HashFunc
	// Version is mixed into every build file hash.
	Version string
}

// Executor runs a resolved graph.
type Executor struct {
	Graph     *Graph
	Workspace *workspace.Workspace

	opts      Options
	wg        sync.WaitGroup
	pathLocks sync.Map // Key: output path, Value: *sync.Mutex
}

// NewExecutor prepares g for execution in ws.
func NewExecutor(g *Graph, ws *workspace.Workspace, opts Options) *Executor {
	if opts.Workers < 1 {
		opts.Workers = ws.Config.Workers
	}
	if opts.Allocator == nil {
		opts.Allocator = outputs.New()
	}
	if opts.HashFunc == nil {
		opts.HashFunc = action.SHA256
	}
	if opts.Version == "" {
		opts.Version = config.EngineVersion
	}
	return &Executor{Graph: g, Workspace: ws, opts: opts}
}

// Run executes the graph and returns an error if any task failed. A failed
// task skips its dependents only. Cancelling ctx stops new tasks from
// starting.
func (e *Executor) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	readyChan := make(chan *Node, len(e.Graph.Nodes))
	for _, node := range e.Graph.Nodes {
		node.state.Store(int32(Pending))
		node.depCount.Store(int32(len(node.Deps)))
		node.Err = nil
	}

	logger.Debug("Initializing executor, finding root nodes...")
	rootNodeCount := 0
	for _, node := range e.Graph.Nodes {
		if len(node.Deps) == 0 {
			readyChan <- node
			rootNodeCount++
		}
	}
	logger.Debug("Found all root nodes.", "count", rootNodeCount)

	e.wg.Add(len(e.Graph.Nodes))
	logger.Debug("Starting worker pool.", "workers", e.opts.Workers)
	for i := 0; i < e.opts.Workers; i++ {
		go e.worker(ctx, readyChan, i)
	}
	e.wg.Wait()
	close(readyChan)

	if e.opts.Cache != nil && !e.opts.DryRun {
		if err := e.opts.Cache.Save(); err != nil {
			logger.Error("Failed to save the build cache.", "error", err)
		}
	}

	var failedNodes []string
	var rootCauseError error
	for _, node := range e.Graph.Nodes {
		if node.State() != Failed {
			continue
		}
		failedNodes = append(failedNodes, node.Task.Name)
		if rootCauseError == nil {
			rootCauseError = node.Err
		}
	}
	if rootCauseError != nil {
		return fmt.Errorf("execution failed for %s: %w", strings.Join(failedNodes, ", "), rootCauseError)
	}
	logger.Info("All tasks completed.", "tasks", len(e.Graph.Nodes))
	return nil
}

// skipDependents marks every pending node downstream of node as skipped.
func (e *Executor) skipDependents(ctx context.Context, node *Node) {
	logger := ctxlog.FromContext(ctx)
	for _, dependent := range node.Dependents {
		if !dependent.claim(Skipped) {
			continue
		}
		logger.Warn("Skipping dependent task due to upstream failure.", "task", dependent.Task.Name, "dependency", node.Task.Name)
		dependent.Err = fmt.Errorf("%w of %s", ErrSkipped, node.Task.Name)
		e.wg.Done()
		e.skipDependents(ctx, dependent)
	}
}

// worker is the processing loop of a single concurrent worker.
func (e *Executor) worker(ctx context.Context, readyChan chan *Node, workerID int) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Worker started.", "workerID", workerID)

	for node := range readyChan {
		if !node.claim(Running) {
			continue
		}
		workerLogger := logger.With("workerID", workerID, "task", node.Task.Name)

		if ctx.Err() != nil {
			workerLogger.Warn("Context canceled, not starting task.")
			e.fail(ctx, node, ctx.Err())
			continue
		}

		state, err := e.runNode(ctx, node)
		if err != nil {
			workerLogger.Error("Task failed.", "error", err)
			e.fail(ctx, node, err)
			continue
		}
		node.state.Store(int32(state))

		for _, dependent := range node.Dependents {
			if dependent.depCount.Add(-1) == 0 {
				workerLogger.Debug("Unlocking dependent task.", "dependent", dependent.Task.Name)
				readyChan <- dependent
			}
		}
		e.wg.Done()
	}
	logger.Debug("Worker finished.", "workerID", workerID)
}

func (e *Executor) fail(ctx context.Context, node *Node, err error) {
	node.Err = err
	node.state.Store(int32(Failed))
	e.skipDependents(ctx, node)
	e.wg.Done()
}

// lockPath serializes tasks that write to the same output directory.
func (e *Executor) lockPath(path string) func() {
	v, _ := e.pathLocks.LoadOrStore(path, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
