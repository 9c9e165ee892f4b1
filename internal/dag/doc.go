// Package dag is the execution layer of the build. It takes the tasks named
// on the command line, follows their requirements through the build file
// cache into a directed acyclic graph, and executes the graph concurrently
// in dependency order.
//
// Resolution is a depth-first walk from each root in order. A requirement
// that leads back to a task still on the walk stack is reported as a
// *CycleError naming the tasks in the loop.
//
// Execution follows a worker pool model. Tasks without pending
// requirements are queued; a finished task unlocks its dependents. When a
// task fails, everything downstream of it is skipped while unrelated tasks
// keep running. Before running a task the executor computes its digest and
// consults the incremental cache.
package dag
