package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/vk/gridbuild/internal/process"
)

// SleeperLauncher is a shared process launcher for concurrency tests. It
// does not start processes: it sleeps, records when the command identified
// by its first argument ran and exits with the configured status.
type SleeperLauncher struct {
	ExecutionTimes map[string]*ExecutionRecord
	// ExitCodes maps ids to exit statuses; unlisted ids succeed.
	ExitCodes map[string]int

	mu             sync.Mutex
	sleepDuration  time.Duration
	completionChan chan<- string
}

// NewSleeperLauncher creates a launcher that sleeps for sleep per command.
func NewSleeperLauncher(completionChan chan<- string, sleep time.Duration) *SleeperLauncher {
	return &SleeperLauncher{
		ExecutionTimes: make(map[string]*ExecutionRecord),
		ExitCodes:      make(map[string]int),
		sleepDuration:  sleep,
		completionChan: completionChan,
	}
}

// Run implements process.Launcher.
func (l *SleeperLauncher) Run(ctx context.Context, cmd process.Command) (process.Output, error) {
	id := ""
	if len(cmd.Args) > 1 {
		id = cmd.Args[1]
	}

	startTime := time.Now()
	select {
	case <-time.After(l.sleepDuration):
	case <-ctx.Done():
		return process.Output{}, ctx.Err()
	}
	endTime := time.Now()

	l.mu.Lock()
	l.ExecutionTimes[id] = &ExecutionRecord{Start: startTime, End: endTime}
	code := l.ExitCodes[id]
	l.mu.Unlock()

	if l.completionChan != nil {
		l.completionChan <- id
	}
	return process.Output{ExitCode: code, Stdout: []byte(id + "\n")}, nil
}

// Record returns the execution record of id, or nil if it never ran.
func (l *SleeperLauncher) Record(id string) *ExecutionRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ExecutionTimes[id]
}

// Ran reports how many commands ran.
func (l *SleeperLauncher) Ran() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ExecutionTimes)
}
