package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/gookit/color"
	"github.com/spf13/cobra"

	"github.com/vk/gridbuild/internal/app"
	"github.com/vk/gridbuild/internal/config"
	"github.com/vk/gridbuild/internal/dag"
)

// ExitError is an error that carries the process exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func usageError(err error) error {
	return &ExitError{Code: 2, Message: err.Error()}
}

type globalFlags struct {
	directory string
	logLevel  string
	logFormat string
	noColor   bool
}

type runFlags struct {
	workers int
	dryRun  bool
	force   bool
}

// NewRootCommand builds the command tree. Task output and summaries go to
// outW, logs to errW.
func NewRootCommand(outW, errW io.Writer) *cobra.Command {
	var global globalFlags

	root := &cobra.Command{
		Use:           "gridbuild",
		Short:         "gridbuild evaluates build files and runs their tasks",
		Long:          `gridbuild reads BUILD.hcl files, resolves the dependency graph of the requested tasks and runs them, skipping tasks whose inputs did not change.`,
		Version:       config.EngineVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if global.noColor {
				color.Disable()
			}
		},
	}
	root.SetOut(outW)
	root.SetErr(errW)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return usageError(err) })

	flags := root.PersistentFlags()
	flags.StringVarP(&global.directory, "directory", "C", ".", "Directory to look up targets in.")
	flags.StringVar(&global.logLevel, "log-level", "info", "Logging level: debug, info, warn or error.")
	flags.StringVar(&global.logFormat, "log-format", "text", "Log output format: text or json.")
	flags.BoolVar(&global.noColor, "no-color", false, "Disable colored output.")

	root.AddCommand(
		newRunCommand(&global, outW, errW),
		newTasksCommand(&global, outW, errW),
		newHashCommand(&global, outW, errW),
	)
	return root
}

func newApp(global *globalFlags, targets []string, run runFlags, outW, errW io.Writer) (*app.App, error) {
	cfg, err := app.NewConfig(app.Config{
		Directory: global.directory,
		Targets:   targets,
		LogLevel:  global.logLevel,
		LogFormat: global.logFormat,
		Workers:   run.workers,
		DryRun:    run.dryRun,
		Force:     run.force,
	})
	if err != nil {
		return nil, usageError(err)
	}
	a, err := app.NewApp(outW, errW, cfg)
	if err != nil {
		return nil, &ExitError{Code: 1, Message: err.Error()}
	}
	return a, nil
}

func newRunCommand(global *globalFlags, outW, errW io.Writer) *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "run [TASK[:PATH]]...",
		Short: "Build tasks and their requirements",
		Long:  `Run builds the named tasks, or every task of the build file in the directory when none are named. A target of the form name:path names a task in the build file at path.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(global, args, flags, outW, errW)
			if err != nil {
				return err
			}
			results, runErr := a.Run(cmd.Context())
			printSummary(cmd.OutOrStdout(), results)
			if runErr != nil {
				return &ExitError{Code: 1, Message: runErr.Error()}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&flags.workers, "workers", "j", 0, "Number of concurrent tasks. Defaults to the workspace setting.")
	cmd.Flags().BoolVarP(&flags.dryRun, "dry-run", "n", false, "Resolve and hash tasks without running their actions.")
	cmd.Flags().BoolVarP(&flags.force, "force", "f", false, "Run tasks even when they are up to date.")
	return cmd
}

func newTasksCommand(global *globalFlags, outW, errW io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "List the tasks of the build file in the directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(global, nil, runFlags{}, outW, errW)
			if err != nil {
				return err
			}
			tasks, err := a.Tasks(cmd.Context())
			if err != nil {
				return &ExitError{Code: 1, Message: err.Error()}
			}
			w := cmd.OutOrStdout()
			for _, t := range tasks {
				if t.Description == "" {
					fmt.Fprintln(w, color.Bold.Sprint(t.Name))
					continue
				}
				fmt.Fprintf(w, "%s  %s\n", color.Bold.Sprint(t.Name), t.Description)
			}
			return nil
		},
	}
}

func newHashCommand(global *globalFlags, outW, errW io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "hash [TASK[:PATH]]...",
		Short: "Print the composed hash of every build file the targets read",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(global, args, runFlags{}, outW, errW)
			if err != nil {
				return err
			}
			hashes, err := a.Hashes(cmd.Context())
			if err != nil {
				return &ExitError{Code: 1, Message: err.Error()}
			}
			for _, h := range hashes {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", h.Hash, h.File)
			}
			return nil
		},
	}
}

func printSummary(w io.Writer, results []app.Result) {
	for _, r := range results {
		state := fmt.Sprintf("%-8s", r.State)
		switch r.State {
		case dag.Done:
			state = color.FgGreen.Sprint(state)
		case dag.Cached:
			state = color.FgCyan.Sprint(state)
		case dag.Failed:
			state = color.FgRed.Sprint(state)
		case dag.Skipped:
			state = color.FgYellow.Sprint(state)
		}
		fmt.Fprintf(w, "%s %s (%s)\n", state, r.Name, r.File)
	}
}

// Execute runs the command line args. Errors are *ExitError values.
func Execute(ctx context.Context, args []string, outW, errW io.Writer) error {
	root := NewRootCommand(outW, errW)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	return usageError(err)
}
