package action

import (
	"context"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/vk/gridbuild/internal/pathlike"
)

// SetEnvironment adds variables to the environment of the actions that
// follow it in the same task.
type SetEnvironment struct {
	Base
	Values map[string]pathlike.Value
}

// EnvironmentArgs are the resolved arguments of SetEnvironment.
type EnvironmentArgs map[string]string

func (a *SetEnvironment) Kind() Kind { return KindSetEnvironment }

func (a *SetEnvironment) Requirements() []pathlike.TaskReference {
	var refs []pathlike.TaskReference
	for _, key := range slices.Sorted(maps.Keys(a.Values)) {
		refs = append(refs, pathlike.References(a.Values[key])...)
	}
	return refs
}

// TransformArguments renders each value as a string. Literals are kept as
// written; values that resolve to several paths are joined with the
// platform list separator.
func (a *SetEnvironment) TransformArguments(ctx context.Context, ec *ExecContext) (Arguments, error) {
	args := make(EnvironmentArgs, len(a.Values))
	for key, value := range a.Values {
		resolved, err := pathlike.ResolveStringList(ec.PathContext(), []pathlike.Value{value}, ec.Task.InputPath)
		if err != nil {
			return nil, err
		}
		args[key] = strings.Join(resolved, string(os.PathListSeparator))
	}
	return args, nil
}

func (a *SetEnvironment) RunWithArguments(ctx context.Context, ec *ExecContext, args Arguments) (CommandOutput, error) {
	resolved, err := argsOf[EnvironmentArgs](KindSetEnvironment, args)
	if err != nil {
		return CommandOutput{}, err
	}
	logger := ec.logger(ctx, KindSetEnvironment)
	if ec.DryRun {
		logger.Info("Dry run, environment unchanged.", "variables", len(resolved))
		return CommandOutput{}, nil
	}
	if ec.Environment == nil {
		ec.Environment = make(map[string]string, len(resolved))
	}
	maps.Copy(ec.Environment, resolved)
	logger.Debug("Environment updated.", "variables", slices.Sorted(maps.Keys(resolved)))
	return CommandOutput{}, nil
}

func (a *SetEnvironment) Hash(ec *ExecContext, args Arguments, fn HashFunc) string {
	resolved, _ := args.(EnvironmentArgs)
	pairs := make([]string, 0, len(resolved))
	for _, key := range slices.Sorted(maps.Keys(resolved)) {
		pairs = append(pairs, key+"="+resolved[key])
	}
	return chain(fn, string(KindSetEnvironment), strings.Join(pairs, ";"))
}
