package task

import (
	"context"

	"github.com/vk/gridbuild/internal/action"
	"github.com/vk/gridbuild/internal/ctxlog"
)

// Execute runs the actions of t in declaration order. The first action that
// fails or exits non-zero stops the task and is reported as an
// *ExecutionError. The returned output accumulates what every action
// printed.
func (t *Task) Execute(ctx context.Context, ec *action.ExecContext) (action.CommandOutput, error) {
	ctx, logger := ctxlog.With(ctx, "task", t.Name, "file", t.File)
	var combined action.CommandOutput

	for _, a := range t.Actions {
		logger.Debug("Running action.", "action", string(a.Kind()), "location", a.Location().String())

		args, err := a.TransformArguments(ctx, ec)
		if err != nil {
			return combined, t.failed(a, combined, err)
		}
		out, err := a.RunWithArguments(ctx, ec, args)
		combined.Output = append(combined.Output, out.Output...)
		combined.ExitCode = out.ExitCode
		if err != nil || !out.Success() {
			return combined, t.failed(a, combined, err)
		}
	}
	return combined, nil
}

func (t *Task) failed(a action.Action, out action.CommandOutput, err error) error {
	return &ExecutionError{
		Task:           t.Name,
		Location:       t.Location,
		Action:         a.Kind(),
		ActionLocation: a.Location(),
		Output:         out,
		Err:            err,
	}
}

// ActionHashes transforms every action of t and returns their hashes in
// order. ec is not modified.
func (t *Task) ActionHashes(ctx context.Context, ec *action.ExecContext, fn action.HashFunc) ([]string, error) {
	hashes := make([]string, 0, len(t.Actions))
	for _, a := range t.Actions {
		args, err := a.TransformArguments(ctx, ec)
		if err != nil {
			return nil, t.failed(a, action.CommandOutput{}, err)
		}
		hashes = append(hashes, a.Hash(ec, args, fn))
	}
	return hashes, nil
}

// Digest combines the action hashes of t into one value.
func (t *Task) Digest(ctx context.Context, ec *action.ExecContext, fn action.HashFunc) (string, error) {
	hashes, err := t.ActionHashes(ctx, ec, fn)
	if err != nil {
		return "", err
	}
	digest := fn(t.Name)
	for _, h := range hashes {
		digest = fn(digest + h)
	}
	return digest, nil
}
