package action

import (
	"context"
	"fmt"

	"github.com/vk/gridbuild/internal/pathlike"
)

// Print writes messages to the build output. It runs in dry-run mode too.
type Print struct {
	Base
	Messages []string
}

// PrintArgs are the resolved arguments of Print.
type PrintArgs struct {
	Messages []string
}

func (a *Print) Kind() Kind { return KindPrint }

func (a *Print) Requirements() []pathlike.TaskReference { return nil }

func (a *Print) TransformArguments(ctx context.Context, ec *ExecContext) (Arguments, error) {
	return PrintArgs{Messages: append([]string(nil), a.Messages...)}, nil
}

func (a *Print) RunWithArguments(ctx context.Context, ec *ExecContext, args Arguments) (CommandOutput, error) {
	resolved, err := argsOf[PrintArgs](KindPrint, args)
	if err != nil {
		return CommandOutput{}, err
	}
	w := ec.stdout()
	for _, msg := range resolved.Messages {
		if _, err := fmt.Fprintln(w, msg); err != nil {
			return CommandOutput{}, err
		}
	}
	return CommandOutput{}, nil
}

// Hash is constant: messages do not affect caching.
func (a *Print) Hash(ec *ExecContext, args Arguments, fn HashFunc) string {
	return chain(fn, string(KindPrint))
}
