// Package runnertest provides a scripted executor for tests of code that
// drives a runner.Runner.
package runnertest

import (
	"context"
	"strings"
	"sync"

	"github.com/mensylisir/xmdriver/runner"
)

// Responder decides the outcome of one command.
type Responder func(cmd string) (stdout, stderr string, exitCode int, err error)

// Executor records every command and answers with Responder. A nil
// Responder succeeds with no output.
type Executor struct {
	Responder Responder

	mu       sync.Mutex
	commands []string
}

func (e *Executor) Exec(ctx context.Context, cmd string) ([]byte, []byte, int, error) {
	e.mu.Lock()
	e.commands = append(e.commands, cmd)
	e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, nil, -1, err
	}
	if e.Responder == nil {
		return nil, nil, 0, nil
	}
	stdout, stderr, code, err := e.Responder(cmd)
	return []byte(stdout), []byte(stderr), code, err
}

// Commands returns the commands seen so far in order.
func (e *Executor) Commands() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.commands...)
}

// NewRunner returns a real runner over a scripted executor.
func NewRunner(responder Responder) (runner.Runner, *Executor) {
	exec := &Executor{Responder: responder}
	return runner.NewCmdRunner(exec), exec
}

// FailOn returns a Responder that exits with code for every command
// containing substr and succeeds for everything else.
func FailOn(substr string, code int, stderr string) Responder {
	return func(cmd string) (string, string, int, error) {
		if strings.Contains(cmd, substr) {
			return "", stderr, code, nil
		}
		return "", "", 0, nil
	}
}
