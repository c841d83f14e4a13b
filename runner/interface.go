package runner

import (
	"context"
	"time"

	"github.com/mensylisir/xmdriver/shell"
)

// Result is the captured outcome of one command that exited zero.
type Result struct {
	Command  string
	Stdout   string
	Stderr   string
	ExitCode int
	Elapsed  time.Duration
}

// Runner executes commands on one host. Run returns an
// *errs.ExecutionError when the command exits non-zero or the transport
// fails; a nil error always means exit status 0.
type Runner interface {
	Run(ctx context.Context, cmd shell.Command) (*Result, error)
}
