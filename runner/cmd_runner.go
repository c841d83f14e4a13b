package runner

import (
	"context"
	"time"

	"github.com/mensylisir/xmdriver/connector"
	"github.com/mensylisir/xmdriver/errs"
	"github.com/mensylisir/xmdriver/logger"
	"github.com/mensylisir/xmdriver/shell"
)

// cmdRunner implements Runner on top of a connector.Executor.
type cmdRunner struct {
	exec connector.Executor
	now  func() time.Time
}

func NewCmdRunner(exec connector.Executor) Runner {
	return &cmdRunner{exec: exec, now: time.Now}
}

func (r *cmdRunner) Run(ctx context.Context, cmd shell.Command) (*Result, error) {
	if cmd.IsZero() {
		return nil, errs.NewConfiguration("command", "refusing to run an empty command")
	}
	text := cmd.String()

	logger.Log.Debugf("Running %q", text)
	start := r.now()
	stdout, stderr, code, err := r.exec.Exec(ctx, text)
	elapsed := r.now().Sub(start)

	if err != nil {
		return nil, errs.NewExecution(text, code, string(stdout), string(stderr), err)
	}
	if code != 0 {
		return nil, errs.NewExecution(text, code, string(stdout), string(stderr), nil)
	}

	logger.Log.Debugf("%q finished in %s", text, elapsed)
	return &Result{
		Command:  text,
		Stdout:   string(stdout),
		Stderr:   string(stderr),
		ExitCode: code,
		Elapsed:  elapsed,
	}, nil
}
