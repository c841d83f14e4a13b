// Package executor runs driver commands on the local machine instead of a
// remote host. It backs the --local mode and lets tests check command
// lines against a real shell.
package executor

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"github.com/mensylisir/xmdriver/connector"
	"github.com/mensylisir/xmdriver/file"
	"github.com/mensylisir/xmdriver/logger"
	"github.com/mensylisir/xmdriver/util"
)

// DefaultShell interprets every command line.
const DefaultShell = "/bin/sh"

// waitDelay bounds how long Exec waits for output after ctx ends.
const waitDelay = 2 * time.Second

// Local is a connector.Connection to the machine the driver runs on.
type Local struct {
	Shell string
	// Home overrides the local user's home directory.
	Home string
}

var _ connector.Connection = (*Local)(nil)

func NewLocal() *Local {
	return &Local{Shell: DefaultShell}
}

// Exec runs cmd with "sh -c". A non-zero exit is reported through the exit
// code; err is set when the shell could not be started or ctx ended.
func (l *Local) Exec(ctx context.Context, cmd string) ([]byte, []byte, int, error) {
	shell := l.Shell
	if shell == "" {
		shell = DefaultShell
	}
	c := exec.CommandContext(ctx, shell, "-c", cmd)
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr
	c.WaitDelay = waitDelay

	err := c.Run()
	if err == nil {
		return stdout.Bytes(), stderr.Bytes(), 0, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return stdout.Bytes(), stderr.Bytes(), -1, errors.Wrap(ctxErr, "command interrupted")
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			code = 128 + int(status.Signal())
		}
		return stdout.Bytes(), stderr.Bytes(), code, nil
	}
	return stdout.Bytes(), stderr.Bytes(), -1, errors.Wrapf(err, "failed to start %s", shell)
}

func (l *Local) HomeDir(context.Context) (string, error) {
	if l.Home != "" {
		return l.Home, nil
	}
	return util.Home()
}

func (l *Local) Glob(ctx context.Context, pattern string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to glob %s", pattern)
	}
	return matches, nil
}

func (l *Local) Fetch(ctx context.Context, p string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", p)
	}
	return f, nil
}

func (l *Local) DownloadFile(ctx context.Context, src, dst string) error {
	r, err := l.Fetch(ctx, src)
	if err != nil {
		return err
	}
	defer r.Close()

	n, err := file.WriteFrom(dst, r)
	if err != nil {
		return errors.Wrapf(err, "failed to copy %s", src)
	}
	logger.Log.Debugf("Copied %s to %s (%d bytes)", src, dst, n)
	return nil
}

func (l *Local) Close() error { return nil }

// Dialer hands out the local connection for every host.
type Dialer struct {
	Local *Local
}

func (d Dialer) Dial(_ context.Context, host connector.Host) (connector.Connection, error) {
	logger.Log.WarnfNode(host.Address, "Running locally instead of on %s", host)
	if d.Local == nil {
		return NewLocal(), nil
	}
	return d.Local, nil
}

var _ connector.Dialer = Dialer{}
