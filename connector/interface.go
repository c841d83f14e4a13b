package connector

import (
	"context"
	"io"
)

type Executor interface {
	// Exec runs cmd in a fresh session. A non-zero exit status is reported
	// through exitCode with a nil error; err is set only when the transport
	// failed or ctx ended.
	Exec(ctx context.Context, cmd string) (stdout []byte, stderr []byte, exitCode int, err error)
}

type FileOperator interface {
	Glob(ctx context.Context, pattern string) ([]string, error)
	Fetch(ctx context.Context, remotePath string) (io.ReadCloser, error)
	DownloadFile(ctx context.Context, remotePath string, localPath string) error
}

// Connection is one authenticated session to a remote host.
type Connection interface {
	Executor
	FileOperator
	HomeDir(ctx context.Context) (string, error)
	Close() error
}

// Dialer opens connections to hosts using shared client settings.
type Dialer interface {
	Dial(ctx context.Context, host Host) (Connection, error)
}
