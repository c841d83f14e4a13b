package runner_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mensylisir/xmdriver/errs"
	"github.com/mensylisir/xmdriver/runner"
	"github.com/mensylisir/xmdriver/runner/runnertest"
	"github.com/mensylisir/xmdriver/shell"
)

func TestRun(t *testing.T) {
	tests := []struct {
		name       string
		responder  runnertest.Responder
		wantErr    bool
		wantCode   int
		wantStdout string
	}{
		{
			name: "success",
			responder: func(string) (string, string, int, error) {
				return "ok\n", "", 0, nil
			},
			wantStdout: "ok\n",
		},
		{
			name: "non-zero exit",
			responder: func(string) (string, string, int, error) {
				return "partial", "boom", 3, nil
			},
			wantErr:  true,
			wantCode: 3,
		},
		{
			name: "transport fault",
			responder: func(string) (string, string, int, error) {
				return "", "", -1, errors.New("connection reset by peer")
			},
			wantErr:  true,
			wantCode: -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, exec := runnertest.NewRunner(tt.responder)
			res, err := r.Run(context.Background(), shell.New("echo", "a b"))
			assert.Equal(t, []string{"echo 'a b'"}, exec.Commands())

			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, tt.wantStdout, res.Stdout)
				assert.Equal(t, 0, res.ExitCode)
				assert.Equal(t, "echo 'a b'", res.Command)
				return
			}

			require.Error(t, err)
			assert.Nil(t, res)
			var execErr *errs.ExecutionError
			require.ErrorAs(t, err, &execErr)
			assert.Equal(t, "echo 'a b'", execErr.Command)
			assert.Equal(t, tt.wantCode, execErr.ExitCode)
		})
	}
}

func TestRunKeepsCapturedOutputOnFailure(t *testing.T) {
	r, _ := runnertest.NewRunner(func(string) (string, string, int, error) {
		return "Reading package lists...\n", "E: Could not get lock\n", 100, nil
	})

	_, err := r.Run(context.Background(), shell.New("sudo apt update"))
	var execErr *errs.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "Reading package lists...\n", execErr.Stdout)
	assert.Equal(t, "E: Could not get lock\n", execErr.Stderr)
	assert.Contains(t, err.Error(), "exited with status 100")
}

func TestRunRejectsEmptyCommand(t *testing.T) {
	r, exec := runnertest.NewRunner(nil)
	_, err := r.Run(context.Background(), shell.Raw("  "))
	require.Error(t, err)
	assert.True(t, errs.IsConfiguration(err))
	assert.Empty(t, exec.Commands())
}

func TestSequenceRunsInOrder(t *testing.T) {
	r, exec := runnertest.NewRunner(nil)
	results, err := runner.Sequence(context.Background(), r,
		shell.New("sudo apt update"),
		shell.New("sudo apt upgrade -y"),
		shell.New("sudo apt install -y", "build-essential", "bison", "flex"),
	)
	require.NoError(t, err)
	assert.Len(t, results, 3)
	assert.Equal(t, []string{
		"sudo apt update",
		"sudo apt upgrade -y",
		"sudo apt install -y build-essential bison flex",
	}, exec.Commands())
}

func TestSequenceStopsAtFirstFailure(t *testing.T) {
	r, exec := runnertest.NewRunner(runnertest.FailOn("upgrade", 100, "E: dpkg was interrupted"))
	results, err := runner.Sequence(context.Background(), r,
		shell.New("sudo apt update"),
		shell.New("sudo apt upgrade -y"),
		shell.New("sudo apt install -y", "flex"),
	)
	require.Error(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, []string{"sudo apt update", "sudo apt upgrade -y"}, exec.Commands(), "no command after the failure runs")

	var execErr *errs.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "sudo apt upgrade -y", execErr.Command)
	assert.Equal(t, 100, execErr.ExitCode)
}

func TestSequenceEmpty(t *testing.T) {
	r, exec := runnertest.NewRunner(nil)
	results, err := runner.Sequence(context.Background(), r)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, exec.Commands())
}

func TestSequenceCancelledContext(t *testing.T) {
	r, exec := runnertest.NewRunner(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runner.Sequence(ctx, r, shell.New("sleep 1"))
	require.Error(t, err)
	assert.True(t, errs.IsExecution(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, exec.Commands())
}
