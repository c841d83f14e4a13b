package driver

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mensylisir/xmdriver/errs"
	"github.com/mensylisir/xmdriver/output"
	"github.com/mensylisir/xmdriver/report"
	"github.com/mensylisir/xmdriver/runner/runnertest"
)

// fakeHost advances its clock whenever a sleep command runs.
type fakeHost struct {
	mu  sync.Mutex
	now time.Time

	failOn string
}

func newFakeHost() *fakeHost {
	return &fakeHost{now: time.Date(2024, 3, 9, 14, 5, 7, 123456000, time.UTC)}
}

func (h *fakeHost) clock() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.now
}

func (h *fakeHost) respond(cmd string) (string, string, int, error) {
	if h.failOn != "" && strings.Contains(cmd, h.failOn) {
		return "", "boom", 1, nil
	}
	if strings.HasPrefix(cmd, "sleep ") {
		secs, err := strconv.Atoi(strings.TrimPrefix(cmd, "sleep "))
		if err != nil {
			return "", "", 2, nil
		}
		h.mu.Lock()
		h.now = h.now.Add(time.Duration(secs) * time.Second)
		h.mu.Unlock()
	}
	return "", "", 0, nil
}

func TestSetupCommands(t *testing.T) {
	var got []string
	for _, c := range SetupCommands([]string{"build-essential", "bison", "flex"}) {
		got = append(got, c.String())
	}
	assert.Equal(t, []string{
		"sudo apt update",
		"sudo apt upgrade -y",
		"sudo apt install -y build-essential bison flex",
	}, got)
}

func TestSetup(t *testing.T) {
	r, exec := runnertest.NewRunner(nil)
	require.NoError(t, Setup(context.Background(), r, []string{"build-essential", "bison", "flex"}))
	assert.Len(t, exec.Commands(), 3)
}

func TestSetupFailsFast(t *testing.T) {
	for i, failing := range []string{"update", "upgrade", "install"} {
		t.Run(failing, func(t *testing.T) {
			r, exec := runnertest.NewRunner(runnertest.FailOn(failing, 100, "E: failed"))
			err := Setup(context.Background(), r, []string{"flex"})
			require.Error(t, err)
			assert.True(t, errs.IsExecution(err))
			assert.Len(t, exec.Commands(), i+1)
		})
	}
}

func TestSetupRejectsEmptyPackages(t *testing.T) {
	r, exec := runnertest.NewRunner(nil)
	for _, pkgs := range [][]string{nil, {"flex", ""}} {
		err := Setup(context.Background(), r, pkgs)
		assert.True(t, errs.IsConfiguration(err))
	}
	assert.Empty(t, exec.Commands())
}

func TestWorkloadCommands(t *testing.T) {
	cmds := WorkloadCommands(2, 3)
	require.Len(t, cmds, 3)
	for _, c := range cmds {
		assert.Equal(t, "sleep 2", c.String())
	}
	assert.Empty(t, WorkloadCommands(2, 0))
}

func TestFormatSeconds(t *testing.T) {
	assert.Equal(t, "6", FormatSeconds(6*time.Second))
	assert.Equal(t, "6.5", FormatSeconds(6500*time.Millisecond))
	assert.Equal(t, "0", FormatSeconds(0))
}

func newDeps(t *testing.T, host *fakeHost) (Deps, *runnertest.Executor, *bytes.Buffer) {
	t.Helper()
	r, exec := runnertest.NewRunner(host.respond)
	n, err := output.NewNamer(r, "/home/alice", "results")
	require.NoError(t, err)
	var stdout bytes.Buffer
	return Deps{Runner: r, Namer: n, Reporter: report.New(&stdout), Clock: host.clock}, exec, &stdout
}

func TestExperiment(t *testing.T) {
	host := newFakeHost()
	deps, exec, stdout := newDeps(t, host)

	out, err := Experiment(context.Background(), deps, ExperimentOptions{Time: 2, Iterations: 3})
	require.NoError(t, err)

	const base = "/home/alice/results/demo_experiment_20240309-140507-123456."
	assert.Equal(t, base, out.Base)
	assert.Equal(t, base+"params", out.ParamsPath)
	assert.Equal(t, base+"time", out.TimePath)
	assert.Equal(t, 6*time.Second, out.Elapsed)
	assert.Equal(t, "demo_experiment", out.Descriptor.Identity())

	assert.Equal(t, []string{
		"mkdir -p /home/alice/results",
		`set -o noclobber; printf '%s\n' '{"exp":"demo_experiment","time":2,"iterations":3,"timestamp":"2024-03-09T14:05:07.123456Z"}' > ` + base + "params",
		"sleep 2",
		"sleep 2",
		"sleep 2",
		`set -o noclobber; printf '%s\n' 6 > ` + base + "time",
	}, exec.Commands())

	assert.Equal(t, "RESULTS: "+base+"\n", stdout.String())
	assert.Equal(t, []string{base}, report.Find(stdout.String()))
}

func TestExperimentElapsedCoversEveryIteration(t *testing.T) {
	host := newFakeHost()
	deps, _, _ := newDeps(t, host)

	out, err := Experiment(context.Background(), deps, ExperimentOptions{Name: "bench", Time: 5, Iterations: 4})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, out.Elapsed.Seconds(), 20.0)
	assert.True(t, strings.HasPrefix(out.Base, "/home/alice/results/bench_"))
}

func TestExperimentFailures(t *testing.T) {
	tests := []struct {
		name     string
		failOn   string
		commands int
	}{
		{name: "results dir", failOn: "mkdir", commands: 1},
		{name: "params", failOn: "noclobber; printf '%s\\n' '{", commands: 2},
		{name: "workload", failOn: "sleep", commands: 3},
		{name: "time artifact", failOn: ".time", commands: 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host := newFakeHost()
			host.failOn = tt.failOn
			deps, exec, stdout := newDeps(t, host)

			_, err := Experiment(context.Background(), deps, ExperimentOptions{Time: 2, Iterations: 3})
			require.Error(t, err)
			assert.True(t, errs.IsExecution(err))
			assert.Len(t, exec.Commands(), tt.commands)
			assert.Empty(t, stdout.String(), "no RESULTS line after a failure")
		})
	}
}

func TestExperimentInvalidName(t *testing.T) {
	deps, exec, stdout := newDeps(t, newFakeHost())
	_, err := Experiment(context.Background(), deps, ExperimentOptions{Name: "my exp", Time: 1, Iterations: 1})
	require.Error(t, err)
	assert.True(t, errs.IsConfiguration(err))
	assert.Empty(t, exec.Commands())
	assert.Empty(t, stdout.String())
}

func TestExperimentMissingDeps(t *testing.T) {
	_, err := Experiment(context.Background(), Deps{}, ExperimentOptions{})
	assert.True(t, errs.IsConfiguration(err))
}
