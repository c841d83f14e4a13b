package output_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mensylisir/xmdriver/errs"
	"github.com/mensylisir/xmdriver/experiment"
	"github.com/mensylisir/xmdriver/output"
	"github.com/mensylisir/xmdriver/runner/runnertest"
	"github.com/mensylisir/xmdriver/shell"
)

var stamp = time.Date(2024, 3, 9, 14, 5, 7, 123456000, time.UTC)

func descriptor(t *testing.T, at time.Time, params ...experiment.Param) *experiment.Descriptor {
	t.Helper()
	d, err := experiment.New("exp", "demo_experiment", "timestamp", params,
		experiment.WithClock(func() time.Time { return at }))
	require.NoError(t, err)
	return d
}

func TestFileName(t *testing.T) {
	d := descriptor(t, stamp)
	assert.Equal(t, "demo_experiment_20240309-140507-123456.params", output.FileName(d, "params"))
	assert.Equal(t, "demo_experiment_20240309-140507-123456.time", output.FileName(d, "time"))
	assert.Equal(t, "demo_experiment_20240309-140507-123456.", output.FileName(d, ""))
	assert.Equal(t, output.FileName(d, "params"), output.FileName(d, "params"))
}

func TestFileNameIgnoresParameters(t *testing.T) {
	a := descriptor(t, stamp, experiment.Param{Name: "time", Value: 2})
	b := descriptor(t, stamp, experiment.Param{Name: "time", Value: 5})
	for _, role := range []string{"", "params", "time"} {
		assert.Equal(t, output.FileName(a, role), output.FileName(b, role))
	}
}

func TestFileNameDistinctTimestamps(t *testing.T) {
	a := descriptor(t, stamp)
	b := descriptor(t, stamp.Add(time.Microsecond))
	c := descriptor(t, stamp.Add(time.Second))
	for _, role := range []string{"", "params", "time"} {
		assert.NotEqual(t, output.FileName(a, role), output.FileName(b, role))
		assert.NotEqual(t, output.FileName(a, role), output.FileName(c, role))
	}
}

func TestFileNameRoles(t *testing.T) {
	d := descriptor(t, stamp)
	roles := []string{"params", "time", "stdout", "params_", "time-2"}
	base := output.FileName(d, "")

	seen := make(map[string]string)
	for _, role := range roles {
		name := output.FileName(d, role)
		if prev, ok := seen[name]; ok {
			t.Fatalf("roles %q and %q share the name %q", prev, role, name)
		}
		seen[name] = role

		assert.True(t, strings.HasPrefix(name, base), name)
		assert.NotEqual(t, base, name)
	}
}

func TestNewNamer(t *testing.T) {
	tests := []struct {
		name    string
		home    string
		dirName string
		want    string
		wantErr bool
	}{
		{name: "relative", home: "/home/alice", dirName: "results", want: "/home/alice/results"},
		{name: "nested", home: "/home/alice/", dirName: "runs/today", want: "/home/alice/runs/today"},
		{name: "absolute", home: "/home/alice", dirName: "/srv/results/", want: "/srv/results"},
		{name: "absolute without home", dirName: "/srv/results", want: "/srv/results"},
		{name: "relative without home", dirName: "results", wantErr: true},
		{name: "empty", home: "/home/alice", dirName: " ", wantErr: true},
		{name: "newline", home: "/home/alice", dirName: "res\nults", wantErr: true},
		{name: "carriage return", home: "/home/alice", dirName: "r\rx", wantErr: true},
		{name: "nul", home: "/home/alice", dirName: "r\x00x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := runnertest.NewRunner(nil)
			n, err := output.NewNamer(r, tt.home, tt.dirName)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errs.IsConfiguration(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, n.Dir)
		})
	}
}

func TestNamerPath(t *testing.T) {
	r, _ := runnertest.NewRunner(nil)
	n, err := output.NewNamer(r, "/home/alice", "results")
	require.NoError(t, err)
	d := descriptor(t, stamp)

	p, err := n.Path(d, "params")
	require.NoError(t, err)
	assert.Equal(t, "/home/alice/results/demo_experiment_20240309-140507-123456.params", p)
	assert.Equal(t, "/home/alice/results/demo_experiment_20240309-140507-123456.", n.Base(d))

	for _, role := range []string{"a.b", "a/b", "a b", "../x", "$(id)"} {
		_, err := n.Path(d, role)
		require.Error(t, err, role)
		assert.True(t, errs.IsConfiguration(err), role)
	}
}

func TestEnsureDir(t *testing.T) {
	r, exec := runnertest.NewRunner(nil)
	n, err := output.NewNamer(r, "/home/al ice", "results")
	require.NoError(t, err)

	require.NoError(t, n.EnsureDir(context.Background()))
	require.NoError(t, n.EnsureDir(context.Background()))
	assert.Equal(t, []string{
		"mkdir -p '/home/al ice/results'",
		"mkdir -p '/home/al ice/results'",
	}, exec.Commands())
}

func TestPersist(t *testing.T) {
	r, exec := runnertest.NewRunner(nil)
	n, err := output.NewNamer(r, "/home/alice", "results")
	require.NoError(t, err)
	d := descriptor(t, stamp,
		experiment.Param{Name: "time", Value: uint64(2)},
		experiment.Param{Name: "iterations", Value: uint64(3)},
	)

	p, err := output.Persist(context.Background(), r, n, d)
	require.NoError(t, err)
	assert.Equal(t, "/home/alice/results/demo_experiment_20240309-140507-123456.params", p)

	want := `set -o noclobber; printf '%s\n' '{"exp":"demo_experiment","time":2,"iterations":3,"timestamp":"2024-03-09T14:05:07.123456Z"}' > ` + p
	assert.Equal(t, []string{want}, exec.Commands())
}

func TestPersistQuotesHostileValues(t *testing.T) {
	r, exec := runnertest.NewRunner(nil)
	n, err := output.NewNamer(r, "/home/alice", "results")
	require.NoError(t, err)
	d := descriptor(t, stamp, experiment.Param{Name: "note", Value: `it's $(rm -rf ~) ; "done"`})

	_, err = output.Persist(context.Background(), r, n, d)
	require.NoError(t, err)

	cmds := exec.Commands()
	require.Len(t, cmds, 1)

	data, err := d.MarshalJSON()
	require.NoError(t, err)

	// Splitting the command the way a shell would must give back the JSON
	// as one word.
	words, err := shell.Split(cmds[0])
	require.NoError(t, err)
	assert.Contains(t, words, string(data))
}

func TestPersistCollision(t *testing.T) {
	r, _ := runnertest.NewRunner(runnertest.FailOn("noclobber", 1, "bash: cannot overwrite existing file"))
	n, err := output.NewNamer(r, "/home/alice", "results")
	require.NoError(t, err)

	_, err = output.Persist(context.Background(), r, n, descriptor(t, stamp))
	require.Error(t, err)
	assert.True(t, errs.IsExecution(err))
	assert.Contains(t, err.Error(), "cannot overwrite existing file")
}

func TestWriteValue(t *testing.T) {
	r, exec := runnertest.NewRunner(nil)
	require.NoError(t, output.WriteValue(context.Background(), r, "/tmp/x.time", fmt.Sprint(6.004)))
	assert.Equal(t, []string{`set -o noclobber; printf '%s\n' 6.004 > /tmp/x.time`}, exec.Commands())

	err := output.WriteValue(context.Background(), r, "", "1")
	assert.True(t, errs.IsConfiguration(err))
}
