package driver

import (
	"context"
	"strconv"
	"time"

	"github.com/mensylisir/xmdriver/common"
	"github.com/mensylisir/xmdriver/errs"
	"github.com/mensylisir/xmdriver/experiment"
	"github.com/mensylisir/xmdriver/logger"
	"github.com/mensylisir/xmdriver/output"
	"github.com/mensylisir/xmdriver/report"
	"github.com/mensylisir/xmdriver/runner"
	"github.com/mensylisir/xmdriver/shell"
	"github.com/mensylisir/xmdriver/util"
)

// ExpConfig holds everything that makes one experiment run unique. Its JSON
// form is what lands in the params artifact.
type ExpConfig struct {
	Exp        string    `param:"exp,identity"`
	Time       uint64    `param:"time"`
	Iterations uint64    `param:"iterations"`
	Timestamp  time.Time `param:"timestamp,timestamp"`
}

// ExperimentOptions are the inputs of one run.
type ExperimentOptions struct {
	Name       string
	Time       uint64
	Iterations uint64
}

// Deps are the collaborators of an experiment run. Clock defaults to
// time.Now and is read once for the descriptor and once around the workload.
type Deps struct {
	Runner   runner.Runner
	Namer    *output.Namer
	Reporter *report.Reporter
	Clock    experiment.Clock
}

// Outcome describes a finished run.
type Outcome struct {
	Descriptor *experiment.Descriptor
	ParamsPath string
	TimePath   string
	Base       string
	Elapsed    time.Duration
}

// WorkloadCommands returns the placeholder workload: one sleep per iteration.
func WorkloadCommands(seconds, iterations uint64) []shell.Command {
	cmds := make([]shell.Command, 0, iterations)
	for i := uint64(0); i < iterations; i++ {
		cmds = append(cmds, shell.New("sleep", strconv.FormatUint(seconds, 10)))
	}
	return cmds
}

// FormatSeconds renders d as decimal seconds, the content of the time
// artifact.
func FormatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}

// Experiment records the parameters of the run, times the workload, records
// the elapsed time and finally reports the base path of the run's artifacts.
// Nothing is reported when any step fails; artifacts already written stay.
func Experiment(ctx context.Context, deps Deps, opts ExperimentOptions) (*Outcome, error) {
	if deps.Runner == nil || deps.Namer == nil || deps.Reporter == nil {
		return nil, errs.NewConfiguration("driver", "runner, namer and reporter are required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	name := opts.Name
	if name == "" {
		name = common.DefaultExperimentName
	}

	d, err := experiment.FromStruct(ExpConfig{
		Exp:        name,
		Time:       opts.Time,
		Iterations: opts.Iterations,
	}, experiment.WithClock(clock))
	if err != nil {
		return nil, err
	}
	log := logger.Log.Experiment(d.Identity())

	timePath, err := deps.Namer.Path(d, common.RoleTime)
	if err != nil {
		return nil, err
	}
	if err := deps.Namer.EnsureDir(ctx); err != nil {
		return nil, err
	}
	paramsPath, err := output.Persist(ctx, deps.Runner, deps.Namer, d)
	if err != nil {
		return nil, err
	}

	log.Infof("Running %d iterations of %ds", opts.Iterations, opts.Time)
	start := clock()
	if _, err := runner.Sequence(ctx, deps.Runner, WorkloadCommands(opts.Time, opts.Iterations)...); err != nil {
		return nil, err
	}
	elapsed := clock().Sub(start)
	log.Infof("Workload finished in %vs", util.Round(elapsed.Seconds(), 3))

	if err := output.WriteValue(ctx, deps.Runner, timePath, FormatSeconds(elapsed)); err != nil {
		return nil, err
	}

	base := deps.Namer.Base(d)
	if err := deps.Reporter.Report(base); err != nil {
		return nil, err
	}
	return &Outcome{
		Descriptor: d,
		ParamsPath: paramsPath,
		TimePath:   timePath,
		Base:       base,
		Elapsed:    elapsed,
	}, nil
}
