package cmd

import (
	"github.com/spf13/cobra"

	"github.com/mensylisir/xmdriver/driver"
	"github.com/mensylisir/xmdriver/experiment"
	"github.com/mensylisir/xmdriver/output"
	"github.com/mensylisir/xmdriver/report"
	"github.com/mensylisir/xmdriver/runner"
)

func newExperimentCmd(a *app) *cobra.Command {
	var opts driver.ExperimentOptions

	cmd := &cobra.Command{
		Use:   "experiment <hostname> <username> --time <seconds> --iterations <count>",
		Short: "Run the experiment",
		Long: `Record the parameters of this run, run the workload the given number of
times, record the elapsed wall clock time and print a RESULTS line naming
<remote results dir>/<name>_<timestamp>. on stdout. The job server
collects every file starting with that path.`,
		Args: targetArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.prepare(cmd, "experiment"); err != nil {
				return err
			}
			if opts.Name == "" {
				opts.Name = a.cfg.Experiment.Name
			}
			if err := experiment.ValidIdentity(opts.Name); err != nil {
				return err
			}

			ctx := cmd.Context()
			conn, err := a.connect(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			defer conn.Close()

			home, err := conn.HomeDir(ctx)
			if err != nil {
				return err
			}
			r := runner.NewCmdRunner(conn)
			namer, err := output.NewNamer(r, home, a.cfg.Results.Dir)
			if err != nil {
				return err
			}

			_, err = driver.Experiment(ctx, driver.Deps{
				Runner:   r,
				Namer:    namer,
				Reporter: report.New(a.stdout),
			}, opts)
			return err
		},
	}

	flags := cmd.Flags()
	flags.Uint64Var(&opts.Time, "time", 0, "the amount of time for each iteration, in seconds")
	flags.Uint64Var(&opts.Iterations, "iterations", 0, "the number of iterations to run")
	flags.StringVar(&opts.Name, "name", "", "experiment name used in result file names")
	_ = cmd.MarkFlagRequired("time")
	_ = cmd.MarkFlagRequired("iterations")
	return cmd
}
