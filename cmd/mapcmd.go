package cmd

import (
	"github.com/spf13/cobra"

	"github.com/mensylisir/xmdriver/mapper"
)

func newMapCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "map",
		Short: "Summarize collected results for the job server",
		Long: `Read job descriptions from stdin, one JSON object per line such as

  {"jid": 17, "results_path": "/data/17/demo_experiment_20240309-140507-123456."}

and print a JSON summary of the last one, built from the local
<results_path>params and <results_path>time files. No remote connection is
made.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.prepare(cmd, "map"); err != nil {
				return err
			}
			return mapper.Map(a.stdin, a.stdout)
		},
	}
}
