package cmd

import (
	"github.com/spf13/cobra"

	"github.com/mensylisir/xmdriver/driver"
	"github.com/mensylisir/xmdriver/errs"
	"github.com/mensylisir/xmdriver/runner"
	"github.com/mensylisir/xmdriver/shell"
)

func newSetupCmd(a *app) *cobra.Command {
	var packages string

	cmd := &cobra.Command{
		Use:   "setup <hostname> <username>",
		Short: "Set up a fresh machine",
		Long: `Refresh the apt package index, upgrade the machine and install the
build dependencies of the experiments.

The package list comes from the configuration file (setup.packages) and
defaults to build-essential, bison and flex. --packages replaces it.`,
		Args: targetArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.prepare(cmd, "setup"); err != nil {
				return err
			}
			pkgs := a.cfg.Setup.Packages
			if cmd.Flags().Changed("packages") {
				words, err := shell.Split(packages)
				if err != nil {
					return errs.NewConfiguration("packages", "%v", err)
				}
				pkgs = words
			}

			conn, err := a.connect(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			defer conn.Close()

			return driver.Setup(cmd.Context(), runner.NewCmdRunner(conn), pkgs)
		},
	}
	cmd.Flags().StringVar(&packages, "packages", "", `packages to install, as a shell word list ("flex 'lib foo'")`)
	return cmd
}

// targetArgs accepts <hostname> <username> followed by extra positionals.
func targetArgs(extra int, names ...string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != 2+extra {
			want := "<hostname> <username>"
			for _, n := range names {
				want += " <" + n + ">"
			}
			return errs.NewConfiguration("arguments", "%s expects %s, got %d arguments", cmd.Name(), want, len(args))
		}
		return nil
	}
}
