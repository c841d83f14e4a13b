// Package driver implements the operations a job server can ask for:
// provisioning a fresh machine and running one experiment.
package driver

import (
	"context"

	"github.com/mensylisir/xmdriver/errs"
	"github.com/mensylisir/xmdriver/logger"
	"github.com/mensylisir/xmdriver/runner"
	"github.com/mensylisir/xmdriver/shell"
)

// SetupCommands returns the provisioning sequence for packages.
func SetupCommands(packages []string) []shell.Command {
	return []shell.Command{
		shell.New("sudo apt update"),
		shell.New("sudo apt upgrade -y"),
		shell.New("sudo apt install -y", packages...),
	}
}

// Setup refreshes the package index, upgrades the machine and installs
// packages, stopping at the first command that fails.
func Setup(ctx context.Context, r runner.Runner, packages []string) error {
	if len(packages) == 0 {
		return errs.NewConfiguration("packages", "no packages to install")
	}
	for _, p := range packages {
		if p == "" {
			return errs.NewConfiguration("packages", "empty package name in %q", packages)
		}
	}

	log := logger.Log.Command("setup")
	log.Infof("Provisioning machine, installing %d packages", len(packages))
	if _, err := runner.Sequence(ctx, r, SetupCommands(packages)...); err != nil {
		return err
	}
	log.Info("Machine is ready")
	return nil
}
