package output

import (
	"context"

	"github.com/mensylisir/xmdriver/common"
	"github.com/mensylisir/xmdriver/errs"
	"github.com/mensylisir/xmdriver/experiment"
	"github.com/mensylisir/xmdriver/logger"
	"github.com/mensylisir/xmdriver/runner"
	"github.com/mensylisir/xmdriver/shell"
)

// WriteValue writes text plus a trailing newline to the remote file p. The
// file must not exist yet: noclobber makes the shell refuse to overwrite it
// and the refusal surfaces as an *errs.ExecutionError.
func WriteValue(ctx context.Context, r runner.Runner, p, text string) error {
	if p == "" {
		return errs.NewConfiguration("path", "must not be empty")
	}
	cmd := shell.Sprintf(`set -o noclobber; printf '%%s\n' %s > %s`, text, p)
	if _, err := r.Run(ctx, cmd); err != nil {
		return err
	}
	logger.Log.Debugf("Wrote %d bytes to %s", len(text)+1, p)
	return nil
}

// Persist records d as JSON in its params artifact and returns the path.
func Persist(ctx context.Context, r runner.Runner, n *Namer, d *experiment.Descriptor) (string, error) {
	data, err := d.MarshalJSON()
	if err != nil {
		return "", err
	}

	p, err := n.Path(d, common.RoleParams)
	if err != nil {
		return "", err
	}
	if err := WriteValue(ctx, r, p, string(data)); err != nil {
		return "", err
	}
	logger.Log.InfofExperiment(d.Identity(), "Parameters recorded in %s", p)
	return p, nil
}
