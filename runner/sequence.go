package runner

import (
	"context"

	"github.com/mensylisir/xmdriver/errs"
	"github.com/mensylisir/xmdriver/logger"
	"github.com/mensylisir/xmdriver/shell"
)

// Sequence runs cmds one after another and stops at the first failure. The
// results of the commands that succeeded are returned together with that
// failure, which is passed through unchanged. Nothing is retried or rolled
// back.
func Sequence(ctx context.Context, r Runner, cmds ...shell.Command) ([]*Result, error) {
	results := make([]*Result, 0, len(cmds))
	for i, cmd := range cmds {
		if err := ctx.Err(); err != nil {
			return results, errs.NewExecution(cmd.String(), -1, "", "", err)
		}
		logger.Log.DebugfStep(i, "%s", cmd)
		res, err := r.Run(ctx, cmd)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}
