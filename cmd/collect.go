package cmd

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mensylisir/xmdriver/errs"
	"github.com/mensylisir/xmdriver/file"
	"github.com/mensylisir/xmdriver/logger"
	"github.com/mensylisir/xmdriver/report"
)

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`)

func newCollectCmd(a *app) *cobra.Command {
	var (
		dest      string
		overwrite bool
	)

	cmd := &cobra.Command{
		Use:   "collect <hostname> <username> <results-path>",
		Short: "Download the artifacts of a run",
		Long: `Download every remote file whose path starts with <results-path> into
--dest. <results-path> is what an experiment run reported, with or
without the "RESULTS: " prefix.`,
		Args: targetArgs(1, "results-path"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.prepare(cmd, "collect"); err != nil {
				return err
			}
			prefix := args[2]
			if p, ok := report.Parse(prefix); ok {
				prefix = p
			}
			if !strings.HasPrefix(prefix, "/") {
				return errs.NewConfiguration("results-path", "%q is not an absolute remote path", prefix)
			}
			if err := file.CreateDir(dest); err != nil {
				return err
			}

			ctx := cmd.Context()
			conn, err := a.connect(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			defer conn.Close()

			matches, err := conn.Glob(ctx, globEscaper.Replace(prefix)+"*")
			if err != nil {
				return err
			}
			if len(matches) == 0 {
				return errs.NewConfiguration("results-path", "no remote file starts with %s", prefix)
			}

			log := logger.Log.Command("collect")
			fetched := 0
			for _, remote := range matches {
				local := filepath.Join(dest, path.Base(remote))
				exists, err := file.PathExists(local)
				if err != nil {
					return err
				}
				if exists && !overwrite {
					log.Warnf("Skipping %s, %s already exists", remote, local)
					continue
				}
				if err := conn.DownloadFile(ctx, remote, local); err != nil {
					return err
				}
				log.Infof("Fetched %s to %s", remote, local)
				fetched++
			}
			log.Infof("Collected %d of %d files", fetched, len(matches))
			return nil
		},
	}
	cmd.Flags().StringVar(&dest, "dest", ".", "local directory for the downloaded files")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace local files that already exist")
	return cmd
}
