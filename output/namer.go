// Package output names the artifacts of an experiment run on the remote host
// and writes them there.
package output

import (
	"context"
	"path"
	"regexp"
	"strings"

	"github.com/mensylisir/xmdriver/errs"
	"github.com/mensylisir/xmdriver/experiment"
	"github.com/mensylisir/xmdriver/logger"
	"github.com/mensylisir/xmdriver/runner"
	"github.com/mensylisir/xmdriver/shell"
)

// StampLayout renders the descriptor timestamp in file names. It is fixed
// width, sorts in time order and keeps microseconds.
const StampLayout = "20060102-150405.000000"

var rolePattern = regexp.MustCompile(`^[A-Za-z0-9_-]*$`)

// FileName returns "<identity>_<stamp>.<role>". Only the identity and
// timestamp of d are used, so two descriptors that differ only in their
// parameters share names. With an empty role the result is the base name of
// the whole result set and a strict prefix of every other role's name.
func FileName(d *experiment.Descriptor, role string) string {
	return d.Identity() + "_" + Stamp(d) + "." + role
}

// Stamp is the timestamp part of the file names of d.
func Stamp(d *experiment.Descriptor) string {
	return strings.Replace(d.Timestamp().UTC().Format(StampLayout), ".", "-", 1)
}

// Namer places artifact files in one remote directory.
type Namer struct {
	Dir string

	runner runner.Runner
}

// ValidDir checks a results directory name before anything is run with it.
// The name ends up in the RESULTS line, so line breaks are refused.
func ValidDir(dirName string) error {
	if strings.TrimSpace(dirName) == "" {
		return errs.NewConfiguration("results-dir", "must not be empty")
	}
	if strings.ContainsAny(dirName, "\r\n\x00") {
		return errs.NewConfiguration("results-dir", "%q contains a control character", dirName)
	}
	return nil
}

// NewNamer returns a namer for dirName under home. An absolute dirName is
// used as is.
func NewNamer(r runner.Runner, home, dirName string) (*Namer, error) {
	if err := ValidDir(dirName); err != nil {
		return nil, err
	}
	dir := dirName
	if !path.IsAbs(dirName) {
		if home == "" {
			return nil, errs.NewConfiguration("results-dir", "relative directory %q needs a home directory", dirName)
		}
		dir = path.Join(home, dirName)
	}
	return &Namer{Dir: path.Clean(dir), runner: r}, nil
}

// Path returns the full remote path of the role artifact of d.
func (n *Namer) Path(d *experiment.Descriptor, role string) (string, error) {
	if !rolePattern.MatchString(role) {
		return "", errs.NewConfiguration("role", "%q must match %s", role, rolePattern)
	}
	return n.Dir + "/" + FileName(d, role), nil
}

// Base is Path(d, ""), the location reported to the job server.
func (n *Namer) Base(d *experiment.Descriptor) string {
	return n.Dir + "/" + FileName(d, "")
}

// EnsureDir creates the directory if it is missing. Calling it again is
// harmless.
func (n *Namer) EnsureDir(ctx context.Context) error {
	logger.Log.Debugf("Ensuring results directory %s", n.Dir)
	_, err := n.runner.Run(ctx, shell.New("mkdir -p", n.Dir))
	return err
}
