// Package report implements the one-line stdout protocol the job server reads
// to learn which remote artifacts to collect.
package report

import (
	"io"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/mensylisir/xmdriver/common"
)

var errAlreadyReported = errors.New("results were already reported for this run")

// Reporter writes at most one RESULTS line.
type Reporter struct {
	mu   sync.Mutex
	w    io.Writer
	done bool
}

func New(w io.Writer) *Reporter {
	return &Reporter{w: w}
}

// Report writes "RESULTS: <p>\n". It fails for an empty path, a path that
// would break the line, or when a line was already written.
func (r *Reporter) Report(p string) error {
	if p == "" {
		return errors.New("refusing to report an empty results path")
	}
	if strings.ContainsAny(p, "\r\n") {
		return errors.Errorf("results path %q contains a line break", p)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return errors.WithStack(errAlreadyReported)
	}
	r.done = true

	if _, err := io.WriteString(r.w, common.ResultsPrefix+p+"\n"); err != nil {
		return errors.Wrap(err, "failed to write results line")
	}
	return nil
}

// Parse returns the path of a RESULTS line. A trailing newline is allowed;
// anything else before the prefix is not.
func Parse(line string) (string, bool) {
	line = strings.TrimSuffix(line, "\n")
	if !strings.HasPrefix(line, common.ResultsPrefix) {
		return "", false
	}
	p := strings.TrimPrefix(line, common.ResultsPrefix)
	if p == "" || strings.ContainsAny(p, "\r\n") {
		return "", false
	}
	return p, true
}

// Find scans output for RESULTS lines and returns the paths in order.
func Find(output string) []string {
	var paths []string
	for _, line := range strings.Split(output, "\n") {
		if p, ok := Parse(line); ok {
			paths = append(paths, p)
		}
	}
	return paths
}
