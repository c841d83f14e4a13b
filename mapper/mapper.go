// Package mapper turns the artifacts of a finished experiment into the JSON
// summary row the job server tabulates. It runs on the machine that
// collected the artifacts and never talks to the experiment host.
package mapper

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/mensylisir/xmdriver/common"
	"github.com/mensylisir/xmdriver/errs"
	"github.com/mensylisir/xmdriver/logger"
)

// Job is one line of the job server's input.
type Job struct {
	JID         json.RawMessage `json:"jid"`
	ResultsPath string          `json:"results_path"`
}

// Summary is written as a single JSON object. Values are kept as text the
// way they appear in the artifacts.
type Summary struct {
	IterationTime   string          `json:"Iteration Time (s)"`
	Iterations      string          `json:"Iterations"`
	Runtime         string          `json:"Runtime (s)"`
	JobID           json.RawMessage `json:"Job ID"`
	ResultsLocation string          `json:"Results Location"`
}

// ReadJob returns the last job in r. Blank lines are skipped; every other
// line must be a JSON object.
func ReadJob(r io.Reader) (*Job, error) {
	var last *Job
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for n := 1; sc.Scan(); n++ {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		job := &Job{}
		if err := json.Unmarshal(line, job); err != nil {
			return nil, errs.NewSerialization("job", errors.Wrapf(err, "line %d", n))
		}
		last = job
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read jobs")
	}
	if last == nil {
		return nil, errs.NewConfiguration("job", "no job on input")
	}
	if last.ResultsPath == "" {
		return nil, errs.NewConfiguration("results_path", "missing in job %s", string(last.JID))
	}
	if len(last.JID) == 0 {
		last.JID = json.RawMessage("null")
	}
	return last, nil
}

// Summarize reads <prefix>params and <prefix>time of job.
func Summarize(job *Job) (*Summary, error) {
	paramsFile := job.ResultsPath + common.RoleParams
	timeFile := job.ResultsPath + common.RoleTime
	logger.Log.Debugf("Summarizing %s and %s", paramsFile, timeFile)

	data, err := os.ReadFile(paramsFile)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read parameters of job %s", string(job.JID))
	}
	params := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &params); err != nil {
		return nil, errs.NewSerialization("parameters", errors.Wrap(err, paramsFile))
	}
	iterTime, err := textValue(params, "time")
	if err != nil {
		return nil, errs.NewSerialization("parameters", errors.Wrap(err, paramsFile))
	}
	iterations, err := textValue(params, "iterations")
	if err != nil {
		return nil, errs.NewSerialization("parameters", errors.Wrap(err, paramsFile))
	}

	runtime, err := firstLine(timeFile)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read runtime of job %s", string(job.JID))
	}

	return &Summary{
		IterationTime:   iterTime,
		Iterations:      iterations,
		Runtime:         runtime,
		JobID:           job.JID,
		ResultsLocation: job.ResultsPath,
	}, nil
}

// Map reads jobs from in and writes the summary of the last one to out.
func Map(in io.Reader, out io.Writer) error {
	job, err := ReadJob(in)
	if err != nil {
		return err
	}
	s, err := Summarize(job)
	if err != nil {
		return err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return errs.NewSerialization("summary", err)
	}
	if _, err := out.Write(append(data, '\n')); err != nil {
		return errors.Wrap(err, "failed to write summary")
	}
	return nil
}

// textValue renders a JSON scalar as plain text: strings lose their quotes,
// numbers keep their literal form.
func textValue(m map[string]json.RawMessage, key string) (string, error) {
	raw, ok := m[key]
	if !ok {
		return "", errors.Errorf("missing key %q", key)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	return strings.TrimSpace(string(raw)), nil
}

func firstLine(p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()

	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
