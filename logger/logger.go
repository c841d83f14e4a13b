package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/pkg/errors"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"

	"github.com/mensylisir/xmdriver/common"
)

// Log is the process-wide logger. It is usable before InitGlobalLogger runs
// and then writes warnings and errors to stderr.
var Log = defaultLog()

// XMLog wraps logrus.Logger with helpers that attach the driver's standard
// fields.
type XMLog struct {
	*logrus.Logger
}

// Options configures a logger.
type Options struct {
	Level   logrus.Level
	Verbose bool
	// OutputPath enables rotated file logging in this directory in addition
	// to the console.
	OutputPath string
	// Console receives human readable output. Defaults to os.Stderr, stdout
	// belongs to the result protocol.
	Console io.Writer
	// RunID is attached to every entry when set.
	RunID string
}

var fieldsOrder = []string{
	common.RunID, common.CommandName, common.NodeName, common.ExperimentName, common.StepIndex,
}

func defaultLog() *XMLog {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.WarnLevel)
	l.SetFormatter(&Formatter{
		TimestampFormat:        "15:04:05",
		DisplayLevelName:       ShowAboveWarn,
		DisableCaller:          true,
		FieldsDisplayWithOrder: fieldsOrder,
	})
	return &XMLog{Logger: l}
}

// InitGlobalLogger replaces Log with a logger built from opts.
func InitGlobalLogger(opts Options) error {
	l, err := NewXMLog(opts)
	if err != nil {
		return err
	}
	Log = l
	return nil
}

func NewXMLog(opts Options) (*XMLog, error) {
	l := logrus.New()

	level := opts.Level
	if opts.Verbose {
		level = logrus.DebugLevel
	}
	l.SetLevel(level)
	l.SetReportCaller(true)

	display := ShowAboveWarn
	if opts.Verbose {
		display = ShowAll
	}

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	l.SetOutput(console)
	l.SetFormatter(&Formatter{
		TimestampFormat:        "15:04:05",
		DisplayLevelName:       display,
		DisableCaller:          true,
		FieldsDisplayWithOrder: fieldsOrder,
		NoColors:               console != os.Stderr || os.Getenv("NO_COLOR") != "",
		MaxFieldValueLength:    512,
	})

	if opts.OutputPath != "" {
		hook, err := newFileHook(opts.OutputPath, display)
		if err != nil {
			return nil, err
		}
		l.AddHook(hook)
	}

	if opts.RunID != "" {
		l.AddHook(&staticFieldsHook{fields: logrus.Fields{common.RunID: opts.RunID}})
	}

	return &XMLog{Logger: l}, nil
}

func newFileHook(dir string, display LevelNameDisplayMode) (logrus.Hook, error) {
	if err := os.MkdirAll(dir, common.FileMode0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create log output directory %s", dir)
	}
	logFile := filepath.Join(dir, common.AppName+".log")

	writer, err := rotatelogs.New(
		logFile+".%Y%m%d",
		rotatelogs.WithLinkName(logFile),
		rotatelogs.WithMaxAge(7*24*time.Hour),
		rotatelogs.WithRotationTime(24*time.Hour),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to initialize rotatelogs for %s", logFile)
	}

	formatter := &Formatter{
		TimestampFormat:        "2006-01-02 15:04:05.000 MST",
		NoColors:               true,
		DisplayLevelName:       display,
		FieldsDisplayWithOrder: fieldsOrder,
		CustomCallerFormatter: func(frame *runtime.Frame) string {
			return fmt.Sprintf("[%s:%d]", filepath.Base(frame.File), frame.Line)
		},
	}

	writers := lfshook.WriterMap{}
	for _, level := range logrus.AllLevels {
		writers[level] = writer
	}
	return lfshook.NewHook(writers, formatter), nil
}

// staticFieldsHook adds the same fields to every entry.
type staticFieldsHook struct {
	fields logrus.Fields
}

func (h *staticFieldsHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *staticFieldsHook) Fire(entry *logrus.Entry) error {
	for k, v := range h.fields {
		if _, ok := entry.Data[k]; !ok {
			entry.Data[k] = v
		}
	}
	return nil
}

// Command returns an entry scoped to a CLI subcommand.
func (xl *XMLog) Command(name string) *logrus.Entry {
	return xl.WithField(common.CommandName, name)
}

// Node returns an entry scoped to a remote host.
func (xl *XMLog) Node(name string) *logrus.Entry {
	return xl.WithField(common.NodeName, name)
}

// Experiment returns an entry scoped to one experiment run.
func (xl *XMLog) Experiment(name string) *logrus.Entry {
	return xl.WithField(common.ExperimentName, name)
}

// Step returns an entry for the i-th command of a sequence.
func (xl *XMLog) Step(i int) *logrus.Entry {
	return xl.WithField(common.StepIndex, i)
}

func (xl *XMLog) InfofNode(node, format string, args ...interface{}) {
	xl.Node(node).Infof(format, args...)
}

func (xl *XMLog) WarnfNode(node, format string, args ...interface{}) {
	xl.Node(node).Warnf(format, args...)
}

func (xl *XMLog) DebugfNode(node, format string, args ...interface{}) {
	xl.Node(node).Debugf(format, args...)
}

func (xl *XMLog) InfofExperiment(experiment, format string, args ...interface{}) {
	xl.Experiment(experiment).Infof(format, args...)
}

func (xl *XMLog) DebugfStep(i int, format string, args ...interface{}) {
	xl.Step(i).Debugf(format, args...)
}
