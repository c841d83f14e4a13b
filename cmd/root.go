package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mensylisir/xmdriver/common"
	"github.com/mensylisir/xmdriver/config"
	"github.com/mensylisir/xmdriver/connector"
	"github.com/mensylisir/xmdriver/errs"
	"github.com/mensylisir/xmdriver/executor"
	"github.com/mensylisir/xmdriver/logger"
	"github.com/mensylisir/xmdriver/util"
)

var version = "dev"

// app carries what one invocation shares between its commands.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	// dialer overrides the SSH dialer built from the configuration.
	dialer connector.Dialer

	configPath     string
	logLevel       string
	logDir         string
	verbose        bool
	trace          bool
	identities     []string
	port           int
	connectTimeout time.Duration
	knownHosts     string
	resultsDir     string
	local          bool
	legacyResults  bool

	// started is set once an operation begins; errors before that are
	// argument errors.
	started bool
	runID   string
	cfg     *config.Config
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   common.AppName + " <hostname> <username> <command>",
		Short: "Drive experiments on a remote machine over SSH",
		Long: `xmdriver connects to one remote machine over SSH, provisions it or runs
an experiment on it, and reports the location of the results on stdout
as a single "RESULTS: <path>" line for the job server.

The hostname and username may be given before or after the command:

  xmdriver node1:2222 alice experiment --time 2 --iterations 3
  xmdriver experiment node1:2222 alice --time 2 --iterations 3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return errs.NewConfiguration("command", "a command is required, see --help")
		},
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return errs.NewConfiguration("flags", "%v", err)
	})

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", fmt.Sprintf("configuration file (default %q when present)", common.DefaultConfigFile))
	flags.StringVar(&a.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log every remote command")
	flags.StringVar(&a.logDir, "log-dir", "", "also write rotated log files to this directory")
	flags.BoolVar(&a.trace, "trace", false, "print the stack trace of a failure")
	flags.StringArrayVarP(&a.identities, "identity", "i", nil, "private key file to offer, may be repeated")
	flags.IntVarP(&a.port, "port", "p", 0, "SSH port when the hostname carries none")
	flags.DurationVar(&a.connectTimeout, "connect-timeout", 0, "SSH connect and handshake timeout")
	flags.StringVar(&a.knownHosts, "known-hosts", "", "verify the host key against this known_hosts file")
	flags.StringVar(&a.resultsDir, "results-dir", "", "remote results directory, relative to the remote home")
	flags.BoolVar(&a.local, "local", false, "run the commands on this machine instead of over SSH")
	flags.BoolVar(&a.legacyResults, "print_results_path", false, "accepted for job server compatibility, has no effect")
	_ = flags.MarkHidden("print_results_path")

	root.AddCommand(
		newSetupCmd(a),
		newExperimentCmd(a),
		newCollectCmd(a),
		newMapCmd(a),
	)
	return root
}

// prepare loads the configuration, applies the command line overrides and
// sets up logging. It marks the start of an operation.
func (a *app) prepare(cmd *cobra.Command, command string) error {
	a.started = true

	explicit := cmd.Flags().Changed("config")
	loader := config.NewLoader(util.FirstNonEmpty(a.configPath, common.DefaultConfigFile), !explicit)
	cfg, err := loader.Load()
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("port") {
		cfg.SSH.Port = a.port
	}
	if len(a.identities) > 0 {
		cfg.SSH.Identities = append(cfg.SSH.Identities, a.identities...)
	}
	if cmd.Flags().Changed("connect-timeout") {
		cfg.SSH.ConnectTimeout = a.connectTimeout
	}
	if a.knownHosts != "" {
		cfg.SSH.KnownHosts = a.knownHosts
	}
	if a.resultsDir != "" {
		cfg.Results.Dir = a.resultsDir
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logDir != "" {
		cfg.Log.Dir = a.logDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		return errs.NewConfiguration("log-level", "%v", err)
	}
	a.runID = uuid.NewString()
	if err := logger.InitGlobalLogger(logger.Options{
		Level:      level,
		Verbose:    a.verbose,
		OutputPath: cfg.Log.Dir,
		Console:    a.stderr,
		RunID:      a.runID,
	}); err != nil {
		return errors.Wrap(err, "failed to set up logging")
	}

	a.cfg = cfg
	logger.Log.Command(command).Debugf("%s %s starting", common.AppName, version)
	return nil
}

// connect parses the target and opens the single session of this run.
func (a *app) connect(ctx context.Context, hostname, username string) (connector.Connection, error) {
	host, err := connector.ParseHost(hostname, username, a.cfg.SSH.Port)
	if err != nil {
		return nil, err
	}

	dialer := a.dialer
	switch {
	case dialer != nil:
	case a.local:
		dialer = executor.Dialer{}
	default:
		dialer = connector.NewDialer(a.cfg.SSHConfig(connector.Host{}))
	}
	logger.Log.InfofNode(host.Address, "Connecting to %s", host)
	conn, err := dialer.Dial(ctx, host)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// run executes the command line args and returns the exit status. Failures
// are described on stderr; stdout only ever carries the RESULTS line.
func run(ctx context.Context, a *app, args []string) int {
	root := newRootCmd(a)
	// A nil slice would make cobra fall back to os.Args.
	root.SetArgs(append([]string{}, NormalizeArgs(root, args)...))

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	if !a.started && !errs.IsConfiguration(err) {
		err = errs.NewConfiguration("arguments", "%v", err)
	}
	logger.Log.Debugf("Run %s failed: %v", a.runID, err)
	fmt.Fprint(a.stderr, errs.Describe(err, a.trace))
	return 1
}

// Execute runs the driver with the process arguments and exits.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, &app{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}, os.Args[1:])
	stop()
	os.Exit(code)
}
