package config

import (
	"time"

	"github.com/mensylisir/xmdriver/connector"
	"github.com/mensylisir/xmdriver/errs"
	"github.com/mensylisir/xmdriver/experiment"
	"github.com/mensylisir/xmdriver/output"
	"github.com/mensylisir/xmdriver/util"
)

// Config is the optional driver configuration file. Every field has a
// default, and command line flags override what the file says.
type Config struct {
	SSH        SSHSpec        `yaml:"ssh"`
	Results    ResultsSpec    `yaml:"results"`
	Setup      SetupSpec      `yaml:"setup"`
	Experiment ExperimentSpec `yaml:"experiment"`
	Log        LogSpec        `yaml:"log"`
}

// SSHSpec configures how the remote session is established.
type SSHSpec struct {
	Port           int           `yaml:"port,omitempty"`
	Identities     []string      `yaml:"identities,omitempty"`
	KnownHosts     string        `yaml:"knownHosts,omitempty"`
	ConnectTimeout time.Duration `yaml:"connectTimeout,omitempty"`
	// AgentSocket is a socket path or env:NAME. "none" disables the agent.
	AgentSocket string `yaml:"agentSocket,omitempty"`
	// KeyDir is scanned for unencrypted private keys. "none" disables it.
	KeyDir string `yaml:"keyDir,omitempty"`
}

type ResultsSpec struct {
	// Dir is relative to the remote home unless absolute.
	Dir string `yaml:"dir,omitempty"`
}

type SetupSpec struct {
	Packages []string `yaml:"packages,omitempty"`
}

type ExperimentSpec struct {
	Name string `yaml:"name,omitempty"`
}

type LogSpec struct {
	Level string `yaml:"level,omitempty"`
	Dir   string `yaml:"dir,omitempty"`
}

// Disabled turns off the agent or the key directory scan.
const Disabled = "none"

// Validate reports the first invalid field as an *errs.ConfigurationError.
func (c *Config) Validate() error {
	if c.SSH.Port <= 0 || c.SSH.Port > 65535 {
		return errs.NewConfiguration("ssh.port", "%d is not a valid port", c.SSH.Port)
	}
	if c.SSH.ConnectTimeout < 0 {
		return errs.NewConfiguration("ssh.connectTimeout", "must not be negative")
	}
	if err := output.ValidDir(c.Results.Dir); err != nil {
		return err
	}
	if len(util.UniqueStrings(c.Setup.Packages)) != len(c.Setup.Packages) {
		return errs.NewConfiguration("setup.packages", "empty or duplicate entry in %q", c.Setup.Packages)
	}
	if err := experiment.ValidIdentity(c.Experiment.Name); err != nil {
		return err
	}
	return nil
}

// SSHConfig returns the connector configuration for host.
func (c *Config) SSHConfig(host connector.Host) connector.Config {
	cfg := connector.Config{
		Username:       host.User,
		Address:        host.Address,
		Port:           host.Port,
		KeyFiles:       append([]string(nil), c.SSH.Identities...),
		KnownHostsFile: c.SSH.KnownHosts,
		Timeout:        c.SSH.ConnectTimeout,
	}
	if c.SSH.AgentSocket != Disabled {
		cfg.AgentSocket = c.SSH.AgentSocket
	}
	if c.SSH.KeyDir != Disabled {
		cfg.ScanKeyDir = c.SSH.KeyDir
	}
	return cfg
}
