package common

import (
	"io/fs"
)

const (
	AppName = "xmdriver"
)

// Log field keys. The formatter prints them in this order.
const (
	RunID          = "Run"
	CommandName    = "Command"
	NodeName       = "Node"
	ExperimentName = "Experiment"
	StepIndex      = "Step"
)

const (
	// FileMode0755 represents rwxr-xr-x
	FileMode0755 fs.FileMode = 0755
	// FileMode0644 represents rw-r--r--
	FileMode0644 fs.FileMode = 0644
	// FileMode0600 represents rw-------
	FileMode0600 fs.FileMode = 0600
)

const (
	DefaultSSHPort = 22

	// DefaultResultsDir is created under the remote user's home.
	DefaultResultsDir = "results"

	// ResultsPrefix starts the single stdout line the job server greps for.
	ResultsPrefix = "RESULTS: "

	DefaultExperimentName = "demo_experiment"
	DefaultConfigFile     = "xmdriver.yaml"
)

// DefaultSetupPackages is the apt dependency set installed by setup.
var DefaultSetupPackages = []string{
	"build-essential",
	"bison",
	"flex",
}

// Artifact roles understood by the job server's mapper.
const (
	RoleParams = "params"
	RoleTime   = "time"
)
