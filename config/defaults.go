package config

import (
	"github.com/mensylisir/xmdriver/common"
	"github.com/mensylisir/xmdriver/connector"
	"github.com/mensylisir/xmdriver/logger"
)

const DefaultLogLevel = "info"

// Default returns the configuration used when no file is given. The key
// directory is left empty when the local home cannot be found.
func Default() *Config {
	keyDir, err := connector.DefaultKeyDir()
	if err != nil {
		logger.Log.Debugf("No local key directory: %v", err)
		keyDir = ""
	}

	return &Config{
		SSH: SSHSpec{
			Port:           common.DefaultSSHPort,
			ConnectTimeout: connector.DefaultTimeout,
			AgentSocket:    connector.DefaultAgentSocket,
			KeyDir:         keyDir,
		},
		Results: ResultsSpec{
			Dir: common.DefaultResultsDir,
		},
		Setup: SetupSpec{
			Packages: append([]string(nil), common.DefaultSetupPackages...),
		},
		Experiment: ExperimentSpec{
			Name: common.DefaultExperimentName,
		},
		Log: LogSpec{
			Level: DefaultLogLevel,
		},
	}
}
