package config

import (
	"bytes"
	"io"
	"os"

	"dario.cat/mergo"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/mensylisir/xmdriver/errs"
	"github.com/mensylisir/xmdriver/logger"
)

// Loader handles loading the configuration file and filling in defaults.
type Loader struct {
	filePath string
	optional bool
}

// NewLoader creates a loader for filePath. A missing optional file is the
// same as an empty one.
func NewLoader(filePath string, optional bool) *Loader {
	return &Loader{
		filePath: filePath,
		optional: optional,
	}
}

// Load reads the file, applies defaults for everything it leaves out and
// validates the result.
func (l *Loader) Load() (*Config, error) {
	cfg := &Config{}

	content, err := l.read()
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(content)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(content))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && err != io.EOF {
			return nil, errs.NewConfiguration("config", "failed to parse %s: %v", l.filePath, err)
		}
	}

	if err := mergo.Merge(cfg, Default()); err != nil {
		return nil, errors.Wrap(err, "failed to apply configuration defaults")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) read() ([]byte, error) {
	if l.filePath == "" {
		if l.optional {
			return nil, nil
		}
		return nil, errs.NewConfiguration("config", "configuration file path is empty")
	}

	content, err := os.ReadFile(l.filePath)
	if err != nil {
		if os.IsNotExist(err) && l.optional {
			logger.Log.Debugf("No configuration file at %s, using defaults", l.filePath)
			return nil, nil
		}
		return nil, errs.NewConfiguration("config", "failed to read %s: %v", l.filePath, err)
	}
	logger.Log.Debugf("Loaded configuration from %s", l.filePath)
	return content, nil
}
