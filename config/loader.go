package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	mserrors "github.com/AltairaLabs/mediasession/errors"
	"github.com/AltairaLabs/mediasession/version"
)

const component = "config"

// Load reads, validates and defaults a SessionConfig manifest.
func Load(filename string) (*SessionConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse validates and defaults a SessionConfig manifest held in memory.
// Schema violations and unsatisfied minClientVersion constraints are
// ConfigurationConflict errors.
func Parse(data []byte) (*SessionConfig, error) {
	if err := Validate(data); err != nil {
		return nil, mserrors.New(mserrors.KindConfigurationConflict, component, "Parse", err)
	}

	var cfg SessionConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := CheckClientVersion(cfg.Spec.MinClientVersion); err != nil {
		return nil, err
	}

	cfg.Spec.ApplyDefaults()
	return &cfg, nil
}

// CheckClientVersion fails when the running build does not satisfy constraint.
// An empty constraint always passes.
func CheckClientVersion(constraint string) error {
	if constraint == "" {
		return nil
	}
	ok, err := version.SatisfiesConstraint(constraint)
	if err != nil {
		return mserrors.New(mserrors.KindConfigurationConflict, component, "CheckClientVersion", err)
	}
	if !ok {
		return mserrors.Newf(mserrors.KindConfigurationConflict, component, "CheckClientVersion",
			"client version %s does not satisfy %q", version.GetVersion(), constraint)
	}
	return nil
}
