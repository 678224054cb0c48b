package manage

import (
	"strings"
	"time"
)

const (
	defaultInitialWindowConstant               = 400
	defaultMaxWindowConstant                   = 6400
	defaultKeepaliveIntervalConstant           = 60 * time.Second
	projectConfigurationKeyConstant            = "project_config"
	ledgerURLConfigurationKeyConstant          = "ledger_url"
	temporaryDirectoryConfigurationKeyConstant = "temp_dir"
	initialWindowConfigurationKeyConstant      = "initial_window"
	maxWindowConfigurationKeyConstant          = "max_window"
	keepaliveConfigurationKeyConstant          = "keepalive_interval"
	colorConfigurationKeyConstant              = "color"
	configurationKeySeparatorConstant          = "."
)

// CommandConfiguration captures persisted configuration shared by the synchronization commands.
type CommandConfiguration struct {
	// ProjectConfiguration names the default project file, relative to the configuration file.
	ProjectConfiguration string        `mapstructure:"project_config"`
	LedgerURL            string        `mapstructure:"ledger_url"`
	TemporaryDirectory   string        `mapstructure:"temp_dir"`
	InitialWindow        int           `mapstructure:"initial_window"`
	MaxWindow            int           `mapstructure:"max_window"`
	KeepaliveInterval    time.Duration `mapstructure:"keepalive_interval"`
	Color                bool          `mapstructure:"color"`
}

// DefaultCommandConfiguration provides baseline configuration values.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		InitialWindow:     defaultInitialWindowConstant,
		MaxWindow:         defaultMaxWindowConstant,
		KeepaliveInterval: defaultKeepaliveIntervalConstant,
	}
}

// DefaultConfigurationValues returns the defaults keyed below prefix for the configuration loader.
func DefaultConfigurationValues(prefix string) map[string]any {
	defaults := DefaultCommandConfiguration()
	qualify := func(key string) string {
		if len(prefix) == 0 {
			return key
		}
		return prefix + configurationKeySeparatorConstant + key
	}
	return map[string]any{
		qualify(projectConfigurationKeyConstant):            defaults.ProjectConfiguration,
		qualify(ledgerURLConfigurationKeyConstant):          defaults.LedgerURL,
		qualify(temporaryDirectoryConfigurationKeyConstant): defaults.TemporaryDirectory,
		qualify(initialWindowConfigurationKeyConstant):      defaults.InitialWindow,
		qualify(maxWindowConfigurationKeyConstant):          defaults.MaxWindow,
		qualify(keepaliveConfigurationKeyConstant):          defaults.KeepaliveInterval.String(),
		qualify(colorConfigurationKeyConstant):              defaults.Color,
	}
}

// sanitize trims values and restores defaults for non-positive sizes.
func (configuration CommandConfiguration) sanitize() CommandConfiguration {
	defaults := DefaultCommandConfiguration()
	sanitized := configuration
	sanitized.ProjectConfiguration = strings.TrimSpace(configuration.ProjectConfiguration)
	sanitized.LedgerURL = strings.TrimSpace(configuration.LedgerURL)
	sanitized.TemporaryDirectory = strings.TrimSpace(configuration.TemporaryDirectory)
	if sanitized.InitialWindow <= 0 {
		sanitized.InitialWindow = defaults.InitialWindow
	}
	if sanitized.MaxWindow < sanitized.InitialWindow {
		sanitized.MaxWindow = max(defaults.MaxWindow, sanitized.InitialWindow)
	}
	if sanitized.KeepaliveInterval <= 0 {
		sanitized.KeepaliveInterval = defaults.KeepaliveInterval
	}
	return sanitized
}
