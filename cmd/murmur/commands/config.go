package commands

import (
	"github.com/mosaicnetworks/murmur/src/config"
)

//CLIConfig contains configuration for the Run and Sync commands
type CLIConfig struct {
	Murmur config.Config `mapstructure:",squash"`
}

//NewDefaultCLIConfig creates a CLIConfig with default values
func NewDefaultCLIConfig() *CLIConfig {
	return &CLIConfig{
		Murmur: *config.NewDefaultConfig(),
	}
}
