package pages

import "github.com/goliatone/go-pages/internal/runtimeconfig"

// Config is the root engine configuration.
type Config = runtimeconfig.Config

// StoreConfig describes one configured store.
type StoreConfig = runtimeconfig.StoreConfig

// DefaultConfig returns the baseline configuration with no stores.
func DefaultConfig() Config {
	return runtimeconfig.DefaultConfig()
}

// LoadConfig reads and validates a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	return runtimeconfig.Load(path)
}
