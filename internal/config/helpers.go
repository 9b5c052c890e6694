package config

import (
	"path/filepath"

	"github.com/open-edge-platform/os-package-fetcher/internal/utils/network"
)

// ConfigHelpers provides convenient access to global configuration
type ConfigHelpers struct {
	config *GlobalConfig
}

// NewConfigHelpers creates a new config helpers instance
func NewConfigHelpers(config *GlobalConfig) *ConfigHelpers {
	return &ConfigHelpers{config: config}
}

// Workers returns the number of concurrent download workers
func (c *ConfigHelpers) Workers() int {
	return c.config.Workers
}

// DestDir returns the absolute path to the download directory
func (c *ConfigHelpers) DestDir() (string, error) {
	return filepath.Abs(c.config.DestDir)
}

// ReportDir returns the directory for run reports, the download
// directory when unset.
func (c *ConfigHelpers) ReportDir() (string, error) {
	if c.config.ReportDir == "" {
		return c.DestDir()
	}
	return filepath.Abs(c.config.ReportDir)
}

// LogLevel returns the configured log level
func (c *ConfigHelpers) LogLevel() string {
	return c.config.Logging.Level
}

// IsDebugMode returns true if debug logging is enabled
func (c *ConfigHelpers) IsDebugMode() bool {
	return c.config.Logging.Level == "debug"
}

// GetConfig returns the underlying global config (for advanced usage)
func (c *ConfigHelpers) GetConfig() *GlobalConfig {
	return c.config
}

// RetryPolicy returns the retry settings of the http block.
func (c *ConfigHelpers) RetryPolicy() network.RetryPolicy {
	return network.RetryPolicy{
		MaxAttempts:     c.config.HTTP.MaxAttempts,
		InitialInterval: c.config.HTTP.InitialBackoff,
		MaxInterval:     c.config.HTTP.MaxBackoff,
	}
}

// ClientOptions returns the shared client settings for proxy.
func (c *ConfigHelpers) ClientOptions(proxy network.ProxyConfig) network.ClientOptions {
	return network.ClientOptions{
		Proxy:           proxy,
		Timeout:         c.config.HTTP.Timeout,
		MaxConnsPerHost: c.config.HTTP.MaxConnsPerHost,
	}
}
