// Package config holds the global configuration of os-package-fetcher:
// built-in defaults, overridden by an optional YAML file, overridden by
// command line flags.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
	k8syaml "sigs.k8s.io/yaml"

	"github.com/open-edge-platform/os-package-fetcher/internal/config/validate"
	"github.com/open-edge-platform/os-package-fetcher/internal/ospackage"
)

// DefaultRPMRepos are the repomd repositories used when none are configured.
var DefaultRPMRepos = []string{
	"https://dl.rockylinux.org/pub/rocky/9/BaseOS/x86_64/os/",
	"https://dl.rockylinux.org/pub/rocky/9/AppStream/x86_64/os/",
	"https://dl.rockylinux.org/pub/rocky/9/CRB/x86_64/os/",
	"https://dl.fedoraproject.org/pub/epel/9/Everything/x86_64/",
}

// DefaultDEBRepos are the Debian binary index directories used when none
// are configured.
var DefaultDEBRepos = []string{
	"http://ftp.jp.debian.org/debian/dists/bullseye/main/binary-amd64/",
	"http://ftp.jp.debian.org/debian/dists/bullseye/contrib/binary-amd64/",
}

// GlobalConfig is the complete run configuration.
type GlobalConfig struct {
	Workers   int    `yaml:"workers"`
	DestDir   string `yaml:"dest_dir"`
	ReportDir string `yaml:"report_dir"`

	Logging LoggingConfig   `yaml:"logging"`
	HTTP    HTTPConfig      `yaml:"http"`
	RPM     EcosystemConfig `yaml:"rpm"`
	DEB     EcosystemConfig `yaml:"deb"`
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// HTTPConfig controls the shared client and the retry policy.
type HTTPConfig struct {
	Timeout         time.Duration `yaml:"timeout"`
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialBackoff  time.Duration `yaml:"initial_backoff"`
	MaxBackoff      time.Duration `yaml:"max_backoff"`
	MaxConnsPerHost int           `yaml:"max_conns_per_host"`
}

// EcosystemConfig configures one package ecosystem.
type EcosystemConfig struct {
	Enabled bool     `yaml:"enabled"`
	Arch    string   `yaml:"arch"`
	Repos   []string `yaml:"repos"`
	GPGKey  string   `yaml:"gpg_key"`
}

// DefaultGlobalConfig returns the built-in configuration.
func DefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		Workers: 8,
		DestDir: "downloads",
		Logging: LoggingConfig{Level: "info"},
		HTTP: HTTPConfig{
			Timeout:         60 * time.Second,
			MaxAttempts:     3,
			InitialBackoff:  500 * time.Millisecond,
			MaxBackoff:      30 * time.Second,
			MaxConnsPerHost: 4,
		},
		RPM: EcosystemConfig{
			Enabled: true,
			Arch:    "x86_64",
			Repos:   append([]string(nil), DefaultRPMRepos...),
		},
		DEB: EcosystemConfig{
			Enabled: true,
			Arch:    "amd64",
			Repos:   append([]string(nil), DefaultDEBRepos...),
		},
	}
}

// Load returns the defaults overlaid with the YAML file at path. An empty
// path returns the defaults.
func Load(path string) (*GlobalConfig, error) {
	if path == "" {
		return DefaultGlobalConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg, err := parseYAMLConfig(data)
	if err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// parseYAMLConfig validates data against the schema and decodes it over
// the defaults. Keys absent from data keep their default value.
func parseYAMLConfig(data []byte) (*GlobalConfig, error) {
	cfg := DefaultGlobalConfig()
	if len(strings.TrimSpace(string(data))) == 0 {
		return cfg, nil
	}

	jsonData, err := k8syaml.YAMLToJSON(data)
	if err != nil {
		return nil, fmt.Errorf("invalid YAML format: %w", err)
	}
	if string(jsonData) == "null" {
		return cfg, nil
	}
	if err := validate.ValidateGlobalConfigJSON(jsonData); err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the constraints the schema cannot express.
func (c *GlobalConfig) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.DestDir == "" {
		return fmt.Errorf("destination directory must not be empty")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Logging.Level)
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http timeout must be positive")
	}
	if c.HTTP.MaxAttempts < 1 {
		return fmt.Errorf("http max_attempts must be at least 1")
	}
	if c.HTTP.MaxBackoff < c.HTTP.InitialBackoff {
		return fmt.Errorf("http max_backoff %s is shorter than initial_backoff %s", c.HTTP.MaxBackoff, c.HTTP.InitialBackoff)
	}
	if !c.RPM.Enabled && !c.DEB.Enabled {
		return fmt.Errorf("at least one of rpm and deb must be enabled")
	}
	for _, eco := range []struct {
		name string
		cfg  EcosystemConfig
	}{{"rpm", c.RPM}, {"deb", c.DEB}} {
		if !eco.cfg.Enabled {
			continue
		}
		if eco.cfg.Arch == "" {
			return fmt.Errorf("%s architecture must not be empty", eco.name)
		}
		if len(eco.cfg.Repos) == 0 {
			return fmt.Errorf("%s is enabled but has no repositories", eco.name)
		}
	}
	return nil
}

// Ecosystem returns the block configuring eco.
func (c *GlobalConfig) Ecosystem(eco ospackage.Ecosystem) *EcosystemConfig {
	if eco == ospackage.DEB {
		return &c.DEB
	}
	return &c.RPM
}

// Enabled lists the enabled ecosystems in resolution order.
func (c *GlobalConfig) Enabled() []ospackage.Ecosystem {
	var out []ospackage.Ecosystem
	if c.RPM.Enabled {
		out = append(out, ospackage.RPM)
	}
	if c.DEB.Enabled {
		out = append(out, ospackage.DEB)
	}
	return out
}
