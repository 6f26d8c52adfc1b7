// Package config loads the YAML configuration file for recira-controllerd.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where recira-controllerd looks for its config when
// --config is not given.
const DefaultPath = "/etc/recira/controller.yaml"

// Config is the daemon's top-level configuration.
type Config struct {
	BindAddr  string `yaml:"bind_addr"`
	StaticDir string `yaml:"static_dir"`

	State   StatePaths `yaml:"state"`
	Timeout Timeouts   `yaml:"timeouts"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // "text" or "json"

	Audit AuditConfig `yaml:"audit"`
}

// StatePaths overrides the default persistence file paths each manager
// uses. Empty fields fall back to the managers' own defaults
// (/tmp/recira-{hosts,tunnels,networks,dhcp}.json).
type StatePaths struct {
	Hosts    string `yaml:"hosts"`
	Tunnels  string `yaml:"tunnels"`
	Networks string `yaml:"networks"`
	DHCP     string `yaml:"dhcp"`
}

// Timeouts configures default remote-exec timeouts.
type Timeouts struct {
	Short   time.Duration `yaml:"short_timeout"`
	Install time.Duration `yaml:"install_timeout"`
}

// AuditConfig configures the audit trail.
type AuditConfig struct {
	LogPath    string `yaml:"log_path"`
	MaxSizeMB  int64  `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`

	// RedisAddr, when set, fans audit events out to Redis pub/sub in
	// addition to the file log.
	RedisAddr string `yaml:"redis_addr"`
}

func defaults() *Config {
	return &Config{
		BindAddr: ":8080",
		Timeout: Timeouts{
			Short:   60 * time.Second,
			Install: 300 * time.Second,
		},
		LogLevel:  "info",
		LogFormat: "text",
		Audit: AuditConfig{
			LogPath:    "/var/log/recira/audit.log",
			MaxSizeMB:  10,
			MaxBackups: 10,
		},
	}
}

// Load reads and parses the config file at path, applying defaults for
// anything left unset. A missing file is not an error: the daemon runs
// on defaults alone.
func Load(path string) (*Config, error) {
	c := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	applyDefaults(c)
	return c, nil
}

// applyDefaults fills in any zero-value fields the YAML document left
// unset, mirroring the base values from defaults() field by field.
func applyDefaults(c *Config) {
	base := defaults()

	if c.BindAddr == "" {
		c.BindAddr = base.BindAddr
	}
	if c.Timeout.Short == 0 {
		c.Timeout.Short = base.Timeout.Short
	}
	if c.Timeout.Install == 0 {
		c.Timeout.Install = base.Timeout.Install
	}
	if c.LogLevel == "" {
		c.LogLevel = base.LogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = base.LogFormat
	}
	if c.Audit.LogPath == "" {
		c.Audit.LogPath = base.Audit.LogPath
	}
	if c.Audit.MaxSizeMB == 0 {
		c.Audit.MaxSizeMB = base.Audit.MaxSizeMB
	}
	if c.Audit.MaxBackups == 0 {
		c.Audit.MaxBackups = base.Audit.MaxBackups
	}
}
