// Package config provides configuration loading and validation for the Loom application.
// It handles reading configuration from files, providing defaults, and ensuring
// all required settings are properly set.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lc/loom/internal/filesys"
)

var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrNoConfig is returned when the configuration file is not found.
	ErrNoConfig = errors.New("configuration file not found")
)

// Backend names accepted for dns.backend.
const (
	BackendSystem = "system"
	BackendDNS    = "dns"
)

const (
	// DefaultSocketPath is the default path for the Unix socket.
	DefaultSocketPath = "/var/run/loomd.sock"
	// DefaultConfigPath is the default path for the configuration file.
	DefaultConfigPath = ".loom/config.yaml"
	// DefaultResolveTimeout is the default bound for a resolution.
	DefaultResolveTimeout = 30 * time.Second
	// DefaultWorkers is the default worker-pool size.
	DefaultWorkers = 8
	// DefaultQueueSize is the default worker-pool queue capacity.
	DefaultQueueSize = 64
	// DefaultDNSTimeout is the default timeout for a single DNS query.
	DefaultDNSTimeout = 5 * time.Second
	// DefaultDNSRetries is the default number of extra query attempts.
	DefaultDNSRetries = 1
)

// Config holds the application configuration.
type Config struct {
	Socket  SocketConfig  `yaml:"socket"`
	Resolve ResolveConfig `yaml:"resolve"`
	Pool    PoolConfig    `yaml:"pool"`
	DNS     DNSConfig     `yaml:"dns"`
}

// SocketConfig holds socket-related configuration.
type SocketConfig struct {
	Path string `yaml:"path"`
}

// ResolveConfig holds resolution-related configuration.
type ResolveConfig struct {
	// DefaultTimeout bounds a resolution when the caller does not supply
	// its own bound. Zero means resolutions are bounded only by the
	// worker outcome.
	DefaultTimeout time.Duration `yaml:"default_timeout"`
}

// PoolConfig holds worker-pool configuration.
type PoolConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
}

// DNSConfig holds blocking-lookup backend configuration.
type DNSConfig struct {
	// Backend selects the blocking lookup: "system" or "dns".
	Backend   string        `yaml:"backend"`
	Resolvers []string      `yaml:"resolvers"`
	Timeout   time.Duration `yaml:"timeout"`
	Retries   uint          `yaml:"retries"`
}

// Provider defines the interface for loading configuration.
type Provider interface {
	Load() (*Config, error)
}

// FSProvider implements Provider using the local filesystem.
type FSProvider struct {
	fs   filesys.ReadWriteFS
	path string
}

// Verify FSProvider implements Provider interface.
var _ Provider = (*FSProvider)(nil)

// New creates a new configuration provider using the default configuration path.
// It uses the OS filesystem and the user's home directory to locate the configuration file.
// If the home directory cannot be determined, it falls back to the current directory.
func New() Provider {
	home, err := os.UserHomeDir()
	if err != nil {
		// Log the error but continue with empty path, which will resolve to current directory
		fmt.Fprintf(os.Stderr, "Warning: could not determine home directory: %v\n", err)
		home = ""
	}
	return NewWithPath(filesys.OS(), filepath.Join(home, DefaultConfigPath))
}

// NewWithPath creates a new provider with a specific config path.
// It allows specifying both the filesystem implementation and the path to use.
func NewWithPath(fs filesys.ReadWriteFS, path string) Provider {
	return &FSProvider{
		fs:   fs,
		path: path,
	}
}

// Default returns a default configuration with preset values.
// This is used when no configuration file exists.
func Default() *Config {
	return &Config{
		Socket: SocketConfig{
			Path: DefaultSocketPath,
		},
		Resolve: ResolveConfig{
			DefaultTimeout: DefaultResolveTimeout,
		},
		Pool: PoolConfig{
			Workers:   DefaultWorkers,
			QueueSize: DefaultQueueSize,
		},
		DNS: DNSConfig{
			Backend: BackendSystem,
			Timeout: DefaultDNSTimeout,
			Retries: DefaultDNSRetries,
		},
	}
}

// Load loads the configuration from the specified path.
func (p *FSProvider) Load() (*Config, error) {
	_ = p.ensureConfigDir()

	cfg, err := p.loadAndParse()
	if err != nil {
		if errors.Is(err, ErrNoConfig) {
			return Default(), nil
		}
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return cfg, nil
}

// Validate checks the configuration to ensure all required fields are set.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Socket.Path) == "" {
		return errors.New("socket path cannot be empty")
	}
	if c.Resolve.DefaultTimeout < 0 {
		return errors.New("default resolve timeout cannot be negative")
	}
	if c.Pool.Workers < 1 {
		return errors.New("pool must have at least 1 worker")
	}
	if c.Pool.QueueSize < 0 {
		return errors.New("pool queue size cannot be negative")
	}
	if c.DNS.Backend != BackendSystem && c.DNS.Backend != BackendDNS {
		return fmt.Errorf("dns backend must be %q or %q", BackendSystem, BackendDNS)
	}
	if c.DNS.Timeout < time.Second {
		return errors.New("DNS timeout must be at least 1 second")
	}
	return nil
}

func (p *FSProvider) ensureConfigDir() error {
	dir := filepath.Dir(p.path)
	if _, err := p.fs.Stat(dir); os.IsNotExist(err) {
		if err := p.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}
	return nil
}

func (p *FSProvider) loadAndParse() (*Config, error) {
	f, err := p.fs.Open(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoConfig
		}
		return nil, fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config file: %w", err)
	}

	return &cfg, nil
}
