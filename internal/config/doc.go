// Package config provides configuration management for the Loom resolution daemon.
//
// The package uses a Provider interface to abstract configuration loading, with the
// primary implementation being filesystem-based configuration via YAML files.
//
// # Configuration Structure
//
// Configuration is structured as follows:
//
//	socket:
//	  path: /var/run/loomd.sock     # Unix domain socket path
//	resolve:
//	  default_timeout: 30s          # Bound for a resolution when the caller gives none
//	pool:
//	  workers: 8                    # Worker goroutines for blocking lookups
//	  queue_size: 64                # Queued lookups before Submit blocks
//	dns:
//	  backend: system               # "system" or "dns"
//	  resolvers: ["1.1.1.1:53"]     # Used by the dns backend
//	  timeout: 5s                   # Timeout for a single DNS query
//	  retries: 1                    # Extra attempts per failed query
//
// # Basic Usage
//
// Load configuration using the default path (~/.loom/config.yaml):
//
//	provider := config.New()
//	cfg, err := provider.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Load configuration from a specific path:
//
//	provider := config.NewWithPath(filesys.OS(), "/etc/loom/config.yaml")
//	cfg, err := provider.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// # Configuration Validation
//
// The package performs validation of loaded configuration:
//   - Socket path must not be empty
//   - Default resolve timeout must not be negative (zero = unbounded)
//   - Pool must have at least one worker and a non-negative queue size
//   - DNS backend must be "system" or "dns"
//   - DNS query timeout must be at least 1 second
//
// # Default Configuration
//
// If no configuration file exists, the following defaults are used:
//   - Socket Path: /var/run/loomd.sock
//   - Default Resolve Timeout: 30 seconds
//   - Pool: 8 workers, queue of 64
//   - DNS: system backend, 5 second query timeout, 1 retry
//
// # Thread Safety
//
// Configuration loading is thread-safe. However, once loaded, the Config
// struct should be treated as immutable. If configuration changes are needed,
// a new Config should be loaded.
//
// # Error Handling
//
// The package defines several error types:
//   - ErrInvalidConfig: Configuration validation failed
//   - ErrNoConfig: Configuration file not found (returns defaults)
//
// The package is designed to be extensible, allowing for additional
// configuration providers to be implemented (e.g., environment variables,
// remote configuration services) by implementing the Provider interface.
package config
