package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Config represents the complete configuration for BlockStreamor.
type Config struct {
	// Source contains the block source configuration
	Source SourceConfig `yaml:"source" json:"source" toml:"source"`

	// Logging contains the logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging" toml:"logging"`

	// Metrics contains the metrics server configuration (optional)
	Metrics *MetricsConfig `yaml:"metrics" json:"metrics" toml:"metrics"`

	// Retry contains the RPC retry configuration (optional)
	Retry *RetryConfig `yaml:"retry" json:"retry" toml:"retry"`
}

// Source kinds.
const (
	SourceDisk = "disk"
	SourceRPC  = "rpc"
)

// SourceConfig selects and configures the block source.
type SourceConfig struct {
	// Kind selects the source: "disk" scans the node's blk*.dat files,
	// "rpc" pulls blocks from a running node
	Kind string `yaml:"kind" json:"kind" toml:"kind"`

	// BlocksDir is the directory holding the node's blk*.dat files
	// (disk source only)
	BlocksDir string `yaml:"blocks_dir" json:"blocks_dir" toml:"blocks_dir"`

	// RPCURL is the node RPC endpoint, with optional user:password@ for
	// basic auth (rpc source only)
	RPCURL string `yaml:"rpc_url" json:"rpc_url" toml:"rpc_url"`

	// Network selects the chain: "mainnet", "testnet", "regtest" or "signet"
	Network string `yaml:"network" json:"network" toml:"network"`

	// MaxReorgDepth is the confirmation depth the disk reorderer requires
	// before releasing a block
	MaxReorgDepth int `yaml:"max_reorg_depth" json:"max_reorg_depth" toml:"max_reorg_depth"`

	// LastIndexedBlock resumes the RPC fetcher after the given block
	LastIndexedBlock *LastBlockConfig `yaml:"last_indexed_block" json:"last_indexed_block" toml:"last_indexed_block"`
}

// LastBlockConfig identifies the last block a consumer has already indexed.
type LastBlockConfig struct {
	// Height is the block's 0-based height
	Height uint32 `yaml:"height" json:"height" toml:"height"`

	// Hash is the block's hash in hex
	Hash string `yaml:"hash" json:"hash" toml:"hash"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error"
	Level string `yaml:"level" json:"level" toml:"level"`

	// Development enables console encoding and stack traces
	Development bool `yaml:"development" json:"development" toml:"development"`
}

// MetricsConfig configures the Prometheus metrics server.
type MetricsConfig struct {
	// Enabled turns the metrics HTTP server on
	Enabled bool `yaml:"enabled" json:"enabled" toml:"enabled"`

	// ListenAddress is the host:port the server binds to
	ListenAddress string `yaml:"listen_address" json:"listen_address" toml:"listen_address"`

	// Path is the HTTP path serving the metrics
	Path string `yaml:"path" json:"path" toml:"path"`
}

// RetryConfig bounds the per-call retries inside the RPC client. The fetcher
// workers retry failed heights indefinitely on top of this.
type RetryConfig struct {
	// MaxAttempts is the number of attempts per RPC call
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts" toml:"max_attempts"`

	// InitialBackoff is the delay before the second attempt
	InitialBackoff Duration `yaml:"initial_backoff" json:"initial_backoff" toml:"initial_backoff"`

	// BackoffMultiplier grows the delay between attempts
	BackoffMultiplier float64 `yaml:"backoff_multiplier" json:"backoff_multiplier" toml:"backoff_multiplier"`

	// MaxBackoff caps the delay between attempts
	MaxBackoff Duration `yaml:"max_backoff" json:"max_backoff" toml:"max_backoff"`
}

// ApplyDefaults sets default values for optional configuration fields.
func (c *Config) ApplyDefaults() {
	c.Source.ApplyDefaults()

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	if c.Metrics != nil {
		if c.Metrics.ListenAddress == "" {
			c.Metrics.ListenAddress = ":9090"
		}
		if c.Metrics.Path == "" {
			c.Metrics.Path = "/metrics"
		}
	}

	if c.Retry != nil {
		c.Retry.ApplyDefaults()
	}
}

// ApplyDefaults sets default values for optional source configuration fields.
func (s *SourceConfig) ApplyDefaults() {
	if s.Network == "" {
		s.Network = "mainnet"
	}
	if s.MaxReorgDepth == 0 {
		s.MaxReorgDepth = 5
	}
}

// ApplyDefaults sets default values for optional retry configuration fields.
func (r *RetryConfig) ApplyDefaults() {
	if r.MaxAttempts == 0 {
		r.MaxAttempts = 5
	}
	if r.InitialBackoff.Duration == 0 {
		r.InitialBackoff = NewDuration(500 * time.Millisecond)
	}
	if r.BackoffMultiplier == 0 {
		r.BackoffMultiplier = 2.0
	}
	if r.MaxBackoff.Duration == 0 {
		r.MaxBackoff = NewDuration(30 * time.Second)
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Source.Kind {
	case SourceDisk:
		if c.Source.BlocksDir == "" {
			return fmt.Errorf("source.blocks_dir is required for the disk source")
		}
	case SourceRPC:
		if c.Source.RPCURL == "" {
			return fmt.Errorf("source.rpc_url is required for the rpc source")
		}
		if err := validateRPCURL(c.Source.RPCURL); err != nil {
			return err
		}
	default:
		return fmt.Errorf("source.kind must be one of: '%s' or '%s'", SourceDisk, SourceRPC)
	}

	switch c.Source.Network {
	case "mainnet", "testnet", "regtest", "signet":
	default:
		return fmt.Errorf("source.network must be one of: mainnet, testnet, regtest, signet")
	}

	if c.Source.MaxReorgDepth < 1 {
		return fmt.Errorf("source.max_reorg_depth must be a positive integer")
	}

	if lb := c.Source.LastIndexedBlock; lb != nil {
		if _, err := chainhash.NewHashFromStr(lb.Hash); err != nil {
			return fmt.Errorf("source.last_indexed_block.hash is not a valid block hash: %w", err)
		}
	}

	if c.Retry != nil {
		if c.Retry.MaxAttempts < 1 {
			return fmt.Errorf("retry.max_attempts must be a positive integer")
		}
		if c.Retry.BackoffMultiplier < 1 {
			return fmt.Errorf("retry.backoff_multiplier must be >= 1")
		}
	}

	return nil
}

// validateRPCURL enforces the node auth rule: either both username and
// password are present (basic auth) or neither is (no auth).
func validateRPCURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("source.rpc_url is not a valid URL: %w", err)
	}

	user := u.User.Username()
	pass, hasPass := u.User.Password()

	switch {
	case user == "" && !hasPass:
	case user != "" && hasPass && pass != "":
	default:
		return fmt.Errorf("source.rpc_url has incorrect node auth parameters: " +
			"username and password must be both present or both absent")
	}

	return nil
}
