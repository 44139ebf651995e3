package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Realtime  RealtimeConfig
	Chain     ChainConfig
	History   HistoryConfig
	Sanitize  SanitizeConfig

	// Networks is resolved after the environment: the YAML file named by
	// CHAIN_NETWORKS_FILE, or DefaultNetworks.
	Networks []NetworkConfig `ignored:"true"`
}

// ServerConfig holds the local control API settings.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"127.0.0.1"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds per-IP limits for the control API.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"20"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"40"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// RealtimeConfig holds the realtime connection settings.
type RealtimeConfig struct {
	Origin               string        `envconfig:"APP_ORIGIN" default:"http://localhost:3000"`
	URL                  string        `envconfig:"WS_URL"`
	Host                 string        `envconfig:"WS_HOST"`
	Path                 string        `envconfig:"WS_PATH" default:"/ws"`
	MaxReconnectAttempts int           `envconfig:"WS_MAX_RECONNECT" default:"5"`
	ReconnectInterval    time.Duration `envconfig:"WS_RECONNECT_INTERVAL" default:"3s"`
	HandshakeTimeout     time.Duration `envconfig:"WS_HANDSHAKE_TIMEOUT" default:"10s"`
}

// ChainConfig holds wallet and RPC settings.
type ChainConfig struct {
	ChainID      uint64        `envconfig:"CHAIN_ID" default:"31337"`
	NetworksFile string        `envconfig:"CHAIN_NETWORKS_FILE"`
	PrivateKey   string        `envconfig:"WALLET_PRIVATE_KEY"`
	PollInterval time.Duration `envconfig:"CHAIN_POLL_INTERVAL" default:"2s"`
	DialTimeout  time.Duration `envconfig:"CHAIN_DIAL_TIMEOUT" default:"15s"`
}

// HistoryConfig holds the message history REST API settings.
type HistoryConfig struct {
	URL     string        `envconfig:"HISTORY_API_URL"`
	Timeout time.Duration `envconfig:"HISTORY_TIMEOUT" default:"10s"`
	Retries int           `envconfig:"HISTORY_RETRIES" default:"3"`
}

// SanitizeConfig holds message sanitization settings.
type SanitizeConfig struct {
	MaxMessageLength int `envconfig:"MESSAGE_MAX_LENGTH" default:"1000"`
}

// NetworkConfig describes one chain the wallet may switch to.
type NetworkConfig struct {
	Name         string `yaml:"name"`
	ChainID      uint64 `yaml:"chain_id"`
	RPCURL       string `yaml:"rpc_url"`
	ChatContract string `yaml:"chat_contract"`
}

type networksFile struct {
	Networks []NetworkConfig `yaml:"networks"`
}

// DefaultNetworks returns the deployment table of the chat contract.
func DefaultNetworks() []NetworkConfig {
	return []NetworkConfig{
		{
			Name:         "celo",
			ChainID:      42220,
			RPCURL:       "https://forno.celo.org",
			ChatContract: "0x23cdaec75b1c3e5d26db4675ecb3c9042a780a0e",
		},
		{
			Name:         "celoSepolia",
			ChainID:      11142220,
			RPCURL:       "https://forno.celo-sepolia.celo-testnet.org",
			ChatContract: "0x23cdaec75b1c3e5d26db4675ecb3c9042a780a0e",
		},
		{
			Name:         "localhost",
			ChainID:      31337,
			RPCURL:       "http://127.0.0.1:8545",
			ChatContract: "0x5FbDB2315678afecb367f032d93F642f64180aa3",
		},
	}
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	networks := DefaultNetworks()
	if cfg.Chain.NetworksFile != "" {
		loaded, err := LoadNetworks(cfg.Chain.NetworksFile)
		if err != nil {
			return nil, err
		}
		networks = loaded
	}
	cfg.Networks = networks

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// LoadNetworks reads a YAML network table:
//
//	networks:
//	  - name: celo
//	    chain_id: 42220
//	    rpc_url: https://forno.celo.org
//	    chat_contract: "0x23cd..."
func LoadNetworks(path string) ([]NetworkConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read networks file: %w", err)
	}

	var file networksFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse networks file %s: %w", path, err)
	}
	if len(file.Networks) == 0 {
		return nil, fmt.Errorf("networks file %s declares no networks", path)
	}
	return file.Networks, nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "127.0.0.1",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 20,
			Burst:             40,
			Enabled:           true,
		},
		Realtime: RealtimeConfig{
			Origin:               "http://localhost:3000",
			Path:                 "/ws",
			MaxReconnectAttempts: 5,
			ReconnectInterval:    3 * time.Second,
			HandshakeTimeout:     10 * time.Second,
		},
		Chain: ChainConfig{
			ChainID:      31337,
			PollInterval: 2 * time.Second,
			DialTimeout:  15 * time.Second,
		},
		History: HistoryConfig{
			Timeout: 10 * time.Second,
			Retries: 3,
		},
		Sanitize: SanitizeConfig{
			MaxMessageLength: 1000,
		},
		Networks: DefaultNetworks(),
	}
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port == "" {
		errs = append(errs, errors.New("server port is required"))
	}
	if c.Realtime.MaxReconnectAttempts < 0 {
		errs = append(errs, errors.New("WS_MAX_RECONNECT must not be negative"))
	}
	if c.Realtime.ReconnectInterval <= 0 {
		errs = append(errs, errors.New("WS_RECONNECT_INTERVAL must be positive"))
	}
	if c.Sanitize.MaxMessageLength <= 0 {
		errs = append(errs, errors.New("MESSAGE_MAX_LENGTH must be positive"))
	}
	if c.Chain.PollInterval <= 0 {
		errs = append(errs, errors.New("CHAIN_POLL_INTERVAL must be positive"))
	}

	found := false
	seen := make(map[uint64]bool, len(c.Networks))
	for _, n := range c.Networks {
		if seen[n.ChainID] {
			errs = append(errs, fmt.Errorf("duplicate network chain id %d", n.ChainID))
		}
		seen[n.ChainID] = true
		if n.RPCURL == "" {
			errs = append(errs, fmt.Errorf("network %q has no rpc_url", n.Name))
		}
		if n.ChainID == c.Chain.ChainID {
			found = true
		}
	}
	if !found {
		errs = append(errs, fmt.Errorf("CHAIN_ID %d is not in the network table", c.Chain.ChainID))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Network returns the network entry for chainID.
func (c *Config) Network(chainID uint64) (NetworkConfig, bool) {
	for _, n := range c.Networks {
		if n.ChainID == chainID {
			return n, true
		}
	}
	return NetworkConfig{}, false
}
