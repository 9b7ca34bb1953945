package config

import (
	"fmt"
	"log"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"

	"github.com/speedrun-hq/speedrun-executor/pkg/logger"
	"github.com/speedrun-hq/speedrun-executor/pkg/protocol"
)

// Config holds the configuration of the executor
type Config struct {
	OrchestratorURL       string
	OrchestratorAPIKey    string
	OrchestratorRateLimit float64

	Account            AccountConfig
	OwnerPrivateKeys   []string
	OwnerThreshold     uint64
	SessionPrivateKeys []string

	PollInterval           time.Duration
	AcceptPreconfirmations bool

	CompactVersion     protocol.Version
	CompactHookAddress common.Address

	Chains         map[uint64]ChainConfig
	MetricsPort    string
	MetricsAPIKey  string
	CircuitBreaker CircuitBreakerConfig
	LoggerConfig   LoggerConfig

	// TxFile is the transaction JSON the runner executes
	TxFile string
}

// AccountConfig is the smart account the executor signs for
type AccountConfig struct {
	Address     common.Address
	Factory     common.Address
	FactoryData []byte
}

// CircuitBreakerConfig holds circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled        bool
	Threshold      int
	WindowDuration time.Duration
	ResetTimeout   time.Duration
}

// LoggerConfig holds the configuration for logging
type LoggerConfig struct {
	Level    logger.Level
	Coloring bool
}

// Protocol returns the protocol constants of the configured version
func (c *Config) Protocol() protocol.Protocol {
	p := protocol.For(c.CompactVersion)
	if c.CompactHookAddress != (common.Address{}) {
		p = p.WithCompactVerifier(c.CompactHookAddress)
	}
	return p
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}
	return loadFromEnv()
}

func loadFromEnv() (*Config, error) {
	orchestratorURL, err := GetEnvOrchestratorURL()
	if err != nil {
		return nil, err
	}

	rateLimit, err := GetEnvOrchestratorRateLimit()
	if err != nil {
		return nil, err
	}

	account, err := GetEnvAccount()
	if err != nil {
		return nil, err
	}

	ownerThreshold, err := GetEnvOwnerThreshold()
	if err != nil {
		return nil, err
	}

	pollInterval, err := GetEnvPollInterval()
	if err != nil {
		return nil, err
	}

	acceptPreconfirmations, err := GetEnvAcceptPreconfirmations()
	if err != nil {
		return nil, err
	}

	compactVersion, err := GetEnvCompactVersion()
	if err != nil {
		return nil, err
	}

	hookAddress, err := GetEnvCompactHookAddress()
	if err != nil {
		return nil, err
	}

	metricsPort, err := GetEnvMetricsPort()
	if err != nil {
		return nil, err
	}

	cbEnabled, err := GetEnvCircuitBreakerEnabled()
	if err != nil {
		return nil, err
	}

	cbThreshold, err := GetEnvCircuitBreakerThreshold()
	if err != nil {
		return nil, err
	}

	cbWindow, err := GetEnvCircuitBreakerWindow()
	if err != nil {
		return nil, err
	}

	cbReset, err := GetEnvCircuitBreakerReset()
	if err != nil {
		return nil, err
	}

	logLevel, err := GetEnvLogLevel()
	if err != nil {
		return nil, err
	}

	logColoring, err := GetEnvLogColoring()
	if err != nil {
		return nil, err
	}

	chainConfigs, err := GetEnvChainConfigs()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		OrchestratorURL:        orchestratorURL,
		OrchestratorAPIKey:     getEnv("ORCHESTRATOR_API_KEY"),
		OrchestratorRateLimit:  rateLimit,
		Account:                account,
		OwnerPrivateKeys:       GetEnvList("OWNER_PRIVATE_KEYS"),
		OwnerThreshold:         ownerThreshold,
		SessionPrivateKeys:     GetEnvList("SESSION_PRIVATE_KEYS"),
		PollInterval:           pollInterval,
		AcceptPreconfirmations: acceptPreconfirmations,
		CompactVersion:         compactVersion,
		CompactHookAddress:     hookAddress,
		Chains:                 chainConfigs,
		MetricsPort:            metricsPort,
		MetricsAPIKey:          getEnv("METRICS_API_KEY"),
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:        cbEnabled,
			Threshold:      cbThreshold,
			WindowDuration: cbWindow,
			ResetTimeout:   cbReset,
		},
		LoggerConfig: LoggerConfig{
			Level:    logLevel,
			Coloring: logColoring,
		},
		TxFile: getEnv("TX_FILE"),
	}

	// Validate required environment variables
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.Account.Address == (common.Address{}) {
		return fmt.Errorf("ACCOUNT_ADDRESS environment variable is required")
	}
	if len(cfg.OwnerPrivateKeys) == 0 {
		return fmt.Errorf("OWNER_PRIVATE_KEYS environment variable is required")
	}
	if cfg.OwnerThreshold > uint64(len(cfg.OwnerPrivateKeys)) {
		return fmt.Errorf("OWNER_THRESHOLD %d exceeds the %d configured owners", cfg.OwnerThreshold, len(cfg.OwnerPrivateKeys))
	}
	if len(cfg.Chains) == 0 {
		return fmt.Errorf("at least one <CHAIN>_RPC_URL is required")
	}
	return nil
}
