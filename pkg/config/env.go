package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/speedrun-hq/speedrun-executor/pkg/logger"
	"github.com/speedrun-hq/speedrun-executor/pkg/protocol"
)

const (
	// DefaultOrchestratorURL defines the default settlement backend endpoint
	DefaultOrchestratorURL = "https://v1.orchestrator.rhinestone.dev"

	// DefaultOrchestratorRateLimit defines the default backend request rate per second
	DefaultOrchestratorRateLimit = 10.0

	// DefaultOwnerThreshold defines the default number of owner signatures required
	DefaultOwnerThreshold = 1

	// DefaultPollInterval defines the default intent status polling interval
	DefaultPollInterval = 500 * time.Millisecond

	// DefaultAcceptPreconfirmations defines whether a preconfirmation ends the wait
	DefaultAcceptPreconfirmations = false

	// DefaultCompactVersion defines the default settlement protocol version
	DefaultCompactVersion = protocol.DefaultVersion

	// DefaultMetricsPort defines the default port for the metrics server
	DefaultMetricsPort = "8080"

	// DefaultCircuitBreakerEnabled defines whether the circuit breaker is enabled
	DefaultCircuitBreakerEnabled = true

	// DefaultCircuitBreakerThreshold defines the number of failures before the circuit breaker trips
	DefaultCircuitBreakerThreshold = 5

	// DefaultCircuitBreakerWindow defines the time window for the circuit breaker
	DefaultCircuitBreakerWindow = 5

	// DefaultCircuitBreakerReset defines the reset timeout for the circuit breaker
	DefaultCircuitBreakerReset = 15

	// DefaultGasMultiplier defines the default multiplier applied to suggested fees
	DefaultGasMultiplier = 1.1

	// DefaultLogLevel defines the default log level
	DefaultLogLevel = "info"

	// DefaultLogColoring defines whether log chain prefixes are colored
	DefaultLogColoring = true
)

func getEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// GetEnvList returns a comma separated environment variable as a list, empty entries dropped
func GetEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(getEnv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func parseBool(key, value string) (bool, error) {
	if value == "true" {
		return true, nil
	} else if value == "false" {
		return false, nil
	}
	return false, fmt.Errorf("invalid %s value: %s, must be 'true' or 'false'", key, value)
}

func parseAddress(key, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("invalid %s value: %s, must be a valid Ethereum address", key, value)
	}
	return common.HexToAddress(value), nil
}

// GetEnvOrchestratorURL returns the settlement backend endpoint from environment variables
func GetEnvOrchestratorURL() (string, error) {
	endpoint := getEnv("ORCHESTRATOR_URL")
	if endpoint == "" {
		return DefaultOrchestratorURL, nil
	}

	// Validate URL format
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return "", fmt.Errorf("invalid ORCHESTRATOR_URL value: %s, must be a valid URL", endpoint)
	}
	return strings.TrimRight(endpoint, "/"), nil
}

// GetEnvOrchestratorRateLimit returns the backend request rate per second from environment variables
func GetEnvOrchestratorRateLimit() (float64, error) {
	limit := getEnv("ORCHESTRATOR_RATE_LIMIT")
	if limit == "" {
		return DefaultOrchestratorRateLimit, nil
	}

	parsed, err := strconv.ParseFloat(limit, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid ORCHESTRATOR_RATE_LIMIT value: %s, must be a number", limit)
	}
	if parsed < 0 {
		return 0, fmt.Errorf("ORCHESTRATOR_RATE_LIMIT must be greater than or equal to 0")
	}
	return parsed, nil
}

// GetEnvAccount returns the smart account and its optional deployment from environment variables
func GetEnvAccount() (AccountConfig, error) {
	var account AccountConfig
	var err error

	if addr := getEnv("ACCOUNT_ADDRESS"); addr != "" {
		if account.Address, err = parseAddress("ACCOUNT_ADDRESS", addr); err != nil {
			return account, err
		}
	}
	if factory := getEnv("ACCOUNT_FACTORY"); factory != "" {
		if account.Factory, err = parseAddress("ACCOUNT_FACTORY", factory); err != nil {
			return account, err
		}
	}
	if data := getEnv("ACCOUNT_FACTORY_DATA"); data != "" {
		if account.FactoryData, err = hexutil.Decode(data); err != nil {
			return account, fmt.Errorf("invalid ACCOUNT_FACTORY_DATA value: %s, must be 0x prefixed hex", data)
		}
	}
	if len(account.FactoryData) > 0 && account.Factory == (common.Address{}) {
		return account, fmt.Errorf("ACCOUNT_FACTORY_DATA requires ACCOUNT_FACTORY")
	}
	return account, nil
}

// GetEnvOwnerThreshold returns the owner signature threshold from environment variables
func GetEnvOwnerThreshold() (uint64, error) {
	threshold := getEnv("OWNER_THRESHOLD")
	if threshold == "" {
		return DefaultOwnerThreshold, nil
	}

	parsed, err := strconv.ParseUint(threshold, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid OWNER_THRESHOLD value: %s, must be an integer", threshold)
	}
	if parsed == 0 {
		return 0, fmt.Errorf("OWNER_THRESHOLD must be greater than 0")
	}
	return parsed, nil
}

// GetEnvPollInterval returns the intent status polling interval from environment variables
func GetEnvPollInterval() (time.Duration, error) {
	interval := getEnv("POLL_INTERVAL")
	if interval == "" {
		return DefaultPollInterval, nil
	}

	parsed, err := time.ParseDuration(interval)
	if err != nil {
		return 0, fmt.Errorf("invalid POLL_INTERVAL value: %s, must be a valid duration string", interval)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("POLL_INTERVAL must be greater than 0")
	}
	return parsed, nil
}

// GetEnvAcceptPreconfirmations returns whether a preconfirmation ends the wait
func GetEnvAcceptPreconfirmations() (bool, error) {
	accept := getEnv("ACCEPT_PRECONFIRMATIONS")
	if accept == "" {
		return DefaultAcceptPreconfirmations, nil
	}
	return parseBool("ACCEPT_PRECONFIRMATIONS", accept)
}

// GetEnvCompactVersion returns the settlement protocol version from environment variables
func GetEnvCompactVersion() (protocol.Version, error) {
	version := getEnv("COMPACT_VERSION")
	if version == "" {
		return DefaultCompactVersion, nil
	}

	parsed, err := protocol.ParseVersion(version)
	if err != nil {
		return 0, fmt.Errorf("invalid COMPACT_VERSION value: %s, must be '0' or '1'", version)
	}
	return parsed, nil
}

// GetEnvCompactHookAddress returns the verifying contract override from environment variables
func GetEnvCompactHookAddress() (common.Address, error) {
	hook := getEnv("COMPACT_HOOK_ADDRESS")
	if hook == "" {
		return common.Address{}, nil
	}
	return parseAddress("COMPACT_HOOK_ADDRESS", hook)
}

// GetEnvMetricsPort returns the metrics server port from environment variables
func GetEnvMetricsPort() (string, error) {
	metricsPort := getEnv("METRICS_PORT")
	if metricsPort == "" {
		return DefaultMetricsPort, nil
	}

	// Validate port format
	if _, err := strconv.Atoi(metricsPort); err != nil {
		return "", fmt.Errorf("invalid METRICS_PORT value: %s, must be a valid integer", metricsPort)
	}
	return metricsPort, nil
}

// GetEnvCircuitBreakerEnabled returns whether the circuit breaker is enabled from environment variables
func GetEnvCircuitBreakerEnabled() (bool, error) {
	enabled := getEnv("CIRCUIT_BREAKER_ENABLED")
	if enabled == "" {
		return DefaultCircuitBreakerEnabled, nil
	}
	return parseBool("CIRCUIT_BREAKER_ENABLED", enabled)
}

// GetEnvCircuitBreakerThreshold returns the circuit breaker threshold from environment variables
func GetEnvCircuitBreakerThreshold() (int, error) {
	threshold := getEnv("CIRCUIT_BREAKER_THRESHOLD")
	if threshold == "" {
		return DefaultCircuitBreakerThreshold, nil
	}

	thresholdInt, err := strconv.Atoi(threshold)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_THRESHOLD value: %s, must be an integer", threshold)
	}
	if thresholdInt <= 0 {
		return 0, fmt.Errorf("CIRCUIT_BREAKER_THRESHOLD must be greater than 0")
	}
	return thresholdInt, nil
}

// GetEnvCircuitBreakerWindow returns the circuit breaker window duration from environment variables
func GetEnvCircuitBreakerWindow() (time.Duration, error) {
	window := getEnv("CIRCUIT_BREAKER_WINDOW")
	if window == "" {
		return DefaultCircuitBreakerWindow * time.Second, nil
	}

	// Validate duration format
	parsed, err := time.ParseDuration(window)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_WINDOW value: %s, must be a valid duration string", window)
	}
	return parsed, nil
}

// GetEnvCircuitBreakerReset returns the circuit breaker reset timeout from environment variables
func GetEnvCircuitBreakerReset() (time.Duration, error) {
	reset := getEnv("CIRCUIT_BREAKER_RESET")
	if reset == "" {
		return DefaultCircuitBreakerReset * time.Second, nil
	}

	// Validate duration format
	parsed, err := time.ParseDuration(reset)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_RESET value: %s, must be a valid duration string", reset)
	}
	return parsed, nil
}

// GetEnvLogLevel returns the log level from environment variables
func GetEnvLogLevel() (logger.Level, error) {
	level := getEnv("LOG_LEVEL")
	if level == "" {
		level = DefaultLogLevel
	}

	parsed, err := logger.ParseLevel(level)
	if err != nil {
		return logger.InfoLevel, fmt.Errorf("invalid LOG_LEVEL value: %s, must be one of debug, info, notice, error", level)
	}
	return parsed, nil
}

// GetEnvLogColoring returns whether log chain prefixes are colored
func GetEnvLogColoring() (bool, error) {
	coloring := getEnv("LOG_COLORING")
	if coloring == "" {
		return DefaultLogColoring, nil
	}
	return parseBool("LOG_COLORING", coloring)
}
