package config

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/speedrun-hq/speedrun-executor/pkg/chains"
)

// ChainConfig holds the endpoints of one chain
type ChainConfig struct {
	ChainID uint64
	RPCURL  string
	// BundlerURL is empty when user operations are not sent on this chain
	BundlerURL    string
	GasMultiplier float64
}

// HasBundler returns true if user operations can be sent on this chain
func (c ChainConfig) HasBundler() bool {
	return c.BundlerURL != ""
}

// GetEnvChainConfigs returns the configuration of every supported chain that has
// a <CHAIN>_RPC_URL set. <CHAIN>_BUNDLER_URL and <CHAIN>_GAS_MULTIPLIER are optional.
func GetEnvChainConfigs() (map[uint64]ChainConfig, error) {
	configs := make(map[uint64]ChainConfig)
	for _, chainID := range chains.ChainList {
		name := chains.GetChainName(chainID)
		if name == "" {
			continue
		}
		rpcURL := getEnv(name + "_RPC_URL")
		if rpcURL == "" {
			continue
		}
		if _, err := url.ParseRequestURI(rpcURL); err != nil {
			return nil, fmt.Errorf("invalid %s_RPC_URL value: %s, must be a valid URL", name, rpcURL)
		}

		bundlerURL := getEnv(name + "_BUNDLER_URL")
		if bundlerURL != "" {
			if _, err := url.ParseRequestURI(bundlerURL); err != nil {
				return nil, fmt.Errorf("invalid %s_BUNDLER_URL value: %s, must be a valid URL", name, bundlerURL)
			}
		}

		multiplier := DefaultGasMultiplier
		if m := getEnv(name + "_GAS_MULTIPLIER"); m != "" {
			parsed, err := strconv.ParseFloat(m, 64)
			if err != nil || parsed <= 0 {
				return nil, fmt.Errorf("invalid %s_GAS_MULTIPLIER value: %s, must be a positive number", name, m)
			}
			multiplier = parsed
		}

		configs[chainID] = ChainConfig{
			ChainID:       chainID,
			RPCURL:        rpcURL,
			BundlerURL:    bundlerURL,
			GasMultiplier: multiplier,
		}
	}
	return configs, nil
}
