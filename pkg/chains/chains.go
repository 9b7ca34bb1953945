package chains

// ChainList contains the list of supported chain IDs
var ChainList = []uint64{
	1,     // Ethereum
	10,    // Optimism
	137,   // Polygon
	42161, // Arbitrum
	43114, // Avalanche
	56,    // Binance Smart Chain
	7000,  // ZetaChain
	8453,  // Base
	130,   // Unichain
	84532, // Base Sepolia
	11155111,
}

// chainNames maps chain IDs to their names, also used as env var prefixes
var chainNames = map[uint64]string{
	1:        "ETHEREUM",
	10:       "OPTIMISM",
	137:      "POLYGON",
	42161:    "ARBITRUM",
	43114:    "AVALANCHE",
	56:       "BSC",
	7000:     "ZETACHAIN",
	8453:     "BASE",
	130:      "UNICHAIN",
	84532:    "BASE_SEPOLIA",
	11155111: "SEPOLIA",
}

// shortNames are the log prefixes of each chain
var shortNames = map[uint64]string{
	1:        "ETH",
	10:       "OP",
	137:      "POL",
	42161:    "ARB",
	43114:    "AVA",
	56:       "BSC",
	7000:     "ZETA",
	8453:     "BASE",
	130:      "UNI",
	84532:    "BSEP",
	11155111: "SEP",
}

// testnets lists the chain IDs that are test networks
var testnets = map[uint64]bool{
	84532:    true,
	11155111: true,
}

// GetChainName returns the name of the chain for a given chain ID
func GetChainName(chainID uint64) string {
	name, exists := chainNames[chainID]
	if !exists {
		return ""
	}
	return name
}

// GetShortName returns the short display name of the chain, empty if unknown
func GetShortName(chainID uint64) string {
	return shortNames[chainID]
}

// IsSupported returns true if the chain is in the supported list
func IsSupported(chainID uint64) bool {
	_, ok := chainNames[chainID]
	return ok
}

// IsTestnet returns true for test networks
func IsTestnet(chainID uint64) bool {
	return testnets[chainID]
}
