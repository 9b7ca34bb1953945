// Package protocol groups the on-chain addresses and domain constants of each
// protocol version. Rotating an address or a domain means editing one table here.
package protocol

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Version identifies a settlement protocol version
type Version int

const (
	// V0 is the hook based MultichainCompact (Segment/Witness/Execution)
	V0 Version = 0
	// V1 is the Compact v1 MultichainCompact (Element/Mandate/Op)
	V1 Version = 1
)

// DefaultVersion is the protocol version used when none is configured
const DefaultVersion = V1

func (v Version) String() string {
	return fmt.Sprintf("v%d", int(v))
}

// ParseVersion parses "0", "1", "v0" or "v1"
func ParseVersion(s string) (Version, error) {
	switch s {
	case "0", "v0":
		return V0, nil
	case "1", "v1":
		return V1, nil
	}
	return 0, fmt.Errorf("unknown protocol version: %s", s)
}

// Protocol holds the addresses and domain constants of one protocol version
type Protocol struct {
	Version Version

	// CompactName and CompactVersion are the EIP-712 domain of the commitment register
	CompactName     string
	CompactVersion  string
	CompactVerifier common.Address

	EntryPoint common.Address
	Permit2    common.Address

	OwnableValidator        common.Address
	WebAuthnValidator       common.Address
	ENSValidator            common.Address
	MultiFactorValidator    common.Address
	SocialRecoveryValidator common.Address
	SmartSessions           common.Address

	IntentExecutorName    string
	IntentExecutorVersion string
}

// Shared module deployments, identical across versions
var (
	EntryPointV07           = common.HexToAddress("0x0000000071727De22E5E9d8BAf0edAc6f37da032")
	Permit2Address          = common.HexToAddress("0x000000000022D473030F116dDEE9F6B43aC78BA3")
	OwnableValidator        = common.HexToAddress("0x000000000013fdb5234e4e3162a810f54d9f7e98")
	WebAuthnValidator       = common.HexToAddress("0x0000000000578c4cb0e472a5462da43c495c3f33")
	ENSValidator            = common.HexToAddress("0xdc38f07b060374b6480c4bf06231e7d10955bca4")
	MultiFactorValidator    = common.HexToAddress("0xf6bdf42c9be18ceca5c06c42a43daf7fbbe7896b")
	SocialRecoveryValidator = common.HexToAddress("0xA04D053b3C8021e8D5bF641816c42dAA75D8b597")
	SmartSessions           = common.HexToAddress("0x00000000002B0eCfbD0496EE71e01257dA0E37DE")

	// DefaultHookAddress is the v0 verifying contract of the commitment register
	DefaultHookAddress = common.HexToAddress("0x0000000000f6Ed8Be424d673c63eeFF8b9267420")
	// CompactV1Address is The Compact v1 deployment
	CompactV1Address = common.HexToAddress("0x73d2dc0c21fca4ec1601895d50df7f5624f07d3f")
)

// NativeToken is the zero address used for the chain's native currency
var NativeToken = common.Address{}

// DefaultTokenAmount is the minimal native amount requested when a transaction asks for no tokens.
// Some settlement layers need a non-zero value to incentivize fillers.
var DefaultTokenAmount = big.NewInt(1)

var versions = map[Version]Protocol{
	V0: {
		Version:                 V0,
		CompactName:             "The Compact",
		CompactVersion:          "0",
		CompactVerifier:         DefaultHookAddress,
		EntryPoint:              EntryPointV07,
		Permit2:                 Permit2Address,
		OwnableValidator:        OwnableValidator,
		WebAuthnValidator:       WebAuthnValidator,
		ENSValidator:            ENSValidator,
		MultiFactorValidator:    MultiFactorValidator,
		SocialRecoveryValidator: SocialRecoveryValidator,
		SmartSessions:           SmartSessions,
		IntentExecutorName:      "IntentExecutor",
		IntentExecutorVersion:   "v0.0.1",
	},
	V1: {
		Version:                 V1,
		CompactName:             "The Compact",
		CompactVersion:          "1",
		CompactVerifier:         CompactV1Address,
		EntryPoint:              EntryPointV07,
		Permit2:                 Permit2Address,
		OwnableValidator:        OwnableValidator,
		WebAuthnValidator:       WebAuthnValidator,
		ENSValidator:            ENSValidator,
		MultiFactorValidator:    MultiFactorValidator,
		SocialRecoveryValidator: SocialRecoveryValidator,
		SmartSessions:           SmartSessions,
		IntentExecutorName:      "IntentExecutor",
		IntentExecutorVersion:   "v0.0.1",
	},
}

// For returns the constants of a protocol version, panicking on an unknown version
func For(v Version) Protocol {
	p, ok := versions[v]
	if !ok {
		panic(fmt.Sprintf("protocol: unknown version %d", v))
	}
	return p
}

// WithCompactVerifier returns a copy of p with a different commitment register address
func (p Protocol) WithCompactVerifier(addr common.Address) Protocol {
	p.CompactVerifier = addr
	return p
}
