// Package account describes the smart account a transaction runs from: its
// address and deployment, its ERC-7579 execute encoding, and its EIP-712 domain.
package account

import (
	"github.com/ethereum/go-ethereum/common"
)

// Provider supplies the account address and the factory call that deploys it.
// Address derivation is the provider's business.
type Provider interface {
	Address() common.Address
	// Factory returns the factory and its calldata, a zero address when the account cannot be deployed by us
	Factory() (common.Address, []byte)
}

// StaticProvider is a provider with fixed values
type StaticProvider struct {
	Account     common.Address
	FactoryAddr common.Address
	FactoryData []byte
}

var _ Provider = (*StaticProvider)(nil)

// Address returns the account address
func (p *StaticProvider) Address() common.Address {
	return p.Account
}

// Factory returns the configured factory
func (p *StaticProvider) Factory() (common.Address, []byte) {
	return p.FactoryAddr, common.CopyBytes(p.FactoryData)
}
