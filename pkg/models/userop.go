package models

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// UserOperation is an ERC-4337 v0.7 user operation in unpacked form
type UserOperation struct {
	Sender      common.Address
	Nonce       *big.Int
	Factory     common.Address
	FactoryData []byte
	CallData    []byte

	CallGasLimit         *big.Int
	VerificationGasLimit *big.Int
	PreVerificationGas   *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int

	Paymaster                     common.Address
	PaymasterVerificationGasLimit *big.Int
	PaymasterPostOpGasLimit       *big.Int
	PaymasterData                 []byte

	Signature []byte
}

// HasFactory returns true if the operation deploys the account
func (op *UserOperation) HasFactory() bool {
	return op.Factory != (common.Address{})
}

// HasPaymaster returns true if this operation has a paymaster
func (op *UserOperation) HasPaymaster() bool {
	return op.Paymaster != (common.Address{})
}

// InitCode returns factory || factoryData, empty without a factory
func (op *UserOperation) InitCode() []byte {
	if !op.HasFactory() {
		return []byte{}
	}
	return append(op.Factory.Bytes(), op.FactoryData...)
}

// TotalGasLimit returns the gas the operation may consume across all phases
func (op *UserOperation) TotalGasLimit() *big.Int {
	total := new(big.Int)
	for _, g := range []*big.Int{
		op.CallGasLimit,
		op.VerificationGasLimit,
		op.PreVerificationGas,
		op.PaymasterVerificationGasLimit,
		op.PaymasterPostOpGasLimit,
	} {
		total.Add(total, ValueOf(g))
	}
	return total
}
