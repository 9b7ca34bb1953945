package models

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Call is a single call executed by the account
type Call struct {
	To    common.Address `json:"to"`
	Value *big.Int       `json:"value"`
	Data  []byte         `json:"data"`
}

// TokenRequest asks for an amount of a token on the target chain
type TokenRequest struct {
	Token  common.Address `json:"token"`
	Amount *big.Int       `json:"amount"`
}

// Transaction is the caller's intended effect. It is not modified after construction.
type Transaction struct {
	Calls         []Call
	TokenRequests []TokenRequest
	GasLimit      *big.Int
	// Signers overrides the account's root owner set when set
	Signers      SignerSet
	SourceChains []uint64
	TargetChain  uint64
	Sponsored    bool
	// UserOp forces the user-operation path for owner signers
	UserOp bool
}

// IsCrossChain returns true if any source chain differs from the target chain
func (tx *Transaction) IsCrossChain() bool {
	for _, source := range tx.SourceChains {
		if source != tx.TargetChain {
			return true
		}
	}
	return false
}

// SourceChain returns the first source chain, or the target chain when none is set
func (tx *Transaction) SourceChain() uint64 {
	if len(tx.SourceChains) > 0 {
		return tx.SourceChains[0]
	}
	return tx.TargetChain
}

// ValueOf returns v, or zero when v is nil
func ValueOf(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
