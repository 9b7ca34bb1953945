package models

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// FundingMethod is how the origin tokens of an element are locked
type FundingMethod string

const (
	FundingCompact FundingMethod = "COMPACT"
	FundingPermit2 FundingMethod = "PERMIT2"
	FundingNone    FundingMethod = "NO_FUNDING"
)

// SettlementLayer names the layer that fills an element
type SettlementLayer string

const (
	SettlementSameChain      SettlementLayer = "SAME_CHAIN"
	SettlementAcross         SettlementLayer = "ACROSS"
	SettlementEco            SettlementLayer = "ECO"
	SettlementRelay          SettlementLayer = "RELAY"
	SettlementIntentExecutor SettlementLayer = "INTENT_EXECUTOR"
)

// TokenAmount is a packed token id (lock tag in the high 12 bytes, token in the low 20) and an amount
type TokenAmount struct {
	ID     *big.Int
	Amount *big.Int
}

// Token returns the token address held in the low 20 bytes of the id
func (t TokenAmount) Token() common.Address {
	return common.BytesToAddress(common.LeftPadBytes(ValueOf(t.ID).Bytes(), 32)[12:])
}

// LockTag returns the high 12 bytes of the id
func (t TokenAmount) LockTag() [12]byte {
	var tag [12]byte
	copy(tag[:], common.LeftPadBytes(ValueOf(t.ID).Bytes(), 32)[:12])
	return tag
}

// Ops is a list of calls tagged with an execution type word
type Ops struct {
	VT    common.Hash
	Calls []Call
}

// Qualifier describes how an element is settled
type Qualifier struct {
	SettlementLayer SettlementLayer
	FundingMethod   FundingMethod
	Using7579       bool
	// EncodedVal is the opaque qualifier; only its hash is signed
	EncodedVal []byte
}

// Mandate is the fill condition of an element
type Mandate struct {
	Recipient          common.Address
	TokenOut           []TokenAmount
	DestinationChainID uint64
	FillDeadline       *big.Int
	MinGas             *big.Int
	PreClaimOps        Ops
	DestinationOps     Ops
	Qualifier          Qualifier

	// Witness fields of the v0 hook
	DepositID  *big.Int
	UserOpHash common.Hash
	MaxFeeBps  uint32
}

// Element is the part of a bundle settled on one origin chain
type Element struct {
	Arbiter       common.Address
	ChainID       uint64
	IdsAndAmounts []TokenAmount
	Mandate       Mandate
}

// IntentOp is a cross-chain settlement bundle. Element 0 is the notarized chain.
type IntentOp struct {
	Sponsor  common.Address
	Nonce    *big.Int
	Expires  *big.Int
	Elements []Element

	// ServerSignature and SignedMetadata are returned by the backend and echoed on submission
	ServerSignature []byte
	SignedMetadata  []byte
}

// NotarizedChainID returns the chain of element 0
func (op *IntentOp) NotarizedChainID() uint64 {
	if len(op.Elements) == 0 {
		return 0
	}
	return op.Elements[0].ChainID
}

// TargetChainID returns the destination chain of element 0
func (op *IntentOp) TargetChainID() uint64 {
	if len(op.Elements) == 0 {
		return 0
	}
	return op.Elements[0].Mandate.DestinationChainID
}
