package compact

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/speedrun-hq/speedrun-executor/pkg/models"
	"github.com/speedrun-hq/speedrun-executor/pkg/protocol"
)

// Permit2Types are the batch witness transfer types with a Mandate witness
var Permit2Types = Merge(mandateTypes, Types{
	"PermitBatchWitnessTransferFrom": {
		{"permitted", "TokenPermissions[]"},
		{"spender", "address"},
		{"nonce", "uint256"},
		{"deadline", "uint256"},
		{"mandate", "Mandate"},
	},
	"TokenPermissions": {
		{"token", "address"},
		{"amount", "uint256"},
	},
})

var (
	permit2BatchTypeHash     = Permit2Types.TypeHash("PermitBatchWitnessTransferFrom")
	tokenPermissionsTypeHash = Permit2Types.TypeHash("TokenPermissions")
)

// Permit2Domain returns the Permit2 domain on a chain. It has no version field.
func Permit2Domain(p protocol.Protocol, chainID uint64) Domain {
	return Domain{
		Name:              "Permit2",
		ChainID:           chainID,
		VerifyingContract: p.Permit2,
		Fields:            FieldName | FieldChainID | FieldVerifyingContract,
	}
}

// Permit2StructHash hashes one element as a PermitBatchWitnessTransferFrom
func Permit2StructHash(op *models.IntentOp, index int) (common.Hash, error) {
	if err := validate(op); err != nil {
		return common.Hash{}, err
	}
	if index < 0 || index >= len(op.Elements) {
		return common.Hash{}, fmt.Errorf("element index %d out of range", index)
	}
	e := &op.Elements[index]

	permitted := make([]common.Hash, len(e.IdsAndAmounts))
	for i, t := range e.IdsAndAmounts {
		permitted[i] = crypto.Keccak256Hash(
			tokenPermissionsTypeHash.Bytes(),
			addressWord(t.Token()),
			uintWord(t.Amount),
		)
	}
	return crypto.Keccak256Hash(
		permit2BatchTypeHash.Bytes(),
		concatHash(permitted).Bytes(),
		addressWord(e.Arbiter),
		uintWord(op.Nonce),
		uintWord(op.Expires),
		hashMandate(&e.Mandate).Bytes(),
	), nil
}

// Permit2Digest returns the Permit2 signing digest of an element on its own chain
func Permit2Digest(p protocol.Protocol, op *models.IntentOp, index int) (common.Hash, error) {
	structHash, err := Permit2StructHash(op, index)
	if err != nil {
		return common.Hash{}, err
	}
	return TypedDataHash(Permit2Domain(p, op.Elements[index].ChainID).Separator(), structHash), nil
}

// GasRefund is the refund terms of a single chain intent
type GasRefund struct {
	Token        common.Address
	ExchangeRate *big.Int
	Overhead     *big.Int
}

// SingleChainOps is an intent executed by the intent executor on one chain
type SingleChainOps struct {
	Account common.Address
	Nonce   *big.Int
	Op      models.Ops
	// GasRefund nil selects the legacy layout with a zero refund
	GasRefund *GasRefund
}

var singleChainBase = Types{
	"SingleChainOps": {
		{"account", "address"},
		{"nonce", "uint256"},
		{"op", "Op"},
		{"gasRefund", "GasRefund"},
	},
	"Op":  mandateTypes["Op"],
	"Ops": mandateTypes["Ops"],
}

// SingleChainLegacyTypes carries a GasRefund without overhead
var SingleChainLegacyTypes = Merge(singleChainBase, Types{
	"GasRefund": {
		{"token", "address"},
		{"exchangeRate", "uint256"},
	},
})

// SingleChainGasRefundTypes carries a GasRefund with overhead
var SingleChainGasRefundTypes = Merge(singleChainBase, Types{
	"GasRefund": {
		{"token", "address"},
		{"exchangeRate", "uint256"},
		{"overhead", "uint256"},
	},
})

// SingleChainDomain returns the intent executor domain
func SingleChainDomain(p protocol.Protocol, executor common.Address, chainID uint64) Domain {
	return Domain{
		Name:              p.IntentExecutorName,
		Version:           p.IntentExecutorVersion,
		ChainID:           chainID,
		VerifyingContract: executor,
	}
}

// SingleChainStructHash hashes a SingleChainOps message
func SingleChainStructHash(ops SingleChainOps) common.Hash {
	types := SingleChainLegacyTypes
	refund := [][]byte{addressWord(common.Address{}), uint64Word(0)}
	if ops.GasRefund != nil {
		types = SingleChainGasRefundTypes
		refund = [][]byte{
			addressWord(ops.GasRefund.Token),
			uintWord(ops.GasRefund.ExchangeRate),
			uintWord(ops.GasRefund.Overhead),
		}
	}
	refundWords := append([][]byte{types.TypeHash("GasRefund").Bytes()}, refund...)

	return crypto.Keccak256Hash(
		types.TypeHash("SingleChainOps").Bytes(),
		addressWord(ops.Account),
		uintWord(ops.Nonce),
		hashOp(ops.Op).Bytes(),
		crypto.Keccak256(refundWords...),
	)
}

// SingleChainDigest returns the signing digest of a SingleChainOps message
func SingleChainDigest(p protocol.Protocol, executor common.Address, chainID uint64, ops SingleChainOps) (common.Hash, error) {
	if ops.Nonce == nil {
		return common.Hash{}, fmt.Errorf("single chain ops nonce is required")
	}
	return TypedDataHash(SingleChainDomain(p, executor, chainID).Separator(), SingleChainStructHash(ops)), nil
}
