// Package userop packs and hashes ERC-4337 v0.7 user operations.
package userop

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/speedrun-hq/speedrun-executor/pkg/models"
)

var maxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// Packed is the on-chain PackedUserOperation layout
type Packed struct {
	Sender             common.Address
	Nonce              *big.Int
	InitCode           []byte
	CallData           []byte
	AccountGasLimits   [32]byte
	PreVerificationGas *big.Int
	GasFees            [32]byte
	PaymasterAndData   []byte
	Signature          []byte
}

func uint128Bytes(v *big.Int) ([]byte, error) {
	v = models.ValueOf(v)
	if v.Sign() < 0 || v.Cmp(maxUint128) > 0 {
		return nil, fmt.Errorf("value %s does not fit uint128", v)
	}
	return v.FillBytes(make([]byte, 16)), nil
}

func pair128(hi, lo *big.Int) ([32]byte, error) {
	var out [32]byte
	h, err := uint128Bytes(hi)
	if err != nil {
		return out, err
	}
	l, err := uint128Bytes(lo)
	if err != nil {
		return out, err
	}
	copy(out[:16], h)
	copy(out[16:], l)
	return out, nil
}

// Pack converts an unpacked operation to the PackedUserOperation layout
func Pack(op *models.UserOperation) (*Packed, error) {
	accountGasLimits, err := pair128(op.VerificationGasLimit, op.CallGasLimit)
	if err != nil {
		return nil, fmt.Errorf("invalid account gas limits: %v", err)
	}
	gasFees, err := pair128(op.MaxPriorityFeePerGas, op.MaxFeePerGas)
	if err != nil {
		return nil, fmt.Errorf("invalid gas fees: %v", err)
	}

	paymasterAndData := []byte{}
	if op.HasPaymaster() {
		verification, err := uint128Bytes(op.PaymasterVerificationGasLimit)
		if err != nil {
			return nil, fmt.Errorf("invalid paymaster verification gas: %v", err)
		}
		postOp, err := uint128Bytes(op.PaymasterPostOpGasLimit)
		if err != nil {
			return nil, fmt.Errorf("invalid paymaster post-op gas: %v", err)
		}
		paymasterAndData = append(paymasterAndData, op.Paymaster.Bytes()...)
		paymasterAndData = append(paymasterAndData, verification...)
		paymasterAndData = append(paymasterAndData, postOp...)
		paymasterAndData = append(paymasterAndData, op.PaymasterData...)
	}

	return &Packed{
		Sender:             op.Sender,
		Nonce:              models.ValueOf(op.Nonce),
		InitCode:           op.InitCode(),
		CallData:           op.CallData,
		AccountGasLimits:   accountGasLimits,
		PreVerificationGas: models.ValueOf(op.PreVerificationGas),
		GasFees:            gasFees,
		PaymasterAndData:   paymasterAndData,
		Signature:          op.Signature,
	}, nil
}

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

var (
	addressType = mustType("address")
	uint256Type = mustType("uint256")
	bytes32Type = mustType("bytes32")

	packedArgs = abi.Arguments{
		{Type: addressType},
		{Type: uint256Type},
		{Type: bytes32Type},
		{Type: bytes32Type},
		{Type: bytes32Type},
		{Type: uint256Type},
		{Type: bytes32Type},
		{Type: bytes32Type},
	}
	hashArgs = abi.Arguments{
		{Type: bytes32Type},
		{Type: addressType},
		{Type: uint256Type},
	}
)

// Hash returns the operation hash the entry point computes. It covers every
// field except the signature.
func Hash(op *models.UserOperation, entryPoint common.Address, chainID uint64) (common.Hash, error) {
	p, err := Pack(op)
	if err != nil {
		return common.Hash{}, err
	}
	encoded, err := packedArgs.Pack(
		p.Sender,
		p.Nonce,
		crypto.Keccak256Hash(p.InitCode),
		crypto.Keccak256Hash(p.CallData),
		p.AccountGasLimits,
		p.PreVerificationGas,
		p.GasFees,
		crypto.Keccak256Hash(p.PaymasterAndData),
	)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to encode user operation: %v", err)
	}
	outer, err := hashArgs.Pack(crypto.Keccak256Hash(encoded), entryPoint, new(big.Int).SetUint64(chainID))
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to encode user operation hash: %v", err)
	}
	return crypto.Keccak256Hash(outer), nil
}

// NonceKey returns the entry point nonce key that selects a validator. The
// root validator uses key 0, any other validator its address left-aligned in
// the 24-byte key.
func NonceKey(v models.ValidatorRef) *big.Int {
	if v.IsRoot {
		return new(big.Int)
	}
	key := make([]byte, 24)
	copy(key, v.Address.Bytes())
	return new(big.Int).SetBytes(key)
}

// Nonce combines a key with a sequence number as key << 64 | seq
func Nonce(key *big.Int, seq uint64) *big.Int {
	n := new(big.Int).Lsh(models.ValueOf(key), 64)
	return n.Or(n, new(big.Int).SetUint64(seq))
}
