// Package validators encodes validator module install data and resolves
// signer sets to the validator that checks their signatures.
package validators

import (
	"bytes"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/speedrun-hq/speedrun-executor/pkg/protocol"
	"github.com/speedrun-hq/speedrun-executor/pkg/signer"
)

// ModuleType is the ERC-7579 module type
type ModuleType string

const TypeValidator ModuleType = "validator"

// Module is an installable validator and its init data
type Module struct {
	Address           common.Address
	InitData          []byte
	DeInitData        []byte
	AdditionalContext []byte
	Type              ModuleType
}

func validator(address common.Address, initData []byte) *Module {
	return &Module{
		Address:           address,
		InitData:          initData,
		DeInitData:        []byte{},
		AdditionalContext: []byte{},
		Type:              TypeValidator,
	}
}

// Option overrides a module default
type Option func(*options)

type options struct {
	address common.Address
}

// WithAddress installs the module from a different deployment
func WithAddress(addr common.Address) Option {
	return func(o *options) { o.address = addr }
}

func applyOptions(def common.Address, opts []Option) common.Address {
	o := options{address: def}
	for _, opt := range opts {
		opt(&o)
	}
	return o.address
}

func mustType(t string, components []abi.ArgumentMarshaling) abi.Type {
	typ, err := abi.NewType(t, "", components)
	if err != nil {
		panic(err)
	}
	return typ
}

var (
	uint256Type = mustType("uint256", nil)

	ownableArgs = abi.Arguments{
		{Type: uint256Type},
		{Type: mustType("address[]", nil)},
	}
	webAuthnArgs = abi.Arguments{
		{Type: uint256Type},
		{Type: mustType("tuple[]", []abi.ArgumentMarshaling{
			{Name: "pubKeyX", Type: "uint256"},
			{Name: "pubKeyY", Type: "uint256"},
			{Name: "requireUV", Type: "bool"},
		})},
	}
	ensArgs = abi.Arguments{
		{Type: uint256Type},
		{Type: mustType("tuple[]", []abi.ArgumentMarshaling{
			{Name: "addr", Type: "address"},
			{Name: "expiration", Type: "uint48"},
		})},
	}
	multiFactorArgs = abi.Arguments{
		{Type: mustType("tuple[]", []abi.ArgumentMarshaling{
			{Name: "packedValidatorAndId", Type: "bytes32"},
			{Name: "data", Type: "bytes"},
		})},
	}
)

// MaxExpiration is the uint48 expiration given to ENS owners without one
var MaxExpiration = new(big.Int).SetUint64(1<<48 - 1)

func checkThreshold(threshold uint64, n int) error {
	if threshold == 0 {
		return fmt.Errorf("threshold must be at least 1")
	}
	if threshold > uint64(n) {
		return fmt.Errorf("threshold %d exceeds %d signers", threshold, n)
	}
	return nil
}

func sortedAddresses(addrs []common.Address) []common.Address {
	sorted := append([]common.Address(nil), addrs...)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].Bytes(), sorted[j].Bytes()) < 0
	})
	return sorted
}

// Ownable encodes the ECDSA ownership validator. Owners are sorted ascending as the module requires.
func Ownable(threshold uint64, owners []common.Address, opts ...Option) (*Module, error) {
	if err := checkThreshold(threshold, len(owners)); err != nil {
		return nil, err
	}
	initData, err := ownableArgs.Pack(new(big.Int).SetUint64(threshold), sortedAddresses(owners))
	if err != nil {
		return nil, fmt.Errorf("failed to encode ownable validator: %v", err)
	}
	return validator(applyOptions(protocol.OwnableValidator, opts), initData), nil
}

// SocialRecovery encodes the guardian validator, which shares the ownable layout
func SocialRecovery(threshold uint64, guardians []common.Address, opts ...Option) (*Module, error) {
	if err := checkThreshold(threshold, len(guardians)); err != nil {
		return nil, err
	}
	initData, err := ownableArgs.Pack(new(big.Int).SetUint64(threshold), sortedAddresses(guardians))
	if err != nil {
		return nil, fmt.Errorf("failed to encode social recovery validator: %v", err)
	}
	return validator(applyOptions(protocol.SocialRecoveryValidator, opts), initData), nil
}

type webAuthnCredential struct {
	PubKeyX   *big.Int `abi:"pubKeyX"`
	PubKeyY   *big.Int `abi:"pubKeyY"`
	RequireUV bool     `abi:"requireUV"`
}

// WebAuthn encodes the passkey validator. User verification is not required.
func WebAuthn(threshold uint64, credentials []signer.Credential, opts ...Option) (*Module, error) {
	if err := checkThreshold(threshold, len(credentials)); err != nil {
		return nil, err
	}
	creds := make([]webAuthnCredential, len(credentials))
	for i, c := range credentials {
		if c.PubKeyX == nil || c.PubKeyY == nil {
			return nil, fmt.Errorf("credential %d has no public key", i)
		}
		creds[i] = webAuthnCredential{PubKeyX: c.PubKeyX, PubKeyY: c.PubKeyY}
	}
	initData, err := webAuthnArgs.Pack(new(big.Int).SetUint64(threshold), creds)
	if err != nil {
		return nil, fmt.Errorf("failed to encode webauthn validator: %v", err)
	}
	return validator(applyOptions(protocol.WebAuthnValidator, opts), initData), nil
}

// ENSOwner is an owner of the ENS validator
type ENSOwner struct {
	Address common.Address
	// Expiration is a unix timestamp, nil for MaxExpiration
	Expiration *big.Int
}

type ensOwner struct {
	Addr       common.Address `abi:"addr"`
	Expiration *big.Int       `abi:"expiration"`
}

// ENS encodes the ENS validator with owners sorted by address
func ENS(threshold uint64, owners []ENSOwner, opts ...Option) (*Module, error) {
	if err := checkThreshold(threshold, len(owners)); err != nil {
		return nil, err
	}
	sorted := append([]ENSOwner(nil), owners...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].Address.Bytes(), sorted[j].Address.Bytes()) < 0
	})
	encoded := make([]ensOwner, len(sorted))
	for i, o := range sorted {
		exp := o.Expiration
		if exp == nil {
			exp = MaxExpiration
		}
		if exp.Sign() < 0 || exp.Cmp(MaxExpiration) > 0 {
			return nil, fmt.Errorf("expiration of %s does not fit uint48", o.Address.Hex())
		}
		encoded[i] = ensOwner{Addr: o.Address, Expiration: exp}
	}
	initData, err := ensArgs.Pack(new(big.Int).SetUint64(threshold), encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to encode ens validator: %v", err)
	}
	return validator(applyOptions(protocol.ENSValidator, opts), initData), nil
}

type multiFactorEntry struct {
	PackedValidatorAndID [32]byte `abi:"packedValidatorAndId"`
	Data                 []byte   `abi:"data"`
}

// MultiFactor combines sub-validators under one threshold. Entry i is tagged
// with id i in its high 12 bytes; nil entries keep their slot but are skipped.
func MultiFactor(threshold uint8, subValidators []*Module, opts ...Option) (*Module, error) {
	entries := make([]multiFactorEntry, 0, len(subValidators))
	for i, m := range subValidators {
		if m == nil {
			continue
		}
		var packed [32]byte
		id := new(big.Int).SetUint64(uint64(i)).FillBytes(make([]byte, 12))
		copy(packed[:12], id)
		copy(packed[12:], m.Address.Bytes())
		entries = append(entries, multiFactorEntry{PackedValidatorAndID: packed, Data: m.InitData})
	}
	if err := checkThreshold(uint64(threshold), len(entries)); err != nil {
		return nil, err
	}
	encoded, err := multiFactorArgs.Pack(entries)
	if err != nil {
		return nil, fmt.Errorf("failed to encode multi factor validator: %v", err)
	}
	initData := append([]byte{threshold}, encoded...)
	return validator(applyOptions(protocol.MultiFactorValidator, opts), initData), nil
}
