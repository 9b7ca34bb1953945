// Package compact computes the EIP-712 struct hashes and signing digests of
// settlement bundles, as the on-chain commitment register recomputes them.
package compact

import (
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/speedrun-hq/speedrun-executor/pkg/models"
)

// Field is a member of an EIP-712 struct type
type Field struct {
	Name string
	Type string
}

// Types maps struct names to their fields
type Types map[string][]Field

// Merge returns a new Types holding every entry of the given sets
func Merge(sets ...Types) Types {
	out := make(Types)
	for _, set := range sets {
		for name, fields := range set {
			out[name] = fields
		}
	}
	return out
}

// EncodeType returns the canonical type string of primary followed by its
// referenced struct types in alphabetical order.
func (t Types) EncodeType(primary string) string {
	found := make(map[string]bool)
	t.dependencies(primary, found)
	delete(found, primary)

	deps := make([]string, 0, len(found))
	for name := range found {
		deps = append(deps, name)
	}
	sort.Strings(deps)

	var b strings.Builder
	b.WriteString(t.encodeOne(primary))
	for _, dep := range deps {
		b.WriteString(t.encodeOne(dep))
	}
	return b.String()
}

// TypeHash returns keccak256 of the encoded type
func (t Types) TypeHash(primary string) common.Hash {
	return crypto.Keccak256Hash([]byte(t.EncodeType(primary)))
}

func (t Types) encodeOne(name string) string {
	fields := t[name]
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.Type + " " + f.Name
	}
	return name + "(" + strings.Join(parts, ",") + ")"
}

func (t Types) dependencies(name string, found map[string]bool) {
	if found[name] {
		return
	}
	fields, ok := t[name]
	if !ok {
		return
	}
	found[name] = true
	for _, f := range fields {
		t.dependencies(baseType(f.Type), found)
	}
}

func baseType(typ string) string {
	if i := strings.Index(typ, "["); i >= 0 {
		return typ[:i]
	}
	return typ
}

// ERC-5267 field bits of an EIP-712 domain
const (
	FieldName byte = 1 << iota
	FieldVersion
	FieldChainID
	FieldVerifyingContract
	FieldSalt
)

// DefaultDomainFields is name, version, chainId and verifyingContract
const DefaultDomainFields = FieldName | FieldVersion | FieldChainID | FieldVerifyingContract

// Domain is an EIP-712 domain
type Domain struct {
	Name              string
	Version           string
	ChainID           uint64
	VerifyingContract common.Address
	Salt              common.Hash
	// Fields is the ERC-5267 bitmap of present fields, zero means DefaultDomainFields
	Fields byte
}

func (d Domain) fields() byte {
	if d.Fields == 0 {
		return DefaultDomainFields
	}
	return d.Fields
}

// EncodeType returns the EIP712Domain type string for the present fields
func (d Domain) EncodeType() string {
	f := d.fields()
	var parts []string
	if f&FieldName != 0 {
		parts = append(parts, "string name")
	}
	if f&FieldVersion != 0 {
		parts = append(parts, "string version")
	}
	if f&FieldChainID != 0 {
		parts = append(parts, "uint256 chainId")
	}
	if f&FieldVerifyingContract != 0 {
		parts = append(parts, "address verifyingContract")
	}
	if f&FieldSalt != 0 {
		parts = append(parts, "bytes32 salt")
	}
	return "EIP712Domain(" + strings.Join(parts, ",") + ")"
}

// Separator returns the domain separator
func (d Domain) Separator() common.Hash {
	f := d.fields()
	words := [][]byte{crypto.Keccak256([]byte(d.EncodeType()))}
	if f&FieldName != 0 {
		words = append(words, crypto.Keccak256([]byte(d.Name)))
	}
	if f&FieldVersion != 0 {
		words = append(words, crypto.Keccak256([]byte(d.Version)))
	}
	if f&FieldChainID != 0 {
		words = append(words, uint64Word(d.ChainID))
	}
	if f&FieldVerifyingContract != 0 {
		words = append(words, addressWord(d.VerifyingContract))
	}
	if f&FieldSalt != 0 {
		words = append(words, d.Salt.Bytes())
	}
	return crypto.Keccak256Hash(words...)
}

// TypedDataHash returns keccak256(0x1901 || domainSeparator || structHash)
func TypedDataHash(domainSeparator, structHash common.Hash) common.Hash {
	return crypto.Keccak256Hash([]byte{0x19, 0x01}, domainSeparator.Bytes(), structHash.Bytes())
}

func addressWord(a common.Address) []byte {
	return common.LeftPadBytes(a.Bytes(), 32)
}

func uintWord(v *big.Int) []byte {
	return math.U256Bytes(new(big.Int).Set(models.ValueOf(v)))
}

func uint64Word(v uint64) []byte {
	return uintWord(new(big.Int).SetUint64(v))
}

// concatHash hashes the concatenation of member hashes, the encoding of a struct array
func concatHash(hashes []common.Hash) common.Hash {
	words := make([][]byte, len(hashes))
	for i, h := range hashes {
		words[i] = h.Bytes()
	}
	return crypto.Keccak256Hash(words...)
}
