// Package signer produces raw signature bytes over a 32-byte digest.
package signer

import (
	"context"
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the length of an ECDSA signature in [R || S || V] form
const SignatureLength = crypto.SignatureLength

// Signer signs a digest. Implementations may block on user interaction.
type Signer interface {
	Sign(ctx context.Context, digest common.Hash) ([]byte, error)
}

// Func adapts a function to the Signer interface
type Func func(ctx context.Context, digest common.Hash) ([]byte, error)

// Sign calls f
func (f Func) Sign(ctx context.Context, digest common.Hash) ([]byte, error) {
	return f(ctx, digest)
}

// ECDSA signs with a local secp256k1 key
type ECDSA struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

var _ Signer = (*ECDSA)(nil)

// NewECDSA creates an ECDSA signer from a private key
func NewECDSA(key *ecdsa.PrivateKey) *ECDSA {
	return &ECDSA{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}
}

// NewECDSAFromHex parses a hex private key, with or without 0x prefix
func NewECDSAFromHex(privateKeyHex string) (*ECDSA, error) {
	if len(privateKeyHex) > 1 && privateKeyHex[:2] == "0x" {
		privateKeyHex = privateKeyHex[2:]
	}
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %v", err)
	}
	return NewECDSA(key), nil
}

// Address returns the signer's account address
func (s *ECDSA) Address() common.Address {
	return s.address
}

// Sign signs the digest and returns [R || S || V] with V in {27, 28}
func (s *ECDSA) Sign(ctx context.Context, digest common.Hash) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(digest[:], s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign digest: %v", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// Multi concatenates one signature per owner, in owner order
type Multi struct {
	owners []*ECDSA
}

var _ Signer = (*Multi)(nil)

// NewMulti creates a multi-owner signer
func NewMulti(owners ...*ECDSA) *Multi {
	return &Multi{owners: owners}
}

// Owners returns the owner addresses in signing order
func (m *Multi) Owners() []common.Address {
	addrs := make([]common.Address, len(m.owners))
	for i, o := range m.owners {
		addrs[i] = o.Address()
	}
	return addrs
}

// Sign returns the concatenation of every owner's signature
func (m *Multi) Sign(ctx context.Context, digest common.Hash) ([]byte, error) {
	if len(m.owners) == 0 {
		return nil, fmt.Errorf("no owners to sign with")
	}
	out := make([]byte, 0, len(m.owners)*SignatureLength)
	for i, owner := range m.owners {
		sig, err := owner.Sign(ctx, digest)
		if err != nil {
			return nil, fmt.Errorf("owner %d (%s) failed to sign: %w", i, owner.Address().Hex(), err)
		}
		out = append(out, sig...)
	}
	return out, nil
}
