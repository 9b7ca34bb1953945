package models

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/speedrun-hq/speedrun-executor/pkg/signer"
)

// SignerKind is the signing scheme behind a resolved validator
type SignerKind int

const (
	SignerOwnerECDSA SignerKind = iota
	SignerOwnerPasskey
	SignerSession
	SignerGuardians
)

func (k SignerKind) String() string {
	switch k {
	case SignerOwnerECDSA:
		return "ecdsa"
	case SignerOwnerPasskey:
		return "passkey"
	case SignerSession:
		return "session"
	case SignerGuardians:
		return "guardians"
	}
	return "unknown"
}

// ValidatorRef points at the validator module that checks a signature
type ValidatorRef struct {
	Address common.Address
	// IsRoot is true when the validator is the account's root validator
	IsRoot bool
}

// SignerSet is one of *OwnerSigners, *SessionSigners or *GuardianSigners
type SignerSet interface {
	isSignerSet()
}

// OwnerKind selects the key type of an owner set
type OwnerKind int

const (
	OwnerECDSA OwnerKind = iota
	OwnerPasskey
)

// OwnerSigners are the account owners
type OwnerSigners struct {
	Kind      OwnerKind
	Threshold uint64
	// ECDSA holds the owner keys for OwnerECDSA, in signing order
	ECDSA []*signer.ECDSA
	// Passkey is the owner credential for OwnerPasskey
	Passkey *signer.Passkey
	// Validator overrides the default module address when non-zero
	Validator common.Address
}

// SessionSigners sign through a smart session
type SessionSigners struct {
	Session *Session
	// Enable is set when the session is not installed yet
	Enable *EnableData
}

// GuardianSigners sign through the social recovery module
type GuardianSigners struct {
	Guardians []*signer.ECDSA
	Threshold uint64
}

func (*OwnerSigners) isSignerSet()    {}
func (*SessionSigners) isSignerSet()  {}
func (*GuardianSigners) isSignerSet() {}

// Addresses returns the owner addresses in signing order
func (o *OwnerSigners) Addresses() []common.Address {
	addrs := make([]common.Address, len(o.ECDSA))
	for i, k := range o.ECDSA {
		addrs[i] = k.Address()
	}
	return addrs
}

// Addresses returns the guardian addresses in signing order
func (g *GuardianSigners) Addresses() []common.Address {
	addrs := make([]common.Address, len(g.Guardians))
	for i, k := range g.Guardians {
		addrs[i] = k.Address()
	}
	return addrs
}
