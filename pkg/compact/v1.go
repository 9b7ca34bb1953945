package compact

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/speedrun-hq/speedrun-executor/pkg/models"
	"github.com/speedrun-hq/speedrun-executor/pkg/protocol"
)

// CompactV1Types are the MultichainCompact types of The Compact v1
var CompactV1Types = Merge(mandateTypes, Types{
	"MultichainCompact": {
		{"sponsor", "address"},
		{"nonce", "uint256"},
		{"expires", "uint256"},
		{"elements", "Element[]"},
	},
	"Element": {
		{"arbiter", "address"},
		{"chainId", "uint256"},
		{"commitments", "Lock[]"},
		{"mandate", "Mandate"},
	},
	"Lock": {
		{"lockTag", "bytes12"},
		{"token", "address"},
		{"amount", "uint256"},
	},
})

var (
	v1CompactTypeHash = CompactV1Types.TypeHash(PrimaryType)
	v1ElementTypeHash = CompactV1Types.TypeHash("Element")
	v1LockTypeHash    = CompactV1Types.TypeHash("Lock")
)

type compactV1 struct {
	p protocol.Protocol
}

var _ Hasher = (*compactV1)(nil)

func (h *compactV1) Version() protocol.Version { return protocol.V1 }

func (h *compactV1) EncodeType() string { return CompactV1Types.EncodeType(PrimaryType) }

func (h *compactV1) Domain(chainID uint64) Domain { return compactDomain(h.p, chainID) }

func (h *compactV1) DomainSeparator(chainID uint64) common.Hash {
	return h.Domain(chainID).Separator()
}

func (h *compactV1) Digest(op *models.IntentOp) (common.Hash, error) {
	return digest(h, op)
}

func (h *compactV1) StructHash(op *models.IntentOp) (common.Hash, error) {
	if err := validate(op); err != nil {
		return common.Hash{}, err
	}
	elements := make([]common.Hash, len(op.Elements))
	for i := range op.Elements {
		elements[i] = hashElementV1(&op.Elements[i])
	}
	return crypto.Keccak256Hash(
		v1CompactTypeHash.Bytes(),
		addressWord(op.Sponsor),
		uintWord(op.Nonce),
		uintWord(op.Expires),
		concatHash(elements).Bytes(),
	), nil
}

func hashLock(t models.TokenAmount) common.Hash {
	tag := t.LockTag()
	return crypto.Keccak256Hash(
		v1LockTypeHash.Bytes(),
		common.RightPadBytes(tag[:], 32),
		addressWord(t.Token()),
		uintWord(t.Amount),
	)
}

func hashElementV1(e *models.Element) common.Hash {
	locks := make([]common.Hash, len(e.IdsAndAmounts))
	for i, t := range e.IdsAndAmounts {
		locks[i] = hashLock(t)
	}
	return crypto.Keccak256Hash(
		v1ElementTypeHash.Bytes(),
		addressWord(e.Arbiter),
		uint64Word(e.ChainID),
		concatHash(locks).Bytes(),
		hashMandate(&e.Mandate).Bytes(),
	)
}
