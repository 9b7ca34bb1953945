package compact

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/speedrun-hq/speedrun-executor/pkg/models"
	"github.com/speedrun-hq/speedrun-executor/pkg/protocol"
)

// CompactV0Types are the MultichainCompact types verified by the v0 hook
var CompactV0Types = Types{
	"MultichainCompact": {
		{"sponsor", "address"},
		{"nonce", "uint256"},
		{"expires", "uint256"},
		{"segments", "Segment[]"},
	},
	"Segment": {
		{"arbiter", "address"},
		{"chainId", "uint256"},
		{"idsAndAmounts", "uint256[2][]"},
		{"witness", "Witness"},
	},
	"Witness": {
		{"recipient", "address"},
		{"tokenOut", "uint256[2][]"},
		{"depositId", "uint256"},
		{"targetChain", "uint256"},
		{"fillDeadline", "uint32"},
		{"execs", "Execution[]"},
		{"userOpHash", "bytes32"},
		{"maxFeeBps", "uint32"},
	},
	"Execution": {
		{"to", "address"},
		{"value", "uint256"},
		{"data", "bytes"},
	},
}

var (
	v0CompactTypeHash   = CompactV0Types.TypeHash(PrimaryType)
	v0SegmentTypeHash   = CompactV0Types.TypeHash("Segment")
	v0WitnessTypeHash   = CompactV0Types.TypeHash("Witness")
	v0ExecutionTypeHash = CompactV0Types.TypeHash("Execution")
)

type compactV0 struct {
	p protocol.Protocol
}

var _ Hasher = (*compactV0)(nil)

func (h *compactV0) Version() protocol.Version { return protocol.V0 }

func (h *compactV0) EncodeType() string { return CompactV0Types.EncodeType(PrimaryType) }

func (h *compactV0) Domain(chainID uint64) Domain { return compactDomain(h.p, chainID) }

func (h *compactV0) DomainSeparator(chainID uint64) common.Hash {
	return h.Domain(chainID).Separator()
}

func (h *compactV0) Digest(op *models.IntentOp) (common.Hash, error) {
	return digest(h, op)
}

func (h *compactV0) StructHash(op *models.IntentOp) (common.Hash, error) {
	if err := validate(op); err != nil {
		return common.Hash{}, err
	}
	segments := make([]common.Hash, len(op.Elements))
	for i := range op.Elements {
		segments[i] = hashSegment(&op.Elements[i])
	}
	return crypto.Keccak256Hash(
		v0CompactTypeHash.Bytes(),
		addressWord(op.Sponsor),
		uintWord(op.Nonce),
		uintWord(op.Expires),
		concatHash(segments).Bytes(),
	), nil
}

// hashIdsAndAmounts packs uint256[2][] flat, as abi.encodePacked does on-chain
func hashIdsAndAmounts(pairs []models.TokenAmount) common.Hash {
	words := make([][]byte, 0, 2*len(pairs))
	for _, p := range pairs {
		words = append(words, uintWord(p.ID), uintWord(p.Amount))
	}
	return crypto.Keccak256Hash(words...)
}

func hashExecution(c models.Call) common.Hash {
	return crypto.Keccak256Hash(
		v0ExecutionTypeHash.Bytes(),
		addressWord(c.To),
		uintWord(c.Value),
		crypto.Keccak256(c.Data),
	)
}

// HashWitness returns the v0 witness hash of a mandate
func HashWitness(m *models.Mandate) common.Hash {
	execs := make([]common.Hash, len(m.DestinationOps.Calls))
	for i, c := range m.DestinationOps.Calls {
		execs[i] = hashExecution(c)
	}
	return crypto.Keccak256Hash(
		v0WitnessTypeHash.Bytes(),
		addressWord(m.Recipient),
		hashIdsAndAmounts(m.TokenOut).Bytes(),
		uintWord(m.DepositID),
		uint64Word(m.DestinationChainID),
		uintWord(m.FillDeadline),
		concatHash(execs).Bytes(),
		m.UserOpHash.Bytes(),
		uint64Word(uint64(m.MaxFeeBps)),
	)
}

func hashSegment(e *models.Element) common.Hash {
	return crypto.Keccak256Hash(
		v0SegmentTypeHash.Bytes(),
		addressWord(e.Arbiter),
		uint64Word(e.ChainID),
		hashIdsAndAmounts(e.IdsAndAmounts).Bytes(),
		HashWitness(&e.Mandate).Bytes(),
	)
}
