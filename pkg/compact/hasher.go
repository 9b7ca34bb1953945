package compact

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/speedrun-hq/speedrun-executor/pkg/models"
	"github.com/speedrun-hq/speedrun-executor/pkg/protocol"
)

// PrimaryType is the top-level struct of a settlement bundle
const PrimaryType = "MultichainCompact"

// Hasher hashes settlement bundles for one protocol version.
// Changing a type string is a protocol change, not a refactor.
type Hasher interface {
	Version() protocol.Version
	// EncodeType returns the full type string of the bundle
	EncodeType() string
	Domain(chainID uint64) Domain
	DomainSeparator(chainID uint64) common.Hash
	StructHash(op *models.IntentOp) (common.Hash, error)
	// Digest binds the struct hash to the notarized chain's domain
	Digest(op *models.IntentOp) (common.Hash, error)
}

// New returns the bundle hasher of a protocol
func New(p protocol.Protocol) Hasher {
	switch p.Version {
	case protocol.V0:
		return &compactV0{p: p}
	case protocol.V1:
		return &compactV1{p: p}
	}
	panic(fmt.Sprintf("compact: no hasher for protocol %s", p.Version))
}

func compactDomain(p protocol.Protocol, chainID uint64) Domain {
	return Domain{
		Name:              p.CompactName,
		Version:           p.CompactVersion,
		ChainID:           chainID,
		VerifyingContract: p.CompactVerifier,
	}
}

func validate(op *models.IntentOp) error {
	if op == nil {
		return fmt.Errorf("nil intent op")
	}
	if len(op.Elements) == 0 {
		return fmt.Errorf("intent op has no elements")
	}
	if op.Nonce == nil || op.Expires == nil {
		return fmt.Errorf("intent op nonce and expires are required")
	}
	return nil
}

func digest(h Hasher, op *models.IntentOp) (common.Hash, error) {
	structHash, err := h.StructHash(op)
	if err != nil {
		return common.Hash{}, err
	}
	return TypedDataHash(h.DomainSeparator(op.NotarizedChainID()), structHash), nil
}

// Digest returns the signing digest of a bundle. The notarized element's
// funding method selects between the Compact and Permit2 digests, and an
// intent executor element on its own destination chain signs SingleChainOps.
func Digest(p protocol.Protocol, op *models.IntentOp) (common.Hash, error) {
	if err := validate(op); err != nil {
		return common.Hash{}, err
	}
	if p.Version == protocol.V0 {
		return New(p).Digest(op)
	}

	notarized := op.Elements[0]
	switch {
	case notarized.Mandate.Qualifier.SettlementLayer == models.SettlementIntentExecutor &&
		notarized.ChainID == notarized.Mandate.DestinationChainID:
		return SingleChainDigest(p, notarized.Arbiter, notarized.ChainID, SingleChainOps{
			Account: op.Sponsor,
			Nonce:   op.Nonce,
			Op:      notarized.Mandate.DestinationOps,
		})
	case notarized.Mandate.Qualifier.FundingMethod == models.FundingPermit2:
		return Permit2Digest(p, op, 0)
	}
	return New(p).Digest(op)
}
