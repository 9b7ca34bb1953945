package compact

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/speedrun-hq/speedrun-executor/pkg/models"
)

// mandateTypes is the Mandate witness shared by Compact v1 and Permit2
var mandateTypes = Types{
	"Mandate": {
		{"target", "Target"},
		{"minGas", "uint128"},
		{"originOps", "Op"},
		{"destOps", "Op"},
		{"q", "bytes32"},
	},
	"Target": {
		{"recipient", "address"},
		{"tokenOut", "Token[]"},
		{"targetChain", "uint256"},
		{"fillExpiry", "uint256"},
	},
	"Token": {
		{"token", "address"},
		{"amount", "uint256"},
	},
	"Op": {
		{"vt", "bytes32"},
		{"ops", "Ops[]"},
	},
	"Ops": {
		{"to", "address"},
		{"value", "uint256"},
		{"data", "bytes"},
	},
}

var (
	mandateTypeHash = mandateTypes.TypeHash("Mandate")
	targetTypeHash  = mandateTypes.TypeHash("Target")
	tokenTypeHash   = mandateTypes.TypeHash("Token")
	opTypeHash      = mandateTypes.TypeHash("Op")
	opsTypeHash     = mandateTypes.TypeHash("Ops")
)

func hashCall(c models.Call) common.Hash {
	return crypto.Keccak256Hash(
		opsTypeHash.Bytes(),
		addressWord(c.To),
		uintWord(c.Value),
		crypto.Keccak256(c.Data),
	)
}

func hashOp(o models.Ops) common.Hash {
	calls := make([]common.Hash, len(o.Calls))
	for i, c := range o.Calls {
		calls[i] = hashCall(c)
	}
	return crypto.Keccak256Hash(opTypeHash.Bytes(), o.VT.Bytes(), concatHash(calls).Bytes())
}

func hashToken(t models.TokenAmount) common.Hash {
	return crypto.Keccak256Hash(tokenTypeHash.Bytes(), addressWord(t.Token()), uintWord(t.Amount))
}

func hashTokens(tokens []models.TokenAmount) common.Hash {
	hashes := make([]common.Hash, len(tokens))
	for i, t := range tokens {
		hashes[i] = hashToken(t)
	}
	return concatHash(hashes)
}

func hashTarget(m *models.Mandate) common.Hash {
	return crypto.Keccak256Hash(
		targetTypeHash.Bytes(),
		addressWord(m.Recipient),
		hashTokens(m.TokenOut).Bytes(),
		uint64Word(m.DestinationChainID),
		uintWord(m.FillDeadline),
	)
}

// QualifierHash returns the q field of a mandate
func QualifierHash(q models.Qualifier) common.Hash {
	return crypto.Keccak256Hash(q.EncodedVal)
}

func hashMandate(m *models.Mandate) common.Hash {
	return crypto.Keccak256Hash(
		mandateTypeHash.Bytes(),
		hashTarget(m).Bytes(),
		uintWord(m.MinGas),
		hashOp(m.PreClaimOps).Bytes(),
		hashOp(m.DestinationOps).Bytes(),
		QualifierHash(m.Qualifier).Bytes(),
	)
}
