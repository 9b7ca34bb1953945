package signature

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/speedrun-hq/speedrun-executor/pkg/models"
)

func mustType(t string, components []abi.ArgumentMarshaling) abi.Type {
	typ, err := abi.NewType(t, "", components)
	if err != nil {
		panic(err)
	}
	return typ
}

var policyDataComponents = []abi.ArgumentMarshaling{
	{Name: "policy", Type: "address"},
	{Name: "initData", Type: "bytes"},
}

var sessionComponents = []abi.ArgumentMarshaling{
	{Name: "sessionValidator", Type: "address"},
	{Name: "sessionValidatorInitData", Type: "bytes"},
	{Name: "salt", Type: "bytes32"},
	{Name: "userOpPolicies", Type: "tuple[]", Components: policyDataComponents},
	{Name: "erc7739Policies", Type: "tuple", Components: []abi.ArgumentMarshaling{
		{Name: "allowedERC7739Content", Type: "tuple[]", Components: []abi.ArgumentMarshaling{
			{Name: "appDomainSeparator", Type: "bytes32"},
			{Name: "contentName", Type: "string[]"},
		}},
		{Name: "erc1271Policies", Type: "tuple[]", Components: policyDataComponents},
	}},
	{Name: "actions", Type: "tuple[]", Components: []abi.ArgumentMarshaling{
		{Name: "actionTargetSelector", Type: "bytes4"},
		{Name: "actionTarget", Type: "address"},
		{Name: "actionPolicies", Type: "tuple[]", Components: policyDataComponents},
	}},
	{Name: "permitERC4337Paymaster", Type: "bool"},
}

var enableSessionArgs = abi.Arguments{
	{Type: mustType("tuple", []abi.ArgumentMarshaling{
		{Name: "chainDigestIndex", Type: "uint8"},
		{Name: "hashesAndChainIds", Type: "tuple[]", Components: []abi.ArgumentMarshaling{
			{Name: "chainId", Type: "uint64"},
			{Name: "sessionDigest", Type: "bytes32"},
		}},
		{Name: "sessionToEnable", Type: "tuple", Components: sessionComponents},
		{Name: "permissionEnableSig", Type: "bytes"},
	})},
	{Type: mustType("bytes", nil)},
}

type enableSession struct {
	ChainDigestIndex    uint8                `abi:"chainDigestIndex"`
	HashesAndChainIDs   []models.ChainDigest `abi:"hashesAndChainIds"`
	SessionToEnable     models.Session       `abi:"sessionToEnable"`
	PermissionEnableSig []byte               `abi:"permissionEnableSig"`
}

// EncodeEnableSession ABI-encodes the enable payload and the session signature.
// The owner approval is prefixed with the validator that checks it.
func EncodeEnableSession(session *models.Session, enable *models.EnableData, raw []byte) ([]byte, error) {
	if int(enable.ChainDigestIndex) >= len(enable.HashesAndChainIDs) {
		return nil, fmt.Errorf("chain digest index %d out of range", enable.ChainDigestIndex)
	}
	enableSig := append(enable.Validator.Bytes(), enable.UserSignature...)
	payload, err := enableSessionArgs.Pack(enableSession{
		ChainDigestIndex:    enable.ChainDigestIndex,
		HashesAndChainIDs:   enable.HashesAndChainIDs,
		SessionToEnable:     normalizeSession(*session),
		PermissionEnableSig: enableSig,
	}, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to encode enable session: %v", err)
	}
	return payload, nil
}

// normalizeSession returns s with empty rather than nil validator init data
func normalizeSession(s models.Session) models.Session {
	if s.SessionValidatorInitData == nil {
		s.SessionValidatorInitData = []byte{}
	}
	return s
}
