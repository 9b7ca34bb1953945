package models

import (
	"github.com/ethereum/go-ethereum/common"
)

// PolicyData is a policy contract and its init data
type PolicyData struct {
	Policy   common.Address `abi:"policy"`
	InitData []byte         `abi:"initData"`
}

// ERC7739Context is an app domain and the content names allowed under it
type ERC7739Context struct {
	AppDomainSeparator [32]byte `abi:"appDomainSeparator"`
	ContentName        []string `abi:"contentName"`
}

// ERC7739Data lists the nested typed data a session may sign
type ERC7739Data struct {
	AllowedERC7739Content []ERC7739Context `abi:"allowedERC7739Content"`
	ERC1271Policies       []PolicyData     `abi:"erc1271Policies"`
}

// ActionData scopes a session to a target and selector
type ActionData struct {
	ActionTargetSelector [4]byte        `abi:"actionTargetSelector"`
	ActionTarget         common.Address `abi:"actionTarget"`
	ActionPolicies       []PolicyData   `abi:"actionPolicies"`
}

// Session is a smart session definition as the session registrar stores it
type Session struct {
	SessionValidator         common.Address `abi:"sessionValidator"`
	SessionValidatorInitData []byte         `abi:"sessionValidatorInitData"`
	Salt                     [32]byte       `abi:"salt"`
	UserOpPolicies           []PolicyData   `abi:"userOpPolicies"`
	ERC7739Policies          ERC7739Data    `abi:"erc7739Policies"`
	Actions                  []ActionData   `abi:"actions"`
	PermitERC4337Paymaster   bool           `abi:"permitERC4337Paymaster"`

	// Owners sign on behalf of the session; they are not the account owners
	Owners *OwnerSigners
}

// ChainDigest binds a session digest to a chain
type ChainDigest struct {
	ChainID       uint64   `abi:"chainId"`
	SessionDigest [32]byte `abi:"sessionDigest"`
}

// EnableData is a pre-computed owner approval for installing a session
type EnableData struct {
	ChainDigestIndex  uint8
	HashesAndChainIDs []ChainDigest
	// UserSignature is the owner signature over the multichain enable digest
	UserSignature []byte
	// Validator checked UserSignature
	Validator common.Address
}
