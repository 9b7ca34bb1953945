package validators

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/speedrun-hq/speedrun-executor/pkg/models"
)

var permissionIDArgs = abi.Arguments{
	{Type: mustType("address", nil)},
	{Type: mustType("bytes", nil)},
	{Type: mustType("bytes32", nil)},
}

// PermissionID returns the id the session registrar stores a session under:
// keccak256(abi.encode(sessionValidator, sessionValidatorInitData, salt)).
func PermissionID(s *models.Session) common.Hash {
	initData := s.SessionValidatorInitData
	if initData == nil {
		initData = []byte{}
	}
	encoded, err := permissionIDArgs.Pack(s.SessionValidator, initData, s.Salt)
	if err != nil {
		// static layout, only reachable on a programming error
		panic(err)
	}
	return crypto.Keccak256Hash(encoded)
}
