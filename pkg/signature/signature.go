// Package signature packs raw signer output into the encodings accepted by
// validator modules, the session registrar and ERC-1271 callers.
package signature

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/speedrun-hq/speedrun-executor/pkg/libzip"
	"github.com/speedrun-hq/speedrun-executor/pkg/models"
	"github.com/speedrun-hq/speedrun-executor/pkg/signer"
	"github.com/speedrun-hq/speedrun-executor/pkg/validators"
)

// Session signature modes of the session registrar
const (
	ModeUse    byte = 0x00
	ModeEnable byte = 0x01
)

// Extra carries the session a signature is packed for
type Extra struct {
	Session *models.Session
	// Enable switches to enable mode when the session is not installed yet
	Enable *models.EnableData
}

// Pack encodes a raw signature for its validator. Owner and guardian
// signatures are prefixed with the validator address; session signatures
// are wrapped in the registrar's use or enable encoding.
func Pack(raw []byte, v models.ValidatorRef, kind models.SignerKind, extra *Extra) ([]byte, error) {
	switch kind {
	case models.SignerOwnerECDSA, models.SignerOwnerPasskey, models.SignerGuardians:
		return append(v.Address.Bytes(), raw...), nil
	case models.SignerSession:
		return packSession(raw, extra)
	}
	return nil, fmt.Errorf("unknown signer kind: %s", kind)
}

func packSession(raw []byte, extra *Extra) ([]byte, error) {
	if extra == nil || extra.Session == nil {
		return nil, fmt.Errorf("session signature requires a session")
	}
	if extra.Enable != nil {
		payload, err := EncodeEnableSession(extra.Session, extra.Enable, raw)
		if err != nil {
			return nil, err
		}
		return append([]byte{ModeEnable}, libzip.Compress(payload)...), nil
	}

	permissionID := validators.PermissionID(extra.Session)
	out := make([]byte, 0, 1+common.HashLength+len(raw))
	out = append(out, ModeUse)
	out = append(out, permissionID.Bytes()...)
	return append(out, raw...), nil
}

// ForUserOp encodes the signature field of a user operation. The validator is
// selected by the nonce key, so owner signatures are not prefixed.
func ForUserOp(raw []byte, kind models.SignerKind, extra *Extra) ([]byte, error) {
	if kind == models.SignerSession {
		return packSession(raw, extra)
	}
	return raw, nil
}

// ForERC1271 encodes a signature checked through the account's isValidSignature,
// which routes on a leading validator address.
func ForERC1271(raw []byte, v models.ValidatorRef, kind models.SignerKind, extra *Extra) ([]byte, error) {
	packed, err := Pack(raw, v, kind, extra)
	if err != nil {
		return nil, err
	}
	if kind == models.SignerSession {
		return append(v.Address.Bytes(), packed...), nil
	}
	return packed, nil
}

// WrapERC7739 appends the nested typed data fields an ERC-7739 validator
// needs to rebuild the TypedDataSign hash. It is applied before packing.
func WrapERC7739(sig []byte, appDomainSeparator, contentsHash common.Hash, contentsDescription string) ([]byte, error) {
	if len(contentsDescription) > 0xffff {
		return nil, fmt.Errorf("contents description too long: %d bytes", len(contentsDescription))
	}
	out := make([]byte, 0, len(sig)+2*common.HashLength+len(contentsDescription)+2)
	out = append(out, sig...)
	out = append(out, appDomainSeparator.Bytes()...)
	out = append(out, contentsHash.Bytes()...)
	out = append(out, contentsDescription...)
	return binary.BigEndian.AppendUint16(out, uint16(len(contentsDescription))), nil
}

// SplitOwnerSignatures splits concatenated owner signatures into 65-byte chunks
func SplitOwnerSignatures(sig []byte) ([][]byte, error) {
	if len(sig) == 0 || len(sig)%signer.SignatureLength != 0 {
		return nil, fmt.Errorf("invalid owner signature length: %d", len(sig))
	}
	out := make([][]byte, 0, len(sig)/signer.SignatureLength)
	for i := 0; i < len(sig); i += signer.SignatureLength {
		out = append(out, common.CopyBytes(sig[i:i+signer.SignatureLength]))
	}
	return out, nil
}
