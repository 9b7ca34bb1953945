package signature

import (
	"bytes"
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/speedrun-hq/speedrun-executor/pkg/libzip"
	"github.com/speedrun-hq/speedrun-executor/pkg/models"
	"github.com/speedrun-hq/speedrun-executor/pkg/protocol"
	"github.com/speedrun-hq/speedrun-executor/pkg/signer"
	"github.com/speedrun-hq/speedrun-executor/pkg/validators"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSession() *models.Session {
	return &models.Session{
		SessionValidator:         protocol.OwnableValidator,
		SessionValidatorInitData: hexutil.MustDecode("0x0102"),
		Salt:                     common.HexToHash("0x07"),
		UserOpPolicies: []models.PolicyData{
			{Policy: common.HexToAddress("0x0a"), InitData: []byte{}},
		},
		ERC7739Policies: models.ERC7739Data{
			AllowedERC7739Content: []models.ERC7739Context{
				{AppDomainSeparator: common.HexToHash("0x0b"), ContentName: []string{"MultichainCompact"}},
			},
		},
		Actions: []models.ActionData{
			{
				ActionTargetSelector: [4]byte{0xa9, 0x05, 0x9c, 0xbb},
				ActionTarget:         common.HexToAddress("0x0c"),
				ActionPolicies:       []models.PolicyData{{Policy: common.HexToAddress("0x0d"), InitData: []byte{1}}},
			},
		},
	}
}

func ownerSignatures(t *testing.T, n int, digest common.Hash) []byte {
	t.Helper()
	keys := make([]*signer.ECDSA, n)
	for i := range keys {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		keys[i] = signer.NewECDSA(key)
	}
	sig, err := signer.NewMulti(keys...).Sign(context.Background(), digest)
	require.NoError(t, err)
	return sig
}

func TestPackOwnerLength(t *testing.T) {
	ref := models.ValidatorRef{Address: protocol.OwnableValidator, IsRoot: true}
	for n := 1; n <= 3; n++ {
		raw := ownerSignatures(t, n, common.HexToHash("0x01"))
		packed, err := Pack(raw, ref, models.SignerOwnerECDSA, nil)
		require.NoError(t, err)
		assert.Len(t, packed, common.AddressLength+signer.SignatureLength*n)
		assert.Equal(t, protocol.OwnableValidator.Bytes(), packed[:common.AddressLength])
	}
}

func TestPackGuardiansUsesRecoveryValidator(t *testing.T) {
	ref := models.ValidatorRef{Address: protocol.SocialRecoveryValidator}
	raw := ownerSignatures(t, 2, common.HexToHash("0x01"))
	packed, err := Pack(raw, ref, models.SignerGuardians, nil)
	require.NoError(t, err)
	assert.Equal(t, append(protocol.SocialRecoveryValidator.Bytes(), raw...), packed)
}

func TestPackSessionUse(t *testing.T) {
	session := testSession()
	ref := models.ValidatorRef{Address: protocol.SmartSessions}
	raw := ownerSignatures(t, 1, common.HexToHash("0x02"))

	packed, err := Pack(raw, ref, models.SignerSession, &Extra{Session: session})
	require.NoError(t, err)
	assert.Equal(t, ModeUse, packed[0])
	assert.Equal(t, validators.PermissionID(session).Bytes(), packed[1:33])
	assert.Equal(t, raw, packed[33:])

	userOp, err := ForUserOp(raw, models.SignerSession, &Extra{Session: session})
	require.NoError(t, err)
	assert.Equal(t, packed, userOp)

	erc1271, err := ForERC1271(raw, ref, models.SignerSession, &Extra{Session: session})
	require.NoError(t, err)
	assert.Equal(t, append(protocol.SmartSessions.Bytes(), packed...), erc1271)

	_, err = Pack(raw, ref, models.SignerSession, nil)
	assert.Error(t, err)
}

func TestPackSessionEnable(t *testing.T) {
	session := testSession()
	ref := models.ValidatorRef{Address: protocol.SmartSessions}
	raw := ownerSignatures(t, 1, common.HexToHash("0x03"))
	enable := &models.EnableData{
		ChainDigestIndex: 1,
		HashesAndChainIDs: []models.ChainDigest{
			{ChainID: 10, SessionDigest: common.HexToHash("0xaa")},
			{ChainID: 8453, SessionDigest: common.HexToHash("0xbb")},
		},
		UserSignature: ownerSignatures(t, 1, common.HexToHash("0x04")),
		Validator:     protocol.OwnableValidator,
	}

	packed, err := Pack(raw, ref, models.SignerSession, &Extra{Session: session, Enable: enable})
	require.NoError(t, err)
	assert.Equal(t, ModeEnable, packed[0])

	payload, err := libzip.Decompress(packed[1:])
	require.NoError(t, err)
	expected, err := EncodeEnableSession(session, enable, raw)
	require.NoError(t, err)
	assert.Equal(t, expected, payload)

	assert.Equal(t, common.LeftPadBytes([]byte{0x40}, 32), payload[:32], "offset of the enable session tuple")
	assert.True(t, bytes.Contains(payload, append(protocol.OwnableValidator.Bytes(), enable.UserSignature...)))
	assert.True(t, bytes.Contains(payload, raw))

	enable.ChainDigestIndex = 5
	_, err = Pack(raw, ref, models.SignerSession, &Extra{Session: session, Enable: enable})
	assert.Error(t, err)
}

func TestForUserOpOwners(t *testing.T) {
	raw := ownerSignatures(t, 2, common.HexToHash("0x05"))
	out, err := ForUserOp(raw, models.SignerOwnerECDSA, nil)
	require.NoError(t, err)
	assert.Equal(t, raw, out)

	ref := models.ValidatorRef{Address: protocol.OwnableValidator, IsRoot: true}
	erc1271, err := ForERC1271(raw, ref, models.SignerOwnerECDSA, nil)
	require.NoError(t, err)
	assert.Equal(t, append(protocol.OwnableValidator.Bytes(), raw...), erc1271)
}

func TestWrapERC7739(t *testing.T) {
	sig := []byte{1, 2, 3}
	app := common.HexToHash("0x11")
	contents := common.HexToHash("0x22")
	desc := "MultichainCompact(address sponsor)"

	out, err := WrapERC7739(sig, app, contents, desc)
	require.NoError(t, err)
	assert.Equal(t, sig, out[:3])
	assert.Equal(t, app.Bytes(), out[3:35])
	assert.Equal(t, contents.Bytes(), out[35:67])
	assert.Equal(t, desc, string(out[67:67+len(desc)]))
	assert.Equal(t, []byte{0x00, byte(len(desc))}, out[len(out)-2:])
}

func TestSplitOwnerSignatures(t *testing.T) {
	raw := ownerSignatures(t, 3, common.HexToHash("0x06"))
	parts, err := SplitOwnerSignatures(raw)
	require.NoError(t, err)
	require.Len(t, parts, 3)
	assert.Equal(t, raw, bytes.Join(parts, nil))
	for i, p := range parts {
		assert.Equal(t, raw[i*65:(i+1)*65], p)
	}

	_, err = SplitOwnerSignatures(raw[:64])
	assert.Error(t, err)
	_, err = SplitOwnerSignatures(nil)
	assert.Error(t, err)
}
