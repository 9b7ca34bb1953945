package validators

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/speedrun-hq/speedrun-executor/pkg/models"
	"github.com/speedrun-hq/speedrun-executor/pkg/protocol"
	"github.com/speedrun-hq/speedrun-executor/pkg/signer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	ownerA = common.HexToAddress("0xf6c02c78ded62973b43bfa523b247da099486936")
	ownerB = common.HexToAddress("0x6092086a3dc0020cd604a68fcf5d430007d51bb7")
	ownerC = common.HexToAddress("0xc27b7578151c5ef713c62c65db09763d57ac3596")
)

func words(ws ...string) string {
	var b strings.Builder
	b.WriteString("0x")
	for _, w := range ws {
		b.WriteString(strings.Repeat("0", 64-len(w)))
		b.WriteString(w)
	}
	return b.String()
}

func TestOwnableGolden(t *testing.T) {
	tests := []struct {
		name      string
		threshold uint64
		owners    []common.Address
		want      string
	}{
		{
			name:      "single owner",
			threshold: 1,
			owners:    []common.Address{ownerA},
			want:      words("1", "40", "1", "f6c02c78ded62973b43bfa523b247da099486936"),
		},
		{
			name:      "two owners sorted",
			threshold: 1,
			owners:    []common.Address{ownerA, ownerB},
			want: words("1", "40", "2",
				"6092086a3dc0020cd604a68fcf5d430007d51bb7",
				"f6c02c78ded62973b43bfa523b247da099486936"),
		},
		{
			name:      "three owners threshold 2",
			threshold: 2,
			owners:    []common.Address{ownerA, ownerB, ownerC},
			want: words("2", "40", "3",
				"6092086a3dc0020cd604a68fcf5d430007d51bb7",
				"c27b7578151c5ef713c62c65db09763d57ac3596",
				"f6c02c78ded62973b43bfa523b247da099486936"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Ownable(tt.threshold, tt.owners)
			require.NoError(t, err)
			assert.Equal(t, protocol.OwnableValidator, m.Address)
			assert.Equal(t, TypeValidator, m.Type)
			assert.Equal(t, "0x", hexutil.Encode(m.DeInitData))
			assert.Equal(t, tt.want, hexutil.Encode(m.InitData))
		})
	}

	// input order is left untouched
	owners := []common.Address{ownerA, ownerB}
	_, err := Ownable(1, owners)
	require.NoError(t, err)
	assert.Equal(t, ownerA, owners[0])
}

func TestOwnableOptionsAndErrors(t *testing.T) {
	custom := common.HexToAddress("0x1234")
	m, err := Ownable(1, []common.Address{ownerA}, WithAddress(custom))
	require.NoError(t, err)
	assert.Equal(t, custom, m.Address)

	_, err = Ownable(0, []common.Address{ownerA})
	assert.Error(t, err)
	_, err = Ownable(2, []common.Address{ownerA})
	assert.Error(t, err)
}

func TestWebAuthnGolden(t *testing.T) {
	x, _ := new(big.Int).SetString("580a9af0569ad3905b26a703201b358aa0904236642ebe79b22a19d00d373763", 16)
	y, _ := new(big.Int).SetString("7d46f725a5427ae45a9569259bf67e1e16b187d7b3ad1ed70138c4f0409677d1", 16)

	m, err := WebAuthn(1, []signer.Credential{{PubKeyX: x, PubKeyY: y}})
	require.NoError(t, err)
	assert.Equal(t, protocol.WebAuthnValidator, m.Address)
	assert.Equal(t,
		words("1", "40", "1",
			"580a9af0569ad3905b26a703201b358aa0904236642ebe79b22a19d00d373763",
			"7d46f725a5427ae45a9569259bf67e1e16b187d7b3ad1ed70138c4f0409677d1",
			"0"),
		hexutil.Encode(m.InitData))

	_, err = WebAuthn(1, []signer.Credential{{}})
	assert.Error(t, err)
}

func TestENS(t *testing.T) {
	exp := big.NewInt(1_900_000_000)
	m, err := ENS(1, []ENSOwner{{Address: ownerA}, {Address: ownerB, Expiration: exp}})
	require.NoError(t, err)
	assert.Equal(t, protocol.ENSValidator, m.Address)
	assert.Equal(t,
		words("1", "40", "2",
			"6092086a3dc0020cd604a68fcf5d430007d51bb7", "713fb300",
			"f6c02c78ded62973b43bfa523b247da099486936", "ffffffffffff"),
		hexutil.Encode(m.InitData))

	_, err = ENS(1, []ENSOwner{{Address: ownerA, Expiration: new(big.Int).Lsh(big.NewInt(1), 48)}})
	assert.Error(t, err)
}

func TestSocialRecoveryUsesOwnableLayout(t *testing.T) {
	recovery, err := SocialRecovery(1, []common.Address{ownerA})
	require.NoError(t, err)
	ownable, err := Ownable(1, []common.Address{ownerA})
	require.NoError(t, err)

	assert.Equal(t, protocol.SocialRecoveryValidator, recovery.Address)
	assert.Equal(t, ownable.InitData, recovery.InitData)
}

func TestMultiFactor(t *testing.T) {
	ownable, err := Ownable(1, []common.Address{ownerA})
	require.NoError(t, err)
	ens, err := ENS(1, []ENSOwner{{Address: ownerB}})
	require.NoError(t, err)

	m, err := MultiFactor(2, []*Module{ownable, nil, ens})
	require.NoError(t, err)
	assert.Equal(t, protocol.MultiFactorValidator, m.Address)

	data := m.InitData
	assert.Equal(t, byte(2), data[0])
	assert.Equal(t, common.LeftPadBytes([]byte{0x20}, 32), data[1:33], "offset of the entry array")
	assert.Equal(t, common.LeftPadBytes([]byte{2}, 32), data[33:65], "entry count skips nil slots")

	first := append(make([]byte, 12), protocol.OwnableValidator.Bytes()...)
	third := append(common.LeftPadBytes([]byte{2}, 12), protocol.ENSValidator.Bytes()...)
	assert.True(t, bytes.Contains(data, first))
	assert.True(t, bytes.Contains(data, third), "entry keeps its slot index as id")
	assert.True(t, bytes.Contains(data, ownable.InitData))

	_, err = MultiFactor(3, []*Module{ownable, ens})
	assert.Error(t, err)
}

func TestPermissionID(t *testing.T) {
	session := &models.Session{
		SessionValidator:         ownerC,
		SessionValidatorInitData: hexutil.MustDecode("0xdeadbeef"),
		Salt:                     common.HexToHash("0x05"),
	}
	expected := crypto.Keccak256Hash(
		common.LeftPadBytes(ownerC.Bytes(), 32),
		common.LeftPadBytes([]byte{0x60}, 32),
		common.HexToHash("0x05").Bytes(),
		common.LeftPadBytes([]byte{4}, 32),
		common.RightPadBytes(hexutil.MustDecode("0xdeadbeef"), 32),
	)
	assert.Equal(t, expected, PermissionID(session))

	other := *session
	other.Salt = common.HexToHash("0x06")
	assert.NotEqual(t, PermissionID(session), PermissionID(&other))
}

func newKey(t *testing.T) *signer.ECDSA {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return signer.NewECDSA(key)
}

func TestResolveOwners(t *testing.T) {
	p := protocol.For(protocol.V1)
	owners := &models.OwnerSigners{Kind: models.OwnerECDSA, Threshold: 1, ECDSA: []*signer.ECDSA{newKey(t), newKey(t)}}
	r := NewResolver(p, owners, nil)

	res, err := r.Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, models.ValidatorRef{Address: p.OwnableValidator, IsRoot: true}, res.Validator)
	assert.Equal(t, models.SignerOwnerECDSA, res.Kind)

	sig, err := res.Signer.Sign(context.Background(), common.HexToHash("0x01"))
	require.NoError(t, err)
	assert.Len(t, sig, 2*signer.SignatureLength)

	custom := common.HexToAddress("0xabc")
	res, err = r.Resolve(&models.OwnerSigners{Kind: models.OwnerECDSA, ECDSA: owners.ECDSA[:1], Validator: custom})
	require.NoError(t, err)
	assert.Equal(t, custom, res.Validator.Address)

	passkey := signer.NewPasskey(nil, signer.Credential{})
	res, err = r.Resolve(&models.OwnerSigners{Kind: models.OwnerPasskey, Passkey: passkey})
	require.NoError(t, err)
	assert.Equal(t, p.WebAuthnValidator, res.Validator.Address)
	assert.Equal(t, models.SignerOwnerPasskey, res.Kind)
}

func TestResolveSession(t *testing.T) {
	p := protocol.For(protocol.V1)
	sessionKey := newKey(t)
	session := &models.Session{
		SessionValidator: ownerC,
		Owners:           &models.OwnerSigners{Kind: models.OwnerECDSA, ECDSA: []*signer.ECDSA{sessionKey}},
	}
	accountOwners := &models.OwnerSigners{Kind: models.OwnerECDSA, ECDSA: []*signer.ECDSA{newKey(t)}}

	r := NewResolver(p, accountOwners, &models.SessionSigners{Session: session})
	res, err := r.Resolve(&models.SessionSigners{})
	require.NoError(t, err)
	assert.Equal(t, models.ValidatorRef{Address: p.SmartSessions, IsRoot: false}, res.Validator)
	assert.Equal(t, models.SignerSession, res.Kind)
	assert.Same(t, session, res.Session)

	digest := common.HexToHash("0x02")
	sig, err := res.Signer.Sign(context.Background(), digest)
	require.NoError(t, err)
	sig[64] -= 27
	pub, err := crypto.SigToPub(digest.Bytes(), sig)
	require.NoError(t, err)
	assert.Equal(t, sessionKey.Address(), crypto.PubkeyToAddress(*pub), "signed by the session key, not the account owner")
}

func TestResolveUnavailable(t *testing.T) {
	p := protocol.For(protocol.V1)
	owners := &models.OwnerSigners{Kind: models.OwnerECDSA, ECDSA: []*signer.ECDSA{newKey(t)}}

	tests := []struct {
		name     string
		resolver *Resolver
		set      models.SignerSet
	}{
		{"no owners", NewResolver(p, nil, nil), nil},
		{"session without config", NewResolver(p, owners, nil), &models.SessionSigners{}},
		{"session without signers", NewResolver(p, owners, nil), &models.SessionSigners{Session: &models.Session{}}},
		{"empty ecdsa owners", NewResolver(p, owners, nil), &models.OwnerSigners{Kind: models.OwnerECDSA}},
		{"missing passkey", NewResolver(p, owners, nil), &models.OwnerSigners{Kind: models.OwnerPasskey}},
		{"no guardians", NewResolver(p, owners, nil), &models.GuardianSigners{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.resolver.Resolve(tt.set)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidatorUnavailable))
		})
	}
}

func TestResolveGuardians(t *testing.T) {
	p := protocol.For(protocol.V1)
	guardians := &models.GuardianSigners{Guardians: []*signer.ECDSA{newKey(t), newKey(t)}, Threshold: 2}

	res, err := NewResolver(p, nil, nil).Resolve(guardians)
	require.NoError(t, err)
	assert.Equal(t, p.SocialRecoveryValidator, res.Validator.Address)
	assert.False(t, res.Validator.IsRoot)
	assert.Equal(t, models.SignerGuardians, res.Kind)
	require.NotNil(t, res.Module)

	expected, err := SocialRecovery(2, guardians.Addresses())
	require.NoError(t, err)
	assert.Equal(t, expected.InitData, res.Module.InitData)
}
