package signer

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestECDSA(t *testing.T) *ECDSA {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return NewECDSA(key)
}

func TestECDSASign(t *testing.T) {
	s := newTestECDSA(t)
	digest := crypto.Keccak256Hash([]byte("digest"))

	sig, err := s.Sign(context.Background(), digest)
	require.NoError(t, err)
	require.Len(t, sig, SignatureLength)
	assert.Contains(t, []byte{27, 28}, sig[64])

	recoverable := append([]byte{}, sig...)
	recoverable[64] -= 27
	pub, err := crypto.SigToPub(digest[:], recoverable)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), crypto.PubkeyToAddress(*pub))
}

func TestECDSASignCancelled(t *testing.T) {
	s := newTestECDSA(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Sign(ctx, common.Hash{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewECDSAFromHex(t *testing.T) {
	key := "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	a, err := NewECDSAFromHex(key)
	require.NoError(t, err)
	b, err := NewECDSAFromHex("0x" + key)
	require.NoError(t, err)
	assert.Equal(t, a.Address(), b.Address())

	_, err = NewECDSAFromHex("zz")
	assert.Error(t, err)
}

func TestMultiSign(t *testing.T) {
	owners := []*ECDSA{newTestECDSA(t), newTestECDSA(t), newTestECDSA(t)}
	m := NewMulti(owners...)
	digest := crypto.Keccak256Hash([]byte("multi"))

	sig, err := m.Sign(context.Background(), digest)
	require.NoError(t, err)
	require.Len(t, sig, 3*SignatureLength)

	for i, owner := range owners {
		chunk := append([]byte{}, sig[i*SignatureLength:(i+1)*SignatureLength]...)
		chunk[64] -= 27
		pub, err := crypto.SigToPub(digest[:], chunk)
		require.NoError(t, err)
		assert.Equal(t, owner.Address(), crypto.PubkeyToAddress(*pub), "owner %d out of order", i)
	}
	assert.Equal(t, []common.Address{owners[0].Address(), owners[1].Address(), owners[2].Address()}, m.Owners())

	_, err = NewMulti().Sign(context.Background(), digest)
	assert.Error(t, err)
}

type fakeAuthenticator struct {
	key            *ecdsa.PrivateKey
	clientDataJSON string
	err            error
	raw            bool
}

func (f *fakeAuthenticator) Assert(_ context.Context, challenge []byte) (*Assertion, error) {
	if f.err != nil {
		return nil, f.err
	}
	h := sha256.Sum256(challenge)
	var sig []byte
	if f.raw {
		r, s, err := ecdsa.Sign(rand.Reader, f.key, h[:])
		if err != nil {
			return nil, err
		}
		sig = append(common.LeftPadBytes(r.Bytes(), 32), common.LeftPadBytes(s.Bytes(), 32)...)
	} else {
		der, err := ecdsa.SignASN1(rand.Reader, f.key, h[:])
		if err != nil {
			return nil, err
		}
		sig = der
	}
	return &Assertion{
		AuthenticatorData: []byte{0x49, 0x96, 0x0d, 0xe5},
		ClientDataJSON:    f.clientDataJSON,
		Signature:         sig,
	}, nil
}

func TestPasskeySign(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	clientData := `{"type":"webauthn.get","challenge":"q83v","origin":"https://example.org"}`

	for _, raw := range []bool{false, true} {
		auth := &fakeAuthenticator{key: key, clientDataJSON: clientData, raw: raw}
		p := NewPasskey(auth, Credential{PubKeyX: key.X, PubKeyY: key.Y})
		digest := crypto.Keccak256Hash([]byte("passkey"))

		encoded, err := p.Sign(context.Background(), digest)
		require.NoError(t, err)

		values, err := webAuthnSignatureArgs.Unpack(encoded)
		require.NoError(t, err)
		require.Len(t, values, 6)

		assert.Equal(t, []byte{0x49, 0x96, 0x0d, 0xe5}, values[0].([]byte))
		assert.Equal(t, clientData, values[1].(string))
		assert.Equal(t, int64(23), values[2].(*big.Int).Int64())
		assert.Equal(t, int64(1), values[3].(*big.Int).Int64())

		r := values[4].(*big.Int)
		s := values[5].(*big.Int)
		assert.True(t, s.Cmp(p256HalfOrder) <= 0, "s must be low")
		h := sha256.Sum256(digest.Bytes())
		assert.True(t, ecdsa.Verify(&key.PublicKey, h[:], r, s))
	}
}

func TestPasskeyErrors(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	declined := errors.New("user declined")
	p := NewPasskey(&fakeAuthenticator{err: declined}, Credential{})
	_, err = p.Sign(context.Background(), common.Hash{})
	assert.ErrorIs(t, err, declined)

	p = NewPasskey(&fakeAuthenticator{key: key, clientDataJSON: `{"type":"webauthn.get"}`}, Credential{})
	_, err = p.Sign(context.Background(), common.Hash{})
	assert.ErrorContains(t, err, "challenge")

	_, err = EncodeWebAuthnSignature(&Assertion{Signature: []byte{0x30, 0x01}, ClientDataJSON: `{"type":"","challenge":""}`})
	assert.ErrorContains(t, err, "invalid DER")
}
