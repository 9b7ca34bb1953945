package signer

import (
	"context"
	"crypto/elliptic"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// Assertion is the result of a WebAuthn get() ceremony
type Assertion struct {
	AuthenticatorData []byte
	ClientDataJSON    string
	// Signature is either ASN.1 DER or raw 64-byte r || s
	Signature []byte
}

// Authenticator performs a WebAuthn assertion over a challenge. It may wait for the user.
type Authenticator interface {
	Assert(ctx context.Context, challenge []byte) (*Assertion, error)
}

// Credential is a P-256 public key registered with the WebAuthn validator
type Credential struct {
	PubKeyX *big.Int
	PubKeyY *big.Int
}

// Passkey signs by asking an authenticator for an assertion over the digest
type Passkey struct {
	authenticator Authenticator
	credential    Credential
}

var _ Signer = (*Passkey)(nil)

// NewPasskey creates a passkey signer
func NewPasskey(authenticator Authenticator, credential Credential) *Passkey {
	return &Passkey{authenticator: authenticator, credential: credential}
}

// Credential returns the public key of the passkey
func (p *Passkey) Credential() Credential {
	return p.credential
}

// Sign asks the authenticator for an assertion and returns the encoded signature
func (p *Passkey) Sign(ctx context.Context, digest common.Hash) ([]byte, error) {
	assertion, err := p.authenticator.Assert(ctx, digest.Bytes())
	if err != nil {
		return nil, fmt.Errorf("passkey assertion failed: %w", err)
	}
	return EncodeWebAuthnSignature(assertion)
}

var p256HalfOrder = new(big.Int).Rsh(elliptic.P256().Params().N, 1)

var webAuthnSignatureArgs = abi.Arguments{
	{Name: "authenticatorData", Type: mustType("bytes")},
	{Name: "clientDataJSON", Type: mustType("string")},
	{Name: "challengeIndex", Type: mustType("uint256")},
	{Name: "typeIndex", Type: mustType("uint256")},
	{Name: "r", Type: mustType("uint256")},
	{Name: "s", Type: mustType("uint256")},
}

// EncodeWebAuthnSignature ABI-encodes an assertion as
// (bytes authenticatorData, string clientDataJSON, uint256 challengeIndex, uint256 typeIndex, uint256 r, uint256 s)
// with s normalized to the lower half of the curve order.
func EncodeWebAuthnSignature(a *Assertion) ([]byte, error) {
	if a == nil {
		return nil, fmt.Errorf("nil assertion")
	}
	r, s, err := parseP256Signature(a.Signature)
	if err != nil {
		return nil, err
	}
	if s.Cmp(p256HalfOrder) > 0 {
		s = new(big.Int).Sub(elliptic.P256().Params().N, s)
	}

	challengeIndex := strings.Index(a.ClientDataJSON, `"challenge":`)
	if challengeIndex < 0 {
		return nil, fmt.Errorf("clientDataJSON has no challenge field")
	}
	typeIndex := strings.Index(a.ClientDataJSON, `"type":`)
	if typeIndex < 0 {
		return nil, fmt.Errorf("clientDataJSON has no type field")
	}

	return webAuthnSignatureArgs.Pack(
		a.AuthenticatorData,
		a.ClientDataJSON,
		big.NewInt(int64(challengeIndex)),
		big.NewInt(int64(typeIndex)),
		r,
		s,
	)
}

func parseP256Signature(sig []byte) (*big.Int, *big.Int, error) {
	if len(sig) == 64 {
		return new(big.Int).SetBytes(sig[:32]), new(big.Int).SetBytes(sig[32:]), nil
	}

	r, s := new(big.Int), new(big.Int)
	var inner cryptobyte.String
	input := cryptobyte.String(sig)
	if !input.ReadASN1(&inner, cbasn1.SEQUENCE) ||
		!input.Empty() ||
		!inner.ReadASN1Integer(r) ||
		!inner.ReadASN1Integer(s) ||
		!inner.Empty() {
		return nil, nil, fmt.Errorf("invalid DER signature")
	}
	return r, s, nil
}

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}
