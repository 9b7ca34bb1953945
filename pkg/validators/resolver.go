package validators

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/speedrun-hq/speedrun-executor/pkg/models"
	"github.com/speedrun-hq/speedrun-executor/pkg/protocol"
	"github.com/speedrun-hq/speedrun-executor/pkg/signer"
)

// ErrValidatorUnavailable is returned when a signer set cannot be resolved
var ErrValidatorUnavailable = errors.New("validator unavailable")

// Resolution is a resolved signer set
type Resolution struct {
	Validator models.ValidatorRef
	Kind      models.SignerKind
	Signer    signer.Signer
	// Session and Enable are set for SignerSession
	Session *models.Session
	Enable  *models.EnableData
	// Module is the ad hoc recovery module for SignerGuardians
	Module *Module
}

// Resolver maps signer sets to validators using the account's configured signers
type Resolver struct {
	protocol protocol.Protocol
	owners   *models.OwnerSigners
	session  *models.SessionSigners
}

// NewResolver creates a resolver. owners and session are the account defaults and may be nil.
func NewResolver(p protocol.Protocol, owners *models.OwnerSigners, session *models.SessionSigners) *Resolver {
	return &Resolver{protocol: p, owners: owners, session: session}
}

// Resolve picks the validator and signer for override, or for the account owners when override is nil.
// It never falls back to a different scheme than the one requested.
func (r *Resolver) Resolve(override models.SignerSet) (*Resolution, error) {
	set := override
	if set == nil {
		if r.owners == nil {
			return nil, fmt.Errorf("%w: no owners configured", ErrValidatorUnavailable)
		}
		set = r.owners
	}

	switch s := set.(type) {
	case *models.OwnerSigners:
		return r.resolveOwners(s)
	case *models.SessionSigners:
		return r.resolveSession(s)
	case *models.GuardianSigners:
		return r.resolveGuardians(s)
	}
	return nil, fmt.Errorf("%w: unsupported signer set %T", ErrValidatorUnavailable, set)
}

func (r *Resolver) resolveOwners(o *models.OwnerSigners) (*Resolution, error) {
	switch o.Kind {
	case models.OwnerECDSA:
		if len(o.ECDSA) == 0 {
			return nil, fmt.Errorf("%w: no ecdsa owners", ErrValidatorUnavailable)
		}
		addr := r.protocol.OwnableValidator
		if o.Validator != (common.Address{}) {
			addr = o.Validator
		}
		return &Resolution{
			Validator: models.ValidatorRef{Address: addr, IsRoot: true},
			Kind:      models.SignerOwnerECDSA,
			Signer:    signer.NewMulti(o.ECDSA...),
		}, nil
	case models.OwnerPasskey:
		if o.Passkey == nil {
			return nil, fmt.Errorf("%w: no passkey owner", ErrValidatorUnavailable)
		}
		addr := r.protocol.WebAuthnValidator
		if o.Validator != (common.Address{}) {
			addr = o.Validator
		}
		return &Resolution{
			Validator: models.ValidatorRef{Address: addr, IsRoot: true},
			Kind:      models.SignerOwnerPasskey,
			Signer:    o.Passkey,
		}, nil
	}
	return nil, fmt.Errorf("%w: unknown owner kind %d", ErrValidatorUnavailable, o.Kind)
}

func (r *Resolver) resolveSession(s *models.SessionSigners) (*Resolution, error) {
	if s.Session == nil && r.session != nil {
		s = r.session
	}
	if s.Session == nil {
		return nil, fmt.Errorf("%w: no session configured", ErrValidatorUnavailable)
	}
	owners := s.Session.Owners
	if owners == nil {
		return nil, fmt.Errorf("%w: session has no signers", ErrValidatorUnavailable)
	}

	// the session is checked by the session registrar, never by the account owners
	ownerRes, err := r.resolveOwners(owners)
	if err != nil {
		return nil, err
	}
	return &Resolution{
		Validator: models.ValidatorRef{Address: r.protocol.SmartSessions, IsRoot: false},
		Kind:      models.SignerSession,
		Signer:    ownerRes.Signer,
		Session:   s.Session,
		Enable:    s.Enable,
	}, nil
}

func (r *Resolver) resolveGuardians(g *models.GuardianSigners) (*Resolution, error) {
	if len(g.Guardians) == 0 {
		return nil, fmt.Errorf("%w: no guardians", ErrValidatorUnavailable)
	}
	threshold := g.Threshold
	if threshold == 0 {
		threshold = 1
	}
	module, err := SocialRecovery(threshold, g.Addresses(), WithAddress(r.protocol.SocialRecoveryValidator))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidatorUnavailable, err)
	}
	return &Resolution{
		Validator: models.ValidatorRef{Address: module.Address, IsRoot: false},
		Kind:      models.SignerGuardians,
		Signer:    signer.NewMulti(g.Guardians...),
		Module:    module,
	}, nil
}
