package execution

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/speedrun-hq/speedrun-executor/pkg/account"
	"github.com/speedrun-hq/speedrun-executor/pkg/compact"
	"github.com/speedrun-hq/speedrun-executor/pkg/models"
	"github.com/speedrun-hq/speedrun-executor/pkg/orchestrator"
	"github.com/speedrun-hq/speedrun-executor/pkg/protocol"
	"github.com/speedrun-hq/speedrun-executor/pkg/signature"
	"github.com/speedrun-hq/speedrun-executor/pkg/signer"
	"github.com/speedrun-hq/speedrun-executor/pkg/userop"
	"github.com/speedrun-hq/speedrun-executor/pkg/validators"
)

// dummyPasskeyLength is the size of the placeholder WebAuthn signature used for gas estimation
const dummyPasskeyLength = 512

// Prepared is a transaction ready to be signed
type Prepared struct {
	Mode          Mode
	Transaction   *models.Transaction
	TokenRequests []models.TokenRequest
	Resolution    *validators.Resolution

	// Route is the quoted bundle; nil for a single-chain user operation
	Route    *orchestrator.Route
	InitData *orchestrator.InitData
	UserOp   *models.UserOperation

	// Digest is signed first: the bundle digest in intent mode, the user operation hash otherwise
	Digest common.Hash
	// BundleDigest is the bundle digest signed next to a cross-chain user operation
	BundleDigest common.Hash

	erc7739 *erc7739Context
}

// erc7739Context holds the nested typed data fields of a wrapped bundle signature
type erc7739Context struct {
	appSeparator common.Hash
	contentsHash common.Hash
	contentsType string
}

// Expires returns the expiry of the quoted bundle, false without a route
func (p *Prepared) Expires() (time.Time, bool) {
	if p.Route == nil || p.Route.IntentOp == nil || p.Route.IntentOp.Expires == nil {
		return time.Time{}, false
	}
	expires := p.Route.IntentOp.Expires
	if !expires.IsInt64() {
		return time.Time{}, false
	}
	return time.Unix(expires.Int64(), 0), true
}

// Prepare resolves the signer, picks the mode and builds the payload to sign.
// Configuration errors are returned before any network call.
func (e *Executor) Prepare(ctx context.Context, tx *models.Transaction) (*Prepared, error) {
	if tx == nil {
		return nil, fmt.Errorf("nil transaction")
	}
	if tx.TargetChain == 0 {
		return nil, fmt.Errorf("transaction has no target chain")
	}
	if e.account == nil {
		return nil, ErrNoAccount
	}
	res, err := e.resolver.Resolve(tx.Signers)
	if err != nil {
		return nil, err
	}

	p := &Prepared{
		Mode:          selectMode(tx, res.Kind),
		Transaction:   tx,
		TokenRequests: tokenRequests(tx),
		Resolution:    res,
	}
	switch p.Mode {
	case ModeIntent:
		err = e.prepareIntent(ctx, p)
	case ModeUserOp:
		err = e.prepareUserOp(ctx, p)
	}
	if err != nil {
		return nil, err
	}

	e.logger.InfoWithChain(tx.TargetChain, "Prepared %s transaction for %s with %s signer, digest %s",
		p.Mode, e.account.Address().Hex(), res.Kind, p.Digest.Hex())
	return p, nil
}

// selectMode picks the user operation path for session and guardian signers
// and when the caller asks for it; owners default to the intent path.
func selectMode(tx *models.Transaction, kind models.SignerKind) Mode {
	switch kind {
	case models.SignerSession, models.SignerGuardians:
		return ModeUserOp
	case models.SignerOwnerECDSA, models.SignerOwnerPasskey:
		if tx.UserOp {
			return ModeUserOp
		}
	}
	return ModeIntent
}

// tokenRequests returns the requested tokens, or a minimal native token request when there are none
func tokenRequests(tx *models.Transaction) []models.TokenRequest {
	if len(tx.TokenRequests) == 0 {
		return []models.TokenRequest{{
			Token:  protocol.NativeToken,
			Amount: new(big.Int).Set(protocol.DefaultTokenAmount),
		}}
	}
	out := make([]models.TokenRequest, len(tx.TokenRequests))
	copy(out, tx.TokenRequests)
	return out
}

func extraOf(res *validators.Resolution) *signature.Extra {
	if res.Kind != models.SignerSession {
		return nil
	}
	return &signature.Extra{Session: res.Session, Enable: res.Enable}
}

// initData returns the deployment of the account when it has no code on chainID.
// Without a chain reader the backend is handed the factory and decides.
func (e *Executor) initData(ctx context.Context, chainID uint64) (*orchestrator.InitData, error) {
	factory, data := e.account.Factory()
	if factory == (common.Address{}) {
		return nil, nil
	}
	if chain, ok := e.chains[chainID]; ok {
		deployed, err := chain.IsDeployed(ctx, e.account.Address())
		if err != nil {
			return nil, err
		}
		if deployed {
			return nil, nil
		}
	}
	return &orchestrator.InitData{Factory: factory, FactoryData: data}, nil
}

// route quotes a bundle. A route that does not fulfill every token request is
// an insufficient liquidity error, never a candidate for signing.
func (e *Executor) route(ctx context.Context, p *Prepared, calls []models.Call) (*orchestrator.Route, error) {
	tx := p.Transaction
	req := &orchestrator.RouteRequest{
		Account:             e.account.Address(),
		InitData:            p.InitData,
		DestinationChainID:  tx.TargetChain,
		Calls:               calls,
		TokenRequests:       p.TokenRequests,
		DestinationGasUnits: tx.GasLimit,
		Sponsored:           tx.Sponsored,
	}
	if len(tx.SourceChains) > 0 {
		req.AccessList = &orchestrator.AccessList{ChainIDs: tx.SourceChains}
	}

	route, err := e.orchestrator.GetRoute(ctx, req)
	if err != nil {
		return nil, err
	}
	if !route.Cost.HasFulfilledAll {
		return nil, &orchestrator.Error{
			Kind:    orchestrator.KindInsufficientLiquidity,
			Message: "route does not fulfill all token requests",
		}
	}
	op := route.IntentOp
	if len(op.Elements) == 0 {
		return nil, fmt.Errorf("route has no elements")
	}
	if op.Sponsor != e.account.Address() {
		return nil, fmt.Errorf("route sponsor %s is not the account %s", op.Sponsor.Hex(), e.account.Address().Hex())
	}
	return route, nil
}

func (e *Executor) prepareIntent(ctx context.Context, p *Prepared) error {
	var err error
	if p.InitData, err = e.initData(ctx, p.Transaction.TargetChain); err != nil {
		return err
	}
	route, err := e.route(ctx, p, p.Transaction.Calls)
	if err != nil {
		return err
	}
	prependInjected(route)

	digest, err := compact.Digest(e.config.Protocol, route.IntentOp)
	if err != nil {
		return fmt.Errorf("failed to hash bundle: %w", err)
	}
	p.Route = route
	p.Digest = digest
	return nil
}

// prependInjected puts the backend's injected executions ahead of the
// destination calls of every element. They must run first.
func prependInjected(route *orchestrator.Route) {
	if len(route.InjectedExecutions) == 0 {
		return
	}
	for i := range route.IntentOp.Elements {
		ops := &route.IntentOp.Elements[i].Mandate.DestinationOps
		if hasCallPrefix(ops.Calls, route.InjectedExecutions) {
			continue
		}
		calls := make([]models.Call, 0, len(route.InjectedExecutions)+len(ops.Calls))
		calls = append(calls, route.InjectedExecutions...)
		ops.Calls = append(calls, ops.Calls...)
	}
}

func hasCallPrefix(calls, prefix []models.Call) bool {
	if len(calls) < len(prefix) {
		return false
	}
	for i, c := range prefix {
		if calls[i].To != c.To || models.ValueOf(calls[i].Value).Cmp(models.ValueOf(c.Value)) != 0 ||
			!bytes.Equal(calls[i].Data, c.Data) {
			return false
		}
	}
	return true
}

func (e *Executor) prepareUserOp(ctx context.Context, p *Prepared) error {
	tx := p.Transaction
	chain, err := e.chain(tx.TargetChain)
	if err != nil {
		return err
	}
	b, err := e.bundler(tx.TargetChain)
	if err != nil {
		return err
	}

	calls := tx.Calls
	if tx.IsCrossChain() {
		// the route only funds the account; the calls run in the user operation
		if p.InitData, err = e.initData(ctx, tx.TargetChain); err != nil {
			return err
		}
		route, err := e.route(ctx, p, nil)
		if err != nil {
			return err
		}
		p.Route = route
		calls = append(append([]models.Call{}, route.InjectedExecutions...), tx.Calls...)
		if err := e.prepareBundleDigest(ctx, p); err != nil {
			return err
		}
	}

	op, err := e.buildUserOp(ctx, p, chain, b, calls)
	if err != nil {
		return err
	}
	hash, err := userop.Hash(op, e.config.Protocol.EntryPoint, tx.TargetChain)
	if err != nil {
		return fmt.Errorf("failed to hash user operation: %w", err)
	}
	p.UserOp = op
	p.Digest = hash
	return nil
}

// prepareBundleDigest computes the bundle digest signed next to a cross-chain
// user operation. A session signs the ERC-7739 TypedDataSign envelope of the
// bundle, carrying the account's domain fields under the compact separator.
func (e *Executor) prepareBundleDigest(ctx context.Context, p *Prepared) error {
	op := p.Route.IntentOp
	if p.Resolution.Kind != models.SignerSession {
		digest, err := compact.Digest(e.config.Protocol, op)
		if err != nil {
			return fmt.Errorf("failed to hash bundle: %w", err)
		}
		p.BundleDigest = digest
		return nil
	}

	hasher := compact.New(e.config.Protocol)
	structHash, err := hasher.StructHash(op)
	if err != nil {
		return fmt.Errorf("failed to hash bundle: %w", err)
	}
	notarized := op.NotarizedChainID()
	reader, err := e.chain(notarized)
	if err != nil {
		return err
	}
	accountDomain, err := e.domains.Get(ctx, reader, notarized, e.account.Address())
	if err != nil {
		return fmt.Errorf("failed to read account domain: %w", err)
	}

	p.BundleDigest = compact.BundleTypedDataSignDigest(hasher, notarized, structHash, accountDomain)
	p.erc7739 = &erc7739Context{
		appSeparator: hasher.DomainSeparator(notarized),
		contentsHash: structHash,
		contentsType: hasher.EncodeType(),
	}
	return nil
}

func (e *Executor) buildUserOp(ctx context.Context, p *Prepared, chain Chain, b Bundler, calls []models.Call) (*models.UserOperation, error) {
	sender := e.account.Address()
	res := p.Resolution

	callData, err := account.EncodeExecute(calls)
	if err != nil {
		return nil, err
	}
	nonce, err := chain.GetNonce(ctx, sender, userop.NonceKey(res.Validator))
	if err != nil {
		return nil, err
	}
	fees, err := chain.Fees(ctx)
	if err != nil {
		return nil, err
	}

	op := &models.UserOperation{
		Sender:               sender,
		Nonce:                nonce,
		CallData:             callData,
		MaxFeePerGas:         fees.MaxFeePerGas,
		MaxPriorityFeePerGas: fees.MaxPriorityFeePerGas,
	}

	deployed, err := chain.IsDeployed(ctx, sender)
	if err != nil {
		return nil, err
	}
	if !deployed {
		factory, data := e.account.Factory()
		if factory == (common.Address{}) {
			return nil, fmt.Errorf("account %s is not deployed on chain %d and has no factory", sender.Hex(), p.Transaction.TargetChain)
		}
		op.Factory = factory
		op.FactoryData = data
	}

	if op.Signature, err = dummySignature(res); err != nil {
		return nil, err
	}
	estimate, err := b.EstimateUserOperationGas(ctx, op)
	if err != nil {
		return nil, fmt.Errorf("failed to estimate gas: %w", err)
	}
	estimate.Apply(op)
	if p.Transaction.GasLimit != nil {
		op.CallGasLimit = new(big.Int).Set(p.Transaction.GasLimit)
	}
	op.Signature = nil
	return op, nil
}

// dummySignature returns a placeholder of the packed signature's shape for gas estimation
func dummySignature(res *validators.Resolution) ([]byte, error) {
	var raw []byte
	switch res.Kind {
	case models.SignerOwnerPasskey:
		raw = bytes.Repeat([]byte{0xff}, dummyPasskeyLength)
	default:
		n := 1
		if m, ok := res.Signer.(*signer.Multi); ok {
			n = len(m.Owners())
		}
		one := append(bytes.Repeat([]byte{0xff}, signer.SignatureLength-1), 0x1c)
		raw = bytes.Repeat(one, n)
	}
	return signature.ForUserOp(raw, res.Kind, extraOf(res))
}
