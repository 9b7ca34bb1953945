package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/speedrun-hq/speedrun-executor/pkg/metrics"
	"github.com/speedrun-hq/speedrun-executor/pkg/models"
	"github.com/speedrun-hq/speedrun-executor/pkg/orchestrator"
	"github.com/speedrun-hq/speedrun-executor/pkg/signature"
)

var errIntentPending = errors.New("intent pending")

// Signed is a prepared transaction with its packed signatures
type Signed struct {
	*Prepared
	// BundleSignature is the packed signature of the bundle, used for every origin and the destination
	BundleSignature []byte
	// UserOp is the signed user operation, nil in intent mode
	UserOp *models.UserOperation
}

// checkFresh rejects a route whose expiry has passed. A stale route is never re-signed.
func (e *Executor) checkFresh(p *Prepared) error {
	expires, ok := p.Expires()
	if !ok {
		return nil
	}
	if now := e.now(); !now.Before(expires) {
		return &StaleRouteError{Expires: expires, Now: now}
	}
	return nil
}

// Sign produces the packed signatures of a prepared transaction. The bundle is
// signed once; the same signature serves every origin and the destination.
func (e *Executor) Sign(ctx context.Context, p *Prepared) (*Signed, error) {
	if err := e.checkFresh(p); err != nil {
		return nil, err
	}
	res := p.Resolution
	extra := extraOf(res)
	s := &Signed{Prepared: p}

	start := time.Now()
	raw, err := res.Signer.Sign(ctx, p.Digest)
	if err != nil {
		return nil, fmt.Errorf("failed to sign %s digest: %w", res.Kind, err)
	}

	switch p.Mode {
	case ModeIntent:
		if s.BundleSignature, err = signature.Pack(raw, res.Validator, res.Kind, extra); err != nil {
			return nil, err
		}
	case ModeUserOp:
		op := *p.UserOp
		if op.Signature, err = signature.ForUserOp(raw, res.Kind, extra); err != nil {
			return nil, err
		}
		s.UserOp = &op
		if p.Route != nil {
			if s.BundleSignature, err = e.signBundle(ctx, p, extra); err != nil {
				return nil, err
			}
		}
	}
	metrics.SigningTime.WithLabelValues(res.Kind.String()).Observe(time.Since(start).Seconds())

	// signing may wait on a device
	if err := e.checkFresh(p); err != nil {
		return nil, err
	}
	return s, nil
}

// signBundle signs the bundle of a cross-chain user operation. It is checked
// through the account's isValidSignature, so it is packed for ERC-1271 and
// session signatures carry their ERC-7739 wrapping.
func (e *Executor) signBundle(ctx context.Context, p *Prepared, extra *signature.Extra) ([]byte, error) {
	res := p.Resolution
	raw, err := res.Signer.Sign(ctx, p.BundleDigest)
	if err != nil {
		return nil, fmt.Errorf("failed to sign bundle: %w", err)
	}
	if p.erc7739 != nil {
		c := p.erc7739
		if raw, err = signature.WrapERC7739(raw, c.appSeparator, c.contentsHash, c.contentsType); err != nil {
			return nil, err
		}
	}
	return signature.ForERC1271(raw, res.Validator, res.Kind, extra)
}

// Submit hands a signed transaction to the backend or the bundler. A stale
// route fails without a network call.
func (e *Executor) Submit(ctx context.Context, s *Signed) (models.TransactionResult, error) {
	if err := e.checkFresh(s.Prepared); err != nil {
		return nil, err
	}
	tx := s.Transaction

	if s.Route == nil {
		b, err := e.bundler(tx.TargetChain)
		if err != nil {
			return nil, err
		}
		hash, err := b.SendUserOperation(ctx, s.UserOp)
		if err != nil {
			return nil, err
		}
		e.logger.InfoWithChain(tx.TargetChain, "Sent user operation %s", hash.Hex())
		return &models.UserOpResult{Hash: hash, SourceChain: tx.TargetChain, TargetChain: tx.TargetChain}, nil
	}

	op := s.Route.IntentOp
	origins := make([][]byte, len(op.Elements))
	for i := range origins {
		origins[i] = s.BundleSignature
	}
	submitted, err := e.orchestrator.SubmitIntent(ctx, &orchestrator.SignedIntentOp{
		Op:                   op,
		OriginSignatures:     origins,
		DestinationSignature: s.BundleSignature,
		InitData:             s.InitData,
		UserOp:               s.UserOp,
	})
	if err != nil {
		return nil, err
	}

	var source uint64
	if len(tx.SourceChains) > 0 {
		source = tx.SourceChains[0]
	}
	e.logger.InfoWithChain(tx.TargetChain, "Submitted intent %s with %d elements", submitted.ID, len(op.Elements))
	return &models.IntentResult{ID: submitted.ID, SourceChain: source, TargetChain: tx.TargetChain}, nil
}

// Wait polls a submitted transaction until it reaches a terminal state or ctx is done
func (e *Executor) Wait(ctx context.Context, result models.TransactionResult) (*Outcome, error) {
	switch r := result.(type) {
	case *models.UserOpResult:
		return e.waitUserOp(ctx, r)
	case *models.IntentResult:
		return e.waitIntent(ctx, r)
	}
	return nil, fmt.Errorf("unsupported result type %T", result)
}

func (e *Executor) waitUserOp(ctx context.Context, r *models.UserOpResult) (*Outcome, error) {
	b, err := e.bundler(r.TargetChain)
	if err != nil {
		return nil, err
	}
	receipt, err := b.WaitForReceipt(ctx, r.Hash, e.config.ReceiptInterval)
	if err != nil {
		return nil, err
	}
	outcome := &Outcome{
		Result:              r,
		Status:              models.StatusCompleted,
		FillTransactionHash: receipt.TransactionHash,
		Receipt:             receipt,
	}
	if !receipt.Success {
		outcome.Status = models.StatusFailed
		return outcome, &UserOpFailedError{Hash: r.Hash, Reason: receipt.Reason}
	}
	return outcome, nil
}

// waitIntent polls the bundle status. Transient backend errors are retried
// until ctx is done; FAILED and EXPIRED are terminal errors.
func (e *Executor) waitIntent(ctx context.Context, r *models.IntentResult) (*Outcome, error) {
	b := backoff.WithContext(backoff.NewConstantBackOff(e.config.PollInterval), ctx)

	operation := func() (*orchestrator.IntentStatus, error) {
		status, err := e.orchestrator.GetIntentStatus(ctx, r.ID)
		if err != nil {
			metrics.StatusPolls.WithLabelValues("error").Inc()
			if orchestrator.IsTransient(err) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		metrics.StatusPolls.WithLabelValues(string(status.Status)).Inc()

		switch status.Status {
		case models.StatusFailed:
			return status, backoff.Permanent(&IntentFailedError{ID: r.ID})
		case models.StatusExpired:
			return status, backoff.Permanent(&IntentExpiredError{ID: r.ID})
		case models.StatusCompleted, models.StatusFilled:
			return status, nil
		case models.StatusPreconfirmed:
			if e.config.AcceptPreconfirmations {
				return status, nil
			}
		}
		return nil, errIntentPending
	}

	notify := func(err error, next time.Duration) {
		if !errors.Is(err, errIntentPending) {
			e.logger.DebugWithChain(r.TargetChain, "Intent %s status poll failed, retrying in %v: %v", r.ID, next, err)
		}
	}

	status, err := backoff.RetryNotifyWithData(operation, b, notify)
	if status == nil {
		if err == nil {
			err = fmt.Errorf("intent %s: no status", r.ID)
		}
		if errors.Is(err, errIntentPending) && ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, err
	}

	outcome := &Outcome{
		Result:              r,
		Status:              status.Status,
		FillTransactionHash: status.FillTransactionHash,
		Claims:              status.Claims,
	}
	if err == nil {
		e.logger.InfoWithChain(r.TargetChain, "Intent %s reached %s", r.ID, status.Status)
	}
	return outcome, err
}
