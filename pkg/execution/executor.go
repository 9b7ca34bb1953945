// Package execution drives a transaction through prepare, sign, submit and
// wait, over either the settlement backend or an ERC-4337 bundler.
package execution

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/speedrun-hq/speedrun-executor/pkg/account"
	"github.com/speedrun-hq/speedrun-executor/pkg/bundler"
	"github.com/speedrun-hq/speedrun-executor/pkg/chainclient"
	"github.com/speedrun-hq/speedrun-executor/pkg/logger"
	"github.com/speedrun-hq/speedrun-executor/pkg/metrics"
	"github.com/speedrun-hq/speedrun-executor/pkg/models"
	"github.com/speedrun-hq/speedrun-executor/pkg/orchestrator"
	"github.com/speedrun-hq/speedrun-executor/pkg/protocol"
	"github.com/speedrun-hq/speedrun-executor/pkg/validators"
)

// DefaultPollInterval is the intent status polling interval
const DefaultPollInterval = 500 * time.Millisecond

// DefaultReceiptInterval is the user operation receipt polling interval
const DefaultReceiptInterval = time.Second

// Orchestrator is the settlement backend
type Orchestrator interface {
	GetRoute(ctx context.Context, req *orchestrator.RouteRequest) (*orchestrator.Route, error)
	SubmitIntent(ctx context.Context, signed *orchestrator.SignedIntentOp) (*orchestrator.SubmitResult, error)
	GetIntentStatus(ctx context.Context, id string) (*orchestrator.IntentStatus, error)
}

// Bundler submits user operations on one chain
type Bundler interface {
	EstimateUserOperationGas(ctx context.Context, op *models.UserOperation) (*bundler.GasEstimate, error)
	SendUserOperation(ctx context.Context, op *models.UserOperation) (common.Hash, error)
	WaitForReceipt(ctx context.Context, hash common.Hash, interval time.Duration) (*bundler.Receipt, error)
}

// Chain reads account state on one chain
type Chain interface {
	account.DomainReader
	Fees(ctx context.Context) (*chainclient.Fees, error)
	IsDeployed(ctx context.Context, addr common.Address) (bool, error)
	GetNonce(ctx context.Context, sender common.Address, key *big.Int) (*big.Int, error)
}

// Mode is the execution backend of a transaction
type Mode int

const (
	// ModeIntent submits a signed bundle to the settlement backend
	ModeIntent Mode = iota
	// ModeUserOp submits a user operation, through the bundler or alongside a bundle
	ModeUserOp
)

func (m Mode) String() string {
	if m == ModeUserOp {
		return "userop"
	}
	return "intent"
}

// Config holds the executor settings
type Config struct {
	Protocol        protocol.Protocol
	PollInterval    time.Duration
	ReceiptInterval time.Duration
	// AcceptPreconfirmations ends the wait on PRECONFIRMED instead of FILLED or COMPLETED
	AcceptPreconfirmations bool
}

// Executor runs transactions for one account
type Executor struct {
	config       Config
	account      account.Provider
	resolver     *validators.Resolver
	orchestrator Orchestrator
	chains       map[uint64]Chain
	bundlers     map[uint64]Bundler
	domains      *account.DomainCache
	logger       logger.Logger
	now          func() time.Time
}

// Option configures an Executor
type Option func(*Executor)

// WithChain registers the chain reader and bundler of a chain. Either may be nil.
func WithChain(chainID uint64, chain Chain, b Bundler) Option {
	return func(e *Executor) {
		if chain != nil {
			e.chains[chainID] = chain
		}
		if b != nil {
			e.bundlers[chainID] = b
		}
	}
}

// WithDomainCache shares a domain cache between executors
func WithDomainCache(c *account.DomainCache) Option {
	return func(e *Executor) { e.domains = c }
}

// New creates an executor
func New(cfg Config, acct account.Provider, resolver *validators.Resolver, orch Orchestrator, log logger.Logger, opts ...Option) *Executor {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.ReceiptInterval <= 0 {
		cfg.ReceiptInterval = DefaultReceiptInterval
	}
	e := &Executor{
		config:       cfg,
		account:      acct,
		resolver:     resolver,
		orchestrator: orch,
		chains:       make(map[uint64]Chain),
		bundlers:     make(map[uint64]Bundler),
		logger:       log,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.domains == nil {
		e.domains = account.NewDomainCache(account.DomainCacheSize)
	}
	return e
}

// Outcome is the terminal state of an executed transaction
type Outcome struct {
	Result              models.TransactionResult
	Status              models.Status
	FillTransactionHash common.Hash
	Claims              []orchestrator.Claim
	// Receipt is set for user operations sent to a bundler
	Receipt *bundler.Receipt
}

// Execute runs a transaction to a terminal state. It does not retry a failed
// submission: a fresh Execute re-quotes the route.
func (e *Executor) Execute(ctx context.Context, tx *models.Transaction) (*Outcome, error) {
	start := time.Now()

	p, err := e.Prepare(ctx, tx)
	if err != nil {
		metrics.Transactions.WithLabelValues("none", "prepare_failed").Inc()
		return nil, err
	}
	mode := p.Mode.String()

	s, err := e.Sign(ctx, p)
	if err != nil {
		metrics.Transactions.WithLabelValues(mode, "sign_failed").Inc()
		return nil, err
	}

	result, err := e.Submit(ctx, s)
	if err != nil {
		metrics.Transactions.WithLabelValues(mode, "submit_failed").Inc()
		return nil, err
	}

	outcome, err := e.Wait(ctx, result)
	if outcome != nil {
		metrics.Transactions.WithLabelValues(mode, strings.ToLower(string(outcome.Status))).Inc()
		metrics.ExecutionTime.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	} else {
		metrics.Transactions.WithLabelValues(mode, "wait_failed").Inc()
	}
	return outcome, err
}

func (e *Executor) chain(chainID uint64) (Chain, error) {
	c, ok := e.chains[chainID]
	if !ok {
		return nil, fmt.Errorf("%w: no rpc for chain %d", ErrChainNotConfigured, chainID)
	}
	return c, nil
}

func (e *Executor) bundler(chainID uint64) (Bundler, error) {
	b, ok := e.bundlers[chainID]
	if !ok {
		return nil, fmt.Errorf("%w: no bundler for chain %d", ErrChainNotConfigured, chainID)
	}
	return b, nil
}
