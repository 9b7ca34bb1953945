package chainclient

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/speedrun-hq/speedrun-executor/pkg/compact"
	"github.com/speedrun-hq/speedrun-executor/pkg/contracts"
	"github.com/speedrun-hq/speedrun-executor/pkg/logger"
)

// DefaultGasMultiplier is the buffer applied to suggested fees (10%)
const DefaultGasMultiplier = 1.1

// feeMaxAge is how long cached fees are served before a fresh suggestion is fetched
const feeMaxAge = 30 * time.Second

// Backend is the subset of an ethclient the chain client reads from
type Backend interface {
	bind.ContractCaller
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// Fees are the EIP-1559 fees of a user operation
type Fees struct {
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// Client contains client and config information for a specific blockchain
type Client struct {
	Ctx           context.Context
	ChainID       uint64
	RPCURL        string
	EntryPoint    common.Address
	GasMultiplier float64

	backend    Backend
	entryPoint *contracts.EntryPointCaller
	logger     logger.Logger

	mu        sync.RWMutex
	fees      *Fees
	updatedAt time.Time
	now       func() time.Time
}

// New connects to a chain RPC endpoint
func New(ctx context.Context, chainID uint64, rpcURL string, gasMultiplier float64, entryPoint common.Address, log logger.Logger) (*Client, error) {
	ec, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to chain %d: %v", chainID, err)
	}
	c, err := NewWithBackend(ctx, chainID, ec, gasMultiplier, entryPoint, log)
	if err != nil {
		return nil, err
	}
	c.RPCURL = rpcURL
	return c, nil
}

// NewWithBackend creates a client over an existing backend
func NewWithBackend(ctx context.Context, chainID uint64, backend Backend, gasMultiplier float64, entryPoint common.Address, log logger.Logger) (*Client, error) {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	if gasMultiplier <= 0 {
		gasMultiplier = DefaultGasMultiplier
	}
	ep, err := contracts.NewEntryPointCaller(entryPoint, backend)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize entry point contract: %v", err)
	}
	return &Client{
		Ctx:           ctx,
		ChainID:       chainID,
		EntryPoint:    entryPoint,
		GasMultiplier: gasMultiplier,
		backend:       backend,
		entryPoint:    ep,
		logger:        log,
		now:           time.Now,
	}, nil
}

// UpdateFees fetches the current tip and base fee and applies the gas multiplier.
// The max fee is (base fee + tip) * multiplier.
func (c *Client) UpdateFees(ctx context.Context) (*Fees, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tip, err := c.backend.SuggestGasTipCap(timeoutCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas tip cap: %v", err)
	}
	header, err := c.backend.HeaderByNumber(timeoutCtx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest header: %v", err)
	}
	baseFee := new(big.Int)
	if header.BaseFee != nil {
		baseFee.Set(header.BaseFee)
	}

	fees := &Fees{
		MaxFeePerGas:         c.applyMultiplier(new(big.Int).Add(baseFee, tip)),
		MaxPriorityFeePerGas: c.applyMultiplier(tip),
	}

	c.mu.Lock()
	c.fees = fees
	c.updatedAt = c.now()
	c.mu.Unlock()

	c.logger.DebugWithChain(c.ChainID, "Fees updated: max fee %s, priority fee %s", fees.MaxFeePerGas, fees.MaxPriorityFeePerGas)
	return fees, nil
}

// Fees returns the cached fees, refreshing them when they are older than feeMaxAge
func (c *Client) Fees(ctx context.Context) (*Fees, error) {
	c.mu.RLock()
	fees, updatedAt := c.fees, c.updatedAt
	c.mu.RUnlock()
	if fees != nil && c.now().Sub(updatedAt) < feeMaxAge {
		return fees, nil
	}
	return c.UpdateFees(ctx)
}

func (c *Client) applyMultiplier(v *big.Int) *big.Int {
	multiplied := new(big.Float).Mul(new(big.Float).SetInt(v), big.NewFloat(c.GasMultiplier))
	out := new(big.Int)
	multiplied.Int(out)
	return out
}

// IsDeployed returns true if account has code
func (c *Client) IsDeployed(ctx context.Context, account common.Address) (bool, error) {
	code, err := c.backend.CodeAt(ctx, account, nil)
	if err != nil {
		return false, fmt.Errorf("failed to get code of %s: %v", account.Hex(), err)
	}
	return len(code) > 0, nil
}

// GetNonce returns the EntryPoint nonce of sender under key
func (c *Client) GetNonce(ctx context.Context, sender common.Address, key *big.Int) (*big.Int, error) {
	nonce, err := c.entryPoint.GetNonce(&bind.CallOpts{Context: ctx}, sender, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce of %s: %v", sender.Hex(), err)
	}
	return nonce, nil
}

// ReadDomain reads the ERC-5267 domain of an account
func (c *Client) ReadDomain(ctx context.Context, account common.Address) (compact.Domain, error) {
	caller, err := contracts.NewAccountCaller(account, c.backend)
	if err != nil {
		return compact.Domain{}, fmt.Errorf("failed to initialize account contract: %v", err)
	}
	d, err := caller.Eip712Domain(&bind.CallOpts{Context: ctx})
	if err != nil {
		return compact.Domain{}, fmt.Errorf("failed to read domain of %s: %v", account.Hex(), err)
	}
	if d.ChainId == nil || !d.ChainId.IsUint64() {
		return compact.Domain{}, fmt.Errorf("invalid domain chain id of %s", account.Hex())
	}
	return compact.Domain{
		Name:              d.Name,
		Version:           d.Version,
		ChainID:           d.ChainId.Uint64(),
		VerifyingContract: d.VerifyingContract,
		Salt:              common.Hash(d.Salt),
		Fields:            d.Fields[0],
	}, nil
}
