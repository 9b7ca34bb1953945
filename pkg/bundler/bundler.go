// Package bundler is a JSON-RPC client for ERC-4337 v0.7 bundlers.
package bundler

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/speedrun-hq/speedrun-executor/pkg/logger"
	"github.com/speedrun-hq/speedrun-executor/pkg/metrics"
	"github.com/speedrun-hq/speedrun-executor/pkg/models"
)

// RPCError is a JSON-RPC error returned by the bundler
type RPCError struct {
	Method  string
	Code    int
	Message string
	Data    interface{}
}

func (e *RPCError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("%s failed: %s (code %d, data %v)", e.Method, e.Message, e.Code, e.Data)
	}
	return fmt.Sprintf("%s failed: %s (code %d)", e.Method, e.Message, e.Code)
}

var errReceiptPending = errors.New("user operation receipt not available yet")

// GasEstimate is the bundler's gas estimate for a user operation
type GasEstimate struct {
	PreVerificationGas            *big.Int
	VerificationGasLimit          *big.Int
	CallGasLimit                  *big.Int
	PaymasterVerificationGasLimit *big.Int
	PaymasterPostOpGasLimit       *big.Int
}

// Apply copies the estimate onto the operation
func (g *GasEstimate) Apply(op *models.UserOperation) {
	op.PreVerificationGas = g.PreVerificationGas
	op.VerificationGasLimit = g.VerificationGasLimit
	op.CallGasLimit = g.CallGasLimit
	if op.HasPaymaster() {
		op.PaymasterVerificationGasLimit = g.PaymasterVerificationGasLimit
		op.PaymasterPostOpGasLimit = g.PaymasterPostOpGasLimit
	}
}

// Receipt is the outcome of an included user operation
type Receipt struct {
	UserOpHash      common.Hash
	Sender          common.Address
	Nonce           *big.Int
	Success         bool
	ActualGasCost   *big.Int
	ActualGasUsed   *big.Int
	Reason          string
	TransactionHash common.Hash
	BlockNumber     uint64
}

// Client represents a bundler client for one chain
type Client struct {
	rpc        *rpc.Client
	chainID    uint64
	entryPoint common.Address
	logger     logger.Logger
}

// Dial connects to a bundler endpoint
func Dial(ctx context.Context, url string, chainID uint64, entryPoint common.Address, log logger.Logger) (*Client, error) {
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to bundler on chain %d: %v", chainID, err)
	}
	return NewClient(c, chainID, entryPoint, log), nil
}

// NewClient wraps an existing RPC connection
func NewClient(c *rpc.Client, chainID uint64, entryPoint common.Address, log logger.Logger) *Client {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Client{rpc: c, chainID: chainID, entryPoint: entryPoint, logger: log}
}

// ChainID returns the chain the bundler serves
func (c *Client) ChainID() uint64 {
	return c.chainID
}

// EntryPoint returns the entry point operations are sent to
func (c *Client) EntryPoint() common.Address {
	return c.entryPoint
}

// Close closes the underlying connection
func (c *Client) Close() {
	c.rpc.Close()
}

// SendUserOperation submits a signed operation and returns its hash
func (c *Client) SendUserOperation(ctx context.Context, op *models.UserOperation) (common.Hash, error) {
	var hash common.Hash
	err := c.call(ctx, &hash, "eth_sendUserOperation", toRPC(op), c.entryPoint)
	if err != nil {
		return common.Hash{}, err
	}
	c.logger.InfoWithChain(c.chainID, "User operation %s sent for %s", hash.Hex(), op.Sender.Hex())
	return hash, nil
}

// EstimateUserOperationGas asks the bundler for gas limits. The signature may be a dummy of the right length.
func (c *Client) EstimateUserOperationGas(ctx context.Context, op *models.UserOperation) (*GasEstimate, error) {
	var resp struct {
		PreVerificationGas            *hexutil.Big `json:"preVerificationGas"`
		VerificationGasLimit          *hexutil.Big `json:"verificationGasLimit"`
		CallGasLimit                  *hexutil.Big `json:"callGasLimit"`
		PaymasterVerificationGasLimit *hexutil.Big `json:"paymasterVerificationGasLimit"`
		PaymasterPostOpGasLimit       *hexutil.Big `json:"paymasterPostOpGasLimit"`
	}
	if err := c.call(ctx, &resp, "eth_estimateUserOperationGas", toRPC(op), c.entryPoint); err != nil {
		return nil, err
	}
	return &GasEstimate{
		PreVerificationGas:            bigOf(resp.PreVerificationGas),
		VerificationGasLimit:          bigOf(resp.VerificationGasLimit),
		CallGasLimit:                  bigOf(resp.CallGasLimit),
		PaymasterVerificationGasLimit: bigOf(resp.PaymasterVerificationGasLimit),
		PaymasterPostOpGasLimit:       bigOf(resp.PaymasterPostOpGasLimit),
	}, nil
}

// GetUserOperationReceipt returns the receipt, or nil while the operation is not included
func (c *Client) GetUserOperationReceipt(ctx context.Context, hash common.Hash) (*Receipt, error) {
	var resp *rpcReceipt
	if err := c.call(ctx, &resp, "eth_getUserOperationReceipt", hash); err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}
	return resp.model(), nil
}

// WaitForReceipt polls for the receipt until it is available or ctx is done
func (c *Client) WaitForReceipt(ctx context.Context, hash common.Hash, interval time.Duration) (*Receipt, error) {
	b := backoff.WithContext(backoff.NewConstantBackOff(interval), ctx)
	return backoff.RetryNotifyWithData(func() (*Receipt, error) {
		receipt, err := c.GetUserOperationReceipt(ctx, hash)
		if err != nil {
			var rpcErr *RPCError
			if errors.As(err, &rpcErr) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		if receipt == nil {
			return nil, errReceiptPending
		}
		return receipt, nil
	}, b, func(err error, next time.Duration) {
		if !errors.Is(err, errReceiptPending) {
			c.logger.DebugWithChain(c.chainID, "Receipt poll for %s failed, retrying in %v: %v", hash.Hex(), next, err)
		}
	})
}

func (c *Client) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	chain := strconv.FormatUint(c.chainID, 10)
	err := c.rpc.CallContext(ctx, result, method, args...)
	if err == nil {
		metrics.BundlerRequests.WithLabelValues(chain, method, "success").Inc()
		return nil
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		metrics.BundlerRequests.WithLabelValues(chain, method, "rpc_error").Inc()
		out := &RPCError{Method: method, Code: rpcErr.ErrorCode(), Message: rpcErr.Error()}
		var dataErr rpc.DataError
		if errors.As(err, &dataErr) {
			out.Data = dataErr.ErrorData()
		}
		return out
	}
	metrics.BundlerRequests.WithLabelValues(chain, method, "transport_error").Inc()
	return fmt.Errorf("%s failed: %w", method, err)
}

type rpcUserOp struct {
	Sender                        common.Address  `json:"sender"`
	Nonce                         *hexutil.Big    `json:"nonce"`
	Factory                       *common.Address `json:"factory,omitempty"`
	FactoryData                   hexutil.Bytes   `json:"factoryData,omitempty"`
	CallData                      hexutil.Bytes   `json:"callData"`
	CallGasLimit                  *hexutil.Big    `json:"callGasLimit"`
	VerificationGasLimit          *hexutil.Big    `json:"verificationGasLimit"`
	PreVerificationGas            *hexutil.Big    `json:"preVerificationGas"`
	MaxFeePerGas                  *hexutil.Big    `json:"maxFeePerGas"`
	MaxPriorityFeePerGas          *hexutil.Big    `json:"maxPriorityFeePerGas"`
	Paymaster                     *common.Address `json:"paymaster,omitempty"`
	PaymasterVerificationGasLimit *hexutil.Big    `json:"paymasterVerificationGasLimit,omitempty"`
	PaymasterPostOpGasLimit       *hexutil.Big    `json:"paymasterPostOpGasLimit,omitempty"`
	PaymasterData                 hexutil.Bytes   `json:"paymasterData,omitempty"`
	Signature                     hexutil.Bytes   `json:"signature"`
}

func hexBig(v *big.Int) *hexutil.Big {
	return (*hexutil.Big)(models.ValueOf(v))
}

func bigOf(v *hexutil.Big) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v.ToInt()
}

func toRPC(op *models.UserOperation) *rpcUserOp {
	out := &rpcUserOp{
		Sender:               op.Sender,
		Nonce:                hexBig(op.Nonce),
		CallData:             hexutil.Bytes(op.CallData),
		CallGasLimit:         hexBig(op.CallGasLimit),
		VerificationGasLimit: hexBig(op.VerificationGasLimit),
		PreVerificationGas:   hexBig(op.PreVerificationGas),
		MaxFeePerGas:         hexBig(op.MaxFeePerGas),
		MaxPriorityFeePerGas: hexBig(op.MaxPriorityFeePerGas),
		Signature:            hexutil.Bytes(op.Signature),
	}
	if out.CallData == nil {
		out.CallData = hexutil.Bytes{}
	}
	if out.Signature == nil {
		out.Signature = hexutil.Bytes{}
	}
	if op.HasFactory() {
		factory := op.Factory
		out.Factory = &factory
		out.FactoryData = hexutil.Bytes(op.FactoryData)
	}
	if op.HasPaymaster() {
		paymaster := op.Paymaster
		out.Paymaster = &paymaster
		out.PaymasterVerificationGasLimit = hexBig(op.PaymasterVerificationGasLimit)
		out.PaymasterPostOpGasLimit = hexBig(op.PaymasterPostOpGasLimit)
		out.PaymasterData = hexutil.Bytes(op.PaymasterData)
	}
	return out
}

type rpcReceipt struct {
	UserOpHash    common.Hash    `json:"userOpHash"`
	Sender        common.Address `json:"sender"`
	Nonce         *hexutil.Big   `json:"nonce"`
	Success       bool           `json:"success"`
	ActualGasCost *hexutil.Big   `json:"actualGasCost"`
	ActualGasUsed *hexutil.Big   `json:"actualGasUsed"`
	Reason        string         `json:"reason"`
	Receipt       struct {
		TransactionHash common.Hash    `json:"transactionHash"`
		BlockNumber     hexutil.Uint64 `json:"blockNumber"`
	} `json:"receipt"`
}

func (r *rpcReceipt) model() *Receipt {
	return &Receipt{
		UserOpHash:      r.UserOpHash,
		Sender:          r.Sender,
		Nonce:           bigOf(r.Nonce),
		Success:         r.Success,
		ActualGasCost:   bigOf(r.ActualGasCost),
		ActualGasUsed:   bigOf(r.ActualGasUsed),
		Reason:          r.Reason,
		TransactionHash: r.Receipt.TransactionHash,
		BlockNumber:     uint64(r.Receipt.BlockNumber),
	}
}
