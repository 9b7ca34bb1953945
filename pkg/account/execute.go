package account

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"

	"github.com/speedrun-hq/speedrun-executor/pkg/models"
)

// ERC-7579 call types, the first byte of the execution mode
const (
	CallTypeSingle byte = 0x00
	CallTypeBatch  byte = 0x01
)

// ExecuteSelector is execute(bytes32,bytes)
var ExecuteSelector = []byte{0xe9, 0xae, 0x5c, 0x53}

type execution struct {
	Target   common.Address `abi:"target"`
	Value    *big.Int       `abi:"value"`
	CallData []byte         `abi:"callData"`
}

var (
	executeArgs = abi.Arguments{
		{Type: mustType("bytes32", nil)},
		{Type: mustType("bytes", nil)},
	}
	batchArgs = abi.Arguments{
		{Type: mustType("tuple[]", []abi.ArgumentMarshaling{
			{Name: "target", Type: "address"},
			{Name: "value", Type: "uint256"},
			{Name: "callData", Type: "bytes"},
		})},
	}
)

func mustType(t string, components []abi.ArgumentMarshaling) abi.Type {
	typ, err := abi.NewType(t, "", components)
	if err != nil {
		panic(err)
	}
	return typ
}

// Mode returns the execution mode word of a call type with the default exec type
func Mode(callType byte) [32]byte {
	var mode [32]byte
	mode[0] = callType
	return mode
}

// EncodeExecuteCalldata returns the executionCalldata of calls: packed
// target, value and data for one call, an ABI encoded array otherwise.
// No calls encode an empty batch.
func EncodeExecuteCalldata(calls []models.Call) (byte, []byte, error) {
	if len(calls) == 1 {
		c := calls[0]
		out := make([]byte, 0, common.AddressLength+32+len(c.Data))
		out = append(out, c.To.Bytes()...)
		out = append(out, math.U256Bytes(new(big.Int).Set(models.ValueOf(c.Value)))...)
		return CallTypeSingle, append(out, c.Data...), nil
	}

	execs := make([]execution, len(calls))
	for i, c := range calls {
		data := c.Data
		if data == nil {
			data = []byte{}
		}
		execs[i] = execution{Target: c.To, Value: models.ValueOf(c.Value), CallData: data}
	}
	encoded, err := batchArgs.Pack(execs)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to encode batch: %v", err)
	}
	return CallTypeBatch, encoded, nil
}

// EncodeExecute returns the calldata of the account's execute(bytes32,bytes) for calls
func EncodeExecute(calls []models.Call) ([]byte, error) {
	callType, calldata, err := EncodeExecuteCalldata(calls)
	if err != nil {
		return nil, err
	}
	args, err := executeArgs.Pack(Mode(callType), calldata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode execute: %v", err)
	}
	return append(common.CopyBytes(ExecuteSelector), args...), nil
}
