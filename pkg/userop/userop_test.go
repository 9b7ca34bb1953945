package userop

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/speedrun-hq/speedrun-executor/pkg/models"
	"github.com/speedrun-hq/speedrun-executor/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	sender    = common.HexToAddress("0xf6c02c78ded62973b43bfa523b247da099486936")
	factory   = common.HexToAddress("0x000000000000000000000000000000000000fac7")
	paymaster = common.HexToAddress("0x00000000000000000000000000000000000000aa")
)

func testOp() *models.UserOperation {
	return &models.UserOperation{
		Sender:               sender,
		Nonce:                Nonce(big.NewInt(5), 2),
		Factory:              factory,
		FactoryData:          hexutil.MustDecode("0xabcd"),
		CallData:             hexutil.MustDecode("0xe9ae5c53"),
		CallGasLimit:         big.NewInt(100_000),
		VerificationGasLimit: big.NewInt(200_000),
		PreVerificationGas:   big.NewInt(50_000),
		MaxFeePerGas:         big.NewInt(3_000_000_000),
		MaxPriorityFeePerGas: big.NewInt(1_000_000_000),
		Signature:            []byte{0x01},
	}
}

func word(v *big.Int) []byte {
	return common.LeftPadBytes(v.Bytes(), 32)
}

func TestPack(t *testing.T) {
	op := testOp()
	p, err := Pack(op)
	require.NoError(t, err)

	assert.Equal(t, append(factory.Bytes(), 0xab, 0xcd), p.InitCode)
	assert.Equal(t, common.LeftPadBytes(big.NewInt(200_000).Bytes(), 16), p.AccountGasLimits[:16])
	assert.Equal(t, common.LeftPadBytes(big.NewInt(100_000).Bytes(), 16), p.AccountGasLimits[16:])
	assert.Equal(t, common.LeftPadBytes(big.NewInt(1_000_000_000).Bytes(), 16), p.GasFees[:16])
	assert.Equal(t, common.LeftPadBytes(big.NewInt(3_000_000_000).Bytes(), 16), p.GasFees[16:])
	assert.Empty(t, p.PaymasterAndData)

	op.Paymaster = paymaster
	op.PaymasterVerificationGasLimit = big.NewInt(7)
	op.PaymasterPostOpGasLimit = big.NewInt(8)
	op.PaymasterData = []byte{0xee}
	p, err = Pack(op)
	require.NoError(t, err)
	require.Len(t, p.PaymasterAndData, 20+16+16+1)
	assert.Equal(t, paymaster.Bytes(), p.PaymasterAndData[:20])
	assert.Equal(t, byte(7), p.PaymasterAndData[35])
	assert.Equal(t, byte(8), p.PaymasterAndData[51])
	assert.Equal(t, byte(0xee), p.PaymasterAndData[52])

	op.CallGasLimit = new(big.Int).Lsh(big.NewInt(1), 128)
	_, err = Pack(op)
	assert.Error(t, err)
}

func TestHash(t *testing.T) {
	op := testOp()
	p, err := Pack(op)
	require.NoError(t, err)

	inner := crypto.Keccak256(
		common.LeftPadBytes(sender.Bytes(), 32),
		word(op.Nonce),
		crypto.Keccak256(p.InitCode),
		crypto.Keccak256(op.CallData),
		p.AccountGasLimits[:],
		word(op.PreVerificationGas),
		p.GasFees[:],
		crypto.Keccak256(nil),
	)
	expected := crypto.Keccak256Hash(
		inner,
		common.LeftPadBytes(protocol.EntryPointV07.Bytes(), 32),
		word(big.NewInt(8453)),
	)

	got, err := Hash(op, protocol.EntryPointV07, 8453)
	require.NoError(t, err)
	assert.Equal(t, expected, got)

	op.Signature = []byte{0x02, 0x03}
	again, err := Hash(op, protocol.EntryPointV07, 8453)
	require.NoError(t, err)
	assert.Equal(t, got, again, "signature is not hashed")

	other, err := Hash(op, protocol.EntryPointV07, 10)
	require.NoError(t, err)
	assert.NotEqual(t, got, other)
}

func TestNonceKey(t *testing.T) {
	assert.Equal(t, int64(0), NonceKey(models.ValidatorRef{Address: protocol.OwnableValidator, IsRoot: true}).Int64())

	key := NonceKey(models.ValidatorRef{Address: protocol.SmartSessions})
	expected := append(protocol.SmartSessions.Bytes(), 0, 0, 0, 0)
	assert.Equal(t, expected, common.LeftPadBytes(key.Bytes(), 24))

	n := Nonce(key, 3)
	assert.Equal(t, key, new(big.Int).Rsh(n, 64))
	assert.Equal(t, uint64(3), new(big.Int).And(n, new(big.Int).SetUint64(^uint64(0))).Uint64())
}
