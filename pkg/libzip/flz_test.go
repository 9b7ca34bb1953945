package libzip

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressShortInputIsLiteral(t *testing.T) {
	assert.Equal(t, []byte{0x04, 'h', 'e', 'l', 'l', 'o'}, Compress([]byte("hello")))
	assert.Empty(t, Compress(nil))
}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	random := make([]byte, 3000)
	rng.Read(random)

	abiLike := append(common.LeftPadBytes([]byte{0x20}, 32), make([]byte, 32*40)...)
	abiLike = append(abiLike, common.LeftPadBytes(common.FromHex("0x6092086a3dc0020cd604a68fcf5d430007d51bb7"), 32)...)
	abiLike = append(abiLike, bytes.Repeat([]byte{0xab, 0xcd}, 300)...)

	inputs := map[string][]byte{
		"empty":      {},
		"tiny":       {1, 2, 3},
		"text":       []byte("the quick brown fox jumps over the lazy dog, the quick brown fox"),
		"zeros":      make([]byte, 1000),
		"random":     random,
		"abi words":  abiLike,
		"long match": bytes.Repeat([]byte("0123456789"), 200),
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			out, err := Decompress(Compress(in))
			require.NoError(t, err)
			assert.Equal(t, len(in), len(out))
			assert.True(t, bytes.Equal(in, out))
		})
	}
}

func TestCompressShrinksRepetitiveData(t *testing.T) {
	in := make([]byte, 2048)
	assert.Less(t, len(Compress(in)), 64)
}

func TestDecompressErrors(t *testing.T) {
	_, err := Decompress([]byte{0x05, 1, 2})
	assert.Error(t, err, "literal run past end")

	_, err = Decompress([]byte{0x20, 0x00})
	assert.Error(t, err, "match before any output")

	_, err = Decompress([]byte{0xe0})
	assert.Error(t, err, "truncated long match")
}
