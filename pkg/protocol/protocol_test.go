package protocol

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in      string
		want    Version
		wantErr bool
	}{
		{"0", V0, false},
		{"v0", V0, false},
		{"1", V1, false},
		{"v1", V1, false},
		{"2", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseVersion(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFor(t *testing.T) {
	v0 := For(V0)
	assert.Equal(t, "0", v0.CompactVersion)
	assert.Equal(t, DefaultHookAddress, v0.CompactVerifier)

	v1 := For(V1)
	assert.Equal(t, "1", v1.CompactVersion)
	assert.Equal(t, CompactV1Address, v1.CompactVerifier)
	assert.Equal(t, v0.EntryPoint, v1.EntryPoint)

	assert.Equal(t, "v1", DefaultVersion.String())
	assert.Panics(t, func() { For(Version(9)) })
}

func TestWithCompactVerifier(t *testing.T) {
	hook := common.HexToAddress("0x01")
	p := For(V0).WithCompactVerifier(hook)
	assert.Equal(t, hook, p.CompactVerifier)
	assert.Equal(t, DefaultHookAddress, For(V0).CompactVerifier, "the version table is not modified")
}
