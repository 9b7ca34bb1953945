package chains

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChainCatalogue(t *testing.T) {
	for _, chainID := range ChainList {
		t.Run(GetChainName(chainID), func(t *testing.T) {
			assert.NotEmpty(t, GetChainName(chainID))
			assert.NotEmpty(t, GetShortName(chainID))
			assert.True(t, IsSupported(chainID))
		})
	}

	assert.Equal(t, "", GetChainName(999999))
	assert.False(t, IsSupported(999999))
	assert.True(t, IsTestnet(84532))
	assert.False(t, IsTestnet(8453))
}
