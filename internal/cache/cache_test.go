package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/riskmonitor/engine/internal/domain"
)

func TestCacheKeyFormatsAreStable(t *testing.T) {
	assert.Equal(t, "position_hash:pos-1", positionHashKey("pos-1"))
	assert.Equal(t, "pool_snapshot:1:0xabc", poolSnapshotKey(1, "0xabc"))

	token := domain.Token{ChainID: 1, Address: "0xdef"}
	assert.Equal(t, "token_meta:1:0xdef", tokenKey(token))
}
