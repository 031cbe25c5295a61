package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClaimBitmap(t *testing.T) {
	var b ClaimBitmap

	assert.False(t, b.Has(0))
	assert.Zero(t, b.Count())

	b = b.Set(0)
	b = b.Set(5)
	b = b.Set(63)

	assert.True(t, b.Has(0))
	assert.True(t, b.Has(5))
	assert.True(t, b.Has(63))
	assert.False(t, b.Has(1))
	assert.Equal(t, 3, b.Count())

	// Setting a bit twice is a no-op.
	assert.Equal(t, b, b.Set(5))
}

func TestClaimBitmapIgnoresOutOfRangeOrdinals(t *testing.T) {
	var b ClaimBitmap

	assert.Equal(t, b, b.Set(-1))
	assert.Equal(t, b, b.Set(ClaimBitmapWidth))
	assert.False(t, b.Has(-1))
	assert.False(t, b.Has(ClaimBitmapWidth))
}

func TestNormalizeIdentity(t *testing.T) {
	assert.Equal(t, Identity("0xabcdef"), NormalizeIdentity("  0xABCdef "))
	assert.True(t, NormalizeIdentity("").Zero())
	assert.False(t, NormalizeIdentity("0x01").Zero())
}
