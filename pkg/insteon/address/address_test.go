package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAndString(t *testing.T) {
	a, err := Parse("1A.2B.3C")
	require.NoError(t, err)
	assert.Equal(t, Address{Hi: 0x1A, Mid: 0x2B, Low: 0x3C}, a)
	assert.Equal(t, "1A.2B.3C", a.String())
}

func TestParseWithoutDots(t *testing.T) {
	a, err := Parse("1A2B3C")
	require.NoError(t, err)
	assert.Equal(t, Address{Hi: 0x1A, Mid: 0x2B, Low: 0x3C}, a)
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse("not-hex")
	assert.Error(t, err)
}

func TestFromBytesWrongLength(t *testing.T) {
	_, err := FromBytes([]byte{0x01, 0x02})
	assert.Error(t, err)
}

func TestIsZero(t *testing.T) {
	assert.True(t, Zero.IsZero())
	assert.False(t, New(1, 0, 0).IsZero())
}
