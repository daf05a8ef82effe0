package otp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSixDigits(t *testing.T) {
	code, err := Generate()
	require.NoError(t, err)
	require.Len(t, code, 6)
	for _, r := range code {
		assert.True(t, r >= '0' && r <= '9')
	}
}

func TestVerifyRoundTrip(t *testing.T) {
	hash, err := Hash("123456")
	require.NoError(t, err)

	now := time.Now()
	assert.True(t, Verify(hash, "123456", now.Add(TTL), now))
	assert.False(t, Verify(hash, "654321", now.Add(TTL), now))
}

func TestVerifyExpiredCode(t *testing.T) {
	hash, err := Hash("123456")
	require.NoError(t, err)

	now := time.Now()
	assert.False(t, Verify(hash, "123456", now.Add(-time.Second), now))
}

func TestVerifyEmptyHash(t *testing.T) {
	assert.False(t, Verify("", "123456", time.Now().Add(TTL), time.Now()))
}
