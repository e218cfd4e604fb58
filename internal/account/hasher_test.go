package account

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBcryptHasher_RoundTrip(t *testing.T) {
	hasher := BcryptHasher{Cost: 4}

	hash, err := hasher.Hash("correct horse battery staple")
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	assert.NotContains(t, hash, "correct horse", "hash must not embed the secret")

	assert.True(t, hasher.Verify(hash, "correct horse battery staple"))
	assert.False(t, hasher.Verify(hash, "wrong password"))
}

func TestBcryptHasher_SaltedHashesDiffer(t *testing.T) {
	hasher := BcryptHasher{Cost: 4}

	first, err := hasher.Hash("samesecret")
	require.NoError(t, err)
	second, err := hasher.Hash("samesecret")
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "salting should make identical secrets hash differently")
	assert.True(t, hasher.Verify(first, "samesecret"))
	assert.True(t, hasher.Verify(second, "samesecret"))
}

func TestBcryptHasher_FailsClosedOnMalformedHash(t *testing.T) {
	hasher := BcryptHasher{Cost: 4}

	for _, malformed := range []string{"", "not-a-bcrypt-hash", "$2b$garbage"} {
		assert.False(t, hasher.Verify(malformed, "anything"), "malformed hash %q must verify false", malformed)
	}
}

func TestBcryptHasher_DefaultCost(t *testing.T) {
	hasher := BcryptHasher{}
	hash, err := hasher.Hash("some password")
	require.NoError(t, err)
	assert.True(t, hasher.Verify(hash, "some password"))
}
