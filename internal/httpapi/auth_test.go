package httpapi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenAuthority_IssueThenVerifyRoundTrip(t *testing.T) {
	a := newTokenAuthority("shared-secret")
	token, err := a.issue("api-key-1", time.Hour)
	require.NoError(t, err)

	p, err := a.verify(token)
	require.NoError(t, err)
	assert.Equal(t, "api-key-1", p.APIKey)
}

func TestTokenAuthority_RejectsTamperedSignature(t *testing.T) {
	a := newTokenAuthority("shared-secret")
	token, err := a.issue("api-key-1", time.Hour)
	require.NoError(t, err)

	_, err = a.verify(token + "tampered")
	assert.Error(t, err)
}

func TestTokenAuthority_RejectsTokenFromDifferentSecret(t *testing.T) {
	a := newTokenAuthority("secret-a")
	token, err := a.issue("api-key-1", time.Hour)
	require.NoError(t, err)

	b := newTokenAuthority("secret-b")
	_, err = b.verify(token)
	assert.Error(t, err)
}

func TestTokenAuthority_RejectsExpiredToken(t *testing.T) {
	a := newTokenAuthority("shared-secret")
	token, err := a.issue("api-key-1", -time.Minute)
	require.NoError(t, err)

	_, err = a.verify(token)
	assert.Error(t, err)
}

func TestTokenAuthority_RejectsMalformedToken(t *testing.T) {
	a := newTokenAuthority("shared-secret")
	_, err := a.verify("not-a-valid-token")
	assert.Error(t, err)
}
