package secrets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseVaultRefWithExplicitField(t *testing.T) {
	ref, ok := ParseVaultRef("vault://secret/consentcore#signing_key")
	require.True(t, ok)
	require.Equal(t, VaultRef{Mount: "secret", Path: "consentcore", Field: "signing_key"}, ref)
}

func TestParseVaultRefDefaultsFieldToValue(t *testing.T) {
	ref, ok := ParseVaultRef("vault://secret/consentcore")
	require.True(t, ok)
	require.Equal(t, "value", ref.Field)
}

func TestParseVaultRefRejectsPlainSecret(t *testing.T) {
	_, ok := ParseVaultRef("super-secret-value")
	require.False(t, ok)
}

func TestParseVaultRefRejectsMissingPath(t *testing.T) {
	_, ok := ParseVaultRef("vault://secret")
	require.False(t, ok)
}

func TestResolveReturnsPlainSecretAsIs(t *testing.T) {
	r, err := NewResolver("")
	require.NoError(t, err)

	got, err := r.Resolve(context.Background(), "my-plain-secret")
	require.NoError(t, err)
	require.Equal(t, []byte("my-plain-secret"), got)
}

func TestResolveRejectsEmptySecret(t *testing.T) {
	r, err := NewResolver("")
	require.NoError(t, err)

	_, err = r.Resolve(context.Background(), "")
	require.Error(t, err)
}

func TestResolveRejectsVaultRefWithoutVaultConfigured(t *testing.T) {
	r, err := NewResolver("")
	require.NoError(t, err)

	_, err = r.Resolve(context.Background(), "vault://secret/consentcore#signing_key")
	require.Error(t, err)
}

func TestDeriveKeyIsDeterministicAndRequestedLength(t *testing.T) {
	k1, err := DeriveKey([]byte("raw-secret"), "consentcore-token-hmac", 32)
	require.NoError(t, err)
	require.Len(t, k1, 32)

	k2, err := DeriveKey([]byte("raw-secret"), "consentcore-token-hmac", 32)
	require.NoError(t, err)
	require.Equal(t, k1, k2)
}

func TestDeriveKeyDiffersByInfoString(t *testing.T) {
	k1, err := DeriveKey([]byte("raw-secret"), "info-a", 32)
	require.NoError(t, err)
	k2, err := DeriveKey([]byte("raw-secret"), "info-b", 32)
	require.NoError(t, err)
	require.NotEqual(t, k1, k2)
}
