package contextgate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hushh-labs/consent-core/pkg/token"
)

type noRevocations struct{}

func (noRevocations) IsRevoked(string) bool { return false }

type alwaysActive struct{}

func (alwaysActive) IsActive(context.Context, string, string) bool { return true }

func TestEnterSucceedsWithValidTokenAndMatchingUser(t *testing.T) {
	codec, err := token.NewCodec([]byte("secret"))
	require.NoError(t, err)

	tok := codec.Issue("u1", "dev", "attr.food.*", time.Hour)
	gate := New(codec, noRevocations{}, alwaysActive{})

	ctx, err := gate.Enter(context.Background(), "u1", tok.Raw, "attr.food.*")
	require.NoError(t, err)
	require.Equal(t, "u1", ctx.UserID)
}

func TestEnterRejectsUserMismatch(t *testing.T) {
	codec, err := token.NewCodec([]byte("secret"))
	require.NoError(t, err)

	tok := codec.Issue("u1", "dev", "attr.food.*", time.Hour)
	gate := New(codec, noRevocations{}, alwaysActive{})

	_, err = gate.Enter(context.Background(), "u2", tok.Raw, "attr.food.*")
	require.Error(t, err)
}

func TestEnterRejectsScopeMismatch(t *testing.T) {
	codec, err := token.NewCodec([]byte("secret"))
	require.NoError(t, err)

	tok := codec.Issue("u1", "dev", "attr.food.*", time.Hour)
	gate := New(codec, noRevocations{}, alwaysActive{})

	_, err = gate.Enter(context.Background(), "u1", tok.Raw, "attr.financial.*")
	require.Error(t, err)
}

func TestWithVaultKeysDoesNotMutateOriginal(t *testing.T) {
	codec, err := token.NewCodec([]byte("secret"))
	require.NoError(t, err)

	tok := codec.Issue("u1", "dev", "attr.food.*", time.Hour)
	gate := New(codec, noRevocations{}, alwaysActive{})
	ctx, err := gate.Enter(context.Background(), "u1", tok.Raw, "attr.food.*")
	require.NoError(t, err)

	withKeys := ctx.WithVaultKeys(map[string]string{"k": "v"})
	require.Nil(t, ctx.VaultKeys)
	require.Equal(t, "v", withKeys.VaultKeys["k"])
}
