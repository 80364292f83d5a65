package revocation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestRedisStorePutThenHas(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := NewRedisClient(s.Addr(), "", 0)
	defer client.Close()
	store := NewRedisStore(client, "test:revocation")

	ctx := context.Background()
	rec := Record{
		TokenHash: Hash("some-token-raw"),
		UserID:    "u1",
		Scope:     "attr.food.*",
		RevokedAt: time.Now(),
		Reason:    "user requested logout",
	}

	has, err := store.Has(ctx, rec.TokenHash)
	require.NoError(t, err)
	require.False(t, has)

	require.NoError(t, store.Put(ctx, rec))

	has, err = store.Has(ctx, rec.TokenHash)
	require.NoError(t, err)
	require.True(t, has)
}

func TestIndexAdmitIfRevokedDurablyImportsFromRedis(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := NewRedisClient(s.Addr(), "", 0)
	defer client.Close()
	store := NewRedisStore(client, "test:revocation")

	idx := New(store)
	ctx := context.Background()

	tokenRaw := "HCT:fake-payload.deadbeef"
	require.False(t, idx.IsRevoked(tokenRaw))

	require.NoError(t, idx.Revoke(ctx, tokenRaw, "u1", "attr.food.*", "test"))

	freshIdx := New(store)
	admitted, err := freshIdx.AdmitIfRevokedDurably(ctx, tokenRaw)
	require.NoError(t, err)
	require.True(t, admitted)
	require.True(t, freshIdx.IsRevoked(tokenRaw))
}
