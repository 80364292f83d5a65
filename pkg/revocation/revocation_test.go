package revocation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type memDurable struct {
	recs map[string]Record
}

func newMemDurable() *memDurable { return &memDurable{recs: map[string]Record{}} }

func (m *memDurable) Put(ctx context.Context, rec Record) error {
	m.recs[rec.TokenHash] = rec
	return nil
}

func (m *memDurable) Has(ctx context.Context, tokenHash string) (bool, error) {
	_, ok := m.recs[tokenHash]
	return ok, nil
}

func TestRevokeThenIsRevoked(t *testing.T) {
	idx := New(nil)
	const raw = "HCT:abc.def"

	require.False(t, idx.IsRevoked(raw))
	require.NoError(t, idx.Revoke(context.Background(), raw, "u1", "attr.food.*", "user requested"))
	require.True(t, idx.IsRevoked(raw))
}

func TestRevocationStickyAcrossRestart(t *testing.T) {
	durable := newMemDurable()
	first := New(durable)
	const raw = "HCT:abc.def"

	require.NoError(t, first.Revoke(context.Background(), raw, "u1", "attr.food.*", "reason"))

	// Simulate a process restart: a fresh in-memory index over the same
	// durable backend has not eagerly loaded anything yet.
	second := New(durable)
	require.False(t, second.IsRevoked(raw))

	admitted, err := second.AdmitIfRevokedDurably(context.Background(), raw)
	require.NoError(t, err)
	require.True(t, admitted)
	require.True(t, second.IsRevoked(raw))
}

func TestHashNeverStoresPlaintext(t *testing.T) {
	h1 := Hash("HCT:abc.def")
	h2 := Hash("HCT:abc.def")
	require.Equal(t, h1, h2)
	require.NotContains(t, h1, "HCT")
	require.Len(t, h1, 64)
}
