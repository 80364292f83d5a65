package approval

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hushh-labs/consent-core/pkg/ledger"
	"github.com/hushh-labs/consent-core/pkg/token"
)

func newTestCoordinator(t *testing.T, at time.Time) (*Coordinator, *MemoryRegistry) {
	t.Helper()
	l := ledger.New(ledger.NewMemoryStore())
	registry := NewMemoryRegistry()
	registry.Register("dev-token", Developer{Name: "acme", ApprovedScopes: []string{"attr.food.*", "vault.owner"}})

	codec, err := token.NewCodec([]byte("test-secret"))
	require.NoError(t, err)

	c := New(l, registry, codec)
	c.now = func() time.Time { return at }
	return c, registry
}

func TestRequestConsentUnauthorized(t *testing.T) {
	c, _ := newTestCoordinator(t, time.Now())
	_, err := c.RequestConsent(context.Background(), "bogus-token", "u1", "attr.food.*", 24)
	var unauth *Unauthorized
	require.ErrorAs(t, err, &unauth)
}

func TestRequestConsentForbiddenScope(t *testing.T) {
	c, _ := newTestCoordinator(t, time.Now())
	_, err := c.RequestConsent(context.Background(), "dev-token", "u1", "attr.financial.*", 24)
	var forbidden *Forbidden
	require.ErrorAs(t, err, &forbidden)
}

func TestRequestConsentFreshRequest(t *testing.T) {
	c, _ := newTestCoordinator(t, time.Now())
	result, err := c.RequestConsent(context.Background(), "dev-token", "u1", "attr.food.*", 24)
	require.NoError(t, err)
	require.Equal(t, StatusRequested, result.Status)
	require.Len(t, result.RequestID, 8)
}

func TestRequestConsentPendingShortCircuit(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCoordinator(t, time.Now())
	_, err := c.RequestConsent(ctx, "dev-token", "u1", "attr.food.*", 24)
	require.NoError(t, err)

	result, err := c.RequestConsent(ctx, "dev-token", "u1", "attr.food.*", 24)
	require.NoError(t, err)
	require.Equal(t, StatusPendingExists, result.Status)
}

func TestGrantThenRequestConsentAlreadyGranted(t *testing.T) {
	ctx := context.Background()
	base := time.Now()
	c, _ := newTestCoordinator(t, base)

	result, err := c.RequestConsent(ctx, "dev-token", "u1", "attr.food.*", 24)
	require.NoError(t, err)

	tok, err := c.Grant(ctx, "u1", result.RequestID, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, tok.Raw)

	result2, err := c.RequestConsent(ctx, "dev-token", "u1", "attr.food.*", 24)
	require.NoError(t, err)
	require.Equal(t, StatusAlreadyGranted, result2.Status)
	require.Equal(t, tok.Raw, result2.ConsentToken)

	validated, verr := c.codec.Validate(result2.ConsentToken, "attr.food.*", nil)
	require.Nil(t, verr)
	require.Equal(t, "u1", validated.UserID)
}

func TestDenyThenCooldownBlocksReRequest(t *testing.T) {
	ctx := context.Background()
	base := time.Now()
	c, _ := newTestCoordinator(t, base)

	result, err := c.RequestConsent(ctx, "dev-token", "u1", "attr.food.*", 24)
	require.NoError(t, err)

	err = c.Deny(ctx, "u1", result.RequestID)
	require.NoError(t, err)

	result2, err := c.RequestConsent(ctx, "dev-token", "u1", "attr.food.*", 24)
	require.NoError(t, err)
	require.Equal(t, StatusDeniedCooldown, result2.Status)

	c.now = func() time.Time { return base.Add(90 * time.Second) }
	result3, err := c.RequestConsent(ctx, "dev-token", "u1", "attr.food.*", 24)
	require.NoError(t, err)
	require.Equal(t, StatusRequested, result3.Status)
}

func TestAwaitGrantSucceedsOnceActive(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCoordinator(t, time.Now())

	result, err := c.RequestConsent(ctx, "dev-token", "u1", "attr.food.*", 24)
	require.NoError(t, err)
	_, err = c.Grant(ctx, "u1", result.RequestID, time.Hour)
	require.NoError(t, err)

	found, err := c.AwaitGrant(ctx, "u1", "attr.food.*")
	require.NoError(t, err)
	require.True(t, found)
}

func TestAwaitGrantFailsWhenNeverGranted(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCoordinator(t, time.Now())

	found, err := c.AwaitGrant(ctx, "u1", "attr.food.*")
	require.Error(t, err)
	require.False(t, found)
}
