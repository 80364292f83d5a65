// Package revocation implements the Revocation Index: a fast in-memory set
// of revoked token hashes backed by a durable store for cross-instance and
// post-restart consistency. Tokens are never stored in plaintext in the
// durable record; only their SHA-256 hash is persisted.
package revocation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/hushh-labs/consent-core/pkg/metrics"
)

// Record is a durable revocation entry.
type Record struct {
	TokenHash string
	UserID    string
	Scope     string
	RevokedAt time.Time
	Reason    string
}

// Durable is the persistence collaborator for revocation records. A Redis
// or Postgres-backed implementation satisfies this; see RedisStore.
type Durable interface {
	Put(ctx context.Context, rec Record) error
	Has(ctx context.Context, tokenHash string) (bool, error)
}

// Hash computes the durable lookup key for a raw token string.
func Hash(tokenRaw string) string {
	sum := sha256.Sum256([]byte(tokenRaw))
	return hex.EncodeToString(sum[:])
}

// Index is the in-memory hot-path revocation set, mirrored optionally into
// a Durable backend. Reads are lock-free via sync.Map; concurrent readers
// are the common case per spec §5.
type Index struct {
	mu      sync.Mutex // guards writes only; sync.Map handles concurrent reads
	revoked sync.Map   // tokenHash -> struct{}
	durable Durable
	metrics *metrics.Collector
}

// New builds an Index. durable may be nil, in which case revocations are
// process-local only (acceptable for a single-instance deployment, but the
// spec's cross-instance guarantee requires a non-nil durable backend).
func New(durable Durable) *Index {
	return &Index{durable: durable, metrics: metrics.NewCollector()}
}

// Revoke records a revocation both in the hot-path set and, if configured,
// in the durable backend.
func (idx *Index) Revoke(ctx context.Context, tokenRaw, userID, scopeStr, reason string) error {
	hash := Hash(tokenRaw)

	idx.mu.Lock()
	idx.revoked.Store(hash, struct{}{})
	idx.mu.Unlock()

	if idx.durable == nil {
		return nil
	}
	return idx.durable.Put(ctx, Record{
		TokenHash: hash,
		UserID:    userID,
		Scope:     scopeStr,
		RevokedAt: time.Now(),
		Reason:    reason,
	})
}

// IsRevoked is the hot-path O(1) check. It implements token.RevocationChecker.
func (idx *Index) IsRevoked(tokenRaw string) bool {
	_, ok := idx.revoked.Load(Hash(tokenRaw))
	idx.metrics.RecordRevocationCheck(ok)
	return ok
}

// AdmitIfRevokedDurably lazily imports a durable revocation into the
// in-memory set. It is the only path that consults the durable backend on
// the read side: startup does not eagerly load durable records, per spec
// §4.3 — validate_with_ledger discovers them lazily instead. Returns true
// if the token turned out to be (now confirmed) revoked.
func (idx *Index) AdmitIfRevokedDurably(ctx context.Context, tokenRaw string) (bool, error) {
	if idx.durable == nil {
		return false, nil
	}
	hash := Hash(tokenRaw)
	has, err := idx.durable.Has(ctx, hash)
	if err != nil {
		return false, err
	}
	if has {
		idx.mu.Lock()
		idx.revoked.Store(hash, struct{}{})
		idx.mu.Unlock()
	}
	return has, nil
}
