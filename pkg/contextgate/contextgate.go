// Package contextgate implements the Context Gate: the explicit value that
// binds a user, a consent token, and (optionally) derived vault keys for the
// lifetime of a single operation.
//
// Design note: this is deliberately a plain value threaded by the caller,
// not a goroutine-local or a context.Context key. A context.Context key
// would let the binding leak silently across goroutines spawned mid-request
// and would make "is there an active gate right now" an implicit, hard to
// audit question; an explicit value makes every gated call site visible in
// the code that calls it.
package contextgate

import (
	"context"
	"fmt"

	"github.com/hushh-labs/consent-core/pkg/token"
)

// Context binds a user, its validated consent token, and any derived vault
// keys an operation needs. It is immutable once built; a new Context is
// built per gate entry.
type Context struct {
	UserID     string
	Token      *token.Token
	VaultKeys  map[string]string
}

// Gate validates a token for a required scope and, on success, produces a
// Context. It performs no I/O beyond the validator it is given; it holds no
// state between calls, so entry is always re-checked from scratch.
type Gate struct {
	codec    *token.Codec
	revoked  token.RevocationChecker
	active   token.ActiveChecker
}

// New builds a Gate. active may be nil, in which case only the in-process
// validation path runs (no cross-instance revocation check).
func New(codec *token.Codec, revoked token.RevocationChecker, active token.ActiveChecker) *Gate {
	return &Gate{codec: codec, revoked: revoked, active: active}
}

// Enter validates tokenRaw against requiredScope and the claimed userID. It
// refuses on any mismatch between the token's own user_id and the caller's
// claimed userID — a defense against a valid token being replayed on behalf
// of a different identity (spec §4.7's identity-spoofing check) — even
// though that check is redundant with scope/signature validation in the
// common case, because userID here may arrive from a different channel
// (e.g. a path parameter) than the token itself.
func (g *Gate) Enter(ctx context.Context, userID, tokenRaw, requiredScope string) (*Context, error) {
	var tok *token.Token

	if dr, ok := g.revoked.(token.DurableRevocationChecker); ok {
		_, _ = dr.AdmitIfRevokedDurably(ctx, tokenRaw)
	}

	if g.active != nil {
		t, ve := g.codec.ValidateWithLedger(ctx, tokenRaw, requiredScope, g.revoked, g.active)
		if ve != nil {
			return nil, ve
		}
		tok = t
	} else {
		t, ve := g.codec.Validate(tokenRaw, requiredScope, g.revoked)
		if ve != nil {
			return nil, ve
		}
		tok = t
	}

	if tok.UserID != userID {
		return nil, fmt.Errorf("contextgate: token user %q does not match requesting user %q", tok.UserID, userID)
	}

	return &Context{UserID: userID, Token: tok}, nil
}

// WithVaultKeys returns a copy of the Context carrying derived vault keys,
// scoped only to this operation's lifetime — callers must not retain it
// past the gated call.
func (c *Context) WithVaultKeys(keys map[string]string) *Context {
	cp := *c
	cp.VaultKeys = keys
	return &cp
}

// Exit is a no-op marker for the gate's exit path; Context carries no
// resources that need releasing, but call sites should still call it on
// every return path (including error returns) so a future resource (e.g. a
// held vault decryption key) has one place to be cleaned up.
func (c *Context) Exit() {}
