//
// # Licensing
//
// This file is part of the consent-core project and is licensed under the Apache License 2.0.
// It incorporates code and concepts from:
//   - OAuth 2.0 and OpenID Connect (Apache 2.0 License)
//   - Model Context Protocol (MIT License)
// See the LICENSE file in the project root for details.

// Package token implements the consent token codec: issuance and
// validation of signed, opaque consent tokens in the fixed wire format
// "HCT:<base64url(payload)>.<hex_hmac>".
package token

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hushh-labs/consent-core/pkg/scope"
)

const wirePrefix = "HCT"

// Token is the decoded form of a consent token. Scope is preserved exactly
// as granted; it is never coerced into a broader form or collapsed to an
// enum anywhere in this package.
type Token struct {
	UserID    string
	AgentID   string
	Scope     string
	IssuedAt  int64 // milliseconds since epoch
	ExpiresAt int64 // milliseconds since epoch
	Signature string // lowercase hex, 64 chars
	Raw       string // the full wire string, for hashing/revocation lookups
}

// Codec issues and validates consent tokens against a process-wide secret.
// The secret is resolved once at construction and never rotated within a
// process, per spec §4.2.
type Codec struct {
	secret []byte
	now    func() time.Time
}

// NewCodec builds a Codec from a raw secret. An empty secret is a startup
// fault the caller must check for (spec: "missing secret -> fail startup").
func NewCodec(secret []byte) (*Codec, error) {
	if len(secret) == 0 {
		return nil, ErrSecretNotConfigured
	}
	return &Codec{secret: secret, now: time.Now}, nil
}

func (c *Codec) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

func payloadString(userID, agentID, scopeStr string, issuedAt, expiresAt int64) string {
	return strings.Join([]string{
		userID, agentID, scopeStr,
		strconv.FormatInt(issuedAt, 10),
		strconv.FormatInt(expiresAt, 10),
	}, "|")
}

func (c *Codec) sign(payload string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Issue mints a new consent token for (userID, agentID, scopeStr) with the
// given time-to-live. scopeStr is stored byte-for-byte: callers that want
// normalization must call scope.Normalize before Issue.
func (c *Codec) Issue(userID, agentID, scopeStr string, ttl time.Duration) *Token {
	issuedAt := c.clock().UnixMilli()
	expiresAt := issuedAt + ttl.Milliseconds()
	payload := payloadString(userID, agentID, scopeStr, issuedAt, expiresAt)
	sig := c.sign(payload)

	raw := wirePrefix + ":" + base64.RawURLEncoding.EncodeToString([]byte(payload)) + "." + sig

	return &Token{
		UserID:    userID,
		AgentID:   agentID,
		Scope:     scopeStr,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
		Signature: sig,
		Raw:       raw,
	}
}

// RevocationChecker reports whether a raw token string has been revoked.
// The Token Codec depends on this narrow interface rather than importing
// pkg/revocation directly, keeping the leaf-first dependency stack spec §2
// requires.
type RevocationChecker interface {
	IsRevoked(tokenRaw string) bool
}

// DurableRevocationChecker optionally extends RevocationChecker with a lazy
// import of a durable revocation discovered on this read, for an instance
// whose in-memory set hasn't seen it yet (fresh process, cold cache). A
// RevocationChecker that doesn't implement this is a process-local-only
// index; callers should type-assert for it rather than require it.
type DurableRevocationChecker interface {
	RevocationChecker
	AdmitIfRevokedDurably(ctx context.Context, tokenRaw string) (bool, error)
}

// ActiveChecker reports whether the ledger's active projection currently
// has a GRANTED entry for (userID, scopeStr). Used only by
// ValidateWithLedger. Its single implementation, *ledger.Ledger, needs a
// context for the durable read, so the check takes one too.
type ActiveChecker interface {
	IsActive(ctx context.Context, userID, scopeStr string) bool
}

// decode performs structural parsing: prefix, single ':' and '.', base64url
// decode, and exactly 5 pipe-delimited fields. It does not check the
// signature or expiry.
func decode(tokenStr string) (payload string, sig string, fields []string, verr *ValidationError) {
	if !strings.HasPrefix(tokenStr, wirePrefix+":") {
		return "", "", nil, NewValidationError(ValidationCodeInvalidPrefix, "Invalid token prefix")
	}
	rest := tokenStr[len(wirePrefix)+1:]

	dot := strings.LastIndexByte(rest, '.')
	if dot < 0 {
		return "", "", nil, NewValidationError(ValidationCodeMalformed, "Malformed token: missing signature separator")
	}
	encodedPayload, sigHex := rest[:dot], rest[dot+1:]
	if strings.ContainsRune(encodedPayload, '.') {
		return "", "", nil, NewValidationError(ValidationCodeMalformed, "Malformed token: unexpected separator")
	}

	decoded, err := base64.RawURLEncoding.DecodeString(encodedPayload)
	if err != nil {
		return "", "", nil, NewValidationErrorWithCause(ValidationCodeMalformed, "Malformed token: invalid base64url payload", err)
	}

	parts := strings.Split(string(decoded), "|")
	if len(parts) != 5 {
		return "", "", nil, NewValidationError(ValidationCodeMalformed, fmt.Sprintf("Malformed token: expected 5 fields, got %d", len(parts)))
	}

	return string(decoded), sigHex, parts, nil
}

// Validate performs in-process-only validation: the hot-path revocation
// check, structural parse, signature check, expiry, and (if expectedScope
// is non-empty) scope satisfaction. It never touches the ledger.
func (c *Codec) Validate(tokenStr string, expectedScope string, revoked RevocationChecker) (*Token, *ValidationError) {
	if revoked != nil && revoked.IsRevoked(tokenStr) {
		return nil, NewValidationError(ValidationCodeRevoked, "Token has been revoked")
	}

	payload, sigHex, fields, verr := decode(tokenStr)
	if verr != nil {
		return nil, verr
	}

	expected := c.sign(payload)
	if subtle.ConstantTimeCompare([]byte(strings.ToLower(sigHex)), []byte(expected)) != 1 {
		return nil, NewValidationError(ValidationCodeInvalidSignature, "Invalid signature")
	}

	issuedAt, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return nil, NewValidationErrorWithCause(ValidationCodeMalformed, "Malformed token: invalid issued_at", err)
	}
	expiresAt, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return nil, NewValidationErrorWithCause(ValidationCodeMalformed, "Malformed token: invalid expires_at", err)
	}

	tok := &Token{
		UserID:    fields[0],
		AgentID:   fields[1],
		Scope:     fields[2],
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
		Signature: sigHex,
		Raw:       tokenStr,
	}

	if c.clock().UnixMilli() > tok.ExpiresAt {
		return nil, NewValidationError(ValidationCodeExpired, "Token expired")
	}

	if expectedScope != "" && !scope.Satisfies(tok.Scope, expectedScope) {
		return nil, NewValidationError(ValidationCodeScopeMismatch,
			fmt.Sprintf("Scope mismatch: token has '%s', but '%s' required", tok.Scope, expectedScope))
	}

	return tok, nil
}

// ValidateWithLedger is the durable form: it runs Validate, then additionally
// consults the active projection for cross-instance revocation. If the
// ledger has no matching GRANTED entry for (token.UserID, token.Scope), the
// token is rejected with ValidationCodeLedgerConflict. The token is not added
// to the in-memory revocation set, neither here nor by the callers in this
// module, so a later Validate of the same token without the ledger still
// accepts it.
func (c *Codec) ValidateWithLedger(ctx context.Context, tokenStr string, expectedScope string, revoked RevocationChecker, active ActiveChecker) (*Token, *ValidationError) {
	tok, verr := c.Validate(tokenStr, expectedScope, revoked)
	if verr != nil {
		return nil, verr
	}

	if active != nil && !active.IsActive(ctx, tok.UserID, tok.Scope) {
		return nil, NewValidationError(ValidationCodeLedgerConflict, "Token has been revoked")
	}

	return tok, nil
}
